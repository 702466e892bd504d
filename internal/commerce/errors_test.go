package commerce

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusErrorMapping(t *testing.T) {
	validation := statusError("customers.update", http.StatusBadRequest,
		[]byte(`{"data":null,"error":{"status":400,"name":"ValidationError","message":"email must be a valid email"}}`))
	assert.Equal(t, KindValidation, validation.Kind)
	assert.Equal(t, "email must be a valid email", validation.Message)

	badRequest := statusError("carts.create", http.StatusBadRequest, []byte(`{"error":{"name":"ApplicationError"}}`))
	assert.Equal(t, KindUnavailable, badRequest.Kind)

	missing := statusError("products.get", http.StatusNotFound, nil)
	assert.Equal(t, KindNotFound, missing.Kind)

	server := statusError("products.list", http.StatusBadGateway, []byte("<html>"))
	assert.Equal(t, KindUnavailable, server.Kind)
}

func TestErrorIsMatchesKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("handler: %w", invalid("customers.update", "bad email"))
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "customers.update: validation: bad email")

	cause := errors.New("dial tcp: refused")
	wrapped := unavailable("products.list", cause)
	assert.True(t, errors.Is(wrapped, ErrBackendUnavailable))
	assert.True(t, errors.Is(wrapped, cause))
	assert.Equal(t, "COMMERCE_BACKEND_UNAVAILABLE", wrapped.Code())
}

func TestConfigNormalize(t *testing.T) {
	cfg := Config{Token: "t"}
	assert.NoError(t, cfg.Normalize())
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, "ordered-products", cfg.Models.OrderedProducts)
	assert.Equal(t, "user_tg_id", cfg.Models.CartOwnerField)

	noSlash := Config{Token: "t", BaseURL: "https://shop.example.com/cms"}
	assert.NoError(t, noSlash.Normalize())
	assert.Equal(t, "https://shop.example.com/cms/", noSlash.BaseURL)

	assert.Error(t, (&Config{}).Normalize())
	assert.Error(t, (&Config{Token: "t", BaseURL: "localhost"}).Normalize())
}
