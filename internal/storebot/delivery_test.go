package storebot

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/storebot/core/telegram/state"
	"github.com/m3rciful/storebot/internal/commerce"
	"github.com/m3rciful/storebot/internal/conversation"
)

var errNotStocked = errors.New("not stocked in this test")

// catalogGateway serves one product with a photo; carts are not stocked.
type catalogGateway struct{}

var salmon = commerce.Product{
	ID: 42, Title: "Salmon steak", Description: "Wild salmon", Price: decimal.NewFromInt(420),
	Image: &commerce.ImageRef{ID: 1, URL: "/uploads/salmon.jpg"},
}

func (catalogGateway) ListProducts(context.Context) ([]commerce.Product, error) {
	return []commerce.Product{salmon}, nil
}

func (catalogGateway) GetProductDetail(_ context.Context, id int64, _ bool) (commerce.Product, error) {
	if id != salmon.ID {
		return commerce.Product{}, commerce.ErrNotFound
	}
	return salmon, nil
}

func (catalogGateway) FetchImage(context.Context, commerce.ImageRef) ([]byte, error) {
	return []byte("\xff\xd8jpeg"), nil
}

func (catalogGateway) GetOrCreateCart(context.Context, int64) (commerce.Cart, error) {
	return commerce.Cart{}, errNotStocked
}

func (catalogGateway) GetCartLines(context.Context, commerce.Cart) ([]commerce.CartLine, error) {
	return nil, errNotStocked
}

func (catalogGateway) CreateCartLine(context.Context, int64, int64, decimal.Decimal, *decimal.Decimal) (commerce.CartLine, error) {
	return commerce.CartLine{}, errNotStocked
}

func (catalogGateway) RemoveCartLine(context.Context, int64) error { return errNotStocked }

func (catalogGateway) GetOrCreateCustomer(context.Context, int64) (commerce.Customer, error) {
	return commerce.Customer{}, errNotStocked
}

func (catalogGateway) SaveCustomerEmail(context.Context, int64, string) (commerce.Customer, error) {
	return commerce.Customer{}, errNotStocked
}

func newCatalogTransport(t *testing.T) (*Transport, state.Store) {
	t.Helper()
	store := state.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	return NewTransport(conversation.New(catalogGateway{}, store)), store
}

func TestFailedPhotoSendKeepsState(t *testing.T) {
	api := newFakeBotAPI(t)
	api.failOn("sendPhoto", "IMAGE_PROCESS_FAILED")
	bot := api.bot(t)
	tr, store := newCatalogTransport(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, 42, conversation.HandleMenu.String()))

	err := tr.ManagerHandler(bot.NewContext(callbackUpdate("42")))
	require.Error(t, err)
	assert.ErrorIs(t, err, tele.ErrFailedImageProcess)

	v, found, err := store.Get(ctx, 42)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "HANDLE_MENU", v)

	// The pressed menu message stays; the user is told to retry.
	assert.Equal(t, []string{"sendPhoto", "sendMessage"}, api.methods())
	assert.Equal(t, FailureText, api.recorded()[1].Text)
}

func TestDeliveredPhotoAdvancesState(t *testing.T) {
	api := newFakeBotAPI(t)
	bot := api.bot(t)
	tr, store := newCatalogTransport(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, 42, conversation.HandleMenu.String()))

	require.NoError(t, tr.ManagerHandler(bot.NewContext(callbackUpdate("42"))))

	v, _, err := store.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "HANDLE_DESCRIPTION", v)
	assert.Equal(t, []string{"sendPhoto", "deleteMessage"}, api.methods())
}
