package storebot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/storebot/core/telegram/state"
)

func getJSON(t *testing.T, h http.Handler, target string) (int, map[string]string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

type plainStore struct{}

func (plainStore) Get(context.Context, int64) (string, bool, error) { return "", false, nil }
func (plainStore) Set(context.Context, int64, string) error         { return nil }
func (plainStore) Close() error                                     { return nil }

func TestHealthz(t *testing.T) {
	code, body := getJSON(t, NewOpsRouter(state.NewMemoryStore()), "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "version")
}

func TestReadyzFollowsStore(t *testing.T) {
	store := state.NewMemoryStore()
	h := NewOpsRouter(store)

	code, body := getJSON(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	require.NoError(t, store.Close())
	code, body = getJSON(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", body["status"])
	assert.NotEmpty(t, body["error"])
}

func TestReadyzWithoutPinger(t *testing.T) {
	code, _ := getJSON(t, NewOpsRouter(plainStore{}), "/readyz")
	assert.Equal(t, http.StatusOK, code)
}

func TestOpsServerShutdown(t *testing.T) {
	s := NewOpsServer("127.0.0.1:0", state.NewMemoryStore())
	s.Start()
	assert.NoError(t, s.Shutdown(context.Background()))
}
