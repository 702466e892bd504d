package storebot

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type apiCall struct {
	Method string
	Text   string
	Markup bool
}

// fakeBotAPI records Bot API calls and answers them with minimal results.
// Methods listed in fail are rejected with a Bad Request.
type fakeBotAPI struct {
	mu    sync.Mutex
	calls []apiCall
	fail  map[string]string
	srv   *httptest.Server
}

func newFakeBotAPI(t *testing.T) *fakeBotAPI {
	t.Helper()
	f := &fakeBotAPI{fail: map[string]string{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeBotAPI) serve(w http.ResponseWriter, r *http.Request) {
	method := path.Base(r.URL.Path)
	call := apiCall{Method: method}
	switch method {
	case "sendPhoto":
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			call.Text = r.FormValue("caption")
			call.Markup = r.FormValue("reply_markup") != ""
		}
	default:
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		call.Text, _ = body["text"].(string)
		_, call.Markup = body["reply_markup"]
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	desc, failing := f.fail[method]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if failing {
		w.WriteHeader(http.StatusBadRequest)
		body, _ := json.Marshal(map[string]any{"ok": false, "error_code": 400, "description": "Bad Request: " + desc})
		_, _ = w.Write(body)
		return
	}
	switch method {
	case "sendMessage":
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":100,"date":0,"chat":{"id":42,"type":"private"}}}`))
	case "sendPhoto":
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":101,"date":0,"chat":{"id":42,"type":"private"},"photo":[{"file_id":"p1","file_unique_id":"u1","width":1,"height":1}]}}`))
	default:
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}
}

func (f *fakeBotAPI) failOn(method, desc string) {
	f.mu.Lock()
	f.fail[method] = desc
	f.mu.Unlock()
}

func (f *fakeBotAPI) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Method)
	}
	return out
}

func (f *fakeBotAPI) recorded() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiCall(nil), f.calls...)
}

func (f *fakeBotAPI) bot(t *testing.T) *tele.Bot {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{URL: f.srv.URL, Token: "1:test", Offline: true})
	require.NoError(t, err)
	return b
}

func callbackUpdate(data string) tele.Update {
	chat := &tele.Chat{ID: 42, Type: tele.ChatPrivate}
	return tele.Update{
		ID: 7,
		Callback: &tele.Callback{
			ID:      "cb1",
			Sender:  &tele.User{ID: 42},
			Data:    data,
			Message: &tele.Message{ID: 55, Chat: chat},
		},
	}
}

func textUpdate(text string) tele.Update {
	chat := &tele.Chat{ID: 42, Type: tele.ChatPrivate}
	return tele.Update{
		ID:      8,
		Message: &tele.Message{ID: 56, Text: text, Chat: chat, Sender: &tele.User{ID: 42}},
	}
}
