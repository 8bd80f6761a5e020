package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBotAPI struct {
	mu       sync.Mutex
	messages []map[string]string
	fail     bool
	block    chan struct{}
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":7,"is_bot":true,"first_name":"apool","username":"apool_bot"}}`))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		if f.block != nil {
			<-f.block
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.messages = append(f.messages, map[string]string{
			"chat_id": r.PostForm.Get("chat_id"),
			"text":    r.PostForm.Get("text"),
		})
		f.mu.Unlock()
		if f.fail {
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeBotAPI) sent() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.messages...)
}

func newTestAlerter(t *testing.T, api *fakeBotAPI, source string) *Alerter {
	t.Helper()

	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	alerter, err := New(Config{
		Token:    "123:abc",
		ChatID:   42,
		Source:   source,
		Endpoint: server.URL + "/bot%s/%s",
		Client:   server.Client(),
	})
	require.NoError(t, err)
	return alerter
}

func TestAlertSendsPrefixedMessage(t *testing.T) {
	t.Parallel()

	api := &fakeBotAPI{}
	alerter := newTestAlerter(t, api, "worker-1")

	require.NoError(t, alerter.Alert(context.Background(), "pool openai-main has no accounts available"))

	sent := api.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "42", sent[0]["chat_id"])
	assert.Equal(t, "[worker-1] pool openai-main has no accounts available", sent[0]["text"])
}

func TestAlertTruncatesLongMessages(t *testing.T) {
	t.Parallel()

	api := &fakeBotAPI{}
	alerter := newTestAlerter(t, api, "")

	require.NoError(t, alerter.Alert(context.Background(), strings.Repeat("x", maxMessageLength+100)))

	sent := api.sent()
	require.Len(t, sent, 1)
	assert.Len(t, []rune(sent[0]["text"]), maxMessageLength)
}

func TestAlertSurfacesAPIError(t *testing.T) {
	t.Parallel()

	alerter := newTestAlerter(t, &fakeBotAPI{fail: true}, "")

	err := alerter.Alert(context.Background(), "boom")
	require.Error(t, err)
	assert.ErrorContains(t, err, "chat not found")
}

func TestAlertReturnsWhenContextEnds(t *testing.T) {
	t.Parallel()

	api := &fakeBotAPI{block: make(chan struct{})}
	alerter := newTestAlerter(t, api, "")
	defer close(api.block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := alerter.Alert(ctx, "boom")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{ChatID: 1})
	require.ErrorIs(t, err, errMissingToken)

	_, err = New(Config{Token: "123:abc"})
	require.ErrorContains(t, err, "chat id")
}
