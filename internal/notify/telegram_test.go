package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestTelegram(url string) *Telegram {
	return NewTelegram(TelegramConfig{
		BotToken:   "123:abc",
		ChatID:     "42",
		APIURL:     url,
		RetryDelay: time.Millisecond,
	}, zap.NewNop().Sugar())
}

func TestTelegramNotify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123:abc/sendMessage", r.URL.Path)
		var m telegramMessage
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&m))
		assert.Equal(t, "42", m.ChatID)
		assert.Equal(t, "hello", m.Text)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	assert.NoError(t, newTestTelegram(srv.URL).Notify(context.Background(), "hello"))
}

func TestTelegramRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":502,"description":"Bad Gateway"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	assert.NoError(t, newTestTelegram(srv.URL).Notify(context.Background(), "x"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestTelegramDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"chat not found"}`))
	}))
	defer srv.Close()

	err := newTestTelegram(srv.URL).Notify(context.Background(), "x")
	assert.ErrorIs(t, err, ErrTelegram)
	assert.Contains(t, err.Error(), "chat not found")
	assert.Equal(t, int32(1), calls.Load())
}

func TestCommissionMessage(t *testing.T) {
	assert.Equal(t,
		"Nouvelle mise en demeure envoyée: klm 600€ — commission 180.00€ (jane@example.com)",
		CommissionMessage("klm", "600€", 180, "jane@example.com"))
	assert.NoError(t, Nop{}.Notify(context.Background(), "x"))
}
