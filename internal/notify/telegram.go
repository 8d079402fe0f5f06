package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

var ErrTelegram = errors.New("telegram error")

type TelegramConfig struct {
	BotToken      string
	ChatID        string
	APIURL        string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// Telegram posts notifications to a chat through the Bot API.
type Telegram struct {
	cfg    TelegramConfig
	client *http.Client
	logger *zap.SugaredLogger
}

type telegramMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

func NewTelegram(cfg TelegramConfig, logger *zap.SugaredLogger) *Telegram {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.telegram.org"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	return &Telegram{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

func (t *Telegram) Notify(ctx context.Context, text string) error {
	msg := telegramMessage{ChatID: t.cfg.ChatID, Text: text}
	var lastErr error
	for attempt := 1; attempt <= t.cfg.RetryAttempts; attempt++ {
		if attempt > 1 {
			delay := time.Duration(attempt-1) * t.cfg.RetryDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		retry, err := t.send(ctx, msg)
		if err == nil {
			return nil
		}
		lastErr = err
		t.logger.Debugw("telegram attempt failed", "attempt", attempt, "err", err)
		if !retry {
			break
		}
	}
	return lastErr
}

// send reports whether a failure is worth retrying: transport errors, 429
// and 5xx are.
func (t *Telegram) send(ctx context.Context, msg telegramMessage) (bool, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return false, err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.cfg.APIURL, t.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("%w: %v", ErrTelegram, err)
	}
	defer resp.Body.Close()

	var tr telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return resp.StatusCode >= 500, fmt.Errorf("%w: status %d", ErrTelegram, resp.StatusCode)
	}
	if !tr.OK {
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return retry, fmt.Errorf("%w: %d %s", ErrTelegram, tr.ErrorCode, tr.Description)
	}
	return false, nil
}
