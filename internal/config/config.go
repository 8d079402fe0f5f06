// Package config loads service configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultScanQuery is the mailbox query used to find candidate disputes:
// refund, delay and cancellation vocabulary for transport and e-commerce,
// minus promotions and mail sent by the user.
const DefaultScanQuery = `(remboursement OR rembourser OR retard OR retardé OR annulation OR annulé OR "vol annulé" OR "train supprimé" OR "colis perdu" OR "non livré" OR "pas reçu" OR refund OR delayed OR cancelled OR "not delivered") -category:promotions -from:me`

// Dispatch scopes.
const (
	ScopeGlobal = "global"
	ScopeUser   = "user"
)

type Config struct {
	HTTPAddr string
	APIKey   string

	CredentialKey [32]byte
	EventSecret   string
	EventMaxAge   time.Duration
	RedisURL      string

	DispatchScope     string
	DispatchWorkers   int
	FallbackRecipient string
	CommissionPercent int64

	ScanQuery string
	ScanLimit int64

	MailboxTimeout  time.Duration
	ClassifyTimeout time.Duration
	DispatchTimeout time.Duration

	DirectoryFile string

	ClassifierURL    string
	ClassifierAPIKey string
	ClassifierModel  string

	TelegramBotToken string
	TelegramChatID   string

	GoogleClientID     string
	GoogleClientSecret string
}

// ConfigFromEnv reads the service config. Malformed values are errors rather
// than silent defaults so misconfiguration fails at startup.
func ConfigFromEnv() (Config, error) {
	var errs []string
	dur := func(k string, def time.Duration) time.Duration {
		v := os.Getenv(k)
		if v == "" {
			return def
		}
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Sprintf("%s: invalid duration %q", k, v))
			return def
		}
		return d
	}
	num := func(k string, def int64) int64 {
		v := os.Getenv(k)
		if v == "" {
			return def
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Sprintf("%s: invalid number %q", k, v))
			return def
		}
		return n
	}

	c := Config{
		HTTPAddr:           get("HTTP_ADDR", "0.0.0.0:8431"),
		APIKey:             os.Getenv("API_KEY"),
		EventSecret:        os.Getenv("EVENT_SECRET"),
		EventMaxAge:        dur("EVENT_MAX_AGE", time.Hour),
		RedisURL:           os.Getenv("REDIS_URL"),
		DispatchScope:      strings.ToLower(get("DISPATCH_SCOPE", ScopeGlobal)),
		DispatchWorkers:    int(num("DISPATCH_WORKERS", 4)),
		FallbackRecipient:  get("DISPATCH_FALLBACK_RECIPIENT", "service.client@example.fr"),
		CommissionPercent:  num("COMMISSION_PERCENT", 30),
		ScanQuery:          get("SCAN_QUERY", DefaultScanQuery),
		ScanLimit:          num("SCAN_LIMIT", 20),
		MailboxTimeout:     dur("MAILBOX_TIMEOUT", 15*time.Second),
		ClassifyTimeout:    dur("CLASSIFY_TIMEOUT", 20*time.Second),
		DispatchTimeout:    dur("DISPATCH_TIMEOUT", 20*time.Second),
		DirectoryFile:      os.Getenv("DIRECTORY_FILE"),
		ClassifierURL:      os.Getenv("CLASSIFIER_URL"),
		ClassifierAPIKey:   os.Getenv("CLASSIFIER_API_KEY"),
		ClassifierModel:    get("CLASSIFIER_MODEL", "gpt-4o-mini"),
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:     os.Getenv("TELEGRAM_CHAT_ID"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
	}

	if c.DispatchScope != ScopeGlobal && c.DispatchScope != ScopeUser {
		errs = append(errs, fmt.Sprintf("DISPATCH_SCOPE: must be %q or %q", ScopeGlobal, ScopeUser))
	}
	if c.CommissionPercent > 100 {
		errs = append(errs, "COMMISSION_PERCENT: must be at most 100")
	}
	if c.EventSecret == "" {
		errs = append(errs, "EVENT_SECRET: required")
	}
	key, err := parseKey(os.Getenv("CREDENTIAL_KEY"))
	if err != nil {
		errs = append(errs, "CREDENTIAL_KEY: "+err.Error())
	}
	c.CredentialKey = key

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return c, nil
}

// parseKey decodes a 64 hex char secretbox key.
func parseKey(s string) ([32]byte, error) {
	var key [32]byte
	if s == "" {
		return key, fmt.Errorf("required")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return key, fmt.Errorf("not hex: %w", err)
	}
	if len(b) != len(key) {
		return key, fmt.Errorf("want %d bytes, got %d", len(key), len(b))
	}
	copy(key[:], b)
	return key, nil
}

// get returns the value of the environment variable k or def if not set.
func get(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
