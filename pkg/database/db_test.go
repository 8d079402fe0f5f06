package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSNWithSession(t *testing.T) {
	base := "postgres://u:p@localhost:5432/db?sslmode=disable"

	assert.Equal(t, base, dsnWithSession(Config{DSN: base}))
	assert.Equal(t,
		base+"&options=-c%20TimeZone=Europe/Paris%20-c%20client_encoding=UTF8",
		dsnWithSession(Config{DSN: base, TimeZone: "Europe/Paris", ClientEncoding: "UTF8"}),
	)
	assert.Equal(t,
		"postgres://localhost/db?options=-c%20TimeZone=UTC",
		dsnWithSession(Config{DSN: "postgres://localhost/db", TimeZone: "UTC"}),
	)
}

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DATABASE_MAX_CONNS", "x")
	cfg := ConfigFromEnv()
	assert.Contains(t, cfg.DSN, "localhost:5432")
	assert.Equal(t, 10, cfg.MaxConns)
}
