package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/library")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/library", cfg.DatabaseURL)
	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, 20, cfg.DBMaxOpenConns)
	assert.Equal(t, int64(50), cfg.DailyFineCents)
	assert.Equal(t, 48*time.Hour, cfg.NotifyWindow)
}

func Test_Load_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/library")
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("DAILY_FINE_CENTS", "25")
	t.Setenv("RESERVATION_NOTIFY_WINDOW", "24h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, int64(25), cfg.DailyFineCents)
	assert.Equal(t, 24*time.Hour, cfg.NotifyWindow)
}

func Test_Load_RequiresDatabaseURL(t *testing.T) {
	// t.Setenv registers the restore; the variable must be absent, not empty,
	// for the required check to trip.
	t.Setenv("DATABASE_URL", "")
	os.Unsetenv("DATABASE_URL")

	_, err := Load()
	assert.Error(t, err)
}
