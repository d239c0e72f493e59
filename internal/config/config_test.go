package config

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photo_sync_bot/internal/pkg/media"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "tg-token")
	t.Setenv("GOOGLE_CLIENT_ID", "client-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "client-secret")
	t.Setenv("GOOGLE_REFRESH_TOKEN", "refresh-token")
	t.Setenv("DATABASE_URL", "postgres://localhost/sync")
}

func TestFromEnv_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "tg-token", cfg.TelegramBotToken)
	assert.Empty(t, cfg.TelegramBotAPIURL)
	assert.Nil(t, cfg.AllowedGroupIDs)
	assert.Equal(t, media.DefaultLimits(), cfg.Limits)
	assert.Equal(t, defaultWorkers, cfg.Workers)
	assert.Equal(t, defaultQueueSize, cfg.QueueSize)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
}

func TestFromEnv_MissingRequired(t *testing.T) {
	required := []string{
		"TELEGRAM_BOT_TOKEN",
		"GOOGLE_CLIENT_ID",
		"GOOGLE_CLIENT_SECRET",
		"GOOGLE_REFRESH_TOKEN",
		"DATABASE_URL",
	}
	for _, name := range required {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(name, "")

			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestFromEnv_AllowedGroupIDs(t *testing.T) {
	setRequired(t)
	t.Setenv("ALLOWED_GROUP_IDS", "-100123, -100456 ,789")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, []int64{-100123, -100456, 789}, cfg.AllowedGroupIDs)
}

func TestFromEnv_BadAllowedGroupIDs(t *testing.T) {
	setRequired(t)
	t.Setenv("ALLOWED_GROUP_IDS", "-100123,abc")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ALLOWED_GROUP_IDS")
}

func TestFromEnv_SizeCeilingOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PHOTO_MAX_BYTES", "1048576")
	t.Setenv("VIDEO_MAX_BYTES", "2097152")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, int64(1048576), cfg.Limits.PhotoMaxBytes)
	assert.Equal(t, int64(2097152), cfg.Limits.VideoMaxBytes)
}

func TestFromEnv_BadSizeCeiling(t *testing.T) {
	setRequired(t)
	t.Setenv("PHOTO_MAX_BYTES", "-5")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PHOTO_MAX_BYTES")
}

func TestFromEnv_LogLevel(t *testing.T) {
	setRequired(t)
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
}

func TestFromEnv_BadLogLevel(t *testing.T) {
	setRequired(t)
	t.Setenv("LOG_LEVEL", "loud")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_LEVEL")
}
