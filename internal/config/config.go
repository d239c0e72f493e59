package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"photo_sync_bot/internal/pkg/media"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 64
)

// Config is the full daemon configuration, loaded from the
// environment. Required fields missing at startup are a fatal error;
// the process must not start half-configured.
type Config struct {
	TelegramBotToken   string
	TelegramBotAPIURL  string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRefreshToken string
	DatabaseURL        string
	AllowedGroupIDs    []int64
	Limits             media.Limits
	Workers            int
	QueueSize          int
	LogLevel           zerolog.Level
}

// FromEnv loads and validates configuration from the environment.
func FromEnv() (*Config, error) {
	token, err := required("TELEGRAM_BOT_TOKEN")
	if err != nil {
		return nil, err
	}
	clientID, err := required("GOOGLE_CLIENT_ID")
	if err != nil {
		return nil, err
	}
	clientSecret, err := required("GOOGLE_CLIENT_SECRET")
	if err != nil {
		return nil, err
	}
	refreshToken, err := required("GOOGLE_REFRESH_TOKEN")
	if err != nil {
		return nil, err
	}
	databaseURL, err := required("DATABASE_URL")
	if err != nil {
		return nil, err
	}

	allowed, err := parseGroupIDs(os.Getenv("ALLOWED_GROUP_IDS"))
	if err != nil {
		return nil, err
	}

	limits := media.DefaultLimits()
	if limits.PhotoMaxBytes, err = optionalInt64("PHOTO_MAX_BYTES", limits.PhotoMaxBytes); err != nil {
		return nil, err
	}
	if limits.VideoMaxBytes, err = optionalInt64("VIDEO_MAX_BYTES", limits.VideoMaxBytes); err != nil {
		return nil, err
	}

	workers, err := optionalInt("WORKERS", defaultWorkers)
	if err != nil {
		return nil, err
	}
	queueSize, err := optionalInt("QUEUE_SIZE", defaultQueueSize)
	if err != nil {
		return nil, err
	}

	level, err := parseLogLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return nil, err
	}

	return &Config{
		TelegramBotToken:   token,
		TelegramBotAPIURL:  strings.TrimSpace(os.Getenv("TELEGRAM_BOT_API_URL")),
		GoogleClientID:     clientID,
		GoogleClientSecret: clientSecret,
		GoogleRefreshToken: refreshToken,
		DatabaseURL:        databaseURL,
		AllowedGroupIDs:    allowed,
		Limits:             limits,
		Workers:            workers,
		QueueSize:          queueSize,
		LogLevel:           level,
	}, nil
}

func required(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required environment variable: %s", name)
	}
	return value, nil
}

func parseGroupIDs(raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ALLOWED_GROUP_IDS must be comma-separated integers, got: %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func optionalInt64(name string, def int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got: %q", name, raw)
	}
	return v, nil
}

func optionalInt(name string, def int) (int, error) {
	v, err := optionalInt64(name, int64(def))
	return int(v), err
}

func parseLogLevel(raw string) (zerolog.Level, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(raw)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("LOG_LEVEL must be a zerolog level (debug, info, warn, error), got: %q", raw)
	}
	return level, nil
}
