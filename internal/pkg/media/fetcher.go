package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"photo_sync_bot/internal/pkg/retry"
)

const defaultFileEndpoint = "https://api.telegram.org/file/bot%s/%s"

type fileAPI interface {
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
}

// Fetcher downloads media bytes from the Telegram Bot API. Size gating
// happens upstream against declared metadata, before any bytes move.
type Fetcher struct {
	api          fileAPI
	token        string
	fileEndpoint string
	client       *http.Client
}

func NewFetcher(api fileAPI, token string) *Fetcher {
	return &Fetcher{
		api:          api,
		token:        token,
		fileEndpoint: defaultFileEndpoint,
		client:       &http.Client{Timeout: 5 * time.Minute},
	}
}

// NewFetcherWithEndpoint points downloads at a self-hosted Bot API
// server. endpoint must contain two %s verbs (token, file path).
func NewFetcherWithEndpoint(api fileAPI, token, endpoint string) *Fetcher {
	f := NewFetcher(api, token)
	if endpoint != "" {
		f.fileEndpoint = endpoint
	}
	return f
}

// Fetch resolves fileID and downloads its bytes. A file the source no
// longer has is permanent; network trouble and server errors are
// transient.
func (f *Fetcher) Fetch(ctx context.Context, fileID string) ([]byte, string, error) {
	file, err := f.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, "", classifyGetFileErr(fileID, err)
	}

	url := fmt.Sprintf(f.fileEndpoint, f.token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", retry.Permanent(err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", retry.Transient(fmt.Errorf("download file_id=%s: %w", fileID, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, "", retry.Permanent(fmt.Errorf("file gone file_id=%s", fileID))
	case resp.StatusCode != http.StatusOK:
		return nil, "", retry.Transient(fmt.Errorf("download file_id=%s: status=%d", fileID, resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", retry.Transient(fmt.Errorf("read file_id=%s: %w", fileID, err))
	}

	log.Debug().Str("file_id", fileID).Int("size", len(data)).Msg("Downloaded media")
	return data, file.FilePath, nil
}

func classifyGetFileErr(fileID string, err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "file not found") || strings.Contains(msg, "wrong file_id") {
		return retry.Permanent(fmt.Errorf("get file file_id=%s: %w", fileID, err))
	}
	return retry.Transient(fmt.Errorf("get file file_id=%s: %w", fileID, err))
}

// SafeFilename returns candidate stripped to its base name, or the
// fallback when the candidate is empty or unusable.
func SafeFilename(candidate, fallback string) string {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return fallback
	}
	if strings.ContainsAny(candidate, "/\\") {
		candidate = strings.ReplaceAll(candidate, "\\", "/")
		parts := strings.Split(candidate, "/")
		candidate = parts[len(parts)-1]
	}
	if candidate == "" {
		return fallback
	}
	return candidate
}
