package photos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"photo_sync_bot/internal/pkg/retry"
)

const (
	defaultBaseURL   = "https://photoslibrary.googleapis.com/v1"
	defaultUploadURL = "https://photoslibrary.googleapis.com/v1/uploads"
	googleTokenURL   = "https://oauth2.googleapis.com/token"

	maxAlbumTitleLen = 500
	maxFilenameLen   = 255
	albumPageSize    = 50
)

// Client talks to the Google Photos Library API. Authentication happens
// through a refresh token; access tokens are renewed transparently and
// a 401 triggers one forced refresh-and-resend before the error
// surfaces as permanent.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	uploadURL  string

	conf         *oauth2.Config
	refreshToken string

	mu     sync.Mutex
	tokens oauth2.TokenSource
}

func NewClient(clientID, clientSecret, refreshToken string) *Client {
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: googleTokenURL},
		Scopes: []string{
			"https://www.googleapis.com/auth/photoslibrary.appendonly",
			"https://www.googleapis.com/auth/photoslibrary.readonly.appcreateddata",
		},
	}

	c := &Client{
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		limiter:      rate.NewLimiter(rate.Limit(5), 5),
		baseURL:      defaultBaseURL,
		uploadURL:    defaultUploadURL,
		conf:         conf,
		refreshToken: refreshToken,
	}
	c.tokens = c.freshTokenSource()
	return c
}

// freshTokenSource builds a token source with no cached access token,
// so the first Token call goes to the token endpoint.
func (c *Client) freshTokenSource() oauth2.TokenSource {
	base := c.conf.TokenSource(context.Background(), &oauth2.Token{RefreshToken: c.refreshToken})
	return oauth2.ReuseTokenSource(nil, base)
}

// GetOrCreateAlbum returns the id of the app-created album with the
// given title, creating it if none exists. Searching first keeps album
// creation idempotent by title, so a crash between remote create and
// local persist is recoverable on re-delivery.
func (c *Client) GetOrCreateAlbum(ctx context.Context, title string) (string, error) {
	if len(title) > maxAlbumTitleLen {
		title = title[:maxAlbumTitleLen]
	}

	albumID, err := c.findAlbumByTitle(ctx, title)
	if err != nil {
		return "", err
	}
	if albumID != "" {
		log.Debug().Str("title", title).Str("album_id", albumID).Msg("Found existing album")
		return albumID, nil
	}

	albumID, err = c.createAlbum(ctx, title)
	if err != nil {
		return "", err
	}
	log.Info().Str("title", title).Str("album_id", albumID).Msg("Created new album")
	return albumID, nil
}

// Upload pushes raw bytes to the upload endpoint and attaches the
// resulting media item to the album. Returns the remote media item id.
func (c *Client) Upload(ctx context.Context, data []byte, filename, mimeType, albumID string) (string, error) {
	uploadToken, err := c.uploadBytes(ctx, data, mimeType)
	if err != nil {
		return "", err
	}
	return c.createMediaItem(ctx, uploadToken, filename, albumID)
}

type albumsPage struct {
	Albums []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"albums"`
	NextPageToken string `json:"nextPageToken"`
}

func (c *Client) findAlbumByTitle(ctx context.Context, title string) (string, error) {
	pageToken := ""
	for {
		url := fmt.Sprintf("%s/albums?pageSize=%d&excludeNonAppCreatedData=true", c.baseURL, albumPageSize)
		if pageToken != "" {
			url += "&pageToken=" + pageToken
		}

		body, err := c.call(ctx, http.MethodGet, url, nil, nil)
		if err != nil {
			return "", err
		}

		var page albumsPage
		if err := json.Unmarshal(body, &page); err != nil {
			return "", retry.Permanent(fmt.Errorf("parse albums response: %w", err))
		}
		for _, album := range page.Albums {
			if album.Title == title {
				return album.ID, nil
			}
		}
		if page.NextPageToken == "" {
			return "", nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *Client) createAlbum(ctx context.Context, title string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"album": map[string]string{"title": title},
	})
	if err != nil {
		return "", retry.Permanent(err)
	}

	body, err := c.call(ctx, http.MethodPost, c.baseURL+"/albums", payload, map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.ID == "" {
		return "", retry.Permanent(fmt.Errorf("create album response missing id: %s", body))
	}
	return created.ID, nil
}

func (c *Client) uploadBytes(ctx context.Context, data []byte, mimeType string) (string, error) {
	body, err := c.call(ctx, http.MethodPost, c.uploadURL, data, map[string]string{
		"Content-Type":               "application/octet-stream",
		"X-Goog-Upload-Content-Type": mimeType,
		"X-Goog-Upload-Protocol":     "raw",
	})
	if err != nil {
		return "", err
	}
	token := string(bytes.TrimSpace(body))
	if token == "" {
		return "", retry.Permanent(fmt.Errorf("upload returned empty upload token"))
	}
	return token, nil
}

type batchCreateResponse struct {
	NewMediaItemResults []struct {
		Status struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"status"`
		MediaItem struct {
			ID string `json:"id"`
		} `json:"mediaItem"`
	} `json:"newMediaItemResults"`
}

func (c *Client) createMediaItem(ctx context.Context, uploadToken, filename, albumID string) (string, error) {
	if len(filename) > maxFilenameLen {
		filename = filename[:maxFilenameLen]
	}
	payload, err := json.Marshal(map[string]any{
		"albumId": albumID,
		"newMediaItems": []map[string]any{
			{
				"description": "",
				"simpleMediaItem": map[string]string{
					"uploadToken": uploadToken,
					"fileName":    filename,
				},
			},
		},
	})
	if err != nil {
		return "", retry.Permanent(err)
	}

	body, err := c.call(ctx, http.MethodPost, c.baseURL+"/mediaItems:batchCreate", payload, map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return "", err
	}

	var resp batchCreateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", retry.Permanent(fmt.Errorf("parse batchCreate response: %w", err))
	}
	if len(resp.NewMediaItemResults) == 0 {
		return "", retry.Permanent(fmt.Errorf("batchCreate returned no results: %s", body))
	}
	result := resp.NewMediaItemResults[0]
	if result.Status.Code != 0 {
		return "", retry.Permanent(fmt.Errorf("batchCreate failed: %s", result.Status.Message))
	}
	return result.MediaItem.ID, nil
}

// call performs one authenticated request and returns the response
// body. Network failures are transient; non-2xx statuses are
// classified by classifyStatus. A 401 gets one forced token refresh
// and resend before it counts.
func (c *Client) call(ctx context.Context, method, url string, payload []byte, headers map[string]string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	status, body, err := c.send(ctx, method, url, payload, headers)
	if err != nil {
		return nil, retry.Transient(fmt.Errorf("photos request %s %s: %w", method, url, err))
	}

	if status == http.StatusUnauthorized {
		log.Warn().Str("url", url).Msg("Access token rejected, forcing refresh")
		c.invalidateToken()
		status, body, err = c.send(ctx, method, url, payload, headers)
		if err != nil {
			return nil, retry.Transient(fmt.Errorf("photos request %s %s: %w", method, url, err))
		}
	}

	if status < 200 || status >= 300 {
		return nil, classifyStatus(status, string(body))
	}
	return body, nil
}

func (c *Client) send(ctx context.Context, method, url string, payload []byte, headers map[string]string) (int, []byte, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return 0, nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	source := c.tokens
	c.mu.Unlock()

	token, err := source.Token()
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("refresh access token: %w", err))
	}
	return token.AccessToken, nil
}

// invalidateToken replaces the token source outright. The source from
// Config.TokenSource caches internally, so merely re-wrapping it would
// hand back the same rejected token; a rebuilt source has no cache and
// must refresh against the token endpoint.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = c.freshTokenSource()
}
