package photos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"photo_sync_bot/internal/pkg/retry"
)

// newTestClient points the client at srv and at a fake token endpoint
// that mints tok-1, tok-2, ... so tests can tell refreshed tokens apart.
func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()

	var mints int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := atomic.AddInt32(&mints, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":3600}`, n)
	}))
	t.Cleanup(tokenSrv.Close)

	c := NewClient("client-id", "client-secret", "refresh-token")
	c.httpClient = &http.Client{Timeout: 5 * time.Second}
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	c.baseURL = srv.URL
	c.uploadURL = srv.URL + "/uploads"
	c.conf.Endpoint = oauth2.Endpoint{TokenURL: tokenSrv.URL + "/token"}
	c.tokens = c.freshTokenSource()
	return c
}

func TestGetOrCreateAlbum_FindsExistingAcrossPages(t *testing.T) {
	var createCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/albums":
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			if r.URL.Query().Get("pageToken") == "" {
				fmt.Fprint(w, `{"albums":[{"id":"other","title":"Other"}],"nextPageToken":"p2"}`)
			} else {
				fmt.Fprint(w, `{"albums":[{"id":"A1","title":"Trip"}]}`)
			}
		case r.Method == http.MethodPost && r.URL.Path == "/albums":
			createCalls++
			fmt.Fprint(w, `{"id":"new"}`)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	albumID, err := c.GetOrCreateAlbum(context.Background(), "Trip")
	require.NoError(t, err)
	assert.Equal(t, "A1", albumID)
	assert.Equal(t, 0, createCalls, "existing album must not be recreated")
}

func TestGetOrCreateAlbum_CreatesWhenMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			fmt.Fprint(w, `{"albums":[]}`)
		case http.MethodPost:
			var body struct {
				Album struct {
					Title string `json:"title"`
				} `json:"album"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Trip", body.Album.Title)
			fmt.Fprint(w, `{"id":"A1"}`)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	albumID, err := c.GetOrCreateAlbum(context.Background(), "Trip")
	require.NoError(t, err)
	assert.Equal(t, "A1", albumID)
}

func TestGetOrCreateAlbum_TruncatesLongTitle(t *testing.T) {
	long := strings.Repeat("x", 600)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			fmt.Fprint(w, `{"albums":[]}`)
		case http.MethodPost:
			var body struct {
				Album struct {
					Title string `json:"title"`
				} `json:"album"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Len(t, body.Album.Title, maxAlbumTitleLen)
			fmt.Fprint(w, `{"id":"A1"}`)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.GetOrCreateAlbum(context.Background(), long)
	require.NoError(t, err)
}

func TestUpload_TokenThenBatchCreate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/uploads":
			assert.Equal(t, "raw", r.Header.Get("X-Goog-Upload-Protocol"))
			assert.Equal(t, "image/jpeg", r.Header.Get("X-Goog-Upload-Content-Type"))
			data, _ := io.ReadAll(r.Body)
			assert.Equal(t, "media-bytes", string(data))
			fmt.Fprint(w, "upload-token-1")
		case "/mediaItems:batchCreate":
			var body struct {
				AlbumID       string `json:"albumId"`
				NewMediaItems []struct {
					SimpleMediaItem struct {
						UploadToken string `json:"uploadToken"`
						FileName    string `json:"fileName"`
					} `json:"simpleMediaItem"`
				} `json:"newMediaItems"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "album-1", body.AlbumID)
			require.Len(t, body.NewMediaItems, 1)
			assert.Equal(t, "upload-token-1", body.NewMediaItems[0].SimpleMediaItem.UploadToken)
			assert.Equal(t, "photo.jpg", body.NewMediaItems[0].SimpleMediaItem.FileName)
			fmt.Fprint(w, `{"newMediaItemResults":[{"status":{"code":0},"mediaItem":{"id":"m1"}}]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	remoteID, err := c.Upload(context.Background(), []byte("media-bytes"), "photo.jpg", "image/jpeg", "album-1")
	require.NoError(t, err)
	assert.Equal(t, "m1", remoteID)
}

func TestUpload_BatchCreateItemFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/uploads" {
			fmt.Fprint(w, "tok")
			return
		}
		fmt.Fprint(w, `{"newMediaItemResults":[{"status":{"code":3,"message":"invalid media"}}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Upload(context.Background(), []byte("x"), "f.jpg", "image/jpeg", "album-1")
	require.Error(t, err)
	assert.False(t, retry.IsTransient(err))
	assert.Contains(t, err.Error(), "invalid media")
}

func TestCall_RateLimitedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.GetOrCreateAlbum(context.Background(), "Trip")
	require.Error(t, err)
	assert.True(t, retry.IsTransient(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.True(t, apiErr.RateLimited())
}

func TestCall_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "oops", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.GetOrCreateAlbum(context.Background(), "Trip")
	require.Error(t, err)
	assert.True(t, retry.IsTransient(err))
}

func TestCall_BadRequestIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "malformed", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.GetOrCreateAlbum(context.Background(), "Trip")
	require.Error(t, err)
	assert.False(t, retry.IsTransient(err))
}

func TestCall_UnauthorizedGetsOneRefreshedResend(t *testing.T) {
	var tokens []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens = append(tokens, r.Header.Get("Authorization"))
		if len(tokens) == 1 {
			http.Error(w, "expired", http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"albums":[{"id":"A1","title":"Trip"}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	albumID, err := c.GetOrCreateAlbum(context.Background(), "Trip")
	require.NoError(t, err)
	assert.Equal(t, "A1", albumID)

	require.Len(t, tokens, 2, "401 gets exactly one refreshed resend")
	assert.Equal(t, "Bearer tok-1", tokens[0])
	assert.Equal(t, "Bearer tok-2", tokens[1], "resend must carry a freshly refreshed token")
}

func TestCall_UnauthorizedTwiceIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "revoked", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.GetOrCreateAlbum(context.Background(), "Trip")
	require.Error(t, err)
	assert.False(t, retry.IsTransient(err), "revoked auth must not be retried")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestCall_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing listens anymore

	c := newTestClient(t, srv)
	_, err := c.GetOrCreateAlbum(context.Background(), "Trip")
	require.Error(t, err)
	assert.True(t, retry.IsTransient(err))
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
