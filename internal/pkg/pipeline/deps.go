package pipeline

import (
	"context"

	"photo_sync_bot/internal/pkg/media"
)

// MediaItem is one intake event: a media message observed in a group.
// It lives only for the duration of a single pipeline run.
type MediaItem struct {
	GroupID      int64
	GroupTitle   string
	MessageID    int64
	Kind         media.Kind
	DeclaredSize int64
	FileID       string
	FileName     string
	MimeType     string
}

type Fetcher interface {
	Fetch(ctx context.Context, fileID string) (data []byte, filePath string, err error)
}

type AlbumResolver interface {
	Resolve(ctx context.Context, groupID int64, title string) (albumID string, err error)
}

type Uploader interface {
	Upload(ctx context.Context, data []byte, filename, mimeType, albumID string) (remoteID string, err error)
}
