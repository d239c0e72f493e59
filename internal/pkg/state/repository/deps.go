package repository

import (
	"context"

	"photo_sync_bot/internal/pkg/state/domain"
)

type Repository interface {
	// IsProcessed reports whether (groupID, messageID) was already synced.
	IsProcessed(ctx context.Context, groupID, messageID int64) (bool, error)

	// ClaimProcessed inserts the processed record for (groupID, messageID).
	// Returns false when the record already existed; that is not an error.
	ClaimProcessed(ctx context.Context, groupID, messageID int64) (bool, error)

	// FindAlbum returns the mapping for (groupID, title), active or
	// historical, or nil when the pair has never been seen.
	FindAlbum(ctx context.Context, groupID int64, title string) (*domain.AlbumMapping, error)

	// ActiveAlbum returns the group's current-generation mapping, or nil.
	ActiveAlbum(ctx context.Context, groupID int64) (*domain.AlbumMapping, error)

	// SaveAlbum inserts a new active mapping for (groupID, title),
	// deactivating any previous active mapping for the group.
	SaveAlbum(ctx context.Context, groupID int64, title, albumID string) error
}
