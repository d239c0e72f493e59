package album

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"photo_sync_bot/internal/pkg/retry"
	"photo_sync_bot/internal/pkg/state/repository"
)

type albumCreator interface {
	GetOrCreateAlbum(ctx context.Context, title string) (string, error)
}

// Resolver maps (group, current title) to a destination album id.
// A known pair resolves from the store without any remote call. A new
// pair (first sighting or rename) creates a remote album and persists
// a new active mapping. Media already uploaded under an old
// title stays in its old album; the destination scope cannot rename
// albums, so migration is out of the question.
type Resolver struct {
	repo   repository.Repository
	photos albumCreator
	policy retry.Policy

	mu         sync.Mutex
	groupLocks map[int64]*sync.Mutex
}

func NewResolver(repo repository.Repository, photos albumCreator, policy retry.Policy) *Resolver {
	return &Resolver{
		repo:       repo,
		photos:     photos,
		policy:     policy,
		groupLocks: make(map[int64]*sync.Mutex),
	}
}

// Resolve returns the album id for the group under its current title.
func (r *Resolver) Resolve(ctx context.Context, groupID int64, title string) (string, error) {
	// Serialize per group so two concurrent first-sightings of the
	// same group cannot create two albums for one title.
	lock := r.lockFor(groupID)
	lock.Lock()
	defer lock.Unlock()

	mapping, err := r.repo.FindAlbum(ctx, groupID, title)
	if err != nil {
		return "", fmt.Errorf("find album mapping: %w", err)
	}
	if mapping != nil {
		return mapping.AlbumID, nil
	}

	if active, err := r.repo.ActiveAlbum(ctx, groupID); err == nil && active != nil {
		log.Info().
			Int64("group_id", groupID).
			Str("old_title", active.GroupTitle).
			Str("new_title", title).
			Msg("Group renamed, creating album for new title")
	}

	albumID, err := retry.DoValue(ctx, r.policy, "create_album", func(ctx context.Context) (string, error) {
		return r.photos.GetOrCreateAlbum(ctx, title)
	})
	if err != nil {
		return "", fmt.Errorf("create album title=%q: %w", title, err)
	}

	if err := r.repo.SaveAlbum(ctx, groupID, title, albumID); err != nil {
		// The remote album exists but the mapping didn't stick. The
		// next delivery re-finds it by title, so fail the run.
		return "", fmt.Errorf("persist album mapping title=%q: %w", title, err)
	}
	return albumID, nil
}

func (r *Resolver) lockFor(groupID int64) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.groupLocks[groupID]
	if !ok {
		lock = &sync.Mutex{}
		r.groupLocks[groupID] = lock
	}
	return lock
}
