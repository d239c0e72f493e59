package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"photo_sync_bot/internal/pkg/media"
	"photo_sync_bot/internal/pkg/retry"
	"photo_sync_bot/internal/pkg/state/repository"
)

type itemKey struct {
	groupID   int64
	messageID int64
}

// Orchestrator runs the sync pipeline for one intake event: allowlist
// check, dedup, size gate, download, album resolution, upload, durable
// acknowledgment. Failures of one item never affect another.
type Orchestrator struct {
	repo     repository.Repository
	fetcher  Fetcher
	resolver AlbumResolver
	uploader Uploader
	limits   media.Limits
	policy   retry.Policy

	// allowlist is nil when every group is allowed.
	allowlist map[int64]bool

	mu       sync.Mutex
	revoked  map[int64]bool
	inflight map[itemKey]bool
}

func NewOrchestrator(
	repo repository.Repository,
	fetcher Fetcher,
	resolver AlbumResolver,
	uploader Uploader,
	limits media.Limits,
	policy retry.Policy,
	allowedGroupIDs []int64,
) *Orchestrator {
	var allowlist map[int64]bool
	if len(allowedGroupIDs) > 0 {
		allowlist = make(map[int64]bool, len(allowedGroupIDs))
		for _, id := range allowedGroupIDs {
			allowlist[id] = true
		}
	}
	return &Orchestrator{
		repo:      repo,
		fetcher:   fetcher,
		resolver:  resolver,
		uploader:  uploader,
		limits:    limits,
		policy:    policy,
		allowlist: allowlist,
		revoked:   make(map[int64]bool),
		inflight:  make(map[itemKey]bool),
	}
}

// Deauthorize marks a group the bot was removed from; its future
// events are treated as unauthorized.
func (o *Orchestrator) Deauthorize(groupID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.revoked[groupID] = true
}

func (o *Orchestrator) authorized(groupID int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.revoked[groupID] {
		return false
	}
	return o.allowlist == nil || o.allowlist[groupID]
}

// begin registers the dedup key as in flight. The store's insert is
// the cross-process serialization point, but within this process two
// concurrent deliveries of one key must not both reach the upload.
func (o *Orchestrator) begin(key itemKey) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inflight[key] {
		return false
	}
	o.inflight[key] = true
	return true
}

func (o *Orchestrator) end(key itemKey) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, key)
}

// Handle runs the pipeline for one item. The returned error carries
// the cause for FailedPermanently outcomes and is nil otherwise.
func (o *Orchestrator) Handle(ctx context.Context, item MediaItem) (Outcome, error) {
	if !o.authorized(item.GroupID) {
		return SkippedUnauthorizedGroup, nil
	}

	key := itemKey{item.GroupID, item.MessageID}
	if !o.begin(key) {
		return SkippedDuplicate, nil
	}
	defer o.end(key)

	done, err := o.repo.IsProcessed(ctx, item.GroupID, item.MessageID)
	if err != nil {
		return FailedPermanently, fmt.Errorf("dedup lookup: %w", err)
	}
	if done {
		return SkippedDuplicate, nil
	}

	if limit := o.limits.Max(item.Kind); item.DeclaredSize > limit {
		log.Warn().
			Int64("group_id", item.GroupID).
			Int64("message_id", item.MessageID).
			Str("kind", item.Kind.String()).
			Int64("size", item.DeclaredSize).
			Int64("limit", limit).
			Msg("Skipping oversized file")
		return SkippedOversize, nil
	}

	content, err := o.download(ctx, item)
	if err != nil {
		return FailedPermanently, fmt.Errorf("download: %w", err)
	}

	albumID, err := o.resolver.Resolve(ctx, item.GroupID, item.GroupTitle)
	if err != nil {
		return FailedPermanently, fmt.Errorf("resolve album: %w", err)
	}

	remoteID, err := retry.DoValue(ctx, o.policy, "upload", func(ctx context.Context) (string, error) {
		return o.uploader.Upload(ctx, content.Data, content.Filename, content.MimeType, albumID)
	})
	if err != nil {
		return FailedPermanently, fmt.Errorf("upload: %w", err)
	}

	// The upload is done; the claim insert must reach the store even
	// through transient trouble, or the item would be re-uploaded on
	// the next delivery.
	var claimed bool
	err = retry.Do(ctx, o.policy, "claim_processed", func(ctx context.Context) error {
		var claimErr error
		claimed, claimErr = o.repo.ClaimProcessed(ctx, item.GroupID, item.MessageID)
		if claimErr != nil {
			return retry.Transient(claimErr)
		}
		return nil
	})
	if err != nil {
		return FailedPermanently, fmt.Errorf("record processed: %w", err)
	}
	if !claimed {
		// A concurrent duplicate delivery uploaded and claimed first.
		// The sync happened; don't report a failure.
		log.Debug().
			Int64("group_id", item.GroupID).
			Int64("message_id", item.MessageID).
			Msg("Claim lost to concurrent duplicate")
	}

	log.Info().
		Int64("group_id", item.GroupID).
		Int64("message_id", item.MessageID).
		Str("album_id", albumID).
		Str("remote_id", remoteID).
		Str("filename", content.Filename).
		Msg("Synced media")
	return Synced, nil
}

func (o *Orchestrator) download(ctx context.Context, item MediaItem) (media.Content, error) {
	var content media.Content
	err := retry.Do(ctx, o.policy, "fetch", func(ctx context.Context) error {
		data, filePath, fetchErr := o.fetcher.Fetch(ctx, item.FileID)
		if fetchErr != nil {
			return fetchErr
		}
		filename := item.FileName
		if filename == "" {
			filename = media.SafeFilename(filePath, fallbackFilename(item.Kind))
		}
		content = media.Content{Data: data, Filename: filename, MimeType: item.MimeType}
		return nil
	})
	return content, err
}

func fallbackFilename(kind media.Kind) string {
	switch kind {
	case media.KindPhoto:
		return "photo.jpg"
	case media.KindCircularVideo:
		return "video_note.mp4"
	default:
		return "video.mp4"
	}
}
