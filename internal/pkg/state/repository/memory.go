package repository

import (
	"context"
	"sync"
	"time"

	"photo_sync_bot/internal/pkg/state/domain"
)

type processedKey struct {
	groupID   int64
	messageID int64
}

type albumKey struct {
	groupID int64
	title   string
}

// MemoryStorage keeps the same contract as PostgresStorage without a
// database. Used by tests and useful for dry runs.
type MemoryStorage struct {
	mu        sync.RWMutex
	processed map[processedKey]domain.ProcessedItem
	albums    map[albumKey]*domain.AlbumMapping
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		processed: make(map[processedKey]domain.ProcessedItem),
		albums:    make(map[albumKey]*domain.AlbumMapping),
	}
}

func (m *MemoryStorage) IsProcessed(_ context.Context, groupID, messageID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.processed[processedKey{groupID, messageID}]
	return ok, nil
}

func (m *MemoryStorage) ClaimProcessed(_ context.Context, groupID, messageID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := processedKey{groupID, messageID}
	if _, ok := m.processed[key]; ok {
		return false, nil
	}
	m.processed[key] = domain.ProcessedItem{
		GroupID:     groupID,
		MessageID:   messageID,
		Status:      domain.StatusCompleted,
		ProcessedAt: time.Now().UTC(),
	}
	return true, nil
}

func (m *MemoryStorage) FindAlbum(_ context.Context, groupID int64, title string) (*domain.AlbumMapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if mapping, ok := m.albums[albumKey{groupID, title}]; ok {
		cp := *mapping
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryStorage) ActiveAlbum(_ context.Context, groupID int64) (*domain.AlbumMapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for key, mapping := range m.albums {
		if key.groupID == groupID && mapping.Active {
			cp := *mapping
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) SaveAlbum(_ context.Context, groupID int64, title, albumID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, mapping := range m.albums {
		if key.groupID == groupID {
			mapping.Active = false
		}
	}
	m.albums[albumKey{groupID, title}] = &domain.AlbumMapping{
		GroupID:    groupID,
		GroupTitle: title,
		AlbumID:    albumID,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}
	return nil
}

// ProcessedCount reports how many items have been claimed.
func (m *MemoryStorage) ProcessedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.processed)
}
