package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"photo_sync_bot/internal/pkg/state/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS processed_items (
    group_id     BIGINT NOT NULL,
    message_id   BIGINT NOT NULL,
    status       TEXT NOT NULL,
    processed_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (group_id, message_id)
);

CREATE TABLE IF NOT EXISTS album_mappings (
    group_id    BIGINT NOT NULL,
    group_title TEXT NOT NULL,
    album_id    TEXT NOT NULL,
    active      BOOLEAN NOT NULL DEFAULT TRUE,
    created_at  TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (group_id, group_title)
);
`

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

// Init creates the schema when starting against a fresh database.
func (s *PostgresStorage) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *PostgresStorage) IsProcessed(ctx context.Context, groupID, messageID int64) (bool, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT 1 FROM processed_items
        WHERE group_id = $1 AND message_id = $2
    `, groupID, messageID)

	var exists int
	err := row.Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ClaimProcessed is the serialization point for the dedup key: the
// primary key on (group_id, message_id) resolves concurrent duplicate
// deliveries at insert time.
func (s *PostgresStorage) ClaimProcessed(ctx context.Context, groupID, messageID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
        INSERT INTO processed_items (group_id, message_id, status, processed_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (group_id, message_id) DO NOTHING
    `, groupID, messageID, domain.StatusCompleted, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *PostgresStorage) FindAlbum(ctx context.Context, groupID int64, title string) (*domain.AlbumMapping, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT group_id, group_title, album_id, active, created_at
        FROM album_mappings
        WHERE group_id = $1 AND group_title = $2
    `, groupID, title)
	return scanMapping(row)
}

func (s *PostgresStorage) ActiveAlbum(ctx context.Context, groupID int64) (*domain.AlbumMapping, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT group_id, group_title, album_id, active, created_at
        FROM album_mappings
        WHERE group_id = $1 AND active
    `, groupID)
	return scanMapping(row)
}

func (s *PostgresStorage) SaveAlbum(ctx context.Context, groupID int64, title, albumID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        UPDATE album_mappings SET active = FALSE
        WHERE group_id = $1 AND active
    `, groupID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO album_mappings (group_id, group_title, album_id, active, created_at)
        VALUES ($1, $2, $3, TRUE, $4)
        ON CONFLICT (group_id, group_title) DO UPDATE
        SET active = TRUE
    `, groupID, title, albumID, time.Now().UTC())
	if err != nil {
		return err
	}

	return tx.Commit()
}

func scanMapping(row *sql.Row) (*domain.AlbumMapping, error) {
	m := &domain.AlbumMapping{}
	err := row.Scan(&m.GroupID, &m.GroupTitle, &m.AlbumID, &m.Active, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}
