package domain

import "time"

const StatusCompleted = "completed"

// ProcessedItem records one fully synced media message. Written once
// after a confirmed upload, never updated or deleted.
type ProcessedItem struct {
	GroupID     int64     `json:"group_id"`
	MessageID   int64     `json:"message_id"`
	Status      string    `json:"status"`
	ProcessedAt time.Time `json:"processed_at"`
}

// AlbumMapping ties a group, under the title it had at creation time,
// to a destination album. A rename inserts a new active row; old rows
// stay around so late re-deliveries with a stale title still resolve
// to the album they were originally headed for.
type AlbumMapping struct {
	GroupID    int64     `json:"group_id"`
	GroupTitle string    `json:"group_title"`
	AlbumID    string    `json:"album_id"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}
