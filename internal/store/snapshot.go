package store

import (
	"database/sql"
	"errors"
	"time"
)

// SaveSnapshot upserts the cached message window for a conversation.
// Storage-full failures surface as ErrQuotaExceeded.
func (db *DB) SaveSnapshot(conversationID string, payload []byte, count int, cachedAt time.Time) error {
	_, err := db.Exec(`
		INSERT INTO snapshots (conversation_id, payload, message_count, cached_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			payload = excluded.payload,
			message_count = excluded.message_count,
			cached_at = excluded.cached_at`,
		conversationID, payload, count, cachedAt.UnixMilli())
	return quotaErr(err)
}

// LoadSnapshot returns the cached window for a conversation, or nil
// when none exists. Absence is not an error.
func (db *DB) LoadSnapshot(conversationID string) (*SnapshotRow, error) {
	row := db.QueryRow(`
		SELECT payload, message_count, cached_at
		FROM snapshots WHERE conversation_id = ?`, conversationID)

	var s SnapshotRow
	var cachedAt int64
	if err := row.Scan(&s.Payload, &s.MessageCount, &cachedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.ConversationID = conversationID
	s.CachedAt = time.UnixMilli(cachedAt)
	return &s, nil
}

// DeleteSnapshot removes the cached window for a conversation.
func (db *DB) DeleteSnapshot(conversationID string) error {
	_, err := db.Exec(`DELETE FROM snapshots WHERE conversation_id = ?`, conversationID)
	return err
}
