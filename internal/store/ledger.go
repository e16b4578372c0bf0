package store

import "time"

// UpsertPendingRead records a mark-as-read operation to replay later.
// Deduplicated by conversation: a second failure keeps the original
// createdAt so the 24h age-out is measured from the first failure.
func (db *DB) UpsertPendingRead(conversationID string, createdAt time.Time) error {
	_, err := db.Exec(`
		INSERT INTO pending_read_ops (conversation_id, created_at)
		VALUES (?, ?)
		ON CONFLICT(conversation_id) DO NOTHING`,
		conversationID, createdAt.UnixMilli())
	return quotaErr(err)
}

// ListPendingRead returns all pending read ops, oldest first.
func (db *DB) ListPendingRead() ([]PendingReadOp, error) {
	rows, err := db.Query(`
		SELECT conversation_id, created_at
		FROM pending_read_ops ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ops []PendingReadOp
	for rows.Next() {
		var op PendingReadOp
		var createdAt int64
		if err := rows.Scan(&op.ConversationID, &createdAt); err != nil {
			return nil, err
		}
		op.CreatedAt = time.UnixMilli(createdAt)
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// DeletePendingRead removes a replayed (or aged-out) op.
func (db *DB) DeletePendingRead(conversationID string) error {
	_, err := db.Exec(`DELETE FROM pending_read_ops WHERE conversation_id = ?`, conversationID)
	return err
}
