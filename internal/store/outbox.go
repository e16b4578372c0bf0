package store

import "time"

// AppendOutbox adds a failed message to the send outbox.
func (db *DB) AppendOutbox(e *OutboxEntry) error {
	res, err := db.Exec(`
		INSERT INTO outbox (message_id, conversation_id, payload, attempts, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.MessageID, e.ConversationID, e.Payload, e.Attempts, e.CreatedAt.UnixMilli())
	if err != nil {
		return quotaErr(err)
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

// ListOutbox returns the outbox entries for one conversation in
// insertion order. Entries for other conversations are untouched.
func (db *DB) ListOutbox(conversationID string) ([]OutboxEntry, error) {
	rows, err := db.Query(`
		SELECT id, message_id, conversation_id, payload, attempts, created_at
		FROM outbox WHERE conversation_id = ? ORDER BY created_at ASC, id ASC`,
		conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.MessageID, &e.ConversationID, &e.Payload, &e.Attempts, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = time.UnixMilli(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// BumpOutboxAttempts persists a new attempt count for an entry. Called
// before the send so a crash mid-retry still counts the attempt.
func (db *DB) BumpOutboxAttempts(id int64, attempts int) error {
	_, err := db.Exec(`UPDATE outbox SET attempts = ? WHERE id = ?`, attempts, id)
	return err
}

// DeleteOutbox removes an entry after a successful send or when it
// exceeded its retry ceiling.
func (db *DB) DeleteOutbox(id int64) error {
	_, err := db.Exec(`DELETE FROM outbox WHERE id = ?`, id)
	return err
}

// DeleteOutboxMessage removes any entry holding the given message id.
// Used when the user retries a failed message manually, which mints a
// fresh placeholder and re-enters the send pipeline.
func (db *DB) DeleteOutboxMessage(conversationID, messageID string) error {
	_, err := db.Exec(`DELETE FROM outbox WHERE conversation_id = ? AND message_id = ?`,
		conversationID, messageID)
	return err
}
