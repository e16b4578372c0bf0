package store

import "time"

// SnapshotRow is the persisted message window for one conversation.
// Payload is an opaque JSON blob owned by the snapshot cache.
type SnapshotRow struct {
	ConversationID string
	Payload        []byte
	MessageCount   int
	CachedAt       time.Time
}

// OutboxEntry is a message awaiting retry after a failed send.
// Payload is the JSON-encoded message as it looked when the send
// failed. Attempts is bumped before every retry so an entry can never
// be sent more times than its ceiling allows.
type OutboxEntry struct {
	ID             int64
	MessageID      string
	ConversationID string
	Payload        []byte
	Attempts       int
	CreatedAt      time.Time
}

// PendingReadOp is a mark-as-read call that failed on connectivity and
// must be replayed. One outstanding op per conversation.
type PendingReadOp struct {
	ConversationID string
	CreatedAt      time.Time
}
