// Package outbox holds messages that failed to send and retries them
// with a hard attempt ceiling.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/luispaiva/chatsync/internal/api"
	"github.com/luispaiva/chatsync/internal/bus"
	"github.com/luispaiva/chatsync/internal/model"
	"github.com/luispaiva/chatsync/internal/store"
	"go.uber.org/zap"
)

// maxAttempts is the retry ceiling. An entry that has already been
// attempted this many times is dropped without another send; the
// message stays visibly failed for manual retry.
const maxAttempts = 5

// Sender performs the actual message send.
type Sender interface {
	SendMessage(ctx context.Context, req api.SendRequest) (*model.Message, error)
}

// Gate answers whether the backend is worth trying at all.
type Gate interface {
	Reachable(ctx context.Context) bool
}

// Store is the slice of the persistent store the outbox needs.
type Store interface {
	AppendOutbox(e *store.OutboxEntry) error
	ListOutbox(conversationID string) ([]store.OutboxEntry, error)
	BumpOutboxAttempts(id int64, attempts int) error
	DeleteOutbox(id int64) error
	DeleteOutboxMessage(conversationID, messageID string) error
}

// Confirmed pairs a server-confirmed message with the placeholder id
// it replaces, so the caller can reconcile the visible list.
type Confirmed struct {
	TempID  string
	Message model.Message
}

// Queue is the durable outbox.
type Queue struct {
	store  Store
	sender Sender
	gate   Gate
	bus    *bus.Bus
	logger *zap.Logger
}

// NewQueue creates an outbox over the given store and sender.
func NewQueue(st Store, sender Sender, gate Gate, b *bus.Bus, logger *zap.Logger) *Queue {
	return &Queue{store: st, sender: sender, gate: gate, bus: b, logger: logger}
}

// Enqueue appends a failed message for later retry.
func (q *Queue) Enqueue(msg model.Message, conversationID string) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	entry := &store.OutboxEntry{
		MessageID:      msg.ID,
		ConversationID: conversationID,
		Payload:        payload,
		CreatedAt:      time.Now(),
	}
	if err := q.store.AppendOutbox(entry); err != nil {
		return err
	}
	q.logger.Info("message queued for retry",
		zap.String("conversation", conversationID), zap.String("message_id", msg.ID))
	return nil
}

// Discard removes any entry for the given message. Used when the user
// retries a failed message manually and a fresh placeholder takes over.
func (q *Queue) Discard(conversationID, messageID string) error {
	return q.store.DeleteOutboxMessage(conversationID, messageID)
}

// Process retries the entries of one conversation in order and returns
// the confirmed sends for list reconciliation. Gated on reachability;
// an unreachable backend means no attempt is consumed. The attempt
// counter is persisted before each send, so a crash mid-send still
// counts and the ceiling can never be exceeded.
func (q *Queue) Process(ctx context.Context, conversationID string) []Confirmed {
	if !q.gate.Reachable(ctx) {
		return nil
	}

	entries, err := q.store.ListOutbox(conversationID)
	if err != nil {
		q.logger.Error("failed to read outbox", zap.Error(err))
		return nil
	}

	var confirmed []Confirmed
	for _, entry := range entries {
		if entry.Attempts >= maxAttempts {
			if err := q.store.DeleteOutbox(entry.ID); err != nil {
				q.logger.Error("failed to drop exhausted entry", zap.Error(err), zap.Int64("id", entry.ID))
				continue
			}
			q.logger.Warn("outbox entry dropped after retry ceiling",
				zap.String("message_id", entry.MessageID), zap.Int("attempts", entry.Attempts))
			q.publish(bus.KindOutboxDropped, entry.MessageID)
			continue
		}

		if err := q.store.BumpOutboxAttempts(entry.ID, entry.Attempts+1); err != nil {
			q.logger.Error("failed to bump attempts", zap.Error(err), zap.Int64("id", entry.ID))
			continue
		}

		var msg model.Message
		if err := json.Unmarshal(entry.Payload, &msg); err != nil {
			q.logger.Error("corrupt outbox payload, dropping", zap.Error(err), zap.Int64("id", entry.ID))
			_ = q.store.DeleteOutbox(entry.ID)
			continue
		}

		srv, err := q.sender.SendMessage(ctx, api.SendRequest{
			ConversationID: entry.ConversationID,
			Content:        msg.Content,
			Attachments:    msg.Attachments,
		})
		if errors.Is(err, api.ErrAuthRequired) {
			// No credential: abort the pass without consuming more entries.
			q.logger.Warn("outbox paused, auth required")
			return confirmed
		}
		if err != nil {
			q.logger.Info("outbox retry failed",
				zap.String("message_id", entry.MessageID),
				zap.Int("attempts", entry.Attempts+1), zap.Error(err))
			continue
		}

		if err := q.store.DeleteOutbox(entry.ID); err != nil {
			q.logger.Error("failed to remove sent entry", zap.Error(err), zap.Int64("id", entry.ID))
		}
		confirmed = append(confirmed, Confirmed{TempID: entry.MessageID, Message: *srv})
		q.logger.Info("outbox entry sent",
			zap.String("message_id", entry.MessageID), zap.String("server_id", srv.ID))
	}

	if len(confirmed) > 0 {
		q.publish(bus.KindOutboxDrained, len(confirmed))
	}
	return confirmed
}

func (q *Queue) publish(kind string, payload any) {
	if q.bus == nil {
		return
	}
	q.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}
