// Package readmark coalesces mark-as-read signals into at most one
// network call per window and replays failed marks from a durable
// pending-operations ledger.
package readmark

import (
	"context"
	"sync"
	"time"

	"github.com/luispaiva/chatsync/internal/api"
	"github.com/luispaiva/chatsync/internal/model"
	"github.com/luispaiva/chatsync/internal/store"
	"go.uber.org/zap"
)

const (
	// A call within this window of the previous successful mark is dropped.
	debounceFor = 10 * time.Second
	// Pending ops older than this are abandoned instead of replayed.
	maxPendingAge = 24 * time.Hour
)

// Marker performs the direct mark-as-read call.
type Marker interface {
	MarkRead(ctx context.Context, conversationID string) error
}

// Announcer broadcasts a read signal over the live channel after a
// successful mark. Optional.
type Announcer interface {
	AnnounceRead(ctx context.Context, conversationID string) error
}

// Gate answers whether the backend is worth trying.
type Gate interface {
	Reachable(ctx context.Context) bool
}

// Ledger is the slice of the persistent store holding pending ops.
type Ledger interface {
	UpsertPendingRead(conversationID string, createdAt time.Time) error
	ListPendingRead() ([]store.PendingReadOp, error)
	DeletePendingRead(conversationID string) error
}

// Coalescer debounces read-receipts per conversation.
type Coalescer struct {
	marker    Marker
	ledger    Ledger
	announcer Announcer
	gate      Gate
	logger    *zap.Logger

	mu       sync.Mutex
	lastMark map[string]time.Time
	now      func() time.Time
}

// New creates a coalescer. announcer may be nil.
func New(marker Marker, ledger Ledger, announcer Announcer, gate Gate, logger *zap.Logger) *Coalescer {
	return &Coalescer{
		marker:    marker,
		ledger:    ledger,
		announcer: announcer,
		gate:      gate,
		logger:    logger,
		lastMark:  make(map[string]time.Time),
		now:       time.Now,
	}
}

// MarkRead marks a conversation read. Local-only placeholder
// conversations are skipped, as are calls within 10s of the previous
// successful mark. Connectivity and server failures are recorded in
// the pending ledger instead of surfacing an error.
func (c *Coalescer) MarkRead(ctx context.Context, conversationID string) {
	if model.IsLocalConversation(conversationID) {
		return
	}

	c.mu.Lock()
	last, ok := c.lastMark[conversationID]
	if ok && c.now().Sub(last) < debounceFor {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if err := c.marker.MarkRead(ctx, conversationID); err != nil {
		if api.IsRetryable(err) {
			if lerr := c.ledger.UpsertPendingRead(conversationID, c.now()); lerr != nil {
				c.logger.Error("failed to record pending read op", zap.Error(lerr))
			} else {
				c.logger.Info("read mark deferred", zap.String("conversation", conversationID), zap.Error(err))
			}
			return
		}
		c.logger.Warn("read mark failed", zap.String("conversation", conversationID), zap.Error(err))
		return
	}

	c.markSucceeded(ctx, conversationID)
}

// FlushPending replays the ledger: ops older than 24h are dropped, the
// rest are retried when the backend is reachable. Entries that fail
// again stay for the next flush.
func (c *Coalescer) FlushPending(ctx context.Context) {
	ops, err := c.ledger.ListPendingRead()
	if err != nil {
		c.logger.Error("failed to read pending ledger", zap.Error(err))
		return
	}
	if len(ops) == 0 {
		return
	}

	var live []store.PendingReadOp
	for _, op := range ops {
		if c.now().Sub(op.CreatedAt) > maxPendingAge {
			if err := c.ledger.DeletePendingRead(op.ConversationID); err != nil {
				c.logger.Error("failed to drop stale read op", zap.Error(err))
			} else {
				c.logger.Info("stale read op dropped", zap.String("conversation", op.ConversationID))
			}
			continue
		}
		live = append(live, op)
	}

	if len(live) == 0 || !c.gate.Reachable(ctx) {
		return
	}

	for _, op := range live {
		if err := c.marker.MarkRead(ctx, op.ConversationID); err != nil {
			c.logger.Info("pending read replay failed",
				zap.String("conversation", op.ConversationID), zap.Error(err))
			continue
		}
		c.markSucceeded(ctx, op.ConversationID)
	}
}

func (c *Coalescer) markSucceeded(ctx context.Context, conversationID string) {
	c.mu.Lock()
	c.lastMark[conversationID] = c.now()
	c.mu.Unlock()

	if err := c.ledger.DeletePendingRead(conversationID); err != nil {
		c.logger.Error("failed to clear pending read op", zap.Error(err))
	}
	if c.announcer != nil {
		if err := c.announcer.AnnounceRead(ctx, conversationID); err != nil {
			c.logger.Debug("read announcement failed", zap.Error(err))
		}
	}
}
