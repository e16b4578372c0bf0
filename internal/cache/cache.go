// Package cache persists a bounded window of a conversation's recent
// messages so the view survives reloads and backend outages.
package cache

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/luispaiva/chatsync/internal/model"
	"github.com/luispaiva/chatsync/internal/store"
	"go.uber.org/zap"
)

// SnapshotStore is the slice of the persistent store the cache needs.
type SnapshotStore interface {
	SaveSnapshot(conversationID string, payload []byte, count int, cachedAt time.Time) error
	LoadSnapshot(conversationID string) (*store.SnapshotRow, error)
}

const (
	maxWindow = 30
	freshFor  = 30 * time.Second
)

// Under quota pressure the window shrinks before the write is given up.
var degradeSteps = []int{maxWindow, 10, 5}

// Cache is the snapshot cache. Save never fails from the caller's
// point of view; degradation and give-up are internal.
type Cache struct {
	snaps  SnapshotStore
	logger *zap.Logger
	now    func() time.Time
}

// New creates a cache over the given snapshot store.
func New(snaps SnapshotStore, logger *zap.Logger) *Cache {
	return &Cache{snaps: snaps, logger: logger, now: time.Now}
}

// Save persists the most recent messages of a conversation. The write
// is skipped when the existing snapshot is younger than 30s and the
// message count has not grown, unless force is set. On quota failures
// the window degrades to 10, then 5 messages; if every size fails the
// call is a silent no-op.
func (c *Cache) Save(conversationID string, msgs []model.Message, force bool) {
	if !force {
		row, err := c.snaps.LoadSnapshot(conversationID)
		if err == nil && row != nil &&
			c.now().Sub(row.CachedAt) < freshFor && len(msgs) <= row.MessageCount {
			return
		}
	}

	for _, size := range degradeSteps {
		window := newest(msgs, size)
		payload, err := json.Marshal(envelope{Version: envelopeVersion, Messages: strip(window)})
		if err != nil {
			c.logger.Warn("snapshot encode failed", zap.String("conversation", conversationID), zap.Error(err))
			return
		}
		err = c.snaps.SaveSnapshot(conversationID, payload, len(window), c.now())
		if err == nil {
			return
		}
		if !errors.Is(err, store.ErrQuotaExceeded) {
			c.logger.Warn("snapshot write failed", zap.String("conversation", conversationID), zap.Error(err))
			return
		}
		c.logger.Warn("snapshot quota exceeded, degrading",
			zap.String("conversation", conversationID), zap.Int("window", size))
	}
	c.logger.Warn("snapshot dropped after quota degradation", zap.String("conversation", conversationID))
}

// Load returns the cached window for a conversation in original
// relative order, or nil when no cache exists. A legacy on-disk
// payload is migrated to the current envelope transparently.
func (c *Cache) Load(conversationID string) []model.Message {
	row, err := c.snaps.LoadSnapshot(conversationID)
	if err != nil {
		c.logger.Warn("snapshot read failed", zap.String("conversation", conversationID), zap.Error(err))
		return nil
	}
	if row == nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(row.Payload, &env); err == nil && env.Version == envelopeVersion {
		return unstrip(env.Messages, conversationID)
	}

	msgs := decodeLegacy(row.Payload, conversationID)
	if msgs == nil {
		c.logger.Warn("snapshot payload unreadable", zap.String("conversation", conversationID))
		return nil
	}
	// Rewrite in the current format so the migration runs once.
	c.Save(conversationID, msgs, true)
	return msgs
}

func newest(msgs []model.Message, n int) []model.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
