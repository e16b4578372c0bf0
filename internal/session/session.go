// Package session owns one open conversation: the in-memory message
// list, reconciliation of live-channel events against it, the
// optimistic send pipeline, and every timer tied to the conversation's
// lifecycle. All of it dies together on Close.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/luispaiva/chatsync/internal/api"
	"github.com/luispaiva/chatsync/internal/bus"
	"github.com/luispaiva/chatsync/internal/channel"
	"github.com/luispaiva/chatsync/internal/model"
	"github.com/luispaiva/chatsync/internal/outbox"
	"go.uber.org/zap"
)

// Sweep intervals for the background timers owned by the session.
const (
	outboxSweepEvery  = 30 * time.Second
	pendingFlushEvery = time.Minute
)

// MessageCache persists the conversation's snapshot window.
type MessageCache interface {
	Save(conversationID string, msgs []model.Message, force bool)
	Load(conversationID string) []model.Message
}

// Outbox queues failed sends and retries them.
type Outbox interface {
	Enqueue(msg model.Message, conversationID string) error
	Discard(conversationID, messageID string) error
	Process(ctx context.Context, conversationID string) []outbox.Confirmed
}

// ReadReceipts coalesces mark-as-read calls.
type ReadReceipts interface {
	MarkRead(ctx context.Context, conversationID string)
	FlushPending(ctx context.Context)
}

// Live is the slice of the channel client the session drives.
type Live interface {
	Join(ctx context.Context, conversationID string) error
	Typing(ctx context.Context, conversationID string, typing bool) error
	Close()
}

// Sender performs direct message sends.
type Sender interface {
	SendMessage(ctx context.Context, req api.SendRequest) (*model.Message, error)
}

// Gate answers whether the backend is reachable.
type Gate interface {
	Reachable(ctx context.Context) bool
}

// Uploader resolves local file handles into uploaded attachments.
// Upload transport is external; the session only consumes the result.
type Uploader interface {
	Upload(ctx context.Context, paths []string) ([]model.Attachment, error)
}

// Deps are the collaborators of a session. Uploader and Bus may be nil.
type Deps struct {
	ConversationID string
	Self           model.Identity
	Cache          MessageCache
	Outbox         Outbox
	Reads          ReadReceipts
	Live           Live
	Sender         Sender
	Gate           Gate
	Uploader       Uploader
	Bus            *bus.Bus
	Logger         *zap.Logger
}

// Session is an open conversation.
type Session struct {
	conversationID string
	self           model.Identity
	cache          MessageCache
	outbox         Outbox
	reads          ReadReceipts
	live           Live
	sender         Sender
	gate           Gate
	uploader       Uploader
	bus            *bus.Bus
	logger         *zap.Logger

	mu       sync.Mutex
	messages []model.Message
	alive    bool

	cancel context.CancelFunc
}

// Open creates a session, seeds the message list from the snapshot
// cache, and starts the periodic outbox and pending-read sweeps. The
// live channel is driven separately; wire its handlers with Handlers.
func Open(ctx context.Context, d Deps) *Session {
	s := &Session{
		conversationID: d.ConversationID,
		self:           d.Self,
		cache:          d.Cache,
		outbox:         d.Outbox,
		reads:          d.Reads,
		live:           d.Live,
		sender:         d.Sender,
		gate:           d.Gate,
		uploader:       d.Uploader,
		bus:            d.Bus,
		logger:         d.Logger,
		alive:          true,
	}

	s.messages = d.Cache.Load(d.ConversationID)
	if len(s.messages) > 0 {
		s.logger.Info("conversation restored from cache",
			zap.String("conversation", d.ConversationID), zap.Int("messages", len(s.messages)))
	}

	ctx, s.cancel = context.WithCancel(ctx)
	go s.sweepLoop(ctx)
	return s
}

// Handlers returns the channel callbacks for this session, to be
// installed on the live channel before it starts.
func (s *Session) Handlers() channel.Handlers {
	return channel.Handlers{
		Connected:       s.handleConnected,
		Disconnected:    s.handleDisconnected,
		MessageReceived: s.HandleMessageReceived,
		MessagesRead:    s.HandleMessagesRead,
	}
}

// Messages returns a copy of the visible message list.
func (s *Session) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// ConversationID returns the conversation this session owns.
func (s *Session) ConversationID() string {
	return s.conversationID
}

// Typing forwards a typing indicator over the live channel.
func (s *Session) Typing(ctx context.Context, typing bool) {
	if err := s.live.Typing(ctx, s.conversationID, typing); err != nil {
		s.logger.Debug("typing indicator dropped", zap.Error(err))
	}
}

// MarkRead asks the coalescer to mark this conversation read.
func (s *Session) MarkRead(ctx context.Context) {
	s.reads.MarkRead(ctx, s.conversationID)
}

// VisibilityRegained is called when the tab/window becomes visible
// again: drain the outbox and replay pending read marks.
func (s *Session) VisibilityRegained(ctx context.Context) {
	if !s.isAlive() {
		return
	}
	s.logger.Info("visibility regained, sweeping")
	s.applyConfirmed(s.outbox.Process(ctx, s.conversationID))
	s.reads.FlushPending(ctx)
}

// Close tears the session down: timers are cancelled, the channel is
// closed, and no callback mutates the list afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return
	}
	s.alive = false
	s.mu.Unlock()

	s.cancel()
	s.live.Close()
	s.logger.Info("session closed", zap.String("conversation", s.conversationID))
}

func (s *Session) isAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

func (s *Session) sweepLoop(ctx context.Context) {
	outboxTick := time.NewTicker(outboxSweepEvery)
	flushTick := time.NewTicker(pendingFlushEvery)
	defer outboxTick.Stop()
	defer flushTick.Stop()

	for {
		select {
		case <-outboxTick.C:
			if s.isAlive() {
				s.applyConfirmed(s.outbox.Process(ctx, s.conversationID))
			}
		case <-flushTick.C:
			if s.isAlive() {
				s.reads.FlushPending(ctx)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) publish(kind string, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

func (s *Session) saveSnapshot(force bool) {
	s.cache.Save(s.conversationID, s.Messages(), force)
}
