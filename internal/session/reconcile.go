package session

import (
	"context"

	"github.com/luispaiva/chatsync/internal/bus"
	"github.com/luispaiva/chatsync/internal/channel"
	"github.com/luispaiva/chatsync/internal/model"
	"github.com/luispaiva/chatsync/internal/outbox"
	"go.uber.org/zap"
)

// handleConnected runs on every (re)connect of the live channel: the
// room is rejoined by the channel itself; here the session drains the
// outbox and replays pending read marks.
func (s *Session) handleConnected() {
	if !s.isAlive() {
		return
	}
	ctx := context.Background()
	if err := s.live.Join(ctx, s.conversationID); err != nil {
		s.logger.Warn("room join failed", zap.Error(err))
	}
	s.publish(bus.KindChannelConnected, s.conversationID)
	s.applyConfirmed(s.outbox.Process(ctx, s.conversationID))
	s.reads.FlushPending(ctx)
}

func (s *Session) handleDisconnected(reason string) {
	if !s.isAlive() {
		return
	}
	s.publish(bus.KindChannelDropped, reason)
}

// HandleMessageReceived reconciles an inbound message event against
// the list. Applying the same event twice yields exactly one entry:
// events for other conversations are out of scope and an id already in
// the list means a duplicate delivery.
func (s *Session) HandleMessageReceived(msg model.Message) {
	if msg.ConversationID != s.conversationID {
		return
	}

	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return
	}
	if s.indexOfLocked(msg.ID) >= 0 {
		s.mu.Unlock()
		s.logger.Debug("duplicate message event ignored", zap.String("message_id", msg.ID))
		return
	}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.publish(bus.KindMessageAppended, msg)
	s.saveSnapshot(false)
	s.reads.MarkRead(context.Background(), s.conversationID)
}

// HandleMessagesRead marks the local user's previously sent messages
// as read. The reader must be the other party: a broadcast of our own
// read never touches our sent messages.
func (s *Session) HandleMessagesRead(ev channel.ReadEvent) {
	if ev.ConversationID != s.conversationID || ev.Reader.ID == s.self.ID {
		return
	}

	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return
	}
	var updated []model.Message
	for i := range s.messages {
		m := &s.messages[i]
		if m.Sender.ID != s.self.ID {
			continue
		}
		// Unconfirmed placeholders are exempt: a pending send is not on
		// the server yet, and a failed one must keep its retry
		// affordance until the user retries it.
		if m.Status == model.StatusPending || m.Status == model.StatusFailed {
			continue
		}
		if next := model.Upgrade(m.Status, model.StatusRead); next != m.Status {
			m.Status = next
			updated = append(updated, *m)
		}
	}
	s.mu.Unlock()

	for _, m := range updated {
		s.publish(bus.KindMessageUpdated, m)
	}
	if len(updated) > 0 {
		s.saveSnapshot(false)
	}
}

// applyConfirmed replaces failed placeholders with their
// server-confirmed counterparts after an outbox drain.
func (s *Session) applyConfirmed(confirmed []outbox.Confirmed) {
	if len(confirmed) == 0 {
		return
	}

	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return
	}
	var applied []model.Message
	for _, c := range confirmed {
		if i := s.indexOfLocked(c.TempID); i >= 0 {
			s.messages[i] = c.Message
		} else if s.indexOfLocked(c.Message.ID) < 0 {
			s.messages = append(s.messages, c.Message)
		} else {
			continue
		}
		applied = append(applied, c.Message)
	}
	s.mu.Unlock()

	for _, m := range applied {
		s.publish(bus.KindMessageUpdated, m)
	}
	if len(applied) > 0 {
		s.saveSnapshot(true)
	}
}

// indexOfLocked returns the list position of a message id, or -1.
// Callers hold s.mu.
func (s *Session) indexOfLocked(id string) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}
