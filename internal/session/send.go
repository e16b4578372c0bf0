package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/luispaiva/chatsync/internal/api"
	"github.com/luispaiva/chatsync/internal/bus"
	"github.com/luispaiva/chatsync/internal/model"
	"go.uber.org/zap"
)

// Send runs the optimistic send pipeline: a pending placeholder with a
// fresh temporary id appears in the list immediately and is persisted;
// an unreachable backend fails it straight into the outbox; otherwise
// a direct send either replaces the placeholder in place (exactly
// once, matched by temporary id) or fails it into the outbox. The only
// error surfaced is ErrAuthRequired, which is never retried here.
func (s *Session) Send(ctx context.Context, content string, attachments []model.Attachment) (model.Message, error) {
	placeholder := model.Message{
		ID:             model.NewTempID(),
		ConversationID: s.conversationID,
		Sender:         s.self,
		Content:        content,
		Attachments:    attachments,
		Timestamp:      time.Now().UTC(),
		Status:         model.StatusPending,
	}

	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return placeholder, errors.New("session closed")
	}
	s.messages = append(s.messages, placeholder)
	s.mu.Unlock()
	s.publish(bus.KindMessageAppended, placeholder)
	s.saveSnapshot(false)

	if !s.gate.Reachable(ctx) {
		return s.failSend(placeholder, nil), nil
	}

	confirmed, err := s.sender.SendMessage(ctx, api.SendRequest{
		ConversationID: s.conversationID,
		Content:        content,
		Attachments:    attachments,
	})
	if errors.Is(err, api.ErrAuthRequired) {
		// Fatal to this operation; surfaced, not queued.
		return s.failSend(placeholder, err), api.ErrAuthRequired
	}
	if err != nil {
		return s.failSend(placeholder, err), nil
	}

	s.mu.Lock()
	replaced := false
	if s.alive {
		if i := s.indexOfLocked(placeholder.ID); i >= 0 {
			s.messages[i] = *confirmed
			replaced = true
		}
	}
	s.mu.Unlock()

	if !replaced {
		// The session was torn down (or the placeholder already
		// reconciled) while the send was in flight; discard the result.
		return *confirmed, nil
	}
	s.publish(bus.KindMessageUpdated, *confirmed)
	s.saveSnapshot(true)
	return *confirmed, nil
}

// SendFiles uploads local files and sends the result as attachments.
// Upload happens before the placeholder appears: a message never shows
// up with half-uploaded attachments.
func (s *Session) SendFiles(ctx context.Context, content string, filePaths []string) (model.Message, error) {
	if s.uploader == nil {
		return model.Message{}, errors.New("no uploader configured")
	}
	attachments, err := s.uploader.Upload(ctx, filePaths)
	if err != nil {
		return model.Message{}, fmt.Errorf("upload attachments: %w", err)
	}
	return s.Send(ctx, content, attachments)
}

// Retry re-enters the send pipeline for a failed message with its
// original content and attachments. The failed entry and any matching
// outbox entry are removed first; the resend gets a new temporary id.
func (s *Session) Retry(ctx context.Context, messageID string) (model.Message, error) {
	s.mu.Lock()
	i := s.indexOfLocked(messageID)
	if i < 0 || s.messages[i].Status != model.StatusFailed {
		s.mu.Unlock()
		return model.Message{}, errors.New("no failed message to retry")
	}
	failed := s.messages[i]
	s.messages = append(s.messages[:i], s.messages[i+1:]...)
	s.mu.Unlock()

	if err := s.outbox.Discard(s.conversationID, messageID); err != nil {
		s.logger.Warn("failed to discard outbox entry", zap.Error(err))
	}
	s.saveSnapshot(true)

	return s.Send(ctx, failed.Content, failed.Attachments)
}

// failSend flips the placeholder to failed and queues it for retry,
// unless the failure was an auth one (sendErr == ErrAuthRequired).
func (s *Session) failSend(placeholder model.Message, sendErr error) model.Message {
	s.mu.Lock()
	if i := s.indexOfLocked(placeholder.ID); i >= 0 && s.alive {
		s.messages[i].Status = model.StatusFailed
	}
	s.mu.Unlock()

	placeholder.Status = model.StatusFailed
	s.publish(bus.KindMessageSendFailed, placeholder)
	s.saveSnapshot(true)

	if !errors.Is(sendErr, api.ErrAuthRequired) {
		if err := s.outbox.Enqueue(placeholder, s.conversationID); err != nil {
			s.logger.Error("failed to enqueue message", zap.Error(err))
		}
	}
	if sendErr != nil {
		s.logger.Info("direct send failed",
			zap.String("message_id", placeholder.ID), zap.Error(sendErr))
	}
	return placeholder
}
