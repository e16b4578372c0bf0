package channel

import (
	"encoding/json"
	"time"

	"github.com/luispaiva/chatsync/internal/model"
)

// Wire events. Client → server: setup, join-conversation, typing,
// stop-typing, message-read. Server → client: message-received,
// messages-marked-read.
const (
	EventSetup              = "setup"
	EventJoin               = "join-conversation"
	EventTyping             = "typing"
	EventStopTyping         = "stop-typing"
	EventMessageRead        = "message-read"
	EventMessageReceived    = "message-received"
	EventMessagesMarkedRead = "messages-marked-read"
)

// Envelope is the wire format for all live-channel traffic.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type setupPayload struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
}

type joinPayload struct {
	ConversationID string `json:"conversationId"`
}

type typingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

type readAnnouncePayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// readEventPayload is the inbound messages-marked-read event. The
// reader appears either as flat userId/userName fields or as a nested
// reader/user object, depending on the emitting server path.
type readEventPayload struct {
	ConversationID string              `json:"conversationId"`
	UserID         string              `json:"userId"`
	UserName       string              `json:"userName"`
	Reader         *model.WireIdentity `json:"reader"`
	User           *model.WireIdentity `json:"user"`
	ReadAt         time.Time           `json:"readAt"`
}

// ReadEvent is the canonical form of messages-marked-read handed to
// the session layer.
type ReadEvent struct {
	ConversationID string
	Reader         model.Identity
	ReadAt         time.Time
}

func (p *readEventPayload) toEvent() ReadEvent {
	reader := model.NormalizeSender(
		model.Identity{ID: p.UserID, Name: p.UserName},
		p.Reader.Identity(),
		p.User.Identity(),
	)
	at := p.ReadAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return ReadEvent{ConversationID: p.ConversationID, Reader: reader, ReadAt: at}
}
