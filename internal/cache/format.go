package cache

import (
	"encoding/json"
	"time"

	"github.com/luispaiva/chatsync/internal/model"
)

const envelopeVersion = 2

// envelope is the on-disk snapshot format. Messages are stripped to
// the fields the view needs to render history offline.
type envelope struct {
	Version  int             `json:"v"`
	Messages []cachedMessage `json:"messages"`
}

type cachedMessage struct {
	ID          string             `json:"id"`
	Content     string             `json:"content,omitempty"`
	SenderID    string             `json:"senderId"`
	SenderName  string             `json:"senderName,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
	Status      model.Status       `json:"status,omitempty"`
	Attachments []cachedAttachment `json:"attachments,omitempty"`
}

type cachedAttachment struct {
	URL      string `json:"url"`
	MimeType string `json:"mimeType,omitempty"`
}

func strip(msgs []model.Message) []cachedMessage {
	out := make([]cachedMessage, 0, len(msgs))
	for _, m := range msgs {
		cm := cachedMessage{
			ID:         m.ID,
			Content:    m.Content,
			SenderID:   m.Sender.ID,
			SenderName: m.Sender.Name,
			Timestamp:  m.Timestamp,
			Status:     m.Status,
		}
		for _, a := range m.Attachments {
			cm.Attachments = append(cm.Attachments, cachedAttachment{URL: a.URL, MimeType: a.MimeType})
		}
		out = append(out, cm)
	}
	return out
}

func unstrip(msgs []cachedMessage, conversationID string) []model.Message {
	out := make([]model.Message, 0, len(msgs))
	for _, cm := range msgs {
		m := model.Message{
			ID:             cm.ID,
			ConversationID: conversationID,
			Sender:         model.Identity{ID: cm.SenderID, Name: cm.SenderName},
			Content:        cm.Content,
			Timestamp:      cm.Timestamp,
			Status:         cm.Status,
		}
		if m.Status == "" {
			m.Status = model.StatusSent
		}
		for _, a := range cm.Attachments {
			m.Attachments = append(m.Attachments, model.Attachment{URL: a.URL, MimeType: a.MimeType})
		}
		out = append(out, m)
	}
	return out
}

// legacyMessage is the pre-envelope on-disk shape: a bare JSON array
// with text/from/sentAt fields and href/contentType attachments.
type legacyMessage struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	From        string    `json:"from"`
	FromName    string    `json:"fromName"`
	SentAt      time.Time `json:"sentAt"`
	Attachments []struct {
		Href        string `json:"href"`
		ContentType string `json:"contentType"`
	} `json:"attachments"`
}

func decodeLegacy(payload []byte, conversationID string) []model.Message {
	var legacy []legacyMessage
	if err := json.Unmarshal(payload, &legacy); err != nil {
		return nil
	}
	out := make([]model.Message, 0, len(legacy))
	for _, lm := range legacy {
		m := model.Message{
			ID:             lm.ID,
			ConversationID: conversationID,
			Sender:         model.NormalizeSender(model.Identity{ID: lm.From, Name: lm.FromName}),
			Content:        lm.Text,
			Timestamp:      lm.SentAt,
			Status:         model.StatusSent,
		}
		for _, a := range lm.Attachments {
			m.Attachments = append(m.Attachments, model.Attachment{URL: a.Href, MimeType: a.ContentType})
		}
		out = append(out, m)
	}
	return out
}
