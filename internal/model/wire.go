package model

import "time"

// WireIdentity is a nested user object as it appears on the wire.
type WireIdentity struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// Identity collapses the wire fields into a canonical Identity.
// Safe on a nil receiver.
func (w *WireIdentity) Identity() Identity {
	if w == nil {
		return Identity{}
	}
	id := w.ID
	if id == "" {
		id = w.UserID
	}
	name := w.Name
	if name == "" {
		name = w.DisplayName
	}
	return Identity{ID: id, Name: name}
}

// WireAttachment is an attachment as it appears on the wire. Older
// payloads use href/contentType instead of url/mimeType.
type WireAttachment struct {
	URL         string `json:"url"`
	Href        string `json:"href"`
	MimeType    string `json:"mimeType"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Name        string `json:"name"`
}

func (w WireAttachment) attachment() Attachment {
	url := w.URL
	if url == "" {
		url = w.Href
	}
	mime := w.MimeType
	if mime == "" {
		mime = w.ContentType
	}
	return Attachment{URL: url, MimeType: mime, Size: w.Size, Name: w.Name}
}

// WireMessage is a message as received from the request/response API
// or the live channel. The sender appears in one of three shapes
// depending on the emitting code path: flat senderId/senderName
// fields, a nested sender object, or a nested user object.
type WireMessage struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversationId"`
	Content        string           `json:"content"`
	SenderID       string           `json:"senderId"`
	SenderName     string           `json:"senderName"`
	Sender         *WireIdentity    `json:"sender"`
	User           *WireIdentity    `json:"user"`
	Attachments    []WireAttachment `json:"attachments"`
	Timestamp      time.Time        `json:"timestamp"`
	Status         string           `json:"status"`
}

// NormalizeSender collapses the wire sender variants into a canonical
// Identity. The first candidate with a non-empty id wins; a missing
// name falls back to the id.
func NormalizeSender(candidates ...Identity) Identity {
	for _, c := range candidates {
		if c.ID == "" {
			continue
		}
		if c.Name == "" {
			c.Name = c.ID
		}
		return c
	}
	return Identity{}
}

// ToMessage converts a wire message into the canonical form, applying
// sender normalization exactly once at this boundary.
func (w *WireMessage) ToMessage() Message {
	sender := NormalizeSender(
		Identity{ID: w.SenderID, Name: w.SenderName},
		w.Sender.Identity(),
		w.User.Identity(),
	)

	status := Status(w.Status)
	if _, ok := statusRank[status]; !ok {
		status = StatusSent
	}

	var atts []Attachment
	for _, a := range w.Attachments {
		atts = append(atts, a.attachment())
	}

	ts := w.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return Message{
		ID:             w.ID,
		ConversationID: w.ConversationID,
		Sender:         sender,
		Content:        w.Content,
		Attachments:    atts,
		Timestamp:      ts,
		Status:         status,
	}
}
