package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the delivery state of a message as seen by this client.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// statusRank orders the delivery states. pending and failed sit below
// sent so that a server confirmation always wins over a local state.
var statusRank = map[Status]int{
	StatusPending:   0,
	StatusFailed:    0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// Upgrade returns next if it is a strictly later delivery state than
// cur, otherwise cur. Delivery states never regress.
func Upgrade(cur, next Status) Status {
	if statusRank[next] > statusRank[cur] {
		return next
	}
	return cur
}

// Attachment is a pre-uploaded file reference carried by a message.
// Upload itself happens outside this core; by the time a message is
// sent its attachments already have final URLs.
type Attachment struct {
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Identity is the canonical sender/reader identity produced at the
// wire boundary. No other shape of "user" crosses into the core.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Message is a single chat message. Server ids and temporary
// placeholder ids share the ID namespace; a placeholder is replaced,
// never duplicated, when its confirmed counterpart arrives.
type Message struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversationId"`
	Sender         Identity     `json:"sender"`
	Content        string       `json:"content,omitempty"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	Timestamp      time.Time    `json:"timestamp"`
	Status         Status       `json:"status"`
}

const tempIDPrefix = "temp-"

// NewTempID mints a fresh placeholder message id.
func NewTempID() string {
	return tempIDPrefix + uuid.NewString()
}

// IsTempID reports whether id is a locally minted placeholder id.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

const localConversationPrefix = "local-"

// IsLocalConversation reports whether id names a local-only placeholder
// conversation that does not exist on the server yet.
func IsLocalConversation(id string) bool {
	return strings.HasPrefix(id, localConversationPrefix)
}
