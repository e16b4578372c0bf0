package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNormalizeSenderVariants(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Identity
	}{
		{
			"flat fields",
			`{"id":"m1","conversationId":"c1","senderId":"u1","senderName":"Alba"}`,
			Identity{ID: "u1", Name: "Alba"},
		},
		{
			"nested sender",
			`{"id":"m1","conversationId":"c1","sender":{"id":"u2","name":"Dana"}}`,
			Identity{ID: "u2", Name: "Dana"},
		},
		{
			"nested user with alternate keys",
			`{"id":"m1","conversationId":"c1","user":{"userId":"u3","displayName":"Noa"}}`,
			Identity{ID: "u3", Name: "Noa"},
		},
		{
			"flat wins over nested",
			`{"id":"m1","conversationId":"c1","senderId":"u1","sender":{"id":"u2"}}`,
			Identity{ID: "u1", Name: "u1"},
		},
		{
			"name falls back to id",
			`{"id":"m1","conversationId":"c1","senderId":"u9"}`,
			Identity{ID: "u9", Name: "u9"},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var w WireMessage
			if err := json.Unmarshal([]byte(c.raw), &w); err != nil {
				t.Fatal(err)
			}
			if got := w.ToMessage().Sender; got != c.want {
				t.Errorf("sender = %+v, want %+v", got, c.want)
			}
		})
	}
}

func TestToMessageDefaults(t *testing.T) {
	w := WireMessage{ID: "m1", ConversationID: "c1", SenderID: "u1", Status: "weird"}
	m := w.ToMessage()
	if m.Status != StatusSent {
		t.Errorf("unknown status mapped to %s, want %s", m.Status, StatusSent)
	}
	if m.Timestamp.IsZero() {
		t.Error("zero timestamp not defaulted")
	}
}

func TestToMessageKeepsKnownStatusAndTimestamp(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := WireMessage{ID: "m1", ConversationID: "c1", SenderID: "u1", Status: "read", Timestamp: ts}
	m := w.ToMessage()
	if m.Status != StatusRead {
		t.Errorf("status = %s, want read", m.Status)
	}
	if !m.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", m.Timestamp, ts)
	}
}

func TestWireAttachmentAlternateKeys(t *testing.T) {
	raw := `{"id":"m1","conversationId":"c1","senderId":"u1",
		"attachments":[{"href":"https://x/a.png","contentType":"image/png","size":10}]}`
	var w WireMessage
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		t.Fatal(err)
	}
	m := w.ToMessage()
	if len(m.Attachments) != 1 {
		t.Fatalf("got %d attachments, want 1", len(m.Attachments))
	}
	a := m.Attachments[0]
	if a.URL != "https://x/a.png" || a.MimeType != "image/png" {
		t.Errorf("attachment = %+v, alternate keys not collapsed", a)
	}
}
