package websocket

import (
	"time"

	"github.com/goccy/go-json"

	"cinehub/internal/models"
	"cinehub/internal/titlesync"
)

type MessageType string

const (
	TypeHello MessageType = "hello" // first frame, carries the store status
	TypeDelta MessageType = "delta" // one applied change to the collection
	TypeReset MessageType = "reset" // collection replaced, clients should refetch
)

// Message is the only frame the server sends.
type Message struct {
	Type      MessageType       `json:"type"`
	Outcome   titlesync.Outcome `json:"outcome,omitempty"`
	ID        string            `json:"id,omitempty"`
	Index     int               `json:"index"`
	Title     *models.Title     `json:"title,omitempty"`
	Status    *titlesync.Status `json:"status,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// MessageFromDelta converts a store delta. ok is false for deltas that did
// not change the collection.
func MessageFromDelta(d titlesync.Delta) (msg *Message, ok bool) {
	now := time.Now().UTC()
	switch {
	case d.Outcome == titlesync.OutcomeReset:
		return &Message{Type: TypeReset, Outcome: d.Outcome, Timestamp: now}, true
	case d.Outcome.Changed():
		t := d.Title
		return &Message{
			Type:      TypeDelta,
			Outcome:   d.Outcome,
			ID:        d.ID,
			Index:     d.Index,
			Title:     &t,
			Timestamp: now,
		}, true
	}
	return nil, false
}

func NewHelloMessage(status titlesync.Status) *Message {
	return &Message{Type: TypeHello, Status: &status, Timestamp: time.Now().UTC()}
}

func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func MessageFromJSON(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
