package events

import (
	"encoding/json"
	"time"

	"kitty/internal/core"
)

// Mutation operations carried on the event stream.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// MutationMessage announces a change to one transaction. It carries only
// the identifying fields; consumers fetch full state through the API.
type MutationMessage struct {
	Op          string    `json:"op"`
	ID          string    `json:"id"`
	Kind        string    `json:"kind,omitempty"`
	AmountCents int64     `json:"amountCents,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewUpsertMessage builds the message for a created or updated transaction.
func NewUpsertMessage(tx core.Transaction) *MutationMessage {
	return &MutationMessage{
		Op:          OpUpsert,
		ID:          tx.ID,
		Kind:        string(tx.Kind),
		AmountCents: tx.AmountCents,
		Timestamp:   time.Now(),
	}
}

// NewDeleteMessage builds the message for a removed transaction.
func NewDeleteMessage(id string) *MutationMessage {
	return &MutationMessage{
		Op:        OpDelete,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *MutationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MutationMessageFromJSON creates a message from JSON bytes.
func MutationMessageFromJSON(data []byte) (*MutationMessage, error) {
	var msg MutationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
