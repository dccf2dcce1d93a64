package amqp

import (
	"encoding/json"
	"time"
)

// LedgerSyncMessage asks the export worker to mirror one transaction.
// It carries only the ID and version; the worker fetches the full row from
// the database before writing it out.
type LedgerSyncMessage struct {
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerSyncMessage creates a sync message for a transaction.
func NewLedgerSyncMessage(id, version int64) *LedgerSyncMessage {
	return &LedgerSyncMessage{
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *LedgerSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerSyncMessageFromJSON creates a message from JSON bytes.
func LedgerSyncMessageFromJSON(data []byte) (*LedgerSyncMessage, error) {
	var msg LedgerSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
