package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RaffleEvent is the envelope published to Kafka and streamed over SSE.
type RaffleEvent struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Raffle    string          `json:"raffle"`
	Signature string          `json:"signature,omitempty"`
	Slot      uint64          `json:"slot"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewRaffleEvent(name, raffle, signature string, slot uint64, payload interface{}) (*RaffleEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &RaffleEvent{
		ID:        uuid.New().String(),
		Name:      name,
		Raffle:    raffle,
		Signature: signature,
		Slot:      slot,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}, nil
}
