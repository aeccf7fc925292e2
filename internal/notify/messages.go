package notify

import (
	"encoding/json"
	"time"
)

// ChangeMessage announces that a user's data changed in some process.
// Consumers re-read the store for that user; the message carries no payload
// beyond the uid, so a lost message costs a refresh, never data.
type ChangeMessage struct {
	UID       string    `json:"uid"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChangeMessage(uid, origin string) *ChangeMessage {
	return &ChangeMessage{
		UID:       uid,
		Origin:    origin,
		Timestamp: time.Now(),
	}
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
