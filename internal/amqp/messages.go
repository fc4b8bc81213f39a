package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"society/internal/activity"
)

// ActivityMessage carries one audit event from the API process to the
// activity worker. The event is self-contained; the worker never reads
// back the entity it describes.
type ActivityMessage struct {
	Event       activity.Event `json:"event"`
	PublishedAt time.Time      `json:"published_at"`
}

func NewActivityMessage(e activity.Event) *ActivityMessage {
	return &ActivityMessage{
		Event:       e,
		PublishedAt: time.Now(),
	}
}

func (m *ActivityMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ActivityMessageFromJSON decodes and validates a delivery body.
func ActivityMessageFromJSON(data []byte) (*ActivityMessage, error) {
	var msg ActivityMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Event.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	return &msg, nil
}
