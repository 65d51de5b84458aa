package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/echolingo/listening-service/internal/events"
	"github.com/echolingo/listening-service/internal/models"
)

func marshalPayload(p models.ListeningPayload) (datatypes.JSON, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode question payload: %w", err)
	}
	return datatypes.JSON(data), nil
}

// newSessionEvent wraps a payload in the event envelope.
func newSessionEvent(eventType events.EventType, data interface{}) *events.SessionEvent {
	return &events.SessionEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    "listening-service",
		Version:   "1.0",
		Data:      data,
	}
}
