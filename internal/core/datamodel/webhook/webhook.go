package webhook

import (
	"encoding/json"
	"time"
)

const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeUnknown   = "unknown_reference"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

// Event records one authenticated gateway delivery.
type Event struct {
	ID              int64           `gorm:"primaryKey"`
	EventType       string          `gorm:"column:event_type;not null"`
	Reference       string          `gorm:"column:reference;index"`
	Outcome         string          `gorm:"column:outcome;not null"`
	ProcessingError *string         `gorm:"column:processing_error"`
	Payload         json.RawMessage `gorm:"column:payload"`
	ReceivedAt      time.Time       `gorm:"column:received_at;not null"`
}

func (Event) TableName() string {
	return "webhook_events"
}
