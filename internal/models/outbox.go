package models

import "time"

type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSent    OutboxStatus = "sent"
	OutboxFailed  OutboxStatus = "failed"
)

// NotificationOutbox holds events written in the same transaction as the
// change they announce; a relayer delivers them afterwards.
type NotificationOutbox struct {
	ID        uint         `json:"id" gorm:"primaryKey"`
	EventKey  string       `json:"event_key" gorm:"type:varchar(36);uniqueIndex;not null"`
	EventType string       `json:"event_type" gorm:"type:varchar(64);not null"`
	Payload   string       `json:"payload" gorm:"type:text;not null"`
	Status    OutboxStatus `json:"status" gorm:"type:varchar(16);not null;default:'pending';index"`
	Retry     int          `json:"retry" gorm:"not null;default:0"`
	LastError string       `json:"last_error" gorm:"type:text"`
	// Sinks that already took the event, comma separated; retries skip them.
	DeliveredSinks string    `json:"delivered_sinks" gorm:"type:varchar(255);not null;default:''"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (NotificationOutbox) TableName() string { return "notification_outbox" }
