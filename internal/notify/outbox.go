// Package notify delivers wiki events to external collaborators.
//
// Events are written to the notification_outbox table inside the
// transaction that produces them, so an event exists only if its change
// committed. A Relayer drains the table in the background and hands each
// event to the configured sinks; delivery failures are retried and never
// reach the request that caused the event.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"windplex/internal/models"
)

const (
	EventSubmissionCreated = "wiki.submission.created"
	EventPagePublished     = "wiki.page.published"
	EventModeratorInvited  = "wiki.moderator.invited"
)

// SubmissionCreated announces a new page proposal or an edit suggestion.
type SubmissionCreated struct {
	SubmissionID uint   `json:"submission_id"`
	Slug         string `json:"slug"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	Author       string `json:"author"`
	IsEdit       bool   `json:"is_edit"`
}

// PagePublished announces a brand-new approved page. Approved edits do not
// produce it.
type PagePublished struct {
	PageID uint   `json:"page_id"`
	Slug   string `json:"slug"`
	Title  string `json:"title"`
}

// ModeratorInvited announces a standing moderator invite for an email.
type ModeratorInvited struct {
	Email string `json:"email"`
}

// Event is an outbox row as seen by sinks.
type Event struct {
	Key       string          `json:"key"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Enqueue writes an event row using tx. Call it inside the transaction of
// the change being announced.
func Enqueue(tx *gorm.DB, eventType string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	row := &models.NotificationOutbox{
		EventKey:  uuid.NewString(),
		EventType: eventType,
		Payload:   string(b),
		Status:    models.OutboxPending,
	}
	return tx.Create(row).Error
}

type outboxRepository struct {
	db *gorm.DB
}

func (r *outboxRepository) listPending(ctx context.Context, limit int) ([]models.NotificationOutbox, error) {
	var rows []models.NotificationOutbox
	err := r.db.WithContext(ctx).
		Where("status = ?", models.OutboxPending).
		Order("id asc").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *outboxRepository) markSent(ctx context.Context, id uint, delivered []string) error {
	return r.db.WithContext(ctx).Model(&models.NotificationOutbox{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          models.OutboxSent,
			"last_error":      "",
			"delivered_sinks": joinSinks(delivered),
		}).Error
}

func (r *outboxRepository) markRetry(ctx context.Context, row models.NotificationOutbox, delivered []string, cause error, maxRetries int) error {
	status := models.OutboxPending
	if row.Retry+1 >= maxRetries {
		status = models.OutboxFailed
	}
	return r.db.WithContext(ctx).Model(&models.NotificationOutbox{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"status":          status,
			"retry":           gorm.Expr("retry + 1"),
			"last_error":      cause.Error(),
			"delivered_sinks": joinSinks(delivered),
		}).Error
}

func splitSinks(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func joinSinks(names []string) string {
	return strings.Join(names, ",")
}
