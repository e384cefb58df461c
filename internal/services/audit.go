package services

import (
	"context"

	"gorm.io/gorm"

	"windplex/internal/models"
)

type requestMetaKey struct{}

// RequestMeta is the client information stamped on audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// WithRequestMeta attaches client information to ctx for audit entries
// written further down the call chain.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFrom returns the client information stored by WithRequestMeta.
func RequestMetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

// AuditService records security-relevant actions.
type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Record logs an audit entry for actor. A nil actor is stored as realm-less
// actor 0.
func (s *AuditService) Record(ctx context.Context, actor *Identity, action, resource, resourceID, details string) error {
	return writeAudit(s.db.WithContext(ctx), ctx, actor, action, resource, resourceID, details)
}

// List returns the most recent entries, newest first.
func (s *AuditService) List(ctx context.Context, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []models.AuditLog
	err := s.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&entries).Error
	return entries, err
}

// writeAudit inserts an entry using tx so it commits with the change it
// describes.
func writeAudit(tx *gorm.DB, ctx context.Context, actor *Identity, action, resource, resourceID, details string) error {
	meta := RequestMetaFrom(ctx)
	entry := &models.AuditLog{
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    details,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	}
	if actor != nil {
		entry.Realm = actor.Realm
		entry.ActorID = actor.ID
	}
	return tx.Create(entry).Error
}
