package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"windplex/internal/models"
)

const sessionTokenBytes = 32

// NewToken returns an unguessable URL-safe token of nbytes random bytes.
func NewToken(nbytes int) (string, error) {
	if nbytes < 16 {
		return "", errors.New("token size too small")
	}
	b := make([]byte, nbytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SessionService issues, resolves and revokes opaque session tokens. It is
// the only writer of the sessions table.
type SessionService struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

func NewSessionService(db *gorm.DB, ttl time.Duration) *SessionService {
	return &SessionService{db: db, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

// CreateSession persists a new session for userID in realm and returns its
// token and expiry.
func (s *SessionService) CreateSession(ctx context.Context, realm string, userID uint) (string, time.Time, error) {
	token, err := NewToken(sessionTokenBytes)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate session token: %w", err)
	}
	now := s.now()
	session := &models.Session{
		ID:        token,
		Realm:     realm,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return "", time.Time{}, err
	}
	return token, session.ExpiresAt, nil
}

// ResolveSession returns the identity behind token, or nil when the token is
// unknown, belongs to another realm or has expired. Expired sessions are
// deleted on the way out.
func (s *SessionService) ResolveSession(ctx context.Context, realm, token string) (*Identity, error) {
	if token == "" {
		return nil, nil
	}

	var session models.Session
	err := s.db.WithContext(ctx).Where("id = ? AND realm = ?", token, realm).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if session.ExpiresAt.Before(s.now()) {
		if err := s.DestroySession(ctx, token); err != nil {
			return nil, err
		}
		return nil, nil
	}

	switch realm {
	case models.RealmWiki:
		var user models.User
		err = s.db.WithContext(ctx).First(&user, session.UserID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &Identity{
			ID:       user.ID,
			Email:    user.Email,
			Username: user.Username,
			Role:     user.Role,
			Realm:    models.RealmWiki,
		}, nil
	case models.RealmAdmin:
		var admin models.Admin
		err = s.db.WithContext(ctx).First(&admin, session.UserID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &Identity{
			ID:       admin.ID,
			Username: admin.Username,
			Role:     models.RoleAdmin,
			Realm:    models.RealmAdmin,
		}, nil
	}
	return nil, fmt.Errorf("unknown session realm %q", realm)
}

// DestroySession deletes a session. Unknown tokens are not an error.
func (s *SessionService) DestroySession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.db.WithContext(ctx).Where("id = ?", token).Delete(&models.Session{}).Error
}

// DestroyExpired removes every expired session and returns how many.
func (s *SessionService) DestroyExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at < ?", s.now()).Delete(&models.Session{})
	return res.RowsAffected, res.Error
}

// RunSweeper removes expired sessions every interval until ctx is done.
func (s *SessionService) RunSweeper(ctx context.Context, interval time.Duration, onErr func(error)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.DestroyExpired(ctx); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}
