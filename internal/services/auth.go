package services

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"windplex/internal/models"
)

// PasswordHasher is the credential verifier. Its algorithm is opaque to the
// rest of the service.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Compare(plaintext, digest string) bool
}

type BcryptHasher struct {
	Cost int
}

// Hash hashes a password using bcrypt
func (h BcryptHasher) Hash(plaintext string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	return string(b), err
}

// Compare verifies a password against a hash
func (h BcryptHasher) Compare(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// AuthService is the credential store for wiki users and admin accounts.
type AuthService struct {
	db     *gorm.DB
	hasher PasswordHasher
}

func NewAuthService(db *gorm.DB, hasher PasswordHasher) *AuthService {
	return &AuthService{db: db, hasher: hasher}
}

type RegisterInput struct {
	Email    string
	Username string
	Password string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterUser creates a wiki account. When a moderator invite exists for
// the email it is consumed and the account starts as a moderator; both
// happen in one transaction.
func (s *AuthService) RegisterUser(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := normalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)
	switch {
	case email == "":
		return nil, invalid("email", "email is required")
	case !strings.Contains(email, "@"):
		return nil, invalid("email", "email is malformed")
	case username == "":
		return nil, invalid("username", "username is required")
	case len(username) > 50:
		return nil, invalid("username", "username must be at most 50 characters")
	case in.Password == "":
		return nil, invalid("password", "password is required")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         models.RoleUser,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrEmailTaken
		}
		if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrUsernameTaken
		}

		consumed, err := consumeInvite(tx, email)
		if err != nil {
			return err
		}
		if consumed {
			user.Role = models.RoleModerator
		}

		if err := tx.Create(user).Error; err != nil {
			if isUniqueViolation(err) {
				return conflict("email or username already in use")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// consumeInvite deletes the pending invite for email and reports whether one
// existed.
func consumeInvite(tx *gorm.DB, email string) (bool, error) {
	res := tx.Where("email = ?", email).Delete(&models.ModeratorInvite{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AuthenticateUser verifies wiki credentials and returns the user
func (s *AuthService) AuthenticateUser(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, invalid("email", "email and password are required")
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Compare(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// AuthenticateAdmin verifies administrative credentials
func (s *AuthService) AuthenticateAdmin(ctx context.Context, username, password string) (*models.Admin, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, invalid("username", "username and password are required")
	}

	var admin models.Admin
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Compare(password, admin.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return &admin, nil
}

// EnsureDefaultAdmin creates the bootstrap admin account when the admin
// table is empty. It reports whether an account was created.
func (s *AuthService) EnsureDefaultAdmin(ctx context.Context, username, password string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Admin{}).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if password == "" {
		return false, invalid("password", "default admin password is not configured")
	}
	if _, err := s.CreateAdmin(ctx, username, password); err != nil {
		return false, err
	}
	return true, nil
}

// CreateAdmin adds an administrative account.
func (s *AuthService) CreateAdmin(ctx context.Context, username, password string) (*models.Admin, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, invalid("username", "username is required")
	}
	if password == "" {
		return nil, invalid("password", "password is required")
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	admin := &models.Admin{Username: username, PasswordHash: hash}
	if err := s.db.WithContext(ctx).Create(admin).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, conflict("admin already exists")
		}
		return nil, err
	}
	return admin, nil
}

// SetAdminPassword replaces the password of an admin account, creating the
// account when it does not exist yet.
func (s *AuthService) SetAdminPassword(ctx context.Context, username, password string) error {
	if password == "" {
		return invalid("password", "password is required")
	}
	var admin models.Admin
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_, err = s.CreateAdmin(ctx, username, password)
		return err
	}
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&admin).Update("password_hash", hash).Error
}
