package services

import (
	"errors"
	"fmt"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Error categories. Every error returned by this package to a handler
// wraps exactly one of these (or none, for internal failures).
var (
	ErrValidation      = errors.New("validation error")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("insufficient permissions")
	ErrLocked          = errors.New("account is locked against this change")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
)

var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)
	ErrPageNotFound       = fmt.Errorf("page %w", ErrNotFound)
	ErrSubmissionNotFound = fmt.Errorf("submission %w", ErrNotFound)
	ErrImageNotFound      = fmt.Errorf("image %w", ErrNotFound)
	ErrInviteNotFound     = fmt.Errorf("invite %w", ErrNotFound)
	ErrAlreadyResolved    = fmt.Errorf("%w: submission has already been reviewed", ErrConflict)
	ErrEmailTaken         = fmt.Errorf("%w: email already in use", ErrConflict)
	ErrUsernameTaken      = fmt.Errorf("%w: username already in use", ErrConflict)
)

// FieldError is a validation failure tied to one input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *FieldError) Unwrap() error { return ErrValidation }

func invalid(field, message string) error {
	return &FieldError{Field: field, Message: message}
}

func conflict(message string) error {
	return fmt.Errorf("%w: %s", ErrConflict, message)
}

// isUniqueViolation recognises duplicate-key errors from every supported
// driver, translated by GORM or not.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
