package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"windplex/internal/config"
	"windplex/internal/models"
)

var testHasher = BcryptHasher{Cost: bcrypt.MinCost}

// setupTestDB opens a migrated SQLite database in a temporary directory.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "test"},
		Database: config.DatabaseConfig{
			Type:   "sqlite",
			SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "wiki_test.db")},
		},
	}
	db, err := models.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = models.Close(db) })
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email, username string, role models.Role) *models.User {
	t.Helper()
	hash, err := testHasher.Hash("password123")
	require.NoError(t, err)
	user := &models.User{Email: email, Username: username, PasswordHash: hash, Role: role}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestPage(t *testing.T, db *gorm.DB, slug, title, content string) *models.WikiPage {
	t.Helper()
	page := &models.WikiPage{Slug: slug, Title: title, Content: content, Status: models.PageStatusApproved}
	require.NoError(t, db.Create(page).Error)
	return page
}

func wikiPrincipal(u *models.User) Principal {
	return Principal{Wiki: &Identity{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
		Role:     u.Role,
		Realm:    models.RealmWiki,
	}}
}

func adminPrincipal(id uint) Principal {
	return Principal{Admin: &Identity{ID: id, Username: "admin", Role: models.RoleAdmin, Realm: models.RealmAdmin}}
}

func countRows(t *testing.T, db *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

var ctx = context.Background()
