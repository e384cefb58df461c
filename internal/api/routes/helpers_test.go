package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"windplex/internal/api/middleware"
	"windplex/internal/config"
	"windplex/internal/logging"
	"windplex/internal/models"
	"windplex/internal/services"
)

const (
	testAdminUsername = "admin"
	testAdminPassword = "admin-password"
)

// setupTestDB opens a migrated SQLite database in a temporary directory
func setupTestDB(t *testing.T) (*config.Config, *gorm.DB) {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "test", PublicBaseURL: "http://localhost:8080"},
		Database: config.DatabaseConfig{
			Type:   "sqlite",
			SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "windplex_test.db")},
		},
		Security: config.SecurityConfig{BcryptCost: bcrypt.MinCost},
		Session: config.SessionConfig{
			TTL:         "1h",
			WikiCookie:  "wiki_session",
			AdminCookie: "admin_session",
		},
	}

	db, err := models.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = models.Close(db) })

	auth := services.NewAuthService(db, services.BcryptHasher{Cost: bcrypt.MinCost})
	_, err = auth.EnsureDefaultAdmin(context.Background(), testAdminUsername, testAdminPassword)
	require.NoError(t, err)

	return cfg, db
}

// setupTestRouter builds the full API the way the server does
func setupTestRouter(t *testing.T, limiter middleware.Limiter) (*gin.Engine, *config.Config, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg, db := setupTestDB(t)

	r := gin.New()
	SetupRoutes(r, Deps{Config: cfg, DB: db, Logger: logging.Discard(), Limiter: limiter})
	return r, cfg, db
}

func doJSON(r *gin.Engine, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		if c != nil {
			req.AddCookie(c)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func sessionCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name && c.Value != "" {
			return c
		}
	}
	return nil
}

// registerUser creates a wiki account through the API and returns its session cookie
func registerUser(t *testing.T, r *gin.Engine, email, username string) *http.Cookie {
	t.Helper()
	w := doJSON(r, http.MethodPost, "/api/wiki/auth/register", gin.H{
		"email":    email,
		"username": username,
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	c := sessionCookie(w, "wiki_session")
	require.NotNil(t, c)
	return c
}

func registerModerator(t *testing.T, r *gin.Engine, db *gorm.DB, email, username string) *http.Cookie {
	t.Helper()
	c := registerUser(t, r, email, username)
	require.NoError(t, db.Model(&models.User{}).Where("email = ?", email).Update("role", models.RoleModerator).Error)
	return c
}

func loginAdmin(t *testing.T, r *gin.Engine) *http.Cookie {
	t.Helper()
	w := doJSON(r, http.MethodPost, "/api/admin/auth/login", gin.H{
		"username": testAdminUsername,
		"password": testAdminPassword,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	c := sessionCookie(w, "admin_session")
	require.NotNil(t, c)
	return c
}
