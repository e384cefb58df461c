package handlers

import (
	"net/http"
	"time"

	"windplex/internal/api/middleware"
	"windplex/internal/config"
	"windplex/internal/models"
	"windplex/internal/services"

	"github.com/gin-gonic/gin"
)

// AuthHandler serves login, logout and registration for both realms.
type AuthHandler struct {
	authService    *services.AuthService
	sessionService *services.SessionService
	auditService   *services.AuditService
	cfg            *config.Config
}

func NewAuthHandler(authService *services.AuthService, sessionService *services.SessionService, auditService *services.AuditService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		sessionService: sessionService,
		auditService:   auditService,
		cfg:            cfg,
	}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register creates a wiki account and signs it in
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, h.cfg.IsDebug())
		return
	}

	ctx := c.Request.Context()
	user, err := h.authService.RegisterUser(ctx, services.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err, h.cfg.IsDebug())
		return
	}

	if err := h.startSession(c, models.RealmWiki, user.ID); err != nil {
		respondError(c, err, h.cfg.IsDebug())
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Account created", "id": user.ID, "user": user})
}

// Login handles wiki login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, h.cfg.IsDebug())
		return
	}

	ctx := c.Request.Context()
	user, err := h.authService.AuthenticateUser(ctx, req.Email, req.Password)
	if err != nil {
		respondError(c, err, h.cfg.IsDebug())
		return
	}

	if err := h.startSession(c, models.RealmWiki, user.ID); err != nil {
		respondError(c, err, h.cfg.IsDebug())
		return
	}
	h.logAudit(c, &services.Identity{ID: user.ID, Realm: models.RealmWiki}, "login")

	c.JSON(http.StatusOK, gin.H{"message": "Logged in", "user": user})
}

// Logout ends the wiki session, if any
func (h *AuthHandler) Logout(c *gin.Context) {
	h.endSession(c, models.RealmWiki, middleware.CurrentPrincipal(c).Wiki)
}

// GetMe returns the signed-in wiki user, or null
func (h *AuthHandler) GetMe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": middleware.CurrentPrincipal(c).Wiki})
}

// AdminLogin handles administrative login
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, h.cfg.IsDebug())
		return
	}

	ctx := c.Request.Context()
	admin, err := h.authService.AuthenticateAdmin(ctx, req.Username, req.Password)
	if err != nil {
		respondError(c, err, h.cfg.IsDebug())
		return
	}

	if err := h.startSession(c, models.RealmAdmin, admin.ID); err != nil {
		respondError(c, err, h.cfg.IsDebug())
		return
	}
	h.logAudit(c, &services.Identity{ID: admin.ID, Realm: models.RealmAdmin}, "login")

	c.JSON(http.StatusOK, gin.H{"message": "Logged in", "admin": admin})
}

// AdminLogout ends the admin session, if any
func (h *AuthHandler) AdminLogout(c *gin.Context) {
	h.endSession(c, models.RealmAdmin, middleware.CurrentPrincipal(c).Admin)
}

// AdminMe returns the signed-in admin
func (h *AuthHandler) AdminMe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"admin": middleware.CurrentPrincipal(c).Admin})
}

func (h *AuthHandler) startSession(c *gin.Context, realm string, userID uint) error {
	token, expiresAt, err := h.sessionService.CreateSession(c.Request.Context(), realm, userID)
	if err != nil {
		return err
	}
	h.setCookie(c, realm, token, int(time.Until(expiresAt).Seconds()))
	return nil
}

func (h *AuthHandler) endSession(c *gin.Context, realm string, actor *services.Identity) {
	if token := middleware.SessionToken(c, realm); token != "" {
		if err := h.sessionService.DestroySession(c.Request.Context(), token); err != nil {
			respondError(c, err, h.cfg.IsDebug())
			return
		}
	}
	h.setCookie(c, realm, "", -1)
	if actor != nil {
		h.logAudit(c, actor, "logout")
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// setCookie writes the realm's session cookie. The admin cookie is strict
// same-site; the wiki cookie is lax so links into the wiki keep the session.
func (h *AuthHandler) setCookie(c *gin.Context, realm, token string, maxAge int) {
	name := h.cfg.Session.WikiCookie
	sameSite := http.SameSiteLaxMode
	if realm == models.RealmAdmin {
		name = h.cfg.Session.AdminCookie
		sameSite = http.SameSiteStrictMode
	}
	c.SetSameSite(sameSite)
	c.SetCookie(name, token, maxAge, "/", "", h.cfg.Server.Mode == "release", true)
}

// logAudit records an audit entry; failures are only logged
func (h *AuthHandler) logAudit(c *gin.Context, actor *services.Identity, action string) {
	if err := h.auditService.Record(c.Request.Context(), actor, action, "session", "", ""); err != nil {
		_ = c.Error(err)
	}
}
