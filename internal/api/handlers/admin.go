package handlers

import (
	"net/http"
	"strconv"

	"windplex/internal/api/middleware"
	"windplex/internal/config"
	"windplex/internal/services"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves the administrative wiki surface: page removal and
// moderator management.
type AdminHandler struct {
	pageService      *services.PageService
	moderatorService *services.ModeratorService
	auditService     *services.AuditService
	cfg              *config.Config
}

func NewAdminHandler(pageService *services.PageService, moderatorService *services.ModeratorService, auditService *services.AuditService, cfg *config.Config) *AdminHandler {
	return &AdminHandler{
		pageService:      pageService,
		moderatorService: moderatorService,
		auditService:     auditService,
		cfg:              cfg,
	}
}

type AddModeratorRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

type RemoveModeratorRequest struct {
	ID           uint   `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	RemoveInvite bool   `json:"remove_invite"`
}

// GetPages lists every page regardless of status
func (h *AdminHandler) GetPages(c *gin.Context) {
	pages, err := h.pageService.ListAllPages(c.Request.Context(), middleware.AdminPrincipal(c))
	if err != nil {
		respondError(c, err, h.cfg.IsDebug())
		return
	}
	c.JSON(http.StatusOK, gin.H{"pages": pages})
}

// DeletePage deletes a page and its gallery
func (h *AdminHandler) DeletePage(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page ID", "category": "validation", "field": "id"})
		return
	}

	if err := h.pageService.DeletePage(c.Request.Context(), middleware.AdminPrincipal(c), uint(id)); err != nil {
		respondError(c, err, h.cfg.IsDebug())
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Page deleted", "id": id})
}

// GetModerators lists moderators and standing invites
func (h *AdminHandler) GetModerators(c *gin.Context) {
	list, err := h.moderatorService.ListModerators(c.Request.Context(), middleware.AdminPrincipal(c))
	if err != nil {
		respondError(c, err, h.cfg.IsDebug())
		return
	}
	c.JSON(http.StatusOK, list)
}

// AddModerator promotes an account or invites an email
func (h *AdminHandler) AddModerator(c *gin.Context) {
	var req AddModeratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, h.cfg.IsDebug())
		return
	}

	change, err := h.moderatorService.AddModerator(c.Request.Context(), middleware.AdminPrincipal(c), services.AddModeratorInput{
		Email:    req.Email,
		Username: req.Username,
	})
	if err != nil {
		respondError(c, err, h.cfg.IsDebug())
		return
	}

	body := gin.H{"message": "Moderator updated", "action": change.Action}
	switch {
	case change.User != nil:
		body["id"] = change.User.ID
	case change.Invite != nil:
		body["message"] = "Moderator invite added"
		body["id"] = change.Invite.ID
	}
	c.JSON(http.StatusOK, body)
}

// RemoveModerator demotes a moderator or withdraws an invite
func (h *AdminHandler) RemoveModerator(c *gin.Context) {
	var req RemoveModeratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, h.cfg.IsDebug())
		return
	}

	user, err := h.moderatorService.RemoveModerator(c.Request.Context(), middleware.AdminPrincipal(c), services.RemoveModeratorInput{
		ID:               req.ID,
		Email:            req.Email,
		Username:         req.Username,
		RemoveInviteOnly: req.RemoveInvite,
	})
	if err != nil {
		respondError(c, err, h.cfg.IsDebug())
		return
	}

	if user == nil {
		c.JSON(http.StatusOK, gin.H{"message": "Invite removed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Moderator removed", "id": user.ID})
}

// GetAuditLogs returns recent audit entries, newest first
func (h *AdminHandler) GetAuditLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, err := h.auditService.List(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err, h.cfg.IsDebug())
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": entries})
}
