package handlers

import (
	"net/http"
	"strconv"

	"windplex/internal/api/middleware"
	"windplex/internal/config"
	"windplex/internal/services"

	"github.com/gin-gonic/gin"
)

type SubmissionHandler struct {
	submissionService *services.SubmissionService
	moderationService *services.ModerationService
	cfg               *config.Config
}

func NewSubmissionHandler(submissionService *services.SubmissionService, moderationService *services.ModerationService, cfg *config.Config) *SubmissionHandler {
	return &SubmissionHandler{
		submissionService: submissionService,
		moderationService: moderationService,
		cfg:               cfg,
	}
}

type ReviewRequest struct {
	Action string `json:"action" binding:"required"`
	Note   string `json:"note"`
}

// GetPending lists submissions awaiting review
func (h *SubmissionHandler) GetPending(c *gin.Context) {
	subs, err := h.moderationService.ListPending(c.Request.Context(), middleware.CurrentPrincipal(c))
	if err != nil {
		respondError(c, err, h.cfg.IsDebug())
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": subs})
}

// GetMine lists the caller's own submissions
func (h *SubmissionHandler) GetMine(c *gin.Context) {
	subs, err := h.submissionService.ListMine(c.Request.Context(), middleware.CurrentPrincipal(c))
	if err != nil {
		respondError(c, err, h.cfg.IsDebug())
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": subs})
}

// Review approves or rejects a submission
func (h *SubmissionHandler) Review(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid submission ID", "category": "validation", "field": "id"})
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, h.cfg.IsDebug())
		return
	}

	ctx := c.Request.Context()
	p := middleware.CurrentPrincipal(c)

	switch req.Action {
	case "approve":
		decision, err := h.moderationService.Approve(ctx, p, uint(id), req.Note)
		if err != nil {
			respondError(c, err, h.cfg.IsDebug())
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":      "Submission approved",
			"id":           decision.Submission.ID,
			"page_id":      decision.Page.ID,
			"slug":         decision.Page.Slug,
			"created_page": decision.CreatedPage,
		})
	case "reject":
		sub, err := h.moderationService.Reject(ctx, p, uint(id), req.Note)
		if err != nil {
			respondError(c, err, h.cfg.IsDebug())
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Submission rejected", "id": sub.ID})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be approve or reject", "category": "validation", "field": "action"})
	}
}
