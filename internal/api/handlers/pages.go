package handlers

import (
	"net/http"
	"strconv"

	"windplex/internal/api/middleware"
	"windplex/internal/config"
	"windplex/internal/models"
	"windplex/internal/services"

	"github.com/gin-gonic/gin"
)

// PageHandler serves published pages, their media and page submissions.
type PageHandler struct {
	pageService       *services.PageService
	submissionService *services.SubmissionService
	cfg               *config.Config
}

func NewPageHandler(pageService *services.PageService, submissionService *services.SubmissionService, cfg *config.Config) *PageHandler {
	return &PageHandler{
		pageService:       pageService,
		submissionService: submissionService,
		cfg:               cfg,
	}
}

type SubmissionRequest struct {
	Title            string                 `json:"title"`
	Content          string                 `json:"content"`
	FeaturedImageURL *string                `json:"featured_image_url"`
	GalleryImages    []models.ProposedImage `json:"gallery_images"`
}

func (r SubmissionRequest) input() services.SubmissionInput {
	return services.SubmissionInput{
		Title:            r.Title,
		Content:          r.Content,
		FeaturedImageURL: r.FeaturedImageURL,
		GalleryImages:    r.GalleryImages,
	}
}

type GalleryImageRequest struct {
	ImageURL string  `json:"image_url" binding:"required"`
	Caption  *string `json:"caption"`
}

type FeaturedImageRequest struct {
	ImageURL string `json:"image_url"`
}

// GetPages lists approved pages, optionally filtered by ?q=
func (h *PageHandler) GetPages(c *gin.Context) {
	pages, err := h.pageService.ListPages(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err, h.cfg.IsDebug())
		return
	}
	c.JSON(http.StatusOK, gin.H{"pages": pages})
}

// GetPage returns one approved page with its gallery
func (h *PageHandler) GetPage(c *gin.Context) {
	page, err := h.pageService.GetPage(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err, h.cfg.IsDebug())
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": page})
}

// CreatePage submits a new page for review
func (h *PageHandler) CreatePage(c *gin.Context) {
	var req SubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, h.cfg.IsDebug())
		return
	}

	sub, err := h.submissionService.SubmitNewPage(c.Request.Context(), middleware.CurrentPrincipal(c), req.input())
	if err != nil {
		respondError(c, err, h.cfg.IsDebug())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Submission received and pending review", "id": sub.ID, "slug": sub.Slug})
}

// SuggestEdit submits an edit of an approved page for review
func (h *PageHandler) SuggestEdit(c *gin.Context) {
	var req SubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, h.cfg.IsDebug())
		return
	}

	sub, err := h.submissionService.SubmitEdit(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("slug"), req.input())
	if err != nil {
		respondError(c, err, h.cfg.IsDebug())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Edit suggestion received and pending review", "id": sub.ID, "slug": sub.Slug})
}

// GetGallery lists a page's gallery images
func (h *PageHandler) GetGallery(c *gin.Context) {
	images, err := h.pageService.ListGallery(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err, h.cfg.IsDebug())
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": images})
}

// AddGalleryImage appends an image to a page's gallery
func (h *PageHandler) AddGalleryImage(c *gin.Context) {
	var req GalleryImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, h.cfg.IsDebug())
		return
	}

	image, err := h.pageService.AddGalleryImage(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("slug"), req.ImageURL, req.Caption)
	if err != nil {
		respondError(c, err, h.cfg.IsDebug())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Image added to gallery", "id": image.ID})
}

// DeleteGalleryImage removes an image from a page's gallery
func (h *PageHandler) DeleteGalleryImage(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("imageId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image ID", "category": "validation", "field": "imageId"})
		return
	}

	if err := h.pageService.DeleteGalleryImage(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("slug"), uint(id)); err != nil {
		respondError(c, err, h.cfg.IsDebug())
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Image deleted", "id": id})
}

// SetFeaturedImage replaces or clears a page's featured image
func (h *PageHandler) SetFeaturedImage(c *gin.Context) {
	var req FeaturedImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, h.cfg.IsDebug())
		return
	}

	page, err := h.pageService.SetFeaturedImage(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("slug"), req.ImageURL)
	if err != nil {
		respondError(c, err, h.cfg.IsDebug())
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Featured image updated", "id": page.ID, "featured_image_url": page.FeaturedImageURL})
}
