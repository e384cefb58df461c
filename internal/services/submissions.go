package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"windplex/internal/models"
	"windplex/internal/notify"
)

const maxTitleLength = 500

// SubmissionService queues page proposals and edit suggestions for review.
type SubmissionService struct {
	db    *gorm.DB
	pages *PageService
}

func NewSubmissionService(db *gorm.DB, pages *PageService) *SubmissionService {
	return &SubmissionService{db: db, pages: pages}
}

// SubmissionInput is the proposed content of a new page or an edit.
type SubmissionInput struct {
	Title            string
	Content          string
	FeaturedImageURL *string
	GalleryImages    []models.ProposedImage
}

func (in *SubmissionInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return invalid("title", "title is required")
	}
	if utf8.RuneCountInString(in.Title) > maxTitleLength {
		return invalid("title", fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}
	if strings.TrimSpace(in.Content) == "" {
		return invalid("content", "content is required")
	}

	in.FeaturedImageURL = trimOptional(in.FeaturedImageURL)
	if in.FeaturedImageURL != nil {
		if err := ValidateImageURL("featured_image_url", *in.FeaturedImageURL); err != nil {
			return err
		}
	}

	images := make([]models.ProposedImage, 0, len(in.GalleryImages))
	for i, img := range in.GalleryImages {
		img.URL = strings.TrimSpace(img.URL)
		if img.URL == "" {
			continue
		}
		if err := ValidateImageURL(fmt.Sprintf("gallery_images[%d]", i), img.URL); err != nil {
			return err
		}
		img.Caption = trimOptional(img.Caption)
		images = append(images, img)
	}
	in.GalleryImages = images
	return nil
}

// SubmitNewPage queues a proposal for a page that does not exist yet. The
// slug is derived from the title with a random suffix.
func (s *SubmissionService) SubmitNewPage(ctx context.Context, p Principal, in SubmissionInput) (*models.WikiSubmission, error) {
	actor, err := Authorize(p, CapSubmit)
	if err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	slug, err := newPageSlug(in.Title)
	if err != nil {
		return nil, err
	}

	sub := &models.WikiSubmission{
		Slug:             slug,
		Title:            in.Title,
		Content:          in.Content,
		CreatedBy:        actor.WikiUserID(),
		Status:           models.SubmissionPending,
		PendingSlug:      &slug,
		FeaturedImageURL: in.FeaturedImageURL,
		GalleryImages:    in.GalleryImages,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.WikiPage{}).
			Where("slug = ? AND status = ?", slug, models.PageStatusApproved).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return conflict("a page with this slug already exists")
		}
		if err := tx.Model(&models.WikiSubmission{}).
			Where("slug = ? AND status = ?", slug, models.SubmissionPending).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return conflict("a submission for this slug is already pending")
		}

		if err := tx.Create(sub).Error; err != nil {
			if isUniqueViolation(err) {
				return conflict("a submission for this slug is already pending")
			}
			return err
		}
		return notify.Enqueue(tx, notify.EventSubmissionCreated, submissionEvent(sub, actor))
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// SubmitEdit queues an edit of an approved page. The slug of the page never
// changes.
func (s *SubmissionService) SubmitEdit(ctx context.Context, p Principal, slug string, in SubmissionInput) (*models.WikiSubmission, error) {
	actor, err := Authorize(p, CapSubmit)
	if err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var sub *models.WikiSubmission
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		page, err := s.pages.findApproved(tx, slug)
		if err != nil {
			return err
		}
		pageID := page.ID
		sub = &models.WikiSubmission{
			PageID:           &pageID,
			Slug:             page.Slug,
			Title:            in.Title,
			Content:          in.Content,
			CreatedBy:        actor.WikiUserID(),
			Status:           models.SubmissionPending,
			FeaturedImageURL: in.FeaturedImageURL,
			GalleryImages:    in.GalleryImages,
		}
		if err := tx.Create(sub).Error; err != nil {
			return err
		}
		return notify.Enqueue(tx, notify.EventSubmissionCreated, submissionEvent(sub, actor))
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// ListMine returns the caller's own submissions, newest first.
func (s *SubmissionService) ListMine(ctx context.Context, p Principal) ([]models.WikiSubmission, error) {
	actor, err := Authorize(p, CapSubmit)
	if err != nil {
		return nil, err
	}
	var subs []models.WikiSubmission
	err = s.db.WithContext(ctx).
		Where("created_by = ?", actor.ID).
		Order("created_at desc, id desc").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func submissionEvent(sub *models.WikiSubmission, author *Identity) notify.SubmissionCreated {
	return notify.SubmissionCreated{
		SubmissionID: sub.ID,
		Slug:         sub.Slug,
		Title:        sub.Title,
		Content:      sub.Content,
		Author:       author.Username,
		IsEdit:       sub.IsEdit(),
	}
}
