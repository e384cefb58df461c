package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"windplex/internal/models"
	"windplex/internal/notify"
)

// ModerationService resolves pending submissions.
type ModerationService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewModerationService(db *gorm.DB) *ModerationService {
	return &ModerationService{db: db, now: time.Now}
}

// Decision is the outcome of an approval.
type Decision struct {
	Submission  *models.WikiSubmission `json:"submission"`
	Page        *models.WikiPage       `json:"page"`
	CreatedPage bool                   `json:"created_page"`
}

// ListPending returns pending submissions, oldest first, with the author's
// username.
func (s *ModerationService) ListPending(ctx context.Context, p Principal) ([]models.WikiSubmission, error) {
	if _, err := Authorize(p, CapReviewSubmissions); err != nil {
		return nil, err
	}
	var subs []models.WikiSubmission
	err := s.db.WithContext(ctx).
		Select("wiki_submissions.*, wiki_users.username AS username").
		Joins("LEFT JOIN wiki_users ON wiki_users.id = wiki_submissions.created_by").
		Where("wiki_submissions.status = ?", models.SubmissionPending).
		Order("wiki_submissions.created_at asc, wiki_submissions.id asc").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// Approve publishes a pending submission. A new-page submission inserts the
// page; an edit rewrites the target page in place. Everything happens in one
// transaction holding a lock on the submission row, and the submission is
// only marked approved if it is still pending when the transaction commits.
func (s *ModerationService) Approve(ctx context.Context, p Principal, submissionID uint, note string) (*Decision, error) {
	actor, err := Authorize(p, CapReviewSubmissions)
	if err != nil {
		return nil, err
	}
	reviewerID := actor.WikiUserID()
	reviewerNote := optionalNote(note)

	var decision *Decision
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub models.WikiSubmission
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sub, submissionID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		if err != nil {
			return err
		}
		if sub.Status != models.SubmissionPending {
			return ErrAlreadyResolved
		}

		now := s.now()
		var page models.WikiPage
		created := false

		if sub.PageID != nil {
			if err := tx.First(&page, *sub.PageID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrPageNotFound
				}
				return err
			}
			updates := map[string]any{
				"title":       sub.Title,
				"content":     sub.Content,
				"status":      models.PageStatusApproved,
				"approved_by": reviewerID,
				"updated_at":  now,
			}
			if sub.FeaturedImageURL != nil {
				updates["featured_image_url"] = *sub.FeaturedImageURL
			}
			if err := tx.Model(&page).Updates(updates).Error; err != nil {
				return err
			}
			if err := tx.First(&page, page.ID).Error; err != nil {
				return err
			}
		} else {
			page = models.WikiPage{
				Slug:             sub.Slug,
				Title:            sub.Title,
				Content:          sub.Content,
				Status:           models.PageStatusApproved,
				CreatedBy:        sub.CreatedBy,
				ApprovedBy:       reviewerID,
				FeaturedImageURL: sub.FeaturedImageURL,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if err := tx.Create(&page).Error; err != nil {
				if isUniqueViolation(err) {
					return conflict("a page with this slug already exists")
				}
				return err
			}
			created = true
		}

		for _, img := range sub.GalleryImages {
			image := &models.GalleryImage{PageID: page.ID, ImageURL: img.URL, Caption: img.Caption, CreatedAt: now}
			if err := tx.Create(image).Error; err != nil {
				return err
			}
		}

		res := tx.Model(&models.WikiSubmission{}).
			Where("id = ? AND status = ?", sub.ID, models.SubmissionPending).
			Updates(map[string]any{
				"status":        models.SubmissionApproved,
				"reviewed_by":   reviewerID,
				"reviewed_at":   now,
				"reviewer_note": reviewerNote,
				"pending_slug":  nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyResolved
		}

		if created {
			event := notify.PagePublished{PageID: page.ID, Slug: page.Slug, Title: page.Title}
			if err := notify.Enqueue(tx, notify.EventPagePublished, event); err != nil {
				return err
			}
		}
		if err := writeAudit(tx, ctx, actor, "approve", "submission", strconv.FormatUint(uint64(sub.ID), 10), page.Slug); err != nil {
			return err
		}

		sub.Status = models.SubmissionApproved
		sub.ReviewedBy = reviewerID
		sub.ReviewedAt = &now
		sub.ReviewerNote = reviewerNote
		sub.PendingSlug = nil
		decision = &Decision{Submission: &sub, Page: &page, CreatedPage: created}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decision, nil
}

// Reject closes a pending submission without touching any page.
func (s *ModerationService) Reject(ctx context.Context, p Principal, submissionID uint, note string) (*models.WikiSubmission, error) {
	actor, err := Authorize(p, CapReviewSubmissions)
	if err != nil {
		return nil, err
	}
	var sub models.WikiSubmission
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.WikiSubmission{}).
			Where("id = ? AND status = ?", submissionID, models.SubmissionPending).
			Updates(map[string]any{
				"status":        models.SubmissionRejected,
				"reviewed_by":   actor.WikiUserID(),
				"reviewed_at":   s.now(),
				"reviewer_note": optionalNote(note),
				"pending_slug":  nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if err := tx.First(&sub, submissionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSubmissionNotFound
			}
			return err
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyResolved
		}
		return writeAudit(tx, ctx, actor, "reject", "submission", strconv.FormatUint(uint64(sub.ID), 10), sub.Slug)
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func optionalNote(note string) *string {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil
	}
	return &note
}
