package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"windplex/internal/models"
)

// PageService serves published pages and their media.
type PageService struct {
	db *gorm.DB
}

func NewPageService(db *gorm.DB) *PageService {
	return &PageService{db: db}
}

// ListPages returns approved pages, newest first. A non-empty query
// filters on title or content, case-insensitively.
func (s *PageService) ListPages(ctx context.Context, query string) ([]models.WikiPage, error) {
	q := s.db.WithContext(ctx).
		Where("status = ?", models.PageStatusApproved).
		Order("updated_at desc")

	if query = strings.TrimSpace(query); query != "" {
		pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
		q = q.Where("(LOWER(title) LIKE ? ESCAPE '!' OR LOWER(content) LIKE ? ESCAPE '!')", pattern, pattern)
	}

	var pages []models.WikiPage
	if err := q.Find(&pages).Error; err != nil {
		return nil, err
	}
	return pages, nil
}

// escapeLike escapes LIKE wildcards with '!', which needs no quoting in any
// supported dialect.
func escapeLike(s string) string {
	r := strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)
	return r.Replace(s)
}

// GetPage returns an approved page with its gallery.
func (s *PageService) GetPage(ctx context.Context, slug string) (*models.WikiPage, error) {
	var page models.WikiPage
	err := s.db.WithContext(ctx).
		Preload("Gallery", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc, id asc") }).
		Where("slug = ? AND status = ?", slug, models.PageStatusApproved).
		First(&page).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPageNotFound
		}
		return nil, err
	}
	return &page, nil
}

func (s *PageService) findApproved(tx *gorm.DB, slug string) (*models.WikiPage, error) {
	var page models.WikiPage
	err := tx.Where("slug = ? AND status = ?", slug, models.PageStatusApproved).First(&page).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPageNotFound
		}
		return nil, err
	}
	return &page, nil
}

// ListGallery returns the gallery of an approved page in insertion order.
func (s *PageService) ListGallery(ctx context.Context, slug string) ([]models.GalleryImage, error) {
	db := s.db.WithContext(ctx)
	page, err := s.findApproved(db, slug)
	if err != nil {
		return nil, err
	}
	var images []models.GalleryImage
	if err := db.Where("page_id = ?", page.ID).Order("created_at asc, id asc").Find(&images).Error; err != nil {
		return nil, err
	}
	return images, nil
}

// AddGalleryImage appends an image to a page gallery.
func (s *PageService) AddGalleryImage(ctx context.Context, p Principal, slug, imageURL string, caption *string) (*models.GalleryImage, error) {
	if _, err := Authorize(p, CapManageMedia); err != nil {
		return nil, err
	}
	imageURL = strings.TrimSpace(imageURL)
	if err := ValidateImageURL("image_url", imageURL); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	page, err := s.findApproved(db, slug)
	if err != nil {
		return nil, err
	}
	image := &models.GalleryImage{
		PageID:   page.ID,
		ImageURL: imageURL,
		Caption:  trimOptional(caption),
	}
	if err := db.Create(image).Error; err != nil {
		return nil, err
	}
	return image, nil
}

// DeleteGalleryImage removes one image of the page's gallery. An image that
// belongs to another page is reported as not found.
func (s *PageService) DeleteGalleryImage(ctx context.Context, p Principal, slug string, imageID uint) error {
	if _, err := Authorize(p, CapManageMedia); err != nil {
		return err
	}
	db := s.db.WithContext(ctx)
	page, err := s.findApproved(db, slug)
	if err != nil {
		return err
	}
	res := db.Where("id = ? AND page_id = ?", imageID, page.ID).Delete(&models.GalleryImage{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrImageNotFound
	}
	return nil
}

// SetFeaturedImage replaces the featured image of a page. An empty URL
// clears it.
func (s *PageService) SetFeaturedImage(ctx context.Context, p Principal, slug, imageURL string) (*models.WikiPage, error) {
	if _, err := Authorize(p, CapManageMedia); err != nil {
		return nil, err
	}
	imageURL = strings.TrimSpace(imageURL)
	var featured *string
	if imageURL != "" {
		if err := ValidateImageURL("image_url", imageURL); err != nil {
			return nil, err
		}
		featured = &imageURL
	}

	db := s.db.WithContext(ctx)
	page, err := s.findApproved(db, slug)
	if err != nil {
		return nil, err
	}
	if err := db.Model(page).Update("featured_image_url", featured).Error; err != nil {
		return nil, err
	}
	page.FeaturedImageURL = featured
	return page, nil
}

// ListAllPages returns every page regardless of status for the admin
// surface.
func (s *PageService) ListAllPages(ctx context.Context, p Principal) ([]models.WikiPage, error) {
	if _, err := Authorize(p, CapDeletePages); err != nil {
		return nil, err
	}
	var pages []models.WikiPage
	if err := s.db.WithContext(ctx).Order("updated_at desc").Find(&pages).Error; err != nil {
		return nil, err
	}
	return pages, nil
}

// DeletePage removes a page with its gallery. Submissions that targeted it
// keep their history but lose the page reference.
func (s *PageService) DeletePage(ctx context.Context, p Principal, pageID uint) error {
	actor, err := Authorize(p, CapDeletePages)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var page models.WikiPage
		if err := tx.First(&page, pageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPageNotFound
			}
			return err
		}
		if err := tx.Where("page_id = ?", page.ID).Delete(&models.GalleryImage{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.WikiSubmission{}).Where("page_id = ?", page.ID).Update("page_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Delete(&page).Error; err != nil {
			return err
		}
		return writeAudit(tx, ctx, actor, "delete", "page", strconv.FormatUint(uint64(page.ID), 10), page.Slug)
	})
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
