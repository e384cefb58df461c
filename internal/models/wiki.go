package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type PageStatus string

const (
	PageStatusPending  PageStatus = "pending"
	PageStatusApproved PageStatus = "approved"
)

type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionRejected SubmissionStatus = "rejected"
)

// WikiPage is a published page. Only approved pages are visible.
type WikiPage struct {
	ID               uint           `json:"id" gorm:"primaryKey"`
	Slug             string         `json:"slug" gorm:"type:varchar(255);uniqueIndex;not null"`
	Title            string         `json:"title" gorm:"type:varchar(500);not null"`
	Content          string         `json:"content" gorm:"type:text;not null"`
	Status           PageStatus     `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	CreatedBy        *uint          `json:"created_by"`
	ApprovedBy       *uint          `json:"approved_by"`
	FeaturedImageURL *string        `json:"featured_image_url" gorm:"type:varchar(2048)"`
	Gallery          []GalleryImage `json:"gallery,omitempty" gorm:"foreignKey:PageID"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (WikiPage) TableName() string { return "wiki_pages" }

type GalleryImage struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	PageID    uint      `json:"page_id" gorm:"not null;index"`
	ImageURL  string    `json:"image_url" gorm:"type:varchar(2048);not null"`
	Caption   *string   `json:"caption" gorm:"type:varchar(500)"`
	CreatedAt time.Time `json:"created_at"`
}

func (GalleryImage) TableName() string { return "wiki_page_gallery" }

// WikiSubmission is a proposed new page (PageID nil) or an edit of an
// approved page. It is terminal once approved or rejected.
type WikiSubmission struct {
	ID        uint             `json:"id" gorm:"primaryKey"`
	PageID    *uint            `json:"page_id" gorm:"index"`
	Slug      string           `json:"slug" gorm:"type:varchar(255);not null;index"`
	Title     string           `json:"title" gorm:"type:varchar(500);not null"`
	Content   string           `json:"content" gorm:"type:text;not null"`
	CreatedBy *uint            `json:"created_by" gorm:"index"`
	Status    SubmissionStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	// PendingSlug mirrors Slug while a new-page submission is pending and is
	// NULL otherwise, so the unique index only constrains pending claims.
	PendingSlug      *string         `json:"-" gorm:"type:varchar(255);uniqueIndex"`
	FeaturedImageURL *string         `json:"featured_image_url" gorm:"type:varchar(2048)"`
	GalleryImages    ProposedImages  `json:"gallery_images" gorm:"type:json"`
	ReviewerNote     *string         `json:"reviewer_note" gorm:"type:text"`
	ReviewedBy       *uint           `json:"reviewed_by"`
	ReviewedAt       *time.Time      `json:"reviewed_at"`
	CreatedAt        time.Time       `json:"created_at"`

	// Populated by listing queries, not stored.
	Username string `json:"username,omitempty" gorm:"-:migration;->"`
}

func (WikiSubmission) TableName() string { return "wiki_submissions" }

// IsEdit reports whether the submission targets an existing page.
func (s *WikiSubmission) IsEdit() bool { return s.PageID != nil }

type ModeratorInvite struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (ModeratorInvite) TableName() string { return "wiki_moderator_invites" }

// ProposedImage is a gallery image attached to a submission.
type ProposedImage struct {
	URL     string  `json:"url"`
	Caption *string `json:"caption,omitempty"`
}

// ProposedImages is stored as a JSON array.
type ProposedImages []ProposedImage

// Value implements the driver.Valuer interface
func (p ProposedImages) Value() (driver.Value, error) {
	if len(p) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (p *ProposedImages) Scan(value interface{}) error {
	if value == nil {
		*p = ProposedImages{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for proposed images", value)
	}

	return json.Unmarshal(bytes, p)
}
