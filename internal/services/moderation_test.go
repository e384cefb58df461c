package services

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"windplex/internal/models"
	"windplex/internal/notify"
)

type moderationFixture struct {
	subs  *SubmissionService
	mod   *ModerationService
	pages *PageService
	user  *models.User
	staff *models.User
}

func newModerationFixture(t *testing.T) (*moderationFixture, func() int64) {
	db := setupTestDB(t)
	pages := NewPageService(db)
	f := &moderationFixture{
		subs:  NewSubmissionService(db, pages),
		mod:   NewModerationService(db),
		pages: pages,
		user:  createTestUser(t, db, "writer@example.com", "writer", models.RoleUser),
		staff: createTestUser(t, db, "staff@example.com", "staff", models.RoleModerator),
	}
	pageCount := func() int64 { return countRows(t, db, &models.WikiPage{}, "") }
	return f, pageCount
}

func assertStillPending(t *testing.T, f *moderationFixture, id uint) {
	t.Helper()
	var stored models.WikiSubmission
	require.NoError(t, f.mod.db.First(&stored, id).Error)
	assert.Equal(t, models.SubmissionPending, stored.Status)
	assert.Nil(t, stored.ReviewedBy)
	assert.Nil(t, stored.ReviewedAt)
	assert.Nil(t, stored.ReviewerNote)
	require.NotNil(t, stored.PendingSlug)
	assert.Equal(t, stored.Slug, *stored.PendingSlug)
}

func TestApproveRollsBackOnFailure(t *testing.T) {
	t.Run("page insert fails", func(t *testing.T) {
		f, pageCount := newModerationFixture(t)
		db := f.mod.db

		sub, err := f.subs.SubmitNewPage(ctx, wikiPrincipal(f.user), SubmissionInput{
			Title:         "Sky Temple",
			Content:       "Floating ruins.",
			GalleryImages: []models.ProposedImage{{URL: "https://example.com/altar.png"}},
		})
		require.NoError(t, err)
		// A page holding the slug makes the insert violate the unique index.
		createTestPage(t, db, sub.Slug, "Squatter", "x")

		_, err = f.mod.Approve(ctx, wikiPrincipal(f.staff), sub.ID, "ok")
		require.ErrorIs(t, err, ErrConflict)

		assertStillPending(t, f, sub.ID)
		assert.Equal(t, int64(1), pageCount())
		assert.Zero(t, countRows(t, db, &models.GalleryImage{}, ""))
		assert.Zero(t, countRows(t, db, &models.NotificationOutbox{}, "event_type = ?", notify.EventPagePublished))
		assert.Zero(t, countRows(t, db, &models.AuditLog{}, "action = ?", "approve"))
	})

	t.Run("failure after the page insert", func(t *testing.T) {
		f, pageCount := newModerationFixture(t)
		db := f.mod.db

		sub, err := f.subs.SubmitNewPage(ctx, wikiPrincipal(f.user), SubmissionInput{
			Title:         "Sky Temple",
			Content:       "Floating ruins.",
			GalleryImages: []models.ProposedImage{{URL: "https://example.com/altar.png"}},
		})
		require.NoError(t, err)
		// Without the gallery table the page insert succeeds and the gallery
		// insert that follows fails.
		require.NoError(t, db.Migrator().DropTable(&models.GalleryImage{}))

		_, err = f.mod.Approve(ctx, wikiPrincipal(f.staff), sub.ID, "ok")
		require.Error(t, err)

		assertStillPending(t, f, sub.ID)
		assert.Zero(t, pageCount())
		assert.Zero(t, countRows(t, db, &models.NotificationOutbox{}, "event_type = ?", notify.EventPagePublished))

		// The submission can still be approved once storage recovers.
		require.NoError(t, db.AutoMigrate(&models.GalleryImage{}))
		decision, err := f.mod.Approve(ctx, wikiPrincipal(f.staff), sub.ID, "ok")
		require.NoError(t, err)
		assert.True(t, decision.CreatedPage)
	})
}

func TestApproveNewPage(t *testing.T) {
	f, pageCount := newModerationFixture(t)
	db := f.mod.db

	caption := "front gate"
	featured := "https://i.imgur.com/front.png"
	sub, err := f.subs.SubmitNewPage(ctx, wikiPrincipal(f.user), SubmissionInput{
		Title:            "Ancient Ruins!!",
		Content:          "Old stones.",
		FeaturedImageURL: &featured,
		GalleryImages:    []models.ProposedImage{{URL: "https://cdn.example.com/gate", Caption: &caption}},
	})
	require.NoError(t, err)

	decision, err := f.mod.Approve(ctx, wikiPrincipal(f.staff), sub.ID, "looks good")
	require.NoError(t, err)
	assert.True(t, decision.CreatedPage)
	assert.Equal(t, int64(1), pageCount())

	page, err := f.pages.GetPage(ctx, sub.Slug)
	require.NoError(t, err)
	assert.Equal(t, "Ancient Ruins!!", page.Title)
	assert.Equal(t, "Old stones.", page.Content)
	assert.Equal(t, models.PageStatusApproved, page.Status)
	assert.Equal(t, f.user.ID, *page.CreatedBy)
	assert.Equal(t, f.staff.ID, *page.ApprovedBy)
	require.NotNil(t, page.FeaturedImageURL)
	assert.Equal(t, featured, *page.FeaturedImageURL)
	require.Len(t, page.Gallery, 1)
	assert.Equal(t, "front gate", *page.Gallery[0].Caption)

	var stored models.WikiSubmission
	require.NoError(t, db.First(&stored, sub.ID).Error)
	assert.Equal(t, models.SubmissionApproved, stored.Status)
	assert.Equal(t, f.staff.ID, *stored.ReviewedBy)
	assert.NotNil(t, stored.ReviewedAt)
	assert.Equal(t, "looks good", *stored.ReviewerNote)
	assert.Nil(t, stored.PendingSlug)

	assert.Equal(t, int64(1), countRows(t, db, &models.NotificationOutbox{}, "event_type = ?", notify.EventPagePublished))
	assert.Equal(t, int64(1), countRows(t, db, &models.AuditLog{}, "action = ? AND resource_id = ?", "approve", strconv.FormatUint(uint64(sub.ID), 10)))
}

func TestApproveEditUpdatesInPlace(t *testing.T) {
	f, pageCount := newModerationFixture(t)
	db := f.mod.db

	page := createTestPage(t, db, "lost-city-123abc", "Lost City", "Sand.")
	old := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(page).UpdateColumn("updated_at", old).Error)

	sub, err := f.subs.SubmitEdit(ctx, wikiPrincipal(f.user), page.Slug, SubmissionInput{Title: "The Lost City", Content: "More sand."})
	require.NoError(t, err)

	decision, err := f.mod.Approve(ctx, wikiPrincipal(f.staff), sub.ID, "")
	require.NoError(t, err)
	assert.False(t, decision.CreatedPage)
	assert.Equal(t, int64(1), pageCount())

	var updated models.WikiPage
	require.NoError(t, db.First(&updated, page.ID).Error)
	assert.Equal(t, "lost-city-123abc", updated.Slug)
	assert.Equal(t, "The Lost City", updated.Title)
	assert.Equal(t, "More sand.", updated.Content)
	assert.True(t, updated.UpdatedAt.After(old))
	assert.Nil(t, updated.CreatedBy, "author of the page is untouched")

	assert.Zero(t, countRows(t, db, &models.NotificationOutbox{}, "event_type = ?", notify.EventPagePublished), "edits are not announced as new pages")
}

func TestApproveTwice(t *testing.T) {
	f, pageCount := newModerationFixture(t)

	sub, err := f.subs.SubmitNewPage(ctx, wikiPrincipal(f.user), SubmissionInput{Title: "Once", Content: "x"})
	require.NoError(t, err)

	_, err = f.mod.Approve(ctx, wikiPrincipal(f.staff), sub.ID, "")
	require.NoError(t, err)

	_, err = f.mod.Approve(ctx, wikiPrincipal(f.staff), sub.ID, "")
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, int64(1), pageCount())

	_, err = f.mod.Reject(ctx, wikiPrincipal(f.staff), sub.ID, "")
	assert.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestConcurrentApprovals(t *testing.T) {
	f, pageCount := newModerationFixture(t)

	sub, err := f.subs.SubmitNewPage(ctx, wikiPrincipal(f.user), SubmissionInput{Title: "Race", Content: "x"})
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.mod.Approve(ctx, wikiPrincipal(f.staff), sub.ID, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyResolved)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(1), pageCount())
}

func TestReject(t *testing.T) {
	f, pageCount := newModerationFixture(t)
	db := f.mod.db

	page := createTestPage(t, db, "keep-000001", "Keep", "Original.")
	edit, err := f.subs.SubmitEdit(ctx, wikiPrincipal(f.user), page.Slug, SubmissionInput{Title: "Vandal", Content: "Bad."})
	require.NoError(t, err)
	fresh, err := f.subs.SubmitNewPage(ctx, wikiPrincipal(f.user), SubmissionInput{Title: "Spam", Content: "Bad."})
	require.NoError(t, err)

	for _, id := range []uint{edit.ID, fresh.ID} {
		sub, err := f.mod.Reject(ctx, wikiPrincipal(f.staff), id, "no thanks")
		require.NoError(t, err)
		assert.Equal(t, models.SubmissionRejected, sub.Status)
		assert.Equal(t, "no thanks", *sub.ReviewerNote)
		assert.Nil(t, sub.PendingSlug)
	}

	assert.Equal(t, int64(1), pageCount())
	var unchanged models.WikiPage
	require.NoError(t, db.First(&unchanged, page.ID).Error)
	assert.Equal(t, "Keep", unchanged.Title)
	assert.Equal(t, "Original.", unchanged.Content)

	_, err = f.mod.Reject(ctx, wikiPrincipal(f.staff), 9999, "")
	assert.ErrorIs(t, err, ErrSubmissionNotFound)

	_, err = f.mod.Approve(ctx, wikiPrincipal(f.staff), 9999, "")
	assert.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestModerationGate(t *testing.T) {
	f, _ := newModerationFixture(t)

	sub, err := f.subs.SubmitNewPage(ctx, wikiPrincipal(f.user), SubmissionInput{Title: "Gate", Content: "x"})
	require.NoError(t, err)

	_, err = f.mod.Approve(ctx, wikiPrincipal(f.user), sub.ID, "")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.mod.Reject(ctx, Principal{}, sub.ID, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = f.mod.ListPending(ctx, wikiPrincipal(f.user))
	assert.ErrorIs(t, err, ErrForbidden)

	// An admin session approves without a wiki account.
	decision, err := f.mod.Approve(ctx, adminPrincipal(1), sub.ID, "")
	require.NoError(t, err)
	assert.Nil(t, decision.Submission.ReviewedBy)
	assert.Nil(t, decision.Page.ApprovedBy)
}

func TestListPending(t *testing.T) {
	f, _ := newModerationFixture(t)

	first, err := f.subs.SubmitNewPage(ctx, wikiPrincipal(f.user), SubmissionInput{Title: "First", Content: "x"})
	require.NoError(t, err)
	second, err := f.subs.SubmitNewPage(ctx, wikiPrincipal(f.user), SubmissionInput{Title: "Second", Content: "x"})
	require.NoError(t, err)
	_, err = f.mod.Reject(ctx, wikiPrincipal(f.staff), second.ID, "")
	require.NoError(t, err)

	pending, err := f.mod.ListPending(ctx, wikiPrincipal(f.staff))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, "writer", pending[0].Username)
}
