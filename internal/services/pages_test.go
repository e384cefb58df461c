package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"windplex/internal/models"
)

func TestListPagesSearch(t *testing.T) {
	db := setupTestDB(t)
	pages := NewPageService(db)

	createTestPage(t, db, "dragon-spire-aaaaaa", "Dragon Spire", "A tall tower.")
	createTestPage(t, db, "sunken-port-bbbbbb", "Sunken Port", "Home of the DRAGON fleet.")
	createTestPage(t, db, "odd-100-cccccc", "Odd 100% page", "Percent sign.")
	require.NoError(t, db.Create(&models.WikiPage{Slug: "draft-dddddd", Title: "Dragon Draft", Content: "x", Status: models.PageStatusPending}).Error)

	all, err := pages.ListPages(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3, "pending pages are hidden")

	found, err := pages.ListPages(ctx, "dragon")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = pages.ListPages(ctx, "100%")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "odd-100-cccccc", found[0].Slug)

	found, err = pages.ListPages(ctx, "%")
	require.NoError(t, err)
	assert.Len(t, found, 1, "wildcards are literal")

	_, err = pages.GetPage(ctx, "draft-dddddd")
	assert.ErrorIs(t, err, ErrPageNotFound)
}

func TestGalleryAndFeaturedImage(t *testing.T) {
	db := setupTestDB(t)
	pages := NewPageService(db)
	page := createTestPage(t, db, "gallery-eeeeee", "Gallery", "x")
	mod := wikiPrincipal(createTestUser(t, db, "mod@example.com", "mod", models.RoleModerator))
	user := wikiPrincipal(createTestUser(t, db, "usr@example.com", "usr", models.RoleUser))

	caption := "  the gate "
	img, err := pages.AddGalleryImage(ctx, mod, page.Slug, "https://i.imgur.com/gate.png", &caption)
	require.NoError(t, err)
	assert.Equal(t, "the gate", *img.Caption)

	_, err = pages.AddGalleryImage(ctx, mod, page.Slug, "https://example.com/not-an-image", nil)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = pages.AddGalleryImage(ctx, user, page.Slug, "https://i.imgur.com/x.png", nil)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = pages.AddGalleryImage(ctx, mod, "missing", "https://i.imgur.com/x.png", nil)
	assert.ErrorIs(t, err, ErrPageNotFound)

	images, err := pages.ListGallery(ctx, page.Slug)
	require.NoError(t, err)
	require.Len(t, images, 1)

	other := createTestPage(t, db, "other-ffffff", "Other", "x")
	assert.ErrorIs(t, pages.DeleteGalleryImage(ctx, mod, other.Slug, img.ID), ErrImageNotFound)
	require.NoError(t, pages.DeleteGalleryImage(ctx, mod, page.Slug, img.ID))
	assert.ErrorIs(t, pages.DeleteGalleryImage(ctx, mod, page.Slug, img.ID), ErrImageNotFound)

	updated, err := pages.SetFeaturedImage(ctx, mod, page.Slug, "https://images.unsplash.com/photo-1")
	require.NoError(t, err)
	require.NotNil(t, updated.FeaturedImageURL)

	cleared, err := pages.SetFeaturedImage(ctx, mod, page.Slug, "")
	require.NoError(t, err)
	assert.Nil(t, cleared.FeaturedImageURL)

	_, err = pages.SetFeaturedImage(ctx, Principal{}, page.Slug, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestDeletePage(t *testing.T) {
	db := setupTestDB(t)
	pages := NewPageService(db)
	subs := NewSubmissionService(db, pages)
	writer := createTestUser(t, db, "w@example.com", "w", models.RoleUser)
	page := createTestPage(t, db, "doomed-111111", "Doomed", "x")
	mod := wikiPrincipal(createTestUser(t, db, "mod@example.com", "mod", models.RoleModerator))

	_, err := pages.AddGalleryImage(ctx, mod, page.Slug, "https://i.imgur.com/a.png", nil)
	require.NoError(t, err)
	edit, err := subs.SubmitEdit(ctx, wikiPrincipal(writer), page.Slug, SubmissionInput{Title: "Doomed", Content: "y"})
	require.NoError(t, err)

	assert.ErrorIs(t, pages.DeletePage(ctx, wikiPrincipal(writer), page.ID), ErrForbidden)

	require.NoError(t, pages.DeletePage(ctx, adminPrincipal(1), page.ID))
	assert.Zero(t, countRows(t, db, &models.WikiPage{}, "id = ?", page.ID))
	assert.Zero(t, countRows(t, db, &models.GalleryImage{}, "page_id = ?", page.ID))

	var stored models.WikiSubmission
	require.NoError(t, db.First(&stored, edit.ID).Error)
	assert.Nil(t, stored.PageID)

	assert.ErrorIs(t, pages.DeletePage(ctx, adminPrincipal(1), page.ID), ErrPageNotFound)
}
