package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"windplex/internal/models"
	"windplex/internal/notify"
)

func TestAddModerator(t *testing.T) {
	db := setupTestDB(t)
	mods := NewModeratorService(db)
	auth := NewAuthService(db, testHasher)
	owner := createTestUser(t, db, "owner@example.com", "owner", models.RoleAdmin)
	actor := wikiPrincipal(owner)

	t.Run("email of an existing account promotes it", func(t *testing.T) {
		u := createTestUser(t, db, "eve@example.com", "eve", models.RoleUser)
		change, err := mods.AddModerator(ctx, actor, AddModeratorInput{Email: "EVE@example.com"})
		require.NoError(t, err)
		assert.Equal(t, ModeratorPromoted, change.Action)

		var stored models.User
		require.NoError(t, db.First(&stored, u.ID).Error)
		assert.Equal(t, models.RoleModerator, stored.Role)
	})

	t.Run("unknown email leaves one invite", func(t *testing.T) {
		change, err := mods.AddModerator(ctx, actor, AddModeratorInput{Email: "future@example.com"})
		require.NoError(t, err)
		assert.Equal(t, ModeratorInvited, change.Action)
		require.NotNil(t, change.Invite)

		_, err = mods.AddModerator(ctx, actor, AddModeratorInput{Email: "future@example.com"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), countRows(t, db, &models.ModeratorInvite{}, "email = ?", "future@example.com"))
		assert.Equal(t, int64(1), countRows(t, db, &models.NotificationOutbox{}, "event_type = ?", notify.EventModeratorInvited))

		user, err := auth.RegisterUser(ctx, RegisterInput{Email: "future@example.com", Username: "future", Password: "pw"})
		require.NoError(t, err)
		assert.Equal(t, models.RoleModerator, user.Role)
	})

	t.Run("username promotes without invite fallback", func(t *testing.T) {
		createTestUser(t, db, "fay@example.com", "fay", models.RoleUser)
		change, err := mods.AddModerator(ctx, actor, AddModeratorInput{Username: "fay"})
		require.NoError(t, err)
		assert.Equal(t, ModeratorPromoted, change.Action)

		_, err = mods.AddModerator(ctx, actor, AddModeratorInput{Username: "nobody"})
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("admins are not demoted by a promotion", func(t *testing.T) {
		change, err := mods.AddModerator(ctx, actor, AddModeratorInput{Email: "owner@example.com"})
		require.NoError(t, err)
		assert.Equal(t, ModeratorUnchanged, change.Action)
		assert.Equal(t, models.RoleAdmin, change.User.Role)
	})

	t.Run("email or username required", func(t *testing.T) {
		_, err := mods.AddModerator(ctx, actor, AddModeratorInput{})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("moderators cannot manage moderators", func(t *testing.T) {
		mod := createTestUser(t, db, "gus@example.com", "gus", models.RoleModerator)
		_, err := mods.AddModerator(ctx, wikiPrincipal(mod), AddModeratorInput{Email: "x@example.com"})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("admin realm may manage moderators", func(t *testing.T) {
		_, err := mods.AddModerator(ctx, adminPrincipal(1), AddModeratorInput{Email: "via-admin@example.com"})
		require.NoError(t, err)
	})
}

func TestRemoveModerator(t *testing.T) {
	db := setupTestDB(t)
	mods := NewModeratorService(db)
	actor := adminPrincipal(1)

	admin := createTestUser(t, db, "root@example.com", "root", models.RoleAdmin)
	mod := createTestUser(t, db, "mo@example.com", "mo", models.RoleModerator)

	t.Run("admin accounts are locked", func(t *testing.T) {
		for _, in := range []RemoveModeratorInput{{ID: admin.ID}, {Email: "root@example.com"}, {Username: "root"}} {
			_, err := mods.RemoveModerator(ctx, actor, in)
			assert.ErrorIs(t, err, ErrLocked)
		}
		var stored models.User
		require.NoError(t, db.First(&stored, admin.ID).Error)
		assert.Equal(t, models.RoleAdmin, stored.Role)
	})

	t.Run("moderator is demoted", func(t *testing.T) {
		user, err := mods.RemoveModerator(ctx, actor, RemoveModeratorInput{ID: mod.ID})
		require.NoError(t, err)
		assert.Equal(t, models.RoleUser, user.Role)

		var stored models.User
		require.NoError(t, db.First(&stored, mod.ID).Error)
		assert.Equal(t, models.RoleUser, stored.Role)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := mods.RemoveModerator(ctx, actor, RemoveModeratorInput{Username: "ghost"})
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("invite only", func(t *testing.T) {
		require.NoError(t, db.Create(&models.ModeratorInvite{Email: "pending@example.com"}).Error)
		user, err := mods.RemoveModerator(ctx, actor, RemoveModeratorInput{Email: "pending@example.com", RemoveInviteOnly: true})
		require.NoError(t, err)
		assert.Nil(t, user)
		assert.Zero(t, countRows(t, db, &models.ModeratorInvite{}, ""))

		_, err = mods.RemoveModerator(ctx, actor, RemoveModeratorInput{Email: "pending@example.com", RemoveInviteOnly: true})
		assert.ErrorIs(t, err, ErrInviteNotFound)
	})

	t.Run("target required", func(t *testing.T) {
		_, err := mods.RemoveModerator(ctx, actor, RemoveModeratorInput{})
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestListModerators(t *testing.T) {
	db := setupTestDB(t)
	mods := NewModeratorService(db)
	createTestUser(t, db, "a@example.com", "a", models.RoleAdmin)
	createTestUser(t, db, "m@example.com", "m", models.RoleModerator)
	createTestUser(t, db, "u@example.com", "u", models.RoleUser)
	require.NoError(t, db.Create(&models.ModeratorInvite{Email: "i@example.com"}).Error)

	list, err := mods.ListModerators(ctx, adminPrincipal(1))
	require.NoError(t, err)
	assert.Len(t, list.Moderators, 2)
	require.Len(t, list.Invites, 1)
	assert.Equal(t, "i@example.com", list.Invites[0].Email)
}
