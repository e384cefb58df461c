package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"windplex/internal/models"
	"windplex/internal/notify"
)

// Results of AddModerator.
const (
	ModeratorPromoted  = "promoted"
	ModeratorInvited   = "invited"
	ModeratorUnchanged = "unchanged"
)

// ModeratorService promotes, invites and demotes wiki moderators.
type ModeratorService struct {
	db *gorm.DB
}

func NewModeratorService(db *gorm.DB) *ModeratorService {
	return &ModeratorService{db: db}
}

type AddModeratorInput struct {
	Email    string
	Username string
}

type RemoveModeratorInput struct {
	ID               uint
	Email            string
	Username         string
	RemoveInviteOnly bool
}

// ModeratorChange reports what AddModerator did.
type ModeratorChange struct {
	Action string                  `json:"action"`
	User   *models.User            `json:"user,omitempty"`
	Invite *models.ModeratorInvite `json:"invite,omitempty"`
}

// ModeratorList is the moderator roster with standing invites.
type ModeratorList struct {
	Moderators []models.User            `json:"moderators"`
	Invites    []models.ModeratorInvite `json:"invites"`
}

// ListModerators returns moderator and admin accounts and pending invites,
// newest first.
func (s *ModeratorService) ListModerators(ctx context.Context, p Principal) (*ModeratorList, error) {
	if _, err := Authorize(p, CapManageModerators); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	list := &ModeratorList{}
	if err := db.Where("role IN ?", []models.Role{models.RoleModerator, models.RoleAdmin}).
		Order("created_at desc").Find(&list.Moderators).Error; err != nil {
		return nil, err
	}
	if err := db.Order("created_at desc").Find(&list.Invites).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// AddModerator promotes the account registered with the email, or leaves a
// standing invite for it when no such account exists. A username is only
// ever used to promote an existing account.
func (s *ModeratorService) AddModerator(ctx context.Context, p Principal, in AddModeratorInput) (*ModeratorChange, error) {
	actor, err := Authorize(p, CapManageModerators)
	if err != nil {
		return nil, err
	}
	email := normalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)
	if email == "" && username == "" {
		return nil, invalid("email", "email or username is required")
	}
	if email != "" && !strings.Contains(email, "@") {
		return nil, invalid("email", "email is malformed")
	}

	var change *ModeratorChange
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if email != "" {
			user, err := findUser(tx, "email = ?", email)
			if err != nil && !errors.Is(err, ErrUserNotFound) {
				return err
			}
			if user != nil {
				change, err = promote(tx, user)
				if err != nil {
					return err
				}
			} else {
				invite, created, err := ensureInvite(tx, email)
				if err != nil {
					return err
				}
				change = &ModeratorChange{Action: ModeratorInvited, Invite: invite}
				if created {
					if err := notify.Enqueue(tx, notify.EventModeratorInvited, notify.ModeratorInvited{Email: email}); err != nil {
						return err
					}
				}
			}
		}

		if username != "" && (change == nil || change.User == nil) {
			user, err := findUser(tx, "username = ?", username)
			switch {
			case err == nil:
				var invite *models.ModeratorInvite
				if change != nil {
					invite = change.Invite
				}
				change, err = promote(tx, user)
				if err != nil {
					return err
				}
				change.Invite = invite
			case errors.Is(err, ErrUserNotFound) && change != nil:
				// the email invite stands on its own
			default:
				return err
			}
		}

		target := email
		if change.User != nil {
			target = change.User.Username
		}
		return writeAudit(tx, ctx, actor, change.Action, "moderator", target, "")
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// RemoveModerator demotes a moderator back to user, or only withdraws the
// invite for an email when RemoveInviteOnly is set. Admin accounts are
// locked against demotion.
func (s *ModeratorService) RemoveModerator(ctx context.Context, p Principal, in RemoveModeratorInput) (*models.User, error) {
	actor, err := Authorize(p, CapManageModerators)
	if err != nil {
		return nil, err
	}
	email := normalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)

	if in.RemoveInviteOnly {
		if email == "" {
			return nil, invalid("email", "email is required to remove an invite")
		}
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			removed, err := consumeInvite(tx, email)
			if err != nil {
				return err
			}
			if !removed {
				return ErrInviteNotFound
			}
			return writeAudit(tx, ctx, actor, "uninvite", "invite", email, "")
		})
		return nil, err
	}

	var query string
	var arg any
	switch {
	case in.ID != 0:
		query, arg = "id = ?", in.ID
	case email != "":
		query, arg = "email = ?", email
	case username != "":
		query, arg = "username = ?", username
	default:
		return nil, invalid("id", "id, email or username is required")
	}

	var user *models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err = findUser(tx, query, arg)
		if err != nil {
			return err
		}
		if user.Role == models.RoleAdmin {
			return ErrLocked
		}
		if user.Role != models.RoleUser {
			if err := tx.Model(user).Update("role", models.RoleUser).Error; err != nil {
				return err
			}
			user.Role = models.RoleUser
		}
		return writeAudit(tx, ctx, actor, "demote", "moderator", strconv.FormatUint(uint64(user.ID), 10), user.Username)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func findUser(tx *gorm.DB, query string, arg any) (*models.User, error) {
	var user models.User
	if err := tx.Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// promote raises a plain user to moderator. Moderators and admins are left
// as they are.
func promote(tx *gorm.DB, user *models.User) (*ModeratorChange, error) {
	if user.Role != models.RoleUser {
		return &ModeratorChange{Action: ModeratorUnchanged, User: user}, nil
	}
	if err := tx.Model(user).Update("role", models.RoleModerator).Error; err != nil {
		return nil, err
	}
	user.Role = models.RoleModerator
	return &ModeratorChange{Action: ModeratorPromoted, User: user}, nil
}

// ensureInvite creates the invite for email unless one exists already.
func ensureInvite(tx *gorm.DB, email string) (*models.ModeratorInvite, bool, error) {
	var invite models.ModeratorInvite
	err := tx.Where("email = ?", email).First(&invite).Error
	if err == nil {
		return &invite, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	invite = models.ModeratorInvite{Email: email}
	if err := tx.Create(&invite).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, false, conflict("invite already exists")
		}
		return nil, false, err
	}
	return &invite, true, nil
}
