package services

import (
	"windplex/internal/models"
)

// Capability is an action gated by the authorization matrix.
type Capability int

const (
	CapReadPages Capability = iota
	CapSubmit
	CapReviewSubmissions
	CapManageMedia
	CapDeletePages
	CapManageModerators
)

func (c Capability) String() string {
	switch c {
	case CapReadPages:
		return "read_pages"
	case CapSubmit:
		return "submit"
	case CapReviewSubmissions:
		return "review_submissions"
	case CapManageMedia:
		return "manage_media"
	case CapDeletePages:
		return "delete_pages"
	case CapManageModerators:
		return "manage_moderators"
	}
	return "unknown"
}

var roleCapabilities = map[models.Role][]Capability{
	models.RoleUser:      {CapReadPages, CapSubmit},
	models.RoleModerator: {CapReadPages, CapSubmit, CapReviewSubmissions, CapManageMedia, CapDeletePages},
	models.RoleAdmin:     {CapReadPages, CapSubmit, CapReviewSubmissions, CapManageMedia, CapDeletePages, CapManageModerators},
}

// The administrative surface moderates and manages moderators but does not
// act on the wiki surface itself.
var adminRealmCapabilities = []Capability{CapReadPages, CapReviewSubmissions, CapDeletePages, CapManageModerators}

// HasCapability is the single privilege matrix for wiki roles. The empty
// role is the anonymous visitor.
func HasCapability(role models.Role, c Capability) bool {
	if c == CapReadPages {
		return true
	}
	for _, have := range roleCapabilities[role] {
		if have == c {
			return true
		}
	}
	return false
}

// Identity is a snapshot of an authenticated principal taken when its
// session was resolved. Role changes apply from the next resolution.
type Identity struct {
	ID       uint        `json:"id"`
	Email    string      `json:"email,omitempty"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	Realm    string      `json:"-"`
}

// Can reports whether the identity holds c. A nil identity is anonymous.
func (id *Identity) Can(c Capability) bool {
	if id == nil {
		return HasCapability("", c)
	}
	if id.Realm == models.RealmAdmin {
		for _, have := range adminRealmCapabilities {
			if have == c {
				return true
			}
		}
		return false
	}
	return HasCapability(id.Role, c)
}

// WikiUserID is the wiki account behind the identity, nil for admin-realm
// principals which have no wiki account.
func (id *Identity) WikiUserID() *uint {
	if id == nil || id.Realm != models.RealmWiki {
		return nil
	}
	v := id.ID
	return &v
}

// Principal groups whatever identities a request carries: one per realm.
type Principal struct {
	Wiki  *Identity
	Admin *Identity
}

// Anonymous reports whether no realm is authenticated.
func (p Principal) Anonymous() bool {
	return p.Wiki == nil && p.Admin == nil
}

// Actor returns the first identity holding c, preferring the wiki session so
// reviews are attributed to a wiki account when one is present.
func (p Principal) Actor(c Capability) *Identity {
	if p.Wiki != nil && p.Wiki.Can(c) {
		return p.Wiki
	}
	if p.Admin != nil && p.Admin.Can(c) {
		return p.Admin
	}
	return nil
}

// Authorize is the gate every mutating operation passes first. It returns
// the identity acting for c, ErrUnauthenticated for anonymous callers and
// ErrForbidden otherwise.
func Authorize(p Principal, c Capability) (*Identity, error) {
	if actor := p.Actor(c); actor != nil {
		return actor, nil
	}
	// Capabilities open to visitors need no identity.
	if HasCapability("", c) {
		return nil, nil
	}
	if p.Anonymous() {
		return nil, ErrUnauthenticated
	}
	return nil, ErrForbidden
}
