package middleware

import (
	"windplex/internal/config"
	"windplex/internal/models"
	"windplex/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	principalKey  = "principal"
	wikiTokenKey  = "wiki_token"
	adminTokenKey = "admin_token"
)

// SessionMiddleware resolves the wiki and admin session cookies into the
// request principal. Missing, unknown and expired tokens leave the realm
// anonymous; only storage failures abort the request.
func SessionMiddleware(sessions *services.SessionService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p services.Principal
		ctx := c.Request.Context()

		if token, err := c.Cookie(cfg.Session.WikiCookie); err == nil && token != "" {
			id, err := sessions.ResolveSession(ctx, models.RealmWiki, token)
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to resolve session", "category": "internal"})
				c.Abort()
				return
			}
			if id != nil {
				p.Wiki = id
				c.Set(wikiTokenKey, token)
			}
		}

		if token, err := c.Cookie(cfg.Session.AdminCookie); err == nil && token != "" {
			id, err := sessions.ResolveSession(ctx, models.RealmAdmin, token)
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to resolve session", "category": "internal"})
				c.Abort()
				return
			}
			if id != nil {
				p.Admin = id
				c.Set(adminTokenKey, token)
			}
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

// CurrentPrincipal returns the principal resolved by SessionMiddleware.
func CurrentPrincipal(c *gin.Context) services.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(services.Principal); ok {
			return p
		}
	}
	return services.Principal{}
}

// AdminPrincipal returns the request principal reduced to its admin-realm
// identity, so administrative actions are never attributed to a wiki
// session carried alongside.
func AdminPrincipal(c *gin.Context) services.Principal {
	return services.Principal{Admin: CurrentPrincipal(c).Admin}
}

// SessionToken returns the raw token of realm carried by the request, if it
// resolved to a live session.
func SessionToken(c *gin.Context, realm string) string {
	key := wikiTokenKey
	if realm == models.RealmAdmin {
		key = adminTokenKey
	}
	return c.GetString(key)
}

// RequireCapability rejects requests whose principal lacks capability.
func RequireCapability(capability services.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := CurrentPrincipal(c)
		if p.Actor(capability) == nil {
			if p.Anonymous() {
				c.JSON(401, gin.H{"error": "Unauthorized", "category": "authentication"})
			} else {
				c.JSON(403, gin.H{"error": "Forbidden: insufficient permissions", "category": "authorization"})
			}
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdminSession rejects requests without an admin-realm session.
func RequireAdminSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentPrincipal(c).Admin == nil {
			c.JSON(401, gin.H{"error": "Unauthorized", "category": "authentication"})
			c.Abort()
			return
		}
		c.Next()
	}
}
