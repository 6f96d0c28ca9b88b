package httpx

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/storefront/internal/apperr"
	"github.com/MikeMC777/storefront/internal/session"
)

// SessionCookie carries the signed session token.
const SessionCookie = "storefront_session"

const identityKey = "identity"

// Resolver turns a session token into the caller identity.
type Resolver interface {
	Resolve(ctx context.Context, token string) (session.Identity, error)
}

// Authenticate resolves the session cookie into an Identity. When required is
// false an absent or invalid cookie leaves the request anonymous.
func Authenticate(r Resolver, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(SessionCookie)
		if token == "" && !required {
			c.Next()
			return
		}
		id, err := r.Resolve(c.Request.Context(), token)
		if err != nil {
			if !required && apperr.KindOf(err) == apperr.KindAuth {
				c.Next()
				return
			}
			Fail(c, err)
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// AdminChecker reports the current admin flag of a user.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// RequireAdmin must run after Authenticate(_, true). The admin flag is looked
// up on every request; the one recorded in the session token is ignored.
func RequireAdmin(users AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			Fail(c, apperr.Auth("authentication required"))
			return
		}
		admin, err := users.IsAdmin(c.Request.Context(), id.UserID)
		if err != nil {
			Fail(c, err)
			return
		}
		if !admin {
			Fail(c, apperr.Forbidden("admin access required"))
			return
		}
		id.IsAdmin = true
		c.Set(identityKey, id)
		c.Next()
	}
}

func IdentityFrom(c *gin.Context) (session.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return session.Identity{}, false
	}
	id, ok := v.(session.Identity)
	return id, ok
}

// SetSessionCookie writes the token cookie; maxAge <= 0 clears it.
func SetSessionCookie(c *gin.Context, token string, maxAge int, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, maxAge, "/", "", secure, true)
}
