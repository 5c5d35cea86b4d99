package middleware

import (
	"net/http"

	"github.com/ds124wfegd/openmic-lineup/internal/entity"
	"github.com/ds124wfegd/openmic-lineup/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	identityKey = "identity"

	// NonUserCookie carries the token of a performer without an account.
	NonUserCookie    = "nonUserId"
	nonUserCookieAge = 365 * 24 * 60 * 60
)

type IdentityResolver interface {
	Resolve(credential, nonUserToken, remoteAddr, connID string) (entity.Identity, error)
}

// Identity resolves the caller from the Authorization header or the
// non-user cookie, minting the cookie when neither is present.
func Identity(resolver IdentityResolver, secureCookie bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := c.GetHeader("Authorization")
		cookie, _ := c.Cookie(NonUserCookie)

		if credential == "" && !service.ValidNonUserToken(cookie) {
			cookie = service.NewNonUserToken()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(NonUserCookie, cookie, nonUserCookieAge, "/", "", secureCookie, true)
		}

		identity, err := resolver.Resolve(credential, cookie, c.ClientIP(), "")
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   err.Error(),
				"class":   entity.ClassOf(err).String(),
			})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// IdentityFrom returns the caller resolved by Identity, or an anonymous
// identity when the middleware did not run.
func IdentityFrom(c *gin.Context) entity.Identity {
	if identity, ok := lookupIdentity(c); ok {
		return identity
	}
	return entity.AnonymousIdentity("")
}

// RequireUser aborts unless the caller is an authenticated user.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IdentityFrom(c).IsUser() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   entity.ErrUnauthorized.Error(),
				"class":   entity.ClassUnauthenticated.String(),
			})
			return
		}
		c.Next()
	}
}

func lookupIdentity(c *gin.Context) (entity.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return entity.Identity{}, false
	}
	identity, ok := v.(entity.Identity)
	return identity, ok
}
