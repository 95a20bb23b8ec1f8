package warden

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/minus-twelve/warden/types"
)

const currentUserKey = "warden.current_user"

// AuthMiddleware authenticates every request whose path is not exempt and
// stores the user for CurrentUser. A nil Authenticator lets everything
// through.
func AuthMiddleware(auth *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth == nil || !auth.RequireAuth(c.Request.URL.Path) {
			c.Next()
			return
		}

		user, err := auth.Authenticate(c.Request)
		switch {
		case errors.Is(err, ErrUnauthenticated):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		case err != nil:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the user AuthMiddleware authenticated for c.
func CurrentUser(c *gin.Context) (*types.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*types.User)
	return user, ok && user != nil
}
