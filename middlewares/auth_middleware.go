package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/diner-app/models"
	"github.com/yeremiapane/diner-app/utils"
)

const identityKey = "identity"

type Identity struct {
	UserID   uint
	Username string
	Role     string
}

func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// Identity resolves the caller from the session cookie or, for API clients,
// from a bearer token. Websocket upgrades may pass the token as ?token= since
// browsers cannot set headers on them. Anonymous requests pass through.
func IdentityMiddleware(issuer *utils.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := sessionIdentity(c); ok {
			c.Set(identityKey, id)
			c.Next()
			return
		}

		token := ""
		if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		} else if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
			token = c.Query("token")
		}

		if token != "" && issuer != nil {
			if claims, err := issuer.ParseToken(token); err == nil {
				c.Set(identityKey, Identity{UserID: claims.UserID, Username: claims.Username, Role: claims.Role})
			}
		}
		c.Next()
	}
}

// CurrentIdentity returns the caller resolved by IdentityMiddleware.
func CurrentIdentity(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

// CurrentUserID is 0 for anonymous callers.
func CurrentUserID(c *gin.Context) uint {
	id, _ := CurrentIdentity(c)
	return id.UserID
}

func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentIdentity(c); !ok {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("please log in to continue"))
			c.Abort()
			return
		}
		c.Next()
	}
}
