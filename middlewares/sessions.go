package middlewares

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

const (
	SessionName = "diner_session"

	sessionUserID   = "user_id"
	sessionUsername = "username"
	sessionRole     = "role"
	sessionCart     = "cart"
)

// Sessions keeps identity and cart in a signed cookie.
func Sessions(secret string, secure bool) gin.HandlerFunc {
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sessions.Sessions(SessionName, store)
}

// BindSession records who is signed in on this session.
func BindSession(c *gin.Context, id Identity) error {
	s := sessions.Default(c)
	s.Set(sessionUserID, id.UserID)
	s.Set(sessionUsername, id.Username)
	s.Set(sessionRole, id.Role)
	return s.Save()
}

// ClearSession drops identity and cart.
func ClearSession(c *gin.Context) error {
	s := sessions.Default(c)
	s.Clear()
	return s.Save()
}

func sessionIdentity(c *gin.Context) (Identity, bool) {
	s := sessions.Default(c)
	id, ok := s.Get(sessionUserID).(uint)
	if !ok || id == 0 {
		return Identity{}, false
	}
	username, _ := s.Get(sessionUsername).(string)
	role, _ := s.Get(sessionRole).(string)
	return Identity{UserID: id, Username: username, Role: role}, true
}

// LoadCart returns the raw cart stored on the session, if any.
func LoadCart(c *gin.Context) string {
	raw, _ := sessions.Default(c).Get(sessionCart).(string)
	return raw
}

func SaveCart(c *gin.Context, raw string) error {
	s := sessions.Default(c)
	s.Set(sessionCart, raw)
	return s.Save()
}
