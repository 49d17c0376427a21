package common

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// SessionUserKey is where the logged-in user's id lives, in the session and
// in the gin context.
const SessionUserKey = "user_id"

// CurrentUserMiddleware copies the session's user id into the context. It
// never rejects a request; routes that need a login check for themselves.
func CurrentUserMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if id, ok := asUserID(session.Get(SessionUserKey)); ok {
			c.Set(SessionUserKey, id)
		}
		c.Next()
	}
}

// CurrentUserID returns the id set by CurrentUserMiddleware, falling back to
// the session itself.
func CurrentUserID(c *gin.Context) (uint, bool) {
	if v, ok := c.Get(SessionUserKey); ok {
		return asUserID(v)
	}
	return asUserID(sessions.Default(c).Get(SessionUserKey))
}

func asUserID(v any) (uint, bool) {
	switch id := v.(type) {
	case uint:
		return id, id != 0
	case int:
		return uint(id), id > 0
	case int64:
		return uint(id), id > 0
	}
	return 0, false
}
