package middleware

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"restkit/internal/resource"
)

const CallerKey = "caller"

const sessionUserKey = "user_id"

// LoadCaller turns the cookie session into the explicit caller identity
// every service call receives. The core never reads ambient session state
// itself.
func LoadCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := resource.Anonymous
		session := sessions.Default(c)
		if id, ok := session.Get(sessionUserKey).(uint); ok && id > 0 {
			caller = resource.Caller{UserID: id, Authenticated: true}
		}
		c.Set(CallerKey, caller)
		c.Next()
	}
}

// AuthRequired rejects unauthenticated requests.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, _ := c.Get(CallerKey)
		if cl, ok := caller.(resource.Caller); !ok || !cl.Authenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}

// SignIn binds the session to a user id.
func SignIn(c *gin.Context, userID uint) error {
	session := sessions.Default(c)
	session.Set(sessionUserKey, userID)
	return session.Save()
}

// SignOut clears the session.
func SignOut(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	return session.Save()
}
