package httpHandler

import (
	"task-server/auth"
	"task-server/entities"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const principalKey = "principal"

// RequireSession authenticates the session cookie before any task handler runs.
func RequireSession(authn *auth.Authenticator, cookieName string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := authn.Authenticate(auth.CookieCarrier{Request: c.Request, Name: cookieName})
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// principal returns the Principal set by RequireSession, or the zero value.
func principal(c *gin.Context) entities.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return entities.Principal{}
	}
	p, _ := v.(entities.Principal)
	return p
}
