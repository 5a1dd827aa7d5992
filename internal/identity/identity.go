// Package identity issues the stable opaque per-device session id.
// There is no server-side verification behind it: the id is a random
// token persisted in a signed cookie, an accepted trust boundary.
package identity

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/openmic/micqueue/internal/domain"
)

const (
	// SessionName is the cookie the session store writes under.
	SessionName = "micqueue"

	sessionKey = "sid"
	ctxKey     = "session_id"
)

// GetOrCreate returns the profile's session id, creating and persisting
// one on first use. Idempotent across calls within the same profile.
// When the cookie store cannot save, the id is still returned alongside
// domain.ErrIdentityUnavailable so the caller can proceed ephemerally.
func GetOrCreate(s sessions.Session) (domain.SessionID, error) {
	if v := s.Get(sessionKey); v != nil {
		if str, ok := v.(string); ok && str != "" {
			return domain.SessionID(str), nil
		}
	}
	sid := uuid.NewString()
	s.Set(sessionKey, sid)
	if err := s.Save(); err != nil {
		return domain.SessionID(sid), domain.ErrIdentityUnavailable
	}
	return domain.SessionID(sid), nil
}

// Middleware threads the session id into every request. Coordinator
// calls take the identity as an explicit argument, never as ambient
// state, so tests can run many identities in one process.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := GetOrCreate(sessions.Default(c))
		if err != nil {
			// Ephemeral session: stable within this request only.
			log.Warn().Err(err).Str("module", "identity").Msg("session store unavailable, identity is ephemeral")
		}
		c.Set(ctxKey, string(sid))
		c.Next()
	}
}

// FromContext extracts the request's session id.
func FromContext(c *gin.Context) (domain.SessionID, error) {
	v := c.GetString(ctxKey)
	if v == "" {
		return "", domain.ErrIdentityMissing
	}
	return domain.SessionID(v), nil
}
