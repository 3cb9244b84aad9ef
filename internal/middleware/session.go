package middleware

import (
	"time"

	contextPkg "FaceLens/pkg/context"
	"FaceLens/pkg/session"
	"FaceLens/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/oklog/ulid/v2"
)

// NewSessionMiddleware gives every browser a ULID session cookie. The session owns the
// last analysis and the camera state.
func NewSessionMiddleware(ttl time.Duration) fiber.Handler {
	utilsInstance := utils.New()
	if ttl <= 0 {
		ttl = session.DefaultTTL
	}

	return func(c *fiber.Ctx) error {
		sessionID := c.Cookies(session.CookieName)

		if _, err := ulid.ParseStrict(sessionID); err != nil {
			sessionID, _ = utilsInstance.NewULIDFromTimestamp(time.Now())
		}

		c.Cookie(&fiber.Cookie{
			Name:     session.CookieName,
			Value:    sessionID,
			Path:     "/",
			Expires:  time.Now().Add(ttl),
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
		c.Locals(contextPkg.SessionIDKey, sessionID)

		return c.Next()
	}
}

func (m *middleware) GetSessionID(ctx *fiber.Ctx) string {
	sessionID, _ := ctx.Locals(contextPkg.SessionIDKey).(string)
	return sessionID
}
