package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
)

// SessionCookieName is the cookie carrying the session credential. The
// value is "Bearer <token>" so non-cookie clients can reuse the scheme.
const SessionCookieName = "access_token"

const bearerPrefix = "Bearer "

// userIDKey is where RequireSession stores the resolved account id.
const userIDKey = "auth.user_id"

func setSessionCookie(c *fiber.Ctx, token string, duration time.Duration, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookieName,
		Value:    bearerPrefix + token,
		Expires:  time.Now().Add(duration),
		MaxAge:   int(duration.Seconds()),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: "Lax",
	})
}

func clearSessionCookie(c *fiber.Ctx, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: "Lax",
	})
}

// RequireSession extracts and validates the session cookie, storing
// the account id in the request locals. Token failures collapse into a
// generic unauthorized response at this boundary.
func RequireSession(tokens *TokenService, logger Logger) fiber.Handler {
	if logger == nil {
		logger = defLogger{}
	}
	return func(c *fiber.Ctx) error {
		raw := c.Cookies(SessionCookieName)
		if raw == "" {
			return renderError(c, ErrUnauthorized)
		}

		raw = strings.TrimPrefix(raw, bearerPrefix)

		userID, err := tokens.Validate(raw)
		if err != nil {
			logger.Debug("session validation failed: %v", err)
			return renderError(c, ErrUnauthorized)
		}

		c.Locals(userIDKey, userID)
		return c.Next()
	}
}

// SessionUserID returns the account id stored by RequireSession.
func SessionUserID(c *fiber.Ctx) int64 {
	id, _ := c.Locals(userIDKey).(int64)
	return id
}

// renderError maps rich errors onto HTTP status codes and a JSON body.
func renderError(c *fiber.Ctx, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	status := richErr.Code
	if status == 0 {
		status = fiber.StatusInternalServerError
	}

	body := fiber.Map{
		"message": richErr.Message,
	}
	if richErr.TextCode != "" {
		body["text_code"] = richErr.TextCode
	}
	if len(richErr.ValidationMap()) > 0 {
		body["validation"] = richErr.ValidationMap()
	}

	return c.Status(status).JSON(fiber.Map{"error": body})
}
