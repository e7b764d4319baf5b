package middleware

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"autopilot/internal/config"
	"autopilot/internal/models"
	"autopilot/pkg/auth"
)

// Locals keys set by the auth middlewares
const (
	LocalsAuthMode  = "auth_mode"
	LocalsUserID    = "user_id"
	LocalsUserEmail = "user_email"
	LocalsUserRole  = "user_role"
	LocalsSession   = "session"
)

// Auth modes
const (
	AuthModeUser    = "user"
	AuthModeSession = "session"
)

// SessionTokenHeader carries the session token when cookies are unavailable
// (e.g. cross-site embeds). It takes precedence over the cookie.
const SessionTokenHeader = "X-Session-Token"

// SessionResolver is the session store surface the middleware needs.
type SessionResolver interface {
	GetByToken(ctx context.Context, token string) (*models.Session, error)
	Create(ctx context.Context) (*models.Session, error)
}

// SetSessionCookie writes the session cookie with environment-appropriate
// flags. Cross-site frontends need SameSite=None, which requires Secure.
func SetSessionCookie(c *fiber.Ctx, cfg *config.Config, token string) {
	sameSite := "Lax"
	if cfg.IsProduction() {
		sameSite = "None"
	}
	c.Cookie(&fiber.Cookie{
		Name:     cfg.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   cfg.SessionCookieMaxAge,
		HTTPOnly: true,
		Secure:   cfg.IsProduction() || cfg.SessionCookieSecure,
		SameSite: sameSite,
	})
}

// ClearSessionCookie expires the session cookie (used after a claim).
func ClearSessionCookie(c *fiber.Ctx, cfg *config.Config) {
	sameSite := "Lax"
	if cfg.IsProduction() {
		sameSite = "None"
	}
	c.Cookie(&fiber.Cookie{
		Name:     cfg.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   cfg.IsProduction() || cfg.SessionCookieSecure,
		SameSite: sameSite,
	})
}

// sessionTokenFromRequest prefers the header over the cookie.
func sessionTokenFromRequest(c *fiber.Ctx, cfg *config.Config) string {
	if token := c.Get(SessionTokenHeader); token != "" {
		return token
	}
	return c.Cookies(cfg.SessionCookieName)
}

// resolveBearer verifies the Authorization header if present. A present but
// bad bearer token is a hard error; an absent one is not.
func resolveBearer(c *fiber.Ctx, jwtAuth *auth.JWTAuth) (*auth.User, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return nil, nil
	}

	token, err := auth.ExtractToken(authHeader)
	if err != nil {
		return nil, auth.ErrTokenInvalid
	}

	return jwtAuth.VerifyAccessToken(token)
}

func rejectBearerError(c *fiber.Ctx, err error) error {
	if errors.Is(err, auth.ErrTokenExpired) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"code":    "TOKEN_EXPIRED",
			"message": "Access token has expired",
		})
	}
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"code":    "INVALID_TOKEN",
		"message": "Access token is invalid",
	})
}

func setUserLocals(c *fiber.Ctx, user *auth.User) {
	c.Locals(LocalsAuthMode, AuthModeUser)
	c.Locals(LocalsUserID, user.ID)
	c.Locals(LocalsUserEmail, user.Email)
	c.Locals(LocalsUserRole, user.Role)
}

func setSessionLocals(c *fiber.Ctx, session *models.Session) {
	c.Locals(LocalsAuthMode, AuthModeSession)
	c.Locals(LocalsSession, session)
}

// DualAuth resolves the caller's identity: a valid bearer token wins, then a
// valid session token (header, then cookie). Requests with neither get a
// fresh session auto-provisioned, with the cookie set and the token echoed
// in the response header. A present-but-invalid bearer is rejected; a stale
// session token silently falls through to auto-provisioning.
func DualAuth(jwtAuth *auth.JWTAuth, sessions SessionResolver, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := resolveBearer(c, jwtAuth)
		if err != nil {
			return rejectBearerError(c, err)
		}
		if user != nil {
			setUserLocals(c, user)
			return c.Next()
		}

		if token := sessionTokenFromRequest(c, cfg); token != "" {
			session, err := sessions.GetByToken(c.UserContext(), token)
			if err == nil && session.IsValid(time.Now()) {
				setSessionLocals(c, session)
				return c.Next()
			}
		}

		session, err := sessions.Create(c.UserContext())
		if err != nil {
			log.Printf("❌ Failed to auto-provision session: %v", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"code":    "SERVICE_UNAVAILABLE",
				"message": "Could not create a session",
			})
		}

		SetSessionCookie(c, cfg, session.SessionToken)
		c.Set(SessionTokenHeader, session.SessionToken)
		setSessionLocals(c, session)
		return c.Next()
	}
}

// RequiredDualAuth is DualAuth without auto-provisioning: the caller must
// already hold a valid bearer token or session token.
func RequiredDualAuth(jwtAuth *auth.JWTAuth, sessions SessionResolver, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := resolveBearer(c, jwtAuth)
		if err != nil {
			return rejectBearerError(c, err)
		}
		if user != nil {
			setUserLocals(c, user)
			return c.Next()
		}

		if token := sessionTokenFromRequest(c, cfg); token != "" {
			session, err := sessions.GetByToken(c.UserContext(), token)
			if err == nil && session.IsValid(time.Now()) {
				setSessionLocals(c, session)
				return c.Next()
			}
		}

		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"code":    "UNAUTHORIZED",
			"message": "Authentication required",
		})
	}
}

// RequireUser guards auth-only routes. Session callers get a wrong-mode
// error rather than a generic 401 so clients can prompt for login.
func RequireUser(jwtAuth *auth.JWTAuth, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := resolveBearer(c, jwtAuth)
		if err != nil {
			return rejectBearerError(c, err)
		}
		if user == nil {
			if sessionTokenFromRequest(c, cfg) != "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"code":    "WRONG_AUTH_MODE",
					"message": "This endpoint requires an authenticated user",
				})
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"code":    "UNAUTHORIZED",
				"message": "Authentication required",
			})
		}

		setUserLocals(c, user)
		return c.Next()
	}
}

// RequireSession guards session-only routes. Authenticated callers get a
// wrong-mode error; a missing or stale session token is a plain 401.
func RequireSession(sessions SessionResolver, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("Authorization") != "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"code":    "WRONG_AUTH_MODE",
				"message": "This endpoint is for anonymous sessions only",
			})
		}

		token := sessionTokenFromRequest(c, cfg)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"code":    "UNAUTHORIZED",
				"message": "Session token required",
			})
		}

		session, err := sessions.GetByToken(c.UserContext(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"code":    "UNAUTHORIZED",
				"message": "Unknown session token",
			})
		}
		if !session.IsValid(time.Now()) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"code":    "SESSION_EXPIRED",
				"message": "Session has expired or been claimed",
			})
		}

		setSessionLocals(c, session)
		return c.Next()
	}
}

// SessionFromLocals returns the session set by the auth middleware, if any.
func SessionFromLocals(c *fiber.Ctx) (*models.Session, bool) {
	session, ok := c.Locals(LocalsSession).(*models.Session)
	return session, ok
}

// UserIDFromLocals returns the authenticated user ID, if any.
func UserIDFromLocals(c *fiber.Ctx) (string, bool) {
	userID, ok := c.Locals(LocalsUserID).(string)
	return userID, ok && userID != ""
}
