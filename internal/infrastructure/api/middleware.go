package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// UserContextKey holds the authenticated user's id.
	UserContextKey contextKey = "user_id"
)

// AuthConfig holds authentication middleware configuration.
type AuthConfig struct {
	Validator *auth.JWTValidator

	// Skipper defines a function to skip auth for certain routes.
	Skipper func(c echo.Context) bool
}

// AuthMiddleware requires a valid bearer token and stores its subject in the
// context. users can only ever read or score themselves.
func AuthMiddleware(config AuthConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if config.Skipper != nil && config.Skipper(c) {
				return next(c)
			}
			if config.Validator == nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "authentication is not configured")
			}

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			claims, err := config.Validator.ValidateToken(header)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, authErrorMessage(err)).SetInternal(err)
			}
			if !claims.IsAuthenticated() {
				return echo.NewHTTPError(http.StatusForbidden, "an authenticated session is required")
			}

			c.Set(string(UserContextKey), claims.UserID())
			return next(c)
		}
	}
}

func authErrorMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return "missing bearer token"
	case errors.Is(err, auth.ErrTokenExpired):
		return "token expired"
	default:
		return "invalid token"
	}
}

// GetUserID retrieves the authenticated user's id from context.
// returns empty string if not authenticated.
func GetUserID(c echo.Context) string {
	if val := c.Get(string(UserContextKey)); val != nil {
		if userID, ok := val.(string); ok {
			return userID
		}
	}
	return ""
}

// PublicRoutesSkipper returns a skipper function that skips auth for public routes.
func PublicRoutesSkipper(publicPaths ...string) func(echo.Context) bool {
	pathSet := make(map[string]bool)
	for _, p := range publicPaths {
		pathSet[p] = true
	}

	return func(c echo.Context) bool {
		return pathSet[c.Path()]
	}
}
