package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"realtime-gateway/internal/domain"
)

// TokenVerifier turns a bearer token into an identity.
type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}

const identityContextKey = "identity"

// RequireAdmin rejects requests without a valid bearer token carrying an
// admin role claim. The verified identity is stored on the echo context.
func RequireAdmin(verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			}

			if !identity.IsAdmin() {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "admin role required"})
			}

			c.Set(identityContextKey, identity)
			return next(c)
		}
	}
}

// IdentityFrom returns the identity stored by RequireAdmin.
func IdentityFrom(c echo.Context) (domain.Identity, bool) {
	identity, ok := c.Get(identityContextKey).(domain.Identity)
	return identity, ok
}
