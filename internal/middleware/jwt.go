package middleware // middleware provides shared request processing for handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/rdt-project/auth-service/internal/token"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject (the username) into the request context under
// the "username" key. Validation and subject extraction are delegated to the
// token service so this middleware never touches key material itself.
func JWTAuth(tokens *token.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"code": http.StatusUnauthorized, "message": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Validate covers signature, structure and expiry in one check;
			// Subject then cannot fail except for a token that mutated
			// between the two calls, which still maps to 401.
			if !tokens.Validate(raw) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"code": http.StatusUnauthorized, "message": "invalid or expired token"})
			}
			sub, err := tokens.Subject(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"code": http.StatusUnauthorized, "message": "invalid or expired token"})
			}

			c.Set("username", sub)
			return next(c)
		}
	}
}
