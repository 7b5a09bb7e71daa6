package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"pasarlive/internal/domain/service"
	"pasarlive/pkg/errors"
)

const userIDKey = "uid"

type AuthMiddleware struct {
	verifier service.TokenVerifier
}

func NewAuthMiddleware(verifier service.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

// Authenticate requires a valid bearer token and stores the user id on the context.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, err := BearerToken(c)
		if err != nil {
			return err
		}

		uid, err := m.VerifyToken(c, token)
		if err != nil {
			return err
		}

		c.Set(userIDKey, uid)
		return next(c)
	}
}

func (m *AuthMiddleware) VerifyToken(c echo.Context, token string) (string, error) {
	uid, err := m.verifier.VerifyToken(c.Request().Context(), token)
	if err != nil || uid == "" {
		return "", errors.Unauthorized("Invalid or expired token", err)
	}
	return uid, nil
}

// BearerToken reads "Authorization: Bearer <token>".
func BearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return "", errors.Unauthorized("Authorization header is required", nil)
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errors.Unauthorized("Invalid authorization format", nil)
	}
	return parts[1], nil
}
