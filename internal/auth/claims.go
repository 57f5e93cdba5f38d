package auth

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RoleOperator marks back-office staff allowed to run administrative
// payment operations (status check, cancel, stale listing).
const RoleOperator = "operator"

// Claims represents the JWT claims issued by the authentication service.
// This service only validates and reads them; it never issues tokens.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// FromContext extracts the verified claims placed on the context by the JWT
// middleware.
func FromContext(c echo.Context) (*Claims, error) {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// PrincipalID returns the caller's id as a UUID.
func (c *Claims) PrincipalID() (uuid.UUID, error) {
	return uuid.Parse(c.UserID)
}

// RequireOperator rejects requests whose token does not carry the operator
// role.
func RequireOperator(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := FromContext(c)
		if err != nil {
			return err
		}
		if claims.Role != RoleOperator {
			return echo.NewHTTPError(http.StatusForbidden, "operator role required")
		}
		return next(c)
	}
}
