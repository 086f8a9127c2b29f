package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const userIDContextKey = "user_id"

// requireAuth validates the bearer token and stores the authenticated user
// ID on the request context.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get("Authorization")

		token, err := s.tokens.ExtractTokenFromHeader(header)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: "missing or malformed authorization header"})
		}

		claims, err := s.tokens.ValidateToken(token)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: "invalid or expired token"})
		}

		c.Set(userIDContextKey, claims.UserID)
		return next(c)
	}
}

func userID(c echo.Context) string {
	id, _ := c.Get(userIDContextKey).(string)
	return id
}
