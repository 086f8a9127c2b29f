package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/parsea-dev/parsea/internal/auth"
	"github.com/parsea-dev/parsea/internal/common"
	"github.com/parsea-dev/parsea/internal/model"
)

type registerRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8"`
	BusinessName string `json:"business_name"`
	TaxID        string `json:"tax_id"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
}

func (s *Server) handleRegister(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return writeError(c, err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	user := &model.User{
		Email:        req.Email,
		PasswordHash: hash,
		BusinessName: req.BusinessName,
		TaxID:        req.TaxID,
	}
	if err := s.storage.CreateUser(c.Request().Context(), user); err != nil {
		return writeError(c, err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return c.JSON(http.StatusCreated, map[string]any{
		"id":            user.ID,
		"email":         user.Email,
		"business_name": user.BusinessName,
		"created_at":    user.CreatedAt,
	})
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return writeError(c, err)
	}

	user, err := s.storage.GetUserByEmail(c.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// Same response as a bad password, so probes can't enumerate emails.
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
		}
		return writeError(c, err)
	}

	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
	}

	token, expiresAt, err := s.tokens.GenerateToken(user)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    user.ID,
		Email:     user.Email,
	})
}
