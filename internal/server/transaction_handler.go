package server

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/parsea-dev/parsea/internal/common"
)

func (s *Server) handleUpload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return writeError(c, fmt.Errorf("%w: missing file field", common.ErrInvalidInput))
	}
	if fileHeader.Size > s.cfg.MaxUploadSize {
		return writeError(c, fmt.Errorf("%w: file exceeds %d bytes", common.ErrInvalidInput, s.cfg.MaxUploadSize))
	}

	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileHeader.Filename)), ".")
	if fileType != "csv" && fileType != "pdf" {
		return writeError(c, fmt.Errorf("%w: %q", common.ErrUnsupportedFileType, fileType))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return writeError(c, fmt.Errorf("%w: unreadable upload", common.ErrInvalidInput))
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadSize+1))
	if err != nil {
		return writeError(c, fmt.Errorf("%w: unreadable upload", common.ErrInvalidInput))
	}
	if int64(len(data)) > s.cfg.MaxUploadSize {
		return writeError(c, fmt.Errorf("%w: file exceeds %d bytes", common.ErrInvalidInput, s.cfg.MaxUploadSize))
	}

	outcome, err := s.processor.Process(c.Request().Context(), data, fileType, userID(c))
	if err != nil {
		return writeError(c, err)
	}

	// Partial per-unit failures still return 2xx with errors populated.
	return c.JSON(http.StatusOK, outcome)
}

func (s *Server) handleListTransactions(c echo.Context) error {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	transactions, err := s.storage.GetTransactions(c.Request().Context(), userID(c), limit, offset)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"transactions": toTransactionViews(transactions),
		"limit":        limit,
		"offset":       offset,
	})
}

func (s *Server) handleGetTransaction(c echo.Context) error {
	txn, err := s.storage.GetTransactionByID(c.Request().Context(), c.Param("id"), userID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toTransactionView(*txn))
}

type updateTransactionRequest struct {
	IsBusiness *bool `json:"is_business" validate:"required"`
}

func (s *Server) handleUpdateTransaction(c echo.Context) error {
	var req updateTransactionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if req.IsBusiness == nil {
		return writeError(c, fmt.Errorf("%w: is_business is required", common.ErrInvalidInput))
	}

	txn, err := s.storage.UpdateClassification(c.Request().Context(), c.Param("id"), userID(c), *req.IsBusiness)
	if err != nil {
		return writeError(c, err)
	}

	s.logger.Info("classification overridden",
		"transaction_id", txn.ID,
		"is_business", txn.IsBusiness)
	return c.JSON(http.StatusOK, toTransactionView(*txn))
}

func (s *Server) handleDeleteTransaction(c echo.Context) error {
	if err := s.storage.DeleteTransaction(c.Request().Context(), c.Param("id"), userID(c)); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleStatistics(c echo.Context) error {
	stats, err := s.storage.GetStatistics(c.Request().Context(), userID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleCancelProcessing(c echo.Context) error {
	uid := userID(c)
	if err := s.registry.RequestCancellation(uid); err != nil {
		return writeError(c, err)
	}

	s.logger.Info("cancellation requested", "user_id", uid)
	return c.JSON(http.StatusOK, map[string]string{"status": "cancellation requested"})
}

func queryInt(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
