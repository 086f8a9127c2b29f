package server

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/parsea-dev/parsea/internal/common"
	"github.com/parsea-dev/parsea/internal/export"
	"github.com/parsea-dev/parsea/internal/service"
)

func (s *Server) exportFilter(c echo.Context) (service.ExportFilter, error) {
	filter := service.ExportFilter{
		UserID:       userID(c),
		BusinessOnly: c.QueryParam("business_only") == "true",
	}

	for _, bound := range []struct {
		dest **time.Time
		name string
	}{
		{&filter.StartDate, "start_date"},
		{&filter.EndDate, "end_date"},
	} {
		raw := c.QueryParam(bound.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, fmt.Errorf("%w: %s must be YYYY-MM-DD", common.ErrInvalidInput, bound.name)
		}
		*bound.dest = &t
	}

	return filter, nil
}

func (s *Server) handleExportTransactions(c echo.Context) error {
	filter, err := s.exportFilter(c)
	if err != nil {
		return writeError(c, err)
	}
	return s.writeTransactionsCSV(c, filter, "transactions.csv")
}

func (s *Server) handleExportBusinessExpenses(c echo.Context) error {
	filter, err := s.exportFilter(c)
	if err != nil {
		return writeError(c, err)
	}
	filter.BusinessOnly = true
	return s.writeTransactionsCSV(c, filter, "business-expenses.csv")
}

func (s *Server) writeTransactionsCSV(c echo.Context, filter service.ExportFilter, filename string) error {
	transactions, err := s.storage.ListForExport(c.Request().Context(), filter)
	if err != nil {
		return writeError(c, err)
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, transactions); err != nil {
		return writeError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, "text/csv", buf.Bytes())
}

func (s *Server) handleExportSummary(c echo.Context) error {
	filter, err := s.exportFilter(c)
	if err != nil {
		return writeError(c, err)
	}

	transactions, err := s.storage.ListForExport(c.Request().Context(), filter)
	if err != nil {
		return writeError(c, err)
	}

	summary := export.BuildSummary(transactions)
	if c.QueryParam("format") == "json" {
		return c.JSON(http.StatusOK, summary)
	}

	var buf bytes.Buffer
	if err := export.WriteSummaryCSV(&buf, summary); err != nil {
		return writeError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="summary.csv"`)
	return c.Blob(http.StatusOK, "text/csv", buf.Bytes())
}
