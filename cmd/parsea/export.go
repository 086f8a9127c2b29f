package main

import (
	"fmt"
	"os"
	"time"

	"github.com/parsea-dev/parsea/internal/export"
	"github.com/parsea-dev/parsea/internal/service"
	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export classified transactions as CSV",
		RunE:  runExport,
	}

	cmd.Flags().String("user", "local", "user identifier to export")
	cmd.Flags().String("output", "", "output file (default: stdout)")
	cmd.Flags().Bool("business-only", false, "export only business transactions")
	cmd.Flags().Bool("summary", false, "export the category summary instead of raw transactions")
	cmd.Flags().String("start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "end date (YYYY-MM-DD)")

	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	userID, _ := cmd.Flags().GetString("user")
	output, _ := cmd.Flags().GetString("output")
	businessOnly, _ := cmd.Flags().GetBool("business-only")
	summary, _ := cmd.Flags().GetBool("summary")

	filter := service.ExportFilter{UserID: userID, BusinessOnly: businessOnly}
	for _, bound := range []struct {
		dest **time.Time
		flag string
	}{
		{&filter.StartDate, "start"},
		{&filter.EndDate, "end"},
	} {
		raw, _ := cmd.Flags().GetString(bound.flag)
		if raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return fmt.Errorf("--%s must be YYYY-MM-DD", bound.flag)
		}
		*bound.dest = &t
	}

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	transactions, err := store.ListForExport(ctx, filter)
	if err != nil {
		return err
	}

	out := os.Stdout
	if output != "" {
		f, createErr := os.Create(output)
		if createErr != nil {
			return fmt.Errorf("failed to create %s: %w", output, createErr)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	if summary {
		return export.WriteSummaryCSV(out, export.BuildSummary(transactions))
	}
	return export.WriteCSV(out, transactions)
}
