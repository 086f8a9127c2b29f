package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parsea-dev/parsea/internal/common"
	"github.com/parsea-dev/parsea/internal/pdfext"
	"github.com/parsea-dev/parsea/internal/pipeline"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func uploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <statement.csv|statement.pdf>",
		Short: "Classify a statement file into the local database",
		Args:  cobra.ExactArgs(1),
		RunE:  runUpload,
	}

	cmd.Flags().String("user", "local", "user identifier to attribute transactions to")

	return cmd
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]
	userID, _ := cmd.Flags().GetString("user")

	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	data, err := os.ReadFile(path)
	if err != nil {
		return common.NewUserError(fmt.Sprintf("could not read %s", path), err)
	}

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	registry, err := buildRegistry()
	if err != nil {
		return err
	}

	classifier, err := buildClassifier(registry)
	if err != nil {
		return err
	}
	defer classifier.Close()

	var bar *progressbar.ProgressBar
	p := pipeline.New(classifier, pdfext.NewExtractor(), store, registry, slog.Default()).
		WithProgress(func(done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionShowCount(),
					progressbar.OptionSetWidth(40),
					progressbar.OptionSetDescription("Classifying transactions..."),
				)
			}
			_ = bar.Set(done)
		})

	outcome, err := p.Process(ctx, data, fileType, userID)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	fmt.Printf("Processed %d transaction(s) in %.1fs\n", outcome.ProcessedCount, outcome.ProcessingTime)
	for _, txn := range outcome.Transactions {
		fmt.Printf("  %s  %-30s  %10s  %s (%.2f)\n",
			txn.Date, truncate(txn.Description, 30), txn.Amount.String(), txn.Classification, txn.Confidence)
	}
	if len(outcome.Errors) > 0 {
		fmt.Printf("%d unit(s) failed:\n", len(outcome.Errors))
		for _, msg := range outcome.Errors {
			fmt.Printf("  %s\n", msg)
		}
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
