package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show classification statistics",
		RunE:  runStats,
	}

	cmd.Flags().String("user", "local", "user identifier")

	return cmd
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	userID, _ := cmd.Flags().GetString("user")

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	stats, err := store.GetStatistics(ctx, userID)
	if err != nil {
		return err
	}

	fmt.Printf("Transactions:    %d\n", stats.TotalTransactions)
	fmt.Printf("  Business:      %d (%.1f%%)\n", stats.BusinessTransactions, stats.BusinessPercentage)
	fmt.Printf("  Personal:      %d\n", stats.PersonalTransactions)
	fmt.Printf("  Overridden:    %d\n", stats.OverriddenTransactions)
	fmt.Printf("Avg confidence:  %.2f\n", stats.AverageConfidence)

	return nil
}
