package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/tally/internal/client"
	"github.com/spf13/cobra"
)

var appendCmd = &cobra.Command{
	Use:   "append",
	Short: "Append a sale fact to the ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		customerID, _ := cmd.Flags().GetString("customer")
		itemID, _ := cmd.Flags().GetString("item")
		quantity, _ := cmd.Flags().GetInt64("quantity")
		amount, _ := cmd.Flags().GetInt64("amount")
		actor, _ := cmd.Flags().GetString("actor")
		at, _ := cmd.Flags().GetString("at")

		occurredAt := time.Now().UTC()
		if at != "" {
			t, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return fmt.Errorf("--at: expected RFC 3339 timestamp: %w", err)
			}
			occurredAt = t
		}

		fact, err := tallyClient.AppendFact(context.Background(), &client.AppendFactRequest{
			OccurredAt:  occurredAt,
			CustomerID:  customerID,
			ItemID:      itemID,
			Quantity:    quantity,
			AmountCents: amount,
			Actor:       actor,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			printJSON(fact)
			return nil
		}
		printFact(fact)
		return nil
	},
}

func init() {
	appendCmd.Flags().String("customer", "", "customer id (required)")
	appendCmd.Flags().String("item", "", "item id (required)")
	appendCmd.Flags().Int64("quantity", 1, "units sold")
	appendCmd.Flags().Int64("amount", 0, "sale amount in cents (required)")
	appendCmd.Flags().String("actor", "", "who recorded the sale")
	appendCmd.Flags().String("at", "", "occurrence time (RFC 3339, default now)")
	_ = appendCmd.MarkFlagRequired("customer")
	_ = appendCmd.MarkFlagRequired("item")
	_ = appendCmd.MarkFlagRequired("amount")
}
