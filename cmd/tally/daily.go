package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var dailyCmd = &cobra.Command{
	Use:   "daily [date]",
	Short: "Show the daily revenue rollup for a date or range",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")

		if len(args) == 1 {
			row, err := tallyClient.DailyRollup(context.Background(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(row)
				return nil
			}
			printRollup(row)
			return nil
		}

		if from == "" || to == "" {
			return fmt.Errorf("either a date argument or both --from and --to are required")
		}
		limit, _ := cmd.Flags().GetInt("limit")
		resp, err := tallyClient.DailyRange(context.Background(), from, to, limit)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(resp.Rollups)
			return nil
		}
		printRollupTable(resp.Rollups)
		return nil
	},
}

func init() {
	dailyCmd.Flags().String("from", "", "range start date (YYYY-MM-DD)")
	dailyCmd.Flags().String("to", "", "range end date (YYYY-MM-DD)")
	dailyCmd.Flags().Int("limit", 0, "maximum rows")
}
