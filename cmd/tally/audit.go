package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List audit log entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		limit, _ := cmd.Flags().GetInt("limit")

		resp, err := tallyClient.ListAudit(context.Background(), subject, limit)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(resp.Entries)
			return nil
		}
		if len(resp.Entries) == 0 {
			fmt.Println("no audit entries")
			return nil
		}
		printAuditTable(resp.Entries)
		return nil
	},
}

func init() {
	auditCmd.Flags().String("subject", "", "filter by subject id")
	auditCmd.Flags().Int("limit", 50, "maximum entries")
}
