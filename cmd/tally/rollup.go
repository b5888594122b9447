package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var rollupCmd = &cobra.Command{
	Use:   "rollup",
	Short: "Administer rollup rows",
}

var rollupResetCmd = &cobra.Command{
	Use:   "reset <family> <key>",
	Short: "Delete one rollup row so future facts rebuild it from zero",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		family, key := args[0], args[1]
		if err := tallyClient.ResetRollup(context.Background(), family, key); err != nil {
			return err
		}
		fmt.Printf("rollup %s[%s] reset\n", family, key)
		return nil
	},
}

func init() {
	rollupCmd.AddCommand(rollupResetCmd)
}
