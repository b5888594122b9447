package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var partitionsCmd = &cobra.Command{
	Use:   "partitions",
	Short: "List ledger partitions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := tallyClient.ListPartitions(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(resp.Partitions)
			return nil
		}
		if len(resp.Partitions) == 0 {
			fmt.Println("no partitions")
			return nil
		}
		printPartitionTable(resp.Partitions)
		return nil
	},
}

var partitionsEnsureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Create missing current and future partitions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := tallyClient.EnsurePartitions(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(resp)
			return nil
		}
		if len(resp.Created) == 0 {
			fmt.Println("all partitions already present")
			return nil
		}
		fmt.Printf("created %d partition(s)\n", len(resp.Created))
		printPartitionTable(resp.Created)
		return nil
	},
}

func init() {
	partitionsCmd.AddCommand(partitionsEnsureCmd)
}
