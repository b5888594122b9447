package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/tally/internal/client"
	"github.com/alfredjeanlab/tally/internal/ui"
	"github.com/spf13/cobra"
)

var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Manage menu items and view their sales",
}

var itemAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a menu item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		price, _ := cmd.Flags().GetInt64("price")
		item, err := tallyClient.CreateItem(context.Background(), &client.CreateItemRequest{
			Name:       args[0],
			PriceCents: price,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(item)
			return nil
		}
		fmt.Printf("item %s created (%s, %s)\n", ui.RenderAccent(item.ID), item.Name, cents(item.PriceCents))
		return nil
	},
}

var itemShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a menu item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		item, err := tallyClient.GetItem(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(item)
			return nil
		}
		fmt.Printf("ID:         %s\n", ui.RenderAccent(item.ID))
		fmt.Printf("Name:       %s\n", item.Name)
		fmt.Printf("Price:      %s\n", cents(item.PriceCents))
		fmt.Printf("Created At: %s\n", item.CreatedAt.Format(time.RFC3339))
		return nil
	},
}

var itemSalesCmd = &cobra.Command{
	Use:   "sales <id>",
	Short: "Show the lifetime sales rollup for an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		row, err := tallyClient.ItemRollup(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(row)
			return nil
		}
		printRollup(row)
		return nil
	},
}

func init() {
	itemAddCmd.Flags().Int64("price", 0, "list price in cents")
	itemCmd.AddCommand(itemAddCmd, itemShowCmd, itemSalesCmd)
}
