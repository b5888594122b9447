package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/tally/internal/client"
	"github.com/alfredjeanlab/tally/internal/model"
	"github.com/alfredjeanlab/tally/internal/ui"
	"github.com/spf13/cobra"
)

var customerCmd = &cobra.Command{
	Use:   "customer",
	Short: "Manage customers and look them up by contact info",
}

var customerAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a customer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		phone, _ := cmd.Flags().GetString("phone")

		customer, err := tallyClient.CreateCustomer(context.Background(), &client.CreateCustomerRequest{
			Name:  args[0],
			Email: email,
			Phone: phone,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(customer)
			return nil
		}
		fmt.Printf("customer %s created (%s)\n", ui.RenderAccent(customer.ID), customer.Name)
		return nil
	},
}

var customerShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a customer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		customer, err := tallyClient.GetCustomer(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(customer)
			return nil
		}
		printCustomer(customer)
		return nil
	},
}

var customerUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a customer's name, email, or phone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &client.UpdateCustomerRequest{}
		if cmd.Flags().Changed("name") {
			v, _ := cmd.Flags().GetString("name")
			req.Name = &v
		}
		if cmd.Flags().Changed("email") {
			v, _ := cmd.Flags().GetString("email")
			req.Email = &v
		}
		if cmd.Flags().Changed("phone") {
			v, _ := cmd.Flags().GetString("phone")
			req.Phone = &v
		}
		if req.Name == nil && req.Email == nil && req.Phone == nil {
			return fmt.Errorf("nothing to update: pass --name, --email, or --phone")
		}

		customer, err := tallyClient.UpdateCustomer(context.Background(), args[0], req)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(customer)
			return nil
		}
		fmt.Printf("customer %s updated\n", ui.RenderAccent(customer.ID))
		return nil
	},
}

var customerLookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Find a customer by email or phone",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		phone, _ := cmd.Flags().GetString("phone")
		forceFast, _ := cmd.Flags().GetBool("force-fast")

		if (email == "") == (phone == "") {
			return fmt.Errorf("exactly one of --email or --phone is required")
		}

		resp, err := tallyClient.LookupCustomer(context.Background(), email, phone, forceFast)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(resp)
			return nil
		}
		printCustomer(resp.Customer)
		fmt.Printf("Path:       %s\n", ui.RenderMuted(resp.Path))
		return nil
	},
}

var customerStatsCmd = &cobra.Command{
	Use:   "stats <id>",
	Short: "Show the lifetime spend rollup for a customer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		row, err := tallyClient.CustomerRollup(context.Background(), args[0])
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

func printCustomer(c *model.Customer) {
	fmt.Printf("ID:         %s\n", ui.RenderAccent(c.ID))
	fmt.Printf("Name:       %s\n", c.Name)
	if c.Email != "" {
		fmt.Printf("Email:      %s\n", c.Email)
	}
	if c.Phone != "" {
		fmt.Printf("Phone:      %s\n", c.Phone)
	}
	fmt.Printf("Created At: %s\n", c.CreatedAt.Format(time.RFC3339))
}

func init() {
	customerAddCmd.Flags().String("email", "", "email address")
	customerAddCmd.Flags().String("phone", "", "phone number")
	_ = customerAddCmd.MarkFlagRequired("email")

	customerUpdateCmd.Flags().String("name", "", "new name")
	customerUpdateCmd.Flags().String("email", "", "new email address")
	customerUpdateCmd.Flags().String("phone", "", "new phone number")

	customerLookupCmd.Flags().String("email", "", "email address to look up")
	customerLookupCmd.Flags().String("phone", "", "phone number to look up")
	customerLookupCmd.Flags().Bool("force-fast", false, "require the digest index path (no scan fallback)")

	customerCmd.AddCommand(customerAddCmd, customerShowCmd, customerUpdateCmd, customerLookupCmd, customerStatsCmd)
}
