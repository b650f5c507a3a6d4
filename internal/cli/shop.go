package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newShopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shop",
		Short: "Show balance and owned aircraft",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loggedInClient()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			balance, inventory, err := client.Shop()
			if err != nil {
				return err
			}
			fmt.Printf("balance: %d\n", balance)
			if len(inventory) == 0 {
				fmt.Println("hangar: (empty)")
			} else {
				fmt.Printf("hangar: %s\n", strings.Join(inventory, ", "))
			}
			return nil
		},
	}
}

func newBuyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "buy <aircraft>",
		Short: "Purchase an aircraft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loggedInClient()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			ok, err := client.Buy(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("purchase of %s rejected", args[0])
			}
			fmt.Printf("bought %s\n", args[0])
			return nil
		},
	}
}
