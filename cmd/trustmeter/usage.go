package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/artpar/trustmeter/domain/usage"
	"github.com/artpar/trustmeter/domain/wei"
	"github.com/artpar/trustmeter/ports"
	"github.com/spf13/cobra"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Inspect metered usage",
}

var usageShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the unsettled usage of a wallet for an API",
	Long: `Show the open request count and pending payment for one wallet and API.

Examples:
  trustmeter usage show --wallet 0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B --api 6f1c...`,
	RunE: runUsageShow,
}

var (
	usageWallet string
	usageAPI    string
)

func init() {
	rootCmd.AddCommand(usageCmd)
	usageCmd.AddCommand(usageShowCmd)

	usageShowCmd.Flags().StringVar(&usageWallet, "wallet", "", "wallet address (required)")
	usageShowCmd.Flags().StringVar(&usageAPI, "api", "", "API ID (required)")
	_ = usageShowCmd.MarkFlagRequired("wallet")
	_ = usageShowCmd.MarkFlagRequired("api")
}

func runUsageShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	stores, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer stores.Close()

	user, err := lookupWallet(ctx, stores.Users, usageWallet)
	if err != nil {
		return err
	}
	api, err := stores.APIs.Get(ctx, usageAPI)
	if errors.Is(err, ports.ErrNotFound) {
		return fmt.Errorf("api not found: %s", usageAPI)
	}
	if err != nil {
		return err
	}

	snap := usage.EmptySnapshot()
	opened := "-"
	p, err := stores.Usage.GetOpen(ctx, user.ID, api.ID)
	switch {
	case err == nil:
		snap = p.Snapshot()
		opened = formatTime(&p.OpenedAt)
	case !errors.Is(err, ports.ErrNotFound):
		return fmt.Errorf("failed to get usage: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage of %s by %s\n\n", api.Name, user.Address)
	fmt.Fprintf(out, "Requests:        %d\n", snap.RequestCount)
	fmt.Fprintf(out, "Pending (wei):   %s\n", wei.String(snap.PendingPayment))
	fmt.Fprintf(out, "Pending (ETH):   %s\n", wei.FormatEther(snap.PendingPayment))
	fmt.Fprintf(out, "Current price:   %s wei\n", wei.String(api.PricePerRequest))
	fmt.Fprintf(out, "Period opened:   %s\n", opened)
	return nil
}
