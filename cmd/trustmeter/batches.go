package main

import (
	"context"
	"fmt"

	"github.com/artpar/trustmeter/domain/usage"
	"github.com/artpar/trustmeter/domain/wei"
	"github.com/spf13/cobra"
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "Inspect settlement batches",
}

var batchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List closed and settled batches",
	Long: `List settlement batches, newest first.

Examples:
  trustmeter batches list
  trustmeter batches list --state closed
  trustmeter batches list --wallet 0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B --limit 20`,
	RunE: runBatchesList,
}

var (
	batchesWallet string
	batchesState  string
	batchesAPI    string
	batchesLimit  int
)

func init() {
	rootCmd.AddCommand(batchesCmd)
	batchesCmd.AddCommand(batchesListCmd)

	batchesListCmd.Flags().StringVar(&batchesWallet, "wallet", "", "only batches paid by this wallet")
	batchesListCmd.Flags().StringVar(&batchesState, "state", "", "closed or settled")
	batchesListCmd.Flags().StringVar(&batchesAPI, "api", "", "only batches for this API ID")
	batchesListCmd.Flags().IntVar(&batchesLimit, "limit", usage.DefaultListLimit, "maximum number of batches")
}

func runBatchesList(cmd *cobra.Command, args []string) error {
	f := usage.Filter{APIID: batchesAPI, Limit: batchesLimit}
	switch usage.State(batchesState) {
	case "":
	case usage.StateClosed, usage.StateSettled:
		f.State = usage.State(batchesState)
	default:
		return fmt.Errorf("--state must be 'closed' or 'settled', got %q", batchesState)
	}

	ctx := context.Background()
	stores, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer stores.Close()

	if batchesWallet != "" {
		u, err := lookupWallet(ctx, stores.Users, batchesWallet)
		if err != nil {
			return err
		}
		f.UserID = u.ID
	}

	periods, err := stores.Usage.List(ctx, f)
	if err != nil {
		return fmt.Errorf("failed to list batches: %w", err)
	}

	w := newTable(cmd.OutOrStdout())
	fmt.Fprintln(w, "BATCH\tSTATE\tAPI\tREQUESTS\tAMOUNT (WEI)\tCLOSED\tSETTLED\tTX")
	shown := 0
	for _, p := range periods {
		if p.BatchID == "" {
			continue
		}
		tx := p.SettleTxHash
		if tx == "" {
			tx = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			p.BatchID, p.State, p.APIID, p.RequestCount, wei.String(p.PendingPayment),
			formatTime(p.ClosedAt), formatTime(p.SettledAt), tx)
		shown++
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if shown == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No batches found.")
	}
	return nil
}
