package main

import (
	"context"
	"fmt"

	"github.com/artpar/trustmeter/domain/identity"
	"github.com/artpar/trustmeter/domain/wei"
	"github.com/spf13/cobra"
)

var apisCmd = &cobra.Command{
	Use:   "apis",
	Short: "Inspect registered APIs",
}

var apisListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered APIs and their prices",
	Long: `List every registered API with its owner wallet and per-request price.

Examples:
  trustmeter apis list
  trustmeter apis list --owner 0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B`,
	RunE: runAPIsList,
}

var apisOwner string

func init() {
	rootCmd.AddCommand(apisCmd)
	apisCmd.AddCommand(apisListCmd)

	apisListCmd.Flags().StringVar(&apisOwner, "owner", "", "only APIs owned by this wallet")
}

func runAPIsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	stores, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer stores.Close()

	apis, err := stores.APIs.List(ctx)
	if apisOwner != "" {
		owner, lerr := lookupWallet(ctx, stores.Users, apisOwner)
		if lerr != nil {
			return lerr
		}
		apis, err = stores.APIs.ListByOwner(ctx, owner.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to list apis: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(apis) == 0 {
		fmt.Fprintln(out, "No APIs registered.")
		return nil
	}

	owners := map[string]string{}
	w := newTable(out)
	fmt.Fprintln(w, "ID\tNAME\tPRICE (WEI)\tPRICE (ETH)\tOWNER\tON CHAIN\tCREATED")
	for _, a := range apis {
		addr, ok := owners[a.OwnerID]
		if !ok {
			addr = a.OwnerID
			if u, err := stores.Users.Get(ctx, a.OwnerID); err == nil {
				addr = identity.ChecksumAddress(u.Address)
			}
			owners[a.OwnerID] = addr
		}
		created := a.CreatedAt
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
			a.ID, a.Name, wei.String(a.PricePerRequest), wei.FormatEther(a.PricePerRequest),
			addr, a.ChainMirrored, formatTime(&created))
	}
	return w.Flush()
}
