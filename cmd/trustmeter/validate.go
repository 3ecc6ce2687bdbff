package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/artpar/trustmeter/bootstrap"
	"github.com/artpar/trustmeter/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the trustmeter configuration file.

Checks:
  - YAML syntax is valid
  - Required fields are present
  - Database opens and migrates (optional)
  - Chain node is reachable (optional)

Examples:
  trustmeter validate
  trustmeter validate --config /etc/trustmeter/config.yaml --check-database --check-chain`,
	RunE: runValidate,
}

var (
	validateCheckDatabase bool
	validateCheckChain    bool
)

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckDatabase, "check-database", false, "open the database and run migrations")
	validateCmd.Flags().BoolVar(&validateCheckChain, "check-chain", false, "check that the chain node is reachable")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating %s...\n\n", cfgFile)

	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Fprintf(out, "  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Fprintf(out, "  %s Config file exists\n", checkMark)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(out, "  %s Config syntax valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s Config syntax valid\n", checkMark)

	fmt.Fprintf(out, "  %s Listen: %s\n", checkMark, cfg.Addr())
	fmt.Fprintf(out, "  %s Database: %s (%s)\n", checkMark, cfg.Database.DSN, cfg.Database.Driver)
	fmt.Fprintf(out, "  %s Sign-in domain: %s (chain %d)\n", checkMark, cfg.Auth.Domain, cfg.Auth.ChainID)
	fmt.Fprintf(out, "  %s Settlement mode: %s\n", checkMark, cfg.Chain.SettlementMode)
	if cfg.Chain.RPCURL == "" {
		fmt.Fprintf(out, "  %s Chain node: not configured, settlements cannot be confirmed\n", crossMark)
	}

	var failed bool
	if validateCheckDatabase {
		if err := checkDatabase(cfg.Database); err != nil {
			fmt.Fprintf(out, "  %s Database opens\n", crossMark)
			fmt.Fprintf(out, "      Error: %v\n", err)
			failed = true
		} else {
			fmt.Fprintf(out, "  %s Database opens\n", checkMark)
		}
	}

	if validateCheckChain && cfg.Chain.RPCURL != "" {
		if err := checkChain(cfg); err != nil {
			fmt.Fprintf(out, "  %s Chain node reachable\n", crossMark)
			fmt.Fprintf(out, "      Error: %v\n", err)
			failed = true
		} else {
			fmt.Fprintf(out, "  %s Chain node reachable\n", checkMark)
		}
	}

	fmt.Fprintln(out)
	if failed {
		return fmt.Errorf("configuration checks failed")
	}
	fmt.Fprintln(out, "Configuration is valid.")
	return nil
}

func checkDatabase(cfg config.DatabaseConfig) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stores, err := bootstrap.OpenStores(ctx, cfg, zerolog.Nop())
	if err != nil {
		return err
	}
	defer stores.Close()
	if stores.Pinger != nil {
		return stores.Pinger.Ping(ctx)
	}
	return nil
}

func checkChain(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Chain.Timeout)
	defer cancel()

	chain, err := bootstrap.OpenChain(ctx, cfg.Chain, cfg.Auth.ChainID, zerolog.Nop())
	if err != nil {
		return err
	}
	defer chain.Close()
	if chain.Pinger != nil {
		return chain.Pinger.Ping(ctx)
	}
	return nil
}
