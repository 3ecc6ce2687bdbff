package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "trustmeter",
	Short: "Wallet-authenticated API metering with on-chain settlement",
	Long: `trustmeter meters API calls per wallet and settles the accrued
balance with an on-chain payment.

Quick start:
  trustmeter serve      # Start the HTTP server

Inspection:
  trustmeter apis list      # Registered APIs and prices
  trustmeter usage show     # Open usage for a wallet and API
  trustmeter batches list   # Settlement batches
  trustmeter validate       # Validate configuration`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "trustmeter.yaml", "config file path")
}
