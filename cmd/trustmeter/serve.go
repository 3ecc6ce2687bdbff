package main

import (
	"context"

	"github.com/artpar/trustmeter/bootstrap"
	"github.com/spf13/cobra"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the metering server",
	Long: `Start the trustmeter HTTP server.

The server will:
  - Load configuration from trustmeter.yaml (or --config)
  - Or load configuration from TRUSTMETER_* environment variables
  - Open the database and run migrations
  - Connect to the chain node if chain.rpc_url is set
  - Serve the wallet auth, catalog, usage and settlement API

Environment variables (for Docker deployments):
  TRUSTMETER_DATABASE_DRIVER        - sqlite, postgres or memory
  TRUSTMETER_DATABASE_DSN           - Database path or URL (default: trustmeter.db)
  TRUSTMETER_SERVER_PORT            - Server port (default: 8080)
  TRUSTMETER_CHAIN_RPC_URL          - Ethereum JSON-RPC endpoint
  TRUSTMETER_CHAIN_SETTLEMENT_MODE  - direct or contract
  TRUSTMETER_LOG_LEVEL              - debug, info, warn, error

Examples:
  trustmeter serve
  trustmeter serve --config /etc/trustmeter/config.yaml
  trustmeter serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.New(context.Background(), bootstrap.Options{
		ConfigPath: cfgFile,
		Watch:      hotReload,
	})
	if err != nil {
		return err
	}
	return app.Run()
}
