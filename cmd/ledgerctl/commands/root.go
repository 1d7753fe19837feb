package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	dbURL      string
	jsonOutput bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Administration tool for the core ledger database",
	Long: `ledgerctl administers the core ledger database out of band of the API
server: applying the schema, loading reference data, and running the
balance reconciliation check.

Commands:
  migrate    - Apply the ledger schema
  seed       - Load currencies, products and system cash accounts
  reconcile  - Compare stored balances against the journal`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", os.Getenv("DATABASE_URL"), "Postgres connection string (defaults to DATABASE_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}
