package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"invoicer/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "invoicer",
	Short: "Invoicer - generate, store and log PDF invoices",
	Long: `Invoicer is a small business invoicing tool. It computes invoice
totals with a configurable tax rate (including a reverse tax mode that
backs the subtotal out of a tax-inclusive total), renders a PDF, uploads
it to document storage (Google Drive or an S3-compatible bucket) and
appends one row to the invoice ledger spreadsheet.

Configuration comes from the environment (a .env file is loaded when
present). The ledger spreadsheet is identified by SPREADSHEET_ID and
Google credentials by GOOGLE_APPLICATION_CREDENTIALS or
GOOGLE_CREDENTIALS.`,
	Version: version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		l := logger.WithComponent("cmd")
		l.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
