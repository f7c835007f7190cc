package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"invoicer/internal/config"
	"invoicer/internal/invoice"
	"invoicer/internal/logger"
	"invoicer/internal/sheets"
)

var invoicesCmd = &cobra.Command{
	Use:   "invoices",
	Short: "List the invoice ledger",
	Long: `Read the invoice ledger and print every row. When the ledger
carries the due date column, the Late status is recomputed against
today's date: an unpaid invoice past its due date shows as Late even if
it was logged as Unpaid.`,
	RunE: runInvoices,
}

func init() {
	rootCmd.AddCommand(invoicesCmd)
	invoicesCmd.Flags().Int("timeout", 60, "Timeout in seconds for the ledger read")
}

func runInvoices(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("invoices")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := signalContext(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	svc, err := sheets.NewService(ctx, cfg.SpreadsheetID)
	if err != nil {
		return err
	}

	ledger := sheets.NewLedger(svc, cfg.LedgerSheet)
	if err := ledger.EnsureSchema(ctx, invoice.LedgerColumns(cfg.Currency, cfg.LedgerIncludeDueDate)); err != nil {
		return err
	}
	rows, err := ledger.ListRows(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("The ledger is empty.")
		return nil
	}

	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tINVOICE #\tCLIENT\tAMOUNT\tTAX RATE\tSTATUS\tLINK")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			row.Date, row.Number, row.ClientName, row.Amount, row.TaxRate,
			effectiveStatus(row, now), row.DocumentLink)
	}
	return w.Flush()
}

// effectiveStatus re-derives Late at view time when the row carries a due
// date; rows without one are shown as stored.
func effectiveStatus(row invoice.Row, now time.Time) string {
	status, ok := invoice.ParseStatus(row.Status)
	if !ok {
		return row.Status
	}
	if row.DueDate == "" {
		return string(status)
	}
	dueDate, err := time.Parse("2006-01-02", row.DueDate)
	if err != nil {
		return string(status)
	}
	return string(invoice.DeriveStatus(status, dueDate, now))
}
