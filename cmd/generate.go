package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"invoicer/internal/clients"
	"invoicer/internal/config"
	"invoicer/internal/invoice"
	"invoicer/internal/logger"
	"invoicer/internal/money"
	"invoicer/internal/pdf"
	"invoicer/internal/sheets"
	"invoicer/internal/store"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an invoice PDF, upload it and append it to the ledger",
	Long: `Generate one invoice end to end: validate the line items, compute
totals (forward tax, or reverse tax when --total is given), allocate the
next invoice number from the ledger (or validate a manually supplied one),
render the PDF, upload it to document storage and append a row to the
ledger spreadsheet.

Line items come from a CSV file with the columns
Description, Units, Qty, Rate. Rows with a blank description or invalid
numbers are dropped.

Client details can be given fully on the command line, or just the name of
a saved profile from the client directory (see "invoicer clients").

Required environment variables:
  SPREADSHEET_ID - ledger spreadsheet ID or URL
  GOOGLE_APPLICATION_CREDENTIALS - service account JSON file path, OR
  GOOGLE_CREDENTIALS - inline JSON credentials`,
	Example: `  # Forward tax at the configured default rate
  invoicer generate --client "Acme NV" --items items.csv --due 2026-09-15

  # Reverse tax: back the subtotal out of a tax-inclusive total
  invoicer generate --client "Acme NV" --items items.csv --due 2026-09-15 \
    --total 140.00 --tax-rate 12

  # Manual invoice number, marked paid
  invoicer generate --client "Acme NV" --items items.csv --due 2026-09-15 \
    --number INV-2026-07 --status Paid`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().String("client", "", "Client name (looked up in the directory unless --address is given)")
	generateCmd.Flags().String("company", "", "Client company name")
	generateCmd.Flags().String("address", "", "Client address")
	generateCmd.Flags().String("phone", "", "Client phone number")
	generateCmd.Flags().Bool("save-client", false, "Save the given client details to the directory")
	generateCmd.Flags().StringP("items", "i", "", "CSV file with line items (Description, Units, Qty, Rate)")
	generateCmd.Flags().String("tax-rate", "", "Tax rate percentage (default from DEFAULT_TAX_RATE)")
	generateCmd.Flags().String("total", "", "Tax-inclusive total: switches to reverse tax mode")
	generateCmd.Flags().String("number", "", "Manual invoice number (default: allocated from the ledger)")
	generateCmd.Flags().String("date", "", "Invoice date, YYYY-MM-DD (default: today)")
	generateCmd.Flags().String("due", "", "Payment due date, YYYY-MM-DD")
	generateCmd.Flags().String("status", string(invoice.StatusUnpaid), "Invoice status: Unpaid or Paid")
	generateCmd.Flags().Int("timeout", 120, "Overall timeout in seconds for external calls")

	_ = generateCmd.MarkFlagRequired("client")
	_ = generateCmd.MarkFlagRequired("items")
	_ = generateCmd.MarkFlagRequired("due")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("generate")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	req, timeoutSecs, err := buildRequest(cmd, cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	sheetsService, err := sheets.NewService(ctx, cfg.SpreadsheetID)
	if err != nil {
		return err
	}

	// Resolve the client from the directory when only a name was given.
	if req.Client.Address == "" {
		profile, err := lookupClient(ctx, sheetsService, cfg, req.Client.Name)
		if err != nil {
			return err
		}
		req.Client = invoice.Client(profile)
	} else if saveClient, _ := cmd.Flags().GetBool("save-client"); saveClient {
		directory := clients.NewDirectory(sheetsService, cfg.ClientsSheet)
		if err := directory.Ensure(ctx); err != nil {
			return err
		}
		if err := directory.Add(ctx, clients.Profile(req.Client)); err != nil && !errors.Is(err, clients.ErrDuplicateName) {
			return err
		}
	}

	documentStore, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}

	workflow := invoice.NewWorkflow(
		pdf.NewRenderer(pdf.Company{
			Name:         cfg.CompanyName,
			AddressLines: cfg.CompanyAddress,
			Contact:      cfg.CompanyContact,
			FooterLines:  cfg.InvoiceFooter,
			BankLines:    cfg.BankInfo,
		}),
		documentStore,
		sheets.NewLedger(sheetsService, cfg.LedgerSheet),
		invoice.WorkflowConfig{
			Currency:       cfg.Currency,
			NumberBase:     cfg.InvoiceNumberBase,
			IncludeDueDate: cfg.LedgerIncludeDueDate,
		},
	)

	result, err := workflow.Generate(ctx, req)
	if err != nil {
		return handleGenerateError(err, log)
	}

	fmt.Printf("Invoice %s generated for %s\n", result.Record.Number, result.Record.Client.Name)
	fmt.Printf("  Subtotal: %s\n", result.Record.Totals.Subtotal.Format(cfg.Currency))
	fmt.Printf("  Tax (%s%%): %s\n", result.Record.Totals.TaxRate.String(), result.Record.Totals.Tax.Format(cfg.Currency))
	fmt.Printf("  Total: %s\n", result.Record.Totals.Total.Format(cfg.Currency))
	fmt.Printf("  Status: %s\n", result.Record.Status)
	fmt.Printf("  Document: %s\n", result.DocumentRef)

	return nil
}

func buildRequest(cmd *cobra.Command, cfg *config.Config) (invoice.Request, int, error) {
	clientName, _ := cmd.Flags().GetString("client")
	company, _ := cmd.Flags().GetString("company")
	address, _ := cmd.Flags().GetString("address")
	phone, _ := cmd.Flags().GetString("phone")
	itemsPath, _ := cmd.Flags().GetString("items")
	rateFlag, _ := cmd.Flags().GetString("tax-rate")
	totalFlag, _ := cmd.Flags().GetString("total")
	number, _ := cmd.Flags().GetString("number")
	dateFlag, _ := cmd.Flags().GetString("date")
	dueFlag, _ := cmd.Flags().GetString("due")
	statusFlag, _ := cmd.Flags().GetString("status")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	items, err := invoice.ReadLineItemsFile(itemsPath)
	if err != nil {
		return invoice.Request{}, 0, err
	}

	if rateFlag == "" {
		rateFlag = cfg.DefaultTaxRate
	}
	rate, err := decimal.NewFromString(rateFlag)
	if err != nil {
		return invoice.Request{}, 0, fmt.Errorf("invalid tax rate %q: %w", rateFlag, err)
	}

	issueDate := time.Now()
	if dateFlag != "" {
		issueDate, err = time.Parse("2006-01-02", dateFlag)
		if err != nil {
			return invoice.Request{}, 0, fmt.Errorf("invalid --date %q, expected YYYY-MM-DD: %w", dateFlag, err)
		}
	}
	dueDate, err := time.Parse("2006-01-02", dueFlag)
	if err != nil {
		return invoice.Request{}, 0, fmt.Errorf("invalid --due %q, expected YYYY-MM-DD: %w", dueFlag, err)
	}

	status, ok := invoice.ParseStatus(statusFlag)
	if !ok || status == invoice.StatusLate {
		return invoice.Request{}, 0, fmt.Errorf("invalid --status %q, expected Unpaid or Paid", statusFlag)
	}

	req := invoice.Request{
		Client:       invoice.Client{Name: clientName, Company: company, Address: address, Phone: phone},
		Items:        items,
		TaxRate:      rate,
		IssueDate:    issueDate,
		DueDate:      dueDate,
		Status:       status,
		ManualNumber: number,
	}

	if totalFlag != "" {
		total, err := money.Parse(totalFlag)
		if err != nil {
			return invoice.Request{}, 0, fmt.Errorf("invalid --total: %w", err)
		}
		req.ReverseTotal = &total
	}

	return req, timeoutSecs, nil
}

func lookupClient(ctx context.Context, svc *sheets.Service, cfg *config.Config, name string) (clients.Profile, error) {
	directory := clients.NewDirectory(svc, cfg.ClientsSheet)
	if err := directory.Ensure(ctx); err != nil {
		return clients.Profile{}, err
	}
	profile, err := directory.Get(ctx, name)
	if err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			return clients.Profile{}, fmt.Errorf("client %q is not in the directory; pass --address (and optionally --company, --phone), or add the client first with \"invoicer clients add\"", name)
		}
		return clients.Profile{}, err
	}
	return profile, nil
}

func buildStore(ctx context.Context, cfg *config.Config) (invoice.DocumentStore, error) {
	switch cfg.StorageBackend {
	case config.BackendS3:
		return store.NewMinioStore(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL)
	default:
		return store.NewDriveStore(ctx, cfg.DriveParentFolderID)
	}
}

// signalContext creates a context with timeout and SIGINT/SIGTERM handling.
func signalContext(timeout time.Duration, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// handleGenerateError maps workflow failures to actionable messages.
func handleGenerateError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Invoice generation failed")

	var stageErr *invoice.StageError
	if errors.As(err, &stageErr) && stageErr.PendingRef != "" {
		return fmt.Errorf("the ledger append failed and the uploaded document could not be removed.\n"+
			"Delete it manually or re-log it: %s\nOriginal error: %w", stageErr.PendingRef, err)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("invoice generation timed out; try increasing --timeout")
	case errors.Is(err, invoice.ErrNoLineItems):
		return fmt.Errorf("no valid line items: every row needs a description, positive units and quantity, and a non-negative rate")
	case errors.Is(err, invoice.ErrInvalidRate):
		return fmt.Errorf("tax rate must be a non-negative percentage")
	case errors.Is(err, invoice.ErrEmptyInvoiceNumber):
		return fmt.Errorf("--number must not be blank")
	case errors.Is(err, invoice.ErrNumberConflict):
		return fmt.Errorf("the invoice number is already in the ledger; rerun to allocate a fresh one, or pick a different --number")
	case errors.Is(err, invoice.ErrTransientIO):
		return fmt.Errorf("the ledger could not be read after several attempts; check connectivity and rerun: %w", err)
	default:
		return err
	}
}
