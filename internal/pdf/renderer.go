// Package pdf renders finalized invoice records into paginated PDF
// documents. The renderer is pure with respect to the record: the figures
// on the page come straight from the record's totals, formatted to two
// decimals with the currency suffix.
package pdf

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/rs/zerolog"

	"invoicer/internal/invoice"
	"invoicer/internal/logger"
)

// Company is the issuing party's identity and boilerplate, printed on
// every invoice. It comes from configuration, not from the record.
type Company struct {
	Name         string
	AddressLines []string
	Contact      string
	FooterLines  []string
	BankLines    []string
}

// Renderer draws invoice PDFs. It implements invoice.Renderer.
type Renderer struct {
	company Company
	log     zerolog.Logger
}

// NewRenderer creates a renderer for the given company block.
func NewRenderer(company Company) *Renderer {
	return &Renderer{
		company: company,
		log:     logger.WithComponent("pdf"),
	}
}

// Render produces the PDF bytes for one record.
func (r *Renderer) Render(rec invoice.Record) ([]byte, error) {
	const op = "Render"

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	r.titleBand(pdf)
	r.companyBlock(pdf)
	r.clientBlock(pdf, rec)
	r.itemsTable(pdf, rec)
	r.totalsTable(pdf, rec)
	r.footer(pdf)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.log.Debug().
		Str("invoice_number", rec.Number).
		Int("bytes", buf.Len()).
		Msg("Rendered invoice PDF")

	return buf.Bytes(), nil
}

func (r *Renderer) titleBand(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetXY(0, 12)
	pdf.CellFormat(210, 10, "INVOICE", "", 1, "C", false, 0, "")
	pdf.Line(10, 22, 200, 22)
}

func (r *Renderer) companyBlock(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(10, 25)
	pdf.CellFormat(100, 5, r.company.Name, "", 1, "L", false, 0, "")
	for _, line := range r.company.AddressLines {
		pdf.CellFormat(100, 5, line, "", 1, "L", false, 0, "")
	}
	if r.company.Contact != "" {
		pdf.CellFormat(100, 5, r.company.Contact, "", 1, "L", false, 0, "")
	}
}

func (r *Renderer) clientBlock(pdf *gofpdf.Fpdf, rec invoice.Record) {
	pdf.SetY(50)
	pdf.SetFont("Helvetica", "", 10)

	billTo := "Bill To: " + rec.Client.Name
	if rec.Client.Company != "" {
		billTo += " (" + rec.Client.Company + ")"
	}
	pdf.SetX(10)
	pdf.CellFormat(100, 6, billTo, "", 0, "L", false, 0, "")
	pdf.SetX(130)
	pdf.CellFormat(60, 6, "Invoice #: "+rec.Number, "", 1, "L", false, 0, "")

	pdf.SetX(10)
	pdf.CellFormat(100, 6, rec.Client.Address, "", 0, "L", false, 0, "")
	pdf.SetX(130)
	pdf.CellFormat(60, 6, "Date: "+rec.IssueDate.Format("02-Jan-2006"), "", 1, "L", false, 0, "")

	pdf.SetX(10)
	pdf.CellFormat(100, 6, rec.Client.Phone, "", 0, "L", false, 0, "")
	pdf.SetX(130)
	pdf.CellFormat(60, 6, "Due: "+rec.DueDate.Format("02-Jan-2006"), "", 1, "L", false, 0, "")
}

var itemColWidths = []float64{60, 20, 20, 30, 30}

func (r *Renderer) itemsTable(pdf *gofpdf.Fpdf, rec invoice.Record) {
	pdf.Ln(5)
	pdf.SetFillColor(200, 50, 50)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 10)

	headers := []string{"Description", "Units", "Qty", "Rate", "Total"}
	for i, h := range headers {
		pdf.CellFormat(itemColWidths[i], 6, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(0, 0, 0)
	for _, item := range rec.Items {
		pdf.CellFormat(itemColWidths[0], 6, item.Description, "1", 0, "L", false, 0, "")
		pdf.CellFormat(itemColWidths[1], 6, item.Units.String(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(itemColWidths[2], 6, item.Quantity.String(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(itemColWidths[3], 6, item.Rate.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(itemColWidths[4], 6, item.Total().String(), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
}

func (r *Renderer) totalsTable(pdf *gofpdf.Fpdf, rec invoice.Record) {
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "", 10)

	const labelX, valueX = 110.0, 140.0
	const rowHeight, colWidth = 6.0, 30.0

	pdf.SetX(labelX)
	pdf.CellFormat(colWidth, rowHeight, "Subtotal", "1", 0, "L", false, 0, "")
	pdf.SetX(valueX)
	pdf.CellFormat(colWidth, rowHeight, rec.Totals.Subtotal.Format(rec.Currency), "1", 1, "R", false, 0, "")

	pdf.SetX(labelX)
	pdf.CellFormat(colWidth, rowHeight, fmt.Sprintf("Tax (%s%%)", rec.Totals.TaxRate.String()), "1", 0, "L", false, 0, "")
	pdf.SetX(valueX)
	pdf.CellFormat(colWidth, rowHeight, rec.Totals.Tax.Format(rec.Currency), "1", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.SetX(labelX)
	pdf.CellFormat(colWidth, rowHeight, "Total", "1", 0, "L", true, 0, "")
	pdf.SetX(valueX)
	pdf.CellFormat(colWidth, rowHeight, rec.Totals.Total.Format(rec.Currency), "1", 1, "R", true, 0, "")
}

func (r *Renderer) footer(pdf *gofpdf.Fpdf) {
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 10)
	for _, line := range r.company.FooterLines {
		pdf.CellFormat(0, 5, line, "", 1, "L", false, 0, "")
	}
	if len(r.company.BankLines) > 0 {
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "", 10)
		for _, line := range r.company.BankLines {
			pdf.CellFormat(0, 5, line, "", 1, "L", false, 0, "")
		}
	}
}
