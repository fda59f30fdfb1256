package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/telstar/billing-backend-go/internal/domain/billing"
)

// InvoiceRenderer renders invoices as downloadable PDF documents
type InvoiceRenderer struct {
	companyName string
}

func NewInvoiceRenderer(companyName string) *InvoiceRenderer {
	return &InvoiceRenderer{companyName: companyName}
}

// Render produces the PDF bytes for a single invoice
func (r *InvoiceRenderer) Render(invoice *billing.Invoice, plan *billing.Plan) ([]byte, error) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetTitle(fmt.Sprintf("Invoice %s", invoice.ID), false)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 20)
	doc.Cell(0, 12, r.companyName)
	doc.Ln(14)

	doc.SetFont("Helvetica", "B", 14)
	doc.Cell(0, 8, "INVOICE")
	doc.Ln(12)

	doc.SetFont("Helvetica", "", 11)
	rows := [][2]string{
		{"Invoice ID", invoice.ID},
		{"Date", invoice.Date.Format("02 Jan 2006")},
		{"Customer", invoice.CustomerName},
		{"Plan", plan.Name},
		{"Plan Type", string(invoice.PlanType)},
		{"Units", fmt.Sprintf("%d", invoice.Units)},
		{"Rate Per Unit", plan.RatePerUnit.StringFixed(2)},
		{"Amount", invoice.Amount.StringFixed(2)},
		{"Status", string(invoice.Status)},
	}
	for _, row := range rows {
		doc.SetFont("Helvetica", "B", 11)
		doc.CellFormat(50, 8, row[0], "1", 0, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 11)
		doc.CellFormat(120, 8, row[1], "1", 1, "L", false, 0, "")
	}

	doc.Ln(10)
	doc.SetFont("Helvetica", "I", 9)
	doc.Cell(0, 6, fmt.Sprintf("Generated on %s", time.Now().Format("02 Jan 2006 15:04")))

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
