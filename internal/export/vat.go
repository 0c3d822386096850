package export

import (
	"cmp"
	"encoding/xml"
	"io"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"motopos/backend/internal/domain"
)

// VATRatePercent is the flat output VAT applied to every invoice.
const VATRatePercent = 10

var vatDivisor = decimal.NewFromInt(100 + VATRatePercent).Div(decimal.NewFromInt(100))

const (
	InvoiceSale      = "sale"
	InvoiceWorkOrder = "work_order"
)

type VATDocument struct {
	XMLName  xml.Name     `xml:"VATExport"`
	BranchID string       `xml:"branch,attr"`
	From     string       `xml:"from,attr"`
	To       string       `xml:"to,attr"`
	Rate     int          `xml:"ratePercent,attr"`
	Invoices []VATInvoice `xml:"Invoices>Invoice"`
	Summary  VATSummary   `xml:"Summary"`
}

type VATInvoice struct {
	Kind            string `xml:"kind,attr"`
	ID              string `xml:"id,attr"`
	Date            string `xml:"date,attr"`
	CustomerName    string `xml:"CustomerName,omitempty"`
	CustomerPhone   string `xml:"CustomerPhone,omitempty"`
	Total           int64  `xml:"Total"`
	AmountBeforeVAT int64  `xml:"AmountBeforeVAT"`
	VATAmount       int64  `xml:"VATAmount"`
}

type VATSummary struct {
	InvoiceCount    int   `xml:"InvoiceCount"`
	Total           int64 `xml:"Total"`
	AmountBeforeVAT int64 `xml:"AmountBeforeVAT"`
	VATAmount       int64 `xml:"VATAmount"`
}

// SplitVAT splits a VAT-inclusive total into its net amount and VAT. The net
// amount is rounded half away from zero and VAT takes the remainder, so the
// two always add back up to total.
func SplitVAT(total int64) (before, vat int64) {
	before = decimal.NewFromInt(total).Div(vatDivisor).Round(0).IntPart()
	return before, total - before
}

// BuildVATDocument lists sales and finished work orders as invoices ordered
// by date then id. Cancelled or unfinished work orders are left out.
func BuildVATDocument(branchID string, from, to time.Time, sales []domain.Sale, orders []domain.WorkOrder, loc *time.Location) VATDocument {
	if loc == nil {
		loc = time.UTC
	}
	doc := VATDocument{
		BranchID: branchID,
		From:     formatBound(from, loc),
		To:       formatBound(to, loc),
		Rate:     VATRatePercent,
		Invoices: make([]VATInvoice, 0, len(sales)+len(orders)),
	}

	type dated struct {
		at  time.Time
		inv VATInvoice
	}
	rows := make([]dated, 0, len(sales)+len(orders))

	for _, sale := range sales {
		before, vat := SplitVAT(sale.Total)
		rows = append(rows, dated{at: sale.SaleTime, inv: VATInvoice{
			Kind:            InvoiceSale,
			ID:              sale.ID,
			Date:            sale.SaleTime.In(loc).Format(time.DateOnly),
			CustomerName:    sale.Customer.Name,
			CustomerPhone:   sale.Customer.Phone,
			Total:           sale.Total,
			AmountBeforeVAT: before,
			VATAmount:       vat,
		}})
	}
	for _, wo := range orders {
		if wo.Status != domain.WorkOrderCompleted && wo.Status != domain.WorkOrderDelivered {
			continue
		}
		before, vat := SplitVAT(wo.Total)
		rows = append(rows, dated{at: wo.UpdatedAt, inv: VATInvoice{
			Kind:            InvoiceWorkOrder,
			ID:              wo.ID,
			Date:            wo.UpdatedAt.In(loc).Format(time.DateOnly),
			CustomerName:    wo.Customer.Name,
			CustomerPhone:   wo.Customer.Phone,
			Total:           wo.Total,
			AmountBeforeVAT: before,
			VATAmount:       vat,
		}})
	}

	slices.SortFunc(rows, func(a, b dated) int {
		if c := a.at.Compare(b.at); c != 0 {
			return c
		}
		return cmp.Compare(a.inv.ID, b.inv.ID)
	})

	for _, row := range rows {
		doc.Invoices = append(doc.Invoices, row.inv)
		doc.Summary.InvoiceCount++
		doc.Summary.Total += row.inv.Total
		doc.Summary.AmountBeforeVAT += row.inv.AmountBeforeVAT
		doc.Summary.VATAmount += row.inv.VATAmount
	}
	return doc
}

func WriteVATXML(w io.Writer, doc VATDocument) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func formatBound(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(time.DateOnly)
}
