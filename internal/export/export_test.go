package export

import (
	"bytes"
	"encoding/xml"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"motopos/backend/internal/domain"
)

func TestSplitVAT(t *testing.T) {
	cases := []struct {
		total, before, vat int64
	}{
		{775000, 704545, 70455},
		{1100000, 1000000, 100000},
		{11, 10, 1},
		{0, 0, 0},
		{5, 5, 0}, // 4.545 rounds to 5
	}
	for _, tc := range cases {
		before, vat := SplitVAT(tc.total)
		assert.Equal(t, tc.before, before, "before for %d", tc.total)
		assert.Equal(t, tc.vat, vat, "vat for %d", tc.total)
		assert.Equal(t, tc.total, before+vat)
	}
}

func TestBuildVATDocument(t *testing.T) {
	loc := time.FixedZone("ICT", 7*60*60)
	day := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	sales := []domain.Sale{
		{ID: "sale-b", Total: 1100000, SaleTime: day.Add(2 * time.Hour), Customer: domain.Customer{Name: "Minh"}},
		{ID: "sale-a", Total: 775000, SaleTime: day},
	}
	orders := []domain.WorkOrder{
		{ID: "wo-1", Total: 330000, Status: domain.WorkOrderDelivered, UpdatedAt: day.Add(time.Hour)},
		{ID: "wo-2", Total: 999999, Status: domain.WorkOrderInProgress, UpdatedAt: day},
		{ID: "wo-3", Total: 999999, Status: domain.WorkOrderCancelled, UpdatedAt: day},
	}

	doc := BuildVATDocument("branch-hcm", day, day.Add(24*time.Hour), sales, orders, loc)

	require.Len(t, doc.Invoices, 3)
	assert.Equal(t, []string{"sale-a", "wo-1", "sale-b"}, []string{doc.Invoices[0].ID, doc.Invoices[1].ID, doc.Invoices[2].ID})
	assert.Equal(t, InvoiceWorkOrder, doc.Invoices[1].Kind)
	assert.Equal(t, "2026-03-02", doc.Invoices[0].Date)
	assert.Equal(t, 3, doc.Summary.InvoiceCount)
	assert.Equal(t, int64(775000+330000+1100000), doc.Summary.Total)
	assert.Equal(t, doc.Summary.Total, doc.Summary.AmountBeforeVAT+doc.Summary.VATAmount)
}

func TestWriteVATXMLRoundTrips(t *testing.T) {
	doc := BuildVATDocument("branch-hcm", time.Time{}, time.Time{}, []domain.Sale{
		{ID: "sale-a", Total: 775000, SaleTime: time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)},
	}, nil, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, WriteVATXML(&buf, doc))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("<?xml")))
	assert.Contains(t, buf.String(), `<AmountBeforeVAT>704545</AmountBeforeVAT>`)

	var decoded VATDocument
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "branch-hcm", decoded.BranchID)
	assert.Equal(t, 10, decoded.Rate)
	require.Len(t, decoded.Invoices, 1)
	assert.Equal(t, int64(70455), decoded.Invoices[0].VATAmount)
}

func TestWriteSalesWorkbook(t *testing.T) {
	report := domain.SalesReport{
		Days: []domain.DailySalesRow{
			{Date: "2026-03-01", SaleCount: 1, Revenue: 775000, Cost: 240000, Profit: 535000, ProfitMargin: 69.03},
		},
		Categories: []domain.CategorySalesRow{{Category: "service", Quantity: 1, Revenue: 455000}},
		Totals:     domain.DailySalesRow{SaleCount: 1, Revenue: 775000},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSalesWorkbook(&buf, report))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetDaily, SheetCategories}, f.GetSheetList())

	date, err := f.GetCellValue(SheetDaily, "A2")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", date)

	total, err := f.GetCellValue(SheetDaily, "A3")
	require.NoError(t, err)
	assert.Equal(t, "Total", total)

	revenue, err := f.GetCellValue(SheetCategories, "D2")
	require.NoError(t, err)
	assert.Equal(t, "455000", revenue)
}
