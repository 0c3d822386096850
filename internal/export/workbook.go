package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"motopos/backend/internal/domain"
)

const (
	SheetDaily      = "Daily"
	SheetCategories = "Categories"
)

// WriteSalesWorkbook renders a sales report as an .xlsx file with one sheet
// of daily rows and one of category rows.
func WriteSalesWorkbook(w io.Writer, report domain.SalesReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetDaily); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetCategories); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	daily := [][]any{{"Date", "Sales", "Revenue", "Cost", "Profit", "Margin %", "Discount", "Outstanding"}}
	for _, d := range report.Days {
		daily = append(daily, []any{d.Date, d.SaleCount, d.Revenue, d.Cost, d.Profit, d.ProfitMargin, d.Discount, d.Outstanding})
	}
	t := report.Totals
	daily = append(daily, []any{"Total", t.SaleCount, t.Revenue, t.Cost, t.Profit, t.ProfitMargin, t.Discount, t.Outstanding})
	if err := writeRows(f, SheetDaily, daily); err != nil {
		return err
	}

	categories := [][]any{{"Category", "Quantity", "Discount", "Revenue", "Cost", "Profit"}}
	for _, c := range report.Categories {
		categories = append(categories, []any{c.Category, c.Quantity, c.Discount, c.Revenue, c.Cost, c.Profit})
	}
	if err := writeRows(f, SheetCategories, categories); err != nil {
		return err
	}

	if err := f.SetColWidth(SheetDaily, "A", "A", 14); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetCategories, "A", "A", 20); err != nil {
		return err
	}

	_, err := f.WriteTo(w)
	return err
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
