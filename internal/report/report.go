// Package report derives summaries from already persisted records. Every
// function is pure: the same input always yields the same output.
package report

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"motopos/backend/internal/domain"
)

// LowStockThreshold is exclusive: a part is low when stock < LowStockThreshold.
const LowStockThreshold = 10

const (
	IssueMissingDebt    = "missing_debt"
	IssueAmountMismatch = "amount_mismatch"
	IssueUnexpectedDebt = "unexpected_debt"
)

// ProfitMargin returns profit as a percentage of revenue rounded to two
// decimals, or 0 when there is no revenue.
func ProfitMargin(profit, revenue int64) float64 {
	if revenue == 0 {
		return 0
	}
	margin, _ := decimal.NewFromInt(profit).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(revenue)).
		Round(2).
		Float64()
	return margin
}

type salesAcc struct {
	row domain.DailySalesRow
}

func (a *salesAcc) add(sale domain.Sale) {
	a.row.SaleCount++
	a.row.Revenue += sale.Total
	a.row.Discount += sale.Discount
	a.row.Outstanding += sale.RemainingAmount
	for _, item := range sale.Items {
		a.row.Cost += item.LineCost()
	}
}

func (a *salesAcc) finish() domain.DailySalesRow {
	row := a.row
	row.Profit = row.Revenue - row.Cost
	row.ProfitMargin = ProfitMargin(row.Profit, row.Revenue)
	return row
}

// AggregateSales groups sales by calendar day in loc and by category and
// payment method, and totals the cash ledger.
func AggregateSales(sales []domain.Sale, ledger []domain.CashLedgerEntry, loc *time.Location) domain.SalesReport {
	if loc == nil {
		loc = time.UTC
	}

	days := map[string]*salesAcc{}
	categories := map[string]*domain.CategorySalesRow{}
	methods := map[domain.PaymentMethod]*domain.PaymentMethodRow{}
	var totals salesAcc

	for _, sale := range sales {
		day := sale.SaleTime.In(loc).Format(time.DateOnly)
		acc, ok := days[day]
		if !ok {
			acc = &salesAcc{row: domain.DailySalesRow{Date: day}}
			days[day] = acc
		}
		acc.add(sale)
		totals.add(sale)

		m, ok := methods[sale.PaymentMethod]
		if !ok {
			m = &domain.PaymentMethodRow{PaymentMethod: sale.PaymentMethod}
			methods[sale.PaymentMethod] = m
		}
		m.SaleCount++
		m.Total += sale.Total

		shares := allocateDiscount(sale)
		for i, item := range sale.Items {
			name := item.Category
			if name == "" {
				name = "uncategorized"
			}
			c, ok := categories[name]
			if !ok {
				c = &domain.CategorySalesRow{Category: name}
				categories[name] = c
			}
			c.Quantity += item.Quantity
			c.Revenue += item.LineTotal() - shares[i]
			c.Discount += shares[i]
			c.Cost += item.LineCost()
		}
	}

	report := domain.SalesReport{
		Days:       make([]domain.DailySalesRow, 0, len(days)),
		Categories: make([]domain.CategorySalesRow, 0, len(categories)),
		ByPayment:  make([]domain.PaymentMethodRow, 0, len(methods)),
		Totals:     totals.finish(),
		Ledger:     SummarizeLedger(ledger),
	}
	for _, acc := range days {
		report.Days = append(report.Days, acc.finish())
	}
	slices.SortFunc(report.Days, func(a, b domain.DailySalesRow) int {
		return cmp.Compare(a.Date, b.Date)
	})

	for _, c := range categories {
		row := *c
		row.Profit = row.Revenue - row.Cost
		report.Categories = append(report.Categories, row)
	}
	slices.SortFunc(report.Categories, func(a, b domain.CategorySalesRow) int {
		if a.Revenue != b.Revenue {
			return cmp.Compare(b.Revenue, a.Revenue)
		}
		return cmp.Compare(a.Category, b.Category)
	})

	for _, m := range methods {
		report.ByPayment = append(report.ByPayment, *m)
	}
	slices.SortFunc(report.ByPayment, func(a, b domain.PaymentMethodRow) int {
		return cmp.Compare(a.PaymentMethod, b.PaymentMethod)
	})

	return report
}

func SummarizeLedger(entries []domain.CashLedgerEntry) domain.LedgerSummary {
	var summary domain.LedgerSummary
	for _, e := range entries {
		switch e.Type {
		case domain.LedgerIncome:
			summary.Income += e.Amount
		case domain.LedgerExpense:
			summary.Expense += e.Amount
		}
	}
	summary.Net = summary.Income - summary.Expense
	return summary
}

// ValueInventory values a branch's stock at retail price. Parts without a
// price at the branch are not stocked there and are skipped.
func ValueInventory(parts []domain.Part, branchID string) domain.InventoryReport {
	report := domain.InventoryReport{BranchID: branchID, LowStock: []domain.LowStockItem{}}
	for _, p := range parts {
		if !p.Active {
			continue
		}
		price, ok := p.PriceFor(branchID)
		if !ok {
			continue
		}
		stock := p.StockAt(branchID)
		report.PartCount++
		report.TotalUnits += stock
		report.TotalValue += int64(stock) * price.RetailPrice
		if stock < LowStockThreshold {
			report.LowStock = append(report.LowStock, domain.LowStockItem{
				PartID:   p.ID,
				SKU:      p.SKU,
				Name:     p.Name,
				Category: p.Category,
				Stock:    stock,
			})
		}
	}
	slices.SortFunc(report.LowStock, func(a, b domain.LowStockItem) int {
		if a.Stock != b.Stock {
			return cmp.Compare(a.Stock, b.Stock)
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return report
}

// Reconcile compares each sale's outstanding balance with the debt ledger.
// Cancelled debts are ignored.
func Reconcile(sales []domain.Sale, debts []domain.CustomerDebt) domain.ReconciliationReport {
	bySale := map[string][]domain.CustomerDebt{}
	for _, d := range debts {
		if d.SaleID == "" || d.Status == domain.DebtCancelled {
			continue
		}
		bySale[d.SaleID] = append(bySale[d.SaleID], d)
	}

	report := domain.ReconciliationReport{Issues: []domain.ReconciliationIssue{}}
	for _, sale := range sales {
		linked := bySale[sale.ID]
		owed := sale.RemainingAmount > 0 && !sale.Customer.IsWalkIn()

		if !owed {
			for _, d := range linked {
				report.Issues = append(report.Issues, domain.ReconciliationIssue{
					SaleID:        sale.ID,
					CustomerID:    d.CustomerID,
					CustomerName:  d.CustomerName,
					SaleRemaining: sale.RemainingAmount,
					DebtID:        d.ID,
					DebtTotal:     d.TotalAmount,
					Issue:         IssueUnexpectedDebt,
				})
			}
			continue
		}

		report.SalesChecked++
		if len(linked) == 0 {
			report.Issues = append(report.Issues, domain.ReconciliationIssue{
				SaleID:        sale.ID,
				CustomerID:    sale.Customer.ID,
				CustomerName:  sale.Customer.Name,
				SaleRemaining: sale.RemainingAmount,
				Issue:         IssueMissingDebt,
			})
			continue
		}

		var debtTotal int64
		for _, d := range linked {
			debtTotal += d.TotalAmount
		}
		if debtTotal != sale.RemainingAmount {
			report.Issues = append(report.Issues, domain.ReconciliationIssue{
				SaleID:        sale.ID,
				CustomerID:    sale.Customer.ID,
				CustomerName:  sale.Customer.Name,
				SaleRemaining: sale.RemainingAmount,
				DebtID:        linked[0].ID,
				DebtTotal:     debtTotal,
				Issue:         IssueAmountMismatch,
			})
		}
	}
	slices.SortFunc(report.Issues, func(a, b domain.ReconciliationIssue) int {
		if a.SaleID != b.SaleID {
			return cmp.Compare(a.SaleID, b.SaleID)
		}
		return cmp.Compare(a.DebtID, b.DebtID)
	})
	return report
}

// allocateDiscount spreads the order-level discount over the sale's lines in
// proportion to their totals, so category revenue sums to sale totals. The
// units lost to flooring go to the lines with the largest remainders.
func allocateDiscount(sale domain.Sale) []int64 {
	shares := make([]int64, len(sale.Items))
	var sum int64
	for _, item := range sale.Items {
		sum += item.LineTotal()
	}
	discount := sum - sale.Total
	if discount <= 0 || sum <= 0 {
		return shares
	}

	total := decimal.NewFromInt(sum)
	amount := decimal.NewFromInt(discount)
	fractions := make([]decimal.Decimal, len(sale.Items))
	allocated := int64(0)
	for i, item := range sale.Items {
		exact := amount.Mul(decimal.NewFromInt(item.LineTotal())).Div(total)
		floor := exact.Floor()
		shares[i] = floor.IntPart()
		fractions[i] = exact.Sub(floor)
		allocated += shares[i]
	}

	order := make([]int, len(sale.Items))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return fractions[b].Cmp(fractions[a])
	})
	for _, i := range order[:discount-allocated] {
		shares[i]++
	}
	return shares
}
