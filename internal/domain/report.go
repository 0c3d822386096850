package domain

type DailySalesRow struct {
	Date         string  `json:"date"`
	SaleCount    int     `json:"sale_count"`
	Revenue      int64   `json:"revenue"`
	Cost         int64   `json:"cost"`
	Profit       int64   `json:"profit"`
	ProfitMargin float64 `json:"profit_margin"`
	Discount     int64   `json:"discount"`
	Outstanding  int64   `json:"outstanding"`
}

type CategorySalesRow struct {
	Category string `json:"category"`
	Quantity int    `json:"quantity"`
	Revenue  int64  `json:"revenue"`
	// Discount is this category's share of order-level discounts; Revenue
	// is already net of it.
	Discount int64 `json:"discount"`
	Cost     int64 `json:"cost"`
	Profit   int64 `json:"profit"`
}

type PaymentMethodRow struct {
	PaymentMethod PaymentMethod `json:"payment_method"`
	SaleCount     int           `json:"sale_count"`
	Total         int64         `json:"total"`
}

type LedgerSummary struct {
	Income  int64 `json:"income"`
	Expense int64 `json:"expense"`
	Net     int64 `json:"net"`
}

type SalesReport struct {
	BranchID   string             `json:"branch_id"`
	From       string             `json:"from"`
	To         string             `json:"to"`
	Days       []DailySalesRow    `json:"days"`
	Categories []CategorySalesRow `json:"categories"`
	ByPayment  []PaymentMethodRow `json:"by_payment"`
	Totals     DailySalesRow      `json:"totals"`
	Ledger     LedgerSummary      `json:"ledger"`
}

type LowStockItem struct {
	PartID   string `json:"part_id"`
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Stock    int    `json:"stock"`
}

type InventoryReport struct {
	BranchID   string         `json:"branch_id"`
	PartCount  int            `json:"part_count"`
	TotalUnits int            `json:"total_units"`
	TotalValue int64          `json:"total_value"`
	LowStock   []LowStockItem `json:"low_stock"`
}

// ReconciliationIssue flags a sale whose outstanding balance does not match
// the debt ledger.
type ReconciliationIssue struct {
	SaleID        string `json:"sale_id"`
	CustomerID    string `json:"customer_id"`
	CustomerName  string `json:"customer_name"`
	SaleRemaining int64  `json:"sale_remaining"`
	DebtID        string `json:"debt_id,omitempty"`
	DebtTotal     int64  `json:"debt_total"`
	Issue         string `json:"issue"`
}

type ReconciliationReport struct {
	BranchID     string                `json:"branch_id"`
	From         string                `json:"from"`
	To           string                `json:"to"`
	SalesChecked int                   `json:"sales_checked"`
	Issues       []ReconciliationIssue `json:"issues"`
}
