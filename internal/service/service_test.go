package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"motopos/backend/internal/cache"
	"motopos/backend/internal/cart"
	"motopos/backend/internal/checkout"
	"motopos/backend/internal/domain"
	"motopos/backend/internal/store"
	"motopos/backend/internal/store/memory"
)

const (
	branch   = memory.BranchHCM
	terminal = "till-1"
)

var (
	ict       = time.FixedZone("ICT", 7*60*60)
	fixedTime = time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
)

func newTestService() (*Service, *memory.Store) {
	repo := memory.NewSeeded()
	svc := New(repo, Options{
		DefaultBranchID: branch,
		Location:        ict,
		Cache:           cache.NewMemoryReportCache(),
		Now:             func() time.Time { return fixedTime },
	})
	return svc, repo
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func cashierCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "cashier", Role: "cashier"})
}

func mustAddPart(t *testing.T, svc *Service, partID string, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		if _, err := svc.AddPartToCart(cashierCtx(), branch, terminal, CartPartRequest{PartID: partID}); err != nil {
			t.Fatalf("add part %s: %v", partID, err)
		}
	}
}

func stockOf(t *testing.T, repo store.Repository, partID string) int {
	t.Helper()
	part, err := repo.GetPart(context.Background(), partID)
	if err != nil {
		t.Fatalf("get part %s: %v", partID, err)
	}
	return part.StockAt(branch)
}

func TestCheckoutCreatesSaleAndClearsCart(t *testing.T) {
	svc, repo := newTestService()
	ctx := cashierCtx()

	mustAddPart(t, svc, "part-chain-428", 2)
	if _, err := svc.AddServiceToCart(ctx, branch, terminal, CartServiceRequest{Name: "Chain and sprocket fitting", Price: 455000}); err != nil {
		t.Fatalf("add service: %v", err)
	}

	resp, err := svc.Checkout(ctx, branch, terminal, CheckoutRequest{
		Discount:      checkout.Discount{Mode: checkout.DiscountAmount, Value: decimal.NewFromInt(50000)},
		PaymentMethod: domain.PaymentCash,
		PaymentType:   domain.PaymentFull,
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if resp.Sale.Subtotal != 825000 || resp.Sale.Total != 775000 {
		t.Fatalf("unexpected totals subtotal=%d total=%d", resp.Sale.Subtotal, resp.Sale.Total)
	}
	if resp.Sale.PaidAmount != 775000 || resp.Sale.RemainingAmount != 0 {
		t.Fatalf("full payment should leave nothing owed, got paid=%d remaining=%d", resp.Sale.PaidAmount, resp.Sale.RemainingAmount)
	}
	if resp.Sale.CreatedBy != "cashier" {
		t.Fatalf("expected created_by cashier, got %q", resp.Sale.CreatedBy)
	}
	if !resp.CartCleared || len(svc.Cart(ctx, branch, terminal).Items) != 0 {
		t.Fatalf("expected cart cleared after successful checkout")
	}
	if got := stockOf(t, repo, "part-chain-428"); got != 38 {
		t.Fatalf("expected stock 38, got %d", got)
	}

	logs, err := svc.ListAuditLogs(ctx, branch, time.Time{}, time.Time{}, 10)
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) == 0 || logs[0].Action != "sale_create" {
		t.Fatalf("expected sale_create audit entry, got %+v", logs)
	}
}

func TestCheckoutPartialForCustomerCreatesDebt(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()

	mustAddPart(t, svc, "part-chain-428", 1)
	mustAddPart(t, svc, "part-battery-5ah", 1)

	resp, err := svc.Checkout(ctx, branch, terminal, CheckoutRequest{
		Customer:      domain.Customer{ID: "cust-minh", Name: "Minh", Phone: "0901234567"},
		PaymentMethod: domain.PaymentBank,
		PaymentType:   domain.PaymentPartial,
		PartialAmount: 200000,
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if resp.Debt == nil || resp.Debt.TotalAmount != 365000 {
		t.Fatalf("expected debt of 365000, got %+v", resp.Debt)
	}

	debts, err := svc.ListDebts(ctx, domain.DebtFilter{CustomerID: "cust-minh"})
	if err != nil {
		t.Fatalf("list debts: %v", err)
	}
	if len(debts) != 1 || debts[0].SaleID != resp.Sale.ID {
		t.Fatalf("expected one debt linked to the sale, got %+v", debts)
	}
}

func TestCheckoutValidationKeepsCart(t *testing.T) {
	svc, repo := newTestService()
	ctx := cashierCtx()
	mustAddPart(t, svc, "part-spark-plug", 3)

	_, err := svc.Checkout(ctx, branch, terminal, CheckoutRequest{PaymentType: domain.PaymentFull})
	var ce *checkout.Error
	if !errors.As(err, &ce) || ce.Code != "PAYMENT_METHOD_REQUIRED" {
		t.Fatalf("expected PAYMENT_METHOD_REQUIRED, got %v", err)
	}
	if got := len(svc.Cart(ctx, branch, terminal).Items); got != 1 {
		t.Fatalf("expected cart kept after failed checkout, got %d lines", got)
	}
	if got := stockOf(t, repo, "part-spark-plug"); got != 120 {
		t.Fatalf("failed checkout must not touch stock, got %d", got)
	}
}

func TestCheckoutResubmitIsIdempotent(t *testing.T) {
	svc, repo := newTestService()
	ctx := cashierCtx()
	req := CheckoutRequest{
		SaleID:        "sale-0b8f3f6a2f8e4f0c9a7d1e2b3c4d5e6f",
		PaymentMethod: domain.PaymentCash,
		PaymentType:   domain.PaymentFull,
	}

	mustAddPart(t, svc, "part-oil-10w40", 2)
	first, err := svc.Checkout(ctx, branch, terminal, req)
	if err != nil {
		t.Fatalf("first checkout: %v", err)
	}

	mustAddPart(t, svc, "part-oil-10w40", 2)
	second, err := svc.Checkout(ctx, branch, terminal, req)
	if err != nil {
		t.Fatalf("second checkout: %v", err)
	}
	if !second.Duplicate || second.Sale.ID != first.Sale.ID {
		t.Fatalf("expected duplicate of %s, got %+v", first.Sale.ID, second)
	}
	if got := stockOf(t, repo, "part-oil-10w40"); got != 88 {
		t.Fatalf("stock must be decremented once, got %d", got)
	}
}

func TestCheckoutRejectsConcurrentSubmit(t *testing.T) {
	svc, _ := newTestService()
	mustAddPart(t, svc, "part-spark-plug", 1)

	if !svc.carts.TryBegin(branch, terminal) {
		t.Fatalf("expected guard to be free")
	}
	_, err := svc.Checkout(cashierCtx(), branch, terminal, CheckoutRequest{PaymentMethod: domain.PaymentCash, PaymentType: domain.PaymentFull})
	if !errors.Is(err, ErrCheckoutInProgress) {
		t.Fatalf("expected ErrCheckoutInProgress, got %v", err)
	}
	svc.carts.Done(branch, terminal)

	if _, err := svc.Checkout(cashierCtx(), branch, terminal, CheckoutRequest{PaymentMethod: domain.PaymentCash, PaymentType: domain.PaymentFull}); err != nil {
		t.Fatalf("checkout after guard released: %v", err)
	}
}

func TestCheckoutInsufficientStockKeepsCart(t *testing.T) {
	svc, repo := newTestService()
	ctx := cashierCtx()
	mustAddPart(t, svc, "part-mirror-pair", 9)

	// Another till sells the last units before this one submits.
	other := New(repo, Options{DefaultBranchID: branch, Now: func() time.Time { return fixedTime }})
	if _, err := other.AddPartToCart(ctx, branch, "till-2", CartPartRequest{PartID: "part-mirror-pair"}); err != nil {
		t.Fatalf("add on other till: %v", err)
	}
	if _, err := other.Checkout(ctx, branch, "till-2", CheckoutRequest{PaymentMethod: domain.PaymentCash, PaymentType: domain.PaymentFull}); err != nil {
		t.Fatalf("other checkout: %v", err)
	}

	_, err := svc.Checkout(ctx, branch, terminal, CheckoutRequest{PaymentMethod: domain.PaymentCash, PaymentType: domain.PaymentFull})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if got := svc.Cart(ctx, branch, terminal).Items; len(got) != 1 || got[0].Quantity != 9 {
		t.Fatalf("expected cart kept, got %+v", got)
	}
}

func TestEditSaleReplaysWithCurrentPrices(t *testing.T) {
	svc, repo := newTestService()
	ctx := cashierCtx()

	mustAddPart(t, svc, "part-brake-pad-f", 2)
	if _, err := svc.AddServiceToCart(ctx, branch, terminal, CartServiceRequest{Name: "Brake bleed", Price: 80000}); err != nil {
		t.Fatalf("add service: %v", err)
	}
	original, err := svc.Checkout(ctx, branch, terminal, CheckoutRequest{PaymentMethod: domain.PaymentCash, PaymentType: domain.PaymentFull})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	if err := repo.SetPartPrice(ctx, "part-brake-pad-f", branch, domain.PartPrice{CostPrice: 60000, RetailPrice: 99000}); err != nil {
		t.Fatalf("set price: %v", err)
	}

	state, err := svc.BeginEditSale(ctx, branch, terminal, original.Sale.ID)
	if err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	if state.Mode != cart.ModeEditing || state.EditingSaleID != original.Sale.ID {
		t.Fatalf("expected editing mode for %s, got %+v", original.Sale.ID, state)
	}
	if len(state.Items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(state.Items))
	}
	part := state.Items[0]
	if part.Quantity != 2 || part.SellingPrice != 99000 {
		t.Fatalf("part line should carry today's price, got qty=%d price=%d", part.Quantity, part.SellingPrice)
	}
	if part.StockSnapshot != 60 {
		t.Fatalf("snapshot should include units held by the sale, got %d", part.StockSnapshot)
	}
	if line := state.Items[1]; line.Kind != domain.LineKindService || line.SellingPrice != 80000 {
		t.Fatalf("service line should keep recorded price, got %+v", line)
	}

	edited, err := svc.Checkout(ctx, branch, terminal, CheckoutRequest{PaymentMethod: domain.PaymentCash, PaymentType: domain.PaymentFull})
	if err != nil {
		t.Fatalf("edit checkout: %v", err)
	}
	if edited.Sale.ReplacesSaleID != original.Sale.ID || edited.Sale.Total != 2*99000+80000 {
		t.Fatalf("unexpected replacement sale %+v", edited.Sale)
	}
	if _, err := svc.GetSale(ctx, original.Sale.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("original sale should be gone, got %v", err)
	}
	if got := stockOf(t, repo, "part-brake-pad-f"); got != 58 {
		t.Fatalf("expected stock 58 after replace, got %d", got)
	}
	if state := svc.Cart(ctx, branch, terminal); state.Mode != cart.ModeIdle {
		t.Fatalf("expected idle after edit checkout, got %s", state.Mode)
	}
}

func TestEditSaleCanReuseHeldStock(t *testing.T) {
	svc, repo := newTestService()
	ctx := cashierCtx()

	mustAddPart(t, svc, "part-headlight-bulb", 7)
	sale, err := svc.Checkout(ctx, branch, terminal, CheckoutRequest{PaymentMethod: domain.PaymentCash, PaymentType: domain.PaymentFull})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if got := stockOf(t, repo, "part-headlight-bulb"); got != 0 {
		t.Fatalf("expected sold out, got %d", got)
	}

	if _, err := svc.BeginEditSale(ctx, branch, terminal, sale.Sale.ID); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	_, err = svc.AddPartToCart(ctx, branch, terminal, CartPartRequest{PartID: "part-headlight-bulb"})
	if !errors.Is(err, cart.ErrExceedsStock) {
		t.Fatalf("expected ErrExceedsStock beyond held units, got %v", err)
	}

	state := svc.CancelEdit(ctx, branch, terminal)
	if state.Mode != cart.ModeIdle || len(state.Items) != 0 {
		t.Fatalf("cancel edit should reset the cart, got %+v", state)
	}
}

func TestDeleteSaleRequiresAdminAndRestocks(t *testing.T) {
	svc, repo := newTestService()
	mustAddPart(t, svc, "part-clutch-cable", 3)
	sale, err := svc.Checkout(cashierCtx(), branch, terminal, CheckoutRequest{PaymentMethod: domain.PaymentCash, PaymentType: domain.PaymentFull})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	if _, err := svc.DeleteSale(cashierCtx(), sale.Sale.ID); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired, got %v", err)
	}
	if _, err := svc.DeleteSale(adminCtx(), sale.Sale.ID); err != nil {
		t.Fatalf("delete sale: %v", err)
	}
	if got := stockOf(t, repo, "part-clutch-cable"); got != 28 {
		t.Fatalf("expected stock restored to 28, got %d", got)
	}
}

func TestPayDebtBounds(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()
	mustAddPart(t, svc, "part-tyre-80-90-17", 1)
	resp, err := svc.Checkout(ctx, branch, terminal, CheckoutRequest{
		Customer:      domain.Customer{ID: "cust-lan", Name: "Lan"},
		PaymentMethod: domain.PaymentCash,
		PaymentType:   domain.PaymentNote,
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	debtID := resp.Debt.ID

	if _, err := svc.PayDebt(ctx, debtID, domain.DebtPaymentRequest{Amount: 480001}); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected overpayment rejected, got %v", err)
	}
	if _, err := svc.PayDebt(ctx, debtID, domain.DebtPaymentRequest{Amount: 0}); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected zero payment rejected, got %v", err)
	}

	debt, err := svc.PayDebt(ctx, debtID, domain.DebtPaymentRequest{Amount: 480000})
	if err != nil {
		t.Fatalf("pay debt: %v", err)
	}
	if debt.Status != domain.DebtPaid || debt.RemainingAmount != 0 {
		t.Fatalf("expected paid debt, got %+v", debt)
	}
	if _, err := svc.PayDebt(ctx, debtID, domain.DebtPaymentRequest{Amount: 1}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict on closed debt, got %v", err)
	}
}

func TestSalesReportIsInvalidatedByCheckout(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()
	from, to, err := svc.ParseDateRange("2026-03-02", "2026-03-02")
	if err != nil {
		t.Fatalf("parse range: %v", err)
	}

	mustAddPart(t, svc, "part-spark-plug", 2)
	if _, err := svc.Checkout(ctx, branch, terminal, CheckoutRequest{PaymentMethod: domain.PaymentCash, PaymentType: domain.PaymentFull}); err != nil {
		t.Fatalf("checkout: %v", err)
	}

	first, err := svc.SalesReport(ctx, branch, from, to)
	if err != nil {
		t.Fatalf("sales report: %v", err)
	}
	if first.Totals.Revenue != 90000 || first.From != "2026-03-02" || first.To != "2026-03-02" {
		t.Fatalf("unexpected first report %+v", first)
	}

	mustAddPart(t, svc, "part-spark-plug", 1)
	if _, err := svc.Checkout(ctx, branch, terminal, CheckoutRequest{PaymentMethod: domain.PaymentCash, PaymentType: domain.PaymentFull}); err != nil {
		t.Fatalf("checkout: %v", err)
	}

	second, err := svc.SalesReport(ctx, branch, from, to)
	if err != nil {
		t.Fatalf("sales report: %v", err)
	}
	if second.Totals.Revenue != 135000 || second.Totals.SaleCount != 2 {
		t.Fatalf("expected report to include the new sale, got %+v", second.Totals)
	}
	if second.Ledger.Income != 135000 {
		t.Fatalf("expected ledger income 135000, got %d", second.Ledger.Income)
	}
}

// invalidatingRepo runs onList during the first ListSales call, standing in
// for a sale that commits while a report is being built.
type invalidatingRepo struct {
	*memory.Store
	calls  int
	onList func()
}

func (r *invalidatingRepo) ListSales(ctx context.Context, branchID string, from, to time.Time) ([]domain.Sale, error) {
	r.calls++
	if r.calls == 1 && r.onList != nil {
		r.onList()
	}
	return r.Store.ListSales(ctx, branchID, from, to)
}

func TestSalesReportBuiltDuringInvalidationIsNotCached(t *testing.T) {
	repo := &invalidatingRepo{Store: memory.NewSeeded()}
	svc := New(repo, Options{
		DefaultBranchID: branch,
		Location:        ict,
		Cache:           cache.NewMemoryReportCache(),
		Now:             func() time.Time { return fixedTime },
	})
	ctx := cashierCtx()
	repo.onList = func() {
		svc.HandleSaleEvent(ctx, cache.SaleEvent{BranchID: branch, SaleID: "sale-x", Kind: cache.SaleCreated})
	}
	from, to, err := svc.ParseDateRange("2026-03-02", "2026-03-02")
	if err != nil {
		t.Fatalf("parse range: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.SalesReport(ctx, branch, from, to); err != nil {
			t.Fatalf("sales report: %v", err)
		}
	}
	if repo.calls != 2 {
		t.Fatalf("expected the raced build to be discarded and the next one cached, got %d builds", repo.calls)
	}
}

func TestHandleSaleEventInvalidatesCache(t *testing.T) {
	reportCache := cache.NewMemoryReportCache()
	svc := New(memory.NewSeeded(), Options{DefaultBranchID: branch, Cache: reportCache})
	ctx := context.Background()

	if err := reportCache.Set(ctx, branch, 0, "sales::", domain.SalesReport{BranchID: branch}, time.Minute); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	svc.HandleSaleEvent(ctx, cache.SaleEvent{BranchID: branch, SaleID: "sale-x", Kind: cache.SaleCreated})

	var out domain.SalesReport
	hit, err := reportCache.Get(ctx, branch, "sales::", &out)
	if err != nil {
		t.Fatalf("cache get: %v", err)
	}
	if hit {
		t.Fatalf("expected cache entry to be invalidated")
	}
}

func TestReconciliationReportFlagsNothingForConsistentSales(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()
	mustAddPart(t, svc, "part-sprocket-kit", 1)
	if _, err := svc.Checkout(ctx, branch, terminal, CheckoutRequest{
		Customer:      domain.Customer{ID: "cust-hoa", Name: "Hoa"},
		PaymentMethod: domain.PaymentCash,
		PaymentType:   domain.PaymentInstallment,
		Installment:   &domain.InstallmentPlan{FinanceCompany: "HD Saison", TermMonths: 6, InterestRate: 1.5, PrepaidAmount: 40000},
	}); err != nil {
		t.Fatalf("checkout: %v", err)
	}

	rep, err := svc.ReconciliationReport(ctx, branch, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("reconciliation: %v", err)
	}
	if rep.SalesChecked != 1 || len(rep.Issues) != 0 {
		t.Fatalf("expected one clean sale, got %+v", rep)
	}
}

func TestExportsRender(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()
	mustAddPart(t, svc, "part-air-filter", 1)
	if _, err := svc.Checkout(ctx, branch, terminal, CheckoutRequest{PaymentMethod: domain.PaymentCard, PaymentType: domain.PaymentFull}); err != nil {
		t.Fatalf("checkout: %v", err)
	}

	var xmlBuf bytes.Buffer
	if err := svc.ExportVATXML(ctx, &xmlBuf, branch, time.Time{}, time.Time{}); err != nil {
		t.Fatalf("vat export: %v", err)
	}
	if !bytes.Contains(xmlBuf.Bytes(), []byte("<AmountBeforeVAT>86364</AmountBeforeVAT>")) {
		t.Fatalf("unexpected vat xml: %s", xmlBuf.String())
	}

	var xlsx bytes.Buffer
	if err := svc.ExportSalesExcel(ctx, &xlsx, branch, time.Time{}, time.Time{}); err != nil {
		t.Fatalf("excel export: %v", err)
	}
	if !bytes.HasPrefix(xlsx.Bytes(), []byte("PK")) {
		t.Fatalf("expected a zip container")
	}
}

func TestWorkOrderLifecycle(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()

	order, err := svc.CreateWorkOrder(ctx, domain.WorkOrderCreateRequest{
		Customer:     domain.Customer{Name: "Tuan", Phone: "0912345678"},
		VehiclePlate: "59-x1 234.56",
		Description:  "Replace front brake pads",
		Parts:        []domain.WorkOrderPartLine{{PartID: "part-brake-pad-f", Quantity: 1}},
		LaborCost:    50000,
	})
	if err != nil {
		t.Fatalf("create work order: %v", err)
	}
	if order.Total != 145000 || order.Status != domain.WorkOrderReceived || order.VehiclePlate != "59-X1 234.56" {
		t.Fatalf("unexpected work order %+v", order)
	}

	if _, err := svc.SetWorkOrderStatus(ctx, order.ID, domain.WorkOrderDelivered); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected skipped transition rejected, got %v", err)
	}
	for _, next := range []domain.WorkOrderStatus{domain.WorkOrderInProgress, domain.WorkOrderCompleted, domain.WorkOrderDelivered} {
		updated, err := svc.SetWorkOrderStatus(ctx, order.ID, next)
		if err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
		if updated.Status != next {
			t.Fatalf("expected %s, got %s", next, updated.Status)
		}
	}
	if _, err := svc.SetWorkOrderStatus(ctx, order.ID, domain.WorkOrderCancelled); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("delivered order must not be cancelled, got %v", err)
	}
}

func TestCreatePartAndReceiveStock(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.CreatePart(cashierCtx(), domain.PartCreateRequest{SKU: "x", Name: "x", Category: "x"}); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired, got %v", err)
	}

	part, err := svc.CreatePart(adminCtx(), domain.PartCreateRequest{
		SKU:          " fuel-filter-01 ",
		Name:         "Fuel filter",
		Category:     "Filters",
		CostPrice:    25000,
		RetailPrice:  45000,
		InitialStock: 5,
	})
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if part.SKU != "FUEL-FILTER-01" || part.StockAt(branch) != 5 {
		t.Fatalf("unexpected part %+v", part)
	}

	updated, err := svc.ReceiveStock(adminCtx(), domain.StockReceiptRequest{PartID: part.ID, Quantity: 10, UnitCost: 24000})
	if err != nil {
		t.Fatalf("receive stock: %v", err)
	}
	if updated.StockAt(branch) != 15 {
		t.Fatalf("expected 15 in stock, got %d", updated.StockAt(branch))
	}

	inv, err := svc.InventoryReport(context.Background(), branch)
	if err != nil {
		t.Fatalf("inventory report: %v", err)
	}
	for _, low := range inv.LowStock {
		if low.PartID == part.ID {
			t.Fatalf("part with 15 units must not be low stock")
		}
	}
}

func TestParseDateRange(t *testing.T) {
	svc, _ := newTestService()

	from, to, err := svc.ParseDateRange("2026-03-01", "2026-03-01")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if to.Sub(from) != 24*time.Hour {
		t.Fatalf("expected a one-day window, got %s", to.Sub(from))
	}
	if _, _, err := svc.ParseDateRange("2026-03-02", "2026-03-01"); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if _, _, err := svc.ParseDateRange("03/01/2026", ""); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for bad format, got %v", err)
	}
}

func TestCheckoutWritesAuditLog(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()

	mustAddPart(t, svc, "part-spark-plug", 1)
	resp, err := svc.Checkout(ctx, branch, terminal, CheckoutRequest{
		PaymentMethod: domain.PaymentCash,
		PaymentType:   domain.PaymentFull,
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	logs, err := svc.ListAuditLogs(adminCtx(), branch, time.Time{}, time.Time{}, 0)
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(logs))
	}
	entry := logs[0]
	if entry.Action != "sale_create" || entry.EntityID != resp.Sale.ID || entry.ActorUsername != "cashier" {
		t.Fatalf("unexpected audit entry %+v", entry)
	}
}
