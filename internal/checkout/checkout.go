// Package checkout turns a cart into a sale record and, when money is still
// owed by a registered customer, the matching debt record.
package checkout

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"motopos/backend/internal/domain"
	"motopos/backend/internal/xid"
)

type DiscountMode string

const (
	DiscountAmount  DiscountMode = "amount"
	DiscountPercent DiscountMode = "percent"
)

var hundred = decimal.NewFromInt(100)

// Discount is an order-level discount, either an absolute amount or a
// percentage of the subtotal.
type Discount struct {
	Mode  DiscountMode    `json:"mode"`
	Value decimal.Decimal `json:"value"`
}

// Amount resolves the discount against subtotal. Percentages round half up
// to whole currency units. The result never exceeds subtotal.
func (d Discount) Amount(subtotal int64) (int64, error) {
	if d.Value.IsNegative() {
		return 0, ErrInvalidDiscount
	}
	var amount decimal.Decimal
	switch d.Mode {
	case "", DiscountAmount:
		amount = d.Value.Round(0)
	case DiscountPercent:
		if d.Value.GreaterThan(hundred) {
			return 0, ErrInvalidDiscount
		}
		amount = decimal.NewFromInt(subtotal).Mul(d.Value).Div(hundred).Round(0)
	default:
		return 0, ErrInvalidDiscount
	}
	if limit := decimal.NewFromInt(max(subtotal, 0)); amount.GreaterThan(limit) {
		return limit.IntPart(), nil
	}
	return amount.IntPart(), nil
}

type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount"`
	Total    int64 `json:"total"`
}

// ComputeTotals sums the lines and applies the discount. A line or subtotal
// that does not fit in int64 is rejected with ErrAmountTooLarge.
func ComputeTotals(items []domain.CartItem, discount Discount) (Totals, error) {
	var subtotal int64
	for _, item := range items {
		line, ok := lineTotal(item)
		if !ok || subtotal > math.MaxInt64-line {
			return Totals{}, ErrAmountTooLarge
		}
		subtotal += line
	}
	amount, err := discount.Amount(subtotal)
	if err != nil {
		return Totals{Subtotal: subtotal, Total: subtotal}, err
	}
	total := subtotal - amount
	if total < 0 {
		total = 0
	}
	return Totals{Subtotal: subtotal, Discount: amount, Total: total}, nil
}

func lineTotal(item domain.CartItem) (int64, bool) {
	if item.Quantity < 0 || item.SellingPrice < 0 {
		return 0, false
	}
	if item.Quantity > 0 && item.SellingPrice > math.MaxInt64/int64(item.Quantity) {
		return 0, false
	}
	return item.LineTotal(), true
}

type FinalizeInput struct {
	SaleID         string
	BranchID       string
	TerminalID     string
	Items          []domain.CartItem
	Customer       domain.Customer
	Discount       Discount
	PaymentMethod  domain.PaymentMethod
	PaymentType    domain.PaymentType
	PartialAmount  int64
	Installment    *domain.InstallmentPlan
	Delivery       *domain.Delivery
	CreatedBy      string
	Note           string
	SaleTime       time.Time
	ReplacesSaleID string
}

type Result struct {
	Sale   domain.Sale
	Totals Totals
	Debt   *domain.CustomerDebt
}

// Finalize validates the checkout and builds the records to persist. Checks
// run in a fixed order and the first failure is returned.
func Finalize(in FinalizeInput) (Result, error) {
	if len(in.Items) == 0 {
		return Result{}, ErrEmptyCart
	}
	if in.PaymentMethod == "" {
		return Result{}, ErrPaymentMethodRequired
	}
	if !in.PaymentMethod.Valid() {
		return Result{}, ErrInvalidPaymentMethod
	}
	if in.PaymentType == "" {
		return Result{}, ErrPaymentTypeRequired
	}
	if !in.PaymentType.Valid() {
		return Result{}, ErrInvalidPaymentType
	}

	totals, err := ComputeTotals(in.Items, in.Discount)
	if err != nil {
		return Result{}, err
	}

	if in.PaymentType == domain.PaymentPartial && (in.PartialAmount <= 0 || in.PartialAmount > totals.Total) {
		return Result{}, ErrInvalidPartialAmount
	}
	if in.Delivery != nil && in.Delivery.Method == domain.DeliveryCOD {
		if strings.TrimSpace(in.Delivery.Address) == "" || strings.TrimSpace(in.Delivery.Phone) == "" {
			return Result{}, ErrCODContactRequired
		}
	}

	var installment *domain.InstallmentPlan
	if in.PaymentType == domain.PaymentInstallment {
		if in.Installment == nil || strings.TrimSpace(in.Installment.FinanceCompany) == "" || in.Installment.TermMonths <= 0 {
			return Result{}, ErrInstallmentPlanMissing
		}
		if in.Installment.PrepaidAmount < 0 || in.Installment.PrepaidAmount > totals.Total {
			return Result{}, ErrInvalidPrepaidAmount
		}
		plan := *in.Installment
		plan.FinanceCompany = strings.TrimSpace(plan.FinanceCompany)
		installment = &plan
	}

	saleID := strings.TrimSpace(in.SaleID)
	if saleID == "" {
		saleID = xid.New("sale")
	} else if !xid.Valid(saleID) {
		return Result{}, ErrInvalidSaleID
	}

	paid := PaidAmount(in.PaymentType, totals.Total, in.PartialAmount, installment)

	sale := domain.Sale{
		ID:              saleID,
		BranchID:        in.BranchID,
		TerminalID:      in.TerminalID,
		Items:           toSaleItems(in.Items),
		Customer:        normalizeCustomer(in.Customer),
		Subtotal:        totals.Subtotal,
		Discount:        totals.Discount,
		Total:           totals.Total,
		PaidAmount:      paid,
		RemainingAmount: totals.Total - paid,
		PaymentMethod:   in.PaymentMethod,
		PaymentType:     in.PaymentType,
		Installment:     installment,
		Delivery:        in.Delivery,
		CreatedBy:       in.CreatedBy,
		Note:            strings.TrimSpace(in.Note),
		SaleTime:        in.SaleTime,
		ReplacesSaleID:  in.ReplacesSaleID,
	}

	return Result{Sale: sale, Totals: totals, Debt: DebtFor(sale)}, nil
}

// PaidAmount is the amount collected at the till for a plan. The caller has
// already validated the inputs against total.
func PaidAmount(paymentType domain.PaymentType, total, partial int64, plan *domain.InstallmentPlan) int64 {
	switch paymentType {
	case domain.PaymentPartial:
		return partial
	case domain.PaymentInstallment:
		if plan == nil {
			return 0
		}
		return plan.PrepaidAmount
	case domain.PaymentNote:
		return 0
	default:
		return total
	}
}

// DebtFor returns the debt a sale gives rise to, or nil when nothing is owed
// or the buyer is a walk-in.
func DebtFor(sale domain.Sale) *domain.CustomerDebt {
	if sale.RemainingAmount <= 0 || sale.Customer.IsWalkIn() {
		return nil
	}
	return &domain.CustomerDebt{
		ID:              xid.New("debt"),
		SaleID:          sale.ID,
		CustomerID:      sale.Customer.ID,
		CustomerName:    sale.Customer.Name,
		TotalAmount:     sale.RemainingAmount,
		PaidAmount:      0,
		RemainingAmount: sale.RemainingAmount,
		Description:     debtDescription(sale),
		BranchID:        sale.BranchID,
		Status:          domain.DebtOpen,
		CreatedDate:     sale.SaleTime,
	}
}

func debtDescription(sale domain.Sale) string {
	switch sale.PaymentType {
	case domain.PaymentInstallment:
		plan := sale.Installment
		return fmt.Sprintf("Installment via %s, term %d months, rate %s%%, prepaid %d, sale %s",
			plan.FinanceCompany, plan.TermMonths, strconv.FormatFloat(plan.InterestRate, 'f', -1, 64),
			plan.PrepaidAmount, sale.ID)
	case domain.PaymentNote:
		return fmt.Sprintf("Credit note for sale %s, total %d", sale.ID, sale.Total)
	default:
		return fmt.Sprintf("Partial payment for sale %s: paid %d of %d", sale.ID, sale.PaidAmount, sale.Total)
	}
}

func toSaleItems(lines []domain.CartItem) []domain.SaleItem {
	items := make([]domain.SaleItem, 0, len(lines))
	for _, line := range lines {
		item := domain.SaleItem{
			Kind:         line.Kind,
			PartID:       line.PartID,
			PartName:     line.PartName,
			SKU:          line.SKU,
			Category:     line.Category,
			Quantity:     line.Quantity,
			SellingPrice: line.SellingPrice,
			CostPrice:    line.CostPrice,
		}
		if item.Kind == "" {
			item.Kind = domain.LineKindPart
		}
		if item.Kind == domain.LineKindService {
			item.PartID = ""
			item.CostPrice = 0
		}
		items = append(items, item)
	}
	return items
}

func normalizeCustomer(c domain.Customer) domain.Customer {
	return domain.Customer{
		ID:    strings.TrimSpace(c.ID),
		Name:  strings.TrimSpace(c.Name),
		Phone: strings.TrimSpace(c.Phone),
	}
}
