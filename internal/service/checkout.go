package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"motopos/backend/internal/cache"
	"motopos/backend/internal/cart"
	"motopos/backend/internal/checkout"
	"motopos/backend/internal/domain"
	"motopos/backend/internal/store"
)

type CartPartRequest struct {
	PartID string `json:"part_id" validate:"required"`
}

type CartServiceRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Price    int64  `json:"price" validate:"gte=0,max=10000000000"`
	Quantity int    `json:"quantity" validate:"gte=0,max=10000"`
}

// CartLineUpdate changes quantity, price or both. A quantity of 0 removes
// the line.
type CartLineUpdate struct {
	Quantity *int   `json:"quantity" validate:"omitempty,gte=0,max=10000"`
	Price    *int64 `json:"price" validate:"omitempty,gte=0,max=10000000000"`
}

type CheckoutRequest struct {
	SaleID        string                  `json:"sale_id"`
	Customer      domain.Customer         `json:"customer"`
	Discount      checkout.Discount       `json:"discount"`
	PaymentMethod domain.PaymentMethod    `json:"payment_method"`
	PaymentType   domain.PaymentType      `json:"payment_type"`
	PartialAmount int64                   `json:"partial_amount"`
	Installment   *domain.InstallmentPlan `json:"installment,omitempty"`
	Delivery      *domain.Delivery        `json:"delivery,omitempty"`
	Note          string                  `json:"note" validate:"max=1000"`
}

type CheckoutResponse struct {
	Sale      domain.Sale          `json:"sale"`
	Debt      *domain.CustomerDebt `json:"debt,omitempty"`
	Duplicate bool                 `json:"duplicate"`
	// CartCleared is false when the cart changed while the sale was being
	// saved; the new lines are left for the cashier.
	CartCleared bool `json:"cart_cleared"`
}

func (s *Service) Cart(_ context.Context, branchID, terminalID string) cart.State {
	return s.carts.Session(s.branch(branchID), terminalID).State()
}

func (s *Service) AddPartToCart(ctx context.Context, branchID, terminalID string, req CartPartRequest) (cart.State, error) {
	branchID = s.branch(branchID)
	part, err := s.repo.GetPart(ctx, strings.TrimSpace(req.PartID))
	if err != nil {
		return cart.State{}, err
	}

	session := s.carts.Session(branchID, terminalID)
	held, err := s.heldUnits(ctx, session.State())
	if err != nil {
		return cart.State{}, err
	}
	if err := session.Dispatch(cart.AddPart{Part: *part, Branch: branchID, Held: held[part.ID]}); err != nil {
		return cart.State{}, err
	}
	return session.State(), nil
}

func (s *Service) AddServiceToCart(_ context.Context, branchID, terminalID string, req CartServiceRequest) (cart.State, error) {
	session := s.carts.Session(s.branch(branchID), terminalID)
	err := session.Dispatch(cart.AddService{
		Name:     strings.TrimSpace(req.Name),
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		return cart.State{}, err
	}
	return session.State(), nil
}

func (s *Service) UpdateCartLine(_ context.Context, branchID, terminalID, lineID string, req CartLineUpdate) (cart.State, error) {
	if req.Quantity == nil && req.Price == nil {
		return cart.State{}, store.ErrInvalidTransaction
	}
	var actions []cart.Action
	if req.Price != nil {
		actions = append(actions, cart.SetPrice{LineID: lineID, Price: *req.Price})
	}
	if req.Quantity != nil {
		actions = append(actions, cart.SetQuantity{LineID: lineID, Quantity: *req.Quantity})
	}

	session := s.carts.Session(s.branch(branchID), terminalID)
	if err := session.DispatchAll(actions...); err != nil {
		return cart.State{}, err
	}
	return session.State(), nil
}

func (s *Service) RemoveCartLine(_ context.Context, branchID, terminalID, lineID string) (cart.State, error) {
	session := s.carts.Session(s.branch(branchID), terminalID)
	if err := session.Dispatch(cart.Remove{LineID: lineID}); err != nil {
		return cart.State{}, err
	}
	return session.State(), nil
}

func (s *Service) ClearCart(_ context.Context, branchID, terminalID string) cart.State {
	session := s.carts.Session(s.branch(branchID), terminalID)
	_ = session.Dispatch(cart.Clear{})
	return session.State()
}

// BeginEditSale loads a persisted sale into the terminal's cart. Part lines
// are re-added through the normal add path, so they pick up today's branch
// price and stock rather than the prices recorded on the sale. Service lines
// keep their recorded price.
func (s *Service) BeginEditSale(ctx context.Context, branchID, terminalID, saleID string) (cart.State, error) {
	branchID = s.branch(branchID)
	sale, err := s.repo.FindSaleByID(ctx, saleID)
	if err != nil {
		return cart.State{}, err
	}
	if sale.BranchID != branchID {
		return cart.State{}, store.ErrNotFound
	}

	held := heldBySale(sale)
	partIDs := make([]string, 0, len(held))
	for id := range held {
		partIDs = append(partIDs, id)
	}
	parts, err := s.repo.GetPartsByIDs(ctx, partIDs)
	if err != nil {
		return cart.State{}, err
	}

	actions := []cart.Action{cart.BeginEdit{SaleID: sale.ID}}
	for _, item := range sale.Items {
		if item.Kind == domain.LineKindService {
			actions = append(actions, cart.AddService{Name: item.PartName, Price: item.SellingPrice, Quantity: item.Quantity})
			continue
		}
		part, ok := parts[item.PartID]
		if !ok {
			return cart.State{}, fmt.Errorf("part %s: %w", item.PartID, store.ErrNotFound)
		}
		for i := 0; i < item.Quantity; i++ {
			actions = append(actions, cart.AddPart{Part: part, Branch: branchID, Held: held[item.PartID]})
		}
	}

	session := s.carts.Session(branchID, terminalID)
	if err := session.DispatchAll(actions...); err != nil {
		_ = session.Dispatch(cart.CancelEdit{})
		return cart.State{}, err
	}

	s.log.Zerolog(ctx).Info().Str("sale_id", sale.ID).Str("terminal_id", terminalID).Msg("sale loaded for editing")
	return session.State(), nil
}

func (s *Service) CancelEdit(_ context.Context, branchID, terminalID string) cart.State {
	session := s.carts.Session(s.branch(branchID), terminalID)
	_ = session.Dispatch(cart.CancelEdit{})
	return session.State()
}

// Checkout finalizes the terminal's cart. The cart is cleared only after the
// sale is stored; on any failure it is left untouched so the cashier can fix
// and retry.
func (s *Service) Checkout(ctx context.Context, branchID, terminalID string, req CheckoutRequest) (CheckoutResponse, error) {
	branchID = s.branch(branchID)
	if !s.carts.TryBegin(branchID, terminalID) {
		s.metrics.ObserveCheckout(branchID, "IN_PROGRESS")
		return CheckoutResponse{}, ErrCheckoutInProgress
	}
	defer s.carts.Done(branchID, terminalID)

	session := s.carts.Session(branchID, terminalID)
	state := session.State()

	actor, _ := ActorFromContext(ctx)
	in := checkout.FinalizeInput{
		SaleID:        req.SaleID,
		BranchID:      branchID,
		TerminalID:    terminalID,
		Items:         state.Items,
		Customer:      req.Customer,
		Discount:      req.Discount,
		PaymentMethod: req.PaymentMethod,
		PaymentType:   req.PaymentType,
		PartialAmount: req.PartialAmount,
		Installment:   req.Installment,
		Delivery:      req.Delivery,
		CreatedBy:     actor.Username,
		Note:          req.Note,
		SaleTime:      s.now().UTC(),
	}
	editing := state.Mode == cart.ModeEditing
	if editing {
		in.ReplacesSaleID = state.EditingSaleID
	}

	result, err := checkout.Finalize(in)
	if err != nil {
		s.metrics.ObserveCheckout(branchID, resultCode(err))
		return CheckoutResponse{}, err
	}

	var (
		saved     *domain.Sale
		duplicate bool
	)
	if editing {
		saved, duplicate, err = s.repo.ReplaceSale(ctx, state.EditingSaleID, result.Sale, result.Debt)
	} else {
		saved, duplicate, err = s.repo.CreateSaleAtomic(ctx, result.Sale, result.Debt)
	}
	if err != nil {
		s.metrics.ObserveCheckout(branchID, resultCode(err))
		if !errors.Is(err, store.ErrInsufficientStock) && !errors.Is(err, store.ErrConflict) && !errors.Is(err, store.ErrNotFound) {
			s.log.Error(s.log.WithField(ctx, "sale_id", result.Sale.ID), "failed to persist sale", err)
		}
		return CheckoutResponse{}, err
	}

	resp := CheckoutResponse{
		Sale:        *saved,
		Duplicate:   duplicate,
		CartCleared: session.ClearIf(state),
	}
	if duplicate {
		s.metrics.ObserveCheckout(branchID, "duplicate")
		return resp, nil
	}
	resp.Debt = result.Debt

	s.metrics.ObserveCheckout(branchID, "ok")
	s.metrics.ObserveSale(branchID, string(saved.PaymentType), saved.Total)

	action, kind := "sale_create", cache.SaleCreated
	detail := fmt.Sprintf("total=%d,paid=%d,remaining=%d,type=%s", saved.Total, saved.PaidAmount, saved.RemainingAmount, saved.PaymentType)
	if editing {
		action, kind = "sale_replace", cache.SaleReplaced
		detail += ",replaces=" + state.EditingSaleID
	}
	s.logAudit(ctx, branchID, action, "sale", saved.ID, detail)
	s.salesChanged(ctx, branchID, saved.ID, kind)
	return resp, nil
}

// heldUnits returns, per part, the units reserved by the sale being edited.
func (s *Service) heldUnits(ctx context.Context, state cart.State) (map[string]int, error) {
	if state.Mode != cart.ModeEditing {
		return nil, nil
	}
	sale, err := s.repo.FindSaleByID(ctx, state.EditingSaleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return heldBySale(sale), nil
}

func heldBySale(sale *domain.Sale) map[string]int {
	held := map[string]int{}
	for _, item := range sale.Items {
		if item.Kind == domain.LineKindPart && item.PartID != "" {
			held[item.PartID] += item.Quantity
		}
	}
	return held
}

func resultCode(err error) string {
	var ce *checkout.Error
	switch {
	case errors.As(err, &ce):
		return ce.Code
	case errors.Is(err, store.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, store.ErrConflict):
		return "CONFLICT"
	case errors.Is(err, store.ErrNotFound):
		return "NOT_FOUND"
	default:
		return "ERROR"
	}
}
