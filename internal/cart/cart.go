// Package cart holds the in-progress cart of one checkout terminal.
//
// A Session is mutated only through Dispatch with one of the typed actions
// below. The subtotal is never cached; it is recomputed from the lines on
// every read.
package cart

import (
	"errors"
	"fmt"
	"sync"

	"motopos/backend/internal/domain"
	"motopos/backend/internal/xid"
)

var (
	ErrExceedsStock    = errors.New("quantity exceeds available stock")
	ErrNegativePrice   = errors.New("price must not be negative")
	ErrInvalidQuantity = errors.New("quantity must not be negative")
	ErrLineNotFound    = errors.New("cart line not found")
	ErrNoBranchPrice   = errors.New("part has no price at this branch")
	ErrInvalidService  = errors.New("service line requires a name")
	ErrInactivePart    = errors.New("part is not active")
)

type Mode string

const (
	ModeIdle    Mode = "idle"
	ModeEditing Mode = "editing"
)

// Action is one cart mutation. The set of actions is closed.
type Action interface {
	apply(s *Session) error
}

// AddPart adds one unit of a part priced for Branch. Held is the number of
// units already reserved by the sale being edited; it raises the stock guard
// because those units come back when the edit is saved.
type AddPart struct {
	Part   domain.Part
	Branch string
	Held   int
}

type AddService struct {
	Name     string
	Price    int64
	Quantity int
}

type SetQuantity struct {
	LineID   string
	Quantity int
}

type SetPrice struct {
	LineID string
	Price  int64
}

type Remove struct {
	LineID string
}

type Clear struct{}

// BeginEdit empties the cart and marks it as editing SaleID.
type BeginEdit struct {
	SaleID string
}

type CancelEdit struct{}

type Session struct {
	mu            sync.Mutex
	branchID      string
	terminalID    string
	lines         []domain.CartItem
	mode          Mode
	editingSaleID string
}

func NewSession(branchID, terminalID string) *Session {
	return &Session{branchID: branchID, terminalID: terminalID, mode: ModeIdle}
}

// State is a detached copy of a session.
type State struct {
	BranchID      string            `json:"branch_id"`
	TerminalID    string            `json:"terminal_id"`
	Mode          Mode              `json:"mode"`
	EditingSaleID string            `json:"editing_sale_id,omitempty"`
	Items         []domain.CartItem `json:"items"`
	Subtotal      int64             `json:"subtotal"`
}

func (s *Session) Dispatch(action Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return action.apply(s)
}

// DispatchAll applies actions in order and stops at the first error. Actions
// applied before the error are kept.
func (s *Session) DispatchAll(actions ...Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, action := range actions {
		if err := action.apply(s); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]domain.CartItem, len(s.lines))
	copy(items, s.lines)
	return State{
		BranchID:      s.branchID,
		TerminalID:    s.terminalID,
		Mode:          s.mode,
		EditingSaleID: s.editingSaleID,
		Items:         items,
		Subtotal:      subtotal(items),
	}
}

func (s *Session) Subtotal() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return subtotal(s.lines)
}

// ClearIf empties the cart only if it still matches the state that was
// checked out, so a line added during the checkout round trip is not lost.
func (s *Session) ClearIf(expected State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != expected.Mode || s.editingSaleID != expected.EditingSaleID || len(s.lines) != len(expected.Items) {
		return false
	}
	for i := range s.lines {
		if s.lines[i] != expected.Items[i] {
			return false
		}
	}
	s.lines = nil
	s.mode = ModeIdle
	s.editingSaleID = ""
	return true
}

func subtotal(lines []domain.CartItem) int64 {
	var total int64
	for _, line := range lines {
		total += line.LineTotal()
	}
	return total
}

func (s *Session) find(lineID string) int {
	for i := range s.lines {
		if s.lines[i].LineID == lineID {
			return i
		}
	}
	return -1
}

func (a AddPart) apply(s *Session) error {
	if !a.Part.Active {
		return ErrInactivePart
	}
	branch := a.Branch
	if branch == "" {
		branch = s.branchID
	}
	price, ok := a.Part.PriceFor(branch)
	if !ok {
		return ErrNoBranchPrice
	}
	available := a.Part.StockAt(branch) + a.Held

	if idx := s.find(a.Part.ID); idx >= 0 {
		line := &s.lines[idx]
		if line.Quantity+1 > available {
			return ErrExceedsStock
		}
		line.Quantity++
		line.StockSnapshot = available
		return nil
	}

	if available < 1 {
		return ErrExceedsStock
	}
	s.lines = append(s.lines, domain.CartItem{
		LineID:        a.Part.ID,
		Kind:          domain.LineKindPart,
		PartID:        a.Part.ID,
		PartName:      a.Part.Name,
		SKU:           a.Part.SKU,
		Category:      a.Part.Category,
		Quantity:      1,
		SellingPrice:  price.RetailPrice,
		CostPrice:     price.CostPrice,
		StockSnapshot: available,
	})
	return nil
}

func (a AddService) apply(s *Session) error {
	if a.Name == "" {
		return ErrInvalidService
	}
	if a.Price < 0 {
		return ErrNegativePrice
	}
	qty := a.Quantity
	if qty < 0 {
		return ErrInvalidQuantity
	}
	if qty == 0 {
		qty = 1
	}
	s.lines = append(s.lines, domain.CartItem{
		LineID:       xid.New("svc"),
		Kind:         domain.LineKindService,
		PartName:     a.Name,
		Category:     "service",
		Quantity:     qty,
		SellingPrice: a.Price,
	})
	return nil
}

func (a SetQuantity) apply(s *Session) error {
	idx := s.find(a.LineID)
	if idx < 0 {
		return ErrLineNotFound
	}
	switch {
	case a.Quantity < 0:
		return ErrInvalidQuantity
	case a.Quantity == 0:
		s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
		return nil
	}
	line := &s.lines[idx]
	if line.Kind == domain.LineKindPart && a.Quantity > line.StockSnapshot {
		return ErrExceedsStock
	}
	line.Quantity = a.Quantity
	return nil
}

func (a SetPrice) apply(s *Session) error {
	if a.Price < 0 {
		return ErrNegativePrice
	}
	idx := s.find(a.LineID)
	if idx < 0 {
		return ErrLineNotFound
	}
	s.lines[idx].SellingPrice = a.Price
	return nil
}

func (a Remove) apply(s *Session) error {
	idx := s.find(a.LineID)
	if idx < 0 {
		return ErrLineNotFound
	}
	s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
	return nil
}

func (Clear) apply(s *Session) error {
	s.lines = nil
	return nil
}

func (a BeginEdit) apply(s *Session) error {
	s.lines = nil
	s.mode = ModeEditing
	s.editingSaleID = a.SaleID
	return nil
}

func (CancelEdit) apply(s *Session) error {
	s.lines = nil
	s.mode = ModeIdle
	s.editingSaleID = ""
	return nil
}
