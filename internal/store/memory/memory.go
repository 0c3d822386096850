package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"motopos/backend/internal/domain"
	"motopos/backend/internal/store"
	"motopos/backend/internal/xid"
)

const (
	BranchHCM = "branch-hcm"
	BranchHN  = "branch-hn"
)

type Store struct {
	mu           sync.RWMutex
	parts        map[string]domain.Part
	sales        map[string]*domain.Sale
	ledger       []domain.CashLedgerEntry
	inventoryTx  []domain.InventoryTransaction
	debts        map[string]*domain.CustomerDebt
	debtPayments []domain.DebtPayment
	workOrders   map[string]*domain.WorkOrder
	auditLogs    []domain.AuditLog
	users        map[string]domain.UserAccount
}

// seedUsers builds the demo accounts. Passwords come from
// SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD with dev fallbacks; the
// Postgres store never uses them.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Warn().Str("component", "memory-store").Msg("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal().Err(err).Str("username", u.username).Msg("hash seed password")
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		parts:      map[string]domain.Part{},
		sales:      map[string]*domain.Sale{},
		debts:      map[string]*domain.CustomerDebt{},
		workOrders: map[string]*domain.WorkOrder{},
		users:      map[string]domain.UserAccount{},
	}
}

// NewSeeded returns a store with a demo parts catalogue for two branches and
// the demo user accounts.
func NewSeeded() *Store {
	type seed struct {
		id, sku, name, category string
		cost, retail            int64
		hcm, hn                 int
	}
	seeds := []seed{
		{"part-chain-428", "CHN-428H-120", "Drive chain 428H 120L", "drivetrain", 120000, 185000, 40, 25},
		{"part-sprocket-kit", "SPK-WAVE-01", "Sprocket kit Wave/Dream", "drivetrain", 160000, 240000, 18, 6},
		{"part-brake-pad-f", "BRK-PAD-F01", "Front brake pads", "brakes", 55000, 95000, 60, 30},
		{"part-brake-shoe-r", "BRK-SHOE-R01", "Rear brake shoes", "brakes", 40000, 70000, 35, 4},
		{"part-spark-plug", "ELC-NGK-C7HSA", "Spark plug NGK C7HSA", "electrical", 28000, 45000, 120, 80},
		{"part-battery-5ah", "ELC-BAT-5AH", "Battery 12V 5Ah", "electrical", 260000, 380000, 12, 9},
		{"part-headlight-bulb", "ELC-BULB-H4", "Headlight bulb H4 35W", "electrical", 30000, 55000, 7, 15},
		{"part-oil-10w40", "OIL-10W40-08", "Engine oil 10W-40 0.8L", "lubricants", 75000, 110000, 90, 50},
		{"part-air-filter", "FLT-AIR-VIS", "Air filter Vision/Lead", "filters", 60000, 95000, 22, 3},
		{"part-tyre-80-90-17", "TYR-8090-17", "Tyre 80/90-17 tubeless", "tyres", 330000, 480000, 16, 10},
		{"part-clutch-cable", "CBL-CLT-01", "Clutch cable", "cables", 35000, 60000, 28, 14},
		{"part-mirror-pair", "ACC-MIR-PR", "Mirror pair", "accessories", 70000, 120000, 9, 20},
	}

	s := New()
	for _, sd := range seeds {
		s.parts[sd.id] = domain.Part{
			ID:       sd.id,
			SKU:      sd.sku,
			Name:     sd.name,
			Category: sd.category,
			Prices: map[string]domain.PartPrice{
				BranchHCM: {CostPrice: sd.cost, RetailPrice: sd.retail},
				BranchHN:  {CostPrice: sd.cost, RetailPrice: sd.retail + 5000},
			},
			Stock:  map[string]int{BranchHCM: sd.hcm, BranchHN: sd.hn},
			Active: true,
		}
	}
	s.users = seedUsers()
	return s
}

func (s *Store) ListParts(_ context.Context) ([]domain.Part, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	parts := make([]domain.Part, 0, len(s.parts))
	for _, p := range s.parts {
		if !p.Active {
			continue
		}
		parts = append(parts, clonePart(p))
	}
	slices.SortFunc(parts, func(a, b domain.Part) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})
	return parts, nil
}

func (s *Store) GetPart(_ context.Context, id string) (*domain.Part, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.parts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	dup := clonePart(p)
	return &dup, nil
}

func (s *Store) GetPartsByIDs(_ context.Context, ids []string) (map[string]domain.Part, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Part, len(ids))
	for _, id := range ids {
		if p, ok := s.parts[id]; ok {
			result[id] = clonePart(p)
		}
	}
	return result, nil
}

func (s *Store) CreatePart(_ context.Context, part domain.Part) (*domain.Part, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if part.SKU == "" || part.Name == "" || part.Category == "" {
		return nil, store.ErrInvalidTransaction
	}
	for _, existing := range s.parts {
		if strings.EqualFold(existing.SKU, part.SKU) {
			return nil, store.ErrConflict
		}
	}
	if part.ID == "" {
		part.ID = xid.New("part")
	}
	if _, exists := s.parts[part.ID]; exists {
		return nil, store.ErrConflict
	}
	part.Active = true
	part = clonePart(part)
	s.parts[part.ID] = part
	dup := clonePart(part)
	return &dup, nil
}

func (s *Store) SetPartPrice(_ context.Context, partID string, branchID string, price domain.PartPrice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if branchID == "" || price.CostPrice < 0 || price.RetailPrice < 0 {
		return store.ErrInvalidTransaction
	}
	p, ok := s.parts[partID]
	if !ok {
		return store.ErrNotFound
	}
	p.Prices[branchID] = price
	return nil
}

func (s *Store) ReceiveStock(_ context.Context, entry domain.InventoryTransaction) (*domain.Part, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.BranchID == "" || entry.Quantity < 1 || entry.UnitCost < 0 {
		return nil, store.ErrInvalidTransaction
	}
	p, ok := s.parts[entry.PartID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if entry.ID == "" {
		entry.ID = xid.New("inv")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Type = domain.InventoryStockIn
	p.Stock[entry.BranchID] += entry.Quantity
	s.inventoryTx = append(s.inventoryTx, entry)

	dup := clonePart(p)
	return &dup, nil
}

func (s *Store) ListInventoryTransactions(_ context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.InventoryTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.InventoryTransaction, 0, 64)
	for _, entry := range s.inventoryTx {
		if branchID != "" && entry.BranchID != branchID {
			continue
		}
		if !inRange(entry.CreatedAt, from, to) {
			continue
		}
		result = append(result, entry)
	}
	slices.SortFunc(result, func(a, b domain.InventoryTransaction) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateSaleAtomic(_ context.Context, sale domain.Sale, debt *domain.CustomerDebt) (*domain.Sale, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sales[sale.ID]; ok {
		return cloneSale(existing), true, nil
	}
	if err := s.checkSaleLocked(sale, debt, nil); err != nil {
		return nil, false, err
	}
	created := s.applySaleLocked(sale, debt)
	return cloneSale(created), false, nil
}

func (s *Store) ReplaceSale(_ context.Context, oldID string, sale domain.Sale, debt *domain.CustomerDebt) (*domain.Sale, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sales[sale.ID]; ok {
		if existing.ReplacesSaleID == oldID {
			return cloneSale(existing), true, nil
		}
		return nil, false, fmt.Errorf("sale %s already exists: %w", sale.ID, store.ErrConflict)
	}
	old, ok := s.sales[oldID]
	if !ok {
		return nil, false, store.ErrNotFound
	}
	if err := s.checkReversibleLocked(old); err != nil {
		return nil, false, err
	}

	// Units held by the old sale come back before the new one is checked.
	released := map[string]int{}
	if old.BranchID == sale.BranchID {
		for _, item := range old.Items {
			if item.Kind == domain.LineKindPart {
				released[item.PartID] += item.Quantity
			}
		}
	}
	if err := s.checkSaleLocked(sale, debt, released); err != nil {
		return nil, false, err
	}

	at := sale.SaleTime
	if at.IsZero() {
		at = time.Now().UTC()
	}
	s.reverseSaleLocked(old, at)
	sale.ReplacesSaleID = oldID
	created := s.applySaleLocked(sale, debt)
	return cloneSale(created), false, nil
}

func (s *Store) DeleteSale(_ context.Context, id string, at time.Time) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if err := s.checkReversibleLocked(old); err != nil {
		return nil, err
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	deleted := cloneSale(old)
	s.reverseSaleLocked(old, at)
	return deleted, nil
}

func (s *Store) checkSaleLocked(sale domain.Sale, debt *domain.CustomerDebt, released map[string]int) error {
	if sale.ID == "" || sale.BranchID == "" || len(sale.Items) == 0 {
		return store.ErrInvalidTransaction
	}
	if sale.PaidAmount+sale.RemainingAmount != sale.Total {
		return store.ErrInvalidTransaction
	}

	needed := map[string]int{}
	for _, item := range sale.Items {
		if item.Quantity < 1 || item.SellingPrice < 0 {
			return store.ErrInvalidTransaction
		}
		if item.Kind == domain.LineKindService {
			continue
		}
		p, ok := s.parts[item.PartID]
		if !ok || !p.Active {
			return fmt.Errorf("part %s unavailable: %w", item.PartID, store.ErrInvalidTransaction)
		}
		needed[item.PartID] += item.Quantity
	}
	for partID, qty := range needed {
		p := s.parts[partID]
		if p.Stock[sale.BranchID]+released[partID] < qty {
			return fmt.Errorf("%w: %s", store.ErrInsufficientStock, p.Name)
		}
	}

	if debt != nil {
		if debt.SaleID != sale.ID || debt.CustomerID == "" || debt.RemainingAmount <= 0 {
			return store.ErrInvalidTransaction
		}
		if _, exists := s.debts[debt.ID]; exists {
			return store.ErrConflict
		}
	}
	return nil
}

func (s *Store) applySaleLocked(sale domain.Sale, debt *domain.CustomerDebt) *domain.Sale {
	if sale.SaleTime.IsZero() {
		sale.SaleTime = time.Now().UTC()
	}

	for _, item := range sale.Items {
		if item.Kind == domain.LineKindService {
			continue
		}
		p := s.parts[item.PartID]
		p.Stock[sale.BranchID] -= item.Quantity
		s.inventoryTx = append(s.inventoryTx, domain.InventoryTransaction{
			ID:          xid.New("inv"),
			BranchID:    sale.BranchID,
			PartID:      item.PartID,
			Type:        domain.InventoryStockOut,
			Quantity:    item.Quantity,
			UnitCost:    item.CostPrice,
			ReferenceID: sale.ID,
			CreatedAt:   sale.SaleTime,
		})
	}

	s.ledger = append(s.ledger, domain.CashLedgerEntry{
		ID:            xid.New("cash"),
		BranchID:      sale.BranchID,
		Type:          domain.LedgerIncome,
		Category:      domain.LedgerCategorySale,
		Amount:        sale.Total,
		PaymentMethod: sale.PaymentMethod,
		ReferenceID:   sale.ID,
		Description:   "Sale " + sale.ID,
		CreatedAt:     sale.SaleTime,
	})

	stored := cloneSale(&sale)
	s.sales[sale.ID] = stored

	if debt != nil {
		d := *debt
		if d.ID == "" {
			d.ID = xid.New("debt")
		}
		if d.CreatedDate.IsZero() {
			d.CreatedDate = sale.SaleTime
		}
		d.Status = domain.DebtOpen
		s.debts[d.ID] = &d
	}
	return stored
}

func (s *Store) checkReversibleLocked(old *domain.Sale) error {
	for _, d := range s.debts {
		if d.SaleID == old.ID && d.PaidAmount > 0 {
			return fmt.Errorf("sale %s has debt payments: %w", old.ID, store.ErrConflict)
		}
	}
	return nil
}

func (s *Store) reverseSaleLocked(old *domain.Sale, at time.Time) {
	for _, item := range old.Items {
		if item.Kind == domain.LineKindService {
			continue
		}
		if p, ok := s.parts[item.PartID]; ok {
			p.Stock[old.BranchID] += item.Quantity
		}
		s.inventoryTx = append(s.inventoryTx, domain.InventoryTransaction{
			ID:          xid.New("inv"),
			BranchID:    old.BranchID,
			PartID:      item.PartID,
			Type:        domain.InventorySaleReversal,
			Quantity:    item.Quantity,
			UnitCost:    item.CostPrice,
			ReferenceID: old.ID,
			CreatedAt:   at,
		})
	}

	s.ledger = append(s.ledger, domain.CashLedgerEntry{
		ID:            xid.New("cash"),
		BranchID:      old.BranchID,
		Type:          domain.LedgerExpense,
		Category:      domain.LedgerCategorySaleReversal,
		Amount:        old.Total,
		PaymentMethod: old.PaymentMethod,
		ReferenceID:   old.ID,
		Description:   "Reversal of sale " + old.ID,
		CreatedAt:     at,
	})

	for _, d := range s.debts {
		if d.SaleID == old.ID && d.Status == domain.DebtOpen {
			d.Status = domain.DebtCancelled
		}
	}
	delete(s.sales, old.ID)
}

func (s *Store) FindSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, branchID string, from time.Time, to time.Time) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if branchID != "" && sale.BranchID != branchID {
			continue
		}
		if !inRange(sale.SaleTime, from, to) {
			continue
		}
		result = append(result, *cloneSale(sale))
	}
	slices.SortFunc(result, func(a, b domain.Sale) int {
		if a.SaleTime.Equal(b.SaleTime) {
			return cmpString(a.ID, b.ID)
		}
		return a.SaleTime.Compare(b.SaleTime)
	})
	return result, nil
}

func (s *Store) ListCashLedger(_ context.Context, branchID string, from time.Time, to time.Time) ([]domain.CashLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.CashLedgerEntry, 0, len(s.ledger))
	for _, entry := range s.ledger {
		if branchID != "" && entry.BranchID != branchID {
			continue
		}
		if !inRange(entry.CreatedAt, from, to) {
			continue
		}
		result = append(result, entry)
	}
	slices.SortStableFunc(result, func(a, b domain.CashLedgerEntry) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return result, nil
}

func (s *Store) ListDebts(_ context.Context, filter domain.DebtFilter) ([]domain.CustomerDebt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.CustomerDebt, 0, len(s.debts))
	for _, d := range s.debts {
		if filter.BranchID != "" && d.BranchID != filter.BranchID {
			continue
		}
		if filter.CustomerID != "" && d.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		result = append(result, *d)
	}
	slices.SortFunc(result, func(a, b domain.CustomerDebt) int {
		if a.CreatedDate.Equal(b.CreatedDate) {
			return cmpString(a.ID, b.ID)
		}
		return b.CreatedDate.Compare(a.CreatedDate)
	})
	return result, nil
}

func (s *Store) GetDebt(_ context.Context, id string) (*domain.CustomerDebt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.debts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	dup := *d
	return &dup, nil
}

func (s *Store) RecordDebtPayment(_ context.Context, payment domain.DebtPayment) (*domain.CustomerDebt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.debts[payment.DebtID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if d.Status != domain.DebtOpen {
		return nil, store.ErrConflict
	}
	if payment.Amount <= 0 || payment.Amount > d.RemainingAmount {
		return nil, store.ErrInvalidTransaction
	}
	if payment.ID == "" {
		payment.ID = xid.New("dpay")
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	d.PaidAmount += payment.Amount
	d.RemainingAmount -= payment.Amount
	if d.RemainingAmount == 0 {
		d.Status = domain.DebtPaid
	}
	s.debtPayments = append(s.debtPayments, payment)

	dup := *d
	return &dup, nil
}

func (s *Store) CreateWorkOrder(_ context.Context, order domain.WorkOrder) (*domain.WorkOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.BranchID == "" || order.VehiclePlate == "" || order.LaborCost < 0 || order.PaidAmount < 0 {
		return nil, store.ErrInvalidTransaction
	}
	if order.ID == "" {
		order.ID = xid.New("wo")
	}
	if _, exists := s.workOrders[order.ID]; exists {
		return nil, store.ErrConflict
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt
	if order.Status == "" {
		order.Status = domain.WorkOrderReceived
	}
	stored := cloneWorkOrder(order)
	s.workOrders[order.ID] = &stored
	dup := cloneWorkOrder(stored)
	return &dup, nil
}

func (s *Store) GetWorkOrder(_ context.Context, id string) (*domain.WorkOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.workOrders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	dup := cloneWorkOrder(*order)
	return &dup, nil
}

func (s *Store) UpdateWorkOrderStatus(_ context.Context, id string, from domain.WorkOrderStatus, to domain.WorkOrderStatus, at time.Time) (*domain.WorkOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.workOrders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if order.Status != from {
		return nil, store.ErrConflict
	}
	order.Status = to
	order.UpdatedAt = at
	dup := cloneWorkOrder(*order)
	return &dup, nil
}

func (s *Store) ListWorkOrders(_ context.Context, branchID string, from time.Time, to time.Time) ([]domain.WorkOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.WorkOrder, 0, len(s.workOrders))
	for _, order := range s.workOrders {
		if branchID != "" && order.BranchID != branchID {
			continue
		}
		if !inRange(order.CreatedAt, from, to) {
			continue
		}
		result = append(result, cloneWorkOrder(*order))
	}
	slices.SortFunc(result, func(a, b domain.WorkOrder) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if branchID != "" && entry.BranchID != branchID {
			continue
		}
		if !inRange(entry.CreatedAt, from, to) {
			continue
		}
		result = append(result, entry)
	}
	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}
	if _, exists := s.users[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.users[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidTransaction
	}
	user, exists := s.users[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.users[username] = user
	return nil
}

// inRange reports whether t lies in [from, to). A zero bound is open.
func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func clonePart(src domain.Part) domain.Part {
	dup := src
	dup.Prices = make(map[string]domain.PartPrice, len(src.Prices))
	for k, v := range src.Prices {
		dup.Prices[k] = v
	}
	dup.Stock = make(map[string]int, len(src.Stock))
	for k, v := range src.Stock {
		dup.Stock[k] = v
	}
	return dup
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dup := *src
	dup.Items = make([]domain.SaleItem, len(src.Items))
	copy(dup.Items, src.Items)
	if src.Installment != nil {
		plan := *src.Installment
		dup.Installment = &plan
	}
	if src.Delivery != nil {
		delivery := *src.Delivery
		dup.Delivery = &delivery
	}
	return &dup
}

func cloneWorkOrder(src domain.WorkOrder) domain.WorkOrder {
	dup := src
	dup.Parts = make([]domain.SaleItem, len(src.Parts))
	copy(dup.Parts, src.Parts)
	return dup
}
