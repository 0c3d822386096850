package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"motopos/backend/internal/domain"
	"motopos/backend/internal/store"
	"motopos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListParts(ctx context.Context) ([]domain.Part, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sku, name, category, active
		FROM parts
		WHERE active = true
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	parts := make([]domain.Part, 0, 128)
	ids := make([]string, 0, 128)
	for rows.Next() {
		p := domain.Part{Prices: map[string]domain.PartPrice{}, Stock: map[string]int{}}
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.Active); err != nil {
			return nil, err
		}
		parts = append(parts, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	index := make(map[string]*domain.Part, len(parts))
	for i := range parts {
		index[parts[i].ID] = &parts[i]
	}
	if err := s.loadPriceAndStock(ctx, s.db, ids, index); err != nil {
		return nil, err
	}
	return parts, nil
}

func (s *Store) GetPart(ctx context.Context, id string) (*domain.Part, error) {
	parts, err := s.GetPartsByIDs(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	p, ok := parts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetPartsByIDs(ctx context.Context, ids []string) (map[string]domain.Part, error) {
	result := make(map[string]domain.Part, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sku, name, category, active
		FROM parts
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	index := make(map[string]*domain.Part, len(ids))
	found := make([]string, 0, len(ids))
	for rows.Next() {
		p := &domain.Part{Prices: map[string]domain.PartPrice{}, Stock: map[string]int{}}
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.Active); err != nil {
			return nil, err
		}
		index[p.ID] = p
		found = append(found, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadPriceAndStock(ctx, s.db, found, index); err != nil {
		return nil, err
	}
	for id, p := range index {
		result[id] = *p
	}
	return result, nil
}

func (s *Store) loadPriceAndStock(ctx context.Context, q querier, ids []string, index map[string]*domain.Part) error {
	if len(ids) == 0 {
		return nil
	}

	priceRows, err := q.QueryContext(ctx, `
		SELECT part_id, branch_id, cost_price, retail_price
		FROM part_branch_prices
		WHERE part_id = ANY($1)
	`, ids)
	if err != nil {
		return err
	}
	for priceRows.Next() {
		var partID, branchID string
		var price domain.PartPrice
		if err := priceRows.Scan(&partID, &branchID, &price.CostPrice, &price.RetailPrice); err != nil {
			_ = priceRows.Close()
			return err
		}
		if p, ok := index[partID]; ok {
			p.Prices[branchID] = price
		}
	}
	if err := priceRows.Err(); err != nil {
		_ = priceRows.Close()
		return err
	}
	_ = priceRows.Close()

	stockRows, err := q.QueryContext(ctx, `
		SELECT part_id, branch_id, qty
		FROM part_stocks
		WHERE part_id = ANY($1)
	`, ids)
	if err != nil {
		return err
	}
	defer stockRows.Close()
	for stockRows.Next() {
		var partID, branchID string
		var qty int
		if err := stockRows.Scan(&partID, &branchID, &qty); err != nil {
			return err
		}
		if p, ok := index[partID]; ok {
			p.Stock[branchID] = qty
		}
	}
	return stockRows.Err()
}

func (s *Store) CreatePart(ctx context.Context, part domain.Part) (*domain.Part, error) {
	if part.SKU == "" || part.Name == "" || part.Category == "" {
		return nil, store.ErrInvalidTransaction
	}
	if part.ID == "" {
		part.ID = xid.New("part")
	}

	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO parts (id, sku, name, category, active, created_at)
		VALUES ($1, $2, $3, $4, true, now())
	`, part.ID, part.SKU, part.Name, part.Category)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	for branchID, price := range part.Prices {
		if _, err := pgTx.ExecContext(ctx, `
			INSERT INTO part_branch_prices (part_id, branch_id, cost_price, retail_price, updated_at)
			VALUES ($1, $2, $3, $4, now())
		`, part.ID, branchID, price.CostPrice, price.RetailPrice); err != nil {
			return nil, err
		}
	}
	for branchID, qty := range part.Stock {
		if _, err := pgTx.ExecContext(ctx, `
			INSERT INTO part_stocks (part_id, branch_id, qty, updated_at)
			VALUES ($1, $2, $3, now())
		`, part.ID, branchID, qty); err != nil {
			return nil, err
		}
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	part.Active = true
	return &part, nil
}

func (s *Store) SetPartPrice(ctx context.Context, partID string, branchID string, price domain.PartPrice) error {
	if branchID == "" || price.CostPrice < 0 || price.RetailPrice < 0 {
		return store.ErrInvalidTransaction
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM parts WHERE id = $1)`, partID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO part_branch_prices (part_id, branch_id, cost_price, retail_price, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (part_id, branch_id)
		DO UPDATE SET cost_price = EXCLUDED.cost_price, retail_price = EXCLUDED.retail_price, updated_at = now()
	`, partID, branchID, price.CostPrice, price.RetailPrice)
	return err
}

func (s *Store) ReceiveStock(ctx context.Context, entry domain.InventoryTransaction) (*domain.Part, error) {
	if entry.BranchID == "" || entry.Quantity < 1 || entry.UnitCost < 0 {
		return nil, store.ErrInvalidTransaction
	}
	if entry.ID == "" {
		entry.ID = xid.New("inv")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var exists bool
	if err := pgTx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM parts WHERE id = $1)`, entry.PartID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrNotFound
	}

	if _, err := pgTx.ExecContext(ctx, `
		INSERT INTO part_stocks (part_id, branch_id, qty, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (part_id, branch_id)
		DO UPDATE SET qty = part_stocks.qty + EXCLUDED.qty, updated_at = now()
	`, entry.PartID, entry.BranchID, entry.Quantity); err != nil {
		return nil, err
	}
	entry.Type = domain.InventoryStockIn
	if err := insertInventoryTx(ctx, pgTx, entry); err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return s.GetPart(ctx, entry.PartID)
}

func (s *Store) ListInventoryTransactions(ctx context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.InventoryTransaction, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, branch_id, part_id, type, quantity, unit_cost, COALESCE(reference_id, ''), created_at
		FROM inventory_transactions
		WHERE ($1 = '' OR branch_id = $1)
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`, branchID, nullTime(from), nullTime(to), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.InventoryTransaction, 0, 64)
	for rows.Next() {
		var entry domain.InventoryTransaction
		var txType string
		if err := rows.Scan(&entry.ID, &entry.BranchID, &entry.PartID, &txType, &entry.Quantity, &entry.UnitCost, &entry.ReferenceID, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Type = domain.InventoryTxType(txType)
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (s *Store) CreateSaleAtomic(ctx context.Context, sale domain.Sale, debt *domain.CustomerDebt) (*domain.Sale, bool, error) {
	if sale.ID == "" {
		return nil, false, store.ErrInvalidTransaction
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = pgTx.Rollback() }()

	existing, err := findSale(ctx, pgTx, sale.ID)
	if err == nil {
		return existing, true, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	if err := insertSale(ctx, pgTx, &sale, debt); err != nil {
		if isUniqueViolation(err) {
			return s.duplicateAfterRace(ctx, sale.ID)
		}
		return nil, false, err
	}
	if err := pgTx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return s.duplicateAfterRace(ctx, sale.ID)
		}
		return nil, false, err
	}
	return &sale, false, nil
}

// duplicateAfterRace resolves a concurrent insert of the same sale id.
func (s *Store) duplicateAfterRace(ctx context.Context, id string) (*domain.Sale, bool, error) {
	existing, err := findSale(ctx, s.db, id)
	if err != nil {
		return nil, false, err
	}
	return existing, true, nil
}

func (s *Store) ReplaceSale(ctx context.Context, oldID string, sale domain.Sale, debt *domain.CustomerDebt) (*domain.Sale, bool, error) {
	if sale.ID == "" || oldID == "" {
		return nil, false, store.ErrInvalidTransaction
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = pgTx.Rollback() }()

	existing, err := findSale(ctx, pgTx, sale.ID)
	if err == nil {
		if existing.ReplacesSaleID == oldID {
			return existing, true, nil
		}
		return nil, false, fmt.Errorf("sale %s already exists: %w", sale.ID, store.ErrConflict)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	old, err := findSale(ctx, pgTx, oldID)
	if err != nil {
		return nil, false, err
	}
	at := sale.SaleTime
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if err := reverseSale(ctx, pgTx, old, at); err != nil {
		return nil, false, err
	}

	sale.ReplacesSaleID = oldID
	if err := insertSale(ctx, pgTx, &sale, debt); err != nil {
		return nil, false, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, false, err
	}
	return &sale, false, nil
}

func (s *Store) DeleteSale(ctx context.Context, id string, at time.Time) (*domain.Sale, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	old, err := findSale(ctx, pgTx, id)
	if err != nil {
		return nil, err
	}
	if err := reverseSale(ctx, pgTx, old, at); err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return old, nil
}

func insertSale(ctx context.Context, q querier, sale *domain.Sale, debt *domain.CustomerDebt) error {
	if sale.BranchID == "" || len(sale.Items) == 0 || sale.PaidAmount+sale.RemainingAmount != sale.Total {
		return store.ErrInvalidTransaction
	}
	if sale.SaleTime.IsZero() {
		sale.SaleTime = time.Now().UTC()
	}

	needed := map[string]int{}
	for _, item := range sale.Items {
		if item.Quantity < 1 || item.SellingPrice < 0 {
			return store.ErrInvalidTransaction
		}
		if item.Kind == domain.LineKindService {
			continue
		}
		needed[item.PartID] += item.Quantity
	}

	if len(needed) > 0 {
		partIDs := make([]string, 0, len(needed))
		for id := range needed {
			partIDs = append(partIDs, id)
		}
		sort.Strings(partIDs)

		rows, err := q.QueryContext(ctx, `
			SELECT ps.part_id, ps.qty, p.name, p.active
			FROM part_stocks ps
			JOIN parts p ON p.id = ps.part_id
			WHERE ps.branch_id = $1 AND ps.part_id = ANY($2)
			ORDER BY ps.part_id
			FOR UPDATE OF ps
		`, sale.BranchID, partIDs)
		if err != nil {
			return err
		}
		type stockState struct {
			qty    int
			name   string
			active bool
		}
		stock := make(map[string]stockState, len(partIDs))
		for rows.Next() {
			var id string
			var st stockState
			if err := rows.Scan(&id, &st.qty, &st.name, &st.active); err != nil {
				_ = rows.Close()
				return err
			}
			stock[id] = st
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return err
		}
		_ = rows.Close()

		for _, id := range partIDs {
			st, ok := stock[id]
			if !ok || !st.active {
				return fmt.Errorf("part %s unavailable: %w", id, store.ErrInvalidTransaction)
			}
			if st.qty < needed[id] {
				return fmt.Errorf("%w: %s", store.ErrInsufficientStock, st.name)
			}
			if _, err := q.ExecContext(ctx, `
				UPDATE part_stocks
				SET qty = qty - $1, updated_at = now()
				WHERE part_id = $2 AND branch_id = $3
			`, needed[id], id, sale.BranchID); err != nil {
				return err
			}
		}
	}

	installment, err := nullJSON(sale.Installment)
	if err != nil {
		return err
	}
	delivery, err := nullJSON(sale.Delivery)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, `
		INSERT INTO sales (
			id, branch_id, terminal_id, customer_id, customer_name, customer_phone,
			subtotal, discount, total, paid_amount, remaining_amount,
			payment_method, payment_type, installment, delivery,
			created_by, note, sale_time, replaces_sale_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`,
		sale.ID, sale.BranchID, nullIfEmpty(sale.TerminalID), nullIfEmpty(sale.Customer.ID), sale.Customer.Name, sale.Customer.Phone,
		sale.Subtotal, sale.Discount, sale.Total, sale.PaidAmount, sale.RemainingAmount,
		string(sale.PaymentMethod), string(sale.PaymentType), installment, delivery,
		sale.CreatedBy, sale.Note, sale.SaleTime, nullIfEmpty(sale.ReplacesSaleID),
	); err != nil {
		return err
	}

	for i, item := range sale.Items {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, line_no, kind, part_id, part_name, sku, category, quantity, selling_price, cost_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, sale.ID, i+1, string(item.Kind), nullIfEmpty(item.PartID), item.PartName, item.SKU, item.Category,
			item.Quantity, item.SellingPrice, item.CostPrice); err != nil {
			return err
		}
		if item.Kind == domain.LineKindService {
			continue
		}
		if err := insertInventoryTx(ctx, q, domain.InventoryTransaction{
			ID:          xid.New("inv"),
			BranchID:    sale.BranchID,
			PartID:      item.PartID,
			Type:        domain.InventoryStockOut,
			Quantity:    item.Quantity,
			UnitCost:    item.CostPrice,
			ReferenceID: sale.ID,
			CreatedAt:   sale.SaleTime,
		}); err != nil {
			return err
		}
	}

	if err := insertLedger(ctx, q, domain.CashLedgerEntry{
		ID:            xid.New("cash"),
		BranchID:      sale.BranchID,
		Type:          domain.LedgerIncome,
		Category:      domain.LedgerCategorySale,
		Amount:        sale.Total,
		PaymentMethod: sale.PaymentMethod,
		ReferenceID:   sale.ID,
		Description:   "Sale " + sale.ID,
		CreatedAt:     sale.SaleTime,
	}); err != nil {
		return err
	}

	if debt == nil {
		return nil
	}
	if debt.SaleID != sale.ID || debt.CustomerID == "" || debt.RemainingAmount <= 0 {
		return store.ErrInvalidTransaction
	}
	if debt.ID == "" {
		debt.ID = xid.New("debt")
	}
	if debt.CreatedDate.IsZero() {
		debt.CreatedDate = sale.SaleTime
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO customer_debts (
			id, sale_id, customer_id, customer_name, total_amount, paid_amount,
			remaining_amount, description, branch_id, status, created_date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, debt.ID, debt.SaleID, debt.CustomerID, debt.CustomerName, debt.TotalAmount, debt.PaidAmount,
		debt.RemainingAmount, debt.Description, debt.BranchID, string(domain.DebtOpen), debt.CreatedDate)
	return err
}

func reverseSale(ctx context.Context, q querier, old *domain.Sale, at time.Time) error {
	var paidDebts int
	if err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM customer_debts WHERE sale_id = $1 AND paid_amount > 0
	`, old.ID).Scan(&paidDebts); err != nil {
		return err
	}
	if paidDebts > 0 {
		return fmt.Errorf("sale %s has debt payments: %w", old.ID, store.ErrConflict)
	}

	for _, item := range old.Items {
		if item.Kind == domain.LineKindService {
			continue
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO part_stocks (part_id, branch_id, qty, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (part_id, branch_id)
			DO UPDATE SET qty = part_stocks.qty + EXCLUDED.qty, updated_at = now()
		`, item.PartID, old.BranchID, item.Quantity); err != nil {
			return err
		}
		if err := insertInventoryTx(ctx, q, domain.InventoryTransaction{
			ID:          xid.New("inv"),
			BranchID:    old.BranchID,
			PartID:      item.PartID,
			Type:        domain.InventorySaleReversal,
			Quantity:    item.Quantity,
			UnitCost:    item.CostPrice,
			ReferenceID: old.ID,
			CreatedAt:   at,
		}); err != nil {
			return err
		}
	}

	if err := insertLedger(ctx, q, domain.CashLedgerEntry{
		ID:            xid.New("cash"),
		BranchID:      old.BranchID,
		Type:          domain.LedgerExpense,
		Category:      domain.LedgerCategorySaleReversal,
		Amount:        old.Total,
		PaymentMethod: old.PaymentMethod,
		ReferenceID:   old.ID,
		Description:   "Reversal of sale " + old.ID,
		CreatedAt:     at,
	}); err != nil {
		return err
	}

	if _, err := q.ExecContext(ctx, `
		UPDATE customer_debts SET status = $1 WHERE sale_id = $2 AND status = $3
	`, string(domain.DebtCancelled), old.ID, string(domain.DebtOpen)); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, old.ID)
	return err
}

func insertInventoryTx(ctx context.Context, q querier, entry domain.InventoryTransaction) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO inventory_transactions (id, branch_id, part_id, type, quantity, unit_cost, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.BranchID, entry.PartID, string(entry.Type), entry.Quantity, entry.UnitCost,
		nullIfEmpty(entry.ReferenceID), entry.CreatedAt)
	return err
}

func insertLedger(ctx context.Context, q querier, entry domain.CashLedgerEntry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO cash_ledger (id, branch_id, type, category, amount, payment_method, reference_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, entry.BranchID, string(entry.Type), entry.Category, entry.Amount,
		nullIfEmpty(string(entry.PaymentMethod)), entry.ReferenceID, entry.Description, entry.CreatedAt)
	return err
}

const saleColumns = `
	id, branch_id, COALESCE(terminal_id, ''), COALESCE(customer_id, ''), customer_name, customer_phone,
	subtotal, discount, total, paid_amount, remaining_amount,
	payment_method, payment_type, installment, delivery,
	created_by, note, sale_time, COALESCE(replaces_sale_id, '')
`

func scanSale(row interface{ Scan(dest ...any) error }) (*domain.Sale, error) {
	var sale domain.Sale
	var method, paymentType string
	var installment, delivery []byte
	if err := row.Scan(
		&sale.ID, &sale.BranchID, &sale.TerminalID, &sale.Customer.ID, &sale.Customer.Name, &sale.Customer.Phone,
		&sale.Subtotal, &sale.Discount, &sale.Total, &sale.PaidAmount, &sale.RemainingAmount,
		&method, &paymentType, &installment, &delivery,
		&sale.CreatedBy, &sale.Note, &sale.SaleTime, &sale.ReplacesSaleID,
	); err != nil {
		return nil, err
	}
	sale.PaymentMethod = domain.PaymentMethod(method)
	sale.PaymentType = domain.PaymentType(paymentType)
	if len(installment) > 0 {
		var plan domain.InstallmentPlan
		if err := json.Unmarshal(installment, &plan); err != nil {
			return nil, fmt.Errorf("decode installment: %w", err)
		}
		sale.Installment = &plan
	}
	if len(delivery) > 0 {
		var d domain.Delivery
		if err := json.Unmarshal(delivery, &d); err != nil {
			return nil, fmt.Errorf("decode delivery: %w", err)
		}
		sale.Delivery = &d
	}
	return &sale, nil
}

func findSale(ctx context.Context, q querier, id string) (*domain.Sale, error) {
	sale, err := scanSale(q.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	items, err := loadSaleItems(ctx, q, []string{id})
	if err != nil {
		return nil, err
	}
	sale.Items = items[id]
	return sale, nil
}

func loadSaleItems(ctx context.Context, q querier, saleIDs []string) (map[string][]domain.SaleItem, error) {
	result := make(map[string][]domain.SaleItem, len(saleIDs))
	if len(saleIDs) == 0 {
		return result, nil
	}
	rows, err := q.QueryContext(ctx, `
		SELECT sale_id, kind, COALESCE(part_id, ''), part_name, sku, category, quantity, selling_price, cost_price
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, line_no
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var saleID, kind string
		var item domain.SaleItem
		if err := rows.Scan(&saleID, &kind, &item.PartID, &item.PartName, &item.SKU, &item.Category,
			&item.Quantity, &item.SellingPrice, &item.CostPrice); err != nil {
			return nil, err
		}
		item.Kind = domain.LineKind(kind)
		result[saleID] = append(result[saleID], item)
	}
	return result, rows.Err()
}

func (s *Store) FindSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	return findSale(ctx, s.db, id)
}

func (s *Store) ListSales(ctx context.Context, branchID string, from time.Time, to time.Time) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE ($1 = '' OR branch_id = $1)
		  AND ($2::timestamptz IS NULL OR sale_time >= $2)
		  AND ($3::timestamptz IS NULL OR sale_time < $3)
		ORDER BY sale_time, id
	`, branchID, nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	ids := make([]string, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := loadSaleItems(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = items[sales[i].ID]
	}
	return sales, nil
}

func (s *Store) ListCashLedger(ctx context.Context, branchID string, from time.Time, to time.Time) ([]domain.CashLedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, branch_id, type, category, amount, COALESCE(payment_method, ''), reference_id, description, created_at
		FROM cash_ledger
		WHERE ($1 = '' OR branch_id = $1)
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at, id
	`, branchID, nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.CashLedgerEntry, 0, 64)
	for rows.Next() {
		var entry domain.CashLedgerEntry
		var entryType, method string
		if err := rows.Scan(&entry.ID, &entry.BranchID, &entryType, &entry.Category, &entry.Amount, &method,
			&entry.ReferenceID, &entry.Description, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Type = domain.LedgerEntryType(entryType)
		entry.PaymentMethod = domain.PaymentMethod(method)
		result = append(result, entry)
	}
	return result, rows.Err()
}

const debtColumns = `
	id, COALESCE(sale_id, ''), customer_id, customer_name, total_amount, paid_amount,
	remaining_amount, description, branch_id, status, created_date
`

func scanDebt(row interface{ Scan(dest ...any) error }) (*domain.CustomerDebt, error) {
	var d domain.CustomerDebt
	var status string
	if err := row.Scan(&d.ID, &d.SaleID, &d.CustomerID, &d.CustomerName, &d.TotalAmount, &d.PaidAmount,
		&d.RemainingAmount, &d.Description, &d.BranchID, &status, &d.CreatedDate); err != nil {
		return nil, err
	}
	d.Status = domain.DebtStatus(status)
	return &d, nil
}

func (s *Store) ListDebts(ctx context.Context, filter domain.DebtFilter) ([]domain.CustomerDebt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+debtColumns+`
		FROM customer_debts
		WHERE ($1 = '' OR branch_id = $1)
		  AND ($2 = '' OR customer_id = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY created_date DESC, id
	`, filter.BranchID, filter.CustomerID, string(filter.Status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.CustomerDebt, 0, 32)
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

func (s *Store) GetDebt(ctx context.Context, id string) (*domain.CustomerDebt, error) {
	d, err := scanDebt(s.db.QueryRowContext(ctx, `SELECT `+debtColumns+` FROM customer_debts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

func (s *Store) RecordDebtPayment(ctx context.Context, payment domain.DebtPayment) (*domain.CustomerDebt, error) {
	if payment.Amount <= 0 {
		return nil, store.ErrInvalidTransaction
	}
	if payment.ID == "" {
		payment.ID = xid.New("dpay")
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	d, err := scanDebt(pgTx.QueryRowContext(ctx, `SELECT `+debtColumns+` FROM customer_debts WHERE id = $1 FOR UPDATE`, payment.DebtID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if d.Status != domain.DebtOpen {
		return nil, store.ErrConflict
	}
	if payment.Amount > d.RemainingAmount {
		return nil, store.ErrInvalidTransaction
	}

	d.PaidAmount += payment.Amount
	d.RemainingAmount -= payment.Amount
	if d.RemainingAmount == 0 {
		d.Status = domain.DebtPaid
	}
	if _, err := pgTx.ExecContext(ctx, `
		UPDATE customer_debts
		SET paid_amount = $1, remaining_amount = $2, status = $3
		WHERE id = $4
	`, d.PaidAmount, d.RemainingAmount, string(d.Status), d.ID); err != nil {
		return nil, err
	}
	if _, err := pgTx.ExecContext(ctx, `
		INSERT INTO debt_payments (id, debt_id, amount, note, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, payment.ID, payment.DebtID, payment.Amount, payment.Note, payment.CreatedBy, payment.CreatedAt); err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return d, nil
}

const workOrderColumns = `
	id, branch_id, COALESCE(customer_id, ''), customer_name, customer_phone, vehicle_plate, vehicle_model,
	description, parts, labor_cost, total, paid_amount, status, created_by, created_at, updated_at
`

func scanWorkOrder(row interface{ Scan(dest ...any) error }) (*domain.WorkOrder, error) {
	var order domain.WorkOrder
	var status string
	var parts []byte
	if err := row.Scan(&order.ID, &order.BranchID, &order.Customer.ID, &order.Customer.Name, &order.Customer.Phone,
		&order.VehiclePlate, &order.VehicleModel, &order.Description, &parts, &order.LaborCost, &order.Total,
		&order.PaidAmount, &status, &order.CreatedBy, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return nil, err
	}
	order.Status = domain.WorkOrderStatus(status)
	order.Parts = []domain.SaleItem{}
	if len(parts) > 0 {
		if err := json.Unmarshal(parts, &order.Parts); err != nil {
			return nil, fmt.Errorf("decode work order parts: %w", err)
		}
	}
	return &order, nil
}

func (s *Store) CreateWorkOrder(ctx context.Context, order domain.WorkOrder) (*domain.WorkOrder, error) {
	if order.BranchID == "" || order.VehiclePlate == "" || order.LaborCost < 0 || order.PaidAmount < 0 {
		return nil, store.ErrInvalidTransaction
	}
	if order.ID == "" {
		order.ID = xid.New("wo")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	order.UpdatedAt = order.CreatedAt
	if order.Status == "" {
		order.Status = domain.WorkOrderReceived
	}
	if order.Parts == nil {
		order.Parts = []domain.SaleItem{}
	}
	parts, err := json.Marshal(order.Parts)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO work_orders (
			id, branch_id, customer_id, customer_name, customer_phone, vehicle_plate, vehicle_model,
			description, parts, labor_cost, total, paid_amount, status, created_by, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, order.ID, order.BranchID, nullIfEmpty(order.Customer.ID), order.Customer.Name, order.Customer.Phone,
		order.VehiclePlate, order.VehicleModel, order.Description, string(parts), order.LaborCost, order.Total,
		order.PaidAmount, string(order.Status), order.CreatedBy, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &order, nil
}

func (s *Store) GetWorkOrder(ctx context.Context, id string) (*domain.WorkOrder, error) {
	order, err := scanWorkOrder(s.db.QueryRowContext(ctx, `SELECT `+workOrderColumns+` FROM work_orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *Store) UpdateWorkOrderStatus(ctx context.Context, id string, from domain.WorkOrderStatus, to domain.WorkOrderStatus, at time.Time) (*domain.WorkOrder, error) {
	order, err := scanWorkOrder(s.db.QueryRowContext(ctx, `
		UPDATE work_orders
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING `+workOrderColumns, string(to), at, id, string(from)))
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if _, getErr := s.GetWorkOrder(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, store.ErrConflict
}

func (s *Store) ListWorkOrders(ctx context.Context, branchID string, from time.Time, to time.Time) ([]domain.WorkOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+workOrderColumns+`
		FROM work_orders
		WHERE ($1 = '' OR branch_id = $1)
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC, id
	`, branchID, nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.WorkOrder, 0, 32)
	for rows.Next() {
		order, err := scanWorkOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *order)
	}
	return result, rows.Err()
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, branch_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, entry.BranchID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType,
		entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, branch_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE ($1 = '' OR branch_id = $1)
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`, branchID, nullTime(from), nullTime(to), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.AuditLog, 0, 64)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.BranchID, &entry.ActorUsername, &entry.ActorRole, &entry.Action,
			&entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, active, created_at)
		VALUES ($1, $2, $3, true, $4)
	`, username, user.Password, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidTransaction
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE username = $2`, password, username)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val time.Time) any {
	if val.IsZero() {
		return nil
	}
	return val
}

func nullJSON(val any) (any, error) {
	switch v := val.(type) {
	case *domain.InstallmentPlan:
		if v == nil {
			return nil, nil
		}
	case *domain.Delivery:
		if v == nil {
			return nil, nil
		}
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}
