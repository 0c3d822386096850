package store

import (
	"context"
	"errors"
	"time"

	"motopos/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrConflict           = errors.New("conflict")
)

type Repository interface {
	ListParts(ctx context.Context) ([]domain.Part, error)
	GetPart(ctx context.Context, id string) (*domain.Part, error)
	GetPartsByIDs(ctx context.Context, ids []string) (map[string]domain.Part, error)
	CreatePart(ctx context.Context, part domain.Part) (*domain.Part, error)
	SetPartPrice(ctx context.Context, partID string, branchID string, price domain.PartPrice) error

	ReceiveStock(ctx context.Context, entry domain.InventoryTransaction) (*domain.Part, error)
	ListInventoryTransactions(ctx context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.InventoryTransaction, error)

	// CreateSaleAtomic checks and decrements stock, inserts the sale, one
	// stock-out row per part line, one cash-ledger row and, when debt is not
	// nil, the customer debt, all in one transaction. A sale id that already
	// exists returns the stored sale with duplicate set.
	CreateSaleAtomic(ctx context.Context, sale domain.Sale, debt *domain.CustomerDebt) (created *domain.Sale, duplicate bool, err error)
	// ReplaceSale reverses oldID and creates sale in one transaction.
	ReplaceSale(ctx context.Context, oldID string, sale domain.Sale, debt *domain.CustomerDebt) (created *domain.Sale, duplicate bool, err error)
	// DeleteSale restocks parts, posts a reversal ledger row, cancels the
	// linked open debt and removes the sale.
	DeleteSale(ctx context.Context, id string, at time.Time) (*domain.Sale, error)
	FindSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, branchID string, from time.Time, to time.Time) ([]domain.Sale, error)
	ListCashLedger(ctx context.Context, branchID string, from time.Time, to time.Time) ([]domain.CashLedgerEntry, error)

	ListDebts(ctx context.Context, filter domain.DebtFilter) ([]domain.CustomerDebt, error)
	GetDebt(ctx context.Context, id string) (*domain.CustomerDebt, error)
	RecordDebtPayment(ctx context.Context, payment domain.DebtPayment) (*domain.CustomerDebt, error)

	CreateWorkOrder(ctx context.Context, order domain.WorkOrder) (*domain.WorkOrder, error)
	GetWorkOrder(ctx context.Context, id string) (*domain.WorkOrder, error)
	// UpdateWorkOrderStatus moves an order from one status to another and
	// returns ErrConflict if the order is no longer in from.
	UpdateWorkOrderStatus(ctx context.Context, id string, from domain.WorkOrderStatus, to domain.WorkOrderStatus, at time.Time) (*domain.WorkOrder, error)
	ListWorkOrders(ctx context.Context, branchID string, from time.Time, to time.Time) ([]domain.WorkOrder, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
