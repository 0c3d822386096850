package domain

import "time"

// PartPrice is the branch-scoped cost and retail price of a part.
type PartPrice struct {
	CostPrice   int64 `json:"cost_price"`
	RetailPrice int64 `json:"retail_price"`
}

type Part struct {
	ID       string               `json:"id"`
	SKU      string               `json:"sku"`
	Name     string               `json:"name"`
	Category string               `json:"category"`
	Prices   map[string]PartPrice `json:"prices"`
	Stock    map[string]int       `json:"stock"`
	Active   bool                 `json:"active"`
}

// PriceFor returns the part's price at the given branch.
func (p Part) PriceFor(branchID string) (PartPrice, bool) {
	price, ok := p.Prices[branchID]
	return price, ok
}

func (p Part) StockAt(branchID string) int {
	return p.Stock[branchID]
}

type PartCreateRequest struct {
	BranchID     string `json:"branch_id"`
	SKU          string `json:"sku" validate:"required,max=64"`
	Name         string `json:"name" validate:"required,max=200"`
	Category     string `json:"category" validate:"required,max=80"`
	CostPrice    int64  `json:"cost_price" validate:"gte=0,max=10000000000"`
	RetailPrice  int64  `json:"retail_price" validate:"gte=0,max=10000000000"`
	InitialStock int    `json:"initial_stock" validate:"gte=0,max=1000000"`
}

type LineKind string

const (
	LineKindPart    LineKind = "part"
	LineKindService LineKind = "service"
)

// CartItem is one line of an in-progress cart. StockSnapshot is the branch
// stock observed when the line was added and is only a client-side guard.
type CartItem struct {
	LineID        string   `json:"line_id"`
	Kind          LineKind `json:"kind"`
	PartID        string   `json:"part_id,omitempty"`
	PartName      string   `json:"part_name"`
	SKU           string   `json:"sku,omitempty"`
	Category      string   `json:"category,omitempty"`
	Quantity      int      `json:"quantity"`
	SellingPrice  int64    `json:"selling_price"`
	CostPrice     int64    `json:"cost_price"`
	StockSnapshot int      `json:"stock_snapshot"`
}

func (c CartItem) LineTotal() int64 {
	return int64(c.Quantity) * c.SellingPrice
}

type Customer struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// IsWalkIn reports whether the sale has no registered customer attached.
func (c Customer) IsWalkIn() bool {
	return c.ID == ""
}

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentBank PaymentMethod = "bank"
	PaymentCard PaymentMethod = "card"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentBank, PaymentCard:
		return true
	default:
		return false
	}
}

type PaymentType string

const (
	PaymentFull        PaymentType = "full"
	PaymentPartial     PaymentType = "partial"
	PaymentInstallment PaymentType = "installment"
	PaymentNote        PaymentType = "note"
)

func (t PaymentType) Valid() bool {
	switch t {
	case PaymentFull, PaymentPartial, PaymentInstallment, PaymentNote:
		return true
	default:
		return false
	}
}

type InstallmentPlan struct {
	FinanceCompany string  `json:"finance_company"`
	TermMonths     int     `json:"term_months"`
	InterestRate   float64 `json:"interest_rate"`
	PrepaidAmount  int64   `json:"prepaid_amount"`
}

type DeliveryMethod string

const (
	DeliveryPickup DeliveryMethod = "pickup"
	DeliveryCOD    DeliveryMethod = "cod"
)

type Delivery struct {
	Method  DeliveryMethod `json:"method"`
	Address string         `json:"address,omitempty"`
	Phone   string         `json:"phone,omitempty"`
	Note    string         `json:"note,omitempty"`
}

type SaleItem struct {
	Kind         LineKind `json:"kind"`
	PartID       string   `json:"part_id,omitempty"`
	PartName     string   `json:"part_name"`
	SKU          string   `json:"sku,omitempty"`
	Category     string   `json:"category,omitempty"`
	Quantity     int      `json:"quantity"`
	SellingPrice int64    `json:"selling_price"`
	CostPrice    int64    `json:"cost_price"`
}

func (i SaleItem) LineTotal() int64 {
	return int64(i.Quantity) * i.SellingPrice
}

func (i SaleItem) LineCost() int64 {
	return int64(i.Quantity) * i.CostPrice
}

// Sale is a finalized checkout record. It is immutable once persisted; an
// edit replaces it as a whole.
type Sale struct {
	ID              string           `json:"id"`
	BranchID        string           `json:"branch_id"`
	TerminalID      string           `json:"terminal_id,omitempty"`
	Items           []SaleItem       `json:"items"`
	Customer        Customer         `json:"customer"`
	Subtotal        int64            `json:"subtotal"`
	Discount        int64            `json:"discount"`
	Total           int64            `json:"total"`
	PaidAmount      int64            `json:"paid_amount"`
	RemainingAmount int64            `json:"remaining_amount"`
	PaymentMethod   PaymentMethod    `json:"payment_method"`
	PaymentType     PaymentType      `json:"payment_type"`
	Installment     *InstallmentPlan `json:"installment,omitempty"`
	Delivery        *Delivery        `json:"delivery,omitempty"`
	CreatedBy       string           `json:"created_by"`
	Note            string           `json:"note,omitempty"`
	SaleTime        time.Time        `json:"sale_time"`
	ReplacesSaleID  string           `json:"replaces_sale_id,omitempty"`
}

type DebtStatus string

const (
	DebtOpen      DebtStatus = "open"
	DebtPaid      DebtStatus = "paid"
	DebtCancelled DebtStatus = "cancelled"
)

type CustomerDebt struct {
	ID              string     `json:"id"`
	SaleID          string     `json:"sale_id,omitempty"`
	CustomerID      string     `json:"customer_id"`
	CustomerName    string     `json:"customer_name"`
	TotalAmount     int64      `json:"total_amount"`
	PaidAmount      int64      `json:"paid_amount"`
	RemainingAmount int64      `json:"remaining_amount"`
	Description     string     `json:"description"`
	BranchID        string     `json:"branch_id"`
	Status          DebtStatus `json:"status"`
	CreatedDate     time.Time  `json:"created_date"`
}

type DebtFilter struct {
	BranchID   string
	CustomerID string
	Status     DebtStatus
}

type DebtPaymentRequest struct {
	Amount int64  `json:"amount" validate:"gt=0"`
	Note   string `json:"note" validate:"max=500"`
}

type DebtPayment struct {
	ID        string    `json:"id"`
	DebtID    string    `json:"debt_id"`
	Amount    int64     `json:"amount"`
	Note      string    `json:"note,omitempty"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type LedgerEntryType string

const (
	LedgerIncome  LedgerEntryType = "income"
	LedgerExpense LedgerEntryType = "expense"
)

const (
	LedgerCategorySale         = "sale"
	LedgerCategorySaleReversal = "sale_reversal"
)

type CashLedgerEntry struct {
	ID            string          `json:"id"`
	BranchID      string          `json:"branch_id"`
	Type          LedgerEntryType `json:"type"`
	Category      string          `json:"category"`
	Amount        int64           `json:"amount"`
	PaymentMethod PaymentMethod   `json:"payment_method,omitempty"`
	ReferenceID   string          `json:"reference_id"`
	Description   string          `json:"description"`
	CreatedAt     time.Time       `json:"created_at"`
}

type InventoryTxType string

const (
	InventoryStockIn      InventoryTxType = "stock_in"
	InventoryStockOut     InventoryTxType = "stock_out"
	InventorySaleReversal InventoryTxType = "sale_reversal"
)

type InventoryTransaction struct {
	ID          string          `json:"id"`
	BranchID    string          `json:"branch_id"`
	PartID      string          `json:"part_id"`
	Type        InventoryTxType `json:"type"`
	Quantity    int             `json:"quantity"`
	UnitCost    int64           `json:"unit_cost"`
	ReferenceID string          `json:"reference_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type StockReceiptRequest struct {
	BranchID string `json:"branch_id"`
	PartID   string `json:"part_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"gt=0"`
	UnitCost int64  `json:"unit_cost" validate:"gte=0"`
	Note     string `json:"note" validate:"max=500"`
}

type WorkOrderStatus string

const (
	WorkOrderReceived   WorkOrderStatus = "received"
	WorkOrderInProgress WorkOrderStatus = "in_progress"
	WorkOrderCompleted  WorkOrderStatus = "completed"
	WorkOrderDelivered  WorkOrderStatus = "delivered"
	WorkOrderCancelled  WorkOrderStatus = "cancelled"
)

type WorkOrder struct {
	ID           string          `json:"id"`
	BranchID     string          `json:"branch_id"`
	Customer     Customer        `json:"customer"`
	VehiclePlate string          `json:"vehicle_plate"`
	VehicleModel string          `json:"vehicle_model,omitempty"`
	Description  string          `json:"description"`
	Parts        []SaleItem      `json:"parts"`
	LaborCost    int64           `json:"labor_cost"`
	Total        int64           `json:"total"`
	PaidAmount   int64           `json:"paid_amount"`
	Status       WorkOrderStatus `json:"status"`
	CreatedBy    string          `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type WorkOrderPartLine struct {
	PartID   string `json:"part_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

type WorkOrderCreateRequest struct {
	BranchID     string              `json:"branch_id"`
	Customer     Customer            `json:"customer"`
	VehiclePlate string              `json:"vehicle_plate" validate:"required,max=20"`
	VehicleModel string              `json:"vehicle_model" validate:"max=100"`
	Description  string              `json:"description" validate:"required,max=2000"`
	Parts        []WorkOrderPartLine `json:"parts" validate:"dive"`
	LaborCost    int64               `json:"labor_cost" validate:"gte=0"`
	PaidAmount   int64               `json:"paid_amount" validate:"gte=0"`
}

type WorkOrderStatusRequest struct {
	Status WorkOrderStatus `json:"status" validate:"required,oneof=received in_progress completed delivered cancelled"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	BranchID      string    `json:"branch_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
