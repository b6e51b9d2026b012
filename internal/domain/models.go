package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubUnit is an alternate selling unit: Factor base units sold together at Price.
type SubUnit struct {
	Name   string          `json:"name"`
	Factor int             `json:"factor"`
	Price  decimal.Decimal `json:"price"`
}

type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	SKU          string          `json:"sku"`
	Barcode      string          `json:"barcode"`
	Category     string          `json:"category"`
	BuyPrice     decimal.Decimal `json:"buyPrice"`
	SellPrice    decimal.Decimal `json:"sellPrice"`
	Stock        int             `json:"stock"`
	ReorderLevel int             `json:"reorderLevel"`
	Status       string          `json:"status"`
	Unit         string          `json:"unit,omitempty"`
	SubUnits     []SubUnit       `json:"subUnits,omitempty"`
}

// FindSubUnit returns the sub-unit with the given name.
func (p Product) FindSubUnit(name string) (SubUnit, bool) {
	for _, unit := range p.SubUnits {
		if unit.Name == name {
			return unit, true
		}
	}
	return SubUnit{}, false
}

type Customer struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Phone          string          `json:"phone"`
	Address        string          `json:"address"`
	Notes          string          `json:"notes"`
	Type           string          `json:"type"`
	LoyaltyPoints  int             `json:"loyaltyPoints"`
	CreditLimit    decimal.Decimal `json:"creditLimit"`
	Balance        decimal.Decimal `json:"balance"`
	TotalPurchases decimal.Decimal `json:"totalPurchases"`
}

type Supplier struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Phone       string          `json:"phone"`
	Address     string          `json:"address"`
	Email       string          `json:"email"`
	CreditLimit decimal.Decimal `json:"creditLimit"`
	Balance     decimal.Decimal `json:"balance"`
	Notes       string          `json:"notes"`
}

// Transaction is one financial ledger entry. Amount is always a positive
// magnitude; the direction follows from Type.
type Transaction struct {
	ID            string          `json:"id"`
	Date          time.Time       `json:"date"`
	Type          string          `json:"type"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	PaymentMethod string          `json:"paymentMethod"`
	Treasury      string          `json:"treasury"`
	Reference     string          `json:"reference,omitempty"`
}

type InvoiceItem struct {
	ProductID   string          `json:"productId"`
	Name        string          `json:"name"`
	Unit        string          `json:"unit,omitempty"`
	UnitFactor  int             `json:"unitFactor,omitempty"`
	Qty         int             `json:"qty"`
	Price       decimal.Decimal `json:"price"`
	ReturnedQty int             `json:"returnedQty,omitempty"`
}

// BaseQty is the quantity in base stock units.
func (i InvoiceItem) BaseQty() int {
	return i.Qty * factorOrOne(i.UnitFactor)
}

// OutstandingQty is the sold quantity not yet returned, in sale units.
func (i InvoiceItem) OutstandingQty() int {
	return i.Qty - i.ReturnedQty
}

type Invoice struct {
	ID                    int64            `json:"id"`
	Date                  time.Time        `json:"date"`
	Customer              string           `json:"customer"`
	CustomerID            string           `json:"customerId,omitempty"`
	Items                 []InvoiceItem    `json:"items"`
	Subtotal              decimal.Decimal  `json:"subtotal"`
	Discount              decimal.Decimal  `json:"discount"`
	DiscountAmount        decimal.Decimal  `json:"discountAmount"`
	PointsDiscount        decimal.Decimal  `json:"pointsDiscount"`
	Tax                   decimal.Decimal  `json:"tax"`
	Total                 decimal.Decimal  `json:"total"`
	RefundedAmount        decimal.Decimal  `json:"refundedAmount"`
	PaymentMethod         string           `json:"paymentMethod"`
	Status                string           `json:"status"`
	Employee              string           `json:"employee"`
	LoyaltyPointsEarned   int              `json:"loyaltyPointsEarned"`
	LoyaltyPointsRedeemed int              `json:"loyaltyPointsRedeemed"`
	LoyaltyPointsReversed int              `json:"loyaltyPointsReversed,omitempty"`
	Notes                 string           `json:"notes,omitempty"`
	IdempotencyKey        string           `json:"idempotencyKey,omitempty"`
	TaxSnapshot           *TaxSettings     `json:"taxSnapshot,omitempty"`
	LoyaltySnapshot       *LoyaltySettings `json:"loyaltySnapshot,omitempty"`
	UpdatedAt             *time.Time       `json:"updatedAt,omitempty"`
}

// Returnable reports whether the invoice still has stock or money to give back.
func (inv Invoice) Returnable() bool {
	switch inv.Status {
	case InvoiceStatusCompleted, InvoiceStatusPending, InvoiceStatusPartiallyReturned:
		return true
	default:
		return false
	}
}

type InventoryLog struct {
	ID            string    `json:"id"`
	Date          time.Time `json:"date"`
	ProductID     string    `json:"productId"`
	ProductName   string    `json:"productName"`
	Type          string    `json:"type"`
	Quantity      int       `json:"quantity"`
	PreviousStock int       `json:"previousStock"`
	NewStock      int       `json:"newStock"`
	Reference     string    `json:"reference,omitempty"`
}

type Role struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// SystemUser holds a bcrypt hash in Password; it is never returned by the API.
type SystemUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Password  string    `json:"password"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	Date       time.Time `json:"date"`
	Actor      string    `json:"actor"`
	ActorRole  string    `json:"actorRole"`
	Action     string    `json:"action"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Detail     string    `json:"detail"`
}

type Actor struct {
	Username string
	Role     string
}

func factorOrOne(factor int) int {
	if factor < 1 {
		return 1
	}
	return factor
}

const (
	ProductStatusAvailable = "available"
	ProductStatusLow       = "low"
	ProductStatusDepleted  = "depleted"
)

const (
	CustomerTypeRegular   = "regular"
	CustomerTypeVIP       = "vip"
	CustomerTypeWholesale = "wholesale"
)

const (
	TxTypeSale     = "sale"
	TxTypeExpense  = "expense"
	TxTypeRevenue  = "revenue"
	TxTypePurchase = "purchase"
	TxTypeSalary   = "salary"
	TxTypeReturn   = "return"
)

const (
	InvoiceStatusCompleted         = "completed"
	InvoiceStatusPending           = "pending"
	InvoiceStatusCancelled         = "cancelled"
	InvoiceStatusReturned          = "returned"
	InvoiceStatusPartiallyReturned = "partially-returned"
	InvoiceStatusPartiallyPaid     = "partially-paid"
)

const (
	MovementSale       = "sale"
	MovementPurchase   = "purchase"
	MovementReturn     = "return"
	MovementAdjustment = "adjustment"
)

const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentTransfer = "transfer"
	PaymentCredit   = "credit"
)

const (
	TreasuryMain = "main"
	TreasuryBank = "bank"
)

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleCashier = "cashier"
)
