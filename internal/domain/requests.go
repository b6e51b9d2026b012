package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one selection from the till. ProductID may be a compound
// "productId::unit" key for sub-unit lines.
type CartLine struct {
	ProductID  string          `json:"productId"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Qty        int             `json:"qty"`
	Unit       string          `json:"unit,omitempty"`
	UnitFactor int             `json:"unitFactor,omitempty"`
}

type SaleRequest struct {
	CustomerID      string          `json:"customerId,omitempty"`
	CustomerName    string          `json:"customerName,omitempty"`
	PaymentMethod   string          `json:"paymentMethod"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	RedeemPoints    int             `json:"redeemPoints"`
	Notes           string          `json:"notes,omitempty"`
	IdempotencyKey  string          `json:"idempotencyKey,omitempty"`
	Cart            []CartLine      `json:"cart"`
}

type SaleResponse struct {
	Invoice   Invoice          `json:"invoice"`
	Duplicate bool             `json:"duplicate"`
	Receipt   *ReceiptResponse `json:"receipt,omitempty"`
	Drawer    *DrawerResponse  `json:"drawer,omitempty"`
}

type ReturnLine struct {
	ProductID string `json:"productId"`
	Unit      string `json:"unit,omitempty"`
	Qty       int    `json:"qty"`
}

type ReturnItemsRequest struct {
	Lines []ReturnLine `json:"lines"`
}

type EditInvoiceRequest struct {
	Items           []CartLine      `json:"items"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
}

type StockAdjustmentRequest struct {
	ProductID string `json:"productId"`
	Delta     int    `json:"delta"`
	Reason    string `json:"reason"`
}

type PurchaseLine struct {
	ProductID string          `json:"productId"`
	Qty       int             `json:"qty"`
	UnitCost  decimal.Decimal `json:"unitCost"`
}

type PurchaseRequest struct {
	SupplierID    string          `json:"supplierId"`
	PaymentMethod string          `json:"paymentMethod"`
	PaidAmount    decimal.Decimal `json:"paidAmount"`
	Notes         string          `json:"notes,omitempty"`
	Lines         []PurchaseLine  `json:"lines"`
}

type PurchaseResponse struct {
	Transaction Transaction    `json:"transaction"`
	Logs        []InventoryLog `json:"logs"`
	Supplier    Supplier       `json:"supplier"`
}

type TransactionCreateRequest struct {
	Type          string          `json:"type"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	PaymentMethod string          `json:"paymentMethod"`
	Treasury      string          `json:"treasury"`
}

type InvoiceFilter struct {
	Status     string
	CustomerID string
	From       time.Time
	To         time.Time
	Limit      int
}

type TransactionFilter struct {
	Type     string
	Treasury string
	From     time.Time
	To       time.Time
	Limit    int
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
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

type ReceiptResponse struct {
	InvoiceID    int64  `json:"invoiceId"`
	EscposBase64 string `json:"escposBase64"`
	PreviewText  string `json:"previewText"`
	FileName     string `json:"fileName"`
}

type DrawerResponse struct {
	CommandBase64 string `json:"commandBase64"`
	Note          string `json:"note"`
}

// Snapshot is the whole-state backup document. Field names match the
// original client-side storage blob so old exports import unchanged.
type Snapshot struct {
	Products             []Product            `json:"products"`
	Customers            []Customer           `json:"customers"`
	Suppliers            []Supplier           `json:"suppliers"`
	Transactions         []Transaction        `json:"transactions"`
	Invoices             []Invoice            `json:"invoices"`
	InventoryLogs        []InventoryLog       `json:"inventoryLogs"`
	Categories           []string             `json:"categories"`
	Roles                []Role               `json:"roles"`
	Users                []SystemUser         `json:"users"`
	AuditLogs            []AuditLog           `json:"auditLogs"`
	TaxSettings          TaxSettings          `json:"taxSettings"`
	LoyaltySettings      LoyaltySettings      `json:"loyaltySettings"`
	PrinterSettings      PrinterSettings      `json:"printerSettings"`
	NotificationSettings NotificationSettings `json:"notificationSettings"`
	BackupSettings       BackupSettings       `json:"backupSettings"`
	StoreInfo            StoreInfo            `json:"storeInfo"`
}

// SnapshotPatch carries the top-level keys present in an imported backup;
// nil fields leave the current state untouched.
type SnapshotPatch struct {
	Products      *[]Product
	Customers     *[]Customer
	Suppliers     *[]Supplier
	Transactions  *[]Transaction
	Invoices      *[]Invoice
	InventoryLogs *[]InventoryLog
	Categories    *[]string
	Roles         *[]Role
	Users         *[]SystemUser
	AuditLogs     *[]AuditLog
	Settings      *Settings
}
