package store

import (
	"context"
	"errors"
	"fmt"

	"souqpos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidState      = errors.New("invalid state")
)

// InsufficientStockError names the product whose stock cannot cover a request.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (%s): requested %d, available %d", e.ProductName, e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// FirstInvoiceID is the floor for invoice numbering; the first invoice gets FirstInvoiceID+1.
const FirstInvoiceID int64 = 1000

// Tx is the ledger surface available inside one atomic unit of work. The
// store assigns ids and enforces no cross-entity rules beyond category use.
type Tx interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	ListCategories(ctx context.Context) ([]string, error)
	CreateCategory(ctx context.Context, name string) error
	DeleteCategory(ctx context.Context, name string) error

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error

	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	GetSupplier(ctx context.Context, id string) (*domain.Supplier, error)
	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	DeleteSupplier(ctx context.Context, id string) error

	AppendTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error)

	NextInvoiceID(ctx context.Context) (int64, error)
	CreateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error)
	UpdateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error)
	GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error)
	FindInvoiceByIdempotencyKey(ctx context.Context, key string) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error)
	InvoiceReferencesProduct(ctx context.Context, productID string) (bool, error)

	AppendInventoryLog(ctx context.Context, entry domain.InventoryLog) (*domain.InventoryLog, error)
	ListInventoryLogs(ctx context.Context, productID string, limit int) ([]domain.InventoryLog, error)

	AppendAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)

	GetSettings(ctx context.Context) (domain.Settings, error)
	SaveSettings(ctx context.Context, settings domain.Settings) error

	ListRoles(ctx context.Context) ([]domain.Role, error)
	SaveRole(ctx context.Context, role domain.Role) (*domain.Role, error)
	ListUsers(ctx context.Context) ([]domain.SystemUser, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.SystemUser, error)
	CreateUser(ctx context.Context, user domain.SystemUser) (*domain.SystemUser, error)
	UpdateUser(ctx context.Context, user domain.SystemUser) (*domain.SystemUser, error)

	Export(ctx context.Context) (domain.Snapshot, error)
	Replace(ctx context.Context, patch domain.SnapshotPatch) error
}

// Repository is the Ledger Store. Calls made directly on it are individually
// atomic; InTx groups several calls into one all-or-nothing unit.
type Repository interface {
	Tx
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
