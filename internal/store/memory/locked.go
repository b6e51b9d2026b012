package memory

import (
	"context"

	"souqpos/backend/internal/domain"
	"souqpos/backend/internal/store"
)

var _ store.Repository = (*Store)(nil)

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	v, unlock := s.read()
	defer unlock()
	return v.ListProducts(ctx)
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	v, unlock := s.read()
	defer unlock()
	return v.GetProduct(ctx, id)
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	v, unlock := s.write()
	defer unlock()
	return v.CreateProduct(ctx, product)
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	v, unlock := s.write()
	defer unlock()
	return v.UpdateProduct(ctx, product)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	v, unlock := s.write()
	defer unlock()
	return v.DeleteProduct(ctx, id)
}

func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	v, unlock := s.read()
	defer unlock()
	return v.ListCategories(ctx)
}

func (s *Store) CreateCategory(ctx context.Context, name string) error {
	v, unlock := s.write()
	defer unlock()
	return v.CreateCategory(ctx, name)
}

func (s *Store) DeleteCategory(ctx context.Context, name string) error {
	v, unlock := s.write()
	defer unlock()
	return v.DeleteCategory(ctx, name)
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	v, unlock := s.read()
	defer unlock()
	return v.ListCustomers(ctx)
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	v, unlock := s.read()
	defer unlock()
	return v.GetCustomer(ctx, id)
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	v, unlock := s.write()
	defer unlock()
	return v.CreateCustomer(ctx, customer)
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	v, unlock := s.write()
	defer unlock()
	return v.UpdateCustomer(ctx, customer)
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	v, unlock := s.write()
	defer unlock()
	return v.DeleteCustomer(ctx, id)
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	v, unlock := s.read()
	defer unlock()
	return v.ListSuppliers(ctx)
}

func (s *Store) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	v, unlock := s.read()
	defer unlock()
	return v.GetSupplier(ctx, id)
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	v, unlock := s.write()
	defer unlock()
	return v.CreateSupplier(ctx, supplier)
}

func (s *Store) UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	v, unlock := s.write()
	defer unlock()
	return v.UpdateSupplier(ctx, supplier)
}

func (s *Store) DeleteSupplier(ctx context.Context, id string) error {
	v, unlock := s.write()
	defer unlock()
	return v.DeleteSupplier(ctx, id)
}

func (s *Store) AppendTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	v, unlock := s.write()
	defer unlock()
	return v.AppendTransaction(ctx, tx)
}

func (s *Store) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	v, unlock := s.read()
	defer unlock()
	return v.ListTransactions(ctx, filter)
}

func (s *Store) NextInvoiceID(ctx context.Context) (int64, error) {
	v, unlock := s.read()
	defer unlock()
	return v.NextInvoiceID(ctx)
}

func (s *Store) CreateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	v, unlock := s.write()
	defer unlock()
	return v.CreateInvoice(ctx, invoice)
}

func (s *Store) UpdateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	v, unlock := s.write()
	defer unlock()
	return v.UpdateInvoice(ctx, invoice)
}

func (s *Store) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	v, unlock := s.read()
	defer unlock()
	return v.GetInvoice(ctx, id)
}

func (s *Store) FindInvoiceByIdempotencyKey(ctx context.Context, key string) (*domain.Invoice, error) {
	v, unlock := s.read()
	defer unlock()
	return v.FindInvoiceByIdempotencyKey(ctx, key)
}

func (s *Store) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	v, unlock := s.read()
	defer unlock()
	return v.ListInvoices(ctx, filter)
}

func (s *Store) InvoiceReferencesProduct(ctx context.Context, productID string) (bool, error) {
	v, unlock := s.read()
	defer unlock()
	return v.InvoiceReferencesProduct(ctx, productID)
}

func (s *Store) AppendInventoryLog(ctx context.Context, entry domain.InventoryLog) (*domain.InventoryLog, error) {
	v, unlock := s.write()
	defer unlock()
	return v.AppendInventoryLog(ctx, entry)
}

func (s *Store) ListInventoryLogs(ctx context.Context, productID string, limit int) ([]domain.InventoryLog, error) {
	v, unlock := s.read()
	defer unlock()
	return v.ListInventoryLogs(ctx, productID, limit)
}

func (s *Store) AppendAuditLog(ctx context.Context, entry domain.AuditLog) error {
	v, unlock := s.write()
	defer unlock()
	return v.AppendAuditLog(ctx, entry)
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	v, unlock := s.read()
	defer unlock()
	return v.ListAuditLogs(ctx, limit)
}

func (s *Store) GetSettings(ctx context.Context) (domain.Settings, error) {
	v, unlock := s.read()
	defer unlock()
	return v.GetSettings(ctx)
}

func (s *Store) SaveSettings(ctx context.Context, settings domain.Settings) error {
	v, unlock := s.write()
	defer unlock()
	return v.SaveSettings(ctx, settings)
}

func (s *Store) ListRoles(ctx context.Context) ([]domain.Role, error) {
	v, unlock := s.read()
	defer unlock()
	return v.ListRoles(ctx)
}

func (s *Store) SaveRole(ctx context.Context, role domain.Role) (*domain.Role, error) {
	v, unlock := s.write()
	defer unlock()
	return v.SaveRole(ctx, role)
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.SystemUser, error) {
	v, unlock := s.read()
	defer unlock()
	return v.ListUsers(ctx)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.SystemUser, error) {
	v, unlock := s.read()
	defer unlock()
	return v.GetUserByUsername(ctx, username)
}

func (s *Store) CreateUser(ctx context.Context, user domain.SystemUser) (*domain.SystemUser, error) {
	v, unlock := s.write()
	defer unlock()
	return v.CreateUser(ctx, user)
}

func (s *Store) UpdateUser(ctx context.Context, user domain.SystemUser) (*domain.SystemUser, error) {
	v, unlock := s.write()
	defer unlock()
	return v.UpdateUser(ctx, user)
}

func (s *Store) Export(ctx context.Context) (domain.Snapshot, error) {
	v, unlock := s.read()
	defer unlock()
	return v.Export(ctx)
}

func (s *Store) Replace(ctx context.Context, patch domain.SnapshotPatch) error {
	v, unlock := s.write()
	defer unlock()
	return v.Replace(ctx, patch)
}
