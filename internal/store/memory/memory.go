package memory

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"souqpos/backend/internal/domain"
	"souqpos/backend/internal/store"
)

// Store keeps the whole ledger in process memory. Every Tx call and every
// InTx callback runs under one mutex, so a unit of work never interleaves
// with another.
type Store struct {
	mu sync.RWMutex
	st *state
}

type state struct {
	nextID        int64
	products      map[string]domain.Product
	categories    []string
	customers     map[string]domain.Customer
	suppliers     map[string]domain.Supplier
	transactions  []domain.Transaction
	invoices      map[int64]domain.Invoice
	inventoryLogs []domain.InventoryLog
	auditLogs     []domain.AuditLog
	settings      domain.Settings
	roles         map[string]domain.Role
	users         map[string]domain.SystemUser
}

func newState() *state {
	return &state{
		nextID:        100,
		products:      make(map[string]domain.Product),
		categories:    make([]string, 0, 8),
		customers:     make(map[string]domain.Customer),
		suppliers:     make(map[string]domain.Supplier),
		transactions:  make([]domain.Transaction, 0, 64),
		invoices:      make(map[int64]domain.Invoice),
		inventoryLogs: make([]domain.InventoryLog, 0, 64),
		auditLogs:     make([]domain.AuditLog, 0, 128),
		settings:      domain.DefaultSettings(),
		roles:         defaultRoles(),
		users:         make(map[string]domain.SystemUser),
	}
}

// New returns an empty ledger with default settings and the built-in roles.
func New() *Store {
	return &Store{st: newState()}
}

// InTx runs fn against the live state. When fn returns an error (or panics)
// the state captured before the call is restored, so partial writes never
// survive.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	backup := s.st.clone()
	committed := false
	defer func() {
		if !committed {
			s.st = backup
		}
	}()

	if err := fn(&view{st: s.st}); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) read() (*view, func()) {
	s.mu.RLock()
	return &view{st: s.st}, s.mu.RUnlock
}

func (s *Store) write() (*view, func()) {
	s.mu.Lock()
	return &view{st: s.st}, s.mu.Unlock
}

// view implements store.Tx on an already locked state.
type view struct {
	st *state
}

func (st *state) newID() string {
	st.nextID++
	return strconv.FormatInt(st.nextID, 10)
}

// bumpCounter keeps generated ids ahead of any numeric id already present.
func (st *state) bumpCounter(id string) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err == nil && n > st.nextID {
		st.nextID = n
	}
}

func (st *state) hasCategory(name string) bool {
	return slices.Contains(st.categories, name)
}

func (v *view) ListProducts(_ context.Context) ([]domain.Product, error) {
	products := make([]domain.Product, 0, len(v.st.products))
	for _, p := range v.st.products {
		products = append(products, cloneProduct(p))
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return compareIDs(a.ID, b.ID)
	})
	return products, nil
}

func (v *view) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	product, ok := v.st.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	dup := cloneProduct(product)
	return &dup, nil
}

func (v *view) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" {
		return nil, fmt.Errorf("%w: product name is required", store.ErrValidation)
	}
	if product.Category != "" && !v.st.hasCategory(product.Category) {
		return nil, fmt.Errorf("%w: unknown category %q", store.ErrValidation, product.Category)
	}
	if product.SKU != "" {
		for _, existing := range v.st.products {
			if strings.EqualFold(existing.SKU, product.SKU) {
				return nil, fmt.Errorf("%w: sku %s already exists", store.ErrValidation, product.SKU)
			}
		}
	}
	if product.ID == "" {
		product.ID = v.st.newID()
	} else if _, exists := v.st.products[product.ID]; exists {
		return nil, fmt.Errorf("%w: product %s already exists", store.ErrValidation, product.ID)
	} else {
		v.st.bumpCounter(product.ID)
	}

	product.ApplyStock(product.Stock)
	v.st.products[product.ID] = cloneProduct(product)
	created := cloneProduct(product)
	return &created, nil
}

func (v *view) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if _, exists := v.st.products[product.ID]; !exists {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(product.Name) == "" {
		return nil, fmt.Errorf("%w: product name is required", store.ErrValidation)
	}
	if product.Category != "" && !v.st.hasCategory(product.Category) {
		return nil, fmt.Errorf("%w: unknown category %q", store.ErrValidation, product.Category)
	}

	product.ApplyStock(product.Stock)
	v.st.products[product.ID] = cloneProduct(product)
	updated := cloneProduct(product)
	return &updated, nil
}

func (v *view) DeleteProduct(_ context.Context, id string) error {
	if _, exists := v.st.products[id]; !exists {
		return store.ErrNotFound
	}
	delete(v.st.products, id)
	return nil
}

func (v *view) ListCategories(_ context.Context) ([]string, error) {
	return slices.Clone(v.st.categories), nil
}

func (v *view) CreateCategory(_ context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: category name is required", store.ErrValidation)
	}
	if v.st.hasCategory(name) {
		return fmt.Errorf("%w: category %q already exists", store.ErrValidation, name)
	}
	v.st.categories = append(v.st.categories, name)
	return nil
}

func (v *view) DeleteCategory(_ context.Context, name string) error {
	idx := slices.Index(v.st.categories, name)
	if idx < 0 {
		return store.ErrNotFound
	}
	for _, p := range v.st.products {
		if p.Category == name {
			return fmt.Errorf("%w: category %q is used by product %s", store.ErrInvalidState, name, p.ID)
		}
	}
	v.st.categories = slices.Delete(v.st.categories, idx, idx+1)
	return nil
}

func (v *view) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	customers := make([]domain.Customer, 0, len(v.st.customers))
	for _, c := range v.st.customers {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return compareIDs(a.ID, b.ID)
	})
	return customers, nil
}

func (v *view) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	customer, ok := v.st.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &customer, nil
}

func (v *view) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, fmt.Errorf("%w: customer name is required", store.ErrValidation)
	}
	if customer.ID == "" {
		customer.ID = v.st.newID()
	} else if _, exists := v.st.customers[customer.ID]; exists {
		return nil, fmt.Errorf("%w: customer %s already exists", store.ErrValidation, customer.ID)
	} else {
		v.st.bumpCounter(customer.ID)
	}
	v.st.customers[customer.ID] = customer
	return &customer, nil
}

func (v *view) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if _, exists := v.st.customers[customer.ID]; !exists {
		return nil, store.ErrNotFound
	}
	v.st.customers[customer.ID] = customer
	return &customer, nil
}

func (v *view) DeleteCustomer(_ context.Context, id string) error {
	if _, exists := v.st.customers[id]; !exists {
		return store.ErrNotFound
	}
	delete(v.st.customers, id)
	return nil
}

func (v *view) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	suppliers := make([]domain.Supplier, 0, len(v.st.suppliers))
	for _, sup := range v.st.suppliers {
		suppliers = append(suppliers, sup)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		return compareIDs(a.ID, b.ID)
	})
	return suppliers, nil
}

func (v *view) GetSupplier(_ context.Context, id string) (*domain.Supplier, error) {
	supplier, ok := v.st.suppliers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &supplier, nil
}

func (v *view) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if strings.TrimSpace(supplier.Name) == "" {
		return nil, fmt.Errorf("%w: supplier name is required", store.ErrValidation)
	}
	if supplier.ID == "" {
		supplier.ID = v.st.newID()
	} else if _, exists := v.st.suppliers[supplier.ID]; exists {
		return nil, fmt.Errorf("%w: supplier %s already exists", store.ErrValidation, supplier.ID)
	} else {
		v.st.bumpCounter(supplier.ID)
	}
	v.st.suppliers[supplier.ID] = supplier
	return &supplier, nil
}

func (v *view) UpdateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if _, exists := v.st.suppliers[supplier.ID]; !exists {
		return nil, store.ErrNotFound
	}
	v.st.suppliers[supplier.ID] = supplier
	return &supplier, nil
}

func (v *view) DeleteSupplier(_ context.Context, id string) error {
	if _, exists := v.st.suppliers[id]; !exists {
		return store.ErrNotFound
	}
	delete(v.st.suppliers, id)
	return nil
}

func (v *view) AppendTransaction(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if tx.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: transaction amount must not be negative", store.ErrValidation)
	}
	if tx.ID == "" {
		tx.ID = v.st.newID()
	}
	if tx.Date.IsZero() {
		tx.Date = time.Now().UTC()
	}
	v.st.transactions = append(v.st.transactions, tx)
	return &tx, nil
}

func (v *view) ListTransactions(_ context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	result := make([]domain.Transaction, 0, len(v.st.transactions))
	for i := len(v.st.transactions) - 1; i >= 0; i-- {
		tx := v.st.transactions[i]
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		if filter.Treasury != "" && tx.Treasury != filter.Treasury {
			continue
		}
		if !inRange(tx.Date, filter.From, filter.To) {
			continue
		}
		result = append(result, tx)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

func (v *view) NextInvoiceID(_ context.Context) (int64, error) {
	next := store.FirstInvoiceID
	for id := range v.st.invoices {
		if id > next {
			next = id
		}
	}
	return next + 1, nil
}

func (v *view) CreateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	if invoice.ID == 0 {
		next, _ := v.NextInvoiceID(ctx)
		invoice.ID = next
	}
	if _, exists := v.st.invoices[invoice.ID]; exists {
		return nil, fmt.Errorf("%w: invoice %d already exists", store.ErrValidation, invoice.ID)
	}
	if invoice.IdempotencyKey != "" {
		if _, err := v.FindInvoiceByIdempotencyKey(ctx, invoice.IdempotencyKey); err == nil {
			return nil, fmt.Errorf("%w: idempotency key already used", store.ErrValidation)
		}
	}
	if invoice.Date.IsZero() {
		invoice.Date = time.Now().UTC()
	}
	v.st.invoices[invoice.ID] = cloneInvoice(invoice)
	created := cloneInvoice(invoice)
	return &created, nil
}

func (v *view) UpdateInvoice(_ context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	if _, exists := v.st.invoices[invoice.ID]; !exists {
		return nil, store.ErrNotFound
	}
	v.st.invoices[invoice.ID] = cloneInvoice(invoice)
	updated := cloneInvoice(invoice)
	return &updated, nil
}

func (v *view) GetInvoice(_ context.Context, id int64) (*domain.Invoice, error) {
	invoice, ok := v.st.invoices[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	dup := cloneInvoice(invoice)
	return &dup, nil
}

func (v *view) FindInvoiceByIdempotencyKey(_ context.Context, key string) (*domain.Invoice, error) {
	if key == "" {
		return nil, store.ErrNotFound
	}
	for _, invoice := range v.st.invoices {
		if invoice.IdempotencyKey == key {
			dup := cloneInvoice(invoice)
			return &dup, nil
		}
	}
	return nil, store.ErrNotFound
}

func (v *view) ListInvoices(_ context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	result := make([]domain.Invoice, 0, len(v.st.invoices))
	for _, invoice := range v.st.invoices {
		if filter.Status != "" && invoice.Status != filter.Status {
			continue
		}
		if filter.CustomerID != "" && invoice.CustomerID != filter.CustomerID {
			continue
		}
		if !inRange(invoice.Date, filter.From, filter.To) {
			continue
		}
		result = append(result, cloneInvoice(invoice))
	}
	slices.SortFunc(result, func(a, b domain.Invoice) int {
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		default:
			return 0
		}
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (v *view) InvoiceReferencesProduct(_ context.Context, productID string) (bool, error) {
	for _, invoice := range v.st.invoices {
		for _, item := range invoice.Items {
			if item.ProductID == productID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (v *view) AppendInventoryLog(_ context.Context, entry domain.InventoryLog) (*domain.InventoryLog, error) {
	if entry.ID == "" {
		entry.ID = v.st.newID()
	}
	if entry.Date.IsZero() {
		entry.Date = time.Now().UTC()
	}
	v.st.inventoryLogs = append(v.st.inventoryLogs, entry)
	return &entry, nil
}

func (v *view) ListInventoryLogs(_ context.Context, productID string, limit int) ([]domain.InventoryLog, error) {
	result := make([]domain.InventoryLog, 0, 64)
	for i := len(v.st.inventoryLogs) - 1; i >= 0; i-- {
		entry := v.st.inventoryLogs[i]
		if productID != "" && entry.ProductID != productID {
			continue
		}
		result = append(result, entry)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (v *view) AppendAuditLog(_ context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = v.st.newID()
	}
	if entry.Date.IsZero() {
		entry.Date = time.Now().UTC()
	}
	v.st.auditLogs = append(v.st.auditLogs, entry)
	return nil
}

func (v *view) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	result := make([]domain.AuditLog, 0, 64)
	for i := len(v.st.auditLogs) - 1; i >= 0; i-- {
		result = append(result, v.st.auditLogs[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (v *view) GetSettings(_ context.Context) (domain.Settings, error) {
	return v.st.settings, nil
}

func (v *view) SaveSettings(_ context.Context, settings domain.Settings) error {
	v.st.settings = settings
	return nil
}

func (v *view) ListRoles(_ context.Context) ([]domain.Role, error) {
	roles := make([]domain.Role, 0, len(v.st.roles))
	for _, role := range v.st.roles {
		roles = append(roles, cloneRole(role))
	}
	slices.SortFunc(roles, func(a, b domain.Role) int {
		return compareIDs(a.ID, b.ID)
	})
	return roles, nil
}

func (v *view) SaveRole(_ context.Context, role domain.Role) (*domain.Role, error) {
	if strings.TrimSpace(role.Name) == "" {
		return nil, fmt.Errorf("%w: role name is required", store.ErrValidation)
	}
	if role.ID == "" {
		role.ID = v.st.newID()
	}
	v.st.roles[role.ID] = cloneRole(role)
	saved := cloneRole(role)
	return &saved, nil
}

func (v *view) ListUsers(_ context.Context) ([]domain.SystemUser, error) {
	users := make([]domain.SystemUser, 0, len(v.st.users))
	for _, user := range v.st.users {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.SystemUser) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (v *view) GetUserByUsername(_ context.Context, username string) (*domain.SystemUser, error) {
	user, ok := v.st.users[normalizeUsername(username)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (v *view) CreateUser(_ context.Context, user domain.SystemUser) (*domain.SystemUser, error) {
	user.Username = normalizeUsername(user.Username)
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return nil, fmt.Errorf("%w: username and password are required", store.ErrValidation)
	}
	if _, exists := v.st.users[user.Username]; exists {
		return nil, fmt.Errorf("%w: user %s already exists", store.ErrValidation, user.Username)
	}
	if user.ID == "" {
		user.ID = v.st.newID()
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	v.st.users[user.Username] = user
	return &user, nil
}

func (v *view) UpdateUser(_ context.Context, user domain.SystemUser) (*domain.SystemUser, error) {
	user.Username = normalizeUsername(user.Username)
	if _, exists := v.st.users[user.Username]; !exists {
		return nil, store.ErrNotFound
	}
	v.st.users[user.Username] = user
	return &user, nil
}

func (v *view) Export(ctx context.Context) (domain.Snapshot, error) {
	products, _ := v.ListProducts(ctx)
	customers, _ := v.ListCustomers(ctx)
	suppliers, _ := v.ListSuppliers(ctx)
	invoices, _ := v.ListInvoices(ctx, domain.InvoiceFilter{})
	slices.Reverse(invoices)
	roles, _ := v.ListRoles(ctx)
	users, _ := v.ListUsers(ctx)

	return domain.Snapshot{
		Products:             products,
		Customers:            customers,
		Suppliers:            suppliers,
		Transactions:         slices.Clone(v.st.transactions),
		Invoices:             invoices,
		InventoryLogs:        slices.Clone(v.st.inventoryLogs),
		Categories:           slices.Clone(v.st.categories),
		Roles:                roles,
		Users:                users,
		AuditLogs:            slices.Clone(v.st.auditLogs),
		TaxSettings:          v.st.settings.Tax,
		LoyaltySettings:      v.st.settings.Loyalty,
		PrinterSettings:      v.st.settings.Printer,
		NotificationSettings: v.st.settings.Notification,
		BackupSettings:       v.st.settings.Backup,
		StoreInfo:            v.st.settings.StoreInfo,
	}, nil
}

// Replace swaps in every collection present in the patch. Callers validate
// the patch first; Replace only keeps derived fields consistent.
func (v *view) Replace(_ context.Context, patch domain.SnapshotPatch) error {
	st := v.st
	if patch.Products != nil {
		st.products = make(map[string]domain.Product, len(*patch.Products))
		for _, p := range *patch.Products {
			p.ApplyStock(p.Stock)
			st.products[p.ID] = cloneProduct(p)
			st.bumpCounter(p.ID)
		}
	}
	if patch.Categories != nil {
		st.categories = slices.Clone(*patch.Categories)
	}
	if patch.Customers != nil {
		st.customers = make(map[string]domain.Customer, len(*patch.Customers))
		for _, c := range *patch.Customers {
			st.customers[c.ID] = c
			st.bumpCounter(c.ID)
		}
	}
	if patch.Suppliers != nil {
		st.suppliers = make(map[string]domain.Supplier, len(*patch.Suppliers))
		for _, sup := range *patch.Suppliers {
			st.suppliers[sup.ID] = sup
			st.bumpCounter(sup.ID)
		}
	}
	if patch.Transactions != nil {
		st.transactions = slices.Clone(*patch.Transactions)
		for _, tx := range st.transactions {
			st.bumpCounter(tx.ID)
		}
	}
	if patch.Invoices != nil {
		st.invoices = make(map[int64]domain.Invoice, len(*patch.Invoices))
		for _, invoice := range *patch.Invoices {
			st.invoices[invoice.ID] = cloneInvoice(invoice)
		}
	}
	if patch.InventoryLogs != nil {
		st.inventoryLogs = slices.Clone(*patch.InventoryLogs)
		for _, entry := range st.inventoryLogs {
			st.bumpCounter(entry.ID)
		}
	}
	if patch.AuditLogs != nil {
		st.auditLogs = slices.Clone(*patch.AuditLogs)
	}
	var roles []domain.Role
	if patch.Roles != nil {
		for _, role := range *patch.Roles {
			st.bumpCounter(role.ID)
		}
		roles = slices.Clone(*patch.Roles)
	}
	if patch.Users != nil {
		st.users = make(map[string]domain.SystemUser, len(*patch.Users))
		for _, user := range *patch.Users {
			user.Username = normalizeUsername(user.Username)
			st.users[user.Username] = user
			st.bumpCounter(user.ID)
		}
	}
	if patch.Settings != nil {
		st.settings = *patch.Settings
	}

	// entries imported without an id get one once every imported id has
	// moved the counter past itself
	for i := range st.transactions {
		if st.transactions[i].ID == "" {
			st.transactions[i].ID = st.newID()
		}
	}
	for i := range st.inventoryLogs {
		if st.inventoryLogs[i].ID == "" {
			st.inventoryLogs[i].ID = st.newID()
		}
	}
	for i := range st.auditLogs {
		if st.auditLogs[i].ID == "" {
			st.auditLogs[i].ID = st.newID()
		}
	}
	if patch.Roles != nil {
		st.roles = make(map[string]domain.Role, len(roles))
		for _, role := range roles {
			if role.ID == "" {
				role.ID = st.newID()
			}
			st.roles[role.ID] = cloneRole(role)
		}
	}

	// every referenced category must exist
	for _, p := range st.products {
		if p.Category != "" && !st.hasCategory(p.Category) {
			st.categories = append(st.categories, p.Category)
		}
	}
	return nil
}

func (st *state) clone() *state {
	dup := &state{
		nextID:        st.nextID,
		products:      make(map[string]domain.Product, len(st.products)),
		categories:    slices.Clone(st.categories),
		customers:     make(map[string]domain.Customer, len(st.customers)),
		suppliers:     make(map[string]domain.Supplier, len(st.suppliers)),
		transactions:  slices.Clone(st.transactions),
		invoices:      make(map[int64]domain.Invoice, len(st.invoices)),
		inventoryLogs: slices.Clone(st.inventoryLogs),
		auditLogs:     slices.Clone(st.auditLogs),
		settings:      st.settings,
		roles:         make(map[string]domain.Role, len(st.roles)),
		users:         make(map[string]domain.SystemUser, len(st.users)),
	}
	for id, p := range st.products {
		dup.products[id] = cloneProduct(p)
	}
	for id, c := range st.customers {
		dup.customers[id] = c
	}
	for id, sup := range st.suppliers {
		dup.suppliers[id] = sup
	}
	for id, invoice := range st.invoices {
		dup.invoices[id] = cloneInvoice(invoice)
	}
	for id, role := range st.roles {
		dup.roles[id] = cloneRole(role)
	}
	for username, user := range st.users {
		dup.users[username] = user
	}
	return dup
}

func cloneProduct(src domain.Product) domain.Product {
	dup := src
	dup.SubUnits = slices.Clone(src.SubUnits)
	return dup
}

func cloneInvoice(src domain.Invoice) domain.Invoice {
	dup := src
	dup.Items = slices.Clone(src.Items)
	if src.TaxSnapshot != nil {
		tax := *src.TaxSnapshot
		dup.TaxSnapshot = &tax
	}
	if src.LoyaltySnapshot != nil {
		loyalty := *src.LoyaltySnapshot
		dup.LoyaltySnapshot = &loyalty
	}
	if src.UpdatedAt != nil {
		at := *src.UpdatedAt
		dup.UpdatedAt = &at
	}
	return dup
}

func cloneRole(src domain.Role) domain.Role {
	dup := src
	dup.Permissions = slices.Clone(src.Permissions)
	return dup
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func inRange(at time.Time, from time.Time, to time.Time) bool {
	if !from.IsZero() && at.Before(from) {
		return false
	}
	if !to.IsZero() && !at.Before(to) {
		return false
	}
	return true
}

// compareIDs orders counter ids numerically and anything else lexically.
func compareIDs(a string, b string) int {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return 0
		}
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}
