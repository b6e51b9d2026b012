package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"souqpos/backend/internal/domain"
	"souqpos/backend/internal/store"
)

// invoiceLockKey serialises invoice numbering across concurrent units of work.
const invoiceLockKey = 7_420_001

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store keeps every entity as a JSONB document next to the few columns that
// are filtered or locked on. Inside InTx the same type is bound to the
// database transaction and reads of mutable rows take row locks.
type Store struct {
	db *sql.DB
	q  querier
	tx *sql.Tx
}

var _ store.Repository = (*Store)(nil)

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
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, q: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if s.tx != nil {
		return fn(s)
	}
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&Store{db: s.db, q: sqlTx, tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// forUpdate appends a row lock when running inside a unit of work.
func (s *Store) forUpdate(query string) string {
	if s.tx == nil {
		return query
	}
	return query + " FOR UPDATE"
}

func (s *Store) newID(ctx context.Context) (string, error) {
	var id int64
	if err := s.q.QueryRowContext(ctx, `SELECT nextval('entity_ids')`).Scan(&id); err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

// bumpIDs moves the id sequence past any numeric id supplied from outside.
func (s *Store) bumpIDs(ctx context.Context, ids ...string) error {
	var highest int64
	for _, id := range ids {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil && n > highest {
			highest = n
		}
	}
	if highest == 0 {
		return nil
	}
	_, err := s.q.ExecContext(ctx, `
		SELECT setval('entity_ids', GREATEST($1, (SELECT last_value FROM entity_ids)))
	`, highest)
	return err
}

func encode(value any) ([]byte, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return payload, nil
}

func getDoc[T any](ctx context.Context, q querier, query string, args ...any) (*T, error) {
	var raw []byte
	if err := q.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &value, nil
}

func listDocs[T any](ctx context.Context, q querier, query string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]T, 0, 64)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var value T
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		result = append(result, value)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func affectedOrNotFound(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// numericOrder sorts counter ids numerically and anything else after them.
const numericOrder = `ORDER BY (CASE WHEN id ~ '^[0-9]+$' THEN lpad(id, 20, '0') ELSE id END)`

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return listDocs[domain.Product](ctx, s.q, `SELECT doc FROM products `+numericOrder)
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return getDoc[domain.Product](ctx, s.q, s.forUpdate(`SELECT doc FROM products WHERE id = $1`), id)
}

// categoryExists share-locks the category row so a concurrent DeleteCategory
// waits for the product write to commit and then sees it.
func (s *Store) categoryExists(ctx context.Context, name string) (bool, error) {
	var found string
	err := s.q.QueryRowContext(ctx, `SELECT name FROM categories WHERE name = $1 FOR SHARE`, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) validateProduct(ctx context.Context, product domain.Product) error {
	if strings.TrimSpace(product.Name) == "" {
		return fmt.Errorf("%w: product name is required", store.ErrValidation)
	}
	if product.Category == "" {
		return nil
	}
	ok, err := s.categoryExists(ctx, product.Category)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: unknown category %q", store.ErrValidation, product.Category)
	}
	return nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if s.tx == nil {
		var created *domain.Product
		err := s.InTx(ctx, func(tx store.Tx) error {
			var err error
			created, err = tx.CreateProduct(ctx, product)
			return err
		})
		return created, err
	}
	if err := s.validateProduct(ctx, product); err != nil {
		return nil, err
	}
	if product.ID == "" {
		id, err := s.newID(ctx)
		if err != nil {
			return nil, err
		}
		product.ID = id
	} else if err := s.bumpIDs(ctx, product.ID); err != nil {
		return nil, err
	}

	product.ApplyStock(product.Stock)
	doc, err := encode(product)
	if err != nil {
		return nil, err
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO products (id, sku, category, doc, updated_at)
		VALUES ($1,$2,$3,$4,now())
	`, product.ID, product.SKU, product.Category, doc)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: product %s or sku %q already exists", store.ErrValidation, product.ID, product.SKU)
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if s.tx == nil {
		var updated *domain.Product
		err := s.InTx(ctx, func(tx store.Tx) error {
			var err error
			updated, err = tx.UpdateProduct(ctx, product)
			return err
		})
		return updated, err
	}
	if err := s.validateProduct(ctx, product); err != nil {
		return nil, err
	}
	product.ApplyStock(product.Stock)
	doc, err := encode(product)
	if err != nil {
		return nil, err
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE products SET sku = $2, category = $3, doc = $4, updated_at = now()
		WHERE id = $1
	`, product.ID, product.SKU, product.Category, doc)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: sku %q already exists", store.ErrValidation, product.SKU)
	}
	if err := affectedOrNotFound(res, err); err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	return affectedOrNotFound(s.q.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id))
}

func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT name FROM categories ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make([]string, 0, 16)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Store) CreateCategory(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: category name is required", store.ErrValidation)
	}
	_, err := s.q.ExecContext(ctx, `INSERT INTO categories (name) VALUES ($1)`, name)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: category %q already exists", store.ErrValidation, name)
	}
	return err
}

// DeleteCategory locks the category row before looking for products, so it
// serializes with product writes that share-lock the same row.
func (s *Store) DeleteCategory(ctx context.Context, name string) error {
	if s.tx == nil {
		return s.InTx(ctx, func(tx store.Tx) error { return tx.DeleteCategory(ctx, name) })
	}

	var locked string
	err := s.q.QueryRowContext(ctx, `SELECT name FROM categories WHERE name = $1 FOR UPDATE`, name).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}

	var productID string
	err = s.q.QueryRowContext(ctx, `SELECT id FROM products WHERE category = $1 LIMIT 1`, name).Scan(&productID)
	switch {
	case err == nil:
		return fmt.Errorf("%w: category %q is used by product %s", store.ErrInvalidState, name, productID)
	case !errors.Is(err, sql.ErrNoRows):
		return err
	}
	return affectedOrNotFound(s.q.ExecContext(ctx, `DELETE FROM categories WHERE name = $1`, name))
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return listDocs[domain.Customer](ctx, s.q, `SELECT doc FROM customers `+numericOrder)
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return getDoc[domain.Customer](ctx, s.q, s.forUpdate(`SELECT doc FROM customers WHERE id = $1`), id)
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, fmt.Errorf("%w: customer name is required", store.ErrValidation)
	}
	id, err := s.assignID(ctx, customer.ID)
	if err != nil {
		return nil, err
	}
	customer.ID = id
	if err := s.insertDoc(ctx, "customers", customer.ID, customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if err := s.updateDoc(ctx, "customers", customer.ID, customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	return affectedOrNotFound(s.q.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id))
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return listDocs[domain.Supplier](ctx, s.q, `SELECT doc FROM suppliers `+numericOrder)
}

func (s *Store) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	return getDoc[domain.Supplier](ctx, s.q, s.forUpdate(`SELECT doc FROM suppliers WHERE id = $1`), id)
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if strings.TrimSpace(supplier.Name) == "" {
		return nil, fmt.Errorf("%w: supplier name is required", store.ErrValidation)
	}
	id, err := s.assignID(ctx, supplier.ID)
	if err != nil {
		return nil, err
	}
	supplier.ID = id
	if err := s.insertDoc(ctx, "suppliers", supplier.ID, supplier); err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (s *Store) UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if err := s.updateDoc(ctx, "suppliers", supplier.ID, supplier); err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (s *Store) DeleteSupplier(ctx context.Context, id string) error {
	return affectedOrNotFound(s.q.ExecContext(ctx, `DELETE FROM suppliers WHERE id = $1`, id))
}

func (s *Store) assignID(ctx context.Context, id string) (string, error) {
	if id == "" {
		return s.newID(ctx)
	}
	return id, s.bumpIDs(ctx, id)
}

// insertDoc and updateDoc serve the (id, doc) tables; table is never user input.
func (s *Store) insertDoc(ctx context.Context, table string, id string, value any) error {
	doc, err := encode(value)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `INSERT INTO `+table+` (id, doc) VALUES ($1, $2)`, id, doc)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s %s already exists", store.ErrValidation, strings.TrimSuffix(table, "s"), id)
	}
	return err
}

func (s *Store) updateDoc(ctx context.Context, table string, id string, value any) error {
	doc, err := encode(value)
	if err != nil {
		return err
	}
	return affectedOrNotFound(s.q.ExecContext(ctx, `UPDATE `+table+` SET doc = $2 WHERE id = $1`, id, doc))
}

func (s *Store) AppendTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if tx.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: transaction amount must not be negative", store.ErrValidation)
	}
	if tx.ID == "" {
		id, err := s.newID(ctx)
		if err != nil {
			return nil, err
		}
		tx.ID = id
	}
	if tx.Date.IsZero() {
		tx.Date = time.Now().UTC()
	}
	doc, err := encode(tx)
	if err != nil {
		return nil, err
	}
	if _, err := s.q.ExecContext(ctx, `
		INSERT INTO transactions (id, type, treasury, occurred_at, doc)
		VALUES ($1,$2,$3,$4,$5)
	`, tx.ID, tx.Type, tx.Treasury, tx.Date, doc); err != nil {
		return nil, err
	}
	return &tx, nil
}

// whereBuilder collects optional predicates with positional arguments.
type whereBuilder struct {
	clauses []string
	args    []any
}

func (w *whereBuilder) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w *whereBuilder) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func (w *whereBuilder) limit(n int) string {
	if n <= 0 {
		return ""
	}
	w.args = append(w.args, n)
	return fmt.Sprintf(" LIMIT $%d", len(w.args))
}

func (s *Store) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	var where whereBuilder
	if filter.Type != "" {
		where.add("type = $%d", filter.Type)
	}
	if filter.Treasury != "" {
		where.add("treasury = $%d", filter.Treasury)
	}
	if !filter.From.IsZero() {
		where.add("occurred_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		where.add("occurred_at < $%d", filter.To)
	}
	query := `SELECT doc FROM transactions` + where.String() + ` ORDER BY occurred_at DESC, seq DESC`
	query += where.limit(filter.Limit)
	return listDocs[domain.Transaction](ctx, s.q, query, where.args...)
}

// NextInvoiceID holds a transaction-scoped advisory lock until commit, so two
// sales never draw the same number.
func (s *Store) NextInvoiceID(ctx context.Context) (int64, error) {
	if s.tx != nil {
		if _, err := s.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, invoiceLockKey); err != nil {
			return 0, err
		}
	}
	var next int64
	err := s.q.QueryRowContext(ctx, `SELECT GREATEST(COALESCE(MAX(id), 0), $1) + 1 FROM invoices`, store.FirstInvoiceID).Scan(&next)
	return next, err
}

func nullableKey(key string) any {
	if key == "" {
		return nil
	}
	return key
}

func (s *Store) CreateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	if invoice.ID == 0 {
		next, err := s.NextInvoiceID(ctx)
		if err != nil {
			return nil, err
		}
		invoice.ID = next
	}
	if invoice.Date.IsZero() {
		invoice.Date = time.Now().UTC()
	}
	doc, err := encode(invoice)
	if err != nil {
		return nil, err
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO invoices (id, status, customer_id, idempotency_key, issued_at, doc)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, invoice.ID, invoice.Status, invoice.CustomerID, nullableKey(invoice.IdempotencyKey), invoice.Date, doc)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: invoice %d or its idempotency key already exists", store.ErrValidation, invoice.ID)
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	doc, err := encode(invoice)
	if err != nil {
		return nil, err
	}
	if err := affectedOrNotFound(s.q.ExecContext(ctx, `
		UPDATE invoices SET status = $2, customer_id = $3, doc = $4 WHERE id = $1
	`, invoice.ID, invoice.Status, invoice.CustomerID, doc)); err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (s *Store) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	return getDoc[domain.Invoice](ctx, s.q, s.forUpdate(`SELECT doc FROM invoices WHERE id = $1`), id)
}

func (s *Store) FindInvoiceByIdempotencyKey(ctx context.Context, key string) (*domain.Invoice, error) {
	if key == "" {
		return nil, store.ErrNotFound
	}
	return getDoc[domain.Invoice](ctx, s.q, `SELECT doc FROM invoices WHERE idempotency_key = $1`, key)
}

func (s *Store) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	var where whereBuilder
	if filter.Status != "" {
		where.add("status = $%d", filter.Status)
	}
	if filter.CustomerID != "" {
		where.add("customer_id = $%d", filter.CustomerID)
	}
	if !filter.From.IsZero() {
		where.add("issued_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		where.add("issued_at < $%d", filter.To)
	}
	query := `SELECT doc FROM invoices` + where.String() + ` ORDER BY id DESC`
	query += where.limit(filter.Limit)
	return listDocs[domain.Invoice](ctx, s.q, query, where.args...)
}

func (s *Store) InvoiceReferencesProduct(ctx context.Context, productID string) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM invoices
			WHERE doc -> 'items' @> jsonb_build_array(jsonb_build_object('productId', $1::text))
		)
	`, productID).Scan(&exists)
	return exists, err
}

func (s *Store) AppendInventoryLog(ctx context.Context, entry domain.InventoryLog) (*domain.InventoryLog, error) {
	if entry.ID == "" {
		id, err := s.newID(ctx)
		if err != nil {
			return nil, err
		}
		entry.ID = id
	}
	if entry.Date.IsZero() {
		entry.Date = time.Now().UTC()
	}
	doc, err := encode(entry)
	if err != nil {
		return nil, err
	}
	if _, err := s.q.ExecContext(ctx, `
		INSERT INTO inventory_logs (id, product_id, doc) VALUES ($1,$2,$3)
	`, entry.ID, entry.ProductID, doc); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Store) ListInventoryLogs(ctx context.Context, productID string, limit int) ([]domain.InventoryLog, error) {
	var where whereBuilder
	if productID != "" {
		where.add("product_id = $%d", productID)
	}
	query := `SELECT doc FROM inventory_logs` + where.String() + ` ORDER BY seq DESC`
	query += where.limit(limit)
	return listDocs[domain.InventoryLog](ctx, s.q, query, where.args...)
}

func (s *Store) AppendAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		id, err := s.newID(ctx)
		if err != nil {
			return err
		}
		entry.ID = id
	}
	if entry.Date.IsZero() {
		entry.Date = time.Now().UTC()
	}
	doc, err := encode(entry)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `INSERT INTO audit_logs (id, doc) VALUES ($1,$2)`, entry.ID, doc)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	var where whereBuilder
	query := `SELECT doc FROM audit_logs ORDER BY seq DESC` + where.limit(limit)
	return listDocs[domain.AuditLog](ctx, s.q, query, where.args...)
}

func (s *Store) GetSettings(ctx context.Context) (domain.Settings, error) {
	settings, err := getDoc[domain.Settings](ctx, s.q, `SELECT doc FROM settings WHERE id = 1`)
	if errors.Is(err, store.ErrNotFound) {
		return domain.DefaultSettings(), nil
	}
	if err != nil {
		return domain.Settings{}, err
	}
	return *settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings domain.Settings) error {
	doc, err := encode(settings)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO settings (id, doc) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc
	`, doc)
	return err
}

func (s *Store) ListRoles(ctx context.Context) ([]domain.Role, error) {
	return listDocs[domain.Role](ctx, s.q, `SELECT doc FROM roles `+numericOrder)
}

func (s *Store) SaveRole(ctx context.Context, role domain.Role) (*domain.Role, error) {
	if strings.TrimSpace(role.Name) == "" {
		return nil, fmt.Errorf("%w: role name is required", store.ErrValidation)
	}
	id, err := s.assignID(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	role.ID = id
	doc, err := encode(role)
	if err != nil {
		return nil, err
	}
	if _, err := s.q.ExecContext(ctx, `
		INSERT INTO roles (id, doc) VALUES ($1,$2)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc
	`, role.ID, doc); err != nil {
		return nil, err
	}
	return &role, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.SystemUser, error) {
	return listDocs[domain.SystemUser](ctx, s.q, `SELECT doc FROM users ORDER BY username`)
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.SystemUser, error) {
	return getDoc[domain.SystemUser](ctx, s.q, `SELECT doc FROM users WHERE username = $1`, normalizeUsername(username))
}

func (s *Store) CreateUser(ctx context.Context, user domain.SystemUser) (*domain.SystemUser, error) {
	user.Username = normalizeUsername(user.Username)
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return nil, fmt.Errorf("%w: username and password are required", store.ErrValidation)
	}
	id, err := s.assignID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.ID = id
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	doc, err := encode(user)
	if err != nil {
		return nil, err
	}
	_, err = s.q.ExecContext(ctx, `INSERT INTO users (username, doc) VALUES ($1,$2)`, user.Username, doc)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: user %s already exists", store.ErrValidation, user.Username)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) UpdateUser(ctx context.Context, user domain.SystemUser) (*domain.SystemUser, error) {
	user.Username = normalizeUsername(user.Username)
	doc, err := encode(user)
	if err != nil {
		return nil, err
	}
	if err := affectedOrNotFound(s.q.ExecContext(ctx, `UPDATE users SET doc = $2 WHERE username = $1`, user.Username, doc)); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) Export(ctx context.Context) (domain.Snapshot, error) {
	var snap domain.Snapshot
	var err error
	if snap.Products, err = s.ListProducts(ctx); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Customers, err = s.ListCustomers(ctx); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Suppliers, err = s.ListSuppliers(ctx); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Transactions, err = listDocs[domain.Transaction](ctx, s.q, `SELECT doc FROM transactions ORDER BY seq`); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Invoices, err = listDocs[domain.Invoice](ctx, s.q, `SELECT doc FROM invoices ORDER BY id`); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.InventoryLogs, err = listDocs[domain.InventoryLog](ctx, s.q, `SELECT doc FROM inventory_logs ORDER BY seq`); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.AuditLogs, err = listDocs[domain.AuditLog](ctx, s.q, `SELECT doc FROM audit_logs ORDER BY seq`); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Categories, err = s.ListCategories(ctx); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Roles, err = s.ListRoles(ctx); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Users, err = s.ListUsers(ctx); err != nil {
		return domain.Snapshot{}, err
	}
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap.TaxSettings = settings.Tax
	snap.LoyaltySettings = settings.Loyalty
	snap.PrinterSettings = settings.Printer
	snap.NotificationSettings = settings.Notification
	snap.BackupSettings = settings.Backup
	snap.StoreInfo = settings.StoreInfo
	return snap, nil
}

// Replace must run inside InTx; each present collection is truncated and
// rewritten.
func (s *Store) Replace(ctx context.Context, patch domain.SnapshotPatch) error {
	if s.tx == nil {
		return s.InTx(ctx, func(tx store.Tx) error { return tx.Replace(ctx, patch) })
	}

	var ids []string
	if patch.Categories != nil {
		if _, err := s.q.ExecContext(ctx, `DELETE FROM categories`); err != nil {
			return err
		}
		for _, name := range *patch.Categories {
			if err := s.CreateCategory(ctx, name); err != nil {
				return err
			}
		}
	}
	if patch.Products != nil {
		if _, err := s.q.ExecContext(ctx, `DELETE FROM products`); err != nil {
			return err
		}
		for _, p := range *patch.Products {
			if p.Category != "" {
				if _, err := s.q.ExecContext(ctx, `INSERT INTO categories (name) VALUES ($1) ON CONFLICT DO NOTHING`, p.Category); err != nil {
					return err
				}
			}
			if _, err := s.CreateProduct(ctx, p); err != nil {
				return err
			}
		}
	}
	if patch.Customers != nil {
		if _, err := s.q.ExecContext(ctx, `DELETE FROM customers`); err != nil {
			return err
		}
		for _, c := range *patch.Customers {
			if _, err := s.CreateCustomer(ctx, c); err != nil {
				return err
			}
		}
	}
	if patch.Suppliers != nil {
		if _, err := s.q.ExecContext(ctx, `DELETE FROM suppliers`); err != nil {
			return err
		}
		for _, sup := range *patch.Suppliers {
			if _, err := s.CreateSupplier(ctx, sup); err != nil {
				return err
			}
		}
	}
	if patch.Transactions != nil {
		if _, err := s.q.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
			return err
		}
		for _, tx := range *patch.Transactions {
			if _, err := s.AppendTransaction(ctx, tx); err != nil {
				return err
			}
			ids = append(ids, tx.ID)
		}
	}
	if patch.Invoices != nil {
		if _, err := s.q.ExecContext(ctx, `DELETE FROM invoices`); err != nil {
			return err
		}
		for _, invoice := range *patch.Invoices {
			if _, err := s.CreateInvoice(ctx, invoice); err != nil {
				return err
			}
		}
	}
	if patch.InventoryLogs != nil {
		if _, err := s.q.ExecContext(ctx, `DELETE FROM inventory_logs`); err != nil {
			return err
		}
		for _, entry := range *patch.InventoryLogs {
			if _, err := s.AppendInventoryLog(ctx, entry); err != nil {
				return err
			}
			ids = append(ids, entry.ID)
		}
	}
	if patch.AuditLogs != nil {
		if _, err := s.q.ExecContext(ctx, `DELETE FROM audit_logs`); err != nil {
			return err
		}
		for _, entry := range *patch.AuditLogs {
			if err := s.AppendAuditLog(ctx, entry); err != nil {
				return err
			}
		}
	}
	if patch.Roles != nil {
		if _, err := s.q.ExecContext(ctx, `DELETE FROM roles`); err != nil {
			return err
		}
		for _, role := range *patch.Roles {
			if _, err := s.SaveRole(ctx, role); err != nil {
				return err
			}
		}
	}
	if patch.Users != nil {
		if _, err := s.q.ExecContext(ctx, `DELETE FROM users`); err != nil {
			return err
		}
		for _, user := range *patch.Users {
			user.Username = normalizeUsername(user.Username)
			doc, err := encode(user)
			if err != nil {
				return err
			}
			if _, err := s.q.ExecContext(ctx, `INSERT INTO users (username, doc) VALUES ($1,$2)`, user.Username, doc); err != nil {
				return err
			}
			ids = append(ids, user.ID)
		}
	}
	if patch.Settings != nil {
		if err := s.SaveSettings(ctx, *patch.Settings); err != nil {
			return err
		}
	}

	// every referenced category must exist
	if _, err := s.q.ExecContext(ctx, `
		INSERT INTO categories (name)
		SELECT DISTINCT category FROM products WHERE category <> ''
		ON CONFLICT DO NOTHING
	`); err != nil {
		return err
	}
	return s.bumpIDs(ctx, ids...)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
