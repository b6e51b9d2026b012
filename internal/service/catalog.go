package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"souqpos/backend/internal/domain"
	"souqpos/backend/internal/store"
)

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func normalizeProduct(product domain.Product) (domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	product.SKU = strings.ToUpper(strings.TrimSpace(product.SKU))
	product.Barcode = strings.TrimSpace(product.Barcode)
	product.Category = strings.TrimSpace(product.Category)
	product.Unit = strings.TrimSpace(product.Unit)

	if product.Name == "" {
		return domain.Product{}, validationError("product name is required")
	}
	if product.BuyPrice.IsNegative() || product.SellPrice.IsNegative() {
		return domain.Product{}, validationError("prices must not be negative")
	}
	if product.Stock < 0 || product.ReorderLevel < 0 {
		return domain.Product{}, validationError("stock and reorder level must not be negative")
	}

	seen := make(map[string]struct{}, len(product.SubUnits))
	for i := range product.SubUnits {
		sub := &product.SubUnits[i]
		sub.Name = strings.TrimSpace(sub.Name)
		if sub.Name == "" || sub.Factor < 1 || sub.Price.IsNegative() {
			return domain.Product{}, validationError("sub-unit %d is invalid", i+1)
		}
		if _, dup := seen[sub.Name]; dup || sub.Name == product.Unit {
			return domain.Product{}, validationError("duplicate unit %q", sub.Name)
		}
		seen[sub.Name] = struct{}{}
	}
	return product, nil
}

// CreateProduct stores a catalog entry; any opening stock is logged as an
// adjustment so the inventory trail starts at zero.
func (s *Service) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.Product{}, err
	}
	product, err := normalizeProduct(product)
	if err != nil {
		return domain.Product{}, err
	}
	product.ID = ""
	openingStock := product.Stock
	product.Stock = 0

	var result domain.Product
	err = s.repo.InTx(ctx, func(tx store.Tx) error {
		created, err := tx.CreateProduct(ctx, product)
		if err != nil {
			return err
		}
		if openingStock > 0 {
			ledger := newStockLedger(tx, time.Now().UTC())
			if _, err := ledger.move(ctx, created.ID, openingStock, domain.MovementAdjustment, "opening stock"); err != nil {
				return err
			}
			if err := ledger.flush(ctx); err != nil {
				return err
			}
			created, err = tx.GetProduct(ctx, created.ID)
			if err != nil {
				return err
			}
		}
		s.logAudit(ctx, tx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%s,stock=%d", created.Name, created.SellPrice, created.Stock))
		result = *created
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return result, nil
}

// UpdateProduct edits a catalog entry. A changed stock figure is recorded as
// an adjustment movement.
func (s *Service) UpdateProduct(ctx context.Context, id string, product domain.Product) (domain.Product, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.Product{}, err
	}
	product, err := normalizeProduct(product)
	if err != nil {
		return domain.Product{}, err
	}
	product.ID = strings.TrimSpace(id)

	var result domain.Product
	err = s.repo.InTx(ctx, func(tx store.Tx) error {
		existing, err := tx.GetProduct(ctx, product.ID)
		if err != nil {
			return err
		}
		targetStock := product.Stock
		product.Stock = existing.Stock
		if _, err := tx.UpdateProduct(ctx, product); err != nil {
			return err
		}
		if delta := targetStock - existing.Stock; delta != 0 {
			ledger := newStockLedger(tx, time.Now().UTC())
			if _, err := ledger.move(ctx, product.ID, delta, domain.MovementAdjustment, "product edit"); err != nil {
				return err
			}
			if err := ledger.flush(ctx); err != nil {
				return err
			}
		}
		saved, err := tx.GetProduct(ctx, product.ID)
		if err != nil {
			return err
		}
		s.logAudit(ctx, tx, "product_update", "product", saved.ID, fmt.Sprintf("price=%s,stock=%d,status=%s", saved.SellPrice, saved.Stock, saved.Status))
		result = *saved
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return result, nil
}

// DeleteProduct removes a product that no invoice references.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	return s.repo.InTx(ctx, func(tx store.Tx) error {
		// Sales lock the product row too, so the reference check below sees
		// any sale that committed while this waited.
		if _, err := tx.GetProduct(ctx, id); err != nil {
			return err
		}
		referenced, err := tx.InvoiceReferencesProduct(ctx, id)
		if err != nil {
			return err
		}
		if referenced {
			return fmt.Errorf("%w: product %s appears on invoices", store.ErrInvalidState, id)
		}
		if err := tx.DeleteProduct(ctx, id); err != nil {
			return err
		}
		s.logAudit(ctx, tx, "product_delete", "product", id, "")
		return nil
	})
}

func (s *Service) ListCategories(ctx context.Context) ([]string, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, name string) error {
	if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	return s.repo.InTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateCategory(ctx, name); err != nil {
			return err
		}
		s.logAudit(ctx, tx, "category_create", "category", name, "")
		return nil
	})
}

func (s *Service) DeleteCategory(ctx context.Context, name string) error {
	if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return err
	}
	return s.repo.InTx(ctx, func(tx store.Tx) error {
		if err := tx.DeleteCategory(ctx, name); err != nil {
			return err
		}
		s.logAudit(ctx, tx, "category_delete", "category", name, "")
		return nil
	})
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func normalizeCustomer(customer domain.Customer) (domain.Customer, error) {
	customer.Name = strings.TrimSpace(customer.Name)
	customer.Phone = strings.TrimSpace(customer.Phone)
	customer.Type = strings.ToLower(strings.TrimSpace(customer.Type))
	if customer.Name == "" {
		return domain.Customer{}, validationError("customer name is required")
	}
	switch customer.Type {
	case "":
		customer.Type = domain.CustomerTypeRegular
	case domain.CustomerTypeRegular, domain.CustomerTypeVIP, domain.CustomerTypeWholesale:
	default:
		return domain.Customer{}, validationError("unknown customer type %q", customer.Type)
	}
	if customer.LoyaltyPoints < 0 || customer.CreditLimit.IsNegative() || customer.Balance.IsNegative() || customer.TotalPurchases.IsNegative() {
		return domain.Customer{}, validationError("customer amounts must not be negative")
	}
	return customer, nil
}

func (s *Service) CreateCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	customer, err := normalizeCustomer(customer)
	if err != nil {
		return domain.Customer{}, err
	}
	customer.ID = ""

	var result domain.Customer
	err = s.repo.InTx(ctx, func(tx store.Tx) error {
		created, err := tx.CreateCustomer(ctx, customer)
		if err != nil {
			return err
		}
		s.logAudit(ctx, tx, "customer_create", "customer", created.ID, created.Name)
		result = *created
		return nil
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return result, nil
}

// UpdateCustomer edits contact data. Ledger fields (points, balance,
// purchases) only move through sales and returns and are kept as stored.
func (s *Service) UpdateCustomer(ctx context.Context, id string, customer domain.Customer) (domain.Customer, error) {
	customer, err := normalizeCustomer(customer)
	if err != nil {
		return domain.Customer{}, err
	}

	var result domain.Customer
	err = s.repo.InTx(ctx, func(tx store.Tx) error {
		existing, err := tx.GetCustomer(ctx, strings.TrimSpace(id))
		if err != nil {
			return err
		}
		customer.ID = existing.ID
		customer.LoyaltyPoints = existing.LoyaltyPoints
		customer.Balance = existing.Balance
		customer.TotalPurchases = existing.TotalPurchases
		saved, err := tx.UpdateCustomer(ctx, customer)
		if err != nil {
			return err
		}
		s.logAudit(ctx, tx, "customer_update", "customer", saved.ID, saved.Name)
		result = *saved
		return nil
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return result, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	return s.repo.InTx(ctx, func(tx store.Tx) error {
		customer, err := tx.GetCustomer(ctx, id)
		if err != nil {
			return err
		}
		if customer.Balance.IsPositive() {
			return fmt.Errorf("%w: customer %s still owes %s", store.ErrInvalidState, id, customer.Balance)
		}
		if err := tx.DeleteCustomer(ctx, id); err != nil {
			return err
		}
		s.logAudit(ctx, tx, "customer_delete", "customer", id, customer.Name)
		return nil
	})
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func normalizeSupplier(supplier domain.Supplier) (domain.Supplier, error) {
	supplier.Name = strings.TrimSpace(supplier.Name)
	supplier.Email = strings.TrimSpace(supplier.Email)
	if supplier.Name == "" {
		return domain.Supplier{}, validationError("supplier name is required")
	}
	if supplier.CreditLimit.IsNegative() || supplier.Balance.IsNegative() {
		return domain.Supplier{}, validationError("supplier amounts must not be negative")
	}
	return supplier, nil
}

func (s *Service) CreateSupplier(ctx context.Context, supplier domain.Supplier) (domain.Supplier, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.Supplier{}, err
	}
	supplier, err := normalizeSupplier(supplier)
	if err != nil {
		return domain.Supplier{}, err
	}
	supplier.ID = ""

	var result domain.Supplier
	err = s.repo.InTx(ctx, func(tx store.Tx) error {
		created, err := tx.CreateSupplier(ctx, supplier)
		if err != nil {
			return err
		}
		s.logAudit(ctx, tx, "supplier_create", "supplier", created.ID, created.Name)
		result = *created
		return nil
	})
	if err != nil {
		return domain.Supplier{}, err
	}
	return result, nil
}

func (s *Service) UpdateSupplier(ctx context.Context, id string, supplier domain.Supplier) (domain.Supplier, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.Supplier{}, err
	}
	supplier, err := normalizeSupplier(supplier)
	if err != nil {
		return domain.Supplier{}, err
	}

	var result domain.Supplier
	err = s.repo.InTx(ctx, func(tx store.Tx) error {
		existing, err := tx.GetSupplier(ctx, strings.TrimSpace(id))
		if err != nil {
			return err
		}
		supplier.ID = existing.ID
		supplier.Balance = existing.Balance
		saved, err := tx.UpdateSupplier(ctx, supplier)
		if err != nil {
			return err
		}
		s.logAudit(ctx, tx, "supplier_update", "supplier", saved.ID, saved.Name)
		result = *saved
		return nil
	})
	if err != nil {
		return domain.Supplier{}, err
	}
	return result, nil
}

func (s *Service) DeleteSupplier(ctx context.Context, id string) error {
	if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	return s.repo.InTx(ctx, func(tx store.Tx) error {
		if err := tx.DeleteSupplier(ctx, id); err != nil {
			return err
		}
		s.logAudit(ctx, tx, "supplier_delete", "supplier", id, "")
		return nil
	})
}

// AdjustStock applies a manual correction (count, damage, shrinkage).
func (s *Service) AdjustStock(ctx context.Context, req domain.StockAdjustmentRequest) (domain.InventoryLog, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.InventoryLog{}, err
	}
	req.ProductID = strings.TrimSpace(req.ProductID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.ProductID == "" || req.Delta == 0 {
		return domain.InventoryLog{}, validationError("product and a non-zero delta are required")
	}

	var result domain.InventoryLog
	err := s.repo.InTx(ctx, func(tx store.Tx) error {
		ledger := newStockLedger(tx, time.Now().UTC())
		entry, err := ledger.move(ctx, req.ProductID, req.Delta, domain.MovementAdjustment, defaultString(req.Reason, "manual adjustment"))
		if err != nil {
			return err
		}
		if err := ledger.flush(ctx); err != nil {
			return err
		}
		s.logAudit(ctx, tx, "stock_adjust", "product", req.ProductID, fmt.Sprintf("delta=%d,reason=%s", req.Delta, req.Reason))
		result = entry
		return nil
	})
	if err != nil {
		return domain.InventoryLog{}, err
	}
	return result, nil
}

// ReceivePurchase books a supplier delivery: stock in, one purchase entry
// for the delivery value, and the unpaid part added to the supplier balance.
func (s *Service) ReceivePurchase(ctx context.Context, req domain.PurchaseRequest) (domain.PurchaseResponse, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.PurchaseResponse{}, err
	}
	req.SupplierID = strings.TrimSpace(req.SupplierID)
	req.PaymentMethod = strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentCash
	}
	if req.SupplierID == "" || len(req.Lines) == 0 {
		return domain.PurchaseResponse{}, validationError("supplier and at least one line are required")
	}
	if !isSupportedPaymentMethod(req.PaymentMethod) || req.PaymentMethod == domain.PaymentCredit {
		return domain.PurchaseResponse{}, validationError("unsupported payment method %q", req.PaymentMethod)
	}

	total := decimal.Zero
	for i, line := range req.Lines {
		if strings.TrimSpace(line.ProductID) == "" || line.Qty < 1 || line.UnitCost.IsNegative() {
			return domain.PurchaseResponse{}, validationError("purchase line %d is invalid", i+1)
		}
		total = total.Add(line.UnitCost.Mul(decimal.NewFromInt(int64(line.Qty))))
	}
	if req.PaidAmount.IsNegative() || req.PaidAmount.GreaterThan(total) {
		return domain.PurchaseResponse{}, validationError("paid amount must be between 0 and %s", total)
	}

	var resp domain.PurchaseResponse
	err := s.repo.InTx(ctx, func(tx store.Tx) error {
		supplier, err := tx.GetSupplier(ctx, req.SupplierID)
		if errors.Is(err, store.ErrNotFound) {
			return validationError("unknown supplier %s", req.SupplierID)
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		entry, err := tx.AppendTransaction(ctx, domain.Transaction{
			Date:          now,
			Type:          domain.TxTypePurchase,
			Category:      "purchases",
			Amount:        total,
			Description:   strings.TrimSpace(fmt.Sprintf("Purchase from %s %s", supplier.Name, strings.TrimSpace(req.Notes))),
			PaymentMethod: req.PaymentMethod,
			Treasury:      treasuryFor(req.PaymentMethod),
			Reference:     "supplier:" + supplier.ID,
		})
		if err != nil {
			return err
		}

		ledger := newStockLedger(tx, now)
		received := make([]string, 0, len(req.Lines))
		for _, line := range req.Lines {
			received = append(received, strings.TrimSpace(line.ProductID))
		}
		if err := ledger.lock(ctx, received...); err != nil {
			return err
		}
		logs := make([]domain.InventoryLog, 0, len(req.Lines))
		for _, line := range req.Lines {
			productID := strings.TrimSpace(line.ProductID)
			logEntry, err := ledger.move(ctx, productID, line.Qty, domain.MovementPurchase, "purchase:"+entry.ID)
			if errors.Is(err, store.ErrNotFound) {
				return validationError("unknown product %s", productID)
			}
			if err != nil {
				return err
			}
			if line.UnitCost.IsPositive() {
				product, _ := ledger.product(ctx, productID)
				product.BuyPrice = line.UnitCost
			}
			logs = append(logs, logEntry)
		}
		if err := ledger.flush(ctx); err != nil {
			return err
		}

		supplier.Balance = supplier.Balance.Add(total.Sub(req.PaidAmount))
		updated, err := tx.UpdateSupplier(ctx, *supplier)
		if err != nil {
			return err
		}

		s.logAudit(ctx, tx, "purchase_receive", "supplier", supplier.ID, fmt.Sprintf("total=%s,paid=%s,lines=%d", total, req.PaidAmount, len(req.Lines)))
		resp = domain.PurchaseResponse{Transaction: *entry, Logs: logs, Supplier: *updated}
		return nil
	})
	if err != nil {
		return domain.PurchaseResponse{}, err
	}
	return resp, nil
}

// RecordTransaction appends a manual ledger entry. Sales and returns only
// enter the ledger through their orchestrators.
func (s *Service) RecordTransaction(ctx context.Context, req domain.TransactionCreateRequest) (domain.Transaction, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.Transaction{}, err
	}
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	req.PaymentMethod = strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	req.Treasury = strings.ToLower(strings.TrimSpace(req.Treasury))
	req.Category = strings.TrimSpace(req.Category)

	switch req.Type {
	case domain.TxTypeExpense, domain.TxTypeRevenue, domain.TxTypeSalary, domain.TxTypePurchase:
	default:
		return domain.Transaction{}, validationError("transaction type %q cannot be recorded manually", req.Type)
	}
	if !req.Amount.IsPositive() {
		return domain.Transaction{}, validationError("amount must be positive")
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentCash
	}
	if !isSupportedPaymentMethod(req.PaymentMethod) {
		return domain.Transaction{}, validationError("unsupported payment method %q", req.PaymentMethod)
	}
	if req.Treasury == "" {
		req.Treasury = treasuryFor(req.PaymentMethod)
	}
	if req.Treasury != domain.TreasuryMain && req.Treasury != domain.TreasuryBank {
		return domain.Transaction{}, validationError("unknown treasury %q", req.Treasury)
	}

	var result domain.Transaction
	err := s.repo.InTx(ctx, func(tx store.Tx) error {
		created, err := tx.AppendTransaction(ctx, domain.Transaction{
			Date:          time.Now().UTC(),
			Type:          req.Type,
			Category:      defaultString(req.Category, req.Type),
			Amount:        req.Amount,
			Description:   strings.TrimSpace(req.Description),
			PaymentMethod: req.PaymentMethod,
			Treasury:      req.Treasury,
		})
		if err != nil {
			return err
		}
		s.logAudit(ctx, tx, "transaction_record", "transaction", created.ID, fmt.Sprintf("type=%s,amount=%s", created.Type, created.Amount))
		result = *created
		return nil
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return result, nil
}

func (s *Service) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	if filter.Limit < 1 || filter.Limit > 1000 {
		filter.Limit = 200
	}
	return s.repo.ListTransactions(ctx, filter)
}

func (s *Service) ListInventoryLogs(ctx context.Context, productID string, limit int) ([]domain.InventoryLog, error) {
	if limit < 1 || limit > 1000 {
		limit = 200
	}
	return s.repo.ListInventoryLogs(ctx, strings.TrimSpace(productID), limit)
}
