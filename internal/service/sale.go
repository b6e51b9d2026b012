package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"souqpos/backend/internal/domain"
	"souqpos/backend/internal/pricing"
	"souqpos/backend/internal/receipt"
	"souqpos/backend/internal/store"
)

const walkInCustomer = "Walk-in customer"

// resolvedCart is a cart mapped onto real products: invoice lines, priced
// lines and the base-unit demand per product in first-seen order.
type resolvedCart struct {
	items  []domain.InvoiceItem
	lines  []pricing.Line
	demand map[string]int
	order  []string
}

// splitCartKey splits a "productId::unit" compound key.
func splitCartKey(key string) (string, string) {
	productID, unit, found := strings.Cut(strings.TrimSpace(key), "::")
	if !found {
		return productID, ""
	}
	return productID, unit
}

func validateCart(cart []domain.CartLine) error {
	if len(cart) == 0 {
		return validationError("empty cart")
	}
	for i, line := range cart {
		productID, _ := splitCartKey(line.ProductID)
		if productID == "" {
			return validationError("cart line %d has no product", i+1)
		}
		if line.Qty < 1 {
			return validationError("cart line %d has quantity %d", i+1, line.Qty)
		}
		if line.UnitPrice.IsNegative() {
			return validationError("cart line %d has a negative price", i+1)
		}
	}
	return nil
}

func cartProductIDs(cart []domain.CartLine) []string {
	ids := make([]string, 0, len(cart))
	for _, line := range cart {
		productID, _ := splitCartKey(line.ProductID)
		ids = append(ids, productID)
	}
	return ids
}

func resolveCart(ctx context.Context, ledger *stockLedger, cart []domain.CartLine) (resolvedCart, error) {
	if err := ledger.lock(ctx, cartProductIDs(cart)...); err != nil {
		return resolvedCart{}, err
	}
	resolved := resolvedCart{
		items:  make([]domain.InvoiceItem, 0, len(cart)),
		lines:  make([]pricing.Line, 0, len(cart)),
		demand: make(map[string]int, len(cart)),
	}

	for _, line := range cart {
		productID, unit := splitCartKey(line.ProductID)
		if unit == "" {
			unit = strings.TrimSpace(line.Unit)
		}

		product, err := ledger.product(ctx, productID)
		if errors.Is(err, store.ErrNotFound) {
			return resolvedCart{}, validationError("unknown product %s", productID)
		}
		if err != nil {
			return resolvedCart{}, err
		}

		factor := 1
		if unit != "" && unit != product.Unit {
			sub, ok := product.FindSubUnit(unit)
			if !ok || sub.Factor < 1 {
				return resolvedCart{}, validationError("product %s has no unit %q", product.ID, unit)
			}
			factor = sub.Factor
		} else {
			unit = ""
		}

		if _, seen := resolved.demand[product.ID]; !seen {
			resolved.order = append(resolved.order, product.ID)
		}
		resolved.demand[product.ID] += line.Qty * factor

		item := domain.InvoiceItem{
			ProductID: product.ID,
			Name:      defaultString(line.Name, product.Name),
			Qty:       line.Qty,
			Price:     line.UnitPrice,
		}
		if unit != "" {
			item.Unit = unit
			item.UnitFactor = factor
		}
		resolved.items = append(resolved.items, item)
		resolved.lines = append(resolved.lines, pricing.Line{Price: line.UnitPrice, Qty: line.Qty})
	}
	return resolved, nil
}

// checkStock compares aggregated demand against the ledger's product
// snapshot; the same snapshot is later used for the deduction.
func checkStock(ctx context.Context, ledger *stockLedger, demand map[string]int, order []string) error {
	for _, id := range order {
		product, err := ledger.product(ctx, id)
		if err != nil {
			return err
		}
		if need := demand[id]; need > product.Stock {
			return &store.InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   need,
				Available:   product.Stock,
			}
		}
	}
	return nil
}

// CompleteSale turns a cart into an invoice, its sale transaction, the
// stock deductions and the customer ledger update as one unit of work.
func (s *Service) CompleteSale(ctx context.Context, req domain.SaleRequest) (domain.SaleResponse, error) {
	req.PaymentMethod = strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentCash
	}
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	req.DiscountPercent = clampPercent(req.DiscountPercent)

	if !isSupportedPaymentMethod(req.PaymentMethod) {
		return domain.SaleResponse{}, validationError("unsupported payment method %q", req.PaymentMethod)
	}
	if req.RedeemPoints < 0 {
		return domain.SaleResponse{}, validationError("redeem points must not be negative")
	}
	if err := validateCart(req.Cart); err != nil {
		return domain.SaleResponse{}, err
	}
	credit := req.PaymentMethod == domain.PaymentCredit
	if credit && req.CustomerID == "" {
		return domain.SaleResponse{}, validationError("credit sales require a registered customer")
	}

	var resp domain.SaleResponse
	err := s.repo.InTx(ctx, func(tx store.Tx) error {
		if req.IdempotencyKey != "" {
			existing, err := tx.FindInvoiceByIdempotencyKey(ctx, req.IdempotencyKey)
			if err == nil {
				resp = domain.SaleResponse{Invoice: *existing, Duplicate: true}
				return nil
			}
			if !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}

		settings, err := tx.GetSettings(ctx)
		if err != nil {
			return err
		}

		var customer *domain.Customer
		if req.CustomerID != "" {
			customer, err = tx.GetCustomer(ctx, req.CustomerID)
			if errors.Is(err, store.ErrNotFound) {
				return validationError("unknown customer %s", req.CustomerID)
			}
			if err != nil {
				return err
			}
		}

		if req.RedeemPoints > 0 {
			switch {
			case customer == nil:
				return validationError("redeeming points requires a registered customer")
			case !settings.Loyalty.Enabled:
				return validationError("loyalty program is disabled")
			case req.RedeemPoints > customer.LoyaltyPoints:
				return validationError("customer has %d points, cannot redeem %d", customer.LoyaltyPoints, req.RedeemPoints)
			}
		}

		now := time.Now().UTC()
		ledger := newStockLedger(tx, now)
		cart, err := resolveCart(ctx, ledger, req.Cart)
		if err != nil {
			return err
		}
		if err := checkStock(ctx, ledger, cart.demand, cart.order); err != nil {
			return err
		}

		totals := pricing.ComputeTotals(cart.lines, req.DiscountPercent, settings.Tax, settings.Loyalty, req.RedeemPoints)
		if totals.Total.IsNegative() {
			return validationError("sale total would be negative (%s)", totals.Total)
		}

		earned := 0
		if customer != nil || settings.Loyalty.AllowUnregistered {
			earned = totals.PointsToEarn
		}

		invoiceID, err := tx.NextInvoiceID(ctx)
		if err != nil {
			return err
		}
		status := domain.InvoiceStatusCompleted
		if credit {
			status = domain.InvoiceStatusPending
		}
		customerName := defaultString(strings.TrimSpace(req.CustomerName), walkInCustomer)
		if customer != nil {
			customerName = customer.Name
		}
		taxSnapshot := settings.Tax
		loyaltySnapshot := settings.Loyalty

		invoice, err := tx.CreateInvoice(ctx, domain.Invoice{
			ID:                    invoiceID,
			Date:                  now,
			Customer:              customerName,
			CustomerID:            req.CustomerID,
			Items:                 cart.items,
			Subtotal:              totals.Subtotal,
			Discount:              req.DiscountPercent,
			DiscountAmount:        totals.DiscountAmount,
			PointsDiscount:        totals.PointsDiscount,
			Tax:                   totals.Tax,
			Total:                 totals.Total,
			RefundedAmount:        decimal.Zero,
			PaymentMethod:         req.PaymentMethod,
			Status:                status,
			Employee:              employeeFromContext(ctx),
			LoyaltyPointsEarned:   earned,
			LoyaltyPointsRedeemed: req.RedeemPoints,
			Notes:                 strings.TrimSpace(req.Notes),
			IdempotencyKey:        req.IdempotencyKey,
			TaxSnapshot:           &taxSnapshot,
			LoyaltySnapshot:       &loyaltySnapshot,
		})
		if err != nil {
			return err
		}

		if _, err := tx.AppendTransaction(ctx, domain.Transaction{
			Date:          now,
			Type:          domain.TxTypeSale,
			Category:      "sales",
			Amount:        invoice.Total,
			Description:   fmt.Sprintf("Sale invoice #%d", invoice.ID),
			PaymentMethod: invoice.PaymentMethod,
			Treasury:      treasuryFor(invoice.PaymentMethod),
			Reference:     invoiceRef(invoice.ID),
		}); err != nil {
			return err
		}

		for _, item := range invoice.Items {
			if _, err := ledger.move(ctx, item.ProductID, -item.BaseQty(), domain.MovementSale, invoiceRef(invoice.ID)); err != nil {
				return err
			}
		}
		if err := ledger.flush(ctx); err != nil {
			return err
		}

		if customer != nil {
			customer.LoyaltyPoints = clampPoints(customer.LoyaltyPoints + earned - req.RedeemPoints)
			customer.TotalPurchases = customer.TotalPurchases.Add(invoice.Total)
			if credit {
				customer.Balance = customer.Balance.Add(invoice.Total)
			}
			if _, err := tx.UpdateCustomer(ctx, *customer); err != nil {
				return err
			}
		}

		s.logAudit(ctx, tx, "sale_complete", "invoice", invoiceRef(invoice.ID),
			fmt.Sprintf("total=%s,payment=%s,discount=%s,earned=%d,redeemed=%d", invoice.Total, invoice.PaymentMethod, invoice.Discount, earned, req.RedeemPoints))

		resp = domain.SaleResponse{Invoice: *invoice}
		return nil
	})
	if err != nil {
		return domain.SaleResponse{}, err
	}

	if !resp.Duplicate {
		s.attachPrintouts(ctx, &resp)
	}
	return resp, nil
}

// attachPrintouts adds the receipt and drawer pulse the printer settings ask
// for. It runs after commit and never affects the sale.
func (s *Service) attachPrintouts(ctx context.Context, resp *domain.SaleResponse) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		log.Printf("[service] WARN: failed to load printer settings invoice=%d: %v", resp.Invoice.ID, err)
		return
	}
	if settings.Printer.AutoPrint {
		printout := receipt.Build(resp.Invoice, settings)
		resp.Receipt = &printout
	}
	if settings.Printer.OpenCashDrawer && resp.Invoice.PaymentMethod == domain.PaymentCash {
		pulse := receipt.DrawerPulse()
		resp.Drawer = &pulse
	}
}

func (s *Service) GetInvoice(ctx context.Context, id int64) (domain.Invoice, error) {
	invoice, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	return *invoice, nil
}

func (s *Service) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	if filter.Limit < 1 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.ListInvoices(ctx, filter)
}

// BuildReceipt renders the printable receipt of a stored invoice.
func (s *Service) BuildReceipt(ctx context.Context, invoiceID int64) (domain.ReceiptResponse, error) {
	invoice, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return domain.ReceiptResponse{}, err
	}
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return domain.ReceiptResponse{}, err
	}
	return receipt.Build(*invoice, settings), nil
}

func (s *Service) OpenCashDrawer(_ context.Context) domain.DrawerResponse {
	return receipt.DrawerPulse()
}
