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
	"souqpos/backend/internal/store"
)

// ProcessReturn returns everything still outstanding on an invoice: stock,
// money and the loyalty delta recorded at sale time.
func (s *Service) ProcessReturn(ctx context.Context, invoiceID int64) (domain.Invoice, error) {
	var result domain.Invoice
	err := s.repo.InTx(ctx, func(tx store.Tx) error {
		invoice, err := tx.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !invoice.Returnable() {
			return fmt.Errorf("%w: invoice %d is %s", store.ErrInvalidState, invoice.ID, invoice.Status)
		}

		quantities := make(map[int]int, len(invoice.Items))
		for i, item := range invoice.Items {
			if outstanding := item.OutstandingQty(); outstanding > 0 {
				quantities[i] = outstanding
			}
		}

		updated, err := s.applyReturn(ctx, tx, *invoice, quantities)
		if err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	return result, nil
}

// ReturnItems returns part of an invoice. The refund is the returned lines'
// share of the invoice total (price×qty × total/subtotal); the final return
// settles whatever is left so refunds always add up to the total.
func (s *Service) ReturnItems(ctx context.Context, invoiceID int64, req domain.ReturnItemsRequest) (domain.Invoice, error) {
	if len(req.Lines) == 0 {
		return domain.Invoice{}, validationError("no lines to return")
	}
	for i, line := range req.Lines {
		productID, _ := splitCartKey(line.ProductID)
		if productID == "" || line.Qty < 1 {
			return domain.Invoice{}, validationError("return line %d is invalid", i+1)
		}
	}

	var result domain.Invoice
	err := s.repo.InTx(ctx, func(tx store.Tx) error {
		invoice, err := tx.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !invoice.Returnable() {
			return fmt.Errorf("%w: invoice %d is %s", store.ErrInvalidState, invoice.ID, invoice.Status)
		}

		quantities, err := allocateReturn(*invoice, req.Lines)
		if err != nil {
			return err
		}
		updated, err := s.applyReturn(ctx, tx, *invoice, quantities)
		if err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	return result, nil
}

// allocateReturn spreads requested quantities over matching invoice lines,
// oldest line first.
func allocateReturn(invoice domain.Invoice, lines []domain.ReturnLine) (map[int]int, error) {
	quantities := make(map[int]int)
	for _, line := range lines {
		productID, unit := splitCartKey(line.ProductID)
		if unit == "" {
			unit = strings.TrimSpace(line.Unit)
		}
		remaining := line.Qty
		for i, item := range invoice.Items {
			if remaining == 0 {
				break
			}
			if item.ProductID != productID || item.Unit != unit {
				continue
			}
			available := item.OutstandingQty() - quantities[i]
			if available <= 0 {
				continue
			}
			take := min(available, remaining)
			quantities[i] += take
			remaining -= take
		}
		if remaining > 0 {
			return nil, validationError("cannot return %d more of product %s on invoice %d", remaining, productID, invoice.ID)
		}
	}
	return quantities, nil
}

func (s *Service) applyReturn(ctx context.Context, tx store.Tx, invoice domain.Invoice, quantities map[int]int) (domain.Invoice, error) {
	if len(quantities) == 0 {
		return domain.Invoice{}, fmt.Errorf("%w: invoice %d has nothing left to return", store.ErrInvalidState, invoice.ID)
	}

	var customer *domain.Customer
	if invoice.CustomerID != "" {
		var err error
		customer, err = tx.GetCustomer(ctx, invoice.CustomerID)
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("[service] WARN: customer %s of invoice %d no longer exists", invoice.CustomerID, invoice.ID)
			customer = nil
		} else if err != nil {
			return domain.Invoice{}, err
		}
	}

	now := time.Now().UTC()
	ref := invoiceRef(invoice.ID)
	ledger := newStockLedger(tx, now)
	returned := make([]string, 0, len(quantities))
	for i := range quantities {
		returned = append(returned, invoice.Items[i].ProductID)
	}
	if err := ledger.lock(ctx, returned...); err != nil {
		return domain.Invoice{}, err
	}

	gross := decimal.Zero
	for i := range invoice.Items {
		qty := quantities[i]
		if qty == 0 {
			continue
		}
		item := &invoice.Items[i]
		gross = gross.Add(item.Price.Mul(decimal.NewFromInt(int64(qty))))
		item.ReturnedQty += qty

		baseQty := qty * max(item.UnitFactor, 1)
		_, err := ledger.move(ctx, item.ProductID, baseQty, domain.MovementReturn, ref)
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("[service] WARN: product %s of invoice %d no longer exists, stock not restored", item.ProductID, invoice.ID)
			continue
		}
		if err != nil {
			return domain.Invoice{}, err
		}
	}
	if err := ledger.flush(ctx); err != nil {
		return domain.Invoice{}, err
	}

	final := true
	for _, item := range invoice.Items {
		if item.OutstandingQty() > 0 {
			final = false
			break
		}
	}

	outstanding := nonNegative(invoice.Total.Sub(invoice.RefundedAmount))
	refund := outstanding
	pointsBack := invoice.LoyaltyPointsEarned - invoice.LoyaltyPointsReversed
	redeemedBack := invoice.LoyaltyPointsRedeemed
	if !final {
		refund = decimal.Zero
		if invoice.Subtotal.IsPositive() {
			refund = gross.Mul(invoice.Total).Div(invoice.Subtotal)
		}
		if refund.GreaterThan(outstanding) {
			refund = outstanding
		}
		refund = nonNegative(refund)
		pointsBack = 0
		if invoice.Total.IsPositive() {
			pointsBack = int(decimal.NewFromInt(int64(invoice.LoyaltyPointsEarned)).Mul(refund).Div(invoice.Total).Floor().IntPart())
		}
		pointsBack = min(pointsBack, invoice.LoyaltyPointsEarned-invoice.LoyaltyPointsReversed)
		redeemedBack = 0
	}

	if _, err := tx.AppendTransaction(ctx, domain.Transaction{
		Date:          now,
		Type:          domain.TxTypeReturn,
		Category:      "returns",
		Amount:        refund,
		Description:   fmt.Sprintf("Return for invoice #%d", invoice.ID),
		PaymentMethod: invoice.PaymentMethod,
		Treasury:      treasuryFor(invoice.PaymentMethod),
		Reference:     ref,
	}); err != nil {
		return domain.Invoice{}, err
	}

	if customer != nil {
		customer.LoyaltyPoints = clampPoints(customer.LoyaltyPoints - pointsBack + redeemedBack)
		customer.TotalPurchases = nonNegative(customer.TotalPurchases.Sub(refund))
		if invoice.PaymentMethod == domain.PaymentCredit {
			customer.Balance = nonNegative(customer.Balance.Sub(refund))
		}
		if _, err := tx.UpdateCustomer(ctx, *customer); err != nil {
			return domain.Invoice{}, err
		}
	}

	invoice.RefundedAmount = invoice.RefundedAmount.Add(refund)
	invoice.LoyaltyPointsReversed += pointsBack
	invoice.Status = domain.InvoiceStatusPartiallyReturned
	if final {
		invoice.Status = domain.InvoiceStatusReturned
	}
	invoice.UpdatedAt = &now

	updated, err := tx.UpdateInvoice(ctx, invoice)
	if err != nil {
		return domain.Invoice{}, err
	}

	s.logAudit(ctx, tx, "invoice_return", "invoice", ref,
		fmt.Sprintf("status=%s,refund=%s,points_reversed=%d,points_recredited=%d", updated.Status, refund, pointsBack, redeemedBack))
	return *updated, nil
}

// EditInvoice replaces the lines and discount of a completed invoice. Totals
// are recomputed with the settings captured at sale time, and stock, earned
// loyalty and the customer's purchase total are reconciled against the
// previous version. The ledger gets one correcting entry for the difference.
// An edit that would take back points the customer has already spent is
// refused so the invoice always records the points actually applied.
func (s *Service) EditInvoice(ctx context.Context, invoiceID int64, req domain.EditInvoiceRequest) (domain.Invoice, error) {
	if err := validateCart(req.Items); err != nil {
		return domain.Invoice{}, err
	}
	discount := clampPercent(req.DiscountPercent)

	var result domain.Invoice
	err := s.repo.InTx(ctx, func(tx store.Tx) error {
		invoice, err := tx.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status != domain.InvoiceStatusCompleted {
			return fmt.Errorf("%w: invoice %d is %s, only completed invoices can be edited", store.ErrInvalidState, invoice.ID, invoice.Status)
		}

		current, err := tx.GetSettings(ctx)
		if err != nil {
			return err
		}
		tax := current.Tax
		if invoice.TaxSnapshot != nil {
			tax = *invoice.TaxSnapshot
		}
		loyalty := current.Loyalty
		if invoice.LoyaltySnapshot != nil {
			loyalty = *invoice.LoyaltySnapshot
		}

		var customer *domain.Customer
		if invoice.CustomerID != "" {
			customer, err = tx.GetCustomer(ctx, invoice.CustomerID)
			if errors.Is(err, store.ErrNotFound) {
				log.Printf("[service] WARN: customer %s of invoice %d no longer exists", invoice.CustomerID, invoice.ID)
				customer = nil
			} else if err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		ref := invoiceRef(invoice.ID)
		ledger := newStockLedger(tx, now)
		touched := cartProductIDs(req.Items)
		for _, item := range invoice.Items {
			touched = append(touched, item.ProductID)
		}
		if err := ledger.lock(ctx, touched...); err != nil {
			return err
		}
		cart, err := resolveCart(ctx, ledger, req.Items)
		if err != nil {
			return err
		}

		previous := make(map[string]int, len(invoice.Items))
		order := append([]string(nil), cart.order...)
		for _, item := range invoice.Items {
			if _, seen := cart.demand[item.ProductID]; !seen {
				if _, counted := previous[item.ProductID]; !counted {
					order = append(order, item.ProductID)
				}
			}
			previous[item.ProductID] += item.OutstandingQty() * max(item.UnitFactor, 1)
		}

		for _, productID := range order {
			delta := cart.demand[productID] - previous[productID]
			if delta == 0 {
				continue
			}
			_, err := ledger.move(ctx, productID, -delta, domain.MovementAdjustment, ref)
			if errors.Is(err, store.ErrNotFound) && delta < 0 {
				log.Printf("[service] WARN: product %s of invoice %d no longer exists, stock not restored", productID, invoice.ID)
				continue
			}
			if err != nil {
				return err
			}
		}
		if err := ledger.flush(ctx); err != nil {
			return err
		}

		totals := pricing.ComputeTotals(cart.lines, discount, tax, loyalty, invoice.LoyaltyPointsRedeemed)
		if totals.Total.IsNegative() {
			return validationError("invoice total would be negative (%s)", totals.Total)
		}
		earned := 0
		if invoice.CustomerID != "" || loyalty.AllowUnregistered {
			earned = totals.PointsToEarn
		}
		diff := totals.Total.Sub(invoice.Total)

		if !diff.IsZero() {
			entry := domain.Transaction{
				Date:          now,
				Type:          domain.TxTypeSale,
				Category:      "sales",
				Amount:        diff.Abs(),
				Description:   fmt.Sprintf("Correction for edited invoice #%d", invoice.ID),
				PaymentMethod: invoice.PaymentMethod,
				Treasury:      treasuryFor(invoice.PaymentMethod),
				Reference:     ref,
			}
			if diff.IsNegative() {
				entry.Type = domain.TxTypeExpense
				entry.Category = "invoice-corrections"
			}
			if _, err := tx.AppendTransaction(ctx, entry); err != nil {
				return err
			}
		}

		if customer != nil {
			points := customer.LoyaltyPoints + earned - invoice.LoyaltyPointsEarned
			if points < 0 {
				return fmt.Errorf("%w: customer %s has %d points, edit would take back %d", store.ErrInvalidState,
					customer.ID, customer.LoyaltyPoints, invoice.LoyaltyPointsEarned-earned)
			}
			customer.LoyaltyPoints = points
			customer.TotalPurchases = nonNegative(customer.TotalPurchases.Add(diff))
			if _, err := tx.UpdateCustomer(ctx, *customer); err != nil {
				return err
			}
		}

		oldTotal := invoice.Total
		invoice.Items = cart.items
		invoice.Subtotal = totals.Subtotal
		invoice.Discount = discount
		invoice.DiscountAmount = totals.DiscountAmount
		invoice.PointsDiscount = totals.PointsDiscount
		invoice.Tax = totals.Tax
		invoice.Total = totals.Total
		invoice.LoyaltyPointsEarned = earned
		invoice.TaxSnapshot = &tax
		invoice.LoyaltySnapshot = &loyalty
		invoice.UpdatedAt = &now

		updated, err := tx.UpdateInvoice(ctx, *invoice)
		if err != nil {
			return err
		}

		s.logAudit(ctx, tx, "invoice_edit", "invoice", ref, fmt.Sprintf("old_total=%s,new_total=%s", oldTotal, updated.Total))
		result = *updated
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	return result, nil
}
