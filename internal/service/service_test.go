package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"souqpos/backend/internal/domain"
	"souqpos/backend/internal/store"
	"souqpos/backend/internal/store/memory"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func adminContext() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

// newTestService builds a store with tax off and one loyalty point per
// currency unit so totals and points are easy to follow.
func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	repo := memory.New()

	settings := domain.DefaultSettings()
	settings.Tax.Enabled = false
	if err := repo.SaveSettings(ctx, settings); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	if err := repo.CreateCategory(ctx, "General"); err != nil {
		t.Fatalf("create category: %v", err)
	}
	products := []domain.Product{
		{ID: "1", Name: "Widget", Category: "General", SellPrice: dec("16.70"), Stock: 10, ReorderLevel: 2},
		{ID: "2", Name: "Charger", Category: "General", SellPrice: dec("100"), Stock: 5, ReorderLevel: 1},
		{ID: "3", Name: "Clear Case", Category: "General", SellPrice: dec("50"), Stock: 200, ReorderLevel: 30, Unit: "piece",
			SubUnits: []domain.SubUnit{{Name: "box", Factor: 10, Price: dec("450")}}},
	}
	for _, p := range products {
		if _, err := repo.CreateProduct(ctx, p); err != nil {
			t.Fatalf("create product %s: %v", p.ID, err)
		}
	}
	if _, err := repo.CreateCustomer(ctx, domain.Customer{ID: "1", Name: "Ahmed", Type: domain.CustomerTypeRegular}); err != nil {
		t.Fatalf("create customer: %v", err)
	}
	if _, err := repo.CreateCustomer(ctx, domain.Customer{ID: "2", Name: "Sara", Type: domain.CustomerTypeVIP, LoyaltyPoints: 100}); err != nil {
		t.Fatalf("create customer: %v", err)
	}
	if _, err := repo.CreateSupplier(ctx, domain.Supplier{ID: "1", Name: "Tech Supply"}); err != nil {
		t.Fatalf("create supplier: %v", err)
	}
	return New(repo), repo
}

func mustStock(t *testing.T, repo *memory.Store, id string) int {
	t.Helper()
	p, err := repo.GetProduct(context.Background(), id)
	if err != nil {
		t.Fatalf("get product %s: %v", id, err)
	}
	return p.Stock
}

func mustCustomer(t *testing.T, repo *memory.Store, id string) domain.Customer {
	t.Helper()
	c, err := repo.GetCustomer(context.Background(), id)
	if err != nil {
		t.Fatalf("get customer %s: %v", id, err)
	}
	return *c
}

func mustTransactions(t *testing.T, repo *memory.Store) []domain.Transaction {
	t.Helper()
	txs, err := repo.ListTransactions(context.Background(), domain.TransactionFilter{})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	return txs
}

func TestCompleteSaleInsufficientStockLeavesNoTrace(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := adminContext()

	_, err := svc.CompleteSale(ctx, domain.SaleRequest{
		PaymentMethod: domain.PaymentCash,
		Cart:          []domain.CartLine{{ProductID: "2", UnitPrice: dec("100"), Qty: 6}},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	var stockErr *store.InsufficientStockError
	if !errors.As(err, &stockErr) || stockErr.Available != 5 || stockErr.Requested != 6 {
		t.Fatalf("expected typed stock error with 6/5, got %#v", stockErr)
	}

	if got := mustStock(t, repo, "2"); got != 5 {
		t.Fatalf("expected stock 5, got %d", got)
	}
	if txs := mustTransactions(t, repo); len(txs) != 0 {
		t.Fatalf("expected no transactions, got %d", len(txs))
	}
	invoices, _ := repo.ListInvoices(context.Background(), domain.InvoiceFilter{})
	if len(invoices) != 0 {
		t.Fatalf("expected no invoices, got %d", len(invoices))
	}
	logs, _ := repo.ListInventoryLogs(context.Background(), "", 0)
	if len(logs) != 0 {
		t.Fatalf("expected no inventory logs, got %d", len(logs))
	}
}

func TestCompleteSaleAggregatesDemandAcrossLines(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := svc.CompleteSale(adminContext(), domain.SaleRequest{
		Cart: []domain.CartLine{
			{ProductID: "2", UnitPrice: dec("100"), Qty: 3},
			{ProductID: "2", UnitPrice: dec("90"), Qty: 3},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock for 6 of 5, got %v", err)
	}
	if got := mustStock(t, repo, "2"); got != 5 {
		t.Fatalf("expected stock untouched, got %d", got)
	}
}

func TestCompleteSaleWritesEveryLedger(t *testing.T) {
	svc, repo := newTestService(t)

	resp, err := svc.CompleteSale(adminContext(), domain.SaleRequest{
		CustomerID:    "1",
		PaymentMethod: domain.PaymentCard,
		Cart:          []domain.CartLine{{ProductID: "2", UnitPrice: dec("100"), Qty: 2}},
	})
	if err != nil {
		t.Fatalf("complete sale: %v", err)
	}
	invoice := resp.Invoice
	if invoice.ID != 1001 {
		t.Fatalf("expected first invoice 1001, got %d", invoice.ID)
	}
	if invoice.Status != domain.InvoiceStatusCompleted || invoice.Employee != "admin" || invoice.Customer != "Ahmed" {
		t.Fatalf("unexpected invoice header %+v", invoice)
	}
	if !invoice.Total.Equal(dec("200")) || invoice.LoyaltyPointsEarned != 200 {
		t.Fatalf("expected total 200 and 200 points, got %s/%d", invoice.Total, invoice.LoyaltyPointsEarned)
	}
	if invoice.TaxSnapshot == nil || invoice.LoyaltySnapshot == nil {
		t.Fatalf("expected settings snapshots on invoice")
	}

	txs := mustTransactions(t, repo)
	if len(txs) != 1 {
		t.Fatalf("expected one transaction, got %d", len(txs))
	}
	if txs[0].Type != domain.TxTypeSale || !txs[0].Amount.Equal(invoice.Total) || txs[0].Treasury != domain.TreasuryBank {
		t.Fatalf("unexpected sale transaction %+v", txs[0])
	}

	logs, _ := repo.ListInventoryLogs(context.Background(), "2", 0)
	if len(logs) != 1 || logs[0].PreviousStock != 5 || logs[0].NewStock != 3 || logs[0].Quantity != -2 || logs[0].Type != domain.MovementSale {
		t.Fatalf("unexpected inventory logs %+v", logs)
	}
	product, _ := repo.GetProduct(context.Background(), "2")
	if product.Stock != 3 || product.Status != domain.ProductStatusAvailable {
		t.Fatalf("unexpected product after sale %+v", product)
	}

	customer := mustCustomer(t, repo, "1")
	if customer.LoyaltyPoints != 200 || !customer.TotalPurchases.Equal(dec("200")) || !customer.Balance.IsZero() {
		t.Fatalf("unexpected customer after sale %+v", customer)
	}
}

func TestCompleteSaleValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminContext()
	line := []domain.CartLine{{ProductID: "2", UnitPrice: dec("100"), Qty: 1}}

	cases := []struct {
		name string
		req  domain.SaleRequest
	}{
		{"empty cart", domain.SaleRequest{}},
		{"zero quantity", domain.SaleRequest{Cart: []domain.CartLine{{ProductID: "2", UnitPrice: dec("100"), Qty: 0}}}},
		{"unknown product", domain.SaleRequest{Cart: []domain.CartLine{{ProductID: "99", UnitPrice: dec("1"), Qty: 1}}}},
		{"unknown unit", domain.SaleRequest{Cart: []domain.CartLine{{ProductID: "3::crate", UnitPrice: dec("1"), Qty: 1}}}},
		{"credit without customer", domain.SaleRequest{PaymentMethod: domain.PaymentCredit, Cart: line}},
		{"unsupported payment", domain.SaleRequest{PaymentMethod: "cheque", Cart: line}},
		{"redeem without customer", domain.SaleRequest{RedeemPoints: 10, Cart: line}},
		{"redeem over balance", domain.SaleRequest{CustomerID: "2", RedeemPoints: 101, Cart: line}},
		{"negative total", domain.SaleRequest{CustomerID: "2", RedeemPoints: 100, Cart: []domain.CartLine{{ProductID: "2", UnitPrice: dec("1"), Qty: 1}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CompleteSale(ctx, tc.req); !errors.Is(err, store.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCompleteSaleIdempotencyKeyReturnsOriginal(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := adminContext()
	req := domain.SaleRequest{
		IdempotencyKey: "till-1-0001",
		Cart:           []domain.CartLine{{ProductID: "2", UnitPrice: dec("100"), Qty: 1}},
	}

	first, err := svc.CompleteSale(ctx, req)
	if err != nil {
		t.Fatalf("first sale: %v", err)
	}
	second, err := svc.CompleteSale(ctx, req)
	if err != nil {
		t.Fatalf("replayed sale: %v", err)
	}
	if !second.Duplicate || second.Invoice.ID != first.Invoice.ID {
		t.Fatalf("expected duplicate of %d, got %+v", first.Invoice.ID, second)
	}
	if got := mustStock(t, repo, "2"); got != 4 {
		t.Fatalf("expected one deduction, stock %d", got)
	}
	if txs := mustTransactions(t, repo); len(txs) != 1 {
		t.Fatalf("expected one transaction, got %d", len(txs))
	}
}

func TestCompleteSaleDiscountIsClamped(t *testing.T) {
	svc, _ := newTestService(t)

	resp, err := svc.CompleteSale(adminContext(), domain.SaleRequest{
		DiscountPercent: dec("150"),
		Cart:            []domain.CartLine{{ProductID: "2", UnitPrice: dec("100"), Qty: 1}},
	})
	if err != nil {
		t.Fatalf("complete sale: %v", err)
	}
	if !resp.Invoice.Discount.Equal(dec("100")) || !resp.Invoice.Total.IsZero() {
		t.Fatalf("expected discount clamped to 100%%, got %s total %s", resp.Invoice.Discount, resp.Invoice.Total)
	}
}

func TestSubUnitSaleDeductsBaseUnits(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := adminContext()

	resp, err := svc.CompleteSale(ctx, domain.SaleRequest{
		Cart: []domain.CartLine{{ProductID: "3::box", UnitPrice: dec("450"), Qty: 2}},
	})
	if err != nil {
		t.Fatalf("complete sale: %v", err)
	}
	if got := mustStock(t, repo, "3"); got != 180 {
		t.Fatalf("expected 180 pieces left, got %d", got)
	}
	item := resp.Invoice.Items[0]
	if item.Unit != "box" || item.UnitFactor != 10 || item.BaseQty() != 20 {
		t.Fatalf("unexpected invoice item %+v", item)
	}

	if _, err := svc.ReturnItems(ctx, resp.Invoice.ID, domain.ReturnItemsRequest{
		Lines: []domain.ReturnLine{{ProductID: "3", Unit: "box", Qty: 1}},
	}); err != nil {
		t.Fatalf("return one box: %v", err)
	}
	if got := mustStock(t, repo, "3"); got != 190 {
		t.Fatalf("expected 190 pieces after returning a box, got %d", got)
	}
}

func TestCreditSaleBooksCustomerBalance(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := adminContext()

	resp, err := svc.CompleteSale(ctx, domain.SaleRequest{
		CustomerID:    "1",
		PaymentMethod: domain.PaymentCredit,
		Cart:          []domain.CartLine{{ProductID: "2", UnitPrice: dec("100"), Qty: 1}},
	})
	if err != nil {
		t.Fatalf("credit sale: %v", err)
	}
	if resp.Invoice.Status != domain.InvoiceStatusPending {
		t.Fatalf("expected pending invoice, got %s", resp.Invoice.Status)
	}
	if customer := mustCustomer(t, repo, "1"); !customer.Balance.Equal(dec("100")) {
		t.Fatalf("expected balance 100, got %s", customer.Balance)
	}

	if _, err := svc.ProcessReturn(ctx, resp.Invoice.ID); err != nil {
		t.Fatalf("return pending invoice: %v", err)
	}
	if customer := mustCustomer(t, repo, "1"); !customer.Balance.IsZero() {
		t.Fatalf("expected balance cleared, got %s", customer.Balance)
	}
}

func TestReturnReversesSale(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := adminContext()

	resp, err := svc.CompleteSale(ctx, domain.SaleRequest{
		CustomerID: "1",
		Cart:       []domain.CartLine{{ProductID: "1", UnitPrice: dec("16.70"), Qty: 3}},
	})
	if err != nil {
		t.Fatalf("complete sale: %v", err)
	}
	if got := mustStock(t, repo, "1"); got != 7 {
		t.Fatalf("expected stock 7, got %d", got)
	}
	if got := mustCustomer(t, repo, "1").LoyaltyPoints; got != 50 {
		t.Fatalf("expected 50 points, got %d", got)
	}

	// Later settings changes must not influence the reversal.
	settings, _ := repo.GetSettings(context.Background())
	settings.Loyalty.PointsPerUnit = dec("10")
	_ = repo.SaveSettings(context.Background(), settings)

	returned, err := svc.ProcessReturn(ctx, resp.Invoice.ID)
	if err != nil {
		t.Fatalf("process return: %v", err)
	}
	if returned.Status != domain.InvoiceStatusReturned || !returned.RefundedAmount.Equal(resp.Invoice.Total) {
		t.Fatalf("unexpected returned invoice %+v", returned)
	}
	if got := mustStock(t, repo, "1"); got != 10 {
		t.Fatalf("expected stock 10, got %d", got)
	}
	customer := mustCustomer(t, repo, "1")
	if customer.LoyaltyPoints != 0 || !customer.TotalPurchases.IsZero() {
		t.Fatalf("expected customer fully reversed, got %+v", customer)
	}

	var returns []domain.Transaction
	for _, tx := range mustTransactions(t, repo) {
		if tx.Type == domain.TxTypeReturn {
			returns = append(returns, tx)
		}
	}
	if len(returns) != 1 || !returns[0].Amount.Equal(dec("50.10")) || returns[0].Category != "returns" {
		t.Fatalf("expected one return transaction of 50.10, got %+v", returns)
	}

	if _, err := svc.ProcessReturn(ctx, resp.Invoice.ID); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected second return to fail with invalid state, got %v", err)
	}
}

func TestPartialReturnsAddUpToTotal(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := adminContext()

	resp, err := svc.CompleteSale(ctx, domain.SaleRequest{
		CustomerID:      "1",
		DiscountPercent: dec("10"),
		Cart: []domain.CartLine{
			{ProductID: "1", UnitPrice: dec("16.70"), Qty: 3},
			{ProductID: "2", UnitPrice: dec("100"), Qty: 2},
		},
	})
	if err != nil {
		t.Fatalf("complete sale: %v", err)
	}
	total := resp.Invoice.Total
	earned := resp.Invoice.LoyaltyPointsEarned

	partial, err := svc.ReturnItems(ctx, resp.Invoice.ID, domain.ReturnItemsRequest{
		Lines: []domain.ReturnLine{{ProductID: "2", Qty: 1}, {ProductID: "1", Qty: 1}},
	})
	if err != nil {
		t.Fatalf("partial return: %v", err)
	}
	if partial.Status != domain.InvoiceStatusPartiallyReturned {
		t.Fatalf("expected partially-returned, got %s", partial.Status)
	}
	if _, err := svc.ReturnItems(ctx, resp.Invoice.ID, domain.ReturnItemsRequest{
		Lines: []domain.ReturnLine{{ProductID: "2", Qty: 2}},
	}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected over-return to be rejected, got %v", err)
	}

	final, err := svc.ProcessReturn(ctx, resp.Invoice.ID)
	if err != nil {
		t.Fatalf("final return: %v", err)
	}
	if final.Status != domain.InvoiceStatusReturned || final.LoyaltyPointsReversed != earned {
		t.Fatalf("unexpected final invoice %+v", final)
	}

	refunded := decimal.Zero
	for _, tx := range mustTransactions(t, repo) {
		if tx.Type == domain.TxTypeReturn {
			refunded = refunded.Add(tx.Amount)
		}
	}
	if !refunded.Equal(total) {
		t.Fatalf("expected refunds to add up to %s, got %s", total, refunded)
	}
	if got := mustStock(t, repo, "1"); got != 10 {
		t.Fatalf("expected stock restored, got %d", got)
	}
	if got := mustStock(t, repo, "2"); got != 5 {
		t.Fatalf("expected stock restored, got %d", got)
	}
	if got := mustCustomer(t, repo, "1").LoyaltyPoints; got != 0 {
		t.Fatalf("expected points reversed, got %d", got)
	}
}

func TestRedeemedPointsComeBackOnReturn(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := adminContext()

	resp, err := svc.CompleteSale(ctx, domain.SaleRequest{
		CustomerID:   "2",
		RedeemPoints: 100,
		Cart:         []domain.CartLine{{ProductID: "2", UnitPrice: dec("100"), Qty: 1}},
	})
	if err != nil {
		t.Fatalf("complete sale: %v", err)
	}
	// 100 points at 0.05 each.
	if !resp.Invoice.PointsDiscount.Equal(dec("5")) || !resp.Invoice.Total.Equal(dec("95")) {
		t.Fatalf("unexpected totals %+v", resp.Invoice)
	}
	if got := mustCustomer(t, repo, "2").LoyaltyPoints; got != 95 {
		t.Fatalf("expected 100-100+95 points, got %d", got)
	}

	if _, err := svc.ProcessReturn(ctx, resp.Invoice.ID); err != nil {
		t.Fatalf("return: %v", err)
	}
	if got := mustCustomer(t, repo, "2").LoyaltyPoints; got != 100 {
		t.Fatalf("expected original 100 points, got %d", got)
	}
}

func TestEditInvoiceReconcilesStockLoyaltyAndLedger(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := adminContext()

	resp, err := svc.CompleteSale(ctx, domain.SaleRequest{
		CustomerID: "1",
		Cart:       []domain.CartLine{{ProductID: "2", UnitPrice: dec("100"), Qty: 2}},
	})
	if err != nil {
		t.Fatalf("complete sale: %v", err)
	}

	edited, err := svc.EditInvoice(ctx, resp.Invoice.ID, domain.EditInvoiceRequest{
		Items: []domain.CartLine{{ProductID: "2", UnitPrice: dec("100"), Qty: 3}},
	})
	if err != nil {
		t.Fatalf("edit up: %v", err)
	}
	if !edited.Total.Equal(dec("300")) || edited.LoyaltyPointsEarned != 300 {
		t.Fatalf("unexpected edited invoice %+v", edited)
	}
	if got := mustStock(t, repo, "2"); got != 2 {
		t.Fatalf("expected stock 2, got %d", got)
	}
	customer := mustCustomer(t, repo, "1")
	if customer.LoyaltyPoints != 300 || !customer.TotalPurchases.Equal(dec("300")) {
		t.Fatalf("unexpected customer %+v", customer)
	}
	txs := mustTransactions(t, repo)
	if len(txs) != 2 || txs[0].Type != domain.TxTypeSale || !txs[0].Amount.Equal(dec("100")) {
		t.Fatalf("expected sale correction of 100, got %+v", txs)
	}

	if _, err := svc.EditInvoice(ctx, resp.Invoice.ID, domain.EditInvoiceRequest{
		Items: []domain.CartLine{{ProductID: "2", UnitPrice: dec("100"), Qty: 10}},
	}); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock on edit, got %v", err)
	}

	if _, err := svc.EditInvoice(ctx, resp.Invoice.ID, domain.EditInvoiceRequest{
		Items: []domain.CartLine{{ProductID: "2", UnitPrice: dec("100"), Qty: 1}},
	}); err != nil {
		t.Fatalf("edit down: %v", err)
	}
	if got := mustStock(t, repo, "2"); got != 4 {
		t.Fatalf("expected stock 4, got %d", got)
	}
	txs = mustTransactions(t, repo)
	if txs[0].Type != domain.TxTypeExpense || txs[0].Category != "invoice-corrections" || !txs[0].Amount.Equal(dec("200")) {
		t.Fatalf("expected expense correction of 200, got %+v", txs[0])
	}
	if got := mustCustomer(t, repo, "1").LoyaltyPoints; got != 100 {
		t.Fatalf("expected 100 points, got %d", got)
	}
}

func TestEditInvoiceRefusesToReclaimSpentPoints(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := adminContext()

	resp, err := svc.CompleteSale(ctx, domain.SaleRequest{
		CustomerID: "1",
		Cart:       []domain.CartLine{{ProductID: "2", UnitPrice: dec("100"), Qty: 2}},
	})
	if err != nil {
		t.Fatalf("complete sale: %v", err)
	}
	customer := mustCustomer(t, repo, "1")
	customer.LoyaltyPoints = 50
	if _, err := repo.UpdateCustomer(context.Background(), customer); err != nil {
		t.Fatalf("spend points: %v", err)
	}

	_, err = svc.EditInvoice(ctx, resp.Invoice.ID, domain.EditInvoiceRequest{
		Items: []domain.CartLine{{ProductID: "2", UnitPrice: dec("100"), Qty: 1}},
	})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	invoice, err := svc.GetInvoice(ctx, resp.Invoice.ID)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if invoice.LoyaltyPointsEarned != 200 || !invoice.Total.Equal(dec("200")) {
		t.Fatalf("invoice changed by refused edit: %+v", invoice)
	}
	if got := mustCustomer(t, repo, "1").LoyaltyPoints; got != 50 {
		t.Fatalf("expected 50 points, got %d", got)
	}
	if got := mustStock(t, repo, "2"); got != 3 {
		t.Fatalf("expected stock 3, got %d", got)
	}
	if txs := mustTransactions(t, repo); len(txs) != 1 {
		t.Fatalf("expected only the sale entry, got %+v", txs)
	}
}

func TestEditInvoiceUsesSaleTimeTax(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := adminContext()
	settings, _ := repo.GetSettings(context.Background())
	settings.Tax.Enabled = true
	settings.Tax.Rate = dec("15")
	_ = repo.SaveSettings(context.Background(), settings)

	resp, err := svc.CompleteSale(ctx, domain.SaleRequest{
		DiscountPercent: dec("10"),
		Cart:            []domain.CartLine{{ProductID: "3", UnitPrice: dec("50"), Qty: 20}},
	})
	if err != nil {
		t.Fatalf("complete sale: %v", err)
	}
	if !resp.Invoice.Total.Equal(dec("1035")) {
		t.Fatalf("expected 1035, got %s", resp.Invoice.Total)
	}

	settings.Tax.Rate = dec("5")
	_ = repo.SaveSettings(context.Background(), settings)

	edited, err := svc.EditInvoice(ctx, resp.Invoice.ID, domain.EditInvoiceRequest{
		DiscountPercent: dec("10"),
		Items:           []domain.CartLine{{ProductID: "3", UnitPrice: dec("50"), Qty: 20}},
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !edited.Total.Equal(dec("1035")) {
		t.Fatalf("expected sale-time tax to apply, got %s", edited.Total)
	}
	if txs := mustTransactions(t, repo); len(txs) != 1 {
		t.Fatalf("expected no correction entry, got %d transactions", len(txs))
	}
}

func TestEditInvoiceRequiresCompletedStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminContext()

	resp, err := svc.CompleteSale(ctx, domain.SaleRequest{
		Cart: []domain.CartLine{{ProductID: "2", UnitPrice: dec("100"), Qty: 1}},
	})
	if err != nil {
		t.Fatalf("complete sale: %v", err)
	}
	if _, err := svc.ProcessReturn(ctx, resp.Invoice.ID); err != nil {
		t.Fatalf("return: %v", err)
	}
	_, err = svc.EditInvoice(ctx, resp.Invoice.ID, domain.EditInvoiceRequest{
		Items: []domain.CartLine{{ProductID: "2", UnitPrice: dec("100"), Qty: 1}},
	})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := adminContext()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sold int
	)
	for range 12 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CompleteSale(ctx, domain.SaleRequest{
				Cart: []domain.CartLine{{ProductID: "2", UnitPrice: dec("100"), Qty: 1}},
			})
			if err == nil {
				mu.Lock()
				sold++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if sold != 5 {
		t.Fatalf("expected exactly 5 sales, got %d", sold)
	}
	if got := mustStock(t, repo, "2"); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}
	if txs := mustTransactions(t, repo); len(txs) != 5 {
		t.Fatalf("expected 5 sale transactions, got %d", len(txs))
	}
}

func TestDeleteProductReferencedByInvoiceIsRefused(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminContext()

	if _, err := svc.CompleteSale(ctx, domain.SaleRequest{
		Cart: []domain.CartLine{{ProductID: "2", UnitPrice: dec("100"), Qty: 1}},
	}); err != nil {
		t.Fatalf("complete sale: %v", err)
	}
	if err := svc.DeleteProduct(ctx, "2"); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if err := svc.DeleteCategory(ctx, "General"); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected category in use, got %v", err)
	}
	if err := svc.DeleteProduct(ctx, "1"); err != nil {
		t.Fatalf("delete unsold product: %v", err)
	}
}

func TestCashierCannotChangeCatalog(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := WithActor(context.Background(), domain.Actor{Username: "cashier", Role: domain.RoleCashier})

	_, err := svc.AdjustStock(ctx, domain.StockAdjustmentRequest{ProductID: "1", Delta: 5})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.CompleteSale(ctx, domain.SaleRequest{
		Cart: []domain.CartLine{{ProductID: "1", UnitPrice: dec("16.70"), Qty: 1}},
	}); err != nil {
		t.Fatalf("cashier sale: %v", err)
	}
}

func TestAdjustStockLogsMovement(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := adminContext()

	entry, err := svc.AdjustStock(ctx, domain.StockAdjustmentRequest{ProductID: "2", Delta: -4, Reason: "damaged"})
	if err != nil {
		t.Fatalf("adjust stock: %v", err)
	}
	if entry.PreviousStock != 5 || entry.NewStock != 1 || entry.Type != domain.MovementAdjustment {
		t.Fatalf("unexpected log %+v", entry)
	}
	product, _ := repo.GetProduct(context.Background(), "2")
	if product.Status != domain.ProductStatusLow {
		t.Fatalf("expected low status, got %s", product.Status)
	}
	if _, err := svc.AdjustStock(ctx, domain.StockAdjustmentRequest{ProductID: "2", Delta: -2}); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}

func TestReceivePurchaseUpdatesStockAndSupplier(t *testing.T) {
	svc, repo := newTestService(t)

	resp, err := svc.ReceivePurchase(adminContext(), domain.PurchaseRequest{
		SupplierID: "1",
		PaidAmount: dec("500"),
		Lines: []domain.PurchaseLine{
			{ProductID: "2", Qty: 10, UnitCost: dec("60")},
			{ProductID: "1", Qty: 5, UnitCost: dec("10")},
		},
	})
	if err != nil {
		t.Fatalf("receive purchase: %v", err)
	}
	if resp.Transaction.Type != domain.TxTypePurchase || !resp.Transaction.Amount.Equal(dec("650")) {
		t.Fatalf("unexpected purchase transaction %+v", resp.Transaction)
	}
	if !resp.Supplier.Balance.Equal(dec("150")) {
		t.Fatalf("expected supplier balance 150, got %s", resp.Supplier.Balance)
	}
	if len(resp.Logs) != 2 || !strings.HasPrefix(resp.Logs[0].Reference, "purchase:") {
		t.Fatalf("unexpected logs %+v", resp.Logs)
	}
	product, _ := repo.GetProduct(context.Background(), "2")
	if product.Stock != 15 || !product.BuyPrice.Equal(dec("60")) {
		t.Fatalf("unexpected product after purchase %+v", product)
	}

	if _, err := svc.ReceivePurchase(adminContext(), domain.PurchaseRequest{
		SupplierID: "1",
		PaidAmount: dec("1000"),
		Lines:      []domain.PurchaseLine{{ProductID: "2", Qty: 1, UnitCost: dec("60")}},
	}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected overpayment to be rejected, got %v", err)
	}
}

func TestImportBackupFailsClosed(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := adminContext()

	payloads := []string{
		`not json`,
		`{"products": [{"id": "9", "name": "Bad", "stock": -1}]}`,
		`{"products": [{"id": "9", "name": "A"}, {"id": "9", "name": "B"}]}`,
		`{"customers": [{"id": "1", "name": "Ahmed"}], "invoices": "oops"}`,
		`{"taxSettings": {"enabled": true, "rate": 150}}`,
		`{"transactions": [{"id": "t1", "type": "sale", "amount": 5}, {"id": "t1", "type": "expense", "amount": 2}]}`,
		`{"inventoryLogs": [{"id": "l1", "productId": "1"}, {"id": "l1", "productId": "2"}]}`,
		`{"auditLogs": [{"id": "a1", "action": "x"}, {"id": "a1", "action": "y"}]}`,
		`{"roles": [{"id": "r1", "name": "admin"}, {"id": "r1", "name": "owner"}]}`,
		`{"roles": [{"id": "r1", "name": "admin"}, {"id": "r2", "name": "Admin"}]}`,
	}
	for _, payload := range payloads {
		if _, err := svc.ImportBackup(ctx, []byte(payload)); !errors.Is(err, store.ErrValidation) {
			t.Fatalf("expected validation error for %s, got %v", payload, err)
		}
	}

	products, _ := repo.ListProducts(context.Background())
	if len(products) != 3 {
		t.Fatalf("expected products untouched, got %d", len(products))
	}
	settings, _ := repo.GetSettings(context.Background())
	if settings.Tax.Enabled {
		t.Fatalf("expected settings untouched")
	}
	if txs := mustTransactions(t, repo); len(txs) != 0 {
		t.Fatalf("expected ledger untouched, got %+v", txs)
	}

	payload := `{"transactions": [{"type": "expense", "amount": 5}, {"type": "expense", "amount": 7}]}`
	if _, err := svc.ImportBackup(ctx, []byte(payload)); err != nil {
		t.Fatalf("entries without ids should import: %v", err)
	}
	if txs := mustTransactions(t, repo); len(txs) != 2 || txs[0].ID == txs[1].ID {
		t.Fatalf("expected two entries with assigned ids, got %+v", txs)
	}
}

func TestImportBackupReplacesPresentKeys(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := adminContext()

	payload := `{
		"products": [{"id": "42", "name": "Imported", "category": "Phones", "sellPrice": 10, "stock": 3, "reorderLevel": 5}],
		"taxSettings": {"enabled": true, "rate": 5, "includedInPrice": true},
		"somethingNew": {"ignored": true}
	}`
	if _, err := svc.ImportBackup(ctx, []byte(payload)); err != nil {
		t.Fatalf("import: %v", err)
	}

	products, _ := repo.ListProducts(context.Background())
	if len(products) != 1 || products[0].ID != "42" || products[0].Status != domain.ProductStatusLow {
		t.Fatalf("unexpected products %+v", products)
	}
	customers, _ := repo.ListCustomers(context.Background())
	if len(customers) != 2 {
		t.Fatalf("expected customers untouched, got %d", len(customers))
	}
	settings, _ := repo.GetSettings(context.Background())
	if !settings.Tax.Enabled || !settings.Tax.Rate.Equal(dec("5")) || !settings.Loyalty.Enabled {
		t.Fatalf("unexpected settings %+v", settings)
	}

	exported, err := svc.ExportBackup(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	for _, key := range []string{`"products"`, `"inventoryLogs"`, `"taxSettings"`, `"storeInfo"`} {
		if !strings.Contains(string(exported), key) {
			t.Fatalf("expected export to contain %s", key)
		}
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminContext()

	if _, err := svc.CreateUser(ctx, domain.UserCreateRequest{Username: "Layla", Password: "till-pass-1", Role: domain.RoleCashier}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	user, err := svc.Authenticate(context.Background(), "layla", "till-pass-1")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.Role != domain.RoleCashier || user.Password != "" {
		t.Fatalf("unexpected user %+v", user)
	}
	if _, err := svc.Authenticate(context.Background(), "layla", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "nobody", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
}

func TestAuthenticateUpgradesLegacyPassword(t *testing.T) {
	svc, repo := newTestService(t)
	if _, err := repo.CreateUser(context.Background(), domain.SystemUser{Username: "old", Password: "plain123", Role: domain.RoleManager, Active: true}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	if _, err := svc.Authenticate(context.Background(), "old", "plain123"); err != nil {
		t.Fatalf("authenticate legacy: %v", err)
	}
	stored, _ := repo.GetUserByUsername(context.Background(), "old")
	if !isPasswordHash(stored.Password) {
		t.Fatalf("expected password upgraded to bcrypt hash")
	}
	if _, err := svc.Authenticate(context.Background(), "old", "plain123"); err != nil {
		t.Fatalf("authenticate after upgrade: %v", err)
	}
}

func TestRecordTransactionDefaultsTreasury(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := adminContext()

	entry, err := svc.RecordTransaction(ctx, domain.TransactionCreateRequest{
		Type:          "Expense",
		Category:      "rent",
		Amount:        dec("1200"),
		PaymentMethod: domain.PaymentTransfer,
	})
	if err != nil {
		t.Fatalf("record transaction: %v", err)
	}
	if entry.Type != domain.TxTypeExpense || entry.Treasury != domain.TreasuryBank {
		t.Fatalf("unexpected entry %+v", entry)
	}

	cases := []domain.TransactionCreateRequest{
		{Type: domain.TxTypeSale, Amount: dec("10")},
		{Type: domain.TxTypeReturn, Amount: dec("10")},
		{Type: domain.TxTypeRevenue, Amount: dec("0")},
		{Type: domain.TxTypeRevenue, Amount: dec("10"), PaymentMethod: "cheque"},
		{Type: domain.TxTypeRevenue, Amount: dec("10"), Treasury: "safe"},
	}
	for _, req := range cases {
		if _, err := svc.RecordTransaction(ctx, req); !errors.Is(err, store.ErrValidation) {
			t.Fatalf("%+v: expected validation error, got %v", req, err)
		}
	}

	cashier := WithActor(context.Background(), domain.Actor{Username: "cashier", Role: domain.RoleCashier})
	if _, err := svc.RecordTransaction(cashier, domain.TransactionCreateRequest{Type: domain.TxTypeExpense, Amount: dec("5")}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	entries, err := repo.ListTransactions(context.Background(), domain.TransactionFilter{})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the valid entry, got %d", len(entries))
	}
}

func TestUpdateSettingsValidatesRanges(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminContext()

	settings := domain.DefaultSettings()
	settings.Tax.Rate = dec("101")
	if _, err := svc.UpdateSettings(ctx, settings); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	settings = domain.DefaultSettings()
	settings.Printer.Copies = 0
	settings.StoreInfo.Currency = " sar "
	saved, err := svc.UpdateSettings(ctx, settings)
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if saved.Printer.Copies != 1 || saved.StoreInfo.Currency != "SAR" {
		t.Fatalf("settings not normalized: %+v", saved)
	}
}

// lockOrderRepo records the order in which a unit of work reads the rows
// that are locked on Postgres.
type lockOrderRepo struct {
	*memory.Store
	mu    sync.Mutex
	reads []string
}

func (r *lockOrderRepo) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return r.Store.InTx(ctx, func(tx store.Tx) error {
		return fn(&lockRecorder{Tx: tx, repo: r})
	})
}

func (r *lockOrderRepo) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	reads := r.reads
	r.reads = nil
	return reads
}

type lockRecorder struct {
	store.Tx
	repo *lockOrderRepo
}

func (t *lockRecorder) record(entry string) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	t.repo.reads = append(t.repo.reads, entry)
}

func (t *lockRecorder) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	t.record("product:" + id)
	return t.Tx.GetProduct(ctx, id)
}

func (t *lockRecorder) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	t.record("customer:" + id)
	return t.Tx.GetCustomer(ctx, id)
}

func TestRowsAreReadInLockOrder(t *testing.T) {
	_, mem := newTestService(t)
	repo := &lockOrderRepo{Store: mem}
	svc := New(repo)
	ctx := adminContext()
	want := []string{"customer:1", "product:1", "product:2", "product:3"}

	resp, err := svc.CompleteSale(ctx, domain.SaleRequest{
		CustomerID: "1",
		Cart: []domain.CartLine{
			{ProductID: "3", UnitPrice: dec("50"), Qty: 1},
			{ProductID: "1", UnitPrice: dec("16.70"), Qty: 1},
			{ProductID: "2", UnitPrice: dec("100"), Qty: 1},
		},
	})
	if err != nil {
		t.Fatalf("complete sale: %v", err)
	}
	if got := repo.take(); !slices.Equal(got, want) {
		t.Fatalf("sale read %v, want %v", got, want)
	}

	if _, err := svc.EditInvoice(ctx, resp.Invoice.ID, domain.EditInvoiceRequest{
		Items: []domain.CartLine{
			{ProductID: "2", UnitPrice: dec("100"), Qty: 1},
			{ProductID: "1", UnitPrice: dec("16.70"), Qty: 2},
		},
	}); err != nil {
		t.Fatalf("edit invoice: %v", err)
	}
	if got := repo.take(); !slices.Equal(got, want) {
		t.Fatalf("edit read %v, want %v", got, want)
	}

	if _, err := svc.ProcessReturn(ctx, resp.Invoice.ID); err != nil {
		t.Fatalf("process return: %v", err)
	}
	if got := repo.take(); !slices.Equal(got, []string{"customer:1", "product:1", "product:2"}) {
		t.Fatalf("return read %v", got)
	}
}
