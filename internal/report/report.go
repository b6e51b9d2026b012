// Package report derives read-only views (sales, accounting, treasuries,
// stock and customers) from the ledger collections.
package report

import (
	"cmp"
	"context"
	"fmt"
	"log"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"souqpos/backend/internal/cache"
	"souqpos/backend/internal/domain"
)

const dashboardKeyPrefix = "souqpos:dashboard:"

// Source is the read side of the ledger store that reports need.
type Source interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error)
	ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error)
}

type Service struct {
	source   Source
	cache    cache.ReportCache
	cacheTTL time.Duration
	topN     int
}

func NewService(source Source, cacheStore cache.ReportCache, cacheTTL time.Duration) *Service {
	if cacheStore == nil {
		cacheStore = cache.NoopReportCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Service{source: source, cache: cacheStore, cacheTTL: cacheTTL, topN: 5}
}

type dataset struct {
	products     []domain.Product
	customers    []domain.Customer
	transactions []domain.Transaction
	invoices     []domain.Invoice
}

func (s *Service) load(ctx context.Context, rng domain.ReportRange) (dataset, error) {
	var data dataset
	var err error
	if data.products, err = s.source.ListProducts(ctx); err != nil {
		return dataset{}, fmt.Errorf("list products: %w", err)
	}
	if data.customers, err = s.source.ListCustomers(ctx); err != nil {
		return dataset{}, fmt.Errorf("list customers: %w", err)
	}
	if data.transactions, err = s.source.ListTransactions(ctx, domain.TransactionFilter{From: rng.From, To: rng.To}); err != nil {
		return dataset{}, fmt.Errorf("list transactions: %w", err)
	}
	if data.invoices, err = s.source.ListInvoices(ctx, domain.InvoiceFilter{From: rng.From, To: rng.To}); err != nil {
		return dataset{}, fmt.Errorf("list invoices: %w", err)
	}
	return data, nil
}

func isIncome(txType string) bool {
	return txType == domain.TxTypeSale || txType == domain.TxTypeRevenue
}

func isOutflow(txType string) bool {
	switch txType {
	case domain.TxTypeExpense, domain.TxTypePurchase, domain.TxTypeSalary, domain.TxTypeReturn:
		return true
	default:
		return false
	}
}

func salesSummary(data dataset) domain.SalesSummary {
	summary := domain.SalesSummary{
		ByStatus:       make(map[string]int),
		GrossSales:     decimal.Zero,
		Returns:        decimal.Zero,
		AverageInvoice: decimal.Zero,
		TaxCollected:   decimal.Zero,
		Discounts:      decimal.Zero,
	}
	for _, tx := range data.transactions {
		switch tx.Type {
		case domain.TxTypeSale:
			summary.GrossSales = summary.GrossSales.Add(tx.Amount)
		case domain.TxTypeReturn:
			summary.Returns = summary.Returns.Add(tx.Amount)
		}
	}
	summary.NetSales = summary.GrossSales.Sub(summary.Returns)

	invoiced := decimal.Zero
	for _, invoice := range data.invoices {
		summary.Invoices++
		summary.ByStatus[invoice.Status]++
		invoiced = invoiced.Add(invoice.Total)
		if invoice.Status != domain.InvoiceStatusCancelled {
			summary.TaxCollected = summary.TaxCollected.Add(invoice.Tax)
			summary.Discounts = summary.Discounts.Add(invoice.DiscountAmount).Add(invoice.PointsDiscount)
		}
	}
	if summary.Invoices > 0 {
		summary.AverageInvoice = invoiced.Div(decimal.NewFromInt(int64(summary.Invoices))).Round(2)
	}
	return summary
}

func accountingSummary(data dataset) domain.AccountingSummary {
	summary := domain.AccountingSummary{Revenue: decimal.Zero, Expense: decimal.Zero}
	byCategory := make(map[string]decimal.Decimal)
	for _, tx := range data.transactions {
		switch {
		case isIncome(tx.Type):
			summary.Revenue = summary.Revenue.Add(tx.Amount)
		case isOutflow(tx.Type):
			summary.Expense = summary.Expense.Add(tx.Amount)
			byCategory[tx.Category] = byCategory[tx.Category].Add(tx.Amount)
		}
	}
	summary.Net = summary.Revenue.Sub(summary.Expense)
	summary.ExpenseByCategory = sortedAmounts(byCategory)
	return summary
}

func treasuryBalances(data dataset) []domain.TreasuryBalance {
	byName := map[string]*domain.TreasuryBalance{
		domain.TreasuryMain: {Treasury: domain.TreasuryMain, Income: decimal.Zero, Expense: decimal.Zero},
		domain.TreasuryBank: {Treasury: domain.TreasuryBank, Income: decimal.Zero, Expense: decimal.Zero},
	}
	for _, tx := range data.transactions {
		balance, ok := byName[tx.Treasury]
		if !ok {
			balance = &domain.TreasuryBalance{Treasury: tx.Treasury, Income: decimal.Zero, Expense: decimal.Zero}
			byName[tx.Treasury] = balance
		}
		switch {
		case isIncome(tx.Type):
			balance.Income = balance.Income.Add(tx.Amount)
		case isOutflow(tx.Type):
			balance.Expense = balance.Expense.Add(tx.Amount)
		}
	}

	result := make([]domain.TreasuryBalance, 0, len(byName))
	for _, balance := range byName {
		balance.Balance = balance.Income.Sub(balance.Expense)
		result = append(result, *balance)
	}
	slices.SortFunc(result, func(a, b domain.TreasuryBalance) int { return cmp.Compare(a.Treasury, b.Treasury) })
	return result
}

func salesByDay(data dataset) []domain.DailySales {
	byDay := make(map[string]decimal.Decimal)
	for _, tx := range data.transactions {
		if tx.Type != domain.TxTypeSale {
			continue
		}
		day := tx.Date.UTC().Format(time.DateOnly)
		byDay[day] = byDay[day].Add(tx.Amount)
	}
	result := make([]domain.DailySales, 0, len(byDay))
	for day, amount := range byDay {
		result = append(result, domain.DailySales{Date: day, Amount: amount})
	}
	slices.SortFunc(result, func(a, b domain.DailySales) int { return cmp.Compare(a.Date, b.Date) })
	return result
}

func lowStock(data dataset) []domain.Product {
	result := make([]domain.Product, 0)
	for _, p := range data.products {
		if p.Status == domain.ProductStatusLow || p.Status == domain.ProductStatusDepleted {
			result = append(result, p)
		}
	}
	slices.SortFunc(result, func(a, b domain.Product) int {
		return cmp.Or(cmp.Compare(a.Stock, b.Stock), cmp.Compare(a.Name, b.Name))
	})
	return result
}

// topProducts ranks products by base units sold net of returns.
func topProducts(data dataset, limit int) []domain.ProductSales {
	byProduct := make(map[string]*domain.ProductSales)
	for _, invoice := range data.invoices {
		if invoice.Status == domain.InvoiceStatusCancelled {
			continue
		}
		for _, item := range invoice.Items {
			outstanding := item.OutstandingQty()
			if outstanding <= 0 {
				continue
			}
			entry, ok := byProduct[item.ProductID]
			if !ok {
				entry = &domain.ProductSales{ProductID: item.ProductID, Name: item.Name, Revenue: decimal.Zero}
				byProduct[item.ProductID] = entry
			}
			entry.Quantity += outstanding * max(item.UnitFactor, 1)
			entry.Revenue = entry.Revenue.Add(item.Price.Mul(decimal.NewFromInt(int64(outstanding))))
		}
	}

	result := make([]domain.ProductSales, 0, len(byProduct))
	for _, entry := range byProduct {
		result = append(result, *entry)
	}
	slices.SortFunc(result, func(a, b domain.ProductSales) int {
		return cmp.Or(cmp.Compare(b.Quantity, a.Quantity), b.Revenue.Cmp(a.Revenue), cmp.Compare(a.ProductID, b.ProductID))
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func topCustomers(data dataset, limit int) []domain.CustomerRank {
	result := make([]domain.CustomerRank, 0, len(data.customers))
	for _, c := range data.customers {
		result = append(result, domain.CustomerRank{
			CustomerID:     c.ID,
			Name:           c.Name,
			TotalPurchases: c.TotalPurchases,
			LoyaltyPoints:  c.LoyaltyPoints,
			Balance:        c.Balance,
		})
	}
	slices.SortFunc(result, func(a, b domain.CustomerRank) int {
		return cmp.Or(b.TotalPurchases.Cmp(a.TotalPurchases), cmp.Compare(a.CustomerID, b.CustomerID))
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// inventoryValuation values stock on hand at cost and at shelf price; the
// per-category profit is the margin locked in that stock.
func inventoryValuation(data dataset) domain.InventoryValuation {
	valuation := domain.InventoryValuation{CostValue: decimal.Zero, RetailValue: decimal.Zero}
	profit := make(map[string]decimal.Decimal)
	for _, p := range data.products {
		stock := decimal.NewFromInt(int64(max(p.Stock, 0)))
		valuation.CostValue = valuation.CostValue.Add(p.BuyPrice.Mul(stock))
		valuation.RetailValue = valuation.RetailValue.Add(p.SellPrice.Mul(stock))
		profit[p.Category] = profit[p.Category].Add(p.SellPrice.Sub(p.BuyPrice).Mul(stock))
	}
	valuation.ProfitByCategory = sortedAmounts(profit)
	return valuation
}

func sortedAmounts(values map[string]decimal.Decimal) []domain.CategoryAmount {
	result := make([]domain.CategoryAmount, 0, len(values))
	for category, amount := range values {
		result = append(result, domain.CategoryAmount{Category: category, Amount: amount})
	}
	slices.SortFunc(result, func(a, b domain.CategoryAmount) int {
		return cmp.Or(b.Amount.Cmp(a.Amount), cmp.Compare(a.Category, b.Category))
	})
	return result
}

func (s *Service) SalesSummary(ctx context.Context, rng domain.ReportRange) (domain.SalesSummary, error) {
	data, err := s.load(ctx, rng)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	return salesSummary(data), nil
}

func (s *Service) Accounting(ctx context.Context, rng domain.ReportRange) (domain.AccountingSummary, error) {
	data, err := s.load(ctx, rng)
	if err != nil {
		return domain.AccountingSummary{}, err
	}
	return accountingSummary(data), nil
}

func (s *Service) Treasuries(ctx context.Context, rng domain.ReportRange) ([]domain.TreasuryBalance, error) {
	data, err := s.load(ctx, rng)
	if err != nil {
		return nil, err
	}
	return treasuryBalances(data), nil
}

func (s *Service) LowStock(ctx context.Context) ([]domain.Product, error) {
	products, err := s.source.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return lowStock(dataset{products: products}), nil
}

func (s *Service) TopCustomers(ctx context.Context, limit int) ([]domain.CustomerRank, error) {
	customers, err := s.source.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	return topCustomers(dataset{customers: customers}, limit), nil
}

func (s *Service) Dashboard(ctx context.Context, rng domain.ReportRange) (domain.Dashboard, error) {
	key := dashboardKey(rng)
	if cached, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		log.Printf("[report] WARN: dashboard cache read failed key=%s: %v", key, err)
	}

	data, err := s.load(ctx, rng)
	if err != nil {
		return domain.Dashboard{}, err
	}
	dashboard := buildDashboard(data, rng, s.topN)

	if err := s.cache.Set(ctx, key, &dashboard, s.cacheTTL); err != nil {
		log.Printf("[report] WARN: dashboard cache write failed key=%s: %v", key, err)
	}
	return dashboard, nil
}

// Invalidate drops every cached dashboard. Writers call it after a committed
// mutation.
func (s *Service) Invalidate(ctx context.Context) {
	if err := s.cache.DeletePrefix(ctx, dashboardKeyPrefix); err != nil {
		log.Printf("[report] WARN: dashboard cache invalidation failed: %v", err)
	}
}

func buildDashboard(data dataset, rng domain.ReportRange, topN int) domain.Dashboard {
	return domain.Dashboard{
		GeneratedAt:  time.Now().UTC(),
		Range:        rng,
		Sales:        salesSummary(data),
		Accounting:   accountingSummary(data),
		Treasuries:   treasuryBalances(data),
		SalesByDay:   salesByDay(data),
		LowStock:     lowStock(data),
		TopProducts:  topProducts(data, topN),
		TopCustomers: topCustomers(data, topN),
		Inventory:    inventoryValuation(data),
	}
}

func dashboardKey(rng domain.ReportRange) string {
	return fmt.Sprintf("%s%d:%d", dashboardKeyPrefix, unixOrZero(rng.From), unixOrZero(rng.To))
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func decimalInt(v int) decimal.Decimal {
	return decimal.NewFromInt(int64(v))
}
