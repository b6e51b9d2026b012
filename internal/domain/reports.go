package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReportRange bounds a report; From is inclusive, To exclusive. Zero values
// leave that side open.
type ReportRange struct {
	From time.Time `json:"from,omitzero"`
	To   time.Time `json:"to,omitzero"`
}

type SalesSummary struct {
	Invoices       int             `json:"invoices"`
	ByStatus       map[string]int  `json:"byStatus"`
	GrossSales     decimal.Decimal `json:"grossSales"`
	Returns        decimal.Decimal `json:"returns"`
	NetSales       decimal.Decimal `json:"netSales"`
	AverageInvoice decimal.Decimal `json:"averageInvoice"`
	TaxCollected   decimal.Decimal `json:"taxCollected"`
	Discounts      decimal.Decimal `json:"discounts"`
}

type CategoryAmount struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

type AccountingSummary struct {
	Revenue           decimal.Decimal  `json:"revenue"`
	Expense           decimal.Decimal  `json:"expense"`
	Net               decimal.Decimal  `json:"net"`
	ExpenseByCategory []CategoryAmount `json:"expenseByCategory"`
}

type TreasuryBalance struct {
	Treasury string          `json:"treasury"`
	Income   decimal.Decimal `json:"income"`
	Expense  decimal.Decimal `json:"expense"`
	Balance  decimal.Decimal `json:"balance"`
}

type ProductSales struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type CustomerRank struct {
	CustomerID     string          `json:"customerId"`
	Name           string          `json:"name"`
	TotalPurchases decimal.Decimal `json:"totalPurchases"`
	LoyaltyPoints  int             `json:"loyaltyPoints"`
	Balance        decimal.Decimal `json:"balance"`
}

type DailySales struct {
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

type InventoryValuation struct {
	CostValue        decimal.Decimal  `json:"costValue"`
	RetailValue      decimal.Decimal  `json:"retailValue"`
	ProfitByCategory []CategoryAmount `json:"profitByCategory"`
}

type Dashboard struct {
	GeneratedAt  time.Time          `json:"generatedAt"`
	Range        ReportRange        `json:"range"`
	Sales        SalesSummary       `json:"sales"`
	Accounting   AccountingSummary  `json:"accounting"`
	Treasuries   []TreasuryBalance  `json:"treasuries"`
	SalesByDay   []DailySales       `json:"salesByDay"`
	LowStock     []Product          `json:"lowStock"`
	TopProducts  []ProductSales     `json:"topProducts"`
	TopCustomers []CustomerRank     `json:"topCustomers"`
	Inventory    InventoryValuation `json:"inventory"`
}
