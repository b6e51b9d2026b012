package report

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"souqpos/backend/internal/domain"
)

const (
	sheetSales     = "Sales"
	sheetInventory = "Inventory"
	sheetTreasury  = "Treasury"
)

// ExportXLSX writes a workbook with the invoices, stock and treasury
// movements of the range.
func (s *Service) ExportXLSX(ctx context.Context, rng domain.ReportRange, w io.Writer) error {
	data, err := s.load(ctx, rng)
	if err != nil {
		return err
	}

	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", sheetSales); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{sheetInventory, sheetTreasury} {
		if _, err := file.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	sales := [][]any{{"Invoice", "Date", "Customer", "Employee", "Payment", "Status", "Subtotal", "Discount", "Tax", "Total", "Refunded"}}
	for _, inv := range data.invoices {
		sales = append(sales, []any{
			inv.ID,
			inv.Date.UTC().Format("2006-01-02 15:04"),
			inv.Customer,
			inv.Employee,
			inv.PaymentMethod,
			inv.Status,
			inv.Subtotal.InexactFloat64(),
			inv.DiscountAmount.Add(inv.PointsDiscount).InexactFloat64(),
			inv.Tax.InexactFloat64(),
			inv.Total.InexactFloat64(),
			inv.RefundedAmount.InexactFloat64(),
		})
	}
	if err := writeRows(file, sheetSales, sales); err != nil {
		return err
	}

	inventory := [][]any{{"ID", "Name", "SKU", "Category", "Stock", "Reorder Level", "Status", "Buy Price", "Sell Price", "Stock Value"}}
	for _, p := range data.products {
		inventory = append(inventory, []any{
			p.ID, p.Name, p.SKU, p.Category, p.Stock, p.ReorderLevel, p.Status,
			p.BuyPrice.InexactFloat64(),
			p.SellPrice.InexactFloat64(),
			p.BuyPrice.Mul(decimalInt(p.Stock)).InexactFloat64(),
		})
	}
	if err := writeRows(file, sheetInventory, inventory); err != nil {
		return err
	}

	treasury := [][]any{{"Date", "Type", "Category", "Treasury", "Payment", "Amount", "Reference", "Description"}}
	for _, tx := range data.transactions {
		treasury = append(treasury, []any{
			tx.Date.UTC().Format("2006-01-02 15:04"),
			tx.Type, tx.Category, tx.Treasury, tx.PaymentMethod,
			tx.Amount.InexactFloat64(),
			tx.Reference, tx.Description,
		})
	}
	treasury = append(treasury, []any{})
	for _, balance := range treasuryBalances(data) {
		treasury = append(treasury, []any{"Balance", balance.Treasury, "", "", "", balance.Balance.InexactFloat64()})
	}
	if err := writeRows(file, sheetTreasury, treasury); err != nil {
		return err
	}

	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(file *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := file.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
