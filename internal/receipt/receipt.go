// Package receipt renders invoices as ESC/POS byte streams for thermal printers.
package receipt

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"souqpos/backend/internal/domain"
)

const ruleWidth = 32

var (
	escInit    = []byte{0x1b, 0x40}
	escCut     = []byte{0x1d, 0x56, 0x41, 0x10}
	drawerKick = []byte{0x1b, 0x70, 0x00, 0x19, 0xfa}
)

// Lines returns the printable text of an invoice, one entry per receipt line.
func Lines(invoice domain.Invoice, settings domain.Settings) []string {
	info := settings.StoreInfo
	currency := info.Currency
	heavy := strings.Repeat("=", ruleWidth)
	light := strings.Repeat("-", ruleWidth)

	lines := []string{info.Name}
	if info.Address != "" {
		lines = append(lines, info.Address)
	}
	if info.Phone != "" {
		lines = append(lines, "Tel: "+info.Phone)
	}
	if taxNumber := firstNonEmpty(settings.Tax.TaxNumber, info.TaxNumber); taxNumber != "" && settings.Tax.Enabled {
		lines = append(lines, "VAT No: "+taxNumber)
	}
	if info.CRNumber != "" {
		lines = append(lines, "CR No: "+info.CRNumber)
	}
	lines = append(lines,
		heavy,
		fmt.Sprintf("Invoice: #%d", invoice.ID),
		"Date: "+invoice.Date.Format("2006-01-02 15:04:05"),
		"Customer: "+invoice.Customer,
		"Cashier: "+invoice.Employee,
		light,
	)

	for _, item := range invoice.Items {
		name := item.Name
		if item.Unit != "" {
			name += " (" + item.Unit + ")"
		}
		lines = append(lines, fmt.Sprintf("%s x%d", name, item.Qty))
		lines = append(lines, "  "+money(item.Price.Mul(decimal.NewFromInt(int64(item.Qty))), currency))
	}

	lines = append(lines, light, "Subtotal : "+money(invoice.Subtotal, currency))
	if invoice.DiscountAmount.IsPositive() {
		lines = append(lines, fmt.Sprintf("Discount (%s%%): -%s", invoice.Discount, money(invoice.DiscountAmount, currency)))
	}
	if invoice.PointsDiscount.IsPositive() {
		lines = append(lines, "Points   : -"+money(invoice.PointsDiscount, currency))
	}
	if settings.Tax.Enabled {
		label := "VAT      : "
		if settings.Tax.IncludedInPrice {
			label = "VAT incl.: "
		}
		lines = append(lines, label+money(invoice.Tax, currency))
	}
	lines = append(lines,
		"Total    : "+money(invoice.Total, currency),
		"Payment  : "+invoice.PaymentMethod,
	)

	if settings.Loyalty.Enabled && settings.Loyalty.ShowOnReceipt && (invoice.LoyaltyPointsEarned > 0 || invoice.LoyaltyPointsRedeemed > 0) {
		lines = append(lines, light)
		if invoice.LoyaltyPointsEarned > 0 {
			lines = append(lines, fmt.Sprintf("Points earned  : %d", invoice.LoyaltyPointsEarned))
		}
		if invoice.LoyaltyPointsRedeemed > 0 {
			lines = append(lines, fmt.Sprintf("Points redeemed: %d", invoice.LoyaltyPointsRedeemed))
		}
	}

	lines = append(lines, heavy, firstNonEmpty(settings.Printer.Footer, "Thank you"), "")
	return lines
}

// Build encodes the receipt once per configured copy, each followed by a
// partial cut.
func Build(invoice domain.Invoice, settings domain.Settings) domain.ReceiptResponse {
	lines := Lines(invoice, settings)
	copies := max(settings.Printer.Copies, 1)

	escpos := append([]byte{}, escInit...)
	for range copies {
		for _, line := range lines {
			escpos = append(escpos, []byte(line)...)
			escpos = append(escpos, '\n')
		}
		escpos = append(escpos, escCut...)
	}

	return domain.ReceiptResponse{
		InvoiceID:    invoice.ID,
		EscposBase64: base64.StdEncoding.EncodeToString(escpos),
		PreviewText:  strings.Join(lines, "\n"),
		FileName:     fmt.Sprintf("receipt-%d.bin", invoice.ID),
	}
}

// DrawerPulse is the ESC/POS kick on pin 2.
func DrawerPulse() domain.DrawerResponse {
	return domain.DrawerResponse{
		CommandBase64: base64.StdEncoding.EncodeToString(drawerKick),
		Note:          "Send this ESC/POS pulse command via local printer bridge to open cash drawer.",
	}
}

func money(value decimal.Decimal, currency string) string {
	if currency == "" {
		return value.StringFixed(2)
	}
	return value.StringFixed(2) + " " + currency
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
