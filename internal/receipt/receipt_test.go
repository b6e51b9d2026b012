package receipt

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"souqpos/backend/internal/domain"
)

func sampleInvoice() domain.Invoice {
	return domain.Invoice{
		ID:       1001,
		Date:     time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
		Customer: "Ahmed Mohamed",
		Employee: "cashier",
		Items: []domain.InvoiceItem{
			{ProductID: "4", Name: "Clear Case", Qty: 2, Price: decimal.NewFromInt(450), Unit: "box", UnitFactor: 10},
		},
		Subtotal:            decimal.NewFromInt(900),
		Tax:                 decimal.NewFromInt(135),
		Total:               decimal.NewFromInt(1035),
		PaymentMethod:       domain.PaymentCash,
		LoyaltyPointsEarned: 1035,
	}
}

func TestBuildEncodesEscposFrame(t *testing.T) {
	settings := domain.DefaultSettings()
	settings.Printer.Copies = 2

	out := Build(sampleInvoice(), settings)
	if out.FileName != "receipt-1001.bin" {
		t.Fatalf("unexpected file name %q", out.FileName)
	}
	raw, err := base64.StdEncoding.DecodeString(out.EscposBase64)
	if err != nil {
		t.Fatalf("decode escpos: %v", err)
	}
	if !bytes.HasPrefix(raw, escInit) {
		t.Fatalf("expected init prefix, got % x", raw[:2])
	}
	if got := bytes.Count(raw, escCut); got != 2 {
		t.Fatalf("expected one cut per copy, got %d", got)
	}
}

func TestPreviewShowsTotalsAndLoyalty(t *testing.T) {
	settings := domain.DefaultSettings()
	preview := Build(sampleInvoice(), settings).PreviewText

	for _, want := range []string{"Invoice: #1001", "Clear Case (box) x2", "Total    : 1035.00 SAR", "Points earned  : 1035"} {
		if !strings.Contains(preview, want) {
			t.Fatalf("expected preview to contain %q:\n%s", want, preview)
		}
	}

	settings.Loyalty.ShowOnReceipt = false
	if strings.Contains(Build(sampleInvoice(), settings).PreviewText, "Points earned") {
		t.Fatalf("expected loyalty lines hidden")
	}
}

func TestDrawerPulse(t *testing.T) {
	raw, err := base64.StdEncoding.DecodeString(DrawerPulse().CommandBase64)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(raw, drawerKick) {
		t.Fatalf("unexpected pulse % x", raw)
	}
}
