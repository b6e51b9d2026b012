package domain

import "testing"

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name    string
		stock   int
		reorder int
		want    string
	}{
		{"zero stock is depleted", 0, 10, ProductStatusDepleted},
		{"negative stock is depleted", -2, 10, ProductStatusDepleted},
		{"at reorder level is low", 10, 10, ProductStatusLow},
		{"below reorder level is low", 1, 10, ProductStatusLow},
		{"above reorder level is available", 11, 10, ProductStatusAvailable},
		{"zero reorder level", 1, 0, ProductStatusAvailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			first := DeriveStatus(tc.stock, tc.reorder)
			second := DeriveStatus(tc.stock, tc.reorder)
			if first != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, first)
			}
			if first != second {
				t.Fatalf("expected repeated calls to agree, got %s and %s", first, second)
			}
		})
	}
}

func TestApplyStockRefreshesStatus(t *testing.T) {
	p := Product{Stock: 20, ReorderLevel: 5, Status: ProductStatusAvailable}
	p.ApplyStock(3)
	if p.Stock != 3 || p.Status != ProductStatusLow {
		t.Fatalf("expected stock 3 and low status, got %d/%s", p.Stock, p.Status)
	}
	p.ApplyStock(0)
	if p.Status != ProductStatusDepleted {
		t.Fatalf("expected depleted, got %s", p.Status)
	}
}

func TestInvoiceItemBaseQty(t *testing.T) {
	item := InvoiceItem{Qty: 3, UnitFactor: 12, ReturnedQty: 1}
	if item.BaseQty() != 36 {
		t.Fatalf("expected 36 base units, got %d", item.BaseQty())
	}
	if item.OutstandingQty() != 2 {
		t.Fatalf("expected 2 outstanding, got %d", item.OutstandingQty())
	}
	if (InvoiceItem{Qty: 4}).BaseQty() != 4 {
		t.Fatalf("expected factor to default to 1")
	}
}
