package memory

import (
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"souqpos/backend/internal/domain"
)

func defaultRoles() map[string]domain.Role {
	return map[string]domain.Role{
		"1": {ID: "1", Name: domain.RoleAdmin, Permissions: []string{"all"}},
		"2": {ID: "2", Name: domain.RoleManager, Permissions: []string{"sales", "returns", "inventory", "customers", "suppliers", "reports", "accounting"}},
		"3": {ID: "3", Name: domain.RoleCashier, Permissions: []string{"sales", "customers"}},
	}
}

// NewSeeded returns a store holding the demo catalog, customers, suppliers
// and the default login accounts.
func NewSeeded() *Store {
	s := New()
	st := s.st

	st.categories = append(st.categories, "Phones", "Accessories", "Cables", "Tablets", "Watches")

	for _, p := range []domain.Product{
		{ID: "1", Name: "iPhone 15 Pro", SKU: "IPH-15P", Barcode: "1001", Category: "Phones", BuyPrice: money(1200), SellPrice: money(1450), Stock: 25, ReorderLevel: 10},
		{ID: "2", Name: "AirPods Pro", SKU: "APD-PRO", Barcode: "1002", Category: "Accessories", BuyPrice: money(180), SellPrice: money(250), Stock: 48, ReorderLevel: 20},
		{ID: "3", Name: "Fast Charger 65W", SKU: "CHR-65W", Barcode: "1003", Category: "Accessories", BuyPrice: money(60), SellPrice: money(100), Stock: 5, ReorderLevel: 15},
		{ID: "4", Name: "Clear Case", SKU: "CSE-CLR", Barcode: "1004", Category: "Accessories", BuyPrice: money(20), SellPrice: money(50), Stock: 200, ReorderLevel: 30,
			Unit: "piece", SubUnits: []domain.SubUnit{{Name: "box", Factor: 10, Price: money(450)}}},
		{ID: "5", Name: "USB-C Cable 2m", SKU: "CBL-TC2", Barcode: "1005", Category: "Cables", BuyPrice: money(12), SellPrice: money(30), Stock: 0, ReorderLevel: 50},
		{ID: "6", Name: "Samsung S24 Ultra", SKU: "SAM-S24", Barcode: "1006", Category: "Phones", BuyPrice: money(1100), SellPrice: money(1350), Stock: 18, ReorderLevel: 8},
		{ID: "7", Name: "iPad Air", SKU: "IPD-AIR", Barcode: "1007", Category: "Tablets", BuyPrice: money(650), SellPrice: money(850), Stock: 3, ReorderLevel: 5},
		{ID: "8", Name: "Apple Watch Ultra", SKU: "AWU-001", Barcode: "1008", Category: "Watches", BuyPrice: money(750), SellPrice: money(950), Stock: 15, ReorderLevel: 5},
	} {
		p.ApplyStock(p.Stock)
		st.products[p.ID] = p
	}

	for _, c := range []domain.Customer{
		{ID: "1", Name: "Ahmed Mohammed", Phone: "0501234567", Address: "Riyadh - Al Nuzha", Notes: "preferred customer", Type: domain.CustomerTypeVIP, LoyaltyPoints: 1250, CreditLimit: money(5000), Balance: money(1200), TotalPurchases: money(45600)},
		{ID: "2", Name: "Fatima Ali", Phone: "0559876543", Address: "Jeddah - Al Safa", Type: domain.CustomerTypeRegular, LoyaltyPoints: 320, CreditLimit: money(2000), Balance: money(0), TotalPurchases: money(12300)},
		{ID: "3", Name: "Khalid Saeed", Phone: "0541112233", Address: "Dammam - Al Faisaliah", Notes: "prefers credit", Type: domain.CustomerTypeWholesale, LoyaltyPoints: 890, CreditLimit: money(15000), Balance: money(4500), TotalPurchases: money(89000)},
		{ID: "4", Name: "Noura Ahmed", Phone: "0567778899", Address: "Riyadh - Al Olaya", Type: domain.CustomerTypeRegular, LoyaltyPoints: 150, CreditLimit: money(1000), Balance: money(0), TotalPurchases: money(5400)},
		{ID: "5", Name: "Abdullah Alotaibi", Phone: "0533445566", Address: "Makkah - Al Aziziyah", Notes: "device wholesaler", Type: domain.CustomerTypeWholesale, LoyaltyPoints: 2100, CreditLimit: money(25000), Balance: money(8900), TotalPurchases: money(156000)},
	} {
		st.customers[c.ID] = c
	}

	for _, sup := range []domain.Supplier{
		{ID: "1", Name: "Advanced Tech Co.", Phone: "0112345678", Address: "Riyadh - Industrial Area", Email: "info@advtech.sa", CreditLimit: money(100000), Balance: money(15000), Notes: "main phone supplier"},
		{ID: "2", Name: "Modern Electronics Est.", Phone: "0126543210", Address: "Jeddah - Industrial District", Email: "sales@modern-elec.sa", CreditLimit: money(50000), Balance: money(8000), Notes: "accessories and cables"},
		{ID: "3", Name: "Smart Distribution Co.", Phone: "0138765432", Address: "Dammam - Free Zone", Email: "orders@smartdist.sa", CreditLimit: money(75000), Balance: money(0), Notes: "tablets and watches"},
	} {
		st.suppliers[sup.ID] = sup
	}

	s.SeedUsers()
	return s
}

// SeedUsers adds the admin and cashier accounts used in dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD;
// when unset, dev defaults are used and a warning is printed.
func (s *Store) SeedUsers() {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, u := range []struct {
		username string
		name     string
		password string
		role     string
	}{
		{"admin", "Store Admin", adminPwd, domain.RoleAdmin},
		{"cashier", "Front Cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		s.st.users[u.username] = domain.SystemUser{
			ID:        s.st.newID(),
			Username:  u.username,
			Name:      u.name,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
}

func money(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
