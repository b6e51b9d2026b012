package domain

import "github.com/shopspring/decimal"

type TaxSettings struct {
	Enabled         bool            `json:"enabled"`
	Rate            decimal.Decimal `json:"rate"`
	IncludedInPrice bool            `json:"includedInPrice"`
	TaxNumber       string          `json:"taxNumber,omitempty"`
}

type LoyaltySettings struct {
	Enabled           bool            `json:"enabled"`
	PointsPerUnit     decimal.Decimal `json:"pointsPerUnit"`
	PointValue        decimal.Decimal `json:"pointValue"`
	ShowOnReceipt     bool            `json:"showOnReceipt"`
	AllowUnregistered bool            `json:"allowUnregistered"`
}

type PrinterSettings struct {
	Type           string `json:"type"`
	AutoPrint      bool   `json:"autoPrint"`
	OpenCashDrawer bool   `json:"openCashDrawer"`
	Copies         int    `json:"copies"`
	Footer         string `json:"footer"`
}

type NotificationSettings struct {
	LowStock    bool   `json:"lowStock"`
	DailyReport bool   `json:"dailyReport"`
	Email       string `json:"email"`
}

type BackupSettings struct {
	AutoBackup bool   `json:"autoBackup"`
	Frequency  string `json:"frequency"`
}

type StoreInfo struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	TaxNumber string `json:"taxNumber"`
	CRNumber  string `json:"crNumber"`
	Currency  string `json:"currency"`
	Language  string `json:"language"`
}

type Settings struct {
	Tax          TaxSettings          `json:"taxSettings"`
	Loyalty      LoyaltySettings      `json:"loyaltySettings"`
	Printer      PrinterSettings      `json:"printerSettings"`
	Notification NotificationSettings `json:"notificationSettings"`
	Backup       BackupSettings       `json:"backupSettings"`
	StoreInfo    StoreInfo            `json:"storeInfo"`
}

// DefaultSettings mirrors the out-of-the-box configuration of a new store:
// 15% exclusive VAT, loyalty earning one point per currency unit.
func DefaultSettings() Settings {
	return Settings{
		Tax: TaxSettings{
			Enabled: true,
			Rate:    decimal.NewFromInt(15),
		},
		Loyalty: LoyaltySettings{
			Enabled:       true,
			PointsPerUnit: decimal.NewFromInt(1),
			PointValue:    decimal.RequireFromString("0.05"),
			ShowOnReceipt: true,
		},
		Printer: PrinterSettings{
			Type:   "80mm",
			Copies: 1,
		},
		Notification: NotificationSettings{LowStock: true},
		Backup:       BackupSettings{Frequency: "daily"},
		StoreInfo: StoreInfo{
			Name:     "Souq POS",
			Currency: "SAR",
			Language: "en",
		},
	}
}
