package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"souqpos/backend/internal/domain"
	"souqpos/backend/internal/store"
)

func (s *Service) GetSettings(ctx context.Context) (domain.Settings, error) {
	return s.repo.GetSettings(ctx)
}

func validateSettings(settings domain.Settings) (domain.Settings, error) {
	hundred := decimal.NewFromInt(100)
	if settings.Tax.Rate.IsNegative() || settings.Tax.Rate.GreaterThan(hundred) {
		return domain.Settings{}, validationError("tax rate must be between 0 and 100")
	}
	if settings.Loyalty.PointsPerUnit.IsNegative() || settings.Loyalty.PointValue.IsNegative() {
		return domain.Settings{}, validationError("loyalty values must not be negative")
	}
	if settings.Printer.Copies < 1 {
		settings.Printer.Copies = 1
	}
	settings.StoreInfo.Name = strings.TrimSpace(settings.StoreInfo.Name)
	settings.StoreInfo.Currency = strings.ToUpper(strings.TrimSpace(settings.StoreInfo.Currency))
	if settings.StoreInfo.Currency == "" {
		settings.StoreInfo.Currency = domain.DefaultSettings().StoreInfo.Currency
	}
	return settings, nil
}

// UpdateSettings replaces the store configuration. Invoices keep the tax and
// loyalty settings they were sold under.
func (s *Service) UpdateSettings(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return domain.Settings{}, err
	}
	settings, err := validateSettings(settings)
	if err != nil {
		return domain.Settings{}, err
	}

	err = s.repo.InTx(ctx, func(tx store.Tx) error {
		if err := tx.SaveSettings(ctx, settings); err != nil {
			return err
		}
		s.logAudit(ctx, tx, "settings_update", "settings", "store",
			fmt.Sprintf("tax_enabled=%t,tax_rate=%s,inclusive=%t,loyalty=%t", settings.Tax.Enabled, settings.Tax.Rate, settings.Tax.IncludedInPrice, settings.Loyalty.Enabled))
		return nil
	})
	if err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}
