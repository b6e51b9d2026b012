package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"souqpos/backend/internal/domain"
	"souqpos/backend/internal/store"
)

// ExportBackup serialises the whole store in the backup document layout.
func (s *Service) ExportBackup(ctx context.Context) ([]byte, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	snapshot, err := s.repo.Export(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}
	return payload, nil
}

// ImportBackup replaces every collection present in the document. Nothing is
// written unless the whole document decodes and validates.
func (s *Service) ImportBackup(ctx context.Context, payload []byte) (domain.SnapshotPatch, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return domain.SnapshotPatch{}, err
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil {
		return domain.SnapshotPatch{}, validationError("backup is not a JSON object: %v", err)
	}

	var patch domain.SnapshotPatch
	var err error
	if patch.Products, err = decodeKey[[]domain.Product](doc, "products"); err != nil {
		return domain.SnapshotPatch{}, err
	}
	if patch.Customers, err = decodeKey[[]domain.Customer](doc, "customers"); err != nil {
		return domain.SnapshotPatch{}, err
	}
	if patch.Suppliers, err = decodeKey[[]domain.Supplier](doc, "suppliers"); err != nil {
		return domain.SnapshotPatch{}, err
	}
	if patch.Transactions, err = decodeKey[[]domain.Transaction](doc, "transactions"); err != nil {
		return domain.SnapshotPatch{}, err
	}
	if patch.Invoices, err = decodeKey[[]domain.Invoice](doc, "invoices"); err != nil {
		return domain.SnapshotPatch{}, err
	}
	if patch.InventoryLogs, err = decodeKey[[]domain.InventoryLog](doc, "inventoryLogs"); err != nil {
		return domain.SnapshotPatch{}, err
	}
	if patch.Categories, err = decodeKey[[]string](doc, "categories"); err != nil {
		return domain.SnapshotPatch{}, err
	}
	if patch.Roles, err = decodeKey[[]domain.Role](doc, "roles"); err != nil {
		return domain.SnapshotPatch{}, err
	}
	if patch.Users, err = decodeKey[[]domain.SystemUser](doc, "users"); err != nil {
		return domain.SnapshotPatch{}, err
	}
	if patch.AuditLogs, err = decodeKey[[]domain.AuditLog](doc, "auditLogs"); err != nil {
		return domain.SnapshotPatch{}, err
	}
	if err := validatePatch(patch); err != nil {
		return domain.SnapshotPatch{}, err
	}

	err = s.repo.InTx(ctx, func(tx store.Tx) error {
		settings, present, err := mergeSettings(ctx, tx, doc)
		if err != nil {
			return err
		}
		if present {
			patch.Settings = &settings
		}
		if err := tx.Replace(ctx, patch); err != nil {
			return err
		}
		s.logAudit(ctx, tx, "backup_import", "backup", "store", "keys="+strings.Join(importedKeys(doc), ","))
		return nil
	})
	if err != nil {
		return domain.SnapshotPatch{}, err
	}
	return patch, nil
}

// decodeKey decodes one top-level key. A missing or null key yields nil; a
// type mismatch anywhere inside it fails the whole import.
func decodeKey[T any](doc map[string]json.RawMessage, key string) (*T, error) {
	raw, ok := doc[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, validationError("backup key %q: %v", key, err)
	}
	return &value, nil
}

var settingsKeys = []string{"taxSettings", "loyaltySettings", "printerSettings", "notificationSettings", "backupSettings", "storeInfo"}

func mergeSettings(ctx context.Context, tx store.Tx, doc map[string]json.RawMessage) (domain.Settings, bool, error) {
	settings, err := tx.GetSettings(ctx)
	if err != nil {
		return domain.Settings{}, false, err
	}
	present := false
	targets := map[string]any{
		"taxSettings":          &settings.Tax,
		"loyaltySettings":      &settings.Loyalty,
		"printerSettings":      &settings.Printer,
		"notificationSettings": &settings.Notification,
		"backupSettings":       &settings.Backup,
		"storeInfo":            &settings.StoreInfo,
	}
	for _, key := range settingsKeys {
		raw, ok := doc[key]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		if err := json.Unmarshal(raw, targets[key]); err != nil {
			return domain.Settings{}, false, validationError("backup key %q: %v", key, err)
		}
		present = true
	}
	if !present {
		return settings, false, nil
	}
	settings, err = validateSettings(settings)
	if err != nil {
		return domain.Settings{}, false, err
	}
	return settings, true, nil
}

func importedKeys(doc map[string]json.RawMessage) []string {
	known := append([]string{"products", "customers", "suppliers", "transactions", "invoices", "inventoryLogs", "categories", "roles", "users", "auditLogs"}, settingsKeys...)
	keys := make([]string, 0, len(doc))
	for key := range doc {
		if slices.Contains(known, key) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys
}

func validatePatch(patch domain.SnapshotPatch) error {
	if patch.Products != nil {
		seen := make(map[string]bool, len(*patch.Products))
		for i, p := range *patch.Products {
			if err := uniqueID("products", i, p.ID, seen); err != nil {
				return err
			}
			if strings.TrimSpace(p.Name) == "" {
				return validationError("products[%d]: name is required", i)
			}
			if p.Stock < 0 || p.ReorderLevel < 0 || p.BuyPrice.IsNegative() || p.SellPrice.IsNegative() {
				return validationError("products[%d]: negative stock or price", i)
			}
			for _, sub := range p.SubUnits {
				if sub.Factor < 1 {
					return validationError("products[%d]: sub-unit %q has factor %d", i, sub.Name, sub.Factor)
				}
			}
		}
	}
	if patch.Customers != nil {
		seen := make(map[string]bool, len(*patch.Customers))
		for i, c := range *patch.Customers {
			if err := uniqueID("customers", i, c.ID, seen); err != nil {
				return err
			}
			if strings.TrimSpace(c.Name) == "" || c.LoyaltyPoints < 0 {
				return validationError("customers[%d]: missing name or negative points", i)
			}
		}
	}
	if patch.Suppliers != nil {
		seen := make(map[string]bool, len(*patch.Suppliers))
		for i, sup := range *patch.Suppliers {
			if err := uniqueID("suppliers", i, sup.ID, seen); err != nil {
				return err
			}
			if strings.TrimSpace(sup.Name) == "" {
				return validationError("suppliers[%d]: name is required", i)
			}
		}
	}
	if patch.Transactions != nil {
		seen := make(map[string]bool, len(*patch.Transactions))
		for i, t := range *patch.Transactions {
			if err := distinctID("transactions", i, t.ID, seen); err != nil {
				return err
			}
			if t.Amount.IsNegative() {
				return validationError("transactions[%d]: negative amount", i)
			}
		}
	}
	if patch.InventoryLogs != nil {
		seen := make(map[string]bool, len(*patch.InventoryLogs))
		for i, entry := range *patch.InventoryLogs {
			if err := distinctID("inventoryLogs", i, entry.ID, seen); err != nil {
				return err
			}
		}
	}
	if patch.AuditLogs != nil {
		seen := make(map[string]bool, len(*patch.AuditLogs))
		for i, entry := range *patch.AuditLogs {
			if err := distinctID("auditLogs", i, entry.ID, seen); err != nil {
				return err
			}
		}
	}
	if patch.Roles != nil {
		ids := make(map[string]bool, len(*patch.Roles))
		names := make(map[string]bool, len(*patch.Roles))
		for i, role := range *patch.Roles {
			if err := distinctID("roles", i, role.ID, ids); err != nil {
				return err
			}
			name := strings.ToLower(strings.TrimSpace(role.Name))
			if name == "" || names[name] {
				return validationError("roles[%d]: empty or duplicate name", i)
			}
			names[name] = true
		}
	}
	if patch.Invoices != nil {
		seen := make(map[int64]bool, len(*patch.Invoices))
		for i, inv := range *patch.Invoices {
			if inv.ID < 1 || seen[inv.ID] {
				return validationError("invoices[%d]: invalid or duplicate id %d", i, inv.ID)
			}
			seen[inv.ID] = true
			if inv.Total.IsNegative() {
				return validationError("invoices[%d]: negative total", i)
			}
		}
	}
	if patch.Categories != nil {
		seen := make(map[string]bool, len(*patch.Categories))
		for i, name := range *patch.Categories {
			if strings.TrimSpace(name) == "" || seen[name] {
				return validationError("categories[%d]: empty or duplicate name", i)
			}
			seen[name] = true
		}
	}
	if patch.Users != nil {
		seen := make(map[string]bool, len(*patch.Users))
		for i, u := range *patch.Users {
			name := strings.ToLower(strings.TrimSpace(u.Username))
			if name == "" || seen[name] {
				return validationError("users[%d]: empty or duplicate username", i)
			}
			seen[name] = true
		}
	}
	return nil
}

func uniqueID(collection string, index int, id string, seen map[string]bool) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return validationError("%s[%d]: id is required", collection, index)
	}
	if seen[id] {
		return validationError("%s[%d]: duplicate id %s", collection, index, id)
	}
	seen[id] = true
	return nil
}

// distinctID is uniqueID for collections whose entries may omit the id and
// get one assigned on import.
func distinctID(collection string, index int, id string, seen map[string]bool) error {
	if strings.TrimSpace(id) == "" {
		return nil
	}
	return uniqueID(collection, index, id, seen)
}
