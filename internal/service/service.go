package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"souqpos/backend/internal/domain"
	"souqpos/backend/internal/store"
)

// ErrForbidden is returned when the acting user's role may not run an operation.
var ErrForbidden = errors.New("forbidden")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo store.Repository
}

func New(repo store.Repository) *Service {
	return &Service{repo: repo}
}

func requireRole(ctx context.Context, roles ...string) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || !slices.Contains(roles, actor.Role) {
		return domain.Actor{}, fmt.Errorf("%w: requires role %s", ErrForbidden, strings.Join(roles, " or "))
	}
	return actor, nil
}

func employeeFromContext(ctx context.Context) string {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Username == "" {
		return "system"
	}
	return actor.Username
}

// logAudit writes through w so entries written inside a unit of work share
// its fate. A failed write is logged and never fails the caller.
func (s *Service) logAudit(ctx context.Context, w store.Tx, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := w.AppendAuditLog(ctx, domain.AuditLog{
		Date:       time.Now().UTC(),
		Actor:      actor.Username,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

// stockLedger applies stock movements to products read once per unit of
// work, writing one InventoryLog row per movement. flush persists every
// touched product with its status recomputed.
type stockLedger struct {
	tx       store.Tx
	at       time.Time
	products map[string]*domain.Product
	order    []string
}

func newStockLedger(tx store.Tx, at time.Time) *stockLedger {
	return &stockLedger{tx: tx, at: at, products: make(map[string]*domain.Product)}
}

func (l *stockLedger) product(ctx context.Context, id string) (*domain.Product, error) {
	if p, ok := l.products[id]; ok {
		return p, nil
	}
	p, err := l.tx.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	l.products[id] = p
	l.order = append(l.order, id)
	return p, nil
}

// lock reads the given products in sorted id order so concurrent units of
// work take row locks in the same sequence. Unknown ids are left for the
// caller's own lookup to report.
func (l *stockLedger) lock(ctx context.Context, ids ...string) error {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	for _, id := range slices.Compact(sorted) {
		if _, err := l.product(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	return nil
}

func (l *stockLedger) move(ctx context.Context, productID string, delta int, movement string, reference string) (domain.InventoryLog, error) {
	p, err := l.product(ctx, productID)
	if err != nil {
		return domain.InventoryLog{}, err
	}
	previous := p.Stock
	if previous+delta < 0 {
		return domain.InventoryLog{}, &store.InsufficientStockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Requested:   -delta,
			Available:   previous,
		}
	}
	p.ApplyStock(previous + delta)

	entry, err := l.tx.AppendInventoryLog(ctx, domain.InventoryLog{
		Date:          l.at,
		ProductID:     p.ID,
		ProductName:   p.Name,
		Type:          movement,
		Quantity:      delta,
		PreviousStock: previous,
		NewStock:      p.Stock,
		Reference:     reference,
	})
	if err != nil {
		return domain.InventoryLog{}, err
	}
	return *entry, nil
}

func (l *stockLedger) flush(ctx context.Context) error {
	for _, id := range l.order {
		if _, err := l.tx.UpdateProduct(ctx, *l.products[id]); err != nil {
			return err
		}
	}
	return nil
}

func isSupportedPaymentMethod(method string) bool {
	switch method {
	case domain.PaymentCash, domain.PaymentCard, domain.PaymentTransfer, domain.PaymentCredit:
		return true
	default:
		return false
	}
}

// treasuryFor maps a payment method to the bucket its money lands in. Credit
// sales are booked against the main till like the rest of the POS flow.
func treasuryFor(method string) string {
	switch method {
	case domain.PaymentCard, domain.PaymentTransfer:
		return domain.TreasuryBank
	default:
		return domain.TreasuryMain
	}
}

func invoiceRef(id int64) string {
	return strconv.FormatInt(id, 10)
}

func clampPercent(v decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	switch {
	case v.IsNegative():
		return decimal.Zero
	case v.GreaterThan(hundred):
		return hundred
	default:
		return v
	}
}

func nonNegative(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}

func clampPoints(points int) int {
	if points < 0 {
		return 0
	}
	return points
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", store.ErrValidation, fmt.Sprintf(format, args...))
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
