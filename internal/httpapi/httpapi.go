package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"souqpos/backend/internal/domain"
	"souqpos/backend/internal/report"
	"souqpos/backend/internal/service"
	"souqpos/backend/internal/store"
	"souqpos/backend/internal/xid"
)

const maxBodyBytes = 8 << 20

type API struct {
	service       *service.Service
	reports       *report.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	trustProxy    bool
}

func New(svc *service.Service, reports *report.Service, auth *AuthManager, allowedOrigin string) *API {
	return &API{
		service:       svc,
		reports:       reports,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
	}
}

// TrustProxyHeaders makes the API take the client address from
// X-Forwarded-For / X-Real-IP. Only enable it behind a proxy that overwrites
// those headers; otherwise callers pick their own rate-limit bucket.
func (a *API) TrustProxyHeaders(enabled bool) {
	a.trustProxy = enabled
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	if a.trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(requestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: log.New(log.Writer(), "[http] ", log.LstdFlags), NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(a.securityHeaders)

	r.Get("/healthz", a.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", a.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)
			r.Use(a.invalidateReports)

			r.Get("/products", a.handleListProducts)
			r.Get("/products/{id}", a.handleGetProduct)
			r.Post("/products", a.handleCreateProduct)
			r.Put("/products/{id}", a.handleUpdateProduct)
			r.Delete("/products/{id}", a.handleDeleteProduct)

			r.Get("/categories", a.handleListCategories)
			r.Post("/categories", a.handleCreateCategory)
			r.Delete("/categories/{name}", a.handleDeleteCategory)

			r.Get("/customers", a.handleListCustomers)
			r.Get("/customers/{id}", a.handleGetCustomer)
			r.Post("/customers", a.handleCreateCustomer)
			r.Put("/customers/{id}", a.handleUpdateCustomer)
			r.Delete("/customers/{id}", a.handleDeleteCustomer)

			r.Get("/suppliers", a.handleListSuppliers)
			r.Post("/suppliers", a.handleCreateSupplier)
			r.Put("/suppliers/{id}", a.handleUpdateSupplier)
			r.Delete("/suppliers/{id}", a.handleDeleteSupplier)

			r.Post("/sales", a.handleCompleteSale)
			r.Get("/invoices", a.handleListInvoices)
			r.Get("/invoices/{id}", a.handleGetInvoice)
			r.Get("/invoices/{id}/receipt", a.handleInvoiceReceipt)
			r.Post("/hardware/cash-drawer/open", a.handleCashDrawerOpen)

			r.Group(func(r chi.Router) {
				r.Use(requireRoles(domain.RoleAdmin, domain.RoleManager))
				r.Post("/invoices/{id}/return", a.handleProcessReturn)
				r.Post("/invoices/{id}/return-items", a.handleReturnItems)
				r.Patch("/invoices/{id}", a.handleEditInvoice)

				r.Get("/transactions", a.handleListTransactions)
				r.Post("/transactions", a.handleRecordTransaction)
				r.Get("/inventory/logs", a.handleInventoryLogs)
				r.Post("/inventory/adjustments", a.handleAdjustStock)
				r.Post("/purchases", a.handleReceivePurchase)
				r.Get("/audit-logs", a.handleAuditLogs)

				r.Get("/reports/dashboard", a.handleDashboard)
				r.Get("/reports/sales", a.handleSalesReport)
				r.Get("/reports/accounting", a.handleAccountingReport)
				r.Get("/reports/treasuries", a.handleTreasuryReport)
				r.Get("/reports/low-stock", a.handleLowStockReport)
				r.Get("/reports/top-customers", a.handleTopCustomersReport)
				r.Get("/reports/export.xlsx", a.handleReportXLSX)
			})

			r.Get("/settings", a.handleGetSettings)
			r.Get("/roles", a.handleListRoles)
			r.Put("/users/{username}/password", a.handleChangePassword)

			r.Group(func(r chi.Router) {
				r.Use(requireRoles(domain.RoleAdmin))
				r.Put("/settings", a.handleUpdateSettings)
				r.Post("/roles", a.handleSaveRole)
				r.Get("/users", a.handleListUsers)
				r.Post("/users", a.handleCreateUser)
				r.Patch("/users/{username}/active", a.handleSetUserActive)
				r.Get("/backup/export", a.handleExportBackup)
				r.Post("/backup/import", a.handleImportBackup)
			})
		})
	})

	return r
}

// requestID tags every request with an id echoed in the response headers.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" || len(id) > 128 {
			id = xid.New("req")
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (a *API) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key, X-Request-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
	})
}

func requireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := service.ActorFromContext(r.Context())
			if !ok || !isRoleAllowed(actor.Role, roles) {
				writeError(w, http.StatusForbidden, errors.New("forbidden role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

// invalidateReports drops cached dashboards after any successful write.
func (a *API) invalidateReports(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || a.reports == nil {
			next.ServeHTTP(w, r)
			return
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if status := ww.Status(); status >= 200 && status < 300 {
			a.reports.Invalidate(r.Context())
		}
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// statusFor maps service and store errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInsufficientStock), errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInactiveAccount):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	var stockErr *store.InsufficientStockError
	if errors.As(err, &stockErr) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     stockErr.Error(),
			"productId": stockErr.ProductID,
			"requested": stockErr.Requested,
			"available": stockErr.Available,
		})
		return
	}
	writeError(w, statusFor(err), err)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; the cause goes to the log.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
