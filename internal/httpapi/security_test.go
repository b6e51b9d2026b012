package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"souqpos/backend/internal/domain"
	"souqpos/backend/internal/service"
	"souqpos/backend/internal/store"
)

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if got := res.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options nosniff, got %q", got)
	}
	if got := res.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected X-Frame-Options DENY, got %q", got)
	}
	if got := res.Header().Get("Referrer-Policy"); got == "" {
		t.Fatalf("expected Referrer-Policy to be set")
	}
	if got := res.Header().Get("X-Request-ID"); !strings.HasPrefix(got, "req-") {
		t.Fatalf("expected generated request id, got %q", got)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "till-7-000123")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if got := res.Header().Get("X-Request-ID"); got != "till-7-000123" {
		t.Fatalf("expected caller request id, got %q", got)
	}
}

func TestLoginRateLimitReturns429(t *testing.T) {
	api := newTestAPI(t)
	body, _ := json.Marshal(domain.LoginRequest{Username: "admin", Password: "wrong-pass"})

	for i := range 6 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		res := httptest.NewRecorder()

		api.Handler().ServeHTTP(res, req)

		if i < 5 && res.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d expected 401 before limit, got %d", i+1, res.Code)
		}
		if i == 5 && res.Code != http.StatusTooManyRequests {
			t.Fatalf("attempt 6 expected 429, got %d", res.Code)
		}
	}
}

func failedLogin(api *API, remoteAddr string, forwardedFor string) int {
	body, _ := json.Marshal(domain.LoginRequest{Username: "admin", Password: "wrong-pass"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	req.RemoteAddr = remoteAddr
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	return res.Code
}

func TestLoginRateLimitIgnoresForwardedForByDefault(t *testing.T) {
	api := newTestAPI(t)

	limited := false
	for i := range 20 {
		code := failedLogin(api, "127.0.0.1:5000", fmt.Sprintf("10.0.0.%d", i+1))
		if code == http.StatusTooManyRequests {
			if i != 5 {
				t.Fatalf("expected first 429 on attempt 6, got it on attempt %d", i+1)
			}
			limited = true
			break
		}
	}
	if !limited {
		t.Fatal("rotating X-Forwarded-For bypassed the login limiter")
	}
}

func TestLoginRateLimitUsesForwardedForBehindTrustedProxy(t *testing.T) {
	api := newTestAPI(t)
	api.TrustProxyHeaders(true)

	for i := range 5 {
		if code := failedLogin(api, "127.0.0.1:5000", "10.0.0.1"); code != http.StatusUnauthorized {
			t.Fatalf("attempt %d expected 401, got %d", i+1, code)
		}
	}
	if code := failedLogin(api, "127.0.0.1:5000", "10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for the limited client, got %d", code)
	}
	if code := failedLogin(api, "127.0.0.1:5000", "10.0.0.2"); code != http.StatusUnauthorized {
		t.Fatalf("expected another client behind the proxy to get its own bucket, got %d", code)
	}
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	api := newTestAPI(t)
	veryLong := strings.Repeat("a", maxBodyBytes+1024)
	body := fmt.Sprintf(`{"username":"%s","password":"x"}`, veryLong)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too large body, got %d", res.Code)
	}
}

func TestUnknownFieldsRejected(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin123")

	body := map[string]any{"paymentMethod": "cash", "cart": []any{}, "total": "1.00"}
	if rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, body); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for client-supplied total, got %d", rec.Code)
	}
}

func TestAdminOnlyRoutesRejectCashier(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "cashier", "cashier123")

	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/users"},
		{http.MethodPut, "/api/v1/settings"},
		{http.MethodPost, "/api/v1/backup/import"},
		{http.MethodGet, "/api/v1/reports/dashboard"},
		{http.MethodPost, "/api/v1/inventory/adjustments"},
	} {
		if rec := doJSON(t, handler, route.method, route.path, token, map[string]any{}); rec.Code != http.StatusForbidden {
			t.Fatalf("%s %s: expected 403, got %d", route.method, route.path, rec.Code)
		}
	}
}

func TestStatusForMapsErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: empty cart", store.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: invoice 9", store.ErrNotFound), http.StatusNotFound},
		{&store.InsufficientStockError{ProductID: "1"}, http.StatusConflict},
		{fmt.Errorf("%w: already returned", store.ErrInvalidState), http.StatusConflict},
		{fmt.Errorf("%w: requires role admin", service.ErrForbidden), http.StatusForbidden},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrInactiveAccount, http.StatusUnauthorized},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	res := httptest.NewRecorder()
	writeServiceError(res, errors.New(`pq: relation "invoices" does not exist`))

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), "relation") {
		t.Fatalf("expected generic message, got %s", res.Body.String())
	}
}

func TestParsePositiveLimitCaps(t *testing.T) {
	if got := parsePositiveLimit("9999", 50, 200); got != 200 {
		t.Fatalf("expected capped limit 200, got %d", got)
	}
	if got := parsePositiveLimit("", 50, 200); got != 50 {
		t.Fatalf("expected fallback limit 50, got %d", got)
	}
	if got := parsePositiveLimit("invalid", 50, 200); got != 50 {
		t.Fatalf("expected fallback on invalid input, got %d", got)
	}
}

func TestParseTimeCoversWholeDay(t *testing.T) {
	to, err := parseTime("2026-03-01", true)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := to.Format("2006-01-02"); got != "2026-03-02" {
		t.Fatalf("expected exclusive end 2026-03-02, got %s", got)
	}
	if _, err := parseTime("yesterday", false); err == nil {
		t.Fatalf("expected error for unparseable date")
	}
}
