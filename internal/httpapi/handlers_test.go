package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mejaresto/internal/catalog"
	"mejaresto/internal/domain"
	"mejaresto/internal/service"
	"mejaresto/internal/store/memory"
)

type apiFixture struct {
	handler      http.Handler
	adminToken   string
	cashierToken string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	repo := memory.New()
	ctx := context.Background()
	seed := []domain.UserAccount{
		{Username: "admin", Password: "admin-pass-1", Role: "admin", TenantID: "t1", Active: true, CreatedAt: time.Now().UTC()},
		{Username: "kasir", Password: "kasir-pass-1", Role: "cashier", TenantID: "t1", Active: true, CreatedAt: time.Now().UTC()},
	}
	for _, user := range seed {
		if err := repo.CreateUser(ctx, user); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}

	resolver := catalog.NewResolver(repo, nil, 0)
	svc := service.New(repo, resolver, nil)
	auth := NewAuthManager(testSecret, time.Hour, "t1", repo)
	api := New(svc, auth, "http://127.0.0.1:3000")

	adminLogin, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "admin-pass-1"})
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	cashierLogin, err := auth.Login(domain.LoginRequest{Username: "kasir", Password: "kasir-pass-1"})
	if err != nil {
		t.Fatalf("cashier login: %v", err)
	}

	return &apiFixture{
		handler:      api.Handler(),
		adminToken:   adminLogin.AccessToken,
		cashierToken: cashierLogin.AccessToken,
	}
}

func (f *apiFixture) do(t *testing.T, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestMissingTokenUnauthorized(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/branches", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCashierCannotReadAuditLogs(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/audit-logs", f.cashierToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	f := newAPIFixture(t)

	for i := 0; i < 5; i++ {
		rec := f.do(t, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "admin", Password: "wrong"})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d, want 401", i, rec.Code)
		}
	}
	rec := f.do(t, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "admin", Password: "wrong"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429 after burst", rec.Code)
	}
}

func (f *apiFixture) setupCatalog(t *testing.T) (domain.Branch, domain.MenuItem) {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/v1/branches", f.adminToken, domain.BranchCreateRequest{
		Name: "Main", CurrencyCode: "USD", TaxPercent: 10, ServiceChargePercent: 5,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create branch status = %d: %s", rec.Code, rec.Body.String())
	}
	branch := decodeBody[domain.Branch](t, rec)

	rec = f.do(t, http.MethodPost, "/api/v1/menu-items", f.adminToken, domain.MenuItemCreateRequest{
		Name: "Burger", Category: "Food", BasePrice: 10,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create item status = %d: %s", rec.Code, rec.Body.String())
	}
	item := decodeBody[domain.MenuItem](t, rec)
	return branch, item
}

func TestOrderFlowOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	branch, item := f.setupCatalog(t)

	rec := f.do(t, http.MethodPost, "/api/v1/orders", f.cashierToken, domain.OrderCreateRequest{
		BranchID: branch.ID, OrderType: domain.OrderTypeDineIn, TableRef: "T-1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order status = %d: %s", rec.Code, rec.Body.String())
	}
	order := decodeBody[domain.Order](t, rec)

	rec = f.do(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/lines", f.cashierToken, domain.AddLineRequest{
		MenuItemID: item.ID, Quantity: 2,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add line status = %d: %s", rec.Code, rec.Body.String())
	}
	order = decodeBody[domain.Order](t, rec)

	// 20 gross, 5% service 1.00, 10% tax on 21.00, grand 23.10.
	if order.GrandTotal != 23.1 {
		t.Fatalf("grand total = %v, want 23.1", order.GrandTotal)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/pay", f.cashierToken, domain.PayRequest{
		Tenders: []domain.TenderRequest{{Method: "cash", Amount: 25}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("pay status = %d: %s", rec.Code, rec.Body.String())
	}
	paid := decodeBody[domain.PayResponse](t, rec)
	if paid.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("payment status = %s, want paid", paid.PaymentStatus)
	}
	if paid.Change != 1.9 {
		t.Fatalf("change = %v, want 1.9", paid.Change)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/orders/"+order.ID, f.cashierToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get order status = %d", rec.Code)
	}
	final := decodeBody[domain.Order](t, rec)
	if final.OrderStatus != domain.OrderStatusPaid {
		t.Fatalf("order status = %s, want paid", final.OrderStatus)
	}
}

func TestUnknownOrderIs404(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/orders/order-nope", f.cashierToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestInvalidOrderTypeIs400(t *testing.T) {
	f := newAPIFixture(t)
	branch, _ := f.setupCatalog(t)

	rec := f.do(t, http.MethodPost, "/api/v1/orders", f.cashierToken, domain.OrderCreateRequest{
		BranchID: branch.ID, OrderType: "barter",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestVoidPaidOrderIs409(t *testing.T) {
	f := newAPIFixture(t)
	branch, item := f.setupCatalog(t)

	rec := f.do(t, http.MethodPost, "/api/v1/orders", f.cashierToken, domain.OrderCreateRequest{
		BranchID: branch.ID, OrderType: domain.OrderTypeTakeaway,
	})
	order := decodeBody[domain.Order](t, rec)
	f.do(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/lines", f.cashierToken, domain.AddLineRequest{
		MenuItemID: item.ID, Quantity: 1,
	})
	rec = f.do(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/pay", f.cashierToken, domain.PayRequest{
		Tenders: []domain.TenderRequest{{Method: "cash", Amount: 100}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("pay status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/void", f.cashierToken, domain.VoidOrderRequest{Reason: "mistake"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestUnknownJSONFieldRejected(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/orders", f.cashierToken, map[string]any{
		"branch_id": "b1", "order_type": "dine_in", "bogus_field": true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown field", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodOptions, "/api/v1/orders", "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://127.0.0.1:3000" {
		t.Fatalf("allow-origin = %q", got)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing nosniff header")
	}
}

func TestStaffLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/users/staff", f.adminToken, domain.StaffCreateRequest{
		Username: "dewi", Password: "rahasia-1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create staff status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/v1/users/staff", f.adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list staff status = %d", rec.Code)
	}
	staff := decodeBody[[]domain.StaffUser](t, rec)
	found := false
	for _, user := range staff {
		if user.Username == "dewi" {
			found = true
		}
	}
	if !found {
		t.Fatalf("dewi missing from staff list: %+v", staff)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "dewi", Password: "rahasia-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("new staff login status = %d: %s", rec.Code, rec.Body.String())
	}
	login := decodeBody[domain.LoginResponse](t, rec)
	if login.Role != "cashier" {
		t.Fatalf("role = %s, want cashier", login.Role)
	}
}

func TestAuditLogCapturesAdminActions(t *testing.T) {
	f := newAPIFixture(t)
	f.setupCatalog(t)

	rec := f.do(t, http.MethodGet, "/api/v1/audit-logs?limit=10", f.adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("audit logs status = %d", rec.Code)
	}
	entries := decodeBody[[]domain.AuditLog](t, rec)
	if len(entries) < 2 {
		t.Fatalf("entries = %d, want at least branch + item creates", len(entries))
	}
	actions := make(map[string]bool, len(entries))
	for _, entry := range entries {
		actions[entry.Action] = true
	}
	for _, want := range []string{"branch_create", "menu_item_create"} {
		if !actions[want] {
			t.Fatalf("missing audit action %s in %s", want, fmt.Sprint(actions))
		}
	}
}
