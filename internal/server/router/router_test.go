package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mamadbah2/stockboard/internal/config"
	"github.com/mamadbah2/stockboard/internal/domain/models"
	"github.com/mamadbah2/stockboard/internal/poller"
	"github.com/mamadbah2/stockboard/internal/repository/memory"
	"github.com/mamadbah2/stockboard/internal/repository/table"
	"github.com/mamadbah2/stockboard/internal/server/handlers"
	"github.com/mamadbah2/stockboard/internal/service/dashboard"
	"github.com/mamadbah2/stockboard/internal/service/session"
)

var testNow = time.Date(2024, 6, 12, 15, 0, 0, 0, time.Local)

type staticTable map[string][]table.Row

func (s staticTable) Query(_ context.Context, name string, _ table.Options) ([]table.Row, error) {
	return s[name], nil
}

type nopScheduler struct{}

func (nopScheduler) Every(time.Duration, func()) (poller.Handle, error) { return nopHandle{}, nil }

type nopHandle struct{}

func (nopHandle) Cancel() {}

type recordingSheet struct{ items []models.InventoryRecord }

func (r *recordingSheet) Export(_ context.Context, items []models.InventoryRecord) (int, error) {
	r.items = items
	return len(items), nil
}

type fixture struct {
	engine *gin.Engine
	sheet  *recordingSheet
	token  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	rows := staticTable{
		table.Inventory: {
			{"id": "1", "item_name": "Bread", "sku": "S1", "status": "low", "category": "Bakery", "available_stock": 5},
			{"id": "2", "item_name": "Milk", "sku": "S2", "status": "healthy", "category": "Dairy", "available_stock": 40},
		},
		table.Dispatches: {
			{"id": "d1", "item_name": "Bread", "sku": "S1", "quantity": 4, "created_at": testNow.Add(-10 * time.Second).Format(time.RFC3339)},
			{"id": "d2", "item_name": "Milk", "sku": "S2", "quantity": 6, "created_at": testNow.AddDate(0, 0, -8).Format(time.RFC3339)},
		},
		table.Predictions: {
			{"predictions": []any{map[string]any{"sku": "S1", "item": "Bread", "confidence": 80.0}}, "monthly_trends_url": "https://x/m.png"},
		},
	}

	now := func() time.Time { return testNow }
	svc := dashboard.NewService(rows, nopScheduler{}, poller.Options{Interval: time.Minute, Now: now}, nil)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(svc.Stop)
	for _, d := range []string{dashboard.DomainInventory, dashboard.DomainDispatches, dashboard.DomainPredictions} {
		if err := svc.Refresh(context.Background(), d); err != nil {
			t.Fatalf("Refresh(%s): %v", d, err)
		}
	}

	user := models.User{ID: "1", Username: "manager@walmart.com", Name: "Regional Manager", Role: "Regional Manager", Region: "South Central"}
	verifier, err := session.NewStaticVerifier("manager@walmart.com", "walmart123", user)
	if err != nil {
		t.Fatalf("NewStaticVerifier: %v", err)
	}
	store := session.NewStore(memory.NewKVStore(), verifier, session.NewJWTIssuer("secret", time.Hour, nil), session.Options{}, nil)
	if err := store.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	sheet := &recordingSheet{}
	h := Handlers{
		Session:   handlers.NewSessionHandler(store, nil),
		Dashboard: handlers.NewDashboardHandler(svc, config.DefaultRegions(), sheet, now, nil),
	}
	return &fixture{engine: New(h, nil), sheet: sheet}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return f.doAs(t, f.token, method, path, body)
}

func (f *fixture) doAs(t *testing.T, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/session/login", models.Credentials{Username: "manager@walmart.com", Password: "walmart123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Token == "" {
		t.Fatalf("login returned no token: %s", rec.Body.String())
	}
	f.token = body.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(t, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestDataRoutesRequireSession(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/api/inventory", "/api/dispatches", "/api/predictions", "/api/regions", "/api/dashboard"} {
		if rec := f.do(t, http.MethodGet, path, nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestLoginFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/session/login", models.Credentials{Username: "manager@walmart.com", Password: "nope"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on mismatch, got %d", rec.Code)
	}
	st := decode[session.State](t, rec)
	if st.Authenticated || st.Error != session.MsgInvalidCredentials {
		t.Fatalf("unexpected state %+v", st)
	}

	rec = f.do(t, http.MethodPost, "/api/session/clear-error", nil)
	if st := decode[session.State](t, rec); st.Error != "" || st.Authenticated {
		t.Fatalf("unexpected state after clear %+v", st)
	}

	if rec := f.do(t, http.MethodPost, "/api/session/login", map[string]string{"username": "x"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on missing password, got %d", rec.Code)
	}

	f.login(t)
	rec = f.do(t, http.MethodGet, "/api/session", nil)
	if st := decode[session.State](t, rec); !st.Authenticated || st.User == nil || st.User.Region != "South Central" {
		t.Fatalf("unexpected session %+v", st)
	}

	f.do(t, http.MethodPost, "/api/session/logout", nil)
	if rec := f.do(t, http.MethodGet, "/api/inventory", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rec.Code)
	}
}

func TestSessionIsPerClient(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	if rec := f.doAs(t, "", http.MethodGet, "/api/inventory", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("client without token: expected 401, got %d", rec.Code)
	}
	if rec := f.doAs(t, "forged", http.MethodGet, "/api/inventory", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("client with forged token: expected 401, got %d", rec.Code)
	}
	rec := f.doAs(t, "", http.MethodGet, "/api/session", nil)
	if st := decode[session.State](t, rec); st.Authenticated {
		t.Fatalf("client without token sees someone else's session %+v", st)
	}

	f.doAs(t, "", http.MethodPost, "/api/session/logout", nil)
	if rec := f.do(t, http.MethodGet, "/api/inventory", nil); rec.Code != http.StatusOK {
		t.Fatalf("anonymous logout signed out another client: %d", rec.Code)
	}
}

func TestLoginSetsSessionCookie(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/session/login", models.Credentials{Username: "manager@walmart.com", Password: "walmart123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d", rec.Code)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.TokenKey {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" || !cookie.HttpOnly {
		t.Fatalf("expected HttpOnly session cookie, got %+v", cookie)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/inventory", nil)
	req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	out := httptest.NewRecorder()
	f.engine.ServeHTTP(out, req)
	if out.Code != http.StatusOK {
		t.Fatalf("cookie session: expected 200, got %d", out.Code)
	}
}

func TestInventoryFilters(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	type inventoryResp struct {
		Items []models.InventoryRecord `json:"items"`
		Count int                      `json:"count"`
		Total int                      `json:"total"`
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"Bread", "Milk"}},
		{"?q=bread", []string{"Bread"}},
		{"?category=Dairy", []string{"Milk"}},
		{"?status=critical", nil},
		{"?category=all&status=all", []string{"Bread", "Milk"}},
	}
	for _, tt := range tests {
		rec := f.do(t, http.MethodGet, "/api/inventory"+tt.query, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", tt.query, rec.Code)
		}
		resp := decode[inventoryResp](t, rec)
		var names []string
		for _, it := range resp.Items {
			names = append(names, it.ItemName)
		}
		if strings.Join(names, ",") != strings.Join(tt.want, ",") || resp.Total != 2 || resp.Count != len(tt.want) {
			t.Errorf("%q: got %v (count %d, total %d)", tt.query, names, resp.Count, resp.Total)
		}
	}

	rec := f.do(t, http.MethodGet, "/api/inventory/categories", nil)
	cats := decode[map[string][]string](t, rec)["categories"]
	if strings.Join(cats, ",") != "all,Bakery,Dairy" {
		t.Fatalf("unexpected categories %v", cats)
	}
}

func TestDispatchWindows(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	type dispatchResp struct {
		Items      []models.DispatchRecord `json:"items"`
		TotalUnits int                     `json:"total_units"`
	}

	for query, want := range map[string]int{"": 1, "?window=today": 1, "?window=week": 1, "?window=all": 2} {
		rec := f.do(t, http.MethodGet, "/api/dispatches"+query, nil)
		resp := decode[dispatchResp](t, rec)
		if len(resp.Items) != want {
			t.Errorf("%q: expected %d movements, got %d", query, want, len(resp.Items))
		}
	}

	if rec := f.do(t, http.MethodGet, "/api/dispatches?window=month", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown window, got %d", rec.Code)
	}
}

func TestDashboardTitleFollowsRegion(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	rec := f.do(t, http.MethodGet, "/api/dashboard", nil)
	if title := decode[map[string]any](t, rec)["title"]; title != "South Central Region Dashboard" {
		t.Fatalf("expected home region title, got %v", title)
	}

	rec = f.do(t, http.MethodGet, "/api/dashboard?region=W", nil)
	if title := decode[map[string]any](t, rec)["title"]; title != "West Region Dashboard" {
		t.Fatalf("unexpected title %v", title)
	}

	if rec := f.do(t, http.MethodGet, "/api/dashboard?region=XX", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown region, got %d", rec.Code)
	}
}

func TestPredictionsCarryBands(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	rec := f.do(t, http.MethodGet, "/api/predictions", nil)
	resp := decode[struct {
		Data struct {
			Predictions []struct {
				SKU  string `json:"sku"`
				Band string `json:"band"`
			} `json:"predictions"`
			MonthlyTrendsURL string `json:"monthly_trends_url"`
		} `json:"data"`
	}](t, rec)

	if len(resp.Data.Predictions) != 1 || resp.Data.Predictions[0].Band != "good" {
		t.Fatalf("unexpected predictions %+v", resp.Data.Predictions)
	}
	if resp.Data.MonthlyTrendsURL != "https://x/m.png" {
		t.Fatalf("unexpected url %q", resp.Data.MonthlyTrendsURL)
	}
}

func TestExports(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	rec := f.do(t, http.MethodGet, "/api/inventory/export.csv?category=Bakery", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Header().Get("Content-Disposition"), "inventory-report.csv") {
		t.Fatalf("unexpected csv response %d %v", rec.Code, rec.Header())
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 || lines[1] != "Bread,S1,0,0,5,low,Bakery" {
		t.Fatalf("unexpected csv %q", rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/inventory/export.pdf", nil)
	if rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Fatalf("unexpected pdf response %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/inventory/export/sheets?q=milk", nil)
	if rec.Code != http.StatusOK || len(f.sheet.items) != 1 || f.sheet.items[0].SKU != "S2" {
		t.Fatalf("unexpected sheet export %d %+v", rec.Code, f.sheet.items)
	}
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	rec := f.do(t, http.MethodPost, "/api/refresh/inventory", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if meta := decode[dashboard.Meta](t, rec); meta.Name != "inventory" || meta.Loading || !meta.LastUpdated.Equal(testNow) {
		t.Fatalf("unexpected meta %+v", meta)
	}

	if rec := f.do(t, http.MethodPost, "/api/refresh/orders", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
