package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kharcha/internal/assistant"
	"kharcha/internal/auth"
	"kharcha/internal/core"
	"kharcha/internal/export"
	"kharcha/internal/metrics"
	"kharcha/internal/notify"
	"kharcha/internal/refresh"
	"kharcha/internal/services"
	"kharcha/internal/storage"
)

type testEnv struct {
	srv       *Server
	repo      *storage.SQLiteRepository
	refresher *refresh.Refresher
	adminTok  string
	viewerTok string
	viewerID  string
}

func newTestEnv(t *testing.T, mutationsPerMinute int) testEnv {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "kharcha.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	tokens := auth.NewJWTManager("test-secret-0123456789", time.Hour)
	tokenFor := func(u core.UserProfile) (string, string) {
		created, err := repo.CreateUser(context.Background(), u)
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		tok, err := tokens.Generate(created.ID, created.Email)
		if err != nil {
			t.Fatalf("generate token: %v", err)
		}
		return tok, created.ID
	}
	adminTok, _ := tokenFor(core.UserProfile{Email: "admin@example.com", Role: core.RoleAdmin})
	viewerTok, viewerID := tokenFor(core.UserProfile{Email: "viewer@example.com", Role: core.RoleViewer})

	m := metrics.New()
	refresher := refresh.New(repo, refresh.WithObserver(m))
	srv := NewServer(":0", Deps{
		Ledger:             services.NewLedgerService(repo, m.Publisher(notify.NewHub())),
		Store:              repo,
		Refresher:          refresher,
		Tokens:             tokens,
		Exporter:           export.NewExporter(time.Minute),
		Assistant:          assistant.NewBuilder("PKR"),
		Metrics:            m,
		Currency:           "PKR",
		MutationsPerMinute: mutationsPerMinute,
	})
	// A Monday.
	srv.now = func() time.Time { return time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	return testEnv{
		srv:       srv,
		repo:      repo,
		refresher: refresher,
		adminTok:  adminTok,
		viewerTok: viewerTok,
		viewerID:  viewerID,
	}
}

func (e testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (e testEnv) refresh(t *testing.T) {
	t.Helper()
	if _, err := e.refresher.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, 0)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := env.do(t, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
	}

	rr := env.do(t, http.MethodGet, "/readyz", "", "")
	body := decode[map[string]any](t, rr)
	if body["status"] != "ready" {
		t.Errorf("status = %v, want ready", body["status"])
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, 0)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			env.srv.Handler.ServeHTTP(rr, req)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("status=%d, want 401", rr.Code)
			}
			if rr.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}

// dashboardProbe picks the dashboard fields the tests assert on.
type dashboardProbe struct {
	Snapshot struct {
		TotalAvailable float64 `json:"total_available"`
		TotalSpent     float64 `json:"total_spent"`
		Remaining      float64 `json:"remaining"`
		MarketTotal    float64 `json:"market_total"`
	} `json:"snapshot"`
	Budgets []struct {
		Spent    float64 `json:"spent"`
		Percent  float64 `json:"percent"`
		Severity string  `json:"severity"`
	} `json:"budgets"`
	PerPerson struct {
		FriendCount int `json:"friend_count"`
	} `json:"per_person"`
	TodayMenu struct {
		Day string `json:"day"`
	} `json:"today_menu"`
	MarketNotes []struct {
		ItemName string `json:"item_name"`
	} `json:"market_notes"`
	Stale      bool   `json:"stale"`
	Generation uint64 `json:"generation"`
}

func TestDashboardReflectsLedger(t *testing.T) {
	env := newTestEnv(t, 0)

	steps := []struct {
		path, body string
	}{
		{"/api/cash", `{"amount": 500}`},
		{"/api/friends", `{"name": "Ali", "amount": "100", "direction": "paid", "category": "week_amount", "status": "Settled"}`},
		{"/api/expenses", `{"title": "Rice bag", "amount": "120.50", "category": "Market"}`},
		{"/api/meals", `{"meal_type": "Dinner", "dish_name": "Daal", "cooked_by": "Ali", "cost": 90, "people_count": 3}`},
		{"/api/market", `{"item_name": "Onions", "cost": 40, "buyer": "Sara", "note": "bulk"}`},
		{"/api/budgets", `{"name": "rice", "amount": 200}`},
	}
	for _, s := range steps {
		rr := env.do(t, http.MethodPost, s.path, env.adminTok, s.body)
		if rr.Code != http.StatusCreated {
			t.Fatalf("POST %s status=%d body=%s", s.path, rr.Code, rr.Body.String())
		}
	}
	env.refresh(t)

	rr := env.do(t, http.MethodGet, "/api/dashboard", env.viewerTok, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("dashboard status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decode[dashboardProbe](t, rr)

	if got.Snapshot.TotalAvailable != 600 {
		t.Errorf("total_available = %v, want 600", got.Snapshot.TotalAvailable)
	}
	// Generic expense plus meal; the itemized market purchase is not deducted.
	if got.Snapshot.TotalSpent != 210.5 {
		t.Errorf("total_spent = %v, want 210.5", got.Snapshot.TotalSpent)
	}
	if got.Snapshot.Remaining != 389.5 {
		t.Errorf("remaining = %v, want 389.5", got.Snapshot.Remaining)
	}
	if got.Snapshot.MarketTotal != 160.5 {
		t.Errorf("market_total = %v, want 160.5", got.Snapshot.MarketTotal)
	}
	if len(got.Budgets) != 1 || got.Budgets[0].Spent != 120.5 || got.Budgets[0].Severity != "normal" {
		t.Errorf("budgets = %+v", got.Budgets)
	}
	if got.PerPerson.FriendCount != 1 {
		t.Errorf("friend_count = %d, want 1", got.PerPerson.FriendCount)
	}
	if got.TodayMenu.Day != "Monday" {
		t.Errorf("today_menu.day = %q, want Monday", got.TodayMenu.Day)
	}
	if len(got.MarketNotes) != 1 || got.MarketNotes[0].ItemName != "Onions" {
		t.Errorf("market_notes = %+v", got.MarketNotes)
	}
	if got.Stale || got.Generation == 0 {
		t.Errorf("stale=%v generation=%d", got.Stale, got.Generation)
	}

	rr = env.do(t, http.MethodGet, "/api/budgets/progress", env.viewerTok, "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"percent":60.25`) {
		t.Errorf("budget progress status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t, 0)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"malformed json", "/api/expenses", `{"title":`, http.StatusBadRequest},
		{"unknown field", "/api/cash", `{"amount": 5, "colour": "red"}`, http.StatusBadRequest},
		{"zero amount", "/api/cash", `{"amount": 0}`, http.StatusUnprocessableEntity},
		{"non numeric amount", "/api/cash", `{"amount": "abc"}`, http.StatusUnprocessableEntity},
		{"missing title", "/api/expenses", `{"amount": 5, "category": "Misc"}`, http.StatusUnprocessableEntity},
		{"bad category", "/api/expenses", `{"title": "x", "amount": 5, "category": "Food"}`, http.StatusUnprocessableEntity},
		{"zero people", "/api/meals", `{"meal_type": "Lunch", "cost": 10, "people_count": 0}`, http.StatusUnprocessableEntity},
		{"bad direction", "/api/friends", `{"name": "Ali", "amount": 5, "direction": "lent"}`, http.StatusUnprocessableEntity},
		{"bad date", "/api/cash", `{"amount": 5, "occurred_at": "yesterday"}`, http.StatusUnprocessableEntity},
		{"unknown collection", "/api/loans", `{"amount": 5}`, http.StatusNotFound},
		{"plain date accepted", "/api/cash", `{"amount": 5, "occurred_at": "2024-03-01"}`, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, tt.path, env.adminTok, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status=%d, want %d, body=%s", rr.Code, tt.want, rr.Body.String())
			}
			if tt.want >= 400 && !contains(rr.Body.String(), `"error"`) {
				t.Errorf("error body missing: %s", rr.Body.String())
			}
		})
	}
}

func TestEditRights(t *testing.T) {
	env := newTestEnv(t, 0)

	rr := env.do(t, http.MethodPost, "/api/cash", env.viewerTok, `{"amount": 10}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("viewer create status=%d, want 403", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/api/cash", env.viewerTok, ""); rr.Code != http.StatusOK {
		t.Fatalf("viewer list status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/api/users", env.viewerTok, ""); rr.Code != http.StatusForbidden {
		t.Fatalf("viewer list users status=%d, want 403", rr.Code)
	}

	rr = env.do(t, http.MethodPut, "/api/users/"+env.viewerID+"/edit-access", env.adminTok, `{"allow_edit": true}`)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("grant status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr := env.do(t, http.MethodPost, "/api/cash", env.viewerTok, `{"amount": 10}`); rr.Code != http.StatusCreated {
		t.Fatalf("granted viewer create status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/api/me", env.viewerTok, "")
	if rr.Code != http.StatusOK || !contains(rr.Body.String(), `"can_edit":true`) {
		t.Fatalf("me status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/api/users", env.adminTok, "")
	if users := decode[[]core.UserProfile](t, rr); len(users) != 2 {
		t.Errorf("users = %d, want 2", len(users))
	}

	if rr := env.do(t, http.MethodPut, "/api/users/"+env.viewerID+"/edit-access", env.adminTok, `{}`); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing allow_edit status=%d, want 422", rr.Code)
	}
}

func TestUpdateDeleteAndSettle(t *testing.T) {
	env := newTestEnv(t, 0)

	rr := env.do(t, http.MethodPost, "/api/friends", env.adminTok, `{"name": "Bilal", "amount": 50, "direction": "borrowed"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decode[core.FriendTransaction](t, rr)
	if created.Status != core.Pending || created.Category != core.FriendGeneral {
		t.Fatalf("defaults = %s/%s", created.Status, created.Category)
	}

	rr = env.do(t, http.MethodPut, "/api/friends/"+created.ID, env.adminTok, `{"name": "Bilal", "amount": 75, "direction": "borrowed"}`)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/api/friends/"+created.ID+"/settle", env.adminTok, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("settle status=%d body=%s", rr.Code, rr.Body.String())
	}
	settled := decode[core.FriendTransaction](t, rr)
	if settled.Status != core.Settled || settled.Amount.Cents != 7500 {
		t.Errorf("settled = %s %s", settled.Status, settled.Amount)
	}

	if rr := env.do(t, http.MethodDelete, "/api/friends/"+created.ID, env.adminTok, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodDelete, "/api/friends/"+created.ID, env.adminTok, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d, want 404", rr.Code)
	}
	if rr := env.do(t, http.MethodPut, "/api/budgets/missing", env.adminTok, `{"name": "x", "amount": 1}`); rr.Code != http.StatusNotFound {
		t.Fatalf("update missing status=%d, want 404", rr.Code)
	}
}

func TestMenu(t *testing.T) {
	env := newTestEnv(t, 0)

	rr := env.do(t, http.MethodPut, "/api/menu/monday", env.adminTok, `{"breakfast": "Paratha", "dinner": "Daal"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("upsert status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr := env.do(t, http.MethodPut, "/api/menu/someday", env.adminTok, `{}`); rr.Code != http.StatusNotFound {
		t.Fatalf("bad day status=%d, want 404", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/menu", env.viewerTok, "")
	days := decode[[]menuView](t, rr)
	if len(days) != 7 || days[0].Day != "Monday" || days[0].Dinner != "Daal" {
		t.Fatalf("menu = %+v", days)
	}

	rr = env.do(t, http.MethodGet, "/api/dashboard", env.viewerTok, "")
	if !contains(rr.Body.String(), `"breakfast":"Paratha"`) {
		t.Errorf("dashboard missing today's menu: %s", rr.Body.String())
	}
}

func TestExportAndAssistant(t *testing.T) {
	env := newTestEnv(t, 0)
	env.do(t, http.MethodPost, "/api/expenses", env.adminTok, `{"title": "Gas bill", "amount": 30, "category": "Misc"}`)
	env.refresh(t)

	rr := env.do(t, http.MethodGet, "/api/export?format=csv", env.viewerTok, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("export status=%d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !contains(cd, "kharcha_export_2024-03-04.csv") {
		t.Errorf("content disposition = %q", cd)
	}
	if !contains(rr.Body.String(), "Type,Details,Amount") || !contains(rr.Body.String(), "Gas bill") {
		t.Errorf("csv body = %s", rr.Body.String())
	}

	if rr := env.do(t, http.MethodGet, "/api/export?format=pdf", env.viewerTok, ""); rr.Code != http.StatusBadRequest {
		t.Errorf("pdf export status=%d, want 400", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/assistant/context", env.viewerTok, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("assistant status=%d", rr.Code)
	}
	if !contains(rr.Body.String(), "FINANCIAL SNAPSHOT") || !contains(rr.Body.String(), "Gas bill") {
		t.Errorf("assistant context = %s", rr.Body.String())
	}
}

func TestMutationRateLimit(t *testing.T) {
	env := newTestEnv(t, 2)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, env.do(t, http.MethodPost, "/api/cash", env.adminTok, `{"amount": 1}`).Code)
	}
	if codes[0] != http.StatusCreated || codes[1] != http.StatusCreated || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
	if rr := env.do(t, http.MethodGet, "/api/cash", env.adminTok, ""); rr.Code != http.StatusOK {
		t.Fatalf("reads must not be limited, status=%d", rr.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errBadRequest, http.StatusBadRequest},
		{services.ErrValidation, http.StatusUnprocessableEntity},
		{services.ErrUnauthenticated, http.StatusUnauthorized},
		{auth.ErrInvalidToken, http.StatusUnauthorized},
		{services.ErrForbidden, http.StatusForbidden},
		{storage.ErrNotFound, http.StatusNotFound},
		{storage.ErrDuplicateEmail, http.StatusConflict},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func contains(s, substr string) bool {
	return strings.Contains(s, substr)
}
