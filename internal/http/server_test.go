package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"despesas/internal/core"
	"despesas/internal/identity"
	"despesas/internal/session"
	"despesas/internal/store/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st := memory.New()
	auth := identity.NewService(st, testSecret, time.Hour)
	sessions := session.NewManager(st)
	s := NewServer(Options{Addr: ":0"}, auth, sessions, nil)
	t.Cleanup(func() { sessions.Close() })
	return s
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
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
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func registerUser(t *testing.T, s *Server, email string) string {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/api/auth/register", "",
		credentialsRequest{Email: email, Password: "correct horse battery"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %s", rec.Code, rec.Body.String())
	}
	return decode[authResponse](t, rec).Token
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, s, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status %d", path, rec.Code)
		}
	}
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	token := registerUser(t, s, "ana@example.com")
	if token == "" {
		t.Fatal("empty token")
	}

	// Duplicate registration conflicts, case-insensitively.
	rec := doJSON(t, s, http.MethodPost, "/api/auth/register", "",
		credentialsRequest{Email: "ANA@example.com", Password: "correct horse battery"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: status %d", rec.Code)
	}

	// Weak password is rejected.
	rec = doJSON(t, s, http.MethodPost, "/api/auth/register", "",
		credentialsRequest{Email: "bob@example.com", Password: "short"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("weak password: status %d", rec.Code)
	}

	// Login with wrong password fails.
	rec = doJSON(t, s, http.MethodPost, "/api/auth/login", "",
		credentialsRequest{Email: "ana@example.com", Password: "wrong password here"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password login: status %d", rec.Code)
	}

	// Login succeeds and the token is accepted by protected routes.
	rec = doJSON(t, s, http.MethodPost, "/api/auth/login", "",
		credentialsRequest{Email: "Ana@Example.com", Password: "correct horse battery"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d", rec.Code)
	}
	loginToken := decode[authResponse](t, rec).Token

	rec = doJSON(t, s, http.MethodGet, "/api/expenses", loginToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list with login token: status %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/expenses", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/expenses", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d", rec.Code)
	}
}

func TestExpenseCRUD(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s, "ana@example.com")

	rec := doJSON(t, s, http.MethodPost, "/api/expenses", token, expenseRequest{
		Name: "Aluguel", Amount: "1200,00", Category: "Moradia",
		DueDay: 5, StartMonth: "2024-01", EndMonth: "2024-12",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}
	id := decode[map[string]string](t, rec)["id"]
	if id == "" {
		t.Fatal("create returned empty id")
	}

	rec = doJSON(t, s, http.MethodGet, "/api/expenses", token, nil)
	list := decode[[]core.Expense](t, rec)
	if len(list) != 1 || list[0].Amount.Cents != 120_000 {
		t.Fatalf("list: %+v", list)
	}

	rec = doJSON(t, s, http.MethodPut, "/api/expenses/"+id, token, expenseRequest{
		Name: "Aluguel novo", Amount: "1300.50", Category: "Moradia",
		DueDay: 6, StartMonth: "2024-01", EndMonth: "2024-12",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d body %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, s, http.MethodGet, "/api/expenses", token, nil)
	list = decode[[]core.Expense](t, rec)
	if list[0].Name != "Aluguel novo" || list[0].Amount.Cents != 130_050 {
		t.Fatalf("after update: %+v", list[0])
	}

	rec = doJSON(t, s, http.MethodDelete, "/api/expenses/"+id, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status %d", rec.Code)
	}
	rec = doJSON(t, s, http.MethodGet, "/api/expenses", token, nil)
	if list = decode[[]core.Expense](t, rec); len(list) != 0 {
		t.Fatalf("after delete: %+v", list)
	}
}

func TestExpenseValidationErrors(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s, "ana@example.com")

	tests := []struct {
		name string
		req  expenseRequest
	}{
		{"empty name", expenseRequest{Name: " ", Amount: "10", Category: "Outros", DueDay: 1, StartMonth: "2024-01", EndMonth: "2024-12"}},
		{"bad amount", expenseRequest{Name: "x", Amount: "-5", Category: "Outros", DueDay: 1, StartMonth: "2024-01", EndMonth: "2024-12"}},
		{"bad due day", expenseRequest{Name: "x", Amount: "10", Category: "Outros", DueDay: 32, StartMonth: "2024-01", EndMonth: "2024-12"}},
		{"bad month", expenseRequest{Name: "x", Amount: "10", Category: "Outros", DueDay: 1, StartMonth: "2024-13", EndMonth: "2024-12"}},
		{"inverted range", expenseRequest{Name: "x", Amount: "10", Category: "Outros", DueDay: 1, StartMonth: "2024-12", EndMonth: "2024-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/api/expenses", token, tt.req)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status %d body %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestUpdatePreservesPaidMonths(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s, "ana@example.com")

	rec := doJSON(t, s, http.MethodPost, "/api/expenses", token, expenseRequest{
		Name: "Luz", Amount: "80", Category: "Contas Fixas",
		DueDay: 10, StartMonth: "2024-01", EndMonth: "2024-12",
	})
	id := decode[map[string]string](t, rec)["id"]

	rec = doJSON(t, s, http.MethodPost, "/api/expenses/"+id+"/toggle", token, toggleRequest{Month: "2024-03"})
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle: status %d", rec.Code)
	}

	doJSON(t, s, http.MethodPut, "/api/expenses/"+id, token, expenseRequest{
		Name: "Luz e gás", Amount: "95", Category: "Contas Fixas",
		DueDay: 10, StartMonth: "2024-01", EndMonth: "2024-12",
	})

	rec = doJSON(t, s, http.MethodGet, "/api/expenses", token, nil)
	list := decode[[]core.Expense](t, rec)
	if len(list[0].PaidMonths) != 1 || list[0].PaidMonths[0] != "2024-03" {
		t.Fatalf("paid months lost on update: %+v", list[0])
	}
}

func TestTogglePaidRoundTrip(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s, "ana@example.com")

	rec := doJSON(t, s, http.MethodPost, "/api/expenses", token, expenseRequest{
		Name: "Internet", Amount: "100", Category: "Contas Fixas",
		DueDay: 15, StartMonth: "2024-01", EndMonth: "2024-12",
	})
	id := decode[map[string]string](t, rec)["id"]

	doJSON(t, s, http.MethodPost, "/api/expenses/"+id+"/toggle", token, toggleRequest{Month: "2024-06"})
	rec = doJSON(t, s, http.MethodGet, "/api/expenses", token, nil)
	if list := decode[[]core.Expense](t, rec); !list[0].PaidIn("2024-06") {
		t.Fatal("expected paid after first toggle")
	}

	doJSON(t, s, http.MethodPost, "/api/expenses/"+id+"/toggle", token, toggleRequest{Month: "2024-06"})
	rec = doJSON(t, s, http.MethodGet, "/api/expenses", token, nil)
	if list := decode[[]core.Expense](t, rec); list[0].PaidIn("2024-06") {
		t.Fatal("expected unpaid after second toggle")
	}
}

func TestSettingsAndBudget(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s, "ana@example.com")

	rec := doJSON(t, s, http.MethodGet, "/api/settings", token, nil)
	settings := decode[core.Settings](t, rec)
	if len(settings.Categories) != len(core.DefaultCategories) {
		t.Fatalf("default settings: %+v", settings)
	}

	rec = doJSON(t, s, http.MethodPut, "/api/budgets/2024-06", token, budgetRequest{Amount: "7000"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set budget: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodGet, "/api/settings", token, nil)
	settings = decode[core.Settings](t, rec)
	if settings.Budgets["2024-06"].Cents != 700_000 {
		t.Fatalf("budget: %+v", settings.Budgets)
	}

	rec = doJSON(t, s, http.MethodPut, "/api/budgets/junk", token, budgetRequest{Amount: "7000"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad month: status %d", rec.Code)
	}
}

func TestCategoryGuards(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s, "ana@example.com")

	rec := doJSON(t, s, http.MethodPost, "/api/categories", token, categoryRequest{Name: "Pets"})
	if rec.Code != http.StatusOK {
		t.Fatalf("add category: status %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodDelete, "/api/categories/Moradia", token, nil)
	result := decode[core.CategoryResult](t, rec)
	if result.OK || result.Message != core.MsgProtectedCategory {
		t.Fatalf("default delete: %+v", result)
	}

	doJSON(t, s, http.MethodPost, "/api/expenses", token, expenseRequest{
		Name: "Ração", Amount: "90", Category: "Pets",
		DueDay: 1, StartMonth: "2024-01", EndMonth: "2024-12",
	})
	rec = doJSON(t, s, http.MethodDelete, "/api/categories/pets", token, nil)
	result = decode[core.CategoryResult](t, rec)
	if result.OK || result.Message != core.MsgCategoryInUse {
		t.Fatalf("in-use delete: %+v", result)
	}
}

func TestMonthOverview(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s, "ana@example.com")

	rec := doJSON(t, s, http.MethodPost, "/api/expenses", token, expenseRequest{
		Name: "Aluguel", Amount: "1200", Category: "Moradia",
		DueDay: 5, StartMonth: "2024-01", EndMonth: "2024-12",
	})
	id := decode[map[string]string](t, rec)["id"]
	doJSON(t, s, http.MethodPost, "/api/expenses", token, expenseRequest{
		Name: "Luz", Amount: "80", Category: "Contas Fixas",
		DueDay: 10, StartMonth: "2024-01", EndMonth: "2024-12",
	})
	doJSON(t, s, http.MethodPost, "/api/expenses/"+id+"/toggle", token, toggleRequest{Month: "2024-06"})

	rec = doJSON(t, s, http.MethodGet, "/api/summary/month/2024-06", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("overview: status %d", rec.Code)
	}
	overview := decode[monthOverviewResponse](t, rec)

	if overview.Planned.Cents != 128_000 {
		t.Errorf("planned = %d", overview.Planned.Cents)
	}
	if overview.Paid.Cents != 120_000 {
		t.Errorf("paid = %d", overview.Paid.Cents)
	}
	if overview.Budget.Cents != 500_000 {
		t.Errorf("budget = %d", overview.Budget.Cents)
	}
	if overview.Remaining.Cents != 380_000 {
		t.Errorf("remaining = %d", overview.Remaining.Cents)
	}
	if overview.Status != core.StatusWithinBudget {
		t.Errorf("status = %s", overview.Status)
	}
	if len(overview.Expenses) != 2 || overview.Expenses[0].DueDay != 5 {
		t.Errorf("active expenses: %+v", overview.Expenses)
	}

	// Outside the range the month reports no activity.
	rec = doJSON(t, s, http.MethodGet, "/api/summary/month/2025-01", token, nil)
	overview = decode[monthOverviewResponse](t, rec)
	if overview.Status != core.StatusNoActivity || overview.Planned.Cents != 0 {
		t.Errorf("inactive month: %+v", overview)
	}
}

func TestYearSummaryAndWindow(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s, "ana@example.com")

	doJSON(t, s, http.MethodPost, "/api/expenses", token, expenseRequest{
		Name: "Aluguel", Amount: "1200", Category: "Moradia",
		DueDay: 5, StartMonth: "2024-03", EndMonth: "2024-05",
	})

	rec := doJSON(t, s, http.MethodGet, "/api/summary/year/2024", token, nil)
	year := decode[yearSummaryResponse](t, rec)
	if len(year.Months) != 12 {
		t.Fatalf("months: %d", len(year.Months))
	}
	if year.Months["2024-04"].Status != core.StatusWithinBudget {
		t.Errorf("2024-04: %+v", year.Months["2024-04"])
	}
	if year.Months["2024-07"].Status != core.StatusNoActivity {
		t.Errorf("2024-07: %+v", year.Months["2024-07"])
	}

	rec = doJSON(t, s, http.MethodGet, "/api/summary/window?months=6&anchor=2024-02", token, nil)
	window := decode[[]core.WindowEntry](t, rec)
	if len(window) != 6 {
		t.Fatalf("window length: %d", len(window))
	}
	if window[0].Month != "2023-09" || window[5].Month != "2024-02" {
		t.Errorf("window bounds: %s .. %s", window[0].Month, window[5].Month)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/summary/window?months=99", token, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("oversized window: status %d", rec.Code)
	}
}

func TestUpcomingAndPaidByCategory(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s, "ana@example.com")

	var firstID string
	for i, due := range []int{5, 10, 20} {
		rec := doJSON(t, s, http.MethodPost, "/api/expenses", token, expenseRequest{
			Name: fmt.Sprintf("Conta %d", i), Amount: "100", Category: "Contas Fixas",
			DueDay: due, StartMonth: "2024-01", EndMonth: "2024-12",
		})
		if i == 0 {
			firstID = decode[map[string]string](t, rec)["id"]
		}
	}
	doJSON(t, s, http.MethodPost, "/api/expenses/"+firstID+"/toggle", token, toggleRequest{Month: "2024-06"})

	// Due day 5 is paid; day 10 and 20 remain, and day 10 is before the cutoff.
	rec := doJSON(t, s, http.MethodGet, "/api/summary/upcoming?month=2024-06&day=12", token, nil)
	upcoming := decode[[]core.Expense](t, rec)
	if len(upcoming) != 1 || upcoming[0].DueDay != 20 {
		t.Fatalf("upcoming: %+v", upcoming)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/summary/paid-by-category?month=2024-06", token, nil)
	byCategory := decode[[]core.CategoryAmount](t, rec)
	if len(byCategory) != 1 || byCategory[0].Name != "Contas Fixas" || byCategory[0].Amount.Cents != 10_000 {
		t.Fatalf("paid by category: %+v", byCategory)
	}
}

func TestSummaryCacheServesByVersion(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s, "ana@example.com")

	doJSON(t, s, http.MethodPost, "/api/expenses", token, expenseRequest{
		Name: "Aluguel", Amount: "1200", Category: "Moradia",
		DueDay: 5, StartMonth: "2024-01", EndMonth: "2024-12",
	})

	rec := doJSON(t, s, http.MethodGet, "/api/summary/month/2024-06", token, nil)
	first := decode[monthOverviewResponse](t, rec)

	// A write bumps the session version, so the stale entry is never hit.
	doJSON(t, s, http.MethodPost, "/api/expenses", token, expenseRequest{
		Name: "Luz", Amount: "80", Category: "Contas Fixas",
		DueDay: 10, StartMonth: "2024-01", EndMonth: "2024-12",
	})
	rec = doJSON(t, s, http.MethodGet, "/api/summary/month/2024-06", token, nil)
	second := decode[monthOverviewResponse](t, rec)

	if first.Planned.Cents != 120_000 || second.Planned.Cents != 128_000 {
		t.Fatalf("planned: first=%d second=%d", first.Planned.Cents, second.Planned.Cents)
	}
}
