package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/memory"
	"expenses/internal/metrics"
	"expenses/internal/services"
)

const foodCategory = 1

type testServer struct {
	*Server
	store *memory.Store
	ann   core.User
	bob   core.User
}

type serverOption func(*Config, *Dependencies)

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	ctx := context.Background()

	store := memory.New(memory.DefaultCategories)
	ann, err := store.CreateUser(ctx, core.NewUser{Name: "Ann", Email: "ann@example.com", Status: core.StatusActive})
	require.NoError(t, err)
	bob, err := store.CreateUser(ctx, core.NewUser{Name: "Bob", Email: "bob@example.com", Status: core.StatusInactive})
	require.NoError(t, err)

	stats := services.NewStatisticsService(store, services.CacheConfig{Size: 8, TTL: time.Minute}, nil)
	cfg := Config{
		Addr:         ":0",
		AppName:      "Test API",
		CORSOrigins:  []string{"http://localhost:3000"},
		RateLimitRPM: 1000,
	}
	deps := Dependencies{
		Expenses:   services.NewExpenseService(store, nil, stats, nil),
		Statistics: stats,
		Store:      store,
		Logger:     log.New(log.Config{Format: "json", Writer: io.Discard}),
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	srv := NewServer(cfg, deps)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testServer{Server: srv, store: store, ann: ann, bob: bob}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) createExpense(t *testing.T, userID int64, amount, date string) core.Expense {
	t.Helper()
	e, err := ts.store.CreateExpense(context.Background(), core.NewExpense{
		UserID:     userID,
		CategoryID: foodCategory,
		Amount:     core.MustAmount(amount),
		Date:       mustDate(t, date),
	})
	require.NoError(t, err)
	return e
}

func mustDate(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	require.NoError(t, err)
	return d
}

type envelope struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	Data       json.RawMessage   `json:"data"`
	Error      string            `json:"error"`
	Errors     []core.FieldError `json:"errors"`
	Pagination *core.Pagination  `json:"pagination"`
}

func readEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestHealthAndNotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Test API is running", body["message"])
	assert.Contains(t, body, "timestamp")
	assert.Contains(t, body, "uptime")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	for _, path := range []string{"/nowhere", "/api/v1/budgets", "/api/v1/expenses/1/items"} {
		rec = ts.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.JSONEq(t, `{"success":false,"message":"Route not found"}`, rec.Body.String(), path)
	}

	rec = ts.do(t, http.MethodPatch, "/api/v1/expenses/1", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type failingPing struct{ *memory.Store }

func (failingPing) Ping(context.Context) error { return errors.New("database is locked") }

func TestReady(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decodeBody(t, rec)["status"])

	ts = newTestServer(t, func(_ *Config, d *Dependencies) {
		d.Store = failingPing{memory.New(nil)}
	})
	rec = ts.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "not_ready", body["status"])
	assert.Equal(t, "failed", body["checks"].(map[string]any)["store"])
}

func TestReferenceEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	env := readEnvelope(t, rec)
	assert.Equal(t, "Users fetched successfully", env.Message)
	var users []core.User
	require.NoError(t, json.Unmarshal(env.Data, &users))
	require.Len(t, users, 2)
	assert.Equal(t, "Ann", users[0].Name)

	rec = ts.do(t, http.MethodGet, "/api/v1/users/active", "")
	env = readEnvelope(t, rec)
	assert.Equal(t, "Active users fetched successfully", env.Message)
	require.NoError(t, json.Unmarshal(env.Data, &users))
	require.Len(t, users, 1)
	assert.Equal(t, ts.ann.ID, users[0].ID)

	rec = ts.do(t, http.MethodGet, "/api/v1/categories", "")
	env = readEnvelope(t, rec)
	assert.Equal(t, "Categories fetched successfully", env.Message)
	var categories []core.Category
	require.NoError(t, json.Unmarshal(env.Data, &categories))
	assert.Len(t, categories, len(memory.DefaultCategories))
}

func TestCreateExpense(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/expenses",
		fmt.Sprintf(`{"user_id": %d, "category_id": %d, "amount": 12.5, "date": "2024-03-05", "description": "Lunch"}`, ts.ann.ID, foodCategory))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	env := readEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "Expense created successfully", env.Message)

	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 12.5, data["amount"])
	assert.Equal(t, "2024-03-05", data["date"])
	assert.Equal(t, "Lunch", data["description"])
	assert.Equal(t, "Ann", data["user_name"])
	assert.Equal(t, "Food & Dining", data["category_name"])
	assert.Contains(t, rec.Body.String(), `"amount":12.50`)
}

func TestCreateExpense_Errors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name    string
		body    string
		status  int
		message string
		fields  []string
	}{
		{"missing fields", `{}`, http.StatusBadRequest, "Validation failed", []string{"user_id", "category_id", "amount", "date"}},
		{"unknown field", `{"user_id": 1, "category_id": 1, "amount": 1, "date": "2024-01-01", "note": "x"}`, http.StatusBadRequest, "Validation failed", []string{"note"}},
		{"malformed json", `{"user_id":`, http.StatusBadRequest, "Invalid JSON body", nil},
		{"unknown user", `{"user_id": 99, "category_id": 1, "amount": 1, "date": "2024-01-01"}`, http.StatusBadRequest, "User not found", nil},
		{"unknown category", `{"user_id": 1, "category_id": 99, "amount": 1, "date": "2024-01-01"}`, http.StatusBadRequest, "Category not found", nil},
		{"too large", `{"description": "` + strings.Repeat("x", MaxBodyBytes) + `"}`, http.StatusRequestEntityTooLarge, "Request body too large", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/v1/expenses", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			env := readEnvelope(t, rec)
			assert.False(t, env.Success)
			assert.Equal(t, tt.message, env.Message)
			var got []string
			for _, f := range env.Errors {
				got = append(got, f.Field)
			}
			assert.Equal(t, tt.fields, got)
		})
	}

	page, err := ts.store.ListExpenses(context.Background(), core.ExpenseFilter{}, core.NewPageRequest(1, 10))
	require.NoError(t, err)
	assert.Empty(t, page.Expenses, "rejected requests store nothing")
}

func TestGetUpdateDeleteExpense(t *testing.T) {
	ts := newTestServer(t)
	e := ts.createExpense(t, ts.ann.ID, "40.00", "2024-02-10")
	path := fmt.Sprintf("/api/v1/expenses/%d", e.ID)

	rec := ts.do(t, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Expense fetched successfully", readEnvelope(t, rec).Message)

	rec = ts.do(t, http.MethodGet, "/api/v1/expenses/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []core.FieldError{{Field: "id", Message: core.MsgExpenseIDInvalid}}, readEnvelope(t, rec).Errors)

	rec = ts.do(t, http.MethodGet, "/api/v1/expenses/999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Expense not found", readEnvelope(t, rec).Message)

	// An empty patch is only rejected for an expense that exists.
	rec = ts.do(t, http.MethodPut, "/api/v1/expenses/999", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.do(t, http.MethodPut, path, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No fields to update", readEnvelope(t, rec).Message)

	rec = ts.do(t, http.MethodPut, path, `{"amount": "55.25", "description": "Groceries"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env := readEnvelope(t, rec)
	assert.Equal(t, "Expense updated successfully", env.Message)
	var updated core.Expense
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "55.25", updated.Amount.String())
	assert.Equal(t, "2024-02-10", updated.Date.String())
	require.NotNil(t, updated.Description)
	assert.Equal(t, "Groceries", *updated.Description)

	rec = ts.do(t, http.MethodPut, path, fmt.Sprintf(`{"user_id": %d}`, 99))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User not found", readEnvelope(t, rec).Message)

	rec = ts.do(t, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	env = readEnvelope(t, rec)
	assert.Equal(t, "Expense deleted successfully", env.Message)
	var deleted core.Expense
	require.NoError(t, json.Unmarshal(env.Data, &deleted))
	assert.Equal(t, e.ID, deleted.ID)
	assert.Equal(t, "Ann", deleted.UserName)

	rec = ts.do(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListExpenses(t *testing.T) {
	ts := newTestServer(t)
	for day := 1; day <= 12; day++ {
		ts.createExpense(t, ts.ann.ID, "10.00", fmt.Sprintf("2024-03-%02d", day))
	}
	ts.createExpense(t, ts.bob.ID, "99.00", "2024-04-01")

	rec := ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/expenses?user_id=%d&limit=5&page=3", ts.ann.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	env := readEnvelope(t, rec)
	assert.Equal(t, "Expenses fetched successfully", env.Message)
	var items []core.Expense
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 2)
	assert.Equal(t, "2024-03-02", items[0].Date.String(), "newest first")
	assert.Equal(t, "2024-03-01", items[1].Date.String())
	assert.Equal(t, &core.Pagination{Page: 3, Limit: 5, Total: 12, TotalPages: 3, HasNextPage: false, HasPrevPage: true}, env.Pagination)

	rec = ts.do(t, http.MethodGet, "/api/v1/expenses?start_date=2024-03-10&end_date=2024-04-01", "")
	env = readEnvelope(t, rec)
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 4)

	rec = ts.do(t, http.MethodGet, "/api/v1/expenses?page=99", "")
	env = readEnvelope(t, rec)
	assert.JSONEq(t, `[]`, string(env.Data))

	rec = ts.do(t, http.MethodGet, "/api/v1/expenses?user_id=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []core.FieldError{{Field: "user_id", Message: core.MsgUserIDInvalid}}, readEnvelope(t, rec).Errors)
}

func TestStatistics(t *testing.T) {
	ts := newTestServer(t)
	ts.createExpense(t, ts.ann.ID, "100.00", "2024-01-10")
	ts.createExpense(t, ts.ann.ID, "150.00", "2024-02-10")

	rec := ts.do(t, http.MethodGet, "/api/v1/statistics/monthly-change", "")
	require.Equal(t, http.StatusOK, rec.Code)
	env := readEnvelope(t, rec)
	assert.Equal(t, "Monthly percentage change for each user fetched successfully", env.Message)
	assert.Contains(t, string(env.Data), `"percentage_change":50.00`)
	assert.Contains(t, string(env.Data), `"current_month":"2024-02"`)

	rec = ts.do(t, http.MethodGet, "/api/v1/statistics/top-days", "")
	env = readEnvelope(t, rec)
	assert.Equal(t, "Top 3 days expenditure for each user fetched successfully", env.Message)
	var top []core.TopDayExpenditure
	require.NoError(t, json.Unmarshal(env.Data, &top))
	require.Len(t, top, 2)
	assert.Equal(t, "2024-02-10", top[0].Date.String())

	rec = ts.do(t, http.MethodGet, "/api/v1/statistics/prediction", "")
	assert.Equal(t, "Predicted expenditure for next month fetched successfully", readEnvelope(t, rec).Message)

	rec = ts.do(t, http.MethodGet, "/api/v1/statistics", "")
	env = readEnvelope(t, rec)
	assert.Equal(t, "All statistics fetched successfully", env.Message)
	var all map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &all))
	assert.Contains(t, all, "topDaysExpenditure")
	assert.Contains(t, all, "monthlyPercentageChange")
	assert.Contains(t, all, "predictedExpenditure")
}

func TestStatistics_RefreshAfterWrite(t *testing.T) {
	ts := newTestServer(t)
	ts.createExpense(t, ts.ann.ID, "10.00", "2024-01-10")

	rec := ts.do(t, http.MethodGet, "/api/v1/statistics/top-days", "")
	assert.Contains(t, rec.Body.String(), `"total_amount":10.00`)

	rec = ts.do(t, http.MethodPost, "/api/v1/expenses",
		fmt.Sprintf(`{"user_id": %d, "category_id": %d, "amount": 5, "date": "2024-01-10"}`, ts.ann.ID, foodCategory))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/statistics/top-days", "")
	assert.Contains(t, rec.Body.String(), `"total_amount":15.00`, "writes through the API invalidate the cached report")
}

type brokenStatistics struct{ panics bool }

func (b brokenStatistics) TopDays(context.Context) ([]core.TopDayExpenditure, error) {
	if b.panics {
		panic("boom")
	}
	return nil, errors.New("no such table: expenses")
}

func (brokenStatistics) MonthlyChanges(context.Context) ([]core.MonthlyPercentageChange, error) {
	return nil, errors.New("no such table: expenses")
}

func (brokenStatistics) Predictions(context.Context) ([]core.ExpenditurePrediction, error) {
	return nil, errors.New("no such table: expenses")
}

func (brokenStatistics) All(context.Context) (core.Statistics, error) {
	return core.Statistics{}, errors.New("no such table: expenses")
}

func TestInternalErrors(t *testing.T) {
	withStats := func(dev, panics bool) serverOption {
		return func(c *Config, d *Dependencies) {
			c.Development = dev
			d.Statistics = brokenStatistics{panics: panics}
		}
	}

	ts := newTestServer(t, withStats(false, false))
	rec := ts.do(t, http.MethodGet, "/api/v1/statistics/monthly-change", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Failed to fetch monthly percentage change","error":"Internal server error"}`, rec.Body.String())

	ts = newTestServer(t, withStats(true, false))
	rec = ts.do(t, http.MethodGet, "/api/v1/statistics", "")
	env := readEnvelope(t, rec)
	assert.Equal(t, "Failed to fetch statistics", env.Message)
	assert.Equal(t, "no such table: expenses", env.Error)

	ts = newTestServer(t, withStats(true, true))
	rec = ts.do(t, http.MethodGet, "/api/v1/statistics/top-days", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env = readEnvelope(t, rec)
	assert.Equal(t, "Internal server error", env.Message)
	assert.Equal(t, "boom", env.Error)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, func(c *Config, _ *Dependencies) { c.RateLimitRPM = 2 })

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/users", "").Code)
	}
	rec := ts.do(t, http.MethodGet, "/api/v1/categories", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	env := readEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "Too many requests, please try again later.", env.Message)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health", "").Code, "probes are not rate limited")
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/expenses", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	ts := newTestServer(t, func(_ *Config, d *Dependencies) { d.Metrics = m })

	ts.do(t, http.MethodGet, "/api/v1/users", "")
	ts.do(t, http.MethodGet, "/api/v1/expenses/12345", "")
	ts.do(t, http.MethodGet, "/does-not-exist", "")

	rec := ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `expenses_http_requests_total{method="GET",route="GET /api/v1/users",status="200"} 1`)
	assert.Contains(t, body, `route="GET /api/v1/expenses/{id}",status="404"`)
	assert.Contains(t, body, `route="unmatched",status="404"`)
	assert.NotContains(t, body, "12345")
}

func TestShutdownIsIdempotent(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.Shutdown(context.Background()))
	require.NoError(t, ts.Shutdown(context.Background()))
}

func TestRun_StopsOnCancel(t *testing.T) {
	ts := newTestServer(t, func(c *Config, _ *Dependencies) { c.Addr = "127.0.0.1:0" })
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- ts.Run(ctx, time.Second) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
