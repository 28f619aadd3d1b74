package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/services"
	"expensetracker/internal/storage/memory"
)

const unknownID = "65a1b2c3d4e5f60718293a4b"

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	return newTestServerWith(t, services.NewExpenseService(memory.New(), nil), opts)
}

func newTestServerWith(t *testing.T, svc ExpenseAPI, opts Options) *Server {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.Config{Output: io.Discard})
	}
	srv := NewServer(":0", svc, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
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
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeExpense(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var out struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out.Message
}

func decodeErrors(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	var out struct {
		Errors []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out.Errors
}

func createExpense(t *testing.T, srv *Server, body string) string {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/expenses", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeExpense(t, rec)["_id"].(string)
}

func TestWelcomeAndHealth(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, welcomeText, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))

	rec = do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())
}

func TestCreateExpense(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodPost, "/expenses", `{"title":"  Coffee  ","amount":4.5,"date":"2024-01-15"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decodeExpense(t, rec)
	id, _ := got["_id"].(string)
	assert.True(t, core.ValidID(id), "id %q", id)
	assert.Equal(t, "Coffee", got["title"])
	assert.Equal(t, 4.5, got["amount"])
	assert.Equal(t, "2024-01-15T00:00:00.000Z", got["date"])
	assert.Contains(t, got, "category")
	assert.Nil(t, got["category"])
	assert.Equal(t, "/expenses/"+id, rec.Header().Get("Location"))
}

func TestCreateExpense_ValidationErrors(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodPost, "/expenses", `{"title":"ab","amount":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{core.MsgTitle, core.MsgAmount, core.MsgDate}, decodeErrors(t, rec))

	rec = do(t, srv, http.MethodGet, "/expenses", "")
	assert.JSONEq(t, `[]`, rec.Body.String(), "nothing should be stored")
}

func TestCreateExpense_NumberBeyondFloatRange(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodPost, "/expenses", `{"title":"Coffee","amount":1e400,"date":"2024-01-01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{core.MsgAmount}, decodeErrors(t, rec))

	rec = do(t, srv, http.MethodPost, "/expenses", `{"title":"Coffee","amount":1,"date":-1e400}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{core.MsgDate}, decodeErrors(t, rec))
}

func TestCreateExpense_TitleCountsUTF16Units(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodPost, "/expenses", `{"title":"😀😀","amount":1,"date":"2024-01-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "😀😀", decodeExpense(t, rec)["title"])
}

func TestCreateExpense_InvalidBody(t *testing.T) {
	srv := newTestServer(t, Options{})

	for _, body := range []string{`{"title":`, `[1,2]`, `"x"`, `{} {}`} {
		rec := do(t, srv, http.MethodPost, "/expenses", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, msgInvalidBody, decodeMessage(t, rec), body)
	}

	rec := do(t, srv, http.MethodPost, "/expenses", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListExpenses_NewestFirst(t *testing.T) {
	srv := newTestServer(t, Options{})

	createExpense(t, srv, `{"title":"Oldest","amount":1,"date":"2023-01-01"}`)
	createExpense(t, srv, `{"title":"Newest","amount":2,"date":"2024-06-01","category":"food"}`)
	createExpense(t, srv, `{"title":"Middle","amount":3,"date":"2023-09-01"}`)

	rec := do(t, srv, http.MethodGet, "/expenses", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 3)
	assert.Equal(t, "Newest", list[0]["title"])
	assert.Equal(t, "food", list[0]["category"])
	assert.Equal(t, "Middle", list[1]["title"])
	assert.Equal(t, "Oldest", list[2]["title"])
}

func TestGetExpense(t *testing.T) {
	srv := newTestServer(t, Options{})
	id := createExpense(t, srv, `{"title":"Lunch","amount":12,"date":"2024-03-01T12:30:00Z"}`)

	rec := do(t, srv, http.MethodGet, "/expenses/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-03-01T12:30:00.000Z", decodeExpense(t, rec)["date"])

	rec = do(t, srv, http.MethodGet, "/expenses/not-an-id", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgInvalidID, decodeMessage(t, rec))

	rec = do(t, srv, http.MethodGet, "/expenses/"+unknownID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, msgNotFound, decodeMessage(t, rec))
}

func TestUpdateExpense(t *testing.T) {
	srv := newTestServer(t, Options{})
	id := createExpense(t, srv, `{"title":"Groceries","amount":40,"date":"2024-02-01","category":"food"}`)

	rec := do(t, srv, http.MethodPatch, "/expenses/"+id, `{"amount":42.5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeExpense(t, rec)
	assert.Equal(t, id, got["_id"])
	assert.Equal(t, "Groceries", got["title"])
	assert.Equal(t, 42.5, got["amount"])
	assert.Equal(t, "2024-02-01T00:00:00.000Z", got["date"])
	assert.Equal(t, "food", got["category"])

	rec = do(t, srv, http.MethodPatch, "/expenses/"+id, `{"category":null}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decodeExpense(t, rec)["category"])

	// Same values again still count as a match.
	rec = do(t, srv, http.MethodPatch, "/expenses/"+id, `{"amount":42.5}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateExpense_Errors(t *testing.T) {
	srv := newTestServer(t, Options{})
	id := createExpense(t, srv, `{"title":"Groceries","amount":40,"date":"2024-02-01"}`)

	t.Run("invalid id wins over invalid body", func(t *testing.T) {
		rec := do(t, srv, http.MethodPatch, "/expenses/123", `{"title":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, msgInvalidID, decodeMessage(t, rec))
	})

	t.Run("empty payload", func(t *testing.T) {
		rec := do(t, srv, http.MethodPatch, "/expenses/"+id, `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, msgEmptyPayload, decodeMessage(t, rec))
	})

	t.Run("only supplied fields are validated", func(t *testing.T) {
		rec := do(t, srv, http.MethodPatch, "/expenses/"+id, `{"amount":-1}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, []string{core.MsgAmount}, decodeErrors(t, rec))
	})

	t.Run("invalid field leaves the expense untouched", func(t *testing.T) {
		rec := do(t, srv, http.MethodPatch, "/expenses/"+id, `{"title":"Rent","date":"not a date"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, []string{core.MsgDate}, decodeErrors(t, rec))

		rec = do(t, srv, http.MethodGet, "/expenses/"+id, "")
		assert.Equal(t, "Groceries", decodeExpense(t, rec)["title"])
	})

	t.Run("unknown id", func(t *testing.T) {
		rec := do(t, srv, http.MethodPatch, "/expenses/"+unknownID, `{"amount":5}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, msgNotFound, decodeMessage(t, rec))
	})

	t.Run("invalid body", func(t *testing.T) {
		rec := do(t, srv, http.MethodPatch, "/expenses/"+id, `[]`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, msgInvalidBody, decodeMessage(t, rec))
	})
}

func TestDeleteExpense(t *testing.T) {
	srv := newTestServer(t, Options{})
	id := createExpense(t, srv, `{"title":"Taxi","amount":18,"date":"2024-04-04"}`)

	rec := do(t, srv, http.MethodDelete, "/expenses/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, msgDeleted, decodeMessage(t, rec))

	rec = do(t, srv, http.MethodGet, "/expenses/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/expenses/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, msgNotFound, decodeMessage(t, rec))

	rec = do(t, srv, http.MethodDelete, "/expenses/zzz", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgInvalidID, decodeMessage(t, rec))
}

// failingAPI answers every call with a store failure.
type failingAPI struct{}

var errStoreDown = core.NewStoreError("list", errors.New("connection refused"))

func (failingAPI) List(context.Context) ([]core.Expense, error) { return nil, errStoreDown }
func (failingAPI) Get(context.Context, string) (core.Expense, error) {
	return core.Expense{}, errStoreDown
}
func (failingAPI) Create(context.Context, core.Input) (core.Expense, error) {
	return core.Expense{}, errStoreDown
}
func (failingAPI) Update(context.Context, string, core.Input) (core.Expense, error) {
	return core.Expense{}, errStoreDown
}
func (failingAPI) Delete(context.Context, string) error { return errStoreDown }
func (failingAPI) Ready(context.Context) error          { return errStoreDown }

func TestStoreFailure_Generic500(t *testing.T) {
	var logs bytes.Buffer
	srv := newTestServerWith(t, failingAPI{}, Options{
		Logger: applog.New(applog.Config{Format: "json", Output: &logs}),
	})

	requests := []struct{ method, path, body string }{
		{http.MethodGet, "/expenses", ""},
		{http.MethodGet, "/expenses/" + unknownID, ""},
		{http.MethodPost, "/expenses", `{"title":"Coffee","amount":1,"date":"2024-01-01"}`},
		{http.MethodPatch, "/expenses/" + unknownID, `{"amount":1}`},
		{http.MethodDelete, "/expenses/" + unknownID, ""},
	}
	for _, r := range requests {
		rec := do(t, srv, r.method, r.path, r.body)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, r.method+" "+r.path)
		assert.Equal(t, msgInternal, decodeMessage(t, rec))
		assert.NotContains(t, rec.Body.String(), "connection refused")
	}

	assert.Contains(t, logs.String(), "connection refused")
	assert.Contains(t, logs.String(), `"request_id"`)

	rec := do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimit_OnlyMutatingRequests(t *testing.T) {
	srv := newTestServer(t, Options{RateLimitPerMinute: 1})

	createExpense(t, srv, `{"title":"First","amount":1,"date":"2024-01-01"}`)

	rec := do(t, srv, http.MethodPost, "/expenses", `{"title":"Second","amount":1,"date":"2024-01-01"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, msgRateLimited, decodeMessage(t, rec))

	for i := 0; i < 3; i++ {
		rec = do(t, srv, http.MethodGet, "/expenses", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestMiddlewareHeadersAndMetrics(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodGet, "/expenses", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `expensetracker_http_requests_total{method="GET",route="/expenses",status="200"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, Options{CORSOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/expenses", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRouteAndMethod(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodPut, "/expenses", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
