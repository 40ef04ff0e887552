package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-purchase-requests/internal/logger"
	"github.com/pesio-ai/be-purchase-requests/internal/repository"
	"github.com/pesio-ai/be-purchase-requests/internal/repository/memory"
	"github.com/pesio-ai/be-purchase-requests/internal/service"
)

type nopNotifier struct{}

func (nopNotifier) Notify(*repository.Notification) {}

type testAPI struct {
	store    *memory.Store
	requests *service.PurchaseRequestService
	mux      *http.ServeMux
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	st := memory.New()
	st.AddUser(repository.User{ID: "u-admin", Role: "admin", IsActive: true})
	st.AddUser(repository.User{ID: "u-finance", Role: "finance", IsActive: true})

	log := logger.Nop()
	requests := service.NewPurchaseRequestService(st, service.NewApprovalEngine(log), nopNotifier{}, log)
	h := NewHTTPHandler(requests, service.NewRuleService(st, log), service.NewNotificationService(st), log)

	mux := http.NewServeMux()
	h.Register(mux)
	return &testAPI{store: st, requests: requests, mux: mux}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerUserID, "u-requester")
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (a *testAPI) createRule(t *testing.T, level int, lo, hi, role string) {
	t.Helper()
	body := map[string]any{
		"name": role, "min_amount": lo, "currency": "USD", "level": level, "approver_role": role,
	}
	if hi != "" {
		body["max_amount"] = hi
	}
	rec := a.do(t, http.MethodPost, "/api/v1/approval-rules", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (a *testAPI) createRequest(t *testing.T, items []map[string]any) *repository.PurchaseRequest {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/purchase-requests", map[string]any{
		"supplier_id": "sup-1",
		"currency":    "USD",
		"items":       items,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[*repository.PurchaseRequest](t, rec)
}

func TestHTTPLifecycle(t *testing.T) {
	api := newTestAPI(t)
	api.createRule(t, 1, "0", "1000", "admin")
	api.createRule(t, 1, "1000.01", "5000", "finance")

	pr := api.createRequest(t, []map[string]any{
		{"product_id": "X", "quantity": 10, "unit_price": "100.00"},
		{"product_id": "Y", "quantity": 5, "unit_price": 100},
	})
	assert.Equal(t, "u-requester", pr.RequesterID)
	assert.True(t, decimal.RequireFromString("1500").Equal(pr.TotalAmount))

	rec := api.do(t, http.MethodPost, "/api/v1/purchase-requests/"+pr.ID+"/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	submitted := decodeBody[service.SubmitResult](t, rec)
	require.Len(t, submitted.Approvals, 1)
	assert.Equal(t, "u-finance", submitted.Approvals[0].ApproverID)

	rec = api.do(t, http.MethodGet, "/api/v1/approvals/pending?user_id=u-finance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decodeBody[map[string][]*repository.PendingApproval](t, rec)
	require.Len(t, pending["pending"], 1)
	assert.Equal(t, pr.ID, pending["pending"][0].Request.ID)

	rec = api.do(t, http.MethodPost, "/api/v1/purchase-requests/"+pr.ID+"/decide", map[string]any{
		"level": 1, "approver_id": "u-finance", "outcome": "approved",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decided := decodeBody[service.DecideResult](t, rec)
	assert.True(t, decided.IsFullyApproved)

	rec = api.do(t, http.MethodPost, "/api/v1/purchase-requests/"+pr.ID+"/convert", map[string]any{
		"payment_terms": "NET30",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	converted := decodeBody[service.ConvertResult](t, rec)
	assert.Equal(t, repository.RequestStatusConverted, converted.Request.Status)
	assert.True(t, decimal.RequireFromString("1500").Equal(converted.PurchaseOrder.TotalAmount))

	rec = api.do(t, http.MethodGet, "/api/v1/purchase-requests/"+pr.ID+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeBody[map[string][]*repository.AuditEntry](t, rec)
	assert.Len(t, history["history"], 4)
}

func TestHTTPErrorMapping(t *testing.T) {
	api := newTestAPI(t)
	api.createRule(t, 1, "0", "100", "admin")
	pr := api.createRequest(t, []map[string]any{{"product_id": "X", "quantity": 1, "unit_price": "500"}})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"unknown request", http.MethodGet, "/api/v1/purchase-requests/missing", nil, http.StatusNotFound, "NOT_FOUND"},
		{"no applicable rule", http.MethodPost, "/api/v1/purchase-requests/" + pr.ID + "/submit", nil, http.StatusUnprocessableEntity, "NO_APPLICABLE_RULE"},
		{"decide a draft", http.MethodPost, "/api/v1/purchase-requests/" + pr.ID + "/decide",
			map[string]any{"level": 1, "approver_id": "u-admin", "outcome": "approved"}, http.StatusConflict, "INVALID_STATE"},
		{"bad outcome", http.MethodPost, "/api/v1/purchase-requests/" + pr.ID + "/decide",
			map[string]any{"level": 1, "outcome": "later"}, http.StatusBadRequest, "INVALID_INPUT"},
		{"convert a draft", http.MethodPost, "/api/v1/purchase-requests/" + pr.ID + "/convert", nil, http.StatusConflict, "INVALID_STATE"},
		{"invalid rule", http.MethodPost, "/api/v1/approval-rules", map[string]any{"name": "x"}, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown rule", http.MethodGet, "/api/v1/approval-rules/missing", nil, http.StatusNotFound, "NOT_FOUND"},
		{"unknown notification", http.MethodPost, "/api/v1/notifications/missing/read", nil, http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decodeBody[errorBody](t, rec)
			assert.Equal(t, tt.code, string(body.Error.Code))
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestHTTPMalformedBody(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/purchase-requests", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	api.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[errorBody](t, rec)
	assert.Equal(t, "body", body.Error.Field)
}

func TestHTTPDeleteAndReplaceItems(t *testing.T) {
	api := newTestAPI(t)
	pr := api.createRequest(t, []map[string]any{{"product_id": "X", "quantity": 1, "unit_price": "5"}})

	rec := api.do(t, http.MethodPut, "/api/v1/purchase-requests/"+pr.ID+"/items", map[string]any{
		"items": []map[string]any{{"product_id": "Z", "quantity": 4, "unit_price": "2.50"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[*repository.PurchaseRequest](t, rec)
	assert.True(t, decimal.RequireFromString("10").Equal(updated.TotalAmount))

	rec = api.do(t, http.MethodDelete, "/api/v1/purchase-requests/"+pr.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/purchase-requests/"+pr.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPListAndNotifications(t *testing.T) {
	api := newTestAPI(t)
	api.createRequest(t, nil)
	api.createRequest(t, nil)

	rec := api.do(t, http.MethodGet, "/api/v1/purchase-requests?status=draft&page_size=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody[service.RequestPage](t, rec)
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, page.Requests, 1)

	n := &repository.Notification{UserID: "u-requester", Type: repository.NotificationRequestApproved, EntityType: repository.EntityTypePurchaseRequest, EntityID: "x"}
	require.NoError(t, api.store.Notifications().Create(t.Context(), n))

	rec = api.do(t, http.MethodPost, "/api/v1/notifications/"+n.ID+"/read", nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/v1/notifications?unread=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	inbox := decodeBody[map[string][]*repository.Notification](t, rec)
	assert.Empty(t, inbox["notifications"])
}
