package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pesio-ai/be-purchase-requests/internal/errors"
	"github.com/pesio-ai/be-purchase-requests/internal/logger"
	"github.com/pesio-ai/be-purchase-requests/internal/middleware"
	"github.com/pesio-ai/be-purchase-requests/internal/service"
)

// headerUserID carries the acting user until authentication is fronted by
// the gateway.
const headerUserID = "X-User-ID"

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	requests      *service.PurchaseRequestService
	rules         *service.RuleService
	notifications *service.NotificationService
	log           *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(
	requests *service.PurchaseRequestService,
	rules *service.RuleService,
	notifications *service.NotificationService,
	log *logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		requests:      requests,
		rules:         rules,
		notifications: notifications,
		log:           log,
	}
}

// Register mounts every API route on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/purchase-requests", h.CreateRequest)
	mux.HandleFunc("GET /api/v1/purchase-requests", h.ListRequests)
	mux.HandleFunc("GET /api/v1/purchase-requests/{id}", h.GetRequest)
	mux.HandleFunc("DELETE /api/v1/purchase-requests/{id}", h.DeleteRequest)
	mux.HandleFunc("PUT /api/v1/purchase-requests/{id}/items", h.ReplaceItems)
	mux.HandleFunc("POST /api/v1/purchase-requests/{id}/submit", h.Submit)
	mux.HandleFunc("POST /api/v1/purchase-requests/{id}/decide", h.Decide)
	mux.HandleFunc("POST /api/v1/purchase-requests/{id}/convert", h.Convert)
	mux.HandleFunc("GET /api/v1/purchase-requests/{id}/approvals", h.GetApprovals)
	mux.HandleFunc("GET /api/v1/purchase-requests/{id}/history", h.GetHistory)

	mux.HandleFunc("GET /api/v1/approvals/pending", h.ListPendingApprovals)

	mux.HandleFunc("GET /api/v1/approval-rules", h.ListRules)
	mux.HandleFunc("POST /api/v1/approval-rules", h.CreateRule)
	mux.HandleFunc("GET /api/v1/approval-rules/{id}", h.GetRule)
	mux.HandleFunc("PUT /api/v1/approval-rules/{id}", h.UpdateRule)
	mux.HandleFunc("DELETE /api/v1/approval-rules/{id}", h.DeleteRule)

	mux.HandleFunc("GET /api/v1/notifications", h.ListNotifications)
	mux.HandleFunc("POST /api/v1/notifications/{id}/read", h.MarkNotificationRead)
}

// ── Purchase requests ─────────────────────────────────────────────────────────

// CreateRequest handles create purchase request HTTP requests
func (h *HTTPHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRequestInput
	if !h.decode(w, r, &req) {
		return
	}
	if req.RequesterID == "" {
		req.RequesterID = r.Header.Get(headerUserID)
	}

	pr, err := h.requests.CreateRequest(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pr)
}

// ListRequests handles list purchase requests HTTP requests
func (h *HTTPHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	result, err := h.requests.List(r.Context(), service.ListRequestsInput{
		Status:      q.Get("status"),
		RequesterID: q.Get("requester_id"),
		Page:        page,
		PageSize:    pageSize,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetRequest handles get purchase request HTTP requests
func (h *HTTPHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	pr, err := h.requests.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pr)
}

// DeleteRequest handles delete draft purchase request HTTP requests
func (h *HTTPHandler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.requests.DeleteRequest(r.Context(), r.PathValue("id"), r.Header.Get(headerUserID)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReplaceItems handles replace purchase request items HTTP requests
func (h *HTTPHandler) ReplaceItems(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Items []service.ItemInput `json:"items"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	pr, err := h.requests.ReplaceItems(r.Context(), r.PathValue("id"), r.Header.Get(headerUserID), body.Items)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pr)
}

// Submit handles submit for approval HTTP requests
func (h *HTTPHandler) Submit(w http.ResponseWriter, r *http.Request) {
	result, err := h.requests.Submit(r.Context(), r.PathValue("id"), r.Header.Get(headerUserID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Decide handles approve / reject HTTP requests
func (h *HTTPHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var req service.DecideInput
	if !h.decode(w, r, &req) {
		return
	}
	if req.ApproverID == "" {
		req.ApproverID = r.Header.Get(headerUserID)
	}

	result, err := h.requests.Decide(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Convert handles convert to purchase order HTTP requests
func (h *HTTPHandler) Convert(w http.ResponseWriter, r *http.Request) {
	var req service.ConvertInput
	if !h.decode(w, r, &req) {
		return
	}
	if req.CreatedBy == "" {
		req.CreatedBy = r.Header.Get(headerUserID)
	}

	result, err := h.requests.ConvertToOrder(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// GetApprovals handles list request approvals HTTP requests
func (h *HTTPHandler) GetApprovals(w http.ResponseWriter, r *http.Request) {
	approvals, err := h.requests.GetApprovals(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"approvals": approvals})
}

// GetHistory handles request audit history HTTP requests
func (h *HTTPHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.requests.GetHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// ListPendingApprovals handles pending approvals HTTP requests
func (h *HTTPHandler) ListPendingApprovals(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = r.Header.Get(headerUserID)
	}

	pending, err := h.requests.ListPendingApprovalsForUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": pending})
}

// ── Approval rules ────────────────────────────────────────────────────────────

// ListRules handles list approval rules HTTP requests
func (h *HTTPHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))
	rules, err := h.rules.ListRules(r.Context(), activeOnly)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

// CreateRule handles create approval rule HTTP requests
func (h *HTTPHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req service.RuleInput
	if !h.decode(w, r, &req) {
		return
	}
	rule, err := h.rules.CreateRule(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// GetRule handles get approval rule HTTP requests
func (h *HTTPHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.rules.GetRule(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// UpdateRule handles update approval rule HTTP requests
func (h *HTTPHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	var req service.RuleInput
	if !h.decode(w, r, &req) {
		return
	}
	rule, err := h.rules.UpdateRule(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// DeleteRule handles delete approval rule HTTP requests
func (h *HTTPHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.rules.DeleteRule(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Notifications ─────────────────────────────────────────────────────────────

// ListNotifications handles list notifications HTTP requests
func (h *HTTPHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("user_id")
	if userID == "" {
		userID = r.Header.Get(headerUserID)
	}
	unread, _ := strconv.ParseBool(q.Get("unread"))

	items, err := h.notifications.ListNotifications(r.Context(), userID, unread)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": items})
}

// MarkNotificationRead handles mark notification read HTTP requests
func (h *HTTPHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = r.Header.Get(headerUserID)
	}
	if err := h.notifications.MarkNotificationRead(r.Context(), userID, r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Encoding ──────────────────────────────────────────────────────────────────

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
	Field   string      `json:"field,omitempty"`
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, r, errors.InvalidInput("body", "invalid request body"))
		return false
	}
	return true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	detail := errorDetail{Code: errors.ErrCodeInternal, Message: "internal error"}
	var appErr *errors.Error
	if errors.As(err, &appErr) {
		detail = errorDetail{Code: appErr.Code, Message: appErr.Message, Field: appErr.Field}
	}

	status := errors.HTTPStatus(detail.Code)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("Request failed")
		detail.Message = "internal error"
	}
	writeJSON(w, status, errorBody{Error: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
