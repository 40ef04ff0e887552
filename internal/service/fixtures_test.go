package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-purchase-requests/internal/logger"
	"github.com/pesio-ai/be-purchase-requests/internal/repository"
	"github.com/pesio-ai/be-purchase-requests/internal/repository/memory"
)

type recordingNotifier struct {
	mu  sync.Mutex
	got []*repository.Notification
}

func (r *recordingNotifier) Notify(n *repository.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *recordingNotifier) ofType(typ string) []*repository.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*repository.Notification
	for _, n := range r.got {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

type fixture struct {
	store    *memory.Store
	notifier *recordingNotifier
	svc      *PurchaseRequestService
	engine   *ApprovalEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	st.AddUser(repository.User{ID: "u-admin", Name: "Ada", Role: "admin", IsActive: true})
	st.AddUser(repository.User{ID: "u-finance", Name: "Fin", Role: "finance", IsActive: true})
	st.AddUser(repository.User{ID: "u-cfo", Name: "Cleo", Role: "cfo", IsActive: true})

	n := &recordingNotifier{}
	engine := NewApprovalEngine(logger.Nop())
	return &fixture{
		store:    st,
		notifier: n,
		engine:   engine,
		svc:      NewPurchaseRequestService(st, engine, n, logger.Nop()),
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

// addRule stores a role-based USD rule. An empty max means unbounded.
func (f *fixture) addRule(t *testing.T, id string, level int, lo, hi, role string) {
	t.Helper()
	rule := &repository.ApprovalRule{
		ID:           id,
		EntityType:   repository.EntityTypePurchaseRequest,
		Name:         id,
		MinAmount:    dec(lo),
		Currency:     "USD",
		Level:        level,
		ApproverRole: ptr(role),
		IsActive:     true,
	}
	if hi != "" {
		rule.MaxAmount = decimal.NewNullDecimal(dec(hi))
	}
	require.NoError(t, f.store.Rules().Create(context.Background(), rule))
}

// draft creates a USD draft whose single line totals amount.
func (f *fixture) draft(t *testing.T, amount string) *repository.PurchaseRequest {
	t.Helper()
	req, err := f.svc.CreateRequest(context.Background(), &CreateRequestInput{
		RequesterID: "u-requester",
		SupplierID:  ptr("sup-1"),
		Currency:    "usd",
		Items:       []ItemInput{{ProductID: "p-1", Quantity: 1, UnitPrice: dec(amount)}},
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) status(t *testing.T, id string) string {
	t.Helper()
	req, err := f.store.Requests().GetByID(context.Background(), id)
	require.NoError(t, err)
	return req.Status
}
