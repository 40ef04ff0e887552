// Package memory is an in-process implementation of repository.Store used by
// tests and the STORE_BACKEND=memory mode.
//
// A single writer lock serializes every unit of work, so InTx sees and
// mutates state atomically. Stored values are copies: callers never hold
// pointers into the store, which lets a transaction snapshot the state by
// cloning the maps and restore the clone on failure.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pesio-ai/be-purchase-requests/internal/errors"
	"github.com/pesio-ai/be-purchase-requests/internal/repository"
)

type state struct {
	rules         map[string]*repository.ApprovalRule
	users         map[string]*repository.User
	requests      map[string]*repository.PurchaseRequest
	items         map[string][]*repository.PurchaseRequestItem
	approvals     map[string]*repository.PurchaseRequestApproval
	orders        map[string]*repository.PurchaseOrder
	notifications map[string]*repository.Notification
	audit         []*repository.AuditEntry
	seq           int64
}

func newState() *state {
	return &state{
		rules:         make(map[string]*repository.ApprovalRule),
		users:         make(map[string]*repository.User),
		requests:      make(map[string]*repository.PurchaseRequest),
		items:         make(map[string][]*repository.PurchaseRequestItem),
		approvals:     make(map[string]*repository.PurchaseRequestApproval),
		orders:        make(map[string]*repository.PurchaseOrder),
		notifications: make(map[string]*repository.Notification),
	}
}

func (s *state) clone() *state {
	return &state{
		rules:         maps.Clone(s.rules),
		users:         maps.Clone(s.users),
		requests:      maps.Clone(s.requests),
		items:         maps.Clone(s.items),
		approvals:     maps.Clone(s.approvals),
		orders:        maps.Clone(s.orders),
		notifications: maps.Clone(s.notifications),
		audit:         slices.Clone(s.audit),
		seq:           s.seq,
	}
}

// next returns a monotonically increasing sequence used to order rows
// created within the same clock tick.
func (s *state) next() int64 {
	s.seq++
	return s.seq
}

// Store is an in-memory repository.Store.
type Store struct {
	mu    sync.RWMutex
	state *state
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{state: newState(), now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddUser seeds the user directory.
func (s *Store) AddUser(u repository.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.users[u.ID] = &u
}

func (s *Store) root() *view { return &view{store: s} }

func (s *Store) Rules() repository.RuleRepository                 { return ruleRepo{s.root()} }
func (s *Store) Users() repository.UserDirectory                  { return userRepo{s.root()} }
func (s *Store) Requests() repository.RequestRepository           { return requestRepo{s.root()} }
func (s *Store) Approvals() repository.ApprovalRepository         { return approvalRepo{s.root()} }
func (s *Store) Orders() repository.OrderRepository               { return orderRepo{s.root()} }
func (s *Store) Notifications() repository.NotificationRepository { return notificationRepo{s.root()} }
func (s *Store) Audit() repository.AuditRepository                { return auditRepo{s.root()} }

// InTx holds the writer lock for the duration of fn and restores the prior
// state when fn fails.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.root().InTx(ctx, fn)
}

// view is either the root store (locks per call) or a transaction (lock held
// by InTx).
type view struct {
	store *Store
	inTx  bool
}

func (v *view) read(fn func(st *state)) {
	if !v.inTx {
		v.store.mu.RLock()
		defer v.store.mu.RUnlock()
	}
	fn(v.store.state)
}

func (v *view) write(fn func(st *state) error) error {
	if !v.inTx {
		v.store.mu.Lock()
		defer v.store.mu.Unlock()
	}
	return fn(v.store.state)
}

func (v *view) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if v.inTx {
		return fn(v)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	v.store.mu.Lock()
	defer v.store.mu.Unlock()

	snapshot := v.store.state.clone()
	if err := fn(&view{store: v.store, inTx: true}); err != nil {
		v.store.state = snapshot
		return err
	}
	return nil
}

func (v *view) Rules() repository.RuleRepository                 { return ruleRepo{v} }
func (v *view) Users() repository.UserDirectory                  { return userRepo{v} }
func (v *view) Requests() repository.RequestRepository           { return requestRepo{v} }
func (v *view) Approvals() repository.ApprovalRepository         { return approvalRepo{v} }
func (v *view) Orders() repository.OrderRepository               { return orderRepo{v} }
func (v *view) Notifications() repository.NotificationRepository { return notificationRepo{v} }
func (v *view) Audit() repository.AuditRepository                { return auditRepo{v} }

func (v *view) now() time.Time { return v.store.now() }

func newID() string { return uuid.NewString() }

// ── rules ────────────────────────────────────────────────────────────────────

type ruleRepo struct{ v *view }

func copyRule(r *repository.ApprovalRule) *repository.ApprovalRule {
	c := *r
	return &c
}

func (r ruleRepo) Create(ctx context.Context, rule *repository.ApprovalRule) error {
	return r.v.write(func(st *state) error {
		if rule.ID == "" {
			rule.ID = newID()
		}
		if _, exists := st.rules[rule.ID]; exists {
			return errors.New(errors.ErrCodeConflict, fmt.Sprintf("approval rule %s already exists", rule.ID))
		}
		now := r.v.now()
		rule.CreatedAt, rule.UpdatedAt = now, now
		st.rules[rule.ID] = copyRule(rule)
		return nil
	})
}

func (r ruleRepo) GetByID(ctx context.Context, id string) (*repository.ApprovalRule, error) {
	var out *repository.ApprovalRule
	r.v.read(func(st *state) {
		if rule, ok := st.rules[id]; ok {
			out = copyRule(rule)
		}
	})
	if out == nil {
		return nil, errors.NotFound("approval_rule", id)
	}
	return out, nil
}

func (r ruleRepo) List(ctx context.Context, filter repository.RuleFilter) ([]*repository.ApprovalRule, error) {
	out := make([]*repository.ApprovalRule, 0)
	r.v.read(func(st *state) {
		for _, rule := range st.rules {
			if filter.EntityType != "" && rule.EntityType != filter.EntityType {
				continue
			}
			if filter.Currency != "" && rule.Currency != filter.Currency {
				continue
			}
			if filter.ActiveOnly && !rule.IsActive {
				continue
			}
			out = append(out, copyRule(rule))
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r ruleRepo) Update(ctx context.Context, rule *repository.ApprovalRule) error {
	return r.v.write(func(st *state) error {
		existing, ok := st.rules[rule.ID]
		if !ok {
			return errors.NotFound("approval_rule", rule.ID)
		}
		rule.CreatedAt = existing.CreatedAt
		rule.UpdatedAt = r.v.now()
		st.rules[rule.ID] = copyRule(rule)
		return nil
	})
}

func (r ruleRepo) Delete(ctx context.Context, id string) error {
	return r.v.write(func(st *state) error {
		if _, ok := st.rules[id]; !ok {
			return errors.NotFound("approval_rule", id)
		}
		for _, a := range st.approvals {
			if a.RuleID == id {
				return errors.New(errors.ErrCodeConflict, "failed to delete approval rule: still referenced")
			}
		}
		delete(st.rules, id)
		return nil
	})
}

// ── users ────────────────────────────────────────────────────────────────────

type userRepo struct{ v *view }

func (r userRepo) FindActiveUserByRole(ctx context.Context, role string) (*repository.User, error) {
	var out *repository.User
	r.v.read(func(st *state) {
		for _, u := range st.users {
			if u.Role != role || !u.IsActive {
				continue
			}
			if out == nil || u.ID < out.ID {
				c := *u
				out = &c
			}
		}
	})
	return out, nil
}

func (r userRepo) GetUser(ctx context.Context, id string) (*repository.User, error) {
	var out *repository.User
	r.v.read(func(st *state) {
		if u, ok := st.users[id]; ok {
			c := *u
			out = &c
		}
	})
	return out, nil
}

// ── requests ─────────────────────────────────────────────────────────────────

type requestRepo struct{ v *view }

func copyItems(items []*repository.PurchaseRequestItem) []*repository.PurchaseRequestItem {
	out := make([]*repository.PurchaseRequestItem, 0, len(items))
	for _, it := range items {
		c := *it
		out = append(out, &c)
	}
	return out
}

func copyRequest(req *repository.PurchaseRequest, items []*repository.PurchaseRequestItem) *repository.PurchaseRequest {
	c := *req
	c.Items = copyItems(items)
	return &c
}

func (r requestRepo) Create(ctx context.Context, req *repository.PurchaseRequest) error {
	return r.v.write(func(st *state) error {
		if req.ID == "" {
			req.ID = newID()
		}
		for _, existing := range st.requests {
			if existing.RequestNumber == req.RequestNumber {
				return errors.New(errors.ErrCodeConflict,
					fmt.Sprintf("failed to create purchase request: number %s already exists", req.RequestNumber))
			}
		}
		now := r.v.now()
		req.Version = 1
		req.CreatedAt, req.UpdatedAt = now, now
		for _, it := range req.Items {
			it.ID = newID()
			it.RequestID = req.ID
		}
		header := copyRequest(req, nil)
		header.Items = nil
		st.requests[req.ID] = header
		st.items[req.ID] = copyItems(req.Items)
		return nil
	})
}

func (r requestRepo) GetByID(ctx context.Context, id string) (*repository.PurchaseRequest, error) {
	var out *repository.PurchaseRequest
	r.v.read(func(st *state) {
		if req, ok := st.requests[id]; ok {
			out = copyRequest(req, st.items[id])
		}
	})
	if out == nil {
		return nil, errors.NotFound("purchase_request", id)
	}
	return out, nil
}

// GetForUpdate needs no extra locking: transactional views already hold the
// writer lock.
func (r requestRepo) GetForUpdate(ctx context.Context, id string) (*repository.PurchaseRequest, error) {
	return r.GetByID(ctx, id)
}

func (r requestRepo) List(ctx context.Context, filter repository.RequestFilter) ([]*repository.PurchaseRequest, int64, error) {
	var matched []*repository.PurchaseRequest
	r.v.read(func(st *state) {
		for _, req := range st.requests {
			if filter.Status != "" && req.Status != filter.Status {
				continue
			}
			if filter.RequesterID != "" && req.RequesterID != filter.RequesterID {
				continue
			}
			matched = append(matched, copyRequest(req, nil))
		}
	})
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	start := min(filter.Offset, len(matched))
	end := len(matched)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, len(matched))
	}
	return matched[start:end], total, nil
}

func (r requestRepo) Update(ctx context.Context, req *repository.PurchaseRequest) error {
	return r.v.write(func(st *state) error {
		existing, ok := st.requests[req.ID]
		if !ok {
			return errors.NotFound("purchase_request", req.ID)
		}
		if existing.Version != req.Version {
			return errors.New(errors.ErrCodeConflict,
				fmt.Sprintf("purchase request %s was modified concurrently", req.ID))
		}
		req.Version++
		req.UpdatedAt = r.v.now()

		updated := *existing
		updated.SupplierID = req.SupplierID
		updated.TotalAmount = req.TotalAmount
		updated.Currency = req.Currency
		updated.Status = req.Status
		updated.Notes = req.Notes
		updated.SubmittedAt = req.SubmittedAt
		updated.ApprovedAt = req.ApprovedAt
		updated.RejectedAt = req.RejectedAt
		updated.PurchaseOrderID = req.PurchaseOrderID
		updated.Version = req.Version
		updated.UpdatedAt = req.UpdatedAt
		st.requests[req.ID] = &updated
		return nil
	})
}

func (r requestRepo) ReplaceItems(ctx context.Context, requestID string, items []*repository.PurchaseRequestItem) error {
	return r.v.write(func(st *state) error {
		if _, ok := st.requests[requestID]; !ok {
			return errors.NotFound("purchase_request", requestID)
		}
		for _, it := range items {
			it.ID = newID()
			it.RequestID = requestID
		}
		st.items[requestID] = copyItems(items)
		return nil
	})
}

func (r requestRepo) Delete(ctx context.Context, id string) error {
	return r.v.write(func(st *state) error {
		if _, ok := st.requests[id]; !ok {
			return errors.NotFound("purchase_request", id)
		}
		delete(st.requests, id)
		delete(st.items, id)
		for aid, a := range st.approvals {
			if a.RequestID == id {
				delete(st.approvals, aid)
			}
		}
		return nil
	})
}

// ── approvals ────────────────────────────────────────────────────────────────

type approvalRepo struct{ v *view }

func copyApproval(a *repository.PurchaseRequestApproval) *repository.PurchaseRequestApproval {
	c := *a
	return &c
}

// approvalOrder sorts by level, then creation, then id.
func approvalOrder(a, b *repository.PurchaseRequestApproval) int {
	if a.Level != b.Level {
		return a.Level - b.Level
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func (r approvalRepo) Create(ctx context.Context, a *repository.PurchaseRequestApproval) error {
	return r.v.write(func(st *state) error {
		if _, ok := st.requests[a.RequestID]; !ok {
			return errors.NotFound("purchase_request", a.RequestID)
		}
		for _, existing := range st.approvals {
			if existing.RequestID == a.RequestID && existing.RuleID == a.RuleID {
				return errors.New(errors.ErrCodeConflict, "failed to create approval: already exists")
			}
		}
		if a.ID == "" {
			// Sequence prefix keeps ids ordered by creation for stable sorting.
			a.ID = fmt.Sprintf("%012d-%s", st.next(), newID())
		}
		a.CreatedAt = r.v.now()
		st.approvals[a.ID] = copyApproval(a)
		return nil
	})
}

func (r approvalRepo) GetByRequestAndRule(ctx context.Context, requestID, ruleID string) (*repository.PurchaseRequestApproval, error) {
	var out *repository.PurchaseRequestApproval
	r.v.read(func(st *state) {
		for _, a := range st.approvals {
			if a.RequestID == requestID && a.RuleID == ruleID {
				out = copyApproval(a)
				return
			}
		}
	})
	return out, nil
}

func (r approvalRepo) ListByRequest(ctx context.Context, requestID string) ([]*repository.PurchaseRequestApproval, error) {
	out := make([]*repository.PurchaseRequestApproval, 0)
	r.v.read(func(st *state) {
		for _, a := range st.approvals {
			if a.RequestID == requestID {
				out = append(out, copyApproval(a))
			}
		}
	})
	slices.SortFunc(out, approvalOrder)
	return out, nil
}

func (r approvalRepo) ListPendingForUser(ctx context.Context, userID string) ([]*repository.PurchaseRequestApproval, error) {
	out := make([]*repository.PurchaseRequestApproval, 0)
	r.v.read(func(st *state) {
		for _, a := range st.approvals {
			if a.ApproverID != userID || a.Status != repository.ApprovalStatusPending {
				continue
			}
			if req, ok := st.requests[a.RequestID]; !ok || req.Status != repository.RequestStatusSubmitted {
				continue
			}
			out = append(out, copyApproval(a))
		}
	})
	slices.SortFunc(out, func(a, b *repository.PurchaseRequestApproval) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r approvalRepo) Update(ctx context.Context, a *repository.PurchaseRequestApproval) error {
	return r.v.write(func(st *state) error {
		existing, ok := st.approvals[a.ID]
		if !ok {
			return errors.NotFound("approval", a.ID)
		}
		updated := *existing
		updated.Status = a.Status
		updated.DecidedAt = a.DecidedAt
		updated.Comment = a.Comment
		st.approvals[a.ID] = &updated
		return nil
	})
}

// ── orders ───────────────────────────────────────────────────────────────────

type orderRepo struct{ v *view }

func copyOrder(o *repository.PurchaseOrder) *repository.PurchaseOrder {
	c := *o
	c.Items = make([]*repository.PurchaseOrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		ic := *it
		c.Items = append(c.Items, &ic)
	}
	return &c
}

func (r orderRepo) Create(ctx context.Context, order *repository.PurchaseOrder) error {
	return r.v.write(func(st *state) error {
		for _, existing := range st.orders {
			if existing.OrderNumber == order.OrderNumber {
				return errors.New(errors.ErrCodeConflict, "failed to create purchase order: already exists")
			}
			if existing.SourceRequestID == order.SourceRequestID {
				return errors.New(errors.ErrCodeConflict, "failed to create purchase order: request already converted")
			}
		}
		if order.ID == "" {
			order.ID = newID()
		}
		order.CreatedAt = r.v.now()
		for _, it := range order.Items {
			it.ID = newID()
			it.OrderID = order.ID
		}
		st.orders[order.ID] = copyOrder(order)
		return nil
	})
}

func (r orderRepo) GetByID(ctx context.Context, id string) (*repository.PurchaseOrder, error) {
	var out *repository.PurchaseOrder
	r.v.read(func(st *state) {
		if o, ok := st.orders[id]; ok {
			out = copyOrder(o)
		}
	})
	if out == nil {
		return nil, errors.NotFound("purchase_order", id)
	}
	return out, nil
}

// ── notifications ────────────────────────────────────────────────────────────

type notificationRepo struct{ v *view }

func (r notificationRepo) Create(ctx context.Context, n *repository.Notification) error {
	return r.v.write(func(st *state) error {
		if n.ID == "" {
			n.ID = fmt.Sprintf("%012d-%s", st.next(), newID())
		}
		n.CreatedAt = r.v.now()
		c := *n
		c.Payload = nil
		st.notifications[n.ID] = &c
		return nil
	})
}

func (r notificationRepo) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]*repository.Notification, error) {
	out := make([]*repository.Notification, 0)
	r.v.read(func(st *state) {
		for _, n := range st.notifications {
			if n.UserID != userID || (unreadOnly && n.IsRead) {
				continue
			}
			c := *n
			out = append(out, &c)
		}
	})
	slices.SortFunc(out, func(a, b *repository.Notification) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (r notificationRepo) MarkRead(ctx context.Context, userID, id string) error {
	return r.v.write(func(st *state) error {
		n, ok := st.notifications[id]
		if !ok || n.UserID != userID {
			return errors.NotFound("notification", id)
		}
		c := *n
		c.IsRead = true
		st.notifications[id] = &c
		return nil
	})
}

// ── audit ────────────────────────────────────────────────────────────────────

type auditRepo struct{ v *view }

func (r auditRepo) Append(ctx context.Context, entry *repository.AuditEntry) error {
	return r.v.write(func(st *state) error {
		entry.ID = fmt.Sprintf("%012d", st.next())
		entry.PerformedAt = r.v.now()
		c := *entry
		c.Metadata = maps.Clone(entry.Metadata)
		st.audit = append(st.audit, &c)
		return nil
	})
}

func (r auditRepo) ListByRequest(ctx context.Context, requestID string) ([]*repository.AuditEntry, error) {
	out := make([]*repository.AuditEntry, 0)
	r.v.read(func(st *state) {
		for _, e := range st.audit {
			if e.RequestID == requestID {
				c := *e
				c.Metadata = maps.Clone(e.Metadata)
				out = append(out, &c)
			}
		}
	})
	return out, nil
}

var (
	_ repository.Store = (*Store)(nil)
	_ repository.Store = (*view)(nil)
)
