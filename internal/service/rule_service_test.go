package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-purchase-requests/internal/errors"
	"github.com/pesio-ai/be-purchase-requests/internal/logger"
	"github.com/pesio-ai/be-purchase-requests/internal/repository"
	"github.com/pesio-ai/be-purchase-requests/internal/repository/memory"
)

func TestBuildRuleValidation(t *testing.T) {
	ceiling := dec("10")
	tests := []struct {
		name  string
		in    RuleInput
		field string
	}{
		{"missing name", RuleInput{Level: 1, Currency: "USD", ApproverRole: ptr("admin")}, "name"},
		{"level zero", RuleInput{Name: "n", Currency: "USD", ApproverRole: ptr("admin")}, "level"},
		{"negative min", RuleInput{Name: "n", Level: 1, MinAmount: dec("-1"), Currency: "USD", ApproverRole: ptr("admin")}, "min_amount"},
		{"max below min", RuleInput{Name: "n", Level: 1, MinAmount: dec("20"), MaxAmount: &ceiling, Currency: "USD", ApproverRole: ptr("admin")}, "max_amount"},
		{"bad currency", RuleInput{Name: "n", Level: 1, Currency: "DOLLAR", ApproverRole: ptr("admin")}, "currency"},
		{"sub-cent min", RuleInput{Name: "n", Level: 1, MinAmount: dec("1000.005"), Currency: "USD", ApproverRole: ptr("admin")}, "min_amount"},
		{"sub-cent max", RuleInput{Name: "n", Level: 1, MaxAmount: ptr(dec("999.999")), Currency: "USD", ApproverRole: ptr("admin")}, "max_amount"},
		{"no approver", RuleInput{Name: "n", Level: 1, Currency: "USD"}, "approver_role"},
		{"both approvers", RuleInput{Name: "n", Level: 1, Currency: "USD", ApproverRole: ptr("admin"), ApproverID: ptr("u-1")}, "approver_role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildRule(&tt.in)
			var appErr *errors.Error
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, errors.ErrCodeInvalidInput, appErr.Code)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestRuleLifecycle(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := NewRuleService(st, logger.Nop())

	ceiling := dec("1000")
	rule, err := svc.CreateRule(ctx, &RuleInput{
		Name: "Small purchases", MinAmount: decimal.Zero, MaxAmount: &ceiling,
		Currency: "usd", Level: 1, ApproverRole: ptr("admin"),
	})
	require.NoError(t, err)
	assert.Equal(t, repository.EntityTypePurchaseRequest, rule.EntityType)
	assert.Equal(t, "USD", rule.Currency)
	assert.True(t, rule.IsActive)
	assert.True(t, rule.MaxAmount.Valid)

	updated, err := svc.UpdateRule(ctx, rule.ID, &RuleInput{
		Name: "Small purchases", MinAmount: decimal.Zero, Currency: "USD", Level: 2,
		ApproverID: ptr("u-1"), IsActive: ptr(false),
	})
	require.NoError(t, err)
	assert.False(t, updated.MaxAmount.Valid)
	assert.Equal(t, rule.CreatedAt, updated.CreatedAt)

	got, err := svc.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Level)
	assert.Nil(t, got.ApproverRole)
	assert.Equal(t, "u-1", *got.ApproverID)

	active, err := svc.ListRules(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.ListRules(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, svc.DeleteRule(ctx, rule.ID))
	_, err = svc.GetRule(ctx, rule.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))

	_, err = svc.UpdateRule(ctx, "missing", &RuleInput{Name: "x", Level: 1, Currency: "USD", ApproverRole: ptr("admin")})
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}

func TestDeleteReferencedRuleConflicts(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, "r-1", 1, "0", "", "admin")
	req := f.draft(t, "10")
	_, err := f.svc.Submit(context.Background(), req.ID, "u-requester")
	require.NoError(t, err)

	err = NewRuleService(f.store, logger.Nop()).DeleteRule(context.Background(), "r-1")
	assert.True(t, errors.IsCode(err, errors.ErrCodeConflict))
}

func TestNotificationInbox(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inbox := NewNotificationService(f.store)

	n := &repository.Notification{UserID: "u-admin", Type: repository.NotificationApprovalRequired, EntityType: repository.EntityTypePurchaseRequest, EntityID: "pr-1"}
	require.NoError(t, f.store.Notifications().Create(ctx, n))

	unread, err := inbox.ListNotifications(ctx, "u-admin", true)
	require.NoError(t, err)
	require.Len(t, unread, 1)

	require.NoError(t, inbox.MarkNotificationRead(ctx, "u-admin", n.ID))
	unread, err = inbox.ListNotifications(ctx, "u-admin", true)
	require.NoError(t, err)
	assert.Empty(t, unread)

	_, err = inbox.ListNotifications(ctx, "", false)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))
}
