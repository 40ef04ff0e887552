package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pesio-ai/be-purchase-requests/internal/errors"
)

// NoApplicableRule is returned by Submit when no active rule covers the
// request amount in its currency.
func NoApplicableRule(amount decimal.Decimal, currency string) *errors.Error {
	return errors.New(errors.ErrCodeNoApplicableRule,
		fmt.Sprintf("no approval rule applies to %s %s", amount.StringFixed(2), currency))
}

// NoAvailableApprover is returned when a rule's role has no active holder.
func NoAvailableApprover(role string) *errors.Error {
	return errors.New(errors.ErrCodeNoAvailableApprover,
		fmt.Sprintf("no active user holds role %q", role))
}

func InvalidState(from, op string) *errors.Error {
	return errors.New(errors.ErrCodeInvalidState,
		fmt.Sprintf("cannot %s a purchase request in status %s", op, from))
}

func ApprovalNotFound(level int, approverID string) *errors.Error {
	return errors.New(errors.ErrCodeApprovalNotFound,
		fmt.Sprintf("no pending approval at level %d for approver %s", level, approverID))
}

func EmptyRequest(id string) *errors.Error {
	return errors.New(errors.ErrCodeEmptyRequest,
		fmt.Sprintf("purchase request %s has no items", id))
}
