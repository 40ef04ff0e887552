package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "purchase_request pr-1 not found", NotFound("purchase_request", "pr-1").Error())
	assert.Equal(t, "currency: must be a 3-letter ISO code", InvalidInput("currency", "must be a 3-letter ISO code").Error())

	wrapped := Wrap(stderrors.New("connection reset"), ErrCodeInternal, "failed to list rules")
	assert.Equal(t, "failed to list rules: connection reset", wrapped.Error())
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "ignored"))
}

func TestCodeMatching(t *testing.T) {
	base := New(ErrCodeInvalidState, "request is not draft")
	chained := fmt.Errorf("submit: %w", base)

	assert.True(t, IsCode(chained, ErrCodeInvalidState))
	assert.False(t, IsCode(chained, ErrCodeNotFound))
	assert.Equal(t, ErrCodeInvalidState, CodeOf(chained))
	assert.Equal(t, ErrCodeInternal, CodeOf(stderrors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeApprovalNotFound, http.StatusNotFound},
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeInvalidState, http.StatusConflict},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeNoApplicableRule, http.StatusUnprocessableEntity},
		{ErrCodeNoAvailableApprover, http.StatusUnprocessableEntity},
		{ErrCodeEmptyRequest, http.StatusUnprocessableEntity},
		{ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.code))
		})
	}
}
