package client

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-purchase-requests/internal/repository"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakeConn) Publish(subj string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subj)
	f.payloads = append(f.payloads, data)
	return nil
}

func TestDeliverPublishesEvent(t *testing.T) {
	conn := &fakeConn{}
	p := NewNotificationPublisher(conn, "notifications.purchasing", zerolog.Nop())

	err := p.Deliver(context.Background(), &repository.Notification{
		UserID:     "u-1",
		Type:       repository.NotificationApprovalRequired,
		Title:      "Purchase request awaiting approval",
		Message:    "PR-20260101-ABCDEF needs your level 1 approval",
		EntityType: repository.EntityTypePurchaseRequest,
		EntityID:   "pr-1",
		Payload:    map[string]any{"request_number": "PR-20260101-ABCDEF", "total_amount": "1500.00"},
	})
	require.NoError(t, err)

	require.Equal(t, []string{"notifications.purchasing.purchase_request_approval_required"}, conn.subjects)

	var event NotificationEvent
	require.NoError(t, json.Unmarshal(conn.payloads[0], &event))
	assert.Equal(t, []string{"u-1"}, event.Recipients)
	assert.Equal(t, "pr-1", event.ResourceID)
	assert.True(t, event.IsActionable)
	assert.Equal(t, "info", event.Severity)
	assert.Equal(t, "PR-20260101-ABCDEF", event.Payload["request_number"])
	assert.Equal(t, "1500.00", event.Payload["total_amount"])
}

func TestDeliverReturnsPublishError(t *testing.T) {
	conn := &fakeConn{err: fmt.Errorf("nats: connection closed")}
	p := NewNotificationPublisher(conn, "notifications.purchasing", zerolog.Nop())

	err := p.Deliver(context.Background(), &repository.Notification{
		UserID: "u-1", Type: repository.NotificationRequestRejected, EntityID: "pr-1",
	})
	assert.ErrorContains(t, err, "connection closed")
}

func TestDeliverHonoursCancelledContext(t *testing.T) {
	conn := &fakeConn{}
	p := NewNotificationPublisher(conn, "notifications.purchasing", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Deliver(ctx, &repository.Notification{UserID: "u-1", Type: repository.NotificationRequestApproved})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, conn.subjects)
}
