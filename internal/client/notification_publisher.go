package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/pesio-ai/be-purchase-requests/internal/repository"
)

// NotificationPublisher publishes purchasing workflow notifications to NATS
// for consumption by the platform notifications service.
//
// Subject convention: <prefix>.<notification type>, e.g.
// notifications.purchasing.purchase_request_approved.
type NotificationPublisher struct {
	conn   publisher
	prefix string
	log    zerolog.Logger
}

// publisher is the subset of *nats.Conn used here.
type publisher interface {
	Publish(subj string, data []byte) error
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventType    string         `json:"event_type"`
	Recipients   []string       `json:"recipients"`
	Title        string         `json:"title"`
	Message      string         `json:"message"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	IsActionable bool           `json:"is_actionable,omitempty"`
	Severity     string         `json:"severity"`
	Category     string         `json:"category"`
	OccurredAt   time.Time      `json:"occurred_at"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// Connect dials NATS and returns the connection.
func Connect(url, name string, log zerolog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats: disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats: reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

// NewNotificationPublisher creates a publisher on conn (typically *nats.Conn).
func NewNotificationPublisher(conn publisher, subjectPrefix string, log zerolog.Logger) *NotificationPublisher {
	return &NotificationPublisher{conn: conn, prefix: subjectPrefix, log: log}
}

// Name identifies the sink in metrics.
func (p *NotificationPublisher) Name() string { return "nats" }

// Deliver publishes n. Errors are returned for the dispatcher to count; they
// never reach the workflow.
func (p *NotificationPublisher) Deliver(ctx context.Context, n *repository.Notification) error {
	if p.conn == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	event := &NotificationEvent{
		EventType:    n.Type,
		Recipients:   []string{n.UserID},
		Title:        n.Title,
		Message:      n.Message,
		ResourceType: n.EntityType,
		ResourceID:   n.EntityID,
		IsActionable: n.Type == repository.NotificationApprovalRequired,
		Severity:     severity(n.Type),
		Category:     "purchasing_approval",
		OccurredAt:   time.Now().UTC(),
		Payload:      n.Payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notification: failed to marshal event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", p.prefix, n.Type)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("notification: failed to publish to %s: %w", subject, err)
	}

	p.log.Debug().
		Str("subject", subject).
		Str("entity_id", n.EntityID).
		Str("user_id", n.UserID).
		Msg("notification: event published")
	return nil
}

func severity(eventType string) string {
	if eventType == repository.NotificationRequestRejected {
		return "warning"
	}
	return "info"
}
