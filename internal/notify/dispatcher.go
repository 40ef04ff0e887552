// Package notify delivers workflow notifications off the request path.
//
// The Dispatcher owns a bounded queue drained by a single worker. Notify
// never blocks: a full or closed queue drops the notification and counts it.
// Each queued notification is handed to every Sink with a per-delivery
// timeout; sink failures are logged and never reach the caller.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/pesio-ai/be-purchase-requests/internal/logger"
	"github.com/pesio-ai/be-purchase-requests/internal/metrics"
	"github.com/pesio-ai/be-purchase-requests/internal/repository"
)

// Sink is one delivery target.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n *repository.Notification) error
}

// Config sizes the dispatcher.
type Config struct {
	QueueSize       int
	DeliveryTimeout time.Duration
}

// Dispatcher fans notifications out to sinks asynchronously.
type Dispatcher struct {
	queue   chan *repository.Notification
	sinks   []Sink
	timeout time.Duration
	log     *logger.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewDispatcher starts the worker. Close must be called to stop it.
func NewDispatcher(cfg Config, log *logger.Logger, sinks ...Sink) *Dispatcher {
	size := cfg.QueueSize
	if size <= 0 {
		size = 1
	}
	timeout := cfg.DeliveryTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	d := &Dispatcher{
		queue:   make(chan *repository.Notification, size),
		sinks:   sinks,
		timeout: timeout,
		log:     log,
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Notify queues n for delivery without blocking.
func (d *Dispatcher) Notify(n *repository.Notification) {
	d.enqueue(n)
}

func (d *Dispatcher) enqueue(n *repository.Notification) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.drop(n, "dispatcher closed")
		return false
	}
	select {
	case d.queue <- n:
		metrics.NotificationQueueDepth.Set(float64(len(d.queue)))
		return true
	default:
		d.drop(n, "queue full")
		return false
	}
}

func (d *Dispatcher) drop(n *repository.Notification, reason string) {
	metrics.NotificationsDropped.Inc()
	d.log.Warn().
		Str("reason", reason).
		Str("type", n.Type).
		Str("user_id", n.UserID).
		Str("entity_id", n.EntityID).
		Msg("Notification dropped")
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for n := range d.queue {
		metrics.NotificationQueueDepth.Set(float64(len(d.queue)))
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n *repository.Notification) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := sink.Deliver(ctx, n)
		cancel()

		if err != nil {
			metrics.NotificationsDelivered.WithLabelValues(sink.Name(), "error").Inc()
			d.log.Warn().Err(err).
				Str("sink", sink.Name()).
				Str("type", n.Type).
				Str("user_id", n.UserID).
				Msg("Notification delivery failed")
			continue
		}
		metrics.NotificationsDelivered.WithLabelValues(sink.Name(), "ok").Inc()
	}
}

// Close stops accepting notifications and waits for queued ones to be
// delivered, or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StoreSink persists notifications as in-app inbox entries.
type StoreSink struct {
	repo repository.NotificationRepository
}

func NewStoreSink(repo repository.NotificationRepository) *StoreSink {
	return &StoreSink{repo: repo}
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) Deliver(ctx context.Context, n *repository.Notification) error {
	// Sinks share n; the repository assigns ids on a copy.
	c := *n
	return s.repo.Create(ctx, &c)
}
