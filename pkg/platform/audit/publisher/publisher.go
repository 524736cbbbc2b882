// Package publisher delivers audit events to the audit store and any
// additional sinks (Kafka). Emission is synchronous by default; WithAsyncBuffer
// moves persistence onto a background goroutine that drains on Close.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	id "unitedhelp/pkg/domain"
	audit "unitedhelp/pkg/platform/audit"
)

var errBufferFull = errors.New("audit buffer full")

// Sink receives a copy of every persisted event. Sink failures are logged, never returned.
type Sink interface {
	Append(ctx context.Context, event audit.Event) error
}

type Publisher struct {
	store  audit.Store
	sinks  []Sink
	logger *slog.Logger

	buffer    int
	queue     chan audit.Event
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous persistence with a queue of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.buffer = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithSink adds a secondary destination such as a Kafka topic.
func WithSink(sink Sink) Option {
	return func(p *Publisher) {
		if sink != nil {
			p.sinks = append(p.sinks, sink)
		}
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer > 0 {
		p.queue = make(chan audit.Event, p.buffer)
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Emit records an event. A zero timestamp is set to now and a missing category
// is derived from the action.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if p.queue == nil {
		return p.persist(ctx, event)
	}
	select {
	case p.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit event dropped", "action", event.Action, "reason", "buffer_full")
		}
		return errBufferFull
	}
}

// List returns events recorded for a user.
func (p *Publisher) List(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	return p.store.ListByUser(ctx, userID)
}

// Close stops the background worker after draining queued events.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.queue != nil {
			close(p.queue)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for event := range p.queue {
		if err := p.persist(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("failed to persist audit event", "action", event.Action, "error", err)
		}
	}
}

func (p *Publisher) persist(ctx context.Context, event audit.Event) error {
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	for _, sink := range p.sinks {
		if err := sink.Append(ctx, event); err != nil && p.logger != nil {
			p.logger.WarnContext(ctx, "audit sink append failed", "action", event.Action, "error", err)
		}
	}
	return nil
}
