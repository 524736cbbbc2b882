// Package notification fans push notifications out to user device tokens in
// bounded batches. Delivery is best effort: failures are logged and counted,
// never returned to the caller.
package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"unitedhelp/internal/notification/metrics"
	id "unitedhelp/pkg/domain"
	pstrings "unitedhelp/pkg/platform/strings"
)

// MaxBatchSize is the gateway's limit on tokens per multicast call.
const MaxBatchSize = 500

const (
	defaultBatchTimeout = 10 * time.Second
	defaultConcurrency  = 4
)

type NotifyType string

const (
	NotifySubscribe   NotifyType = "subscribe"
	NotifyUnsubscribe NotifyType = "unsubscribe"
	NotifyFinish      NotifyType = "finish"
	NotifyCancel      NotifyType = "cancel"
	NotifyActivate    NotifyType = "activate"
	NotifyStart       NotifyType = "start"
)

// Message is a push notification with its data payload.
type Message struct {
	Title          string
	Body           string
	NotifyType     NotifyType
	ToProfile      string
	EventID        id.EventID
	EventName      string
	ActorName      string
	ActorProfileID id.ProfileID
	Image          string
}

// Data renders the payload fields delivered alongside the notification.
func (m Message) Data() map[string]string {
	data := map[string]string{
		"notify_type":      string(m.NotifyType),
		"to_profile":       m.ToProfile,
		"event_id":         m.EventID.String(),
		"event_name":       m.EventName,
		"actor_name":       m.ActorName,
		"actor_profile_id": m.ActorProfileID.String(),
	}
	if m.Image != "" {
		data["image"] = m.Image
	}
	return data
}

// Recipient is a user and their whitespace-delimited device token list.
type Recipient struct {
	UserID id.UserID
	Tokens string
}

// Result summarises one fan-out.
type Result struct {
	SuccessCount  int
	FailureCount  int
	TotalTokens   int
	Batches       int
	FailedBatches int
}

// BatchResult is the per-token outcome a gateway reports for one batch.
type BatchResult struct {
	SuccessCount int
	FailureCount int
}

// Gateway delivers one multicast batch. A returned error means the whole
// batch was rejected; otherwise the counts say how many tokens were accepted.
type Gateway interface {
	Send(ctx context.Context, tokens []string, msg Message) (BatchResult, error)
}

type Notifier struct {
	gateway      Gateway
	batchSize    int
	batchTimeout time.Duration
	concurrency  int
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
}

type Option func(*Notifier)

func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Notifier) {
		n.metrics = m
	}
}

// WithBatchSize lowers the batch size. Values outside 1..MaxBatchSize are ignored.
func WithBatchSize(size int) Option {
	return func(n *Notifier) {
		if size >= 1 && size <= MaxBatchSize {
			n.batchSize = size
		}
	}
}

func WithBatchTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.batchTimeout = d
		}
	}
}

// WithConcurrency bounds how many batches are in flight at once.
func WithConcurrency(limit int) Option {
	return func(n *Notifier) {
		if limit > 0 {
			n.concurrency = limit
		}
	}
}

func New(gateway Gateway, opts ...Option) *Notifier {
	n := &Notifier{
		gateway:      gateway,
		batchSize:    MaxBatchSize,
		batchTimeout: defaultBatchTimeout,
		concurrency:  defaultConcurrency,
		logger:       slog.Default(),
		tracer:       otel.Tracer("unitedhelp/notification"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify sends msg to every distinct token of recipients. Users without
// tokens are skipped. It waits for all batches and never fails.
func (n *Notifier) Notify(ctx context.Context, recipients []Recipient, msg Message) Result {
	tokens := collectTokens(recipients)
	batches := chunk(tokens, n.batchSize)
	result := Result{TotalTokens: len(tokens), Batches: len(batches)}
	if len(batches) == 0 {
		return result
	}

	ctx, span := n.tracer.Start(ctx, "notification.Notify", trace.WithAttributes(
		attribute.String("notify_type", string(msg.NotifyType)),
		attribute.Int("tokens", len(tokens)),
		attribute.Int("batches", len(batches)),
	))
	defer span.End()

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(n.concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			sent, err := n.sendBatch(ctx, batch, msg)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.FailureCount += len(batch)
				result.FailedBatches++
				n.logger.WarnContext(ctx, "push batch failed",
					"batch", i,
					"tokens", len(batch),
					"notify_type", string(msg.NotifyType),
					"event_id", msg.EventID.String(),
					"error", err,
				)
				return nil
			}
			success := min(max(sent.SuccessCount, 0), len(batch))
			result.SuccessCount += success
			result.FailureCount += len(batch) - success
			if success < len(batch) {
				n.logger.DebugContext(ctx, "push batch partially delivered",
					"batch", i,
					"tokens", len(batch),
					"success", success,
					"notify_type", string(msg.NotifyType),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	span.SetAttributes(
		attribute.Int("success", result.SuccessCount),
		attribute.Int("failure", result.FailureCount),
	)
	if n.metrics != nil {
		n.metrics.ObserveResult(string(msg.NotifyType), result.SuccessCount, result.FailureCount, result.FailedBatches)
	}
	n.logger.InfoContext(ctx, "push fan-out complete",
		"notify_type", string(msg.NotifyType),
		"event_id", msg.EventID.String(),
		"total_tokens", result.TotalTokens,
		"success", result.SuccessCount,
		"failure", result.FailureCount,
		"batches", result.Batches,
	)
	return result
}

func (n *Notifier) sendBatch(ctx context.Context, tokens []string, msg Message) (BatchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, n.batchTimeout)
	defer cancel()
	start := time.Now()
	sent, err := n.gateway.Send(ctx, tokens, msg)
	if n.metrics != nil {
		n.metrics.ObserveBatchDuration(time.Since(start).Seconds())
	}
	return sent, err
}

// collectTokens flattens the recipients' token lists in order, dropping duplicates.
func collectTokens(recipients []Recipient) []string {
	var all []string
	for _, r := range recipients {
		all = append(all, pstrings.SplitFields(r.Tokens)...)
	}
	return pstrings.DedupeAndTrim(all)
}

func chunk(tokens []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(tokens); start += size {
		end := min(start+size, len(tokens))
		out = append(out, tokens[start:end])
	}
	return out
}
