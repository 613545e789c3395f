// Package delivery implements fan-out of domain events to registered
// webhook subscribers: one signed HTTP POST per matching active
// subscription, each with its own retry budget, none blocking the others.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stayhq/stayhq/internal/signature"
	"github.com/stayhq/stayhq/internal/subscriptions"
	"go.uber.org/zap"
)

// Request headers carried on every outbound webhook call.
const (
	HeaderSignature = "X-StayHQ-Signature"
	HeaderEvent     = "X-StayHQ-Event"
)

// Registry is the subscription surface the engine needs. All health
// mutation goes through these two update operations; the engine never
// writes subscription rows directly.
type Registry interface {
	ListActiveForEvent(ctx context.Context, eventType string) ([]*subscriptions.WebhookSubscription, error)
	RecordSuccess(ctx context.Context, id uuid.UUID) error
	RecordFailure(ctx context.Context, id uuid.UUID) error
	RecordDelivery(ctx context.Context, d *subscriptions.DeliveryAttempt) error
}

// MetricsRecorder is an optional callback for recording delivery outcomes.
type MetricsRecorder func(success bool)

// Config bounds one delivery: total attempts per subscriber, the base
// backoff between attempts (doubling each retry), and the per-call HTTP
// timeout.
type Config struct {
	MaxAttempts int
	BackoffBase time.Duration
	Timeout     time.Duration
}

// Envelope is the canonical webhook request body. The signature is
// computed over these exact bytes.
type Envelope struct {
	EventType string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Outcome is the final result of delivering one event to one subscriber.
type Outcome struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	AgentName      string    `json:"agent_name"`
	Delivered      bool      `json:"delivered"`
	Attempts       int       `json:"attempts"`
	StatusCode     int       `json:"status_code,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// Report aggregates per-subscriber outcomes for one dispatched event.
type Report struct {
	EventType string    `json:"event_type"`
	Outcomes  []Outcome `json:"outcomes"`
}

// NoSubscribers reports whether zero subscriptions matched the event.
// Informational, not an error.
func (r *Report) NoSubscribers() bool { return len(r.Outcomes) == 0 }

// AllFailed reports whether every matched subscriber exhausted its retries.
func (r *Report) AllFailed() bool {
	if len(r.Outcomes) == 0 {
		return false
	}
	for _, o := range r.Outcomes {
		if o.Delivered {
			return false
		}
	}
	return true
}

// PartialFailure reports whether some subscribers succeeded and some failed.
func (r *Report) PartialFailure() bool {
	var ok, failed bool
	for _, o := range r.Outcomes {
		if o.Delivered {
			ok = true
		} else {
			failed = true
		}
	}
	return ok && failed
}

// Engine delivers events to webhook subscribers.
type Engine struct {
	registry   Registry
	httpClient *http.Client
	cfg        Config
	onMetrics  MetricsRecorder
	logger     *zap.Logger
}

// NewEngine creates a delivery Engine. Zero config fields fall back to
// 3 attempts, 2s base backoff, 30s call timeout.
func NewEngine(registry Registry, cfg Config, logger *zap.Logger) *Engine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Engine{
		registry:   registry,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger,
	}
}

// SetMetricsRecorder configures the metrics callback.
func (e *Engine) SetMetricsRecorder(fn MetricsRecorder) {
	e.onMetrics = fn
}

// Deliver fans one event out to every active subscription interested in
// eventType and waits for all of them. Subscribers are delivered to
// concurrently; a hanging endpoint is bounded by the per-call timeout
// and cannot delay the others. The returned Report is never nil on a
// nil error.
func (e *Engine) Deliver(ctx context.Context, eventType string, data map[string]any) (*Report, error) {
	subs, err := e.registry.ListActiveForEvent(ctx, eventType)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}

	report := &Report{EventType: eventType}
	if len(subs) == 0 {
		return report, nil
	}

	env := Envelope{
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	outcomes := make([]Outcome, len(subs))
	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub *subscriptions.WebhookSubscription) {
			defer wg.Done()
			outcomes[i] = e.deliverOne(ctx, sub, eventType, body)
		}(i, sub)
	}
	wg.Wait()

	report.Outcomes = outcomes
	return report, nil
}

// deliverOne runs the per-subscriber retry loop. It records every HTTP
// attempt in the delivery log, but updates the subscription's health
// exactly once: RecordSuccess on the first 2xx, or RecordFailure after
// the whole retry budget is spent.
func (e *Engine) deliverOne(ctx context.Context, sub *subscriptions.WebhookSubscription, eventType string, body []byte) Outcome {
	sig := signature.Sign(sub.SharedSecret, body)

	out := Outcome{
		SubscriptionID: sub.ID,
		AgentName:      sub.AgentName,
	}

	backoff := e.cfg.BackoffBase
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				out.Error = ctx.Err().Error()
				out.Attempts = attempt - 1
				return out
			}
			backoff *= 2
		}

		statusCode, errMsg := e.post(ctx, sub.WebhookURL, eventType, body, sig)
		success := statusCode >= 200 && statusCode < 300

		if err := e.registry.RecordDelivery(ctx, &subscriptions.DeliveryAttempt{
			SubscriptionID: sub.ID,
			EventType:      eventType,
			StatusCode:     statusCode,
			Attempt:        attempt,
			Success:        success,
			ErrorMessage:   errMsg,
		}); err != nil {
			e.logger.Warn("delivery: record attempt", zap.Error(err))
		}

		if e.onMetrics != nil {
			e.onMetrics(success)
		}

		out.Attempts = attempt
		out.StatusCode = statusCode
		out.Error = errMsg

		if success {
			out.Delivered = true
			if err := e.registry.RecordSuccess(ctx, sub.ID); err != nil {
				e.logger.Warn("delivery: record success", zap.Error(err))
			}
			return out
		}

		e.logger.Warn("delivery: attempt failed",
			zap.String("subscription_id", sub.ID.String()),
			zap.String("event_type", eventType),
			zap.Int("attempt", attempt),
			zap.Int("status", statusCode),
			zap.String("error", errMsg),
		)
	}

	// Retry budget spent: one failure for the whole delivery, not one
	// per attempt. Deactivation at the threshold happens inside the
	// registry's atomic update.
	if err := e.registry.RecordFailure(ctx, sub.ID); err != nil {
		e.logger.Warn("delivery: record failure", zap.Error(err))
	}
	return out
}

// post performs one HTTP POST. A zero status code means a transport
// failure (timeout, refused connection, DNS).
func (e *Engine) post(ctx context.Context, url, eventType string, body []byte, sig string) (int, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err.Error()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, sig)
	req.Header.Set(HeaderEvent, eventType)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return 0, err.Error()
	}
	defer resp.Body.Close()
	io.ReadAll(io.LimitReader(resp.Body, 1024)) //nolint:errcheck

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, ""
	}
	return resp.StatusCode, fmt.Sprintf("HTTP %d", resp.StatusCode)
}
