package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"cinehub/internal/metrics"
)

type BreakerSettings struct {
	Name        string
	MaxRequests uint32        // trial requests allowed while half-open
	Interval    time.Duration // closed-state count reset period
	Timeout     time.Duration // open duration before probing
	MinRequests uint32
	FailureRate float64
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:        "gateway",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		MinRequests: 10,
		FailureRate: 0.6,
	}
}

// Breaker decorates a Gateway with a circuit breaker. Only transport-level
// failures count against the breaker; constraint violations, cancellations
// and missing rows are ordinary answers. While open, calls fail fast with
// ErrUnavailable.
type Breaker struct {
	next   Gateway
	cb     *gobreaker.CircuitBreaker[any]
	name   string
	logger *slog.Logger
}

func NewBreaker(next Gateway, st BreakerSettings, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	metrics.GatewayBreakerState.WithLabelValues(st.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        st.Name,
		MaxRequests: st.MaxRequests,
		Interval:    st.Interval,
		Timeout:     st.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < st.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= st.FailureRate
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !countsAsFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("gateway_breaker_state_change", "name", name, "from", from.String(), "to", to.String())
			metrics.GatewayBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
	return &Breaker{next: next, cb: cb, name: st.Name, logger: logger}
}

func countsAsFailure(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, ErrNotFound),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return -1
}

// State reports the breaker state for health endpoints.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func (b *Breaker) execute(op Op, fn func() (any, error)) (any, error) {
	res, err := b.cb.Execute(fn)
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.GatewayRequests.WithLabelValues(string(op), "rejected").Inc()
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	case err != nil:
		metrics.GatewayRequests.WithLabelValues(string(op), "failure").Inc()
		return nil, err
	}
	metrics.GatewayRequests.WithLabelValues(string(op), "success").Inc()
	return res, nil
}

func call[T any](b *Breaker, op Op, fn func() (T, error)) (T, error) {
	res, err := b.execute(op, func() (any, error) { return fn() })
	if err != nil {
		var zero T
		return zero, err
	}
	typed, _ := res.(T)
	return typed, nil
}

func (b *Breaker) List(ctx context.Context, table string, filter Filter, opts ListOptions) ([]Row, error) {
	return call(b, OpList, func() ([]Row, error) { return b.next.List(ctx, table, filter, opts) })
}

func (b *Breaker) GetOne(ctx context.Context, table string, filter Filter) (Row, error) {
	return call(b, OpGetOne, func() (Row, error) { return b.next.GetOne(ctx, table, filter) })
}

func (b *Breaker) Insert(ctx context.Context, table string, row Row) (Row, error) {
	return call(b, OpInsert, func() (Row, error) { return b.next.Insert(ctx, table, row) })
}

func (b *Breaker) Upsert(ctx context.Context, table string, row Row, conflictKey []string) (Row, error) {
	return call(b, OpUpsert, func() (Row, error) { return b.next.Upsert(ctx, table, row, conflictKey) })
}

func (b *Breaker) Update(ctx context.Context, table string, filter Filter, values Row) (int64, error) {
	return call(b, OpUpdate, func() (int64, error) { return b.next.Update(ctx, table, filter, values) })
}

func (b *Breaker) Delete(ctx context.Context, table string, filter Filter) (int64, error) {
	return call(b, OpDelete, func() (int64, error) { return b.next.Delete(ctx, table, filter) })
}

func (b *Breaker) Count(ctx context.Context, table string, filter Filter) (int64, error) {
	return call(b, OpCount, func() (int64, error) { return b.next.Count(ctx, table, filter) })
}

// Subscribe is passed through; the change feed has its own reconnect policy.
func (b *Breaker) Subscribe(ctx context.Context, table string) (Subscription, error) {
	return b.next.Subscribe(ctx, table)
}
