package trigger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/sos-responder/internal/domain/sos"
	"github.com/oshokin/sos-responder/internal/logger"
	"github.com/oshokin/sos-responder/internal/service/escalation"
)

var (
	// ErrClosed is returned for alerts dispatched after Wait was called.
	ErrClosed = errors.New("dispatcher is closed")

	errPanicked = errors.New("escalation panicked")
)

// Handler escalates one alert.
type Handler interface {
	HandleAlertCreated(ctx context.Context, alert *sos.Alert) (*escalation.Result, error)
}

// Dispatcher fans alert-created triggers out to goroutines.
type Dispatcher struct {
	// base carries the logger and values, never cancellation.
	base context.Context
	// handler does the work.
	handler Handler
	// timeout bounds one escalation attempt, zero means unbounded.
	timeout time.Duration
	// attempts is the retry budget for transient failures, at least one.
	attempts int
	// backoff is the pause before the first retry, doubled after each one.
	backoff time.Duration
	// mu guards closed and wg.Add.
	mu sync.Mutex
	// closed is set by Wait.
	closed bool
	// wg counts running escalations.
	wg sync.WaitGroup
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithRetry runs an escalation up to attempts times while it fails with a
// transient error, pausing backoff before the first retry and twice as long
// before each next one.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(d *Dispatcher) {
		d.attempts = max(attempts, 1)
		d.backoff = max(backoff, 0)
	}
}

// New returns a dispatcher. Values of ctx are inherited, its cancellation is not.
// Without WithRetry every escalation runs once.
func New(ctx context.Context, handler Handler, timeout time.Duration, options ...Option) *Dispatcher {
	d := &Dispatcher{
		base:     context.WithoutCancel(ctx),
		handler:  handler,
		timeout:  timeout,
		attempts: 1,
	}

	for _, option := range options {
		option(d)
	}

	return d
}

// Dispatch starts escalating alert. The returned channel receives the
// handler's error, nil on success, and is then closed.
func (d *Dispatcher) Dispatch(alert *sos.Alert) <-chan error {
	done := make(chan error, 1)

	d.mu.Lock()

	if d.closed {
		d.mu.Unlock()

		done <- ErrClosed
		close(done)

		return done
	}

	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer close(done)

		done <- d.run(alert)
	}()

	return done
}

func (d *Dispatcher) run(alert *sos.Alert) error {
	ctx := logger.WithName(d.base, "trigger")
	backoff := d.backoff

	for attempt := 1; ; attempt++ {
		err := d.attempt(ctx, alert)
		if err == nil {
			return nil
		}

		if attempt >= d.attempts || errors.Is(err, errPanicked) || !sos.Kind(err).Retryable() {
			logger.ErrorKV(ctx, "Escalation failed",
				"alert_id", alertID(alert),
				"attempts", attempt,
				"kind", sos.Kind(err),
				"error", err)

			return err
		}

		logger.WarnKV(ctx, "Escalation failed, retrying",
			"alert_id", alertID(alert),
			"attempt", attempt,
			"backoff", backoff,
			"error", err)

		time.Sleep(backoff)
		backoff *= 2
	}
}

func (d *Dispatcher) attempt(ctx context.Context, alert *sos.Alert) (err error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorKV(ctx, "Escalation panicked", "panic", r)
			err = fmt.Errorf("%w: %v", errPanicked, r)
		}
	}()

	result, err := d.handler.HandleAlertCreated(ctx, alert)
	if err != nil {
		return err
	}

	logger.DebugKV(ctx, "Escalation finished", "alert_id", alert.ID, "outcome", result.Outcome)

	return nil
}

// Wait stops accepting alerts and blocks until running escalations finish.
func (d *Dispatcher) Wait() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
}

func alertID(alert *sos.Alert) string {
	if alert == nil {
		return ""
	}

	return alert.ID
}
