package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/nerrad567/uc-remote-core/internal/hub"
	"github.com/nerrad567/uc-remote-core/internal/model"
)

// Config tunes retries and repeat pacing.
type Config struct {
	// MaxAttempts is the total number of calls per request, including the first.
	MaxAttempts int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	// RepeatDelay separates the calls of a repeated command.
	RepeatDelay time.Duration
}

// DefaultConfig returns the default retry and pacing settings.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    4,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2,
		RepeatDelay:    250 * time.Millisecond,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = max(d.MaxBackoff, c.InitialBackoff)
	}
	if c.Multiplier < 1 {
		c.Multiplier = d.Multiplier
	}
	if c.RepeatDelay <= 0 {
		c.RepeatDelay = d.RepeatDelay
	}
	return c
}

// Kind names a command family.
type Kind string

// Command families.
const (
	KindButton        Kind = "button"
	KindIR            Kind = "ir"
	KindSystem        Kind = "system"
	KindDockCharging  Kind = "dock_charging"
	KindActivityStart Kind = "activity_start"
	KindActivityStop  Kind = "activity_stop"
	KindFirmware      Kind = "firmware_update"
)

// Outcome is what a successful dispatch did.
type Outcome int

const (
	// OutcomeSent means every request was accepted by the hub.
	OutcomeSent Outcome = iota + 1

	// OutcomeAlreadyInState means the cached state already matched and
	// nothing was sent.
	OutcomeAlreadyInState
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeAlreadyInState:
		return "already_in_state"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Result describes a completed dispatch.
type Result struct {
	Kind    Kind    `json:"kind"`
	Outcome Outcome `json:"outcome"`

	// Target is the resolved id the command was sent to.
	Target string `json:"target,omitempty"`

	// Calls is the number of requests the hub accepted.
	Calls int `json:"calls"`

	// Attempts counts every request sent, retries included.
	Attempts int `json:"attempts"`
}

// Logger is the logging interface used by the dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer is told about every finished dispatch. code is "ok" or the
// hub.ErrorCode of the failure.
type Observer interface {
	ObserveDispatch(kind Kind, code string, attempts int, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveDispatch(Kind, string, int, time.Duration) {}

// Observers fans one dispatch report out to several observers. Nil entries
// are skipped.
func Observers(obs ...Observer) Observer {
	var list multiObserver
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	return list
}

type multiObserver []Observer

func (m multiObserver) ObserveDispatch(kind Kind, code string, attempts int, elapsed time.Duration) {
	for _, o := range m {
		o.ObserveDispatch(kind, code, attempts, elapsed)
	}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithObserver sets the observer.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		if o != nil {
			d.observer = o
		}
	}
}

// Dispatcher sends commands to one hub.
type Dispatcher struct {
	api      *hub.API
	model    *model.Model
	cfg      Config
	logger   Logger
	observer Observer
}

// New creates a dispatcher that resolves names against m and sends
// through api.
func New(api *hub.API, m *model.Model, cfg Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		api:      api,
		model:    m,
		cfg:      cfg.withDefaults(),
		logger:   noopLogger{},
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Config returns the effective configuration.
func (d *Dispatcher) Config() Config {
	return d.cfg
}

// request is one hub call.
type request func(ctx context.Context) error

// run sends req repeat times (at least once), paced by RepeatDelay, and
// reports the result to the observer.
func (d *Dispatcher) run(ctx context.Context, kind Kind, target string, repeat int, req request) (Result, error) {
	start := time.Now()
	res := Result{Kind: kind, Outcome: OutcomeSent, Target: target}

	err := d.repeat(ctx, repeat, req, &res)

	code := hub.ErrorCode(err)
	d.observer.ObserveDispatch(kind, code, res.Attempts, time.Since(start))
	if err != nil {
		d.logger.Warn("command failed",
			"kind", kind, "target", target, "calls", res.Calls, "attempts", res.Attempts, "error", err)
		return res, err
	}
	d.logger.Info("command sent",
		"kind", kind, "target", target, "calls", res.Calls, "attempts", res.Attempts)
	return res, nil
}

func (d *Dispatcher) repeat(ctx context.Context, n int, req request, res *Result) error {
	if n < 1 {
		n = 1
	}

	var limiter *rate.Limiter
	if n > 1 {
		limiter = rate.NewLimiter(rate.Every(d.cfg.RepeatDelay), 1)
	}

	for i := 0; i < n; i++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return fmt.Errorf("%w: repeat %d of %d not sent: %w", hub.ErrTimeout, i+1, n, err)
			}
		}
		if err := d.send(ctx, req, res); err != nil {
			if n > 1 {
				return fmt.Errorf("repeat %d of %d: %w", i+1, n, err)
			}
			return err
		}
		res.Calls++
	}
	return nil
}

// send performs one request with retries.
func (d *Dispatcher) send(ctx context.Context, req request, res *Result) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", hub.ErrTimeout, err)
	}

	backoff := d.cfg.InitialBackoff
	for attempt := 1; ; attempt++ {
		res.Attempts++
		err := req(ctx)
		if err == nil {
			return nil
		}

		classified := hub.ClassifyCommand(ctx, err)
		if errors.Is(classified, hub.ErrTimeout) || !errors.Is(classified, hub.ErrUnreachable) {
			return classified
		}
		if attempt >= d.cfg.MaxAttempts {
			return fmt.Errorf("giving up after %d attempts: %w", attempt, classified)
		}

		d.logger.Debug("retrying command", "attempt", attempt, "backoff", backoff, "error", err)

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: retry abandoned after %d attempts: %w", hub.ErrTimeout, attempt, err)
		}

		backoff = min(time.Duration(float64(backoff)*d.cfg.Multiplier), d.cfg.MaxBackoff)
	}
}

// fail records a dispatch that failed before any request was sent.
func (d *Dispatcher) fail(kind Kind, err error) (Result, error) {
	d.observer.ObserveDispatch(kind, hub.ErrorCode(err), 0, 0)
	d.logger.Debug("command rejected", "kind", kind, "error", err)
	return Result{Kind: kind}, err
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", hub.ErrNotFound, fmt.Sprintf(format, args...))
}
