package transfer

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/metrics"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "executor").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "executor").Logger()
}

// StatusFunc receives router notifications. A non-nil return tells the router to stop issuing steps.
type StatusFunc func(RouterEvent) error

// Router builds and executes the multi-step route of a request, calling onStatus as steps progress.
// It returns nil only when every step completed.
type Router interface {
	Execute(ctx context.Context, req *Request, onStatus StatusFunc) error
}

// ProgressFunc receives mapped progress events in order.
type ProgressFunc func(ProgressEvent)

// State of an execution.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Outcome summarizes a settled execution.
type Outcome struct {
	Request   *Request
	State     State
	Reason    Reason
	Err       error
	Steps     int
	StartedAt time.Time
	Duration  time.Duration
}

// Recorder persists settled executions.
type Recorder interface {
	Record(ctx context.Context, outcome Outcome) error
}

// Executor drives one transfer at a time through the router.
// There is no automatic retry: any failure settles the execution as failed.
type Executor struct {
	router   Router
	recorder Recorder

	mu    sync.Mutex
	state State
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRecorder stores every settled execution through r.
func WithRecorder(r Recorder) ExecutorOption {
	return func(e *Executor) {
		e.recorder = r
	}
}

// NewExecutor creates an idle executor.
func NewExecutor(router Router, opts ...ExecutorOption) *Executor {
	e := &Executor{router: router}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the state of the current or last execution.
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// execution tracks the progress events of a single run.
type execution struct {
	mu         sync.Mutex
	settled    bool
	steps      int
	onProgress ProgressFunc
}

func (x *execution) notify(ctx context.Context, ev RouterEvent) error {
	if ctx.Err() != nil {
		return ErrCancelled
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	// events after settlement are dropped
	if x.settled {
		return ErrCancelled
	}
	pe := EventFromRouter(ev)
	x.steps++
	metrics.RecordProgress(string(pe.Kind))
	if x.onProgress != nil {
		x.onProgress(pe)
	}
	return nil
}

func (x *execution) settle() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.settled = true
	return x.steps
}

// Execute runs req and blocks until it settles. Progress events reach onProgress in order and
// strictly before Execute returns. Once ctx is done the router is told to stop and the execution
// settles as failed with ReasonCancelled; steps already broadcast are not rolled back.
// Failures are returned as *ExecutionError. ErrBusy is returned if an execution is running.
func (e *Executor) Execute(ctx context.Context, req *Request, onProgress ProgressFunc) error {
	if req == nil {
		return &ValidationError{Field: "request", Message: "request is required"}
	}

	e.mu.Lock()
	if e.state == StateRunning {
		e.mu.Unlock()
		return ErrBusy
	}
	e.state = StateRunning
	e.mu.Unlock()

	start := time.Now()
	x := &execution{onProgress: onProgress}

	log.Info().
		Str("from", req.Origin.String()).
		Str("to", req.Destination.String()).
		Str("exchange", req.Venue.String()).
		Str("amount", req.Amount).
		Msg("Transfer execution started")

	var runErr error
	if ctx.Err() != nil {
		runErr = ErrCancelled
	} else {
		runErr = e.router.Execute(ctx, req, func(ev RouterEvent) error {
			return x.notify(ctx, ev)
		})
	}
	steps := x.settle()

	outcome := Outcome{
		Request:   req,
		State:     StateSucceeded,
		Steps:     steps,
		StartedAt: start,
		Duration:  time.Since(start),
	}
	var result error
	if runErr != nil {
		reason := ReasonRouterFailure
		if errors.Is(runErr, ErrCancelled) || ctx.Err() != nil {
			reason = ReasonCancelled
		}
		result = &ExecutionError{Reason: reason, Step: steps, Err: runErr}
		outcome.State = StateFailed
		outcome.Reason = reason
		outcome.Err = result
	}

	e.mu.Lock()
	e.state = outcome.State
	e.mu.Unlock()

	metrics.RecordExecution(outcome.State.String(), string(outcome.Reason), outcome.Duration.Seconds())
	event := log.Info()
	if result != nil {
		event = log.Error().Err(runErr).Str("reason", string(outcome.Reason))
	}
	event.
		Str("state", outcome.State.String()).
		Int("steps", steps).
		Dur("duration", outcome.Duration).
		Msg("Transfer execution settled")

	if e.recorder != nil {
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := e.recorder.Record(recordCtx, outcome); err != nil {
			log.Warn().Err(err).Msg("Failed to record transfer outcome")
		}
		cancel()
	}

	return result
}
