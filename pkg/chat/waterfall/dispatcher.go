package waterfall

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"persona-chat-be/pkg/llm"
)

// ErrAllTiersExhausted is returned when every configured tier failed.
// Callers surface it as a recoverable "generation unavailable" failure.
var ErrAllTiersExhausted = errors.New("all generation tiers exhausted")

// ErrStreamInterrupted is returned when a tier failed after fragments were
// already forwarded to the caller. Fragments cannot be unsent, so the
// dispatcher does not fall through to later tiers in that case.
var ErrStreamInterrupted = errors.New("generation stream interrupted mid-reply")

// FailureReason classifies one tier-local failure.
type FailureReason string

const (
	FailureTimeout         FailureReason = "timeout"
	FailureTransportError  FailureReason = "transport-error"
	FailureBackendRejected FailureReason = "backend-rejected"
	FailureEmptyResponse   FailureReason = "empty-response"
)

// Tier is one configured generation backend: a priority slot with its own
// transport and per-call timeout. Order in the dispatcher slice is priority
// order; it is fixed at process start and never reordered dynamically.
type Tier struct {
	Label    string
	Provider llm.Provider
	Timeout  time.Duration
}

// Dispatcher drives the tier waterfall: try each tier once, in order,
// bounded by that tier's timeout, stopping at the first non-empty reply.
type Dispatcher struct {
	tiers  []Tier
	logger *log.Logger
}

// Result is the winning tier's reply.
type Result struct {
	Text      string
	TierLabel string
	Streamed  bool
}

func NewDispatcher(tiers []Tier, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		tiers:  tiers,
		logger: logger,
	}
}

// Tiers exposes the configured tier list (read-only use).
func (d *Dispatcher) Tiers() []Tier {
	return d.tiers
}

type attemptOutcome struct {
	text string
	err  error
}

// Dispatch tries each tier exactly once in priority order. When onFragment is
// non-nil the winning tier's fragments are forwarded as they arrive. A late
// reply from an abandoned attempt is discarded, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, history []llm.Message, onFragment llm.FragmentFunc) (*Result, error) {
	if len(d.tiers) == 0 {
		return nil, ErrAllTiersExhausted
	}

	for _, tier := range d.tiers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		outcome, streamed := d.attempt(ctx, tier, history, onFragment)
		if outcome.err == nil && outcome.text != "" {
			d.logf("[WATERFALL] Tier %s succeeded (streamed=%v, %d chars)", tier.Label, streamed, len(outcome.text))
			return &Result{
				Text:      outcome.text,
				TierLabel: tier.Label,
				Streamed:  streamed,
			}, nil
		}

		err := outcome.err
		if err == nil {
			err = llm.ErrEmptyResponse
		}
		reason := Classify(err)
		d.logf("[WATERFALL] Tier %s failed (%s): %v", tier.Label, reason, err)

		// Fragments already reached the caller: falling through to another
		// tier would garble the reply they have seen.
		if streamed {
			return nil, ErrStreamInterrupted
		}
	}

	return nil, ErrAllTiersExhausted
}

// attempt runs one tier bounded by its timeout. The provider call runs on its
// own goroutine with a buffered result channel, so a response that arrives
// after the deadline is dropped on the floor instead of being observed.
func (d *Dispatcher) attempt(ctx context.Context, tier Tier, history []llm.Message, onFragment llm.FragmentFunc) (attemptOutcome, bool) {
	attemptCtx, cancel := context.WithTimeout(ctx, tier.Timeout)
	defer cancel()

	var forwarded atomic.Bool
	var fragment llm.FragmentFunc
	if onFragment != nil {
		fragment = func(text string) {
			// Fragments after the deadline belong to an abandoned attempt.
			if attemptCtx.Err() != nil {
				return
			}
			forwarded.Store(true)
			onFragment(text)
		}
	}

	results := make(chan attemptOutcome, 1)
	go func() {
		var text string
		var err error
		if fragment != nil {
			text, err = tier.Provider.ChatStream(attemptCtx, history, fragment)
		} else {
			text, err = tier.Provider.Chat(attemptCtx, history)
		}
		results <- attemptOutcome{text: text, err: err}
	}()

	select {
	case outcome := <-results:
		return outcome, forwarded.Load()
	case <-attemptCtx.Done():
		return attemptOutcome{err: attemptCtx.Err()}, forwarded.Load()
	}
}

// Classify maps a tier-local error onto the failure taxonomy.
func Classify(err error) FailureReason {
	var backendErr *llm.BackendError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, llm.ErrEmptyResponse):
		return FailureEmptyResponse
	case errors.As(err, &backendErr):
		return FailureBackendRejected
	default:
		return FailureTransportError
	}
}

func (d *Dispatcher) logf(format string, args ...interface{}) {
	if d.logger != nil {
		d.logger.Printf(format, args...)
	}
}
