package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fast3r/internal/logging"
	"fast3r/internal/types"
)

// =============================================================================
// OPERATION MODEL
// =============================================================================

// Operation is a provider-side long-running video generation request.
type Operation struct {
	Name string
	Done bool
	// Err carries the provider-reported operation error once Done.
	Err error
	// VideoURI is the first generated video's location once Done.
	VideoURI string
	// VideoBytes is set when the provider returns the video inline.
	VideoBytes []byte
	MIMEType   string
}

// RefreshFunc re-fetches an operation's state from the provider.
type RefreshFunc func(ctx context.Context, op *Operation) (*Operation, error)

// Fetcher downloads a generated media URI.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) (data []byte, mimeType string, err error)
}

// State is a poller lifecycle stage.
type State string

const (
	StateSubmitted State = "submitted"
	StatePolling   State = "polling"
	StateResolved  State = "resolved"
	StateFailed    State = "failed"
)

// Event is reported to the observer on every transition.
type Event struct {
	Operation string
	State     State
	Attempt   int
	Elapsed   time.Duration
	Err       error
}

// Clock abstracts waiting so tests do not sleep.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// =============================================================================
// POLLER
// =============================================================================

// PollerConfig configures a Poller.
type PollerConfig struct {
	Interval time.Duration
	Timeout  time.Duration
	Fetcher  Fetcher
	Store    *Store
	Clock    Clock
	Observer func(Event)
}

// Poller drives a submitted operation to a resolved local handle.
type Poller struct {
	interval time.Duration
	timeout  time.Duration
	fetcher  Fetcher
	store    *Store
	clock    Clock
	observer func(Event)
}

// NewPoller creates a poller. Zero interval and timeout fall back to 10s and 10m.
func NewPoller(cfg PollerConfig) *Poller {
	p := &Poller{
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		fetcher:  cfg.Fetcher,
		store:    cfg.Store,
		clock:    cfg.Clock,
		observer: cfg.Observer,
	}
	if p.interval <= 0 {
		p.interval = 10 * time.Second
	}
	if p.timeout <= 0 {
		p.timeout = 10 * time.Minute
	}
	if p.clock == nil {
		p.clock = realClock{}
	}
	if p.store == nil {
		p.store = NewStore()
	}
	return p
}

// Store returns the store resolved handles live in.
func (p *Poller) Store() *Store { return p.store }

// Await polls op until it is done, then fetches the first video into the
// store and returns its handle. The poll timeout bounds every provider call
// made on the way, not only the waits between them. Cancellation stops
// polling immediately.
func (p *Poller) Await(ctx context.Context, op *Operation, refresh RefreshFunc) (string, error) {
	const opName = "media.Await"
	if op == nil {
		return "", types.NewError(types.KindMalformedProviderResponse, opName, errors.New("nil operation"))
	}

	pctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := p.clock.Now()
	deadline := start.Add(p.timeout)
	attempt := 0
	p.emit(Event{Operation: op.Name, State: StateSubmitted})

	fail := func(err error) (string, error) {
		p.emit(Event{Operation: op.Name, State: StateFailed, Attempt: attempt, Elapsed: p.clock.Now().Sub(start), Err: err})
		return "", err
	}
	timeout := func() error {
		return types.NewError(types.KindTimeout, opName,
			fmt.Errorf("operation %s not done after %s", op.Name, p.timeout))
	}
	// halt ends an interrupted poll: the caller's cancellation is returned as
	// is, the poll deadline as a Timeout.
	halt := func() (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return fail(timeout())
	}

	for !op.Done {
		if pctx.Err() != nil {
			return halt()
		}
		if !p.clock.Now().Before(deadline) {
			return fail(timeout())
		}

		select {
		case <-pctx.Done():
			return halt()
		case <-p.clock.After(p.interval):
		}

		attempt++
		next, err := refresh(pctx, op)
		if err != nil {
			if pctx.Err() != nil {
				return halt()
			}
			return fail(err)
		}
		if next == nil {
			return fail(types.NewError(types.KindMalformedProviderResponse, opName, errors.New("refresh returned no operation")))
		}
		op = next
		logging.Audit().PollTick(op.Name, attempt, op.Done)
		p.emit(Event{Operation: op.Name, State: StatePolling, Attempt: attempt, Elapsed: p.clock.Now().Sub(start)})
	}

	handle, err := p.resolve(pctx, op)
	if err != nil {
		if pctx.Err() != nil {
			return halt()
		}
		return fail(err)
	}
	logging.Media("operation %s resolved after %d polls", op.Name, attempt)
	p.emit(Event{Operation: op.Name, State: StateResolved, Attempt: attempt, Elapsed: p.clock.Now().Sub(start)})
	return handle, nil
}

func (p *Poller) resolve(ctx context.Context, op *Operation) (string, error) {
	const opName = "media.resolve"
	if op.Err != nil {
		return "", types.NewError(types.KindGenerationFailed, opName, op.Err)
	}
	if len(op.VideoBytes) > 0 {
		return p.store.Put(op.VideoBytes, mimeOr(op.MIMEType, "video/mp4")), nil
	}
	if op.VideoURI == "" {
		return "", types.NewError(types.KindGenerationFailed, opName, errors.New("operation finished without a video"))
	}
	if p.fetcher == nil {
		return "", types.NewError(types.KindProviderUnavailable, opName, errors.New("no media fetcher configured"))
	}

	data, mimeType, err := p.fetcher.Fetch(ctx, op.VideoURI)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", types.NewError(types.KindGenerationFailed, opName, errors.New("fetched video is empty"))
	}
	return p.store.Put(data, mimeOr(mimeType, mimeOr(op.MIMEType, "video/mp4"))), nil
}

func (p *Poller) emit(ev Event) {
	logging.MediaDebug("operation %s: %s (attempt %d)", ev.Operation, ev.State, ev.Attempt)
	if p.observer != nil {
		p.observer(ev)
	}
}

func mimeOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
