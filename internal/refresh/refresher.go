// Package refresh keeps the latest ledger report and recomputes it whenever
// the store reports a change.
//
// Every refresh re-reads the full ledger. Fetches may overlap and finish out
// of order; a result is applied only when it comes from the most recently
// initiated fetch, so a slow stale read never overwrites a newer one.
// Readers get an immutable *State swapped in atomically.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"kharcha/internal/ledger"
	"kharcha/internal/log"
	"kharcha/internal/notify"
)

// ErrSuperseded is returned by Refresh when a newer fetch was started before
// this one finished. The result was discarded.
var ErrSuperseded = errors.New("refresh superseded by a newer fetch")

// Loader reads every ledger collection at one point in time.
type Loader interface {
	LoadLedger(ctx context.Context) (ledger.Ledger, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (ledger.Ledger, error)

func (f LoaderFunc) LoadLedger(ctx context.Context) (ledger.Ledger, error) { return f(ctx) }

// Observer receives refresh outcomes, typically for metrics.
type Observer interface {
	RefreshApplied(d time.Duration, r ledger.Report)
	RefreshSuperseded()
	RefreshFailed(d time.Duration)
}

// State is one published view of the ledger. It is never mutated after
// publication.
type State struct {
	Ledger      ledger.Ledger
	Report      ledger.Report
	Generation  uint64
	RefreshedAt time.Time
	// Err is the error of the latest applied fetch. When set, Ledger and
	// Report are the last good values, or zero if none.
	Err error
}

// Stale reports whether the latest fetch failed.
func (s *State) Stale() bool { return s.Err != nil }

type Refresher struct {
	loader    Loader
	observer  Observer
	initiated atomic.Uint64
	state     atomic.Pointer[State]

	mu        sync.Mutex
	listeners []func(*State)
	inflight  sync.WaitGroup
}

type Option func(*Refresher)

// WithObserver reports refresh outcomes to o.
func WithObserver(o Observer) Option {
	return func(r *Refresher) { r.observer = o }
}

func New(loader Loader, opts ...Option) *Refresher {
	r := &Refresher{loader: loader}
	for _, opt := range opts {
		opt(r)
	}
	r.state.Store(&State{Report: ledger.Summarize(ledger.Ledger{})})
	return r
}

// Current returns the latest published state. It never returns nil.
func (r *Refresher) Current() *State {
	return r.state.Load()
}

// OnUpdate registers fn to be called after every published state.
func (r *Refresher) OnUpdate(fn func(*State)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Refresh fetches the ledger and publishes a new state. It returns
// ErrSuperseded if a later fetch started while this one was in flight.
// A fetch error is published alongside the previous good report and
// returned.
func (r *Refresher) Refresh(ctx context.Context) (*State, error) {
	gen := r.initiated.Add(1)
	start := time.Now()

	l, err := r.loader.LoadLedger(ctx)
	elapsed := time.Since(start)

	if gen != r.initiated.Load() {
		slog.DebugContext(ctx, "Discarding superseded refresh",
			log.FieldComponent, log.ComponentRefresh,
			log.FieldGeneration, gen)
		if r.observer != nil {
			r.observer.RefreshSuperseded()
		}
		return nil, ErrSuperseded
	}

	var next *State
	if err != nil {
		prev := r.state.Load()
		next = &State{
			Ledger:      prev.Ledger,
			Report:      prev.Report,
			Generation:  gen,
			RefreshedAt: prev.RefreshedAt,
			Err:         err,
		}
	} else {
		next = &State{
			Ledger:      l,
			Report:      ledger.Summarize(l),
			Generation:  gen,
			RefreshedAt: time.Now().UTC(),
		}
	}

	if !r.publish(next) {
		if r.observer != nil {
			r.observer.RefreshSuperseded()
		}
		return nil, ErrSuperseded
	}

	if err != nil {
		slog.ErrorContext(ctx, "Ledger refresh failed, keeping last snapshot",
			log.FieldComponent, log.ComponentRefresh,
			log.FieldGeneration, gen,
			log.FieldError, err)
		if r.observer != nil {
			r.observer.RefreshFailed(elapsed)
		}
	} else {
		slog.DebugContext(ctx, "Ledger snapshot refreshed",
			log.FieldComponent, log.ComponentRefresh,
			log.FieldGeneration, gen,
			log.FieldDuration, elapsed.Milliseconds())
		if r.observer != nil {
			r.observer.RefreshApplied(elapsed, next.Report)
		}
	}

	r.notify(next)
	return next, err
}

// publish swaps in s unless a state from a later fetch is already visible.
func (r *Refresher) publish(s *State) bool {
	for {
		cur := r.state.Load()
		if cur.Generation > s.Generation {
			return false
		}
		if r.state.CompareAndSwap(cur, s) {
			return true
		}
	}
}

func (r *Refresher) notify(s *State) {
	r.mu.Lock()
	fns := append([]func(*State){}, r.listeners...)
	r.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

// Trigger starts a refresh in the background.
func (r *Refresher) Trigger(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		_, _ = r.Refresh(ctx)
	}()
}

// Wait blocks until every triggered refresh has returned.
func (r *Refresher) Wait() {
	r.inflight.Wait()
}

// Run performs an initial refresh, then refreshes on every change event from
// src and, when interval > 0, on a timer. It returns when ctx is done.
func (r *Refresher) Run(ctx context.Context, src notify.Source, interval time.Duration) error {
	r.Trigger(ctx)

	if src != nil {
		unsubscribe, err := src.Subscribe(ctx, func(ev notify.Event) {
			slog.DebugContext(ctx, "Change received, refreshing",
				log.FieldComponent, log.ComponentRefresh,
				log.FieldCollection, ev.Collection,
				log.FieldOperation, ev.Op)
			r.Trigger(ctx)
		})
		if err != nil {
			return err
		}
		defer unsubscribe()
	}

	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			r.Trigger(ctx)
		}
	}
}
