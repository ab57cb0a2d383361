/*
Package model coordinates lazy initialization of expensive backends such as
a local summarization model.

A Loader moves through UNLOADED -> LOADING -> READY or ERROR. Callers that
arrive while a load is in flight wait for that same attempt, so the init
function runs at most once per attempt. A failed attempt is not retried
automatically; the next Load after ERROR starts a fresh attempt.
*/
package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/khanglvm/kimo/internal/logger"
)

// State is the lifecycle state of a Loader.
type State int

const (
	Unloaded State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "UNLOADED"
	case Loading:
		return "LOADING"
	case Ready:
		return "READY"
	case Failed:
		return "ERROR"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ProgressFunc receives load progress in [0,1] along with a status line.
type ProgressFunc func(fraction float64, status string)

// InitFunc builds the value. It should report progress through report and
// honour ctx.
type InitFunc[T any] func(ctx context.Context, report ProgressFunc) (T, error)

// CacheHook lets a loader reuse a previously built value. Lookup returning
// ok short-circuits init; Store is called after a successful init.
type CacheHook[T any] interface {
	Lookup(ctx context.Context, name string) (T, bool)
	Store(ctx context.Context, name string, v T)
}

// attempt is one in-flight or finished load. done is closed when value/err
// are final.
type attempt[T any] struct {
	done    chan struct{}
	value   T
	err     error
	waiters int
}

// Loader coalesces concurrent loads of a single named value.
type Loader[T any] struct {
	name     string
	init     InitFunc[T]
	cache    CacheHook[T]
	progress ProgressFunc
	log      logger.Logger

	mu      sync.Mutex
	state   State
	current *attempt[T]
}

// Option configures a Loader.
type Option[T any] func(*Loader[T])

// WithCache sets a cache hook consulted before init.
func WithCache[T any](hook CacheHook[T]) Option[T] {
	return func(l *Loader[T]) { l.cache = hook }
}

// WithProgress sets the progress callback.
func WithProgress[T any](fn ProgressFunc) Option[T] {
	return func(l *Loader[T]) { l.progress = fn }
}

// WithLogger sets the logger.
func WithLogger[T any](log logger.Logger) Option[T] {
	return func(l *Loader[T]) { l.log = log }
}

// NewLoader creates a Loader in the UNLOADED state.
func NewLoader[T any](name string, init InitFunc[T], opts ...Option[T]) *Loader[T] {
	l := &Loader[T]{
		name:  name,
		init:  init,
		log:   logger.NewNop(),
		state: Unloaded,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name returns the loader name.
func (l *Loader[T]) Name() string {
	return l.name
}

// State returns the current state.
func (l *Loader[T]) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Load returns the value, starting an attempt if none is in flight.
// Waiting is bounded by ctx; cancelling one waiter does not cancel the
// attempt that others are waiting on.
func (l *Loader[T]) Load(ctx context.Context) (T, error) {
	l.mu.Lock()
	switch l.state {
	case Ready, Loading:
		a := l.current
		a.waiters++
		l.mu.Unlock()
		return l.wait(ctx, a)
	}

	// UNLOADED or ERROR: start a fresh attempt.
	a := &attempt[T]{done: make(chan struct{}), waiters: 1}
	l.current = a
	l.state = Loading
	l.mu.Unlock()

	go l.run(context.WithoutCancel(ctx), a)

	return l.wait(ctx, a)
}

// Reset drops a READY or ERROR value so the next Load starts over. It is a
// no-op while a load is in flight.
func (l *Loader[T]) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == Loading {
		return
	}
	l.state = Unloaded
	l.current = nil
}

// waiting returns how many Load calls joined the current attempt.
func (l *Loader[T]) waiting() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return 0
	}
	return l.current.waiters
}

func (l *Loader[T]) wait(ctx context.Context, a *attempt[T]) (T, error) {
	select {
	case <-a.done:
		return a.value, a.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (l *Loader[T]) run(ctx context.Context, a *attempt[T]) {
	defer close(a.done)

	value, err := l.build(ctx)

	l.mu.Lock()
	a.value, a.err = value, err
	if err != nil {
		l.state = Failed
	} else {
		l.state = Ready
	}
	l.mu.Unlock()
}

func (l *Loader[T]) build(ctx context.Context) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loader %s panicked: %v", l.name, r)
		}
	}()

	if l.cache != nil {
		if v, ok := l.cache.Lookup(ctx, l.name); ok {
			l.log.Debug("model loaded from cache", logger.String("model", l.name))
			l.report(1, "loaded from cache")
			return v, nil
		}
	}

	l.report(0, "loading "+l.name)
	value, err = l.init(ctx, l.report)
	if err != nil {
		l.log.Warn("model load failed", logger.String("model", l.name), logger.Error(err))
		return value, err
	}
	l.report(1, "ready")

	if l.cache != nil {
		l.cache.Store(ctx, l.name, value)
	}
	l.log.Info("model ready", logger.String("model", l.name))
	return value, nil
}

func (l *Loader[T]) report(fraction float64, status string) {
	if l.progress != nil {
		l.progress(fraction, status)
	}
}
