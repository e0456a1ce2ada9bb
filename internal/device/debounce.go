package device

import (
	"context"
	"sync"
	"time"
)

// DefaultDebounceWindow is the trailing-edge window for bulb writes.
const DefaultDebounceWindow = 500 * time.Millisecond

// Debouncer collapses bursts of calls sharing a key into the last one.
//
// Each Do resets the key's timer. When the timer fires, only the most recent
// function runs, and its error is returned to every caller collapsed into it.
// Cancel and Close drop pending calls and release their callers with
// ErrCancelled.
//
// Thread Safety: All methods are safe for concurrent use.
type Debouncer struct {
	window time.Duration

	mu      sync.Mutex
	pending map[string]*pendingCall
	closed  bool
}

type pendingCall struct {
	fn      func(context.Context) error
	ctx     context.Context
	timer   *time.Timer
	waiters []chan error
}

// NewDebouncer creates a debouncer. A window of zero or less disables
// debouncing: Do runs fn immediately.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingCall),
	}
}

// Do schedules fn under key and blocks until the collapsed call has run or
// ctx is done. The call itself runs detached from ctx cancellation so a
// caller that gives up early does not abort the shared request.
func (d *Debouncer) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	if d.window <= 0 {
		return fn(ctx)
	}

	done := make(chan error, 1)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrCancelled
	}
	p, ok := d.pending[key]
	if !ok {
		p = &pendingCall{}
		d.pending[key] = p
		p.timer = time.AfterFunc(d.window, func() { d.fire(key, p) })
	} else {
		p.timer.Reset(d.window)
	}
	p.fn = fn
	p.ctx = ctx
	p.waiters = append(p.waiters, done)
	d.mu.Unlock()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Debouncer) fire(key string, p *pendingCall) {
	d.mu.Lock()
	if d.pending[key] != p {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	fn, ctx, waiters := p.fn, p.ctx, p.waiters
	d.mu.Unlock()

	err := fn(context.WithoutCancel(ctx))
	for _, w := range waiters {
		w <- err
	}
}

// Pending reports whether a call is waiting under key.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Cancel drops the pending call under key, if any.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	p, ok := d.pending[key]
	if ok {
		delete(d.pending, key)
		p.timer.Stop()
	}
	d.mu.Unlock()

	if ok {
		release(p.waiters)
	}
}

// Close drops every pending call. Later Do calls return ErrCancelled.
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	dropped := d.pending
	d.pending = make(map[string]*pendingCall)
	for _, p := range dropped {
		p.timer.Stop()
	}
	d.mu.Unlock()

	for _, p := range dropped {
		release(p.waiters)
	}
}

func release(waiters []chan error) {
	for _, w := range waiters {
		w <- ErrCancelled
	}
}
