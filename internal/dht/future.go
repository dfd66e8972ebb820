package dht

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/hivekeeper/internal/model"
)

// Future is the asynchronous result of a facade operation. It completes
// exactly once. For GetGlobal a nil Content with a nil Err means the entry
// is absent.
type Future struct {
	done chan struct{}

	mu        sync.Mutex
	completed bool
	content   model.Content
	err       error
	callbacks []func(model.Content, error)
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// FailedFuture returns a future that is already completed with err. Facade
// decorators use it to reject a call without touching the network.
func FailedFuture(err error) *Future {
	f := newFuture()
	f.complete(nil, err)
	return f
}

func (f *Future) complete(c model.Content, err error) {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return
	}
	f.completed = true
	f.content = c
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(c, err)
	}
}

// Done is closed once the operation has completed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the operation completes or ctx ends. It returns the
// operation error, or ctx.Err() if the caller gave up first. Giving up does
// not cancel the operation.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Content returns the fetched value. Only meaningful after Done.
func (f *Future) Content() model.Content {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.content
}

// Err returns the operation error. Only meaningful after Done.
func (f *Future) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// OnResult registers fn to run with the result. If the future has already
// completed fn runs immediately on the calling goroutine, otherwise on the
// goroutine that completes the operation.
func (f *Future) OnResult(fn func(model.Content, error)) {
	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	c, err := f.content, f.err
	f.mu.Unlock()
	fn(c, err)
}

// OnComplete registers fn to run with the operation error only.
func (f *Future) OnComplete(fn func(error)) {
	f.OnResult(func(_ model.Content, err error) { fn(err) })
}
