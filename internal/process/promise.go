package process

import "sync"

// Promise is a Handle settled by hand. Steps use it to translate the result
// of a lower-level operation before the engine sees it.
type Promise struct {
	mu        sync.Mutex
	settled   bool
	err       error
	callbacks []func(error)
}

func NewPromise() *Promise {
	return &Promise{}
}

// Resolve completes the promise successfully.
func (p *Promise) Resolve() {
	p.settle(nil)
}

// Reject completes the promise with err. A nil err resolves it.
func (p *Promise) Reject(err error) {
	p.settle(err)
}

func (p *Promise) settle(err error) {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return
	}
	p.settled = true
	p.err = err
	callbacks := p.callbacks
	p.callbacks = nil
	p.mu.Unlock()

	for _, cb := range callbacks {
		cb(err)
	}
}

// OnComplete registers fn. It runs immediately when the promise is
// already settled.
func (p *Promise) OnComplete(fn func(error)) {
	p.mu.Lock()
	if !p.settled {
		p.callbacks = append(p.callbacks, fn)
		p.mu.Unlock()
		return
	}
	err := p.err
	p.mu.Unlock()
	fn(err)
}
