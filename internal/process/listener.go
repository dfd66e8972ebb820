package process

import (
	"go.uber.org/atomic"
)

// Listener observes the terminal outcome of a process. Exactly one of its
// methods is called, once.
type Listener interface {
	OnSucceeded()
	OnFailed(cause error)
}

// ListenerFuncs adapts a pair of functions to Listener. Nil fields are
// skipped.
type ListenerFuncs struct {
	Succeeded func()
	Failed    func(cause error)
}

func (l ListenerFuncs) OnSucceeded() {
	if l.Succeeded != nil {
		l.Succeeded()
	}
}

func (l ListenerFuncs) OnFailed(cause error) {
	if l.Failed != nil {
		l.Failed(cause)
	}
}

// ResultListener records the outcome so it can be polled from another
// goroutine, typically by a Waiter.
type ResultListener struct {
	succeeded *atomic.Bool
	failed    *atomic.Bool
	cause     *atomic.Error
	calls     *atomic.Int32
}

func NewResultListener() *ResultListener {
	return &ResultListener{
		succeeded: atomic.NewBool(false),
		failed:    atomic.NewBool(false),
		cause:     atomic.NewError(nil),
		calls:     atomic.NewInt32(0),
	}
}

func (l *ResultListener) OnSucceeded() {
	l.calls.Inc()
	l.succeeded.Store(true)
}

func (l *ResultListener) OnFailed(cause error) {
	l.calls.Inc()
	l.cause.Store(cause)
	l.failed.Store(true)
}

func (l *ResultListener) HasSucceeded() bool {
	return l.succeeded.Load()
}

func (l *ResultListener) HasFailed() bool {
	return l.failed.Load()
}

// IsDone reports whether any terminal notification has arrived.
func (l *ResultListener) IsDone() bool {
	return l.HasSucceeded() || l.HasFailed()
}

// Cause returns the failure cause, or nil.
func (l *ResultListener) Cause() error {
	return l.cause.Load()
}

// Notifications returns how many terminal notifications were delivered.
func (l *ResultListener) Notifications() int {
	return int(l.calls.Load())
}
