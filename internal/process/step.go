package process

import "context"

// Handle is an asynchronous operation a step can suspend on. OnComplete
// must eventually call fn with nil on success or the failure cause.
// Both *dht.Future and *Promise satisfy it.
type Handle interface {
	OnComplete(fn func(error))
}

type outcomeKind int

const (
	outcomeAdvance outcomeKind = iota
	outcomeFail
	outcomeSuspend
)

// Outcome tells the engine what to do after a step's Execute returns.
type Outcome struct {
	kind   outcomeKind
	err    error
	handle Handle
}

// Advance commits the step and moves on to the next one.
func Advance() Outcome {
	return Outcome{kind: outcomeAdvance}
}

// Fail aborts the process with err. The failing step is not compensated;
// Execute must not leave a side effect behind when it returns Fail.
func Fail(err error) Outcome {
	return Outcome{kind: outcomeFail, err: err}
}

// Suspend parks the process until h completes. The step commits when h
// completes without error; otherwise its Compensate runs first during
// rollback, since the operation may have partly applied.
func Suspend(h Handle) Outcome {
	return Outcome{kind: outcomeSuspend, handle: h}
}

// Step is one unit of a process. Compensate undoes the step's side effect
// and may be nil for steps that only compute locally.
type Step struct {
	Name       string
	Execute    func(ctx context.Context) Outcome
	Compensate func(ctx context.Context) error
}
