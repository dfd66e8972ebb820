// Package process runs ordered chains of asynchronous steps. A process
// advances one step at a time, suspends on network handles without blocking
// a goroutine, compensates committed steps in reverse order when a later
// step fails and reports its terminal outcome exactly once to every
// listener.
package process

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/hivekeeper/internal/common"
	"github.com/dmitrijs2005/hivekeeper/internal/logging"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// DefaultRollbackTimeout bounds each compensating action.
const DefaultRollbackTimeout = 30 * time.Second

// State is the lifecycle position of a process.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateRunning:
		return "RUNNING"
	case StateSucceeded:
		return "SUCCEEDED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Option configures a Process.
type Option func(*Process)

func WithLogger(l logging.Logger) Option {
	return func(p *Process) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithOnTerminate registers fn to run once the process reaches a terminal
// state, before listeners are notified. Use it to discard secrets.
func WithOnTerminate(fn func()) Option {
	return func(p *Process) {
		p.onTerminate = fn
	}
}

func WithRollbackTimeout(d time.Duration) Option {
	return func(p *Process) {
		if d > 0 {
			p.rollbackTimeout = d
		}
	}
}

// Process executes its steps strictly in order. Step n+1 never starts
// before step n, including its suspended handle, has completed.
type Process struct {
	id              uuid.UUID
	name            string
	steps           []Step
	logger          logging.Logger
	onTerminate     func()
	rollbackTimeout time.Duration

	mu          sync.Mutex
	state       State
	committed   int
	listeners   []Listener
	err         error
	rollbackErr error
	done        chan struct{}
}

func New(name string, steps []Step, opts ...Option) *Process {
	p := &Process{
		id:              uuid.New(),
		name:            name,
		steps:           steps,
		logger:          logging.Nop(),
		rollbackTimeout: DefaultRollbackTimeout,
		state:           StateCreated,
		committed:       -1,
		done:            make(chan struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	p.logger = p.logger.With("process", name, "process_id", p.id.String())
	return p
}

func (p *Process) ID() uuid.UUID {
	return p.id
}

func (p *Process) Name() string {
	return p.name
}

func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Err returns the terminal failure cause, or nil.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// RollbackErr returns the aggregated compensation failure wrapped in
// common.ErrRollbackIncomplete, or nil when rollback was clean or not needed.
func (p *Process) RollbackErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rollbackErr
}

// Done is closed after the process has terminated and every listener has
// been notified.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// AddListener registers l for the terminal notification. A listener added
// after termination is notified immediately on the calling goroutine.
func (p *Process) AddListener(l Listener) {
	p.mu.Lock()
	if !p.state.Terminal() {
		p.listeners = append(p.listeners, l)
		p.mu.Unlock()
		return
	}
	state, err := p.state, p.err
	p.mu.Unlock()
	notify(l, state, err)
}

// Start begins executing the first step on a new goroutine and returns
// immediately. Cancelling ctx does not stop the process; steps see a
// context detached from its cancellation.
func (p *Process) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateCreated {
		p.mu.Unlock()
		return common.ErrProcessAlreadyStarted
	}
	p.state = StateRunning
	p.mu.Unlock()

	p.logger.Debug(ctx, "process started", "steps", len(p.steps))
	ctx = context.WithoutCancel(ctx)
	go p.run(ctx, 0)
	return nil
}

// run executes steps from index i until one suspends, fails or the chain
// ends.
func (p *Process) run(ctx context.Context, i int) {
	for ; i < len(p.steps); i++ {
		step := p.steps[i]
		p.logger.Debug(ctx, "step started", "step", step.Name, "index", i)

		out := p.execute(ctx, step)
		switch out.kind {
		case outcomeAdvance:
			p.commit(ctx, i)
		case outcomeFail:
			p.fail(ctx, i, out.err, false)
			return
		case outcomeSuspend:
			p.suspend(ctx, i, out.handle)
			return
		}
	}
	p.terminate(ctx, StateSucceeded, nil, nil)
}

func (p *Process) execute(ctx context.Context, step Step) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Fail(fmt.Errorf("step %s panicked: %v", step.Name, r))
		}
	}()
	if step.Execute == nil {
		return Advance()
	}
	return step.Execute(ctx)
}

// suspend resumes the chain from the completion callback of h. Only the
// first callback counts, however many times h fires. A handle that fails
// may still have taken effect remotely, so the step itself is compensated
// along with the committed ones.
func (p *Process) suspend(ctx context.Context, i int, h Handle) {
	if h == nil {
		p.fail(ctx, i, fmt.Errorf("step %s suspended on nil handle", p.steps[i].Name), false)
		return
	}
	var once sync.Once
	h.OnComplete(func(err error) {
		once.Do(func() {
			if err != nil {
				p.fail(ctx, i, err, true)
				return
			}
			p.commit(ctx, i)
			p.run(ctx, i+1)
		})
	})
}

func (p *Process) commit(ctx context.Context, i int) {
	p.mu.Lock()
	if i > p.committed {
		p.committed = i
	}
	p.mu.Unlock()
	p.logger.Debug(ctx, "step committed", "step", p.steps[i].Name, "index", i)
}

// fail rolls back and terminates. With undoFailed set, step i is
// compensated too.
func (p *Process) fail(ctx context.Context, i int, cause error, undoFailed bool) {
	p.logger.Warn(ctx, "step failed", "step", p.steps[i].Name, "index", i, "error", cause)

	p.mu.Lock()
	top := p.committed
	p.mu.Unlock()
	if undoFailed && i > top {
		top = i
	}

	rbErr := p.rollback(ctx, top)
	p.terminate(ctx, StateFailed, cause, rbErr)
}

// rollback runs compensating actions for steps top down to 0. Failures are
// collected and logged; they never stop the remaining compensations.
func (p *Process) rollback(ctx context.Context, top int) error {
	var errs error
	for i := top; i >= 0; i-- {
		step := p.steps[i]
		if step.Compensate == nil {
			continue
		}
		p.logger.Debug(ctx, "compensating step", "step", step.Name, "index", i)
		if err := p.compensate(ctx, step); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("compensate %s: %w", step.Name, err))
		}
	}
	if errs == nil {
		return nil
	}
	err := fmt.Errorf("%w: %w", common.ErrRollbackIncomplete, errs)
	p.logger.Error(ctx, "rollback incomplete", "error", err)
	return err
}

func (p *Process) compensate(ctx context.Context, step Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panicked: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, p.rollbackTimeout)
	defer cancel()
	return step.Compensate(ctx)
}

func (p *Process) terminate(ctx context.Context, state State, cause, rbErr error) {
	p.mu.Lock()
	if p.state.Terminal() {
		p.mu.Unlock()
		return
	}
	p.state = state
	p.err = cause
	p.rollbackErr = rbErr
	listeners := p.listeners
	p.listeners = nil
	p.mu.Unlock()

	if state == StateSucceeded {
		p.logger.Info(ctx, "process succeeded")
	} else {
		p.logger.Warn(ctx, "process failed", "error", cause)
	}

	if p.onTerminate != nil {
		p.onTerminate()
	}
	for _, l := range listeners {
		notify(l, state, cause)
	}
	close(p.done)
}

func notify(l Listener, state State, cause error) {
	if state == StateSucceeded {
		l.OnSucceeded()
		return
	}
	l.OnFailed(cause)
}
