package process

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/hivekeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects step events across goroutines.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func waitDone(t *testing.T, p *Process) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("process %s did not terminate, state %s", p.Name(), p.State())
	}
}

func localStep(rec *recorder, name string) Step {
	return Step{
		Name: name,
		Execute: func(ctx context.Context) Outcome {
			rec.add("exec " + name)
			return Advance()
		},
		Compensate: func(ctx context.Context) error {
			rec.add("undo " + name)
			return nil
		},
	}
}

// asyncStep suspends on a promise settled from another goroutine.
func asyncStep(rec *recorder, name string, result error) Step {
	return Step{
		Name: name,
		Execute: func(ctx context.Context) Outcome {
			rec.add("exec " + name)
			pr := NewPromise()
			go func() {
				time.Sleep(5 * time.Millisecond)
				pr.Reject(result)
			}()
			return Suspend(pr)
		},
		Compensate: func(ctx context.Context) error {
			rec.add("undo " + name)
			return nil
		},
	}
}

func TestProcess_RunsStepsInOrder(t *testing.T) {
	rec := &recorder{}
	p := New("ordered", []Step{
		localStep(rec, "a"),
		asyncStep(rec, "b", nil),
		localStep(rec, "c"),
		asyncStep(rec, "d", nil),
	})
	l := NewResultListener()
	p.AddListener(l)
	assert.Equal(t, StateCreated, p.State())

	require.NoError(t, p.Start(context.Background()))
	waitDone(t, p)

	assert.Equal(t, []string{"exec a", "exec b", "exec c", "exec d"}, rec.list())
	assert.Equal(t, StateSucceeded, p.State())
	assert.NoError(t, p.Err())
	assert.NoError(t, p.RollbackErr())
	assert.True(t, l.HasSucceeded())
	assert.False(t, l.HasFailed())
	assert.Equal(t, 1, l.Notifications())
}

func TestProcess_StartTwice(t *testing.T) {
	p := New("twice", nil)
	require.NoError(t, p.Start(context.Background()))
	assert.ErrorIs(t, p.Start(context.Background()), common.ErrProcessAlreadyStarted)
	waitDone(t, p)
	assert.ErrorIs(t, p.Start(context.Background()), common.ErrProcessAlreadyStarted)
	assert.Equal(t, StateSucceeded, p.State())
}

func TestProcess_RollbackInReverseOrder(t *testing.T) {
	rec := &recorder{}
	cause := errors.New("publish rejected")
	p := New("rollback", []Step{
		localStep(rec, "a"),
		asyncStep(rec, "b", nil),
		localStep(rec, "c"),
		asyncStep(rec, "d", cause),
		localStep(rec, "e"),
	})
	l := NewResultListener()
	p.AddListener(l)

	require.NoError(t, p.Start(context.Background()))
	waitDone(t, p)

	assert.Equal(t, []string{
		"exec a", "exec b", "exec c", "exec d",
		"undo d", "undo c", "undo b", "undo a",
	}, rec.list())
	assert.Equal(t, StateFailed, p.State())
	assert.ErrorIs(t, p.Err(), cause)
	assert.NoError(t, p.RollbackErr())
	assert.True(t, l.HasFailed())
	assert.ErrorIs(t, l.Cause(), cause)
	assert.Equal(t, 1, l.Notifications())
}

func TestProcess_FailOutcomeSkipsLaterSteps(t *testing.T) {
	rec := &recorder{}
	cause := errors.New("boom")
	p := New("fail", []Step{
		localStep(rec, "a"),
		{Name: "b", Execute: func(ctx context.Context) Outcome { return Fail(cause) }},
		localStep(rec, "c"),
	})
	require.NoError(t, p.Start(context.Background()))
	waitDone(t, p)

	assert.Equal(t, []string{"exec a", "undo a"}, rec.list())
	assert.ErrorIs(t, p.Err(), cause)
}

func TestProcess_FailedHandleCompensatesItsStep(t *testing.T) {
	tests := []struct {
		name string
		step Step
		want []string
	}{
		{
			name: "suspended step",
			step: asyncStep(&recorder{}, "b", errors.New("reply lost")),
			want: []string{"exec a", "undo b", "undo a"},
		},
		{
			name: "fail outcome",
			step: Step{Name: "b", Execute: func(context.Context) Outcome { return Fail(errors.New("bad input")) }},
			want: []string{"exec a", "undo a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			b := tt.step
			if b.Compensate != nil {
				b.Compensate = func(context.Context) error {
					rec.add("undo b")
					return nil
				}
			}
			p := New("self-undo", []Step{localStep(rec, "a"), b, localStep(rec, "c")})
			require.NoError(t, p.Start(context.Background()))
			waitDone(t, p)

			assert.Equal(t, StateFailed, p.State())
			assert.Equal(t, tt.want, rec.list())
		})
	}
}

func TestProcess_RollbackIncompleteKeepsTerminalCause(t *testing.T) {
	cause := errors.New("queue put failed")
	undoErr := errors.New("delete failed")
	var undone []string
	var mu sync.Mutex
	failingUndo := func(name string) func(context.Context) error {
		return func(ctx context.Context) error {
			mu.Lock()
			undone = append(undone, name)
			mu.Unlock()
			return undoErr
		}
	}

	p := New("incomplete", []Step{
		{Name: "a", Execute: func(context.Context) Outcome { return Advance() }, Compensate: failingUndo("a")},
		{Name: "b", Execute: func(context.Context) Outcome { return Advance() }, Compensate: failingUndo("b")},
		{Name: "c", Execute: func(context.Context) Outcome { return Fail(cause) }},
	})
	l := NewResultListener()
	p.AddListener(l)
	require.NoError(t, p.Start(context.Background()))
	waitDone(t, p)

	assert.Equal(t, []string{"b", "a"}, undone)
	assert.Equal(t, StateFailed, p.State())
	assert.ErrorIs(t, p.Err(), cause)
	assert.NotErrorIs(t, p.Err(), common.ErrRollbackIncomplete)
	assert.ErrorIs(t, p.RollbackErr(), common.ErrRollbackIncomplete)
	assert.ErrorIs(t, p.RollbackErr(), undoErr)
	assert.ErrorIs(t, l.Cause(), cause)
}

// doubleHandle fires its callback twice with different results.
type doubleHandle struct{}

func (doubleHandle) OnComplete(fn func(error)) {
	go func() {
		fn(nil)
		fn(errors.New("late failure"))
	}()
}

func TestProcess_NotifiesOnceWhenHandleFiresTwice(t *testing.T) {
	rec := &recorder{}
	p := New("double", []Step{
		{Name: "a", Execute: func(context.Context) Outcome { return Suspend(doubleHandle{}) }},
		localStep(rec, "b"),
	})
	l := NewResultListener()
	p.AddListener(l)
	require.NoError(t, p.Start(context.Background()))
	waitDone(t, p)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"exec b"}, rec.list())
	assert.Equal(t, 1, l.Notifications())
	assert.True(t, l.HasSucceeded())
	assert.False(t, l.HasFailed())
}

func TestProcess_ListenerAddedAfterTermination(t *testing.T) {
	p := New("late", []Step{
		{Name: "a", Execute: func(context.Context) Outcome { return Fail(common.ErrNetworkOperationFailed) }},
	})
	require.NoError(t, p.Start(context.Background()))
	waitDone(t, p)

	l := NewResultListener()
	p.AddListener(l)
	assert.True(t, l.HasFailed())
	assert.ErrorIs(t, l.Cause(), common.ErrNetworkOperationFailed)
	assert.Equal(t, 1, l.Notifications())
}

func TestProcess_StepPanicFailsProcess(t *testing.T) {
	rec := &recorder{}
	p := New("panic", []Step{
		localStep(rec, "a"),
		{Name: "b", Execute: func(context.Context) Outcome { panic("bad state") }},
	})
	require.NoError(t, p.Start(context.Background()))
	waitDone(t, p)

	assert.Equal(t, StateFailed, p.State())
	assert.ErrorContains(t, p.Err(), "bad state")
	assert.Equal(t, []string{"exec a", "undo a"}, rec.list())
}

func TestProcess_NilHandleFails(t *testing.T) {
	p := New("nil-handle", []Step{
		{Name: "a", Execute: func(context.Context) Outcome { return Suspend(nil) }},
	})
	require.NoError(t, p.Start(context.Background()))
	waitDone(t, p)
	assert.Equal(t, StateFailed, p.State())
}

func TestProcess_CallerCancellationDoesNotStopSteps(t *testing.T) {
	pr := NewPromise()
	var stepErr error
	p := New("detached", []Step{
		{Name: "a", Execute: func(context.Context) Outcome { return Suspend(pr) }},
		{Name: "b", Execute: func(ctx context.Context) Outcome {
			stepErr = ctx.Err()
			return Advance()
		}},
	})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx))
	cancel()
	pr.Resolve()
	waitDone(t, p)

	assert.Equal(t, StateSucceeded, p.State())
	assert.NoError(t, stepErr)
}

func TestProcess_OnTerminateRunsBeforeListeners(t *testing.T) {
	rec := &recorder{}
	p := New("terminate", nil, WithOnTerminate(func() { rec.add("terminate") }))
	p.AddListener(ListenerFuncs{Succeeded: func() { rec.add("listener") }})
	require.NoError(t, p.Start(context.Background()))
	waitDone(t, p)

	assert.Equal(t, []string{"terminate", "listener"}, rec.list())
}

func TestProcess_RollbackTimeoutBoundsCompensation(t *testing.T) {
	p := New("slow-undo", []Step{
		{
			Name:    "a",
			Execute: func(context.Context) Outcome { return Advance() },
			Compensate: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		},
		{Name: "b", Execute: func(context.Context) Outcome { return Fail(errors.New("x")) }},
	}, WithRollbackTimeout(10*time.Millisecond))
	require.NoError(t, p.Start(context.Background()))
	waitDone(t, p)

	assert.ErrorIs(t, p.RollbackErr(), context.DeadlineExceeded)
}

func TestPromise_SettlesOnce(t *testing.T) {
	pr := NewPromise()
	var got []error
	pr.OnComplete(func(err error) { got = append(got, err) })
	pr.Reject(common.ErrIdentityAlreadyExists)
	pr.Resolve()
	pr.OnComplete(func(err error) { got = append(got, err) })

	require.Len(t, got, 2)
	assert.ErrorIs(t, got[0], common.ErrIdentityAlreadyExists)
	assert.ErrorIs(t, got[1], common.ErrIdentityAlreadyExists)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "RUNNING", StateRunning.String())
	assert.Equal(t, "State(9)", State(9).String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateRunning.Terminal())
}
