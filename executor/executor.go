// Package executor is a minimal cooperative executor for poll-style tasks.
// It polls a task only after that task's Waker fired, so interrupt
// handlers drive all progress through the core Registry.
package executor

import (
	"context"

	"tickcore/core"
)

// Task is a resumable unit of work. Poll runs until the task completes or
// has to wait; in the latter case it must have handed w to whatever will
// wake it (a Delay, a PeripheralWait, ...) before returning Pending.
type Task interface {
	Poll(w core.Waker) core.Poll
}

// TaskFunc adapts a function to Task
type TaskFunc func(w core.Waker) core.Poll

// Poll calls f
func (f TaskFunc) Poll(w core.Waker) core.Poll { return f(w) }

// Executor runs tasks registered in a core.Registry on the calling
// goroutine. It is not safe for concurrent use; interrupt handlers only
// ever reach it through Wakers.
type Executor struct {
	reg   *core.Registry
	tasks [core.MaxTasks]entry

	// Idle is called by Run when no task is ready. On hardware it waits
	// for an interrupt; the default waits for the registry signal.
	Idle func(ctx context.Context)

	polls uint32
}

type entry struct {
	task  Task
	waker core.Waker
}

// New returns an executor polling tasks through reg
func New(reg *core.Registry) *Executor {
	e := &Executor{reg: reg}
	e.Idle = e.waitSignal
	return e
}

// Spawn registers t and marks it ready for its first poll.
func (e *Executor) Spawn(t Task) (core.TaskID, error) {
	id, w, err := e.reg.Register()
	if err != nil {
		return 0, err
	}
	e.tasks[id] = entry{task: t, waker: w}
	w.Wake()
	return id, nil
}

// Len returns the number of tasks not yet completed
func (e *Executor) Len() int {
	n := 0
	for i := range e.tasks {
		if e.tasks[i].task != nil {
			n++
		}
	}
	return n
}

// Polls returns how many times a task was polled
func (e *Executor) Polls() uint32 { return e.polls }

// RunOnce polls every ready task once and returns how many were polled.
// Completed tasks free their slot, which turns their Wakers into no-ops.
func (e *Executor) RunOnce() int {
	return e.reg.TakeReady(func(id core.TaskID) {
		ent := &e.tasks[id]
		if ent.task == nil {
			// Woken between completing and the slot being freed
			return
		}
		e.polls++
		if ent.task.Poll(ent.waker) == core.Ready {
			*ent = entry{}
			e.reg.Complete(id)
		}
	})
}

// Run polls ready tasks until every task has completed or ctx is done.
func (e *Executor) Run(ctx context.Context) error {
	for e.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.RunOnce() == 0 {
			e.Idle(ctx)
		}
	}
	return nil
}

func (e *Executor) waitSignal(ctx context.Context) {
	select {
	case <-e.reg.Signal():
	case <-ctx.Done():
	}
}
