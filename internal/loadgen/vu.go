// Package loadgen ramps and runs the population of virtual users.
package loadgen

import (
	"context"
	"sync"
	"sync/atomic"

	"stampede/internal/executor"
	"stampede/internal/workload"
)

// State is the lifecycle state of a virtual user.
type State int32

const (
	// StateSpawning means the unit is created but not yet running its loop.
	StateSpawning State = iota
	// StateRunning means the unit is executing its task loop.
	StateRunning
	// StateStopping means stop was requested; the in-flight request may finish
	// but no further task is dispatched.
	StateStopping
	// StateTerminated is terminal.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateSpawning:
		return "spawning"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// VirtualUser is one simulated client running a category-specific task
// loop: think-time, weighted task selection, execution, record. It owns no
// shared data; it reads the shared profile through the dispatcher and
// writes only the records its executor produces.
type VirtualUser struct {
	ID       int
	Category string

	dispatcher *workload.Dispatcher
	exec       *executor.Executor

	state      atomic.Int32
	iterations atomic.Int64

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewVirtualUser creates a virtual user in the Spawning state.
func NewVirtualUser(id int, category string, dispatcher *workload.Dispatcher, exec *executor.Executor) *VirtualUser {
	return &VirtualUser{
		ID:         id,
		Category:   category,
		dispatcher: dispatcher,
		exec:       exec,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// GetState returns the current lifecycle state.
func (vu *VirtualUser) GetState() State {
	return State(vu.state.Load())
}

// Iterations returns how many tasks this unit has completed.
func (vu *VirtualUser) Iterations() int64 {
	return vu.iterations.Load()
}

// Run executes the task loop until stop is requested or softCtx is
// cancelled. Stop is observed only at the top of the loop, never
// mid-request: requests run under hardCtx, which the scheduler cancels
// only after the graceful drain window.
func (vu *VirtualUser) Run(softCtx, hardCtx context.Context) {
	defer func() {
		vu.state.Store(int32(StateTerminated))
		close(vu.doneCh)
	}()

	// Think-time waits are cancelled by either the run winding down or
	// this unit being told to stop.
	thinkCtx, cancelThink := context.WithCancel(softCtx)
	defer cancelThink()
	go func() {
		select {
		case <-vu.stopCh:
			cancelThink()
		case <-thinkCtx.Done():
		}
	}()

	vu.state.Store(int32(StateRunning))

	for {
		select {
		case <-softCtx.Done():
			vu.state.Store(int32(StateStopping))
			return
		case <-vu.stopCh:
			vu.state.Store(int32(StateStopping))
			return
		default:
		}

		task, err := vu.dispatcher.Next(thinkCtx, vu.Category)
		if err != nil {
			// Cancelled during the think-time suspension point.
			vu.state.Store(int32(StateStopping))
			return
		}

		vu.exec.Execute(hardCtx, task)
		vu.iterations.Add(1)
	}
}

// RequestStop asks the unit to stop after its in-flight work completes.
// Safe to call multiple times and from any goroutine.
func (vu *VirtualUser) RequestStop() {
	vu.stopOnce.Do(func() { close(vu.stopCh) })
}

// Done returns a channel closed when the unit reaches Terminated.
func (vu *VirtualUser) Done() <-chan struct{} {
	return vu.doneCh
}
