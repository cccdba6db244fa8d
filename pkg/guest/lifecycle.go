// Package guest implements the Master/Worker guest lifecycle: boot to
// quiescence, freeze, fork, serve one connection, reset (spec §3, §4.5).
package guest

import "sync/atomic"

// MasterState is the Master's lifecycle position (spec §4.5).
type MasterState int32

const (
	MasterBooting MasterState = iota
	MasterWaitingForRequests
	MasterFrozen
	MasterFailed
)

func (s MasterState) String() string {
	switch s {
	case MasterBooting:
		return "booting"
	case MasterWaitingForRequests:
		return "waiting_for_requests"
	case MasterFrozen:
		return "frozen"
	case MasterFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// WorkerState is a Worker's lifecycle position (spec §4.5).
type WorkerState int32

const (
	WorkerIdle WorkerState = iota
	WorkerPollingInKernel
	WorkerServing
	WorkerResetPending
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerPollingInKernel:
		return "polling_in_kernel"
	case WorkerServing:
		return "serving"
	case WorkerResetPending:
		return "reset_pending"
	default:
		return "unknown"
	}
}

// masterTransitions enumerates the legal edges from §4.5's diagram.
var masterTransitions = map[MasterState]map[MasterState]bool{
	MasterBooting:           {MasterWaitingForRequests: true, MasterFailed: true},
	MasterWaitingForRequests: {MasterWaitingForRequests: true, MasterFrozen: true, MasterFailed: true},
	MasterFrozen:            {},
	MasterFailed:            {},
}

var workerTransitions = map[WorkerState]map[WorkerState]bool{
	WorkerIdle:           {WorkerPollingInKernel: true},
	WorkerPollingInKernel: {WorkerServing: true, WorkerIdle: true},
	WorkerServing:        {WorkerResetPending: true},
	WorkerResetPending:   {WorkerIdle: true},
}

// MasterLifecycle is a CompareAndSwap-guarded MasterState, shared so
// every caller observing it agrees on the current phase and on which
// transitions are legal (spec §3.8, invariants 2-5).
type MasterLifecycle struct {
	state int32
}

// NewMasterLifecycle returns a lifecycle starting at MasterBooting.
func NewMasterLifecycle() *MasterLifecycle {
	return &MasterLifecycle{state: int32(MasterBooting)}
}

// State returns the current state.
func (l *MasterLifecycle) State() MasterState {
	return MasterState(atomic.LoadInt32(&l.state))
}

// Transition attempts to move from the current state to next, failing
// if the edge isn't legal or another goroutine already moved on.
func (l *MasterLifecycle) Transition(next MasterState) bool {
	cur := MasterState(atomic.LoadInt32(&l.state))
	if !masterTransitions[cur][next] {
		return false
	}
	return atomic.CompareAndSwapInt32(&l.state, int32(cur), int32(next))
}

// WorkerLifecycle is the Worker analogue of MasterLifecycle.
type WorkerLifecycle struct {
	state int32
}

// NewWorkerLifecycle returns a lifecycle starting at WorkerIdle.
func NewWorkerLifecycle() *WorkerLifecycle {
	return &WorkerLifecycle{state: int32(WorkerIdle)}
}

func (l *WorkerLifecycle) State() WorkerState {
	return WorkerState(atomic.LoadInt32(&l.state))
}

func (l *WorkerLifecycle) Transition(next WorkerState) bool {
	cur := WorkerState(atomic.LoadInt32(&l.state))
	if !workerTransitions[cur][next] {
		return false
	}
	return atomic.CompareAndSwapInt32(&l.state, int32(cur), int32(next))
}
