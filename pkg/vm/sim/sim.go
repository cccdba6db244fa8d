// Package sim provides SimMachine, an in-memory vm.Machine fake used by
// the guest lifecycle tests and wired into the run command, so that
// logic can be exercised without booting real hardware virtualization.
package sim

import (
	"context"
	"sync"

	"github.com/ovmrun/hatchery/pkg/vm"
)

// SimMachine is a vm.Machine that never actually runs guest code: Run
// blocks until its context is done, and tests drive the installed hooks
// themselves, either through Hooks() or by calling the Sandbox methods
// directly.
type SimMachine struct {
	mu sync.Mutex

	id        string
	regs      vm.Registers
	hooks     vm.HookTable
	frozen    bool
	forkOf    *SimMachine
	stopped   bool
	closed    bool
	resetLog  int
	forkCount int
}

// New returns a SimMachine ready to have hooks installed on it.
func New(id string) *SimMachine {
	return &SimMachine{id: id}
}

func (m *SimMachine) Run(ctx context.Context) vm.RunResult {
	m.mu.Lock()
	m.stopped = false
	m.mu.Unlock()
	<-ctx.Done()
	return vm.RunResult{Fault: vm.FaultNone}
}

func (m *SimMachine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

// Stopped reports whether Stop has been called since the last Run.
func (m *SimMachine) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func (m *SimMachine) Fork(maxReqMem int64) (vm.Machine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forkCount++
	clone := &SimMachine{
		id:     m.id,
		regs:   m.regs,
		hooks:  m.hooks,
		forkOf: m,
	}
	return clone, nil
}

// ForkCount reports how many times Fork has been called (master-side
// telemetry assertions in tests).
func (m *SimMachine) ForkCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.forkCount
}

func (m *SimMachine) ResetTo(master vm.Machine, opts vm.ResetOptions) error {
	mm, ok := master.(*SimMachine)
	if !ok {
		return nil
	}
	m.mu.Lock()
	m.regs = mm.regs
	m.resetLog++
	m.mu.Unlock()
	if opts.OnReset != nil {
		opts.OnReset()
	}
	return nil
}

// ResetCount reports how many times ResetTo has completed on m.
func (m *SimMachine) ResetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetLog
}

func (m *SimMachine) PrepareCopyOnWrite(extra int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frozen = true
	return nil
}

// Frozen reports whether PrepareCopyOnWrite has been called.
func (m *SimMachine) Frozen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frozen
}

func (m *SimMachine) SkipHypercall() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs.RIP += 2
	return nil
}

func (m *SimMachine) RegisterHooks(h vm.HookTable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = h
}

// Hooks returns the currently installed hook table, for tests that want
// to invoke a hook directly.
func (m *SimMachine) Hooks() vm.HookTable {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hooks
}

func (m *SimMachine) Registers() vm.Registers {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs
}

func (m *SimMachine) SetRegisters(r vm.Registers) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs = r
}

func (m *SimMachine) Stat() vm.Stat {
	return vm.Stat{}
}

func (m *SimMachine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *SimMachine) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Backend is a vm.Backend that hands out SimMachines.
type Backend struct{}

func (Backend) Name() string { return "sim" }

func (Backend) Boot(ctx context.Context, cfg vm.Config) (vm.Machine, error) {
	return New(cfg.ID), nil
}
