// Package vm defines the interface hatchery needs from a hardware
// virtualization back-end. The back-end itself — vCPU execution, memory
// mapping, and syscall dispatch — is an external collaborator; this
// package only names the surface the rest of the tree depends on, plus
// an in-memory fake (package sim) for tests that never touch real
// hardware virtualization.
package vm

import "context"

// Config describes one guest image and its resource limits.
type Config struct {
	ID        string
	ImagePath string
	CPUs      int
	MemoryMB  int
	MaxBootMS int
	MaxReqMS  int
	MaxReqMem int64
	DebugFork bool
	Env       []string
}

// Registers is the subset of guest register state hatchery's hooks and
// the GDB stub need to read or rewrite.
type Registers struct {
	RIP uint64
	RAX uint64
	RDI uint64
	RSI uint64
	RDX uint64
	RCX uint64
	R8  uint64
	R9  uint64
}

// Stat reports point-in-time guest resource usage.
type Stat struct {
	RSSBytes  int64
	CPUTimeNS int64
}

// ResetOptions controls reset_to semantics (spec §4.5 "Reset semantics").
type ResetOptions struct {
	FreeWorkMemAbove int64
	CopyAllRegisters bool
	KeepWorkMemory   bool
	OnReset          func()
}

// FaultKind classifies why Run returned early.
type FaultKind int

const (
	FaultNone FaultKind = iota
	FaultTimeout
	FaultMemory
	FaultMachine
	FaultGeneric
)

// RunResult is what Run reports when the guest stops, whether because a
// hook asked it to or because the back-end enforced a deadline.
type RunResult struct {
	Fault FaultKind
	Err   error
}

// Backend constructs Machines for one hardware virtualization technology
// (KVM, a hypervisor framework, or — in tests — the sim fake).
type Backend interface {
	Name() string
	Boot(ctx context.Context, cfg Config) (Machine, error)
}

// Machine is one guest's virtual CPU and memory, plus the syscall-hook
// plumbing the Sandbox installs onto it. A Machine is owned by exactly
// one goroutine at a time: the worker thread that calls Run.
type Machine interface {
	// Run resumes the guest until a hook stops it, a deadline fires, or
	// the guest exits. It blocks for the duration of one run segment
	// (one poll-syscall-to-next-stop interval), matching the back-end's
	// vmresume/run call.
	Run(ctx context.Context) RunResult

	// Stop asks a running guest to halt at its next syscall boundary.
	// Hooks call this to implement "do not call the underlying syscall
	// and suspend here" (spec §4.5).
	Stop()

	// Fork creates a shallow copy-on-write clone of the machine's
	// current memory and register state, capped to maxReqMem bytes of
	// guest working memory. The clone is otherwise independent: its
	// hooks, tracked fds, and RegisterHooks calls do not affect the
	// parent.
	Fork(maxReqMem int64) (Machine, error)

	// ResetTo restores the machine's memory and registers to master's
	// frozen snapshot under opts (spec §4.5).
	ResetTo(master Machine, opts ResetOptions) error

	// PrepareCopyOnWrite freezes the machine's memory as a
	// copy-on-write source for future Forks. extra is back-end-specific
	// headroom reserved above the frozen image; spec.md's Master always
	// calls this with 0.
	PrepareCopyOnWrite(extra int64) error

	// SkipHypercall advances the saved instruction pointer past the
	// guest's hypercall boundary instruction, so a frozen/forked clone
	// resumes just after it instead of re-issuing it.
	SkipHypercall() error

	// RegisterHooks installs (or replaces) the syscall interception
	// callbacks. Replacing a hook mid-run is how the ephemeral worker
	// hook set swaps in its own handlers (spec §4.6); Warmup does not
	// replace hooks.
	RegisterHooks(HookTable)

	Registers() Registers
	SetRegisters(Registers)
	Stat() Stat
	Close() error
}
