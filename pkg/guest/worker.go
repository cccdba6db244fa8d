package guest

import (
	"context"
	"log/slog"

	"github.com/ovmrun/hatchery/internal/errx"
	"github.com/ovmrun/hatchery/pkg/sandbox"
	"github.com/ovmrun/hatchery/pkg/vm"
)

// WorkerConfig carries the per-worker resource limits spec.md's Pool
// passes down from its own configuration (§4.8, §5).
type WorkerConfig struct {
	MaxReqMem              int64
	MaxReqTime             int64 // reserved for the back-end's deadline enforcement
	Ephemeral              bool
	EphemeralKeepWorkingMem bool
}

// Worker is a copy-on-write fork of a frozen Master, serving exactly
// one client connection per Idle→...→ResetPending→Idle cycle (spec
// §3.5, §4.5, §4.6).
type Worker struct {
	id      int
	master  *Master
	machine vm.Machine
	sandbox *sandbox.Sandbox
	life    *WorkerLifecycle
	cfg     WorkerConfig
	log     *slog.Logger

	resetNeeded bool
}

// NewWorker forks master's machine and installs the ephemeral hook set
// (spec §3.5, §4.6). master must already be Frozen.
func NewWorker(master *Master, id int, cfg WorkerConfig, log *slog.Logger) (*Worker, error) {
	if master.State() != MasterFrozen {
		return nil, errx.With(ErrNotFrozen, ": master state is %s", master.State())
	}
	if log == nil {
		log = slog.Default()
	}
	clone, err := master.Machine().Fork(cfg.MaxReqMem)
	if err != nil {
		return nil, errx.Wrap(ErrNotFrozen, err)
	}

	w := &Worker{
		id:      id,
		master:  master,
		machine: clone,
		sandbox: master.Sandbox().ForkForWorker(),
		life:    NewWorkerLifecycle(),
		cfg:     cfg,
		log:     log,
	}
	sandbox.InstallEphemeral(w.machine, w.sandbox)
	return w, nil
}

// Machine returns the worker's forked vm.Machine.
func (w *Worker) Machine() vm.Machine { return w.machine }

// State returns the worker's lifecycle state.
func (w *Worker) State() WorkerState { return w.life.State() }

// restartPollSyscall re-enters the guest's polling syscall matching the
// master's latched poll_method (spec §4.8 step 2). The sim/real
// back-end honors this by resuming Run from where Stop left off; this
// method only records the lifecycle transition.
func (w *Worker) restartPollSyscall() error {
	if w.master.PollMethod() == sandbox.PollUnset {
		return ErrPollMethodUnset
	}
	if !w.life.Transition(WorkerPollingInKernel) {
		// Idle -> PollingInKernel is the only legal edge into this
		// state; a non-Idle worker re-entering poll is a logic error
		// upstream, not something Serve should mask.
		return errx.With(ErrPollMethodUnset, ": worker %d not idle (state=%s)", w.id, w.life.State())
	}
	return nil
}

// Serve runs one poll/serve cycle: restart the polling syscall, resume
// the guest, and classify the outcome (spec §4.8 step 2).
func (w *Worker) Serve(ctx context.Context) error {
	if err := w.restartPollSyscall(); err != nil {
		return err
	}

	result := w.machine.Run(ctx)
	switch result.Fault {
	case vm.FaultNone:
		w.life.Transition(WorkerServing)
	default:
		w.resetNeeded = true
	}
	w.life.Transition(WorkerResetPending)
	return result.Err
}

// MarkResetNeeded flags the worker so its next ResetTo does not keep
// working memory (spec §0 provenance). Pool calls it when Serve returns
// an error; the FreeFD hook does not call it.
func (w *Worker) MarkResetNeeded() { w.resetNeeded = true }

// ResetTo restores the worker to the master's frozen snapshot (spec
// §4.5 "Reset semantics", refined per §0 provenance: a worker flagged by
// MarkResetNeeded, or whose last Serve ended in a fault, never keeps
// working memory, even if EphemeralKeepWorkingMem is set). Closing the
// tracked client does not flag the worker, so after a request that
// completed without error working memory is kept whenever
// EphemeralKeepWorkingMem is set.
func (w *Worker) ResetTo(onReset func()) error {
	keepWorkMem := !w.resetNeeded && w.cfg.EphemeralKeepWorkingMem
	opts := vm.ResetOptions{
		FreeWorkMemAbove: w.cfg.MaxReqMem,
		CopyAllRegisters: true,
		KeepWorkMemory:   keepWorkMem,
		OnReset:          onReset,
	}
	if err := w.machine.ResetTo(w.master.Machine(), opts); err != nil {
		return errx.Wrap(ErrResetFailed, err)
	}
	w.sandbox.EnableEphemeral()
	w.resetNeeded = false
	if !w.life.Transition(WorkerIdle) {
		return errx.With(ErrResetFailed, ": worker %d not reset_pending (state=%s)", w.id, w.life.State())
	}
	return nil
}
