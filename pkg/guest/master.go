package guest

import (
	"context"
	"log/slog"
	"time"

	"github.com/ovmrun/hatchery/internal/errx"
	"github.com/ovmrun/hatchery/pkg/policy"
	"github.com/ovmrun/hatchery/pkg/sandbox"
	"github.com/ovmrun/hatchery/pkg/vm"
)

// MasterConfig is the boot-time configuration a Master needs beyond its
// Policy (spec §4.1, §4.4, §6).
type MasterConfig struct {
	MaxBootTime time.Duration
	Warmup      *WarmupConfig // nil disables warmup
}

// Master owns the one guest that boots to quiescence, optionally runs
// warmup, and freezes as the copy-on-write template every Worker forks
// from (spec §3.4, §4.5).
type Master struct {
	machine       vm.Machine
	sandbox       *sandbox.Sandbox
	life          *MasterLifecycle
	log           *slog.Logger
	cfg           MasterConfig
	warmupElapsed time.Duration
}

// NewMaster wraps an already-booted-but-not-yet-run vm.Machine with a
// Sandbox built from pol.
func NewMaster(m vm.Machine, pol *policy.Policy, cfg MasterConfig, log *slog.Logger) *Master {
	if log == nil {
		log = slog.Default()
	}
	sb := sandbox.New(pol, log)
	sandbox.Install(m, sb)
	return &Master{machine: m, sandbox: sb, life: NewMasterLifecycle(), log: log, cfg: cfg}
}

// Machine returns the underlying vm.Machine, for Pool/Worker to Fork
// from once Boot has frozen it.
func (ms *Master) Machine() vm.Machine { return ms.machine }

// Sandbox returns the policy-enforcing sandbox installed on the master,
// shared (by Policy reference, not by mutable state) with every Worker.
func (ms *Master) Sandbox() *sandbox.Sandbox { return ms.sandbox }

// State returns the current lifecycle state.
func (ms *Master) State() MasterState { return ms.life.State() }

// PollMethod returns the quiescence idiom latched during Boot.
func (ms *Master) PollMethod() sandbox.PollMethod { return ms.sandbox.PollMethod() }

// WarmupElapsed returns how long Boot spent in Warmup, or zero if warmup
// was disabled or Boot has not completed it yet.
func (ms *Master) WarmupElapsed() time.Duration { return ms.warmupElapsed }

// Boot runs the guest to its first quiescent point, optionally warms it
// up, advances past the hypercall boundary, and freezes it as the
// copy-on-write template (spec §3.4, §4.4, §4.5).
func (ms *Master) Boot(ctx context.Context) error {
	bootCtx := ctx
	var cancel context.CancelFunc
	if ms.cfg.MaxBootTime > 0 {
		bootCtx, cancel = context.WithTimeout(ctx, ms.cfg.MaxBootTime)
		defer cancel()
	}

	result := ms.machine.Run(bootCtx)
	if result.Fault != vm.FaultNone {
		ms.life.Transition(MasterFailed)
		return errx.Wrap(ErrBootTimeout, result.Err)
	}
	if ms.sandbox.PollMethod() == sandbox.PollUnset {
		ms.life.Transition(MasterFailed)
		return ErrBootTimeout
	}
	if !ms.life.Transition(MasterWaitingForRequests) {
		return errx.With(ErrNotFrozen, ": unexpected lifecycle state %s", ms.life.State())
	}
	ms.log.Info("master reached waiting_for_requests", "poll_method", ms.sandbox.PollMethod().String())

	if ms.cfg.Warmup != nil {
		warmupStart := time.Now()
		if err := ms.Warmup(bootCtx, *ms.cfg.Warmup); err != nil {
			ms.life.Transition(MasterFailed)
			return err
		}
		ms.warmupElapsed = time.Since(warmupStart)
	}

	if err := ms.machine.SkipHypercall(); err != nil {
		ms.life.Transition(MasterFailed)
		return errx.Wrap(ErrNotFrozen, err)
	}
	if err := ms.machine.PrepareCopyOnWrite(0); err != nil {
		ms.life.Transition(MasterFailed)
		return errx.Wrap(ErrNotFrozen, err)
	}
	if !ms.life.Transition(MasterFrozen) {
		return errx.With(ErrNotFrozen, ": unexpected lifecycle state %s", ms.life.State())
	}
	ms.log.Info("master frozen")
	return nil
}
