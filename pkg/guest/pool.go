package guest

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// PoolConfig is the Pool's own configuration, layered on top of each
// Worker's WorkerConfig (spec §4.8, §5).
type PoolConfig struct {
	Concurrency int
	Worker      WorkerConfig
	// OnDebugFault is invoked (if non-nil) when a worker thread hits a
	// fault and the DEBUG environment flag is set (spec §4.8 step 4);
	// wiring a real GDB stub onto the faulted machine is the caller's
	// job (pkg/gdbstub).
	OnDebugFault func(w *Worker)
}

// Pool owns a frozen Master and supervises Concurrency worker
// goroutines, each looping Serve/ResetTo against its own forked Worker
// (spec §3.7, §4.8).
type Pool struct {
	master *Master
	cfg    PoolConfig
	log    *slog.Logger

	resetCount int64
}

// NewPool wraps a frozen master with pool supervision.
func NewPool(master *Master, cfg PoolConfig, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Pool{master: master, cfg: cfg, log: log}
}

// ResetCount reports the total number of completed worker resets, for
// telemetry/tests.
func (p *Pool) ResetCount() int64 { return atomic.LoadInt64(&p.resetCount) }

// Run spawns Concurrency worker goroutines and blocks until ctx is
// cancelled or every goroutine exits. The single-VM optimization (spec
// §4.8 "Single-VM optimization") is deliberately not special-cased here
// at the type level: with Concurrency == 1 and Worker.Ephemeral == false
// this loop still runs, but RunSingleVM below is the entry point that
// skips Worker/Pool machinery entirely for that case, matching the
// teacher's pattern of a dedicated fast path alongside the general one.
func (p *Pool) Run(ctx context.Context) error {
	if p.master.State() != MasterFrozen {
		return ErrNotFrozen
	}

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.runWorkerLoop(ctx, id)
		}(i)
	}
	wg.Wait()
	return nil
}

func (p *Pool) runWorkerLoop(ctx context.Context, id int) {
	w, err := NewWorker(p.master, id, p.cfg.Worker, p.log)
	if err != nil {
		p.log.Error("worker construction failed", "worker", id, "err", err)
		return
	}

	for ctx.Err() == nil {
		if err := w.Serve(ctx); err != nil {
			w.MarkResetNeeded()
			p.log.Warn("worker serve failed", "worker", id, "err", err)
			if p.cfg.OnDebugFault != nil {
				p.cfg.OnDebugFault(w)
			}
		}

		if p.cfg.Worker.Ephemeral || w.resetNeeded {
			if err := w.ResetTo(func() { atomic.AddInt64(&p.resetCount, 1) }); err != nil {
				p.log.Error("worker reset failed", "worker", id, "err", err)
				continue
			}
		}
	}
}

// RunSingleVM is the Pool's single-VM optimization (spec §4.8): when
// Concurrency == 1 and the workload is not ephemeral, the Master itself
// services requests without ever forking a Worker.
func RunSingleVM(ctx context.Context, master *Master) error {
	if master.State() != MasterFrozen {
		return ErrNotFrozen
	}
	for ctx.Err() == nil {
		result := master.machine.Run(ctx)
		if result.Err != nil {
			return result.Err
		}
	}
	return nil
}
