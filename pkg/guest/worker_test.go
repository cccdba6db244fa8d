package guest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ovmrun/hatchery/pkg/vm/sim"
)

func frozenMaster(t *testing.T) *Master {
	t.Helper()
	m := sim.New("master")
	ms := NewMaster(m, testMasterPolicy(t), MasterConfig{MaxBootTime: time.Second}, nil)
	ms.Sandbox().ListeningSocket(1, 7, addr0())
	runAndLatch(ms, 7)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	require.NoError(t, ms.Boot(ctx))
	return ms
}

func TestNewWorkerRequiresFrozenMaster(t *testing.T) {
	m := sim.New("master")
	ms := NewMaster(m, testMasterPolicy(t), MasterConfig{}, nil)

	_, err := NewWorker(ms, 0, WorkerConfig{}, nil)
	require.ErrorIs(t, err, ErrNotFrozen)
}

func TestWorkerForkHasIndependentSandboxState(t *testing.T) {
	ms := frozenMaster(t)

	w1, err := NewWorker(ms, 0, WorkerConfig{}, nil)
	require.NoError(t, err)
	w2, err := NewWorker(ms, 1, WorkerConfig{}, nil)
	require.NoError(t, err)

	w1.sandbox.AcceptSocket(1, 100, addr0())
	require.True(t, w1.sandbox.Accept().SkipSyscall)
	require.False(t, w2.sandbox.Accept().SkipSyscall, "worker 2's client tracking must not see worker 1's state")
}

func TestWorkerServeAndResetCycle(t *testing.T) {
	ms := frozenMaster(t)
	w, err := NewWorker(ms, 0, WorkerConfig{EphemeralKeepWorkingMem: true}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err = w.Serve(ctx)
	require.NoError(t, err)
	require.Equal(t, WorkerResetPending, w.State())

	resetFired := false
	require.NoError(t, w.ResetTo(func() { resetFired = true }))
	require.True(t, resetFired)
	require.Equal(t, WorkerIdle, w.State())
}

func TestWorkerResetToAfterMarkResetNeededReturnsToIdle(t *testing.T) {
	ms := frozenMaster(t)
	w, err := NewWorker(ms, 0, WorkerConfig{EphemeralKeepWorkingMem: true}, nil)
	require.NoError(t, err)

	w.MarkResetNeeded()
	require.True(t, w.life.Transition(WorkerPollingInKernel))
	require.True(t, w.life.Transition(WorkerServing))
	require.True(t, w.life.Transition(WorkerResetPending))

	require.NoError(t, w.ResetTo(nil))
	require.Equal(t, WorkerIdle, w.State())
}
