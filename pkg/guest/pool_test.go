package guest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ovmrun/hatchery/pkg/vm/sim"
)

func TestPoolRunRequiresFrozenMaster(t *testing.T) {
	m := sim.New("master")
	ms := NewMaster(m, testMasterPolicy(t), MasterConfig{}, nil)
	pool := NewPool(ms, PoolConfig{Concurrency: 2}, nil)
	err := pool.Run(context.Background())
	require.ErrorIs(t, err, ErrNotFrozen)
}

func TestPoolRunSpawnsConcurrentWorkersAndResetsThem(t *testing.T) {
	ms := frozenMaster(t)
	pool := NewPool(ms, PoolConfig{Concurrency: 3, Worker: WorkerConfig{Ephemeral: true}}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	err := pool.Run(ctx)
	require.NoError(t, err)
	require.Greater(t, pool.ResetCount(), int64(0))
}
