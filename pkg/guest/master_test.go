package guest

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ovmrun/hatchery/pkg/policy"
	"github.com/ovmrun/hatchery/pkg/vm"
	"github.com/ovmrun/hatchery/pkg/vm/sim"
)

func addr0() vm.SockAddr {
	return vm.SockAddr{IP: net.ParseIP("0.0.0.0").To4(), Port: 0}
}

func testMasterPolicy(t *testing.T) *policy.Policy {
	t.Helper()
	p, err := policy.Build(policy.Config{
		AllowedListenV4: []string{"0.0.0.0:0"},
	})
	require.NoError(t, err)
	return p
}

// runAndLatch simulates the back-end delivering one Accept4 quiescence
// hit on m's listener before Run's context is cancelled, the way a real
// back-end would stop the guest from inside Run.
func runAndLatch(ms *Master, listenerFD int) {
	go func() {
		time.Sleep(5 * time.Millisecond)
		ms.Sandbox().Accept4(listenerFD, false)
	}()
}

func TestMasterBootReachesFrozenWithoutWarmup(t *testing.T) {
	m := sim.New("master")
	ms := NewMaster(m, testMasterPolicy(t), MasterConfig{MaxBootTime: 50 * time.Millisecond}, nil)

	ms.Sandbox().ListeningSocket(1, 7, addr0())
	runAndLatch(ms, 7)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// Run blocks until ctx.Done in the sim backend; cancel shortly after
	// the latch fires so Boot observes PollMethod set.
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := ms.Boot(ctx)
	require.NoError(t, err)
	require.Equal(t, MasterFrozen, ms.State())
	require.True(t, m.Frozen())
	require.Zero(t, ms.WarmupElapsed())
}

func TestMasterBootFailsWithoutQuiescenceHit(t *testing.T) {
	m := sim.New("master")
	ms := NewMaster(m, testMasterPolicy(t), MasterConfig{MaxBootTime: 10 * time.Millisecond}, nil)

	err := ms.Boot(context.Background())
	require.ErrorIs(t, err, ErrBootTimeout)
	require.Equal(t, MasterFailed, ms.State())
}
