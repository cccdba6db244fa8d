package sim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ovmrun/hatchery/pkg/vm"
)

func TestForkCloneIsIndependent(t *testing.T) {
	master := New("master")
	master.SetRegisters(vm.Registers{RIP: 100})
	require.NoError(t, master.PrepareCopyOnWrite(0))

	cloneI, err := master.Fork(0)
	require.NoError(t, err)
	clone := cloneI.(*SimMachine)

	clone.SetRegisters(vm.Registers{RIP: 200})
	require.Equal(t, uint64(100), master.Registers().RIP)
	require.Equal(t, uint64(200), clone.Registers().RIP)
	require.Equal(t, 1, master.ForkCount())
}

func TestResetToRestoresMasterRegistersAndFiresCallback(t *testing.T) {
	master := New("master")
	master.SetRegisters(vm.Registers{RIP: 42})

	worker := New("worker")
	worker.SetRegisters(vm.Registers{RIP: 999})

	fired := false
	err := worker.ResetTo(master, vm.ResetOptions{OnReset: func() { fired = true }})
	require.NoError(t, err)
	require.Equal(t, uint64(42), worker.Registers().RIP)
	require.True(t, fired)
	require.Equal(t, 1, worker.ResetCount())
}

func TestSkipHypercallAdvancesRIP(t *testing.T) {
	m := New("m")
	m.SetRegisters(vm.Registers{RIP: 10})
	require.NoError(t, m.SkipHypercall())
	require.Equal(t, uint64(12), m.Registers().RIP)
}

func TestRegisterHooksReplacesTable(t *testing.T) {
	m := New("m")
	called := false
	m.RegisterHooks(vm.HookTable{
		FreeFD: func(vfd int) bool { called = true; return vfd == 7 },
	})
	require.True(t, m.Hooks().FreeFD(7))
	require.True(t, called)
}
