package sandbox

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ovmrun/hatchery/pkg/policy"
	"github.com/ovmrun/hatchery/pkg/vm"
)

func testPolicy(t *testing.T) *policy.Policy {
	t.Helper()
	p, err := policy.Build(policy.Config{
		CWD: "/",
		Paths: []policy.RawPath{
			{VirtualPath: "/srv", RealPath: "/real/srv", Readable: true, Writable: true},
			{VirtualPath: "/etc", RealPath: "/etc", Readable: true},
		},
		AllowedConnectV4: []string{"10.0.0.1:443"},
		AllowedListenV4:  []string{"0.0.0.0:8080"},
	})
	require.NoError(t, err)
	return p
}

func TestOpenForReadAndWrite(t *testing.T) {
	sb := New(testPolicy(t), nil)

	out := sb.OpenForRead("/etc/hosts")
	require.True(t, out.Allow)
	require.Equal(t, "/etc/hosts", out.RewritePath)

	out = sb.OpenForWrite("/etc/hosts")
	require.False(t, out.Allow)

	out = sb.OpenForWrite("/srv/data.db")
	require.True(t, out.Allow)
	require.Equal(t, "/real/srv/data.db", out.RewritePath)
}

func TestConnectAndBindAgainstNetworkValidator(t *testing.T) {
	sb := New(testPolicy(t), nil)

	allowed := sb.Connect(3, vm.SockAddr{IP: net.ParseIP("10.0.0.1").To4(), Port: 443})
	require.True(t, allowed.Allow)

	denied := sb.Connect(3, vm.SockAddr{IP: net.ParseIP("8.8.8.8").To4(), Port: 443})
	require.False(t, denied.Allow)

	bound := sb.Bind(4, vm.SockAddr{IP: net.ParseIP("0.0.0.0").To4(), Port: 8080})
	require.True(t, bound.Allow)
}

func TestUnixSocketRequiresBothReadAndWrite(t *testing.T) {
	sb := New(testPolicy(t), nil)

	allowed := sb.Connect(3, vm.SockAddr{Unix: true, Path: "/srv/ctl.sock"})
	require.True(t, allowed.Allow)

	denied := sb.Connect(3, vm.SockAddr{Unix: true, Path: "/etc/ctl.sock"})
	require.False(t, denied.Allow, "/etc is read-only, so a unix-socket path under it must be denied")
}

func TestListeningSocketTracksListenerAndQuiescenceLatchesOnce(t *testing.T) {
	sb := New(testPolicy(t), nil)

	out := sb.ListeningSocket(5, 9, vm.SockAddr{IP: net.ParseIP("0.0.0.0").To4(), Port: 8080})
	require.True(t, out.Allow)

	l, ok := sb.Listener()
	require.True(t, ok)
	require.Equal(t, 9, l.FD)

	require.True(t, sb.Accept4(9, false))
	require.Equal(t, PollBlocking, sb.PollMethod())

	// A second, different hook firing after the latch must not override it.
	require.False(t, sb.Poll([]int{9}))
	require.Equal(t, PollBlocking, sb.PollMethod())
}

func TestEpollWaitMatchesTrackedListener(t *testing.T) {
	sb := New(testPolicy(t), nil)
	sb.ListeningSocket(1, 7, vm.SockAddr{IP: net.ParseIP("0.0.0.0").To4(), Port: 8080})

	require.False(t, sb.EpollWait(0, []int{3, 4}))
	require.True(t, sb.EpollWait(0, []int{3, 7}))
	require.Equal(t, PollEpoll, sb.PollMethod())
}

func TestNonBlockingAccept4IsNotQuiescent(t *testing.T) {
	sb := New(testPolicy(t), nil)
	sb.ListeningSocket(1, 7, vm.SockAddr{IP: net.ParseIP("0.0.0.0").To4(), Port: 8080})

	require.False(t, sb.Accept4(7, true))
	require.Equal(t, PollUnset, sb.PollMethod())
}

func TestEphemeralAcceptStarvesSecondClient(t *testing.T) {
	sb := New(testPolicy(t), nil)
	sb.EnableEphemeral()

	out := sb.AcceptSocket(1, 42, vm.SockAddr{})
	require.True(t, out.Allow)
	require.Equal(t, int64(42), out.ReturnValue)

	blocked := sb.Accept()
	require.True(t, blocked.SkipSyscall)
	require.Equal(t, int64(errnoEAGAIN), blocked.ReturnValue)

	second := sb.AcceptSocket(1, 99, vm.SockAddr{})
	require.True(t, second.SkipSyscall)

	require.False(t, sb.FreeFD(7))
	require.True(t, sb.FreeFD(42))
	require.False(t, sb.Accept().SkipSyscall, "after free_fd clears the tracked client, accept is allowed again")
}
