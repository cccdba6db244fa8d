// Package sandbox mediates the syscalls a guest is allowed to make,
// backed by an immutable policy.Policy (spec §4.3).
package sandbox

import (
	"log/slog"
	"sync"

	"github.com/ovmrun/hatchery/pkg/netpolicy"
	"github.com/ovmrun/hatchery/pkg/policy"
	"github.com/ovmrun/hatchery/pkg/vm"
)

// TrackedListener is the one listening socket a Sandbox cares about: the
// guest program's accept() loop.
type TrackedListener struct {
	VFD  int
	FD   int
	Addr vm.SockAddr
}

// Sandbox holds one guest's path and network policy plus the mutable,
// per-machine state the hooks update as the guest runs: the tracked
// listener, the one-shot poll-method latch, and (for workers) the
// single tracked client connection.
type Sandbox struct {
	policy *policy.Policy
	log    *slog.Logger
	cwd    string

	mu         sync.Mutex
	listener   *TrackedListener
	pollMethod PollMethod

	// Ephemeral worker state (spec §4.6); zero value is correct for a
	// Master, which never installs the ephemeral hook set.
	blockingConnections bool
	clientVFD           int
	hasClient           bool
}

// New builds a Sandbox over an already-constructed Policy. Forking a
// Worker from a Master means constructing a new Sandbox over the same
// Policy pointer (spec §4.5 "inherits the Master's connect/bind
// policies") — the Policy is shared, the tracked-listener/client state
// is not.
func New(pol *policy.Policy, log *slog.Logger) *Sandbox {
	if log == nil {
		log = slog.Default()
	}
	return &Sandbox{policy: pol, log: log, cwd: "/"}
}

// ForkForWorker returns a new Sandbox that shares s's Policy (and its
// latched poll method and tracked listener, both read-only facts about
// the guest program's structure that don't change per-request) but
// starts with fresh ephemeral/client-tracking state, since each Worker
// must track its own single client independently (spec §4.5 "Fork
// semantics").
func (s *Sandbox) ForkForWorker() *Sandbox {
	s.mu.Lock()
	listener := s.listener
	pollMethod := s.pollMethod
	s.mu.Unlock()

	child := New(s.policy, s.log)
	child.cwd = s.cwd
	child.listener = listener
	child.pollMethod = pollMethod
	return child
}

// SetCWD updates the working directory used to resolve relative guest
// paths. Guests in this model run from a fixed directory, so this is
// normally called once before the first path hook fires.
func (s *Sandbox) SetCWD(cwd string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cwd = cwd
}

func (s *Sandbox) cwdLocked() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cwd
}

// Listener returns the tracked listener, if listening_socket has fired.
func (s *Sandbox) Listener() (TrackedListener, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return TrackedListener{}, false
	}
	return *s.listener, true
}

// PollMethod returns the latched quiescence idiom, or PollUnset.
func (s *Sandbox) PollMethod() PollMethod {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollMethod
}

func (s *Sandbox) latchPollMethod(m PollMethod) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pollMethod != PollUnset {
		return false
	}
	s.pollMethod = m
	return true
}

// OpenForRead implements the open_for_read hook (spec §4.3).
func (s *Sandbox) OpenForRead(path string) vm.HookOutcome {
	res := s.policy.ResolveRead(path, s.cwdLocked())
	if !res.Allowed {
		s.log.Debug("path denied", "op", "open_for_read", "path", path)
		return vm.HookOutcome{Allow: false}
	}
	return vm.HookOutcome{Allow: true, RewritePath: res.HostPath}
}

// OpenForWrite implements the open_for_write hook (spec §4.3).
func (s *Sandbox) OpenForWrite(path string) vm.HookOutcome {
	res := s.policy.ResolveWrite(path, s.cwdLocked())
	if !res.Allowed {
		s.log.Debug("path denied", "op", "open_for_write", "path", path)
		return vm.HookOutcome{Allow: false}
	}
	return vm.HookOutcome{Allow: true, RewritePath: res.HostPath}
}

// ResolveSymlink implements the resolve_symlink hook (spec §4.3).
func (s *Sandbox) ResolveSymlink(path string) vm.HookOutcome {
	res := s.policy.ResolveSymlink(path, s.cwdLocked())
	if !res.Allowed {
		return vm.HookOutcome{Allow: false}
	}
	return vm.HookOutcome{Allow: true, RewritePath: res.HostPath, ReturnValue: boolToInt(res.Flags.Symlink)}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// pathPermittedBothWays checks the AF_UNIX connect/bind case: the path
// must be both readable and writable under policy (spec §4.3).
func (s *Sandbox) pathPermittedBothWays(path string) bool {
	res := s.policy.ResolvePath(path, s.cwdLocked(), func(f policy.Flags) bool {
		return f.Readable && f.Writable
	})
	return res.Allowed
}

func familyOf(addr vm.SockAddr) netpolicy.Family {
	if len(addr.IP) == 4 {
		return netpolicy.FamilyIPv4
	}
	return netpolicy.FamilyIPv6
}

// Connect implements the connect hook (spec §4.3).
func (s *Sandbox) Connect(fd int, addr vm.SockAddr) vm.HookOutcome {
	if addr.Unix {
		return vm.HookOutcome{Allow: s.pathPermittedBothWays(addr.Path)}
	}
	v := s.policy.ConnectValidator(familyOf(addr))
	return vm.HookOutcome{Allow: v.Allow(addr.IP, addr.Port)}
}

// Bind implements the bind hook (spec §4.3).
func (s *Sandbox) Bind(fd int, addr vm.SockAddr) vm.HookOutcome {
	if addr.Unix {
		return vm.HookOutcome{Allow: s.pathPermittedBothWays(addr.Path)}
	}
	v := s.policy.ListenValidator(familyOf(addr))
	return vm.HookOutcome{Allow: v.Allow(addr.IP, addr.Port)}
}

// ListeningSocket implements the listening_socket hook (spec §4.3): it
// validates the already-bound local address the same way as Bind, and
// on success records it as the Master's tracked listener.
func (s *Sandbox) ListeningSocket(vfd, fd int, addr vm.SockAddr) vm.HookOutcome {
	outcome := s.Bind(fd, addr)
	if !outcome.Allow {
		return outcome
	}
	s.mu.Lock()
	s.listener = &TrackedListener{VFD: vfd, FD: fd, Addr: addr}
	s.mu.Unlock()
	s.log.Debug("listener tracked", "vfd", vfd, "fd", fd)
	return outcome
}

// EpollWait implements the epoll_wait quiescence hook (spec §4.5).
func (s *Sandbox) EpollWait(epfd int, waitingFDs []int) bool {
	l, ok := s.Listener()
	if !ok {
		return false
	}
	for _, fd := range waitingFDs {
		if fd == l.FD {
			return s.latchPollMethod(PollEpoll)
		}
	}
	return false
}

// Poll implements the poll quiescence hook (spec §4.5).
func (s *Sandbox) Poll(waitingFDs []int) bool {
	l, ok := s.Listener()
	if !ok {
		return false
	}
	for _, fd := range waitingFDs {
		if fd == l.FD {
			return s.latchPollMethod(PollPoll)
		}
	}
	return false
}

// Accept4 implements the accept4 quiescence hook (spec §4.5): only a
// blocking accept4 on the tracked listener is a quiescent point.
func (s *Sandbox) Accept4(fd int, nonblocking bool) bool {
	if nonblocking {
		return false
	}
	l, ok := s.Listener()
	if !ok || fd != l.FD {
		return false
	}
	return s.latchPollMethod(PollBlocking)
}

// Install wires sb's methods onto m's hook table. A quiescence hook that
// matches also stops m.
func Install(m vm.Machine, sb *Sandbox) {
	stopOnMatch := func(matched bool) bool {
		if matched {
			m.Stop()
		}
		return matched
	}
	m.RegisterHooks(vm.HookTable{
		OpenForRead:     sb.OpenForRead,
		OpenForWrite:    sb.OpenForWrite,
		ResolveSymlink:  sb.ResolveSymlink,
		Connect:         sb.Connect,
		Bind:            sb.Bind,
		ListeningSocket: sb.ListeningSocket,
		EpollWait:       func(epfd int, fds []int) bool { return stopOnMatch(sb.EpollWait(epfd, fds)) },
		Poll:            func(fds []int) bool { return stopOnMatch(sb.Poll(fds)) },
		Accept4:         func(fd int, nonblocking bool) bool { return stopOnMatch(sb.Accept4(fd, nonblocking)) },
	})
}
