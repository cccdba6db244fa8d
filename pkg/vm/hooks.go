package vm

// SockAddr is the address a connect/bind/listening_socket hook observes,
// already decoded from the guest's raw sockaddr struct by the back-end.
type SockAddr struct {
	Unix bool // AF_UNIX: Path is meaningful, IP/Port are not.
	Path string
	IP   []byte // 4 or 16 bytes; nil/unspecified means AF_UNSPEC
	Port uint16
}

// HookOutcome is returned by every interception hook. Deny maps to the
// back-end returning the syscall's standard failure errno (EACCES for
// path hooks, EAGAIN for accept); RewritePath lets a path hook hand the
// back-end a host path to actually open.
type HookOutcome struct {
	Allow       bool
	RewritePath string
	SkipSyscall bool
	ReturnValue int64
}

// HookTable is the full set of syscall interception callbacks the
// Sandbox and guest package install on a Machine (spec §4.3, §4.5,
// §4.6). Any field left nil is treated as "allow, do not intercept".
type HookTable struct {
	OpenForRead    func(path string) HookOutcome
	OpenForWrite   func(path string) HookOutcome
	ResolveSymlink func(path string) HookOutcome
	Connect        func(fd int, addr SockAddr) HookOutcome
	Bind           func(fd int, addr SockAddr) HookOutcome
	ListeningSocket func(vfd, fd int, addr SockAddr) HookOutcome

	// Quiescence-detection hooks (spec §4.5): the back-end reports which
	// fds the guest is waiting on (or, for accept4, the fd and whether
	// it's non-blocking); the hook checks that against its own tracked
	// listener and, on a match, stops the guest and returns true.
	EpollWait func(epfd int, waitingFDs []int) (matched bool)
	Poll      func(waitingFDs []int) (matched bool)
	Accept4   func(fd int, nonblocking bool) (matched bool)

	// Ephemeral worker hooks (spec §4.6).
	Accept       func() HookOutcome
	AcceptSocket func(listenerVFD, hostFD int, addr SockAddr) HookOutcome
	FreeFD       func(vfd int) (resetNeeded bool)
}
