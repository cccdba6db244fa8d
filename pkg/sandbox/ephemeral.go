package sandbox

import "github.com/ovmrun/hatchery/pkg/vm"

const errnoEAGAIN = -11

// EnableEphemeral resets sb's worker client-tracking state (spec §4.6),
// clearing any tracked client from a previous request. InstallEphemeral
// is what registers the worker hook set.
func (s *Sandbox) EnableEphemeral() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blockingConnections = false
	s.hasClient = false
	s.clientVFD = 0
}

// Accept implements the ephemeral accept() hook: once a client is
// tracked, further accepts are starved with EAGAIN so a second client
// can never be admitted mid-request (spec §4.6).
func (s *Sandbox) Accept() vm.HookOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blockingConnections {
		return vm.HookOutcome{Allow: false, SkipSyscall: true, ReturnValue: errnoEAGAIN}
	}
	return vm.HookOutcome{Allow: true}
}

// AcceptSocket implements the ephemeral accept_socket hook (spec §4.6).
func (s *Sandbox) AcceptSocket(listenerVFD, hostFD int, addr vm.SockAddr) vm.HookOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasClient {
		return vm.HookOutcome{Allow: false, SkipSyscall: true, ReturnValue: errnoEAGAIN}
	}
	s.hasClient = true
	s.clientVFD = hostFD
	s.blockingConnections = true
	return vm.HookOutcome{Allow: true, ReturnValue: int64(hostFD)}
}

// FreeFD implements the ephemeral free_fd hook (spec §4.6): closing the
// tracked client fd is the Worker's request-complete signal.
func (s *Sandbox) FreeFD(vfd int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasClient || vfd != s.clientVFD {
		return false
	}
	s.hasClient = false
	s.blockingConnections = false
	return true
}

// InstallEphemeral wires the worker hook set onto m, replacing the
// Master's initialization-time quiescence hooks (spec §4.6). Path and
// network hooks are left as-is: a Worker still enforces the same
// policy while serving.
func InstallEphemeral(m vm.Machine, sb *Sandbox) {
	sb.EnableEphemeral()
	m.RegisterHooks(vm.HookTable{
		OpenForRead:     sb.OpenForRead,
		OpenForWrite:    sb.OpenForWrite,
		ResolveSymlink:  sb.ResolveSymlink,
		Connect:         sb.Connect,
		Bind:            sb.Bind,
		ListeningSocket: sb.ListeningSocket,
		Accept:          sb.Accept,
		AcceptSocket:    sb.AcceptSocket,
		FreeFD:          sb.FreeFD,
	})
}
