// Package gdbstub implements the minimal GDB remote-serial-protocol
// subset hatchery exposes when DEBUG/DEBUG_FORK fires on a worker fault
// (spec §3.11, §6): it reads registers; memory reads always answer a
// single zero byte, and step/continue report a SIGTRAP stop without
// running the machine. It is not a full GDB server.
package gdbstub

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/ovmrun/hatchery/pkg/vm"
)

// ErrAcceptTimeout is returned when no debugger attaches within the
// accept window.
var ErrAcceptTimeout = errors.New("gdbstub: no client connected within accept timeout")

const acceptTimeout = 60 * time.Second

// Serve listens on addr, accepts exactly one debugger connection within
// 60s, and runs the remote-serial-protocol loop against m until the
// client disconnects or ctx is cancelled.
func Serve(ctx context.Context, m vm.Machine, addr string, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	type acceptResult struct {
		conn net.Conn
		err  error
	}
	accepted := make(chan acceptResult, 1)
	go func() {
		conn, err := ln.Accept()
		accepted <- acceptResult{conn, err}
	}()

	select {
	case res := <-accepted:
		if res.err != nil {
			return res.err
		}
		defer res.conn.Close()
		log.Info("gdb client attached", "remote", res.conn.RemoteAddr())
		return newSession(res.conn, m, log).run(ctx)
	case <-time.After(acceptTimeout):
		return ErrAcceptTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
