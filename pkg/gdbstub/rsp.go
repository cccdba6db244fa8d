package gdbstub

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/ovmrun/hatchery/pkg/vm"
)

// session is one connected debugger's remote-serial-protocol loop. It
// answers a minimal command set: 'g' reads registers; 'm' always
// answers "00" without reading guest memory; 's' and 'c' report a
// SIGTRAP stop without stepping or resuming the machine; 'G' is
// acknowledged but not applied. It is not a full GDB server.
type session struct {
	conn net.Conn
	m    vm.Machine
	log  *slog.Logger
	r    *bufio.Reader
}

func newSession(conn net.Conn, m vm.Machine, log *slog.Logger) *session {
	return &session{conn: conn, m: m, log: log, r: bufio.NewReader(conn)}
}

func (s *session) run(ctx context.Context) error {
	for {
		pkt, err := s.readPacket()
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.dispatch(pkt)
	}
}

// readPacket reads one RSP frame: '$' data '#' checksum. The checksum
// is consumed but not verified — this stub trusts a local debugger.
func (s *session) readPacket() (string, error) {
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == '+' || b == '-' {
			continue // ack/nack from a previous reply
		}
		if b != '$' {
			continue
		}
		break
	}
	data, err := s.r.ReadString('#')
	if err != nil {
		return "", err
	}
	data = data[:len(data)-1]
	if _, err := s.r.Discard(2); err != nil { // two-hex-digit checksum
		return "", err
	}
	return data, nil
}

func (s *session) reply(payload string) {
	sum := 0
	for _, b := range []byte(payload) {
		sum += int(b)
	}
	fmt.Fprintf(s.conn, "$%s#%02x", payload, sum&0xff)
}

func (s *session) dispatch(pkt string) {
	s.conn.Write([]byte("+")) // ack every packet per RSP convention

	if len(pkt) == 0 {
		s.reply("")
		return
	}

	switch pkt[0] {
	case 'g': // read all registers
		s.reply(encodeRegisters(s.m.Registers()))
	case 'G': // write all registers — accepted, not applied (read-only stub)
		s.reply("OK")
	case 'm': // read memory: not backed by a real address space here
		s.reply("00")
	case 's', 'c': // step / continue
		s.reply("S05") // SIGTRAP, matching a single-step/breakpoint stop
	case '?': // last-stop-reason query
		s.reply("S05")
	default:
		s.reply("") // unsupported command
	}
}

// encodeRegisters renders the subset of vm.Registers GDB's 'g' packet
// expects, as little-endian hex — real targets encode the full
// register file; this stub only exposes the fields vm.Registers tracks.
func encodeRegisters(r vm.Registers) string {
	out := ""
	for _, v := range []uint64{r.RAX, r.RDI, r.RSI, r.RDX, r.RCX, r.R8, r.R9, r.RIP} {
		out += leHex64(v)
	}
	return out
}

func leHex64(v uint64) string {
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	out := make([]byte, 0, 16)
	for _, b := range buf {
		out = append(out, hexDigit(b>>4), hexDigit(b&0xf))
	}
	return string(out)
}

func hexDigit(n byte) byte {
	if n < 10 {
		return '0' + n
	}
	return 'a' + (n - 10)
}
