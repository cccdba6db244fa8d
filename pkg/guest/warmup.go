package guest

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ovmrun/hatchery/internal/errx"
	"github.com/ovmrun/hatchery/pkg/sandbox"
)

// defaultWarmupWorkers is the W constant from spec §4.4: a small,
// fixed number of concurrent warmup client threads.
const defaultWarmupWorkers = 4

// WarmupConfig configures the pre-freeze client load described in spec
// §4.4. Addr accepts a bare "host:port" for TCP or "unix:<path>" for a
// Unix domain socket, per original_source's connect_and_send_request.
type WarmupConfig struct {
	Addr                  string
	Path                  string
	ConnectRequests       int
	IntraConnectRequests  int
	Workers               int
	DialTimeout           time.Duration
}

func (c WarmupConfig) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return defaultWarmupWorkers
}

func (c WarmupConfig) path() string {
	if c.Path == "" {
		return "/"
	}
	return c.Path
}

// WarmupClient issues the synthetic HTTP/1.1 request load one warmup
// worker sends (spec §4.4 step 2).
type WarmupClient struct {
	cfg WarmupConfig
}

// NewWarmupClient builds a client bound to cfg's address and request
// shape.
func NewWarmupClient(cfg WarmupConfig) *WarmupClient { return &WarmupClient{cfg: cfg} }

func (c *WarmupClient) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: c.cfg.DialTimeout}
	if unixPath, ok := strings.CutPrefix(c.cfg.Addr, "unix:"); ok {
		return d.DialContext(ctx, "unix", unixPath)
	}
	return d.DialContext(ctx, "tcp", c.cfg.Addr)
}

// runConnections opens ConnectRequests sequential connections, each
// sending IntraConnectRequests minimal GETs; the very last request of
// the very last connection sets Connection: close (spec §4.4 step 2).
func (c *WarmupClient) runConnections(ctx context.Context) (completed int, err error) {
	for i := 0; i < c.cfg.ConnectRequests; i++ {
		conn, derr := c.dial(ctx)
		if derr != nil {
			return completed, errx.With(ErrWarmupTimeout, ": dial %s: %w", c.cfg.Addr, derr)
		}
		lastConn := i == c.cfg.ConnectRequests-1
		n, rerr := c.runRequests(conn, lastConn)
		conn.Close()
		completed += n
		if rerr != nil {
			return completed, rerr
		}
	}
	return completed, nil
}

func (c *WarmupClient) runRequests(conn net.Conn, lastConn bool) (completed int, err error) {
	reader := bufio.NewReader(conn)
	for j := 0; j < c.cfg.IntraConnectRequests; j++ {
		lastRequest := lastConn && j == c.cfg.IntraConnectRequests-1
		connHeader := "keep-alive"
		if lastRequest {
			connHeader = "close"
		}
		req := fmt.Sprintf("GET %s HTTP/1.1\r\nHost: warmup\r\nConnection: %s\r\n\r\n", c.cfg.path(), connHeader)
		if _, werr := conn.Write([]byte(req)); werr != nil {
			return completed, errx.With(ErrWarmupTimeout, ": write: %w", werr)
		}
		if err := discardHTTPResponse(reader); err != nil {
			return completed, errx.With(ErrWarmupTimeout, ": read response: %w", err)
		}
		completed++
	}
	return completed, nil
}

// discardHTTPResponse reads and drops one HTTP/1.x response: the status
// line, headers up to the blank line, and — if present — a
// Content-Length body. A body without a positive Content-Length,
// chunked ones included, is not read: only the status line and headers
// are consumed.
func discardHTTPResponse(r *bufio.Reader) error {
	contentLength := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return err
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			break
		}
		if name, value, ok := strings.Cut(trimmed, ":"); ok && strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			fmt.Sscanf(strings.TrimSpace(value), "%d", &contentLength)
		}
	}
	if contentLength <= 0 {
		return nil
	}
	buf := make([]byte, contentLength)
	_, err := readFull(r, buf)
	return err
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Warmup drives spec §4.4's pre-freeze load: W concurrent warmup
// clients each issue ConnectRequests connections against the master's
// listening address. It only runs the clients: it installs no counting
// hooks and does not resume the guest while they run. It returns once
// every client has completed or the context's boot-time budget expires.
func (ms *Master) Warmup(ctx context.Context, cfg WarmupConfig) error {
	if ms.sandbox.PollMethod() == sandbox.PollUnset {
		return ErrPollMethodUnset
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.workers(); i++ {
		client := NewWarmupClient(cfg)
		g.Go(func() error {
			_, err := client.runConnections(gctx)
			return err
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
		ms.log.Info("warmup complete", "workers", cfg.workers(), "connect_requests", cfg.ConnectRequests)
		return nil
	case <-ctx.Done():
		return ErrWarmupTimeout
	}
}
