package bootstrap

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ovmrun/hatchery/pkg/sandbox"
)

func TestContextWithSignalCancelsOnSIGTERM(t *testing.T) {
	ctx, cancel := ContextWithSignal(context.Background())
	defer cancel()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not cancelled on SIGTERM")
	}
}

func TestRSSMiBReturnsNonNegative(t *testing.T) {
	require.GreaterOrEqual(t, RSSMiB(), 0)
}

func TestBannerStringIncludesWarmupOnlyWhenPresent(t *testing.T) {
	b := Banner{
		ProgramPath: "/bin/server",
		PollMethod:  sandbox.PollEpoll,
		Concurrency: 4,
		Ephemeral:   true,
		InitTime:    12 * time.Millisecond,
		RSSMiB:      37,
	}
	require.Equal(t, "Program '/bin/server' loaded. epoll vm=4 ephemeral huge=0/0 init=12ms rss=37MB", b.String())

	b.WarmupTime = 250 * time.Millisecond
	require.Contains(t, b.String(), "warmup=250ms")
}
