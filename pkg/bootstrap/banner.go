package bootstrap

import (
	"fmt"
	"time"

	"github.com/ovmrun/hatchery/pkg/sandbox"
)

// Banner is the data backing the single startup banner line printed once
// the Master reaches quiescence.
type Banner struct {
	ProgramPath   string
	PollMethod    sandbox.PollMethod
	Concurrency   int
	Ephemeral     bool
	KeepWorkMem   bool
	Hugepages     bool
	TransparentHP bool
	InitTime      time.Duration
	WarmupTime    time.Duration
	RSSMiB        int
}

// String renders the banner per the program's one-line startup contract.
func (b Banner) String() string {
	mode := ""
	if b.Ephemeral {
		mode = " ephemeral"
		if b.KeepWorkMem {
			mode += "-kwm"
		}
	}

	hugeFlag := func(v bool) int {
		if v {
			return 1
		}
		return 0
	}

	s := fmt.Sprintf("Program '%s' loaded. %s vm=%d%s huge=%d/%d init=%dms",
		b.ProgramPath, b.PollMethod, b.Concurrency, mode,
		hugeFlag(b.Hugepages), hugeFlag(b.TransparentHP),
		b.InitTime.Milliseconds())

	if b.WarmupTime > 0 {
		s += fmt.Sprintf(" warmup=%dms", b.WarmupTime.Milliseconds())
	}
	s += fmt.Sprintf(" rss=%dMB", b.RSSMiB)
	return s
}

// StoppedBanner is printed to stderr on unrecoverable server failure.
const StoppedBanner = "The server has stopped."
