package bootstrap

import (
	"os"
	"strconv"
	"strings"
)

// RSSMiB reads the resident set size of the current process from
// /proc/self/statm and returns it in MiB. Returns 0 on any platform or
// parse failure rather than erroring — it only ever feeds a banner line.
func RSSMiB() int {
	data, err := os.ReadFile("/proc/self/statm")
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0
	}
	pages, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return int(pages * int64(os.Getpagesize()) / (1024 * 1024))
}
