//go:build linux

package sandbox

import (
	"bytes"
	"os"
	"runtime/debug"
	"strconv"

	"golang.org/x/sys/unix"
)

// threadHeadroom leaves address space for the stacks of threads the
// runtime starts after the cap is set; cgo threads reserve 8MB each.
const threadHeadroom = 64 << 20

// limitMemory caps the worker's address space at its current size plus mb
// megabytes, and sets the Go soft limit below that so the collector works
// hard before the cap is reached.
func limitMemory(mb int) {
	budget := uint64(mb) << 20
	debug.SetMemoryLimit(int64(budget * 3 / 4))

	vsz := virtualSize()
	if vsz == 0 {
		return
	}
	lim := vsz + budget + threadHeadroom
	_ = unix.Setrlimit(unix.RLIMIT_AS, &unix.Rlimit{Cur: lim, Max: lim})
}

// virtualSize reads the process's mapped size from /proc/self/statm.
func virtualSize() uint64 {
	data, err := os.ReadFile("/proc/self/statm")
	if err != nil {
		return 0
	}
	fields := bytes.Fields(data)
	if len(fields) == 0 {
		return 0
	}
	pages, err := strconv.ParseUint(string(fields[0]), 10, 64)
	if err != nil {
		return 0
	}
	return pages * uint64(os.Getpagesize())
}
