//go:build !linux

package sandbox

import "runtime/debug"

func limitMemory(mb int) {
	debug.SetMemoryLimit(int64(mb) << 20 * 3 / 4)
}
