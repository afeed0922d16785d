package engine

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
)

// Threads picks the ffmpeg thread count from the logical CPU count,
// falling back to the runtime's view when the probe fails.
func Threads() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		n = runtime.NumCPU()
	}
	if n <= 0 {
		n = 1
	}
	return n
}
