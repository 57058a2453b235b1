// Package sysmem probes available system memory so the lifecycle manager can
// pick a model that actually fits.
package sysmem

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// Prober reports how much memory is available for a model load.
type Prober interface {
	AvailableBytes() uint64
}

// Meminfo reads /proc/meminfo. The zero value uses the default path.
type Meminfo struct {
	// Path overrides /proc/meminfo, used by tests.
	Path string
}

// developmentFallbackBytes is returned when procfs is unavailable
// (darwin/windows dev machines) so the daemon can still start.
const developmentFallbackBytes = 8 * 1024 * 1024 * 1024

// AvailableBytes returns MemAvailable, falling back to MemFree on older
// kernels and to a fixed development value when procfs cannot be read.
func (m Meminfo) AvailableBytes() uint64 {
	path := m.Path
	if path == "" {
		path = "/proc/meminfo"
	}
	f, err := os.Open(path)
	if err != nil {
		return developmentFallbackBytes
	}
	defer f.Close()

	var availKB, freeKB uint64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "MemAvailable:"):
			availKB = parseMeminfoKB(line)
		case strings.HasPrefix(line, "MemFree:"):
			freeKB = parseMeminfoKB(line)
		}
	}
	if sc.Err() != nil {
		return developmentFallbackBytes
	}
	if availKB == 0 {
		availKB = freeKB
	}
	if availKB == 0 {
		return developmentFallbackBytes
	}
	return availKB * 1024
}

func parseMeminfoKB(line string) uint64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, _ := strconv.ParseUint(fields[1], 10, 64)
	return v
}

// Fixed is a Prober returning a constant value, used by tests and diagnose.
type Fixed uint64

func (f Fixed) AvailableBytes() uint64 { return uint64(f) }
