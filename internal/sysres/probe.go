// Package sysres detects the CPU and memory available to the process and
// derives transcoder tuning from it. Container limits (cgroup v2, then v1)
// take precedence over host totals so that a pod with 512MB does not size
// itself for the node's 64GB.
package sysres

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// cgroup limit values above this are treated as "unlimited" and fall through
// to the next detection tier.
const implausibleLimitBytes = int64(1) << 52

// Limits describes the memory and CPU available to the process.
type Limits struct {
	MemoryMB int    `json:"memory_mb"`
	CPUCount int    `json:"cpu_count"`
	Source   string `json:"source"` // cgroup2, cgroup1, host
}

// Probe detects resource limits and caches the last successful reading.
type Probe struct {
	mu     sync.RWMutex
	limits Limits
	logger *slog.Logger

	// root is the cgroup filesystem root; overridable for tests.
	root string
}

// NewProbe creates a resource probe. An initial detection runs synchronously
// so callers always observe a usable value.
func NewProbe(logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Probe{
		logger: logger,
		root:   "/sys/fs/cgroup",
	}
	p.Refresh()
	return p
}

// newProbeWithRoot is the test seam for cgroup file layout.
func newProbeWithRoot(logger *slog.Logger, root string) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Probe{logger: logger, root: root}
	p.Refresh()
	return p
}

// Limits returns the most recent successful reading.
func (p *Probe) Limits() Limits {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.limits
}

// Refresh runs one detection pass. Tier order: cgroup v2, cgroup v1, host.
// A partial reading (memory from one tier, CPU from another) is allowed;
// each dimension falls through independently.
func (p *Probe) Refresh() {
	memMB, memSrc := p.detectMemoryMB()
	cpus, cpuSrc := p.detectCPUCount()

	source := memSrc
	if cpuSrc != memSrc {
		source = memSrc + "+" + cpuSrc
	}

	p.mu.Lock()
	p.limits = Limits{MemoryMB: memMB, CPUCount: cpus, Source: source}
	p.mu.Unlock()

	p.logger.Debug("resource probe refreshed",
		slog.Int("memory_mb", memMB),
		slog.Int("cpu_count", cpus),
		slog.String("source", source),
	)
}

func (p *Probe) detectMemoryMB() (int, string) {
	// cgroup v2
	if b, ok := readCgroupBytes(filepath.Join(p.root, "memory.max")); ok {
		return int(b / (1024 * 1024)), "cgroup2"
	}
	// cgroup v1
	if b, ok := readCgroupBytes(filepath.Join(p.root, "memory", "memory.limit_in_bytes")); ok {
		return int(b / (1024 * 1024)), "cgroup1"
	}
	// host
	if vm, err := mem.VirtualMemory(); err == nil {
		return int(vm.Total / (1024 * 1024)), "host"
	}
	// last resort: assume a small container
	return 512, "assumed"
}

func (p *Probe) detectCPUCount() (int, string) {
	// cgroup v2: "quota period" or "max period"
	if raw, err := os.ReadFile(filepath.Join(p.root, "cpu.max")); err == nil {
		fields := strings.Fields(strings.TrimSpace(string(raw)))
		if len(fields) == 2 && fields[0] != "max" {
			quota, qerr := strconv.ParseInt(fields[0], 10, 64)
			period, perr := strconv.ParseInt(fields[1], 10, 64)
			if qerr == nil && perr == nil && quota > 0 && period > 0 {
				return clampCPUs(int(quota / period)), "cgroup2"
			}
		}
	}
	// cgroup v1
	quota, qok := readCgroupInt(filepath.Join(p.root, "cpu", "cpu.cfs_quota_us"))
	period, pok := readCgroupInt(filepath.Join(p.root, "cpu", "cpu.cfs_period_us"))
	if qok && pok && quota > 0 && period > 0 {
		return clampCPUs(int(quota / period)), "cgroup1"
	}
	// host
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n, "host"
	}
	return clampCPUs(runtime.NumCPU()), "runtime"
}

// readCgroupBytes reads an integer byte limit, rejecting "max" and
// implausibly large values that mean "no limit".
func readCgroupBytes(path string) (int64, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	val := strings.TrimSpace(string(raw))
	if val == "max" || val == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil || n <= 0 || n > implausibleLimitBytes {
		return 0, false
	}
	return n, true
}

func readCgroupInt(path string) (int64, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func clampCPUs(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
