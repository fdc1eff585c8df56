package hostinfo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/timeoffset/internal/group"
)

var errUnavailable = errors.New("unavailable")

func env(vars map[string]string) group.LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func fakeSources() Sources {
	return Sources{
		Lookup:   env(map[string]string{"OMPI_COMM_WORLD_RANK": "2", "OMPI_COMM_WORLD_SIZE": "4"}),
		Hostname: func() string { return "node-a" },
		PID:      func() int { return 4242 },
		Host: func(context.Context) (*host.InfoStat, error) {
			return &host.InfoStat{
				Hostname:      "node-a.cluster",
				OS:            "linux",
				Platform:      "ubuntu",
				KernelVersion: "6.1.0",
				KernelArch:    "x86_64",
				BootTime:      1700000000,
			}, nil
		},
		CPUInfo: func(context.Context) ([]cpu.InfoStat, error) {
			return []cpu.InfoStat{{ModelName: "  Test CPU  "}}, nil
		},
		CPUCounts: func(_ context.Context, logical bool) (int, error) {
			if logical {
				return 16, nil
			}
			return 8, nil
		},
		Memory: func(context.Context) (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{Total: 2048 * 1024 * 1024, Available: 1024 * 1024 * 1024, UsedPercent: 50}, nil
		},
		Load: func(context.Context) (*load.AvgStat, error) {
			return &load.AvgStat{Load1: 1, Load5: 0.5, Load15: 0.25}, nil
		},
		Process: func(_ context.Context, pid int) (ProcessInfo, error) {
			return ProcessInfo{PID: pid, PPID: 1, Name: "time-offset", Threads: 5, CPUAffinity: []int32{0, 1}}, nil
		},
		NUMANodes: func() (int, error) { return 2, nil },
	}
}

func TestCollect_AllSources(t *testing.T) {
	t.Parallel()
	c := NewCollector(fakeSources(), nil)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	s := c.Collect(context.Background())

	assert.Equal(t, fixed, s.Collected)
	require.NotNil(t, s.Identity)
	assert.Equal(t, 2, s.Identity.Rank)
	assert.Equal(t, 4, s.Identity.Size)
	assert.Equal(t, "openmpi", s.Identity.Launcher)
	assert.Empty(t, s.IdentityError)

	assert.Equal(t, "node-a", s.Hostname)
	assert.Equal(t, "node-a.cluster", s.HostHostname)

	assert.Equal(t, ProcessInfo{PID: 4242, PPID: 1, Name: "time-offset", Threads: 5, CPUAffinity: []int32{0, 1}}, s.Process)
	assert.Equal(t, CPUInfo{Model: "Test CPU", Physical: 8, Logical: 16, NUMANodes: 2}, s.CPU)
	assert.Equal(t, MemoryInfo{TotalMB: 2048, AvailableMB: 1024, UsedPercent: 50}, s.Memory)
	assert.Equal(t, LoadInfo{Load1: 1, Load5: 0.5, Load15: 0.25}, s.Load)

	assert.Equal(t, "ubuntu", s.OS.Platform)
	assert.Equal(t, "x86_64", s.OS.Arch)
	require.NotNil(t, s.OS.BootTime)
	assert.Equal(t, int64(1700000000), s.OS.BootTime.Unix())
}

func TestCollect_DegradesToZeroValues(t *testing.T) {
	t.Parallel()
	src := Sources{
		Lookup:   env(map[string]string{"PMI_RANK": "1"}),
		Hostname: func() string { return "" },
		PID:      func() int { return 7 },
		Host:     func(context.Context) (*host.InfoStat, error) { return nil, errUnavailable },
		CPUInfo:  func(context.Context) ([]cpu.InfoStat, error) { return nil, errUnavailable },
		CPUCounts: func(context.Context, bool) (int, error) {
			return 0, errUnavailable
		},
		Memory: func(context.Context) (*mem.VirtualMemoryStat, error) { return nil, errUnavailable },
		Load:   func(context.Context) (*load.AvgStat, error) { return nil, errUnavailable },
		Process: func(_ context.Context, pid int) (ProcessInfo, error) {
			return ProcessInfo{PID: pid, Name: "partial"}, errUnavailable
		},
		NUMANodes: func() (int, error) { return 0, errUnavailable },
	}

	s := NewCollector(src, nil).Collect(context.Background())

	assert.Nil(t, s.Identity)
	assert.Contains(t, s.IdentityError, "PMI_SIZE")
	assert.Equal(t, ProcessInfo{PID: 7, Name: "partial"}, s.Process)
	assert.Equal(t, CPUInfo{}, s.CPU)
	assert.Equal(t, MemoryInfo{}, s.Memory)
	assert.Equal(t, LoadInfo{}, s.Load)
	assert.Equal(t, OSInfo{}, s.OS)
	assert.Empty(t, s.HostHostname)
}

func TestCollect_EmptySources(t *testing.T) {
	t.Parallel()
	s := NewCollector(Sources{}, nil).Collect(context.Background())
	assert.Nil(t, s.Identity)
	assert.Zero(t, s.Process.PID)
	assert.False(t, s.Collected.IsZero())
}

func TestCollect_RealMachine(t *testing.T) {
	if testing.Short() {
		t.Skip("queries the host")
	}
	src := DefaultSources(func() string {
		h, _ := os.Hostname()
		return h
	})
	src.Lookup = env(nil)

	s := NewCollector(src, nil).Collect(context.Background())

	require.NotNil(t, s.Identity)
	assert.Equal(t, group.Standalone(), *s.Identity)
	assert.Equal(t, os.Getpid(), s.Process.PID)
	assert.GreaterOrEqual(t, s.CPU.Logical, 0)
}
