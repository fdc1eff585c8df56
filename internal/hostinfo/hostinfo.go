// Package hostinfo reports what a group member sees of the machine it runs
// on: its identity, hostname, CPU affinity and the host's CPU, memory and
// NUMA layout. Every field is best effort and stays at its zero value when
// the platform cannot provide it.
package hostinfo

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/jaypipes/ghw"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/hugo-lorenzo-mato/timeoffset/internal/group"
	"github.com/hugo-lorenzo-mato/timeoffset/internal/logging"
)

// Snapshot is a point-in-time view of the member's environment.
type Snapshot struct {
	Collected time.Time `json:"collected" yaml:"collected"`

	Identity      *group.Identity `json:"identity,omitempty" yaml:"identity,omitempty"`
	IdentityError string          `json:"identity_error,omitempty" yaml:"identity_error,omitempty"`

	Hostname     string `json:"hostname" yaml:"hostname"`           // as printed in diagnostic lines
	HostHostname string `json:"host_hostname" yaml:"host_hostname"` // as reported by the host facility

	Process ProcessInfo `json:"process" yaml:"process"`
	CPU     CPUInfo     `json:"cpu" yaml:"cpu"`
	Memory  MemoryInfo  `json:"memory" yaml:"memory"`
	Load    LoadInfo    `json:"load" yaml:"load"`
	OS      OSInfo      `json:"os" yaml:"os"`
}

// ProcessInfo describes the reporting process.
type ProcessInfo struct {
	PID         int     `json:"pid" yaml:"pid"`
	PPID        int     `json:"ppid" yaml:"ppid"`
	Name        string  `json:"name,omitempty" yaml:"name,omitempty"`
	Threads     int     `json:"threads" yaml:"threads"`
	CPUAffinity []int32 `json:"cpu_affinity,omitempty" yaml:"cpu_affinity,omitempty"`
}

// CPUInfo describes the host processors.
type CPUInfo struct {
	Model     string `json:"model,omitempty" yaml:"model,omitempty"`
	Physical  int    `json:"physical" yaml:"physical"`
	Logical   int    `json:"logical" yaml:"logical"`
	NUMANodes int    `json:"numa_nodes" yaml:"numa_nodes"`
}

// MemoryInfo is in megabytes.
type MemoryInfo struct {
	TotalMB     float64 `json:"total_mb" yaml:"total_mb"`
	AvailableMB float64 `json:"available_mb" yaml:"available_mb"`
	UsedPercent float64 `json:"used_percent" yaml:"used_percent"`
}

// LoadInfo holds load averages (Unix).
type LoadInfo struct {
	Load1  float64 `json:"load1" yaml:"load1"`
	Load5  float64 `json:"load5" yaml:"load5"`
	Load15 float64 `json:"load15" yaml:"load15"`
}

// OSInfo describes the operating system.
type OSInfo struct {
	OS              string     `json:"os,omitempty" yaml:"os,omitempty"`
	Platform        string     `json:"platform,omitempty" yaml:"platform,omitempty"`
	PlatformVersion string     `json:"platform_version,omitempty" yaml:"platform_version,omitempty"`
	KernelVersion   string     `json:"kernel_version,omitempty" yaml:"kernel_version,omitempty"`
	Arch            string     `json:"arch,omitempty" yaml:"arch,omitempty"`
	BootTime        *time.Time `json:"boot_time,omitempty" yaml:"boot_time,omitempty"`
}

// Sources are the platform queries a Collector uses. Tests replace them.
type Sources struct {
	Lookup    group.LookupFunc
	Hostname  func() string
	PID       func() int
	Host      func(ctx context.Context) (*host.InfoStat, error)
	CPUInfo   func(ctx context.Context) ([]cpu.InfoStat, error)
	CPUCounts func(ctx context.Context, logical bool) (int, error)
	Memory    func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	Load      func(ctx context.Context) (*load.AvgStat, error)
	Process   func(ctx context.Context, pid int) (ProcessInfo, error)
	NUMANodes func() (int, error)
}

// DefaultSources queries the running machine.
func DefaultSources(hostname func() string) Sources {
	return Sources{
		Lookup:    os.LookupEnv,
		Hostname:  hostname,
		PID:       os.Getpid,
		Host:      host.InfoWithContext,
		CPUInfo:   cpu.InfoWithContext,
		CPUCounts: cpu.CountsWithContext,
		Memory:    mem.VirtualMemoryWithContext,
		Load:      load.AvgWithContext,
		Process:   processInfo,
		NUMANodes: numaNodes,
	}
}

// Collector gathers snapshots.
type Collector struct {
	src    Sources
	logger *logging.Logger
	now    func() time.Time
}

// NewCollector creates a collector. A nil logger discards.
func NewCollector(src Sources, logger *logging.Logger) *Collector {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Collector{src: src, logger: logger, now: time.Now}
}

// Collect returns a snapshot. It never fails; unavailable fields are left
// zero and logged at debug level.
func (c *Collector) Collect(ctx context.Context) Snapshot {
	s := Snapshot{Collected: c.now()}

	c.collectIdentity(&s)
	if c.src.Hostname != nil {
		s.Hostname = c.src.Hostname()
	}
	c.collectProcess(ctx, &s)
	c.collectHost(ctx, &s)
	c.collectCPU(ctx, &s)
	c.collectMemory(ctx, &s)
	c.collectLoad(ctx, &s)

	return s
}

func (c *Collector) skip(what string, err error) {
	c.logger.Debug("host facility unavailable", "facility", what, "error", err)
}

func (c *Collector) collectIdentity(s *Snapshot) {
	if c.src.Lookup == nil {
		return
	}
	id, err := group.Detect(c.src.Lookup)
	if err != nil {
		s.IdentityError = err.Error()
		return
	}
	s.Identity = &id
}

func (c *Collector) collectProcess(ctx context.Context, s *Snapshot) {
	if c.src.PID == nil {
		return
	}
	pid := c.src.PID()
	s.Process.PID = pid
	if c.src.Process == nil {
		return
	}
	info, err := c.src.Process(ctx, pid)
	if err != nil {
		c.skip("process", err)
	}
	info.PID = pid
	s.Process = info
}

func (c *Collector) collectHost(ctx context.Context, s *Snapshot) {
	if c.src.Host == nil {
		return
	}
	info, err := c.src.Host(ctx)
	if err != nil || info == nil {
		c.skip("host", err)
		return
	}
	s.HostHostname = info.Hostname
	s.OS = OSInfo{
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelVersion:   info.KernelVersion,
		Arch:            info.KernelArch,
	}
	if info.BootTime > 0 {
		boot := time.Unix(int64(info.BootTime), 0).UTC()
		s.OS.BootTime = &boot
	}
}

func (c *Collector) collectCPU(ctx context.Context, s *Snapshot) {
	if c.src.CPUInfo != nil {
		if infos, err := c.src.CPUInfo(ctx); err == nil && len(infos) > 0 {
			s.CPU.Model = strings.TrimSpace(infos[0].ModelName)
		} else {
			c.skip("cpu info", err)
		}
	}
	if c.src.CPUCounts != nil {
		if n, err := c.src.CPUCounts(ctx, false); err == nil {
			s.CPU.Physical = n
		} else {
			c.skip("physical cpu count", err)
		}
		if n, err := c.src.CPUCounts(ctx, true); err == nil {
			s.CPU.Logical = n
		} else {
			c.skip("logical cpu count", err)
		}
	}
	if c.src.NUMANodes != nil {
		if n, err := c.src.NUMANodes(); err == nil {
			s.CPU.NUMANodes = n
		} else {
			c.skip("topology", err)
		}
	}
}

func (c *Collector) collectMemory(ctx context.Context, s *Snapshot) {
	if c.src.Memory == nil {
		return
	}
	vm, err := c.src.Memory(ctx)
	if err != nil || vm == nil {
		c.skip("memory", err)
		return
	}
	s.Memory = MemoryInfo{
		TotalMB:     float64(vm.Total) / 1024 / 1024,
		AvailableMB: float64(vm.Available) / 1024 / 1024,
		UsedPercent: vm.UsedPercent,
	}
}

func (c *Collector) collectLoad(ctx context.Context, s *Snapshot) {
	if c.src.Load == nil {
		return
	}
	avg, err := c.src.Load(ctx)
	if err != nil || avg == nil {
		c.skip("load", err)
		return
	}
	s.Load = LoadInfo{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15}
}

// processInfo fills what it can; the returned error is the first failure.
func processInfo(ctx context.Context, pid int) (ProcessInfo, error) {
	info := ProcessInfo{PID: pid}
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return info, err
	}

	var first error
	keep := func(err error) {
		if first == nil {
			first = err
		}
	}
	if ppid, err := p.PpidWithContext(ctx); err == nil {
		info.PPID = int(ppid)
	} else {
		keep(err)
	}
	if name, err := p.NameWithContext(ctx); err == nil {
		info.Name = name
	} else {
		keep(err)
	}
	if n, err := p.NumThreadsWithContext(ctx); err == nil {
		info.Threads = int(n)
	} else {
		keep(err)
	}
	if cpus, err := p.CPUAffinityWithContext(ctx); err == nil {
		info.CPUAffinity = cpus
	} else {
		keep(err)
	}
	return info, first
}

func numaNodes() (int, error) {
	topo, err := ghw.Topology()
	if err != nil {
		return 0, err
	}
	return len(topo.Nodes), nil
}
