// Package monitor periodically samples host resource counters and feeds
// them to the metrics engine. It runs on its own timer, independent of the
// workload population.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"go.uber.org/zap"

	"stampede/internal/metrics"
)

// Monitor samples CPU, memory, disk I/O and network I/O on a fixed
// interval. A failed sample becomes a recorded gap, never a fatal error.
type Monitor struct {
	engine *metrics.Engine
	logger *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Previous counter totals for rate computation.
	lastTime      time.Time
	lastDiskRead  uint64
	lastDiskWrite uint64
	lastNetSent   uint64
	lastNetRecv   uint64
	havePrev      bool
}

// New creates a monitor feeding the given engine.
func New(engine *metrics.Engine, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{engine: engine, logger: logger}
}

// Start begins sampling every interval until Stop is called.
func (m *Monitor) Start(interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		// Establish counter baselines so the first emitted sample carries
		// real rates instead of totals-since-boot.
		m.seed(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sample(ctx)
			}
		}
	}()
}

// Stop halts sampling and waits for the sampler goroutine to exit.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Monitor) seed(ctx context.Context) {
	// First cpu.Percent call primes the comparison window.
	_, _ = cpu.PercentWithContext(ctx, 0, false)

	now := time.Now()
	if dio, err := disk.IOCountersWithContext(ctx); err == nil {
		m.lastDiskRead, m.lastDiskWrite = sumDisk(dio)
	}
	if nio, err := net.IOCountersWithContext(ctx, false); err == nil && len(nio) > 0 {
		m.lastNetSent, m.lastNetRecv = nio[0].BytesSent, nio[0].BytesRecv
	}
	m.lastTime = now
	m.havePrev = true
}

func (m *Monitor) sample(ctx context.Context) {
	now := time.Now()

	cpuPercents, cpuErr := cpu.PercentWithContext(ctx, 0, false)
	vm, memErr := mem.VirtualMemoryWithContext(ctx)
	dio, diskErr := disk.IOCountersWithContext(ctx)
	nio, netErr := net.IOCountersWithContext(ctx, false)

	if cpuErr != nil || memErr != nil || len(cpuPercents) == 0 {
		// CPU and memory are the core readings; without them the sample is
		// a gap.
		m.engine.SampleGap()
		m.logger.Warn("resource sample missed",
			zap.NamedError("cpu", cpuErr),
			zap.NamedError("mem", memErr))
		return
	}

	s := metrics.ResourceSample{
		Timestamp:  now,
		CPUPercent: cpuPercents[0],
		MemPercent: vm.UsedPercent,
	}

	elapsed := now.Sub(m.lastTime).Seconds()
	if elapsed <= 0 {
		elapsed = 1
	}

	if diskErr == nil {
		read, write := sumDisk(dio)
		if m.havePrev {
			s.DiskReadBps = counterRate(m.lastDiskRead, read, elapsed)
			s.DiskWriteBps = counterRate(m.lastDiskWrite, write, elapsed)
		}
		m.lastDiskRead, m.lastDiskWrite = read, write
	}

	if netErr == nil && len(nio) > 0 {
		sent, recv := nio[0].BytesSent, nio[0].BytesRecv
		if m.havePrev {
			s.NetSentBps = counterRate(m.lastNetSent, sent, elapsed)
			s.NetRecvBps = counterRate(m.lastNetRecv, recv, elapsed)
		}
		m.lastNetSent, m.lastNetRecv = sent, recv
	}

	m.lastTime = now
	m.havePrev = true

	m.engine.Sample(s)
}

// counterRate turns a pair of cumulative counter readings into a per-second
// rate. A counter that went backwards (reset, interface bounce) yields zero
// for this interval rather than an underflowed value.
func counterRate(prev, cur uint64, elapsed float64) float64 {
	if cur < prev {
		return 0
	}
	return float64(cur-prev) / elapsed
}

func sumDisk(counters map[string]disk.IOCountersStat) (read, write uint64) {
	for _, c := range counters {
		read += c.ReadBytes
		write += c.WriteBytes
	}
	return read, write
}
