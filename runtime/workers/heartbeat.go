package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// OnlineCounter reports how many users are currently authenticated.
type OnlineCounter interface {
	Len() int
}

// HeartbeatWorker periodically logs process health next to the online user count.
type HeartbeatWorker struct {
	log      *slog.Logger
	interval time.Duration
	online   OnlineCounter
}

func NewHeartbeatWorker(log *slog.Logger, interval time.Duration, online OnlineCounter) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, interval: interval, online: online}
}

// Run logs a heartbeat line every interval until ctx is canceled.
func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Debug("Starting heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.beat(p)
		}
	}
}

func (w *HeartbeatWorker) beat(p *process.Process) {
	stats, err := getSelfStats(p)
	if err != nil {
		w.log.Warn("Failed to collect self stats", "error", err)
		w.log.Info("Heartbeat", "online", w.online.Len())
		return
	}
	w.log.Info("Heartbeat",
		"online", w.online.Len(),
		"rss_bytes", stats.rss,
		"cpu_percent", stats.cpu,
		"threads", stats.threads)
}

type selfStats struct {
	rss     uint64
	cpu     float64
	threads int32
}

// getSelfStats retrieves memory, CPU and thread count for the given process.
func getSelfStats(p *process.Process) (selfStats, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return selfStats{}, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return selfStats{}, err
	}
	threads, err := p.NumThreads()
	if err != nil {
		return selfStats{}, err
	}
	return selfStats{rss: memInfo.RSS, cpu: cpuPercent, threads: threads}, nil
}
