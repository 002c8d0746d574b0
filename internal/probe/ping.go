package probe

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/NordCoder/checkengine/internal/domain/monitor"
	probing "github.com/prometheus-community/pro-bing"
)

var _ Probe = (*PingProbe)(nil)

// PingProbe sends the configured number of ICMP echo requests. Packets that
// could not be sent before the deadline count as lost.
type PingProbe struct {
	privileged bool
}

func NewPingProbe(privileged bool) *PingProbe {
	return &PingProbe{privileged: privileged || runtime.GOOS == "windows"}
}

func (p *PingProbe) Run(ctx context.Context, m *monitor.Monitor) Result {
	cfg := m.Settings.Ping
	if cfg == nil || cfg.Count < 1 {
		return failed(ErrorKindInvalidConfig, fmt.Errorf("ping settings missing"), 0)
	}

	start := time.Now()
	timeout := budget(ctx, time.Duration(cfg.TimeoutSec)*time.Second)
	if timeout <= 0 {
		return failed(ErrorKindTimeout, context.DeadlineExceeded, 0)
	}

	// resolution shares the check's budget
	pinger := probing.New(m.Target)
	pinger.ResolveTimeout = timeout
	if err := pinger.Resolve(); err != nil {
		return failed(Classify(err), fmt.Errorf("resolve %s: %w", m.Target, err), time.Since(start))
	}

	timeout = budget(ctx, timeout-time.Since(start))
	if timeout <= 0 {
		return failed(ErrorKindTimeout, context.DeadlineExceeded, time.Since(start))
	}
	pinger.Count = cfg.Count
	pinger.Timeout = timeout
	pinger.Interval = pingInterval(timeout, cfg.Count)
	pinger.SetPrivileged(p.privileged)

	runErr := pinger.RunWithContext(ctx)
	elapsed := time.Since(start)

	stats := pinger.Statistics()
	if runErr != nil && stats.PacketsSent == 0 {
		return failed(Classify(runErr), runErr, elapsed)
	}

	recv := stats.PacketsRecv
	if recv > cfg.Count {
		recv = cfg.Count // duplicates
	}
	return Result{
		Succeeded:   true,
		Elapsed:     elapsed,
		PacketsSent: stats.PacketsSent,
		PacketsRecv: recv,
		PacketLoss:  LossPercent(cfg.Count, recv),
		AvgRTT:      stats.AvgRtt,
	}
}

// LossPercent is the share of count packets that got no reply.
func LossPercent(count, recv int) float64 {
	if count <= 0 {
		return 100
	}
	return float64(count-recv) / float64(count) * 100
}

// budget caps d by the time left before the ctx deadline.
func budget(ctx context.Context, d time.Duration) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < d {
			return left
		}
	}
	return d
}

func pingInterval(timeout time.Duration, count int) time.Duration {
	iv := time.Second
	if count > 1 {
		if spread := timeout / time.Duration(count+1); spread < iv {
			iv = spread
		}
	}
	if iv < 50*time.Millisecond {
		iv = 50 * time.Millisecond
	}
	return iv
}
