package endpoint

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/nexus-edge/opcua-runtime/internal/metrics"
)

// resourceGuard is a static-threshold admission control, adapted from
// the original hub server's ResourceGuard: it samples process/host CPU
// on an interval (never inline with a request, since cpu.Percent blocks)
// and rejects new CreateSession calls once usage crosses
// rejectThreshold. It deliberately does not auto-calculate capacity —
// the threshold is fixed configuration, not a derived target.
type resourceGuard struct {
	rejectThreshold float64
	logger          zerolog.Logger

	currentCPU atomic.Value // float64
	stop       chan struct{}
}

func newResourceGuard(rejectThreshold float64, logger zerolog.Logger) *resourceGuard {
	g := &resourceGuard{
		rejectThreshold: rejectThreshold,
		logger:          logger,
		stop:            make(chan struct{}),
	}
	g.currentCPU.Store(float64(0))
	return g
}

// Start begins sampling CPU usage at the given interval in a background
// goroutine. Call Stop to release it.
func (g *resourceGuard) Start(interval time.Duration) {
	go g.run(interval)
}

func (g *resourceGuard) Stop() {
	close(g.stop)
}

func (g *resourceGuard) run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.sample()
		case <-g.stop:
			return
		}
	}
}

func (g *resourceGuard) sample() {
	// A short blocking sample (100ms) rather than cpu.Percent(0, false),
	// which has no baseline on the first call and returns garbage.
	percents, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(percents) == 0 {
		g.logger.Warn().Err(err).Msg("cpu sample failed, keeping previous reading")
		return
	}
	g.currentCPU.Store(percents[0])
}

// Admit reports whether a new session should be accepted given current
// CPU pressure.
func (g *resourceGuard) Admit() (ok bool, reason string) {
	current := g.currentCPU.Load().(float64)
	if current >= g.rejectThreshold {
		metrics.SessionsRejected.WithLabelValues("cpu_threshold").Inc()
		return false, "cpu usage above reject threshold"
	}
	return true, ""
}
