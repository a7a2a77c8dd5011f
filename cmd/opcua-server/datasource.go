package main

import (
	"math"
	"sync"
	"time"

	"github.com/nexus-edge/opcua-runtime/internal/server/subscription"
	"github.com/nexus-edge/opcua-runtime/internal/ua"
)

// demoSource is a stand-in application handler: every monitored node
// produces a synthetic sine-wave value sampled on the monitored item's
// own SamplingInterval, so a client can exercise the whole publish
// engine without a real process backing it.
type demoSource struct{}

func newDemoSource() *demoSource { return &demoSource{} }

// CreateItem implements subscription.CreateItemFunc.
func (s *demoSource) CreateItem(item ua.ReadValueID, params ua.MonitoringParameters) (ua.StatusCode, subscription.ItemHandle) {
	if item.AttributeID == subscription.AttributeIDEventNotifier {
		return ua.StatusGood, newDemoEventHandle(item.NodeID)
	}
	return ua.StatusGood, newDemoValueHandle(item.NodeID, params.SamplingInterval)
}

type demoValueHandle struct {
	nodeID   ua.NodeID
	interval time.Duration

	mu      sync.Mutex
	closed  bool
	stopped chan struct{}
}

func newDemoValueHandle(nodeID ua.NodeID, samplingMs float64) *demoValueHandle {
	interval := time.Duration(samplingMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	return &demoValueHandle{nodeID: nodeID, interval: interval, stopped: make(chan struct{})}
}

func (h *demoValueHandle) SubscribeDataChange(sink func(ua.DataValue)) {
	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		start := time.Now()
		for {
			select {
			case <-h.stopped:
				return
			case t := <-ticker.C:
				v := math.Sin(t.Sub(start).Seconds())
				sink(ua.NewGoodDataValue(ua.VariantFromDouble(v)))
			}
		}
	}()
}

func (h *demoValueHandle) SubscribeEvents(func([]ua.Variant)) {}

func (h *demoValueHandle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.stopped)
}

// demoEventHandle never fires — the demo server exposes no event
// sources, only data-change nodes — but it satisfies ItemHandle so an
// EventNotifier attribute subscribe still succeeds instead of faulting.
type demoEventHandle struct {
	nodeID ua.NodeID
}

func newDemoEventHandle(nodeID ua.NodeID) *demoEventHandle {
	return &demoEventHandle{nodeID: nodeID}
}

func (h *demoEventHandle) SubscribeDataChange(func(ua.DataValue)) {}
func (h *demoEventHandle) SubscribeEvents(func([]ua.Variant))     {}
func (h *demoEventHandle) Close()                                 {}
