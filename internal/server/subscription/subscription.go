// Package subscription implements the server-side publish engine: a
// per-subscription state machine that queues notification payloads,
// enforces keep-alive and lifetime counters, and produces sequenced
// NotificationMessages for the session dispatcher to hand back to
// waiting Publish requests.
package subscription

import (
	"sort"
	"sync"
	"time"

	"github.com/nexus-edge/opcua-runtime/internal/metrics"
	"github.com/nexus-edge/opcua-runtime/internal/ua"
)

// State is the subscription's lifecycle state.
type State byte

const (
	StateActive State = iota
	StateClosed
)

// instantPublishThreshold is the publishing-interval cutoff below which
// a subscription skips its timer and notifies the dispatcher the
// instant a payload is enqueued.
const instantPublishThreshold = 10 * time.Millisecond

// Config carries everything needed to construct a Subscription.
type Config struct {
	ID                         uint32
	PublishingInterval         time.Duration
	MaxLifetimeCount           uint32
	MaxKeepAliveCount          uint32
	MaxNotificationsPerPublish uint32
	Priority                   byte
	PublishingEnabled          bool
	CreateItem                 CreateItemFunc
	OnPublishReady             PublishHandler
	OnClose                    CloseHandler
	Types                      *ua.TypeRegistry
}

// Subscription is the server-side publish engine for one subscription.
// All exported methods are safe for concurrent use.
type Subscription struct {
	id       uint32
	instant  bool
	interval time.Duration

	maxLifetime      uint32
	maxKeepAlive     uint32
	maxNotifications uint32
	priority         byte

	createItem     CreateItemFunc
	onPublishReady PublishHandler
	onClose        CloseHandler
	types          *ua.TypeRegistry

	mu                sync.Mutex
	state             State
	publishingEnabled bool
	fifo              []ua.ExtensionObject
	retained          map[uint32]ua.NotificationMessage
	nextSeq           uint32
	keepAliveCount    uint32
	lifetimeCount     uint32
	items             map[uint32]*MonitoredItem
	nextItemID        uint32

	stopTimer chan struct{}
}

// New constructs an active Subscription and, unless it is in
// instant-publish mode, starts its publishing timer goroutine.
func New(cfg Config) *Subscription {
	s := &Subscription{
		id:                cfg.ID,
		instant:           cfg.PublishingInterval < instantPublishThreshold,
		interval:          cfg.PublishingInterval,
		maxLifetime:       cfg.MaxLifetimeCount,
		maxKeepAlive:      cfg.MaxKeepAliveCount,
		maxNotifications:  cfg.MaxNotificationsPerPublish,
		priority:          cfg.Priority,
		createItem:        cfg.CreateItem,
		onPublishReady:    cfg.OnPublishReady,
		onClose:           cfg.OnClose,
		types:             cfg.Types,
		state:             StateActive,
		publishingEnabled: cfg.PublishingEnabled,
		retained:          make(map[uint32]ua.NotificationMessage),
		items:             make(map[uint32]*MonitoredItem),
		nextSeq:           1,
		nextItemID:        1,
	}

	metrics.SubscriptionsActive.Inc()

	if !s.instant {
		s.stopTimer = make(chan struct{})
		go s.runTimer()
	}
	return s
}

// ID returns the subscription's numeric id.
func (s *Subscription) ID() uint32 { return s.id }

func (s *Subscription) runTimer() {
	s.runTimerLoop(s.stopTimer, s.interval)
}

// runTimerLoop runs the publishing-tick ticker against interval until
// stop closes. Taking both as parameters (rather than reading s.interval/
// s.stopTimer from inside the goroutine) lets Modify swap in a fresh
// interval and stop channel without racing the old timer goroutine.
func (s *Subscription) runTimerLoop(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.onPublishingTick()
		case <-stop:
			return
		}
	}
}

// onPublishingTick implements §4.3's timer behaviour: advance the
// lifetime counter, and either signal the dispatcher that data is ready
// or advance the keep-alive counter.
func (s *Subscription) onPublishingTick() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}

	s.lifetimeCount++
	if s.lifetimeCount > s.maxLifetime {
		s.mu.Unlock()
		s.teardown("lifetime_exceeded")
		if s.onClose != nil {
			s.onClose(s.id, ua.StatusBadTimeout)
		}
		return
	}

	notify := s.publishingEnabled && len(s.fifo) > 0
	if !notify {
		s.keepAliveCount++
	}
	s.mu.Unlock()

	if notify && s.onPublishReady != nil {
		s.onPublishReady(s.id)
	}
}

// Publish drains the FIFO (or builds a keep-alive) into resp, stamps a
// sequence number and publish time, retains the message, and reports
// whether it produced anything. A false result means the caller's
// Publish request should keep waiting.
func (s *Subscription) Publish(resp *ua.PublishResponse) bool {
	s.mu.Lock()

	if s.state == StateClosed {
		s.mu.Unlock()
		return false
	}
	s.lifetimeCount = 0

	var payloads []ua.ExtensionObject
	keepAlive := false

	switch {
	case len(s.fifo) > 0:
		n := uint32(len(s.fifo))
		if s.maxNotifications > 0 && s.maxNotifications < n {
			n = s.maxNotifications
		}
		payloads = append(payloads, s.fifo[:n]...)
		s.fifo = s.fifo[n:]
	case s.instant || s.keepAliveCount > s.maxKeepAlive:
		keepAlive = true
		s.keepAliveCount = 0
	default:
		s.mu.Unlock()
		return false
	}

	available := make([]uint32, 0, len(s.retained))
	for seq := range s.retained {
		available = append(available, seq)
	}
	sort.Slice(available, func(i, j int) bool { return available[i] < available[j] })

	seq := s.nextSeq
	s.nextSeq = ua.NextSequenceNumber(s.nextSeq)

	msg := ua.NotificationMessage{
		SequenceNumber:   seq,
		PublishTime:      ua.Now(),
		NotificationData: payloads,
	}

	more := len(s.fifo) > 0
	s.retained[seq] = msg
	s.mu.Unlock()

	resp.SubscriptionID = s.id
	resp.AvailableSequenceNumbers = available
	resp.MoreNotifications = more
	resp.NotificationMessage = msg

	if keepAlive {
		metrics.KeepAlivesSent.Inc()
	} else {
		metrics.NotificationsPublished.Add(float64(len(payloads)))
	}
	return true
}

// Acknowledge removes a retained message by sequence number and resets
// the lifetime counter. A false result (unknown sequence number) must
// be surfaced by the caller as a per-ack Bad status.
func (s *Subscription) Acknowledge(seq uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return false
	}
	if _, ok := s.retained[seq]; !ok {
		return false
	}
	delete(s.retained, seq)
	s.lifetimeCount = 0
	return true
}

// SetPublishingEnabled flips the publishing-enabled flag without
// recreating the subscription.
func (s *Subscription) SetPublishingEnabled(enabled bool) {
	s.mu.Lock()
	s.publishingEnabled = enabled
	s.mu.Unlock()
}

// Modify revises the subscription's publishing parameters in place,
// per §4.3's ModifySubscription service: no items, queue or sequence
// state is disturbed, only the counters and timer governing them.
// Crossing the instant-publish threshold in either direction swaps the
// timer goroutine (or stops it) rather than recreating the subscription.
func (s *Subscription) Modify(req ua.ModifySubscriptionRequest) ua.ModifySubscriptionResponse {
	interval := time.Duration(req.RequestedPublishingInterval) * time.Millisecond
	instant := interval < instantPublishThreshold

	s.mu.Lock()
	oldStop := s.stopTimer
	s.interval = interval
	s.instant = instant
	s.maxLifetime = req.RequestedLifetimeCount
	s.maxKeepAlive = req.RequestedMaxKeepAliveCount
	s.maxNotifications = req.MaxNotificationsPerPublish
	s.priority = req.Priority
	s.lifetimeCount = 0
	s.keepAliveCount = 0

	var newStop chan struct{}
	if !instant {
		newStop = make(chan struct{})
		s.stopTimer = newStop
	} else {
		s.stopTimer = nil
	}
	s.mu.Unlock()

	if oldStop != nil {
		close(oldStop)
	}
	if newStop != nil {
		go s.runTimerLoop(newStop, interval)
	}

	return ua.ModifySubscriptionResponse{
		RevisedPublishingInterval: req.RequestedPublishingInterval,
		RevisedLifetimeCount:      req.RequestedLifetimeCount,
		RevisedMaxKeepAliveCount:  req.RequestedMaxKeepAliveCount,
	}
}

// CreateMonitoredItems invokes the application handler for each request
// in order and returns positionally-paired results. Successfully
// created items have their data-change/event sinks wired once the
// subscription lock is released, before the results are returned; a
// sink can therefore enqueue a notification before the caller has sent
// the response.
func (s *Subscription) CreateMonitoredItems(reqs []ua.MonitoredItemCreateRequest) []ua.MonitoredItemCreateResult {
	results := make([]ua.MonitoredItemCreateResult, len(reqs))

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		for i := range results {
			results[i] = ua.MonitoredItemCreateResult{Status: ua.StatusBadSessionClosed}
		}
		return results
	}

	var created []*MonitoredItem
	for i, req := range reqs {
		status, handle := s.createItem(req.ItemToMonitor, req.RequestedParams)
		if !status.IsGood() {
			results[i] = ua.MonitoredItemCreateResult{Status: status}
			continue
		}

		id := s.nextItemID
		s.nextItemID++

		attr := AttributeValue
		if req.ItemToMonitor.AttributeID == AttributeIDEventNotifier {
			attr = AttributeEventNotifier
		}

		item := &MonitoredItem{
			ID:           id,
			ClientHandle: req.RequestedParams.ClientHandle,
			Attribute:    attr,
			ReadValueID:  req.ItemToMonitor,
			Params:       req.RequestedParams,
			Handle:       handle,
		}
		s.items[id] = item
		created = append(created, item)

		results[i] = ua.MonitoredItemCreateResult{
			Status:                  ua.StatusGood,
			MonitoredItemID:         id,
			RevisedSamplingInterval: req.RequestedParams.SamplingInterval,
			RevisedQueueSize:        req.RequestedParams.QueueSize,
		}
	}
	s.mu.Unlock()

	if len(created) > 0 {
		metrics.MonitoredItemsActive.Add(float64(len(created)))
		for _, item := range created {
			s.wireSink(item)
		}
	}
	return results
}

func (s *Subscription) wireSink(item *MonitoredItem) {
	if item.Handle == nil {
		return
	}
	switch item.Attribute {
	case AttributeValue:
		item.Handle.SubscribeDataChange(func(v ua.DataValue) {
			s.enqueue(ua.NewExtensionObject(&ua.DataChangeNotification{
				MonitoredItems: []ua.MonitoredItemNotification{{ClientHandle: item.ClientHandle, Value: v}},
			}))
		})
	case AttributeEventNotifier:
		item.Handle.SubscribeEvents(func(fields []ua.Variant) {
			s.enqueue(ua.NewExtensionObject(&ua.EventNotificationList{
				Events: []ua.EventFieldList{{ClientHandle: item.ClientHandle, EventFields: fields}},
			}))
		})
	}
}

func (s *Subscription) enqueue(payload ua.ExtensionObject) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.fifo = append(s.fifo, payload)
	instant := s.instant
	s.mu.Unlock()

	metrics.NotificationsQueued.Inc()

	if instant && s.onPublishReady != nil {
		s.onPublishReady(s.id)
	}
}

// ModifyMonitoredItems revises the stored monitoring parameters for
// already-created items by id. Unknown ids report
// BadMonitoredItemIDInvalid for that position without failing the rest
// of the batch. The application's ItemHandle is not recreated — only
// the parameters the subscription itself tracks (client handle aside)
// are revised, matching the standard's "modify in place" semantics.
func (s *Subscription) ModifyMonitoredItems(reqs []ua.MonitoredItemModifyRequest) []ua.MonitoredItemModifyResult {
	results := make([]ua.MonitoredItemModifyResult, len(reqs))

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, req := range reqs {
		item, ok := s.items[req.MonitoredItemID]
		if !ok {
			results[i] = ua.MonitoredItemModifyResult{Status: ua.StatusBadMonitoredItemIDInvalid}
			continue
		}
		item.Params.SamplingInterval = req.RequestedParams.SamplingInterval
		item.Params.QueueSize = req.RequestedParams.QueueSize
		item.Params.DiscardOldest = req.RequestedParams.DiscardOldest
		results[i] = ua.MonitoredItemModifyResult{
			Status:                  ua.StatusGood,
			RevisedSamplingInterval: req.RequestedParams.SamplingInterval,
			RevisedQueueSize:        req.RequestedParams.QueueSize,
		}
	}
	return results
}

// DeleteMonitoredItems removes items by id and closes their handles.
// Unknown ids report BadMonitoredItemIDInvalid for that position without
// failing the rest of the batch.
func (s *Subscription) DeleteMonitoredItems(ids []uint32) []ua.StatusCode {
	results := make([]ua.StatusCode, len(ids))

	s.mu.Lock()
	var removed []*MonitoredItem
	for i, id := range ids {
		item, ok := s.items[id]
		if !ok {
			results[i] = ua.StatusBadMonitoredItemIDInvalid
			continue
		}
		delete(s.items, id)
		removed = append(removed, item)
		results[i] = ua.StatusGood
	}
	s.mu.Unlock()

	if len(removed) > 0 {
		metrics.MonitoredItemsActive.Sub(float64(len(removed)))
		for _, item := range removed {
			if item.Handle != nil {
				item.Handle.Close()
			}
		}
	}
	return results
}

// Close idempotently tears the subscription down: the publishing timer
// is stopped, queues and retained messages are cleared, and every
// monitored item's handle is closed. Close does not invoke OnClose —
// the caller (the session, which always initiates an explicit Close)
// already knows the subscription is gone.
func (s *Subscription) Close() {
	s.teardown("closed")
}

// teardown performs the state transition under lock and releases
// resources outside it. Calling it twice (e.g. once from the publishing
// timer after exceeding lifetime, once from an explicit session Close
// racing it) is safe: the second call observes StateClosed and returns
// immediately, satisfying the single-bit reentrant-close guard.
func (s *Subscription) teardown(reason string) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	if s.stopTimer != nil {
		close(s.stopTimer)
		s.stopTimer = nil
	}
	items := s.items
	s.items = nil
	s.fifo = nil
	s.retained = nil
	s.mu.Unlock()

	metrics.SubscriptionsActive.Dec()
	metrics.SubscriptionsClosed.WithLabelValues(reason).Inc()
	for _, item := range items {
		if item.Handle != nil {
			item.Handle.Close()
		}
	}
}

// Stats returns a snapshot of internal counters for diagnostics.
func (s *Subscription) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		QueueLength:    len(s.fifo),
		RetainedCount:  len(s.retained),
		MonitoredItems: len(s.items),
		LifetimeCount:  s.lifetimeCount,
		KeepAliveCount: s.keepAliveCount,
		NextSequence:   s.nextSeq,
	}
}
