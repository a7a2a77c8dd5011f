// Package subscription implements the client-side subscription
// reconciler: it batches monitored-item create/delete through a
// single-flight request pipeline while tracking per-item lifecycle
// across request boundaries, per §4.6.
package subscription

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nexus-edge/opcua-runtime/internal/ua"
)

// commitDelay is the coalescing window: user subscribe/unsubscribe
// calls arriving within this window of each other are batched into one
// CreateMonitoredItems or DeleteMonitoredItems request.
const commitDelay = time.Second

// ServiceCaller is the subset of the server's services a client
// subscription needs to issue.
type ServiceCaller interface {
	CreateSubscription(ctx context.Context, req ua.CreateSubscriptionRequest) (ua.CreateSubscriptionResponse, error)
	ModifySubscription(ctx context.Context, req ua.ModifySubscriptionRequest) (ua.ModifySubscriptionResponse, error)
	CreateMonitoredItems(ctx context.Context, req ua.CreateMonitoredItemsRequest) (ua.CreateMonitoredItemsResponse, error)
	ModifyMonitoredItems(ctx context.Context, req ua.ModifyMonitoredItemsRequest) (ua.ModifyMonitoredItemsResponse, error)
	DeleteMonitoredItems(ctx context.Context, req ua.DeleteMonitoredItemsRequest) (ua.DeleteMonitoredItemsResponse, error)
}

// itemState is the per-monitored-item bookkeeping the reconciler keeps
// across request boundaries, keyed by client handle.
type itemState struct {
	clientHandle uint32
	readValueID  ua.ReadValueID
	params       ua.MonitoringParameters
	sink         func(ua.DataValue)
	subscribed   bool // true while the user still wants this item
	added        bool // true once the server has confirmed creation
	serverID     *uint32
}

// Stats is a snapshot of the reconciler's internal bookkeeping, useful
// for diagnostics endpoints and tests, mirroring the server-side
// Subscription.Stats shape.
type Stats struct {
	SubscriptionID     uint32
	Created            bool
	ItemCount          int
	PendingSubscribe   int
	PendingUnsubscribe int
}

// Subscription reconciles a user's desired set of monitored items
// against the server, one CreateMonitoredItems/DeleteMonitoredItems
// batch at a time.
type Subscription struct {
	caller    ServiceCaller
	createReq ua.CreateSubscriptionRequest

	mu                 sync.Mutex
	subscriptionID     uint32
	created            bool
	nextClientHandle   uint32
	items              map[uint32]*itemState
	pendingSubscribe   []uint32
	subscribing        []uint32
	pendingUnsubscribe []uint32
	unsubscribing      []uint32
	commitTimer        *time.Timer
	onStatus           func(ua.StatusCode)
}

// New constructs a reconciler that will create its server-side
// subscription with createReq the first time the session reports a
// good status (see OnSessionStatusChanged).
func New(caller ServiceCaller, createReq ua.CreateSubscriptionRequest) *Subscription {
	return &Subscription{
		caller:    caller,
		createReq: createReq,
		items:     make(map[uint32]*itemState),
	}
}

// OnStatusChange installs the handler invoked when this subscription's
// own StatusChangeNotification arrives.
func (s *Subscription) OnStatusChange(h func(ua.StatusCode)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStatus = h
}

// SubscriptionID returns the server-assigned id, valid once the
// reconciler has completed its CreateSubscription call.
func (s *Subscription) SubscriptionID() (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscriptionID, s.created
}

// Stats returns a snapshot of the reconciler's bookkeeping.
func (s *Subscription) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		SubscriptionID:     s.subscriptionID,
		Created:            s.created,
		ItemCount:          len(s.items),
		PendingSubscribe:   len(s.pendingSubscribe) + len(s.subscribing),
		PendingUnsubscribe: len(s.pendingUnsubscribe) + len(s.unsubscribing),
	}
}

// Modify revises this subscription's own publishing parameters via
// ModifySubscription. It is a thin pass-through: unlike
// Subscribe/Unsubscribe, there is no per-item coalescing to do, since
// the request already addresses the whole subscription. The
// subscription must already be created on the server.
func (s *Subscription) Modify(ctx context.Context, req ua.ModifySubscriptionRequest) (ua.ModifySubscriptionResponse, error) {
	s.mu.Lock()
	req.SubscriptionID = s.subscriptionID
	s.mu.Unlock()
	return s.caller.ModifySubscription(ctx, req)
}

// ModifyMonitoredItem revises one already-created item's monitoring
// parameters via ModifyMonitoredItems, identified by the client handle
// Subscribe returned. It fails with an unknown-handle error if the
// item was never subscribed, has since been unsubscribed, or its
// creation hasn't yet been confirmed by the server.
func (s *Subscription) ModifyMonitoredItem(ctx context.Context, handle uint32, params ua.MonitoringParameters) (ua.MonitoredItemModifyResult, error) {
	s.mu.Lock()
	st, ok := s.items[handle]
	if !ok || !st.subscribed || !st.added || st.serverID == nil {
		s.mu.Unlock()
		return ua.MonitoredItemModifyResult{}, fmt.Errorf("client handle %d is not a confirmed monitored item", handle)
	}
	subscriptionID := s.subscriptionID
	serverID := *st.serverID
	params.ClientHandle = handle
	s.mu.Unlock()

	resp, err := s.caller.ModifyMonitoredItems(ctx, ua.ModifyMonitoredItemsRequest{
		SubscriptionID: subscriptionID,
		ItemsToModify:  []ua.MonitoredItemModifyRequest{{MonitoredItemID: serverID, RequestedParams: params}},
	})
	if err != nil {
		return ua.MonitoredItemModifyResult{}, err
	}
	if len(resp.Results) == 0 {
		return ua.MonitoredItemModifyResult{}, fmt.Errorf("ModifyMonitoredItems returned no result")
	}
	result := resp.Results[0]
	if result.Status.IsGood() {
		s.mu.Lock()
		if st, ok := s.items[handle]; ok {
			st.params = params
		}
		s.mu.Unlock()
	}
	return result, nil
}

// Subscribe registers a new monitored item and schedules a commit. It
// returns the client handle identifying this item for Unsubscribe and
// for routing incoming notifications.
func (s *Subscription) Subscribe(readValueID ua.ReadValueID, sink func(ua.DataValue)) uint32 {
	s.mu.Lock()
	handle := s.nextClientHandle
	s.nextClientHandle++
	s.items[handle] = &itemState{
		clientHandle: handle,
		readValueID:  readValueID,
		params:       ua.MonitoringParameters{ClientHandle: handle, QueueSize: 1, DiscardOldest: true},
		sink:         sink,
		subscribed:   true,
	}
	s.pendingSubscribe = append(s.pendingSubscribe, handle)
	s.mu.Unlock()

	s.scheduleCommit()
	return handle
}

// Unsubscribe asks the reconciler to stop monitoring handle. If the
// item has not yet been sent to the server it is dropped immediately;
// if its create is in flight, the drop is deferred until that response
// arrives (per §9's invariant); otherwise it is queued for the next
// DeleteMonitoredItems batch.
func (s *Subscription) Unsubscribe(handle uint32) {
	s.mu.Lock()
	st, ok := s.items[handle]
	if !ok {
		s.mu.Unlock()
		return
	}
	st.subscribed = false

	if idx := indexOf(s.pendingSubscribe, handle); idx >= 0 {
		s.pendingSubscribe = removeAt(s.pendingSubscribe, idx)
		delete(s.items, handle)
		s.mu.Unlock()
		return
	}
	if contains(s.subscribing, handle) {
		// Wait for the in-flight CreateMonitoredItems response; its
		// handler promotes this item to pending_unsubscribe once added.
		s.mu.Unlock()
		return
	}
	if st.added {
		s.pendingUnsubscribe = append(s.pendingUnsubscribe, handle)
	}
	s.mu.Unlock()

	s.scheduleCommit()
}

func (s *Subscription) scheduleCommit() {
	s.mu.Lock()
	if s.commitTimer == nil {
		s.commitTimer = time.AfterFunc(commitDelay, func() {
			s.mu.Lock()
			s.commitTimer = nil
			s.mu.Unlock()
			s.tryPromote()
		})
	}
	s.mu.Unlock()
}

// tryPromote swaps any non-empty pending_subscribe/pending_unsubscribe
// queue into its in-flight counterpart and issues the corresponding
// batch request, provided no batch of that kind is already in flight.
func (s *Subscription) tryPromote() {
	s.mu.Lock()
	var toCreate, toDelete []uint32
	if len(s.subscribing) == 0 && len(s.pendingSubscribe) > 0 {
		toCreate = s.pendingSubscribe
		s.subscribing = toCreate
		s.pendingSubscribe = nil
	}
	if len(s.unsubscribing) == 0 && len(s.pendingUnsubscribe) > 0 {
		toDelete = s.pendingUnsubscribe
		s.unsubscribing = toDelete
		s.pendingUnsubscribe = nil
	}
	s.mu.Unlock()

	if len(toCreate) > 0 {
		go s.sendCreate(toCreate)
	}
	if len(toDelete) > 0 {
		go s.sendDelete(toDelete)
	}
}

func (s *Subscription) sendCreate(handles []uint32) {
	s.mu.Lock()
	subscriptionID := s.subscriptionID
	reqs := make([]ua.MonitoredItemCreateRequest, len(handles))
	for i, h := range handles {
		st := s.items[h]
		reqs[i] = ua.MonitoredItemCreateRequest{
			ItemToMonitor:   st.readValueID,
			MonitoringMode:  ua.MonitoringModeReporting,
			RequestedParams: st.params,
		}
	}
	s.mu.Unlock()

	resp, err := s.caller.CreateMonitoredItems(context.Background(), ua.CreateMonitoredItemsRequest{
		SubscriptionID: subscriptionID,
		ItemsToCreate:  reqs,
	})

	type syntheticNotify struct {
		sink   func(ua.DataValue)
		status ua.StatusCode
	}
	var synthetic []syntheticNotify

	s.mu.Lock()
	s.subscribing = nil
	for i, h := range handles {
		st, ok := s.items[h]
		if !ok {
			continue
		}

		status := ua.StatusBadUnexpectedError
		var serverID uint32
		if err == nil && i < len(resp.Results) {
			status = resp.Results[i].Status
			serverID = resp.Results[i].MonitoredItemID
		}

		if status.IsGood() {
			st.added = true
			id := serverID
			st.serverID = &id
			if !st.subscribed {
				s.pendingUnsubscribe = append(s.pendingUnsubscribe, h)
			}
			continue
		}

		// Creation failed. The synthetic Bad notification is delivered
		// only if the user still wants this item; one unsubscribed
		// while its create was in flight is dropped silently.
		if st.subscribed {
			synthetic = append(synthetic, syntheticNotify{sink: st.sink, status: status})
		}
		delete(s.items, h)
	}
	s.mu.Unlock()

	for _, n := range synthetic {
		if n.sink != nil {
			n.sink(ua.NewBadDataValue(n.status))
		}
	}
	s.tryPromote()
}

func (s *Subscription) sendDelete(handles []uint32) {
	s.mu.Lock()
	subscriptionID := s.subscriptionID
	ids := make([]uint32, 0, len(handles))
	for _, h := range handles {
		if st, ok := s.items[h]; ok && st.serverID != nil {
			ids = append(ids, *st.serverID)
		}
	}
	s.mu.Unlock()

	resp, err := s.caller.DeleteMonitoredItems(context.Background(), ua.DeleteMonitoredItemsRequest{
		SubscriptionID:   subscriptionID,
		MonitoredItemIDs: ids,
	})

	failed := err != nil
	if !failed {
		for _, st := range resp.Results {
			if st != ua.StatusGood {
				failed = true
				break
			}
		}
	}

	s.mu.Lock()
	s.unsubscribing = nil
	for _, h := range handles {
		delete(s.items, h)
	}
	onStatus := s.onStatus
	s.mu.Unlock()

	if failed && onStatus != nil {
		// Unexpected: the original treats a failed delete as fatal to
		// the whole subscription rather than retrying individual items.
		onStatus(ua.StatusBadUnexpectedError)
	}
	s.tryPromote()
}

// HandleNotification decodes one delivered NotificationMessage, routing
// DataChange payloads to their item's sink by client handle and
// StatusChange payloads to the subscription's status handler.
func (s *Subscription) HandleNotification(msg ua.NotificationMessage) {
	type delivery struct {
		sink func(ua.DataValue)
		val  ua.DataValue
	}
	var deliveries []delivery
	var statusChange *ua.StatusCode

	s.mu.Lock()
	for _, ext := range msg.NotificationData {
		switch v := ext.Value.(type) {
		case *ua.DataChangeNotification:
			for _, item := range v.MonitoredItems {
				if st, ok := s.items[item.ClientHandle]; ok && st.sink != nil {
					deliveries = append(deliveries, delivery{sink: st.sink, val: item.Value})
				}
			}
		case *ua.StatusChangeNotification:
			status := v.Status
			statusChange = &status
		}
	}
	onStatus := s.onStatus
	s.mu.Unlock()

	for _, d := range deliveries {
		d.sink(d.val)
	}
	if statusChange != nil && onStatus != nil {
		onStatus(*statusChange)
	}
}

// OnSessionStatusChanged reacts to the owning client session's status
// signal: if this subscription hasn't been created on the server yet,
// issue CreateSubscription; if it has, the channel was renewed, so
// re-attempt any pending batches.
func (s *Subscription) OnSessionStatusChanged(status ua.StatusCode) {
	if !status.IsGood() {
		return
	}
	s.mu.Lock()
	created := s.created
	s.mu.Unlock()

	if !created {
		go s.create()
		return
	}
	s.tryPromote()
}

func (s *Subscription) create() {
	resp, err := s.caller.CreateSubscription(context.Background(), s.createReq)
	if err != nil {
		return // the next status signal will retry
	}
	s.mu.Lock()
	s.subscriptionID = resp.SubscriptionID
	s.created = true
	s.mu.Unlock()
	s.tryPromote()
}

func indexOf(xs []uint32, v uint32) int {
	for i, x := range xs {
		if x == v {
			return i
		}
	}
	return -1
}

func contains(xs []uint32, v uint32) bool { return indexOf(xs, v) >= 0 }

func removeAt(xs []uint32, i int) []uint32 {
	return append(xs[:i], xs[i+1:]...)
}
