package subscription

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nexus-edge/opcua-runtime/internal/ua"
)

// fakeCaller records every CreateMonitoredItems/DeleteMonitoredItems
// batch it receives and lets a test script canned responses.
type fakeCaller struct {
	mu sync.Mutex

	createCalls  [][]ua.MonitoredItemCreateRequest
	createResult ua.CreateMonitoredItemsResponse
	createErr    error

	deleteCalls  [][]uint32
	deleteResult ua.DeleteMonitoredItemsResponse
	deleteErr    error

	onCreate chan struct{}
	onDelete chan struct{}
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{
		onCreate: make(chan struct{}, 16),
		onDelete: make(chan struct{}, 16),
	}
}

func (f *fakeCaller) CreateSubscription(context.Context, ua.CreateSubscriptionRequest) (ua.CreateSubscriptionResponse, error) {
	return ua.CreateSubscriptionResponse{SubscriptionID: 7}, nil
}

func (f *fakeCaller) ModifySubscription(_ context.Context, req ua.ModifySubscriptionRequest) (ua.ModifySubscriptionResponse, error) {
	return ua.ModifySubscriptionResponse{
		RevisedPublishingInterval: req.RequestedPublishingInterval,
		RevisedLifetimeCount:      req.RequestedLifetimeCount,
		RevisedMaxKeepAliveCount:  req.RequestedMaxKeepAliveCount,
	}, nil
}

func (f *fakeCaller) ModifyMonitoredItems(_ context.Context, req ua.ModifyMonitoredItemsRequest) (ua.ModifyMonitoredItemsResponse, error) {
	results := make([]ua.MonitoredItemModifyResult, len(req.ItemsToModify))
	for i, item := range req.ItemsToModify {
		results[i] = ua.MonitoredItemModifyResult{
			Status:                  ua.StatusGood,
			RevisedSamplingInterval: item.RequestedParams.SamplingInterval,
			RevisedQueueSize:        item.RequestedParams.QueueSize,
		}
	}
	return ua.ModifyMonitoredItemsResponse{Results: results}, nil
}

func (f *fakeCaller) CreateMonitoredItems(_ context.Context, req ua.CreateMonitoredItemsRequest) (ua.CreateMonitoredItemsResponse, error) {
	f.mu.Lock()
	f.createCalls = append(f.createCalls, req.ItemsToCreate)
	result, err := f.createResult, f.createErr
	f.mu.Unlock()
	f.onCreate <- struct{}{}
	return result, err
}

func (f *fakeCaller) DeleteMonitoredItems(_ context.Context, req ua.DeleteMonitoredItemsRequest) (ua.DeleteMonitoredItemsResponse, error) {
	f.mu.Lock()
	f.deleteCalls = append(f.deleteCalls, req.MonitoredItemIDs)
	result, err := f.deleteResult, f.deleteErr
	f.mu.Unlock()
	f.onDelete <- struct{}{}
	return result, err
}

func (f *fakeCaller) createCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.createCalls)
}

func waitSignal(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch request")
	}
}

func newReadyReconciler(caller *fakeCaller) *Subscription {
	s := New(caller, ua.CreateSubscriptionRequest{RequestedPublishingInterval: 500})
	s.OnSessionStatusChanged(ua.StatusGood)
	return s
}

func TestSubscribeThreeItemsWithinWindowSendsOneBatch(t *testing.T) {
	caller := newFakeCaller()
	caller.createResult = ua.CreateMonitoredItemsResponse{Results: []ua.MonitoredItemCreateResult{
		{Status: ua.StatusGood, MonitoredItemID: 101},
		{Status: ua.StatusGood, MonitoredItemID: 102},
		{Status: ua.StatusGood, MonitoredItemID: 103},
	}}
	s := newReadyReconciler(caller)

	for i := 0; i < 3; i++ {
		s.Subscribe(ua.ReadValueID{NodeID: ua.NewNumericNodeID(1, uint32(i))}, func(ua.DataValue) {})
	}

	// The commit timer coalesces all three into one batch; force it to
	// fire immediately rather than waiting out the real 1s window.
	s.mu.Lock()
	if s.commitTimer != nil {
		s.commitTimer.Stop()
		s.commitTimer = nil
	}
	s.mu.Unlock()
	s.tryPromote()

	waitSignal(t, caller.onCreate)
	time.Sleep(20 * time.Millisecond) // let sendCreate finish its bookkeeping

	if got := caller.createCallCount(); got != 1 {
		t.Fatalf("createCallCount = %d, want 1", got)
	}
	if len(caller.createCalls[0]) != 3 {
		t.Fatalf("batch size = %d, want 3", len(caller.createCalls[0]))
	}
}

func TestUnsubscribeWhileCreateInFlightDeletesAfterResponse(t *testing.T) {
	caller := newFakeCaller()
	caller.createResult = ua.CreateMonitoredItemsResponse{Results: []ua.MonitoredItemCreateResult{
		{Status: ua.StatusGood, MonitoredItemID: 55},
	}}
	caller.deleteResult = ua.DeleteMonitoredItemsResponse{Results: []ua.StatusCode{ua.StatusGood}}
	s := newReadyReconciler(caller)

	handle := s.Subscribe(ua.ReadValueID{NodeID: ua.NewNumericNodeID(1, 1)}, func(ua.DataValue) {})

	s.mu.Lock()
	s.commitTimer.Stop()
	s.commitTimer = nil
	s.mu.Unlock()
	s.tryPromote()

	// Unsubscribe before the create response arrives: the item must
	// still be in `subscribing`, so Unsubscribe defers the delete.
	s.Unsubscribe(handle)

	waitSignal(t, caller.onCreate)
	waitSignal(t, caller.onDelete)

	if caller.createCallCount() != 1 {
		t.Fatalf("expected exactly one CreateMonitoredItems call")
	}
	caller.mu.Lock()
	defer caller.mu.Unlock()
	if len(caller.deleteCalls) != 1 || len(caller.deleteCalls[0]) != 1 || caller.deleteCalls[0][0] != 55 {
		t.Fatalf("deleteCalls = %v, want one call deleting [55]", caller.deleteCalls)
	}
}

func TestCreateFailureDeliversSyntheticBadWhenStillSubscribed(t *testing.T) {
	caller := newFakeCaller()
	caller.createResult = ua.CreateMonitoredItemsResponse{Results: []ua.MonitoredItemCreateResult{
		{Status: ua.StatusBadNotSupported},
	}}
	s := newReadyReconciler(caller)

	var mu sync.Mutex
	var got *ua.DataValue
	done := make(chan struct{})
	s.Subscribe(ua.ReadValueID{NodeID: ua.NewNumericNodeID(1, 1)}, func(v ua.DataValue) {
		mu.Lock()
		vv := v
		got = &vv
		mu.Unlock()
		close(done)
	})

	s.mu.Lock()
	s.commitTimer.Stop()
	s.commitTimer = nil
	s.mu.Unlock()
	s.tryPromote()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("synthetic Bad notification never delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	if got == nil || got.Status != ua.StatusBadNotSupported {
		t.Fatalf("delivered value = %+v, want Status=BadNotSupported", got)
	}
}

func TestCreateFailureSkipsSyntheticBadWhenAlreadyUnsubscribed(t *testing.T) {
	caller := newFakeCaller()
	caller.createResult = ua.CreateMonitoredItemsResponse{Results: []ua.MonitoredItemCreateResult{
		{Status: ua.StatusBadNotSupported},
	}}
	s := newReadyReconciler(caller)

	called := false
	handle := s.Subscribe(ua.ReadValueID{NodeID: ua.NewNumericNodeID(1, 1)}, func(ua.DataValue) {
		called = true
	})

	s.mu.Lock()
	s.commitTimer.Stop()
	s.commitTimer = nil
	s.mu.Unlock()
	s.tryPromote()

	s.Unsubscribe(handle)

	waitSignal(t, caller.onCreate)
	time.Sleep(20 * time.Millisecond)

	if called {
		t.Fatal("synthetic Bad notification delivered for an already-unsubscribed item")
	}
}

func TestHandleNotificationRoutesDataChangeByClientHandle(t *testing.T) {
	caller := newFakeCaller()
	s := newReadyReconciler(caller)

	var got ua.DataValue
	done := make(chan struct{})
	s.mu.Lock()
	s.items[42] = &itemState{clientHandle: 42, subscribed: true, sink: func(v ua.DataValue) {
		got = v
		close(done)
	}}
	s.mu.Unlock()

	msg := ua.NotificationMessage{
		NotificationData: []ua.ExtensionObject{
			ua.NewExtensionObject(&ua.DataChangeNotification{
				MonitoredItems: []ua.MonitoredItemNotification{
					{ClientHandle: 42, Value: ua.NewGoodDataValue(ua.VariantFromInt32(7))},
				},
			}),
		},
	}
	s.HandleNotification(msg)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("data change was not routed to the matching client handle")
	}
	if !got.Status.IsGood() {
		t.Fatalf("routed value status = %v, want Good", got.Status)
	}
}

func TestHandleNotificationRoutesStatusChange(t *testing.T) {
	caller := newFakeCaller()
	s := newReadyReconciler(caller)

	var got ua.StatusCode
	done := make(chan struct{})
	s.OnStatusChange(func(status ua.StatusCode) {
		got = status
		close(done)
	})

	msg := ua.NotificationMessage{
		NotificationData: []ua.ExtensionObject{
			ua.NewExtensionObject(&ua.StatusChangeNotification{Status: ua.StatusBadTimeout}),
		},
	}
	s.HandleNotification(msg)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("status change was not routed")
	}
	if got != ua.StatusBadTimeout {
		t.Fatalf("routed status = %v, want BadTimeout", got)
	}
}
