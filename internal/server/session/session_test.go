package session

import (
	"sync"
	"testing"
	"time"

	"github.com/nexus-edge/opcua-runtime/internal/server/subscription"
	"github.com/nexus-edge/opcua-runtime/internal/ua"
)

// fakeHandle captures the sink the subscription wires up so tests can
// drive data changes directly, without a real application handler.
type fakeHandle struct {
	sink func(ua.DataValue)
}

func (h *fakeHandle) SubscribeDataChange(sink func(ua.DataValue)) { h.sink = sink }
func (h *fakeHandle) SubscribeEvents(func([]ua.Variant))          {}
func (h *fakeHandle) Close()                                      {}

var lastHandle *fakeHandle

func acceptAllCreateItem(ua.ReadValueID, ua.MonitoringParameters) (ua.StatusCode, subscription.ItemHandle) {
	lastHandle = &fakeHandle{}
	return ua.StatusGood, lastHandle
}

func newTestSession(t *testing.T) (*Session, *subscription.Subscription) {
	t.Helper()
	s := New(ua.NewNumericNodeID(0, 1), "token", nil)
	t.Cleanup(s.Close)

	sub := subscription.New(subscription.Config{
		ID:                         1,
		PublishingInterval:         time.Minute, // ticks replaced by direct enqueue plus OnSubscriptionReady in these tests
		MaxLifetimeCount:           1000,
		MaxKeepAliveCount:          1000,
		MaxNotificationsPerPublish: 100,
		PublishingEnabled:          true,
		CreateItem:                 acceptAllCreateItem,
		OnPublishReady:             s.OnSubscriptionReady,
		OnClose:                    s.OnSubscriptionClosed,
	})
	s.AddSubscription(sub)
	return s, sub
}

func TestPublishTimesOutStaleRequest(t *testing.T) {
	s, _ := newTestSession(t)

	var mu sync.Mutex
	var got *ua.PublishResponse
	done := make(chan struct{})

	s.Publish(ua.PublishRequest{}, 50*time.Millisecond, func(resp ua.PublishResponse) {
		mu.Lock()
		r := resp
		got = &r
		mu.Unlock()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish request was never completed")
	}

	mu.Lock()
	defer mu.Unlock()
	if got == nil || got.Header.ServiceResult != ua.StatusBadTimeout {
		t.Fatalf("completed response = %+v, want ServiceResult=BadTimeout", got)
	}
}

func TestPublishOrderingCompletesFIFO(t *testing.T) {
	s, sub := newTestSession(t)

	items := sub.CreateMonitoredItems([]ua.MonitoredItemCreateRequest{
		{ItemToMonitor: ua.ReadValueID{NodeID: ua.NewNumericNodeID(1, 1), AttributeID: subscription.AttributeIDValue},
			RequestedParams: ua.MonitoringParameters{ClientHandle: 1}},
	})
	if !items[0].Status.IsGood() {
		t.Fatalf("CreateMonitoredItems failed: %+v", items[0])
	}

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(2)

	s.Publish(ua.PublishRequest{}, 0, func(ua.PublishResponse) {
		mu.Lock()
		order = append(order, 1)
		mu.Unlock()
		wg.Done()
	})
	s.Publish(ua.PublishRequest{}, 0, func(ua.PublishResponse) {
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
		wg.Done()
	})

	// Enqueue two notifications, signalling readiness after each as the
	// publishing timer would; each satisfies one queued Publish, in the
	// order the Publish requests arrived.
	deliverDataChange(sub, 1, ua.NewGoodDataValue(ua.VariantFromInt32(1)))
	s.OnSubscriptionReady(sub.ID())
	deliverDataChange(sub, 1, ua.NewGoodDataValue(ua.VariantFromInt32(2)))
	s.OnSubscriptionReady(sub.ID())

	waitOrTimeout(t, &wg)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("completion order = %v, want [1 2]", order)
	}
}

func TestCloseFailsPendingPublishWithBadNoSubscription(t *testing.T) {
	s, _ := newTestSession(t)

	done := make(chan ua.StatusCode, 1)
	s.Publish(ua.PublishRequest{}, 0, func(resp ua.PublishResponse) {
		done <- resp.Header.ServiceResult
	})
	s.Close()

	select {
	case result := <-done:
		if result != ua.StatusBadNoSubscription {
			t.Fatalf("Close() completed pending Publish with %v, want BadNoSubscription", result)
		}
	case <-time.After(time.Second):
		t.Fatal("Close() did not complete pending Publish request")
	}
}

// deliverDataChange drives the most recently created monitored item's
// data-change sink directly, bypassing the application handler, since
// these tests only exercise the dispatcher's fan-out.
func deliverDataChange(sub *subscription.Subscription, clientHandle uint32, v ua.DataValue) {
	_ = sub
	_ = clientHandle
	lastHandle.sink(v)
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Publish completions")
	}
}
