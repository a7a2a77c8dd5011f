package subscription

import (
	"math"
	"testing"
	"time"

	"github.com/nexus-edge/opcua-runtime/internal/ua"
)

type fakeHandle struct{}

func (fakeHandle) SubscribeDataChange(func(ua.DataValue)) {}
func (fakeHandle) SubscribeEvents(func([]ua.Variant))     {}
func (fakeHandle) Close()                                 {}

func acceptAllCreateItem(ua.ReadValueID, ua.MonitoringParameters) (ua.StatusCode, ItemHandle) {
	return ua.StatusGood, fakeHandle{}
}

func newTestSubscription(t *testing.T, cfg Config) *Subscription {
	t.Helper()
	if cfg.CreateItem == nil {
		cfg.CreateItem = acceptAllCreateItem
	}
	if cfg.MaxNotificationsPerPublish == 0 {
		cfg.MaxNotificationsPerPublish = 100
	}
	cfg.PublishingEnabled = true
	s := New(cfg)
	t.Cleanup(s.Close)
	return s
}

func TestPublishSequenceNumbersWrapFromMaxToOne(t *testing.T) {
	s := newTestSubscription(t, Config{ID: 1, PublishingInterval: time.Millisecond, MaxKeepAliveCount: 1, MaxLifetimeCount: 1000})
	s.nextSeq = math.MaxUint32

	var resp ua.PublishResponse
	if ok := s.Publish(&resp); !ok {
		t.Fatalf("Publish() = false, want true (instant keep-alive)")
	}
	if resp.NotificationMessage.SequenceNumber != math.MaxUint32 {
		t.Fatalf("first sequence = %d, want %d", resp.NotificationMessage.SequenceNumber, uint32(math.MaxUint32))
	}

	var resp2 ua.PublishResponse
	if ok := s.Publish(&resp2); !ok {
		t.Fatalf("second Publish() = false, want true")
	}
	if resp2.NotificationMessage.SequenceNumber != 1 {
		t.Fatalf("wrapped sequence = %d, want 1", resp2.NotificationMessage.SequenceNumber)
	}
}

func TestAcknowledgeRemovesRetainedMessageOnce(t *testing.T) {
	s := newTestSubscription(t, Config{ID: 2, PublishingInterval: time.Millisecond, MaxKeepAliveCount: 1, MaxLifetimeCount: 1000})

	var resp ua.PublishResponse
	if ok := s.Publish(&resp); !ok {
		t.Fatalf("Publish() = false, want true")
	}
	seq := resp.NotificationMessage.SequenceNumber

	if ok := s.Acknowledge(seq); !ok {
		t.Fatalf("Acknowledge(%d) = false, want true", seq)
	}
	if ok := s.Acknowledge(seq); ok {
		t.Fatalf("second Acknowledge(%d) = true, want false (already removed)", seq)
	}
}

func TestAcknowledgeUnknownSequenceReturnsFalse(t *testing.T) {
	s := newTestSubscription(t, Config{ID: 3, PublishingInterval: time.Millisecond, MaxKeepAliveCount: 1, MaxLifetimeCount: 1000})
	if ok := s.Acknowledge(9999); ok {
		t.Fatalf("Acknowledge(9999) = true, want false (never retained)")
	}
}

func TestKeepAliveEmittedOnFourthTickWithNoNotifications(t *testing.T) {
	s := newTestSubscription(t, Config{
		ID:                 4,
		PublishingInterval: 20 * time.Millisecond,
		MaxKeepAliveCount:  3,
		MaxLifetimeCount:   1000,
	})

	var resp ua.PublishResponse
	for i := 0; i < 3; i++ {
		s.onPublishingTick()
		if s.Publish(&resp) {
			t.Fatalf("Publish() produced a message on tick %d, want none before keep-alive threshold", i+1)
		}
	}
	s.onPublishingTick()
	if !s.Publish(&resp) {
		t.Fatalf("Publish() = false on 4th tick, want keep-alive message")
	}
	if len(resp.NotificationMessage.NotificationData) != 0 {
		t.Fatalf("keep-alive message carried %d payloads, want 0", len(resp.NotificationMessage.NotificationData))
	}
}

func TestLifetimeExceededClosesSubscription(t *testing.T) {
	closed := make(chan ua.StatusCode, 1)
	s := New(Config{
		ID:                 5,
		PublishingInterval: 10 * time.Millisecond,
		MaxKeepAliveCount:  1000,
		MaxLifetimeCount:   3,
		PublishingEnabled:  true,
		CreateItem:         acceptAllCreateItem,
		OnClose: func(id uint32, reason ua.StatusCode) {
			closed <- reason
		},
	})
	defer s.Close()

	select {
	case reason := <-closed:
		if !reason.IsBad() {
			t.Fatalf("close reason = %v, want Bad family", reason)
		}
	case <-time.After(time.Second):
		t.Fatal("subscription did not close within 1s of exceeding lifetime count")
	}

	var resp ua.PublishResponse
	if s.Publish(&resp) {
		t.Fatalf("Publish() on closed subscription = true, want false")
	}
}

func TestCreateAndDeleteMonitoredItems(t *testing.T) {
	s := newTestSubscription(t, Config{ID: 6, PublishingInterval: time.Minute, MaxKeepAliveCount: 1, MaxLifetimeCount: 1000})

	results := s.CreateMonitoredItems([]ua.MonitoredItemCreateRequest{
		{ItemToMonitor: ua.ReadValueID{NodeID: ua.NewNumericNodeID(1, 1), AttributeID: AttributeIDValue}},
	})
	if len(results) != 1 || !results[0].Status.IsGood() {
		t.Fatalf("CreateMonitoredItems results = %+v, want one Good result", results)
	}
	id := results[0].MonitoredItemID

	delResults := s.DeleteMonitoredItems([]uint32{id})
	if len(delResults) != 1 || delResults[0] != ua.StatusGood {
		t.Fatalf("DeleteMonitoredItems results = %v, want [Good]", delResults)
	}

	delResults = s.DeleteMonitoredItems([]uint32{id})
	if delResults[0] != ua.StatusBadMonitoredItemIDInvalid {
		t.Fatalf("DeleteMonitoredItems on already-deleted id = %v, want BadMonitoredItemIDInvalid", delResults[0])
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s := New(Config{ID: 7, PublishingInterval: time.Minute, MaxKeepAliveCount: 1, MaxLifetimeCount: 1000, CreateItem: acceptAllCreateItem})
	s.Close()
	s.Close() // must not panic or double-decrement metrics
}
