package subscription

import "github.com/nexus-edge/opcua-runtime/internal/ua"

// AttributeKind distinguishes the two attribute families a monitored
// item can observe.
type AttributeKind byte

const (
	AttributeValue AttributeKind = iota
	AttributeEventNotifier
)

// Well-known attribute ids from the standard's AttributeId enumeration,
// used to classify an incoming ReadValueID.
const (
	AttributeIDEventNotifier uint32 = 12
	AttributeIDValue        uint32 = 13
)

// ItemHandle is returned by the application's CreateItemFunc for one
// successfully created monitored item. The subscription calls exactly
// one of SubscribeDataChange or SubscribeEvents, matching the item's
// attribute kind, and calls Close when the item is deleted or the
// subscription is torn down.
type ItemHandle interface {
	SubscribeDataChange(sink func(ua.DataValue))
	SubscribeEvents(sink func([]ua.Variant))
	Close()
}

// CreateItemFunc is the application handler invoked once per
// MonitoredItemCreateRequest. A non-Good status means the item was
// rejected and handle is ignored.
type CreateItemFunc func(item ua.ReadValueID, params ua.MonitoringParameters) (ua.StatusCode, ItemHandle)

// PublishHandler notifies the owning session dispatcher that this
// subscription may now have a message ready to hand to a pending
// Publish request — called after every enqueue in instant-publish mode,
// and after a publishing tick that found queued notifications.
type PublishHandler func(subscriptionID uint32)

// CloseHandler notifies the owning session dispatcher that this
// subscription closed itself (lifetime exceeded), as opposed to being
// torn down by an explicit DeleteSubscriptions/session close.
type CloseHandler func(subscriptionID uint32, reason ua.StatusCode)

// MonitoredItem is the server-side record for one attribute being
// observed on behalf of a subscription.
type MonitoredItem struct {
	ID           uint32
	ClientHandle uint32
	Attribute    AttributeKind
	ReadValueID  ua.ReadValueID
	Params       ua.MonitoringParameters
	Handle       ItemHandle
}

// Stats is a snapshot of a subscription's internal counters, useful for
// diagnostics endpoints and tests.
type Stats struct {
	QueueLength    int
	RetainedCount  int
	MonitoredItems int
	LifetimeCount  uint32
	KeepAliveCount uint32
	NextSequence   uint32
}
