package ua

// ResponseHeader carries the one field every service response needs
// for dispatch and error reporting: the overall outcome of the service
// call. Per-item results (e.g. PublishResponse.Results) are reported
// separately; ServiceResult is Good unless the whole call failed
// (session not found, timeout, fault).
type ResponseHeader struct {
	Timestamp     DateTime
	ServiceResult StatusCode
}

// ServiceFault is returned in place of the expected response type when
// a service call fails outright. transport.Client hands its
// ServiceResult to Publish callers in the header of a blank
// PublishResponse and to callers of every other service as an error.
type ServiceFault struct {
	Header ResponseHeader
}

// CloseSessionRequest asks the server to tear a session down. The auth
// token travels in the transport envelope rather than the body.
// DeleteSubscriptions is carried on the wire, but the endpoint closes
// every subscription of the session whatever its value.
type CloseSessionRequest struct {
	DeleteSubscriptions bool
}

// CloseSessionResponse reports whether the close succeeded.
type CloseSessionResponse struct {
	Header ResponseHeader
}

// ReadValueID identifies a single attribute of a single node to sample or
// monitor — the unit the server's application handler is asked to
// produce a DataValue for.
type ReadValueID struct {
	NodeID      NodeID
	AttributeID uint32
}

// MonitoringMode mirrors the standard's three-valued mode: a disabled
// item samples nothing, a sampling item samples but never queues a
// notification, a reporting item does both.
type MonitoringMode byte

const (
	MonitoringModeDisabled MonitoringMode = iota
	MonitoringModeSampling
	MonitoringModeReporting
)

// MonitoringParameters configures how a monitored item samples and
// queues. QueueSize of 0 or 1 keeps only the latest sample; DiscardOldest
// selects which end of a full queue is dropped.
type MonitoringParameters struct {
	ClientHandle     uint32
	SamplingInterval float64
	QueueSize        uint32
	DiscardOldest    bool
}

// MonitoredItemCreateRequest asks the server to begin monitoring one
// node attribute.
type MonitoredItemCreateRequest struct {
	ItemToMonitor   ReadValueID
	MonitoringMode  MonitoringMode
	RequestedParams MonitoringParameters
}

// MonitoredItemCreateResult reports the outcome of one create request,
// positionally paired with its MonitoredItemCreateRequest.
type MonitoredItemCreateResult struct {
	Status                  StatusCode
	MonitoredItemID         uint32
	RevisedSamplingInterval float64
	RevisedQueueSize        uint32
}

// CreateMonitoredItemsRequest batches item creation for one subscription.
type CreateMonitoredItemsRequest struct {
	SubscriptionID uint32
	ItemsToCreate  []MonitoredItemCreateRequest
}

// CreateMonitoredItemsResponse is positionally paired with the request's
// ItemsToCreate.
type CreateMonitoredItemsResponse struct {
	Results []MonitoredItemCreateResult
}

// MonitoredItemModifyRequest asks the server to revise the monitoring
// parameters of one already-created item, identified by the id the
// original CreateMonitoredItems call returned.
type MonitoredItemModifyRequest struct {
	MonitoredItemID uint32
	RequestedParams MonitoringParameters
}

// MonitoredItemModifyResult reports the outcome of one modify request,
// positionally paired with its MonitoredItemModifyRequest.
type MonitoredItemModifyResult struct {
	Status                  StatusCode
	RevisedSamplingInterval float64
	RevisedQueueSize        uint32
}

// ModifyMonitoredItemsRequest batches per-item parameter revisions for
// one subscription.
type ModifyMonitoredItemsRequest struct {
	SubscriptionID uint32
	ItemsToModify  []MonitoredItemModifyRequest
}

// ModifyMonitoredItemsResponse is positionally paired with the request's
// ItemsToModify.
type ModifyMonitoredItemsResponse struct {
	Results []MonitoredItemModifyResult
}

// DeleteMonitoredItemsRequest batches item deletion for one subscription.
type DeleteMonitoredItemsRequest struct {
	SubscriptionID   uint32
	MonitoredItemIDs []uint32
}

// DeleteMonitoredItemsResponse is positionally paired with the request's
// MonitoredItemIDs.
type DeleteMonitoredItemsResponse struct {
	Results []StatusCode
}

// CreateSubscriptionRequest asks the server to open a new subscription
// with the given publishing parameters. A RequestedPublishingInterval
// below the instant-publish threshold (10ms, per §4.3) puts the
// subscription into instant-publish mode rather than ticking on a timer.
type CreateSubscriptionRequest struct {
	RequestedPublishingInterval float64
	RequestedLifetimeCount      uint32
	RequestedMaxKeepAliveCount  uint32
	MaxNotificationsPerPublish  uint32
	PublishingEnabled           bool
	Priority                    byte
}

// CreateSubscriptionResponse reports the subscription id and the
// server-revised publishing parameters.
type CreateSubscriptionResponse struct {
	SubscriptionID         uint32
	RevisedPublishingInterval float64
	RevisedLifetimeCount      uint32
	RevisedMaxKeepAliveCount  uint32
}

// ModifySubscriptionRequest revises an existing subscription's publishing
// parameters without recreating it.
type ModifySubscriptionRequest struct {
	SubscriptionID              uint32
	RequestedPublishingInterval float64
	RequestedLifetimeCount      uint32
	RequestedMaxKeepAliveCount  uint32
	MaxNotificationsPerPublish  uint32
	Priority                    byte
}

// ModifySubscriptionResponse reports the server-revised parameters.
type ModifySubscriptionResponse struct {
	RevisedPublishingInterval float64
	RevisedLifetimeCount      uint32
	RevisedMaxKeepAliveCount  uint32
}

// SetPublishingModeRequest enables or disables publishing for a batch of
// subscriptions without tearing them down.
type SetPublishingModeRequest struct {
	PublishingEnabled bool
	SubscriptionIDs   []uint32
}

// SetPublishingModeResponse is positionally paired with the request's
// SubscriptionIDs.
type SetPublishingModeResponse struct {
	Results []StatusCode
}

// DeleteSubscriptionsRequest tears down a batch of subscriptions.
type DeleteSubscriptionsRequest struct {
	SubscriptionIDs []uint32
}

// DeleteSubscriptionsResponse is positionally paired with the request's
// SubscriptionIDs.
type DeleteSubscriptionsResponse struct {
	Results []StatusCode
}

// SubscriptionAcknowledgement tells the server a previously delivered
// NotificationMessage has been processed and its retained copy can be
// freed.
type SubscriptionAcknowledgement struct {
	SubscriptionID uint32
	SequenceNumber uint32
}

// PublishRequest supplies acknowledgements for previously delivered
// messages and asks the server for the next one, blocking (from the
// client's point of view) until data is available or a subscription
// times out.
type PublishRequest struct {
	SubscriptionAcknowledgements []SubscriptionAcknowledgement
}

// PublishResponse carries one subscription's notification message, the
// sequence numbers that subscription still retains for acknowledgement,
// whether it has more notifications queued (so the client knows to send
// another PublishRequest promptly), and per-ack results positionally
// paired with the request's acknowledgements.
type PublishResponse struct {
	Header                   ResponseHeader
	SubscriptionID           uint32
	AvailableSequenceNumbers []uint32
	MoreNotifications        bool
	NotificationMessage      NotificationMessage
	Results                  []StatusCode
}

// RepublishRequest asks the server to resend a retained message by
// sequence number, used by a client that detects a gap in delivered
// sequence numbers.
type RepublishRequest struct {
	SubscriptionID          uint32
	RetransmitSequenceNumber uint32
}

// RepublishResponse carries the resent message. It has no header or
// status field.
type RepublishResponse struct {
	NotificationMessage NotificationMessage
}

// EndpointDescription describes one reachable endpoint, returned from
// GetEndpoints for server discovery.
type EndpointDescription struct {
	EndpointURL     string
	SecurityPolicy  string
	ServerCertificate []byte
}

// CreateSessionRequest asks the endpoint to mint a new session.
type CreateSessionRequest struct {
	ClientDescription string
	ServerURI         string
	EndpointURL       string
	SessionName       string
	RequestedSessionTimeout float64
}

// CreateSessionResponse returns the minted session identity. AuthToken
// is later presented by the client (as an opaque equality-checked
// value, per the spec's authorization non-goal) on every subsequent
// request naming this session.
type CreateSessionResponse struct {
	Header            ResponseHeader
	SessionID         NodeID
	AuthToken         string
	ServerNonce       []byte
	RevisedSessionTimeout float64
	ServerEndpoints   []EndpointDescription
}

// GetEndpointsRequest asks for the discovery list at a URL.
type GetEndpointsRequest struct {
	EndpointURL string
}

// GetEndpointsResponse lists the endpoints known at that URL.
type GetEndpointsResponse struct {
	Header    ResponseHeader
	Endpoints []EndpointDescription
}
