// Package endpoint implements the server-side listener surface: the
// session registry keyed by authentication token, CreateSession
// minting, resource-aware admission control, and service dispatch by
// auth token / subscription id.
package endpoint

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexus-edge/opcua-runtime/internal/metrics"
	"github.com/nexus-edge/opcua-runtime/internal/server/session"
	"github.com/nexus-edge/opcua-runtime/internal/server/subscription"
	"github.com/nexus-edge/opcua-runtime/internal/ua"
)

// Config configures an Endpoint.
type Config struct {
	URL                string
	SecurityPolicy     string
	MaxSessions        int
	SessionTimeout     time.Duration
	CPURejectThreshold float64
	AuthSigningKey     string
	CreateItem         subscription.CreateItemFunc
	Audit              session.AuditFunc
	Logger             zerolog.Logger
}

// Endpoint owns the session registry and dispatches incoming service
// requests to the right session/subscription. The endpoint lock guards
// only the session map and nextSessionID counter; it is never held while
// invoking a callback into a session or subscription.
type Endpoint struct {
	cfg        Config
	guard      *resourceGuard
	minter     *tokenMinter
	createItem subscription.CreateItemFunc
	logger     zerolog.Logger

	mu                 sync.RWMutex
	sessions           map[string]*session.Session // keyed by auth token
	nextSessionID      uint64
	nextSubscriptionID uint32
}

// New constructs an Endpoint and starts its admission-control sampler.
func New(cfg Config) *Endpoint {
	e := &Endpoint{
		cfg:        cfg,
		guard:      newResourceGuard(cfg.CPURejectThreshold, cfg.Logger),
		minter:     newTokenMinter(cfg.AuthSigningKey, 24*time.Hour),
		createItem: cfg.CreateItem,
		logger:     cfg.Logger,
		sessions:   make(map[string]*session.Session),
	}
	e.guard.Start(5 * time.Second)
	return e
}

// Close stops the admission sampler and every session.
func (e *Endpoint) Close() {
	e.guard.Stop()
	e.mu.Lock()
	sessions := e.sessions
	e.sessions = nil
	e.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

// GetEndpoints answers the discovery request with this endpoint's own
// description (peer endpoint federation is out of scope here; a single-
// endpoint deployment returns just itself).
func (e *Endpoint) GetEndpoints(req ua.GetEndpointsRequest) ua.GetEndpointsResponse {
	return ua.GetEndpointsResponse{
		Header: ua.ResponseHeader{ServiceResult: ua.StatusGood},
		Endpoints: []ua.EndpointDescription{
			{EndpointURL: e.cfg.URL, SecurityPolicy: e.cfg.SecurityPolicy},
		},
	}
}

// CreateSession mints a new session, rejecting the request if the
// endpoint is at capacity or under CPU pressure.
func (e *Endpoint) CreateSession(req ua.CreateSessionRequest) (ua.CreateSessionResponse, error) {
	if ok, reason := e.guard.Admit(); !ok {
		return ua.CreateSessionResponse{Header: ua.ResponseHeader{ServiceResult: ua.StatusBadOutOfMemory}},
			fmt.Errorf("session rejected: %s", reason)
	}

	e.mu.Lock()
	if e.cfg.MaxSessions > 0 && len(e.sessions) >= e.cfg.MaxSessions {
		e.mu.Unlock()
		metrics.SessionsRejected.WithLabelValues("max_sessions").Inc()
		return ua.CreateSessionResponse{Header: ua.ResponseHeader{ServiceResult: ua.StatusBadOutOfMemory}},
			fmt.Errorf("session rejected: endpoint at max sessions (%d)", e.cfg.MaxSessions)
	}
	id := atomic.AddUint64(&e.nextSessionID, 1)
	e.mu.Unlock()

	sessionID := ua.NewNumericNodeID(1, uint32(id))
	authToken, err := e.minter.Mint(sessionID.String())
	if err != nil {
		return ua.CreateSessionResponse{Header: ua.ResponseHeader{ServiceResult: ua.StatusBadUnexpectedError}}, err
	}
	nonce, err := serverNonce(32)
	if err != nil {
		return ua.CreateSessionResponse{Header: ua.ResponseHeader{ServiceResult: ua.StatusBadUnexpectedError}}, err
	}

	sess := session.New(sessionID, authToken, e.cfg.Audit)

	e.mu.Lock()
	e.sessions[authToken] = sess
	e.mu.Unlock()

	timeout := req.RequestedSessionTimeout
	if timeout <= 0 {
		timeout = float64(e.cfg.SessionTimeout / time.Millisecond)
	}

	return ua.CreateSessionResponse{
		Header:                ua.ResponseHeader{ServiceResult: ua.StatusGood},
		SessionID:             sessionID,
		AuthToken:             authToken,
		ServerNonce:           nonce,
		RevisedSessionTimeout: timeout,
		ServerEndpoints:       []ua.EndpointDescription{{EndpointURL: e.cfg.URL, SecurityPolicy: e.cfg.SecurityPolicy}},
	}, nil
}

// sessionFor resolves a session by auth token, returning a fault
// ServiceResult when the token names nothing, per §4.5/§7.
func (e *Endpoint) sessionFor(authToken string) (*session.Session, ua.StatusCode) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sess, ok := e.sessions[authToken]
	if !ok {
		return nil, ua.StatusBadSessionIDInvalid
	}
	return sess, ua.StatusGood
}

// CreateSubscriptionAuto allocates a fresh subscription id and creates
// the subscription under it — the id is the endpoint's to hand out, not
// the transport layer's, so request dispatch never has to reach past
// the endpoint to mint one.
func (e *Endpoint) CreateSubscriptionAuto(authToken string, req ua.CreateSubscriptionRequest) (ua.CreateSubscriptionResponse, ua.StatusCode) {
	id := atomic.AddUint32(&e.nextSubscriptionID, 1)
	return e.CreateSubscription(authToken, req, id)
}

// CreateSubscription creates a subscription on the named session and
// wires it into that session's publish dispatcher.
func (e *Endpoint) CreateSubscription(authToken string, req ua.CreateSubscriptionRequest, subscriptionID uint32) (ua.CreateSubscriptionResponse, ua.StatusCode) {
	sess, status := e.sessionFor(authToken)
	if !status.IsGood() {
		return ua.CreateSubscriptionResponse{}, status
	}

	sub := subscription.New(subscription.Config{
		ID:                         subscriptionID,
		PublishingInterval:         time.Duration(req.RequestedPublishingInterval) * time.Millisecond,
		MaxLifetimeCount:           req.RequestedLifetimeCount,
		MaxKeepAliveCount:          req.RequestedMaxKeepAliveCount,
		MaxNotificationsPerPublish: req.MaxNotificationsPerPublish,
		Priority:                   req.Priority,
		PublishingEnabled:          req.PublishingEnabled,
		CreateItem:                 e.createItem,
		OnPublishReady:             sess.OnSubscriptionReady,
		OnClose:                    sess.OnSubscriptionClosed,
		Types:                      ua.DefaultTypeRegistry(),
	})
	sess.AddSubscription(sub)

	return ua.CreateSubscriptionResponse{
		SubscriptionID:            subscriptionID,
		RevisedPublishingInterval: req.RequestedPublishingInterval,
		RevisedLifetimeCount:      req.RequestedLifetimeCount,
		RevisedMaxKeepAliveCount:  req.RequestedMaxKeepAliveCount,
	}, ua.StatusGood
}

// ModifySubscription dispatches to the named session's subscription.
func (e *Endpoint) ModifySubscription(authToken string, req ua.ModifySubscriptionRequest) (ua.ModifySubscriptionResponse, ua.StatusCode) {
	sess, status := e.sessionFor(authToken)
	if !status.IsGood() {
		return ua.ModifySubscriptionResponse{}, status
	}
	sub, ok := sess.Subscription(req.SubscriptionID)
	if !ok {
		return ua.ModifySubscriptionResponse{}, ua.StatusBadSubscriptionIDInvalid
	}
	return sub.Modify(req), ua.StatusGood
}

// SetPublishingMode dispatches to each named subscription on the
// session, returning a per-id status positionally paired with
// req.SubscriptionIDs.
func (e *Endpoint) SetPublishingMode(authToken string, req ua.SetPublishingModeRequest) (ua.SetPublishingModeResponse, ua.StatusCode) {
	sess, status := e.sessionFor(authToken)
	if !status.IsGood() {
		return ua.SetPublishingModeResponse{}, status
	}
	results := make([]ua.StatusCode, len(req.SubscriptionIDs))
	for i, id := range req.SubscriptionIDs {
		sub, ok := sess.Subscription(id)
		if !ok {
			results[i] = ua.StatusBadSubscriptionIDInvalid
			continue
		}
		sub.SetPublishingEnabled(req.PublishingEnabled)
		results[i] = ua.StatusGood
	}
	return ua.SetPublishingModeResponse{Results: results}, ua.StatusGood
}

// CreateMonitoredItems dispatches to the named session's subscription.
func (e *Endpoint) CreateMonitoredItems(authToken string, req ua.CreateMonitoredItemsRequest) (ua.CreateMonitoredItemsResponse, ua.StatusCode) {
	sess, status := e.sessionFor(authToken)
	if !status.IsGood() {
		return ua.CreateMonitoredItemsResponse{}, status
	}
	sub, ok := sess.Subscription(req.SubscriptionID)
	if !ok {
		results := make([]ua.MonitoredItemCreateResult, len(req.ItemsToCreate))
		for i := range results {
			results[i] = ua.MonitoredItemCreateResult{Status: ua.StatusBadSubscriptionIDInvalid}
		}
		return ua.CreateMonitoredItemsResponse{Results: results}, ua.StatusGood
	}
	return ua.CreateMonitoredItemsResponse{Results: sub.CreateMonitoredItems(req.ItemsToCreate)}, ua.StatusGood
}

// ModifyMonitoredItems dispatches to the named session's subscription.
func (e *Endpoint) ModifyMonitoredItems(authToken string, req ua.ModifyMonitoredItemsRequest) (ua.ModifyMonitoredItemsResponse, ua.StatusCode) {
	sess, status := e.sessionFor(authToken)
	if !status.IsGood() {
		return ua.ModifyMonitoredItemsResponse{}, status
	}
	sub, ok := sess.Subscription(req.SubscriptionID)
	if !ok {
		results := make([]ua.MonitoredItemModifyResult, len(req.ItemsToModify))
		for i := range results {
			results[i] = ua.MonitoredItemModifyResult{Status: ua.StatusBadSubscriptionIDInvalid}
		}
		return ua.ModifyMonitoredItemsResponse{Results: results}, ua.StatusGood
	}
	return ua.ModifyMonitoredItemsResponse{Results: sub.ModifyMonitoredItems(req.ItemsToModify)}, ua.StatusGood
}

// DeleteMonitoredItems dispatches to the named session's subscription.
func (e *Endpoint) DeleteMonitoredItems(authToken string, req ua.DeleteMonitoredItemsRequest) (ua.DeleteMonitoredItemsResponse, ua.StatusCode) {
	sess, status := e.sessionFor(authToken)
	if !status.IsGood() {
		return ua.DeleteMonitoredItemsResponse{}, status
	}
	sub, ok := sess.Subscription(req.SubscriptionID)
	if !ok {
		results := make([]ua.StatusCode, len(req.MonitoredItemIDs))
		for i := range results {
			results[i] = ua.StatusBadSubscriptionIDInvalid
		}
		return ua.DeleteMonitoredItemsResponse{Results: results}, ua.StatusGood
	}
	return ua.DeleteMonitoredItemsResponse{Results: sub.DeleteMonitoredItems(req.MonitoredItemIDs)}, ua.StatusGood
}

// Publish dispatches a Publish request to the named session.
func (e *Endpoint) Publish(authToken string, req ua.PublishRequest, timeoutHint time.Duration, done func(ua.PublishResponse)) {
	sess, status := e.sessionFor(authToken)
	if !status.IsGood() {
		done(ua.PublishResponse{Header: ua.ResponseHeader{ServiceResult: status}})
		return
	}
	sess.Publish(req, timeoutHint, done)
}

// DeleteSubscriptions dispatches to the named session.
func (e *Endpoint) DeleteSubscriptions(authToken string, req ua.DeleteSubscriptionsRequest) (ua.DeleteSubscriptionsResponse, ua.StatusCode) {
	sess, status := e.sessionFor(authToken)
	if !status.IsGood() {
		return ua.DeleteSubscriptionsResponse{}, status
	}
	return ua.DeleteSubscriptionsResponse{Results: sess.DeleteSubscriptions(req.SubscriptionIDs)}, ua.StatusGood
}

// Stats snapshots every active session's subscription stats, keyed by
// auth token then subscription id, for a diagnostics log/endpoint.
func (e *Endpoint) Stats() map[string]map[uint32]subscription.Stats {
	e.mu.RLock()
	sessions := make([]*session.Session, 0, len(e.sessions))
	for _, sess := range e.sessions {
		sessions = append(sessions, sess)
	}
	e.mu.RUnlock()

	out := make(map[string]map[uint32]subscription.Stats, len(sessions))
	for _, sess := range sessions {
		out[sess.AuthToken()] = sess.Stats()
	}
	return out
}

// CloseSession closes and removes the named session.
func (e *Endpoint) CloseSession(authToken string) ua.StatusCode {
	e.mu.Lock()
	sess, ok := e.sessions[authToken]
	if ok {
		delete(e.sessions, authToken)
	}
	e.mu.Unlock()
	if !ok {
		return ua.StatusBadSessionIDInvalid
	}
	sess.Close()
	return ua.StatusGood
}
