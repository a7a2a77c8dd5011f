// Package session implements the server-side publish dispatcher: a
// per-session queue of pending Publish requests fanned out across the
// session's subscriptions, with a 1Hz timeout sweep.
package session

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nexus-edge/opcua-runtime/internal/metrics"
	"github.com/nexus-edge/opcua-runtime/internal/server/subscription"
	"github.com/nexus-edge/opcua-runtime/internal/ua"
)

// publishRateLimit/publishRateBurst bound how often one session may
// enqueue a Publish request, independent of how many it has
// outstanding — a client resending Publish in a tight loop (e.g. after
// misinterpreting a timeout) must not be able to grow the FIFO
// unbounded. Adapted from the teacher's per-client token bucket, using
// golang.org/x/time/rate instead of a hand-rolled bucket.
const (
	publishRateLimit = rate.Limit(50) // requests per second
	publishRateBurst = 100
)

// pendingPublish is one entry in the session's Publish FIFO.
type pendingPublish struct {
	start       time.Time
	timeoutHint time.Duration
	ackResults  []ua.StatusCode
	done        func(ua.PublishResponse)
}

// AuditFunc receives every NotificationMessage handed to a client, for
// an optional off-hot-path audit sink (see internal/server/egress). It
// is called after head.done(resp), never under the session lock.
type AuditFunc func(authToken string, subscriptionID uint32, msg ua.NotificationMessage)

// Session is the server-side publish dispatcher for one authenticated
// client association. All exported methods are safe for concurrent use.
type Session struct {
	id        ua.NodeID
	authToken string
	audit     AuditFunc

	mu      sync.Mutex
	closed  bool
	subs    map[uint32]*subscription.Subscription
	fifo    []*pendingPublish
	limiter *rate.Limiter

	stopTimeoutSweep chan struct{}
}

// New constructs a Session and starts its 1Hz timeout sweep. audit may
// be nil to disable notification auditing.
func New(id ua.NodeID, authToken string, audit AuditFunc) *Session {
	s := &Session{
		id:               id,
		authToken:        authToken,
		audit:            audit,
		subs:             make(map[uint32]*subscription.Subscription),
		limiter:          rate.NewLimiter(publishRateLimit, publishRateBurst),
		stopTimeoutSweep: make(chan struct{}),
	}
	metrics.SessionsActive.Inc()
	go s.runTimeoutSweep()
	return s
}

// ID returns the session's node id.
func (s *Session) ID() ua.NodeID { return s.id }

// AuthToken returns the session's opaque auth token.
func (s *Session) AuthToken() string { return s.authToken }

// AddSubscription registers sub with this session, wiring its publish-
// ready and close callbacks back into the dispatcher.
func (s *Session) AddSubscription(sub *subscription.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		sub.Close()
		return
	}
	s.subs[sub.ID()] = sub
}

// Subscription returns the subscription registered under id, if any.
func (s *Session) Subscription(id uint32) (*subscription.Subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	return sub, ok
}

// Stats snapshots every subscription this session owns, keyed by
// subscription id, for a diagnostics endpoint to expose.
func (s *Session) Stats() map[uint32]subscription.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint32]subscription.Stats, len(s.subs))
	for id, sub := range s.subs {
		out[id] = sub.Stats()
	}
	return out
}

// OnSubscriptionReady is the subscription.PublishHandler wired in by the
// endpoint when it creates a subscription for this session.
func (s *Session) OnSubscriptionReady(subscriptionID uint32) {
	s.runPublishLoop()
}

// OnSubscriptionClosed is the subscription.CloseHandler wired in by the
// endpoint: it removes the subscription from the map and runs the
// publish loop once more so any head-of-line request waiting solely on
// this subscription can observe other subscriptions instead.
func (s *Session) OnSubscriptionClosed(subscriptionID uint32, reason ua.StatusCode) {
	s.mu.Lock()
	delete(s.subs, subscriptionID)
	s.mu.Unlock()
	s.runPublishLoop()
}

// DeleteSubscriptions removes and closes the named subscriptions,
// returning a per-id status.
func (s *Session) DeleteSubscriptions(ids []uint32) []ua.StatusCode {
	results := make([]ua.StatusCode, len(ids))

	s.mu.Lock()
	var toClose []*subscription.Subscription
	for i, id := range ids {
		sub, ok := s.subs[id]
		if !ok {
			results[i] = ua.StatusBadSubscriptionIDInvalid
			continue
		}
		delete(s.subs, id)
		toClose = append(toClose, sub)
		results[i] = ua.StatusGood
	}
	s.mu.Unlock()

	for _, sub := range toClose {
		sub.Close()
	}
	return results
}

// Publish processes the request's acknowledgements against the named
// subscriptions, enqueues a new FIFO entry, and runs the publish loop.
// done is invoked exactly once, off the session lock, either
// synchronously (if a subscription already had data queued) or later
// from a subsequent publishing tick / acknowledgement / timeout sweep.
func (s *Session) Publish(req ua.PublishRequest, timeoutHint time.Duration, done func(ua.PublishResponse)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		done(ua.PublishResponse{Header: ua.ResponseHeader{ServiceResult: ua.StatusBadNoSubscription}})
		return
	}
	if !s.limiter.Allow() {
		s.mu.Unlock()
		done(ua.PublishResponse{Header: ua.ResponseHeader{ServiceResult: ua.StatusBadTooManyOperations}})
		return
	}

	ackResults := make([]ua.StatusCode, len(req.SubscriptionAcknowledgements))
	for i, ack := range req.SubscriptionAcknowledgements {
		sub, ok := s.subs[ack.SubscriptionID]
		if !ok {
			ackResults[i] = ua.StatusBadSubscriptionIDInvalid
			continue
		}
		if sub.Acknowledge(ack.SequenceNumber) {
			ackResults[i] = ua.StatusGood
		} else {
			ackResults[i] = ua.StatusBadSequenceNumberUnknown
		}
	}

	s.fifo = append(s.fifo, &pendingPublish{
		start:       time.Now(),
		timeoutHint: timeoutHint,
		ackResults:  ackResults,
		done:        done,
	})
	metrics.PendingPublishRequests.Set(float64(len(s.fifo)))
	s.mu.Unlock()

	s.runPublishLoop()
}

// runPublishLoop implements §4.4's publish loop: while the FIFO head
// exists, try every subscription in numeric-id order until one produces
// a message; pop and complete the head on success, stop on failure.
func (s *Session) runPublishLoop() {
	for {
		s.mu.Lock()
		if s.closed || len(s.fifo) == 0 {
			s.mu.Unlock()
			return
		}
		head := s.fifo[0]

		ids := make([]int, 0, len(s.subs))
		for id := range s.subs {
			ids = append(ids, int(id))
		}
		sort.Ints(ids)

		var resp ua.PublishResponse
		resp.Results = head.ackResults
		produced := false
		for _, id := range ids {
			sub := s.subs[uint32(id)]
			if sub.Publish(&resp) {
				produced = true
				break
			}
		}
		if !produced {
			s.mu.Unlock()
			return
		}

		s.fifo = s.fifo[1:]
		metrics.PendingPublishRequests.Set(float64(len(s.fifo)))
		s.mu.Unlock()

		head.done(resp)
		if s.audit != nil && len(resp.NotificationMessage.NotificationData) > 0 {
			s.audit(s.authToken, resp.SubscriptionID, resp.NotificationMessage)
		}
	}
}

func (s *Session) runTimeoutSweep() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweepTimeouts()
		case <-s.stopTimeoutSweep:
			return
		}
	}
}

// sweepTimeouts removes FIFO entries older than their timeout hint,
// tail-to-head so the remaining slice stays in arrival order, and
// completes each with BadTimeout outside the lock.
func (s *Session) sweepTimeouts() {
	now := time.Now()

	s.mu.Lock()
	var expired []*pendingPublish
	kept := s.fifo[:0:0]
	for i := len(s.fifo) - 1; i >= 0; i-- {
		entry := s.fifo[i]
		if entry.timeoutHint > 0 && now.Sub(entry.start) > entry.timeoutHint {
			expired = append(expired, entry)
		} else {
			kept = append(kept, entry)
		}
	}
	// kept was built tail-to-head; reverse it back to arrival order.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	s.fifo = kept
	metrics.PendingPublishRequests.Set(float64(len(s.fifo)))
	s.mu.Unlock()

	if len(expired) > 0 {
		metrics.PublishTimeouts.Add(float64(len(expired)))
	}
	for _, entry := range expired {
		entry.done(ua.PublishResponse{Header: ua.ResponseHeader{ServiceResult: ua.StatusBadTimeout}})
	}
}

// Close drains the pending FIFO with BadNoSubscription, closes every
// subscription, and marks the session closed. Subsequent Publish calls
// observe the closed state and fail immediately.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.stopTimeoutSweep)

	pending := s.fifo
	s.fifo = nil
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	metrics.SessionsActive.Dec()

	for _, entry := range pending {
		entry.done(ua.PublishResponse{Header: ua.ResponseHeader{ServiceResult: ua.StatusBadNoSubscription}})
	}
	for _, sub := range subs {
		sub.Close()
	}
}
