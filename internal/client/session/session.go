// Package session implements the client-side single-flight Publish
// loop: at most one Publish request outstanding at a time, with
// pending/sent acknowledgement splicing on success and failure.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nexus-edge/opcua-runtime/internal/metrics"
	"github.com/nexus-edge/opcua-runtime/internal/ua"
)

// ErrSessionClosed is returned by Run once the session has been closed.
var ErrSessionClosed = errors.New("opcua: client session closed")

// Transport is the minimal surface the client session needs from the
// transport channel: an async, cancellable Publish call.
type Transport interface {
	Publish(ctx context.Context, req ua.PublishRequest) (ua.PublishResponse, error)
}

// NotificationHandler receives the raw notification message for one
// subscription id. Decoding NotificationData into concrete
// DataChange/EventNotification/StatusChange payloads and routing by
// client handle is the subscription reconciler's job, not the
// session's — see internal/client/subscription.HandleNotification.
type NotificationHandler func(ua.NotificationMessage)

// Session drives the Publish loop against one server connection.
type Session struct {
	transport Transport
	types     *ua.TypeRegistry

	mu          sync.Mutex
	closed      bool
	publishing  bool
	pendingAcks []ua.SubscriptionAcknowledgement
	sentAcks    []ua.SubscriptionAcknowledgement
	handlers    map[uint32]NotificationHandler
}

// New constructs a client Session over transport.
func New(transport Transport, types *ua.TypeRegistry) *Session {
	return &Session{
		transport: transport,
		types:     types,
		handlers:  make(map[uint32]NotificationHandler),
	}
}

// RegisterHandler associates subscriptionID with h; notifications for
// that subscription are routed to h until UnregisterHandler is called.
func (s *Session) RegisterHandler(subscriptionID uint32, h NotificationHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[subscriptionID] = h
}

// UnregisterHandler removes the handler for subscriptionID.
func (s *Session) UnregisterHandler(subscriptionID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, subscriptionID)
}

// QueueAck appends an acknowledgement to be sent on the next Publish.
func (s *Session) QueueAck(ack ua.SubscriptionAcknowledgement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingAcks = append(s.pendingAcks, ack)
}

// IsPublishing reports whether a Publish call is currently outstanding.
func (s *Session) IsPublishing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publishing
}

// Run drives the single-flight Publish loop until ctx is cancelled or
// the session is closed. Each iteration blocks for exactly one Publish
// round-trip before re-entering, so at most one Publish request is ever
// outstanding, per §4.6.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := s.publishOnce(ctx); err != nil {
			return err
		}
	}
}

func (s *Session) publishOnce(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	acks := s.pendingAcks
	s.pendingAcks = nil
	s.sentAcks = acks
	s.publishing = true
	s.mu.Unlock()

	start := time.Now()
	resp, err := s.transport.Publish(ctx, ua.PublishRequest{SubscriptionAcknowledgements: acks})
	metrics.ClientPublishLatency.Observe(time.Since(start).Seconds())

	s.mu.Lock()
	s.publishing = false

	if err != nil || !resp.Header.ServiceResult.IsGood() {
		// Service failed (transport error, or the dispatcher reports
		// BadTimeout/BadNoSubscription): every ack we just sent is
		// unconfirmed, so it goes back to the head of pending_acks for
		// the next round.
		s.pendingAcks = append(append([]ua.SubscriptionAcknowledgement{}, s.sentAcks...), s.pendingAcks...)
		s.sentAcks = nil
		s.mu.Unlock()
		if err != nil {
			return fmt.Errorf("publish transport error: %w", err)
		}
		return fmt.Errorf("publish service result: %v", resp.Header.ServiceResult)
	}

	// Service succeeded: any ack whose per-ack result wasn't Good retries
	// at the head of pending_acks; the rest are discarded, and the new
	// message's ack is appended for the next round.
	var retry []ua.SubscriptionAcknowledgement
	for i, ack := range s.sentAcks {
		if i < len(resp.Results) && resp.Results[i] != ua.StatusGood {
			retry = append(retry, ack)
		}
	}
	s.sentAcks = nil
	s.pendingAcks = append(retry, s.pendingAcks...)
	s.pendingAcks = append(s.pendingAcks, ua.SubscriptionAcknowledgement{
		SubscriptionID: resp.SubscriptionID,
		SequenceNumber: resp.NotificationMessage.SequenceNumber,
	})

	handler := s.handlers[resp.SubscriptionID]
	s.mu.Unlock()

	if handler != nil {
		handler(resp.NotificationMessage)
	}
	return nil
}

// Close marks the session closed; the next Run iteration (or one
// already blocked in a Publish call, once it returns) observes the
// closed state and returns ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
