package transport

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/nexus-edge/opcua-runtime/internal/ua"
)

// Client issues typed service calls over a Channel, encoding requests
// and decoding responses with the wire helpers in wire.go. It
// implements the service-caller interfaces expected by
// internal/client/session and internal/client/subscription.
type Client struct {
	channel *Channel
	types   *ua.TypeRegistry

	authToken atomic.Value // string
}

// NewClient wraps an already-dialled Channel.
func NewClient(channel *Channel, types *ua.TypeRegistry) *Client {
	c := &Client{channel: channel, types: types}
	c.authToken.Store("")
	return c
}

// CreateSession mints a session on the server and remembers its auth
// token for every subsequent call this Client makes.
func (c *Client) CreateSession(ctx context.Context, req ua.CreateSessionRequest) (ua.CreateSessionResponse, error) {
	resp, fault, err := c.call(ctx, "", ServiceCreateSession, encodeCreateSessionRequest(req))
	if err != nil {
		return ua.CreateSessionResponse{}, err
	}
	if !fault.IsGood() {
		return ua.CreateSessionResponse{}, fmt.Errorf("CreateSession service fault: %v", fault)
	}
	out, err := decodeCreateSessionResponse(resp.Body, c.types)
	if err != nil {
		return ua.CreateSessionResponse{}, err
	}
	c.authToken.Store(out.AuthToken)
	return out, nil
}

// GetEndpoints queries the server's available endpoints. It needs no
// auth token since it precedes CreateSession in the handshake.
func (c *Client) GetEndpoints(ctx context.Context, req ua.GetEndpointsRequest) (ua.GetEndpointsResponse, error) {
	resp, fault, err := c.call(ctx, "", ServiceGetEndpoints, encodeGetEndpointsRequest(req))
	if err != nil {
		return ua.GetEndpointsResponse{}, err
	}
	if !fault.IsGood() {
		return ua.GetEndpointsResponse{}, fmt.Errorf("GetEndpoints service fault: %v", fault)
	}
	return decodeGetEndpointsResponse(resp.Body, c.types)
}

// call sends body under svc and returns the raw response envelope.
// When the server answers with a ServiceFault instead of the expected
// response type, call returns an empty envelope and the fault's
// ServiceResult as its second value. Publish places that status in the
// header of a blank PublishResponse; every other Client method returns
// it as an error with a zero-value response.
func (c *Client) call(ctx context.Context, authToken string, svc ServiceID, body []byte) (Envelope, ua.StatusCode, error) {
	resp, err := c.channel.BeginRequest(ctx, authToken, svc, body)
	if err != nil {
		return Envelope{}, ua.StatusBad, err
	}
	if resp.Service == ServiceFault {
		fault, err := decodeServiceFault(resp.Body, c.types)
		if err != nil {
			return Envelope{}, ua.StatusBad, fmt.Errorf("decode service fault: %w", err)
		}
		return Envelope{}, fault.Header.ServiceResult, nil
	}
	return resp, ua.StatusGood, nil
}

func (c *Client) token() string { return c.authToken.Load().(string) }

// CreateSubscription issues a CreateSubscription call.
func (c *Client) CreateSubscription(ctx context.Context, req ua.CreateSubscriptionRequest) (ua.CreateSubscriptionResponse, error) {
	resp, fault, err := c.call(ctx, c.token(), ServiceCreateSubscription, encodeCreateSubscriptionRequest(req))
	if err != nil {
		return ua.CreateSubscriptionResponse{}, err
	}
	if !fault.IsGood() {
		return ua.CreateSubscriptionResponse{}, fmt.Errorf("CreateSubscription service fault: %v", fault)
	}
	return decodeCreateSubscriptionResponse(resp.Body, c.types)
}

// ModifySubscription issues a ModifySubscription call.
func (c *Client) ModifySubscription(ctx context.Context, req ua.ModifySubscriptionRequest) (ua.ModifySubscriptionResponse, error) {
	resp, fault, err := c.call(ctx, c.token(), ServiceModifySubscription, encodeModifySubscriptionRequest(req))
	if err != nil {
		return ua.ModifySubscriptionResponse{}, err
	}
	if !fault.IsGood() {
		return ua.ModifySubscriptionResponse{}, fmt.Errorf("ModifySubscription service fault: %v", fault)
	}
	return decodeModifySubscriptionResponse(resp.Body, c.types)
}

// SetPublishingMode issues a SetPublishingMode call.
func (c *Client) SetPublishingMode(ctx context.Context, req ua.SetPublishingModeRequest) (ua.SetPublishingModeResponse, error) {
	resp, fault, err := c.call(ctx, c.token(), ServiceSetPublishingMode, encodeSetPublishingModeRequest(req))
	if err != nil {
		return ua.SetPublishingModeResponse{}, err
	}
	if !fault.IsGood() {
		return ua.SetPublishingModeResponse{}, fmt.Errorf("SetPublishingMode service fault: %v", fault)
	}
	return decodeSetPublishingModeResponse(resp.Body, c.types)
}

// CreateMonitoredItems issues a CreateMonitoredItems call.
func (c *Client) CreateMonitoredItems(ctx context.Context, req ua.CreateMonitoredItemsRequest) (ua.CreateMonitoredItemsResponse, error) {
	resp, fault, err := c.call(ctx, c.token(), ServiceCreateMonitoredItems, encodeCreateMonitoredItemsRequest(req))
	if err != nil {
		return ua.CreateMonitoredItemsResponse{}, err
	}
	if !fault.IsGood() {
		return ua.CreateMonitoredItemsResponse{}, fmt.Errorf("CreateMonitoredItems service fault: %v", fault)
	}
	return decodeCreateMonitoredItemsResponse(resp.Body, c.types)
}

// ModifyMonitoredItems issues a ModifyMonitoredItems call.
func (c *Client) ModifyMonitoredItems(ctx context.Context, req ua.ModifyMonitoredItemsRequest) (ua.ModifyMonitoredItemsResponse, error) {
	resp, fault, err := c.call(ctx, c.token(), ServiceModifyMonitoredItems, encodeModifyMonitoredItemsRequest(req))
	if err != nil {
		return ua.ModifyMonitoredItemsResponse{}, err
	}
	if !fault.IsGood() {
		return ua.ModifyMonitoredItemsResponse{}, fmt.Errorf("ModifyMonitoredItems service fault: %v", fault)
	}
	return decodeModifyMonitoredItemsResponse(resp.Body, c.types)
}

// DeleteMonitoredItems issues a DeleteMonitoredItems call.
func (c *Client) DeleteMonitoredItems(ctx context.Context, req ua.DeleteMonitoredItemsRequest) (ua.DeleteMonitoredItemsResponse, error) {
	resp, fault, err := c.call(ctx, c.token(), ServiceDeleteMonitoredItems, encodeDeleteMonitoredItemsRequest(req))
	if err != nil {
		return ua.DeleteMonitoredItemsResponse{}, err
	}
	if !fault.IsGood() {
		return ua.DeleteMonitoredItemsResponse{}, fmt.Errorf("DeleteMonitoredItems service fault: %v", fault)
	}
	return decodeDeleteMonitoredItemsResponse(resp.Body, c.types)
}

// Publish issues a Publish call. Unlike the other services, a
// service-level fault is reported through the response's own
// Header.ServiceResult rather than as an error, since the client
// session's single-flight loop treats a non-Good header the same way
// it treats a transport error.
func (c *Client) Publish(ctx context.Context, req ua.PublishRequest) (ua.PublishResponse, error) {
	body, err := encodePublishRequest(req)
	if err != nil {
		return ua.PublishResponse{}, err
	}
	resp, fault, err := c.call(ctx, c.token(), ServicePublish, body)
	if err != nil {
		return ua.PublishResponse{}, err
	}
	if !fault.IsGood() {
		return ua.PublishResponse{Header: ua.ResponseHeader{ServiceResult: fault}}, nil
	}
	return decodePublishResponse(resp.Body, c.types)
}

// DeleteSubscriptions tears down a batch of subscriptions.
func (c *Client) DeleteSubscriptions(ctx context.Context, req ua.DeleteSubscriptionsRequest) (ua.DeleteSubscriptionsResponse, error) {
	resp, fault, err := c.call(ctx, c.token(), ServiceDeleteSubscriptions, encodeDeleteSubscriptionsRequest(req))
	if err != nil {
		return ua.DeleteSubscriptionsResponse{}, err
	}
	if !fault.IsGood() {
		return ua.DeleteSubscriptionsResponse{}, fmt.Errorf("DeleteSubscriptions service fault: %v", fault)
	}
	return decodeDeleteSubscriptionsResponse(resp.Body, c.types)
}

// CloseSession tears down the current session.
func (c *Client) CloseSession(ctx context.Context, req ua.CloseSessionRequest) (ua.CloseSessionResponse, error) {
	resp, fault, err := c.call(ctx, c.token(), ServiceCloseSession, encodeCloseSessionRequest(req))
	if err != nil {
		return ua.CloseSessionResponse{}, err
	}
	if !fault.IsGood() {
		return ua.CloseSessionResponse{}, fmt.Errorf("CloseSession service fault: %v", fault)
	}
	return decodeCloseSessionResponse(resp.Body, c.types)
}
