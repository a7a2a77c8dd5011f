package transport

import (
	"context"
	"time"

	"github.com/nexus-edge/opcua-runtime/internal/server/endpoint"
	"github.com/nexus-edge/opcua-runtime/internal/ua"
)

// publishTimeoutHint bounds how long a Publish call is allowed to sit
// in the session's FIFO before the dispatch goroutine's own context
// deadline would fire anyway; it mirrors the listener's 2-minute
// per-request timeout with headroom for the response to be written.
const publishTimeoutHint = 110 * time.Second

// NewEndpointHandler adapts an *endpoint.Endpoint into a
// transport.RequestHandler, decoding each envelope body with the
// wire.go codecs, dispatching to the matching Endpoint method, and
// re-encoding the result. Any error surfaced by the endpoint (session
// not found, subscription not found, transport-level decode failure)
// becomes a ServiceFault rather than a synchronous error return, per
// §4.2's fault substitution rule.
func NewEndpointHandler(ep *endpoint.Endpoint, types *ua.TypeRegistry) RequestHandler {
	return func(ctx context.Context, authToken string, svc ServiceID, body []byte) (ServiceID, []byte, *ua.StatusCode) {
		switch svc {
		case ServiceGetEndpoints:
			req, err := decodeGetEndpointsRequest(body, types)
			if err != nil {
				return faultDecode()
			}
			resp := ep.GetEndpoints(req)
			return ServiceGetEndpoints, encodeGetEndpointsResponse(resp), nil

		case ServiceCreateSession:
			req, err := decodeCreateSessionRequest(body, types)
			if err != nil {
				return faultDecode()
			}
			resp, err := ep.CreateSession(req)
			if err != nil {
				status := resp.Header.ServiceResult
				return ServiceFault, nil, &status
			}
			return ServiceCreateSession, encodeCreateSessionResponse(resp), nil

		case ServiceCreateSubscription:
			req, err := decodeCreateSubscriptionRequest(body, types)
			if err != nil {
				return faultDecode()
			}
			resp, status := ep.CreateSubscriptionAuto(authToken, req)
			if !status.IsGood() {
				return ServiceFault, nil, &status
			}
			return ServiceCreateSubscription, encodeCreateSubscriptionResponse(resp), nil

		case ServiceModifySubscription:
			req, err := decodeModifySubscriptionRequest(body, types)
			if err != nil {
				return faultDecode()
			}
			resp, status := ep.ModifySubscription(authToken, req)
			if !status.IsGood() {
				return ServiceFault, nil, &status
			}
			return ServiceModifySubscription, encodeModifySubscriptionResponse(resp), nil

		case ServiceSetPublishingMode:
			req, err := decodeSetPublishingModeRequest(body, types)
			if err != nil {
				return faultDecode()
			}
			resp, status := ep.SetPublishingMode(authToken, req)
			if !status.IsGood() {
				return ServiceFault, nil, &status
			}
			return ServiceSetPublishingMode, encodeSetPublishingModeResponse(resp), nil

		case ServiceCreateMonitoredItems:
			req, err := decodeCreateMonitoredItemsRequest(body, types)
			if err != nil {
				return faultDecode()
			}
			resp, status := ep.CreateMonitoredItems(authToken, req)
			if !status.IsGood() {
				return ServiceFault, nil, &status
			}
			return ServiceCreateMonitoredItems, encodeCreateMonitoredItemsResponse(resp), nil

		case ServiceModifyMonitoredItems:
			req, err := decodeModifyMonitoredItemsRequest(body, types)
			if err != nil {
				return faultDecode()
			}
			resp, status := ep.ModifyMonitoredItems(authToken, req)
			if !status.IsGood() {
				return ServiceFault, nil, &status
			}
			return ServiceModifyMonitoredItems, encodeModifyMonitoredItemsResponse(resp), nil

		case ServiceDeleteMonitoredItems:
			req, err := decodeDeleteMonitoredItemsRequest(body, types)
			if err != nil {
				return faultDecode()
			}
			resp, status := ep.DeleteMonitoredItems(authToken, req)
			if !status.IsGood() {
				return ServiceFault, nil, &status
			}
			return ServiceDeleteMonitoredItems, encodeDeleteMonitoredItemsResponse(resp), nil

		case ServiceDeleteSubscriptions:
			req, err := decodeDeleteSubscriptionsRequest(body, types)
			if err != nil {
				return faultDecode()
			}
			resp, status := ep.DeleteSubscriptions(authToken, req)
			if !status.IsGood() {
				return ServiceFault, nil, &status
			}
			return ServiceDeleteSubscriptions, encodeDeleteSubscriptionsResponse(resp), nil

		case ServicePublish:
			req, err := decodePublishRequest(body, types)
			if err != nil {
				return faultDecode()
			}
			result := make(chan ua.PublishResponse, 1)
			ep.Publish(authToken, req, publishTimeoutHint, func(r ua.PublishResponse) {
				result <- r
			})
			select {
			case resp := <-result:
				respBody, err := encodePublishResponse(resp)
				if err != nil {
					return faultDecode()
				}
				return ServicePublish, respBody, nil
			case <-ctx.Done():
				status := ua.StatusBadTimeout
				return ServiceFault, nil, &status
			}

		case ServiceCloseSession:
			if _, err := decodeCloseSessionRequest(body, types); err != nil {
				return faultDecode()
			}
			status := ep.CloseSession(authToken)
			if !status.IsGood() {
				return ServiceFault, nil, &status
			}
			return ServiceCloseSession, encodeCloseSessionResponse(ua.CloseSessionResponse{Header: ua.ResponseHeader{ServiceResult: ua.StatusGood}}), nil

		default:
			status := ua.StatusBadNotSupported
			return ServiceFault, nil, &status
		}
	}
}

func faultDecode() (ServiceID, []byte, *ua.StatusCode) {
	status := ua.StatusBadDecodingError
	return ServiceFault, nil, &status
}
