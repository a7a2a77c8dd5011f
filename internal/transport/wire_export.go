package transport

import "github.com/nexus-edge/opcua-runtime/internal/ua"

// The exported Encode*/Decode* wrappers below give a tool that speaks
// the envelope framing directly (cmd/loadtest, dialling with
// gorilla/websocket instead of going through Channel) access to the
// same request/response codecs Client uses, without exposing every
// unexported helper in wire.go.

func EncodeCreateSessionRequest(req ua.CreateSessionRequest) []byte { return encodeCreateSessionRequest(req) }

func DecodeCreateSessionResponse(body []byte, types *ua.TypeRegistry) (ua.CreateSessionResponse, error) {
	return decodeCreateSessionResponse(body, types)
}

func EncodeCreateSubscriptionRequest(req ua.CreateSubscriptionRequest) []byte {
	return encodeCreateSubscriptionRequest(req)
}

func DecodeCreateSubscriptionResponse(body []byte, types *ua.TypeRegistry) (ua.CreateSubscriptionResponse, error) {
	return decodeCreateSubscriptionResponse(body, types)
}

func EncodeCreateMonitoredItemsRequest(req ua.CreateMonitoredItemsRequest) []byte {
	return encodeCreateMonitoredItemsRequest(req)
}

func DecodeCreateMonitoredItemsResponse(body []byte, types *ua.TypeRegistry) (ua.CreateMonitoredItemsResponse, error) {
	return decodeCreateMonitoredItemsResponse(body, types)
}

func EncodePublishRequest(req ua.PublishRequest) ([]byte, error) { return encodePublishRequest(req) }

func DecodePublishResponse(body []byte, types *ua.TypeRegistry) (ua.PublishResponse, error) {
	return decodePublishResponse(body, types)
}

func DecodeServiceFault(body []byte, types *ua.TypeRegistry) (ua.ServiceFault, error) {
	return decodeServiceFault(body, types)
}
