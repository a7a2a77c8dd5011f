// Package transport implements the client-facing channel: a
// WebSocket-framed, binary-encoded request/response multiplexer with a
// connection status stream, per §4.2.
package transport

import (
	"bytes"
	"errors"
)

// ServiceID tags an Envelope's body so the reader knows which request
// or response type to decode it as.
type ServiceID uint16

const (
	ServiceCreateSession ServiceID = iota + 1
	ServiceGetEndpoints
	ServiceCreateSubscription
	ServiceModifySubscription
	ServiceSetPublishingMode
	ServiceCreateMonitoredItems
	ServiceModifyMonitoredItems
	ServiceDeleteMonitoredItems
	ServiceDeleteSubscriptions
	ServicePublish
	ServiceCloseSession
	// ServiceFault marks a response body as a ServiceFault rather than
	// the response type its request's ServiceID would normally pair
	// with — see Client.call's fault handling.
	ServiceFault
)

// Envelope is one frame's worth of request or response: a correlation
// id, the authenticated session this request is for (empty on
// CreateSession, where none exists yet), the service it belongs to,
// and the already wire-encoded body. AuthToken rides in the envelope
// header rather than inside each request body since every service
// except CreateSession needs it and the body codecs in wire.go
// otherwise mirror the standard's per-service request shape exactly.
type Envelope struct {
	RequestID uint32
	AuthToken string
	Service   ServiceID
	Body      []byte
}

var errShortEnvelope = errors.New("opcua: short envelope frame")

// EncodeEnvelope and DecodeEnvelope expose the frame codec to tools
// outside this package (e.g. cmd/loadtest, which drives a raw
// gorilla/websocket connection rather than going through Channel) that
// need to speak the same wire framing without depending on gobwas/ws.
func EncodeEnvelope(env Envelope) []byte           { return encodeEnvelope(env) }
func DecodeEnvelope(frame []byte) (Envelope, error) { return decodeEnvelope(frame) }

// encodeEnvelope writes RequestID (uint32 LE), AuthToken (length-
// prefixed), Service (uint16 LE) and Body verbatim.
func encodeEnvelope(env Envelope) []byte {
	var buf bytes.Buffer
	var idBuf [4]byte
	putUint32(idBuf[:], env.RequestID)
	buf.Write(idBuf[:])

	var tokLen [2]byte
	putUint16(tokLen[:], uint16(len(env.AuthToken)))
	buf.Write(tokLen[:])
	buf.WriteString(env.AuthToken)

	var svcBuf [2]byte
	putUint16(svcBuf[:], uint16(env.Service))
	buf.Write(svcBuf[:])

	buf.Write(env.Body)
	return buf.Bytes()
}

func decodeEnvelope(frame []byte) (Envelope, error) {
	if len(frame) < 8 {
		return Envelope{}, errShortEnvelope
	}
	requestID := getUint32(frame[0:4])
	tokLen := int(getUint16(frame[4:6]))
	if len(frame) < 6+tokLen+2 {
		return Envelope{}, errShortEnvelope
	}
	token := string(frame[6 : 6+tokLen])
	rest := frame[6+tokLen:]
	svc := ServiceID(getUint16(rest[0:2]))
	return Envelope{
		RequestID: requestID,
		AuthToken: token,
		Service:   svc,
		Body:      rest[2:],
	}, nil
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putUint16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func getUint16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}
