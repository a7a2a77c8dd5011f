package ua

import "fmt"

// Encodable is implemented by the concrete notification and filter
// types that can appear as the decoded body of an ExtensionObject:
// DataChangeNotification, EventNotificationList, StatusChangeNotification
// and friends.
type Encodable interface {
	TypeID() NodeID
	Encode(enc *Encoder) error
	Decode(dec *Decoder) error
}

// TypeRegistry maps a binary type id to a factory for its Go
// representation, letting the decoder eagerly produce a concrete
// Encodable instead of leaving the extension object's body as raw
// bytes. Callers that don't need eager decoding (most tests, and any
// path that only forwards notifications opaquely) can pass a nil
// registry.
type TypeRegistry struct {
	factories map[string]func() Encodable
}

// NewTypeRegistry returns an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{factories: make(map[string]func() Encodable)}
}

// Register associates a binary type id with a constructor for its body
// type. Registering the same id twice overwrites the previous factory.
func (r *TypeRegistry) Register(id NodeID, factory func() Encodable) {
	r.factories[id.String()] = factory
}

// Lookup returns the factory registered for id, if any.
func (r *TypeRegistry) Lookup(id NodeID) (func() Encodable, bool) {
	if r == nil {
		return nil, false
	}
	f, ok := r.factories[id.String()]
	return f, ok
}

// ExtensionObjectEncoding tags which of the three body forms an
// ExtensionObject currently carries.
type ExtensionObjectEncoding byte

const (
	// ExtensionObjectEncodingNone marks an extension object with no body.
	ExtensionObjectEncodingNone ExtensionObjectEncoding = iota
	// ExtensionObjectEncodingBinary marks a binary-encoded body, either
	// a raw byte blob (Body set, Value nil — lazy) or a decoded value
	// not yet re-serialized (Value set).
	ExtensionObjectEncodingBinary
	// ExtensionObjectEncodingXML marks an XML body. The codec does not
	// implement XML and rejects it on decode.
	ExtensionObjectEncodingXML
)

// ExtensionObject carries either a binary body (bytes plus a type id,
// for lazy decode), an already-decoded encodable body (Value, a typed
// Go value), or no body at all. Per §4.1, copying an extension object
// with a decoded body round-trips it through the codec rather than
// aliasing the pointer, so mutations to a copy never reach the
// original and a malformed body surfaces as an error at copy time
// rather than as silent aliasing.
type ExtensionObject struct {
	TypeID   ExpandedNodeID
	Encoding ExtensionObjectEncoding
	Body     []byte
	Value    Encodable
}

// NewExtensionObject wraps a decoded value for transmission.
func NewExtensionObject(v Encodable) ExtensionObject {
	return ExtensionObject{
		TypeID:   ExpandedNodeID{NodeID: v.TypeID()},
		Encoding: ExtensionObjectEncodingBinary,
		Value:    v,
	}
}

// IsNone reports whether the extension object carries no body.
func (e ExtensionObject) IsNone() bool {
	return e.Encoding == ExtensionObjectEncodingNone && e.Value == nil && e.Body == nil
}

// DeepCopy returns an independent copy. When Value is set, the copy is
// produced by encoding the value and decoding it back into a fresh
// instance obtained from types — this is the round-trip described in
// §4.1. Failure during that round-trip (an unregistered type id, or a
// codec bug) is a caller bug, not a wire condition, so it is returned as
// an error for the caller to fold into a Bad status rather than panic.
func (e ExtensionObject) DeepCopy(types *TypeRegistry) (ExtensionObject, error) {
	if e.IsNone() {
		return ExtensionObject{}, nil
	}
	if e.Value == nil {
		return ExtensionObject{
			TypeID:   e.TypeID,
			Encoding: e.Encoding,
			Body:     append([]byte(nil), e.Body...),
		}, nil
	}

	enc := NewEncoder()
	if err := e.Value.Encode(enc); err != nil {
		return ExtensionObject{}, fmt.Errorf("ua: deep copy extension object %s: encode: %w", e.TypeID.NodeID, err)
	}

	factory, ok := types.Lookup(e.TypeID.NodeID)
	if !ok {
		return ExtensionObject{}, fmt.Errorf("ua: deep copy extension object %s: no factory registered", e.TypeID.NodeID)
	}
	fresh := factory()
	dec := NewDecoder(enc.Bytes(), types)
	if err := fresh.Decode(dec); err != nil {
		return ExtensionObject{}, fmt.Errorf("ua: deep copy extension object %s: decode: %w", e.TypeID.NodeID, err)
	}

	return ExtensionObject{
		TypeID:   e.TypeID,
		Encoding: ExtensionObjectEncodingBinary,
		Value:    fresh,
	}, nil
}

// Equal reports structural equality. Two extension objects with decoded
// values are compared by re-encoding both and comparing bytes, since
// Encodable implementations are not required to implement their own
// equality.
func (e ExtensionObject) Equal(o ExtensionObject) bool {
	if e.IsNone() || o.IsNone() {
		return e.IsNone() == o.IsNone()
	}
	if !e.TypeID.NodeID.Equal(o.TypeID.NodeID) {
		return false
	}

	eb, err := e.encodedBody()
	if err != nil {
		return false
	}
	ob, err := o.encodedBody()
	if err != nil {
		return false
	}
	return string(eb) == string(ob)
}

func (e ExtensionObject) encodedBody() ([]byte, error) {
	if e.Value == nil {
		return e.Body, nil
	}
	enc := NewEncoder()
	if err := e.Value.Encode(enc); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}
