package ua

import (
	"fmt"
)

// IDKind tags the four identifier encodings defined by the standard.
type IDKind uint8

const (
	IDNumeric IDKind = iota
	IDString
	IDGUID
	IDOpaque
)

// GUID is a 128-bit globally unique identifier, stored in the canonical
// OPC UA field order (not byte-for-byte RFC 4122, though the bits are the
// same): Data1 (u32), Data2 (u16), Data3 (u16), Data4 ([8]byte).
type GUID [16]byte

func (g GUID) String() string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", g[0:4], g[4:6], g[6:8], g[8:10], g[10:16])
}

// NodeID is a tagged variant identifying any object in the information
// model: Numeric(u32), String(s), GUID(128-bit) or Opaque(bytes), paired
// with a namespace index. Equality and ordering are defined
// lexicographically over (namespace, kind, value).
type NodeID struct {
	Namespace uint16
	Kind      IDKind
	Numeric   uint32
	Str       string
	GUID      GUID
	Opaque    []byte

	// notNull distinguishes a constructed ns=0;i=0 from the zero-value
	// NodeID{}, which is the distinguished null node id.
	notNull bool
}

// IsNull reports whether id is the distinguished null node id. The OPC UA
// null node id is namespace 0, numeric, value 0 — but unlike an
// application-assigned ns=0;i=0, it was never built through a
// constructor, so it carries no notNull flag and never collides with a
// legitimately addressed node.
func (id NodeID) IsNull() bool {
	return id.Namespace == 0 && id.Kind == IDNumeric && id.Numeric == 0 && !id.notNull
}

// NewNumericNodeID builds a numeric node id.
func NewNumericNodeID(ns uint16, v uint32) NodeID {
	return NodeID{Namespace: ns, Kind: IDNumeric, Numeric: v, notNull: true}
}

// NewStringNodeID builds a string node id.
func NewStringNodeID(ns uint16, v string) NodeID {
	return NodeID{Namespace: ns, Kind: IDString, Str: v, notNull: true}
}

// NewGUIDNodeID builds a GUID node id.
func NewGUIDNodeID(ns uint16, v GUID) NodeID {
	return NodeID{Namespace: ns, Kind: IDGUID, GUID: v, notNull: true}
}

// NewOpaqueNodeID builds an opaque (byte string) node id.
func NewOpaqueNodeID(ns uint16, v []byte) NodeID {
	return NodeID{Namespace: ns, Kind: IDOpaque, Opaque: append([]byte(nil), v...), notNull: true}
}

// Equal reports structural equality.
func (id NodeID) Equal(other NodeID) bool {
	return Compare(id, other) == 0
}

// Compare defines the total order over (namespace, kind tag, value).
func Compare(a, b NodeID) int {
	if a.Namespace != b.Namespace {
		if a.Namespace < b.Namespace {
			return -1
		}
		return 1
	}
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	switch a.Kind {
	case IDNumeric:
		switch {
		case a.Numeric < b.Numeric:
			return -1
		case a.Numeric > b.Numeric:
			return 1
		default:
			return 0
		}
	case IDString:
		switch {
		case a.Str < b.Str:
			return -1
		case a.Str > b.Str:
			return 1
		default:
			return 0
		}
	case IDGUID:
		for i := range a.GUID {
			if a.GUID[i] != b.GUID[i] {
				if a.GUID[i] < b.GUID[i] {
					return -1
				}
				return 1
			}
		}
		return 0
	default: // IDOpaque
		n := len(a.Opaque)
		if len(b.Opaque) < n {
			n = len(b.Opaque)
		}
		for i := 0; i < n; i++ {
			if a.Opaque[i] != b.Opaque[i] {
				if a.Opaque[i] < b.Opaque[i] {
					return -1
				}
				return 1
			}
		}
		if len(a.Opaque) != len(b.Opaque) {
			if len(a.Opaque) < len(b.Opaque) {
				return -1
			}
			return 1
		}
		return 0
	}
}

func (id NodeID) String() string {
	switch id.Kind {
	case IDNumeric:
		return fmt.Sprintf("ns=%d;i=%d", id.Namespace, id.Numeric)
	case IDString:
		return fmt.Sprintf("ns=%d;s=%s", id.Namespace, id.Str)
	case IDGUID:
		return fmt.Sprintf("ns=%d;g=%s", id.Namespace, id.GUID)
	default:
		return fmt.Sprintf("ns=%d;b=%x", id.Namespace, id.Opaque)
	}
}

// ExpandedNodeID adds an optional namespace URI / server index to a
// NodeID, used to identify extension-object type ids across servers.
type ExpandedNodeID struct {
	NodeID       NodeID
	NamespaceURI string
	ServerIndex  uint32
}
