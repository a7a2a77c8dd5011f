package ua

// VariantType tags the scalar payload carried by a Variant. Only the
// subset of the standard's 22 built-in types actually exercised by the
// publish engine and codec round-trip tests is modelled; any other type
// tag is rejected with an "unsupported variant type" error on encode and
// decode. The runtime never interprets monitored-item values — it only
// carries them from the application handler to the wire.
type VariantType byte

const (
	VariantTypeNull VariantType = iota
	VariantTypeBoolean
	VariantTypeInt32
	VariantTypeUint32
	VariantTypeInt64
	VariantTypeUint64
	VariantTypeFloat
	VariantTypeDouble
	VariantTypeString
	VariantTypeByteString
	VariantTypeDateTime
	VariantTypeNodeID
	VariantTypeStatusCode
	VariantTypeExtensionObject
)

// Variant is a tagged scalar value. Arrays of variants are represented
// as []Variant at the call sites that need them (event field lists);
// there is no nested array-of-variant wire form implemented here since
// nothing in the publish/dispatch path requires it.
type Variant struct {
	Type     VariantType
	Bool     bool
	Int32    int32
	Uint32   uint32
	Int64    int64
	Uint64   uint64
	Float32  float32
	Float64  float64
	Str      string
	Bytes    []byte
	DateTime DateTime
	NodeID   NodeID
	Status   StatusCode
	Ext      *ExtensionObject
}

func VariantFromBool(v bool) Variant   { return Variant{Type: VariantTypeBoolean, Bool: v} }
func VariantFromInt32(v int32) Variant { return Variant{Type: VariantTypeInt32, Int32: v} }
func VariantFromUint32(v uint32) Variant {
	return Variant{Type: VariantTypeUint32, Uint32: v}
}
func VariantFromInt64(v int64) Variant   { return Variant{Type: VariantTypeInt64, Int64: v} }
func VariantFromUint64(v uint64) Variant { return Variant{Type: VariantTypeUint64, Uint64: v} }
func VariantFromFloat(v float32) Variant { return Variant{Type: VariantTypeFloat, Float32: v} }
func VariantFromDouble(v float64) Variant {
	return Variant{Type: VariantTypeDouble, Float64: v}
}
func VariantFromString(v string) Variant { return Variant{Type: VariantTypeString, Str: v} }
func VariantFromBytes(v []byte) Variant {
	return Variant{Type: VariantTypeByteString, Bytes: append([]byte(nil), v...)}
}
func VariantFromDateTime(v DateTime) Variant {
	return Variant{Type: VariantTypeDateTime, DateTime: v}
}
func VariantFromNodeID(v NodeID) Variant { return Variant{Type: VariantTypeNodeID, NodeID: v} }
func VariantFromStatusCode(v StatusCode) Variant {
	return Variant{Type: VariantTypeStatusCode, Status: v}
}

// Equal reports whether two variants carry the same tag and value.
func (v Variant) Equal(o Variant) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case VariantTypeNull:
		return true
	case VariantTypeBoolean:
		return v.Bool == o.Bool
	case VariantTypeInt32:
		return v.Int32 == o.Int32
	case VariantTypeUint32:
		return v.Uint32 == o.Uint32
	case VariantTypeInt64:
		return v.Int64 == o.Int64
	case VariantTypeUint64:
		return v.Uint64 == o.Uint64
	case VariantTypeFloat:
		return v.Float32 == o.Float32
	case VariantTypeDouble:
		return v.Float64 == o.Float64
	case VariantTypeString:
		return v.Str == o.Str
	case VariantTypeByteString:
		return string(v.Bytes) == string(o.Bytes)
	case VariantTypeDateTime:
		return v.DateTime == o.DateTime
	case VariantTypeNodeID:
		return v.NodeID.Equal(o.NodeID)
	case VariantTypeStatusCode:
		return v.Status == o.Status
	case VariantTypeExtensionObject:
		if v.Ext == nil || o.Ext == nil {
			return v.Ext == o.Ext
		}
		return v.Ext.Equal(*o.Ext)
	default:
		return false
	}
}

// QualifiedName is a name qualified by a namespace index.
type QualifiedName struct {
	NamespaceIndex uint16
	Name           string
}

// LocalizedText is a human-readable string tagged with an IETF locale.
type LocalizedText struct {
	Locale string
	Text   string
}
