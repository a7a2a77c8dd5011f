// Package ua implements the OPC UA data model (§3) and its binary wire
// encoding (§6, §4.1). The codec is a small, self-contained collaborator:
// Encoder/Decoder operate on an in-memory buffer, little-endian
// primitives, length-prefixed strings/arrays (i32 count, -1 = null) and
// the standard's compact/full node-id forms.
package ua

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrXMLNotSupported is returned when an extension object's body is
// encoded as XML; the codec only implements the binary encoding.
var ErrXMLNotSupported = errors.New("ua: xml-encoded extension object body is not supported")

// Encoder serializes values into an in-memory little-endian buffer.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns a fresh Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Bytes returns the accumulated encoded bytes.
func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

func (e *Encoder) WriteBool(v bool) {
	if v {
		e.buf.WriteByte(1)
	} else {
		e.buf.WriteByte(0)
	}
}

func (e *Encoder) WriteByte(v byte) { e.buf.WriteByte(v) }

func (e *Encoder) WriteUint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) WriteInt32(v int32) { e.WriteUint32(uint32(v)) }

func (e *Encoder) WriteUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) WriteInt64(v int64) { e.WriteUint64(uint64(v)) }

func (e *Encoder) WriteUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) WriteFloat32(v float32) { e.WriteUint32(math.Float32bits(v)) }
func (e *Encoder) WriteFloat64(v float64) { e.WriteUint64(math.Float64bits(v)) }

// WriteByteString writes a length-prefixed byte array; nil encodes as -1.
func (e *Encoder) WriteByteString(v []byte) {
	if v == nil {
		e.WriteInt32(-1)
		return
	}
	e.WriteInt32(int32(len(v)))
	e.buf.Write(v)
}

// WriteString writes a length-prefixed UTF-8 string; empty and nil are
// both encoded as -1-length (OPC UA does not distinguish null from empty
// at the wire level without an explicit flag carried by the caller).
func (e *Encoder) WriteString(v string) {
	if v == "" {
		e.WriteInt32(-1)
		return
	}
	e.WriteByteString([]byte(v))
}

func (e *Encoder) WriteDateTime(v DateTime) { e.WriteInt64(int64(v)) }

func (e *Encoder) WriteStatusCode(v StatusCode) { e.WriteUint32(uint32(v)) }

func (e *Encoder) WriteGUID(g GUID) { e.buf.Write(g[:]) }

// WriteNodeID encodes a NodeID using the compact two-byte/four-byte forms
// when the value fits, else the full form, per the standard's encoding
// rules for identifier kind 0x00-0x05.
func (e *Encoder) WriteNodeID(id NodeID) {
	switch id.Kind {
	case IDNumeric:
		switch {
		case id.Namespace == 0 && id.Numeric <= 0xFF:
			e.WriteByte(0x00)
			e.WriteByte(byte(id.Numeric))
		case id.Namespace <= 0xFF && id.Numeric <= 0xFFFF:
			e.WriteByte(0x01)
			e.WriteByte(byte(id.Namespace))
			e.WriteUint16(uint16(id.Numeric))
		default:
			e.WriteByte(0x02)
			e.WriteUint16(id.Namespace)
			e.WriteUint32(id.Numeric)
		}
	case IDString:
		e.WriteByte(0x03)
		e.WriteUint16(id.Namespace)
		e.WriteString(id.Str)
	case IDGUID:
		e.WriteByte(0x04)
		e.WriteUint16(id.Namespace)
		e.WriteGUID(id.GUID)
	default: // IDOpaque
		e.WriteByte(0x05)
		e.WriteUint16(id.Namespace)
		e.WriteByteString(id.Opaque)
	}
}

func (e *Encoder) WriteQualifiedName(q QualifiedName) {
	e.WriteUint16(q.NamespaceIndex)
	e.WriteString(q.Name)
}

func (e *Encoder) WriteLocalizedText(t LocalizedText) {
	// Encoding mask: bit0 = locale present, bit1 = text present.
	var mask byte
	if t.Locale != "" {
		mask |= 0x01
	}
	if t.Text != "" {
		mask |= 0x02
	}
	e.WriteByte(mask)
	if mask&0x01 != 0 {
		e.WriteString(t.Locale)
	}
	if mask&0x02 != 0 {
		e.WriteString(t.Text)
	}
}

// WriteVariant encodes the built-in scalar subset described on
// VariantType.
func (e *Encoder) WriteVariant(v Variant) error {
	e.WriteByte(byte(v.Type))
	switch v.Type {
	case VariantTypeNull:
	case VariantTypeBoolean:
		e.WriteBool(v.Bool)
	case VariantTypeInt32:
		e.WriteInt32(v.Int32)
	case VariantTypeUint32:
		e.WriteUint32(v.Uint32)
	case VariantTypeInt64:
		e.WriteInt64(v.Int64)
	case VariantTypeUint64:
		e.WriteUint64(v.Uint64)
	case VariantTypeFloat:
		e.WriteFloat32(v.Float32)
	case VariantTypeDouble:
		e.WriteFloat64(v.Float64)
	case VariantTypeString:
		e.WriteString(v.Str)
	case VariantTypeByteString:
		e.WriteByteString(v.Bytes)
	case VariantTypeDateTime:
		e.WriteDateTime(v.DateTime)
	case VariantTypeNodeID:
		e.WriteNodeID(v.NodeID)
	case VariantTypeStatusCode:
		e.WriteStatusCode(v.Status)
	case VariantTypeExtensionObject:
		return e.WriteExtensionObject(v.Ext)
	default:
		return fmt.Errorf("ua: unsupported variant type %d", v.Type)
	}
	return nil
}

func (e *Encoder) WriteDataValue(d DataValue) error {
	// Encoding mask: bit0 value, bit1 status, bit2 source ts, bit3 server
	// ts, bit4 source picoseconds, bit5 server picoseconds.
	var mask byte
	if d.Value.Type != VariantTypeNull {
		mask |= 0x01
	}
	if d.Status != StatusGood {
		mask |= 0x02
	}
	if d.SourceTimestamp != 0 {
		mask |= 0x04
	}
	if d.ServerTimestamp != 0 {
		mask |= 0x08
	}
	if d.SourcePicoseconds != 0 {
		mask |= 0x10
	}
	if d.ServerPicoseconds != 0 {
		mask |= 0x20
	}
	e.WriteByte(mask)
	if mask&0x01 != 0 {
		if err := e.WriteVariant(d.Value); err != nil {
			return err
		}
	}
	if mask&0x02 != 0 {
		e.WriteStatusCode(d.Status)
	}
	if mask&0x04 != 0 {
		e.WriteDateTime(d.SourceTimestamp)
	}
	if mask&0x08 != 0 {
		e.WriteDateTime(d.ServerTimestamp)
	}
	if mask&0x10 != 0 {
		e.WriteUint16(d.SourcePicoseconds)
	}
	if mask&0x20 != 0 {
		e.WriteUint16(d.ServerPicoseconds)
	}
	return nil
}

// WriteExtensionObject encodes an extension object per §6: expanded
// type id, one encoding byte, then a length-prefixed body. A nil
// extension object encodes as the "none" form.
func (e *Encoder) WriteExtensionObject(ext *ExtensionObject) error {
	if ext == nil || ext.IsNone() {
		e.WriteNodeID(NodeID{})
		e.WriteByte(0x00)
		return nil
	}

	e.WriteNodeID(ext.TypeID.NodeID)

	body := ext.Body
	if ext.Value != nil {
		sub := NewEncoder()
		if err := ext.Value.Encode(sub); err != nil {
			return fmt.Errorf("ua: encode extension object body: %w", err)
		}
		body = sub.Bytes()
	}

	e.WriteByte(0x01) // binary body
	e.WriteByteString(body)
	return nil
}

// Decoder deserializes values from an in-memory little-endian buffer. A
// zero-value Decoder has no namespace remapping; use WithNamespaceRemap
// to inject one (§4.1).
type Decoder struct {
	r      *bytes.Reader
	remap  map[uint16]uint16
	types  *TypeRegistry
}

// NewDecoder wraps data for reading. types, if non-nil, is consulted to
// eagerly decode extension-object bodies into concrete Encodable values;
// when nil (or the type id is unregistered) bodies decode lazily as raw
// bytes, per §4.1.
func NewDecoder(data []byte, types *TypeRegistry) *Decoder {
	return &Decoder{r: bytes.NewReader(data), types: types}
}

// WithNamespaceRemap installs a local_index -> canonical_index mapping
// applied to every decoded NodeID's namespace. Entries absent from the
// map pass through unchanged.
func (d *Decoder) WithNamespaceRemap(remap map[uint16]uint16) *Decoder {
	d.remap = remap
	return d
}

func (d *Decoder) fieldErr(field string, err error) error {
	return fmt.Errorf("ua: decode %s: %w", field, err)
}

func (d *Decoder) ReadBool(field string) (bool, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return false, d.fieldErr(field, err)
	}
	return b != 0, nil
}

func (d *Decoder) ReadByte(field string) (byte, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return 0, d.fieldErr(field, err)
	}
	return b, nil
}

func (d *Decoder) ReadUint16(field string) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, d.fieldErr(field, err)
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func (d *Decoder) ReadInt32(field string) (int32, error) {
	v, err := d.ReadUint32(field)
	return int32(v), err
}

func (d *Decoder) ReadUint32(field string) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, d.fieldErr(field, err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (d *Decoder) ReadInt64(field string) (int64, error) {
	v, err := d.ReadUint64(field)
	return int64(v), err
}

func (d *Decoder) ReadUint64(field string) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, d.fieldErr(field, err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func (d *Decoder) ReadFloat32(field string) (float32, error) {
	v, err := d.ReadUint32(field)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (d *Decoder) ReadFloat64(field string) (float64, error) {
	v, err := d.ReadUint64(field)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadByteString reads a length-prefixed byte array; -1 decodes as nil.
func (d *Decoder) ReadByteString(field string) ([]byte, error) {
	n, err := d.ReadInt32(field)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, d.fieldErr(field, err)
	}
	return buf, nil
}

func (d *Decoder) ReadString(field string) (string, error) {
	b, err := d.ReadByteString(field)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *Decoder) ReadDateTime(field string) (DateTime, error) {
	v, err := d.ReadInt64(field)
	return DateTime(v), err
}

func (d *Decoder) ReadStatusCode(field string) (StatusCode, error) {
	v, err := d.ReadUint32(field)
	return StatusCode(v), err
}

func (d *Decoder) ReadGUID(field string) (GUID, error) {
	var g GUID
	if _, err := io.ReadFull(d.r, g[:]); err != nil {
		return g, d.fieldErr(field, err)
	}
	return g, nil
}

func (d *Decoder) applyRemap(ns uint16) uint16 {
	if d.remap == nil {
		return ns
	}
	if mapped, ok := d.remap[ns]; ok {
		return mapped
	}
	return ns
}

// ReadNodeID decodes a NodeID in any of the standard's compact/full
// forms and applies the namespace remap, if any.
func (d *Decoder) ReadNodeID(field string) (NodeID, error) {
	form, err := d.ReadByte(field)
	if err != nil {
		return NodeID{}, err
	}
	switch form {
	case 0x00:
		v, err := d.ReadByte(field)
		if err != nil {
			return NodeID{}, err
		}
		return NewNumericNodeID(d.applyRemap(0), uint32(v)), nil
	case 0x01:
		ns, err := d.ReadByte(field)
		if err != nil {
			return NodeID{}, err
		}
		v, err := d.ReadUint16(field)
		if err != nil {
			return NodeID{}, err
		}
		return NewNumericNodeID(d.applyRemap(uint16(ns)), uint32(v)), nil
	case 0x02:
		ns, err := d.ReadUint16(field)
		if err != nil {
			return NodeID{}, err
		}
		v, err := d.ReadUint32(field)
		if err != nil {
			return NodeID{}, err
		}
		return NewNumericNodeID(d.applyRemap(ns), v), nil
	case 0x03:
		ns, err := d.ReadUint16(field)
		if err != nil {
			return NodeID{}, err
		}
		s, err := d.ReadString(field)
		if err != nil {
			return NodeID{}, err
		}
		return NewStringNodeID(d.applyRemap(ns), s), nil
	case 0x04:
		ns, err := d.ReadUint16(field)
		if err != nil {
			return NodeID{}, err
		}
		g, err := d.ReadGUID(field)
		if err != nil {
			return NodeID{}, err
		}
		return NewGUIDNodeID(d.applyRemap(ns), g), nil
	case 0x05:
		ns, err := d.ReadUint16(field)
		if err != nil {
			return NodeID{}, err
		}
		b, err := d.ReadByteString(field)
		if err != nil {
			return NodeID{}, err
		}
		return NewOpaqueNodeID(d.applyRemap(ns), b), nil
	default:
		return NodeID{}, d.fieldErr(field, fmt.Errorf("unknown node id form 0x%02x", form))
	}
}

func (d *Decoder) ReadQualifiedName(field string) (QualifiedName, error) {
	ns, err := d.ReadUint16(field)
	if err != nil {
		return QualifiedName{}, err
	}
	name, err := d.ReadString(field)
	if err != nil {
		return QualifiedName{}, err
	}
	return QualifiedName{NamespaceIndex: ns, Name: name}, nil
}

func (d *Decoder) ReadLocalizedText(field string) (LocalizedText, error) {
	mask, err := d.ReadByte(field)
	if err != nil {
		return LocalizedText{}, err
	}
	var t LocalizedText
	if mask&0x01 != 0 {
		if t.Locale, err = d.ReadString(field); err != nil {
			return LocalizedText{}, err
		}
	}
	if mask&0x02 != 0 {
		if t.Text, err = d.ReadString(field); err != nil {
			return LocalizedText{}, err
		}
	}
	return t, nil
}

func (d *Decoder) ReadVariant(field string) (Variant, error) {
	tb, err := d.ReadByte(field)
	if err != nil {
		return Variant{}, err
	}
	t := VariantType(tb)
	switch t {
	case VariantTypeNull:
		return Variant{}, nil
	case VariantTypeBoolean:
		v, err := d.ReadBool(field)
		return Variant{Type: t, Bool: v}, err
	case VariantTypeInt32:
		v, err := d.ReadInt32(field)
		return Variant{Type: t, Int32: v}, err
	case VariantTypeUint32:
		v, err := d.ReadUint32(field)
		return Variant{Type: t, Uint32: v}, err
	case VariantTypeInt64:
		v, err := d.ReadInt64(field)
		return Variant{Type: t, Int64: v}, err
	case VariantTypeUint64:
		v, err := d.ReadUint64(field)
		return Variant{Type: t, Uint64: v}, err
	case VariantTypeFloat:
		v, err := d.ReadFloat32(field)
		return Variant{Type: t, Float32: v}, err
	case VariantTypeDouble:
		v, err := d.ReadFloat64(field)
		return Variant{Type: t, Float64: v}, err
	case VariantTypeString:
		v, err := d.ReadString(field)
		return Variant{Type: t, Str: v}, err
	case VariantTypeByteString:
		v, err := d.ReadByteString(field)
		return Variant{Type: t, Bytes: v}, err
	case VariantTypeDateTime:
		v, err := d.ReadDateTime(field)
		return Variant{Type: t, DateTime: v}, err
	case VariantTypeNodeID:
		v, err := d.ReadNodeID(field)
		return Variant{Type: t, NodeID: v}, err
	case VariantTypeStatusCode:
		v, err := d.ReadStatusCode(field)
		return Variant{Type: t, Status: v}, err
	case VariantTypeExtensionObject:
		ext, err := d.ReadExtensionObject(field)
		if err != nil {
			return Variant{}, err
		}
		return Variant{Type: t, Ext: &ext}, nil
	default:
		return Variant{}, d.fieldErr(field, fmt.Errorf("unsupported variant type %d", t))
	}
}

func (d *Decoder) ReadDataValue(field string) (DataValue, error) {
	mask, err := d.ReadByte(field)
	if err != nil {
		return DataValue{}, err
	}
	dv := DataValue{Status: StatusGood}
	if mask&0x01 != 0 {
		if dv.Value, err = d.ReadVariant(field); err != nil {
			return DataValue{}, err
		}
	}
	if mask&0x02 != 0 {
		if dv.Status, err = d.ReadStatusCode(field); err != nil {
			return DataValue{}, err
		}
	}
	if mask&0x04 != 0 {
		if dv.SourceTimestamp, err = d.ReadDateTime(field); err != nil {
			return DataValue{}, err
		}
	}
	if mask&0x08 != 0 {
		if dv.ServerTimestamp, err = d.ReadDateTime(field); err != nil {
			return DataValue{}, err
		}
	}
	if mask&0x10 != 0 {
		if dv.SourcePicoseconds, err = d.ReadUint16(field); err != nil {
			return DataValue{}, err
		}
	}
	if mask&0x20 != 0 {
		if dv.ServerPicoseconds, err = d.ReadUint16(field); err != nil {
			return DataValue{}, err
		}
	}
	return dv, nil
}

// ReadExtensionObject decodes the (type id, encoding, body) triple. XML
// bodies are rejected. When a TypeRegistry was supplied to the decoder
// and knows the type id, the body is eagerly decoded into a concrete
// Encodable; otherwise it is kept as a lazy binary blob, per §4.1.
func (d *Decoder) ReadExtensionObject(field string) (ExtensionObject, error) {
	typeID, err := d.ReadNodeID(field)
	if err != nil {
		return ExtensionObject{}, err
	}
	encoding, err := d.ReadByte(field)
	if err != nil {
		return ExtensionObject{}, err
	}

	ext := ExtensionObject{TypeID: ExpandedNodeID{NodeID: typeID}}

	switch encoding {
	case 0x00:
		return ext, nil
	case 0x02:
		return ExtensionObject{}, d.fieldErr(field, ErrXMLNotSupported)
	case 0x01:
		body, err := d.ReadByteString(field)
		if err != nil {
			return ExtensionObject{}, err
		}
		ext.Encoding = ExtensionObjectEncodingBinary
		ext.Body = body
		if d.types != nil {
			if factory, ok := d.types.Lookup(typeID); ok {
				value := factory()
				sub := NewDecoder(body, d.types).WithNamespaceRemap(d.remap)
				if err := value.Decode(sub); err != nil {
					return ExtensionObject{}, d.fieldErr(field, err)
				}
				ext.Value = value
			}
		}
		return ext, nil
	default:
		return ExtensionObject{}, d.fieldErr(field, fmt.Errorf("unknown extension object encoding 0x%02x", encoding))
	}
}

// ErrShortBuffer is a sentinel indicating no bytes remain, for callers
// that walk a stream of concatenated messages.
var ErrShortBuffer = io.ErrUnexpectedEOF
