package ua

// DataValue is a value plus status and timestamp metadata, per §3. A
// DataValue with a Bad status still carries a meaningful Value only if
// the producing handler chose to set one; the runtime never clears
// Value based on status.
type DataValue struct {
	Value             Variant
	Status            StatusCode
	SourceTimestamp   DateTime
	SourcePicoseconds uint16
	ServerTimestamp   DateTime
	ServerPicoseconds uint16
}

// NewGoodDataValue builds a DataValue with Good status and both
// timestamps set to now.
func NewGoodDataValue(v Variant) DataValue {
	now := Now()
	return DataValue{Value: v, Status: StatusGood, SourceTimestamp: now, ServerTimestamp: now}
}

// NewBadDataValue builds a DataValue carrying only a bad status, as used
// for synthetic notifications when a monitored item fails to create.
func NewBadDataValue(status StatusCode) DataValue {
	return DataValue{Status: status}
}

// Equal reports structural equality of all fields.
func (d DataValue) Equal(o DataValue) bool {
	return d.Value.Equal(o.Value) &&
		d.Status == o.Status &&
		d.SourceTimestamp == o.SourceTimestamp &&
		d.SourcePicoseconds == o.SourcePicoseconds &&
		d.ServerTimestamp == o.ServerTimestamp &&
		d.ServerPicoseconds == o.ServerPicoseconds
}
