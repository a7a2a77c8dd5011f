package ua

// NotificationMessage is the payload of a single Publish response,
// carrying a monotonic sequence number, a publish timestamp and zero or
// more notification data sets. Per §3, sequence numbers wrap from
// MaxUint32 back to 1 and never land on 0 — 0 is reserved to mean "no
// message yet" in a few diagnostic contexts.
type NotificationMessage struct {
	SequenceNumber uint32
	PublishTime    DateTime
	NotificationData []ExtensionObject
}

// NextSequenceNumber advances a sequence counter per §3's wraparound
// rule: 1, 2, ..., MaxUint32, 1, 2, ...
func NextSequenceNumber(current uint32) uint32 {
	if current == ^uint32(0) {
		return 1
	}
	return current + 1
}

// MonitoredItemNotification reports one sampled value for one monitored
// item within a DataChangeNotification.
type MonitoredItemNotification struct {
	ClientHandle uint32
	Value        DataValue
}

// DataChangeNotificationTypeID is the well-known binary type id for
// DataChangeNotification bodies (ns=0;i=811 in the standard's address
// space; reused here unchanged since the numeric value has no meaning
// beyond "this registry key names DataChangeNotification").
var DataChangeNotificationTypeID = NewNumericNodeID(0, 811)

// DataChangeNotification carries sampled value changes for a batch of
// monitored items belonging to one subscription.
type DataChangeNotification struct {
	MonitoredItems []MonitoredItemNotification
	DiagnosticInfo []byte
}

func (n *DataChangeNotification) TypeID() NodeID { return DataChangeNotificationTypeID }

func (n *DataChangeNotification) Encode(enc *Encoder) error {
	enc.WriteInt32(int32(len(n.MonitoredItems)))
	for _, item := range n.MonitoredItems {
		enc.WriteUint32(item.ClientHandle)
		if err := enc.WriteDataValue(item.Value); err != nil {
			return err
		}
	}
	enc.WriteByteString(n.DiagnosticInfo)
	return nil
}

func (n *DataChangeNotification) Decode(dec *Decoder) error {
	count, err := dec.ReadInt32("monitoredItems.count")
	if err != nil {
		return err
	}
	if count < 0 {
		count = 0
	}
	items := make([]MonitoredItemNotification, 0, count)
	for i := int32(0); i < count; i++ {
		handle, err := dec.ReadUint32("clientHandle")
		if err != nil {
			return err
		}
		value, err := dec.ReadDataValue("value")
		if err != nil {
			return err
		}
		items = append(items, MonitoredItemNotification{ClientHandle: handle, Value: value})
	}
	n.MonitoredItems = items
	n.DiagnosticInfo, err = dec.ReadByteString("diagnosticInfo")
	return err
}

// EventFieldList reports one event occurrence for one monitored item, as
// an ordered list of selected field values.
type EventFieldList struct {
	ClientHandle uint32
	EventFields  []Variant
}

// EventNotificationListTypeID is the well-known binary type id for
// EventNotificationList bodies.
var EventNotificationListTypeID = NewNumericNodeID(0, 917)

// EventNotificationList carries event occurrences for a batch of
// monitored items belonging to one subscription.
type EventNotificationList struct {
	Events []EventFieldList
}

func (n *EventNotificationList) TypeID() NodeID { return EventNotificationListTypeID }

func (n *EventNotificationList) Encode(enc *Encoder) error {
	enc.WriteInt32(int32(len(n.Events)))
	for _, evt := range n.Events {
		enc.WriteUint32(evt.ClientHandle)
		enc.WriteInt32(int32(len(evt.EventFields)))
		for _, f := range evt.EventFields {
			if err := enc.WriteVariant(f); err != nil {
				return err
			}
		}
	}
	return nil
}

func (n *EventNotificationList) Decode(dec *Decoder) error {
	count, err := dec.ReadInt32("events.count")
	if err != nil {
		return err
	}
	if count < 0 {
		count = 0
	}
	events := make([]EventFieldList, 0, count)
	for i := int32(0); i < count; i++ {
		handle, err := dec.ReadUint32("clientHandle")
		if err != nil {
			return err
		}
		fieldCount, err := dec.ReadInt32("eventFields.count")
		if err != nil {
			return err
		}
		if fieldCount < 0 {
			fieldCount = 0
		}
		fields := make([]Variant, 0, fieldCount)
		for j := int32(0); j < fieldCount; j++ {
			v, err := dec.ReadVariant("eventField")
			if err != nil {
				return err
			}
			fields = append(fields, v)
		}
		events = append(events, EventFieldList{ClientHandle: handle, EventFields: fields})
	}
	n.Events = events
	return nil
}

// StatusChangeNotificationTypeID is the well-known binary type id for
// StatusChangeNotification bodies.
var StatusChangeNotificationTypeID = NewNumericNodeID(0, 819)

// StatusChangeNotification tells the client that the subscription's own
// status changed — most commonly StatusBadTimeout when the server closes
// a subscription for exceeding its lifetime.
type StatusChangeNotification struct {
	Status StatusCode
}

func (n *StatusChangeNotification) TypeID() NodeID { return StatusChangeNotificationTypeID }

func (n *StatusChangeNotification) Encode(enc *Encoder) error {
	enc.WriteStatusCode(n.Status)
	return nil
}

func (n *StatusChangeNotification) Decode(dec *Decoder) error {
	status, err := dec.ReadStatusCode("status")
	if err != nil {
		return err
	}
	n.Status = status
	return nil
}

// DefaultTypeRegistry returns a registry pre-populated with the three
// notification body types: data change, event list and status change.
// The server's publish engine emits only the first two. Callers
// embedding additional application-specific event fields can Register
// more entries on top of it.
func DefaultTypeRegistry() *TypeRegistry {
	r := NewTypeRegistry()
	r.Register(DataChangeNotificationTypeID, func() Encodable { return &DataChangeNotification{} })
	r.Register(EventNotificationListTypeID, func() Encodable { return &EventNotificationList{} })
	r.Register(StatusChangeNotificationTypeID, func() Encodable { return &StatusChangeNotification{} })
	return r
}
