package ua

import "time"

// epochOffset is the number of 100-ns ticks between the OPC UA epoch
// (1601-01-01 UTC) and the Unix epoch (1970-01-01 UTC).
const epochOffset int64 = 116444736000000000

// DateTime is UTC time expressed in 100-nanosecond ticks since
// 1601-01-01, matching the wire representation.
type DateTime int64

// Now returns the current UTC time as a DateTime.
func Now() DateTime {
	return FromTime(time.Now().UTC())
}

// FromTime converts a time.Time to DateTime.
func FromTime(t time.Time) DateTime {
	return DateTime(t.UnixNano()/100 + epochOffset)
}

// Time converts a DateTime back to a time.Time in UTC.
func (d DateTime) Time() time.Time {
	return time.Unix(0, (int64(d)-epochOffset)*100).UTC()
}
