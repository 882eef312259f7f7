package alarm

import "time"

// Value is the tri-state semantic reading of the monitored alarm field.
type Value int

const (
	// ValueUnknown means the field was absent or of an unexpected type.
	// Unknown is never implicitly inactive: it changes no state.
	ValueUnknown Value = iota
	// ValueInactive means the field was present and not the active sentinel.
	ValueInactive
	// ValueActive means the field equalled the configured active sentinel.
	ValueActive
)

// String returns a human-readable value name for logs.
func (v Value) String() string {
	switch v {
	case ValueInactive:
		return "inactive"
	case ValueActive:
		return "active"
	default:
		return "unknown"
	}
}

// ValueFromRaw classifies a raw document field against the active sentinel.
// The gateway writes the flag as an integer, but documents have also been
// seen carrying floats and booleans, so all three are accepted. Anything
// else, including an absent field passed as nil, is Unknown.
func ValueFromRaw(raw any, activeSentinel int64) Value {
	switch v := raw.(type) {
	case int:
		return fromInt64(int64(v), activeSentinel)
	case int32:
		return fromInt64(int64(v), activeSentinel)
	case int64:
		return fromInt64(v, activeSentinel)
	case float64:
		if v != float64(int64(v)) {
			return ValueUnknown
		}

		return fromInt64(int64(v), activeSentinel)
	case bool:
		if v == (activeSentinel != 0) {
			return ValueActive
		}

		return ValueInactive
	default:
		return ValueUnknown
	}
}

// fromInt64 compares an integer reading against the sentinel.
func fromInt64(v, activeSentinel int64) Value {
	if v == activeSentinel {
		return ValueActive
	}

	return ValueInactive
}

// Observation is one polled or pushed snapshot of the monitored field.
type Observation struct {
	// EntityID is the stable identifier of the monitored record,
	// typically the document id in hex form.
	EntityID string
	// Value is the tri-state reading of the alarm field.
	Value Value
	// Raw is the original field value, kept for diagnostics.
	Raw any
	// EventTime is when the underlying condition was sampled.
	// Zero when the document carried no parseable timestamp.
	EventTime time.Time
	// ObservedAt is when this system received the observation.
	ObservedAt time.Time
}

// HasEventTime reports whether the observation carries a parseable sample time.
func (o *Observation) HasEventTime() bool {
	return !o.EventTime.IsZero()
}
