package timestamp

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Magnitude bands for unit classification. The gateway writes sample times as
// bare numbers with no unit tag, so the unit is inferred from magnitude. The
// bands are inherited from the deployed gateway fleet and must not be
// tightened: values near a boundary decode deterministically per these ranges.
const (
	// filetimeMin and filetimeMax bracket Windows FILETIME values for the
	// years the gateways were commissioned (roughly 2014-2076 in tick terms;
	// in practice 2020-2030 data).
	filetimeMin = 1.3e17
	filetimeMax = 1.5e17
	// nanosMin is the exclusive lower bound of the nanosecond band.
	nanosMin = 1e15
	// microsMin is the exclusive lower bound of the microsecond band.
	microsMin = 1e12
	// millisMin is the exclusive lower bound of the millisecond band.
	millisMin = 1e9
)

// filetimeTicksPerSecond is the number of 100-nanosecond FILETIME ticks per second.
const filetimeTicksPerSecond = 1e7

// filetimeEpoch is 1601-01-01T00:00:00Z, the Windows FILETIME epoch.
var filetimeEpoch = time.Date(1601, time.January, 1, 0, 0, 0, 0, time.UTC)

var (
	// ErrNotNumeric is returned when the raw value is not a number.
	ErrNotNumeric = errors.New("timestamp value is not numeric")
	// ErrOutOfRange is returned for non-positive, NaN, infinite or
	// unrepresentable values.
	ErrOutOfRange = errors.New("timestamp value out of range")
)

// Normalize converts a unit-less numeric timestamp into an absolute UTC time.
// It accepts any numeric type BSON can deliver (int32, int64, float64 and the
// plain Go integer types). Classification by magnitude:
//
//	[1.3e17, 1.5e17]          Windows FILETIME (100ns ticks since 1601-01-01)
//	(1e15, 1.3e17), (1.5e17,∞) nanoseconds since the Unix epoch
//	(1e12, 1e15]              microseconds since the Unix epoch
//	(1e9, 1e12]               milliseconds since the Unix epoch
//	(0, 1e9]                  seconds since the Unix epoch
//
// Errors are reported, never panicked, so a malformed document field can be
// logged and skipped without aborting a monitoring cycle.
func Normalize(value any) (time.Time, error) {
	v, err := toFloat64(value)
	if err != nil {
		return time.Time{}, err
	}

	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return time.Time{}, fmt.Errorf("%w: %v", ErrOutOfRange, value)
	}

	switch {
	case v >= filetimeMin && v <= filetimeMax:
		return fromFiletime(v), nil
	case v > nanosMin:
		// Everything above the microsecond band that is not FILETIME is
		// treated as nanoseconds, including values beyond 1.5e17.
		return fromUnix(v, 1e9)
	case v > microsMin:
		return fromUnix(v, 1e6)
	case v > millisMin:
		return fromUnix(v, 1e3)
	default:
		return fromUnix(v, 1)
	}
}

// toFloat64 widens supported numeric types; other types are rejected.
func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrNotNumeric, value)
	}
}

// fromUnix converts a Unix-epoch value expressed in the given units-per-second
// scale into a UTC time, keeping sub-second precision. Values whose second
// count cannot be represented as an int64 are rejected: converting an
// out-of-range float64 to int64 is implementation-defined in Go and would
// otherwise yield a garbage instant.
func fromUnix(v, unitsPerSecond float64) (time.Time, error) {
	seconds := math.Floor(v / unitsPerSecond)
	if seconds >= math.MaxInt64 {
		return time.Time{}, fmt.Errorf("%w: %v", ErrOutOfRange, v)
	}

	fraction := v/unitsPerSecond - seconds

	return time.Unix(int64(seconds), int64(fraction*float64(time.Second))).UTC(), nil
}

// fromFiletime converts Windows FILETIME ticks into a UTC time. Ticks are
// split into whole seconds and a remainder so the nanosecond product never
// overflows time.Duration (1.4e17 ticks * 100ns would exceed int64).
func fromFiletime(v float64) time.Time {
	ticks := int64(v)
	seconds := ticks / filetimeTicksPerSecond
	remainder := ticks % filetimeTicksPerSecond

	return filetimeEpoch.
		Add(time.Duration(seconds) * time.Second).
		Add(time.Duration(remainder) * 100 * time.Nanosecond)
}
