// Package timestamp converts the gateway's unit-less numeric sample times into
// absolute instants. The unit (Windows FILETIME, nanoseconds, microseconds,
// milliseconds or seconds) is inferred from the value's magnitude.
package timestamp
