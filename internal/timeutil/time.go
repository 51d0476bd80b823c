// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package timeutil provides the monotonic relative clock used by the SDK and the
// conversions from relative time to wall-clock timestamps and server durations.
package timeutil

import (
	"math"
	"time"
)

// RelativeTime is a point in time expressed in milliseconds since the clock origin
// (the equivalent of the page's time origin).
type RelativeTime float64

// Duration is a span of time in milliseconds.
type Duration float64

// ServerDuration is a span of time in nanoseconds, the unit expected by the intake.
type ServerDuration int64

// TimeStamp is a wall-clock time in milliseconds since the Unix epoch.
type TimeStamp int64

// Unset marks a relative time that has not been computed yet.
const Unset RelativeTime = -1

// Infinite is a relative time later than any observable event.
var Infinite = RelativeTime(math.Inf(1))

// Clock measures relative time from a fixed origin using the monotonic reading
// of time.Time.
type Clock struct {
	origin time.Time
	now    func() time.Time
}

// NewClock returns a clock whose origin is the current instant.
func NewClock() *Clock {
	return NewClockAt(time.Now(), time.Now)
}

// NewClockAt returns a clock with an explicit origin and time source.
// A nil now falls back to time.Now.
func NewClockAt(origin time.Time, now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{origin: origin, now: now}
}

// Origin returns the wall-clock instant of relative time 0.
func (c *Clock) Origin() time.Time {
	return c.origin
}

// RelativeNow returns the time elapsed since the origin.
func (c *Clock) RelativeNow() RelativeTime {
	return RelativeTime(float64(c.now().Sub(c.origin)) / float64(time.Millisecond))
}

// TimeStamp converts a relative time to an epoch timestamp.
func (c *Clock) TimeStamp(rel RelativeTime) TimeStamp {
	return TimeStamp(math.Round(float64(c.origin.UnixNano())/float64(time.Millisecond) + float64(rel)))
}

// RelativeTime converts an epoch timestamp back to a time relative to the origin.
func (c *Clock) RelativeTime(ts TimeStamp) RelativeTime {
	return RelativeTime(float64(ts) - float64(c.origin.UnixNano())/float64(time.Millisecond))
}

// Elapsed returns end - start.
func Elapsed(start, end RelativeTime) Duration {
	return Duration(end - start)
}

// ToServerDuration converts milliseconds to nanoseconds, rounding to the nearest unit.
func ToServerDuration(d Duration) ServerDuration {
	return ServerDuration(math.Round(float64(d) * 1e6))
}

// OptionalServerDuration converts an optional duration, keeping nil as nil.
func OptionalServerDuration(d *Duration) *ServerDuration {
	if d == nil {
		return nil
	}
	v := ToServerDuration(*d)
	return &v
}

// Std converts a Duration to a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(float64(d) * float64(time.Millisecond))
}

// Ptr returns a pointer to d, used to fill optional timing fields.
func (d Duration) Ptr() *Duration {
	return &d
}
