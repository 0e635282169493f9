package core

import (
	"math"
	"math/bits"
	"time"
)

// Tick counts clock ticks since boot. It never decreases.
type Tick uint64

// Never is a deadline that is never reached.
const Never Tick = ^Tick(0)

// mulDiv returns a*b/c computed over 128 bits, rounding up when up is set.
// A quotient that does not fit 64 bits saturates to MaxUint64.
func mulDiv(a, b, c uint64, up bool) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return math.MaxUint64
	}
	q, r := bits.Div64(hi, lo, c)
	if up && r != 0 {
		if q == math.MaxUint64 {
			return q
		}
		q++
	}
	return q
}

// TicksFromMicros converts microseconds to ticks at hz
func TicksFromMicros(us uint64, hz uint32) Tick {
	return Tick(mulDiv(us, uint64(hz), 1000000, false))
}

// MicrosFromTicks converts ticks at hz to microseconds
func MicrosFromTicks(t Tick, hz uint32) uint64 {
	return mulDiv(uint64(t), 1000000, uint64(hz), false)
}

// TicksFromDuration converts a duration to ticks at hz, rounding up so a
// wait is never shorter than asked.
func TicksFromDuration(d time.Duration, hz uint32) Tick {
	if d <= 0 {
		return 0
	}
	return Tick(mulDiv(uint64(d), uint64(hz), 1000000000, true))
}

// Duration converts ticks at hz to a time.Duration, saturating at the
// largest Duration (about 292 years).
func (t Tick) Duration(hz uint32) time.Duration {
	ns := mulDiv(uint64(t), 1000000000, uint64(hz), false)
	if ns > math.MaxInt64 {
		return math.MaxInt64
	}
	return time.Duration(ns)
}
