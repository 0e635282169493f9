package core

// Clock extends the narrow hardware counter into a 64-bit Tick.
//
// Deployment precondition, not checked at runtime:
//   - WrapPeriodIRQ: OnPeriod runs at every counter overflow and at every
//     half-period crossing, and is never delayed by more than half a
//     period. Give the wrap interrupt a priority at least as high as the
//     alarm interrupts.
//   - WrapLastValue: the counter is sampled at least once per period.
type Clock struct {
	hw    CounterReader
	bits  uint8
	mask  uint32
	wrap  WrapStrategy
	state Mutex[clockState]
}

type clockState struct {
	period  uint32 // half-periods elapsed (WrapPeriodIRQ)
	epoch   uint32 // full periods elapsed (WrapLastValue)
	lastRaw uint32
	last    Tick // largest tick handed out so far
}

// NewClock samples the counter once to align its epoch bookkeeping with
// wherever the counter currently is.
func NewClock(hw CounterReader, bits uint8, wrap WrapStrategy) *Clock {
	c := &Clock{
		hw:   hw,
		bits: bits,
		mask: counterMask(bits),
		wrap: wrap,
	}
	WithCS(func(cs CS) {
		s := c.state.Borrow(cs)
		raw := c.hw.Counter() & c.mask
		s.lastRaw = raw
		// A counter already in its upper half has crossed the
		// half-period point once.
		s.period = (raw >> (bits - 1)) & 1
		s.last = Tick(raw)
	})
	return c
}

func counterMask(bits uint8) uint32 {
	if bits >= 32 {
		return ^uint32(0)
	}
	return uint32(1)<<bits - 1
}

// Bits returns the width of the underlying counter
func (c *Clock) Bits() uint8 { return c.bits }

// Now returns the current tick. It never blocks and may be called from
// task or interrupt context.
func (c *Clock) Now() Tick {
	var t Tick
	WithCS(func(cs CS) {
		t = c.nowCS(cs)
	})
	return t
}

// nowCS is Now for callers already holding a section.
func (c *Clock) nowCS(cs CS) Tick {
	s := c.state.Borrow(cs)
	raw := c.hw.Counter() & c.mask

	var t Tick
	switch c.wrap {
	case WrapPeriodIRQ:
		// The parity of period says which half the counter should be
		// in. If the sample disagrees, the wrap interrupt for the
		// crossing is still pending and the XOR accounts for it.
		shift := c.bits - 1
		t = Tick(uint64(s.period)<<shift) + Tick(raw^((s.period&1)<<shift))
	default:
		if raw < s.lastRaw {
			s.epoch++
		}
		s.lastRaw = raw
		t = Tick(uint64(s.epoch)<<c.bits | uint64(raw))
	}

	if t < s.last {
		RecordTiming(cs, EvtFatal, 0, uint32(t), uint32(s.last), uint32(s.period))
		FatalCS(cs, ErrClockWraparound)
		return s.last
	}
	s.last = t
	return t
}

// OnPeriod is the wrap interrupt entry point for WrapPeriodIRQ. It must
// run once at overflow and once at the half-period crossing.
func (c *Clock) OnPeriod() {
	WithCS(func(cs CS) {
		s := c.state.Borrow(cs)
		s.period++
		RecordTiming(cs, EvtPeriod, 0, uint32(s.last), s.period, 0)
	})
}
