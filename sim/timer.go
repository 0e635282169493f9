// Package sim simulates a free-running hardware timer with compare alarms
// so the time driver can run on a host.
//
// The model follows the hardware the driver targets: an alarm fires when
// the counter moves onto its compare value, then disarms itself and
// latches its interrupt flag until acknowledged. Writing a value the
// counter has already passed does nothing until the counter wraps around
// to it again. Interrupts are delivered synchronously by Advance and
// Service, period interrupts before alarms, lower slots first.
package sim

import "sync"

// maxDeliveries bounds one Service call; a handler that never acknowledges
// its flag would otherwise spin forever.
const maxDeliveries = 100000

type alarm struct {
	compare uint32
	armed   bool
	pending bool
	handler func()
}

// Timer is a simulated counter with compare alarms. It satisfies the
// time driver's AlarmHardware interface.
type Timer struct {
	mu      sync.Mutex
	bits    uint8
	mask    uint32
	counter uint32
	alarms  []alarm

	periodHandler func()
	periodPending bool

	serving sync.Mutex // serializes interrupt delivery, like a single core
}

// New returns a counter of the given width (8..32 bits) starting at 0
// with n alarms.
func New(bits uint8, n int) *Timer {
	if bits < 8 || bits > 32 {
		panic("sim: counter width must be 8..32 bits")
	}
	mask := ^uint32(0)
	if bits < 32 {
		mask = uint32(1)<<bits - 1
	}
	return &Timer{
		bits:   bits,
		mask:   mask,
		alarms: make([]alarm, n),
	}
}

// OnAlarm installs the interrupt handler for slot
func (t *Timer) OnAlarm(slot int, fn func()) {
	t.mu.Lock()
	t.alarms[slot].handler = fn
	t.mu.Unlock()
}

// OnPeriod installs the handler raised at counter overflow and at the
// half-period crossing
func (t *Timer) OnPeriod(fn func()) {
	t.mu.Lock()
	t.periodHandler = fn
	t.mu.Unlock()
}

// Set moves the counter without raising interrupts. Use it before the
// driver is built to start near a wrap.
func (t *Timer) Set(counter uint32) {
	t.mu.Lock()
	t.counter = counter & t.mask
	t.mu.Unlock()
}

// Counter implements AlarmHardware
func (t *Timer) Counter() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counter
}

// Alarms implements AlarmHardware
func (t *Timer) Alarms() int { return len(t.alarms) }

// SetAlarm implements AlarmHardware
func (t *Timer) SetAlarm(slot int, value uint32) {
	t.mu.Lock()
	t.alarms[slot].compare = value & t.mask
	t.alarms[slot].armed = true
	t.mu.Unlock()
}

// DisarmAlarm implements AlarmHardware. A flag that is already latched
// stays latched.
func (t *Timer) DisarmAlarm(slot int) {
	t.mu.Lock()
	t.alarms[slot].armed = false
	t.mu.Unlock()
}

// AckAlarm implements AlarmHardware
func (t *Timer) AckAlarm(slot int) {
	t.mu.Lock()
	t.alarms[slot].pending = false
	t.mu.Unlock()
}

// PendAlarm implements AlarmHardware
func (t *Timer) PendAlarm(slot int) {
	t.mu.Lock()
	t.alarms[slot].pending = true
	t.mu.Unlock()
}

// Armed returns the compare value of slot and whether it is armed
func (t *Timer) Armed(slot int) (uint32, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alarms[slot].compare, t.alarms[slot].armed
}

// IsPending reports whether the interrupt of slot is latched
func (t *Timer) IsPending(slot int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alarms[slot].pending
}

// Advance runs the counter forward n ticks, stopping at every alarm match
// and period crossing to deliver interrupts.
func (t *Timer) Advance(n uint64) {
	t.Service()
	for n > 0 {
		t.mu.Lock()
		step := t.nextEvent()
		if step > n {
			t.counter = uint32((uint64(t.counter) + n) & uint64(t.mask))
			t.mu.Unlock()
			break
		}
		t.counter = uint32((uint64(t.counter) + step) & uint64(t.mask))
		n -= step
		t.latch()
		t.mu.Unlock()
		t.Service()
	}
	t.Service()
}

// AdvanceTo runs the counter forward until it reads raw
func (t *Timer) AdvanceTo(raw uint32) {
	t.mu.Lock()
	d := uint64((raw - t.counter) & t.mask)
	t.mu.Unlock()
	t.Advance(d)
}

// nextEvent returns the ticks until the next match or crossing. Called
// with mu held.
func (t *Timer) nextEvent() uint64 {
	period := uint64(t.mask) + 1
	best := period
	dist := func(target uint32) uint64 {
		d := uint64((target - t.counter) & t.mask)
		if d == 0 {
			d = period
		}
		return d
	}
	for i := range t.alarms {
		if t.alarms[i].armed {
			if d := dist(t.alarms[i].compare); d < best {
				best = d
			}
		}
	}
	if t.periodHandler != nil {
		if d := dist(0); d < best {
			best = d
		}
		if d := dist(uint32(1) << (t.bits - 1)); d < best {
			best = d
		}
	}
	return best
}

// latch raises the flags for whatever matches the current counter. Called
// with mu held.
func (t *Timer) latch() {
	for i := range t.alarms {
		a := &t.alarms[i]
		if a.armed && a.compare == t.counter {
			a.armed = false
			a.pending = true
		}
	}
	if t.periodHandler != nil && (t.counter == 0 || t.counter == uint32(1)<<(t.bits-1)) {
		t.periodPending = true
	}
}

// Service delivers every latched interrupt until none is left.
func (t *Timer) Service() {
	t.serving.Lock()
	defer t.serving.Unlock()
	for i := 0; i < maxDeliveries; i++ {
		fn := t.nextHandler()
		if fn == nil {
			return
		}
		fn()
	}
	panic("sim: interrupt storm, a handler never acknowledges its flag")
}

// nextHandler picks the highest priority latched interrupt
func (t *Timer) nextHandler() func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.periodPending {
		t.periodPending = false
		return t.periodHandler
	}
	for i := range t.alarms {
		a := &t.alarms[i]
		if !a.pending {
			continue
		}
		if a.handler == nil {
			// Nobody listening: the flag would stay up forever.
			a.pending = false
			continue
		}
		return a.handler
	}
	return nil
}
