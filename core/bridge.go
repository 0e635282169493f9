package core

// UnitID identifies one bridged peripheral unit (a DMA channel, a UART,
// a PIO interrupt line, ...). Targets assign the numbers.
type UnitID uint8

// Bridge gives each non-timer interrupt source a single Waker slot plus a
// word of event flags, guarded by the same critical section as the alarm
// slots.
//
// A task must register its Waker before it checks whether the hardware is
// ready, then unregister if it turned out to be ready already. Checking
// first would lose an event that lands between the check and the
// registration.
type Bridge struct {
	units Mutex[[]unitSlot]
	n     int
}

type unitSlot struct {
	waker  Waker
	events uint32
	wakes  uint32
}

// NewBridge returns a bridge for units 0..n-1
func NewBridge(n int) *Bridge {
	b := &Bridge{n: n}
	WithCS(func(cs CS) {
		*b.units.Borrow(cs) = make([]unitSlot, n)
	})
	return b
}

// Units returns the number of bridged units
func (b *Bridge) Units() int { return b.n }

// Register stores w as the unit's Waker, replacing any previous one.
func (b *Bridge) Register(unit UnitID, w Waker) error {
	if int(unit) >= b.n {
		return &E{C: ErrUnknownUnit, Op: "bridge.register"}
	}
	WithCS(func(cs CS) {
		(*b.units.Borrow(cs))[unit].waker = w
	})
	return nil
}

// Unregister clears the unit's Waker if it is still w.
func (b *Bridge) Unregister(unit UnitID, w Waker) {
	if int(unit) >= b.n {
		return
	}
	WithCS(func(cs CS) {
		u := &(*b.units.Borrow(cs))[unit]
		if u.waker == w {
			u.waker = Waker{}
		}
	})
}

// OnInterrupt is the interrupt entry point for unit: it takes the Waker
// out of the slot and invokes it. Unknown units are ignored; there is no
// caller to report to.
func (b *Bridge) OnInterrupt(unit UnitID) {
	b.Signal(unit, 0)
}

// Signal is OnInterrupt for handlers that also latch event flags read
// from the peripheral's status register.
func (b *Bridge) Signal(unit UnitID, events uint32) {
	if int(unit) >= b.n {
		return
	}
	WithCS(func(cs CS) {
		u := &(*b.units.Borrow(cs))[unit]
		u.events |= events
		w := u.waker
		u.waker = Waker{}
		if w.IsZero() {
			return
		}
		u.wakes++
		RecordTiming(cs, EvtPeripheralWake, uint16(unit), 0, events, u.wakes)
		w.Wake()
	})
}

// TakeEvents returns and clears the unit's latched event flags
func (b *Bridge) TakeEvents(unit UnitID) uint32 {
	if int(unit) >= b.n {
		return 0
	}
	var ev uint32
	WithCS(func(cs CS) {
		u := &(*b.units.Borrow(cs))[unit]
		ev, u.events = u.events, 0
	})
	return ev
}

// Wakes returns how many Wakers the unit's interrupt has invoked
func (b *Bridge) Wakes(unit UnitID) uint32 {
	if int(unit) >= b.n {
		return 0
	}
	var n uint32
	WithCS(func(cs CS) {
		n = (*b.units.Borrow(cs))[unit].wakes
	})
	return n
}
