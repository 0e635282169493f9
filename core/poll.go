package core

// Poll is the result of polling a suspended operation.
type Poll uint8

const (
	Pending Poll = iota // not done; the Waker passed in has been registered
	Ready               // done
)

func (p Poll) String() string {
	if p == Ready {
		return "ready"
	}
	return "pending"
}

// Delay waits until the clock reaches Deadline. Polling registers a
// logical timer on the first call and re-registers only when the caller
// passes a different Waker.
type Delay struct {
	Deadline Tick

	mux    *AlarmMux
	handle TimerHandle
	waker  Waker
	done   bool
}

// NewDelay returns a Delay on mux that completes at deadline
func NewDelay(mux *AlarmMux, deadline Tick) *Delay {
	return &Delay{Deadline: deadline, mux: mux}
}

// Poll returns Ready once the deadline has passed, otherwise makes sure w
// is scheduled for it.
func (d *Delay) Poll(w Waker) Poll {
	if d.done {
		return Ready
	}
	if d.mux.clock.Now() >= d.Deadline {
		d.mux.Cancel(d.handle)
		d.handle = TimerHandle{}
		d.done = true
		return Ready
	}
	if d.handle.Valid() && d.waker == w {
		return Pending
	}
	d.mux.Cancel(d.handle)
	d.handle = d.mux.ScheduleAt(d.Deadline, w)
	d.waker = w
	return Pending
}

// Cancel drops the pending timer, if any. Safe to race with its interrupt.
func (d *Delay) Cancel() {
	d.mux.Cancel(d.handle)
	d.handle = TimerHandle{}
}

// Reset reuses d for a new deadline
func (d *Delay) Reset(deadline Tick) {
	d.Cancel()
	d.Deadline = deadline
	d.done = false
}

// PeripheralWait waits for a bridged unit to report ready.
type PeripheralWait struct {
	bridge *Bridge
	unit   UnitID
	ready  func() bool
	waker  Waker
	err    error
}

// NewPeripheralWait waits on unit until ready returns true. ready reads
// the hardware status and must not block.
func NewPeripheralWait(b *Bridge, unit UnitID, ready func() bool) *PeripheralWait {
	return &PeripheralWait{bridge: b, unit: unit, ready: ready}
}

// Poll registers w, then checks the hardware. Registering first means an
// interrupt that arrives between the two steps still finds a Waker.
func (p *PeripheralWait) Poll(w Waker) Poll {
	if err := p.bridge.Register(p.unit, w); err != nil {
		// Nothing will ever wake an unknown unit; finish with the error.
		p.err = err
		return Ready
	}
	p.waker = w
	if p.ready() {
		p.bridge.Unregister(p.unit, w)
		p.waker = Waker{}
		return Ready
	}
	return Pending
}

// Err returns why a wait finished without the unit becoming ready
func (p *PeripheralWait) Err() error { return p.err }

// Cancel withdraws the registered Waker. If the interrupt already took it,
// there is nothing left to do.
func (p *PeripheralWait) Cancel() {
	if !p.waker.IsZero() {
		p.bridge.Unregister(p.unit, p.waker)
		p.waker = Waker{}
	}
}
