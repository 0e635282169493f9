package core

// TimerStats counts alarm multiplexer activity since boot
type TimerStats struct {
	Scheduled   uint32 // ScheduleAt calls
	Fired       uint32 // Wakers invoked for expired deadlines
	Late        uint32 // Deadlines already due when they were armed
	Cancelled   uint32 // Pending timers removed by Cancel
	Evicted     uint32 // Armed timers pushed back to the queue by an earlier one
	Promoted    uint32 // Queued timers moved into a slot
	Rearmed     uint32 // Compare matches that came a counter period early
	PeakPending int    // Largest number of simultaneously pending timers
}

// AlarmMux implements any number of logical timers on top of the
// hardware's few compare alarms. The earliest pending deadlines, one per
// slot, are armed in hardware; the rest wait in a software queue and are
// promoted as slots free up.
//
// Deadlines are programmed by their low counter bits. A deadline more than
// one counter period away therefore matches early; the handler notices
// the deadline is still in the future and re-arms without waking.
type AlarmMux struct {
	hw    AlarmHardware
	clock *Clock
	state Mutex[muxState]
}

type muxState struct {
	timerTable
	slots []int32 // armed timer per slot, -1 when idle
	stats TimerStats
}

// NewAlarmMux takes ownership of every alarm hw reports.
func NewAlarmMux(hw AlarmHardware, clock *Clock, capacity int) *AlarmMux {
	m := &AlarmMux{hw: hw, clock: clock}
	WithCS(func(cs CS) {
		s := m.state.Borrow(cs)
		s.init(capacity)
		s.slots = make([]int32, hw.Alarms())
		for i := range s.slots {
			s.slots[i] = -1
			hw.DisarmAlarm(i)
			hw.AckAlarm(i)
		}
	})
	return m
}

// Slots returns the number of hardware alarm slots
func (m *AlarmMux) Slots() int { return m.hw.Alarms() }

// ScheduleAt registers w to be woken once the clock reaches deadline. It
// always succeeds: timers beyond the slot count are queued in software. A
// deadline that is already due is handed to the slot's interrupt, so w
// still fires from interrupt context.
func (m *AlarmMux) ScheduleAt(deadline Tick, w Waker) TimerHandle {
	var h TimerHandle
	WithCS(func(cs CS) {
		s := m.state.Borrow(cs)
		id := s.alloc(deadline, w)
		h = TimerHandle{id: id, gen: s.timers[id].gen}
		s.stats.Scheduled++
		if p := s.pending(); p > s.stats.PeakPending {
			s.stats.PeakPending = p
		}
		RecordTiming(cs, EvtSchedule, uint16(id), uint32(m.clock.nowCS(cs)), uint32(deadline), uint32(deadline>>32))
		m.place(cs, s, id)
	})
	return h
}

// place arms id in a slot if it is among the earliest pending timers,
// otherwise queues it.
func (m *AlarmMux) place(cs CS, s *muxState, id int32) {
	slot := -1
	latest := -1
	for i, armed := range s.slots {
		if armed < 0 {
			slot = i
			break
		}
		if latest < 0 || s.before(s.slots[latest], armed) {
			latest = i
		}
	}
	if slot < 0 {
		victim := s.slots[latest]
		if !s.before(id, victim) {
			s.push(id)
			return
		}
		s.slots[latest] = -1
		s.push(victim)
		s.stats.Evicted++
		RecordTiming(cs, EvtEvict, uint16(victim), 0, uint32(latest), 0)
		slot = latest
	}
	if m.arm(cs, s, slot, id) {
		// Already due: let the interrupt fire it.
		m.hw.PendAlarm(slot)
	}
}

// arm programs slot for id and reports whether the deadline was already
// reached once the compare register was written. The check comes after
// the write so a counter that passes the value mid-update is not missed.
func (m *AlarmMux) arm(cs CS, s *muxState, slot int, id int32) bool {
	t := &s.timers[id]
	t.state = timerArmed
	t.slot = int8(slot)
	t.index = -1
	s.slots[slot] = id
	m.hw.SetAlarm(slot, uint32(t.deadline)&m.clock.mask)
	now := m.clock.nowCS(cs)
	RecordTiming(cs, EvtArm, uint16(id), uint32(now), uint32(t.deadline), uint32(slot))
	if t.deadline <= now {
		s.stats.Late++
		RecordTiming(cs, EvtLateFire, uint16(id), uint32(now), uint32(t.deadline), uint32(slot))
		return true
	}
	return false
}

// Cancel removes a pending timer. Cancelling a timer that already fired,
// or was already cancelled, does nothing.
func (m *AlarmMux) Cancel(h TimerHandle) {
	WithCS(func(cs CS) {
		s := m.state.Borrow(cs)
		id := s.lookup(h)
		if id < 0 {
			return
		}
		t := &s.timers[id]
		switch t.state {
		case timerQueued:
			s.unqueue(id)
		case timerArmed:
			slot := int(t.slot)
			s.slots[slot] = -1
			m.hw.DisarmAlarm(slot)
			if next := s.pop(); next >= 0 {
				s.stats.Promoted++
				RecordTiming(cs, EvtPromote, uint16(next), 0, uint32(slot), 0)
				if m.arm(cs, s, slot, next) {
					m.hw.PendAlarm(slot)
				}
			}
		}
		s.release(id)
		s.stats.Cancelled++
		RecordTiming(cs, EvtCancel, uint16(id), 0, 0, 0)
	})
}

// OnAlarmFired is the interrupt entry point for slot. It is the only path
// that compares the clock against armed deadlines and invokes Wakers.
// Each pass runs in its own short critical section so a backlog of
// expired timers does not hold interrupts off for the whole batch.
func (m *AlarmMux) OnAlarmFired(slot int) {
	if slot < 0 || slot >= m.hw.Alarms() {
		return
	}
	WithCS(func(cs CS) {
		m.hw.AckAlarm(slot)
	})
	for m.service(slot) {
	}
}

// service handles the timer in slot once and reports whether the slot
// holds a timer that is already due and needs another pass.
func (m *AlarmMux) service(slot int) bool {
	again := false
	WithCS(func(cs CS) {
		s := m.state.Borrow(cs)
		id := s.slots[slot]
		if id < 0 {
			// Cancelled after the interrupt was raised.
			m.hw.DisarmAlarm(slot)
			return
		}
		t := &s.timers[id]
		now := m.clock.nowCS(cs)
		if t.deadline > now {
			// Early match from an earlier counter period, or a
			// spurious interrupt left over from a cancel.
			s.stats.Rearmed++
			again = m.arm(cs, s, slot, id)
			return
		}

		w := t.waker
		s.slots[slot] = -1
		s.release(id)
		s.stats.Fired++
		RecordTiming(cs, EvtFire, uint16(id), uint32(now), uint32(t.deadline), uint32(slot))
		w.Wake()

		next := s.pop()
		if next < 0 {
			m.hw.DisarmAlarm(slot)
			return
		}
		s.stats.Promoted++
		RecordTiming(cs, EvtPromote, uint16(next), uint32(now), uint32(slot), 0)
		again = m.arm(cs, s, slot, next)
	})
	return again
}

// Pending returns the number of timers not yet fired or cancelled
func (m *AlarmMux) Pending() int {
	n := 0
	WithCS(func(cs CS) {
		n = m.state.Borrow(cs).pending()
	})
	return n
}

// Armed returns the deadline armed in each slot, Never for idle slots.
func (m *AlarmMux) Armed() []Tick {
	var out []Tick
	WithCS(func(cs CS) {
		s := m.state.Borrow(cs)
		out = make([]Tick, len(s.slots))
		for i, id := range s.slots {
			out[i] = Never
			if id >= 0 {
				out[i] = s.timers[id].deadline
			}
		}
	})
	return out
}

// NextDeadline returns the earliest pending deadline, or Never
func (m *AlarmMux) NextDeadline() Tick {
	next := Never
	WithCS(func(cs CS) {
		s := m.state.Borrow(cs)
		for _, id := range s.slots {
			if id >= 0 && s.timers[id].deadline < next {
				next = s.timers[id].deadline
			}
		}
		if id := s.peek(); id >= 0 && s.timers[id].deadline < next {
			next = s.timers[id].deadline
		}
	})
	return next
}

// Stats returns a snapshot of the counters
func (m *AlarmMux) Stats() TimerStats {
	var st TimerStats
	WithCS(func(cs CS) {
		st = m.state.Borrow(cs).stats
	})
	return st
}
