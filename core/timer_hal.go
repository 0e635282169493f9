package core

// CounterReader reads the free-running hardware counter.
type CounterReader interface {
	// Counter returns the raw counter value. Only the low CounterBits
	// bits are meaningful.
	Counter() uint32
}

// AlarmHardware is the register access capability the time driver is built
// on: one free-running counter plus a fixed number of compare alarms, each
// with its own interrupt vector. Platform code implements it over the
// memory-mapped timer; sim implements it on the host.
//
// All methods are called with interrupts disabled and must not block.
type AlarmHardware interface {
	CounterReader

	// Alarms returns the number of compare alarms available as slots
	Alarms() int

	// SetAlarm programs the compare register of slot and arms it. The
	// alarm fires when the counter moves onto value; a value the counter
	// has already passed fires only after the counter wraps.
	SetAlarm(slot int, value uint32)

	// DisarmAlarm stops slot from firing
	DisarmAlarm(slot int)

	// AckAlarm clears the fired flag of slot
	AckAlarm(slot int)

	// PendAlarm forces the interrupt of slot pending so its handler runs
	// as soon as interrupts are enabled again
	PendAlarm(slot int)
}
