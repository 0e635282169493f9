//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"tickcore/core"
)

// RP2040 TIMER peripheral. The counter is a free-running 64-bit
// microsecond count; the four alarms compare against its low word only.
const timerBase = 0x40054000

type timerHW struct {
	TIMEHW   volatile.Register32    // 0x00
	TIMELW   volatile.Register32    // 0x04
	TIMEHR   volatile.Register32    // 0x08
	TIMELR   volatile.Register32    // 0x0C
	ALARM    [4]volatile.Register32 // 0x10..0x1C
	ARMED    volatile.Register32    // 0x20, write 1 to disarm
	TIMERAWH volatile.Register32    // 0x24
	TIMERAWL volatile.Register32    // 0x28
	DBGPAUSE volatile.Register32    // 0x2C
	PAUSE    volatile.Register32    // 0x30
	INTR     volatile.Register32    // 0x34, write 1 to clear
	INTE     volatile.Register32    // 0x38
	INTF     volatile.Register32    // 0x3C
	INTS     volatile.Register32    // 0x40
}

var timer = (*timerHW)(unsafe.Pointer(uintptr(timerBase)))

// Alarm 0 belongs to the TinyGo runtime's sleep. Alarms 1 and 2 are the
// driver's slots and alarm 3 raises the half-period interrupt.
const (
	firstSlotAlarm = 1
	slotAlarms     = 2
	periodAlarm    = 3
	halfPeriod     = uint32(1) << 31
)

// rpTimer implements core.AlarmHardware over the TIMER block
type rpTimer struct{}

func (rpTimer) Counter() uint32 { return timer.TIMERAWL.Get() }

func (rpTimer) Alarms() int { return slotAlarms }

func (rpTimer) SetAlarm(slot int, value uint32) {
	// Writing the compare register arms the alarm
	timer.ALARM[firstSlotAlarm+slot].Set(value)
}

func (rpTimer) DisarmAlarm(slot int) {
	timer.ARMED.Set(1 << (firstSlotAlarm + slot))
}

func (rpTimer) AckAlarm(slot int) {
	bit := uint32(1) << (firstSlotAlarm + slot)
	timer.INTF.ClearBits(bit)
	timer.INTR.Set(bit)
}

func (rpTimer) PendAlarm(slot int) {
	timer.INTF.SetBits(1 << (firstSlotAlarm + slot))
}

// enableAlarms clears stale flags and unmasks the driver's alarms plus the
// period alarm. Called before the vectors are enabled.
func enableAlarms() {
	var mask uint32
	for a := firstSlotAlarm; a < firstSlotAlarm+slotAlarms; a++ {
		mask |= 1 << a
	}
	mask |= 1 << periodAlarm
	timer.ARMED.Set(mask)
	timer.INTF.ClearBits(mask)
	timer.INTR.Set(mask)
	timer.INTE.SetBits(mask)
	armPeriod(timer.TIMERAWL.Get())
}

// armPeriod programs the period alarm for the next half-period boundary
// after raw. If the counter moved past it while the compare was being
// written and the alarm is still armed, the match was missed and the
// interrupt is forced instead.
func armPeriod(raw uint32) {
	bit := uint32(1) << periodAlarm
	next := (raw &^ (halfPeriod - 1)) + halfPeriod
	timer.ALARM[periodAlarm].Set(next)
	if int32(timer.TIMERAWL.Get()-next) > 0 && timer.ARMED.HasBits(bit) {
		timer.ARMED.Set(bit)
		timer.INTF.SetBits(bit)
	}
}

// ackPeriod clears the period alarm and re-arms it for the following
// boundary. The boundary just crossed is the one the alarm held.
func ackPeriod() {
	bit := uint32(1) << periodAlarm
	timer.INTF.ClearBits(bit)
	timer.INTR.Set(bit)
	armPeriod(timer.ALARM[periodAlarm].Get())
}

var _ core.AlarmHardware = rpTimer{}
