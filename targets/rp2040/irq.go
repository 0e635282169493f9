//go:build rp2040

package main

import (
	"device/rp"
	"runtime/interrupt"
)

// Vector entry points. They are set once in installInterrupts, before any
// vector is enabled, and never change after.
var (
	onAlarm  [slotAlarms]func()
	onPeriod func()
	onPIO    func()
)

// The period interrupt gets the highest priority so the clock's half
// period bookkeeping is never delayed by an alarm handler.
const (
	periodPriority = 0x40
	alarmPriority  = 0x80
	pioPriority    = 0xC0
)

func installInterrupts() {
	onAlarm[0] = drv.AlarmHandler(0)
	onAlarm[1] = drv.AlarmHandler(1)
	onPeriod = drv.PeriodHandler()
	onPIO = heartbeatIRQ(drv.Bridge)

	enableAlarms()

	period := interrupt.New(rp.IRQ_TIMER_IRQ_3, func(interrupt.Interrupt) {
		ackPeriod()
		onPeriod()
	})
	period.SetPriority(periodPriority)
	period.Enable()

	a1 := interrupt.New(rp.IRQ_TIMER_IRQ_1, func(interrupt.Interrupt) {
		onAlarm[0]()
	})
	a1.SetPriority(alarmPriority)
	a1.Enable()

	a2 := interrupt.New(rp.IRQ_TIMER_IRQ_2, func(interrupt.Interrupt) {
		onAlarm[1]()
	})
	a2.SetPriority(alarmPriority)
	a2.Enable()

	pio := interrupt.New(rp.IRQ_PIO0_IRQ_0, func(interrupt.Interrupt) {
		onPIO()
	})
	pio.SetPriority(pioPriority)
	pio.Enable()
}
