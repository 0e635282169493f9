package main

import (
	"fmt"

	"tickcore/core"
)

// ticker wakes every period ticks for a fixed number of rounds
type ticker struct {
	name    string
	delay   *core.Delay
	period  core.Tick
	left    int
	wakes   int
	maxLate core.Tick
	now     func() core.Tick
}

func (t *ticker) Poll(w core.Waker) core.Poll {
	for t.delay.Poll(w) == core.Ready {
		now := t.now()
		late := now - t.delay.Deadline
		if late > t.maxLate {
			t.maxLate = late
		}
		t.wakes++
		if *verbose {
			fmt.Printf("%10d %s wake %d (late %d)\n", now, t.name, t.wakes, late)
		}
		t.left--
		if t.left <= 0 {
			return core.Ready
		}
		t.delay.Reset(t.delay.Deadline + t.period)
	}
	return core.Pending
}

// transfer waits for a bridged completion interrupt
type transfer struct {
	wait        *core.PeripheralWait
	d           *core.TimeDriver
	completesAt core.Tick
	fired       bool
	doneAt      core.Tick
	events      uint32
}

func newTransfer(d *core.TimeDriver) *transfer {
	x := &transfer{d: d, completesAt: d.Now() + 12345}
	x.wait = d.WaitFor(dmaUnit, func() bool { return x.fired })
	return x
}

func (x *transfer) Poll(w core.Waker) core.Poll {
	if x.wait.Poll(w) == core.Pending {
		return core.Pending
	}
	x.doneAt = x.d.Now()
	x.events = x.d.Bridge.TakeEvents(dmaUnit)
	return core.Ready
}

// accelBus is an I2C bus with an ADXL345 that reports a slow tilt
type accelBus struct {
	reads int
}

func (b *accelBus) Tx(addr uint16, w, r []byte) error {
	if len(r) == 0 {
		return nil // register writes
	}
	switch w[0] {
	case 0x00:
		r[0] = 0xE5
	case 0x32:
		b.reads++
		x, y, z := int16(b.reads*3), int16(-b.reads), int16(256)
		r[0], r[1] = byte(x), byte(uint16(x)>>8)
		r[2], r[3] = byte(y), byte(uint16(y)>>8)
		r[4], r[5] = byte(z), byte(uint16(z)>>8)
	}
	return nil
}
