//go:build rp2040

package main

import (
	"machine"

	pio "github.com/tinygo-org/pio/rp2-pio"

	"tickcore/core"
)

// The heartbeat is a PIO0 state machine that counts down in a delay loop
// and raises SM IRQ flag 0 once per round. Its interrupt is bridged to
// heartbeatUnit, so a task can await it like any other peripheral.
const (
	heartbeatUnit core.UnitID = 0
	heartbeatSM               = 0
	heartbeatFlag             = 0
	heartbeatDiv              = 0xFFFF // ~1.9kHz SM clock at 125MHz

	evtBeat uint32 = 1 << 0
)

// delay encodes the delay field; pio.EncodeDelay masks it away.
func delay(cycles uint8) uint16 { return uint16(cycles&0x1f) << 8 }

// heartbeatProgram:
//
//	0: set x, 31
//	1: jmp x--, 1 [31]
//	2: irq nowait 0
var heartbeatProgram = []uint16{
	pio.EncodeSet(pio.SrcDestX, 31),
	pio.EncodeJmp(1, pio.JmpXNZeroDec) | delay(31),
	pio.EncodeIRQSet(false, heartbeatFlag),
}

type heartbeat struct {
	owned *core.Owned
	sm    pio.StateMachine
	wait  *core.PeripheralWait
	led   machine.Pin
	on    bool
	seen  uint32
	beats uint32
}

// startHeartbeat takes the unit and the state machine, loads the program
// and unmasks the SM flag on PIO0's first interrupt line.
func startHeartbeat(d *core.TimeDriver, led machine.Pin) (*heartbeat, error) {
	owned, err := d.Peripherals.Take(heartbeatUnit)
	if err != nil {
		return nil, err
	}
	sm := pio.PIO0.StateMachine(heartbeatSM)
	if !sm.TryClaim() {
		owned.Release()
		return nil, core.ErrPeripheralAlreadyOwned
	}
	offset, err := pio.PIO0.AddProgram(heartbeatProgram, -1)
	if err != nil {
		sm.Unclaim()
		owned.Release()
		return nil, err
	}

	cfg := pio.DefaultStateMachineConfig()
	cfg.SetWrap(offset, offset+uint8(len(heartbeatProgram))-1)
	cfg.SetClkDivIntFrac(heartbeatDiv, 0)
	sm.Init(offset, cfg)

	// SM flags 0..3 sit at bits 8..11 of IRQ0_INTE
	pio.PIO0.ClearIRQ(1 << heartbeatFlag)
	pio.PIO0.HW().IRQ_INT[0].E.SetBits(1 << (8 + heartbeatFlag))
	sm.SetEnabled(true)

	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	h := &heartbeat{owned: owned, sm: sm, led: led}
	h.wait = d.WaitFor(heartbeatUnit, func() bool {
		h.seen |= d.Bridge.TakeEvents(heartbeatUnit)
		return h.seen&evtBeat != 0
	})
	return h, nil
}

// heartbeatIRQ is the PIO0_IRQ_0 handler body: clear the SM flag so the
// line drops, then hand the event to the bridge.
func heartbeatIRQ(b *core.Bridge) func() {
	return func() {
		pio.PIO0.ClearIRQ(1 << heartbeatFlag)
		b.Signal(heartbeatUnit, evtBeat)
	}
}

// Poll implements executor.Task. It never completes.
func (h *heartbeat) Poll(w core.Waker) core.Poll {
	for h.wait.Poll(w) == core.Ready {
		if err := h.wait.Err(); err != nil {
			core.DebugPrintln("[HB] " + err.Error())
			return core.Ready
		}
		h.seen = 0
		h.beats++
		h.on = !h.on
		h.led.Set(h.on)
	}
	return core.Pending
}
