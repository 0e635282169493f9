//go:build rp2040

package main

import (
	"context"
	"device/arm"
	"machine"
	"runtime/interrupt"

	"tickcore/core"
	"tickcore/executor"
	"tickcore/sampler"
)

// drv is the system time driver; the vector table reaches it through the
// handlers installed by installInterrupts.
var drv *core.TimeDriver

const samplePeriod core.Tick = 10000 // 10ms

func main() {
	// Clear any watchdog state left from a previous fatal reset
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	initDebugUART()
	core.SetFatalHandler(resetOnFatal)

	d, err := core.InitTimeDriver(core.Config{
		TickHz:        1000000,
		CounterBits:   32,
		Wrap:          core.WrapPeriodIRQ,
		TimerCapacity: 8,
		Units:         1,
	}, rpTimer{})
	if err != nil {
		core.Fatal(err)
	}
	drv = d
	installInterrupts()

	e := executor.New(d.Tasks)
	// Sleep until the next interrupt. The ready check runs masked: wfi
	// still returns on a pending interrupt, so a wake that lands after the
	// check is not lost.
	e.Idle = func(context.Context) {
		mask := interrupt.Disable()
		if !d.Tasks.AnyReady() {
			arm.Asm("wfi")
		}
		interrupt.Restore(mask)
	}

	spawn(e, "usb", newUSBLink(d))

	if hb, err := startHeartbeat(d, machine.LED); err != nil {
		core.DebugPrintln("[HB] " + err.Error())
	} else {
		spawn(e, "heartbeat", hb)
	}

	bus := machine.I2C0
	if err := bus.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.GP4,
		SCL:       machine.GP5,
	}); err != nil {
		core.DebugPrintln("[I2C] " + err.Error())
	} else {
		spawn(e, "sampler", &accelTask{s: sampler.New(d, bus, samplePeriod, 0)})
	}

	if err := e.Run(context.Background()); err != nil {
		core.Fatal(err)
	}
	// Every task finished; nothing is left that could wake the core.
	for {
		arm.Asm("wfi")
	}
}

func spawn(e *executor.Executor, name string, t executor.Task) {
	if _, err := e.Spawn(t); err != nil {
		core.DebugPrintln("[EXEC] spawn " + name + ": " + err.Error())
	}
}

// accelTask reports why the sampler stopped, if it ever does
type accelTask struct {
	s *sampler.Sampler
}

func (a *accelTask) Poll(w core.Waker) core.Poll {
	if a.s.Poll(w) == core.Pending {
		return core.Pending
	}
	if err := a.s.Err(); err != nil {
		core.DebugPrintln("[ACCEL] " + err.Error())
	}
	return core.Ready
}

// initDebugUART routes debug output to UART0 so it never mixes with the
// framed link on USB.
func initDebugUART() {
	uart := machine.UART0
	if err := uart.Configure(machine.UARTConfig{BaudRate: 115200, TX: machine.UART0_TX_PIN, RX: machine.UART0_RX_PIN}); err != nil {
		return
	}
	debugUART = uart
	core.SetDebugWriter(func(s string) {
		uart.Write([]byte(s))
		uart.Write(crlf)
	})
	core.SetDebugEnabled(true)
}

var (
	debugUART *machine.UART
	crlf      = []byte("\r\n")
)

// writeFatalLine sends one report line. UART writes poll the TX FIFO, so
// this works with interrupts disabled.
func writeFatalLine(line []byte) {
	if debugUART != nil {
		debugUART.Write(line)
		debugUART.Write(crlf)
	}
}

// resetOnFatal reports on UART0 and resets through the watchdog. It may
// run in an interrupt handler with the section held.
func resetOnFatal(cs core.CS, err error) {
	core.WriteFatalReport(cs, err, writeFatalLine)
	if machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1}) == nil {
		machine.Watchdog.Start()
	}
	for {
	}
}
