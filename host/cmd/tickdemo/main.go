// Command tickdemo runs the time driver on simulated timer hardware: more
// periodic tasks than there are alarm slots, a peripheral completion
// bridged from a fake interrupt, and an accelerometer sampler on a fake
// I2C bus. The driver's counters are then read back over the diagnostic
// link, the same way tickmon reads a real board.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"tickcore/core"
	"tickcore/diag"
	"tickcore/executor"
	"tickcore/host/link"
	"tickcore/host/serial"
	"tickcore/sampler"
	"tickcore/sim"
)

var (
	bits    = flag.Uint("bits", 16, "Simulated counter width (8..32)")
	slots   = flag.Int("slots", 2, "Simulated alarm slots")
	timers  = flag.Int("timers", 8, "Periodic tasks to run")
	rounds  = flag.Int("rounds", 20, "Wakes per periodic task")
	step    = flag.Uint64("step", 250, "Ticks the simulated clock moves while idle")
	trace   = flag.Bool("trace", false, "Print the timing trace")
	verbose = flag.Bool("verbose", false, "Print every wake")
)

// dmaUnit is the bridged unit the fake transfer completes on
const dmaUnit core.UnitID = 0

func main() {
	flag.Parse()

	hw := sim.New(uint8(*bits), *slots)
	d, err := core.NewTimeDriver(core.Config{
		CounterBits: uint8(*bits),
		Wrap:        core.WrapPeriodIRQ,
		Units:       2,
	}, hw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for i := 0; i < *slots; i++ {
		hw.OnAlarm(i, d.AlarmHandler(i))
	}
	hw.OnPeriod(d.PeriodHandler())
	core.SetDebugWriter(func(s string) { fmt.Fprintln(os.Stderr, s) })

	e := executor.New(d.Tasks)

	var tickers []*ticker
	for i := 0; i < *timers; i++ {
		period := core.Tick(1000 + 370*i)
		t := &ticker{name: fmt.Sprintf("tick%d", i), delay: d.At(period), period: period, left: *rounds, now: d.Now}
		tickers = append(tickers, t)
		if _, err := e.Spawn(t); err != nil {
			fmt.Fprintf(os.Stderr, "Error: spawn %s: %v\n", t.name, err)
			os.Exit(1)
		}
	}

	xfer := newTransfer(d)
	e.Spawn(xfer)

	acc := sampler.New(d, &accelBus{}, 5000, *rounds)
	e.Spawn(acc)

	// Stand-in for WFI: time passes, and the fake DMA engine finishes
	// once the clock reaches its completion tick.
	e.Idle = func(ctx context.Context) {
		hw.Advance(*step)
		if !xfer.fired && d.Now() >= xfer.completesAt {
			xfer.fired = true
			d.Bridge.Signal(dmaUnit, 0x1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	start := time.Now()
	if err := e.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Simulated %d ticks (%d-bit counter, %d alarm slots) in %s\n",
		d.Now(), *bits, *slots, time.Since(start).Round(time.Millisecond))
	for _, t := range tickers {
		fmt.Printf("  %-6s period %-5d wakes %-3d max late %d\n", t.name, t.period, t.wakes, t.maxLate)
	}
	fmt.Printf("  dma    completed at %d, events %#x\n", xfer.doneAt, xfer.events)
	if s, ok := acc.Latest(); ok {
		fmt.Printf("  accel  %d samples, last x=%d y=%d z=%d\n", acc.Count(), s.X, s.Y, s.Z)
	}
	if err := acc.Err(); err != nil {
		fmt.Printf("  accel  stopped: %v\n", err)
	}

	if err := report(d); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// report reads the counters back through the diagnostic link
func report(d *core.TimeDriver) error {
	boardEnd, hostEnd := serial.Pipe()
	defer boardEnd.Close()
	go diag.NewServer(d).Serve(boardEnd)

	c := link.New(hostEnd, time.Second)
	defer c.Close()

	st, err := c.Stats()
	if err != nil {
		return err
	}
	fmt.Println("\nDriver stats (via diag link):")
	link.PrintStats(os.Stdout, st)

	if *trace {
		events, err := c.Timing()
		if err != nil {
			return err
		}
		fmt.Println("\nTiming trace:")
		for _, e := range events {
			fmt.Println("  " + link.FormatEvent(e))
		}
	}
	return nil
}
