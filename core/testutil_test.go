package core

import (
	"testing"

	"tickcore/sim"
)

// newSimDriver builds a driver over a simulated timer with every vector
// wired the way a target wires its interrupt table.
func newSimDriver(t *testing.T, bits uint8, slots int) (*TimeDriver, *sim.Timer) {
	t.Helper()
	hw := sim.New(bits, slots)
	d, err := NewTimeDriver(Config{
		CounterBits:   bits,
		Wrap:          WrapPeriodIRQ,
		TimerCapacity: 4,
		Units:         4,
	}, hw)
	if err != nil {
		t.Fatalf("NewTimeDriver failed: %v", err)
	}
	for i := 0; i < slots; i++ {
		hw.OnAlarm(i, d.AlarmHandler(i))
	}
	hw.OnPeriod(d.PeriodHandler())
	return d, hw
}

// newTask registers a task and returns its id and Waker
func newTask(t *testing.T, reg *Registry) (TaskID, Waker) {
	t.Helper()
	id, w, err := reg.Register()
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return id, w
}

// captureFatal swaps in a fatal handler that records instead of panicking
func captureFatal(t *testing.T) *[]error {
	t.Helper()
	var got []error
	old := fatalHandler
	fatalHandler = func(_ CS, err error) { got = append(got, err) }
	t.Cleanup(func() { fatalHandler = old })
	return &got
}

// fakeCounter is a counter the test moves by hand, with no interrupts
type fakeCounter struct {
	v uint32
}

func (f *fakeCounter) Counter() uint32 { return f.v }
