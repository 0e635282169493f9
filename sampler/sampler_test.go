package sampler

import (
	"errors"
	"testing"

	"tickcore/core"
	"tickcore/executor"
	"tickcore/sim"
)

// fakeBus answers like an ADXL345 whose X axis counts reads
type fakeBus struct {
	id     byte
	reads  int
	writes map[byte]byte
	fail   error
}

func (b *fakeBus) Tx(addr uint16, w, r []byte) error {
	if b.fail != nil {
		return b.fail
	}
	if addr != 0x53 {
		return errors.New("nack")
	}
	if r == nil {
		if b.writes == nil {
			b.writes = map[byte]byte{}
		}
		b.writes[w[0]] = w[1]
		return nil
	}
	switch w[0] {
	case 0x00:
		r[0] = b.id
	case 0x32:
		b.reads++
		r[0], r[1] = byte(b.reads), 0
		r[2], r[3] = 0xFF, 0xFF // y = -1
		r[4], r[5] = 0x00, 0x01 // z = 256
	}
	return nil
}

func setup(t *testing.T) (*core.TimeDriver, *sim.Timer, *executor.Executor) {
	t.Helper()
	hw := sim.New(32, 2)
	d, err := core.NewTimeDriver(core.DefaultConfig(), hw)
	if err != nil {
		t.Fatalf("NewTimeDriver failed: %v", err)
	}
	hw.OnAlarm(0, d.AlarmHandler(0))
	hw.OnAlarm(1, d.AlarmHandler(1))
	return d, hw, executor.New(d.Tasks)
}

func TestSamplerReadsEveryPeriod(t *testing.T) {
	d, hw, e := setup(t)
	bus := &fakeBus{id: 0xE5}
	s := New(d, bus, 1000, 5)
	e.Spawn(s)

	e.RunOnce()
	if bus.writes[0x2D] != 0x08 {
		t.Errorf("Expected measure mode written to POWER_CTL, got %#x", bus.writes[0x2D])
	}
	if s.Count() != 0 {
		t.Fatal("sampled before the first period elapsed")
	}

	for i := 1; i <= 5; i++ {
		hw.Advance(999)
		e.RunOnce()
		if s.Count() != uint32(i-1) {
			t.Fatalf("sample %d taken early", i)
		}
		hw.Advance(1)
		e.RunOnce()
		if s.Count() != uint32(i) {
			t.Fatalf("Expected %d samples at %d, got %d", i, d.Now(), s.Count())
		}
	}
	if e.Len() != 0 {
		t.Error("sampler should complete after its limit")
	}

	last, ok := s.Latest()
	if !ok || last.X != 5 || last.Y != -1 || last.Z != 256 || last.At != 5000 {
		t.Errorf("unexpected last sample %+v", last)
	}
	samples := s.Samples()
	if len(samples) != 5 || samples[0].At != 1000 {
		t.Errorf("unexpected samples %+v", samples)
	}
}

func TestSamplerSkipsMissedPeriods(t *testing.T) {
	d, hw, e := setup(t)
	s := New(d, &fakeBus{id: 0xE5}, 100, 0)
	e.Spawn(s)
	e.RunOnce()

	// The executor was busy for three and a half periods
	hw.Advance(350)
	e.RunOnce()
	if s.Count() != 1 || s.Missed() != 2 {
		t.Fatalf("Expected 1 sample and 2 missed, got %d and %d", s.Count(), s.Missed())
	}

	// Back on the original grid
	hw.Advance(49)
	e.RunOnce()
	if s.Count() != 1 {
		t.Fatal("sampled off the period grid")
	}
	hw.Advance(1)
	e.RunOnce()
	if s.Count() != 2 {
		t.Errorf("Expected a sample at 400, got %d samples", s.Count())
	}
}

func TestSamplerNoSensor(t *testing.T) {
	d, _, e := setup(t)
	s := New(d, &fakeBus{id: 0x00}, 100, 0)
	e.Spawn(s)
	e.RunOnce()
	if !errors.Is(s.Err(), ErrNoSensor) {
		t.Errorf("Expected ErrNoSensor, got %v", s.Err())
	}
	if e.Len() != 0 {
		t.Error("sampler without a sensor should finish")
	}

	s = New(d, &fakeBus{fail: errors.New("bus stuck")}, 100, 0)
	e.Spawn(s)
	e.RunOnce()
	if s.Err() == nil || errors.Unwrap(s.Err()) == nil {
		t.Errorf("Expected the bus error to be wrapped, got %v", s.Err())
	}
}

func TestSamplesRingWraps(t *testing.T) {
	d, hw, e := setup(t)
	s := New(d, &fakeBus{id: 0xE5}, 10, 0)
	e.Spawn(s)
	e.RunOnce()
	for i := 0; i < RingSize+4; i++ {
		hw.Advance(10)
		e.RunOnce()
	}
	samples := s.Samples()
	if len(samples) != RingSize {
		t.Fatalf("Expected %d kept samples, got %d", RingSize, len(samples))
	}
	if samples[0].X != 5 || samples[RingSize-1].X != RingSize+4 {
		t.Errorf("Expected samples 5..%d, got %d..%d", RingSize+4, samples[0].X, samples[RingSize-1].X)
	}
}
