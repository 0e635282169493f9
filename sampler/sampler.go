// Package sampler reads an ADXL345 accelerometer at a fixed rate from a
// poll-style task, using a logical timer between reads.
package sampler

import (
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/adxl345"

	"tickcore/core"
)

// RingSize is the number of samples kept
const RingSize = 16

const (
	regDevID = 0x00
	devID    = 0xE5
)

// Sample is one acceleration reading in raw sensor units
type Sample struct {
	At      core.Tick
	X, Y, Z int16
}

// Sampler is a Task that reads the sensor every Period ticks. Deadlines
// advance by Period from the first one, so a late wake does not shift
// later samples; a wake that comes a full period late counts as missed.
type Sampler struct {
	bus    drivers.I2C
	dev    adxl345.Device
	period core.Tick
	limit  int
	delay  *core.Delay
	now    func() core.Tick

	started bool
	err     error

	ring   [RingSize]Sample
	head   int
	count  uint32
	missed uint32
}

// New returns a sampler over bus that takes limit samples, or runs
// forever when limit is 0. The bus must already be configured.
func New(d *core.TimeDriver, bus drivers.I2C, period core.Tick, limit int) *Sampler {
	if period == 0 {
		period = 1
	}
	return &Sampler{
		bus:    bus,
		dev:    adxl345.New(bus),
		period: period,
		limit:  limit,
		delay:  d.At(d.Now() + period),
		now:    d.Now,
	}
}

// Poll implements executor.Task
func (s *Sampler) Poll(w core.Waker) core.Poll {
	if !s.started {
		if err := s.probe(); err != nil {
			s.err = err
			return core.Ready
		}
		s.dev.Configure()
		s.started = true
	}
	for s.delay.Poll(w) == core.Ready {
		due := s.delay.Deadline
		now := s.now()
		if now-due >= s.period {
			// Skip the deadlines that already passed.
			n := (now - due) / s.period
			s.missed += uint32(n)
			due += n * s.period
		}
		s.read(now)
		if s.limit > 0 && int(s.count) >= s.limit {
			return core.Ready
		}
		s.delay.Reset(due + s.period)
	}
	return core.Pending
}

// probe checks the device answers with the ADXL345 id
func (s *Sampler) probe() error {
	id := []byte{0}
	if err := s.bus.Tx(s.dev.Address, []byte{regDevID}, id); err != nil {
		return &core.E{C: ErrNoSensor, Op: "sampler.probe", Err: err}
	}
	if id[0] != devID {
		return &core.E{C: ErrNoSensor, Op: "sampler.probe", Msg: "unexpected device id"}
	}
	return nil
}

func (s *Sampler) read(now core.Tick) {
	x, y, z := s.dev.ReadRawAcceleration()
	s.ring[s.head] = Sample{At: now, X: x, Y: y, Z: z}
	s.head = (s.head + 1) % RingSize
	s.count++
}

// ErrNoSensor means the bus has no ADXL345 at the expected address
const ErrNoSensor core.Code = "no_sensor"

// Err returns why the sampler stopped early, if it did
func (s *Sampler) Err() error { return s.err }

// Count returns the number of samples taken
func (s *Sampler) Count() uint32 { return s.count }

// Missed returns the number of sample periods skipped because the task
// ran too late
func (s *Sampler) Missed() uint32 { return s.missed }

// Latest returns the most recent sample
func (s *Sampler) Latest() (Sample, bool) {
	if s.count == 0 {
		return Sample{}, false
	}
	return s.ring[(s.head+RingSize-1)%RingSize], true
}

// Samples returns the kept samples, oldest first
func (s *Sampler) Samples() []Sample {
	n := int(s.count)
	if n > RingSize {
		n = RingSize
	}
	out := make([]Sample, 0, n)
	start := (s.head + RingSize - n) % RingSize
	for i := 0; i < n; i++ {
		out = append(out, s.ring[(start+i)%RingSize])
	}
	return out
}
