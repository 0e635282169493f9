package core

import "time"

// TimeDriver bundles the state the time driver owns: the clock, the alarm
// multiplexer, the peripheral bridge and ownership arena, and the task
// registry wakers point into. Targets build it once at boot.
type TimeDriver struct {
	cfg         Config
	Clock       *Clock
	Alarms      *AlarmMux
	Bridge      *Bridge
	Peripherals *Peripherals
	Tasks       *Registry
}

// Stats is a snapshot of driver activity
type Stats struct {
	Timers          TimerStats
	Pending         int
	PeripheralWakes uint32
	TaskWakes       uint32
}

// NewTimeDriver builds a driver over hw. Most code wants InitTimeDriver;
// this constructor is for tests and tools that run several instances.
func NewTimeDriver(cfg Config, hw AlarmHardware) (*TimeDriver, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clock := NewClock(hw, cfg.CounterBits, cfg.Wrap)
	return &TimeDriver{
		cfg:         cfg,
		Clock:       clock,
		Alarms:      NewAlarmMux(hw, clock, cfg.TimerCapacity),
		Bridge:      NewBridge(cfg.Units),
		Peripherals: NewPeripherals(cfg.Units),
		Tasks:       NewRegistry(),
	}, nil
}

// Global singleton used by the package-level API.
var timeDriver *TimeDriver

// InitTimeDriver builds the system time driver. It may run once; there is
// no re-initialization path.
func InitTimeDriver(cfg Config, hw AlarmHardware) (*TimeDriver, error) {
	if timeDriver != nil {
		return nil, &E{C: ErrAlreadyInitialized, Op: "time.init"}
	}
	d, err := NewTimeDriver(cfg, hw)
	if err != nil {
		return nil, err
	}
	timeDriver = d
	return d, nil
}

// Driver returns the system time driver or panics if it was never built.
func Driver() *TimeDriver {
	if timeDriver == nil {
		panic("time driver not initialized")
	}
	return timeDriver
}

// Config returns the build-time configuration the driver runs with
func (d *TimeDriver) Config() Config { return d.cfg }

// Now returns the current tick
func (d *TimeDriver) Now() Tick { return d.Clock.Now() }

// After returns a Delay that completes dur from now
func (d *TimeDriver) After(dur time.Duration) *Delay {
	return NewDelay(d.Alarms, d.Now()+TicksFromDuration(dur, d.cfg.TickHz))
}

// At returns a Delay that completes at deadline
func (d *TimeDriver) At(deadline Tick) *Delay {
	return NewDelay(d.Alarms, deadline)
}

// WaitFor returns a wait on a bridged unit
func (d *TimeDriver) WaitFor(unit UnitID, ready func() bool) *PeripheralWait {
	return NewPeripheralWait(d.Bridge, unit, ready)
}

// AlarmHandler returns the entry point for the vector of alarm slot. The
// returned function takes no arguments and returns nothing, matching
// what a vector table calls.
func (d *TimeDriver) AlarmHandler(slot int) func() {
	return func() { d.Alarms.OnAlarmFired(slot) }
}

// PeriodHandler returns the entry point for the counter wrap interrupt
func (d *TimeDriver) PeriodHandler() func() {
	return d.Clock.OnPeriod
}

// PeripheralHandler returns the entry point for a bridged unit's vector
func (d *TimeDriver) PeripheralHandler(unit UnitID) func() {
	return func() { d.Bridge.OnInterrupt(unit) }
}

// Stats returns a snapshot of driver counters
func (d *TimeDriver) Stats() Stats {
	st := Stats{
		Timers:    d.Alarms.Stats(),
		Pending:   d.Alarms.Pending(),
		TaskWakes: d.Tasks.Wakes(),
	}
	for u := 0; u < d.Bridge.Units(); u++ {
		st.PeripheralWakes += d.Bridge.Wakes(UnitID(u))
	}
	return st
}

// Now returns the current tick of the system time driver
func Now() Tick { return Driver().Now() }

// ScheduleAt schedules w on the system time driver
func ScheduleAt(deadline Tick, w Waker) TimerHandle {
	return Driver().Alarms.ScheduleAt(deadline, w)
}

// Cancel cancels a timer on the system time driver
func Cancel(h TimerHandle) { Driver().Alarms.Cancel(h) }

// RegisterPeripheralWaker registers w for a bridged unit on the system
// time driver
func RegisterPeripheralWaker(unit UnitID, w Waker) error {
	return Driver().Bridge.Register(unit, w)
}
