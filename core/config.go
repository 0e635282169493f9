package core

// WrapStrategy selects how the narrow hardware counter is extended to a Tick.
type WrapStrategy uint8

const (
	// WrapPeriodIRQ counts overflow and half-period interrupts. Correct as
	// long as the wrap interrupt is never held off for more than half a
	// counter period; its priority must be at least that of every alarm
	// interrupt. Requires the hardware to call Clock.OnPeriod.
	WrapPeriodIRQ WrapStrategy = iota

	// WrapLastValue compares each raw sample with the previous one and
	// assumes exactly one wrap when it went down. Correct as long as the
	// counter is sampled at least once per counter period; the alarm
	// multiplexer's re-arm on early compare matches guarantees that while
	// any timer is pending, everything else is the deployment's job.
	WrapLastValue
)

func (w WrapStrategy) String() string {
	switch w {
	case WrapPeriodIRQ:
		return "period-irq"
	case WrapLastValue:
		return "last-value"
	}
	return "unknown"
}

// Config is fixed at build time by the target and consumed once by
// InitTimeDriver.
type Config struct {
	TickHz        uint32       // Ticks per second
	CounterBits   uint8        // Width of the free-running counter, 8..32
	Wrap          WrapStrategy // Counter extension strategy
	TimerCapacity int          // Logical timers pre-allocated before growing
	Units         int          // Bridged peripheral units
}

// Config defaults
const (
	DefaultTickHz        = 1000000 // 1 tick = 1us
	DefaultCounterBits   = 32
	DefaultTimerCapacity = 16
	DefaultUnits         = 8
)

// DefaultConfig returns the configuration used by 1MHz 32-bit timers.
func DefaultConfig() Config {
	var c Config
	c.applyDefaults()
	return c
}

// applyDefaults fills in zero values
func (c *Config) applyDefaults() {
	if c.TickHz == 0 {
		c.TickHz = DefaultTickHz
	}
	if c.CounterBits == 0 {
		c.CounterBits = DefaultCounterBits
	}
	if c.TimerCapacity == 0 {
		c.TimerCapacity = DefaultTimerCapacity
	}
	if c.Units == 0 {
		c.Units = DefaultUnits
	}
}

// Validate checks a configuration after defaults were applied.
func (c *Config) Validate() error {
	switch {
	case c.CounterBits < 8 || c.CounterBits > 32:
		return &E{C: ErrInvalidConfig, Op: "config", Msg: "counter width must be 8..32 bits"}
	case c.Wrap != WrapPeriodIRQ && c.Wrap != WrapLastValue:
		return &E{C: ErrInvalidConfig, Op: "config", Msg: "unknown wrap strategy"}
	case c.TimerCapacity < 0:
		return &E{C: ErrInvalidConfig, Op: "config", Msg: "negative timer capacity"}
	case c.Units < 0 || c.Units > 255:
		return &E{C: ErrInvalidConfig, Op: "config", Msg: "units must be 0..255"}
	}
	return nil
}
