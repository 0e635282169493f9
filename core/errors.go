package core

// Code is a stable error identifier. It is a string newtype: comparable,
// allocation-free, and usable as an error from interrupt context.
type Code string

func (c Code) Error() string { return string(c) }

const (
	// ErrPeripheralAlreadyOwned is returned by Peripherals.Take when the
	// unit is held by someone else. Callers may wait, retry or propagate.
	ErrPeripheralAlreadyOwned Code = "peripheral_already_owned"

	// ErrClockWraparound means a counter sample landed before the last
	// returned tick. Every timing guarantee is void afterwards, so it is
	// only ever passed to Fatal.
	ErrClockWraparound Code = "clock_wraparound_assumption_violated"

	ErrUnknownUnit        Code = "unknown_unit"
	ErrTaskTableFull      Code = "task_table_full"
	ErrInvalidConfig      Code = "invalid_config"
	ErrAlreadyInitialized Code = "already_initialized"
	ErrStaleHandle        Code = "stale_handle"
)

// E wraps a Code with the operation and an optional cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

func (e *E) Unwrap() error { return e.Err }

// Is lets errors.Is match a wrapped E against its bare Code.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// CodeOf extracts the Code carried by err. A nil error has no code.
func CodeOf(err error) Code {
	switch v := err.(type) {
	case nil:
		return ""
	case Code:
		return v
	case *E:
		return v.C
	}
	return "error"
}

// FatalHandler is invoked for conditions the system cannot recover from
// locally. It may run inside an interrupt handler with the critical
// section held; cs is that section. It must not allocate, block or enter
// WithCS: report through WriteFatalReport, then reset. It must not return
// on hardware; the default panics.
type FatalHandler func(cs CS, err error)

var fatalHandler FatalHandler = func(_ CS, err error) {
	panic("tickcore: fatal: " + err.Error())
}

// SetFatalHandler installs the platform reset path (e.g. a watchdog reset).
// The handler runs in whatever context raised the error, interrupt
// handlers included, with interrupts disabled.
func SetFatalHandler(h FatalHandler) {
	if h != nil {
		fatalHandler = h
	}
}

// Fatal hands err to the fatal handler from task context.
func Fatal(err error) {
	WithCS(func(cs CS) {
		FatalCS(cs, err)
	})
}

// FatalCS is Fatal for code already holding a section. It is the only way
// interrupt-context code reports errors; callers record their context in
// the timing ring first.
func FatalCS(cs CS, err error) {
	fatalHandler(cs, err)
}
