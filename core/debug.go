package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures a time driver event for post-mortem analysis
type TimingEvent struct {
	EventType uint8  // Event type code
	ID        uint16 // Logical timer id or peripheral unit
	Clock     uint32 // Low word of the tick at the event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtSchedule       = 1  // ScheduleAt: v1/v2 = deadline low/high
	EvtArm            = 2  // Timer armed: v1 = deadline, v2 = slot
	EvtFire           = 3  // Waker invoked: v1 = deadline, v2 = slot
	EvtLateFire       = 4  // Deadline already due when armed
	EvtCancel         = 5  // Pending timer cancelled
	EvtEvict          = 6  // Armed timer pushed back to the queue: v1 = slot
	EvtPromote        = 7  // Queued timer moved into a slot: v1 = slot
	EvtPeriod         = 8  // Wrap interrupt: v1 = period count
	EvtPeripheralWake = 9  // Bridge woke a unit: v1 = events, v2 = wake count
	EvtFatal          = 10 // Fatal condition: v1/v2 context
)

const (
	TimingRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Timing capture ring, written with interrupts disabled
	timingRing     Mutex[[TimingRingSize]TimingEvent]
	timingRingHead uint8
	timingEnabled  bool = true
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	if writer == nil {
		writer = func(string) {}
	}
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer.
// Not for interrupt context: writers may block on the transport.
func DebugPrintln(msg string) {
	if debugEnabled {
		debugPrintln(msg)
	}
}

// SetTimingEnabled turns event capture on or off
func SetTimingEnabled(enabled bool) {
	timingEnabled = enabled
}

// RecordTiming captures an event in the ring. It never allocates and is
// safe from interrupt handlers.
func RecordTiming(cs CS, eventType uint8, id uint16, clock, value1, value2 uint32) {
	if !timingEnabled {
		return
	}
	ring := timingRing.Borrow(cs)
	idx := timingRingHead
	ring[idx] = TimingEvent{
		EventType: eventType,
		ID:        id,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (idx + 1) % TimingRingSize
}

// DumpTiming returns the recorded events, oldest first
func DumpTiming() []TimingEvent {
	out := make([]TimingEvent, 0, TimingRingSize)
	WithCS(func(cs CS) {
		ring := timingRing.Borrow(cs)
		start := timingRingHead
		for i := uint8(0); i < TimingRingSize; i++ {
			evt := ring[(start+i)%TimingRingSize]
			if evt.EventType == 0 {
				continue // Empty slot
			}
			out = append(out, evt)
		}
	})
	return out
}

// DumpTimingRing writes the ring through the debug writer. Task context
// only; the fatal path uses WriteFatalReport.
func DumpTimingRing() {
	events := DumpTiming()
	debugPrintln("[TIMING] === Timing Ring Dump ===")
	var buf [lineSize]byte
	for _, evt := range events {
		debugPrintln(string(appendEvent(buf[:0], evt)))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

// lineSize fits the longest event line: name plus four decimal fields.
const lineSize = 96

// fatalLine is the fatal report's line buffer. Only touched under CS.
var fatalLine [lineSize]byte

// WriteFatalReport writes the error code and the timing ring, oldest
// first, one line per call to w. It does not allocate and expects the
// caller's section, so a fatal handler may use it from an interrupt.
// Lines share one buffer; w must copy what it keeps.
func WriteFatalReport(cs CS, err error, w func(line []byte)) {
	b := append(fatalLine[:0], "[FATAL] "...)
	w(append(b, CodeOf(err)...))

	ring := timingRing.Borrow(cs)
	start := timingRingHead
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := ring[(start+i)%TimingRingSize]
		if evt.EventType == 0 {
			continue
		}
		w(appendEvent(fatalLine[:0], evt))
	}
	w(append(fatalLine[:0], "[TIMING] === End Dump ==="...))
}

func appendEvent(b []byte, evt TimingEvent) []byte {
	b = append(b, "[TIMING] "...)
	b = append(b, EventName(evt.EventType)...)
	b = append(b, " id="...)
	b = appendUint(b, uint32(evt.ID))
	b = append(b, " clock="...)
	b = appendUint(b, evt.Clock)
	b = append(b, " v1="...)
	b = appendUint(b, evt.Value1)
	b = append(b, " v2="...)
	return appendUint(b, evt.Value2)
}

// EventName returns the short name of an event type
func EventName(eventType uint8) string {
	switch eventType {
	case EvtSchedule:
		return "SCHEDULE"
	case EvtArm:
		return "ARM"
	case EvtFire:
		return "FIRE"
	case EvtLateFire:
		return "LATE!"
	case EvtCancel:
		return "CANCEL"
	case EvtEvict:
		return "EVICT"
	case EvtPromote:
		return "PROMOTE"
	case EvtPeriod:
		return "PERIOD"
	case EvtPeripheralWake:
		return "PERIPH_WAKE"
	case EvtFatal:
		return "FATAL"
	}
	return "UNKNOWN"
}

// ClearTimingRing clears the timing buffer
func ClearTimingRing() {
	WithCS(func(cs CS) {
		*timingRing.Borrow(cs) = [TimingRingSize]TimingEvent{}
		timingRingHead = 0
	})
}
