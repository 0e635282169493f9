package link

import (
	"fmt"
	"io"
	"time"

	"tickcore/core"
	"tickcore/diag"
)

// FormatEvent renders one trace event on a single line
func FormatEvent(e core.TimingEvent) string {
	return fmt.Sprintf("%-12s id=%-3d clock=%-10d v1=%-10d v2=%d",
		core.EventName(e.EventType), e.ID, e.Clock, e.Value1, e.Value2)
}

// PrintStats writes the driver counters as a table
func PrintStats(w io.Writer, st core.Stats) {
	rows := []struct {
		name string
		v    uint32
	}{
		{"scheduled", st.Timers.Scheduled},
		{"fired", st.Timers.Fired},
		{"late", st.Timers.Late},
		{"cancelled", st.Timers.Cancelled},
		{"evicted", st.Timers.Evicted},
		{"promoted", st.Timers.Promoted},
		{"rearmed", st.Timers.Rearmed},
		{"peak pending", uint32(st.Timers.PeakPending)},
		{"pending", uint32(st.Pending)},
		{"periph wakes", st.PeripheralWakes},
		{"task wakes", st.TaskWakes},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "  %-13s %d\n", r.name, r.v)
	}
}

// PrintConfig writes the driver configuration
func PrintConfig(w io.Writer, c diag.Config) {
	fmt.Fprintf(w, "  tick rate     %d Hz\n", c.TickHz)
	fmt.Fprintf(w, "  counter       %d bits, %s\n", c.CounterBits, c.Wrap)
	fmt.Fprintf(w, "  alarm slots   %d\n", c.Slots)
	fmt.Fprintf(w, "  units         %d\n", c.Units)
}

// FormatUptime renders an uptime reply
func FormatUptime(u diag.Uptime) string {
	d := time.Duration(u.Micros) * time.Microsecond
	return fmt.Sprintf("%s (%d us at %d Hz)", d, u.Micros, u.TickHz)
}
