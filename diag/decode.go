package diag

import (
	"tickcore/core"
	"tickcore/protocol"
)

// Uptime is a decoded get_uptime reply
type Uptime struct {
	TickHz uint32
	Micros uint64
}

// Config is a decoded get_config reply
type Config struct {
	core.Config
	Slots int
}

// TimingDump is one decoded dump_timing page
type TimingDump struct {
	Total  uint32
	Offset uint32
	Events []core.TimingEvent
}

// EncodeRequest writes a command frame for cmd with its arguments
func EncodeRequest(out protocol.OutputBuffer, seq uint8, cmd Command, args ...uint32) {
	protocol.EncodeMessage(out, seq, cmd.ID, func(out protocol.OutputBuffer) {
		for _, a := range args {
			protocol.EncodeVLQUint(out, a)
		}
	})
}

// decoder reads consecutive fields and keeps the first error
type decoder struct {
	data *[]byte
	err  error
}

func (d *decoder) u32() uint32 {
	if d.err != nil {
		return 0
	}
	v, err := protocol.DecodeVLQUint(d.data)
	d.err = err
	return v
}

func (d *decoder) u64() uint64 {
	if d.err != nil {
		return 0
	}
	v, err := protocol.DecodeVLQTick(d.data)
	d.err = err
	return v
}

// DecodeClock decodes a get_clock reply
func DecodeClock(args *[]byte) (core.Tick, error) {
	d := decoder{data: args}
	t := core.Tick(d.u64())
	return t, d.err
}

// DecodeUptime decodes a get_uptime reply
func DecodeUptime(args *[]byte) (Uptime, error) {
	d := decoder{data: args}
	u := Uptime{TickHz: d.u32(), Micros: d.u64()}
	return u, d.err
}

// DecodeStats decodes a get_stats reply
func DecodeStats(args *[]byte) (core.Stats, error) {
	d := decoder{data: args}
	var st core.Stats
	st.Timers.Scheduled = d.u32()
	st.Timers.Fired = d.u32()
	st.Timers.Late = d.u32()
	st.Timers.Cancelled = d.u32()
	st.Timers.Evicted = d.u32()
	st.Timers.Promoted = d.u32()
	st.Timers.Rearmed = d.u32()
	st.Timers.PeakPending = int(d.u32())
	st.Pending = int(d.u32())
	st.PeripheralWakes = d.u32()
	st.TaskWakes = d.u32()
	return st, d.err
}

// DecodeTiming decodes a dump_timing reply
func DecodeTiming(args *[]byte) (TimingDump, error) {
	d := decoder{data: args}
	dump := TimingDump{Total: d.u32(), Offset: d.u32()}
	count := d.u32()
	if count > TimingPage {
		return dump, &core.E{C: ErrBadArgs, Op: "diag.decode_timing", Msg: "page too long"}
	}
	for i := uint32(0); i < count && d.err == nil; i++ {
		dump.Events = append(dump.Events, core.TimingEvent{
			EventType: uint8(d.u32()),
			ID:        uint16(d.u32()),
			Clock:     d.u32(),
			Value1:    d.u32(),
			Value2:    d.u32(),
		})
	}
	return dump, d.err
}

// DecodeConfig decodes a get_config reply
func DecodeConfig(args *[]byte) (Config, error) {
	d := decoder{data: args}
	var c Config
	c.TickHz = d.u32()
	c.CounterBits = uint8(d.u32())
	c.Wrap = core.WrapStrategy(d.u32())
	c.Slots = int(d.u32())
	c.Units = int(d.u32())
	return c, d.err
}

// DecodeError decodes a MsgError reply
func DecodeError(args *[]byte) (core.Code, error) {
	s, err := protocol.DecodeVLQString(args)
	return core.Code(s), err
}
