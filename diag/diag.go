// Package diag serves the time driver's diagnostics over the protocol
// link: the clock, uptime, activity counters and the timing trace.
package diag

import (
	"tickcore/core"
	"tickcore/protocol"
)

// Message ids. A reply reuses the id of the command it answers.
const (
	MsgGetClock   = 1
	MsgGetUptime  = 2
	MsgGetStats   = 3
	MsgDumpTiming = 4
	MsgGetConfig  = 5
	MsgError      = 0x7F
)

// Error codes carried by MsgError replies
const (
	ErrUnknownCommand core.Code = "unknown_command"
	ErrBadArgs        core.Code = "bad_args"
)

// TimingPage is the number of trace events per dump_timing reply, sized
// to keep a reply well inside one frame.
const TimingPage = 8

// Command describes one diagnostic command
type Command struct {
	ID     uint32
	Name   string
	Args   string // argument format, "" for none
	Reply  string // reply format
	handle func(s *Server, args *[]byte, out protocol.OutputBuffer) error
}

var commands = []Command{
	{MsgGetClock, "get_clock", "", "clock=%t", (*Server).getClock},
	{MsgGetUptime, "get_uptime", "", "hz=%u uptime_us=%t", (*Server).getUptime},
	{MsgGetStats, "get_stats", "", "scheduled=%u fired=%u late=%u cancelled=%u evicted=%u " +
		"promoted=%u rearmed=%u peak=%u pending=%u periph_wakes=%u task_wakes=%u", (*Server).getStats},
	{MsgDumpTiming, "dump_timing", "offset=%u", "total=%u offset=%u count=%u events=%*e", (*Server).dumpTiming},
	{MsgGetConfig, "get_config", "", "hz=%u bits=%c wrap=%c slots=%c units=%c", (*Server).getConfig},
}

// Commands returns the command table
func Commands() []Command { return commands }

// Lookup finds a command by name
func Lookup(name string) (Command, bool) {
	for _, c := range commands {
		if c.Name == name {
			return c, true
		}
	}
	return Command{}, false
}

func byID(id uint32) *Command {
	for i := range commands {
		if commands[i].ID == id {
			return &commands[i]
		}
	}
	return nil
}

// Server answers diagnostic commands for one time driver. It runs in task
// context; nothing here is called from an interrupt.
type Server struct {
	drv *core.TimeDriver
	ep  *protocol.Endpoint
	out *protocol.ScratchOutput

	trace []core.TimingEvent // snapshot served by dump_timing
}

// NewServer returns a server for d
func NewServer(d *core.TimeDriver) *Server {
	s := &Server{drv: d, out: protocol.NewScratchOutput()}
	s.ep = protocol.NewEndpoint(s.out, s.dispatch)
	return s
}

// Receive parses frames from input and queues the replies
func (s *Server) Receive(input protocol.InputBuffer) {
	s.ep.Receive(input)
}

// Pending returns the queued reply bytes
func (s *Server) Pending() []byte { return s.out.Result() }

// Flush hands the queued replies to write and empties the queue
func (s *Server) Flush(write func([]byte)) {
	if data := s.out.Result(); len(data) > 0 {
		write(data)
	}
	s.out.Reset()
}

// Endpoint exposes the link counters
func (s *Server) Endpoint() *protocol.Endpoint { return s.ep }

func (s *Server) dispatch(seq uint8, id uint32, args *[]byte) error {
	cmd := byID(id)
	if cmd == nil {
		s.replyError(seq, ErrUnknownCommand)
		return &core.E{C: ErrUnknownCommand, Op: "diag.dispatch"}
	}
	var err error
	protocol.EncodeMessage(s.out, seq, id, func(out protocol.OutputBuffer) {
		err = cmd.handle(s, args, out)
	})
	if err != nil {
		// The reply frame is already out; follow it with the reason.
		s.replyError(seq, core.CodeOf(err))
	}
	return err
}

func (s *Server) replyError(seq uint8, code core.Code) {
	protocol.EncodeMessage(s.out, seq, MsgError, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQString(out, string(code))
	})
}

func (s *Server) getClock(_ *[]byte, out protocol.OutputBuffer) error {
	protocol.EncodeVLQTick(out, uint64(s.drv.Now()))
	return nil
}

func (s *Server) getUptime(_ *[]byte, out protocol.OutputBuffer) error {
	hz := s.drv.Config().TickHz
	protocol.EncodeVLQUint(out, hz)
	protocol.EncodeVLQTick(out, core.MicrosFromTicks(s.drv.Now(), hz))
	return nil
}

func (s *Server) getStats(_ *[]byte, out protocol.OutputBuffer) error {
	st := s.drv.Stats()
	for _, v := range []uint32{
		st.Timers.Scheduled,
		st.Timers.Fired,
		st.Timers.Late,
		st.Timers.Cancelled,
		st.Timers.Evicted,
		st.Timers.Promoted,
		st.Timers.Rearmed,
		uint32(st.Timers.PeakPending),
		uint32(st.Pending),
		st.PeripheralWakes,
		st.TaskWakes,
	} {
		protocol.EncodeVLQUint(out, v)
	}
	return nil
}

// dumpTiming serves the trace in pages. Offset 0 takes a fresh snapshot
// so later pages stay consistent while the ring keeps moving.
func (s *Server) dumpTiming(args *[]byte, out protocol.OutputBuffer) error {
	offset, err := protocol.DecodeVLQUint(args)
	if err != nil {
		return &core.E{C: ErrBadArgs, Op: "diag.dump_timing", Err: err}
	}
	if offset == 0 || s.trace == nil {
		s.trace = core.DumpTiming()
	}
	total := uint32(len(s.trace))
	if offset > total {
		offset = total
	}
	count := total - offset
	if count > TimingPage {
		count = TimingPage
	}
	protocol.EncodeVLQUint(out, total)
	protocol.EncodeVLQUint(out, offset)
	protocol.EncodeVLQUint(out, count)
	for _, evt := range s.trace[offset : offset+count] {
		protocol.EncodeVLQUint(out, uint32(evt.EventType))
		protocol.EncodeVLQUint(out, uint32(evt.ID))
		protocol.EncodeVLQUint(out, evt.Clock)
		protocol.EncodeVLQUint(out, evt.Value1)
		protocol.EncodeVLQUint(out, evt.Value2)
	}
	return nil
}

func (s *Server) getConfig(_ *[]byte, out protocol.OutputBuffer) error {
	cfg := s.drv.Config()
	protocol.EncodeVLQUint(out, cfg.TickHz)
	protocol.EncodeVLQUint(out, uint32(cfg.CounterBits))
	protocol.EncodeVLQUint(out, uint32(cfg.Wrap))
	protocol.EncodeVLQUint(out, uint32(s.drv.Alarms.Slots()))
	protocol.EncodeVLQUint(out, uint32(cfg.Units))
	return nil
}
