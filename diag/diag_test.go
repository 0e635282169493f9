package diag

import (
	"testing"

	"tickcore/core"
	"tickcore/protocol"
	"tickcore/sim"
)

func newServer(t *testing.T) (*Server, *core.TimeDriver, *sim.Timer) {
	t.Helper()
	hw := sim.New(32, 2)
	d, err := core.NewTimeDriver(core.Config{Units: 3}, hw)
	if err != nil {
		t.Fatalf("NewTimeDriver failed: %v", err)
	}
	hw.OnAlarm(0, d.AlarmHandler(0))
	hw.OnAlarm(1, d.AlarmHandler(1))
	return NewServer(d), d, hw
}

// call sends one command and returns the reply id and arguments
func call(t *testing.T, s *Server, seq uint8, name string, args ...uint32) (uint32, []byte) {
	t.Helper()
	cmd, ok := Lookup(name)
	if !ok {
		t.Fatalf("unknown command %s", name)
	}
	req := protocol.NewScratchOutput()
	EncodeRequest(req, seq, cmd, args...)
	s.Receive(protocol.NewSliceInputBuffer(req.Result()))

	var reply []byte
	s.Flush(func(b []byte) { reply = append([]byte(nil), b...) })
	f, _, err := protocol.ScanFrame(reply)
	if err != nil {
		t.Fatalf("%s: reply does not parse: %v", name, err)
	}
	if f.Seq != seq {
		t.Errorf("%s: reply seq %#x, want %#x", name, f.Seq, seq)
	}
	payload := f.Payload
	id, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		t.Fatalf("%s: reply has no id: %v", name, err)
	}
	return id, payload
}

func TestGetClock(t *testing.T) {
	s, _, hw := newServer(t)
	hw.Advance(123456)

	id, args := call(t, s, 0x10, "get_clock")
	if id != MsgGetClock {
		t.Fatalf("Expected get_clock reply, got id %d", id)
	}
	clock, err := DecodeClock(&args)
	if err != nil || clock != 123456 {
		t.Errorf("Expected clock 123456, got %d, %v", clock, err)
	}
}

func TestGetUptime(t *testing.T) {
	s, _, hw := newServer(t)
	hw.Advance(2500000)

	_, args := call(t, s, 0x11, "get_uptime")
	up, err := DecodeUptime(&args)
	if err != nil {
		t.Fatalf("DecodeUptime failed: %v", err)
	}
	if up.TickHz != 1000000 || up.Micros != 2500000 {
		t.Errorf("unexpected uptime %+v", up)
	}
}

func TestGetStats(t *testing.T) {
	s, d, hw := newServer(t)
	_, w, _ := d.Tasks.Register()
	for i := 1; i <= 3; i++ {
		d.Alarms.ScheduleAt(core.Tick(i*10), w)
	}
	h := d.Alarms.ScheduleAt(100, w)
	d.Alarms.Cancel(h)
	hw.Advance(30)

	_, args := call(t, s, 0x12, "get_stats")
	st, err := DecodeStats(&args)
	if err != nil {
		t.Fatalf("DecodeStats failed: %v", err)
	}
	if st.Timers.Scheduled != 4 || st.Timers.Fired != 3 || st.Timers.Cancelled != 1 {
		t.Errorf("unexpected timer stats %+v", st.Timers)
	}
	if st.Timers.PeakPending != 4 || st.Pending != 0 {
		t.Errorf("Expected peak 4 and none pending, got %d and %d", st.Timers.PeakPending, st.Pending)
	}
	if st.TaskWakes != 1 {
		t.Errorf("Expected 1 task wake, got %d", st.TaskWakes)
	}
}

func TestDumpTimingPages(t *testing.T) {
	s, d, hw := newServer(t)
	core.ClearTimingRing()
	defer core.ClearTimingRing()

	_, w, _ := d.Tasks.Register()
	for i := 1; i <= 6; i++ {
		d.Alarms.ScheduleAt(core.Tick(i), w)
	}
	hw.Advance(10)
	want := core.DumpTiming()
	if len(want) <= TimingPage {
		t.Fatalf("test needs more than one page of events, got %d", len(want))
	}

	var got []core.TimingEvent
	for offset := uint32(0); ; {
		_, args := call(t, s, 0x13, "dump_timing", offset)
		page, err := DecodeTiming(&args)
		if err != nil {
			t.Fatalf("DecodeTiming failed: %v", err)
		}
		if page.Total != uint32(len(want)) || page.Offset != offset {
			t.Fatalf("unexpected page header %+v", page)
		}
		got = append(got, page.Events...)
		offset += uint32(len(page.Events))
		if len(page.Events) == 0 || offset >= page.Total {
			break
		}
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d events, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestGetConfig(t *testing.T) {
	s, _, _ := newServer(t)
	_, args := call(t, s, 0x14, "get_config")
	c, err := DecodeConfig(&args)
	if err != nil {
		t.Fatalf("DecodeConfig failed: %v", err)
	}
	if c.TickHz != 1000000 || c.CounterBits != 32 || c.Wrap != core.WrapPeriodIRQ || c.Slots != 2 || c.Units != 3 {
		t.Errorf("unexpected config %+v", c)
	}
}

func TestUnknownCommand(t *testing.T) {
	s, _, _ := newServer(t)
	req := protocol.NewScratchOutput()
	protocol.EncodeMessage(req, 0x15, 42, nil)
	s.Receive(protocol.NewSliceInputBuffer(req.Result()))

	f, _, err := protocol.ScanFrame(s.Pending())
	if err != nil {
		t.Fatalf("error reply does not parse: %v", err)
	}
	payload := f.Payload
	id, _ := protocol.DecodeVLQUint(&payload)
	code, _ := DecodeError(&payload)
	if id != MsgError || code != ErrUnknownCommand {
		t.Errorf("Expected unknown_command error, got id %d code %q", id, code)
	}
	if s.Endpoint().Errors() != 1 {
		t.Errorf("Expected the endpoint to count the failure, got %d", s.Endpoint().Errors())
	}
}

func TestCommandTable(t *testing.T) {
	seen := map[uint32]bool{}
	for _, c := range Commands() {
		if seen[c.ID] {
			t.Errorf("duplicate command id %d", c.ID)
		}
		seen[c.ID] = true
		if c.ID == MsgError {
			t.Errorf("%s uses the error id", c.Name)
		}
	}
	if _, ok := Lookup("get_stats"); !ok {
		t.Error("get_stats missing")
	}
}
