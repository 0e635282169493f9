package core

import (
	"math/rand"
	"sync"
	"testing"
)

func TestAlarmMultiplexing(t *testing.T) {
	d, hw := newSimDriver(t, 32, 2)
	reg := d.Tasks

	deadlines := []Tick{5, 10, 3, 8}
	ids := make([]TaskID, len(deadlines))
	for i, dl := range deadlines {
		id, w := newTask(t, reg)
		ids[i] = id
		d.Alarms.ScheduleAt(dl, w)
	}

	armed := d.Alarms.Armed()
	if armed[0] != 5 || armed[1] != 3 {
		t.Fatalf("Expected slots armed with [5 3], got %v", armed)
	}
	if d.Alarms.Pending() != 4 {
		t.Fatalf("Expected 4 pending, got %d", d.Alarms.Pending())
	}
	if st := d.Alarms.Stats(); st.Evicted != 1 {
		t.Errorf("Expected deadline 10 to be evicted once, got %d", st.Evicted)
	}

	hw.Advance(3)
	if !reg.IsReady(ids[2]) {
		t.Fatal("timer at 3 did not fire at 3")
	}
	for _, i := range []int{0, 1, 3} {
		if reg.IsReady(ids[i]) {
			t.Errorf("timer at %d fired at 3", deadlines[i])
		}
	}
	armed = d.Alarms.Armed()
	if armed[0] != 5 || armed[1] != 8 {
		t.Errorf("Expected slots armed with [5 8] after 3 fired, got %v", armed)
	}
	if d.Alarms.NextDeadline() != 5 {
		t.Errorf("Expected next deadline 5, got %d", d.Alarms.NextDeadline())
	}

	// Remaining fire order 5, 8, 10
	for now := Tick(4); now <= 10; now++ {
		hw.Advance(1)
		for i, dl := range deadlines {
			if reg.IsReady(ids[i]) != (dl <= now) {
				t.Errorf("at %d: timer %d ready=%v", now, dl, reg.IsReady(ids[i]))
			}
		}
	}
	if d.Alarms.Pending() != 0 {
		t.Errorf("Expected no pending timers, got %d", d.Alarms.Pending())
	}
	if st := d.Alarms.Stats(); st.Fired != 4 {
		t.Errorf("Expected 4 fired, got %d", st.Fired)
	}
}

func TestAlarmNeverEarlyManyTimers(t *testing.T) {
	d, hw := newSimDriver(t, 16, 2)
	reg := d.Tasks
	rng := rand.New(rand.NewSource(1))

	const n = 40
	ids := make([]TaskID, n)
	deadlines := make([]Tick, n)
	for i := 0; i < n; i++ {
		id, w := newTask(t, reg)
		ids[i] = id
		deadlines[i] = Tick(1 + rng.Intn(2000))
		d.Alarms.ScheduleAt(deadlines[i], w)
	}
	if st := d.Alarms.Stats(); st.PeakPending != n {
		t.Errorf("Expected peak of %d pending, got %d", n, st.PeakPending)
	}

	for now := Tick(1); now <= 2000; now++ {
		hw.Advance(1)
		for i := range ids {
			ready := reg.IsReady(ids[i])
			if ready && deadlines[i] > now {
				t.Fatalf("timer %d fired early at %d", deadlines[i], now)
			}
			if !ready && deadlines[i] <= now {
				t.Fatalf("timer %d not fired at %d", deadlines[i], now)
			}
		}
	}
	if st := d.Alarms.Stats(); st.Fired != n {
		t.Errorf("Expected %d fired, got %d", n, st.Fired)
	}
}

func TestAlarmLateDeadlineFiresFromInterrupt(t *testing.T) {
	d, hw := newSimDriver(t, 32, 2)
	hw.Advance(100)

	id, w := newTask(t, d.Tasks)
	d.Alarms.ScheduleAt(50, w)

	// Never from the calling context
	if d.Tasks.IsReady(id) {
		t.Fatal("ScheduleAt woke the task directly")
	}
	if !hw.IsPending(0) {
		t.Fatal("Expected slot 0 interrupt to be forced pending")
	}

	hw.Service()
	if !d.Tasks.IsReady(id) {
		t.Fatal("late timer did not fire from the interrupt")
	}
	st := d.Alarms.Stats()
	if st.Late != 1 || st.Fired != 1 {
		t.Errorf("Expected Late=1 Fired=1, got %+v", st)
	}
	if _, armed := hw.Armed(0); armed {
		t.Error("idle slot left armed")
	}
}

func TestAlarmDeadlineNow(t *testing.T) {
	d, hw := newSimDriver(t, 32, 1)
	hw.Advance(42)

	id, w := newTask(t, d.Tasks)
	d.Alarms.ScheduleAt(d.Now(), w)
	hw.Service()
	if !d.Tasks.IsReady(id) {
		t.Error("deadline equal to now did not fire")
	}
}

func TestAlarmFarDeadlineRearms(t *testing.T) {
	d, hw := newSimDriver(t, 16, 1)

	id, w := newTask(t, d.Tasks)
	deadline := Tick(3*65536 + 3392)
	d.Alarms.ScheduleAt(deadline, w)

	hw.Advance(uint64(deadline) - 1)
	if d.Tasks.IsReady(id) {
		t.Fatalf("far timer fired early at %d", d.Now())
	}
	if st := d.Alarms.Stats(); st.Rearmed != 3 {
		t.Errorf("Expected 3 early matches to re-arm, got %d", st.Rearmed)
	}

	hw.Advance(1)
	if !d.Tasks.IsReady(id) {
		t.Errorf("far timer did not fire at %d", d.Now())
	}
}

func TestAlarmEarlierTimerEvicts(t *testing.T) {
	d, hw := newSimDriver(t, 32, 1)

	lateID, lateW := newTask(t, d.Tasks)
	earlyID, earlyW := newTask(t, d.Tasks)
	d.Alarms.ScheduleAt(100, lateW)
	d.Alarms.ScheduleAt(20, earlyW)

	if armed := d.Alarms.Armed(); armed[0] != 20 {
		t.Fatalf("Expected slot armed with 20, got %v", armed)
	}

	hw.Advance(20)
	if !d.Tasks.IsReady(earlyID) || d.Tasks.IsReady(lateID) {
		t.Fatal("Expected only the early timer at 20")
	}
	if armed := d.Alarms.Armed(); armed[0] != 100 {
		t.Errorf("Expected evicted timer promoted back, got %v", armed)
	}
	hw.Advance(80)
	if !d.Tasks.IsReady(lateID) {
		t.Error("evicted timer never fired")
	}
	st := d.Alarms.Stats()
	if st.Evicted != 1 || st.Promoted != 1 {
		t.Errorf("Expected Evicted=1 Promoted=1, got %+v", st)
	}
}

func TestAlarmTiesFireInRegistrationOrder(t *testing.T) {
	d, hw := newSimDriver(t, 32, 1)
	ClearTimingRing()

	for i := 0; i < 4; i++ {
		_, w := newTask(t, d.Tasks)
		d.Alarms.ScheduleAt(10, w)
	}
	hw.Advance(10)

	var fired []uint16
	for _, evt := range DumpTiming() {
		if evt.EventType == EvtFire {
			fired = append(fired, evt.ID)
		}
	}
	if len(fired) != 4 {
		t.Fatalf("Expected 4 fire events, got %v", fired)
	}
	for i, id := range fired {
		if id != uint16(i) {
			t.Errorf("Expected timers to fire in order 0..3, got %v", fired)
			break
		}
	}
}

func TestAlarmCancel(t *testing.T) {
	d, hw := newSimDriver(t, 32, 1)

	armedID, armedW := newTask(t, d.Tasks)
	queuedID, queuedW := newTask(t, d.Tasks)
	keepID, keepW := newTask(t, d.Tasks)

	h1 := d.Alarms.ScheduleAt(10, armedW)
	h2 := d.Alarms.ScheduleAt(20, queuedW)
	d.Alarms.ScheduleAt(30, keepW)

	d.Alarms.Cancel(h2)
	d.Alarms.Cancel(h1)
	if armed := d.Alarms.Armed(); armed[0] != 30 {
		t.Fatalf("Expected 30 promoted into the slot, got %v", armed)
	}

	// Cancelling again and cancelling the zero handle do nothing
	d.Alarms.Cancel(h1)
	d.Alarms.Cancel(TimerHandle{})

	hw.Advance(40)
	if d.Tasks.IsReady(armedID) || d.Tasks.IsReady(queuedID) {
		t.Error("cancelled timer fired")
	}
	if !d.Tasks.IsReady(keepID) {
		t.Error("remaining timer did not fire")
	}
	if st := d.Alarms.Stats(); st.Cancelled != 2 {
		t.Errorf("Expected 2 cancelled, got %d", st.Cancelled)
	}
}

func TestAlarmCancelAfterFireIsNoop(t *testing.T) {
	d, hw := newSimDriver(t, 32, 1)
	_, w := newTask(t, d.Tasks)
	h := d.Alarms.ScheduleAt(5, w)
	hw.Advance(5)

	// The slot of the fired timer is reused; the old handle must not
	// cancel the new timer.
	id2, w2 := newTask(t, d.Tasks)
	d.Alarms.ScheduleAt(10, w2)
	d.Alarms.Cancel(h)
	hw.Advance(5)
	if !d.Tasks.IsReady(id2) {
		t.Error("stale handle cancelled a newer timer")
	}
}

func TestAlarmCancelAfterInterruptRaised(t *testing.T) {
	d, hw := newSimDriver(t, 32, 1)
	id, w := newTask(t, d.Tasks)
	hw.Advance(100)

	h := d.Alarms.ScheduleAt(50, w) // forces slot 0 pending
	d.Alarms.Cancel(h)
	hw.Service()

	if d.Tasks.IsReady(id) {
		t.Error("timer cancelled before its interrupt ran still fired")
	}
	if d.Alarms.Pending() != 0 {
		t.Errorf("Expected 0 pending, got %d", d.Alarms.Pending())
	}
}

func TestAlarmCancelRacesInterrupt(t *testing.T) {
	d, hw := newSimDriver(t, 32, 2)
	id, w := newTask(t, d.Tasks)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				hw.Advance(1)
			}
		}
	}()

	for i := 0; i < 2000; i++ {
		h := d.Alarms.ScheduleAt(d.Now()+Tick(i%4), w)
		d.Alarms.Cancel(h)
	}
	close(stop)
	wg.Wait()

	if d.Alarms.Pending() != 0 {
		t.Fatalf("Expected 0 pending, got %d", d.Alarms.Pending())
	}
	st := d.Alarms.Stats()
	if st.Fired+st.Cancelled != st.Scheduled {
		t.Errorf("Every timer must either fire or be cancelled: %+v", st)
	}

	// Nothing left to wake the task
	d.Tasks.TakeReady(func(TaskID) {})
	hw.Advance(1000)
	if d.Tasks.IsReady(id) {
		t.Error("cancelled timer fired after Cancel returned")
	}
}

func TestAlarmGrowsBeyondCapacity(t *testing.T) {
	d, hw := newSimDriver(t, 32, 2)
	var ids []TaskID
	for i := 0; i < 20; i++ {
		id, w := newTask(t, d.Tasks)
		ids = append(ids, id)
		d.Alarms.ScheduleAt(Tick(100-i), w)
	}
	if d.Alarms.Pending() != 20 {
		t.Fatalf("Expected 20 pending, got %d", d.Alarms.Pending())
	}
	hw.Advance(100)
	for i, id := range ids {
		if !d.Tasks.IsReady(id) {
			t.Errorf("timer %d did not fire", 100-i)
		}
	}
}

func TestTimerTableHeapOrder(t *testing.T) {
	var tt timerTable
	tt.init(2)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		tt.push(tt.alloc(Tick(rng.Intn(50)), Waker{}))
	}
	// Drop a few from the middle
	for i := int32(10); i < 20; i++ {
		tt.unqueue(i)
		tt.release(i)
	}

	var prev int32 = -1
	for n := 0; n < 90; n++ {
		id := tt.pop()
		if id < 0 {
			t.Fatalf("heap ran dry after %d pops", n)
		}
		if prev >= 0 && tt.before(id, prev) {
			t.Fatalf("heap out of order: %d(%d) after %d(%d)",
				id, tt.timers[id].deadline, prev, tt.timers[prev].deadline)
		}
		prev = id
	}
	if tt.pop() != -1 {
		t.Error("Expected empty heap")
	}
}
