package core

import (
	"errors"
	"testing"
	"time"
)

func TestDelay(t *testing.T) {
	d, hw := newSimDriver(t, 32, 2)
	id, w := newTask(t, d.Tasks)

	delay := d.After(50 * time.Microsecond)
	if delay.Deadline != 50 {
		t.Fatalf("Expected deadline 50 at 1MHz, got %d", delay.Deadline)
	}
	if delay.Poll(w) != Pending {
		t.Fatal("Expected Pending before the deadline")
	}
	// Polling again with the same Waker keeps the existing timer
	delay.Poll(w)
	if st := d.Alarms.Stats(); st.Scheduled != 1 {
		t.Errorf("Expected 1 timer scheduled, got %d", st.Scheduled)
	}

	hw.Advance(49)
	if d.Tasks.IsReady(id) {
		t.Fatal("woken before the deadline")
	}
	hw.Advance(1)
	if !d.Tasks.IsReady(id) {
		t.Fatal("not woken at the deadline")
	}
	if delay.Poll(w) != Ready {
		t.Error("Expected Ready after the deadline")
	}
	if delay.Poll(w) != Ready {
		t.Error("Expected Ready to stick")
	}
}

func TestDelayLongerThanCounterPeriod(t *testing.T) {
	d, hw := newSimDriver(t, 32, 2)
	id, w := newTask(t, d.Tasks)

	delay := d.After(2 * time.Hour)
	const want = Tick(7200000000)
	if delay.Deadline != want {
		t.Fatalf("Expected deadline %d, got %d", want, delay.Deadline)
	}
	if delay.Poll(w) != Pending {
		t.Fatal("Expected Pending before the deadline")
	}

	hw.Advance(uint64(want) - 1)
	if now := d.Now(); now != want-1 {
		t.Fatalf("Expected tick %d, got %d", want-1, now)
	}
	if d.Tasks.IsReady(id) {
		t.Fatal("woken before the deadline")
	}
	if st := d.Alarms.Stats(); st.Rearmed == 0 {
		t.Error("Expected the early compare match to re-arm")
	}
	hw.Advance(1)
	if !d.Tasks.IsReady(id) {
		t.Fatal("not woken at the deadline")
	}
	if delay.Poll(w) != Ready {
		t.Error("Expected Ready after the deadline")
	}
}

func TestDelayNewWakerReschedules(t *testing.T) {
	d, hw := newSimDriver(t, 32, 2)
	oldID, oldW := newTask(t, d.Tasks)
	newID, newW := newTask(t, d.Tasks)

	delay := d.At(30)
	delay.Poll(oldW)
	delay.Poll(newW)

	st := d.Alarms.Stats()
	if st.Scheduled != 2 || st.Cancelled != 1 {
		t.Errorf("Expected the old timer replaced, got %+v", st)
	}
	hw.Advance(30)
	if d.Tasks.IsReady(oldID) {
		t.Error("replaced Waker was woken")
	}
	if !d.Tasks.IsReady(newID) {
		t.Error("current Waker was not woken")
	}
}

func TestDelayCancelAndReset(t *testing.T) {
	d, hw := newSimDriver(t, 32, 2)
	id, w := newTask(t, d.Tasks)

	delay := d.At(10)
	delay.Poll(w)
	delay.Cancel()
	hw.Advance(20)
	if d.Tasks.IsReady(id) {
		t.Fatal("cancelled Delay woke its task")
	}

	delay.Reset(d.Now() + 5)
	if delay.Poll(w) != Pending {
		t.Fatal("Expected Pending after Reset")
	}
	hw.Advance(5)
	if delay.Poll(w) != Ready {
		t.Error("Expected Ready after the new deadline")
	}
}

func TestPeripheralWaitReadyImmediately(t *testing.T) {
	reg := NewRegistry()
	b := NewBridge(1)
	_, w := newTask(t, reg)

	wait := NewPeripheralWait(b, 0, func() bool { return true })
	if wait.Poll(w) != Ready {
		t.Fatal("Expected Ready when the hardware is already done")
	}
	// Registration was withdrawn
	b.OnInterrupt(0)
	if b.Wakes(0) != 0 {
		t.Error("Waker left registered after an immediate Ready")
	}
}

func TestPeripheralWaitUnknownUnit(t *testing.T) {
	wait := NewPeripheralWait(NewBridge(1), 3, func() bool { return false })
	if wait.Poll(Waker{}) != Ready {
		t.Fatal("Expected Ready for an unknown unit")
	}
	if !errors.Is(wait.Err(), ErrUnknownUnit) {
		t.Errorf("Expected ErrUnknownUnit, got %v", wait.Err())
	}
}

func TestPeripheralWaitCancel(t *testing.T) {
	reg := NewRegistry()
	b := NewBridge(1)
	id, w := newTask(t, reg)

	wait := NewPeripheralWait(b, 0, func() bool { return false })
	wait.Poll(w)
	wait.Cancel()
	b.OnInterrupt(0)
	if reg.IsReady(id) {
		t.Error("cancelled wait was woken")
	}
}

func TestPollString(t *testing.T) {
	if Pending.String() != "pending" || Ready.String() != "ready" {
		t.Errorf("unexpected names %q %q", Pending, Ready)
	}
}
