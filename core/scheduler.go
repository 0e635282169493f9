package core

// Logical timer bookkeeping for the alarm multiplexer. Everything here is
// called with a CS held. Only ScheduleAt grows the tables; the interrupt
// path pops and releases into capacity that already exists, so it never
// allocates.

type timerState uint8

const (
	timerFree timerState = iota
	timerQueued
	timerArmed
)

// logicalTimer is one pending "wake at Tick" request
type logicalTimer struct {
	deadline Tick
	seq      uint32 // registration order, breaks deadline ties
	waker    Waker
	gen      uint32 // bumped on release; a handle carries the value it saw
	state    timerState
	slot     int8  // alarm slot while armed
	index    int32 // position in the queue while queued
}

// TimerHandle identifies one ScheduleAt call. The zero handle is never
// valid, so Cancel on it is a no-op.
type TimerHandle struct {
	id  int32
	gen uint32
}

// Valid reports whether h came from ScheduleAt. A valid handle may still
// refer to a timer that has fired.
func (h TimerHandle) Valid() bool { return h.gen != 0 }

type timerTable struct {
	timers []logicalTimer
	free   []int32
	queue  []int32 // binary min-heap of queued timer ids
	seq    uint32
}

func (tt *timerTable) init(capacity int) {
	tt.timers = make([]logicalTimer, 0, capacity)
	tt.free = make([]int32, 0, capacity)
	tt.queue = make([]int32, 0, capacity)
	tt.grow(capacity)
}

// grow adds n free entries and keeps free and queue able to hold every
// timer without reallocating.
func (tt *timerTable) grow(n int) {
	if n < 1 {
		n = 1
	}
	base := len(tt.timers)
	for i := 0; i < n; i++ {
		tt.timers = append(tt.timers, logicalTimer{gen: 1, slot: -1, index: -1})
	}
	if cap(tt.free) < len(tt.timers) {
		free := make([]int32, len(tt.free), len(tt.timers))
		copy(free, tt.free)
		tt.free = free
	}
	if cap(tt.queue) < len(tt.timers) {
		queue := make([]int32, len(tt.queue), len(tt.timers))
		copy(queue, tt.queue)
		tt.queue = queue
	}
	// Hand out low ids first.
	for i := base + n - 1; i >= base; i-- {
		tt.free = append(tt.free, int32(i))
	}
}

func (tt *timerTable) alloc(deadline Tick, w Waker) int32 {
	if len(tt.free) == 0 {
		tt.grow(len(tt.timers))
	}
	id := tt.free[len(tt.free)-1]
	tt.free = tt.free[:len(tt.free)-1]
	t := &tt.timers[id]
	t.deadline = deadline
	t.waker = w
	t.seq = tt.seq
	tt.seq++
	return id
}

func (tt *timerTable) release(id int32) {
	t := &tt.timers[id]
	t.state = timerFree
	t.waker = Waker{}
	t.slot = -1
	t.index = -1
	t.gen++
	if t.gen == 0 {
		t.gen = 1
	}
	tt.free = append(tt.free, id)
}

// lookup resolves a handle to a live timer id, or -1
func (tt *timerTable) lookup(h TimerHandle) int32 {
	if h.gen == 0 || h.id < 0 || int(h.id) >= len(tt.timers) {
		return -1
	}
	t := &tt.timers[h.id]
	if t.gen != h.gen || t.state == timerFree {
		return -1
	}
	return h.id
}

// before orders timers by deadline, first registered first on ties
func (tt *timerTable) before(a, b int32) bool {
	ta, tb := &tt.timers[a], &tt.timers[b]
	if ta.deadline != tb.deadline {
		return ta.deadline < tb.deadline
	}
	// seq wraps after 2^32 registrations; compare by distance
	return int32(ta.seq-tb.seq) < 0
}

func (tt *timerTable) pending() int {
	return len(tt.timers) - len(tt.free)
}

// push queues a timer that is not armed
func (tt *timerTable) push(id int32) {
	tt.timers[id].state = timerQueued
	tt.timers[id].slot = -1
	tt.queue = append(tt.queue, id)
	tt.timers[id].index = int32(len(tt.queue) - 1)
	tt.up(len(tt.queue) - 1)
}

// peek returns the earliest queued timer, or -1
func (tt *timerTable) peek() int32 {
	if len(tt.queue) == 0 {
		return -1
	}
	return tt.queue[0]
}

// pop removes and returns the earliest queued timer, or -1
func (tt *timerTable) pop() int32 {
	if len(tt.queue) == 0 {
		return -1
	}
	id := tt.queue[0]
	tt.remove(0)
	return id
}

// unqueue removes a queued timer from the heap
func (tt *timerTable) unqueue(id int32) {
	if i := tt.timers[id].index; i >= 0 {
		tt.remove(int(i))
	}
}

func (tt *timerTable) remove(i int) {
	last := len(tt.queue) - 1
	id := tt.queue[i]
	if i != last {
		tt.swap(i, last)
	}
	tt.queue = tt.queue[:last]
	tt.timers[id].index = -1
	if i != last {
		if !tt.down(i) {
			tt.up(i)
		}
	}
}

func (tt *timerTable) swap(i, j int) {
	tt.queue[i], tt.queue[j] = tt.queue[j], tt.queue[i]
	tt.timers[tt.queue[i]].index = int32(i)
	tt.timers[tt.queue[j]].index = int32(j)
}

func (tt *timerTable) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !tt.before(tt.queue[i], tt.queue[parent]) {
			return
		}
		tt.swap(i, parent)
		i = parent
	}
}

// down sifts i toward the leaves and reports whether it moved
func (tt *timerTable) down(i int) bool {
	start := i
	n := len(tt.queue)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		least := left
		if right := left + 1; right < n && tt.before(tt.queue[right], tt.queue[left]) {
			least = right
		}
		if !tt.before(tt.queue[least], tt.queue[i]) {
			break
		}
		tt.swap(i, least)
		i = least
	}
	return i > start
}
