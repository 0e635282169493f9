package core

import "sync/atomic"

// MaxTasks is the number of task slots in a Registry.
const MaxTasks = 64

const readyWords = MaxTasks / 32

// TaskID names a slot in the Registry.
type TaskID uint8

// Waker marks one suspended task ready to run again. It is a small value,
// safe to copy, and safe to call from interrupt context: Wake never
// allocates, never blocks, and is a no-op once the task it was made for
// has completed. Calling it repeatedly is harmless.
//
// The zero Waker wakes nothing.
type Waker struct {
	reg *Registry
	id  TaskID
	gen uint32
}

// Wake sets the task's ready bit. It does not run the task.
func (w Waker) Wake() {
	if w.reg != nil {
		w.reg.wake(w.id, w.gen)
	}
}

// IsZero reports whether w wakes nothing
func (w Waker) IsZero() bool { return w.reg == nil }

// Task returns the task w wakes
func (w Waker) Task() TaskID { return w.id }

// Registry maps task slots to readiness. Readiness lives in atomic bit
// words so that wakers need no critical section; slot allocation happens
// in task context under CS.
type Registry struct {
	gens   [MaxTasks]atomic.Uint32 // live generation per slot, 0 when free
	ready  [readyWords]atomic.Uint32
	wakes  atomic.Uint32 // not-ready to ready transitions
	signal chan struct{}

	alloc Mutex[registryAlloc]
}

type registryAlloc struct {
	used    [readyWords]uint32
	nextGen uint32
}

// NewRegistry returns an empty task registry
func NewRegistry() *Registry {
	return &Registry{
		signal: make(chan struct{}, 1),
	}
}

// Register claims a task slot and returns the Waker for it.
func (r *Registry) Register() (TaskID, Waker, error) {
	var (
		id  TaskID
		gen uint32
		err error = ErrTaskTableFull
	)
	WithCS(func(cs CS) {
		a := r.alloc.Borrow(cs)
		for i := 0; i < MaxTasks; i++ {
			word, bit := i/32, uint32(1)<<(i%32)
			if a.used[word]&bit != 0 {
				continue
			}
			a.used[word] |= bit
			a.nextGen++
			if a.nextGen == 0 {
				a.nextGen = 1
			}
			id, gen, err = TaskID(i), a.nextGen, nil
			r.clearReady(id)
			r.gens[i].Store(gen)
			return
		}
	})
	if err != nil {
		return 0, Waker{}, err
	}
	return id, Waker{reg: r, id: id, gen: gen}, nil
}

// Complete frees the slot of a finished task. Wakers issued for it turn
// into no-ops.
func (r *Registry) Complete(id TaskID) {
	if int(id) >= MaxTasks {
		return
	}
	WithCS(func(cs CS) {
		a := r.alloc.Borrow(cs)
		r.gens[id].Store(0)
		r.clearReady(id)
		a.used[id/32] &^= uint32(1) << (id % 32)
	})
}

// Live reports whether id is a registered, unfinished task
func (r *Registry) Live(id TaskID) bool {
	return int(id) < MaxTasks && r.gens[id].Load() != 0
}

func (r *Registry) wake(id TaskID, gen uint32) {
	if int(id) >= MaxTasks || r.gens[id].Load() != gen {
		return
	}
	word := &r.ready[id/32]
	bit := uint32(1) << (id % 32)
	for {
		old := word.Load()
		if old&bit != 0 {
			return
		}
		if word.CompareAndSwap(old, old|bit) {
			break
		}
	}
	r.wakes.Add(1)
	select {
	case r.signal <- struct{}{}:
	default:
	}
}

func (r *Registry) clearReady(id TaskID) {
	word := &r.ready[id/32]
	bit := uint32(1) << (id % 32)
	for {
		old := word.Load()
		if old&bit == 0 || word.CompareAndSwap(old, old&^bit) {
			return
		}
	}
}

// IsReady reports whether id has been woken and not yet taken
func (r *Registry) IsReady(id TaskID) bool {
	if int(id) >= MaxTasks {
		return false
	}
	return r.ready[id/32].Load()&(uint32(1)<<(id%32)) != 0
}

// AnyReady reports whether some task is waiting to be polled
func (r *Registry) AnyReady() bool {
	for w := range r.ready {
		if r.ready[w].Load() != 0 {
			return true
		}
	}
	return false
}

// TakeReady clears the ready set and calls fn for every task that was in
// it, lowest slot first.
func (r *Registry) TakeReady(fn func(id TaskID)) int {
	n := 0
	for w := range r.ready {
		bits := r.ready[w].Swap(0)
		for i := 0; bits != 0; i++ {
			if bits&1 != 0 {
				fn(TaskID(w*32 + i))
				n++
			}
			bits >>= 1
		}
	}
	return n
}

// Signal returns a channel that receives after wakes. It is a hint for an
// idle executor; the ready set is the source of truth.
func (r *Registry) Signal() <-chan struct{} { return r.signal }

// Wakes returns how many times a task went from not ready to ready
func (r *Registry) Wakes() uint32 { return r.wakes.Load() }
