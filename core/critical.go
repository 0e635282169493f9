package core

// CS is proof that interrupts are disabled on this core. It is zero-sized
// and only handed out by WithCS; functions that touch state shared with
// interrupt handlers take a CS argument instead of entering a section
// themselves.
type CS struct {
	_ [0]func()
}

// WithCS runs fn with interrupts disabled.
//
// On the target the section is re-entrant: interrupt.Disable/Restore stack
// the saved mask, so a handler or helper may call WithCS while a section is
// already held. Host builds model the section with a mutex and require
// nested code to reuse the CS it was given.
//
// fn must not block, suspend, or loop over unbounded data.
func WithCS(fn func(cs CS)) {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	fn(CS{})
}

// Mutex is a value guarded by the critical section. It replaces the
// borrow-under-CS cells a task and an interrupt handler share.
type Mutex[T any] struct {
	v T
}

// Borrow returns a pointer to the guarded value. The CS argument ties the
// access to a live section; the pointer must not escape fn.
func (m *Mutex[T]) Borrow(_ CS) *T {
	return &m.v
}
