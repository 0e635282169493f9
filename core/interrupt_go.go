//go:build !tinygo

package core

import "sync"

// State is a placeholder for interrupt state on regular Go
type State uintptr

// hostSection stands in for the interrupt mask on host builds. Simulated
// interrupt handlers run on other goroutines, so the section has to be a
// real lock here. It does not nest: code already holding a CS passes the
// token down instead of entering again.
var hostSection sync.Mutex

// disableInterrupts enters the host critical section
func disableInterrupts() State {
	hostSection.Lock()
	return 0
}

// restoreInterrupts leaves the host critical section
func restoreInterrupts(state State) {
	hostSection.Unlock()
}
