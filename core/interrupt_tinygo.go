//go:build tinygo

package core

import "runtime/interrupt"

// State is the saved interrupt mask returned by interrupt.Disable
type State = interrupt.State

// disableInterrupts disables interrupts and returns the previous state.
// Calls nest: each Restore puts back the mask its Disable saw.
func disableInterrupts() State {
	return interrupt.Disable()
}

// restoreInterrupts restores the interrupt state
func restoreInterrupts(state State) {
	interrupt.Restore(state)
}
