// Package serial opens the board's diagnostic port on the host.
package serial

import (
	"io"
	"time"
)

// Port is a byte stream to the board. Native builds back it with
// github.com/tarm/serial; tests and the simulator use Pipe.
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input and unsent output
	Flush() error
}

// Config describes how to open a port
type Config struct {
	Device      string        // e.g. /dev/ttyACM0, COM3
	Baud        int           // ignored by USB CDC
	ReadTimeout time.Duration // 0 blocks until data arrives
}

// DefaultConfig returns the settings the firmware's USB CDC port expects
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}
