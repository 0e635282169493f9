package serial

import "net"

// pipePort adapts one end of net.Pipe to Port
type pipePort struct {
	net.Conn
}

func (p pipePort) Flush() error { return nil }

// Pipe returns two connected in-memory ports. Writes on one block until
// the other end reads them.
func Pipe() (Port, Port) {
	a, b := net.Pipe()
	return pipePort{a}, pipePort{b}
}
