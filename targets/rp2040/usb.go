//go:build rp2040

package main

import (
	"machine"

	"tickcore/core"
	"tickcore/diag"
	"tickcore/protocol"
)

// USB CDC carries the diagnostic link. TinyGo buffers received bytes in
// its USB interrupt; the link task drains them on a fixed poll interval.
const (
	usbPollTicks   core.Tick = 1000 // 1ms
	maxWriteErrors           = 10
)

type usbLink struct {
	server *diag.Server
	rx     *protocol.FifoBuffer
	delay  *core.Delay
	chunk  [64]byte

	readErrors   uint32
	writeErrors  uint32
	disconnected bool
}

func newUSBLink(d *core.TimeDriver) *usbLink {
	machine.Serial.Configure(machine.UARTConfig{})
	return &usbLink{
		server: diag.NewServer(d),
		rx:     protocol.NewFifoBuffer(256),
		delay:  d.At(d.Now() + usbPollTicks),
	}
}

// Poll implements executor.Task. It never completes.
func (l *usbLink) Poll(w core.Waker) core.Poll {
	for l.delay.Poll(w) == core.Ready {
		l.service()
		l.delay.Reset(l.delay.Deadline + usbPollTicks)
	}
	return core.Pending
}

func (l *usbLink) service() {
	got := false
	for machine.Serial.Buffered() > 0 && l.rx.Free() > 0 {
		n := len(l.chunk)
		if free := l.rx.Free(); free < n {
			n = free
		}
		n, err := machine.Serial.Read(l.chunk[:n])
		if err != nil {
			l.readErrors++
			core.DebugPrintln("[USB] read: " + err.Error())
		}
		if n == 0 {
			break
		}
		l.rx.Write(l.chunk[:n])
		got = true
	}
	if !got {
		return
	}
	if l.disconnected {
		// Host came back; drop whatever was half sent to the old session
		l.disconnected = false
		l.writeErrors = 0
	}
	l.server.Receive(l.rx)
	l.server.Flush(l.write)
}

func (l *usbLink) write(data []byte) {
	if l.disconnected {
		return
	}
	for len(data) > 0 {
		n, err := machine.Serial.Write(data)
		if err != nil || n == 0 {
			l.writeErrors++
			if l.writeErrors > maxWriteErrors {
				l.disconnected = true
				l.rx.Reset()
			}
			return
		}
		data = data[n:]
	}
	l.writeErrors = 0
}
