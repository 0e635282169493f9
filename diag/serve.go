package diag

import (
	"io"

	"tickcore/protocol"
)

// Serve answers commands arriving on rw until a read or write fails. It
// is the hosted counterpart of a target's USB polling loop.
func (s *Server) Serve(rw io.ReadWriter) error {
	rx := protocol.NewFifoBuffer(1024)
	buf := make([]byte, 256)
	for {
		n, err := rw.Read(buf)
		if n > 0 {
			rx.Write(buf[:n])
			s.Receive(rx)
			var werr error
			s.Flush(func(b []byte) {
				_, werr = rw.Write(b)
			})
			if werr != nil {
				return werr
			}
		}
		if err != nil {
			return err
		}
	}
}
