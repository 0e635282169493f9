package protocol

import "errors"

var (
	// ErrNeedMore means data holds the start of a frame but not all of it
	ErrNeedMore = errors.New("protocol: incomplete frame")
	// ErrBadFrame means the leading bytes are not a valid frame; skip the
	// returned count and scan again
	ErrBadFrame = errors.New("protocol: bad frame")
)

// Frame is one decoded frame. Payload aliases the scanned data.
type Frame struct {
	Seq     uint8
	Payload []byte
}

// ScanFrame decodes the frame at the start of data and returns it with
// the number of bytes it used. On ErrBadFrame, n is how many bytes to
// discard to reach the next possible frame start.
func ScanFrame(data []byte) (f Frame, n int, err error) {
	// Leading sync bytes are idle filler
	for n < len(data) && data[n] == MessageValueSync {
		n++
	}
	data = data[n:]
	if len(data) < MessageLengthMin {
		return Frame{}, n, ErrNeedMore
	}

	size := int(data[MessagePositionLen])
	seq := data[MessagePositionSeq]
	if size < MessageLengthMin || seq&^MessageSeqMask != MessageDest {
		return Frame{}, n + resync(data), ErrBadFrame
	}
	if len(data) < size {
		return Frame{}, n, ErrNeedMore
	}
	if data[size-1] != MessageValueSync {
		return Frame{}, n + resync(data), ErrBadFrame
	}
	crc := uint16(data[size-3])<<8 | uint16(data[size-2])
	if crc != CRC16(data[:size-MessageTrailerSize]) {
		return Frame{}, n + resync(data), ErrBadFrame
	}
	return Frame{Seq: seq, Payload: data[MessageHeaderSize : size-MessageTrailerSize]}, n + size, nil
}

// resync returns the offset just past the next sync byte, or all of data
func resync(data []byte) int {
	for i, b := range data {
		if b == MessageValueSync {
			return i + 1
		}
	}
	return len(data)
}

// EncodeFrame writes one frame with the payload body produces. The length
// byte is patched in once the payload size is known.
func EncodeFrame(output OutputBuffer, seq uint8, body func(output OutputBuffer)) {
	start := output.CurPosition()
	output.Output([]byte{0, seq})
	if body != nil {
		body(output)
	}
	size := len(output.DataSince(start)) + MessageTrailerSize
	output.Update(start, uint8(size))
	crc := CRC16(output.DataSince(start))
	output.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
}

// EncodeMessage writes a frame holding a single message
func EncodeMessage(output OutputBuffer, seq uint8, id uint32, args func(output OutputBuffer)) {
	EncodeFrame(output, seq, func(output OutputBuffer) {
		EncodeVLQUint(output, id)
		if args != nil {
			args(output)
		}
	})
}
