package protocol

import "errors"

var (
	ErrShortVLQ = errors.New("protocol: truncated VLQ")
	ErrShortArg = errors.New("protocol: truncated argument")
)

// vlqBounds[i] is the smallest positive value that needs 5-i bytes.
// Negative values down to -(vlqBounds[i]/3) fit in the same length.
var vlqBounds = [4]int64{3 << 26, 3 << 19, 3 << 12, 3 << 5}

// EncodeVLQInt writes v most significant group first. The first byte's
// bit 6 doubles as a sign bit, so small negative numbers stay short.
func EncodeVLQInt(output OutputBuffer, v int32) {
	var buf [5]byte
	n := 0
	for i, hi := range vlqBounds {
		lo := -hi / 3
		if int64(v) < lo || int64(v) >= hi {
			shift := uint(7 * (4 - i))
			buf[n] = byte(v>>shift)&0x7F | 0x80
			n++
		}
	}
	buf[n] = byte(v) & 0x7F
	output.Output(buf[:n+1])
}

// EncodeVLQUint writes v with the same encoding as EncodeVLQInt
func EncodeVLQUint(output OutputBuffer, v uint32) {
	EncodeVLQInt(output, int32(v))
}

// EncodeVLQTick writes a 64-bit value as two VLQs, low word first
func EncodeVLQTick(output OutputBuffer, v uint64) {
	EncodeVLQUint(output, uint32(v))
	EncodeVLQUint(output, uint32(v>>32))
}

// DecodeVLQInt reads one VLQ and advances data past it
func DecodeVLQInt(data *[]byte) (int32, error) {
	d := *data
	if len(d) == 0 {
		return 0, ErrShortVLQ
	}
	c := uint32(d[0])
	v := c & 0x7F
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F)
	}
	i := 1
	for c&0x80 != 0 {
		if i >= len(d) {
			return 0, ErrShortVLQ
		}
		c = uint32(d[i])
		i++
		v = v<<7 | c&0x7F
	}
	*data = d[i:]
	return int32(v), nil
}

// DecodeVLQUint reads one VLQ as unsigned
func DecodeVLQUint(data *[]byte) (uint32, error) {
	v, err := DecodeVLQInt(data)
	return uint32(v), err
}

// DecodeVLQTick reads a value written by EncodeVLQTick
func DecodeVLQTick(data *[]byte) (uint64, error) {
	lo, err := DecodeVLQUint(data)
	if err != nil {
		return 0, err
	}
	hi, err := DecodeVLQUint(data)
	if err != nil {
		return 0, err
	}
	return uint64(hi)<<32 | uint64(lo), nil
}

// EncodeVLQBytes writes a length-prefixed byte string
func EncodeVLQBytes(output OutputBuffer, b []byte) {
	EncodeVLQUint(output, uint32(len(b)))
	output.Output(b)
}

// DecodeVLQBytes reads a length-prefixed byte string. The result aliases
// data.
func DecodeVLQBytes(data *[]byte) ([]byte, error) {
	n, err := DecodeVLQUint(data)
	if err != nil {
		return nil, err
	}
	if uint32(len(*data)) < n {
		return nil, ErrShortArg
	}
	b := (*data)[:n]
	*data = (*data)[n:]
	return b, nil
}

// EncodeVLQString writes a length-prefixed string
func EncodeVLQString(output OutputBuffer, s string) {
	EncodeVLQUint(output, uint32(len(s)))
	output.Output([]byte(s))
}

// DecodeVLQString reads a length-prefixed string
func DecodeVLQString(data *[]byte) (string, error) {
	b, err := DecodeVLQBytes(data)
	return string(b), err
}
