package core

// appendUint appends the decimal form of n to b without fmt, which is too
// heavy for the firmware image. It allocates only if b is out of room.
func appendUint(b []byte, n uint32) []byte {
	var digits [10]byte
	pos := len(digits)
	for {
		pos--
		digits[pos] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return append(b, digits[pos:]...)
}
