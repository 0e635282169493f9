// Package protocol implements the framed byte protocol spoken between a
// board and host tools over USB CDC or a UART.
//
// A frame is
//
//	len seq payload... crc_hi crc_lo 0x7E
//
// where len counts the whole frame and the CRC covers len, seq and the
// payload. The payload is a sequence of messages, each a VLQ message id
// followed by VLQ-encoded arguments.
package protocol

// Version of the wire protocol
const Version = "1"

// Frame layout
const (
	MessageHeaderSize  = 2 // len, seq
	MessageTrailerSize = 3 // crc_hi, crc_lo, sync
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 255
	MessagePayloadMax  = MessageLengthMax - MessageLengthMin

	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageValueSync   = 0x7E

	// Sequence bytes carry MessageDest in the high nibble and a
	// wrapping counter in the low nibble.
	MessageDest    = 0x10
	MessageSeqMask = 0x0F
)

// MessageMax is the size of a ScratchOutput, enough for a few frames
const MessageMax = 512

// NextSeq returns the sequence byte following seq
func NextSeq(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}
