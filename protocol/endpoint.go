package protocol

// Handler runs one message. It decodes its own arguments from args and
// answers through the Endpoint it was registered with, echoing seq.
type Handler func(seq uint8, id uint32, args *[]byte) error

// Endpoint is the board side of the link: it parses incoming frames,
// hands each message to the handler and collects replies in output. It
// runs in task context only.
type Endpoint struct {
	output  OutputBuffer
	handler Handler

	frames    uint32
	badFrames uint32
	errors    uint32
}

// NewEndpoint returns an endpoint writing replies to output
func NewEndpoint(output OutputBuffer, handler Handler) *Endpoint {
	return &Endpoint{output: output, handler: handler}
}

// Receive consumes every complete frame in input. A partial frame stays
// buffered for the next call; garbage is skipped up to the next sync byte.
func (e *Endpoint) Receive(input InputBuffer) {
	for input.Available() > 0 {
		f, n, err := ScanFrame(input.Data())
		switch err {
		case ErrNeedMore:
			input.Pop(n) // only leading filler
			return
		case ErrBadFrame:
			e.badFrames++
			input.Pop(n)
			continue
		}
		e.frames++
		e.dispatch(f)
		input.Pop(n)
	}
}

// dispatch runs the messages of one frame. A message that fails to decode
// or to run ends the frame, since later message boundaries are unknown.
func (e *Endpoint) dispatch(f Frame) {
	payload := f.Payload
	for len(payload) > 0 {
		id, err := DecodeVLQUint(&payload)
		if err != nil {
			e.errors++
			return
		}
		if e.handler == nil {
			continue
		}
		if err := e.handler(f.Seq, id, &payload); err != nil {
			e.errors++
			return
		}
	}
}

// Reply writes a response frame
func (e *Endpoint) Reply(seq uint8, id uint32, args func(output OutputBuffer)) {
	EncodeMessage(e.output, seq, id, args)
}

// Frames returns the number of valid frames received
func (e *Endpoint) Frames() uint32 { return e.frames }

// BadFrames returns how many times garbage was skipped
func (e *Endpoint) BadFrames() uint32 { return e.badFrames }

// Errors returns how many messages failed to decode or run
func (e *Endpoint) Errors() uint32 { return e.errors }
