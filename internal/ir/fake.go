package ir

// FakeReceiver is a test double that returns scripted captures.
type FakeReceiver struct {
	// Queue holds captures to deliver; each Poll pops one.
	Queue []Capture
	// PollError, if set, will be returned by Poll.
	PollError error
	// Polls counts Poll calls.
	Polls int
	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeReceiver creates a FakeReceiver with the given captures queued.
func NewFakeReceiver(captures ...Capture) *FakeReceiver {
	return &FakeReceiver{Queue: captures}
}

// Push queues another capture.
func (f *FakeReceiver) Push(c Capture) {
	f.Queue = append(f.Queue, c)
}

// Poll pops the next queued capture.
func (f *FakeReceiver) Poll() (Capture, bool, error) {
	f.Polls++
	if f.PollError != nil {
		return Capture{}, false, f.PollError
	}
	if len(f.Queue) == 0 {
		return Capture{}, false, nil
	}
	c := f.Queue[0]
	f.Queue = f.Queue[1:]
	return c, true, nil
}

// Close marks the receiver as closed.
func (f *FakeReceiver) Close() error {
	f.Closed = true
	return nil
}

// Sent records one transmission.
type Sent struct {
	Raw       []uint16
	CarrierHz int
	Protocol  string
	Code      uint32
	Bits      uint16
}

// FakeTransmitter records transmissions for test assertions.
type FakeTransmitter struct {
	Sent []Sent
	// SendError, if set, will be returned by SendRaw and SendCode.
	SendError error
	Closed    bool
}

// NewFakeTransmitter creates a FakeTransmitter.
func NewFakeTransmitter() *FakeTransmitter {
	return &FakeTransmitter{}
}

// SendRaw records a raw transmission.
func (f *FakeTransmitter) SendRaw(durations []uint16, carrierHz int) error {
	if f.SendError != nil {
		return f.SendError
	}
	f.Sent = append(f.Sent, Sent{Raw: append([]uint16(nil), durations...), CarrierHz: carrierHz})
	return nil
}

// SendCode records a protocol transmission.
func (f *FakeTransmitter) SendCode(protocol string, code uint32, bits uint16) error {
	if f.SendError != nil {
		return f.SendError
	}
	f.Sent = append(f.Sent, Sent{Protocol: protocol, Code: code, Bits: bits})
	return nil
}

// Close marks the transmitter as closed.
func (f *FakeTransmitter) Close() error {
	f.Closed = true
	return nil
}
