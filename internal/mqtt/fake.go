package mqtt

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	// Logs contains every diagnostic, in order.
	Logs []string

	// Statuses contains every status payload, in order.
	Statuses [][]byte

	// PublishError, if set, is returned by both publish methods.
	PublishError error

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Connected: true}
}

// PublishLog records the diagnostic.
func (f *FakePublisher) PublishLog(msg string) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Logs = append(f.Logs, msg)
	return nil
}

// PublishStatus records the status payload.
func (f *FakePublisher) PublishStatus(payload []byte) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Statuses = append(f.Statuses, append([]byte(nil), payload...))
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.Logs = nil
	f.Statuses = nil
	f.PublishError = nil
}
