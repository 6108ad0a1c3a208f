// Package inbox is the single queue through which remote commands reach the
// control loop. Producers (MQTT callbacks, HTTP handlers) run on their own
// goroutines; only the control loop drains, so every state change it applies
// is serialized with the per-cycle mode step.
package inbox

import "sync/atomic"

// Source names where a message came from.
type Source string

const (
	SourceMQTT Source = "mqtt"
	SourceHTTP Source = "http"
)

// Message is one inbound command payload.
type Message struct {
	Source  Source
	Payload []byte
}

// Inbox is a bounded multi-producer, single-consumer queue.
type Inbox struct {
	ch      chan Message
	dropped atomic.Int64
}

// New creates an inbox holding up to capacity pending messages.
func New(capacity int) *Inbox {
	if capacity <= 0 {
		capacity = 1
	}
	return &Inbox{ch: make(chan Message, capacity)}
}

// Push enqueues a copy of payload without blocking. It returns false (and
// counts a drop) when the inbox is full.
func (b *Inbox) Push(src Source, payload []byte) bool {
	msg := Message{Source: src, Payload: append([]byte(nil), payload...)}
	select {
	case b.ch <- msg:
		return true
	default:
		b.dropped.Add(1)
		return false
	}
}

// Drain returns every message queued so far, oldest first.
func (b *Inbox) Drain() []Message {
	var out []Message
	for {
		select {
		case m := <-b.ch:
			out = append(out, m)
		default:
			return out
		}
	}
}

// Dropped returns how many messages were rejected because the inbox was full.
func (b *Inbox) Dropped() int64 {
	return b.dropped.Load()
}
