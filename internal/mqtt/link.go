package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/ac-controller/internal/inbox"
	"github.com/sweeney/ac-controller/internal/logger"
)

// State is the broker connectivity state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

const (
	// DefaultRetry is the fixed delay between failed connection attempts.
	DefaultRetry = time.Second
	// DefaultBufferSize is how many outbound messages are kept while offline.
	DefaultBufferSize = 64

	// ConnectedMessage is reported once the command topic is subscribed.
	ConnectedMessage = "MQTT connected and subscribed."
	// LostMessage is reported when an established session drops.
	LostMessage = "MQTT connection lost."

	// writeTimeout bounds how long the writer goroutine waits on a stalled
	// socket before paho gives up on a publish.
	writeTimeout        = 2 * time.Second
	disconnectQuiesceMs = 250
)

// Notice is a connectivity event for the diagnostic channel.
type Notice struct {
	Kind    string
	Message string
}

// Notice kinds.
const (
	NoticeConnected   = "connected"
	NoticeLost        = "lost"
	NoticeUnavailable = "unavailable"
)

// LinkConfig holds the broker settings.
type LinkConfig struct {
	Broker     string
	DeviceID   string
	Retry      time.Duration
	BufferSize int
}

// Link maintains the broker session without ever blocking the caller.
// Poll advances a Disconnected -> Connecting -> Connected state machine
// using paho tokens checked without waiting. Inbound commands are pushed to
// the inbox. Outbound messages go through a queue drained by one writer
// goroutine, since paho's Publish can block on a stalled socket; messages
// that do not fit the queue, or are sent while offline, wait in the ring
// buffer and are flushed in order.
type Link struct {
	mu sync.Mutex

	client paho.Client
	topics Topics
	inbox  *inbox.Inbox
	log    *logger.Logger
	retry  time.Duration

	state       State
	connectTok  paho.Token
	subTok      paho.Token
	nextAttempt time.Time
	buffer      *ringBuffer
	sessions    int
	outage      bool
	closed      bool

	out  chan bufferedMsg
	quit chan struct{}
	wg   sync.WaitGroup
}

// NewLink creates a Link for the configured broker. No network I/O happens
// until the first Poll.
func NewLink(cfg LinkConfig, in *inbox.Inbox, log *logger.Logger) *Link {
	topics := TopicsFor(cfg.DeviceID)
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.DeviceID).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetOrderMatters(false).
		SetConnectTimeout(5*time.Second).
		SetWriteTimeout(writeTimeout).
		SetWill(topics.Log, cfg.DeviceID+" offline", 0, false)

	return newLink(paho.NewClient(opts), cfg, in, log)
}

func newLink(client paho.Client, cfg LinkConfig, in *inbox.Inbox, log *logger.Logger) *Link {
	if cfg.Retry <= 0 {
		cfg.Retry = DefaultRetry
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if log == nil {
		log = logger.Nop()
	}
	l := &Link{
		client: client,
		topics: TopicsFor(cfg.DeviceID),
		inbox:  in,
		log:    log,
		retry:  cfg.Retry,
		buffer: newRingBuffer(cfg.BufferSize),
		out:    make(chan bufferedMsg, cfg.BufferSize),
		quit:   make(chan struct{}),
	}
	l.wg.Add(1)
	go l.writer()
	return l
}

// writer is the only goroutine that calls paho's Publish.
func (l *Link) writer() {
	defer l.wg.Done()
	for {
		select {
		case <-l.quit:
			return
		case m := <-l.out:
			if err := l.publish(m); err != nil {
				l.log.Warnw("publish failed", "error", err)
			}
		}
	}
}

// Topics returns the topics this link uses.
func (l *Link) Topics() Topics {
	return l.topics
}

// State returns the current connectivity state.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// IsConnected implements ConnectionStatus.
func (l *Link) IsConnected() bool {
	return l.State() == StateConnected
}

// Sessions returns how many times the link reached Connected.
func (l *Link) Sessions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessions
}

// Poll advances the connection state machine by at most one step and
// returns the connectivity events that step produced. A run of failed
// attempts is reported once, when the outage starts.
func (l *Link) Poll(now time.Time) []Notice {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}

	switch l.state {
	case StateDisconnected:
		if now.Before(l.nextAttempt) {
			return nil
		}
		l.connectTok = l.client.Connect()
		l.subTok = nil
		l.state = StateConnecting

	case StateConnecting:
		if l.subTok == nil {
			if !done(l.connectTok) {
				return nil
			}
			if err := l.connectTok.Error(); err != nil {
				return l.fail(now, fmt.Errorf("connect: %w", err))
			}
			l.subTok = l.client.Subscribe(l.topics.Cmd, 0, l.onMessage)
		}
		if !done(l.subTok) {
			return nil
		}
		if err := l.subTok.Error(); err != nil {
			l.client.Disconnect(0)
			return l.fail(now, fmt.Errorf("subscribe %s: %w", l.topics.Cmd, err))
		}
		l.state = StateConnected
		l.sessions++
		l.outage = false
		l.log.Infow("mqtt connected", "topic", l.topics.Cmd)
		l.flush()
		return []Notice{{Kind: NoticeConnected, Message: ConnectedMessage}}

	case StateConnected:
		if l.client.IsConnectionOpen() {
			l.flush()
			return nil
		}
		l.log.Warn("mqtt connection lost")
		l.state = StateDisconnected
		l.nextAttempt = now
		l.outage = true
		return []Notice{{Kind: NoticeLost, Message: LostMessage}}
	}
	return nil
}

func (l *Link) fail(now time.Time, err error) []Notice {
	l.log.Warnw("mqtt unavailable", "error", err, "retry", l.retry)
	l.state = StateDisconnected
	l.connectTok = nil
	l.subTok = nil
	l.nextAttempt = now.Add(l.retry)
	if l.outage {
		return nil
	}
	l.outage = true
	return []Notice{{
		Kind:    NoticeUnavailable,
		Message: fmt.Sprintf("MQTT unavailable: %v; retrying every %v.", err, l.retry),
	}}
}

// onMessage runs on a paho goroutine; it only hands the payload over.
func (l *Link) onMessage(_ paho.Client, m paho.Message) {
	if !l.inbox.Push(inbox.SourceMQTT, m.Payload()) {
		l.log.Warnw("inbox full, command dropped", "topic", m.Topic())
	}
}

// PublishLog implements Publisher.
func (l *Link) PublishLog(msg string) error {
	return l.send(l.topics.Log, []byte(msg))
}

// PublishStatus implements Publisher.
func (l *Link) PublishStatus(payload []byte) error {
	return l.send(l.topics.Status, payload)
}

func (l *Link) send(topic string, payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := bufferedMsg{topic: topic, payload: payload}
	if l.state != StateConnected || l.buffer.len() > 0 || !l.enqueue(msg) {
		l.hold(msg)
	}
	return nil
}

// enqueue hands msg to the writer without waiting.
func (l *Link) enqueue(m bufferedMsg) bool {
	select {
	case l.out <- m:
		return true
	default:
		return false
	}
}

func (l *Link) hold(m bufferedMsg) {
	if l.buffer.push(m) {
		l.log.Warnw("mqtt outbound buffer full, dropping oldest", "capacity", l.buffer.capacity)
	}
}

// publish runs on the writer goroutine and only inspects the token if it
// already finished.
func (l *Link) publish(m bufferedMsg) error {
	tok := l.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if done(tok) {
		if err := tok.Error(); err != nil {
			return fmt.Errorf("publish %s: %w", m.topic, err)
		}
	}
	return nil
}

// flush moves held messages to the writer queue in order, as far as it has
// room. The rest stay held for the next Poll.
func (l *Link) flush() {
	msgs := l.buffer.drainAll()
	for i, m := range msgs {
		if l.enqueue(m) {
			continue
		}
		for _, rest := range msgs[i:] {
			l.buffer.push(rest)
		}
		return
	}
	if len(msgs) > 0 {
		l.log.Infow("flushed outbound buffer", "count", len(msgs))
	}
}

// Buffered returns how many messages are waiting for a connection.
func (l *Link) Buffered() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buffer.len()
}

// Close disconnects from the broker, including a session still being set
// up, and stops the writer. Messages not yet written are discarded.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	if l.state != StateDisconnected {
		l.client.Disconnect(disconnectQuiesceMs)
	}
	l.state = StateDisconnected
	l.connectTok = nil
	l.subTok = nil
	l.mu.Unlock()

	close(l.quit)
	l.wg.Wait()
	return nil
}

func done(t paho.Token) bool {
	if t == nil {
		return false
	}
	select {
	case <-t.Done():
		return true
	default:
		return false
	}
}
