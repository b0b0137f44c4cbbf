package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/adaxtools/adaxctl/internal/transport"
)

// ScriptedTransport is a transport.Transport that replays pre-scripted
// discovery passes and hands out a scripted connection. Each Discover call
// consumes one pass; once passes run out, further calls return empty passes.
type ScriptedTransport struct {
	mu     sync.Mutex
	passes [][]transport.Advertisement

	// DiscoverErr, when set, fails every Discover call.
	DiscoverErr error
	// ConnectErr, when set, fails every Connect call.
	ConnectErr error

	conn *ScriptedConnection

	discoverCalls int
	connectCalls  int
	connectedAddr string
}

// NewScriptedTransport creates an empty scripted transport.
func NewScriptedTransport() *ScriptedTransport {
	return &ScriptedTransport{}
}

// AddPass appends one discovery pass with the given advertisements, in
// discovery order.
func (t *ScriptedTransport) AddPass(advs ...transport.Advertisement) *ScriptedTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.passes = append(t.passes, advs)
	return t
}

// Connection returns the scripted connection handed out by Connect, creating
// it on first use so tests can script notifications up front.
func (t *ScriptedTransport) Connection() *ScriptedConnection {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		t.conn = NewScriptedConnection()
	}
	return t.conn
}

// DiscoverCalls reports how many discovery passes ran.
func (t *ScriptedTransport) DiscoverCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.discoverCalls
}

// ConnectCalls reports how many connections were opened.
func (t *ScriptedTransport) ConnectCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connectCalls
}

// ConnectedAddr reports the address passed to the last Connect call.
func (t *ScriptedTransport) ConnectedAddr() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connectedAddr
}

// Discover implements transport.Transport.
func (t *ScriptedTransport) Discover(ctx context.Context, window time.Duration) ([]transport.Advertisement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.discoverCalls++

	if t.DiscoverErr != nil {
		return nil, t.DiscoverErr
	}
	if len(t.passes) == 0 {
		return nil, nil
	}
	pass := t.passes[0]
	t.passes = t.passes[1:]
	return pass, nil
}

// Connect implements transport.Transport.
func (t *ScriptedTransport) Connect(ctx context.Context, address string, opts *transport.ConnectOptions) (transport.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.connectCalls++
	t.connectedAddr = address

	if t.ConnectErr != nil {
		return nil, t.ConnectErr
	}
	if t.conn == nil {
		t.conn = NewScriptedConnection()
	}
	return t.conn, nil
}

// ScriptedConnection is a transport.Connection that records writes and lets
// tests push notifications to the subscribed handler at chosen moments.
type ScriptedConnection struct {
	mu        sync.Mutex
	connected bool
	handlers  map[string]transport.NotificationHandler
	writes    [][]byte

	// SubscribeErr, when set, fails every Subscribe call.
	SubscribeErr error
	// WriteErr, when set, fails every Write call.
	WriteErr error
	// OnWrite, when set, runs after each successful write with the 0-based
	// write index. Tests use it to inject notifications mid-write-sequence.
	OnWrite func(writeIndex int)

	closeCalls int
}

// NewScriptedConnection creates a live scripted connection.
func NewScriptedConnection() *ScriptedConnection {
	return &ScriptedConnection{
		connected: true,
		handlers:  make(map[string]transport.NotificationHandler),
	}
}

// Subscribe implements transport.Connection.
func (c *ScriptedConnection) Subscribe(characteristicUUID string, handler transport.NotificationHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SubscribeErr != nil {
		return c.SubscribeErr
	}
	c.handlers[transport.NormalizeUUID(characteristicUUID)] = handler
	return nil
}

// Write implements transport.Connection.
func (c *ScriptedConnection) Write(characteristicUUID string, data []byte) error {
	c.mu.Lock()
	if c.WriteErr != nil {
		c.mu.Unlock()
		return c.WriteErr
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.writes = append(c.writes, buf)
	index := len(c.writes) - 1
	hook := c.OnWrite
	c.mu.Unlock()

	if hook != nil {
		hook(index)
	}
	return nil
}

// IsConnected implements transport.Connection.
func (c *ScriptedConnection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close implements transport.Connection.
func (c *ScriptedConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.closeCalls++
	return nil
}

// CloseCalls reports how many times Close ran.
func (c *ScriptedConnection) CloseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}

// SetConnected flips link liveness, simulating a connection drop.
func (c *ScriptedConnection) SetConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = connected
}

// Notify pushes a notification to the handler subscribed on the given
// characteristic. It is a no-op when nothing is subscribed.
func (c *ScriptedConnection) Notify(characteristicUUID string, data []byte) {
	c.mu.Lock()
	handler := c.handlers[transport.NormalizeUUID(characteristicUUID)]
	c.mu.Unlock()
	if handler != nil {
		handler(data)
	}
}

// Writes returns a copy of all recorded write frames in order.
func (c *ScriptedConnection) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	writes := make([][]byte, len(c.writes))
	copy(writes, c.writes)
	return writes
}

// WrittenPayload reassembles the chunked payload from the recorded writes by
// stripping each frame's 2-byte header and concatenating the bodies in index
// order.
func (c *ScriptedConnection) WrittenPayload() []byte {
	var payload []byte
	for _, frame := range c.Writes() {
		if len(frame) < 2 {
			continue
		}
		payload = append(payload, frame[2:]...)
	}
	return payload
}
