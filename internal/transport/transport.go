// Package transport defines the radio capability consumed by the provisioning
// core: advertisement discovery, connecting to a peripheral, characteristic
// writes and notification subscriptions. The core never touches a concrete
// BLE stack directly; the goble subpackage binds this interface to
// github.com/go-ble/ble, and tests substitute a scripted implementation.
package transport

import (
	"context"
	"strings"
	"time"
)

// Advertisement is the discovery-time view of a peripheral, captured from a
// single broadcast packet before any connection exists.
type Advertisement interface {
	Addr() string
	LocalName() string
	Services() []string
	ManufacturerData() []byte
	RSSI() int
	Connectable() bool
}

// Transport provides advertisement discovery and connection establishment.
type Transport interface {
	// Discover runs one scan pass over the given window and returns every
	// distinct advertisement seen, in transport-reported discovery order.
	// A full window always completes; Discover is not cancellable mid-window
	// except through ctx.
	Discover(ctx context.Context, window time.Duration) ([]Advertisement, error)

	// Connect opens a connection to the peripheral at the given address and
	// discovers its GATT profile.
	Connect(ctx context.Context, address string, opts *ConnectOptions) (Connection, error)
}

// ConnectOptions defines connection establishment parameters.
type ConnectOptions struct {
	ConnectTimeout time.Duration
}

// NotificationHandler receives notification payloads pushed by the peripheral.
// The data slice is only valid for the duration of the call; handlers must
// copy it if they retain it.
type NotificationHandler func(data []byte)

// Connection is a live link to a connected peripheral. A Connection is owned
// exclusively by one provisioning session for its whole lifetime.
type Connection interface {
	// Subscribe registers a handler for notifications on the given
	// characteristic. Notifications may arrive at any point after Subscribe
	// returns, including while a write is still in flight.
	Subscribe(characteristicUUID string, handler NotificationHandler) error

	// Write sends data to the given characteristic and waits for the write
	// acknowledgement before returning.
	Write(characteristicUUID string, data []byte) error

	// IsConnected reports link liveness.
	IsConnected() bool

	// Close releases the connection. Safe to call on an already closed
	// connection.
	Close() error
}

// NormalizeUUID converts a UUID string to the internal lookup format
// (lowercase, no dashes). Handles both dashed and already normalized forms.
func NormalizeUUID(uuid string) string {
	return strings.ToLower(strings.ReplaceAll(uuid, "-", ""))
}

// UUIDEqual compares two UUID strings ignoring case and dashes.
func UUIDEqual(a, b string) bool {
	return NormalizeUUID(a) == NormalizeUUID(b)
}
