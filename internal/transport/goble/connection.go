package goble

import (
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/adaxtools/adaxctl/internal/transport"
)

// bleConnection wraps a live ble.Client. Characteristic handles are indexed by
// normalized UUID at connect time so lookups never re-walk the profile.
type bleConnection struct {
	client ble.Client
	logger *logrus.Logger

	writeMu sync.Mutex // serializes characteristic writes
	mu      sync.RWMutex
	closed  bool

	chars map[string]*ble.Characteristic
}

func newConnection(client ble.Client, profile *ble.Profile, logger *logrus.Logger) *bleConnection {
	chars := make(map[string]*ble.Characteristic)
	for _, svc := range profile.Services {
		for _, char := range svc.Characteristics {
			uuid := transport.NormalizeUUID(char.UUID.String())
			if _, ok := chars[uuid]; !ok {
				chars[uuid] = char
			}
		}
	}
	return &bleConnection{
		client: client,
		logger: logger,
		chars:  chars,
	}
}

func (c *bleConnection) characteristic(uuid string) (*ble.Characteristic, error) {
	char, ok := c.chars[transport.NormalizeUUID(uuid)]
	if !ok {
		return nil, &transport.NotFoundError{Resource: "characteristic", UUIDs: []string{uuid}}
	}
	return char, nil
}

func (c *bleConnection) Subscribe(characteristicUUID string, handler transport.NotificationHandler) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return transport.ErrNotConnected
	}
	client := c.client
	c.mu.RUnlock()

	char, err := c.characteristic(characteristicUUID)
	if err != nil {
		return err
	}

	err = client.Subscribe(char, false, func(data []byte) {
		handler(data)
	})
	if err != nil {
		return NormalizeError(err)
	}

	c.logger.WithField("char_uuid", characteristicUUID).Debug("Subscribed to characteristic notifications")
	return nil
}

func (c *bleConnection) Write(characteristicUUID string, data []byte) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return transport.ErrNotConnected
	}
	client := c.client
	c.mu.RUnlock()

	char, err := c.characteristic(characteristicUUID)
	if err != nil {
		return err
	}

	// Writes are acknowledged and serialized; the provisioning handshake
	// depends on chunk ordering on the wire.
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := client.WriteCharacteristic(char, data, false); err != nil {
		return NormalizeError(err)
	}
	return nil
}

func (c *bleConnection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case <-c.client.Disconnected():
		return false
	default:
		return true
	}
}

func (c *bleConnection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	client := c.client
	c.mu.Unlock()

	client.ClearSubscriptions()
	err := client.CancelConnection()
	if err != nil {
		c.logger.WithError(err).Warn("BLE connection closed with errors")
		return NormalizeError(err)
	}
	c.logger.Debug("BLE connection closed")
	return nil
}
