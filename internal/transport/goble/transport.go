// Package goble binds the transport capability to github.com/go-ble/ble.
package goble

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/adaxtools/adaxctl/internal/transport"
)

// DeviceFactory creates ble.Device instances (can be overridden in tests).
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = func() (ble.Device, error) {
	return newNativeDevice()
}

type bleTransport struct {
	logger *logrus.Logger

	mu  sync.Mutex
	dev ble.Device
}

// New creates a Transport backed by the host BLE adapter. The underlying
// ble.Device is created lazily on first use.
func New(logger *logrus.Logger) transport.Transport {
	if logger == nil {
		logger = logrus.New()
	}
	return &bleTransport{logger: logger}
}

func (t *bleTransport) device() (ble.Device, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dev != nil {
		return t.dev, nil
	}
	dev, err := DeviceFactory()
	if err != nil {
		return nil, NormalizeError(err)
	}
	ble.SetDefaultDevice(dev)
	t.dev = dev
	return dev, nil
}

// Discover runs a single scan pass over the window, deduplicating
// advertisements by address while preserving first-seen order. Advertisement
// callbacks may fire concurrently, so the seen-set is a lock-free hashmap and
// the ordered result slice has its own mutex.
func (t *bleTransport) Discover(ctx context.Context, window time.Duration) ([]transport.Advertisement, error) {
	dev, err := t.device()
	if err != nil {
		return nil, err
	}

	scanCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	seen := hashmap.New[string, struct{}]()
	var resultMu sync.Mutex
	var advs []transport.Advertisement

	handler := func(a ble.Advertisement) {
		addr := a.Addr().String()
		if _, loaded := seen.GetOrInsert(addr, struct{}{}); loaded {
			return
		}
		resultMu.Lock()
		advs = append(advs, newAdvertisement(a))
		resultMu.Unlock()
	}

	t.logger.WithField("window", window).Debug("Starting BLE discovery pass")
	err = dev.Scan(scanCtx, false, handler)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, NormalizeError(err)
	}
	// Scan ending on the window deadline is the normal completion path, but
	// a cancelled parent context must still surface to the caller.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	t.logger.WithField("advertisements", len(advs)).Debug("BLE discovery pass completed")
	return advs, nil
}

// Connect dials the peripheral and discovers its GATT profile.
func (t *bleTransport) Connect(ctx context.Context, address string, opts *transport.ConnectOptions) (transport.Connection, error) {
	if opts == nil {
		opts = &transport.ConnectOptions{ConnectTimeout: 30 * time.Second}
	}
	if _, err := t.device(); err != nil {
		return nil, err
	}

	connCtx := ctx
	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connCtx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}

	t.logger.WithField("address", address).Info("Connecting to BLE device...")
	client, err := ble.Dial(connCtx, ble.NewAddr(address))
	if err != nil {
		return nil, NormalizeError(err)
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		_ = client.CancelConnection()
		return nil, NormalizeError(err)
	}

	conn := newConnection(client, profile, t.logger)
	t.logger.WithFields(logrus.Fields{
		"address":  address,
		"services": len(profile.Services),
	}).Info("BLE device connected")
	return conn, nil
}
