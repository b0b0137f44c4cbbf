package provision

import (
	"errors"
	"fmt"
)

// Terminal provisioning failure kinds. Each maps to a different caller
// remediation: retry discovery, abort because the heater is already claimed,
// re-enter credentials, or retry the whole session.
var (
	// ErrDeviceNotFound - no eligible advertisement after the retry budget.
	ErrDeviceNotFound = errors.New("no available heater found")

	// ErrDeviceNotAvailable - an Adax heater was seen but cannot be
	// provisioned (wrong model, or already registered/managed).
	ErrDeviceNotAvailable = errors.New("heater not available")

	// ErrConnectionFailed - the transport connection could not be established
	// or broke before the handshake completed.
	ErrConnectionFailed = errors.New("heater connection failed")

	// ErrInvalidCredentials - the heater rejected the WiFi secrets.
	ErrInvalidCredentials = errors.New("heater rejected wifi credentials")

	// ErrTimeout - no terminal notification arrived within the wait budget,
	// or the link dropped while waiting.
	ErrTimeout = errors.New("timed out waiting for heater")
)

// UnavailableReason distinguishes why a service-matching heater was rejected.
type UnavailableReason string

const (
	ReasonWrongDeviceType   UnavailableReason = "wrong_device_type"
	ReasonAlreadyRegistered UnavailableReason = "already_registered"
	ReasonAlreadyManaged    UnavailableReason = "already_managed"
)

// DeviceNotAvailableError carries the identity and rejection reason of a
// matching-but-unusable heater. Unwraps to ErrDeviceNotAvailable so callers
// can classify with errors.Is while still reading the reason.
type DeviceNotAvailableError struct {
	Address string
	MACID   uint64
	Reason  UnavailableReason
}

func (e *DeviceNotAvailableError) Error() string {
	return fmt.Sprintf("heater %s not available: %s", e.Address, e.Reason)
}

func (e *DeviceNotAvailableError) Unwrap() error {
	return ErrDeviceNotAvailable
}
