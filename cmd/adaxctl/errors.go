package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/adaxtools/adaxctl/heater"
	"github.com/adaxtools/adaxctl/internal/provision"
	"github.com/adaxtools/adaxctl/internal/transport"
)

// FormatUserError turns provisioning and control failures into actionable
// messages. Unknown errors pass through unchanged.
func FormatUserError(err error) string {
	var navail *provision.DeviceNotAvailableError
	if errors.As(err, &navail) {
		switch navail.Reason {
		case provision.ReasonAlreadyRegistered:
			return fmt.Sprintf("heater %s is already registered to an account; factory-reset it before pairing", navail.Address)
		case provision.ReasonAlreadyManaged:
			return fmt.Sprintf("heater %s is already managed by another controller; factory-reset it before pairing", navail.Address)
		default:
			return fmt.Sprintf("device %s is not a supported heater model", navail.Address)
		}
	}

	switch {
	case errors.Is(err, provision.ErrDeviceNotFound):
		return "no heater in pairing mode found; press and hold the heater's OK button until its blue LED flashes, then try again"
	case errors.Is(err, provision.ErrInvalidCredentials):
		return "the heater rejected the WiFi credentials; check the network name and password"
	case errors.Is(err, provision.ErrTimeout):
		return "the heater did not confirm joining the network in time; check the WiFi signal near the heater and try again"
	case errors.Is(err, provision.ErrConnectionFailed):
		return "lost the Bluetooth connection to the heater; move closer and try again"
	case errors.Is(err, transport.ErrBluetoothOff):
		return "Bluetooth is turned off; enable it and try again"
	case heater.Timeout(err):
		return "the heater did not respond; check that it is powered on and reachable on your network"
	}

	var rerr *heater.RequestError
	if errors.As(err, &rerr) && rerr.StatusCode == http.StatusUnauthorized {
		return "the heater rejected the access token; re-pair the heater to mint a new one"
	}

	return err.Error()
}
