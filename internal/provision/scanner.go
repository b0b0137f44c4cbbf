package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/adaxtools/adaxctl/internal/transport"
)

// Candidate identifies an eligible heater located during scanning.
type Candidate struct {
	Address string
	MACID   uint64
}

// ScanOptions configures discovery behavior.
type ScanOptions struct {
	// Window is the duration of one discovery pass. A pass always runs its
	// full window before retry logic applies.
	Window time.Duration

	// MaxRetries is the number of additional passes run when a pass yields
	// no candidate. Retries are sequential.
	MaxRetries int
}

// DefaultScanOptions returns the scan parameters used by the original heater
// pairing flow: one 60-second pass plus one retry.
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		Window:     60 * time.Second,
		MaxRetries: 1,
	}
}

// Scanner locates an unregistered Adax heater over the radio transport.
type Scanner struct {
	transport transport.Transport
	logger    *logrus.Logger
}

// NewScanner creates a heater scanner.
func NewScanner(t transport.Transport, logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{transport: t, logger: logger}
}

// Scan runs up to 1+MaxRetries discovery passes and returns the first
// eligible heater, in transport-reported discovery order.
//
// Failure classification:
//   - a pass sees an Adax-service advertisement whose record is parseable but
//     ineligible: the whole scan fails immediately with a
//     DeviceNotAvailableError (no further passes - the heater is known-bad);
//   - the retry budget runs out without a candidate: ErrDeviceNotFound;
//   - transport errors propagate as-is.
//
// An Adax-service advertisement with absent or short manufacturer data is
// soft-skipped: it carries no usable record, so the pass continues and may
// retry.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) (*Candidate, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}

	attempts := opts.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"of":      attempts,
			"window":  opts.Window,
		}).Info("Scanning for Adax heater...")

		candidate, err := s.pass(ctx, opts.Window)
		if err != nil {
			return nil, err
		}
		if candidate != nil {
			s.logger.WithFields(logrus.Fields{
				"address": candidate.Address,
				"mac_id":  candidate.MACID,
			}).Info("Found available Adax heater")
			return candidate, nil
		}
	}

	return nil, fmt.Errorf("%w after %d scan attempts", ErrDeviceNotFound, attempts)
}

// pass runs one full discovery window. Returns (nil, nil) when the pass saw
// nothing usable, which makes the caller retry.
func (s *Scanner) pass(ctx context.Context, window time.Duration) (*Candidate, error) {
	advs, err := s.transport.Discover(ctx, window)
	if err != nil {
		return nil, err
	}

	for _, adv := range advs {
		if !advertisesService(adv, ServiceUUID) {
			continue
		}

		log := s.logger.WithField("address", adv.Addr())
		log.Info("Found Adax heater advertisement")

		record, ok := ParseManufacturerRecord(adv.ManufacturerData())
		if !ok {
			// No usable record - not a known-bad device, keep looking.
			log.WithField("manufacturer_data_len", len(adv.ManufacturerData())).
				Debug("Advertisement carries no usable manufacturer record, skipping")
			continue
		}

		eligible, reason := record.Eligible()
		if !eligible {
			log.WithFields(logrus.Fields{
				"mac_id": record.MACID,
				"reason": reason,
			}).Warn("Heater not available")
			return nil, &DeviceNotAvailableError{
				Address: adv.Addr(),
				MACID:   record.MACID,
				Reason:  reason,
			}
		}

		return &Candidate{Address: adv.Addr(), MACID: record.MACID}, nil
	}

	return nil, nil
}

// advertisesService reports whether the advertisement exposes the given
// service UUID.
func advertisesService(adv transport.Advertisement, uuid string) bool {
	for _, svc := range adv.Services() {
		if transport.UUIDEqual(svc, uuid) {
			return true
		}
	}
	return false
}
