package provision_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/adaxtools/adaxctl/internal/provision"
	"github.com/adaxtools/adaxctl/internal/testutils"
)

type ScannerTestSuite struct {
	suite.Suite

	logger *logrus.Logger
	opts   *provision.ScanOptions
}

func (suite *ScannerTestSuite) SetupTest() {
	suite.logger = logrus.New()
	suite.logger.SetLevel(logrus.PanicLevel)
	suite.opts = &provision.ScanOptions{
		Window:     10 * time.Millisecond,
		MaxRetries: 1,
	}
}

func heaterAdv(addr string, flags byte, mac [8]byte) *testutils.AdvertisementBuilder {
	return testutils.NewAdvertisementBuilder().
		WithAddress(addr).
		WithServices(provision.ServiceUUID).
		WithManufacturerData(testutils.HeaterManufacturerData(provision.DeviceTypeHeaterBLE, flags, mac))
}

func (suite *ScannerTestSuite) TestFindsEligibleHeater() {
	mac := [8]byte{0xAC, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x42}
	tr := testutils.NewScriptedTransport().
		AddPass(heaterAdv("AA:BB:CC:DD:EE:FF", 0, mac).Build())

	candidate, err := provision.NewScanner(tr, suite.logger).Scan(context.Background(), suite.opts)

	suite.NoError(err)
	suite.Require().NotNil(candidate)
	suite.Equal("AA:BB:CC:DD:EE:FF", candidate.Address)
	suite.Equal(uint64(0xAC00000000000042), candidate.MACID)
	suite.Equal(1, tr.DiscoverCalls(), "a hit on the first pass must not trigger a retry")
}

func (suite *ScannerTestSuite) TestRetriesThenNotFound() {
	// TEST SCENARIO: two empty passes (max_retries=1) exhaust the budget and
	// classify as not-found rather than a transport error.
	tr := testutils.NewScriptedTransport()

	candidate, err := provision.NewScanner(tr, suite.logger).Scan(context.Background(), suite.opts)

	suite.Nil(candidate)
	suite.ErrorIs(err, provision.ErrDeviceNotFound)
	suite.Equal(2, tr.DiscoverCalls())
}

func (suite *ScannerTestSuite) TestFoundOnRetryPass() {
	mac := [8]byte{0, 0, 0, 0, 0, 0, 0, 0x01}
	tr := testutils.NewScriptedTransport().
		AddPass().
		AddPass(heaterAdv("AA:BB:CC:DD:EE:FF", 0, mac).Build())

	candidate, err := provision.NewScanner(tr, suite.logger).Scan(context.Background(), suite.opts)

	suite.NoError(err)
	suite.Require().NotNil(candidate)
	suite.Equal(2, tr.DiscoverCalls())
}

func (suite *ScannerTestSuite) TestIneligibleHeaterFailsWithoutRetry() {
	// TEST SCENARIO: a registered heater is a hard stop. The scan must not
	// burn further passes looking for a different device.
	mac := [8]byte{0, 0, 0, 0, 0, 0, 0, 0x07}
	tr := testutils.NewScriptedTransport().
		AddPass(heaterAdv("AA:BB:CC:DD:EE:FF", 0x01, mac).Build())

	candidate, err := provision.NewScanner(tr, suite.logger).Scan(context.Background(), suite.opts)

	suite.Nil(candidate)
	suite.ErrorIs(err, provision.ErrDeviceNotAvailable)
	suite.Equal(1, tr.DiscoverCalls())

	var navail *provision.DeviceNotAvailableError
	suite.Require().ErrorAs(err, &navail)
	suite.Equal("AA:BB:CC:DD:EE:FF", navail.Address)
	suite.Equal(uint64(0x07), navail.MACID)
	suite.Equal(provision.ReasonAlreadyRegistered, navail.Reason)
}

func (suite *ScannerTestSuite) TestSkipsNonHeaterAndShortRecords() {
	mac := [8]byte{0, 0, 0, 0, 0, 0, 0, 0x09}
	other := testutils.NewAdvertisementBuilder().
		WithAddress("11:11:11:11:11:11").
		WithServices("180f").
		Build()
	// Adax service but manufacturer data too short to carry a record.
	truncated := testutils.NewAdvertisementBuilder().
		WithAddress("22:22:22:22:22:22").
		WithServices(provision.ServiceUUID).
		WithManufacturerData([]byte{5, 0, 1}).
		Build()
	heater := heaterAdv("AA:BB:CC:DD:EE:FF", 0, mac).Build()

	tr := testutils.NewScriptedTransport().AddPass(other, truncated, heater)

	candidate, err := provision.NewScanner(tr, suite.logger).Scan(context.Background(), suite.opts)

	suite.NoError(err)
	suite.Require().NotNil(candidate)
	suite.Equal("AA:BB:CC:DD:EE:FF", candidate.Address)
}

func (suite *ScannerTestSuite) TestFirstEligibleWinsInDiscoveryOrder() {
	first := heaterAdv("AA:AA:AA:AA:AA:AA", 0, [8]byte{0, 0, 0, 0, 0, 0, 0, 1}).Build()
	second := heaterAdv("BB:BB:BB:BB:BB:BB", 0, [8]byte{0, 0, 0, 0, 0, 0, 0, 2}).Build()

	tr := testutils.NewScriptedTransport().AddPass(first, second)

	candidate, err := provision.NewScanner(tr, suite.logger).Scan(context.Background(), suite.opts)

	suite.NoError(err)
	suite.Require().NotNil(candidate)
	suite.Equal("AA:AA:AA:AA:AA:AA", candidate.Address)
}

func (suite *ScannerTestSuite) TestTransportErrorPropagates() {
	scanErr := errors.New("hci device busy")
	tr := testutils.NewScriptedTransport()
	tr.DiscoverErr = scanErr

	_, err := provision.NewScanner(tr, suite.logger).Scan(context.Background(), suite.opts)

	suite.ErrorIs(err, scanErr)
	suite.Equal(1, tr.DiscoverCalls(), "transport errors must not be retried")
}

func (suite *ScannerTestSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := testutils.NewScriptedTransport()
	_, err := provision.NewScanner(tr, suite.logger).Scan(ctx, suite.opts)

	suite.ErrorIs(err, context.Canceled)
	suite.Equal(0, tr.DiscoverCalls())
}

func TestScannerTestSuite(t *testing.T) {
	suite.Run(t, new(ScannerTestSuite))
}
