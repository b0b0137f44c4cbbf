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

type SessionTestSuite struct {
	suite.Suite

	logger *logrus.Logger
	tr     *testutils.ScriptedTransport
	conn   *testutils.ScriptedConnection
	creds  provision.Credentials
	opts   *provision.Options
}

func (suite *SessionTestSuite) SetupTest() {
	suite.logger = logrus.New()
	suite.logger.SetLevel(logrus.PanicLevel)

	mac := [8]byte{0xAC, 0, 0, 0, 0, 0, 0, 0x42}
	suite.tr = testutils.NewScriptedTransport().
		AddPass(testutils.NewAdvertisementBuilder().
			WithAddress("AA:BB:CC:DD:EE:FF").
			WithServices(provision.ServiceUUID).
			WithManufacturerData(testutils.HeaterManufacturerData(provision.DeviceTypeHeaterBLE, 0, mac)).
			Build())
	suite.conn = suite.tr.Connection()

	suite.creds = provision.Credentials{SSID: "My Wifi", PSK: "secret123"}
	suite.opts = &provision.Options{
		ScanWindow:     5 * time.Millisecond,
		ScanRetries:    0,
		ConnectTimeout: time.Second,
		ResultTicks:    5,
		TickInterval:   time.Millisecond,
	}
}

func (suite *SessionTestSuite) newSession() *provision.Session {
	session, err := provision.NewSession(suite.tr, suite.creds, suite.opts, suite.logger)
	suite.Require().NoError(err)
	return session
}

// notifyOnLastWrite pushes the given notification right after the final chunk
// of the join command is written.
func (suite *SessionTestSuite) notifyOnLastWrite(data []byte) {
	suite.conn.OnWrite = func(writeIndex int) {
		frames := suite.conn.Writes()
		last := frames[len(frames)-1]
		if len(last) >= 2 && last[1] == 1 {
			suite.conn.Notify(provision.CommandCharacteristicUUID, data)
		}
	}
}

func (suite *SessionTestSuite) TestSuccessfulProvisioning() {
	// GOAL: the full happy path. The heater is found, the join command is
	// chunked onto the command characteristic, and the status-OK notification
	// resolves into the assigned address.
	suite.notifyOnLastWrite([]byte{0, 192, 168, 1, 50})

	session := suite.newSession()
	result, err := session.Run(context.Background())

	suite.Require().NoError(err)
	suite.Require().NotNil(result)
	suite.Equal("192.168.1.50", result.IP)
	suite.Equal(uint64(0xAC00000000000042), result.MACID)
	suite.Equal(session.Token(), result.Token)
	suite.Equal(provision.StateSucceeded, session.State())
	suite.Equal(1, suite.conn.CloseCalls(), "the connection is released on success")

	expected := "command=join&ssid=My%20Wifi&psk=secret123&token=" + session.Token()
	suite.Equal(expected, string(suite.conn.WrittenPayload()))
}

func (suite *SessionTestSuite) TestCredentialEscaping() {
	suite.creds = provision.Credentials{SSID: "Caffe & Bar", PSK: "p=ss&word 1"}
	suite.notifyOnLastWrite([]byte{0, 10, 0, 0, 7})

	session := suite.newSession()
	_, err := session.Run(context.Background())
	suite.Require().NoError(err)

	expected := "command=join&ssid=Caffe%20%26%20Bar&psk=p%3Dss%26word%201&token=" + session.Token()
	suite.Equal(expected, string(suite.conn.WrittenPayload()))
}

func (suite *SessionTestSuite) TestChunkFramesFitLink() {
	suite.notifyOnLastWrite([]byte{0, 10, 0, 0, 7})

	session := suite.newSession()
	_, err := session.Run(context.Background())
	suite.Require().NoError(err)

	frames := suite.conn.Writes()
	suite.NotEmpty(frames)
	for i, frame := range frames {
		suite.LessOrEqual(len(frame), provision.MaxChunkPayload+2)
		suite.Equal(byte(i), frame[0], "chunk indices are written in order")
	}
	// Exactly the final frame carries the last flag.
	for i, frame := range frames {
		wantLast := byte(0)
		if i == len(frames)-1 {
			wantLast = 1
		}
		suite.Equal(wantLast, frame[1])
	}
}

func (suite *SessionTestSuite) TestInvalidCredentials() {
	suite.notifyOnLastWrite([]byte{1})

	session := suite.newSession()
	result, err := session.Run(context.Background())

	suite.Nil(result)
	suite.ErrorIs(err, provision.ErrInvalidCredentials)
	suite.Equal(provision.StateFailed, session.State())
	suite.Equal(1, suite.conn.CloseCalls(), "the connection is released on failure")
}

func (suite *SessionTestSuite) TestTerminalNotificationBeatsWriteError() {
	// TEST SCENARIO: the heater pushes its rejection while later chunks are
	// still being written, then drops the link so the remaining writes fail.
	// The terminal notification is authoritative over the write error.
	suite.conn.OnWrite = func(writeIndex int) {
		if writeIndex == 0 {
			suite.conn.Notify(provision.CommandCharacteristicUUID, []byte{1})
			suite.conn.WriteErr = errors.New("gatt write failed")
		}
	}

	session := suite.newSession()
	result, err := session.Run(context.Background())

	suite.Nil(result)
	suite.ErrorIs(err, provision.ErrInvalidCredentials)
	suite.NotErrorIs(err, provision.ErrConnectionFailed)
	suite.Equal(provision.StateFailed, session.State())
}

func (suite *SessionTestSuite) TestWriteErrorWithoutNotification() {
	suite.conn.WriteErr = errors.New("gatt write failed")

	session := suite.newSession()
	_, err := session.Run(context.Background())

	suite.ErrorIs(err, provision.ErrConnectionFailed)
	suite.Equal(provision.StateFailed, session.State())
}

func (suite *SessionTestSuite) TestNoResponseTimesOut() {
	session := suite.newSession()
	result, err := session.Run(context.Background())

	suite.Nil(result)
	suite.ErrorIs(err, provision.ErrTimeout)
	suite.Equal(provision.StateTimedOut, session.State())
	suite.Equal(1, suite.conn.CloseCalls())
}

func (suite *SessionTestSuite) TestConnectionDropWhileWaiting() {
	suite.conn.OnWrite = func(writeIndex int) {
		frames := suite.conn.Writes()
		last := frames[len(frames)-1]
		if len(last) >= 2 && last[1] == 1 {
			suite.conn.SetConnected(false)
		}
	}

	session := suite.newSession()
	_, err := session.Run(context.Background())

	suite.ErrorIs(err, provision.ErrTimeout)
	suite.Equal(provision.StateTimedOut, session.State())
}

func (suite *SessionTestSuite) TestMalformedOKIsIgnored() {
	// A status-OK notification without a full address must not resolve the
	// session; the later complete one does.
	suite.conn.OnWrite = func(writeIndex int) {
		frames := suite.conn.Writes()
		last := frames[len(frames)-1]
		if len(last) >= 2 && last[1] == 1 {
			suite.conn.Notify(provision.CommandCharacteristicUUID, []byte{0, 192})
			suite.conn.Notify(provision.CommandCharacteristicUUID, []byte{0, 192, 168, 1, 51})
		}
	}

	session := suite.newSession()
	result, err := session.Run(context.Background())

	suite.Require().NoError(err)
	suite.Equal("192.168.1.51", result.IP)
}

func (suite *SessionTestSuite) TestConnectFailure() {
	suite.tr.ConnectErr = errors.New("dial failed")

	session := suite.newSession()
	_, err := session.Run(context.Background())

	suite.ErrorIs(err, provision.ErrConnectionFailed)
	suite.Equal(provision.StateFailed, session.State())
}

func (suite *SessionTestSuite) TestScanFailurePropagates() {
	suite.tr = testutils.NewScriptedTransport() // no passes scripted
	suite.conn = suite.tr.Connection()

	session := suite.newSession()
	_, err := session.Run(context.Background())

	suite.ErrorIs(err, provision.ErrDeviceNotFound)
	suite.Equal(provision.StateFailed, session.State())
	suite.Equal(0, suite.tr.ConnectCalls())
}

func (suite *SessionTestSuite) TestSessionIsSingleAttempt() {
	suite.notifyOnLastWrite([]byte{0, 10, 0, 0, 7})

	session := suite.newSession()
	_, err := session.Run(context.Background())
	suite.Require().NoError(err)

	_, err = session.Run(context.Background())
	suite.Error(err)
}

func (suite *SessionTestSuite) TestTokenFormat() {
	session := suite.newSession()

	token := session.Token()
	suite.Len(token, 20)
	suite.Regexp("^[0-9a-f]{20}$", token)

	other := suite.newSession()
	suite.NotEqual(token, other.Token(), "every session mints a fresh token")
}

func (suite *SessionTestSuite) TestRequiresSSID() {
	_, err := provision.NewSession(suite.tr, provision.Credentials{PSK: "secret"}, suite.opts, suite.logger)
	suite.Error(err)
}

func TestSessionTestSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}
