package provision

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"

	"github.com/adaxtools/adaxctl/internal/transport"
)

// State is the provisioning session state. Transitions are linear:
// Idle -> Scanning -> Connected -> AwaitingResult, terminating in exactly one
// of Succeeded, Failed, or TimedOut.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateConnected
	StateAwaitingResult
	StateSucceeded
	StateFailed
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateConnected:
		return "connected"
	case StateAwaitingResult:
		return "awaiting_result"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Options configures one provisioning session. Zero-value fields receive the
// defaults below, which match the heater pairing flow: a 60s scan window with
// one retry, and a 20x1s result wait.
type Options struct {
	ScanWindow     time.Duration `default:"60s"`
	ScanRetries    int           `default:"1"`
	ConnectTimeout time.Duration `default:"30s"`
	ResultTicks    int           `default:"20"`
	TickInterval   time.Duration `default:"1s"`
}

// DefaultOptions returns the default session options.
func DefaultOptions() *Options {
	opts := &Options{}
	defaults.SetDefaults(opts)
	return opts
}

// Credentials are the WiFi secrets transferred to the heater.
type Credentials struct {
	SSID string
	PSK  string
}

// Result is the successful outcome of a session: the heater's assigned IP,
// its hardware MAC id, and the access token it will require for HTTP control.
type Result struct {
	IP    string
	MACID uint64
	Token string
}

// notificationBuffer bounds the pending-notification channel. Notifications
// can arrive while chunks are still being written; buffering keeps the
// transport callback from ever blocking.
const notificationBuffer = 8

// Session drives one credential-join exchange with a single heater. A session
// is single-attempt: Run may be called once, and the access token minted at
// construction is immutable for the session's lifetime. Retrying means a new
// session and therefore a fresh token.
type Session struct {
	transport transport.Transport
	scanner   *Scanner
	logger    *logrus.Logger
	creds     Credentials
	opts      Options
	token     string

	mu            sync.Mutex
	state         State
	notifications chan []byte
}

// NewSession creates a session and mints its access token.
func NewSession(t transport.Transport, creds Credentials, opts *Options, logger *logrus.Logger) (*Session, error) {
	if creds.SSID == "" {
		return nil, fmt.Errorf("wifi ssid must not be empty")
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = logrus.New()
	}

	token, err := NewToken()
	if err != nil {
		return nil, err
	}

	return &Session{
		transport:     t,
		scanner:       NewScanner(t, logger),
		logger:        logger,
		creds:         creds,
		opts:          *opts,
		token:         token,
		state:         StateIdle,
		notifications: make(chan []byte, notificationBuffer),
	}, nil
}

// Token returns the session's access token. The token is the secret the
// heater will later require as the HTTP Basic-auth credential.
func (s *Session) Token() string { return s.token }

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.WithFields(logrus.Fields{
		"from": s.state.String(),
		"to":   state.String(),
	}).Debug("Session state transition")
	s.state = state
}

// Run executes the handshake and produces exactly one terminal outcome.
// The transport connection is released on every exit path.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, fmt.Errorf("session already run (state %s)", s.state)
	}
	s.state = StateScanning
	s.mu.Unlock()

	candidate, err := s.scanner.Scan(ctx, &ScanOptions{
		Window:     s.opts.ScanWindow,
		MaxRetries: s.opts.ScanRetries,
	})
	if err != nil {
		s.setState(StateFailed)
		return nil, err
	}

	conn, err := s.transport.Connect(ctx, candidate.Address, &transport.ConnectOptions{
		ConnectTimeout: s.opts.ConnectTimeout,
	})
	if err != nil {
		s.setState(StateFailed)
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	// Connection lifetime is scoped to the session regardless of outcome.
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			s.logger.WithError(cerr).Warn("Failed to release heater connection")
		}
	}()

	s.setState(StateConnected)

	// Subscribe before writing: the heater may push a terminal notification
	// while later chunks are still in flight.
	if err := conn.Subscribe(CommandCharacteristicUUID, s.handleNotification); err != nil {
		s.setState(StateFailed)
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	if err := s.writeJoinCommand(conn, candidate); err != nil {
		// A terminal notification can beat the tail of the write sequence;
		// the first terminal message is authoritative over the write error.
		if result, terminal, rerr := s.drainTerminal(candidate); terminal {
			return s.finish(result, rerr)
		}
		s.setState(StateFailed)
		return nil, err
	}

	s.setState(StateAwaitingResult)
	return s.awaitResult(ctx, conn, candidate)
}

// writeJoinCommand chunks the encoded join command and writes the chunks
// sequentially in index order, awaiting each write's completion before the
// next so ordering holds even on links that do not guarantee it.
func (s *Session) writeJoinCommand(conn transport.Connection, candidate *Candidate) error {
	payload := joinCommand(s.creds.SSID, s.creds.PSK, s.token)
	chunks, err := Chunks(payload, MaxChunkPayload)
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"payload_bytes": len(payload),
		"chunks":        len(chunks),
	}).Debug("Writing join command")

	for _, chunk := range chunks {
		if err := conn.Write(CommandCharacteristicUUID, chunk.Encode()); err != nil {
			return fmt.Errorf("%w: writing chunk %d: %v", ErrConnectionFailed, chunk.Index, err)
		}
	}
	return nil
}

// handleNotification is the transport push callback. It copies the payload
// (only valid during the callback) and never blocks: when the buffer is full
// the oldest pending notification is dropped.
func (s *Session) handleNotification(data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)

	select {
	case s.notifications <- buf:
	default:
		select {
		case old := <-s.notifications:
			s.logger.WithField("dropped_bytes", len(old)).Warn("Notification buffer full, dropping oldest")
		default:
		}
		select {
		case s.notifications <- buf:
		default:
		}
	}
}

// awaitResult waits up to ResultTicks fixed polling intervals for a terminal
// notification. Polling ticks rather than one long suspend let the loop
// recheck link liveness and exit the instant the connection drops.
func (s *Session) awaitResult(ctx context.Context, conn transport.Connection, candidate *Candidate) (*Result, error) {
	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	for tick := 0; tick < s.opts.ResultTicks; {
		select {
		case <-ctx.Done():
			s.setState(StateFailed)
			return nil, ctx.Err()

		case data := <-s.notifications:
			result, terminal, rerr := s.resolveNotification(data, candidate)
			if !terminal {
				continue
			}
			return s.finish(result, rerr)

		case <-ticker.C:
			tick++
			if !conn.IsConnected() {
				s.logger.Warn("Heater connection dropped while awaiting result")
				s.setState(StateTimedOut)
				return nil, fmt.Errorf("%w: connection dropped", ErrTimeout)
			}
		}
	}

	s.setState(StateTimedOut)
	budget := time.Duration(s.opts.ResultTicks) * s.opts.TickInterval
	return nil, fmt.Errorf("%w: no response within %s", ErrTimeout, budget)
}

// drainTerminal consumes already-received notifications without waiting and
// reports the first terminal one, if any.
func (s *Session) drainTerminal(candidate *Candidate) (*Result, bool, error) {
	for {
		select {
		case data := <-s.notifications:
			if result, terminal, err := s.resolveNotification(data, candidate); terminal {
				return result, true, err
			}
		default:
			return nil, false, nil
		}
	}
}

// resolveNotification classifies one notification payload. Non-terminal
// payloads (empty, unknown status, or a malformed OK without an address) are
// observed and logged but never resolve the session.
func (s *Session) resolveNotification(data []byte, candidate *Candidate) (*Result, bool, error) {
	if len(data) == 0 {
		s.logger.Warn("Empty notification from heater")
		return nil, false, nil
	}

	status := data[0]
	switch {
	case status == StatusInvalidWiFi:
		s.logger.Info("Heater rejected WiFi credentials")
		return nil, true, ErrInvalidCredentials

	case status == StatusOK && len(data) >= 5:
		ip := fmt.Sprintf("%d.%d.%d.%d", data[1], data[2], data[3], data[4])
		s.logger.WithField("ip", ip).Info("Heater registered")
		return &Result{IP: ip, MACID: candidate.MACID, Token: s.token}, true, nil

	case status == StatusOK:
		s.logger.WithField("len", len(data)).Warn("Status-OK notification too short to carry an address, ignoring")
		return nil, false, nil

	default:
		s.logger.WithField("status", status).Debug("Unknown notification status, ignoring")
		return nil, false, nil
	}
}

// finish records the terminal state for a resolved notification.
func (s *Session) finish(result *Result, err error) (*Result, error) {
	if err != nil {
		s.setState(StateFailed)
		return nil, err
	}
	s.setState(StateSucceeded)
	return result, nil
}

// quote percent-encodes a join command component. The heater's parser expects
// RFC 3986 escaping (space as %20, not '+').
func quote(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// joinCommand builds the ASCII join command payload.
func joinCommand(ssid, psk, token string) []byte {
	return []byte("command=join&ssid=" + quote(ssid) + "&psk=" + quote(psk) + "&token=" + quote(token))
}
