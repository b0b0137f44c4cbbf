// Package heater is the local HTTP client for a provisioned Adax heater. It
// is a thin request/response wrapper around the heater's /api endpoint; retry
// policy belongs to the caller, and its failures are deliberately a separate
// kind from BLE provisioning errors.
package heater

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds each HTTP request unless overridden.
const DefaultTimeout = 15 * time.Second

// RequestError reports a non-200 response or a transport-level failure from
// the heater's HTTP API.
type RequestError struct {
	StatusCode int // 0 when the request never produced a response
	Op         string
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("heater %s request failed: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("heater %s request failed: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Timeout reports whether err is a request timeout.
func Timeout(err error) bool {
	var rerr *RequestError
	if errors.As(err, &rerr) {
		return errors.Is(rerr.Err, context.DeadlineExceeded)
	}
	return false
}

// Status is the heater's reported state. Temperatures are in degrees; the
// wire format carries hundredths.
type Status struct {
	TargetTemperature  float64
	CurrentTemperature float64
}

// statusResponse is the wire JSON of command=stat.
type statusResponse struct {
	TargTemp int `json:"targTemp"`
	CurrTemp int `json:"currTemp"`
}

// Client issues authenticated requests to a heater's local API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logrus.Logger
	now        func() time.Time
}

// NewClient creates a client for the heater at deviceIP, authenticating with
// the access token minted during provisioning. A zero timeout uses
// DefaultTimeout.
func NewClient(deviceIP, accessToken string, timeout time.Duration, logger *logrus.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		baseURL: "https://" + deviceIP + "/api",
		token:   accessToken,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				// The heater serves a self-signed certificate on its LAN
				// address; the access token is the actual authentication.
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			},
		},
		logger: logger,
		now:    time.Now,
	}
}

// Status fetches the heater's target and current temperature.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	params := url.Values{}
	params.Set("command", "stat")
	params.Set("time", strconv.FormatInt(c.now().Unix(), 10))

	body, err := c.get(ctx, "stat", params)
	if err != nil {
		return nil, err
	}

	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &RequestError{Op: "stat", Err: fmt.Errorf("malformed response: %w", err)}
	}

	status := &Status{
		TargetTemperature:  float64(resp.TargTemp) / 100,
		CurrentTemperature: float64(resp.CurrTemp) / 100,
	}
	c.logger.WithFields(logrus.Fields{
		"target":  status.TargetTemperature,
		"current": status.CurrentTemperature,
	}).Debug("Heater status")
	return status, nil
}

// SetTargetTemperature sets the target temperature in degrees. The heater
// acknowledges with an HTTP status only; no body contract is guaranteed.
func (c *Client) SetTargetTemperature(ctx context.Context, degrees float64) error {
	params := url.Values{}
	params.Set("command", "set_target")
	params.Set("time", strconv.FormatInt(c.now().Unix(), 10))
	params.Set("value", strconv.Itoa(int(degrees*100)))

	_, err := c.get(ctx, "set_target", params)
	return err
}

// get performs one authenticated GET against the heater API. Non-200 statuses
// and timeouts are reported, not retried.
func (c *Client) get(ctx context.Context, op string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &RequestError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Basic "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("op", op).Error("Heater request failed")
		if errors.Is(err, context.DeadlineExceeded) || isClientTimeout(err) {
			return nil, &RequestError{Op: op, Err: context.DeadlineExceeded}
		}
		return nil, &RequestError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.logger.WithFields(logrus.Fields{
			"op":     op,
			"status": resp.StatusCode,
		}).Error("Heater returned non-OK status")
		return nil, &RequestError{StatusCode: resp.StatusCode, Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Op: op, Err: err}
	}
	return body, nil
}

// isClientTimeout detects net/http client timeouts, which surface as url
// errors with Timeout() true rather than context.DeadlineExceeded.
func isClientTimeout(err error) bool {
	var uerr *url.Error
	return errors.As(err, &uerr) && uerr.Timeout()
}
