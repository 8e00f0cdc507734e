// Package remote is the client for the authoritative attendance service.
// The service owns the token and attendance tables; devices talk to it
// through this client and fall back to the offline queue when it is
// unreachable.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"attendsync/internal/attendance"
	"attendsync/internal/syncqueue"
)

// Error codes carried in failure responses. Both the API and this client
// speak this contract.
const (
	CodeDuplicate          = "duplicate"
	CodeValidation         = "validation"
	CodeActivityNotFound   = "activity_not_found"
	CodeActivityNotStarted = "activity_not_started"
	CodeTokenInvalid       = "token_invalid"
)

// ErrNetworkUnavailable marks a transport-level failure: the service could
// not be reached at all. The engine absorbs it by queueing.
var ErrNetworkUnavailable = errors.New("network unavailable")

// ErrorBody is the JSON shape of a failure response.
type ErrorBody struct {
	Error          string             `json:"error"`
	Code           string             `json:"code,omitempty"`
	ExistingRecord *attendance.Record `json:"existing_record,omitempty"`
}

// Client calls the attendance service.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	authToken string
}

// New creates a client with a short timeout; a slow link is treated the same
// as no link.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// RegisterDevice registers this device and keeps the issued access token for
// subsequent calls.
func (c *Client) RegisterDevice(ctx context.Context, deviceID string) error {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.post(ctx, "/v1/devices/register", map[string]string{"device_id": deviceID}, &out); err != nil {
		return err
	}
	c.authToken = out.AccessToken
	return nil
}

// Submit replays one submission. Failures are mapped back onto the engine's
// typed errors so queue replay and direct recording behave identically.
func (c *Client) Submit(ctx context.Context, sub syncqueue.Submission) (attendance.Record, error) {
	body, _ := json.Marshal(sub)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/attendance", bytes.NewReader(body))
	if err != nil {
		return attendance.Record{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return attendance.Record{}, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 {
		var rec attendance.Record
		if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
			return attendance.Record{}, fmt.Errorf("decode response: %w", err)
		}
		return rec, nil
	}

	var eb ErrorBody
	if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil {
		return attendance.Record{}, fmt.Errorf("attendance service error %s", resp.Status)
	}
	return attendance.Record{}, decodeError(resp.StatusCode, eb)
}

// Health probes the service; a nil error means reachable. Doubles as the
// connectivity check for the sync worker.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("attendance service unhealthy: %s", resp.Status)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, _ := json.Marshal(in)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("attendance service error %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(status int, eb ErrorBody) error {
	switch eb.Code {
	case CodeDuplicate:
		dup := &attendance.DuplicateError{}
		if eb.ExistingRecord != nil {
			dup.Existing = *eb.ExistingRecord
		}
		return dup
	case CodeValidation:
		return &attendance.ValidationError{Msg: eb.Error}
	case CodeActivityNotFound:
		return attendance.ErrActivityNotFound
	case CodeActivityNotStarted:
		return attendance.ErrActivityNotStarted
	case CodeTokenInvalid:
		return &attendance.TokenInvalidError{Err: errors.New(eb.Error)}
	}
	return fmt.Errorf("attendance service error %d: %s", status, eb.Error)
}
