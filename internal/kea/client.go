// Package kea talks to the Kea control agent of a DHCP segment.
package kea

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jbweber/homelab/lookingglass/internal/domain"
)

// ServiceDHCP4 is the daemon name commands are forwarded to
const ServiceDHCP4 = "dhcp4"

// Command is a control agent command envelope
type Command struct {
	Command   string   `json:"command"`
	Service   []string `json:"service"`
	Arguments any      `json:"arguments,omitempty"`
}

// Response is one element of the control agent's response array
type Response struct {
	Result    int    `json:"result"`
	Text      string `json:"text"`
	Arguments *struct {
		Leases []domain.KeaLease `json:"leases"`
	} `json:"arguments,omitempty"`
}

// Result is the outcome of a lease fetch. A failed fetch is a value, not an error.
type Result struct {
	Success bool
	Leases  []domain.KeaLease
	Error   string
}

// LeaseSource fetches every current lease of one segment
type LeaseSource interface {
	GetLeases(ctx context.Context, url string) Result
}

// Client queries Kea control agents over HTTP
type Client struct {
	httpClient *http.Client
}

// NewClient creates a client whose requests give up after timeout.
// A zero timeout means no limit.
func NewClient(timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// NewClientWithHTTP wraps an existing http.Client
func NewClientWithHTTP(httpClient *http.Client) *Client {
	return &Client{httpClient: httpClient}
}

// LeaseGetAll builds the lease4-get-all command
func LeaseGetAll() Command {
	return Command{Command: "lease4-get-all", Service: []string{ServiceDHCP4}}
}

// LeaseAdd builds the lease4-add command that recreates lease
func LeaseAdd(lease domain.KeaLease) Command {
	return Command{Command: "lease4-add", Service: []string{ServiceDHCP4}, Arguments: lease}
}

// GetLeases posts lease4-get-all to url. Transport failures, non-2xx
// statuses, empty or malformed bodies and a non-zero result code all come
// back as an unsuccessful Result.
func (c *Client) GetLeases(ctx context.Context, url string) Result {
	body, err := json.Marshal(LeaseGetAll())
	if err != nil {
		return failure(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return failure(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failure(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failure(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(err.Error())
	}

	responses, err := decodeResponses(raw)
	if err != nil {
		return failure(err.Error())
	}
	if len(responses) == 0 {
		return failure("empty response from Kea API")
	}

	first := responses[0]
	if first.Result != 0 {
		if first.Text == "" {
			return failure("Kea API error")
		}
		return failure(first.Text)
	}

	leases := []domain.KeaLease{}
	if first.Arguments != nil && first.Arguments.Leases != nil {
		leases = first.Arguments.Leases
	}
	return Result{Success: true, Leases: leases}
}

// decodeResponses accepts the usual response array as well as the bare
// object the control agent sends when it rejects a command itself.
func decodeResponses(raw []byte) ([]Response, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}

	if raw[0] == '{' {
		var single Response
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, fmt.Errorf("invalid Kea response: %w", err)
		}
		return []Response{single}, nil
	}

	var responses []Response
	if err := json.Unmarshal(raw, &responses); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return nil, fmt.Errorf("invalid Kea response: %w", err)
		}
		return nil, fmt.Errorf("unexpected Kea response: %w", err)
	}
	return responses, nil
}

func failure(msg string) Result {
	return Result{Success: false, Leases: []domain.KeaLease{}, Error: msg}
}
