// Package client provides a Go client for the tangerine contract verification API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client is a verification API client. Endpoints depend on the target network,
// so every call takes the full URL.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the timeout of the default HTTP client
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		client.httpClient.Timeout = d
	}
}

// WithUserAgent sets the User-Agent header sent with every request
func WithUserAgent(ua string) Option {
	return func(client *Client) {
		client.userAgent = ua
	}
}

// New creates a new verification API client
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// VerifyRequest is the body of a verification submission
type VerifyRequest struct {
	ContractAddress string `json:"contract_address"`
	Source          string `json:"source"`
	ContractName    string `json:"contract_name"`
	Compiler        string `json:"compiler"`
	Optimization    bool   `json:"optimization"`
	Runs            *int   `json:"runs,omitempty"`
}

// VerifyResponse is the response to a verification submission
type VerifyResponse struct {
	Success bool         `json:"success"`
	Error   *VerifyError `json:"error,omitempty"`
	GUID    string       `json:"guid,omitempty"`
}

// VerifyError carries the service-provided failure code
type VerifyError struct {
	ErrorCode string `json:"error_code"`
}

// StatusResponse is the response of a checkverifystatus query
type StatusResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

func (r *VerifyResponse) recognized() bool {
	return r.Success || (r.Error != nil && r.Error.ErrorCode != "")
}

func (r *StatusResponse) recognized() bool {
	return r.Result != ""
}

// verificationPayload is implemented by responses that can tell a service answer
// apart from an unrelated JSON error body.
type verificationPayload interface {
	recognized() bool
}

// APIError is returned when the service answers with something that is not a
// verification payload.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// SubmitVerification posts a verification request to endpoint. A non-empty apiKey is sent
// in the X-API-Key header.
func (c *Client) SubmitVerification(ctx context.Context, endpoint, apiKey string, req VerifyRequest) (*VerifyResponse, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("X-API-Key", apiKey)
	}

	var resp VerifyResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckVerifyStatus queries the status of the verification job identified by guid.
func (c *Client) CheckVerifyStatus(ctx context.Context, apiURL, guid string) (*StatusResponse, error) {
	params := url.Values{}
	params.Set("guid", guid)
	params.Set("module", "contract")
	params.Set("action", "checkverifystatus")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp StatusResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do sends req and decodes a JSON body into result. The service reports rejected
// verifications with JSON bodies on 4xx, so the body is decoded regardless of status.
// An APIError is returned for 4xx and 5xx bodies that are not a verification payload.
func (c *Client) do(req *http.Request, result any) error {
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if err := json.Unmarshal(body, result); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
		}
		return fmt.Errorf("parsing response: %w", err)
	}

	if resp.StatusCode >= 400 {
		if p, ok := result.(verificationPayload); ok && !p.recognized() {
			return &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
		}
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
