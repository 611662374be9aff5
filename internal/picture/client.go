// Package picture is a client for the picture service, the remote
// collaborator that takes a new picture and replies with its locator.
package picture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

// Values of the status field of a Response.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

const (
	// maxBodySize bounds the reply; a locator envelope is tiny.
	maxBodySize = 1 << 20

	genericFailure = "picture service reported an error without a message"
)

// Response is the envelope returned by the picture service.
type Response struct {
	Status  string `json:"status"`
	Image   string `json:"image,omitempty"`
	Message string `json:"message,omitempty"`
}

// Client represents the picture service client
type Client struct {
	httpClient *http.Client
	endpoint   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new client posting to endpoint.
// The default http client has no timeout of its own, so the
// transport defaults and the caller's context bound a request.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		endpoint:   endpoint,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the URL the client posts to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// TakePicture asks the service for a new picture and returns its locator.
// It sends exactly one request and does not retry. Failures are
// a *TransportError, *ProtocolError or *ApplicationError.
func (c *Client) TakePicture(ctx context.Context) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, http.NoBody)
	if err != nil {
		return "", &TransportError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-Id", uuid.New().String())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", &TransportError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	return decode(resp.StatusCode, body)
}

// decode interprets a reply body. The http status only matters
// when the body cannot be understood: the envelope's status field decides.
func decode(statusCode int, body []byte) (string, error) {
	var r Response
	if err := json.Unmarshal(bytes.TrimSpace(body), &r); err != nil {
		return "", &ProtocolError{StatusCode: statusCode, Reason: "invalid json", Err: err}
	}

	switch r.Status {
	case StatusSuccess:
		if r.Image == "" {
			return "", &ProtocolError{StatusCode: statusCode, Reason: "success without image"}
		}
		return r.Image, nil
	case StatusError:
		msg := r.Message
		if msg == "" {
			msg = genericFailure
		}
		return "", &ApplicationError{StatusCode: statusCode, Message: msg}
	}

	reason := "missing status"
	if r.Status != "" {
		reason = fmt.Sprintf("unrecognized status %q", r.Status)
	}
	if r.Message != "" {
		reason += ": " + r.Message
	}
	return "", &ProtocolError{StatusCode: statusCode, Reason: reason}
}
