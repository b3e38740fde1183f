package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/shindakun/loginform/internal/models"
	"github.com/shindakun/loginform/internal/version"
)

// DefaultEndpoint is the demo login service
const DefaultEndpoint = "https://services.adaptr.com/demo/login"

// maxResponseBytes caps how much of a login response is read
const maxResponseBytes = 1 << 20

// Client posts credentials to the login service
type Client struct {
	endpoint   string
	httpClient *http.Client
	limiter    *RateLimiter
}

// loginResponse is the body returned by the login service
type loginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// New creates a login service client. A zero timeout means requests are
// never timed out by the client. limiter may be nil.
func New(endpoint string, timeout time.Duration, limiter *RateLimiter) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = timeout

	return &Client{
		endpoint:   endpoint,
		httpClient: httpClient,
		limiter:    limiter,
	}
}

// HTTPClient returns the underlying HTTP client
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Endpoint returns the login URL requests are sent to
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Login sends creds to the login service and returns the session token.
// A response with success=false yields a *RejectedError; every other
// failure yields a *RequestError. Requests are never retried.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", &RequestError{Message: err.Error(), Err: err}
		}
	}

	body, err := json.Marshal(creds)
	if err != nil {
		return "", &RequestError{Message: err.Error(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &RequestError{Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "loginform/"+version.GetVersion())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", &RequestError{Message: ctxErr.Error(), Err: err}
		}
		return "", &RequestError{Message: NetworkErrorMessage, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the pooled connection can be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return "", &RequestError{
			Message:    fmt.Sprintf("Request failed with status code %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	var lr loginResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&lr); err != nil {
		return "", &RequestError{Message: err.Error(), Err: err, StatusCode: resp.StatusCode}
	}

	if lr.Success {
		if lr.Token == "" {
			return "", &RequestError{Message: "login response is missing a token", StatusCode: resp.StatusCode}
		}
		return lr.Token, nil
	}

	if lr.Error == nil || lr.Error.Message == "" {
		return "", &RequestError{Message: "login response is missing an error message", StatusCode: resp.StatusCode}
	}

	return "", &RejectedError{Message: lr.Error.Message}
}
