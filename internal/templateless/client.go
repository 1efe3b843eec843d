package templateless

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
)

// DefaultTimeout bounds a single request, including uploads.
const DefaultTimeout = 10 * time.Minute

// Config configures a Client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	// GetRetries is how many times an idempotent GET is attempted when the
	// connection itself fails. 0 or 1 disables retries.
	GetRetries uint

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is an HTTP client for the Templateless v2 document API.
type Client struct {
	baseURL    string
	token      string
	getRetries uint
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new API client.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		getRetries: cfg.GetRetries,
		httpClient: httpClient,
		logger:     logger,
	}
}

// BaseURL returns the API root this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// errorBody is the backend's error payload.
type errorBody struct {
	Message string `json:"message"`
}

// call describes one JSON request.
type call struct {
	method string
	path   string
	body   any
	entity Entity
	id     string
}

// do sends a JSON request and decodes the JSON response into result.
func (c *Client) do(ctx context.Context, cl call, result any) error {
	var payload []byte
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		payload = b
	}

	send := func() (*http.Response, error) {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		c.setHeaders(req, "application/json")
		return c.httpClient.Do(req)
	}

	var resp *http.Response
	var err error
	if cl.method == http.MethodGet && c.getRetries > 1 {
		resp, err = retry.DoWithData(send,
			retry.Context(ctx),
			retry.Attempts(c.getRetries),
			retry.Delay(200*time.Millisecond),
			retry.LastErrorOnly(true),
			retry.RetryIf(IsConnectionError),
		)
	} else {
		resp, err = send()
	}
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return c.handleResponse(resp, cl, result)
}

func (c *Client) setHeaders(req *http.Request, accept string) {
	req.Header.Set("Accept", accept)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Request-ID", uuid.New().String())
}

func (c *Client) handleResponse(resp *http.Response, cl call, result any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var eb errorBody
		_ = json.Unmarshal(body, &eb)
		c.logger.Debug("api request failed",
			"method", cl.method, "path", cl.path, "status", resp.StatusCode, "message", eb.Message)
		return statusError(resp, cl.entity, cl.id, eb.Message)
	}

	if result != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// IsConnectionError reports whether err happened before any HTTP response
// was received.
func IsConnectionError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
