package templateless

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

// HealthcheckResponse is returned by the backend healthcheck.
type HealthcheckResponse struct {
	Status string `json:"status" yaml:"status"`
}

// Healthcheck queries the backend healthcheck endpoint.
func (c *Client) Healthcheck(ctx context.Context) (*HealthcheckResponse, error) {
	var resp HealthcheckResponse
	if err := c.do(ctx, call{method: http.MethodGet, path: "/healthcheck"}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WaitHealthy polls the healthcheck once per interval until it succeeds or
// timeout elapses.
func (c *Client) WaitHealthy(ctx context.Context, timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	attempts := uint(timeout / interval)
	if attempts == 0 {
		attempts = 1
	}

	err := retry.Do(
		func() error {
			_, err := c.Healthcheck(ctx)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("backend at %s not healthy: %w", c.baseURL, err)
	}
	return nil
}
