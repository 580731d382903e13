package processes

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// HealthCheckPath is the Devnet endpoint answering plain GET requests while the node serves.
const HealthCheckPath = "/is_alive"

const defaultHealthCheckTimeout = 2 * time.Second

// HealthChecker defines the interface for probing whether a process is ready to serve.
type HealthChecker interface {
	// IsAlive reports whether the server at baseURL answers its health endpoint.
	// Every failure (connection refused, timeout, non-2xx) is reported as false.
	IsAlive(ctx context.Context, baseURL string) bool
}

// HTTPHealthChecker implements HealthChecker using HTTP GET requests
// against the /is_alive endpoint.
type HTTPHealthChecker struct {
	client *http.Client
}

// NewHTTPHealthChecker creates a new HTTPHealthChecker.
// requestTimeout specifies the timeout for each health check HTTP request.
func NewHTTPHealthChecker(requestTimeout time.Duration) *HTTPHealthChecker {
	if requestTimeout <= 0 {
		requestTimeout = defaultHealthCheckTimeout
	}
	return &HTTPHealthChecker{
		client: &http.Client{
			Timeout: requestTimeout,
			// Probes are one-shot; pooled connections would outlive the process they point at.
			Transport: &http.Transport{DisableKeepAlives: true},
		},
	}
}

// NewHTTPHealthCheckerWithClient creates a checker that shares an existing HTTP client.
func NewHTTPHealthCheckerWithClient(client *http.Client) *HTTPHealthChecker {
	return &HTTPHealthChecker{client: client}
}

// IsAlive performs an HTTP health check on baseURL.
func (h *HTTPHealthChecker) IsAlive(ctx context.Context, baseURL string) bool {
	url := strings.TrimSuffix(baseURL, "/") + HealthCheckPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := h.client.Do(req)
	if err != nil {
		// Network error, timeout, connection refused, etc.
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
