package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single request unless WithTimeout says otherwise.
const DefaultTimeout = 30 * time.Second

// requestID is sent with every request. Calls are strictly request/response so
// responses never need to be matched by ID.
const requestID = "1"

// Client sends JSON-RPC 2.0 requests to a single endpoint.
// It holds no state across calls besides its configuration and is safe for concurrent use.
type Client struct {
	url        string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// ClientOption represents a functional option for configuring the Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request timeout. Values <= 0 keep the default.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client posting to url
func NewClient(url string, options ...ClientOption) *Client {
	client := &Client{
		url:        url,
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		logger:     slog.Default(),
	}
	for _, option := range options {
		option(client)
	}
	client.logger = client.logger.With("component", "RPCClient", "url", url)
	return client
}

// URL returns the endpoint requests are posted to
func (c *Client) URL() string {
	return c.url
}

// Timeout returns the per-request timeout
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// HTTPClient returns the underlying HTTP client
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// encodeParams turns params into the raw JSON placed in the envelope.
// nil becomes {}, a string or json.RawMessage is taken as already-serialized JSON.
func encodeParams(params any) (json.RawMessage, error) {
	switch p := params.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case string:
		return json.RawMessage(p), nil
	case json.RawMessage:
		return p, nil
	case []byte:
		return json.RawMessage(p), nil
	default:
		encoded, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to encode params: %w", err)
		}
		return encoded, nil
	}
}

// SendRequest posts method with params and returns the raw result.
//
// A response with an error member fails with *RPCError holding the server's code and
// message. A response with neither member fails with *MalformedResponseError. A request
// that does not finish within the client timeout fails with *ProviderError. Any other
// transport error, including ctx itself expiring, is returned wrapped.
func (c *Client) SendRequest(ctx context.Context, method string, params any) (json.RawMessage, error) {
	encodedParams, err := encodeParams(params)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		ID:      requestID,
		Method:  method,
		Params:  encodedParams,
	})
	if err != nil {
		// Only reachable when a string param is not valid JSON.
		return nil, fmt.Errorf("failed to encode request for %s: %w", method, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Sending request", "method", method)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == nil && isTimeout(err) {
			return nil, newTimeoutError(method, c.timeout, err)
		}
		return nil, fmt.Errorf("request %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() == nil && isTimeout(err) {
			return nil, newTimeoutError(method, c.timeout, err)
		}
		return nil, fmt.Errorf("failed to read response to %s: %w", method, err)
	}

	return parseResponse(resp.StatusCode, respBody)
}

func parseResponse(statusCode int, body []byte) (json.RawMessage, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(body, &members); err != nil {
		return nil, &MalformedResponseError{StatusCode: statusCode, Body: body, Cause: err}
	}

	if result, ok := members["result"]; ok {
		return result, nil
	}
	if rawErr, ok := members["error"]; ok {
		rpcErr := &RPCError{}
		if err := json.Unmarshal(rawErr, rpcErr); err != nil {
			return nil, &MalformedResponseError{StatusCode: statusCode, Body: body, Cause: err}
		}
		return nil, rpcErr
	}
	return nil, &MalformedResponseError{StatusCode: statusCode, Body: body}
}

// Call sends a request and decodes its result into T.
func Call[T any](ctx context.Context, c *Client, method string, params any) (T, error) {
	var out T
	raw, err := c.SendRequest(ctx, method, params)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return out, nil
}
