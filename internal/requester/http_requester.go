package requester

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brizzai/oauth-playground/internal/config"
	"github.com/brizzai/oauth-playground/internal/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// maxBodySize caps how much of a provider response is kept.
const maxBodySize = 1 << 20

// HTTPRequester executes the outbound calls against provider endpoints
type HTTPRequester struct {
	client *http.Client
}

type HTTPRequesterParams struct {
	fx.In

	HTTPConfig *config.HTTPConfig `optional:"true"`
}

// NewHTTPRequester creates a new HTTPRequester with default configuration
func NewHTTPRequester(params HTTPRequesterParams) *HTTPRequester {
	timeout := 30 * time.Second
	if params.HTTPConfig != nil && params.HTTPConfig.Timeout > 0 {
		timeout = params.HTTPConfig.Timeout
	}
	return &HTTPRequester{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewWithClient wraps an existing client, mostly for tests.
func NewWithClient(client *http.Client) *HTTPRequester {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRequester{client: client}
}

// SetTimeout sets the timeout for the HTTP client
func (r *HTTPRequester) SetTimeout(timeout time.Duration) {
	r.client.Timeout = timeout
}

// PostForm sends form as an application/x-www-form-urlencoded body.
func (r *HTTPRequester) PostForm(ctx context.Context, endpoint string, form url.Values) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	return r.execute(req)
}

// Get sends a GET with the given headers, merging query into the endpoint's own query.
func (r *HTTPRequester) Get(ctx context.Context, endpoint string, headers http.Header, query url.Values) (*Response, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", endpoint, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for key, values := range query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	return r.execute(req)
}

// execute performs the actual HTTP request execution
func (r *HTTPRequester) execute(req *http.Request) (*Response, error) {
	logger.Debug("outbound request",
		zap.String("method", req.Method),
		zap.String("host", req.URL.Host),
		zap.String("path", req.URL.Path),
	)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Error("Failed to close response body", zap.Error(closeErr))
		}
	}()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       bodyBytes,
		Headers:    resp.Header,
	}, nil
}
