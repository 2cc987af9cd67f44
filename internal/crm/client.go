// Copyright 2026 The Bot Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"

	"github.com/ruJakara/bot-project/internal/observability/logger"
	"github.com/ruJakara/bot-project/internal/observability/metrics"
	"github.com/ruJakara/bot-project/internal/track"
)

const tokenHeader = "X-ALFACRM-TOKEN"

// Config holds the resolved connection parameters for one CRM deployment.
type Config struct {
	BaseURL string
	Email   string
	APIKey  string
	Branch  int64
	// TokenTTL is a fixed local approximation of the token lifetime; the
	// login response carries no expiry, so drift is corrected by the
	// bounded 401 retry in Request.
	TokenTTL time.Duration
	Timeout  time.Duration
}

// ConfigFromParams builds a Config from resolved integration credentials
// (parameters base_url, email, api_key, branch_id).
func ConfigFromParams(params map[string]string, ttl, timeout time.Duration) (Config, error) {
	cfg := Config{
		BaseURL:  params["base_url"],
		Email:    params["email"],
		APIKey:   params["api_key"],
		TokenTTL: ttl,
		Timeout:  timeout,
	}
	if cfg.BaseURL == "" || cfg.Email == "" || cfg.APIKey == "" {
		return Config{}, fmt.Errorf("crm credentials incomplete: base_url, email and api_key are required")
	}
	if raw, ok := params["branch_id"]; ok {
		branch, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("crm branch_id %q is not a number: %w", raw, err)
		}
		cfg.Branch = branch
	}
	return cfg, nil
}

// Result is a decoded CRM response: a JSON object, raw text for non-JSON
// bodies, or neither for an empty body.
type Result struct {
	JSON map[string]any
	Text string
}

// IsEmpty reports whether the response carried no body at all.
func (r Result) IsEmpty() bool {
	return r.JSON == nil && r.Text == ""
}

func (r Result) String() string {
	if r.JSON != nil {
		b, _ := json.Marshal(r.JSON)
		return string(b)
	}
	return r.Text
}

// Client issues authenticated calls to the CRM. It is the sole owner of
// the access token and its freshness: callers never inspect expiry.
//
// The token cache is guarded by a mutex, but the login call itself runs
// outside the lock. Concurrent refreshes are therefore possible and
// converge last-writer-wins; tokens are interchangeable, so this is a
// missed optimization rather than a correctness problem.
type Client struct {
	cfg     Config
	http    *http.Client
	tracker track.Tracker
	now     func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	requests metric.Int64Counter
	logins   metric.Int64Counter
	retries  metric.Int64Counter
}

// New creates a CRM gateway client. tracker may be nil, in which case
// outcomes are only logged.
func New(cfg Config, tracker track.Tracker, meter *metrics.Meter) *Client {
	if tracker == nil {
		tracker = track.NewSlogTracker()
	}
	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tracker: tracker,
		now:     time.Now,
	}
	if meter != nil {
		c.requests, _ = meter.CreateCounter("crm_requests_total", "CRM API calls issued")
		c.logins, _ = meter.CreateCounter("crm_logins_total", "CRM login calls issued")
		c.retries, _ = meter.CreateCounter("crm_retries_total", "CRM calls retried after a rejected token")
	}
	return c
}

// Branch returns the default branch id for this deployment.
func (c *Client) Branch() int64 {
	return c.cfg.Branch
}

// Token returns the cached access token while it is still fresh, and
// otherwise logs in and caches the replacement.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	token, expiresAt := c.token, c.expiresAt
	c.mu.Unlock()

	if token != "" && c.now().Before(expiresAt) {
		return token, nil
	}
	return c.login(ctx)
}

func (c *Client) login(ctx context.Context) (string, error) {
	slog.InfoContext(ctx, "requesting crm token", logger.Component("crm"))
	c.add(ctx, c.logins)

	payload := map[string]string{"email": c.cfg.Email, "api_key": c.cfg.APIKey}
	status, body, err := c.do(ctx, http.MethodPost, "v2api/auth/login", payload, "")
	if err != nil {
		return "", fmt.Errorf("crm login request: %w", err)
	}
	if status < 200 || status >= 300 {
		return "", &AuthError{Status: status, Body: string(body)}
	}

	var envelope map[string]any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &envelope); err != nil {
			return "", &AuthError{Body: fmt.Sprintf("login response is not JSON: %v", err)}
		}
	}

	token, _ := envelope["token"].(string)
	if token == "" {
		if data, ok := envelope["data"].(map[string]any); ok {
			token, _ = data["token"].(string)
		}
	}
	if token == "" {
		return "", &AuthError{Body: fmt.Sprintf("token missing in login response: %s", string(body))}
	}

	c.mu.Lock()
	c.token = token
	c.expiresAt = c.now().Add(c.cfg.TokenTTL)
	c.mu.Unlock()

	return token, nil
}

func (c *Client) invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

// Request issues one authenticated CRM call. A response that signals an
// unauthorized token (HTTP 401 or an access-denied body marker) causes the
// cache to be invalidated and the call retried exactly once with a fresh
// token; a second rejection surfaces as *AuthError. All other non-2xx
// responses surface as *HTTPError. An empty body maps to an empty Result,
// not a parse error.
func (c *Client) Request(ctx context.Context, method, path string, body any) (Result, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return Result{}, err
	}

	c.add(ctx, c.requests)
	slog.InfoContext(ctx, "crm request",
		logger.Component("crm"), logger.Method(method), logger.Path(path))

	status, respBody, err := c.do(ctx, method, path, body, token)
	if err != nil {
		return Result{}, err
	}

	if tokenRejected(status, respBody) {
		slog.WarnContext(ctx, "crm token rejected, retrying with new token",
			logger.Component("crm"), logger.StatusCode(status))
		c.add(ctx, c.retries)
		c.invalidate()

		token, err = c.Token(ctx)
		if err != nil {
			return Result{}, err
		}
		status, respBody, err = c.do(ctx, method, path, body, token)
		if err != nil {
			return Result{}, err
		}
		if status == http.StatusUnauthorized {
			return Result{}, &AuthError{Status: status, Body: string(respBody)}
		}
	}

	if status < 200 || status >= 300 {
		return Result{}, &HTTPError{Status: status, Body: string(respBody)}
	}

	if len(respBody) == 0 {
		return Result{}, nil
	}

	var payload map[string]any
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return Result{Text: string(respBody)}, nil
	}
	return Result{JSON: payload}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encode crm request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(tokenHeader, token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read crm response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func (c *Client) buildURL(path string) string {
	if strings.HasPrefix(path, "http") {
		return path
	}
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) add(ctx context.Context, counter metric.Int64Counter) {
	if counter != nil {
		counter.Add(ctx, 1)
	}
}

// tokenRejected recognizes an unauthorized response. Some deployments
// answer 200 with an access-denied body instead of a proper 401.
func tokenRejected(status int, body []byte) bool {
	if status == http.StatusUnauthorized {
		return true
	}
	text := strings.ToLower(string(body))
	return strings.Contains(text, "access denied") || strings.Contains(text, "accessdenied")
}
