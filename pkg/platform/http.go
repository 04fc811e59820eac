package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/jdziat/scheduled-publisher/pkg/core"
)

// DefaultRatePerMinute is the per-platform publish budget.
const DefaultRatePerMinute = 20

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// HTTPConfig configures an HTTP-backed publisher.
type HTTPConfig struct {
	// BaseURL overrides the platform's API root (used by tests and proxies).
	BaseURL string

	// RatePerMinute limits publishes; <= 0 uses DefaultRatePerMinute.
	RatePerMinute int

	// Client is the HTTP client. Default: a client with a 30s timeout.
	Client *http.Client

	// Limits overrides DefaultLimits for the platform.
	Limits *Limits
}

type apiClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	limits  Limits
}

func newAPIClient(p core.Platform, defaultBase string, cfg HTTPConfig) *apiClient {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBase
	}
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = DefaultRatePerMinute
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	limits := DefaultLimits[p]
	if cfg.Limits != nil {
		limits = *cfg.Limits
	}
	return &apiClient{
		baseURL: strings.TrimRight(base, "/"),
		http:    client,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
		limits:  limits,
	}
}

// request sends a JSON request and decodes a JSON response into out (if non-nil).
func (c *apiClient) request(ctx context.Context, method, path, bearer string, body, out any, headers map[string]string) (http.Header, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limit wait")
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.Header, &core.APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return resp.Header, errors.Wrap(err, "decode response")
		}
	}
	return resp.Header, nil
}
