// Package statusapi is the HTTP client for the monitor backend's two read
// endpoints.
package statusapi

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/angeloszaimis/healthdash/internal/status"
)

const (
	DefaultStatusPath = "/api/status"
	DefaultSystemPath = "/api/system"

	// maxBodyBytes bounds how much of a response is read.
	maxBodyBytes = 4 << 20
)

// Client fetches status collections and system metadata.
type Client struct {
	base       *url.URL
	statusPath string
	systemPath string
	http       *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithStatusPath overrides the status endpoint (e.g. /api/health).
func WithStatusPath(p string) Option {
	return func(c *Client) { c.statusPath = p }
}

// WithSystemPath overrides the system metadata endpoint.
func WithSystemPath(p string) Option {
	return func(c *Client) { c.systemPath = p }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, errors.Errorf("missing protocol from endpoint %s", baseURL)
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parse base url %s", baseURL)
	}

	c := &Client{
		base:       u,
		statusPath: DefaultStatusPath,
		systemPath: DefaultSystemPath,
		http: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   2 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 5 * time.Second,
				IdleConnTimeout:     60 * time.Second,
			},
			Timeout: timeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// FetchStatus issues GET on the status endpoint and normalizes the body.
func (c *Client) FetchStatus(ctx context.Context) ([]status.Service, error) {
	endpoint := c.endpoint(c.statusPath)

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	services, err := status.Decode(body)
	if err != nil {
		return nil, &FetchError{Kind: MalformedResponse, Endpoint: endpoint, Err: err}
	}

	return services, nil
}

// FetchSystemInfo issues GET on the system metadata endpoint.
func (c *Client) FetchSystemInfo(ctx context.Context) (status.SystemInfo, error) {
	endpoint := c.endpoint(c.systemPath)

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return status.SystemInfo{}, err
	}

	var info status.SystemInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return status.SystemInfo{}, &FetchError{
			Kind:     MalformedResponse,
			Endpoint: endpoint,
			Err:      errors.Wrap(err, "decode system info"),
		}
	}

	return info, nil
}

func (c *Client) endpoint(path string) string {
	return c.base.ResolveReference(&url.URL{Path: path}).String()
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Kind: TransportFailure, Endpoint: endpoint, Err: errors.Wrap(err, "build request")}
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: TransportFailure, Endpoint: endpoint, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxBodyBytes))
		return nil, &FetchError{
			Kind:       HTTPStatusFailure,
			Endpoint:   endpoint,
			StatusCode: res.StatusCode,
			Err:        errors.Errorf("unexpected status %s", res.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{Kind: TransportFailure, Endpoint: endpoint, Err: errors.Wrap(err, "read body")}
	}

	return body, nil
}
