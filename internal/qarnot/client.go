package qarnot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"

	"github.com/chloepilonv/mcp-server-qarnot/pkg/metricskey"
)

var logger = xlog.NewPackageLogger("github.com/chloepilonv/mcp-server-qarnot", "qarnot")

const (
	// DefaultClusterURL is the Qarnot cluster REST API endpoint.
	DefaultClusterURL = "https://api.qarnot.com"
	// DefaultStorageURL is the S3-compatible storage endpoint.
	DefaultStorageURL = "https://storage.qarnot.com"
)

// Doer performs a HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a Connection backed by the Qarnot cluster REST API and the
// S3-compatible storage endpoint.
type Client struct {
	token      string
	clusterURL string
	storageURL string
	httpClient Doer

	// S3 side, built lazily on first storage call because the
	// credentials need the account email from the cluster API.
	s3once sync.Once
	s3cli  s3API
	s3err  error
}

// Option is an option for the Qarnot client.
type Option func(*Client)

// WithClusterURL overrides the cluster API endpoint.
func WithClusterURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.clusterURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithStorageURL overrides the storage endpoint.
func WithStorageURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.storageURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithHTTPClient overrides the HTTP transport.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		c.httpClient = d
	}
}

// ensure Client implements the Connection interface
var _ Connection = (*Client)(nil)

// New returns a client authenticated with the given API token.
func New(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, errors.New("api token is required")
	}
	c := &Client{
		token:      token,
		clusterURL: DefaultClusterURL,
		storageURL: DefaultStorageURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.clusterURL+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	metricskey.PerfQarnotAPIRequest.MeasureSince(started, method)
	if err != nil {
		metricskey.StatsQarnotAPIErrors.IncrCounter(1, method)
		return nil, errors.Wrap(err, "request failed")
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	metricskey.StatsQarnotAPIErrors.IncrCounter(1, method)
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Message = body.Message
	}
	logger.ContextKV(ctx, xlog.DEBUG,
		"event", "api_error",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
	)
	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.WithStack(ErrNotFound)
	}
	return nil, errors.WithStack(apiErr)
}

// getJSON performs a GET and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

// getText performs a GET and returns the response body as a string.
func (c *Client) getText(ctx context.Context, path string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	bs, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read response")
	}
	return string(bs), nil
}

// post performs a POST with no request body and discards the response.
func (c *Client) post(ctx context.Context, path string) error {
	resp, err := c.do(ctx, http.MethodPost, path)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
