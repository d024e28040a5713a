// Package dtrack is a small client for the Dependency-Track REST API.
package dtrack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	apiPath        = "/api/v1/"
	bomPath        = "bom"
	bomTokenPath   = "bom/token"
	bomExportPath  = "bom/cyclonedx/project"
	scanPath       = "scan"
	projectPath    = "project"
	lookupPath     = "project/lookup"
	findingPath    = "finding/project"
	metricsPath    = "metrics/project"
	analysisPath   = "analysis"
	headerAPIKey   = "X-Api-Key"
	maxErrorBody   = 512
	defaultTimeout = 60 * time.Second
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

type Option func(*Client)

// WithHTTPClient replaces the default client, which times out after a minute.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func New(baseURL, apiKey string, logger *zap.SugaredLogger, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" || apiKey == "" {
		return nil, errors.New("invalid Dependency-Track config, url and api key are required")
	}

	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL is the server root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) doHTTPRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	url := c.baseURL + apiPath + path

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode request for %s", url)
		}
		reader = bytes.NewReader(b)
	}

	c.logger.Debugw("Making HTTP request to Dependency-Track API", "method", method, "url", url)
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, errors.Wrap(err, "bad request for url: "+url)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerAPIKey, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "connection problem for url: "+url)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Method:     method,
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}
	return resp, nil
}

// do runs a request and decodes the JSON answer into out when out is not
// nil. It reports false when the server answered without a body.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) (bool, error) {
	resp, err := c.doHTTPRequest(ctx, method, path, in)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil {
		return true, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, errors.Wrapf(err, "failed to read response of %s", path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err = json.Unmarshal(data, out); err != nil {
		return false, errors.Wrapf(err, "failed to decode response of %s", path)
	}
	return true, nil
}

func (c *Client) raw(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.doHTTPRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("failed to read response of %s", path))
	}
	return data, nil
}
