package net

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mchmarny/cipherbench/pkg/bench"
	"github.com/mchmarny/cipherbench/pkg/data"
)

const (
	maxIdleConns     = 10
	timeoutInSeconds = 60
	clientAgent      = "cipherbench-client"
)

var (
	reqTransport = &http.Transport{
		MaxIdleConns:          maxIdleConns,
		IdleConnTimeout:       timeoutInSeconds * time.Second,
		DisableKeepAlives:     false,
		ResponseHeaderTimeout: time.Duration(timeoutInSeconds) * time.Second,
	}

	ErrNotFound = errors.New("not found")
)

// RunRequest is the body of the score and run endpoints. Zero values
// keep the server configuration.
type RunRequest struct {
	Samples    []string `json:"samples,omitempty"`
	Text       string   `json:"text,omitempty"`
	Seed       uint64   `json:"seed,omitempty"`
	Multiplier float64  `json:"multiplier,omitempty"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error (status: %d): %s", e.StatusCode, e.Message)
}

// Client talks to a cipherbench server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the server at baseURL.
// A nil hc uses a shared transport with the default timeout.
func NewClient(baseURL string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}
	if hc == nil {
		hc = &http.Client{
			Timeout:   time.Duration(timeoutInSeconds) * time.Second,
			Transport: reqTransport,
		}
	}
	return &Client{baseURL: strings.TrimSuffix(u.String(), "/"), http: hc}, nil
}

// Score evaluates a single string without storing it.
func (c *Client) Score(ctx context.Context, req *RunRequest) (*bench.Result, error) {
	var r bench.Result
	if err := c.do(ctx, http.MethodPost, "/api/score", req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRun runs a benchmark on the server and stores it there.
func (c *Client) CreateRun(ctx context.Context, req *RunRequest) (*data.Run, error) {
	var r data.Run
	if err := c.do(ctx, http.MethodPost, "/api/runs", req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) ListRuns(ctx context.Context, limit int) ([]*data.Run, error) {
	var list []*data.Run
	if err := c.do(ctx, http.MethodGet, "/api/runs?limit="+strconv.Itoa(limit), nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) GetRun(ctx context.Context, id string) (*data.Run, error) {
	var r data.Run
	if err := c.do(ctx, http.MethodGet, "/api/runs/"+url.PathEscape(id), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("error encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("error creating HTTP %s request: %w", method, err)
	}
	req.Header.Set("User-Agent", clientAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error executing HTTP %s request: %w", method, err)
	}
	defer resp.Body.Close()
	PrintHTTPResponse(resp)

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return newAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding content: %w", err)
	}
	return nil
}

func newAPIError(resp *http.Response) error {
	var e struct {
		Error string `json:"error"`
	}
	msg := resp.Status
	if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
		msg = e.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
