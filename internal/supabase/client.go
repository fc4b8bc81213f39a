// Package supabase implements backend.Client over the PostgREST API of a
// hosted Supabase project.
package supabase

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"
	"time"

	"society/internal/backend"
)

const (
	maxResponseBytes  = 8 << 20  // 8 MiB
	maxErrorBodyBytes = 32 << 10 // 32 KiB
	defaultTimeout    = 30 * time.Second
)

// Config holds the project URL and the key sent as both apikey and bearer.
type Config struct {
	URL     string
	Key     string
	Timeout time.Duration
}

// Client talks to /rest/v1 of a Supabase project.
type Client struct {
	url        string
	key        string
	httpClient *http.Client
}

var _ backend.Client = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("SUPABASE_URL is required")
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("SUPABASE_KEY is required")
	}
	parsed, err := neturl.Parse(cfg.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("SUPABASE_URL must be an absolute URL")
	}
	if parsed.User != nil {
		return nil, fmt.Errorf("SUPABASE_URL must not include user info")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := http.DefaultTransport
	if base, ok := http.DefaultTransport.(*http.Transport); ok {
		cloned := base.Clone()
		if cloned.TLSClientConfig != nil {
			cloned.TLSClientConfig = cloned.TLSClientConfig.Clone()
			if cloned.TLSClientConfig.MinVersion < tls.VersionTLS12 {
				cloned.TLSClientConfig.MinVersion = tls.VersionTLS12
			}
		} else {
			cloned.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		transport = cloned
	}

	return &Client{
		url: strings.TrimRight(cfg.URL, "/"),
		key: cfg.Key,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}, nil
}

// WithHTTPClient swaps the transport, for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

func (c *Client) Close() error { return nil }

// Ping issues a HEAD-equivalent read against the houses table.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.request(ctx, http.MethodGet, "houses", nil, "select=id&limit=1")
	return err
}

func (c *Client) Select(ctx context.Context, q backend.Query) (json.RawMessage, error) {
	return c.request(ctx, http.MethodGet, q.Table, nil, encodeQuery(q, true))
}

func (c *Client) Insert(ctx context.Context, table string, rows []backend.Record) (json.RawMessage, error) {
	return c.request(ctx, http.MethodPost, table, rows, "")
}

func (c *Client) Update(ctx context.Context, q backend.Query, patch backend.Record) (json.RawMessage, error) {
	return c.request(ctx, http.MethodPatch, q.Table, patch, encodeQuery(q, false))
}

func (c *Client) Delete(ctx context.Context, q backend.Query) error {
	_, err := c.request(ctx, http.MethodDelete, q.Table, nil, encodeQuery(q, false))
	return err
}

// encodeQuery renders filters and ordering in PostgREST syntax:
// select=*,houses(house_number)&house_number=eq.A-101&order=due_date.desc
func encodeQuery(q backend.Query, withSelect bool) string {
	v := neturl.Values{}
	if withSelect {
		cols := strings.ReplaceAll(q.Columns, " ", "")
		if cols == "" {
			cols = "*"
		}
		v.Set("select", cols)
	}
	for _, f := range q.Filters {
		v.Add(f.Column, "eq."+fmt.Sprint(f.Value))
	}
	if len(q.Orders) > 0 {
		terms := make([]string, len(q.Orders))
		for i, o := range q.Orders {
			dir := "asc"
			if !o.Ascending {
				dir = "desc"
			}
			terms[i] = o.Column + "." + dir
		}
		v.Set("order", strings.Join(terms, ","))
	}
	if withSelect && q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v.Encode()
}

func (c *Client) request(ctx context.Context, method, table string, body any, query string) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.url, table)
	if query != "" {
		url += "?" + query
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		if readErr != nil {
			return nil, fmt.Errorf("read error response: %w", readErr)
		}
		return nil, apiError(resp.StatusCode, respBody)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(respBody) > maxResponseBytes {
		return nil, fmt.Errorf("read response: body exceeds %d bytes", maxResponseBytes)
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return []byte("[]"), nil
	}
	return respBody, nil
}

// apiError decodes a PostgREST error body; unparseable bodies keep the raw
// text as message.
func apiError(status int, body []byte) error {
	be := &backend.Error{Status: status}
	if err := json.Unmarshal(body, be); err != nil || be.Message == "" {
		be.Message = fmt.Sprintf("supabase API error %d: %s", status, strings.TrimSpace(string(body)))
	}
	return be
}
