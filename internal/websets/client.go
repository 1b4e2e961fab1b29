package websets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HTTP client tuning. Remote calls must finish well inside one poll
// interval, so the per-request timeout stays short.
const (
	defaultTimeout             = 10 * time.Second
	defaultMaxIdleConnsPerHost = 10
	defaultIdleConnTimeout     = 90 * time.Second
)

// API is the provider surface the discovery engine depends on. Tests
// substitute a fake.
type API interface {
	// CheckConfig verifies credentials are present; it performs no
	// network call.
	CheckConfig() error
	CreateWebset(ctx context.Context, req CreateRequest) (*Webset, error)
	GetWebset(ctx context.Context, id string) (*Webset, error)
	ListItems(ctx context.Context, id string, limit int, cursor string) (*ItemPage, error)
	CancelWebset(ctx context.Context, id string) error
}

// Config holds provider connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is the HTTP implementation of the provider API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a provider client. The API key presence is checked
// per call so construction never fails, but CheckConfig lets callers
// fail fast at startup.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}
}

// CheckConfig verifies the client has credentials.
func (c *Client) CheckConfig() error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// CreateWebset submits a new search job to the provider.
func (c *Client) CreateWebset(ctx context.Context, req CreateRequest) (*Webset, error) {
	var ws Webset
	if err := c.do(ctx, http.MethodPost, "/websets", req, &ws); err != nil {
		return nil, fmt.Errorf("create webset: %w", err)
	}
	return &ws, nil
}

// GetWebset fetches the current status and progress of a job.
func (c *Client) GetWebset(ctx context.Context, id string) (*Webset, error) {
	var ws Webset
	if err := c.do(ctx, http.MethodGet, "/websets/"+url.PathEscape(id), nil, &ws); err != nil {
		return nil, fmt.Errorf("get webset %s: %w", id, err)
	}
	return &ws, nil
}

// ListItems fetches one page of discovered items.
func (c *Client) ListItems(ctx context.Context, id string, limit int, cursor string) (*ItemPage, error) {
	path := "/websets/" + url.PathEscape(id) + "/items?limit=" + strconv.Itoa(limit)
	if cursor != "" {
		path += "&cursor=" + url.QueryEscape(cursor)
	}

	var page ItemPage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, fmt.Errorf("list webset items %s: %w", id, err)
	}
	return &page, nil
}

// CancelWebset requests cancellation of a running job.
func (c *Client) CancelWebset(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodPost, "/websets/"+url.PathEscape(id)+"/cancel", nil, nil); err != nil {
		return fmt.Errorf("cancel webset %s: %w", id, err)
	}
	return nil
}

// do performs one provider request and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}

	var reader *bytes.Reader
	if body != nil {
		payload, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return fmt.Errorf("marshal request: %w", marshalErr)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, reqErr := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if reqErr != nil {
		return fmt.Errorf("create request: %w", reqErr)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return fmt.Errorf("send request: %w", doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return parseAPIError(resp)
	}

	if out == nil {
		return nil
	}

	if decodeErr := json.NewDecoder(resp.Body).Decode(out); decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	return nil
}
