// Package quota implements the precheck call to the quota service.
// Every discovery submission is cost-checked before a remote job is
// created; a denial short-circuits submission. An empty base URL
// disables the check, letting the service run without a quota
// collaborator.
package quota

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrQuotaExceeded is returned when the quota service denies the
// requested cost.
var ErrQuotaExceeded = errors.New("quota exceeded")

const defaultTimeout = 5 * time.Second

// Client calls the quota service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a quota client. If baseURL is empty, Check is a
// no-op that always allows.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Enabled returns true if the client is configured with a URL.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Cost computes the quota cost of a discovery: the full target count
// for a search, or 1 for a preview, never less than 1.
func Cost(targetCount int, preview bool) int {
	if preview || targetCount < 1 {
		return 1
	}
	return targetCount
}

type checkRequest struct {
	UserID         string `json:"user_id"`
	Cost           int    `json:"cost"`
	IdempotencyKey string `json:"idempotency_key"`
}

type checkResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Check verifies the user can spend the given cost. The idempotency
// key is derived from {userID, query, cost} so a retried submission is
// not double-charged.
func (c *Client) Check(ctx context.Context, userID, query string, cost int) error {
	if !c.Enabled() {
		return nil
	}

	payload, err := json.Marshal(checkRequest{
		UserID:         userID,
		Cost:           cost,
		IdempotencyKey: idempotencyKey(userID, query, cost),
	})
	if err != nil {
		return fmt.Errorf("marshal quota check: %w", err)
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/quota/check", bytes.NewReader(payload))
	if reqErr != nil {
		return fmt.Errorf("create quota request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return fmt.Errorf("quota service unreachable: %w", doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("quota service error: status %d", resp.StatusCode)
	}

	var result checkResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&result); decodeErr != nil {
		return fmt.Errorf("decode quota response: %w", decodeErr)
	}

	if !result.Allowed {
		if result.Reason != "" {
			return fmt.Errorf("%w: %s", ErrQuotaExceeded, result.Reason)
		}
		return ErrQuotaExceeded
	}
	return nil
}

func idempotencyKey(userID, query string, cost int) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{userID, strings.ToLower(strings.TrimSpace(query)), strconv.Itoa(cost)}, "|")))
	return hex.EncodeToString(sum[:])
}
