package quota

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCost(t *testing.T) {
	tests := []struct {
		name    string
		target  int
		preview bool
		want    int
	}{
		{"full search costs the target", 25, false, 25},
		{"preview costs one", 25, true, 1},
		{"zero target costs one", 0, false, 1},
		{"negative target costs one", -5, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Cost(tt.target, tt.preview))
		})
	}
}

func TestCheckDisabledWithoutURL(t *testing.T) {
	client := NewClient("", time.Second)

	assert.False(t, client.Enabled())
	assert.NoError(t, client.Check(context.Background(), "u1", "query", 10))
}

func TestCheckAllowed(t *testing.T) {
	var got checkRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/quota/check", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"allowed": true}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, time.Second)
	require.NoError(t, client.Check(context.Background(), "u1", "Find CTOs", 25))

	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, 25, got.Cost)
	assert.NotEmpty(t, got.IdempotencyKey)
}

func TestCheckDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"allowed": false, "reason": "monthly limit reached"}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, time.Second)
	err := client.Check(context.Background(), "u1", "query", 25)

	require.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Contains(t, err.Error(), "monthly limit reached")
}

func TestCheckServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, time.Second)
	err := client.Check(context.Background(), "u1", "query", 25)

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrQuotaExceeded, "service failures are not quota denials")
}

func TestIdempotencyKeyNormalizesQuery(t *testing.T) {
	assert.Equal(t,
		idempotencyKey("u1", "Find CTOs", 25),
		idempotencyKey("u1", "  find ctos ", 25),
	)
	assert.NotEqual(t,
		idempotencyKey("u1", "find ctos", 25),
		idempotencyKey("u1", "find ctos", 26),
	)
}
