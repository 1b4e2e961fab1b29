package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/jonesrussell/prospect-discovery/internal/cache"
	"github.com/jonesrussell/prospect-discovery/internal/config"
	"github.com/jonesrussell/prospect-discovery/internal/discovery"
	"github.com/jonesrussell/prospect-discovery/internal/extract"
	"github.com/jonesrussell/prospect-discovery/internal/logger"
	"github.com/jonesrussell/prospect-discovery/internal/quota"
	"github.com/jonesrussell/prospect-discovery/internal/telemetry"
	"github.com/jonesrussell/prospect-discovery/internal/websets"
)

// stubAPI is a minimal provider fake: a running job that completes on
// the second status fetch with one discovered item.
type stubAPI struct {
	checkErr error
	getErr   error
	polls    int
}

func (s *stubAPI) CheckConfig() error { return s.checkErr }

func (s *stubAPI) CreateWebset(context.Context, websets.CreateRequest) (*websets.Webset, error) {
	return &websets.Webset{ID: "ws-1", Status: websets.StatusRunning}, nil
}

func (s *stubAPI) GetWebset(_ context.Context, id string) (*websets.Webset, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.polls++
	status := websets.StatusRunning
	if s.polls > 1 {
		status = websets.StatusIdle
	}
	return &websets.Webset{ID: id, Status: status}, nil
}

func (s *stubAPI) ListItems(context.Context, string, int, string) (*websets.ItemPage, error) {
	return &websets.ItemPage{Data: []websets.Item{{
		ID: "p1",
		Enrichments: websets.EnrichmentList{{
			EnrichmentID: "enrich_email",
			Status:       websets.EnrichmentCompleted,
			Result:       "a@x.com",
		}},
	}}}, nil
}

func (s *stubAPI) CancelWebset(context.Context, string) error { return nil }

func newTestRouter(t *testing.T, api websets.API) http.Handler {
	t.Helper()

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	metrics := telemetry.NewMetrics()
	log := logger.NewNop()
	store := cache.NewMemoryStore(10, time.Hour)

	engine := discovery.NewEngine(api, extract.New(), store, metrics, log, otel.Tracer("test"), discovery.EngineConfig{
		PollInterval: time.Millisecond,
		MaxTicks:     50,
	})
	service := discovery.NewService(
		store,
		quota.NewClient("", time.Second),
		discovery.NewReuser(api, store, metrics, log),
		discovery.NewSubmitter(api, discovery.SubmitterConfig{}, log),
		engine,
		metrics,
		log,
	)
	t.Cleanup(service.Shutdown)

	return NewRouter(cfg, NewHandler(service, log), metrics, log)
}

func startBody() string {
	return `{
		"query": "fintech founders",
		"entity_type": "person",
		"target_count": 5,
		"enrichments": ["email"]
	}`
}

func TestStartDiscoveryEndpoint(t *testing.T) {
	router := newTestRouter(t, &stubAPI{})

	t.Run("accepts a valid request", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/discoveries", strings.NewReader(startBody()))
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

		var snap discovery.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		assert.NotEmpty(t, snap.ID)
		assert.Equal(t, "ws-1", snap.WebsetID)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/discoveries", strings.NewReader("{not json"))
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects an invalid request", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/discoveries", strings.NewReader(`{"query": ""}`))
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)

		var errResp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
		assert.Equal(t, "INVALID_REQUEST", errResp.Code)
	})
}

func TestStartDiscoveryProviderUnconfigured(t *testing.T) {
	router := newTestRouter(t, &stubAPI{checkErr: websets.ErrMissingAPIKey})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/discoveries", strings.NewReader(startBody()))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "PROVIDER_UNCONFIGURED", errResp.Code)
}

func TestGetDiscoveryEndpoint(t *testing.T) {
	router := newTestRouter(t, &stubAPI{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/discoveries", strings.NewReader(startBody()))
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var snap discovery.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))

	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/discoveries/"+snap.ID, nil))
		if rec.Code != http.StatusOK {
			return false
		}
		var got discovery.Snapshot
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			return false
		}
		return got.State.Status == "completed" && len(got.Prospects) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGetDiscoveryByRemoteJobID(t *testing.T) {
	// An id with no local discovery falls through to a stand-alone merge
	// tick against the provider, so a caller holding only the remote job
	// id can poll.
	router := newTestRouter(t, &stubAPI{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/discoveries/ws-77?target=5", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var snap discovery.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "ws-77", snap.WebsetID)
	assert.Equal(t, 1, snap.State.Found)
	require.Len(t, snap.Prospects, 1)
	assert.Equal(t, "p1", snap.Prospects[0].ID)
}

func TestGetDiscoveryNotFound(t *testing.T) {
	router := newTestRouter(t, &stubAPI{
		getErr: &websets.APIError{StatusCode: http.StatusNotFound, Message: "webset not found"},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/discoveries/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/discoveries/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamDiscoveryEndpoint(t *testing.T) {
	router := newTestRouter(t, &stubAPI{})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/api/v1/discoveries", "application/json", strings.NewReader(startBody()))
	require.NoError(t, err)
	defer resp.Body.Close()

	var snap discovery.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))

	stream, err := http.Get(srv.URL + "/api/v1/discoveries/" + snap.ID + "/stream")
	require.NoError(t, err)
	defer stream.Body.Close()

	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	type frame struct {
		Prospects      []json.RawMessage `json:"prospects"`
		TotalProspects int               `json:"total_prospects"`
	}

	sawConnected := false
	sawTerminal := false
	inDiscoveryEvent := false
	delivered := 0
	lastTotal := 0

	scanner := bufio.NewScanner(stream.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: connected"):
			sawConnected = true
			inDiscoveryEvent = false
		case strings.HasPrefix(line, "event: discovery:"):
			inDiscoveryEvent = true
			sawTerminal = strings.HasPrefix(line, "event: discovery:completed")
		case inDiscoveryEvent && strings.HasPrefix(line, "data: "):
			var f frame
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &f))
			delivered += len(f.Prospects)
			lastTotal = f.TotalProspects
			inDiscoveryEvent = false
		}
		if sawTerminal && !inDiscoveryEvent {
			break
		}
	}

	assert.True(t, sawConnected, "stream opens with the handshake event")
	assert.True(t, sawTerminal, "stream ends with the terminal event")
	assert.Equal(t, 1, lastTotal)
	assert.Equal(t, lastTotal, delivered, "each prospect is delivered exactly once across frames")
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	router := newTestRouter(t, &stubAPI{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
