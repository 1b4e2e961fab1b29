package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/prospect-discovery/internal/cache"
	"github.com/jonesrussell/prospect-discovery/internal/domain"
	"github.com/jonesrussell/prospect-discovery/internal/logger"
	"github.com/jonesrussell/prospect-discovery/internal/telemetry"
	"github.com/jonesrussell/prospect-discovery/internal/websets"
)

func seedEntry(t *testing.T, store cache.Store, req *domain.SearchRequest, websetID string) string {
	t.Helper()

	fp := cache.Fingerprint(req)
	require.NoError(t, store.Put(context.Background(), cache.Entry{
		WebsetID:    websetID,
		Fingerprint: fp,
		CreatedAt:   time.Now(),
		LastUsedAt:  time.Now(),
		Status:      cache.EntryActive,
	}))
	return fp
}

func newTestReuser(api websets.API, store cache.Store) *Reuser {
	return NewReuser(api, store, telemetry.NewMetrics(), logger.NewNop())
}

func TestFindReusableMissOnEmptyCache(t *testing.T) {
	reuser := newTestReuser(&fakeAPI{}, cache.NewMemoryStore(10, time.Hour))

	_, ok := reuser.FindReusable(context.Background(), searchRequest())
	assert.False(t, ok)
}

func TestFindReusableRunningJob(t *testing.T) {
	store := cache.NewMemoryStore(10, time.Hour)
	req := searchRequest()
	seedEntry(t, store, req, "ws-1")

	api := &fakeAPI{
		getFn: func(_ context.Context, id string) (*websets.Webset, error) {
			return runningWebset(id, 3), nil
		},
	}

	id, ok := newTestReuser(api, store).FindReusable(context.Background(), req)
	require.True(t, ok)
	assert.Equal(t, "ws-1", id)
}

func TestFindReusableCompletedJob(t *testing.T) {
	completedWebset := func(found int) *websets.Webset {
		return &websets.Webset{
			ID:       "ws-1",
			Status:   websets.StatusIdle,
			Searches: []websets.SearchState{{Progress: websets.Progress{Found: found}}},
		}
	}

	t.Run("reused when it found enough", func(t *testing.T) {
		store := cache.NewMemoryStore(10, time.Hour)
		req := searchRequest()
		seedEntry(t, store, req, "ws-1")

		api := &fakeAPI{
			getFn: func(context.Context, string) (*websets.Webset, error) {
				return completedWebset(req.TargetCount), nil
			},
		}

		id, ok := newTestReuser(api, store).FindReusable(context.Background(), req)
		require.True(t, ok)
		assert.Equal(t, "ws-1", id)
	})

	t.Run("miss when under-provisioned", func(t *testing.T) {
		store := cache.NewMemoryStore(10, time.Hour)
		req := searchRequest()
		fp := seedEntry(t, store, req, "ws-1")

		api := &fakeAPI{
			getFn: func(context.Context, string) (*websets.Webset, error) {
				return completedWebset(req.TargetCount - 1), nil
			},
		}

		_, ok := newTestReuser(api, store).FindReusable(context.Background(), req)
		assert.False(t, ok)

		// Entry stays: a later request with a smaller target can still
		// reuse it.
		_, present, err := store.Get(context.Background(), fp)
		require.NoError(t, err)
		assert.True(t, present)
	})
}

func TestFindReusableEvictsDeadJobs(t *testing.T) {
	t.Run("remote lookup failure", func(t *testing.T) {
		store := cache.NewMemoryStore(10, time.Hour)
		req := searchRequest()
		fp := seedEntry(t, store, req, "ws-1")

		api := &fakeAPI{
			getFn: func(context.Context, string) (*websets.Webset, error) {
				return nil, errors.New("webset not found")
			},
		}

		_, ok := newTestReuser(api, store).FindReusable(context.Background(), req)
		assert.False(t, ok)

		_, present, err := store.Get(context.Background(), fp)
		require.NoError(t, err)
		assert.False(t, present, "dead entry is evicted")
	})

	t.Run("remote terminal failure", func(t *testing.T) {
		store := cache.NewMemoryStore(10, time.Hour)
		req := searchRequest()
		fp := seedEntry(t, store, req, "ws-1")

		api := &fakeAPI{
			getFn: func(context.Context, string) (*websets.Webset, error) {
				return &websets.Webset{ID: "ws-1", Status: websets.StatusFailed}, nil
			},
		}

		_, ok := newTestReuser(api, store).FindReusable(context.Background(), req)
		assert.False(t, ok)

		_, present, err := store.Get(context.Background(), fp)
		require.NoError(t, err)
		assert.False(t, present, "failed entry is evicted")
	})
}

func TestFindReusableUnrecognizedRemoteStatus(t *testing.T) {
	store := cache.NewMemoryStore(10, time.Hour)
	req := searchRequest()
	fp := seedEntry(t, store, req, "ws-1")

	api := &fakeAPI{
		getFn: func(context.Context, string) (*websets.Webset, error) {
			return &websets.Webset{ID: "ws-1", Status: "archived"}, nil
		},
	}

	_, ok := newTestReuser(api, store).FindReusable(context.Background(), req)
	assert.False(t, ok)

	// Unlike failed/canceled jobs, an unrecognized state is not grounds
	// for eviction.
	_, present, err := store.Get(context.Background(), fp)
	require.NoError(t, err)
	assert.True(t, present)
}

func TestFindReusableQueryPhrasingStillHits(t *testing.T) {
	store := cache.NewMemoryStore(10, time.Hour)
	req := searchRequest()
	req.Criteria = []domain.Criterion{{Value: "CTO", Type: domain.CriterionJobTitle}}
	seedEntry(t, store, req, "ws-1")

	api := &fakeAPI{
		getFn: func(_ context.Context, id string) (*websets.Webset, error) {
			return runningWebset(id, 1), nil
		},
	}

	rephrased := *req
	rephrased.Query = "totally different phrasing"

	id, ok := newTestReuser(api, store).FindReusable(context.Background(), &rephrased)
	require.True(t, ok)
	assert.Equal(t, "ws-1", id)
}
