package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/jonesrussell/prospect-discovery/internal/websets"
)

// fakeAPI is a scriptable provider for tests.
type fakeAPI struct {
	mu sync.Mutex

	checkErr error
	createFn func(ctx context.Context, req websets.CreateRequest) (*websets.Webset, error)
	getFn    func(ctx context.Context, id string) (*websets.Webset, error)
	listFn   func(ctx context.Context, id string, limit int, cursor string) (*websets.ItemPage, error)
	cancelFn func(ctx context.Context, id string) error

	created  []websets.CreateRequest
	canceled []string
}

func (f *fakeAPI) CheckConfig() error { return f.checkErr }

func (f *fakeAPI) CreateWebset(ctx context.Context, req websets.CreateRequest) (*websets.Webset, error) {
	f.mu.Lock()
	f.created = append(f.created, req)
	f.mu.Unlock()

	if f.createFn != nil {
		return f.createFn(ctx, req)
	}
	return &websets.Webset{ID: "ws-new", Status: websets.StatusRunning}, nil
}

func (f *fakeAPI) GetWebset(ctx context.Context, id string) (*websets.Webset, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return &websets.Webset{ID: id, Status: websets.StatusRunning}, nil
}

func (f *fakeAPI) ListItems(ctx context.Context, id string, limit int, cursor string) (*websets.ItemPage, error) {
	if f.listFn != nil {
		return f.listFn(ctx, id, limit, cursor)
	}
	return &websets.ItemPage{}, nil
}

func (f *fakeAPI) CancelWebset(ctx context.Context, id string) error {
	f.mu.Lock()
	f.canceled = append(f.canceled, id)
	f.mu.Unlock()

	if f.cancelFn != nil {
		return f.cancelFn(ctx, id)
	}
	return nil
}

func (f *fakeAPI) createdRequests() []websets.CreateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]websets.CreateRequest(nil), f.created...)
}

func (f *fakeAPI) canceledIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.canceled...)
}

// fakeClock advances instantly so poll loops run without real sleeps.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.sleeps++
	c.mu.Unlock()

	return ctx.Err()
}

// item builds a webset item with a single completed enrichment.
func item(id, enrichmentID, result string) websets.Item {
	return websets.Item{
		ID: id,
		Enrichments: websets.EnrichmentList{{
			EnrichmentID: enrichmentID,
			Status:       websets.EnrichmentCompleted,
			Result:       result,
		}},
	}
}

func runningWebset(id string, found int) *websets.Webset {
	return &websets.Webset{
		ID:       id,
		Status:   websets.StatusRunning,
		Searches: []websets.SearchState{{Progress: websets.Progress{Found: found, Analyzed: found}}},
	}
}
