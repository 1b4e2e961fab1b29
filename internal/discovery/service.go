package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/prospect-discovery/internal/cache"
	"github.com/jonesrussell/prospect-discovery/internal/domain"
	"github.com/jonesrussell/prospect-discovery/internal/logger"
	"github.com/jonesrussell/prospect-discovery/internal/quota"
	"github.com/jonesrussell/prospect-discovery/internal/telemetry"
)

// ErrNotFound is returned for operations on an unknown discovery id.
var ErrNotFound = errors.New("discovery not found")

// subscriberBuffer sizes each subscriber channel. A slow consumer
// skips intermediate events rather than blocking the poll loop; every
// event carries the full accumulated set, so skipped events lose
// nothing.
const subscriberBuffer = 8

// Snapshot is the externally visible state of one discovery.
type Snapshot struct {
	ID        string               `json:"id"`
	WebsetID  string               `json:"webset_id"`
	Reused    bool                 `json:"reused"`
	State     domain.ProgressState `json:"state"`
	Prospects []domain.Prospect    `json:"prospects"`
	Message   string               `json:"message,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

// Service is the discovery orchestrator: it prechecks quota, reuses or
// submits remote jobs, runs the poll loop in the background, and serves
// pull and push consumers from the same event stream.
type Service struct {
	store     cache.Store
	quota     *quota.Client
	reuser    *Reuser
	submitter *Submitter
	engine    *Engine
	metrics   *telemetry.Metrics
	logger    logger.Logger

	mu   sync.RWMutex
	runs map[string]*run
}

type run struct {
	id        string
	websetID  string
	reused    bool
	createdAt time.Time
	cancel    context.CancelFunc

	mu      sync.RWMutex
	latest  Event
	nextSub int
	subs    map[int]chan Event
}

// NewService creates a Service.
func NewService(
	store cache.Store,
	quotaClient *quota.Client,
	reuser *Reuser,
	submitter *Submitter,
	engine *Engine,
	metrics *telemetry.Metrics,
	log logger.Logger,
) *Service {
	return &Service{
		store:     store,
		quota:     quotaClient,
		reuser:    reuser,
		submitter: submitter,
		engine:    engine,
		metrics:   metrics,
		logger:    log,
		runs:      make(map[string]*run),
	}
}

// Start begins a discovery for the request: validate, quota precheck,
// reuse or submit, then launch the background poll loop. The returned
// snapshot reflects the initial running state; progress is consumed via
// Get or Subscribe.
func (s *Service) Start(ctx context.Context, req *domain.SearchRequest) (*Snapshot, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cost := quota.Cost(req.TargetCount, req.Preview)
	if err := s.quota.Check(ctx, req.UserID, req.Query, cost); err != nil {
		if errors.Is(err, quota.ErrQuotaExceeded) {
			s.metrics.QuotaDenied.Inc()
		}
		return nil, fmt.Errorf("quota precheck: %w", err)
	}

	fp := cache.Fingerprint(req)

	websetID, reused := s.reuser.FindReusable(ctx, req)
	if reused {
		s.metrics.SearchesReused.Inc()
	} else {
		ws, err := s.submitter.Submit(ctx, req)
		if err != nil {
			return nil, err
		}
		websetID = ws.ID
		s.metrics.SearchesSubmitted.Inc()

		now := time.Now()
		entry := cache.Entry{
			WebsetID:    websetID,
			Fingerprint: fp,
			CreatedAt:   now,
			LastUsedAt:  now,
			Status:      cache.EntryActive,
		}
		if putErr := s.store.Put(ctx, entry); putErr != nil {
			// Reuse is lost for this fingerprint but the discovery
			// itself proceeds.
			s.logger.Warn("Fingerprint cache write failed", logger.Error(putErr))
		}
	}

	r := &run{
		id:        uuid.NewString(),
		websetID:  websetID,
		reused:    reused,
		createdAt: time.Now(),
		subs:      make(map[int]chan Event),
		latest: Event{
			State: domain.ProgressState{Status: domain.StatusRunning},
		},
	}

	// The poll loop outlives the HTTP request that started it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel

	s.mu.Lock()
	s.runs[r.id] = r
	s.mu.Unlock()

	go func() {
		defer cancel()
		s.engine.Run(runCtx, websetID, fp, req.TargetCount, r.emit)
		r.closeSubs()
	}()

	s.logger.Info("Discovery started",
		logger.String("discovery_id", r.id),
		logger.String("webset_id", websetID),
		logger.Bool("reused", reused),
		logger.Int("target", req.TargetCount),
	)

	return r.snapshot(), nil
}

// PollOnce runs a single merge tick directly against a remote job id,
// without a background loop. It backs the stand-alone pull path for
// callers that hold only the provider's job id; each call re-reads the
// remote state from scratch and is safe to repeat.
func (s *Service) PollOnce(ctx context.Context, websetID string, target int) (*Snapshot, error) {
	acc := NewAccumulator()

	state, err := s.engine.Tick(ctx, websetID, target, acc)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		WebsetID:  websetID,
		State:     state,
		Prospects: acc.Prospects(),
	}, nil
}

// Get returns the current snapshot of a discovery.
func (s *Service) Get(id string) (*Snapshot, error) {
	r, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return r.snapshot(), nil
}

// Subscribe attaches a push consumer to a discovery. The returned
// channel receives the latest event immediately, then every subsequent
// update, and is closed when the discovery reaches a terminal state.
// The returned func detaches the subscriber.
func (s *Service) Subscribe(id string) (<-chan Event, func(), error) {
	r, err := s.lookup(id)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan Event, subscriberBuffer)

	// All sends and closes on subscriber channels happen under r.mu,
	// so the replayed event cannot race a concurrent close.
	r.mu.Lock()
	terminal := r.latest.State.Status.Terminal()
	key := r.nextSub
	if !terminal {
		r.nextSub++
		r.subs[key] = ch
	}
	ch <- r.latest
	r.mu.Unlock()

	if terminal {
		close(ch)
		return ch, func() {}, nil
	}

	s.metrics.StreamClients.Inc()
	detach := func() {
		s.metrics.StreamClients.Dec()
		r.mu.Lock()
		if _, ok := r.subs[key]; ok {
			delete(r.subs, key)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, detach, nil
}

// Cancel stops a running discovery. Canceling an already terminal
// discovery is a no-op.
func (s *Service) Cancel(id string) error {
	r, err := s.lookup(id)
	if err != nil {
		return err
	}
	r.cancel()
	return nil
}

// Shutdown cancels every in-flight discovery.
func (s *Service) Shutdown() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.runs {
		r.cancel()
	}
}

func (s *Service) lookup(id string) (*run, error) {
	s.mu.RLock()
	r, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, nil
}

// emit records the event as the latest snapshot and fans it out to
// subscribers. A full subscriber channel drops this event; the next
// one carries the superset anyway.
func (r *run) emit(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.latest = ev
	for _, ch := range r.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// closeSubs closes all subscriber channels after the terminal event.
func (r *run) closeSubs() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, ch := range r.subs {
		delete(r.subs, key)
		close(ch)
	}
}

func (r *run) snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return &Snapshot{
		ID:        r.id,
		WebsetID:  r.websetID,
		Reused:    r.reused,
		State:     r.latest.State,
		Prospects: r.latest.Prospects,
		Message:   r.latest.Message,
		CreatedAt: r.createdAt,
	}
}
