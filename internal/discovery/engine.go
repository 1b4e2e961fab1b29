package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonesrussell/prospect-discovery/internal/cache"
	"github.com/jonesrussell/prospect-discovery/internal/domain"
	"github.com/jonesrussell/prospect-discovery/internal/extract"
	"github.com/jonesrussell/prospect-discovery/internal/logger"
	"github.com/jonesrussell/prospect-discovery/internal/telemetry"
	"github.com/jonesrussell/prospect-discovery/internal/websets"
)

// Poll loop defaults. The tick ceiling bounds a discovery to roughly
// five minutes at the default interval.
const (
	DefaultPollInterval        = 3 * time.Second
	DefaultMaxTicks            = 100
	DefaultMaxConsecutiveFails = 3
	DefaultPageLimit           = 100
)

// Clock abstracts time so tests can drive the poll loop without real
// sleeps.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until the context is done, returning the
	// context error in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// EngineConfig bounds the poll loop.
type EngineConfig struct {
	PollInterval        time.Duration
	MaxTicks            int
	MaxConsecutiveFails int
	PageLimit           int
}

// Event is one progress update emitted by the poll loop. The prospect
// slice carries the full accumulated set in first-seen order.
type Event struct {
	State     domain.ProgressState `json:"state"`
	Prospects []domain.Prospect    `json:"prospects"`
	NewCount  int                  `json:"new_count"`
	Message   string               `json:"message,omitempty"`
}

// Engine runs the poll-and-merge loop that turns a slow remote search
// job into an incremental prospect stream.
type Engine struct {
	api       websets.API
	extractor *extract.Extractor
	store     cache.Store
	metrics   *telemetry.Metrics
	logger    logger.Logger
	tracer    trace.Tracer
	cfg       EngineConfig
	clock     Clock
}

// NewEngine creates an Engine.
func NewEngine(
	api websets.API,
	extractor *extract.Extractor,
	store cache.Store,
	metrics *telemetry.Metrics,
	log logger.Logger,
	tracer trace.Tracer,
	cfg EngineConfig,
) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxTicks <= 0 {
		cfg.MaxTicks = DefaultMaxTicks
	}
	if cfg.MaxConsecutiveFails <= 0 {
		cfg.MaxConsecutiveFails = DefaultMaxConsecutiveFails
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = DefaultPageLimit
	}

	return &Engine{
		api:       api,
		extractor: extractor,
		store:     store,
		metrics:   metrics,
		logger:    log,
		tracer:    tracer,
		cfg:       cfg,
		clock:     realClock{},
	}
}

// SetClock replaces the engine clock, for tests.
func (e *Engine) SetClock(c Clock) { e.clock = c }

// Tick performs one poll-and-merge pass: fetch remote status, page
// through all items, merge them into the accumulator, and return the
// recomputed progress. Safe to call outside a Run loop for one-shot
// status endpoints.
func (e *Engine) Tick(ctx context.Context, websetID string, target int, acc *Accumulator) (domain.ProgressState, error) {
	ctx, span := e.tracer.Start(ctx, "discovery.tick",
		trace.WithAttributes(attribute.String("webset.id", websetID)),
	)
	defer span.End()

	started := e.clock.Now()

	ws, err := e.api.GetWebset(ctx, websetID)
	if err != nil {
		e.metrics.PollTicks.WithLabelValues("error").Inc()
		return domain.ProgressState{}, fmt.Errorf("poll webset: %w", err)
	}

	if err := e.mergeItems(ctx, websetID, acc); err != nil {
		e.metrics.PollTicks.WithLabelValues("error").Inc()
		return domain.ProgressState{}, err
	}

	e.metrics.PollTicks.WithLabelValues("ok").Inc()
	e.metrics.TickDuration.Observe(e.clock.Now().Sub(started).Seconds())

	state := domain.ProgressState{
		Found:             acc.Len(),
		Analyzed:          ws.Progress().Analyzed,
		CompletionPercent: domain.CompletionPercent(acc.Len(), target),
		Status:            statusFromRemote(ws.Status),
	}
	span.SetAttributes(
		attribute.Int("prospects.found", state.Found),
		attribute.String("webset.status", ws.Status),
	)
	return state, nil
}

// mergeItems pages through the webset's items and folds each one into
// the accumulator.
func (e *Engine) mergeItems(ctx context.Context, websetID string, acc *Accumulator) error {
	cursor := ""
	for {
		page, err := e.api.ListItems(ctx, websetID, e.cfg.PageLimit, cursor)
		if err != nil {
			return fmt.Errorf("list items: %w", err)
		}

		for i := range page.Data {
			acc.Merge(e.extractor.Extract(&page.Data[i]))
		}

		if !page.HasMore || page.NextCursor == "" {
			return nil
		}
		cursor = page.NextCursor
	}
}

// Run drives the poll loop to a terminal state, emitting an Event after
// every successful tick and a final terminal Event. Terminal causes are
// checked in priority order: caller cancellation, target reached,
// remote success, remote failure, tick ceiling. The fingerprint's cache
// entry is updated on terminal transitions so later requests see the
// job's fate.
func (e *Engine) Run(ctx context.Context, websetID, fingerprint string, target int, emit func(Event)) domain.Status {
	ctx, span := e.tracer.Start(ctx, "discovery.run",
		trace.WithAttributes(
			attribute.String("webset.id", websetID),
			attribute.Int("target.count", target),
		),
	)
	defer span.End()

	e.metrics.ActiveDiscoveries.Inc()
	defer e.metrics.ActiveDiscoveries.Dec()

	acc := NewAccumulator()
	consecutiveFails := 0
	analyzed := 0

	for tick := 1; ; tick++ {
		prevLen := acc.Len()

		state, err := e.Tick(ctx, websetID, target, acc)
		if err != nil {
			if ctx.Err() != nil {
				return e.finishCanceled(ctx, websetID, fingerprint, acc, target, analyzed, emit)
			}

			consecutiveFails++
			e.logger.Warn("Poll tick failed",
				logger.String("webset_id", websetID),
				logger.Int("tick", tick),
				logger.Int("consecutive_fails", consecutiveFails),
				logger.Error(err),
			)

			if !websets.IsTransient(err) || consecutiveFails >= e.cfg.MaxConsecutiveFails {
				return e.finish(ctx, websetID, fingerprint, acc, target, analyzed, domain.StatusFailed,
					fmt.Sprintf("discovery failed: %v", err), emit)
			}
		} else {
			consecutiveFails = 0
			// The provider's analyzed counter can vanish from terminal
			// responses; keep the highest value seen.
			if state.Analyzed > analyzed {
				analyzed = state.Analyzed
			}
			emit(Event{
				State:     state,
				Prospects: acc.Prospects(),
				NewCount:  acc.Len() - prevLen,
			})

			switch {
			case target > 0 && acc.Len() >= target:
				// Enough prospects; stop paying for further analysis.
				e.cancelRemote(ctx, websetID)
				return e.finish(ctx, websetID, fingerprint, acc, target, analyzed, domain.StatusCompleted,
					"target count reached", emit)

			case state.Status == domain.StatusCompleted:
				return e.finish(ctx, websetID, fingerprint, acc, target, analyzed, domain.StatusCompleted,
					"search completed", emit)

			case state.Status == domain.StatusFailed, state.Status == domain.StatusCanceled:
				return e.finish(ctx, websetID, fingerprint, acc, target, analyzed, state.Status,
					"remote search ended without completing", emit)
			}
		}

		if tick >= e.cfg.MaxTicks {
			e.cancelRemote(ctx, websetID)
			return e.finish(ctx, websetID, fingerprint, acc, target, analyzed, domain.StatusTimedOut,
				"discovery timed out; try a smaller target count or fewer criteria", emit)
		}

		if err := e.clock.Sleep(ctx, e.cfg.PollInterval); err != nil {
			return e.finishCanceled(ctx, websetID, fingerprint, acc, target, analyzed, emit)
		}
	}
}

// finishCanceled handles caller cancellation: best-effort remote cancel
// so the provider stops spending, then the canceled terminal event.
func (e *Engine) finishCanceled(ctx context.Context, websetID, fingerprint string, acc *Accumulator, target, analyzed int, emit func(Event)) domain.Status {
	// The request context is already dead; give the cancel call its own
	// short deadline.
	cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	e.cancelRemote(cancelCtx, websetID)

	return e.finish(cancelCtx, websetID, fingerprint, acc, target, analyzed, domain.StatusCanceled,
		"discovery canceled", emit)
}

// finish records the terminal transition and emits the final event.
func (e *Engine) finish(ctx context.Context, websetID, fingerprint string, acc *Accumulator, target, analyzed int, status domain.Status, message string, emit func(Event)) domain.Status {
	e.metrics.TerminalStates.WithLabelValues(string(status)).Inc()
	e.metrics.ProspectsFound.Observe(float64(acc.Len()))

	entryStatus := cache.EntryFailed
	if status == domain.StatusCompleted {
		entryStatus = cache.EntryCompleted
	}
	if err := e.store.UpdateStatus(ctx, fingerprint, entryStatus); err != nil {
		e.logger.Warn("Fingerprint cache status update failed",
			logger.String("fingerprint", fingerprint),
			logger.Error(err),
		)
	}

	e.logger.Info("Discovery reached terminal state",
		logger.String("webset_id", websetID),
		logger.String("status", string(status)),
		logger.Int("prospects", acc.Len()),
	)

	emit(Event{
		State: domain.ProgressState{
			Found:             acc.Len(),
			Analyzed:          analyzed,
			CompletionPercent: domain.CompletionPercent(acc.Len(), target),
			Status:            status,
		},
		Prospects: acc.Prospects(),
		Message:   message,
	})
	return status
}

// cancelRemote asks the provider to stop a job; failures are logged
// and swallowed since the job dies on its own eventually.
func (e *Engine) cancelRemote(ctx context.Context, websetID string) {
	if err := e.api.CancelWebset(ctx, websetID); err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Warn("Remote cancel failed",
			logger.String("webset_id", websetID),
			logger.Error(err),
		)
	}
}

// statusFromRemote maps a provider status onto the local state machine.
func statusFromRemote(remote string) domain.Status {
	switch {
	case websets.IsRunning(remote):
		return domain.StatusRunning
	case websets.IsTerminalSuccess(remote):
		return domain.StatusCompleted
	case remote == websets.StatusCanceled:
		return domain.StatusCanceled
	default:
		return domain.StatusFailed
	}
}
