package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jonesrussell/prospect-discovery/internal/cache"
	"github.com/jonesrussell/prospect-discovery/internal/domain"
	"github.com/jonesrussell/prospect-discovery/internal/logger"
	"github.com/jonesrussell/prospect-discovery/internal/websets"
)

// Provider-enforced payload ceilings.
const (
	DefaultMaxCriteria    = 5
	DefaultMaxEnrichments = 10
	DefaultMinCount       = 1
	DefaultMaxCount       = 1000
)

// criterionPriority weights criteria by type for the provider's
// five-criterion ceiling. Job titles and company types verify best.
var criterionPriority = map[domain.CriterionType]int{
	domain.CriterionJobTitle:    100,
	domain.CriterionCompanyType: 90,
	domain.CriterionIndustry:    80,
	domain.CriterionTechnology:  70,
	domain.CriterionLocation:    60,
	domain.CriterionActivity:    50,
	domain.CriterionOther:       10,
}

// criterionSuccessRate estimates the expected match rate per criterion
// type, passed through to the provider.
var criterionSuccessRate = map[domain.CriterionType]int{
	domain.CriterionJobTitle:    85,
	domain.CriterionCompanyType: 80,
	domain.CriterionIndustry:    75,
	domain.CriterionTechnology:  65,
	domain.CriterionLocation:    70,
	domain.CriterionActivity:    55,
	domain.CriterionOther:       40,
}

// SubmitterConfig bounds the remote payload.
type SubmitterConfig struct {
	MaxCriteria    int
	MaxEnrichments int
	MinCount       int
	MaxCount       int
}

// Submitter builds and submits remote search jobs. It never retries a
// submission itself: the idempotency key already collapses duplicate
// jobs server-side, and auto-retry on ambiguous failures would risk
// spend beyond that guarantee.
type Submitter struct {
	api    websets.API
	cfg    SubmitterConfig
	logger logger.Logger
}

// NewSubmitter creates a Submitter.
func NewSubmitter(api websets.API, cfg SubmitterConfig, log logger.Logger) *Submitter {
	if cfg.MaxCriteria <= 0 {
		cfg.MaxCriteria = DefaultMaxCriteria
	}
	if cfg.MaxEnrichments <= 0 {
		cfg.MaxEnrichments = DefaultMaxEnrichments
	}
	if cfg.MinCount <= 0 {
		cfg.MinCount = DefaultMinCount
	}
	if cfg.MaxCount <= 0 {
		cfg.MaxCount = DefaultMaxCount
	}

	return &Submitter{api: api, cfg: cfg, logger: log}
}

// Submit creates a remote search job for the request and returns the
// provider's job handle. Missing credentials fail before any network
// call; provider rejections are surfaced verbatim.
func (s *Submitter) Submit(ctx context.Context, req *domain.SearchRequest) (*websets.Webset, error) {
	if err := s.api.CheckConfig(); err != nil {
		return nil, err
	}

	payload := s.BuildPayload(req)

	ws, err := s.api.CreateWebset(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("submit search: %w", err)
	}

	s.logger.Info("Remote search job created",
		logger.String("webset_id", ws.ID),
		logger.String("entity_type", string(req.EntityType)),
		logger.Int("count", payload.Search.Count),
		logger.Int("criteria", len(payload.Search.Criteria)),
		logger.Int("enrichments", len(payload.Enrichments)),
	)

	return ws, nil
}

// BuildPayload converts a search request into the provider payload:
// count clamped to the provider's range, criteria capped at the
// highest-priority five, enrichments deduplicated and capped. Criteria
// beyond the cap are silently dropped; callers relying on more than
// five filters must know this is lossy.
func (s *Submitter) BuildPayload(req *domain.SearchRequest) websets.CreateRequest {
	return websets.CreateRequest{
		Search: websets.SearchSpec{
			Query:    req.Query,
			Count:    clamp(req.TargetCount, s.cfg.MinCount, s.cfg.MaxCount),
			Entity:   websets.EntitySpec{Type: string(req.EntityType)},
			Criteria: s.selectCriteria(req.Criteria),
		},
		Enrichments: s.selectEnrichments(req.Enrichments),
		ExternalID:  cache.IdempotencyKey(req),
	}
}

// selectCriteria keeps the top criteria by type priority, in
// descending priority order. The sort is stable so equal-priority
// criteria keep their request order.
func (s *Submitter) selectCriteria(criteria []domain.Criterion) []websets.CriterionSpec {
	ordered := make([]domain.Criterion, len(criteria))
	copy(ordered, criteria)
	sort.SliceStable(ordered, func(i, j int) bool {
		return criterionPriority[ordered[i].Type] > criterionPriority[ordered[j].Type]
	})

	if len(ordered) > s.cfg.MaxCriteria {
		dropped := len(ordered) - s.cfg.MaxCriteria
		s.logger.Warn("Dropping low-priority criteria over provider ceiling",
			logger.Int("kept", s.cfg.MaxCriteria),
			logger.Int("dropped", dropped),
		)
		ordered = ordered[:s.cfg.MaxCriteria]
	}

	specs := make([]websets.CriterionSpec, 0, len(ordered))
	for _, c := range ordered {
		description := c.Label
		if description == "" {
			description = c.Value
		}
		specs = append(specs, websets.CriterionSpec{
			Description: description,
			SuccessRate: criterionSuccessRate[c.Type],
		})
	}
	return specs
}

// selectEnrichments deduplicates enrichment descriptions
// case-insensitively and caps the list. Each enrichment adds cost and
// latency to every discovered item.
func (s *Submitter) selectEnrichments(enrichments []string) []websets.EnrichmentSpec {
	seen := make(map[string]struct{}, len(enrichments))
	specs := make([]websets.EnrichmentSpec, 0, len(enrichments))

	for _, e := range enrichments {
		key := strings.ToLower(strings.TrimSpace(e))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		specs = append(specs, websets.EnrichmentSpec{Description: e, Format: "text"})
		if len(specs) == s.cfg.MaxEnrichments {
			break
		}
	}
	return specs
}

func clamp(v, minVal, maxVal int) int {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
