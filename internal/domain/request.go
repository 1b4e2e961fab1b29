// Package domain defines the core types for prospect discovery:
// search requests, discovered prospects, and discovery progress.
package domain

import "errors"

// ErrInvalidRequest is returned when a search request fails validation
// before any remote call is made.
var ErrInvalidRequest = errors.New("invalid search request")

// EntityType identifies the kind of entity a discovery searches for.
type EntityType string

// Supported entity types.
const (
	EntityPerson  EntityType = "person"
	EntityCompany EntityType = "company"
)

// CriterionType classifies a structured search criterion.
type CriterionType string

// Supported criterion types, in descending match-priority order.
const (
	CriterionJobTitle    CriterionType = "job_title"
	CriterionCompanyType CriterionType = "company_type"
	CriterionIndustry    CriterionType = "industry"
	CriterionTechnology  CriterionType = "technology"
	CriterionLocation    CriterionType = "location"
	CriterionActivity    CriterionType = "activity"
	CriterionOther       CriterionType = "other"
)

// Criterion is one structured filter within a search request.
type Criterion struct {
	Label string        `json:"label"`
	Value string        `json:"value"`
	Type  CriterionType `json:"type"`
}

// SearchRequest describes a population of prospects to discover.
// It is an immutable value: it is only ever read, to derive cache keys
// and build the remote job payload.
type SearchRequest struct {
	Query       string      `json:"query"`
	Criteria    []Criterion `json:"criteria"`
	EntityType  EntityType  `json:"entity_type"`
	Enrichments []string    `json:"enrichments"`
	TargetCount int         `json:"target_count"`
	UserID      string      `json:"user_id,omitempty"`
	Preview     bool        `json:"preview,omitempty"`
}

// Validate checks the request before any remote call.
func (r *SearchRequest) Validate() error {
	if r.Query == "" {
		return errors.Join(ErrInvalidRequest, errors.New("query is required"))
	}
	if r.TargetCount <= 0 {
		return errors.Join(ErrInvalidRequest, errors.New("target count must be positive"))
	}
	if r.EntityType != EntityPerson && r.EntityType != EntityCompany {
		return errors.Join(ErrInvalidRequest, errors.New("entity type must be person or company"))
	}
	return nil
}
