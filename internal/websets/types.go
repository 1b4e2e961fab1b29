// Package websets implements the HTTP client for the remote webset
// search provider. A webset is an asynchronous provider-hosted search
// job that discovers entities matching criteria over time.
package websets

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Remote webset statuses as reported by the provider.
const (
	StatusRunning  = "running"
	StatusIdle     = "idle"
	StatusComplete = "completed"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
	StatusPaused   = "paused"
)

// IsRunning reports whether the webset is still processing.
func IsRunning(status string) bool {
	return status == StatusRunning || status == StatusPaused
}

// IsTerminalSuccess reports whether the webset finished successfully.
// The provider reports a drained webset as "idle".
func IsTerminalSuccess(status string) bool {
	return status == StatusIdle || status == StatusComplete
}

// IsTerminalFailure reports whether the webset ended without results.
func IsTerminalFailure(status string) bool {
	return status == StatusFailed || status == StatusCanceled
}

// CreateRequest is the payload for creating a webset.
type CreateRequest struct {
	Search      SearchSpec       `json:"search"`
	Enrichments []EnrichmentSpec `json:"enrichments,omitempty"`
	// ExternalID is a client-supplied idempotency key; the provider
	// collapses duplicate submissions with the same key into one job.
	ExternalID string `json:"externalId,omitempty"`
}

// SearchSpec describes the search portion of a webset.
type SearchSpec struct {
	Query    string          `json:"query"`
	Count    int             `json:"count"`
	Entity   EntitySpec      `json:"entity"`
	Criteria []CriterionSpec `json:"criteria,omitempty"`
}

// EntitySpec identifies the entity type to discover.
type EntitySpec struct {
	Type string `json:"type"`
}

// CriterionSpec is one verification criterion. The provider accepts at
// most five per search.
type CriterionSpec struct {
	Description string `json:"description"`
	// SuccessRate is the expected match rate estimate in percent.
	SuccessRate int `json:"successRate,omitempty"`
}

// EnrichmentSpec requests an extraction task on every discovered item.
type EnrichmentSpec struct {
	Description string `json:"description"`
	Format      string `json:"format,omitempty"`
}

// Webset is the provider's view of a search job.
type Webset struct {
	ID       string        `json:"id"`
	Status   string        `json:"status"`
	Searches []SearchState `json:"searches,omitempty"`
}

// SearchState carries per-search progress.
type SearchState struct {
	Progress Progress `json:"progress"`
}

// Progress is the provider's found/analyzed counters for a search.
type Progress struct {
	Found      int     `json:"found"`
	Analyzed   int     `json:"analyzed"`
	Completion float64 `json:"completion"`
}

// Progress returns the aggregate progress across all searches.
func (w *Webset) Progress() Progress {
	var total Progress
	for _, s := range w.Searches {
		total.Found += s.Progress.Found
		total.Analyzed += s.Progress.Analyzed
	}
	return total
}

// Enrichment statuses on items.
const (
	EnrichmentPending   = "pending"
	EnrichmentRunning   = "running"
	EnrichmentCompleted = "completed"
	EnrichmentCanceled  = "canceled"
	EnrichmentFailed    = "failed"
)

// Enrichment is the normalized form of one enrichment value on an item.
// The provider returns enrichments either as an ordered array of
// {enrichmentId, status, result} objects or as a label-keyed map; both
// shapes decode into this representation so the extractor never
// branches on payload shape.
type Enrichment struct {
	EnrichmentID string
	Label        string
	Status       string
	Result       string
}

// Usable reports whether the enrichment carries a value worth
// extracting from.
func (e Enrichment) Usable() bool {
	if e.Status != EnrichmentCompleted {
		return false
	}
	return e.Result != "" && e.Result != "null" && e.Result != "None"
}

// rawEnrichment matches both wire shapes of a single enrichment entry.
type rawEnrichment struct {
	EnrichmentID string          `json:"enrichmentId"`
	Status       string          `json:"status"`
	Result       json.RawMessage `json:"result"`
}

func (r rawEnrichment) normalize(label string) Enrichment {
	return Enrichment{
		EnrichmentID: r.EnrichmentID,
		Label:        label,
		Status:       r.Status,
		Result:       decodeResult(r.Result),
	}
}

// decodeResult flattens a scalar or single-element-array result into a
// string. Array results use their first element as the representative
// value.
func decodeResult(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil {
		if len(arr) == 0 {
			return ""
		}
		return arr[0]
	}

	var v any
	if err := json.Unmarshal(raw, &v); err == nil && v != nil {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// EnrichmentList decodes the two wire shapes the provider uses for an
// item's enrichments.
type EnrichmentList []Enrichment

// UnmarshalJSON accepts either an ordered array of enrichment objects
// or a map of label -> enrichment object.
func (l *EnrichmentList) UnmarshalJSON(data []byte) error {
	var arr []rawEnrichment
	if err := json.Unmarshal(data, &arr); err == nil {
		out := make(EnrichmentList, 0, len(arr))
		for _, r := range arr {
			out = append(out, r.normalize(""))
		}
		*l = out
		return nil
	}

	var m map[string]rawEnrichment
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode enrichments: %w", err)
	}

	// Map iteration order is randomized; sort by label for a stable
	// rule-application order.
	labels := make([]string, 0, len(m))
	for label := range m {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out := make(EnrichmentList, 0, len(m))
	for _, label := range labels {
		out = append(out, m[label].normalize(label))
	}
	*l = out
	return nil
}

// Item is one discovered entity within a webset.
type Item struct {
	ID          string         `json:"id"`
	Title       string         `json:"title,omitempty"`
	URL         string         `json:"url,omitempty"`
	Enrichments EnrichmentList `json:"enrichments,omitempty"`
}

// ItemPage is one page of webset items.
type ItemPage struct {
	Data       []Item `json:"data"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor,omitempty"`
}
