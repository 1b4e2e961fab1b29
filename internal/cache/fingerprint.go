// Package cache provides the fingerprint cache used to detect
// semantically duplicate search requests and reuse their remote jobs.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/jonesrussell/prospect-discovery/internal/domain"
)

// Fingerprint derives the reuse key for a search request. Two requests
// with the same entity type and the same criteria/enrichment sets in
// any order produce the same fingerprint. The free-text query is
// deliberately excluded: different phrasings of identical structured
// filters map to the same remote job.
func Fingerprint(req *domain.SearchRequest) string {
	criteria := make([]string, 0, len(req.Criteria))
	for _, c := range req.Criteria {
		criteria = append(criteria, string(c.Type)+":"+strings.ToLower(strings.TrimSpace(c.Value)))
	}
	sort.Strings(criteria)

	enrichments := make([]string, 0, len(req.Enrichments))
	for _, e := range req.Enrichments {
		enrichments = append(enrichments, strings.ToLower(strings.TrimSpace(e)))
	}
	sort.Strings(enrichments)

	return string(req.EntityType) + ":" + strings.Join(criteria, ",") + ":" + strings.Join(enrichments, ",")
}

// IdempotencyKey derives the client-supplied external id for job
// creation. Unlike the reuse fingerprint it includes the normalized
// query text and target count, so retried submissions of one concrete
// request collapse into one remote job without aliasing differently
// phrased requests.
func IdempotencyKey(req *domain.SearchRequest) string {
	parts := []string{
		Fingerprint(req),
		strings.ToLower(strings.TrimSpace(req.Query)),
		strconv.Itoa(req.TargetCount),
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
