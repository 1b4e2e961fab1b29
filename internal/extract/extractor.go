// Package extract converts raw webset item enrichments into typed
// prospect fields. The provider does not guarantee a stable
// identifier-to-field mapping, so extraction is a chain of heuristics
// applied in a fixed priority order; reordering the rules changes
// real-world output.
package extract

import (
	"strings"

	"github.com/jonesrussell/prospect-discovery/internal/domain"
	"github.com/jonesrussell/prospect-discovery/internal/websets"
)

// Prospect field names used as confidence-map keys.
const (
	FieldFullName    = "full_name"
	FieldJobTitle    = "job_title"
	FieldCompany     = "company"
	FieldEmail       = "email"
	FieldLinkedinURL = "linkedin_url"
	FieldPhone       = "phone"
	FieldLocation    = "location"
	FieldIndustry    = "industry"
	FieldCompanySize = "company_size"
	FieldWebsite     = "website"
)

// Confidence ranks. A field set by a higher-confidence rule is never
// overwritten by a lower-confidence one, here or during merge.
const (
	ConfidenceID    = 3
	ConfidenceLabel = 2
	ConfidenceShape = 1
)

// Extracted is a prospect plus the confidence rank each populated
// field was assigned with.
type Extracted struct {
	Prospect   domain.Prospect
	Confidence map[string]int
}

// maxCompanyNameLen bounds the shape heuristic that treats a short
// free string as a company name.
const maxCompanyNameLen = 50

// fieldKeywords maps identifier/label substrings to prospect fields,
// checked in this order. "name" comes last so "company_name" resolves
// to company.
var fieldKeywords = []struct {
	keyword string
	field   string
}{
	{"email", FieldEmail},
	{"linkedin", FieldLinkedinURL},
	{"phone", FieldPhone},
	{"job_title", FieldJobTitle},
	{"title", FieldJobTitle},
	{"position", FieldJobTitle},
	{"role", FieldJobTitle},
	{"company_size", FieldCompanySize},
	{"headcount", FieldCompanySize},
	{"company", FieldCompany},
	{"employer", FieldCompany},
	{"industry", FieldIndustry},
	{"location", FieldLocation},
	{"city", FieldLocation},
	{"country", FieldLocation},
	{"website", FieldWebsite},
	{"name", FieldFullName},
}

// titleKeywords flag a value as a job title.
var titleKeywords = []string{
	"director", "vp", "head of", "manager", "chief",
	"ceo", "cto", "cfo", "coo", "founder", "president", "lead",
}

// locationTokens flag a value as a location. Coincidental signals, kept
// deliberately small.
var locationTokens = []string{
	"united states", "usa", "united kingdom", "canada", "australia",
	"germany", "france", "india", "remote",
	"new york", "san francisco", "london", "toronto", "berlin",
	"boston", "austin", "seattle", "chicago", "los angeles",
}

// Extractor maps raw webset items onto the prospect schema.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract converts one raw item into a prospect. Extraction never
// fails: unresolved fields stay empty, and an item with no usable
// enrichments still yields an id and a display name.
func (e *Extractor) Extract(item *websets.Item) Extracted {
	out := Extracted{
		Prospect:   domain.Prospect{ID: item.ID},
		Confidence: make(map[string]int),
	}

	for _, enr := range item.Enrichments {
		if !enr.Usable() {
			continue
		}
		e.extractOne(&out, enr)
		recordRaw(&out.Prospect, enr)
	}

	if out.Prospect.FullName == "" {
		if item.Title != "" {
			out.Prospect.FullName = item.Title
		} else {
			out.Prospect.FullName = domain.FallbackName
		}
	}

	if out.Prospect.LinkedinURL == "" && strings.Contains(item.URL, "linkedin.com") {
		setField(&out, FieldLinkedinURL, item.URL, ConfidenceShape)
	}

	return out
}

// extractOne applies the rule chain to a single enrichment value:
// explicit identifier match, then declared label match, then value
// shape heuristics. First match wins for each target field.
func (e *Extractor) extractOne(out *Extracted, enr websets.Enrichment) {
	value := strings.TrimSpace(enr.Result)
	if value == "" {
		return
	}

	if field, ok := matchKeywords(enr.EnrichmentID); ok {
		setField(out, field, value, ConfidenceID)
		return
	}

	if field, ok := matchKeywords(enr.Label); ok {
		setField(out, field, value, ConfidenceLabel)
		return
	}

	applyShapeHeuristics(out, value)
}

// matchKeywords resolves an identifier or label to a prospect field.
func matchKeywords(key string) (string, bool) {
	key = strings.ToLower(key)
	if key == "" {
		return "", false
	}
	for _, kw := range fieldKeywords {
		if strings.Contains(key, kw.keyword) {
			return kw.field, true
		}
	}
	return "", false
}

// applyShapeHeuristics guesses a field from the value's shape alone.
// Rule order is load-bearing.
func applyShapeHeuristics(out *Extracted, value string) {
	lower := strings.ToLower(value)

	switch {
	case strings.Contains(value, "@") && !strings.Contains(value, " "):
		setField(out, FieldEmail, value, ConfidenceShape)

	case strings.Contains(lower, "linkedin.com"):
		setField(out, FieldLinkedinURL, value, ConfidenceShape)
		if out.Prospect.FullName == "" {
			if name := NameFromLinkedinURL(value); name != "" {
				setField(out, FieldFullName, name, ConfidenceShape)
			}
		}

	case looksLikePhone(value):
		setField(out, FieldPhone, value, ConfidenceShape)

	case isCompanyCandidate(value, lower):
		setField(out, FieldCompany, value, ConfidenceShape)

	case containsToken(lower, locationTokens):
		setField(out, FieldLocation, value, ConfidenceShape)

	case containsToken(lower, titleKeywords):
		setField(out, FieldJobTitle, value, ConfidenceShape)
	}
}

// isCompanyCandidate treats a short, URL-free, email-free string as a
// company name. The company rule runs before the location and title
// rules, so a short value matching several shapes resolves as company.
func isCompanyCandidate(value, lower string) bool {
	if len(value) >= maxCompanyNameLen {
		return false
	}
	if strings.Contains(value, "@") || strings.Contains(lower, "http") || strings.Contains(lower, "www.") {
		return false
	}
	return true
}

func containsToken(lower string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// looksLikePhone reports whether a value is mostly dialable characters
// with enough digits to be a phone number.
func looksLikePhone(value string) bool {
	digits := 0
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == '-' || r == '(' || r == ')' || r == ' ' || r == '.':
		default:
			return false
		}
	}
	return digits >= 7 && digits <= 15
}

// NameFromLinkedinURL derives a display name from a profile URL slug:
// hyphens become spaces, words are title-cased, trailing digit runs
// are stripped.
func NameFromLinkedinURL(rawURL string) string {
	idx := strings.Index(rawURL, "/in/")
	if idx < 0 {
		return ""
	}

	slug := rawURL[idx+len("/in/"):]
	if end := strings.IndexAny(slug, "/?#"); end >= 0 {
		slug = slug[:end]
	}
	if slug == "" {
		return ""
	}

	words := strings.Split(slug, "-")
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimRight(w, "0123456789")
		if w == "" {
			continue
		}
		out = append(out, strings.ToUpper(w[:1])+w[1:])
	}
	return strings.Join(out, " ")
}

// setField assigns a value unless the field already holds one of equal
// or higher confidence.
func setField(out *Extracted, field, value string, confidence int) {
	if current, ok := out.Confidence[field]; ok && current >= confidence {
		return
	}

	p := &out.Prospect
	switch field {
	case FieldFullName:
		p.FullName = value
	case FieldJobTitle:
		p.JobTitle = value
	case FieldCompany:
		p.Company = value
	case FieldEmail:
		p.Email = value
	case FieldLinkedinURL:
		p.LinkedinURL = value
	case FieldPhone:
		p.Phone = value
	case FieldLocation:
		p.Location = value
	case FieldIndustry:
		p.Industry = value
	case FieldCompanySize:
		p.CompanySize = value
	case FieldWebsite:
		p.Website = value
	default:
		return
	}

	out.Confidence[field] = confidence
}

// recordRaw keeps the original enrichment value for audit and display.
func recordRaw(p *domain.Prospect, enr websets.Enrichment) {
	key := enr.EnrichmentID
	if key == "" {
		key = enr.Label
	}
	if key == "" {
		return
	}

	if p.RawEnrichments == nil {
		p.RawEnrichments = make(map[string]string)
	}
	p.RawEnrichments[key] = enr.Result
}
