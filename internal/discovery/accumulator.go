// Package discovery orchestrates prospect discovery: submitting remote
// search jobs, reusing cached ones, and converting slow remote jobs
// into an incremental prospect stream.
package discovery

import (
	"github.com/jonesrussell/prospect-discovery/internal/domain"
	"github.com/jonesrussell/prospect-discovery/internal/extract"
)

// Accumulator merges extracted prospects by id across poll ticks. The
// accumulated set only grows or refines; prospects are never removed
// and a populated field is never replaced by an emptier or
// lower-confidence value. Each poll loop owns its own accumulator, so
// no locking is needed.
type Accumulator struct {
	order []string
	byID  map[string]*tracked
}

type tracked struct {
	prospect   domain.Prospect
	confidence map[string]int
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{byID: make(map[string]*tracked)}
}

// Merge folds one extracted prospect into the set. Returns true when
// the prospect id was not seen before.
func (a *Accumulator) Merge(ex extract.Extracted) bool {
	existing, ok := a.byID[ex.Prospect.ID]
	if !ok {
		conf := ex.Confidence
		if conf == nil {
			conf = make(map[string]int)
		}
		a.byID[ex.Prospect.ID] = &tracked{
			prospect:   ex.Prospect,
			confidence: conf,
		}
		a.order = append(a.order, ex.Prospect.ID)
		return true
	}

	existing.refine(ex)
	return false
}

// refine fills empty fields and upgrades lower-confidence values from
// a later extraction of the same item.
func (t *tracked) refine(ex extract.Extracted) {
	p := &t.prospect
	n := &ex.Prospect

	t.refineField(extract.FieldJobTitle, &p.JobTitle, n.JobTitle, ex.Confidence)
	t.refineField(extract.FieldCompany, &p.Company, n.Company, ex.Confidence)
	t.refineField(extract.FieldEmail, &p.Email, n.Email, ex.Confidence)
	t.refineField(extract.FieldLinkedinURL, &p.LinkedinURL, n.LinkedinURL, ex.Confidence)
	t.refineField(extract.FieldPhone, &p.Phone, n.Phone, ex.Confidence)
	t.refineField(extract.FieldLocation, &p.Location, n.Location, ex.Confidence)
	t.refineField(extract.FieldIndustry, &p.Industry, n.Industry, ex.Confidence)
	t.refineField(extract.FieldCompanySize, &p.CompanySize, n.CompanySize, ex.Confidence)
	t.refineField(extract.FieldWebsite, &p.Website, n.Website, ex.Confidence)

	// The placeholder identity counts as unset.
	if n.FullName != "" && n.FullName != domain.FallbackName {
		if p.FullName == "" || p.FullName == domain.FallbackName {
			p.FullName = n.FullName
			t.confidence[extract.FieldFullName] = ex.Confidence[extract.FieldFullName]
		} else {
			t.refineField(extract.FieldFullName, &p.FullName, n.FullName, ex.Confidence)
		}
	}

	for key, val := range n.RawEnrichments {
		if p.RawEnrichments == nil {
			p.RawEnrichments = make(map[string]string)
		}
		p.RawEnrichments[key] = val
	}
}

func (t *tracked) refineField(field string, current *string, incoming string, confidence map[string]int) {
	if incoming == "" {
		return
	}

	newConf := confidence[field]
	if *current == "" || newConf > t.confidence[field] {
		*current = incoming
		t.confidence[field] = newConf
	}
}

// Len returns the accumulated prospect count.
func (a *Accumulator) Len() int {
	return len(a.byID)
}

// Prospects returns the accumulated set in first-seen order.
func (a *Accumulator) Prospects() []domain.Prospect {
	out := make([]domain.Prospect, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.byID[id].prospect)
	}
	return out
}

// Get returns one accumulated prospect by id.
func (a *Accumulator) Get(id string) (domain.Prospect, bool) {
	if t, ok := a.byID[id]; ok {
		return t.prospect, true
	}
	return domain.Prospect{}, false
}
