package domain

// Prospect is the normalized representation of one discovered entity.
// ID is stable across polls for the same remote item and is the merge
// key; all other fields are refinable on later polls.
type Prospect struct {
	ID          string `json:"id"`
	FullName    string `json:"full_name"`
	JobTitle    string `json:"job_title,omitempty"`
	Company     string `json:"company,omitempty"`
	Email       string `json:"email,omitempty"`
	LinkedinURL string `json:"linkedin_url,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Location    string `json:"location,omitempty"`
	Industry    string `json:"industry,omitempty"`
	CompanySize string `json:"company_size,omitempty"`
	Website     string `json:"website,omitempty"`

	// RawEnrichments keeps the original enrichment values for audit
	// and display.
	RawEnrichments map[string]string `json:"raw_enrichments,omitempty"`
}

// FallbackName is used when no identity can be derived from an item,
// so downstream rendering never shows a blank name.
const FallbackName = "Profile Found"
