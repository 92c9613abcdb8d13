// Package jobs defines the posting record model shared across pipeline stages.
package jobs

// Blocked is the resolved-URL sentinel stored when the fetch succeeded but no
// destination could be determined, which is the usual outcome when anti-bot
// protection intercepts the request. It is distinct from a nil ResolvedURL,
// which means the attempt failed at the transport level (or was never made).
const Blocked = "BLOCKED"

// Posting is one job posting flowing through the pipeline. ID is a stable row
// identifier assigned at ingest; retry passes merge results back by ID, never
// by position.
type Posting struct {
	ID             int      `json:"id"`
	SourceID       string   `json:"source_id,omitempty"`
	Title          string   `json:"title,omitempty"`
	Company        string   `json:"company,omitempty"`
	Location       string   `json:"location,omitempty"`
	Summary        string   `json:"summary,omitempty"`
	SalaryMin      float64  `json:"salary_min,omitempty"`
	SalaryMax      float64  `json:"salary_max,omitempty"`
	SalaryCurrency string   `json:"salary_currency,omitempty"`
	Created        string   `json:"created,omitempty"`
	Category       string   `json:"category,omitempty"`
	ContractType   string   `json:"contract_type,omitempty"`
	ContractTime   string   `json:"contract_time,omitempty"`
	TrackingURL    string   `json:"tracking_url"`
	ResolvedURL    *string  `json:"resolved_url,omitempty"`
	Host           string   `json:"host,omitempty"`
	Description    *string  `json:"description,omitempty"`
}

// ResolveFailed reports whether the posting is still in a failure state for
// the resolution stage. Both transport failures (nil) and the Blocked
// sentinel are retry-eligible.
func (p Posting) ResolveFailed() bool {
	return p.ResolvedURL == nil || *p.ResolvedURL == Blocked
}

// DescribeFailed reports whether the posting is still in a failure state for
// the description stage. nil means the fetch never produced a result; an
// empty string means the page was fetched but nothing could be extracted.
func (p Posting) DescribeFailed() bool {
	return p.Description == nil || *p.Description == ""
}

// CountFailures returns how many postings fail the given predicate.
func CountFailures(postings []Posting, failed func(Posting) bool) int {
	n := 0
	for _, p := range postings {
		if failed(p) {
			n++
		}
	}
	return n
}
