package analysis

import "github.com/germanamz/relnotes/pkg/jira"

// EnrichedIssue is a parsed issue together with its analysis. JSON output
// flattens both into one object.
type EnrichedIssue struct {
	jira.ParsedIssue
	Analysis

	BrowsableURL string `json:"browsable_url"`
	AIEnriched   bool   `json:"ai_enriched"`
	Cached       bool   `json:"cached,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Kind returns the analysis kind for the issue type.
func (e EnrichedIssue) Kind() Kind { return KindFor(e.IssueType) }

// Publishable reports whether the issue was enriched with content worth a page.
func (e EnrichedIssue) Publishable() bool {
	return e.AIEnriched && HasMeaningfulContent(e.Kind(), e.Analysis)
}
