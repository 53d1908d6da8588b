package engine

import (
	"slices"
	"sync"
	"time"

	"github.com/germanamz/relnotes/pkg/analysis"
	"github.com/germanamz/relnotes/pkg/history"
)

// Report summarizes one run.
type Report struct {
	RunID          string                   `json:"runId"`
	Status         string                   `json:"status"`
	Project        string                   `json:"project"`
	FixVersion     string                   `json:"fixVersion"`
	IssueType      string                   `json:"issueType"`
	ProcessingTime time.Duration            `json:"-"`
	Issues         []analysis.EnrichedIssue `json:"issues"`
	Enriched       int                      `json:"enriched"`
	Failed         int                      `json:"failed"`
	Details        []string                 `json:"details"`
	Warnings       []string                 `json:"warnings"`
	Files          []string                 `json:"files"`
	// Notes lists the distinct parameter adjustments made for the model.
	Notes []string `json:"notes"`
}

// outcome converts the report into what the history store records.
func (r Report) outcome(err error) history.Outcome {
	o := history.Outcome{
		Status:   r.Status,
		Issues:   len(r.Issues),
		Enriched: r.Enriched,
		Failed:   r.Failed,
		Details:  slices.Concat(r.Details, r.Warnings),
	}
	if err != nil {
		o.Error = err.Error()
	}

	return o
}

// collector gathers warnings and notes from concurrent issue workers.
type collector struct {
	mu       sync.Mutex
	warnings []string
	notes    []string
}

func (c *collector) warn(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.warnings = append(c.warnings, msg)
}

func (c *collector) note(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !slices.Contains(c.notes, msg) {
		c.notes = append(c.notes, msg)
	}
}
