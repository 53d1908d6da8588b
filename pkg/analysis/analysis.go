// Package analysis turns a parsed Jira issue into a model prompt and the
// model's reply back into a typed release-note analysis.
package analysis

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cast"
)

// Kind selects the prompt and schema used for an issue.
type Kind string

const (
	KindBug   Kind = "bug"
	KindEpic  Kind = "epic"
	KindIssue Kind = "issue"
)

// KindFor maps a Jira issue type to an analysis kind. Anything that is not a
// bug or an epic (including "Comp") uses the issue schema.
func KindFor(issueType string) Kind {
	switch strings.ToLower(strings.TrimSpace(issueType)) {
	case "bug":
		return KindBug
	case "epic":
		return KindEpic
	default:
		return KindIssue
	}
}

// Analysis is the union of the bug, epic and issue schemas.
type Analysis struct {
	ExecutiveSummary   string     `json:"executive_summary,omitempty"`
	TechnicalSummary   string     `json:"technical_summary,omitempty"`
	Cause              string     `json:"cause,omitempty"`
	Fix                string     `json:"fix,omitempty"`
	Impact             string     `json:"impact,omitempty"`
	Reasoning          string     `json:"reasoning,omitempty"`
	TicketNumber       string     `json:"ticket_number,omitempty"`
	InferredCategories StringList `json:"inferredCategories,omitempty"`
	Keywords           StringList `json:"keywords,omitempty"`
	Confidence         any        `json:"confidence,omitempty"`
	ProbabilityRanking any        `json:"probabilityRanking,omitempty"`
}

// StringList decodes either a JSON array of strings or a comma separated
// string, which models return interchangeably.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var list []any
	if err := json.Unmarshal(data, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, v := range list {
			if s := strings.TrimSpace(cast.ToString(v)); s != "" {
				out = append(out, s)
			}
		}

		*l = out

		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("analysis: expected string list, got %s", data)
	}

	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}

	*l = out

	return nil
}

// ConfidenceText formats Confidence for display.
func (a Analysis) ConfidenceText() string { return cast.ToString(a.Confidence) }

// ProbabilityText formats ProbabilityRanking for display.
func (a Analysis) ProbabilityText() string { return cast.ToString(a.ProbabilityRanking) }

var internalTicket = regexp.MustCompile(`^IP-\d+`)

// Clean clears a ticket number that refers to an internal IP-* issue rather
// than an incident.
func (a *Analysis) Clean() {
	if internalTicket.MatchString(a.TicketNumber) {
		a.TicketNumber = ""
	}
}

// HasMeaningfulContent reports whether a is worth publishing: bugs need a
// technical summary and a cause or fix, epics need either summary, and other
// issues need reasoning and at least one category.
func HasMeaningfulContent(kind Kind, a Analysis) bool {
	blank := func(s string) bool { return strings.TrimSpace(s) == "" }

	switch kind {
	case KindBug:
		return !blank(a.TechnicalSummary) && (!blank(a.Cause) || !blank(a.Fix))
	case KindEpic:
		return !blank(a.TechnicalSummary) || !blank(a.ExecutiveSummary)
	default:
		return !blank(a.Reasoning) && len(a.InferredCategories) > 0
	}
}

// Decode extracts the JSON object from a model reply and decodes it.
func Decode(text string) (Analysis, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return Analysis{}, err
	}

	var a Analysis
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return Analysis{}, fmt.Errorf("analysis: decode: %w", err)
	}

	return a, nil
}
