package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/germanamz/relnotes/pkg/jira"
	"github.com/germanamz/relnotes/pkg/modeladapter"
)

// Snippet is the subset of an issue sent to the model.
type Snippet struct {
	Key         string              `json:"key"`
	Summary     string              `json:"summary"`
	Description string              `json:"description"`
	Priority    string              `json:"priority"`
	Components  []string            `json:"components"`
	Comments    []jira.ParsedNote   `json:"comments"`
	ImageURLs   []string            `json:"imgURLs"`
	Children    []jira.ChildSummary `json:"children,omitempty"`
	Parent      string              `json:"parent,omitempty"`
}

// NewSnippet builds the snippet for an issue. Children and parent are only
// included for epics.
func NewSnippet(is jira.ParsedIssue) Snippet {
	s := Snippet{
		Key:         is.Key,
		Summary:     is.Summary,
		Description: is.Description,
		Priority:    is.Priority,
		Components:  is.Components,
		Comments:    is.Comments,
		ImageURLs:   is.ImageURLs,
	}

	if KindFor(is.IssueType) == KindEpic {
		s.Children = is.Children
		s.Parent = is.Parent
	}

	return s
}

// JSON returns the snippet as compact JSON.
func (s Snippet) JSON() string {
	b, _ := json.Marshal(s) //nolint:errchkjson // plain data

	return string(b)
}

const (
	bugSchema = `{"executive_summary": "", "technical_summary": "", "cause": "", "fix": "", "impact": "", "reasoning": "", "ticket_number": ""}`

	epicSchema = `{"executive_summary": "", "technical_summary": ""}`

	issueSchema = `{"reasoning": "", "inferredCategories": [], "keywords": [], "confidence": 0.0, "probabilityRanking": 0.0}`
)

const bugInstructions = `Extract the ticket number from the summary field; it has the form INCXXXXXXXXXXXX.
The "executive_summary" summarizes the bug in one sentence a non-technical reader understands.
The "technical_summary" summarizes the bug in one sentence an expert engineer understands.
The "cause" is a concise summary of what caused the bug and the "fix" of how it was fixed.
The "impact" describes who or what was affected.
The "reasoning" explains how you arrived at the cause and fix.`

const epicInstructions = `The "executive_summary" describes in one or two sentences what the epic delivers, for a non-technical reader.
The "technical_summary" describes the same for an engineer, naming the main components involved.`

const issueInstructions = `The "probabilityRanking" is the likelihood that the item is completed in the release, weighting task clarity (20%), dependencies (30%), technical complexity (25%), team feedback (15%) and codebase integration (10%).
The "confidence" is your confidence in that ranking, between 0 and 1.
Deduce "inferredCategories" from the item and pick "keywords" by frequency and relevance.
Explain the ranking in "reasoning". Do not explain categories or keywords.`

// SystemPrompt returns the instructions and output schema for kind.
func SystemPrompt(kind Kind) string {
	label, schema, rules := "issue", issueSchema, issueInstructions

	switch kind {
	case KindBug:
		label, schema, rules = "bug", bugSchema, bugInstructions
	case KindEpic:
		label, schema, rules = "epic", epicSchema, epicInstructions
	}

	return fmt.Sprintf(`You receive a JIRA %[1]s as JSON with its key, summary, description and comments.
Analyze the %[1]s and reply with one JSON object of this shape:

%[2]s

%[3]s

Reason as well as you can when the %[1]s data is ambiguous or conflicting.
Reply with the JSON object only, without commentary before or after it.`, label, schema, rules)
}

// BuildMessages returns the system and user messages for an issue. When the
// prompt exceeds budget tokens the oldest comments are dropped first and the
// description is truncated last. A budget <= 0 disables the check.
func BuildMessages(est *modeladapter.TokenEstimator, kind Kind, s Snippet, budget int) []modeladapter.Message {
	system := SystemPrompt(kind)

	build := func(s Snippet) []modeladapter.Message {
		return []modeladapter.Message{
			{Role: modeladapter.RoleSystem, Content: system},
			{Role: modeladapter.RoleUser, Content: s.JSON()},
		}
	}

	msgs := build(s)
	if budget <= 0 || est == nil {
		return msgs
	}

	for est.EstimateMessages(msgs) > budget && len(s.Comments) > 0 {
		s.Comments = s.Comments[1:]
		msgs = build(s)
	}

	if over := est.EstimateMessages(msgs) - budget; over > 0 {
		keep := max(est.Count(s.Description)-over, 0)
		s.Description = strings.TrimSpace(est.Truncate(s.Description, keep))
		msgs = build(s)
	}

	return msgs
}
