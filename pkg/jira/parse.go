package jira

import (
	"encoding/json"
	"regexp"
	"strings"
)

// mentionPattern matches user mentions, which carry no meaning for analysis.
var mentionPattern = regexp.MustCompile(`\[~accountid:[^\]]+\]`)

// ParsedIssue is the flattened view of an issue used for analysis and output.
type ParsedIssue struct {
	Key          string         `json:"key"`
	ID           string         `json:"id"`
	Summary      string         `json:"summary"`
	Created      string         `json:"created"`
	Assignee     string         `json:"assignee"`
	Priority     string         `json:"priority"`
	Status       string         `json:"status"`
	Description  string         `json:"description"`
	IssueType    string         `json:"issuetype"`
	Components   []string       `json:"components"`
	Comments     []ParsedNote   `json:"comments"`
	RelatedIssue *RelatedIssue  `json:"related_issues,omitempty"`
	FixVersions  []string       `json:"fixVersions"`
	Reporter     string         `json:"reporter"`
	Labels       []string       `json:"labels"`
	WSJF         any            `json:"wsjf"`
	ImageURLs    []string       `json:"imgURLs"`
	Parent       string         `json:"parent"`
	Children     []ChildSummary `json:"children,omitempty"`
}

// ParsedNote is a comment with mentions removed.
type ParsedNote struct {
	Body    string `json:"body"`
	Author  string `json:"author"`
	Created string `json:"created"`
}

// RelatedIssue is the linked issue reported for an issue.
type RelatedIssue struct {
	Type    string `json:"type"`
	Key     string `json:"key"`
	Summary string `json:"summary"`
}

// ChildSummary is the short form of an epic's child issue.
type ChildSummary struct {
	Key         string `json:"key"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
}

// ParseIssues flattens search results. An unset assignee or parent is
// reported as "None". When an issue has several links the last one wins.
func ParseIssues(issues []Issue) []ParsedIssue {
	out := make([]ParsedIssue, 0, len(issues))
	for _, is := range issues {
		out = append(out, parseIssue(is))
	}

	return out
}

func parseIssue(is Issue) ParsedIssue {
	f := is.Fields
	p := ParsedIssue{
		Key:         is.Key,
		ID:          is.ID,
		Summary:     f.Summary,
		Created:     datePart(f.Created),
		Assignee:    "None",
		Status:      f.Status.Name,
		Description: f.Description,
		IssueType:   f.IssueType.Name,
		Components:  names(f.Components),
		FixVersions: names(f.FixVersions),
		Labels:      f.Labels,
		Parent:      "None",
		Comments:    []ParsedNote{},
		ImageURLs:   []string{},
	}

	if p.Labels == nil {
		p.Labels = []string{}
	}

	if f.Priority != nil {
		p.Priority = f.Priority.Name
	}

	if f.Assignee != nil && f.Assignee.DisplayName != "" {
		p.Assignee = f.Assignee.DisplayName
	}

	if f.Reporter != nil {
		p.Reporter = f.Reporter.DisplayName
	}

	if f.Parent != nil && f.Parent.Key != "" {
		p.Parent = f.Parent.Key
	}

	if strings.EqualFold(p.IssueType, "epic") && len(f.WSJF) > 0 {
		var v any
		if json.Unmarshal(f.WSJF, &v) == nil {
			p.WSJF = v
		}
	}

	for _, a := range f.Attachments {
		p.ImageURLs = append(p.ImageURLs, a.Content)
	}

	if f.Comment != nil {
		for _, c := range f.Comment.Comments {
			p.Comments = append(p.Comments, ParsedNote{
				Body:    mentionPattern.ReplaceAllString(c.Body, ""),
				Author:  c.Author.DisplayName,
				Created: c.Created,
			})
		}
	}

	for _, l := range f.IssueLinks {
		switch {
		case l.OutwardIssue != nil:
			p.RelatedIssue = &RelatedIssue{Type: l.Type.Outward, Key: l.OutwardIssue.Key, Summary: l.OutwardIssue.Fields.Summary}
		case l.InwardIssue != nil:
			p.RelatedIssue = &RelatedIssue{Type: l.Type.Inward, Key: l.InwardIssue.Key, Summary: l.InwardIssue.Fields.Summary}
		}
	}

	return p
}

func datePart(ts string) string {
	if len(ts) >= 10 { //nolint:mnd // YYYY-MM-DD
		return ts[:10]
	}

	return ts
}

func names(ns []Named) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Name)
	}

	return out
}
