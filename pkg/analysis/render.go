package analysis

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/germanamz/relnotes/pkg/jira"
)

const (
	footer        = "This page was automatically generated by relnotes."
	maxTitleRunes = 100
)

// Confluence storage format is XHTML.
var markdown = goldmark.New(goldmark.WithRendererOptions(html.WithXHTML()))

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", `*`, `\*`, `_`, `\_`, `[`, `\[`, `]`, `\]`,
	`<`, `\<`, `>`, `\>`, `#`, `\#`, `|`, `\|`,
)

func esc(s string) string {
	return mdEscaper.Replace(strings.TrimSpace(s))
}

// RenderMarkdown renders an enriched issue as a Markdown release note.
// browseURL may be empty.
func RenderMarkdown(is jira.ParsedIssue, a Analysis, browseURL string) string {
	var b strings.Builder

	section := func(title, body string) {
		if strings.TrimSpace(body) == "" {
			return
		}

		fmt.Fprintf(&b, "## %s\n\n%s\n\n", title, esc(body))
	}

	fmt.Fprintf(&b, "# %s - %s\n\n", esc(is.Key), esc(is.Summary))
	fmt.Fprintf(&b, "**Type:** %s\n\n", esc(is.IssueType))

	if browseURL != "" {
		fmt.Fprintf(&b, "[View in Jira](<%s>)\n\n", browseURL)
	}

	b.WriteString("---\n\n")

	section("Executive Summary", a.ExecutiveSummary)
	section("Technical Summary", a.TechnicalSummary)

	if KindFor(is.IssueType) == KindBug {
		section("Cause", a.Cause)
		section("Fix", a.Fix)
		section("Impact", a.Impact)
	}

	section("Details", a.Reasoning)

	if len(a.InferredCategories) > 0 {
		b.WriteString("## Categories\n\n")

		for _, c := range a.InferredCategories {
			fmt.Fprintf(&b, "- %s\n", esc(c))
		}

		b.WriteString("\n")
	}

	if c := a.ConfidenceText(); c != "" {
		fmt.Fprintf(&b, "## Confidence\n\nAI Confidence Score: %s\n\n", esc(c))
	}

	b.WriteString("---\n\n*" + footer + "*\n")

	return b.String()
}

// RenderHTML renders the release note as Confluence storage format.
func RenderHTML(is jira.ParsedIssue, a Analysis, browseURL string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(RenderMarkdown(is, a, browseURL)), &buf); err != nil {
		return "", fmt.Errorf("analysis: render html: %w", err)
	}

	return buf.String(), nil
}

// PageTitle returns the Confluence page title for an issue. Titles longer
// than 100 characters fall back to "<version> - <key> Release Notes".
func PageTitle(fixVersion, key, summary string) string {
	prefix := key
	if fixVersion != "" {
		prefix = fixVersion + " - " + key
	}

	title := prefix + " - " + summary
	if len([]rune(title)) > maxTitleRunes {
		return prefix + " Release Notes"
	}

	return title
}
