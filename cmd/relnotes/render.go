package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/germanamz/relnotes/pkg/engine"
	"github.com/germanamz/relnotes/pkg/history"
	"github.com/germanamz/relnotes/pkg/output"
	"github.com/germanamz/relnotes/pkg/server"
)

const wordWrap = 100

// renderMarkdown renders the report's issues for the terminal, falling back
// to the raw Markdown when glamour cannot build a renderer.
func renderMarkdown(rep engine.Report) string {
	md := output.Markdown(rep.Issues)

	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(wordWrap))
	if err != nil {
		return md
	}

	out, err := r.Render(md)
	if err != nil {
		return md
	}

	return strings.TrimRight(out, "\n")
}

func statusLine(rep engine.Report, err error) string {
	counts := fmt.Sprintf("%d issues, %d enriched, %d failed in %s",
		len(rep.Issues), rep.Enriched, rep.Failed, rep.ProcessingTime.Round(time.Millisecond))

	switch {
	case err != nil:
		return failedStyle.Render("✗ failed") + " " + dimStyle.Render(counts)
	case rep.Status == history.StatusPartial:
		return partialStyle.Render("◐ partial") + " " + dimStyle.Render(counts)
	default:
		return successStyle.Render("✓ success") + " " + dimStyle.Render(counts)
	}
}

// progressLine formats an engine event for stderr. Events with no useful
// progress information return "".
func progressLine(ev engine.Event) string {
	switch ev.Kind {
	case engine.EventIssueStart:
		return dimStyle.Render("… " + ev.IssueKey + " " + ev.Message)
	case engine.EventIssueEnd:
		return keyStyle.Render(ev.IssueKey) + " " + ev.Message
	case engine.EventIssueFailed:
		return failedStyle.Render(ev.IssueKey) + " " + ev.Message
	case engine.EventOutputWritten:
		return dimStyle.Render("wrote " + ev.Message)
	case engine.EventPagePublished:
		return dimStyle.Render("published " + ev.IssueKey + " " + ev.Message)
	default:
		return ""
	}
}

// renderProfile formats the profile view as plain text.
func renderProfile(v server.ProfileView) string {
	var b strings.Builder

	known := "catalog"
	if !v.Known {
		known = "not in catalog, permissive defaults"
	}

	fmt.Fprintf(&b, "%s %s (%s)\n", keyStyle.Render("model:"), v.Model, known)
	fmt.Fprintf(&b, "%s %s\n", keyStyle.Render("api version:"), v.ActiveVersion)

	if v.Profile.MinAPIVersion != "" {
		fmt.Fprintf(&b, "%s %s\n", keyStyle.Render("min api version:"), v.Profile.MinAPIVersion)
	}

	if v.Profile.FixedTemperature != nil {
		fmt.Fprintf(&b, "%s %g\n", keyStyle.Render("fixed temperature:"), *v.Profile.FixedTemperature)
	}

	if v.Profile.TokenParam != "" {
		fmt.Fprintf(&b, "%s %s\n", keyStyle.Render("token param:"), v.Profile.TokenParam)
	}

	if len(v.Profile.Unsupported) > 0 {
		fmt.Fprintf(&b, "%s %s\n", keyStyle.Render("unsupported:"), strings.Join(v.Profile.Unsupported, ", "))
	}

	if v.Preview.Error != "" {
		fmt.Fprintf(&b, "\n%s\n", failedStyle.Render(v.Preview.Error))
		return b.String()
	}

	b.WriteString("\n" + keyStyle.Render("adjusted params:") + "\n")
	for _, k := range slices.Sorted(maps.Keys(v.Preview.Params)) {
		fmt.Fprintf(&b, "  %s = %v\n", k, v.Preview.Params[k])
	}

	for _, n := range v.Preview.Notes {
		b.WriteString(warningStyle.Render("  ~ "+n) + "\n")
	}

	return b.String()
}
