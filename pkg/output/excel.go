package output

import (
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/germanamz/relnotes/pkg/analysis"
)

const sheet = "Issues"

var columns = []string{
	"Key", "Summary", "Type", "Status", "Priority", "Assignee", "Components",
	"Fix Versions", "Executive Summary", "Technical Summary", "Cause", "Fix",
	"Impact", "Reasoning", "Categories", "Keywords", "Confidence", "Enriched", "URL",
}

func row(is analysis.EnrichedIssue) []any {
	return []any{
		is.Key, is.Summary, is.IssueType, is.Status, is.Priority, is.Assignee,
		strings.Join(is.Components, ", "), strings.Join(is.FixVersions, ", "),
		is.ExecutiveSummary, is.TechnicalSummary, is.Cause, is.Fix, is.Impact,
		is.Reasoning, strings.Join(is.InferredCategories, ", "), strings.Join(is.Keywords, ", "),
		is.ConfidenceText(), is.AIEnriched, is.BrowsableURL,
	}
}

func writeExcel(path string, issues []analysis.EnrichedIssue) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}

	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for i, is := range issues {
		cell, err := excelize.CoordinatesToCellName(1, i+2) //nolint:mnd // row 1 is the header
		if err != nil {
			return err
		}

		values := row(is)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	return f.SaveAs(path)
}
