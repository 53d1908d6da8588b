// Package output writes enriched issues to local files.
package output

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/germanamz/relnotes/pkg/analysis"
)

// Format is an output file format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatExcel    Format = "excel"
)

// Ext returns the file extension for f.
func (f Format) Ext() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatExcel:
		return "xlsx"
	default:
		return string(f)
	}
}

// ParseFormats validates and normalizes configured formats. "md" and "xlsx"
// are accepted as aliases. Duplicates are dropped.
func ParseFormats(names []string) ([]Format, error) {
	var out []Format

	for _, n := range names {
		var f Format

		switch strings.ToLower(strings.TrimSpace(n)) {
		case "json":
			f = FormatJSON
		case "markdown", "md":
			f = FormatMarkdown
		case "excel", "xlsx":
			f = FormatExcel
		default:
			return nil, fmt.Errorf("output: unknown format %q", n)
		}

		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}

	return out, nil
}

// Target names the run whose issues are written.
type Target struct {
	Project    string
	FixVersion string
	IssueType  string
}

// Writer writes enriched issues under a base directory as
// <dir>/<project>/<fixVersion>/<issueType>_<YYYYMMDD_HHMMSS>.<ext>.
type Writer struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Writer{dir: dir, now: time.Now, logger: logger.With(slog.String("module", "output"))}
}

// SetNowFunc overrides the time source (for testing).
func (w *Writer) SetNowFunc(fn func() time.Time) { w.now = fn }

// Path returns the file path for t in format f.
func (w *Writer) Path(t Target, f Format) string {
	name := fmt.Sprintf("%s_%s.%s", safe(t.IssueType), w.now().Format("20060102_150405"), f.Ext())

	return filepath.Join(w.dir, safe(t.Project), safe(t.FixVersion), name)
}

func safe(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}

		return r
	}, strings.TrimSpace(s))

	if s == "" || s == "." || s == ".." {
		return "_"
	}

	return s
}

// Write writes issues in every format and returns the created paths. Nothing
// is written for an empty issue list.
func (w *Writer) Write(t Target, issues []analysis.EnrichedIssue, formats []Format) ([]string, error) {
	if len(issues) == 0 {
		w.logger.Warn("no issues to save", slog.String("project", t.Project))
		return nil, nil
	}

	var paths []string

	for _, f := range formats {
		path := w.Path(t, f)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return paths, fmt.Errorf("output: create dir: %w", err)
		}

		var err error

		switch f {
		case FormatJSON:
			err = writeJSON(path, issues)
		case FormatMarkdown:
			err = os.WriteFile(path, []byte(Markdown(issues)), 0o644) //nolint:gosec // report files are meant to be shared
		case FormatExcel:
			err = writeExcel(path, issues)
		default:
			err = fmt.Errorf("unknown format %q", f)
		}

		if err != nil {
			return paths, fmt.Errorf("output: write %s: %w", f, err)
		}

		w.logger.Info("saved issues", slog.String("path", path), slog.Int("count", len(issues)))
		paths = append(paths, path)
	}

	return paths, nil
}

func writeJSON(path string, issues []analysis.EnrichedIssue) error {
	b, err := json.MarshalIndent(issues, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, append(b, '\n'), 0o644) //nolint:gosec // report files are meant to be shared
}

// Markdown renders all issues into one document. Enriched issues use the full
// release-note layout; the rest get status and description only.
func Markdown(issues []analysis.EnrichedIssue) string {
	var b strings.Builder

	for _, is := range issues {
		if is.AIEnriched {
			b.WriteString(analysis.RenderMarkdown(is.ParsedIssue, is.Analysis, is.BrowsableURL))
			b.WriteString("\n")

			continue
		}

		fmt.Fprintf(&b, "# %s - %s\n\n", is.Key, is.Summary)
		fmt.Fprintf(&b, "**Status:** %s\n\n", is.Status)
		fmt.Fprintf(&b, "**Description:**\n%s\n\n", is.Description)
		b.WriteString("---\n\n")
	}

	return b.String()
}
