package engine

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

const maxResultsLimit = 1000

// IssueTypes are the Jira issue types a run accepts.
var IssueTypes = []string{"Bug", "Issue", "Epic", "Comp"}

var projectPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ErrTimeout is returned when a run exceeds its deadline.
var ErrTimeout = errors.New("engine: run timed out")

// ValidationError lists everything wrong with a Request.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// Request selects the issues of one run.
type Request struct {
	// RunID is optional; callers set it to follow the run's events.
	RunID      string
	Project    string
	FixVersion string
	IssueType  string
	// MaxResults of zero means the configured default.
	MaxResults int
	// Timeout of zero means the configured run timeout.
	Timeout time.Duration
}

// Validate checks the request fields.
func (r Request) Validate() error {
	var problems []string

	if !projectPattern.MatchString(r.Project) {
		problems = append(problems, fmt.Sprintf("Invalid project key: %q. Use letters, digits and underscores only.", r.Project))
	}

	if strings.TrimSpace(r.FixVersion) == "" {
		problems = append(problems, "Fix version must not be empty.")
	}

	if !slices.Contains(IssueTypes, r.IssueType) {
		problems = append(problems, fmt.Sprintf("Invalid issue type: %q. Must be one of %s.", r.IssueType, strings.Join(IssueTypes, ", ")))
	}

	if r.MaxResults < 0 || r.MaxResults > maxResultsLimit {
		problems = append(problems, fmt.Sprintf("max_results must be between 1 and %d", maxResultsLimit))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}

	return nil
}

// ParseMaxResults parses the optional max results path segment.
func ParseMaxResults(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &ValidationError{Problems: []string{fmt.Sprintf("Invalid max_results value: %s. Must be an integer.", s)}}
	}

	if n < 1 || n > maxResultsLimit {
		return 0, &ValidationError{Problems: []string{fmt.Sprintf("max_results must be between 1 and %d", maxResultsLimit)}}
	}

	return n, nil
}
