package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/germanamz/relnotes/pkg/engine"
	"github.com/germanamz/relnotes/pkg/jira"
	"github.com/germanamz/relnotes/pkg/modeladapter"
)

// Step statuses.
const (
	stepRunning = "running"
	stepSuccess = "success"
	stepFailed  = "failed"
	stepWarning = "warning"
	stepTimeout = "timeout"
	stepError   = "error"
)

const eventBuffer = 1024

// Step is one entry of a diagnostics report.
type Step struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// DiagnosticsReport is the body of the diagnostics endpoint.
type DiagnosticsReport struct {
	Timestamp  time.Time `json:"timestamp"`
	Steps      []Step    `json:"steps"`
	Status     string    `json:"status"`
	RunID      string    `json:"run_id,omitempty"`
	Project    string    `json:"project"`
	FixVersion string    `json:"fix_version"`
	IssueType  string    `json:"issue_type"`
}

func (d *DiagnosticsReport) add(now time.Time, name, status, msg string, data any) {
	d.Steps = append(d.Steps, Step{Name: name, Status: status, Timestamp: now, Message: msg, Data: data})
}

// Diagnostics runs the same pipeline as ReleaseNotes with the shorter
// diagnostics timeout and reports every stage as a step.
func Diagnostics(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, _ := requestFromPath(r)
		cfg := d.engine.Config()

		rep := &DiagnosticsReport{
			Timestamp:  d.now().UTC(),
			Steps:      []Step{},
			Status:     stepRunning,
			Project:    req.Project,
			FixVersion: req.FixVersion,
			IssueType:  req.IssueType,
		}

		rep.add(d.now(), "input_validation", stepRunning, "", nil)

		if err := req.Validate(); err != nil {
			rep.add(d.now(), "input_validation", stepFailed, "Invalid parameters: "+err.Error(), nil)
			rep.Status = stepFailed
			writeJSON(w, http.StatusBadRequest, rep)

			return
		}

		rep.add(d.now(), "input_validation", stepSuccess, "", nil)
		rep.add(d.now(), "jql_construction", stepSuccess, "", map[string]string{
			"jql": jira.BuildJQL(req.Project, req.FixVersion, req.IssueType),
		})
		rep.add(d.now(), "config_loaded", stepSuccess, "", map[string]any{"config": cfg})

		d.checkVersion(rep)

		req.RunID = uuid.NewString()
		req.Timeout = cfg.DiagnosticsTimeout
		rep.RunID = req.RunID

		sub := d.engine.Events().SubscribeRun(req.RunID, eventBuffer)
		defer d.engine.Events().Unsubscribe(sub)

		rep.add(d.now(), "process_issues", stepRunning, "", nil)

		result, err := d.engine.Run(r.Context(), req)

		drainEvents(rep, sub)

		if err != nil {
			code, msg := statusFor(err)

			status := stepError
			switch {
			case errors.Is(err, engine.ErrTimeout):
				status = stepTimeout
			case code != http.StatusInternalServerError:
				status = stepFailed
			}

			rep.add(d.now(), "process_issues", status, msg, nil)
			rep.Status = status
			writeJSON(w, code, rep)

			return
		}

		rep.add(d.now(), "process_issues", stepSuccess, "", map[string]any{
			"enriched": result.Enriched,
			"failed":   result.Failed,
			"details":  result.Details,
			"warnings": result.Warnings,
			"notes":    result.Notes,
			"files":    result.Files,
		})
		rep.Status = stepSuccess
		writeJSON(w, http.StatusOK, rep)
	}
}

// checkVersion reports whether the active API version satisfies the model
// profile. A mismatch is a warning here; the run itself fails with a
// configuration error.
func (d *deps) checkVersion(rep *DiagnosticsReport) {
	p, known := d.engine.Profile()
	active := d.engine.Adapter().ActiveVersion()
	data := map[string]any{
		"model":          p.ModelID,
		"known_profile":  known,
		"active_version": active,
		"min_version":    p.MinAPIVersion,
	}

	if p.MinAPIVersion == "" {
		rep.add(d.now(), "api_version_check", stepSuccess, "", data)
		return
	}

	c, err := modeladapter.CompareAPIVersions(active, p.MinAPIVersion)
	switch {
	case err != nil:
		rep.add(d.now(), "api_version_check", stepWarning, err.Error(), data)
	case c < 0:
		rep.add(d.now(), "api_version_check", stepWarning,
			fmt.Sprintf("API version %s is older than %s required by %s", active, p.MinAPIVersion, p.ModelID), data)
	default:
		rep.add(d.now(), "api_version_check", stepSuccess, "", data)
	}
}

// drainEvents turns the per-issue events of a finished run into steps.
func drainEvents(rep *DiagnosticsReport, sub *engine.Subscription) {
	for {
		select {
		case ev := <-sub.C:
			name, status := eventStep(ev)
			if name == "" {
				continue
			}

			rep.add(ev.Timestamp, name, status, ev.Message, nil)
		default:
			return
		}
	}
}

func eventStep(ev engine.Event) (name, status string) {
	switch ev.Kind {
	case engine.EventIssueStart:
		return "issue:" + ev.IssueKey, stepRunning
	case engine.EventIssueEnd:
		return "issue:" + ev.IssueKey, stepSuccess
	case engine.EventIssueFailed:
		return "issue:" + ev.IssueKey, stepFailed
	case engine.EventOutputWritten:
		return "output", stepSuccess
	case engine.EventPagePublished:
		return "confluence:" + ev.IssueKey, stepSuccess
	default:
		return "", ""
	}
}
