package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/germanamz/relnotes/pkg/engine"
	"github.com/germanamz/relnotes/pkg/history"
	"github.com/germanamz/relnotes/pkg/modeladapter"
)

const defaultRunsLimit = 50

type releaseNotesResponse struct {
	Status         string   `json:"status"`
	RunID          string   `json:"runId"`
	Project        string   `json:"project"`
	FixVersion     string   `json:"fixVersion"`
	IssueType      string   `json:"issueType"`
	ProcessingTime float64  `json:"processingTime"`
	Details        []string `json:"details"`
	Warnings       []string `json:"warnings"`
	Files          []string `json:"files"`
	Notes          []string `json:"notes"`
	Enriched       int      `json:"enriched"`
	Failed         int      `json:"failed"`
}

func requestFromPath(r *http.Request) (engine.Request, error) {
	req := engine.Request{
		Project:    r.PathValue("project"),
		FixVersion: r.PathValue("fixVersion"),
		IssueType:  r.PathValue("issueType"),
	}

	if s := r.PathValue("maxResults"); s != "" {
		n, err := engine.ParseMaxResults(s)
		if err != nil {
			return req, err
		}

		req.MaxResults = n
	}

	return req, nil
}

// ReleaseNotes runs the engine for the project, fix version and issue type in
// the path.
func ReleaseNotes(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := requestFromPath(r)
		if err == nil {
			err = req.Validate()
		}

		if err != nil {
			code, msg := statusFor(err)
			writeError(w, code, msg)

			return
		}

		d.logger.InfoContext(r.Context(), "release notes requested",
			slog.String("project", req.Project),
			slog.String("fix_version", req.FixVersion),
			slog.String("issue_type", req.IssueType),
		)

		rep, err := d.engine.Run(r.Context(), req)
		if err != nil {
			code, msg := statusFor(err)
			if code == http.StatusInternalServerError {
				d.logger.ErrorContext(r.Context(), "release notes failed", slog.String("run_id", rep.RunID), slog.Any("error", err))
			}

			writeError(w, code, msg)

			return
		}

		writeJSON(w, http.StatusOK, releaseNotesResponse{
			Status:         "success",
			RunID:          rep.RunID,
			Project:        rep.Project,
			FixVersion:     rep.FixVersion,
			IssueType:      rep.IssueType,
			ProcessingTime: rep.ProcessingTime.Seconds(),
			Details:        rep.Details,
			Warnings:       rep.Warnings,
			Files:          rep.Files,
			Notes:          rep.Notes,
			Enriched:       rep.Enriched,
			Failed:         rep.Failed,
		})
	}
}

type healthResponse struct {
	engine.Health

	Timestamp time.Time `json:"timestamp"`
}

// Health reports dependency status. It always answers 200 so probes can read
// the body.
func Health(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{
			Health:    d.engine.Health(r.Context()),
			Timestamp: d.now().UTC(),
		})
	}
}

// Test is a liveness endpoint without dependency checks.
func Test(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"message":     "relnotes is running",
			"timestamp":   d.now().UTC(),
			"app_version": d.version,
		})
	}
}

// Runs lists the most recent runs. ?limit= overrides the default of 50.
func Runs(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultRunsLimit
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}

			limit = n
		}

		runs, err := d.engine.History().List(r.Context(), limit)
		if err != nil {
			d.logger.ErrorContext(r.Context(), "list runs failed", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "Internal Server Error")

			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
	}
}

// RunByID returns one run.
func RunByID(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := d.engine.History().Get(r.Context(), r.PathValue("id"))
		if errors.Is(err, history.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}

		if err != nil {
			d.logger.ErrorContext(r.Context(), "get run failed", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "Internal Server Error")

			return
		}

		writeJSON(w, http.StatusOK, run)
	}
}

// AdjustmentPreview is the configured parameter set as it would be sent.
type AdjustmentPreview struct {
	Params modeladapter.Params `json:"params,omitempty"`
	Notes  []string            `json:"notes"`
	Error  string              `json:"error,omitempty"`
}

// ProfileView describes the effective model profile.
type ProfileView struct {
	Model         string                 `json:"model"`
	Known         bool                   `json:"known"`
	ActiveVersion string                 `json:"activeVersion"`
	Profile       modeladapter.Profile   `json:"profile"`
	Requested     modeladapter.Params    `json:"requested"`
	Preview       AdjustmentPreview      `json:"preview"`
	Catalog       []modeladapter.Profile `json:"catalog"`
}

// Profiles shows the effective model profile, how the configured parameters
// would be adjusted for it and the whole catalog.
func Profiles(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, BuildProfiles(d.engine))
	}
}

// BuildProfiles assembles the /profiles body. The CLI prints the same view.
func BuildProfiles(e Engine) ProfileView {
	p, known := e.Profile()
	cfg := e.Config()
	requested := modeladapter.Params(cfg.Params)

	resp := ProfileView{
		Model:         p.ModelID,
		Known:         known,
		ActiveVersion: e.Adapter().ActiveVersion(),
		Profile:       p,
		Requested:     requested,
		Preview:       AdjustmentPreview{Notes: []string{}},
		Catalog:       e.Catalog().Profiles(),
	}

	res, err := e.Adapter().Adjust(p, requested)
	if err != nil {
		resp.Preview.Error = err.Error()
		return resp
	}

	resp.Preview.Params = res.Params
	for _, n := range res.Notes {
		resp.Preview.Notes = append(resp.Preview.Notes, n.String())
	}

	return resp
}
