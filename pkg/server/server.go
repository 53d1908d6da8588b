// Package server exposes the release-notes engine over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/germanamz/relnotes/pkg/engine"
	"github.com/germanamz/relnotes/pkg/history"
	"github.com/germanamz/relnotes/pkg/modeladapter"
)

// Engine is the part of *engine.Engine the handlers use.
type Engine interface {
	Run(ctx context.Context, req engine.Request) (engine.Report, error)
	Health(ctx context.Context) engine.Health
	Events() *engine.EventBus
	Config() engine.Config
	Profile() (modeladapter.Profile, bool)
	Catalog() *modeladapter.Catalog
	Adapter() *modeladapter.Adapter
	History() *history.Store
}

// Options configures the HTTP surface.
type Options struct {
	Version      string
	APIKey       string //nolint:gosec // configuration field, not a hardcoded secret
	MaxBodyBytes int64
	Logger       *slog.Logger
	// Now overrides the clock used in response timestamps (for testing).
	Now func() time.Time
}

type deps struct {
	engine  Engine
	logger  *slog.Logger
	version string
	now     func() time.Time
}

// New wires the handlers with the full middleware chain.
func New(e Engine, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	d := &deps{
		engine:  e,
		logger:  logger.With(slog.String("module", "server")),
		version: opts.Version,
		now:     opts.Now,
	}
	if d.now == nil {
		d.now = time.Now
	}

	mux := http.NewServeMux()
	mux.HandleFunc("PUT /release-notes/{project}/{fixVersion}/{issueType}", ReleaseNotes(d))
	mux.HandleFunc("PUT /release-notes/{project}/{fixVersion}/{issueType}/{maxResults}", ReleaseNotes(d))
	mux.HandleFunc("PUT /diagnostics/release-notes/{project}/{fixVersion}/{issueType}", Diagnostics(d))
	mux.HandleFunc("GET /health", Health(d))
	mux.HandleFunc("GET /test", Test(d))
	mux.HandleFunc("GET /runs", Runs(d))
	mux.HandleFunc("GET /runs/{id}", RunByID(d))
	mux.HandleFunc("GET /profiles", Profiles(d))
	mux.Handle("GET /metrics", promhttp.Handler())

	return Chain(mux, d.logger, opts.APIKey, opts.MaxBodyBytes)
}
