package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/germanamz/relnotes/pkg/analysis"
	"github.com/germanamz/relnotes/pkg/cache"
	"github.com/germanamz/relnotes/pkg/confluence"
	"github.com/germanamz/relnotes/pkg/history"
	"github.com/germanamz/relnotes/pkg/jira"
	"github.com/germanamz/relnotes/pkg/metrics"
	"github.com/germanamz/relnotes/pkg/modeladapter"
	"github.com/germanamz/relnotes/pkg/modeladapter/usage"
	"github.com/germanamz/relnotes/pkg/output"
)

const maxChildren = 50

// Engine is the composition root that assembles the run components from
// configuration.
type Engine struct {
	cfg    Config
	logger *slog.Logger
	events *EventBus
	now    func() time.Time

	completer *modeladapter.RateLimitedCompleter
	probe     pinger
	catalog   *modeladapter.Catalog
	profile   modeladapter.Profile
	known     bool
	adapter   *modeladapter.Adapter
	estimator *modeladapter.TokenEstimator

	jira      *jira.Client
	publisher *confluence.Publisher
	writer    *output.Writer
	formats   []output.Format
	history   *history.Store
	cache     *cache.Cache
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	completer modeladapter.Completer
	now       func() time.Time
}

// WithLogger sets the engine logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCompleter replaces the configured provider. The completer is still
// wrapped with rate limiting.
func WithCompleter(c modeladapter.Completer) Option {
	return func(o *options) { o.completer = c }
}

// WithNowFunc overrides the time source (for testing).
func WithNowFunc(fn func() time.Time) Option {
	return func(o *options) { o.now = fn }
}

// New creates an Engine from the given configuration. It validates the config,
// resolves the model profile and opens the history store and cache.
func New(ctx context.Context, cfg Config, opts ...Option) (*Engine, error) {
	o := options{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := o.logger.With(slog.String("module", "engine"))

	e := &Engine{
		cfg:    cfg,
		logger: logger,
		events: NewEventBus(),
		now:    o.now,
	}

	inner := o.completer
	if inner == nil {
		c, err := buildCompleter(cfg.Provider)
		if err != nil {
			return nil, err
		}

		inner = c
	}

	e.completer = modeladapter.NewRateLimitedCompleter(inner, cfg.RateLimit)
	e.probe, _ = inner.(pinger)

	catalog, err := modeladapter.LoadCatalog(cfg.ProfilesFile)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	e.catalog = catalog
	e.profile, e.known = catalog.Lookup(cfg.ModelID())

	if !e.known {
		logger.WarnContext(ctx, "no profile for model, using permissive defaults", slog.String("model", cfg.ModelID()))
	}

	e.adapter = modeladapter.NewAdapter(cfg.Provider.APIVersion, modeladapter.WithLogger(logger))
	e.estimator = modeladapter.NewTokenEstimator(cfg.ModelID())
	e.jira = jira.New(cfg.Jira, o.logger)

	if cfg.Confluence.Enabled {
		e.publisher, err = confluence.New(cfg.Confluence.Config, o.logger)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Output.Enabled {
		// Formats were checked by Validate.
		e.formats, _ = output.ParseFormats(cfg.Output.Formats)
		e.writer = output.NewWriter(cfg.Output.Dir, o.logger)
		e.writer.SetNowFunc(o.now)
	}

	historyPath := cfg.History.Path
	if historyPath == "" {
		historyPath = ":memory:"
	}

	e.history, err = history.Open(historyPath)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	e.history.SetNowFunc(o.now)

	if cfg.Cache.Path != "" {
		e.cache, err = cache.Open(cfg.Cache.Path, cfg.Cache.TTL)
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("engine: %w", err)
		}

		e.cache.SetNowFunc(o.now)
	}

	return e, nil
}

// Events returns the engine's event bus.
func (e *Engine) Events() *EventBus { return e.events }

// Config returns the engine configuration with secrets redacted.
func (e *Engine) Config() Config { return e.cfg.Redacted() }

// Catalog returns the model profile catalog.
func (e *Engine) Catalog() *modeladapter.Catalog { return e.catalog }

// Profile returns the effective profile for the configured model and whether
// it came from the catalog.
func (e *Engine) Profile() (modeladapter.Profile, bool) { return e.profile, e.known }

// Adapter returns the parameter adapter.
func (e *Engine) Adapter() *modeladapter.Adapter { return e.adapter }

// Usage returns the accumulated token usage of the model.
func (e *Engine) Usage() *usage.Tracker { return e.completer.UsageTracker() }

// History returns the run history store.
func (e *Engine) History() *history.Store { return e.history }

// Close releases the history database and the cache.
func (e *Engine) Close() error {
	var errs []error

	if e.history != nil {
		errs = append(errs, e.history.Close())
	}

	if e.cache != nil {
		errs = append(errs, e.cache.Close())
	}

	return errors.Join(errs...)
}

func (e *Engine) emit(runID string, kind EventKind, key, msg string, data any) {
	e.events.Publish(Event{
		Kind:      kind,
		RunID:     runID,
		IssueKey:  key,
		Timestamp: e.now(),
		Message:   msg,
		Data:      data,
	})
}

// Run fetches the issues selected by req, enriches them with the model and
// delivers the results to the configured sinks. A per-issue failure is
// recorded in the report; the returned error is reserved for failures of the
// whole run.
func (e *Engine) Run(ctx context.Context, req Request) (Report, error) {
	if req.MaxResults == 0 {
		req.MaxResults = e.cfg.MaxResults
	}

	if err := req.Validate(); err != nil {
		return Report{}, err
	}

	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	start := e.now()

	timeout := cmp.Or(req.Timeout, e.cfg.Timeout)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	run, err := e.history.StartRun(ctx, history.Run{
		ID:         req.RunID,
		Project:    req.Project,
		FixVersion: req.FixVersion,
		IssueType:  req.IssueType,
		MaxResults: req.MaxResults,
	})
	if err != nil {
		return Report{}, fmt.Errorf("engine: %w", err)
	}

	logger := e.logger.With(slog.String("run_id", run.ID))
	logger.InfoContext(ctx, "run started",
		slog.String("project", req.Project),
		slog.String("fix_version", req.FixVersion),
		slog.String("issue_type", req.IssueType),
		slog.Int("max_results", req.MaxResults),
	)

	rep := Report{
		RunID:      run.ID,
		Project:    req.Project,
		FixVersion: req.FixVersion,
		IssueType:  req.IssueType,
		Issues:     []analysis.EnrichedIssue{},
		Details:    []string{},
		Warnings:   []string{},
		Files:      []string{},
		Notes:      []string{},
	}

	e.emit(run.ID, EventRunStart, "", "run started", req)

	err = e.run(ctx, logger, req, &rep)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, err)
	}

	rep.ProcessingTime = e.now().Sub(start)

	switch {
	case err != nil:
		rep.Status = history.StatusFailed
	case rep.Failed > 0:
		rep.Status = history.StatusPartial
	default:
		rep.Status = history.StatusSucceeded
	}

	if ferr := e.history.FinishRun(context.WithoutCancel(ctx), run.ID, rep.outcome(err)); ferr != nil {
		logger.ErrorContext(ctx, "failed to record run end", slog.Any("error", ferr))
	}

	logger.InfoContext(ctx, "run finished",
		slog.String("status", rep.Status),
		slog.Int("issues", len(rep.Issues)),
		slog.Int("enriched", rep.Enriched),
		slog.Int("failed", rep.Failed),
		slog.Duration("elapsed", rep.ProcessingTime),
	)

	e.emit(run.ID, EventRunEnd, "", rep.Status, rep)

	return rep, err
}

func (e *Engine) run(ctx context.Context, logger *slog.Logger, req Request, rep *Report) error {
	jql := jira.BuildJQL(req.Project, req.FixVersion, req.IssueType)
	rep.Details = append(rep.Details, "JQL: "+jql)

	found, err := e.jira.Search(ctx, jql, req.MaxResults)
	if err != nil {
		return err
	}

	parsed := jira.ParseIssues(found)
	rep.Details = append(rep.Details, fmt.Sprintf("Found %d issues", len(parsed)))

	if len(parsed) == 0 {
		return nil
	}

	col := &collector{}

	issues, err := e.enrichAll(ctx, logger, rep.RunID, parsed, col)
	if err != nil {
		return err
	}

	rep.Issues = issues

	if e.cfg.WriteBack.Enabled {
		rep.Details = append(rep.Details, e.writeBack(ctx, issues, col))
	}

	// Counted after write-back: an issue Jira refused to update is failed.
	for _, is := range issues {
		if is.AIEnriched && is.Error == "" {
			rep.Enriched++
		} else {
			rep.Failed++
		}
	}

	rep.Details = append(rep.Details, fmt.Sprintf("Enriched %d of %d issues", rep.Enriched, len(issues)))

	if e.writer != nil {
		files, err := e.writer.Write(output.Target{
			Project:    req.Project,
			FixVersion: req.FixVersion,
			IssueType:  req.IssueType,
		}, issues, e.formats)
		rep.Files = append(rep.Files, files...)

		for _, f := range files {
			e.emit(rep.RunID, EventOutputWritten, "", f, nil)
		}

		if err != nil {
			col.warn(err.Error())
		}
	}

	if e.publisher != nil {
		rep.Details = append(rep.Details, e.publish(ctx, req.FixVersion, issues, rep.RunID, col))
	}

	rep.Warnings = append(rep.Warnings, col.warnings...)
	rep.Notes = append(rep.Notes, col.notes...)

	return nil
}

// enrichAll analyzes issues concurrently, keeping their order. Only a
// configuration error or cancellation stops the batch.
func (e *Engine) enrichAll(ctx context.Context, logger *slog.Logger, runID string, parsed []jira.ParsedIssue, col *collector) ([]analysis.EnrichedIssue, error) {
	out := make([]analysis.EnrichedIssue, len(parsed))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.cfg.Concurrency, 1))

	for i, is := range parsed {
		g.Go(func() error {
			e.emit(runID, EventIssueStart, is.Key, "analyzing "+is.IssueType, nil)

			ei, err := e.enrich(gctx, logger, is, col)
			if err == nil {
				out[i] = ei
				e.emit(runID, EventIssueEnd, is.Key, "enriched", map[string]bool{"cached": ei.Cached})

				return nil
			}

			var cfgErr *modeladapter.ConfigurationError
			if errors.As(err, &cfgErr) || gctx.Err() != nil {
				return err
			}

			logger.WarnContext(gctx, "issue analysis failed", slog.String("key", is.Key), slog.Any("error", err))

			ei.Error = err.Error()
			out[i] = ei
			col.warn(fmt.Sprintf("%s: %v", is.Key, err))
			e.emit(runID, EventIssueFailed, is.Key, err.Error(), nil)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// enrich analyzes one issue. The returned EnrichedIssue is usable even when
// err is set.
func (e *Engine) enrich(ctx context.Context, logger *slog.Logger, is jira.ParsedIssue, col *collector) (analysis.EnrichedIssue, error) {
	kind := analysis.KindFor(is.IssueType)

	if kind == analysis.KindEpic {
		is.Children = e.children(ctx, is.Key, col)
	}

	ei := analysis.EnrichedIssue{
		ParsedIssue:  is,
		BrowsableURL: e.jira.BrowseURL(is.Key),
	}

	msgs := analysis.BuildMessages(e.estimator, kind, analysis.NewSnippet(is), e.cfg.PromptBudget)
	key := cache.Key(is.Key, e.profile.ModelID, msgs[0].Content+msgs[len(msgs)-1].Content, e.cfg.Params)

	if e.cache != nil {
		a, ok, err := e.cache.Get(key)
		if err != nil {
			logger.WarnContext(ctx, "cache read failed", slog.String("key", is.Key), slog.Any("error", err))
		}

		if ok {
			ei.Analysis, ei.AIEnriched, ei.Cached = a, true, true
			return ei, nil
		}
	}

	send := func(ctx context.Context, params modeladapter.Params) (modeladapter.Completion, error) {
		return e.completer.Complete(ctx, msgs, params)
	}

	start := e.now()
	c, notes, err := modeladapter.Execute(ctx, e.adapter, send, e.profile, modeladapter.Params(e.cfg.Params))
	metrics.IssueAnalysisSeconds.WithLabelValues(string(kind)).Observe(e.now().Sub(start).Seconds())
	metrics.RecordNotes(e.profile.ModelID, notes)

	for _, n := range notes {
		logger.InfoContext(ctx, "request adjusted",
			slog.String("model", e.profile.ModelID),
			slog.String("key", is.Key),
			slog.Any("note", n),
		)
		col.note(n.String())
	}

	if err != nil {
		return ei, err
	}

	metrics.RecordTokens(c.Usage)

	a, err := analysis.Decode(c.Content)
	if err != nil {
		return ei, fmt.Errorf("decode analysis: %w", err)
	}

	a.Clean()
	ei.Analysis, ei.AIEnriched = a, true

	if e.cache != nil {
		if err := e.cache.Put(key, a); err != nil {
			logger.WarnContext(ctx, "cache write failed", slog.String("key", is.Key), slog.Any("error", err))
		}
	}

	return ei, nil
}

// children fetches the child issues of an epic. Failures only warn; the epic
// is analyzed without them.
func (e *Engine) children(ctx context.Context, key string, col *collector) []jira.ChildSummary {
	found, err := e.jira.Search(ctx, "parent = "+key, maxChildren)
	if err != nil {
		col.warn(fmt.Sprintf("%s: fetch children: %v", key, err))
		return nil
	}

	out := make([]jira.ChildSummary, 0, len(found))
	for _, c := range jira.ParseIssues(found) {
		out = append(out, jira.ChildSummary{Key: c.Key, Summary: c.Summary, Description: c.Description})
	}

	return out
}

// writeBack comments on and labels every freshly enriched issue. Cached
// issues were written back by the run that produced them. An issue whose
// update fails gets its Error set; the other issues are still written.
func (e *Engine) writeBack(ctx context.Context, issues []analysis.EnrichedIssue, col *collector) string {
	written := 0

	for i := range issues {
		is := &issues[i]
		if !is.AIEnriched || is.Cached {
			continue
		}

		err := e.jira.AddComment(ctx, is.Key, commentBody(is.Analysis))
		if err == nil {
			err = e.jira.AddLabels(ctx, is.Key, e.cfg.WriteBack.Label)
		}

		if err != nil {
			is.Error = err.Error()
			col.warn(err.Error())

			continue
		}

		written++
	}

	return fmt.Sprintf("Jira write-back: %d issues updated", written)
}

func commentBody(a analysis.Analysis) string {
	var b strings.Builder

	b.WriteString("*AI release note*\n\n")

	if a.ExecutiveSummary != "" {
		b.WriteString(a.ExecutiveSummary + "\n\n")
	}

	if a.TechnicalSummary != "" {
		b.WriteString(a.TechnicalSummary + "\n\n")
	}

	if c := a.ConfidenceText(); c != "" {
		b.WriteString("Confidence: " + c + "\n")
	}

	return strings.TrimSpace(b.String())
}

// publish creates or updates a Confluence page for every issue with
// meaningful analysis content.
func (e *Engine) publish(ctx context.Context, fixVersion string, issues []analysis.EnrichedIssue, runID string, col *collector) string {
	var created, updated, skipped int

	for _, is := range issues {
		if !is.Publishable() {
			skipped++
			continue
		}

		body, err := analysis.RenderHTML(is.ParsedIssue, is.Analysis, is.BrowsableURL)
		if err != nil {
			col.warn(fmt.Sprintf("%s: render page: %v", is.Key, err))
			skipped++

			continue
		}

		res, err := e.publisher.Publish(ctx, analysis.PageTitle(fixVersion, is.Key, is.Summary), body)
		if err != nil {
			col.warn(err.Error())
			skipped++

			continue
		}

		if res.Created {
			created++
		} else {
			updated++
		}

		e.emit(runID, EventPagePublished, is.Key, res.Page.URL(), res.Page)
	}

	return fmt.Sprintf("Confluence: %d created, %d updated, %d skipped", created, updated, skipped)
}

// Health statuses.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Health reports the state of the external dependencies.
type Health struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
	Diagnostics  map[string]any    `json:"diagnostics"`
}

// Health probes Jira and the model provider.
func (e *Engine) Health(ctx context.Context) Health {
	h := Health{
		Status:       StatusHealthy,
		Dependencies: map[string]string{"jira_api": StatusHealthy, "azure_openai": StatusHealthy},
		Diagnostics: map[string]any{
			"model":         e.profile.ModelID,
			"profile_known": e.known,
			"api_version":   e.adapter.ActiveVersion(),
			"environment":   e.cfg.Environment,
		},
	}

	if me, err := e.jira.Myself(ctx); err != nil {
		h.Dependencies["jira_api"] = StatusDegraded
		h.Diagnostics["jira_error"] = err.Error()
	} else {
		h.Diagnostics["jira_user"] = me.DisplayName
	}

	if e.probe != nil {
		if err := e.probe.Ping(ctx); err != nil {
			h.Dependencies["azure_openai"] = StatusDegraded
			h.Diagnostics["azure_openai_error"] = err.Error()
		}
	}

	if info := e.completer.LastRateLimitInfo(); info != nil {
		h.Diagnostics["rate_limit"] = info
	}

	for _, s := range h.Dependencies {
		if s != StatusHealthy {
			h.Status = StatusDegraded
		}
	}

	return h
}
