package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/relnotes/pkg/engine"
	"github.com/germanamz/relnotes/pkg/history"
	"github.com/germanamz/relnotes/pkg/jira"
	"github.com/germanamz/relnotes/pkg/modeladapter"
	"github.com/germanamz/relnotes/pkg/modeladapter/usage"
	"github.com/germanamz/relnotes/pkg/providers/openai"
)

const bugReply = `{"executive_summary": "Login works again.", "technical_summary": "Session cookie was dropped.", "cause": "Expired key", "fix": "Rotated key", "impact": "All users", "reasoning": "From comments", "ticket_number": ""}`

// fakeJira serves the subset of the Jira REST API the engine uses.
type fakeJira struct {
	mu        sync.Mutex
	issues    []jira.Issue
	children  []jira.Issue
	status    int
	// searchStatus and commentStatus fail only the matching endpoint;
	// commentStatus is keyed by issue key.
	searchStatus  int
	commentStatus map[string]int
	searches      []string
	comments  map[string]string
	labelPuts map[string]int
}

func newFakeJira(t *testing.T, issues ...jira.Issue) (*fakeJira, *httptest.Server) {
	t.Helper()

	f := &fakeJira{issues: issues, comments: map[string]string{}, labelPuts: map[string]int{}, commentStatus: map[string]int{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)

	return f, srv
}

func (f *fakeJira) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}

	switch {
	case r.URL.Path == "/rest/api/2/search" && f.searchStatus != 0:
		w.WriteHeader(f.searchStatus)
		_ = json.NewEncoder(w).Encode(jira.ErrorResponse{ErrorMessages: []string{"The value 'NOPE' does not exist for the field 'project'."}})
	case r.URL.Path == "/rest/api/2/search":
		var req jira.SearchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.searches = append(f.searches, req.JQL)

		issues := f.issues
		if strings.HasPrefix(req.JQL, "parent = ") {
			issues = f.children
		}

		_ = json.NewEncoder(w).Encode(jira.SearchResponse{Total: len(issues), Issues: issues})
	case r.URL.Path == "/rest/api/2/myself":
		_ = json.NewEncoder(w).Encode(jira.Myself{DisplayName: "Release Bot"})
	case strings.HasSuffix(r.URL.Path, "/comment"):
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		key := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/rest/api/2/issue/"), "/comment")
		if code := f.commentStatus[key]; code != 0 {
			w.WriteHeader(code)
			return
		}
		f.comments[key] = body["body"]
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodPut:
		f.labelPuts[strings.TrimPrefix(r.URL.Path, "/rest/api/2/issue/")]++
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeJira) commentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.comments)
}

func bug(key, summary string) jira.Issue {
	return jira.Issue{
		ID:  strings.TrimPrefix(key, "REL-"),
		Key: key,
		Fields: jira.IssueFields{
			Summary:   summary,
			Created:   "2024-05-01T10:00:00.000+0000",
			Status:    jira.Named{Name: "Done"},
			IssueType: jira.Named{Name: "Bug"},
		},
	}
}

// scriptedCompleter records every call and answers with reply.
type scriptedCompleter struct {
	mu     sync.Mutex
	calls  []modeladapter.Params
	inputs []string
	reply  func(ctx context.Context, user string, params modeladapter.Params) (modeladapter.Completion, error)
}

func (s *scriptedCompleter) Complete(ctx context.Context, msgs []modeladapter.Message, params modeladapter.Params) (modeladapter.Completion, error) {
	user := msgs[len(msgs)-1].Content

	s.mu.Lock()
	s.calls = append(s.calls, params)
	s.inputs = append(s.inputs, user)
	s.mu.Unlock()

	return s.reply(ctx, user, params)
}

func (s *scriptedCompleter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.calls)
}

func replyWith(content string) func(context.Context, string, modeladapter.Params) (modeladapter.Completion, error) {
	return func(context.Context, string, modeladapter.Params) (modeladapter.Completion, error) {
		return modeladapter.Completion{Content: content, Usage: usage.TokenCount{InputTokens: 100, OutputTokens: 20}}, nil
	}
}

func testConfig(t *testing.T, jiraURL string) engine.Config {
	t.Helper()

	return engine.Config{
		Environment:  "test",
		SSLVerify:    true,
		MaxResults:   10,
		Concurrency:  2,
		Timeout:      10 * time.Second,
		PromptBudget: 12000,
		Params:       engine.DefaultParams(),
		Provider: openai.Config{
			Kind:       openai.KindAzure,
			Endpoint:   "https://example.openai.azure.com",
			APIKey:     "key",
			Deployment: "gpt-4o",
			Model:      "gpt-4o",
			APIVersion: "2024-12-01-preview",
		},
		Jira:      jira.Config{URL: jiraURL, Username: "bot", APIKey: "tok", SSLVerify: true},
		WriteBack: engine.WriteBackConfig{Enabled: true, Label: "ai-enriched"},
		Output: engine.OutputConfig{
			Enabled: true,
			Dir:     t.TempDir(),
			Formats: []string{"json", "markdown"},
		},
		History: engine.HistoryConfig{Path: ":memory:"},
	}
}

func newEngine(t *testing.T, cfg engine.Config, c modeladapter.Completer) *engine.Engine {
	t.Helper()

	e, err := engine.New(context.Background(), cfg, engine.WithCompleter(c), engine.WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	return e
}

func bugRequest() engine.Request {
	return engine.Request{Project: "REL", FixVersion: "1.0", IssueType: "Bug"}
}

// --- new ---

func TestNew_InvalidConfig(t *testing.T) {
	_, err := engine.New(context.Background(), engine.Config{})

	var cfgErr *modeladapter.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "jira.url")
}

func TestNew_UnknownModelUsesPermissiveProfile(t *testing.T) {
	_, srv := newFakeJira(t)
	cfg := testConfig(t, srv.URL)
	cfg.Provider.Model = "house-model-7"

	e := newEngine(t, cfg, &scriptedCompleter{reply: replyWith(bugReply)})

	p, known := e.Profile()
	assert.False(t, known)
	assert.Equal(t, "house-model-7", p.ModelID)
	assert.Equal(t, modeladapter.ParamMaxTokens, p.TokenParam)
}

// --- run ---

func TestRun_EnrichesIssues(t *testing.T) {
	fj, srv := newFakeJira(t, bug("REL-1", "Login fails"), bug("REL-2", "Logout hangs"))
	cfg := testConfig(t, srv.URL)
	sc := &scriptedCompleter{reply: replyWith(bugReply)}
	e := newEngine(t, cfg, sc)

	rep, err := e.Run(context.Background(), bugRequest())
	require.NoError(t, err)

	assert.Equal(t, history.StatusSucceeded, rep.Status)
	assert.Equal(t, 2, rep.Enriched)
	assert.Zero(t, rep.Failed)
	require.Len(t, rep.Issues, 2)
	assert.Equal(t, "REL-1", rep.Issues[0].Key)
	assert.Equal(t, "REL-2", rep.Issues[1].Key)
	assert.True(t, rep.Issues[0].AIEnriched)
	assert.Equal(t, "Session cookie was dropped.", rep.Issues[0].TechnicalSummary)
	assert.Equal(t, srv.URL+"/browse/REL-1", rep.Issues[0].BrowsableURL)
	assert.Contains(t, rep.Details, `JQL: project = REL AND fixversion = "1.0" AND issuetype = Bug`)
	assert.Equal(t, 2, sc.callCount())

	require.Len(t, rep.Files, 2)
	for _, f := range rep.Files {
		assert.FileExists(t, f)
		assert.Equal(t, filepath.Join(cfg.Output.Dir, "REL", "1.0"), filepath.Dir(f))
	}

	assert.Len(t, fj.comments, 2)
	assert.Contains(t, fj.comments["REL-1"], "Login works again.")
	assert.Equal(t, 1, fj.labelPuts["REL-2"])

	run, err := e.History().Get(context.Background(), rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, history.StatusSucceeded, run.Status)
	assert.Equal(t, 2, run.Enriched)
	assert.NotNil(t, run.FinishedAt)
}

func TestRun_NoIssues(t *testing.T) {
	_, srv := newFakeJira(t)
	sc := &scriptedCompleter{reply: replyWith(bugReply)}
	e := newEngine(t, testConfig(t, srv.URL), sc)

	rep, err := e.Run(context.Background(), bugRequest())
	require.NoError(t, err)
	assert.Equal(t, history.StatusSucceeded, rep.Status)
	assert.Empty(t, rep.Issues)
	assert.Empty(t, rep.Files)
	assert.Contains(t, rep.Details, "Found 0 issues")
	assert.Zero(t, sc.callCount())
}

func TestRun_DefaultMaxResultsFromConfig(t *testing.T) {
	_, srv := newFakeJira(t, bug("REL-1", "x"))
	cfg := testConfig(t, srv.URL)
	cfg.MaxResults = 7
	e := newEngine(t, cfg, &scriptedCompleter{reply: replyWith(bugReply)})

	rep, err := e.Run(context.Background(), bugRequest())
	require.NoError(t, err)

	run, err := e.History().Get(context.Background(), rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, 7, run.MaxResults)
}

func TestRun_ReasoningModelParamsAdjusted(t *testing.T) {
	_, srv := newFakeJira(t, bug("REL-1", "Login fails"))
	cfg := testConfig(t, srv.URL)
	cfg.Provider.Model = "o4-mini"
	cfg.Provider.Deployment = "o4-mini"
	sc := &scriptedCompleter{reply: replyWith(bugReply)}
	e := newEngine(t, cfg, sc)

	rep, err := e.Run(context.Background(), bugRequest())
	require.NoError(t, err)
	require.Equal(t, 1, sc.callCount())

	sent := sc.calls[0]
	assert.InDelta(t, 1.0, sent[modeladapter.ParamTemperature], 0)
	assert.Equal(t, 1000, sent[modeladapter.ParamMaxCompletionTokens])
	assert.False(t, sent.Has(modeladapter.ParamMaxTokens))
	assert.Equal(t, "json_object", sent[modeladapter.ParamResponseFormat])
	assert.NotEmpty(t, rep.Notes)
}

func TestRun_RetriesOnceOnUnsupportedParameter(t *testing.T) {
	_, srv := newFakeJira(t, bug("REL-1", "Login fails"))
	sc := &scriptedCompleter{}
	sc.reply = func(_ context.Context, _ string, params modeladapter.Params) (modeladapter.Completion, error) {
		if params.Has(modeladapter.ParamTemperature) {
			return modeladapter.Completion{}, &modeladapter.UnsupportedParameterError{Param: modeladapter.ParamTemperature, Model: "gpt-4o"}
		}

		return modeladapter.Completion{Content: bugReply}, nil
	}
	e := newEngine(t, testConfig(t, srv.URL), sc)

	rep, err := e.Run(context.Background(), bugRequest())
	require.NoError(t, err)

	assert.Equal(t, 2, sc.callCount())
	assert.Equal(t, 1, rep.Enriched)
	assert.False(t, sc.calls[1].Has(modeladapter.ParamTemperature))

	found := false
	for _, n := range rep.Notes {
		if strings.HasPrefix(n, "retry temperature") {
			found = true
		}
	}

	assert.True(t, found, "notes: %v", rep.Notes)
}

func TestRun_IssueFailureIsPartial(t *testing.T) {
	fj, srv := newFakeJira(t, bug("REL-1", "Login fails"), bug("REL-2", "Logout hangs"))
	sc := &scriptedCompleter{}
	sc.reply = func(_ context.Context, user string, _ modeladapter.Params) (modeladapter.Completion, error) {
		if strings.Contains(user, "REL-2") {
			return modeladapter.Completion{}, &modeladapter.TransportError{Op: "chat completion", StatusCode: http.StatusBadGateway, Err: errors.New("upstream")}
		}

		return modeladapter.Completion{Content: bugReply}, nil
	}
	e := newEngine(t, testConfig(t, srv.URL), sc)

	rep, err := e.Run(context.Background(), bugRequest())
	require.NoError(t, err)

	assert.Equal(t, history.StatusPartial, rep.Status)
	assert.Equal(t, 1, rep.Enriched)
	assert.Equal(t, 1, rep.Failed)
	require.Len(t, rep.Issues, 2)
	assert.False(t, rep.Issues[1].AIEnriched)
	assert.NotEmpty(t, rep.Issues[1].Error)
	require.NotEmpty(t, rep.Warnings)
	assert.Contains(t, rep.Warnings[0], "REL-2")

	assert.Contains(t, fj.comments, "REL-1")
	assert.NotContains(t, fj.comments, "REL-2")
}

func TestRun_UndecodableReplyFailsIssue(t *testing.T) {
	_, srv := newFakeJira(t, bug("REL-1", "Login fails"))
	e := newEngine(t, testConfig(t, srv.URL), &scriptedCompleter{reply: replyWith("I cannot help with that.")})

	rep, err := e.Run(context.Background(), bugRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	assert.Contains(t, rep.Issues[0].Error, "decode analysis")
}

func TestRun_ConfigurationErrorAbortsRun(t *testing.T) {
	_, srv := newFakeJira(t, bug("REL-1", "Login fails"))
	cfg := testConfig(t, srv.URL)
	cfg.Provider.Model = "o4-mini"
	cfg.Provider.APIVersion = "2024-06-01"
	sc := &scriptedCompleter{reply: replyWith(bugReply)}
	e := newEngine(t, cfg, sc)

	rep, err := e.Run(context.Background(), bugRequest())

	var cfgErr *modeladapter.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "2024-12-01-preview", cfgErr.MinVersion)
	assert.Zero(t, sc.callCount())

	run, err := e.History().Get(context.Background(), rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, history.StatusFailed, run.Status)
	assert.NotEmpty(t, run.Error)
}

func TestRun_ValidationError(t *testing.T) {
	fj, srv := newFakeJira(t)
	e := newEngine(t, testConfig(t, srv.URL), &scriptedCompleter{reply: replyWith(bugReply)})

	_, err := e.Run(context.Background(), engine.Request{Project: "bad key!", FixVersion: "", IssueType: "Story"})

	var ve *engine.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Problems, 3)
	assert.Empty(t, fj.searches)
}

func TestRun_SearchUnauthorized(t *testing.T) {
	fj, srv := newFakeJira(t)
	fj.status = http.StatusUnauthorized
	e := newEngine(t, testConfig(t, srv.URL), &scriptedCompleter{reply: replyWith(bugReply)})

	rep, err := e.Run(context.Background(), bugRequest())
	require.ErrorIs(t, err, jira.ErrUnauthorized)
	assert.Equal(t, history.StatusFailed, rep.Status)
}

func TestRun_SearchRejectedIsTrackerError(t *testing.T) {
	fj, srv := newFakeJira(t)
	fj.searchStatus = http.StatusBadRequest
	e := newEngine(t, testConfig(t, srv.URL), &scriptedCompleter{reply: replyWith(bugReply)})

	rep, err := e.Run(context.Background(), engine.Request{Project: "NOPE", FixVersion: "1.0", IssueType: "Bug"})

	var te *jira.TrackerError
	require.ErrorAs(t, err, &te)
	assert.True(t, te.QueryRejected())
	assert.Equal(t, http.StatusBadRequest, te.StatusCode)
	assert.Contains(t, err.Error(), "does not exist for the field 'project'")
	assert.Equal(t, history.StatusFailed, rep.Status)
}

func TestRun_WriteBackFailureMarksIssueFailed(t *testing.T) {
	fj, srv := newFakeJira(t, bug("REL-1", "Login fails"), bug("REL-2", "Logout fails"))
	fj.commentStatus["REL-1"] = http.StatusInternalServerError
	e := newEngine(t, testConfig(t, srv.URL), &scriptedCompleter{reply: replyWith(bugReply)})

	rep, err := e.Run(context.Background(), bugRequest())
	require.NoError(t, err)

	assert.Equal(t, history.StatusPartial, rep.Status)
	assert.Equal(t, 1, rep.Enriched)
	assert.Equal(t, 1, rep.Failed)

	require.Len(t, rep.Issues, 2)
	assert.Equal(t, "REL-1", rep.Issues[0].Key)
	assert.Contains(t, rep.Issues[0].Error, "add comment REL-1")
	assert.Empty(t, rep.Issues[1].Error)
	assert.Equal(t, 1, fj.commentCount())
	assert.Contains(t, rep.Warnings, rep.Issues[0].Error)

	run, err := e.History().Get(context.Background(), rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, history.StatusPartial, run.Status)
	assert.Equal(t, 1, run.Failed)
}

func TestRun_WriteBackDisabled(t *testing.T) {
	fj, srv := newFakeJira(t, bug("REL-1", "Login fails"))
	cfg := testConfig(t, srv.URL)
	cfg.WriteBack.Enabled = false
	e := newEngine(t, cfg, &scriptedCompleter{reply: replyWith(bugReply)})

	_, err := e.Run(context.Background(), bugRequest())
	require.NoError(t, err)
	assert.Zero(t, fj.commentCount())
}

func TestRun_UsesCache(t *testing.T) {
	fj, srv := newFakeJira(t, bug("REL-1", "Login fails"))
	cfg := testConfig(t, srv.URL)
	cfg.Cache.Path = filepath.Join(t.TempDir(), "cache.db")
	cfg.Cache.TTL = time.Hour
	sc := &scriptedCompleter{reply: replyWith(bugReply)}
	e := newEngine(t, cfg, sc)

	_, err := e.Run(context.Background(), bugRequest())
	require.NoError(t, err)

	rep, err := e.Run(context.Background(), bugRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, sc.callCount())
	assert.True(t, rep.Issues[0].Cached)
	assert.True(t, rep.Issues[0].AIEnriched)
	assert.Equal(t, 1, fj.commentCount())
}

func TestRun_CacheMissesWhenParamsChange(t *testing.T) {
	_, srv := newFakeJira(t, bug("REL-1", "Login fails"))
	cfg := testConfig(t, srv.URL)
	cfg.Cache.Path = filepath.Join(t.TempDir(), "cache.db")
	cfg.Cache.TTL = time.Hour
	sc := &scriptedCompleter{reply: replyWith(bugReply)}

	first, err := engine.New(context.Background(), cfg, engine.WithCompleter(sc), engine.WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	_, err = first.Run(context.Background(), bugRequest())
	require.NoError(t, err)
	require.NoError(t, first.Close())

	cfg.Params = map[string]any{"temperature": 0.7, "max_tokens": 500}
	e := newEngine(t, cfg, sc)

	rep, err := e.Run(context.Background(), bugRequest())
	require.NoError(t, err)

	assert.Equal(t, 2, sc.callCount())
	assert.False(t, rep.Issues[0].Cached)
}

func TestRun_EpicIncludesChildren(t *testing.T) {
	epic := bug("REL-10", "Checkout revamp")
	epic.Fields.IssueType = jira.Named{Name: "Epic"}
	fj, srv := newFakeJira(t, epic)
	fj.children = []jira.Issue{bug("REL-11", "New payment form")}

	sc := &scriptedCompleter{reply: replyWith(`{"executive_summary": "Faster checkout", "technical_summary": "New form"}`)}
	e := newEngine(t, testConfig(t, srv.URL), sc)

	rep, err := e.Run(context.Background(), engine.Request{Project: "REL", FixVersion: "1.0", IssueType: "Epic"})
	require.NoError(t, err)
	require.Equal(t, 1, rep.Enriched)

	assert.Contains(t, fj.searches, "parent = REL-10")
	assert.Contains(t, sc.inputs[0], "New payment form")
	require.Len(t, rep.Issues[0].Children, 1)
	assert.Equal(t, "REL-11", rep.Issues[0].Children[0].Key)
}

func TestRun_Timeout(t *testing.T) {
	_, srv := newFakeJira(t, bug("REL-1", "Login fails"))
	cfg := testConfig(t, srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	sc := &scriptedCompleter{}
	sc.reply = func(ctx context.Context, _ string, _ modeladapter.Params) (modeladapter.Completion, error) {
		<-ctx.Done()
		return modeladapter.Completion{}, ctx.Err()
	}
	e := newEngine(t, cfg, sc)

	rep, err := e.Run(context.Background(), bugRequest())
	require.ErrorIs(t, err, engine.ErrTimeout)
	assert.Equal(t, history.StatusFailed, rep.Status)

	run, err := e.History().Get(context.Background(), rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, history.StatusFailed, run.Status)
}

func TestRun_PublishesEvents(t *testing.T) {
	_, srv := newFakeJira(t, bug("REL-1", "Login fails"))
	e := newEngine(t, testConfig(t, srv.URL), &scriptedCompleter{reply: replyWith(bugReply)})

	sub := e.Events().SubscribeRun("run-1", 64)
	defer e.Events().Unsubscribe(sub)

	req := bugRequest()
	req.RunID = "run-1"

	rep, err := e.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "run-1", rep.RunID)

	var kinds []engine.EventKind
	for len(sub.C) > 0 {
		ev := <-sub.C
		assert.Equal(t, "run-1", ev.RunID)
		kinds = append(kinds, ev.Kind)
	}

	assert.Equal(t, engine.EventRunStart, kinds[0])
	assert.Equal(t, engine.EventRunEnd, kinds[len(kinds)-1])
	assert.Contains(t, kinds, engine.EventIssueStart)
	assert.Contains(t, kinds, engine.EventIssueEnd)
	assert.Contains(t, kinds, engine.EventOutputWritten)
}

func TestRun_OutputDisabled(t *testing.T) {
	_, srv := newFakeJira(t, bug("REL-1", "Login fails"))
	cfg := testConfig(t, srv.URL)
	cfg.Output.Enabled = false
	e := newEngine(t, cfg, &scriptedCompleter{reply: replyWith(bugReply)})

	rep, err := e.Run(context.Background(), bugRequest())
	require.NoError(t, err)
	assert.Empty(t, rep.Files)

	entries, err := os.ReadDir(cfg.Output.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// --- health ---

func TestHealth(t *testing.T) {
	_, srv := newFakeJira(t)
	e := newEngine(t, testConfig(t, srv.URL), &scriptedCompleter{reply: replyWith(bugReply)})

	h := e.Health(context.Background())
	assert.Equal(t, engine.StatusHealthy, h.Status)
	assert.Equal(t, engine.StatusHealthy, h.Dependencies["jira_api"])
	assert.Equal(t, "Release Bot", h.Diagnostics["jira_user"])
	assert.Equal(t, "gpt-4o", h.Diagnostics["model"])
}

func TestHealth_JiraDown(t *testing.T) {
	fj, srv := newFakeJira(t)
	fj.status = http.StatusUnauthorized
	e := newEngine(t, testConfig(t, srv.URL), &scriptedCompleter{reply: replyWith(bugReply)})

	h := e.Health(context.Background())
	assert.Equal(t, engine.StatusDegraded, h.Status)
	assert.Equal(t, engine.StatusDegraded, h.Dependencies["jira_api"])
	assert.Equal(t, engine.StatusHealthy, h.Dependencies["azure_openai"])
}
