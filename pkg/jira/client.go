// Package jira is a small client for the Jira REST API v2: issue search,
// issue parsing and the comment/label write-back used after enrichment.
package jira

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/germanamz/relnotes/pkg/restclient"
)

const (
	searchPath  = "/rest/api/2/search"
	myselfPath  = "/rest/api/2/myself"
	issuePath   = "/rest/api/2/issue/"
	maxPageSize = 100

	opSearch = "search"
)

// searchFields are the fields requested during search.
var searchFields = []string{
	"summary", "description", "created", "status", "priority", "issuetype",
	"assignee", "reporter", "labels", "components", "fixVersions",
	"attachment", "issuelinks", "parent", "comment", "customfield_12918",
}

// Config holds the Jira connection settings.
type Config struct {
	URL       string        `mapstructure:"url"`
	Username  string        `mapstructure:"username"`
	APIKey    string        `mapstructure:"api_key"`
	SSLVerify bool          `mapstructure:"ssl_verify"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Client talks to one Jira instance using basic auth (username + API token).
type Client struct {
	rest   *restclient.Client
	logger *slog.Logger
}

// New creates a Client. Extra restclient options are applied last.
func New(cfg Config, logger *slog.Logger, opts ...restclient.Option) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second //nolint:mnd // Jira default
	}

	base := []restclient.Option{
		restclient.WithAuth(restclient.Auth{Username: cfg.Username, Key: cfg.APIKey}),
		restclient.WithHTTPClient(restclient.NewHTTPClient(timeout, cfg.SSLVerify)),
	}

	return &Client{
		rest:   restclient.New(cfg.URL, append(base, opts...)...),
		logger: logger.With(slog.String("module", "jira")),
	}
}

// BaseURL returns the Jira instance URL without a trailing slash.
func (c *Client) BaseURL() string { return c.rest.BaseURL() }

// BrowseURL returns the human link for an issue.
func (c *Client) BrowseURL(key string) string {
	return c.rest.BaseURL() + "/browse/" + key
}

// Search runs jql and returns up to maxResults issues, following pagination
// until the limit or Jira's total is reached.
func (c *Client) Search(ctx context.Context, jql string, maxResults int) ([]Issue, error) {
	var issues []Issue

	for start := 0; len(issues) < maxResults; {
		req := SearchRequest{
			JQL:        jql,
			StartAt:    start,
			MaxResults: min(maxResults-len(issues), maxPageSize),
			Fields:     searchFields,
			Expand:     []string{"renderedFields"},
		}

		var page SearchResponse
		if err := c.rest.Post(ctx, searchPath, req, &page); err != nil {
			return nil, wrapErr(opSearch, "", err)
		}

		issues = append(issues, page.Issues...)
		start += len(page.Issues)

		c.logger.DebugContext(ctx, "search page",
			slog.Int("start", page.StartAt), slog.Int("count", len(page.Issues)), slog.Int("total", page.Total))

		if len(page.Issues) == 0 || start >= page.Total {
			break
		}
	}

	if len(issues) > maxResults {
		issues = issues[:maxResults]
	}

	c.logger.InfoContext(ctx, "search done", slog.String("jql", jql), slog.Int("issues", len(issues)))

	return issues, nil
}

// Myself returns the authenticated user. Used as a connectivity check.
func (c *Client) Myself(ctx context.Context) (Myself, error) {
	var me Myself
	if err := c.rest.Get(ctx, myselfPath, nil, &me); err != nil {
		return Myself{}, wrapErr("myself", "", err)
	}

	return me, nil
}

// AddComment posts a plain-text comment to the issue.
func (c *Client) AddComment(ctx context.Context, key, body string) error {
	payload := map[string]string{"body": body}
	err := c.rest.Post(ctx, issuePath+url.PathEscape(key)+"/comment", payload, nil)

	return wrapErr("add comment", key, err)
}

// AddLabels adds labels to the issue, keeping the existing ones.
func (c *Client) AddLabels(ctx context.Context, key string, labels ...string) error {
	if len(labels) == 0 {
		return nil
	}

	ops := make([]map[string]string, 0, len(labels))
	for _, l := range labels {
		ops = append(ops, map[string]string{"add": l})
	}

	payload := map[string]any{"update": map[string]any{"labels": ops}}
	err := c.rest.Put(ctx, issuePath+url.PathEscape(key), payload, nil)

	return wrapErr("add labels", key, err)
}

// BuildJQL returns the release query for a project, fix version and issue
// type. The fix version is quoted; project and issue type are validated
// upstream.
func BuildJQL(project, fixVersion, issueType string) string {
	return fmt.Sprintf("project = %s AND fixversion = %s AND issuetype = %s",
		project, quote(fixVersion), issueType)
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
