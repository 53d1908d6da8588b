// Package confluence publishes release-note pages to a Confluence space
// through the REST content API.
package confluence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/germanamz/relnotes/pkg/restclient"
)

const contentPath = "/wiki/rest/api/content"

var (
	// ErrDuplicate is returned when a page with the same title exists and the
	// server refused to create another.
	ErrDuplicate = errors.New("confluence: page already exists")
	// ErrVersionConflict is returned when a page changed between read and update.
	ErrVersionConflict = errors.New("confluence: version conflict")
)

// Config holds the Confluence connection and placement settings.
type Config struct {
	URL       string        `mapstructure:"url"`
	Username  string        `mapstructure:"username"`
	APIKey    string        `mapstructure:"api_key"`
	Space     string        `mapstructure:"space"`
	ParentID  string        `mapstructure:"parent_id"`
	SSLVerify bool          `mapstructure:"ssl_verify"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Validate reports missing settings, naming each one.
func (c Config) Validate() error {
	var missing []string

	if c.URL == "" {
		missing = append(missing, "confluence url")
	}

	if c.Space == "" {
		missing = append(missing, "confluence space")
	}

	if c.ParentID == "" {
		missing = append(missing, "confluence parent id")
	}

	if len(missing) > 0 {
		return fmt.Errorf("confluence: missing required configuration: %s", strings.Join(missing, ", "))
	}

	return nil
}

// Page is the subset of a Confluence content object the publisher needs.
type Page struct {
	ID      string  `json:"id"`
	Type    string  `json:"type"`
	Title   string  `json:"title"`
	Version Version `json:"version"`
	Links   struct {
		Base  string `json:"base"`
		WebUI string `json:"webui"`
	} `json:"_links"`
}

// URL returns the browser link of the page, or "" when unknown.
func (p Page) URL() string {
	if p.Links.WebUI == "" {
		return ""
	}

	return p.Links.Base + p.Links.WebUI
}

// Version is a page revision.
type Version struct {
	Number int `json:"number"`
}

type pageList struct {
	Results []Page `json:"results"`
}

type storage struct {
	Value          string `json:"value"`
	Representation string `json:"representation"`
}

type pageBody struct {
	Type      string              `json:"type"`
	Title     string              `json:"title"`
	Space     map[string]string   `json:"space,omitempty"`
	Ancestors []map[string]string `json:"ancestors,omitempty"`
	Version   *Version            `json:"version,omitempty"`
	Body      struct {
		Storage storage `json:"storage"`
	} `json:"body"`
}

// PublishError reports a failed page operation with a readable reason.
type PublishError struct {
	Op         string
	Title      string
	StatusCode int
	Reason     string
	Err        error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("confluence: %s %q: %s", e.Op, e.Title, e.Reason)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Result describes a published page.
type Result struct {
	Page    Page
	Created bool
}

// Publisher creates or updates pages under one parent page.
type Publisher struct {
	rest   *restclient.Client
	cfg    Config
	logger *slog.Logger
}

// New creates a Publisher. The config must pass Validate.
func New(cfg Config, logger *slog.Logger, opts ...restclient.Option) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second //nolint:mnd // REST default
	}

	base := []restclient.Option{
		restclient.WithAuth(restclient.Auth{Username: cfg.Username, Key: cfg.APIKey}),
		restclient.WithHTTPClient(restclient.NewHTTPClient(timeout, cfg.SSLVerify)),
	}

	return &Publisher{
		rest:   restclient.New(cfg.URL, append(base, opts...)...),
		cfg:    cfg,
		logger: logger.With(slog.String("module", "confluence")),
	}, nil
}

// FindPage returns the page with title in the configured space. ok is false
// when no such page exists.
func (p *Publisher) FindPage(ctx context.Context, title string) (page Page, ok bool, err error) {
	q := url.Values{}
	q.Set("spaceKey", p.cfg.Space)
	q.Set("title", title)
	q.Set("expand", "version")

	var list pageList
	if err := p.rest.Get(ctx, contentPath, q, &list); err != nil {
		return Page{}, false, p.wrapErr("find", title, err)
	}

	if len(list.Results) == 0 {
		return Page{}, false, nil
	}

	return list.Results[0], true, nil
}

// CreatePage creates a page under the configured parent.
func (p *Publisher) CreatePage(ctx context.Context, title, body string) (Page, error) {
	req := pageBody{
		Type:      "page",
		Title:     title,
		Space:     map[string]string{"key": p.cfg.Space},
		Ancestors: []map[string]string{{"id": p.cfg.ParentID}},
	}
	req.Body.Storage = storage{Value: body, Representation: "storage"}

	var page Page
	if err := p.rest.Post(ctx, contentPath, req, &page); err != nil {
		return Page{}, p.wrapErr("create", title, err)
	}

	return page, nil
}

// UpdatePage replaces the body of an existing page, bumping its version.
func (p *Publisher) UpdatePage(ctx context.Context, existing Page, body string) (Page, error) {
	req := pageBody{Type: "page", Title: existing.Title}
	req.Version = &Version{Number: existing.Version.Number + 1}
	req.Body.Storage = storage{Value: body, Representation: "storage"}

	var page Page
	if err := p.rest.Put(ctx, contentPath+"/"+url.PathEscape(existing.ID), req, &page); err != nil {
		return Page{}, p.wrapErr("update", existing.Title, err)
	}

	return page, nil
}

// Publish creates the page, or updates it when a page with the same title
// already exists in the space.
func (p *Publisher) Publish(ctx context.Context, title, body string) (Result, error) {
	existing, ok, err := p.FindPage(ctx, title)
	if err != nil {
		return Result{}, err
	}

	if ok {
		page, err := p.UpdatePage(ctx, existing, body)
		if err != nil {
			return Result{}, err
		}

		p.logger.InfoContext(ctx, "page updated", slog.String("title", title), slog.String("id", page.ID),
			slog.Int("version", page.Version.Number))

		return Result{Page: page}, nil
	}

	page, err := p.CreatePage(ctx, title, body)
	if err != nil {
		return Result{}, err
	}

	p.logger.InfoContext(ctx, "page created", slog.String("title", title), slog.String("id", page.ID))

	return Result{Page: page, Created: true}, nil
}

func (p *Publisher) wrapErr(op, title string, err error) error {
	pe := &PublishError{Op: op, Title: title, Reason: err.Error(), Err: err}

	var se *restclient.StatusError
	if !errors.As(err, &se) {
		return pe
	}

	pe.StatusCode = se.StatusCode

	switch se.StatusCode {
	case http.StatusUnauthorized:
		pe.Reason = "authentication failed, check the Atlassian username and API key"
	case http.StatusForbidden:
		pe.Reason = fmt.Sprintf("permission denied in space %q", p.cfg.Space)
	case http.StatusNotFound:
		pe.Reason = fmt.Sprintf("space %q or parent page %q not found", p.cfg.Space, p.cfg.ParentID)
	case http.StatusConflict:
		pe.Reason = "the page was modified concurrently"
		pe.Err = errors.Join(ErrVersionConflict, err)
	case http.StatusBadRequest:
		if strings.Contains(strings.ToLower(string(se.Body)), "already exists") {
			pe.Reason = fmt.Sprintf("a page with this title already exists in space %q", p.cfg.Space)
			pe.Err = errors.Join(ErrDuplicate, err)
		}
	}

	return pe
}
