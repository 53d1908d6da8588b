package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/germanamz/relnotes/pkg/credential"
	"github.com/germanamz/relnotes/pkg/engine"
	"github.com/germanamz/relnotes/pkg/server"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 10 * time.Second

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// newLogger logs JSON at INFO in production and text at DEBUG elsewhere.
// verbose forces DEBUG in production too.
func newLogger(environment string, verbose bool) *slog.Logger {
	if environment == "production" {
		opts := &slog.HandlerOptions{Level: slog.LevelInfo}
		if verbose {
			opts.Level = slog.LevelDebug
		}

		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// loadConfig reads the configuration and fills missing API keys from the
// keyring when credentials.keyring is enabled.
func loadConfig(path string) (engine.Config, error) {
	cfg, err := engine.LoadConfig(path)
	if err != nil {
		return engine.Config{}, err
	}

	if !cfg.Credentials.Keyring {
		return cfg, nil
	}

	store, err := credential.Open(cfg.Credentials.Dir)
	if err != nil {
		return engine.Config{}, err
	}

	if err := cfg.FillSecrets(store); err != nil {
		return engine.Config{}, err
	}

	return cfg, nil
}

// serve runs the HTTP service until SIGINT or SIGTERM, then drains in-flight
// requests for up to shutdownTimeout.
func serve(configPath, addr string, verbose bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Environment, verbose)
	slog.SetDefault(logger)

	eng, err := engine.New(ctx, cfg, engine.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	if addr == "" {
		addr = cfg.Server.Addr
	}

	srv := &http.Server{
		Addr: addr,
		Handler: server.New(eng, server.Options{
			Version:      version,
			APIKey:       cfg.Server.APIKey,
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
			Logger:       logger,
		}),
		ReadHeaderTimeout: 10 * time.Second, //nolint:mnd // slowloris guard
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", addr), slog.String("version", version))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer stop()

	return srv.Shutdown(shutdownCtx)
}

// runOnce performs a single run and prints the release notes.
func runOnce(configPath, project, fixVersion, issueType, maxResults string, verbose bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	req := engine.Request{Project: project, FixVersion: fixVersion, IssueType: issueType}

	if maxResults != "" {
		n, err := engine.ParseMaxResults(maxResults)
		if err != nil {
			return err
		}

		req.MaxResults = n
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.DiscardHandler)
	if verbose {
		logger = newLogger(cfg.Environment, true)
	}

	eng, err := engine.New(ctx, cfg, engine.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	var rep engine.Report
	var runErr error

	if verbose {
		sub := eng.Events().Subscribe(256) //nolint:mnd // progress lines only
		done := make(chan struct{})

		go func() {
			defer close(done)
			for ev := range sub.C {
				if line := progressLine(ev); line != "" {
					fmt.Fprintln(os.Stderr, line)
				}
			}
		}()

		rep, runErr = eng.Run(ctx, req)

		eng.Events().Unsubscribe(sub)
		<-done
	} else {
		rep, runErr = eng.Run(ctx, req)
	}

	if len(rep.Issues) > 0 {
		fmt.Println(renderMarkdown(rep))
	}

	fmt.Fprintln(os.Stderr, statusLine(rep, runErr))

	for _, w := range rep.Warnings {
		fmt.Fprintln(os.Stderr, warningStyle.Render("! "+w))
	}

	return runErr
}

// profiles prints the effective model profile and the adjustment preview of
// the configured parameters.
func profiles(configPath string, asJSON bool) error {
	ctx := context.Background()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	eng, err := engine.New(ctx, cfg, engine.WithLogger(slog.New(slog.DiscardHandler)))
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	view := server.BuildProfiles(eng)

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}

	fmt.Print(renderProfile(view))

	return nil
}
