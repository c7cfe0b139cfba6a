package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobscout/internal/backend"
	"github.com/amishk599/jobscout/internal/config"
	"github.com/amishk599/jobscout/internal/export"
	"github.com/amishk599/jobscout/internal/model"
	"github.com/amishk599/jobscout/internal/profile"
	"github.com/amishk599/jobscout/internal/ratelimit"
	"github.com/amishk599/jobscout/internal/retry"
	"github.com/amishk599/jobscout/internal/session"
	"github.com/amishk599/jobscout/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobscout",
	Short: "Find jobs and tailor your resume from the terminal",
	Long:  "jobscout streams job postings from the search backend, dedups them across live and paged results, and tailors your resume to each posting.",
	// Default to `search` so that `jobscout` with no args opens the TUI.
	RunE:         runSearch,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBSCOUT_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	addSearchFlags(rootCmd)
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > JOBSCOUT_CONFIG env var > "./config.yaml".
// A missing ./config.yaml falls back to built-in defaults; a missing
// explicit path is an error.
func loadConfig(path string) (*config.Config, error) {
	explicit := path != ""
	if !explicit {
		if env := os.Getenv("JOBSCOUT_CONFIG"); env != "" {
			path, explicit = env, true
		} else {
			path = "config.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

func mustLoadConfig(logger *slog.Logger) *config.Config {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogger(dbg bool) *slog.Logger {
	return newLogger(os.Stdout, dbg)
}

func newLogger(w io.Writer, dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

// setupTUILogger returns a logger that never writes to the terminal: the
// TUI owns the screen and any log output corrupts the display.
func setupTUILogger(cfg *config.Config, dbg bool) (*slog.Logger, func(), error) {
	if cfg.Log.File == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return newLogger(f, dbg), func() { f.Close() }, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

type persister interface {
	profile.Persister
	Close() error
}

// openStore opens the profile store, or a no-op store for ephemeral runs.
func openStore(cfg *config.Config, logger *slog.Logger) (persister, error) {
	if cfg.Store.Ephemeral {
		logger.Debug("ephemeral mode, profile will not be persisted")
		return store.NewNopStore(), nil
	}
	s, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newBackend(cfg *config.Config, logger *slog.Logger) *backend.Client {
	limiter := ratelimit.NewEndpointLimiter(cfg.RateLimit.MinDelay, cfg.RateLimit.EndpointOverrides)
	logger.Debug("backend configured",
		"base_url", cfg.Backend.BaseURL,
		"timeout", cfg.Backend.Timeout.String(),
		"min_delay", cfg.RateLimit.MinDelay.String(),
	)
	return backend.NewClient(backend.Config{
		BaseURL:     cfg.Backend.BaseURL,
		Timeout:     cfg.Backend.Timeout,
		UploadLimit: cfg.Backend.UploadLimit,
		RenderJD:    cfg.Pipeline.RenderJD,
	}, limiter, logger)
}

// app bundles everything a command needs to drive a session.
type app struct {
	cfg      *config.Config
	client   *backend.Client
	store    persister
	profiles *profile.Store
	logger   *slog.Logger
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	st, err := openStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	client := newBackend(cfg, logger)
	profiles := profile.NewStore(st, client, logger)
	if err := profiles.Load(); err != nil {
		st.Close()
		return nil, err
	}
	return &app{cfg: cfg, client: client, store: st, profiles: profiles, logger: logger}, nil
}

func (a *app) Close() {
	a.store.Close()
}

// newSession wires a session around display. Transient failures of the
// batch and JD calls are retried; the live stream is never retried.
func (a *app) newSession(display model.Display) *session.Session {
	policy := retry.NewPolicy(a.cfg.Retry.MaxRetries, a.cfg.Retry.BaseDelay, a.logger)
	return session.New(session.Deps{
		Subscriber:   a.client,
		Batches:      retry.NewBatchSource(a.client, policy),
		JD:           retry.NewJDFetcher(a.client, policy),
		Matcher:      a.client,
		Renderer:     a.client,
		Profiles:     a.profiles,
		Writer:       export.NewWriter(a.cfg.Export.Dir, a.logger),
		Render:       a.cfg.Pipeline.RenderOptions(),
		IdleAdvisory: a.cfg.Search.IdleAdvisory,
	}, display, a.logger)
}
