package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/amishk599/jobscout/internal/model"
)

// Config is the root configuration for jobscout.
type Config struct {
	Backend   BackendConfig
	Search    SearchConfig
	Pipeline  PipelineConfig
	Export    ExportConfig
	RateLimit RateLimitConfig
	Retry     RetryConfig
	Store     StoreConfig
	Log       LogConfig
}

// BackendConfig locates the collaborator API.
type BackendConfig struct {
	BaseURL     string
	Timeout     time.Duration // per request; the job stream is unbounded
	UploadLimit int64         // max resume upload in bytes
}

// SearchConfig holds the defaults pre-filled into a new search.
type SearchConfig struct {
	Titles       []string
	Keywords     []string
	Locations    []string
	Allocation   map[string]int
	Limit        int
	IdleAdvisory time.Duration // advise narrowing filters after this long without results
}

// PipelineConfig controls the JD fetch and resume render calls.
type PipelineConfig struct {
	RenderJD   bool
	TemplateID string
	Language   string
	Polish     bool
}

// RenderOptions returns the resume template settings.
func (p PipelineConfig) RenderOptions() model.RenderOptions {
	return model.RenderOptions{TemplateID: p.TemplateID, Language: p.Language, Polish: p.Polish}
}

// ExportConfig controls where exported resumes are written.
type ExportConfig struct {
	Dir    string
	Format model.ExportFormat
}

// RateLimitConfig controls per-endpoint request pacing.
type RateLimitConfig struct {
	MinDelay          time.Duration            // minimum gap between requests to the same endpoint group
	EndpointOverrides map[string]time.Duration // per-group overrides, keyed by group name
}

// MinDelayFor returns the configured delay for the given endpoint group, falling back to MinDelay.
func (r RateLimitConfig) MinDelayFor(group string) time.Duration {
	if d, ok := r.EndpointOverrides[group]; ok {
		return d
	}
	return r.MinDelay
}

// RetryConfig controls backoff for transient backend failures.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// StoreConfig controls profile persistence.
type StoreConfig struct {
	Path      string
	Ephemeral bool // keep the profile in memory only
}

// LogConfig controls where logs go while the TUI owns the terminal.
type LogConfig struct {
	File string `yaml:"file"` // empty discards logs in TUI mode
}

const (
	defaultBaseURL     = "http://localhost:8000"
	defaultTimeout     = 60 * time.Second
	defaultUploadLimit = 10 << 20
	defaultLimit       = 10
	defaultTemplateID  = "resume-ats-en"
	defaultLanguage    = "en"
	defaultExportDir   = "exports"
	defaultStorePath   = "jobscout.db"
	defaultMaxRetries  = 3
	defaultBaseDelay   = 1 * time.Second
	defaultIdle        = 5 * time.Second
)

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	Backend   rawBackendConfig   `yaml:"backend"`
	Search    rawSearchConfig    `yaml:"search"`
	Pipeline  rawPipelineConfig  `yaml:"pipeline"`
	Export    rawExportConfig    `yaml:"export"`
	RateLimit rawRateLimitConfig `yaml:"rate_limit"`
	Retry     rawRetryConfig     `yaml:"retry"`
	Store     rawStoreConfig     `yaml:"store"`
	Log       LogConfig          `yaml:"log"`
}

type rawBackendConfig struct {
	BaseURL     string `yaml:"base_url"`
	Timeout     string `yaml:"timeout"`
	UploadLimit int64  `yaml:"upload_limit"`
}

type rawSearchConfig struct {
	Titles       []string       `yaml:"titles"`
	Keywords     []string       `yaml:"keywords"`
	Locations    []string       `yaml:"locations"`
	Allocation   map[string]int `yaml:"allocation"`
	Limit        int            `yaml:"limit"`
	IdleAdvisory string         `yaml:"idle_advisory"`
}

type rawPipelineConfig struct {
	RenderJD   bool   `yaml:"render_jd"`
	TemplateID string `yaml:"template_id"`
	Language   string `yaml:"language"`
	Polish     *bool  `yaml:"polish"`
}

type rawExportConfig struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"`
}

type rawRateLimitConfig struct {
	MinDelay          string            `yaml:"min_delay"`
	EndpointOverrides map[string]string `yaml:"endpoint_overrides"`
}

type rawRetryConfig struct {
	MaxRetries *int   `yaml:"max_retries"`
	BaseDelay  string `yaml:"base_delay"`
}

type rawStoreConfig struct {
	Path      string `yaml:"path"`
	Ephemeral bool   `yaml:"ephemeral"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg, err := build(rawConfig{})
	if err != nil {
		// The zero raw config only takes defaults.
		panic(err)
	}
	return cfg
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
// A .env file in the working directory, if present, is loaded into the
// environment first so ${VAR} references can use it.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return build(raw)
}

func build(raw rawConfig) (*Config, error) {
	timeout, err := parseDuration("backend.timeout", raw.Backend.Timeout, defaultTimeout)
	if err != nil {
		return nil, err
	}
	idle, err := parseDuration("search.idle_advisory", raw.Search.IdleAdvisory, defaultIdle)
	if err != nil {
		return nil, err
	}
	minDelay, err := parseDuration("rate_limit.min_delay", raw.RateLimit.MinDelay, 0)
	if err != nil {
		return nil, err
	}
	baseDelay, err := parseDuration("retry.base_delay", raw.Retry.BaseDelay, defaultBaseDelay)
	if err != nil {
		return nil, err
	}

	overrides := make(map[string]time.Duration)
	for group, raw := range raw.RateLimit.EndpointOverrides {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("parse rate_limit.endpoint_overrides[%q]: %w", group, err)
		}
		overrides[group] = d
	}

	format := model.FormatPDF
	if raw.Export.Format != "" {
		format, err = model.ParseExportFormat(raw.Export.Format)
		if err != nil {
			return nil, fmt.Errorf("export.format: %w", err)
		}
	}

	maxRetries := defaultMaxRetries
	if raw.Retry.MaxRetries != nil {
		maxRetries = *raw.Retry.MaxRetries
	}
	polish := true
	if raw.Pipeline.Polish != nil {
		polish = *raw.Pipeline.Polish
	}

	cfg := &Config{
		Backend: BackendConfig{
			BaseURL:     orDefault(raw.Backend.BaseURL, defaultBaseURL),
			Timeout:     timeout,
			UploadLimit: raw.Backend.UploadLimit,
		},
		Search: SearchConfig{
			Titles:       raw.Search.Titles,
			Keywords:     raw.Search.Keywords,
			Locations:    raw.Search.Locations,
			Allocation:   raw.Search.Allocation,
			Limit:        raw.Search.Limit,
			IdleAdvisory: idle,
		},
		Pipeline: PipelineConfig{
			RenderJD:   raw.Pipeline.RenderJD,
			TemplateID: orDefault(raw.Pipeline.TemplateID, defaultTemplateID),
			Language:   orDefault(raw.Pipeline.Language, defaultLanguage),
			Polish:     polish,
		},
		Export: ExportConfig{
			Dir:    orDefault(raw.Export.Dir, defaultExportDir),
			Format: format,
		},
		RateLimit: RateLimitConfig{
			MinDelay:          minDelay,
			EndpointOverrides: overrides,
		},
		Retry: RetryConfig{
			MaxRetries: maxRetries,
			BaseDelay:  baseDelay,
		},
		Store: StoreConfig{
			Path:      orDefault(raw.Store.Path, defaultStorePath),
			Ephemeral: raw.Store.Ephemeral,
		},
		Log: raw.Log,
	}
	if cfg.Backend.UploadLimit == 0 {
		cfg.Backend.UploadLimit = defaultUploadLimit
	}
	if cfg.Search.Limit == 0 {
		cfg.Search.Limit = defaultLimit
	}
	if cfg.Search.Allocation == nil {
		cfg.Search.Allocation = map[string]int{"seek": 5, "linkedin": 5}
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseDuration(field, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, raw, err)
	}
	return d, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func validate(cfg *Config) error {
	u, err := url.Parse(cfg.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an http(s) URL, got %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive, got %v", cfg.Backend.Timeout)
	}
	if cfg.Backend.UploadLimit < 0 {
		return fmt.Errorf("backend.upload_limit must not be negative, got %d", cfg.Backend.UploadLimit)
	}

	if cfg.Search.Limit < 1 || cfg.Search.Limit > 100 {
		return fmt.Errorf("search.limit must be between 1 and 100, got %d", cfg.Search.Limit)
	}
	for src, n := range cfg.Search.Allocation {
		if n < 0 || n > 50 {
			return fmt.Errorf("search.allocation.%s must be between 0 and 50, got %d", src, n)
		}
	}
	if cfg.Search.IdleAdvisory <= 0 {
		return fmt.Errorf("search.idle_advisory must be positive, got %v", cfg.Search.IdleAdvisory)
	}

	if cfg.RateLimit.MinDelay < 0 {
		return fmt.Errorf("rate_limit.min_delay must not be negative, got %v", cfg.RateLimit.MinDelay)
	}
	if cfg.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative, got %d", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.BaseDelay <= 0 {
		return fmt.Errorf("retry.base_delay must be positive, got %v", cfg.Retry.BaseDelay)
	}

	return nil
}
