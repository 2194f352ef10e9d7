// Package config loads and validates the gavel engine configuration via
// viper: defaults, an optional .gavel.yaml in the working directory or
// home, and GAVEL_* environment overrides, in increasing precedence.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete gavel configuration.
type Config struct {
	Session    SessionConfig    `mapstructure:"session"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Completion CompletionConfig `mapstructure:"completion"`
	Stagnation StagnationConfig `mapstructure:"stagnation"`
	Sanitizer  SanitizerConfig  `mapstructure:"sanitizer"`
	Progress   ProgressConfig   `mapstructure:"progress"`
	Store      StoreConfig      `mapstructure:"store"`
	Output     OutputConfig     `mapstructure:"output"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// SessionConfig sets the per-session audit defaults. Inline gan-config
// blocks override these per session.
type SessionConfig struct {
	// Threshold is the ship threshold applied by the score assembler (0-100)
	Threshold int `mapstructure:"threshold"`
	// MaxCycles is the default adversarial cycle budget per thought
	MaxCycles int `mapstructure:"max_cycles"`
	// Candidates is the default number of candidate revisions per cycle
	Candidates int `mapstructure:"candidates"`
	// Scope selects what the audit covers: "diff", "paths", or "workspace"
	Scope string `mapstructure:"scope"`
}

// CacheConfig sizes the result cache.
type CacheConfig struct {
	// Capacity is the maximum number of cached reviews
	Capacity int `mapstructure:"capacity"`
	// TTLMinutes is how long a cached review stays valid
	TTLMinutes int `mapstructure:"ttl_minutes"`
}

// TTL returns the cache TTL as a time.Duration.
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// QueueConfig controls the audit queue.
type QueueConfig struct {
	// MaxConcurrent is the worker pool size
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// MaxQueueSize is the pending backlog limit before ErrQueueFull
	MaxQueueSize int `mapstructure:"max_queue_size"`
	// JobTimeoutSeconds bounds each judge run
	JobTimeoutSeconds int `mapstructure:"job_timeout_seconds"`
	// MaxRetries is the retry budget for retryable job failures (-1 disables)
	MaxRetries int `mapstructure:"max_retries"`
}

// JobTimeout returns the per-job deadline as a time.Duration.
func (c *QueueConfig) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSeconds) * time.Second
}

// TierConfig is one rung of the graduated completion schedule.
type TierConfig struct {
	// MinLoop is the loop count at which this rung takes effect
	MinLoop int `mapstructure:"min_loop"`
	// Score is the completion threshold at or past MinLoop
	Score int `mapstructure:"score"`
}

// CompletionConfig controls session termination.
type CompletionConfig struct {
	// MaxLoops is the hard iteration ceiling
	MaxLoops int `mapstructure:"max_loops"`
	// Tiers is the graduated threshold schedule, strictly increasing MinLoop
	Tiers []TierConfig `mapstructure:"tiers"`
}

// StagnationConfig controls the similarity analyzer.
type StagnationConfig struct {
	// MinIterations is the history needed before stagnation can be declared
	MinIterations int `mapstructure:"min_iterations"`
	// StartLoop is the loop count before which stagnation is never declared
	StartLoop int `mapstructure:"start_loop"`
	// Threshold is the average similarity above which a session is stagnant
	Threshold float64 `mapstructure:"threshold"`
	// Window is how many recent iterations the analyzer keeps
	Window int `mapstructure:"window"`
}

// SanitizerConfig controls output scrubbing.
type SanitizerConfig struct {
	// Level is the scrubbing level: minimal, standard, or strict
	Level string `mapstructure:"level"`
	// MaxPathDepth is how many trailing path segments survive anonymization
	MaxPathDepth int `mapstructure:"max_path_depth"`
}

// ProgressConfig controls the progress tracker.
type ProgressConfig struct {
	// ActivationThresholdSeconds is how long an audit runs before its
	// progress is published
	ActivationThresholdSeconds int `mapstructure:"activation_threshold_seconds"`
}

// ActivationThreshold returns the activation threshold as a time.Duration.
func (c *ProgressConfig) ActivationThreshold() time.Duration {
	return time.Duration(c.ActivationThresholdSeconds) * time.Second
}

// StoreConfig controls the session journal store.
type StoreConfig struct {
	// Dir is the state directory; empty uses .mcp-gan-state in the cwd
	Dir string `mapstructure:"dir"`
	// MaxSessionAgeHours is how long an untouched session survives GC
	MaxSessionAgeHours int `mapstructure:"max_session_age_hours"`
	// GCIntervalMinutes is how often the background GC runs
	GCIntervalMinutes int `mapstructure:"gc_interval_minutes"`
}

// MaxSessionAge returns the GC age cutoff as a time.Duration.
func (c *StoreConfig) MaxSessionAge() time.Duration {
	return time.Duration(c.MaxSessionAgeHours) * time.Hour
}

// GCInterval returns the GC cadence as a time.Duration.
func (c *StoreConfig) GCInterval() time.Duration {
	return time.Duration(c.GCIntervalMinutes) * time.Minute
}

// OutputConfig controls the structured output builder.
type OutputConfig struct {
	// SectionTimeoutSeconds bounds each section generator
	SectionTimeoutSeconds int `mapstructure:"section_timeout_seconds"`
	// TaskStrategy orders follow-up tasks: "severity_first",
	// "impact_based", "effort_weighted", or "dependency_aware"
	TaskStrategy string `mapstructure:"task_strategy"`
	// MaxEvidenceEntries caps the evidence table
	MaxEvidenceEntries int `mapstructure:"max_evidence_entries"`
	// GroupEvidenceByFile orders evidence by location instead of severity
	GroupEvidenceByFile bool `mapstructure:"group_evidence_by_file"`
}

// SectionTimeout returns the per-section deadline as a time.Duration.
func (c *OutputConfig) SectionTimeout() time.Duration {
	return time.Duration(c.SectionTimeoutSeconds) * time.Second
}

// LoggingConfig controls engine logging.
type LoggingConfig struct {
	// Level is the log level: "DEBUG", "INFO", "WARN", "ERROR"
	Level string `mapstructure:"level"`
	// Dir is the log directory; empty logs to stderr
	Dir string `mapstructure:"dir"`
}

// Default returns a Config with the documented default values.
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			Threshold:  85,
			MaxCycles:  1,
			Candidates: 1,
			Scope:      "diff",
		},
		Cache: CacheConfig{
			Capacity:   256,
			TTLMinutes: 30,
		},
		Queue: QueueConfig{
			MaxConcurrent:     3,
			MaxQueueSize:      50,
			JobTimeoutSeconds: 30,
			MaxRetries:        2,
		},
		Completion: CompletionConfig{
			MaxLoops: 25,
			Tiers: []TierConfig{
				{MinLoop: 0, Score: 95},
				{MinLoop: 15, Score: 90},
				{MinLoop: 20, Score: 85},
			},
		},
		Stagnation: StagnationConfig{
			MinIterations: 3,
			StartLoop:     10,
			Threshold:     0.95,
			Window:        5,
		},
		Sanitizer: SanitizerConfig{
			Level:        "standard",
			MaxPathDepth: 5,
		},
		Progress: ProgressConfig{
			ActivationThresholdSeconds: 5,
		},
		Store: StoreConfig{
			Dir:                "",
			MaxSessionAgeHours: 24,
			GCIntervalMinutes:  60,
		},
		Output: OutputConfig{
			SectionTimeoutSeconds: 10,
			TaskStrategy:          "severity_first",
			MaxEvidenceEntries:    20,
		},
		Logging: LoggingConfig{
			Level: "INFO",
			Dir:   "",
		},
	}
}

// SetDefaults registers default values with viper.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("session.threshold", defaults.Session.Threshold)
	viper.SetDefault("session.max_cycles", defaults.Session.MaxCycles)
	viper.SetDefault("session.candidates", defaults.Session.Candidates)
	viper.SetDefault("session.scope", defaults.Session.Scope)

	viper.SetDefault("cache.capacity", defaults.Cache.Capacity)
	viper.SetDefault("cache.ttl_minutes", defaults.Cache.TTLMinutes)

	viper.SetDefault("queue.max_concurrent", defaults.Queue.MaxConcurrent)
	viper.SetDefault("queue.max_queue_size", defaults.Queue.MaxQueueSize)
	viper.SetDefault("queue.job_timeout_seconds", defaults.Queue.JobTimeoutSeconds)
	viper.SetDefault("queue.max_retries", defaults.Queue.MaxRetries)

	viper.SetDefault("completion.max_loops", defaults.Completion.MaxLoops)
	tiers := make([]map[string]any, 0, len(defaults.Completion.Tiers))
	for _, t := range defaults.Completion.Tiers {
		tiers = append(tiers, map[string]any{"min_loop": t.MinLoop, "score": t.Score})
	}
	viper.SetDefault("completion.tiers", tiers)

	viper.SetDefault("stagnation.min_iterations", defaults.Stagnation.MinIterations)
	viper.SetDefault("stagnation.start_loop", defaults.Stagnation.StartLoop)
	viper.SetDefault("stagnation.threshold", defaults.Stagnation.Threshold)
	viper.SetDefault("stagnation.window", defaults.Stagnation.Window)

	viper.SetDefault("sanitizer.level", defaults.Sanitizer.Level)
	viper.SetDefault("sanitizer.max_path_depth", defaults.Sanitizer.MaxPathDepth)

	viper.SetDefault("progress.activation_threshold_seconds", defaults.Progress.ActivationThresholdSeconds)

	viper.SetDefault("store.dir", defaults.Store.Dir)
	viper.SetDefault("store.max_session_age_hours", defaults.Store.MaxSessionAgeHours)
	viper.SetDefault("store.gc_interval_minutes", defaults.Store.GCIntervalMinutes)

	viper.SetDefault("output.section_timeout_seconds", defaults.Output.SectionTimeoutSeconds)
	viper.SetDefault("output.task_strategy", defaults.Output.TaskStrategy)
	viper.SetDefault("output.max_evidence_entries", defaults.Output.MaxEvidenceEntries)
	viper.SetDefault("output.group_evidence_by_file", defaults.Output.GroupEvidenceByFile)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Init wires viper to the .gavel.yaml config file (working directory,
// then home) and GAVEL_* environment overrides. A missing config file is
// not an error.
func Init() error {
	SetDefaults()

	viper.SetConfigName(".gavel")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME")

	viper.SetEnvPrefix("GAVEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// Load reads the configuration from viper and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when
// loading fails.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}
