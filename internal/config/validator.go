package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError is a single validation failure.
type ValidationError struct {
	Field   string // the config field path (e.g. "queue.max_concurrent")
	Value   any    // the invalid value
	Message string // human-readable description
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidScopes returns the recognized audit scope values.
func ValidScopes() []string {
	return []string{"diff", "paths", "workspace"}
}

// ValidLogLevels returns the recognized log levels.
func ValidLogLevels() []string {
	return []string{"DEBUG", "INFO", "WARN", "ERROR"}
}

// ValidSanitizerLevels returns the recognized sanitizer levels.
func ValidSanitizerLevels() []string {
	return []string{"minimal", "standard", "strict"}
}

// ValidTaskStrategies returns the recognized follow-up task orderings.
func ValidTaskStrategies() []string {
	return []string{"severity_first", "impact_based", "effort_weighted", "dependency_aware"}
}

// Validate checks the Config and returns all validation errors found.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	errs = append(errs, c.validateSession()...)
	errs = append(errs, c.validateCache()...)
	errs = append(errs, c.validateQueue()...)
	errs = append(errs, c.validateCompletion()...)
	errs = append(errs, c.validateStagnation()...)
	errs = append(errs, c.validateMisc()...)

	return errs
}

func (c *Config) validateSession() []ValidationError {
	var errs []ValidationError
	if c.Session.Threshold < 0 || c.Session.Threshold > 100 {
		errs = append(errs, ValidationError{
			Field: "session.threshold", Value: c.Session.Threshold,
			Message: "must be within 0..100",
		})
	}
	if c.Session.MaxCycles < 1 {
		errs = append(errs, ValidationError{
			Field: "session.max_cycles", Value: c.Session.MaxCycles,
			Message: "must be at least 1",
		})
	}
	if c.Session.Candidates < 1 {
		errs = append(errs, ValidationError{
			Field: "session.candidates", Value: c.Session.Candidates,
			Message: "must be at least 1",
		})
	}
	if !slices.Contains(ValidScopes(), c.Session.Scope) {
		errs = append(errs, ValidationError{
			Field: "session.scope", Value: c.Session.Scope,
			Message: fmt.Sprintf("must be one of %v", ValidScopes()),
		})
	}
	return errs
}

func (c *Config) validateCache() []ValidationError {
	var errs []ValidationError
	if c.Cache.Capacity < 1 {
		errs = append(errs, ValidationError{
			Field: "cache.capacity", Value: c.Cache.Capacity,
			Message: "must be at least 1",
		})
	}
	if c.Cache.TTLMinutes < 1 {
		errs = append(errs, ValidationError{
			Field: "cache.ttl_minutes", Value: c.Cache.TTLMinutes,
			Message: "must be at least 1",
		})
	}
	return errs
}

func (c *Config) validateQueue() []ValidationError {
	var errs []ValidationError
	if c.Queue.MaxConcurrent < 1 {
		errs = append(errs, ValidationError{
			Field: "queue.max_concurrent", Value: c.Queue.MaxConcurrent,
			Message: "must be at least 1",
		})
	}
	if c.Queue.MaxQueueSize < 1 {
		errs = append(errs, ValidationError{
			Field: "queue.max_queue_size", Value: c.Queue.MaxQueueSize,
			Message: "must be at least 1",
		})
	}
	if c.Queue.JobTimeoutSeconds < 1 {
		errs = append(errs, ValidationError{
			Field: "queue.job_timeout_seconds", Value: c.Queue.JobTimeoutSeconds,
			Message: "must be at least 1",
		})
	}
	if c.Queue.MaxRetries < -1 {
		errs = append(errs, ValidationError{
			Field: "queue.max_retries", Value: c.Queue.MaxRetries,
			Message: "must be -1 (disabled) or a non-negative retry budget",
		})
	}
	return errs
}

func (c *Config) validateCompletion() []ValidationError {
	var errs []ValidationError
	if c.Completion.MaxLoops < 1 {
		errs = append(errs, ValidationError{
			Field: "completion.max_loops", Value: c.Completion.MaxLoops,
			Message: "must be at least 1",
		})
	}
	if len(c.Completion.Tiers) == 0 {
		errs = append(errs, ValidationError{
			Field: "completion.tiers", Value: c.Completion.Tiers,
			Message: "at least one tier is required",
		})
		return errs
	}
	for i, tier := range c.Completion.Tiers {
		field := fmt.Sprintf("completion.tiers[%d]", i)
		if tier.Score < 0 || tier.Score > 100 {
			errs = append(errs, ValidationError{
				Field: field + ".score", Value: tier.Score,
				Message: "must be within 0..100",
			})
		}
		if tier.MinLoop < 0 {
			errs = append(errs, ValidationError{
				Field: field + ".min_loop", Value: tier.MinLoop,
				Message: "must not be negative",
			})
		}
		if i > 0 && tier.MinLoop <= c.Completion.Tiers[i-1].MinLoop {
			errs = append(errs, ValidationError{
				Field: field + ".min_loop", Value: tier.MinLoop,
				Message: "tier min_loops must be strictly increasing",
			})
		}
	}
	return errs
}

func (c *Config) validateStagnation() []ValidationError {
	var errs []ValidationError
	if c.Stagnation.MinIterations < 2 {
		errs = append(errs, ValidationError{
			Field: "stagnation.min_iterations", Value: c.Stagnation.MinIterations,
			Message: "must be at least 2",
		})
	}
	if c.Stagnation.StartLoop < 0 {
		errs = append(errs, ValidationError{
			Field: "stagnation.start_loop", Value: c.Stagnation.StartLoop,
			Message: "must not be negative",
		})
	}
	if c.Stagnation.Threshold <= 0 || c.Stagnation.Threshold > 1 {
		errs = append(errs, ValidationError{
			Field: "stagnation.threshold", Value: c.Stagnation.Threshold,
			Message: "must be within (0, 1]",
		})
	}
	if c.Stagnation.Window < 2 {
		errs = append(errs, ValidationError{
			Field: "stagnation.window", Value: c.Stagnation.Window,
			Message: "must be at least 2",
		})
	}
	return errs
}

func (c *Config) validateMisc() []ValidationError {
	var errs []ValidationError
	if !slices.Contains(ValidSanitizerLevels(), c.Sanitizer.Level) {
		errs = append(errs, ValidationError{
			Field: "sanitizer.level", Value: c.Sanitizer.Level,
			Message: fmt.Sprintf("must be one of %v", ValidSanitizerLevels()),
		})
	}
	if c.Sanitizer.MaxPathDepth < 1 {
		errs = append(errs, ValidationError{
			Field: "sanitizer.max_path_depth", Value: c.Sanitizer.MaxPathDepth,
			Message: "must be at least 1",
		})
	}
	if c.Progress.ActivationThresholdSeconds < 0 {
		errs = append(errs, ValidationError{
			Field: "progress.activation_threshold_seconds", Value: c.Progress.ActivationThresholdSeconds,
			Message: "must not be negative",
		})
	}
	if c.Store.MaxSessionAgeHours < 1 {
		errs = append(errs, ValidationError{
			Field: "store.max_session_age_hours", Value: c.Store.MaxSessionAgeHours,
			Message: "must be at least 1",
		})
	}
	if c.Store.GCIntervalMinutes < 1 {
		errs = append(errs, ValidationError{
			Field: "store.gc_interval_minutes", Value: c.Store.GCIntervalMinutes,
			Message: "must be at least 1",
		})
	}
	if c.Output.SectionTimeoutSeconds < 1 {
		errs = append(errs, ValidationError{
			Field: "output.section_timeout_seconds", Value: c.Output.SectionTimeoutSeconds,
			Message: "must be at least 1",
		})
	}
	if !slices.Contains(ValidTaskStrategies(), c.Output.TaskStrategy) {
		errs = append(errs, ValidationError{
			Field: "output.task_strategy", Value: c.Output.TaskStrategy,
			Message: fmt.Sprintf("must be one of %v", ValidTaskStrategies()),
		})
	}
	if c.Output.MaxEvidenceEntries < 1 {
		errs = append(errs, ValidationError{
			Field: "output.max_evidence_entries", Value: c.Output.MaxEvidenceEntries,
			Message: "must be at least 1",
		})
	}
	if !slices.Contains(ValidLogLevels(), strings.ToUpper(c.Logging.Level)) {
		errs = append(errs, ValidationError{
			Field: "logging.level", Value: c.Logging.Level,
			Message: fmt.Sprintf("must be one of %v", ValidLogLevels()),
		})
	}
	return errs
}
