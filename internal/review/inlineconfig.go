package review

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Iron-Ham/gavel/internal/errors"
)

// inlineConfigPattern matches a fenced block labeled gan-config embedded
// in the artifact text.
var inlineConfigPattern = regexp.MustCompile("(?s)```gan-config\\s*\n(.*?)\n?```")

// ExtractInlineConfig returns the contents of the first gan-config fenced
// block in the artifact, or ok=false when none is present.
func ExtractInlineConfig(artifact string) (string, bool) {
	matches := inlineConfigPattern.FindStringSubmatch(artifact)
	if len(matches) < 2 {
		return "", false
	}
	return matches[1], true
}

// MergeInlineConfig parses key=value lines from an inline configuration
// block and merges them over the base session configuration. Unknown keys
// are ignored with a warning; out-of-range values are clamped with a
// warning. The returned changed flag tells the orchestrator whether the
// session config needs to be written back.
func MergeInlineConfig(base SessionConfig, configText string) (merged SessionConfig, warnings []Warning, changed bool) {
	merged = base

	warn := func(format string, args ...any) {
		warnings = append(warnings, Warning{
			Code:    string(errors.CodeConfigWarning),
			Message: fmt.Sprintf(format, args...),
		})
	}

	for _, line := range strings.Split(configText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			warn("inline config line %q is not key=value; ignored", line)
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "task":
			if value != base.Task {
				merged.Task = value
				changed = true
			}
		case "scope":
			scope := Scope(strings.ToLower(value))
			if !ValidScope(scope) {
				warn("inline config scope %q is not one of diff|paths|workspace; keeping %q", value, merged.Scope)
				continue
			}
			if scope != base.Scope {
				merged.Scope = scope
				changed = true
			}
		case "paths":
			paths := splitCSV(value)
			if !equalStrings(paths, base.Paths) {
				merged.Paths = paths
				changed = true
			}
		case "threshold":
			n, err := strconv.Atoi(value)
			if err != nil {
				warn("inline config threshold %q is not a number; keeping %d", value, merged.Threshold)
				continue
			}
			clamped := clampInt(n, 0, 100)
			if clamped != n {
				warn("inline config threshold %d out of range 0..100; clamped to %d", n, clamped)
			}
			if clamped != base.Threshold {
				merged.Threshold = clamped
				changed = true
			}
		case "maxcycles":
			n, err := strconv.Atoi(value)
			if err != nil {
				warn("inline config maxCycles %q is not a number; keeping %d", value, merged.MaxCycles)
				continue
			}
			clamped := n
			if clamped < 1 {
				clamped = 1
				warn("inline config maxCycles %d must be >= 1; clamped to 1", n)
			}
			if clamped != base.MaxCycles {
				merged.MaxCycles = clamped
				changed = true
			}
		case "candidates":
			n, err := strconv.Atoi(value)
			if err != nil {
				warn("inline config candidates %q is not a number; keeping %d", value, merged.Candidates)
				continue
			}
			clamped := n
			if clamped < 1 {
				clamped = 1
				warn("inline config candidates %d must be >= 1; clamped to 1", n)
			}
			if clamped != base.Candidates {
				merged.Candidates = clamped
				changed = true
			}
		case "judges":
			judges := splitCSV(value)
			if !equalStrings(judges, base.Judges) {
				merged.Judges = judges
				changed = true
			}
		case "applyfixes":
			b, err := strconv.ParseBool(value)
			if err != nil {
				warn("inline config applyFixes %q is not a bool; keeping %v", value, merged.ApplyFixes)
				continue
			}
			if b != base.ApplyFixes {
				merged.ApplyFixes = b
				changed = true
			}
		default:
			warn("inline config key %q is not recognized; ignored", key)
		}
	}

	// A scope=paths override without paths is invalid; fall back.
	if merged.Scope == ScopePaths && len(merged.Paths) == 0 {
		warn("inline config selected scope=paths without paths; keeping scope %q", base.Scope)
		merged.Scope = base.Scope
		if !ValidScope(merged.Scope) || (merged.Scope == ScopePaths && len(merged.Paths) == 0) {
			merged.Scope = ScopeDiff
		}
	}

	return merged, warnings, changed
}

// splitCSV splits a comma-separated value list, trimming whitespace and
// dropping empty entries.
func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func clampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
