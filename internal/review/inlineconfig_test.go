package review

import (
	"strings"
	"testing"
)

func TestExtractInlineConfig(t *testing.T) {
	artifact := "some code here\n```gan-config\nthreshold=90\nscope=workspace\n```\nmore code"
	text, ok := ExtractInlineConfig(artifact)
	if !ok {
		t.Fatal("expected to find a gan-config block")
	}
	if !strings.Contains(text, "threshold=90") {
		t.Errorf("extracted text = %q", text)
	}

	if _, ok := ExtractInlineConfig("no config block here"); ok {
		t.Error("should not find a block in plain text")
	}
}

func TestMergeInlineConfigAppliesKnownKeys(t *testing.T) {
	base := DefaultSessionConfig()
	merged, warnings, changed := MergeInlineConfig(base,
		"task=fix the parser\nscope=workspace\nthreshold=92\nmaxCycles=3\ncandidates=2\njudges=alpha,beta\napplyFixes=true")

	if !changed {
		t.Fatal("expected changed=true")
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	if merged.Task != "fix the parser" {
		t.Errorf("task = %q", merged.Task)
	}
	if merged.Scope != ScopeWorkspace {
		t.Errorf("scope = %q", merged.Scope)
	}
	if merged.Threshold != 92 {
		t.Errorf("threshold = %d", merged.Threshold)
	}
	if merged.MaxCycles != 3 || merged.Candidates != 2 {
		t.Errorf("maxCycles=%d candidates=%d", merged.MaxCycles, merged.Candidates)
	}
	if len(merged.Judges) != 2 || merged.Judges[0] != "alpha" || merged.Judges[1] != "beta" {
		t.Errorf("judges = %v", merged.Judges)
	}
	if !merged.ApplyFixes {
		t.Error("applyFixes should be true")
	}
}

func TestMergeInlineConfigClampsAndWarns(t *testing.T) {
	base := DefaultSessionConfig()
	merged, warnings, _ := MergeInlineConfig(base, "threshold=150\nmaxCycles=0")

	if merged.Threshold != 100 {
		t.Errorf("threshold = %d, want clamped 100", merged.Threshold)
	}
	if merged.MaxCycles != 1 {
		t.Errorf("maxCycles = %d, want clamped 1", merged.MaxCycles)
	}
	if len(warnings) != 2 {
		t.Errorf("expected 2 clamp warnings, got %v", warnings)
	}
	for _, w := range warnings {
		if w.Code != "ConfigWarning" {
			t.Errorf("warning code = %q, want ConfigWarning", w.Code)
		}
	}
}

func TestMergeInlineConfigUnknownKeysWarnAndIgnore(t *testing.T) {
	base := DefaultSessionConfig()
	merged, warnings, changed := MergeInlineConfig(base, "flavor=spicy")

	if changed {
		t.Error("unknown keys must not change the config")
	}
	if merged.Digest() != base.Digest() {
		t.Errorf("config changed: %+v", merged)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0].Message, "flavor") {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestMergeInlineConfigInvalidValuesKeepBase(t *testing.T) {
	base := DefaultSessionConfig()
	merged, warnings, _ := MergeInlineConfig(base, "threshold=ninety\nscope=galaxy\napplyFixes=maybe")

	if merged.Threshold != base.Threshold {
		t.Errorf("threshold = %d, want base %d", merged.Threshold, base.Threshold)
	}
	if merged.Scope != base.Scope {
		t.Errorf("scope = %q, want base %q", merged.Scope, base.Scope)
	}
	if merged.ApplyFixes != base.ApplyFixes {
		t.Error("applyFixes should keep base value")
	}
	if len(warnings) != 3 {
		t.Errorf("expected 3 warnings, got %d: %v", len(warnings), warnings)
	}
}

func TestMergeInlineConfigPathsScopeRequiresPaths(t *testing.T) {
	base := DefaultSessionConfig()
	merged, warnings, _ := MergeInlineConfig(base, "scope=paths")

	if merged.Scope == ScopePaths {
		t.Error("scope=paths without paths must fall back")
	}
	found := false
	for _, w := range warnings {
		if strings.Contains(w.Message, "without paths") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a fallback warning, got %v", warnings)
	}

	merged, _, _ = MergeInlineConfig(base, "scope=paths\npaths=internal/,cmd/")
	if merged.Scope != ScopePaths || len(merged.Paths) != 2 {
		t.Errorf("scope=%q paths=%v", merged.Scope, merged.Paths)
	}
}

func TestSanitizeJSONContent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"smart quotes", "{“a”:“b”}", `{"a":"b"}`},
		{"markdown fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding text", "Here is the review:\n{\"a\":1}\nThanks!", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(SanitizeJSONContent([]byte(tt.in)))
			if got != tt.want {
				t.Errorf("SanitizeJSONContent(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseRawReview(t *testing.T) {
	payload := "```json\n" + `{
		"dimensions": [
			{"id": "correctness", "name": "Correctness", "score": 70,
			 "issues": [{"description": "nil deref", "severity": "Critical", "location": "main.go:10"}]},
			{"id": "tests", "name": "Tests", "score": 40,
			 "issues": [{"description": "no tests", "severity": "weird"}]}
		],
		"summary": "needs work"
	}` + "\n```"

	raw, err := ParseRawReview([]byte(payload))
	if err != nil {
		t.Fatalf("ParseRawReview failed: %v", err)
	}
	if len(raw.Dimensions) != 2 {
		t.Fatalf("dimensions = %d", len(raw.Dimensions))
	}
	if raw.Dimensions[1].Issues[0].Severity != SeverityMinor {
		t.Errorf("unrecognized severity should normalize to Minor, got %q", raw.Dimensions[1].Issues[0].Severity)
	}

	criticals := raw.CriticalIssues()
	if len(criticals) != 1 || criticals[0] != "nil deref" {
		t.Errorf("criticals = %v", criticals)
	}
}

func TestParseRawReviewRejectsGarbage(t *testing.T) {
	if _, err := ParseRawReview([]byte("total nonsense")); err == nil {
		t.Error("non-JSON judge output should error")
	}
	if _, err := ParseRawReview([]byte(`{"summary":"empty"}`)); err == nil {
		t.Error("judge output without dimensions should error")
	}
}
