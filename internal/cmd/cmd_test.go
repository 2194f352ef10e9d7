package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/gavel/internal/review"
)

func sampleDoc() *review.StructuredReview {
	return &review.StructuredReview{
		OverallScore: 68,
		Verdict:      review.VerdictRevise,
		Iterations:   2,
		Dimensions: []review.DimensionScore{
			{Name: "Correctness & Functionality", Score: 60},
			{Name: "Testing Quality & Coverage", Score: 70},
		},
		ExecutiveVerdict: review.ExecutiveVerdict{
			Decision:  "no-ship",
			Summary:   []string{"Critical nil dereference in the request handler.", "Tests do not cover the failure path."},
			NextSteps: []string{"Guard the handler against nil sessions."},
		},
		EvidenceTable: review.EvidenceTable{
			Entries: []review.EvidenceEntry{
				{ID: "E1", Issue: "nil dereference", Severity: review.SeverityCritical, Location: "handler.go:42"},
				{ID: "E2", Issue: "missing error test", Severity: review.SeverityMajor},
			},
			Summary: "2 findings: 1 critical, 1 major",
		},
		Completion: review.CompletionStatus{
			NextThoughtNeeded: true,
			Message:           "Revise and resubmit.",
		},
	}
}

func TestRenderReviewShowsVerdict(t *testing.T) {
	out := renderReview(sampleDoc())

	for _, want := range []string{
		"NO-SHIP",
		"score 68/100",
		"iteration 2",
		"E1",
		"nil dereference",
		"handler.go:42",
		"Guard the handler against nil sessions.",
		"Revise and resubmit.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered review missing %q:\n%s", want, out)
		}
	}
}

func TestRenderReviewShip(t *testing.T) {
	doc := sampleDoc()
	doc.ExecutiveVerdict.Decision = "ship"
	doc.EvidenceTable = review.EvidenceTable{}

	out := renderReview(doc)
	if !strings.Contains(out, "SHIP") {
		t.Errorf("ship decision should render the SHIP badge:\n%s", out)
	}
	if strings.Contains(out, "EVIDENCE") {
		t.Errorf("empty evidence table should omit the section:\n%s", out)
	}
}

func TestRenderReviewWarnings(t *testing.T) {
	doc := sampleDoc()
	doc.AddWarning("PersistenceDegraded", "session save failed")

	out := renderReview(doc)
	if !strings.Contains(out, "PersistenceDegraded") {
		t.Errorf("warnings should be rendered:\n%s", out)
	}
}

func TestReadArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifact.go")
	if err := os.WriteFile(path, []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := readArtifact([]string{path})
	if err != nil {
		t.Fatal(err)
	}
	if got != "package main\n" {
		t.Errorf("readArtifact = %q", got)
	}

	if _, err := readArtifact([]string{filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("missing artifact file should error")
	}
}

func TestAuditCommandJSON(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("GAVEL_STORE_DIR", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "artifact.go")
	artifact := "package demo\n\nfunc Add(a, b int) int { return a + b }\n"
	if err := os.WriteFile(path, []byte(artifact), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"audit", path, "--json", "--session", "cmd-test", "--task", "add two integers"})
	t.Cleanup(func() {
		auditSession, auditTask, auditJSON, auditThought = "", "", false, 1
		rootCmd.SetArgs(nil)
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("audit failed: %v", err)
	}

	var doc review.StructuredReview
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if doc.OverallScore <= 0 || doc.OverallScore > 100 {
		t.Errorf("overall score = %d, want 1..100", doc.OverallScore)
	}
	if doc.Iterations != 1 {
		t.Errorf("iterations = %d, want 1", doc.Iterations)
	}
	if doc.Metadata.Version == "" {
		t.Error("metadata version should be set")
	}
}
