package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/gavel/internal/config"
	"github.com/Iron-Ham/gavel/internal/review"
)

var auditCmd = &cobra.Command{
	Use:   "audit [file]",
	Short: "Run one audit iteration over an artifact",
	Long: `Audit a code artifact with the built-in static judge. The artifact is
read from the given file, or from stdin when no file is named.

Sessions accumulate across invocations: resubmitting with the same
--session continues the adversarial loop where it left off. An inline
gan-config fenced block in the artifact overrides session settings.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAudit,
}

var (
	auditSession string
	auditBranch  string
	auditThought int
	auditTask    string
	auditJSON    bool
)

func init() {
	auditCmd.Flags().StringVarP(&auditSession, "session", "s", "", "session ID to continue or create")
	auditCmd.Flags().StringVarP(&auditBranch, "branch", "b", "", "branch ID used as the session when --session is absent")
	auditCmd.Flags().IntVarP(&auditThought, "thought", "n", 1, "thought number of this submission")
	auditCmd.Flags().StringVarP(&auditTask, "task", "t", "", "task description the artifact is judged against")
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "emit the full review document as JSON")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	artifact, err := readArtifact(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	thought := review.Thought{
		SessionID:     auditSession,
		BranchID:      auditBranch,
		ThoughtNumber: auditThought,
		Artifact:      artifact,
	}
	if auditTask != "" {
		// The task flag rides in as inline config so it merges like any
		// other session setting.
		thought.Artifact = fmt.Sprintf("```gan-config\ntask=%s\n```\n%s", auditTask, artifact)
	}

	doc, err := eng.orch.Process(context.Background(), thought)
	if err != nil {
		return err
	}

	if auditJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	fmt.Fprint(cmd.OutOrStdout(), renderReview(doc))
	return nil
}

func readArtifact(args []string) (string, error) {
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to read artifact %s: %w", args[0], err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read artifact from stdin: %w", err)
	}
	return string(data), nil
}
