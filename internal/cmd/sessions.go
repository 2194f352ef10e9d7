package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/gavel/internal/config"
	"github.com/Iron-Ham/gavel/internal/store"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and maintain audit sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted sessions",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one session's journal",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsGCCmd = &cobra.Command{
	Use:   "gc",
	Short: "Remove sessions older than the configured maximum age",
	RunE:  runSessionsGC,
}

var sessionsShowJSON bool

func init() {
	sessionsShowCmd.Flags().BoolVar(&sessionsShowJSON, "json", false, "emit the full session state as JSON")
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsGCCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func openStore() (*store.Store, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.New(cfg.Store.Dir, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return st, cfg, nil
}

func runSessionsList(cmd *cobra.Command, _ []string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}

	ctx := context.Background()
	ids, err := st.List(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
		return nil
	}

	for _, id := range ids {
		state, err := st.Load(ctx, id)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%-40s %s\n", id, dimStyle.Render("(unreadable)"))
			continue
		}
		status := "active"
		if state.IsComplete {
			status = "complete (" + state.CompletionReason + ")"
		}
		score := "-"
		if last := state.LastIteration(); last != nil {
			score = fmt.Sprintf("%d", last.Score)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-40s loop %-3d score %-4s %s\n",
			id, state.CurrentLoop, score, status)
	}
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}

	state, err := st.Load(context.Background(), args[0])
	if err != nil {
		return err
	}

	if sessionsShowJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", headerStyle.Render(state.ID))
	fmt.Fprintf(out, "  task:      %s\n", state.Config.Task)
	fmt.Fprintf(out, "  threshold: %d  maxCycles: %d  scope: %s\n",
		state.Config.Threshold, state.Config.MaxCycles, state.Config.Scope)
	fmt.Fprintf(out, "  loop:      %d\n", state.CurrentLoop)
	if state.IsComplete {
		fmt.Fprintf(out, "  complete:  yes (%s)\n", state.CompletionReason)
	} else {
		fmt.Fprintln(out, "  complete:  no")
	}
	fmt.Fprintf(out, "  created:   %s\n", state.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "  updated:   %s\n", state.UpdatedAt.Format("2006-01-02 15:04:05"))

	if len(state.History) > 0 {
		fmt.Fprintf(out, "\n%s\n", headerStyle.Render("HISTORY"))
		for _, rec := range state.History {
			fmt.Fprintf(out, "  #%-3d score %-4d %-7s %s  %s\n",
				rec.ThoughtNumber, rec.Score, rec.Verdict,
				dimStyle.Render(shortHash(rec.ArtifactHash)),
				rec.Timestamp.Format("15:04:05"))
		}
	}
	return nil
}

// shortHash abbreviates an artifact hash for display.
func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

func runSessionsGC(cmd *cobra.Command, _ []string) error {
	st, cfg, err := openStore()
	if err != nil {
		return err
	}

	removed, err := st.GC(context.Background(), cfg.Store.MaxSessionAge())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired session(s)\n", removed)
	return nil
}
