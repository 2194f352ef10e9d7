package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the session store",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}

	ctx := context.Background()
	ids, err := st.List(ctx)
	if err != nil {
		return err
	}

	var (
		active, complete, unreadable int
		byReason                     = map[string]int{}
		totalLoops, scored, scoreSum int
	)
	for _, id := range ids {
		state, err := st.Load(ctx, id)
		if err != nil {
			unreadable++
			continue
		}
		if state.IsComplete {
			complete++
			byReason[state.CompletionReason]++
		} else {
			active++
		}
		totalLoops += state.CurrentLoop
		if last := state.LastIteration(); last != nil {
			scored++
			scoreSum += last.Score
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", headerStyle.Render("SESSIONS"))
	fmt.Fprintf(out, "  store:      %s\n", st.Dir())
	fmt.Fprintf(out, "  total:      %d\n", len(ids))
	fmt.Fprintf(out, "  active:     %d\n", active)
	fmt.Fprintf(out, "  complete:   %d\n", complete)
	for _, reason := range []string{"score", "maxLoops", "stagnation"} {
		if n := byReason[reason]; n > 0 {
			fmt.Fprintf(out, "    %-10s %d\n", reason+":", n)
		}
	}
	if unreadable > 0 {
		fmt.Fprintf(out, "  unreadable: %d\n", unreadable)
	}
	fmt.Fprintf(out, "  iterations: %d\n", totalLoops)
	if scored > 0 {
		fmt.Fprintf(out, "  avg score:  %d\n", scoreSum/scored)
	}
	return nil
}
