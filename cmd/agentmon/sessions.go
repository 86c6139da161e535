package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/agentmon/internal/config"
	"github.com/janekbaraniewski/agentmon/internal/core"
	"github.com/janekbaraniewski/agentmon/internal/monitor"
)

// newSessionsCommand prints a one-shot session table without the TUI. Costs
// are computed synchronously here since there is no screen to repaint.
func newSessionsCommand(cfg config.Config) *cobra.Command {
	var showAll, showSidechains bool

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List discovered agent sessions with token and cost totals.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mon := buildMonitor(cfg)
			opts := monitorOptions(cfg)
			opts.ShowAll = showAll
			opts.ShowSidechains = showSidechains

			ctx := cmd.Context()
			if err := mon.Refresh(ctx, opts); err != nil {
				return err
			}
			waitForCosts(ctx, mon)

			printSessions(mon)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showAll, "all", "a", cfg.ShowAllSessions, "include completed sessions")
	cmd.Flags().BoolVar(&showSidechains, "sidechains", cfg.ShowSidechains, "include sidechain sessions")
	return cmd
}

// waitForCosts polls until the background recomputation settles. The worker
// exposes no completion signal to the TUI because it streams patches instead,
// so the one-shot path just watches totals stop moving.
func waitForCosts(ctx context.Context, mon *monitor.Monitor) {
	deadline := time.After(30 * time.Second)
	var last float64 = -1
	stable := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-time.After(200 * time.Millisecond):
			cost := mon.TotalCost()
			if cost == last {
				stable++
				if stable >= 3 {
					return
				}
			} else {
				stable = 0
				last = cost
			}
		}
	}
}

func printSessions(mon *monitor.Monitor) {
	sessions := mon.Sessions()
	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tAGENT\tNAME\tMODEL\tTOKENS\tCOST\tTIME")
	for _, sess := range sessions {
		status := "done"
		if sess.Status == core.StatusRunning {
			status = "running"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t$%.2f\t%s\n",
			status,
			sess.Source.DisplayName(),
			core.TruncateRunes(sess.Name, 48),
			sess.Metrics.ModelName,
			sess.Metrics.FormattedTokens(),
			sess.Metrics.Cost,
			sess.FormattedDuration(),
		)
	}
	w.Flush()

	fmt.Printf("\n%d sessions · %s tokens · $%.2f · total runtime %s\n",
		len(sessions),
		formatCount(mon.TotalTokens()),
		mon.TotalCost(),
		mon.TotalRuntime().Round(time.Second),
	)
}

func formatCount(v int64) string {
	switch {
	case v >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", float64(v)/1_000_000_000)
	case v >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(v)/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("%.1fK", float64(v)/1_000)
	default:
		return fmt.Sprintf("%d", v)
	}
}
