package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/agentmon/internal/config"
	"github.com/janekbaraniewski/agentmon/internal/core"
)

func newLimitsCommand(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "limits",
		Short: "Show the most recent local rate-limit snapshot.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mon := buildMonitor(cfg)
			snap, err := mon.FetchRateLimits(cmd.Context())
			if err != nil {
				return err
			}
			if snap == nil {
				fmt.Println("No rate-limit data available.")
				return nil
			}

			printWindow("Primary window", snap.Primary)
			printWindow("Secondary window", snap.Secondary)
			return nil
		},
	}
}

func printWindow(label string, w *core.RateLimitWindow) {
	if w == nil {
		fmt.Printf("%s: no data\n", label)
		return
	}
	line := fmt.Sprintf("%s: %.1f%% used", label, w.UsedFraction*100)
	if w.ResetsAt != nil {
		line += fmt.Sprintf(", resets %s (%s)",
			w.ResetsAt.Local().Format(time.RFC1123),
			time.Until(*w.ResetsAt).Round(time.Minute))
	}
	fmt.Println(line)
}
