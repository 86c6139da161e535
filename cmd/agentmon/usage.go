package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/agentmon/internal/usageapi"
)

func newUsageCommand() *cobra.Command {
	var orgID string

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Fetch account-level usage windows from claude.ai (requires the desktop app).",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if orgID == "" {
				return fmt.Errorf("--org is required")
			}

			snap, err := usageapi.Fetch(cmd.Context(), orgID)
			if err != nil {
				return err
			}

			printUsageWindow("5h window", snap.FiveHour)
			printUsageWindow("7d window", snap.SevenDay)
			printUsageWindow("7d Sonnet", snap.SevenDaySonnet)
			printUsageWindow("7d Opus", snap.SevenDayOpus)
			return nil
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "claude.ai organization ID")
	return cmd
}

func printUsageWindow(label string, w *usageapi.Window) {
	if w == nil {
		fmt.Printf("%-10s no data\n", label)
		return
	}
	line := fmt.Sprintf("%-10s %.1f%% used", label, w.Utilization)
	if reset, ok := w.ResetTime(); ok {
		line += fmt.Sprintf(", resets %s", reset.Local().Format(time.RFC1123))
	}
	fmt.Println(line)
}
