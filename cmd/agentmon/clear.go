package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/agentmon/internal/config"
	"github.com/janekbaraniewski/agentmon/internal/costcache"
	"github.com/janekbaraniewski/agentmon/internal/detect"
)

func newClearCommand(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the persisted cost cache.",
		Run: func(_ *cobra.Command, _ []string) {
			cache := costcache.New(cfg.ResolvedCostCachePath())
			cache.Clear()
			fmt.Printf("Removed %s\n", cfg.ResolvedCostCachePath())
		},
	}
}

func newAgentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "Show which agent CLIs were detected on this machine.",
		Run: func(_ *cobra.Command, _ []string) {
			agents := detect.AutoDetect()
			if len(agents) == 0 {
				fmt.Println("No supported agent CLIs detected.")
				return
			}
			for _, agent := range agents {
				binary := agent.BinaryPath
				if binary == "" {
					binary = "(not installed)"
				}
				fmt.Printf("%-12s binary=%s sessions=%v config=%s\n",
					agent.Source.DisplayName(), binary, agent.HasSessions, agent.ConfigDir)
			}
		},
	}
}
