package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/agentmon/internal/config"
)

func main() {
	if os.Getenv("AGENTMON_DEBUG") != "" {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(io.Discard)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		fmt.Fprintf(os.Stderr, "Config path: %s\n", config.ConfigPath())
		os.Exit(1)
	}
	cfg = applyDetectedDefaults(cfg)

	root := cobra.Command{
		Use:   "agentmon",
		Short: "agentmon is a terminal dashboard for local AI coding-agent sessions.",
		Run: func(_ *cobra.Command, _ []string) {
			runDashboard(cfg)
		},
	}

	root.AddCommand(newSessionsCommand(cfg))
	root.AddCommand(newLimitsCommand(cfg))
	root.AddCommand(newUsageCommand())
	root.AddCommand(newClearCommand(cfg))
	root.AddCommand(newAgentsCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
