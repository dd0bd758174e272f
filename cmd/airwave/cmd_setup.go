package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"airwave/internal/config"
	"airwave/internal/launcher"
)

// setupCmd walks through broker and Pi configuration interactively.
var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive first-run configuration",
	Long: `Walks through the configuration: broker address, the SSH details for
each Pi, and where the agent lives on it. Connectivity is checked as you go.
The result is written to ` + config.FileName + ` in the working directory,
so each project checkout keeps its own rig configuration.

Pi passwords are never stored; set PI1_PASSWORD / PI2_PASSWORD or use SSH
keys (ssh-copy-id pi@<host>).`,
	RunE: runSetup,
}

func runSetup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := launcher.NewWizard(os.Stdin, os.Stdout).Run(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(configPath); err != nil {
		return err
	}
	fmt.Println(okStyle.Render("✓ ") + "saved " + configPath)
	return nil
}
