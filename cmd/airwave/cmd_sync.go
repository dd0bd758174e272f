package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"airwave/internal/config"
	"airwave/internal/logging"
	"airwave/internal/remote"
)

var syncSource string

// syncCmd pushes agent code to the Pis over scp.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy agent files to the configured Pis",
	Long: `Copies every file in the source directory to each configured Pi's
remote directory, creating it if needed. Use after editing the agent code
locally, then restart with 'airwave up'.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVarP(&syncSource, "source", "s", ".", "Local directory with the agent files")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logging.Get(logging.CategorySync)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(syncSource)
	if err != nil {
		return fmt.Errorf("read source directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("no files to sync in %s", syncSource)
	}

	synced := 0
	for _, pi := range []struct {
		name string
		cfg  config.PiConfig
	}{
		{"pi1", cfg.Pi1},
		{"pi2", cfg.Pi2},
	} {
		if !pi.cfg.Enabled() {
			continue
		}
		fmt.Printf("%s %s (%s)\n", titleStyle.Render("sync"), pi.name, pi.cfg.Host)

		client := remote.New(remote.Target{
			Host:           pi.cfg.Host,
			User:           pi.cfg.User,
			Password:       pi.cfg.Password,
			ConnectTimeout: cfg.GetSSHConnectTimeout(),
		})
		dir := pi.cfg.RemoteDir
		if dir == "" {
			dir = "~/AirWave"
		}
		if _, err := client.Run(ctx, "mkdir -p "+dir, nil); err != nil {
			fmt.Println(warnStyle.Render("! ") + pi.name + ": " + err.Error())
			log.Error("%s mkdir: %v", pi.name, err)
			continue
		}
		for _, name := range files {
			local := filepath.Join(syncSource, name)
			if err := client.Copy(ctx, local, dir+"/"+name); err != nil {
				fmt.Println(warnStyle.Render("! ") + name + ": " + err.Error())
				log.Error("%s copy %s: %v", pi.name, name, err)
				continue
			}
			fmt.Println(okStyle.Render("  ✓ ") + name)
			log.Info("%s: copied %s", pi.name, name)
		}
		synced++
	}
	if synced == 0 {
		return fmt.Errorf("no Pis configured; run 'airwave setup' first")
	}
	return nil
}
