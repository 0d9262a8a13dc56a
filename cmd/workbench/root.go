package main

import (
	"fmt"

	"github.com/l1jgo/workbench/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "workbench",
	Short:         "Play-in-editor workbench for an ECS world",
	Long:          "Workbench edits an entity-component world with undo/redo and runs it in Play mode, restoring the edit-time state on Stop.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "settings file (default $"+config.EnvPath+" or "+config.DefaultPath+")")
}

// loadConfig resolves the settings path and falls back to defaults when the
// file does not exist yet.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	flag, _ := cmd.Flags().GetString("config")
	path := config.Resolve(flag)
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, path, fmt.Errorf("load config: %w", err)
	}
	return cfg, path, nil
}
