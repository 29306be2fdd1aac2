package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aretw0/entitydoc"
	"github.com/aretw0/entitydoc/pkg/config"
)

var initLocales []string

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default entitydoc.toml",
	Long:  `Initialize a workspace in the current directory (or --root) by writing the default configuration.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		dir := rootDir
		if dir == "" {
			wd, err := os.Getwd()
			if err != nil {
				fatal("Failed to get CWD", err)
			}
			dir = wd
		}

		path := filepath.Join(dir, config.DefaultPath)
		if _, err := os.Stat(path); err == nil {
			fatal("Workspace already initialized", fmt.Errorf("%s exists", path))
		}

		cfg := entitydoc.DefaultConfig()
		if adapter != "" {
			cfg.Storage.Adapter = adapter
		}
		if len(initLocales) > 0 {
			cfg.Locales = initLocales
		}
		if err := cfg.Validate(); err != nil {
			fatal("Invalid configuration", err)
		}
		if err := config.Save(cfg, path); err != nil {
			fatal("Failed to write configuration", err)
		}
		fmt.Printf("Initialized workspace in %s\n", dir)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringSliceVar(&initLocales, "locale", nil, "Enabled locales (repeatable)")
}
