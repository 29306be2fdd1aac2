package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/entitydoc"
)

var (
	verbose    bool
	rootDir    string
	adapter    string
	entityType string
	readOnly   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "entitydoc",
	Short: "Edit versioned, multi-locale entities with conflict-aware saves",
	Long: `entitydoc opens entities as documents, applies edits locally and saves
them against the store with optimistic versioning. Remote changes that do not
overlap local edits are merged automatically.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "Workspace root (default: nearest directory with entitydoc.toml)")
	rootCmd.PersistentFlags().StringVar(&adapter, "adapter", "", "Storage adapter override (fs, sqlite, memory)")
	rootCmd.PersistentFlags().StringVarP(&entityType, "type", "t", entitydoc.TypeEntry, "Entity type (Entry or Asset)")
	rootCmd.PersistentFlags().BoolVar(&readOnly, "read-only", false, "Open the storage read-only")
}

// workspaceRoot resolves --root, falling back to the nearest workspace above
// the working directory.
func workspaceRoot() (string, error) {
	if rootDir != "" {
		return rootDir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	root, err := entitydoc.FindRoot(wd)
	if err != nil {
		return wd, nil
	}
	return root, nil
}

func openWorkspace(ctx context.Context) *entitydoc.Workspace {
	root, err := workspaceRoot()
	if err != nil {
		fatal("Error resolving workspace root", err)
	}

	opts := []entitydoc.Option{
		entitydoc.WithLogger(slog.Default()),
		entitydoc.WithReadOnly(readOnly),
	}
	if adapter != "" {
		opts = append(opts, entitydoc.WithAdapter(adapter))
	}

	ws, err := entitydoc.Open(ctx, root, opts...)
	if err != nil {
		fatal("Error opening workspace", err)
	}
	return ws
}

func refOf(id string) entitydoc.Ref {
	return entitydoc.Ref{Type: entityType, ID: id}
}
