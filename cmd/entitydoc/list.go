package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/aretw0/entitydoc"
)

var (
	listJSON  bool
	filterTag string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the entities of a type",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws := openWorkspace(ctx)
		defer ws.Close(ctx)

		entities, err := ws.List(ctx, entityType)
		if err != nil {
			fatal("Error listing entities", err)
		}

		var filtered []entitydoc.Entity
		for _, e := range entities {
			if filterTag != "" && !slices.Contains(e.Metadata.TagIDs(), filterTag) {
				continue
			}
			filtered = append(filtered, e)
		}

		if listJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(filtered); err != nil {
				fatal("Error encoding JSON", err)
			}
			return
		}

		for _, e := range filtered {
			fmt.Printf("%s\tv%d\t%s\n", e.Sys.ID, e.Sys.Version, entityState(e))
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().StringVar(&filterTag, "tag", "", "Filter entities by tag ID")
}
