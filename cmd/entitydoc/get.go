package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"

	"github.com/aretw0/entitydoc"
	"github.com/aretw0/entitydoc/pkg/status"
)

var (
	getJSON bool
	getDump bool
)

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Print an entity",
	Long:  `Print the fields of an entity, one field-locale value per line. Use --json for the stored form or --dump for a Go-syntax dump.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws := openWorkspace(ctx)
		defer ws.Close(ctx)

		doc, release, err := ws.Acquire(ctx, refOf(args[0]))
		if err != nil {
			fatal("Error opening entity", err)
		}
		defer release()

		entity := doc.Snapshot()

		switch {
		case getDump:
			fmt.Println(litter.Sdump(entity))
		case getJSON:
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(entity); err != nil {
				fatal("Error encoding JSON", err)
			}
		default:
			printEntity(entity)
		}
	},
}

func printEntity(e entitydoc.Entity) {
	fmt.Printf("%s (version %d, %s)\n", e.Sys.Ref(), e.Sys.Version, entityState(e))
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	slices.Sort(fields)
	for _, f := range fields {
		locales := make([]string, 0, len(e.Fields[f]))
		for l := range e.Fields[f] {
			locales = append(locales, l)
		}
		slices.Sort(locales)
		for _, l := range locales {
			fmt.Printf("  %s[%s] = %v\n", f, l, e.Fields[f][l])
		}
	}
	if ids := e.Metadata.TagIDs(); len(ids) > 0 {
		fmt.Printf("  tags = %v\n", ids)
	}
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().BoolVar(&getJSON, "json", false, "Output in JSON format")
	getCmd.Flags().BoolVar(&getDump, "dump", false, "Output a Go-syntax dump")
}

func entityState(e entitydoc.Entity) string {
	return string(status.Of(e.Sys))
}
