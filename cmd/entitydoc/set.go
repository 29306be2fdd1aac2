package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/entitydoc"
	"github.com/aretw0/entitydoc/pkg/core"
)

var setUnset bool

var setCmd = &cobra.Command{
	Use:   "set [id] [field] [locale] [value]",
	Short: "Set one field-locale value and save",
	Long: `Set a field-locale value of an entity and save it immediately.
The value is parsed as JSON; anything that is not valid JSON is stored as a string.
With --unset the value is removed and no value argument is taken.`,
	Args: cobra.RangeArgs(3, 4),
	Run: func(cmd *cobra.Command, args []string) {
		id, field, locale := args[0], args[1], args[2]
		if !setUnset && len(args) != 4 {
			fatal("Missing value", fmt.Errorf("expected a value or --unset"))
		}

		ctx := context.Background()
		ws := openWorkspace(ctx)
		defer ws.Close(ctx)

		doc, release, err := ws.Acquire(ctx, refOf(id))
		if err != nil {
			fatal("Error opening entity", err)
		}
		defer release()

		var value any
		if !setUnset {
			value = parseValue(args[3])
		}
		if err := doc.SetValueAt(ctx, entitydoc.Field(field, locale), value); err != nil {
			fatal("Error setting value", err)
		}
		if err := doc.Save(ctx); err != nil {
			fatal("Error saving entity", err)
		}

		fmt.Printf("Saved %s at version %d\n", doc.Ref(), doc.GetVersion())
	},
}

// parseValue decodes raw as JSON, falling back to the raw string.
func parseValue(raw string) any {
	var v any
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw
	}
	return core.NormalizeValue(v)
}

func init() {
	rootCmd.AddCommand(setCmd)
	setCmd.Flags().BoolVar(&setUnset, "unset", false, "Remove the value instead of setting it")
}
