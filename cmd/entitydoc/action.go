package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/entitydoc"
)

// actionCommand builds a command that applies one lifecycle action.
func actionCommand(action entitydoc.Action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(action) + " [id]",
		Short: short,
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

			entity, err := doc.ApplyAction(ctx, action)
			if err != nil {
				fatal(fmt.Sprintf("Error applying %s", action), err)
			}
			fmt.Printf("%s is now %s (version %d)\n", entity.Sys.Ref(), entityState(entity), entity.Sys.Version)
		},
	}
}

func init() {
	rootCmd.AddCommand(
		actionCommand(entitydoc.ActionPublish, "Publish an entity"),
		actionCommand(entitydoc.ActionUnpublish, "Unpublish an entity"),
		actionCommand(entitydoc.ActionArchive, "Archive an entity"),
		actionCommand(entitydoc.ActionUnarchive, "Unarchive an entity"),
	)
}
