package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/entitydoc"
)

var (
	createID          string
	createContentType string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an empty entity",
	Long:  `Create an entity at version 1. Without --id a ULID is generated.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws := openWorkspace(ctx)
		defer ws.Close(ctx)

		entity, err := ws.Create(ctx, entitydoc.Entity{
			Sys: entitydoc.Sys{
				ID:          createID,
				Type:        entityType,
				ContentType: createContentType,
			},
			Fields: entitydoc.Fields{},
		})
		if err != nil {
			fatal("Error creating entity", err)
		}

		fmt.Printf("Created %s\n", entity.Sys.Ref())
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVar(&createID, "id", "", "Entity ID (default: generated)")
	createCmd.Flags().StringVar(&createContentType, "content-type", "", "Content type ID")
}
