package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete an entity from the store",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws := openWorkspace(ctx)
		defer ws.Close(ctx)

		ref := refOf(args[0])
		if err := ws.Delete(ctx, ref); err != nil {
			fatal("Error deleting entity", err)
		}

		fmt.Printf("Entity deleted: %s\n", ref)
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
