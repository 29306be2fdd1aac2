package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/entitydoc"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of entitydoc",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("entitydoc version %s\n", strings.TrimSpace(entitydoc.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
