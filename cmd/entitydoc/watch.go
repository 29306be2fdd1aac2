package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/entitydoc/pkg/adapters/lifecycle"
)

var watchPattern string

var watchCmd = &cobra.Command{
	Use:   "watch [id]...",
	Short: "Follow changes to entities until interrupted",
	Long: `Open the given entities and print every field change and save status
transition, including edits made to the store by other processes.
--pattern restricts changes to matching paths, e.g. "fields/title/**".`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ws := openWorkspace(ctx)
		defer ws.Close(context.Background())

		if err := ws.Watch(ctx); err != nil {
			fatal("Error starting watcher", err)
		}

		events := make(chan fmt.Stringer)
		for _, id := range args {
			doc, release, err := ws.Acquire(ctx, refOf(id))
			if err != nil {
				fatal("Error opening entity", err)
			}
			defer release()

			src := lifecycle.NewSource(doc, watchPattern)
			if err := src.Start(ctx); err != nil {
				fatal("Error subscribing", err)
			}
			go func() {
				for ev := range src.Events() {
					select {
					case events <- ev:
					case <-ctx.Done():
						return
					}
				}
			}()
		}

		fmt.Fprintf(os.Stderr, "Watching %d entities (Ctrl+C to stop)\n", len(args))
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				fmt.Println(ev)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchPattern, "pattern", "", "Only report changes whose path matches this glob")
}
