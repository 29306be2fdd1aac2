package entitydoc_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aretw0/entitydoc"
)

// Example_basic opens a workspace, creates an entry and edits it through a
// document.
func Example_basic() {
	tmpDir, err := os.MkdirTemp("", "entitydoc-example-*")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	ctx := context.Background()

	ws, err := entitydoc.Open(ctx, tmpDir, entitydoc.WithConfig(entitydoc.DefaultConfig()))
	if err != nil {
		log.Fatal(err)
	}
	defer ws.Close(ctx)

	entry, err := ws.Create(ctx, entitydoc.Entity{
		Sys:    entitydoc.Sys{ID: "welcome", Type: entitydoc.TypeEntry},
		Fields: entitydoc.Fields{"title": {"en-US": "Hello"}},
	})
	if err != nil {
		log.Fatal(err)
	}

	doc, release, err := ws.Acquire(ctx, entry.Sys.Ref())
	if err != nil {
		log.Fatal(err)
	}
	defer release()

	if err := entitydoc.SetValue(ctx, doc, "title", "en-US", "Welcome"); err != nil {
		log.Fatal(err)
	}
	if err := doc.Save(ctx); err != nil {
		log.Fatal(err)
	}

	title, err := entitydoc.GetValue[string](doc, "title", "en-US")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(title, doc.GetVersion())
	// Output: Welcome 2
}
