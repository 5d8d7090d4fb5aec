// Command dbinspect summarizes a Tagbox database and checks that tag and
// item references agree. It exits non-zero when a problem is found.
// Stop the server first; Badger allows a single process per directory.
package main

import (
	"context"
	"fmt"
	"iter"
	"log"
	"os"

	"github.com/tagboxapp/tagbox-server/internal/store"
)

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/Tagbox/data/db")
	}

	st, err := store.New(dbPath, nil)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer st.Close()

	ctx := context.Background()

	fmt.Println("=== Database Inspection ===")
	fmt.Println()

	var users, items, tags int
	err = st.View(ctx, func(tx *store.Tx) error {
		var err error
		if users, err = count(st.Users.List(tx)); err != nil {
			return err
		}
		if items, err = count(st.Items.List(tx)); err != nil {
			return err
		}
		tags, err = count(st.Tags.List(tx))
		return err
	})
	if err != nil {
		log.Fatalf("Error iterating database: %v", err)
	}

	fmt.Printf("Users: %d\n", users)
	fmt.Printf("Items: %d\n", items)
	fmt.Printf("Tags:  %d\n", tags)
	fmt.Println()

	problems, err := st.CheckConsistency(ctx)
	if err != nil {
		log.Fatalf("Consistency check failed: %v", err)
	}

	fmt.Println("=== Consistency ===")
	if len(problems) == 0 {
		fmt.Println("OK")
		return
	}
	for _, p := range problems {
		fmt.Println(p)
	}
	fmt.Printf("\n%d problem(s) found\n", len(problems))
	st.Close()
	os.Exit(1)
}

func count[T any](seq iter.Seq2[*T, error]) (int, error) {
	n := 0
	for _, err := range seq {
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
