// Package main provides a tool to seed a Tagbox database with an admin
// account and sample tagged items.
//
// Usage:
//
//	DATA_PATH=~/Tagbox/data go run ./cmd/seed --email admin@example.com --password secret
//	DATA_PATH=~/Tagbox/data go run ./cmd/seed --email admin@example.com --password secret --items=0
//
// Run it while the server is stopped.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/tagboxapp/tagbox-server/internal/search"
	"github.com/tagboxapp/tagbox-server/internal/service"
	"github.com/tagboxapp/tagbox-server/internal/store"
)

var (
	name     = flag.String("name", "Admin", "Display name for the admin account")
	email    = flag.String("email", "", "Admin email address (required)")
	password = flag.String("password", "", "Admin password (required)")
	numItems = flag.Int("items", 12, "Number of sample items to create for the admin")
)

var sampleTitles = []string{
	"Brass desk lamp", "Road bike", "Cast iron pan", "Film camera", "Hiking boots",
	"Espresso grinder", "Vinyl records", "Camping stove", "Wool blanket", "Bread knife",
	"Mechanical keyboard", "Tent", "Watering can", "Chess set", "Rain jacket",
}

var sampleTags = []string{"home", "kitchen", "outdoor", "hobby", "work", "gift", "repair"}

func main() {
	flag.Parse()
	if *email == "" || *password == "" {
		log.Fatal("--email and --password are required")
	}

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/Tagbox/data")
	}

	fmt.Printf("Opening data directory: %s\n", dataPath)

	st, err := store.New(filepath.Join(dataPath, "db"), nil)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	index, err := search.NewSearchIndex(search.Options{DataPath: dataPath})
	if err != nil {
		log.Fatalf("Failed to open search index: %v", err)
	}
	defer index.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	searchSvc := service.NewSearchService(index, st, logger)
	tagging := service.NewTaggingService(st, searchSvc, logger)
	items := service.NewItemService(st, tagging, searchSvc, logger)
	users := service.NewUserService(st, nil, 0, logger)

	ctx := context.Background()

	admin, created, err := users.EnsureAdmin(ctx, service.RegisterRequest{
		Name:     *name,
		Email:    *email,
		Password: *password,
	})
	if err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}
	if created {
		fmt.Printf("Created admin %s (%s)\n", admin.Email, admin.ID)
	} else {
		fmt.Printf("Promoted existing account %s (%s) to admin\n", admin.Email, admin.ID)
	}

	tagged := 0
	for i := range *numItems {
		title := sampleTitles[i%len(sampleTitles)]
		if i >= len(sampleTitles) {
			title = fmt.Sprintf("%s #%d", title, i/len(sampleTitles)+1)
		}

		item, err := items.Create(ctx, admin.ID, service.CreateItemRequest{Title: title})
		if err != nil {
			log.Fatalf("Failed to create item %q: %v", title, err)
		}

		for range rand.IntN(3) + 1 {
			tag := sampleTags[rand.IntN(len(sampleTags))]
			if _, err := tagging.TagItem(ctx, admin.ID, item.ID, tag); err != nil {
				log.Fatalf("Failed to tag item %s: %v", item.ID, err)
			}
			tagged++
		}
	}

	fmt.Printf("Created %d items with %d tag assignments\n", *numItems, tagged)
}
