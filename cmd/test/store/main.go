package main

import (
	"context"
	"flag"
	"fmt"
	"sort"
	"time"

	"go-marugujarat-scraper/internal/config"
	"go-marugujarat-scraper/internal/dedup"

	"github.com/sirupsen/logrus"
)

func main() {
	path := flag.String("config", "", "path to config.yaml")
	format := flag.String("format", "", "override storage.format")
	limit := flag.Int("n", 10, "number of recent entries to print")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		logrus.WithError(err).Fatal("❌ Failed to load config")
	}
	if *format != "" {
		cfg.Storage.Format = *format
		if err := cfg.Validate(); err != nil {
			logrus.WithError(err).Fatal("❌ Invalid config")
		}
	}

	store, err := dedup.Open(cfg.Storage, logrus.StandardLogger())
	if err != nil {
		logrus.WithError(err).Fatal("❌ Failed to open store")
	}
	fmt.Printf("Attempting to load %s...\n", store.Location())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	state, err := store.Load(ctx)
	if err != nil {
		if dedup.IsCorrupt(err) {
			logrus.WithError(err).Fatal("❌ Store is corrupt, fix or move it aside")
		}
		logrus.WithError(err).Fatal("❌ Failed to load store")
	}

	entries := state.Entries()
	fmt.Printf("📦 %d listings stored\n", len(entries))

	//newest first
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].FirstSeen.After(entries[j].FirstSeen)
	})
	for _, e := range entries[:min(*limit, len(entries))] {
		fmt.Printf("  %s  %s\n      %s\n", e.FirstSeen.Local().Format("2006-01-02 15:04"), e.Title, e.URL)
	}
	fmt.Println("✅ Store loaded successfully!")
}
