package main

import (
	"context"
	"fmt"
	"time"

	"emilia-bot/internal/config"
	"emilia-bot/internal/fetcher"
	"emilia-bot/pkg/logger"
)

func main() {
	logger.Init("debug", nil)

	fmt.Println("=== Testing Fetchers ===")
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	waifu := fetcher.NewWaifu(config.WaifuConfig{
		BaseURL: "https://api.waifu.pics",
		Timeout: 5 * time.Second,
	})

	fmt.Println("Testing waifu.pics...")
	for _, genre := range []string{"waifu", "neko"} {
		item, err := waifu.Fetch(ctx, genre, false)
		if err != nil {
			logger.Error("waifu.pics fetch failed", logger.String("genre", genre), logger.Err(err))
			continue
		}
		fmt.Printf("  ✓ %s: %s\n", genre, item.URL)
	}

	nekos := fetcher.NewNekos(config.NekosConfig{
		BaseURL: "https://nekos.best/api/v2",
		Timeout: 5 * time.Second,
	})

	fmt.Println()
	fmt.Println("Testing nekos.best...")
	item, err := nekos.Fetch(ctx, "neko", false)
	if err != nil {
		logger.Error("nekos.best fetch failed", logger.Err(err))
	} else {
		fmt.Printf("  ✓ neko: %s\n", item.URL)
	}

	scrolller := fetcher.NewScrolller(config.ScrolllerConfig{
		BaseURL:     "https://api.scrolller.com",
		Timeout:     10 * time.Second,
		MaxAttempts: 3,
		Limit:       10,
	})

	fmt.Println()
	fmt.Println("Testing Scrolller...")
	items, err := scrolller.Listing(ctx, "awwnime", false)
	if err != nil {
		logger.Error("Scrolller listing failed", logger.Err(err))
	} else {
		fmt.Printf("  ✓ awwnime: %d qualifying items\n", len(items))
		for i, it := range items {
			if i >= 3 {
				break
			}
			fmt.Printf("    %d: %s\n", i+1, it.URL)
		}
	}

	fmt.Println()
	fmt.Println("=== Test Complete ===")
}
