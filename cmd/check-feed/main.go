package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/earthquake-city/quake-alerts/internal/config"
	"github.com/earthquake-city/quake-alerts/internal/formatter"
	"github.com/earthquake-city/quake-alerts/internal/models"
	"github.com/earthquake-city/quake-alerts/internal/sources"
	"github.com/joho/godotenv"
)

func main() {
	fmt.Println("🔍 Quake Alerts - Feed Connectivity Check")
	fmt.Println("==========================================")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	feed := sources.NewUSGSClient(cfg.FeedURL, cfg.HTTPTimeout)
	end := time.Now().UTC()
	start := end.Add(-cfg.Alerting.Lookback())

	fmt.Printf("\n📡 Querying %s for the last %s...\n", feed.GetName(), cfg.Alerting.Lookback())
	fmt.Println(strings.Repeat("-", 40))

	regions := cfg.Alerting.Regions
	if len(regions) == 0 {
		regions = []models.MonitoringRegion{{
			Name:   "world",
			Bounds: models.GeoBounds{MinLatitude: -90, MaxLatitude: 90, MinLongitude: -180, MaxLongitude: 180},
		}}
	}

	failed := 0
	for _, region := range regions {
		if !checkRegion(ctx, feed, region, sources.Query{
			Bounds:       region.Bounds,
			MinMagnitude: cfg.Alerting.MinFetchMagnitude,
			Start:        start,
			End:          end,
		}) {
			failed++
		}
	}

	if failed > 0 {
		log.Fatalf("\n❌ %d of %d regions failed", failed, len(regions))
	}
	fmt.Println("\n✅ Feed connectivity check completed!")
}

func checkRegion(ctx context.Context, feed sources.Feed, region models.MonitoringRegion, q sources.Query) bool {
	fmt.Printf("Testing %-20s ", region.Name+"...")

	events, err := sources.FetchEvents(ctx, feed, q)
	if err != nil {
		fmt.Printf("❌ Error: %v\n", err)
		return false
	}

	fmt.Printf("✅ Found %d earthquakes\n", len(events))
	for i, e := range events {
		if i >= 3 {
			fmt.Printf("   ... and %d more\n", len(events)-3)
			break
		}
		fmt.Printf("   %s %s\n", formatter.MagnitudeEmoji(e.Magnitude), formatter.Summary(e))
	}
	return true
}
