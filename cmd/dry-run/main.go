package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/earthquake-city/quake-alerts/internal/config"
	"github.com/earthquake-city/quake-alerts/internal/mapimage"
	"github.com/earthquake-city/quake-alerts/internal/models"
	"github.com/earthquake-city/quake-alerts/internal/monitoring"
	"github.com/earthquake-city/quake-alerts/internal/notifications"
	"github.com/earthquake-city/quake-alerts/internal/sources"
	"github.com/earthquake-city/quake-alerts/internal/storage"
	"github.com/joho/godotenv"
)

// printingNotifier prints each message instead of delivering it
type printingNotifier struct{}

func (p *printingNotifier) Send(ctx context.Context, ch models.AlertChannel, msg notifications.Message) error {
	fmt.Printf("\n🚨 [%s/%s] %s\n", ch.Kind, ch.Name, msg.Subject)
	for _, line := range strings.Split(msg.Text, "\n") {
		fmt.Printf("   %s\n", line)
	}
	if len(msg.Image) > 0 {
		fmt.Printf("   🗺️  map image attached (%d bytes)\n", len(msg.Image))
	}
	return nil
}

func main() {
	fmt.Println("🧪 Quake Alerts - Dry Run")
	fmt.Println("=========================")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	service := monitoring.NewService(
		cfg,
		sources.NewUSGSClient(cfg.FeedURL, cfg.HTTPTimeout),
		storage.NewMemoryStore(),
		&printingNotifier{},
		mapimage.NewChartRenderer(),
	)

	fmt.Printf("🔍 Running one monitoring cycle against %d channels...\n", len(service.Channels()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result := service.Process(ctx)

	fmt.Println("\n" + strings.Repeat("-", 40))
	fmt.Printf("📊 %s\n", result.Summary())
	for _, s := range result.Skipped {
		fmt.Printf("   ⏸️  %s -> %s: %s\n", s.EventID, s.Channel, s.Reason)
	}
	for _, e := range result.Errors {
		fmt.Printf("   ❌ %s\n", e)
	}

	if !result.Success() {
		log.Fatal("Dry run finished with errors")
	}
	fmt.Println("\n✅ Dry run completed, nothing was sent or persisted")
}
