package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/xavierca1/dj-funnel/internal/infra/integration/manychat"
)

// Manual check of the ManyChat sync function against a real project.
// Usage: go run ./sample/test-manychat-sync [lead-id]
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env not found, using process environment")
	}

	baseURL := os.Getenv("SUPABASE_URL")
	if baseURL == "" {
		log.Fatal("❌ SUPABASE_URL must be set")
	}

	leadID := uuid.NewString()
	if len(os.Args) > 1 {
		if _, err := uuid.Parse(os.Args[1]); err != nil {
			log.Fatalf("❌ invalid lead id %q: %v", os.Args[1], err)
		}
		leadID = os.Args[1]
	}

	client := manychat.NewClient(baseURL, os.Getenv("SUPABASE_ANON_KEY"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Printf("🔄 Syncing lead %s to ManyChat...\n", leadID)
	start := time.Now()
	if err := client.SyncLead(ctx, leadID); err != nil {
		log.Fatalf("❌ sync failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
	}
	fmt.Printf("✅ Synced in %s\n", time.Since(start).Round(time.Millisecond))
}
