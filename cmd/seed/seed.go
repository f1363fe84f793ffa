package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/aperture-ai/gateway/internal/configstore"
	"github.com/aperture-ai/gateway/internal/configstore/sqlite"
)

// Seeds the local sqlite config store with a demo agent and tenant provider
// credentials so the gateway can resolve aliases out of the box.
func main() {
	path := flag.String("db", "gateway.db", "sqlite database path")
	flag.Parse()

	store, err := sqlite.Open(*path)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	models := []configstore.ModelConfig{
		{Alias: "fast", Type: "google/gemini-3-flash"},
		{Alias: "smart", Type: "anthropic/claude-sonnet-4"},
		{Alias: "cheap", Type: "openai/gpt-oss-120b"},
		{Alias: "cheap-groq", Type: "openai/gpt-oss-120b",
			Routing: &configstore.Routing{Only: []string{"groq"}}},
		{Alias: "embed", Type: "voyage/voyage-3-large"},
	}

	for _, m := range models {
		if err := store.UpsertModel(ctx, "demo-agent", "main", m); err != nil {
			log.Fatalf("seeding alias %s: %v", m.Alias, err)
		}
		fmt.Printf("Seeded demo-agent/main/%s -> %s\n", m.Alias, m.Type)
	}

	providers := []configstore.ProviderConfig{
		{Provider: "groq", APIKey: "gsk-local-dev-key"},
		{Provider: "bedrock", APIKey: "bedrock-local-dev-key", Region: "us-east-1"},
	}

	for _, p := range providers {
		if err := store.UpsertProviderConfig(ctx, "default", p); err != nil {
			log.Fatalf("seeding provider %s: %v", p.Provider, err)
		}
		fmt.Printf("Seeded provider config for %s (tenant default)\n", p.Provider)
	}

	fmt.Println("\nDone. Try:")
	fmt.Println(`  curl -H "Authorization: Bearer <key>" -d '{"model":"demo-agent/main/fast","messages":[{"role":"user","content":"hi"}]}' localhost:8080/v1/chat/completions`)
}
