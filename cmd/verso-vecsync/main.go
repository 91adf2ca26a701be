// verso-vecsync drains the vector outbox: the second, independently
// retried phase of user deletion and legacy-data claims. The relational
// transaction already committed; this applies the matching deletes and
// retags to the embedding index.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/verso-app/verso/internal/config"
	"github.com/verso-app/verso/internal/store"
	"github.com/verso-app/verso/internal/vecindex"
)

func main() {
	log.SetPrefix("[verso-vecsync] ")

	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env file")
	}

	maxAttempts := flag.Int("max-attempts", 5, "retries before an op is marked failed")
	flag.Parse()

	cfg, err := config.Load(os.Getenv("VERSO_CONFIG"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := store.OpenFile(cfg.DatabasePath())
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	embedder := vecindex.NewEmbedder(cfg.Ollama.BaseURL, cfg.Ollama.Model)
	index, err := vecindex.OpenChromem(cfg.VectorIndexPath(), embedder)
	if err != nil {
		log.Fatalf("open vector index: %v", err)
	}

	queue := vecindex.NewQueue(db)
	processor := vecindex.NewProcessor(queue, index, *maxAttempts)

	applied, err := processor.Drain(context.Background())
	if err != nil {
		log.Fatalf("drain: %v", err)
	}

	pending, failed, err := queue.Counts()
	if err != nil {
		log.Fatalf("counts: %v", err)
	}
	log.Printf("applied %d ops (%d still pending, %d failed)", applied, pending, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
