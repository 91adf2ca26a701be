package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/verso-app/verso/internal/config"
	"github.com/verso-app/verso/internal/state"
	"github.com/verso-app/verso/internal/store"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load(os.Getenv("VERSO_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cmd := "summary"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	db, err := store.OpenFile(cfg.DatabasePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	inspector := state.NewInspector(db)

	switch cmd {
	case "summary":
		handleSummary(inspector)
	case "health":
		handleHealth(inspector)
	case "json":
		handleJSON(inspector)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`verso-state - Inspect the profile database

Usage: verso-state <command>

Commands:
  summary   Row counts for every store component (default)
  health    Run health checks with recommendations
  json      Summary and health as one JSON document

Environment:
  VERSO_CONFIG       Config file path (optional)
  VERSO_STATE_PATH   State directory (default: "state")`)
}

func handleSummary(inspector *state.Inspector) {
	s, err := inspector.Summary()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Store summary")
	fmt.Println("=============")
	fmt.Printf("  users:          %d\n", s.Users)
	fmt.Printf("  conversations:  %d\n", s.Conversations)
	fmt.Printf("  messages:       %d\n", s.Messages)
	fmt.Printf("  signals:        %d\n", s.Signals)
	fmt.Printf("  evidence:       %d\n", s.Evidence)
	fmt.Printf("  goals:          %d\n", s.Goals)
	fmt.Printf("  values:         %d\n", s.Values)
	fmt.Printf("  challenges:     %d\n", s.Challenges)
	fmt.Printf("  activities:     %d\n", s.Activities)
	fmt.Printf("  orphan rows:    %d\n", s.OrphanRows)
	fmt.Printf("  outbox pending: %d\n", s.OutboxPending)
	fmt.Printf("  outbox failed:  %d\n", s.OutboxFailed)
}

func handleHealth(inspector *state.Inspector) {
	report, err := inspector.Health()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Status: %s\n", report.Status)
	for _, w := range report.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	for _, r := range report.Recommendations {
		fmt.Printf("  recommend: %s\n", r)
	}
}

func handleJSON(inspector *state.Inspector) {
	summary, err := inspector.Summary()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	health, err := inspector.Health()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	out, _ := json.MarshalIndent(map[string]any{
		"summary": summary,
		"health":  health,
	}, "", "  ")
	fmt.Println(string(out))
}
