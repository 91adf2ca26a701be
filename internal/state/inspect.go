// Package state provides read-only introspection over the profile
// database for the verso-state CLI.
package state

import (
	"fmt"

	"github.com/verso-app/verso/internal/store"
	"github.com/verso-app/verso/internal/vecindex"
)

// Inspector provides state introspection capabilities.
type Inspector struct {
	db    *store.DB
	queue *vecindex.Queue
}

// NewInspector creates a new state inspector.
func NewInspector(db *store.DB) *Inspector {
	return &Inspector{db: db, queue: vecindex.NewQueue(db)}
}

// StateSummary holds row counts for every store component.
type StateSummary struct {
	Users         int `json:"users"`
	Conversations int `json:"conversations"`
	Messages      int `json:"messages"`
	Signals       int `json:"signals"`
	Evidence      int `json:"evidence"`
	Goals         int `json:"goals"`
	Values        int `json:"values"`
	Challenges    int `json:"challenges"`
	Activities    int `json:"activities"`
	OutboxPending int `json:"outbox_pending"`
	OutboxFailed  int `json:"outbox_failed"`
	OrphanRows    int `json:"orphan_rows"`
}

// HealthReport holds health check results.
type HealthReport struct {
	Status          string   `json:"status"` // "healthy", "warnings"
	Warnings        []string `json:"warnings,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// Summary returns row counts across all tables.
func (i *Inspector) Summary() (*StateSummary, error) {
	s := &StateSummary{}
	err := i.db.Handle().QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM conversations),
			(SELECT COUNT(*) FROM messages),
			(SELECT COUNT(*) FROM signals),
			(SELECT COUNT(*) FROM evidence),
			(SELECT COUNT(*) FROM goals),
			(SELECT COUNT(*) FROM user_values),
			(SELECT COUNT(*) FROM challenges),
			(SELECT COUNT(*) FROM activities),
			(SELECT COUNT(*) FROM conversations WHERE user_id IS NULL)
				+ (SELECT COUNT(*) FROM signals WHERE user_id IS NULL)
				+ (SELECT COUNT(*) FROM goals WHERE user_id IS NULL)
	`).Scan(&s.Users, &s.Conversations, &s.Messages, &s.Signals, &s.Evidence,
		&s.Goals, &s.Values, &s.Challenges, &s.Activities, &s.OrphanRows)
	if err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}

	if s.OutboxPending, s.OutboxFailed, err = i.queue.Counts(); err != nil {
		return nil, err
	}
	return s, nil
}

// Health runs health checks and returns a report.
func (i *Inspector) Health() (*HealthReport, error) {
	report := &HealthReport{Status: "healthy"}

	summary, err := i.Summary()
	if err != nil {
		return nil, err
	}

	if summary.OutboxFailed > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%d vector-index operations exhausted retries", summary.OutboxFailed))
		report.Recommendations = append(report.Recommendations,
			"Check the vector index is reachable, then reset failed outbox rows")
	}

	if summary.OutboxPending > 100 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Large vector outbox backlog: %d pending", summary.OutboxPending))
		report.Recommendations = append(report.Recommendations,
			"Run verso-vecsync; the relational and vector stores are drifting")
	}

	if summary.OrphanRows > 0 {
		pending, perr := i.db.GetSetting(store.SettingMigrationPending)
		if perr == nil && pending != "true" {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("%d ownerless rows but no migration prompt pending", summary.OrphanRows))
			report.Recommendations = append(report.Recommendations,
				"Claim legacy data for a user or set the migration flag")
		}
	}

	if len(report.Warnings) > 0 {
		report.Status = "warnings"
	}
	return report, nil
}
