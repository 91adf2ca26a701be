package evidence

import (
	"os"
	"testing"
	"time"

	"github.com/verso-app/verso/internal/store"
	"github.com/verso-app/verso/internal/types"
)

// setupTestDB creates a temporary test database
func setupTestDB(t *testing.T) (*store.DB, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "evidence-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	db, err := store.Open(tmpDir)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to open database: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.RemoveAll(tmpDir)
	}
	return db, cleanup
}

func TestEmptyQuoteIsANoOp(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	l := NewLedger(db)
	sess := &types.Session{UserID: "user-1"}

	if err := l.Record(sess, types.TargetSignal, "risk_tolerance", "msg-1", ""); err != nil {
		t.Fatalf("Record with empty quote errored: %v", err)
	}

	rows, err := l.ForDimension("risk_tolerance")
	if err != nil {
		t.Fatalf("ForDimension failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("Got %d rows after empty-quote record, want 0", len(rows))
	}
}

func TestForTargetNewestFirst(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	l := NewLedger(db)
	sess := &types.Session{UserID: "user-1"}

	quotes := []string{
		"I always double-check before deciding",
		"I slept on it for a week first",
		"I made a pros and cons list again",
	}
	for _, q := range quotes {
		if err := l.Record(sess, types.TargetSignal, "decision_style", "msg-x", q); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	rows, err := l.ForDimension("decision_style")
	if err != nil {
		t.Fatalf("ForDimension failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Got %d rows, want 3", len(rows))
	}
	if rows[0].Quote != quotes[2] {
		t.Errorf("First row = %q, want newest %q", rows[0].Quote, quotes[2])
	}
	if rows[2].Quote != quotes[0] {
		t.Errorf("Last row = %q, want oldest %q", rows[2].Quote, quotes[0])
	}
}

func TestTargetsAreIsolated(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	l := NewLedger(db)
	sess := &types.Session{UserID: "user-1"}

	if err := l.Record(sess, types.TargetSignal, "self_efficacy", "msg-1", "I know I can figure this out"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := l.Record(sess, types.TargetGoal, "goal-123", "msg-2", "I want to run a 10k"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	sigRows, err := l.ForTarget(types.TargetSignal, "self_efficacy")
	if err != nil {
		t.Fatalf("ForTarget failed: %v", err)
	}
	goalRows, err := l.ForTarget(types.TargetGoal, "goal-123")
	if err != nil {
		t.Fatalf("ForTarget failed: %v", err)
	}
	if len(sigRows) != 1 || len(goalRows) != 1 {
		t.Errorf("Got %d signal rows and %d goal rows, want 1 and 1", len(sigRows), len(goalRows))
	}
	if goalRows[0].MessageID != "msg-2" {
		t.Errorf("Goal evidence message id = %q, want msg-2", goalRows[0].MessageID)
	}
}
