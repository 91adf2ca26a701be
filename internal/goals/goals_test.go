package goals

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

	tmpDir, err := os.MkdirTemp("", "goals-test-*")
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

func testSession() *types.Session {
	return &types.Session{UserID: "user-1", Name: "Test"}
}

func TestMergeBySharedPrefix(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	tr := New(db)
	sess := testSession()

	first, err := tr.MergeOrCreate(sess, types.GoalObservation{
		Description: "Get a promotion at work this year",
	})
	if err != nil {
		t.Fatalf("MergeOrCreate failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	// Shares the 30-char prefix; must refresh the same row
	second, err := tr.MergeOrCreate(sess, types.GoalObservation{
		Description: "Get a promotion at work",
	})
	if err != nil {
		t.Fatalf("MergeOrCreate failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("Restatement created a new goal %s, want merge into %s", second.ID, first.ID)
	}
	if !second.LastMentioned.After(first.LastMentioned) {
		t.Errorf("last_mentioned did not advance: %v -> %v", first.LastMentioned, second.LastMentioned)
	}

	// Unrelated description creates a distinct row
	third, err := tr.MergeOrCreate(sess, types.GoalObservation{
		Description: "Run a marathon in the spring",
	})
	if err != nil {
		t.Fatalf("MergeOrCreate failed: %v", err)
	}
	if third.ID == first.ID {
		t.Error("Unrelated goal merged into existing row")
	}

	all, err := tr.ForUser(sess.UserID)
	if err != nil {
		t.Fatalf("ForUser failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Got %d goals, want 2", len(all))
	}
}

func TestMergeUpdatesStatusOnlyWhenSupplied(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	tr := New(db)
	sess := testSession()

	g, err := tr.MergeOrCreate(sess, types.GoalObservation{
		Description: "Learn conversational Spanish before the trip",
	})
	if err != nil {
		t.Fatalf("MergeOrCreate failed: %v", err)
	}
	if g.Status != types.GoalStated {
		t.Errorf("Default status = %s, want stated", g.Status)
	}

	g, err = tr.MergeOrCreate(sess, types.GoalObservation{
		Description: "Learn conversational Spanish before the trip",
		Status:      types.GoalInProgress,
	})
	if err != nil {
		t.Fatalf("MergeOrCreate failed: %v", err)
	}
	if g.Status != types.GoalInProgress {
		t.Errorf("Status = %s, want in_progress", g.Status)
	}

	// No status supplied: existing status is retained
	g, err = tr.MergeOrCreate(sess, types.GoalObservation{
		Description: "Learn conversational Spanish before the trip",
	})
	if err != nil {
		t.Fatalf("MergeOrCreate failed: %v", err)
	}
	if g.Status != types.GoalInProgress {
		t.Errorf("Status = %s after statusless mention, want in_progress retained", g.Status)
	}
}

func TestTerminalGoalsAreNeverMatched(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	tr := New(db)
	sess := testSession()

	g, err := tr.MergeOrCreate(sess, types.GoalObservation{
		Description: "Finish reading the stoics reading list",
	})
	if err != nil {
		t.Fatalf("MergeOrCreate failed: %v", err)
	}
	if err := tr.SetStatus(g.ID, types.GoalAchieved); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	// Same description again: achieved goal must not absorb it
	g2, err := tr.MergeOrCreate(sess, types.GoalObservation{
		Description: "Finish reading the stoics reading list",
	})
	if err != nil {
		t.Fatalf("MergeOrCreate failed: %v", err)
	}
	if g2.ID == g.ID {
		t.Error("New statement merged into a terminal goal")
	}
}

func TestActiveExcludesTerminalAndHonorsLimit(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	tr := New(db)
	sess := testSession()

	descriptions := []string{
		"Save three months of expenses for an emergency fund",
		"Meditate every morning before checking my phone",
		"Repair the relationship with my sister after the argument",
		"Ship the side project before the end of the quarter",
	}
	var ids []string
	for _, d := range descriptions {
		g, err := tr.MergeOrCreate(sess, types.GoalObservation{Description: d})
		if err != nil {
			t.Fatalf("MergeOrCreate failed: %v", err)
		}
		ids = append(ids, g.ID)
		time.Sleep(5 * time.Millisecond)
	}

	if err := tr.SetStatus(ids[0], types.GoalAchieved); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if err := tr.SetStatus(ids[1], types.GoalAbandoned); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	active, err := tr.Active(sess, 10)
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("Got %d active goals, want 2", len(active))
	}
	for _, g := range active {
		if g.Status.Terminal() {
			t.Errorf("Active returned terminal goal %s (%s)", g.ID, g.Status)
		}
	}
	// Most recently mentioned first
	if active[0].ID != ids[3] {
		t.Errorf("Active order wrong: got %s first, want %s", active[0].ID, ids[3])
	}

	limited, err := tr.Active(sess, 1)
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Got %d goals with limit 1, want 1", len(limited))
	}
}

func TestNewGoalWithQuoteRecordsEvidence(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	tr := New(db)
	sess := testSession()

	g, err := tr.MergeOrCreate(sess, types.GoalObservation{
		Description: "Start volunteering at the food bank monthly",
		Quote:       "I keep saying I'll volunteer at the food bank, this month I will",
		MessageID:   "msg-7",
	})
	if err != nil {
		t.Fatalf("MergeOrCreate failed: %v", err)
	}

	var count int
	err = db.Handle().QueryRow(`
		SELECT COUNT(*) FROM evidence WHERE target_type = 'goal' AND target_id = ?
	`, g.ID).Scan(&count)
	if err != nil {
		t.Fatalf("count evidence: %v", err)
	}
	if count != 1 {
		t.Errorf("Got %d evidence rows for new goal, want 1", count)
	}
}

func TestPrefixMatcherShortDescriptions(t *testing.T) {
	m := PrefixMatcher{PrefixLen: 30}
	existing := []*types.Goal{{ID: "g1", Description: "Get fit"}}

	if got := m.Match(existing, "Get fit"); got == nil || got.ID != "g1" {
		t.Error("Short identical description should match")
	}
	if got := m.Match(existing, ""); got != nil {
		t.Error("Empty description must not match anything")
	}
}
