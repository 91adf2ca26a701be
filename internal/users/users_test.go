package users

import (
	"os"
	"testing"

	"github.com/verso-app/verso/internal/goals"
	"github.com/verso-app/verso/internal/signals"
	"github.com/verso-app/verso/internal/store"
	"github.com/verso-app/verso/internal/types"
	"github.com/verso-app/verso/internal/vecindex"
)

// setupTestDB creates a temporary store for testing
func setupTestDB(t *testing.T) (*store.DB, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "users-test-*")
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

func TestCreateAssignsPaletteRoundRobin(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	m := New(db)
	for i := 0; i < len(DefaultPalette)+2; i++ {
		u, err := m.Create("user", "")
		if err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
		want := DefaultPalette[i%len(DefaultPalette)]
		if u.AvatarColor != want {
			t.Errorf("User %d color = %s, want %s", i, u.AvatarColor, want)
		}
	}
}

func TestCreateKeepsExplicitColor(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	m := New(db)
	u, err := m.Create("alice", "#123456")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if u.AvatarColor != "#123456" {
		t.Errorf("Color = %s, want explicit #123456", u.AvatarColor)
	}

	if _, err := m.Create("", ""); err == nil {
		t.Error("Create with empty name should fail")
	}
}

func TestSelectTracksActiveSession(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	m := New(db)
	if m.Active() != nil {
		t.Error("Active session should start nil")
	}

	u, err := m.Create("alice", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	sess, err := m.Select(u.ID)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if sess.UserID != u.ID || sess.Name != "alice" {
		t.Errorf("Session = %+v, want user %s", sess, u.ID)
	}
	if m.Active() != sess {
		t.Error("Active() should return the selected session")
	}

	if _, err := m.Select("nonexistent"); err == nil {
		t.Error("Select of unknown user should fail")
	}
}

func TestDeleteReturnsOwnedMessageIDs(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	m := New(db)
	u, err := m.Create("alice", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	sess := &types.Session{UserID: u.ID, Name: u.Name}

	conv, err := db.AddConversation(sess, "first chat")
	if err != nil {
		t.Fatalf("AddConversation failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := db.AddMessage(conv.ID, "user", "hello"); err != nil {
			t.Fatalf("AddMessage failed: %v", err)
		}
	}

	res, err := m.Delete(u.ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("Delete not successful: %s", res.Error)
	}
	if len(res.MessageIDs) != 3 {
		t.Errorf("Got %d message ids, want 3", len(res.MessageIDs))
	}

	// Second delete of the same id is a structured failure, not an error.
	res2, err := m.Delete(u.ID)
	if err != nil {
		t.Fatalf("Second Delete errored: %v", err)
	}
	if res2.Success {
		t.Error("Second Delete should report success=false")
	}
	if res2.Error != "user not found" {
		t.Errorf("Second Delete error = %q, want 'user not found'", res2.Error)
	}
}

func TestDeleteCascadesEveryStore(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	m := New(db)
	u, err := m.Create("alice", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	sess := &types.Session{UserID: u.ID, Name: u.Name}

	conv, err := db.AddConversation(sess, "chat")
	if err != nil {
		t.Fatalf("AddConversation failed: %v", err)
	}
	msg, err := db.AddMessage(conv.ID, "user", "I worry about money constantly")
	if err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}
	if err := db.SetConversationSummary(conv.ID, "money worries"); err != nil {
		t.Fatalf("SetConversationSummary failed: %v", err)
	}
	if err := db.AddExtraction(msg.ID, "done", "{}"); err != nil {
		t.Fatalf("AddExtraction failed: %v", err)
	}

	sig := signals.New(db)
	if _, err := sig.Record(sess, types.SignalObservation{
		Dimension: "big_five.neuroticism", Value: signals.Score(0.7),
		Quote: "I worry about money constantly", MessageID: msg.ID, Weight: 0.2,
	}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	tracker := goals.New(db)
	if _, err := tracker.MergeOrCreate(sess, types.GoalObservation{Description: "Build an emergency fund"}); err != nil {
		t.Fatalf("MergeOrCreate failed: %v", err)
	}
	if _, err := db.UpsertValue(sess, "security", 0.8); err != nil {
		t.Fatalf("UpsertValue failed: %v", err)
	}
	if _, err := db.UpsertChallenge(sess, "financial stress", ""); err != nil {
		t.Fatalf("UpsertChallenge failed: %v", err)
	}
	if _, err := db.UpsertActivity(sess, "budgeting", "finance"); err != nil {
		t.Fatalf("UpsertActivity failed: %v", err)
	}
	if err := db.SetProfileSummary(u.ID, "anxious saver"); err != nil {
		t.Fatalf("SetProfileSummary failed: %v", err)
	}

	res, err := m.Delete(u.ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !res.Success || len(res.MessageIDs) != 1 {
		t.Fatalf("Delete result = %+v, want success with one message id", res)
	}

	tables := []string{
		"evidence", "extractions", "conversation_summaries", "messages",
		"conversations", "user_values", "challenges", "goals", "activities",
		"signals", "profile_summaries", "users",
	}
	for _, table := range tables {
		var n int
		if err := db.Handle().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Fatalf("Count %s failed: %v", table, err)
		}
		if n != 0 {
			t.Errorf("%s still has %d rows after delete", table, n)
		}
	}
}

func TestDeleteEnqueuesVectorCleanup(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	m := New(db)
	u, err := m.Create("alice", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	sess := &types.Session{UserID: u.ID, Name: u.Name}

	conv, err := db.AddConversation(sess, "chat")
	if err != nil {
		t.Fatalf("AddConversation failed: %v", err)
	}
	msg1, _ := db.AddMessage(conv.ID, "user", "one")
	msg2, _ := db.AddMessage(conv.ID, "assistant", "two")

	if _, err := m.Delete(u.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	queue := vecindex.NewQueue(db)
	ops, err := queue.Pending(0)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("Got %d outbox ops, want 2", len(ops))
	}
	want := map[string]bool{msg1.ID: true, msg2.ID: true}
	for _, op := range ops {
		if op.Action != vecindex.ActionDelete {
			t.Errorf("Op action = %s, want delete", op.Action)
		}
		if !want[op.MessageID] {
			t.Errorf("Unexpected message id %s in outbox", op.MessageID)
		}
	}
}

func TestDeleteClearsActiveSession(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	m := New(db)
	alice, _ := m.Create("alice", "")
	bob, _ := m.Create("bob", "")

	if _, err := m.Select(alice.ID); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if _, err := m.Delete(bob.ID); err != nil {
		t.Fatalf("Delete bob failed: %v", err)
	}
	if m.Active() == nil {
		t.Error("Deleting another user should keep the active session")
	}

	if _, err := m.Delete(alice.ID); err != nil {
		t.Fatalf("Delete alice failed: %v", err)
	}
	if m.Active() != nil {
		t.Error("Deleting the active user should clear the session")
	}
}

func TestRenamePreservesEmptyFields(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	m := New(db)
	u, err := m.Create("alice", "#111111")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := m.Rename(u.ID, "alicia", ""); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	got, err := m.Get(u.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "alicia" || got.AvatarColor != "#111111" {
		t.Errorf("After rename: %s/%s, want alicia/#111111", got.Name, got.AvatarColor)
	}
}
