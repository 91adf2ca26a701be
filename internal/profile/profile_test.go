package profile

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/verso-app/verso/internal/goals"
	"github.com/verso-app/verso/internal/signals"
	"github.com/verso-app/verso/internal/store"
	"github.com/verso-app/verso/internal/types"
)

// setupTest creates a temporary aggregator with all collaborators
func setupTest(t *testing.T) (*store.DB, *Aggregator, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "profile-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	db, err := store.Open(tmpDir)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to open database: %v", err)
	}

	sig := signals.New(db)
	tracker := goals.New(db)
	agg := New(db, sig, tracker)

	cleanup := func() {
		db.Close()
		os.RemoveAll(tmpDir)
	}
	return db, agg, cleanup
}

func TestEmptyProfileIsPopulatedButEmpty(t *testing.T) {
	_, agg, cleanup := setupTest(t)
	defer cleanup()

	p, err := agg.Complete(&types.Session{UserID: "user-with-no-data"})
	if err != nil {
		t.Fatalf("Complete failed on empty user: %v", err)
	}

	if p.LifeSituation == nil || len(p.LifeSituation) != 0 {
		t.Errorf("LifeSituation = %v, want empty non-nil", p.LifeSituation)
	}
	if p.BigFive == nil || len(p.BigFive) != 0 {
		t.Errorf("BigFive = %v, want empty non-nil", p.BigFive)
	}
	if p.MoralFoundations == nil || len(p.MoralFoundations) != 0 {
		t.Errorf("MoralFoundations = %v, want empty non-nil", p.MoralFoundations)
	}
	if len(p.Singletons) != len(SingletonDimensions) {
		t.Errorf("Got %d singleton slots, want %d", len(p.Singletons), len(SingletonDimensions))
	}
	for dim, v := range p.Singletons {
		if v != nil {
			t.Errorf("Singleton %s = %+v, want nil", dim, v)
		}
	}
	if p.Values == nil || p.Challenges == nil || p.Activities == nil || p.ActiveGoals == nil {
		t.Error("Category lists must be non-nil empty collections")
	}
	if p.Summary != "" {
		t.Errorf("Summary = %q, want empty", p.Summary)
	}

	// The composite must serialize without surprises
	if _, err := json.Marshal(p); err != nil {
		t.Errorf("Profile failed to marshal: %v", err)
	}
}

func TestCompleteAssemblesAllFamilies(t *testing.T) {
	db, agg, cleanup := setupTest(t)
	defer cleanup()

	sig := signals.New(db)
	tracker := goals.New(db)
	sess := &types.Session{UserID: "user-1"}

	observations := []types.SignalObservation{
		{Dimension: "big_five.openness", Value: signals.Score(0.8), Weight: 0.2},
		{Dimension: "big_five.neuroticism", Value: signals.Score(0.3), Weight: 0.1},
		{Dimension: "moral_foundations.care", Value: signals.Score(0.9), Weight: 0.15},
		{Dimension: "maslow.esteem", Value: signals.Score(0.6), Weight: 0.1},
		{Dimension: "life_situation.work_status", Value: signals.Text("between jobs"), Weight: 0.2},
		{Dimension: "life_situation.living_arrangement", Value: signals.Text("with roommates"), Weight: 0.1},
		{Dimension: "risk_tolerance", Value: signals.Text("low"), Weight: 0.2},
	}
	for _, obs := range observations {
		if _, err := sig.Record(sess, obs); err != nil {
			t.Fatalf("Record %s failed: %v", obs.Dimension, err)
		}
	}

	if _, err := tracker.MergeOrCreate(sess, types.GoalObservation{
		Description: "Find a job that doesn't burn me out",
	}); err != nil {
		t.Fatalf("MergeOrCreate failed: %v", err)
	}
	if _, err := db.UpsertValue(sess, "honesty", 0.9); err != nil {
		t.Fatalf("UpsertValue failed: %v", err)
	}
	if _, err := db.UpsertChallenge(sess, "job search anxiety", ""); err != nil {
		t.Fatalf("UpsertChallenge failed: %v", err)
	}
	if _, err := db.UpsertActivity(sess, "bouldering", "exercise"); err != nil {
		t.Fatalf("UpsertActivity failed: %v", err)
	}
	if err := db.SetProfileSummary(sess.UserID, "Cautious, between jobs, values honesty."); err != nil {
		t.Fatalf("SetProfileSummary failed: %v", err)
	}

	p, err := agg.Complete(sess)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if len(p.BigFive) != 2 {
		t.Fatalf("BigFive has %d traits, want 2", len(p.BigFive))
	}
	// Canonical order: openness before neuroticism
	if p.BigFive[0].Name != "openness" || p.BigFive[0].Score != 0.8 {
		t.Errorf("BigFive[0] = %+v, want openness 0.8", p.BigFive[0])
	}
	if len(p.MoralFoundations) != 1 || p.MoralFoundations[0].Name != "care" {
		t.Errorf("MoralFoundations = %+v, want [care]", p.MoralFoundations)
	}
	if len(p.Maslow) != 1 || p.Maslow[0].Name != "esteem" {
		t.Errorf("Maslow = %+v, want [esteem]", p.Maslow)
	}
	if len(p.LifeSituation) != 2 {
		t.Errorf("LifeSituation has %d facts, want 2", len(p.LifeSituation))
	}
	for _, f := range p.LifeSituation {
		if f.Key == "work_status" && f.Value != "between jobs" {
			t.Errorf("work_status = %q, want 'between jobs'", f.Value)
		}
	}
	rt := p.Singletons["risk_tolerance"]
	if rt == nil || rt.Value != "low" {
		t.Errorf("risk_tolerance singleton = %+v, want low", rt)
	}
	if p.Singletons["attachment_style"] != nil {
		t.Error("Unobserved singleton should stay nil")
	}
	if len(p.ActiveGoals) != 1 || len(p.Values) != 1 || len(p.Challenges) != 1 || len(p.Activities) != 1 {
		t.Errorf("Categories = goals:%d values:%d challenges:%d activities:%d, want 1 each",
			len(p.ActiveGoals), len(p.Values), len(p.Challenges), len(p.Activities))
	}
	if p.Summary == "" {
		t.Error("Summary missing")
	}
}

func TestAllSignalsSpansUsers(t *testing.T) {
	db, agg, cleanup := setupTest(t)
	defer cleanup()

	sig := signals.New(db)
	for _, user := range []string{"user-a", "user-b"} {
		if _, err := sig.Record(&types.Session{UserID: user}, types.SignalObservation{
			Dimension: "risk_tolerance", Value: signals.Text("moderate"), Weight: 0.1,
		}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	all, err := agg.AllSignals()
	if err != nil {
		t.Fatalf("AllSignals failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Got %d rows, want 2 across users", len(all))
	}
}
