// Package profile assembles read-only composite views over the signal
// store, goal tracker and category tables. Nothing here mutates state;
// a user with zero data gets a populated-but-empty profile, never an
// error.
package profile

import (
	"strings"
	"time"

	"github.com/verso-app/verso/internal/goals"
	"github.com/verso-app/verso/internal/signals"
	"github.com/verso-app/verso/internal/store"
	"github.com/verso-app/verso/internal/types"
)

// Canonical dimension lists. Traits appear in the composite profile in
// this order when a signal exists for them.
var (
	BigFiveTraits = []string{
		"openness", "conscientiousness", "extraversion", "agreeableness", "neuroticism",
	}
	MoralFoundations = []string{
		"care", "fairness", "loyalty", "authority", "sanctity",
	}
	MaslowLevels = []string{
		"physiological", "safety", "belonging", "esteem", "self_actualization",
	}
	// SingletonDimensions are the standalone psychological attributes.
	SingletonDimensions = []string{
		"risk_tolerance",
		"attachment_style",
		"locus_of_control",
		"decision_style",
		"stress_response",
		"self_efficacy",
		"growth_orientation",
		"social_energy",
		"time_orientation",
	}
)

// TraitScore is one scored trait within a family.
type TraitScore struct {
	Name          string    `json:"name"`
	Score         float64   `json:"score"`
	Confidence    float64   `json:"confidence"`
	EvidenceCount int       `json:"evidence_count"`
	LastUpdated   time.Time `json:"last_updated"`
}

// Singleton is one standalone attribute. Absent singletons are null in
// the composite profile.
type Singleton struct {
	Value         string    `json:"value"`
	Confidence    float64   `json:"confidence"`
	EvidenceCount int       `json:"evidence_count"`
	LastUpdated   time.Time `json:"last_updated"`
}

// LifeFact is one life-situation key/value pair, namespace prefix removed.
type LifeFact struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Profile is the full composite view the UI and onboarding flows consume.
type Profile struct {
	UserID           string                `json:"user_id"`
	Summary          string                `json:"summary"`
	LifeSituation    []LifeFact            `json:"life_situation"`
	BigFive          []TraitScore          `json:"big_five"`
	MoralFoundations []TraitScore          `json:"moral_foundations"`
	Maslow           []TraitScore          `json:"maslow"`
	Singletons       map[string]*Singleton `json:"singletons"`
	Values           []*types.UserValue    `json:"values"`
	Challenges       []*types.Challenge    `json:"challenges"`
	Activities       []*types.Activity     `json:"activities"`
	ActiveGoals      []*types.Goal         `json:"active_goals"`
}

// Aggregator composes the stores into profile views.
type Aggregator struct {
	db      *store.DB
	signals *signals.Store
	goals   *goals.Tracker
}

// New creates an aggregator over the shared stores.
func New(db *store.DB, sig *signals.Store, tracker *goals.Tracker) *Aggregator {
	return &Aggregator{db: db, signals: sig, goals: tracker}
}

// Complete builds the full composite profile for the session user. Every
// absent singleton is nil and every absent category is an empty list;
// the call never fails because data is missing.
func (a *Aggregator) Complete(sess *types.Session) (*Profile, error) {
	p := &Profile{
		UserID:           sess.UserID,
		LifeSituation:    []LifeFact{},
		BigFive:          []TraitScore{},
		MoralFoundations: []TraitScore{},
		Maslow:           []TraitScore{},
		Singletons:       map[string]*Singleton{},
		Values:           []*types.UserValue{},
		Challenges:       []*types.Challenge{},
		Activities:       []*types.Activity{},
		ActiveGoals:      []*types.Goal{},
	}
	for _, dim := range SingletonDimensions {
		p.Singletons[dim] = nil
	}

	all, err := a.signals.ForUser(sess.UserID)
	if err != nil {
		return nil, err
	}
	byDim := make(map[string]*types.Signal, len(all))
	for _, sig := range all {
		byDim[sig.Dimension] = sig
	}

	p.BigFive = traitList(byDim, signals.FamilyBigFive, BigFiveTraits)
	p.MoralFoundations = traitList(byDim, signals.FamilyMoral, MoralFoundations)
	p.Maslow = traitList(byDim, signals.FamilyMaslow, MaslowLevels)

	for _, sig := range all {
		if !strings.HasPrefix(sig.Dimension, signals.FamilyLifeSituation) {
			continue
		}
		p.LifeSituation = append(p.LifeSituation, LifeFact{
			Key:   strings.TrimPrefix(sig.Dimension, signals.FamilyLifeSituation),
			Value: sig.Value.Text,
		})
	}

	for _, dim := range SingletonDimensions {
		sig, ok := byDim[dim]
		if !ok {
			continue
		}
		p.Singletons[dim] = &Singleton{
			Value:         sig.Value.Text,
			Confidence:    sig.Confidence,
			EvidenceCount: sig.EvidenceCount,
			LastUpdated:   sig.LastUpdated,
		}
	}

	if p.Summary, err = a.db.ProfileSummary(sess.UserID); err != nil {
		return nil, err
	}
	if p.Values, err = a.db.ValuesForUser(sess.UserID); err != nil {
		return nil, err
	}
	if p.Challenges, err = a.db.ChallengesForUser(sess.UserID); err != nil {
		return nil, err
	}
	if p.Activities, err = a.db.ActivitiesForUser(sess.UserID); err != nil {
		return nil, err
	}
	if p.ActiveGoals, err = a.goals.Active(sess, 10); err != nil {
		return nil, err
	}

	return p, nil
}

// AllSignals dumps every signal row across all users, newest first.
// Operator/debug capability, not a production read path, and explicitly
// unpaginated.
func (a *Aggregator) AllSignals() ([]*types.Signal, error) {
	return a.signals.All()
}

func traitList(byDim map[string]*types.Signal, prefix string, names []string) []TraitScore {
	out := []TraitScore{}
	for _, name := range names {
		sig, ok := byDim[prefix+name]
		if !ok {
			continue
		}
		out = append(out, TraitScore{
			Name:          name,
			Score:         sig.Value.Score,
			Confidence:    sig.Confidence,
			EvidenceCount: sig.EvidenceCount,
			LastUpdated:   sig.LastUpdated,
		})
	}
	return out
}
