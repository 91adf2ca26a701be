package types

import "time"

// User is a profile owner. Every signal, goal and conversation row is
// scoped to exactly one user, except legacy orphan rows awaiting a claim.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	AvatarColor  string    `json:"avatar_color"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Session identifies the active user for a sequence of writes. It replaces
// a process-global "current user" pointer: callers obtain one from
// users.Manager.Select and thread it through every store call.
type Session struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// ValueKind tags which shape a signal value carries.
type ValueKind string

const (
	ValueText    ValueKind = "text"    // free-form string (life situation, singletons)
	ValueScore   ValueKind = "score"   // numeric trait score (big five, moral, maslow)
	ValuePayload ValueKind = "payload" // structured JSON (conversation intents)
)

// SignalValue is the decoded form of a signal's value column. The raw
// column stays an opaque string; encoding/decoding happens only at the
// store boundary, keyed by the dimension's family.
type SignalValue struct {
	Kind    ValueKind      `json:"kind"`
	Text    string         `json:"text,omitempty"`
	Score   float64        `json:"score,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Signal is one confidence-weighted fact about a user, keyed by a
// namespaced dimension such as "big_five.openness" or "risk_tolerance".
// At most one live row exists per (user, dimension).
type Signal struct {
	UserID        string      `json:"user_id"`
	Dimension     string      `json:"dimension"`
	Value         SignalValue `json:"value"`
	Confidence    float64     `json:"confidence"`
	EvidenceCount int         `json:"evidence_count"`
	LastUpdated   time.Time   `json:"last_updated"`
}

// SignalObservation is one structured extraction result handed to the
// signal store. Weight reflects the extraction source's reliability,
// typically 0.05-0.2.
type SignalObservation struct {
	Dimension string
	Value     SignalValue
	Quote     string // optional; empty means no evidence row
	MessageID string
	Weight    float64
}

// Evidence is an immutable quote-plus-provenance record supporting a
// signal dimension or a goal.
type Evidence struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	TargetType string    `json:"target_type"` // "signal" or "goal"
	TargetID   string    `json:"target_id"`   // dimension key or goal id
	MessageID  string    `json:"message_id"`
	Quote      string    `json:"quote"`
	CreatedAt  time.Time `json:"created_at"`
}

// Evidence target types.
const (
	TargetSignal = "signal"
	TargetGoal   = "goal"
)

// GoalStatus is the lifecycle state of a user-stated objective.
type GoalStatus string

const (
	GoalStated     GoalStatus = "stated"
	GoalInProgress GoalStatus = "in_progress"
	GoalAchieved   GoalStatus = "achieved"
	GoalAbandoned  GoalStatus = "abandoned"
)

// Terminal reports whether the status ends a goal's lifecycle. Terminal
// goals are never matched against new observations and never listed as
// active.
func (s GoalStatus) Terminal() bool {
	return s == GoalAchieved || s == GoalAbandoned
}

// Goal is a deduplicated user objective.
type Goal struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Description   string     `json:"description"`
	Status        GoalStatus `json:"status"`
	Timeframe     string     `json:"timeframe,omitempty"`
	FirstStated   time.Time  `json:"first_stated"`
	LastMentioned time.Time  `json:"last_mentioned"`
}

// GoalObservation is one extracted goal statement.
type GoalObservation struct {
	Description string
	Status      GoalStatus // optional; "" means keep existing / default to stated
	Timeframe   string
	Quote       string
	MessageID   string
}

// Conversation groups messages. Rows with an empty owner are legacy
// orphans awaiting a claim.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one chat message. The content also lives in the external
// vector index under the same id; deletion and claim hand those ids back
// for the index's own cleanup phase.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// DeleteResult reports the outcome of a user deletion. A missing user is
// a structured failure, not an error, so callers can probe safely.
type DeleteResult struct {
	Success    bool     `json:"success"`
	Error      string   `json:"error,omitempty"`
	MessageIDs []string `json:"message_ids,omitempty"`
}

// PendingCounts are the per-category orphan row counts behind the
// one-time migration prompt.
type PendingCounts struct {
	Conversations int `json:"conversations"`
	Values        int `json:"values"`
	Challenges    int `json:"challenges"`
	Goals         int `json:"goals"`
}

// Total returns the sum across categories.
func (p PendingCounts) Total() int {
	return p.Conversations + p.Values + p.Challenges + p.Goals
}

// ClaimResult reports a legacy-data claim. MessageIDs lists the messages
// whose vector-index entries must be retagged with the new owner.
type ClaimResult struct {
	MessageIDs []string `json:"message_ids"`
}

// UserValue is one thing the user cares about, kept as its own category
// table alongside the dimension signals.
type UserValue struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Importance  float64   `json:"importance"`
	LastUpdated time.Time `json:"last_updated"`
}

// Challenge is a difficulty the user is working through.
type Challenge struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	LastUpdated time.Time `json:"last_updated"`
}

// Activity is a recurring activity or habit the user mentions.
type Activity struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	LastMentioned time.Time `json:"last_mentioned"`
}
