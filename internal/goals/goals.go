// Package goals tracks user-stated objectives with a deduplicating merge
// step: a new statement that matches an open goal refreshes that row
// instead of creating another.
package goals

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/verso-app/verso/internal/evidence"
	"github.com/verso-app/verso/internal/logging"
	"github.com/verso-app/verso/internal/store"
	"github.com/verso-app/verso/internal/types"
)

// Tracker records and reads goals.
type Tracker struct {
	db      *store.DB
	matcher Matcher
}

// New creates a tracker with the default prefix matcher.
func New(db *store.DB) *Tracker {
	return &Tracker{db: db, matcher: DefaultMatcher()}
}

// SetMatcher swaps the dedup heuristic.
func (t *Tracker) SetMatcher(m Matcher) {
	t.matcher = m
}

// MergeOrCreate applies one goal observation. If the matcher finds an
// open goal for the description, that row's last_mentioned advances and
// its status updates when the observation supplies one; otherwise a new
// row is inserted (with evidence, if a quote came along).
func (t *Tracker) MergeOrCreate(sess *types.Session, obs types.GoalObservation) (*types.Goal, error) {
	if sess == nil || sess.UserID == "" {
		return nil, fmt.Errorf("no active session")
	}
	if obs.Description == "" {
		return nil, fmt.Errorf("description is required")
	}

	open, err := t.openGoals(sess.UserID)
	if err != nil {
		return nil, err
	}

	if match := t.matcher.Match(open, obs.Description); match != nil {
		status := match.Status
		if obs.Status != "" {
			status = obs.Status
		}
		now := time.Now()
		_, err := t.db.Handle().Exec(`
			UPDATE goals SET status = ?, last_mentioned = ? WHERE id = ?
		`, string(status), now, match.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to update goal: %w", err)
		}
		match.Status = status
		match.LastMentioned = now
		logging.Debug("goals", "merged into %s: %s", match.ID, logging.Truncate(obs.Description, 50))
		return match, nil
	}

	status := obs.Status
	if status == "" {
		status = types.GoalStated
	}
	now := time.Now()
	goal := &types.Goal{
		ID:            uuid.NewString(),
		UserID:        sess.UserID,
		Description:   obs.Description,
		Status:        status,
		Timeframe:     obs.Timeframe,
		FirstStated:   now,
		LastMentioned: now,
	}

	err = t.db.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO goals (id, user_id, description, status, timeframe, first_stated, last_mentioned)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, goal.ID, goal.UserID, goal.Description, string(goal.Status),
			goal.Timeframe, goal.FirstStated, goal.LastMentioned)
		if err != nil {
			return fmt.Errorf("failed to insert goal: %w", err)
		}
		return evidence.AppendTx(tx, sess, types.TargetGoal, goal.ID, obs.MessageID, obs.Quote)
	})
	if err != nil {
		return nil, err
	}

	logging.Debug("goals", "created %s: %s", goal.ID, logging.Truncate(obs.Description, 50))
	return goal, nil
}

// Active returns goals with status stated or in_progress, most recently
// mentioned first, truncated to limit. Terminal goals never appear.
func (t *Tracker) Active(sess *types.Session, limit int) ([]*types.Goal, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := t.db.Handle().Query(`
		SELECT id, COALESCE(user_id, ''), description, status, COALESCE(timeframe, ''),
			first_stated, last_mentioned
		FROM goals
		WHERE user_id = ? AND status IN (?, ?)
		ORDER BY last_mentioned DESC
		LIMIT ?
	`, sess.UserID, string(types.GoalStated), string(types.GoalInProgress), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query active goals: %w", err)
	}
	defer rows.Close()
	return scanGoals(rows)
}

// ForUser returns every goal for a user regardless of status, most
// recently mentioned first.
func (t *Tracker) ForUser(userID string) ([]*types.Goal, error) {
	rows, err := t.db.Handle().Query(`
		SELECT id, COALESCE(user_id, ''), description, status, COALESCE(timeframe, ''),
			first_stated, last_mentioned
		FROM goals WHERE user_id = ?
		ORDER BY last_mentioned DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query goals: %w", err)
	}
	defer rows.Close()
	return scanGoals(rows)
}

// SetStatus moves a goal to a new lifecycle status.
func (t *Tracker) SetStatus(goalID string, status types.GoalStatus) error {
	res, err := t.db.Handle().Exec(`
		UPDATE goals SET status = ?, last_mentioned = CURRENT_TIMESTAMP WHERE id = ?
	`, string(status), goalID)
	if err != nil {
		return fmt.Errorf("failed to update goal status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("goal %s not found", goalID)
	}
	return nil
}

// openGoals returns the user's non-terminal goals, newest mention first,
// the candidate set the matcher works over.
func (t *Tracker) openGoals(userID string) ([]*types.Goal, error) {
	rows, err := t.db.Handle().Query(`
		SELECT id, COALESCE(user_id, ''), description, status, COALESCE(timeframe, ''),
			first_stated, last_mentioned
		FROM goals
		WHERE user_id = ? AND status NOT IN (?, ?)
		ORDER BY last_mentioned DESC
	`, userID, string(types.GoalAchieved), string(types.GoalAbandoned))
	if err != nil {
		return nil, fmt.Errorf("failed to query open goals: %w", err)
	}
	defer rows.Close()
	return scanGoals(rows)
}

func scanGoals(rows *sql.Rows) ([]*types.Goal, error) {
	out := []*types.Goal{}
	for rows.Next() {
		g := &types.Goal{}
		var status string
		if err := rows.Scan(&g.ID, &g.UserID, &g.Description, &status, &g.Timeframe,
			&g.FirstStated, &g.LastMentioned); err != nil {
			return nil, err
		}
		g.Status = types.GoalStatus(status)
		out = append(out, g)
	}
	return out, rows.Err()
}
