package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/verso-app/verso/internal/types"
)

// Category tables (values, challenges, activities, profile summary) sit
// alongside the dimension signals: they have their own shapes, their own
// orphan-claim semantics, and show up as lists in the composite profile.

// UpsertValue records or refreshes a personal value by name.
func (s *DB) UpsertValue(sess *types.Session, name string, importance float64) (*types.UserValue, error) {
	var existing types.UserValue
	err := s.db.QueryRow(`
		SELECT id, COALESCE(user_id, ''), name, importance, last_updated
		FROM user_values WHERE user_id = ? AND name = ?
	`, sess.UserID, name).Scan(&existing.ID, &existing.UserID, &existing.Name,
		&existing.Importance, &existing.LastUpdated)
	if err == nil {
		_, err = s.db.Exec(`
			UPDATE user_values SET importance = ?, last_updated = CURRENT_TIMESTAMP WHERE id = ?
		`, importance, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to update value: %w", err)
		}
		existing.Importance = importance
		existing.LastUpdated = time.Now()
		return &existing, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query value: %w", err)
	}

	v := &types.UserValue{
		ID:          uuid.NewString(),
		UserID:      sess.UserID,
		Name:        name,
		Importance:  importance,
		LastUpdated: time.Now(),
	}
	_, err = s.db.Exec(`
		INSERT INTO user_values (id, user_id, name, importance, last_updated)
		VALUES (?, ?, ?, ?, ?)
	`, v.ID, v.UserID, v.Name, v.Importance, v.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("failed to insert value: %w", err)
	}
	return v, nil
}

// ValuesForUser lists personal values, most important first.
func (s *DB) ValuesForUser(userID string) ([]*types.UserValue, error) {
	rows, err := s.db.Query(`
		SELECT id, COALESCE(user_id, ''), name, importance, last_updated
		FROM user_values WHERE user_id = ?
		ORDER BY importance DESC, last_updated DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query values: %w", err)
	}
	defer rows.Close()

	vals := []*types.UserValue{}
	for rows.Next() {
		v := &types.UserValue{}
		if err := rows.Scan(&v.ID, &v.UserID, &v.Name, &v.Importance, &v.LastUpdated); err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, rows.Err()
}

// UpsertChallenge records or refreshes a challenge by description.
func (s *DB) UpsertChallenge(sess *types.Session, description, status string) (*types.Challenge, error) {
	if status == "" {
		status = "open"
	}
	var id string
	err := s.db.QueryRow(`
		SELECT id FROM challenges WHERE user_id = ? AND description = ?
	`, sess.UserID, description).Scan(&id)
	if err == nil {
		_, err = s.db.Exec(`
			UPDATE challenges SET status = ?, last_updated = CURRENT_TIMESTAMP WHERE id = ?
		`, status, id)
		if err != nil {
			return nil, fmt.Errorf("failed to update challenge: %w", err)
		}
		return &types.Challenge{ID: id, UserID: sess.UserID, Description: description,
			Status: status, LastUpdated: time.Now()}, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query challenge: %w", err)
	}

	c := &types.Challenge{
		ID:          uuid.NewString(),
		UserID:      sess.UserID,
		Description: description,
		Status:      status,
		LastUpdated: time.Now(),
	}
	_, err = s.db.Exec(`
		INSERT INTO challenges (id, user_id, description, status, last_updated)
		VALUES (?, ?, ?, ?, ?)
	`, c.ID, c.UserID, c.Description, c.Status, c.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("failed to insert challenge: %w", err)
	}
	return c, nil
}

// ChallengesForUser lists challenges, most recently touched first.
func (s *DB) ChallengesForUser(userID string) ([]*types.Challenge, error) {
	rows, err := s.db.Query(`
		SELECT id, COALESCE(user_id, ''), description, COALESCE(status, 'open'), last_updated
		FROM challenges WHERE user_id = ?
		ORDER BY last_updated DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query challenges: %w", err)
	}
	defer rows.Close()

	out := []*types.Challenge{}
	for rows.Next() {
		c := &types.Challenge{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.Description, &c.Status, &c.LastUpdated); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertActivity records or refreshes an activity by name.
func (s *DB) UpsertActivity(sess *types.Session, name, category string) (*types.Activity, error) {
	var id string
	err := s.db.QueryRow(`
		SELECT id FROM activities WHERE user_id = ? AND name = ?
	`, sess.UserID, name).Scan(&id)
	if err == nil {
		_, err = s.db.Exec(`
			UPDATE activities SET category = ?, last_mentioned = CURRENT_TIMESTAMP WHERE id = ?
		`, category, id)
		if err != nil {
			return nil, fmt.Errorf("failed to update activity: %w", err)
		}
		return &types.Activity{ID: id, UserID: sess.UserID, Name: name,
			Category: category, LastMentioned: time.Now()}, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}

	a := &types.Activity{
		ID:            uuid.NewString(),
		UserID:        sess.UserID,
		Name:          name,
		Category:      category,
		LastMentioned: time.Now(),
	}
	_, err = s.db.Exec(`
		INSERT INTO activities (id, user_id, name, category, last_mentioned)
		VALUES (?, ?, ?, ?, ?)
	`, a.ID, a.UserID, a.Name, a.Category, a.LastMentioned)
	if err != nil {
		return nil, fmt.Errorf("failed to insert activity: %w", err)
	}
	return a, nil
}

// ActivitiesForUser lists activities, most recently mentioned first.
func (s *DB) ActivitiesForUser(userID string) ([]*types.Activity, error) {
	rows, err := s.db.Query(`
		SELECT id, COALESCE(user_id, ''), name, COALESCE(category, ''), last_mentioned
		FROM activities WHERE user_id = ?
		ORDER BY last_mentioned DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	out := []*types.Activity{}
	for rows.Next() {
		a := &types.Activity{}
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Category, &a.LastMentioned); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetProfileSummary stores or replaces the user's free-text summary.
func (s *DB) SetProfileSummary(userID, summary string) error {
	_, err := s.db.Exec(`
		INSERT INTO profile_summaries (user_id, summary, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			summary = excluded.summary,
			updated_at = excluded.updated_at
	`, userID, summary)
	if err != nil {
		return fmt.Errorf("failed to set profile summary: %w", err)
	}
	return nil
}

// ProfileSummary returns the user's summary, or "" if none exists.
func (s *DB) ProfileSummary(userID string) (string, error) {
	var summary string
	err := s.db.QueryRow(`SELECT summary FROM profile_summaries WHERE user_id = ?`, userID).Scan(&summary)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query profile summary: %w", err)
	}
	return summary, nil
}
