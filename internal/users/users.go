// Package users owns user identity, the active-session binding, atomic
// cross-table deletion, and the legacy-data claim. It is the only
// package that mutates rows across every store at once, always inside a
// single transaction; the vector index's matching cleanup is handed off
// through the durable outbox and drained separately.
package users

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/verso-app/verso/internal/logging"
	"github.com/verso-app/verso/internal/store"
	"github.com/verso-app/verso/internal/types"
	"github.com/verso-app/verso/internal/vecindex"
)

// DefaultPalette is the fixed avatar color rotation. Creation assigns
// palette[userCount % len] when no color is supplied; round-robin, not
// random, so a count rollback can hand two users the same color. That is
// the documented behavior.
var DefaultPalette = []string{
	"#e07a5f", "#3d405b", "#81b29a", "#f2cc8f",
	"#5f797b", "#9a8c98", "#c9ada7", "#4a4e69",
}

// Manager is the user lifecycle and cross-store consistency manager.
// Exactly one session is active per process; Select replaces it.
type Manager struct {
	db      *store.DB
	palette []string

	mu     sync.Mutex
	active *types.Session
}

// New creates a manager with the default palette.
func New(db *store.DB) *Manager {
	return &Manager{db: db, palette: DefaultPalette}
}

// Create inserts a new user. An empty avatarColor picks the next palette
// color by existing-user count.
func (m *Manager) Create(name, avatarColor string) (*types.User, error) {
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}

	if avatarColor == "" {
		var count int
		if err := m.db.Handle().QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count users: %w", err)
		}
		avatarColor = m.palette[count%len(m.palette)]
	}

	u := &types.User{
		ID:           uuid.NewString(),
		Name:         name,
		AvatarColor:  avatarColor,
		CreatedAt:    time.Now(),
		LastActiveAt: time.Now(),
	}
	_, err := m.db.Handle().Exec(`
		INSERT INTO users (id, name, avatar_color, created_at, last_active_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, u.Name, u.AvatarColor, u.CreatedAt, u.LastActiveAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	logging.Info("users", "created user %s (%s)", u.Name, u.ID)
	return u, nil
}

// Get returns a user, or nil if the id does not exist.
func (m *Manager) Get(id string) (*types.User, error) {
	row := m.db.Handle().QueryRow(`
		SELECT id, name, avatar_color, created_at, last_active_at FROM users WHERE id = ?
	`, id)
	u := &types.User{}
	err := row.Scan(&u.ID, &u.Name, &u.AvatarColor, &u.CreatedAt, &u.LastActiveAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

// List returns all users, most recently active first.
func (m *Manager) List() ([]*types.User, error) {
	rows, err := m.db.Handle().Query(`
		SELECT id, name, avatar_color, created_at, last_active_at
		FROM users ORDER BY last_active_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	out := []*types.User{}
	for rows.Next() {
		u := &types.User{}
		if err := rows.Scan(&u.ID, &u.Name, &u.AvatarColor, &u.CreatedAt, &u.LastActiveAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Rename updates a user's display name and avatar color. Empty fields
// keep their current value.
func (m *Manager) Rename(id, name, avatarColor string) error {
	u, err := m.Get(id)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("user %s not found", id)
	}
	if name == "" {
		name = u.Name
	}
	if avatarColor == "" {
		avatarColor = u.AvatarColor
	}
	_, err = m.db.Handle().Exec(`
		UPDATE users SET name = ?, avatar_color = ? WHERE id = ?
	`, name, avatarColor, id)
	return err
}

// Select makes the user the process's active writer and touches
// last_active_at. All implicit writes target the returned session until
// the next Select.
func (m *Manager) Select(id string) (*types.Session, error) {
	u, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %s not found", id)
	}

	if err := m.Touch(id); err != nil {
		return nil, err
	}

	sess := &types.Session{UserID: u.ID, Name: u.Name}
	m.mu.Lock()
	m.active = sess
	m.mu.Unlock()

	logging.Info("users", "selected user %s (%s)", u.Name, u.ID)
	return sess, nil
}

// Active returns the current session, or nil when no user is selected.
func (m *Manager) Active() *types.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Touch updates a user's last_active_at.
func (m *Manager) Touch(id string) error {
	_, err := m.db.Handle().Exec(`
		UPDATE users SET last_active_at = CURRENT_TIMESTAMP WHERE id = ?
	`, id)
	return err
}

// Delete removes a user and every row they own in one transaction:
// evidence, extractions, conversation summaries, messages, conversations,
// all profile categories, and the user row itself. Vector-index cleanup
// for the user's messages is enqueued durably in the same transaction
// and applied later by the outbox processor; the returned message ids
// let direct callers run that phase themselves.
//
// A missing user is a structured failure, not an error.
func (m *Manager) Delete(id string) (*types.DeleteResult, error) {
	u, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return &types.DeleteResult{Success: false, Error: "user not found"}, nil
	}

	messageIDs, err := m.db.MessageIDsForUser(id)
	if err != nil {
		return nil, err
	}

	err = m.db.WithTx(func(tx *sql.Tx) error {
		// Children first: everything hanging off the user's messages.
		steps := []struct {
			desc  string
			query string
		}{
			{"evidence (message-scoped)", `
				DELETE FROM evidence WHERE message_id IN (
					SELECT m.id FROM messages m
					JOIN conversations c ON c.id = m.conversation_id
					WHERE c.user_id = ?)`},
			{"evidence (user-scoped)", `DELETE FROM evidence WHERE user_id = ?`},
			{"extractions", `
				DELETE FROM extractions WHERE message_id IN (
					SELECT m.id FROM messages m
					JOIN conversations c ON c.id = m.conversation_id
					WHERE c.user_id = ?)`},
			{"conversation summaries", `
				DELETE FROM conversation_summaries WHERE conversation_id IN (
					SELECT id FROM conversations WHERE user_id = ?)`},
			{"messages", `
				DELETE FROM messages WHERE conversation_id IN (
					SELECT id FROM conversations WHERE user_id = ?)`},
			{"conversations", `DELETE FROM conversations WHERE user_id = ?`},
			{"values", `DELETE FROM user_values WHERE user_id = ?`},
			{"challenges", `DELETE FROM challenges WHERE user_id = ?`},
			{"goals", `DELETE FROM goals WHERE user_id = ?`},
			{"activities", `DELETE FROM activities WHERE user_id = ?`},
			{"signals", `DELETE FROM signals WHERE user_id = ?`},
			{"profile summary", `DELETE FROM profile_summaries WHERE user_id = ?`},
		}
		for _, step := range steps {
			if _, err := tx.Exec(step.query, id); err != nil {
				return fmt.Errorf("failed to delete %s: %w", step.desc, err)
			}
		}

		if err := vecindex.EnqueueTx(tx, vecindex.ActionDelete, messageIDs, ""); err != nil {
			return err
		}

		if _, err := tx.Exec(`DELETE FROM users WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete user row: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Drop the session if it pointed at the deleted user.
	m.mu.Lock()
	if m.active != nil && m.active.UserID == id {
		m.active = nil
	}
	m.mu.Unlock()

	logging.Info("users", "deleted user %s with %d messages", id, len(messageIDs))
	return &types.DeleteResult{Success: true, MessageIDs: messageIDs}, nil
}
