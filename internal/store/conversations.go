package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/verso-app/verso/internal/types"
)

// AddConversation creates a conversation owned by the session user. An
// empty session user id records a legacy ownerless conversation, which
// only the migration tests and fixtures do.
func (s *DB) AddConversation(sess *types.Session, title string) (*types.Conversation, error) {
	conv := &types.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if sess != nil {
		conv.UserID = sess.UserID
	}
	_, err := s.db.Exec(`
		INSERT INTO conversations (id, user_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, conv.ID, nullableString(conv.UserID), conv.Title, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}
	return conv, nil
}

// AddMessage appends a message to a conversation.
func (s *DB) AddMessage(conversationID, role, content string) (*types.Message, error) {
	msg := &types.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	_, err := s.db.Exec(`
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	s.db.Exec(`UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, conversationID)
	return msg, nil
}

// AddExtraction records one extraction-pipeline pass over a message.
func (s *DB) AddExtraction(messageID, status, payload string) error {
	_, err := s.db.Exec(`
		INSERT INTO extractions (message_id, status, payload) VALUES (?, ?, ?)
	`, messageID, status, payload)
	if err != nil {
		return fmt.Errorf("failed to insert extraction: %w", err)
	}
	return nil
}

// SetConversationSummary stores or replaces a conversation's summary.
func (s *DB) SetConversationSummary(conversationID, summary string) error {
	_, err := s.db.Exec(`
		INSERT INTO conversation_summaries (conversation_id, summary, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(conversation_id) DO UPDATE SET
			summary = excluded.summary,
			updated_at = excluded.updated_at
	`, conversationID, summary)
	if err != nil {
		return fmt.Errorf("failed to set summary: %w", err)
	}
	return nil
}

// MessageIDsForUser returns the ids of every message in the user's
// conversations, oldest first.
func (s *DB) MessageIDsForUser(userID string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT m.id FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE c.user_id = ?
		ORDER BY m.created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ConversationsForUser lists the user's conversations, newest activity first.
func (s *DB) ConversationsForUser(userID string) ([]*types.Conversation, error) {
	rows, err := s.db.Query(`
		SELECT id, COALESCE(user_id, ''), COALESCE(title, ''), created_at, updated_at
		FROM conversations WHERE user_id = ?
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var convs []*types.Conversation
	for rows.Next() {
		c := &types.Conversation{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// nullableString maps "" to NULL so ownerless rows stay distinguishable
// from rows owned by an empty-id user.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
