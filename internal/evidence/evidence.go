// Package evidence is the append-only provenance ledger. Each row ties a
// verbatim quote from a user message to the signal dimension or goal it
// supports. Rows are never mutated; they disappear only when the owning
// user is deleted. The ledger is deliberately unbounded.
package evidence

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/verso-app/verso/internal/logging"
	"github.com/verso-app/verso/internal/store"
	"github.com/verso-app/verso/internal/types"
)

// Ledger records and reads evidence rows.
type Ledger struct {
	db *store.DB
}

// NewLedger creates a ledger over the shared store.
func NewLedger(db *store.DB) *Ledger {
	return &Ledger{db: db}
}

// Record appends one evidence row. An empty quote is a silent no-op, not
// an error: absence of a quote at extraction time is normal.
func (l *Ledger) Record(sess *types.Session, targetType, targetID, messageID, quote string) error {
	if quote == "" {
		return nil
	}
	ev := buildEvidence(sess, targetType, targetID, messageID, quote)
	_, err := l.db.Handle().Exec(`
		INSERT INTO evidence (id, user_id, target_type, target_id, message_id, quote, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.UserID, ev.TargetType, ev.TargetID, ev.MessageID, ev.Quote, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert evidence: %w", err)
	}
	logging.Debug("evidence", "recorded for %s/%s: %s", targetType, targetID, logging.Truncate(quote, 60))
	return nil
}

// AppendTx appends one evidence row inside an ongoing transaction, so a
// signal or goal write and its provenance commit together. Empty quotes
// are a no-op here too.
func AppendTx(tx *sql.Tx, sess *types.Session, targetType, targetID, messageID, quote string) error {
	if quote == "" {
		return nil
	}
	ev := buildEvidence(sess, targetType, targetID, messageID, quote)
	_, err := tx.Exec(`
		INSERT INTO evidence (id, user_id, target_type, target_id, message_id, quote, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.UserID, ev.TargetType, ev.TargetID, ev.MessageID, ev.Quote, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert evidence: %w", err)
	}
	return nil
}

// ForTarget returns all evidence rows for a target, newest first.
func (l *Ledger) ForTarget(targetType, targetID string) ([]*types.Evidence, error) {
	rows, err := l.db.Handle().Query(`
		SELECT id, COALESCE(user_id, ''), target_type, target_id, COALESCE(message_id, ''), quote, created_at
		FROM evidence
		WHERE target_type = ? AND target_id = ?
		ORDER BY created_at DESC, id DESC
	`, targetType, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence: %w", err)
	}
	defer rows.Close()

	out := []*types.Evidence{}
	for rows.Next() {
		ev := &types.Evidence{}
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.TargetType, &ev.TargetID,
			&ev.MessageID, &ev.Quote, &ev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ForDimension returns all evidence supporting a signal dimension,
// newest first.
func (l *Ledger) ForDimension(dimension string) ([]*types.Evidence, error) {
	return l.ForTarget(types.TargetSignal, dimension)
}

func buildEvidence(sess *types.Session, targetType, targetID, messageID, quote string) *types.Evidence {
	ev := &types.Evidence{
		ID:         uuid.NewString(),
		TargetType: targetType,
		TargetID:   targetID,
		MessageID:  messageID,
		Quote:      quote,
		CreatedAt:  time.Now(),
	}
	if sess != nil {
		ev.UserID = sess.UserID
	}
	return ev
}
