package vecindex

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/verso-app/verso/internal/store"
)

// Op is one pending vector-index operation.
type Op struct {
	ID        int64     `json:"id"`
	Action    Action    `json:"action"`
	MessageID string    `json:"message_id"`
	NewOwner  string    `json:"new_owner,omitempty"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EnqueueTx writes one outbox row per message id inside an ongoing
// transaction, so the obligation commits atomically with the relational
// mutation that created it.
func EnqueueTx(tx *sql.Tx, action Action, messageIDs []string, newOwner string) error {
	for _, id := range messageIDs {
		_, err := tx.Exec(`
			INSERT INTO vector_outbox (action, message_id, new_owner) VALUES (?, ?, ?)
		`, string(action), id, newOwner)
		if err != nil {
			return fmt.Errorf("failed to enqueue %s for %s: %w", action, id, err)
		}
	}
	return nil
}

// Queue reads and settles outbox rows.
type Queue struct {
	db *store.DB
}

// NewQueue creates a queue over the shared store.
func NewQueue(db *store.DB) *Queue {
	return &Queue{db: db}
}

// Pending returns up to limit pending operations, oldest first.
func (q *Queue) Pending(limit int) ([]*Op, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.db.Handle().Query(`
		SELECT id, action, message_id, COALESCE(new_owner, ''), attempts, COALESCE(last_error, ''), created_at
		FROM vector_outbox
		WHERE status = 'pending'
		ORDER BY id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	out := []*Op{}
	for rows.Next() {
		op := &Op{}
		var action string
		if err := rows.Scan(&op.ID, &action, &op.MessageID, &op.NewOwner,
			&op.Attempts, &op.LastError, &op.CreatedAt); err != nil {
			return nil, err
		}
		op.Action = Action(action)
		out = append(out, op)
	}
	return out, rows.Err()
}

// Counts returns pending and failed row counts.
func (q *Queue) Counts() (pending, failed int, err error) {
	err = q.db.Handle().QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM vector_outbox WHERE status = 'pending'),
			(SELECT COUNT(*) FROM vector_outbox WHERE status = 'failed')
	`).Scan(&pending, &failed)
	return
}

// MarkDone settles an operation as applied.
func (q *Queue) MarkDone(id int64) error {
	_, err := q.db.Handle().Exec(`
		UPDATE vector_outbox SET status = 'done', updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, id)
	return err
}

// RecordFailure bumps the attempt counter. Once attempts reach
// maxAttempts the row moves to failed and stops being retried.
func (q *Queue) RecordFailure(id int64, attempts, maxAttempts int, cause error) error {
	status := "pending"
	if attempts >= maxAttempts {
		status = "failed"
	}
	_, err := q.db.Handle().Exec(`
		UPDATE vector_outbox SET attempts = ?, last_error = ?, status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, attempts, cause.Error(), status, id)
	return err
}

// CleanupDone removes settled rows older than maxAge.
func (q *Queue) CleanupDone(maxAge time.Duration) (int, error) {
	res, err := q.db.Handle().Exec(`
		DELETE FROM vector_outbox WHERE status = 'done' AND updated_at < ?
	`, time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
