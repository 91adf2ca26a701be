// Package signals is the confidence-weighted fact base: one live row per
// (user, dimension), updated on every observation the extraction
// pipeline produces. Values are overwritten, never versioned; confidence
// only ever rises, capped at the fusion policy's ceiling.
package signals

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/verso-app/verso/internal/evidence"
	"github.com/verso-app/verso/internal/logging"
	"github.com/verso-app/verso/internal/store"
	"github.com/verso-app/verso/internal/types"
)

// Store records and reads dimension signals.
type Store struct {
	db     *store.DB
	fusion Fusion
}

// New creates a signal store with the default saturating last-write-wins
// fusion policy.
func New(db *store.DB) *Store {
	return &Store{db: db, fusion: DefaultFusion()}
}

// SetFusion swaps the fusion policy. Intended for callers experimenting
// with calibrated fusion; the default preserves the documented behavior.
func (s *Store) SetFusion(f Fusion) {
	s.fusion = f
}

// Record applies one observation: first write inserts the row, later
// writes overwrite the value and bump confidence per the fusion policy.
// If the observation carries a quote, an evidence row targeting the
// dimension commits in the same transaction.
func (s *Store) Record(sess *types.Session, obs types.SignalObservation) (*types.Signal, error) {
	if sess == nil || sess.UserID == "" {
		return nil, fmt.Errorf("no active session")
	}
	if obs.Dimension == "" {
		return nil, fmt.Errorf("dimension is required")
	}

	var result *types.Signal
	err := s.db.WithTx(func(tx *sql.Tx) error {
		existing, err := getTx(tx, sess.UserID, obs.Dimension)
		if err != nil {
			return err
		}

		value, confidence := s.fusion.Fuse(existing, obs)
		raw, err := EncodeValue(obs.Dimension, value)
		if err != nil {
			return err
		}

		count := 1
		if existing != nil {
			count = existing.EvidenceCount + 1
		}
		now := time.Now()

		_, err = tx.Exec(`
			INSERT INTO signals (user_id, dimension, value, confidence, evidence_count, last_updated)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, dimension) DO UPDATE SET
				value = excluded.value,
				confidence = excluded.confidence,
				evidence_count = excluded.evidence_count,
				last_updated = excluded.last_updated
		`, sess.UserID, obs.Dimension, raw, confidence, count, now)
		if err != nil {
			return fmt.Errorf("failed to upsert signal: %w", err)
		}

		if err := evidence.AppendTx(tx, sess, types.TargetSignal, obs.Dimension, obs.MessageID, obs.Quote); err != nil {
			return err
		}

		result = &types.Signal{
			UserID:        sess.UserID,
			Dimension:     obs.Dimension,
			Value:         value,
			Confidence:    confidence,
			EvidenceCount: count,
			LastUpdated:   now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Debug("signals", "%s = %q conf=%.2f n=%d", obs.Dimension,
		logging.Truncate(rawForLog(result.Value), 40), result.Confidence, result.EvidenceCount)
	return result, nil
}

// Get returns the signal for a dimension, or nil if none exists.
func (s *Store) Get(sess *types.Session, dimension string) (*types.Signal, error) {
	row := s.db.Handle().QueryRow(`
		SELECT COALESCE(user_id, ''), dimension, value, confidence, evidence_count, last_updated
		FROM signals WHERE user_id = ? AND dimension = ?
	`, sess.UserID, dimension)
	return scanSignal(row)
}

// ForUser returns all of a user's signals, most recently updated first.
func (s *Store) ForUser(userID string) ([]*types.Signal, error) {
	rows, err := s.db.Handle().Query(`
		SELECT COALESCE(user_id, ''), dimension, value, confidence, evidence_count, last_updated
		FROM signals WHERE user_id = ?
		ORDER BY last_updated DESC, dimension ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()
	return scanSignalRows(rows)
}

// All returns every signal row regardless of owner, most recent first.
// Operator/debug tooling only; deliberately unpaginated.
func (s *Store) All() ([]*types.Signal, error) {
	rows, err := s.db.Handle().Query(`
		SELECT COALESCE(user_id, ''), dimension, value, confidence, evidence_count, last_updated
		FROM signals
		ORDER BY last_updated DESC, dimension ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()
	return scanSignalRows(rows)
}

func getTx(tx *sql.Tx, userID, dimension string) (*types.Signal, error) {
	row := tx.QueryRow(`
		SELECT COALESCE(user_id, ''), dimension, value, confidence, evidence_count, last_updated
		FROM signals WHERE user_id = ? AND dimension = ?
	`, userID, dimension)
	return scanSignal(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSignal(row rowScanner) (*types.Signal, error) {
	var (
		sig types.Signal
		raw string
	)
	err := row.Scan(&sig.UserID, &sig.Dimension, &raw, &sig.Confidence,
		&sig.EvidenceCount, &sig.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan signal: %w", err)
	}
	sig.Value, err = DecodeValue(sig.Dimension, raw)
	if err != nil {
		return nil, err
	}
	return &sig, nil
}

func scanSignalRows(rows *sql.Rows) ([]*types.Signal, error) {
	out := []*types.Signal{}
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

func rawForLog(v types.SignalValue) string {
	switch v.Kind {
	case types.ValueScore:
		return fmt.Sprintf("%.2f", v.Score)
	case types.ValuePayload:
		return fmt.Sprintf("payload(%d keys)", len(v.Payload))
	default:
		return v.Text
	}
}
