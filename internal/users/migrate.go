package users

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/verso-app/verso/internal/logging"
	"github.com/verso-app/verso/internal/store"
	"github.com/verso-app/verso/internal/types"
	"github.com/verso-app/verso/internal/vecindex"
)

// orphanSummary is the JSON shape of the transient profile summary a
// single-user install left behind. profile_summaries is keyed per user,
// so an ownerless summary waits under a settings key until claimed.
type orphanSummary struct {
	Summary string `json:"summary"`
}

// HasPendingData reports whether a one-time migration prompt should
// show: the pending flag is set and ownerless rows actually exist.
func (m *Manager) HasPendingData() (bool, error) {
	flag, err := m.db.GetSetting(store.SettingMigrationPending)
	if err != nil {
		return false, err
	}
	if flag != "true" {
		return false, nil
	}
	counts, err := m.PendingCounts()
	if err != nil {
		return false, err
	}
	return counts.Total() > 0, nil
}

// PendingCounts returns the per-category ownerless row counts behind the
// migration prompt.
func (m *Manager) PendingCounts() (*types.PendingCounts, error) {
	counts := &types.PendingCounts{}
	err := m.db.Handle().QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM conversations WHERE user_id IS NULL),
			(SELECT COUNT(*) FROM user_values WHERE user_id IS NULL),
			(SELECT COUNT(*) FROM challenges WHERE user_id IS NULL),
			(SELECT COUNT(*) FROM goals WHERE user_id IS NULL)
	`).Scan(&counts.Conversations, &counts.Values, &counts.Challenges, &counts.Goals)
	if err != nil {
		return nil, fmt.Errorf("failed to count orphans: %w", err)
	}
	return counts, nil
}

// Claim reassigns every ownerless row to the given user in one
// transaction: six orphan tables are re-owned, a transient orphan
// profile summary (if any) merges into the claimant's summary row and
// its settings holder is removed, and the pending flag clears. It
// returns the message ids whose vector-index entries must carry the new
// owner; those retags are enqueued durably in the same transaction and
// applied by the outbox processor. Claiming again is a no-op with an
// empty id list.
//
// A malformed orphan-summary payload fails this claim attempt loudly; it
// is never silently swallowed.
func (m *Manager) Claim(userID string) (*types.ClaimResult, error) {
	u, err := m.Get(userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %s not found", userID)
	}

	// Messages to retag: everything under the conversations about to be
	// claimed.
	messageIDs := []string{}
	rows, err := m.db.Handle().Query(`
		SELECT m.id FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE c.user_id IS NULL
		ORDER BY m.created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query orphan messages: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		messageIDs = append(messageIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Parse the transient summary before opening the transaction so a
	// malformed payload aborts cleanly.
	rawSummary, err := m.db.GetSetting(store.SettingOrphanProfileSummary)
	if err != nil {
		return nil, err
	}
	var orphan *orphanSummary
	if rawSummary != "" {
		orphan = &orphanSummary{}
		if err := json.Unmarshal([]byte(rawSummary), orphan); err != nil {
			return nil, fmt.Errorf("malformed orphan profile summary: %w", err)
		}
	}

	err = m.db.WithTx(func(tx *sql.Tx) error {
		reassign := []struct {
			desc  string
			query string
		}{
			{"conversations", `UPDATE conversations SET user_id = ? WHERE user_id IS NULL`},
			{"signals", `UPDATE signals SET user_id = ? WHERE user_id IS NULL`},
			{"values", `UPDATE user_values SET user_id = ? WHERE user_id IS NULL`},
			{"challenges", `UPDATE challenges SET user_id = ? WHERE user_id IS NULL`},
			{"goals", `UPDATE goals SET user_id = ? WHERE user_id IS NULL`},
			{"activities", `UPDATE activities SET user_id = ? WHERE user_id IS NULL`},
		}
		for _, step := range reassign {
			if _, err := tx.Exec(step.query, userID); err != nil {
				return fmt.Errorf("failed to claim %s: %w", step.desc, err)
			}
		}

		// Ownerless evidence follows its rows to the claimant.
		if _, err := tx.Exec(`UPDATE evidence SET user_id = ? WHERE user_id IS NULL`, userID); err != nil {
			return fmt.Errorf("failed to claim evidence: %w", err)
		}

		if orphan != nil {
			_, err := tx.Exec(`
				INSERT INTO profile_summaries (user_id, summary, updated_at)
				VALUES (?, ?, CURRENT_TIMESTAMP)
				ON CONFLICT(user_id) DO UPDATE SET
					summary = excluded.summary,
					updated_at = excluded.updated_at
			`, userID, orphan.Summary)
			if err != nil {
				return fmt.Errorf("failed to merge orphan summary: %w", err)
			}
			if _, err := tx.Exec(`DELETE FROM settings WHERE key = ?`, store.SettingOrphanProfileSummary); err != nil {
				return err
			}
		}

		if err := vecindex.EnqueueTx(tx, vecindex.ActionRetag, messageIDs, userID); err != nil {
			return err
		}

		if _, err := tx.Exec(`DELETE FROM settings WHERE key = ?`, store.SettingMigrationPending); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(messageIDs) > 0 {
		logging.Info("users", "claimed legacy data for user %s (%d messages to retag)", userID, len(messageIDs))
	}
	return &types.ClaimResult{MessageIDs: messageIDs}, nil
}
