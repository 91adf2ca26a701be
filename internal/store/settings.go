package store

import (
	"database/sql"
	"fmt"
)

// Settings keys used by the migration flow.
const (
	// SettingMigrationPending is set when legacy ownerless rows exist and
	// no user has claimed them yet.
	SettingMigrationPending = "migration_pending"

	// SettingOrphanProfileSummary temporarily holds a pre-multi-user
	// profile summary as JSON. profile_summaries is keyed per user, so an
	// ownerless summary has nowhere else to live until a claim.
	SettingOrphanProfileSummary = "orphan_profile_summary"
)

// GetSetting returns the value for key, or "" if unset.
func (s *DB) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting stores or replaces a setting.
func (s *DB) SetSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes a setting. Missing keys are not an error.
func (s *DB) DeleteSetting(key string) error {
	_, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
	return err
}
