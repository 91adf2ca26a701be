// Package store owns the relational SQLite database: connection setup,
// schema migrations, and the transaction helper every multi-row mutation
// runs through. Higher-level packages (signals, goals, users, ...) build
// on the *DB handle rather than opening their own connections.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/verso-app/verso/internal/logging"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite connection for the profile database.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens or creates the profile database under statePath.
func Open(statePath string) (*DB, error) {
	return OpenFile(filepath.Join(statePath, "verso.db"))
}

// OpenFile opens or creates the profile database at an explicit path.
func OpenFile(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &DB{db: db, path: dbPath}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *DB) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *DB) Path() string {
	return s.path
}

// Handle exposes the underlying connection for read queries. Mutations
// that touch more than one row must go through WithTx instead.
func (s *DB) Handle() *sql.DB {
	return s.db
}

// WithTx runs fn inside a transaction. Any error rolls the whole
// transaction back; no partial writes are observable.
func (s *DB) WithTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// migrate creates the schema and applies incremental migrations.
func (s *DB) migrate() error {
	schema := `
	-- Schema version tracking
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Profile owners
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		avatar_color TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_active_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Conversations and their messages. user_id is NULL on legacy
	-- orphan rows recorded before multi-user support.
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		user_id TEXT REFERENCES users(id),
		title TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id);

	CREATE TABLE IF NOT EXISTS conversation_summaries (
		conversation_id TEXT PRIMARY KEY REFERENCES conversations(id),
		summary TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);

	-- Extraction bookkeeping: one row per pipeline pass over a message
	CREATE TABLE IF NOT EXISTS extractions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id TEXT NOT NULL REFERENCES messages(id),
		status TEXT NOT NULL DEFAULT 'done',
		payload TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_extractions_message ON extractions(message_id);

	-- Confidence-weighted dimension signals. At most one live row per
	-- (user, dimension).
	CREATE TABLE IF NOT EXISTS signals (
		user_id TEXT,
		dimension TEXT NOT NULL,
		value TEXT NOT NULL,
		confidence REAL NOT NULL,
		evidence_count INTEGER NOT NULL DEFAULT 1,
		last_updated DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, dimension)
	);

	CREATE INDEX IF NOT EXISTS idx_signals_user ON signals(user_id);
	CREATE INDEX IF NOT EXISTS idx_signals_updated ON signals(last_updated);

	-- Append-only provenance ledger
	CREATE TABLE IF NOT EXISTS evidence (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		target_type TEXT NOT NULL,
		target_id TEXT NOT NULL,
		message_id TEXT,
		quote TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_evidence_target ON evidence(target_type, target_id);
	CREATE INDEX IF NOT EXISTS idx_evidence_user ON evidence(user_id);
	CREATE INDEX IF NOT EXISTS idx_evidence_message ON evidence(message_id);

	-- Deduplicated user goals
	CREATE TABLE IF NOT EXISTS goals (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		description TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'stated',
		timeframe TEXT,
		first_stated DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_mentioned DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_goals_user ON goals(user_id);
	CREATE INDEX IF NOT EXISTS idx_goals_status ON goals(status);

	-- Profile category tables kept alongside the dimension signals
	CREATE TABLE IF NOT EXISTS user_values (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		name TEXT NOT NULL,
		importance REAL DEFAULT 0.5,
		last_updated DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_user_values_user ON user_values(user_id);

	CREATE TABLE IF NOT EXISTS challenges (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		description TEXT NOT NULL,
		status TEXT DEFAULT 'open',
		last_updated DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_challenges_user ON challenges(user_id);

	CREATE TABLE IF NOT EXISTS activities (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		name TEXT NOT NULL,
		category TEXT,
		last_mentioned DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_activities_user ON activities(user_id);

	-- One free-text summary per user
	CREATE TABLE IF NOT EXISTS profile_summaries (
		user_id TEXT PRIMARY KEY REFERENCES users(id),
		summary TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Transient flags and payloads (migration pending, orphaned summary)
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Durable queue of vector-index operations, written inside the same
	-- transaction as the relational mutation that requires them.
	CREATE TABLE IF NOT EXISTS vector_outbox (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		message_id TEXT NOT NULL,
		new_owner TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_vector_outbox_status ON vector_outbox(status);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	return s.runMigrations()
}

// runMigrations applies incremental schema changes.
func (s *DB) runMigrations() error {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		version = 1
	}

	// Migration v2: flag pre-multi-user data for a one-time claim prompt.
	// A database that already holds rows with no owner was written by a
	// single-user install; the UI offers to claim them for the first user.
	if version < 2 {
		var orphans int
		s.db.QueryRow(`
			SELECT (SELECT COUNT(*) FROM conversations WHERE user_id IS NULL)
				+ (SELECT COUNT(*) FROM signals WHERE user_id IS NULL)
				+ (SELECT COUNT(*) FROM user_values WHERE user_id IS NULL)
				+ (SELECT COUNT(*) FROM challenges WHERE user_id IS NULL)
				+ (SELECT COUNT(*) FROM goals WHERE user_id IS NULL)
				+ (SELECT COUNT(*) FROM activities WHERE user_id IS NULL)
		`).Scan(&orphans)
		if orphans > 0 {
			s.db.Exec(`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`,
				SettingMigrationPending, "true")
			logging.Info("store", "found %d legacy rows with no owner, migration prompt pending", orphans)
		}
		s.db.Exec("INSERT INTO schema_version (version) VALUES (2)")
	}

	return nil
}
