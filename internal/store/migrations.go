package store

import "fmt"

// migrate creates the archive tables if they don't exist.
func (s *SQLiteStore) migrate() error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			meeting_id TEXT NOT NULL,
			method TEXT NOT NULL,
			confidence REAL NOT NULL,
			quality REAL NOT NULL,
			vote_count INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS votes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			item_number TEXT NOT NULL,
			title TEXT NOT NULL,
			outcome TEXT NOT NULL,
			ayes INTEGER NOT NULL,
			noes INTEGER NOT NULL,
			abstain INTEGER NOT NULL,
			absent INTEGER NOT NULL,
			recusal INTEGER NOT NULL,
			source_section TEXT NOT NULL,
			member_votes TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_meeting ON runs(meeting_id)`,
		`CREATE INDEX IF NOT EXISTS idx_votes_run ON votes(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_votes_item ON votes(item_number)`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}
	return nil
}
