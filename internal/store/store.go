// Package store provides the SQLite run archive for Quorum.
//
// Every meeting extraction is archived with its votes, method, and quality
// score, so operators can audit past runs and watch quality trend across a
// backlog. The archive is engine-internal persistence; it is not the
// dashboard's relational schema, which lives outside this repository.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/openquorum/quorum/internal/extract"
)

// Run is one archived meeting extraction.
type Run struct {
	ID         int64
	MeetingID  string
	Method     extract.Method
	Confidence float64
	Quality    float64
	VoteCount  int
	CreatedAt  time.Time
}

// ArchivedVote is one vote row belonging to a run.
type ArchivedVote struct {
	ID            int64
	RunID         int64
	ItemNumber    string
	Title         string
	Outcome       extract.Outcome
	Tally         extract.Tally
	SourceSection extract.SourceSection
	MemberVotes   map[string]extract.BallotChoice
}

// QualityPoint is one entry in the archive's quality history.
type QualityPoint struct {
	MeetingID string    `json:"meeting_id"`
	Quality   float64   `json:"quality"`
	Method    string    `json:"method"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats summarizes the archive for observability surfaces.
type Stats struct {
	Runs       int64   `json:"runs"`
	Votes      int64   `json:"votes"`
	AvgQuality float64 `json:"avg_quality"`
}

// Store is the archive interface used by the batch runner and MCP server.
type Store interface {
	ArchiveRun(ctx context.Context, res *extract.ExtractionResult) (int64, error)
	GetRun(ctx context.Context, id int64) (*Run, []ArchivedVote, error)
	QualityHistory(ctx context.Context, limit int) ([]QualityPoint, error)
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// StoreConfig holds configuration for NewStore.
type StoreConfig struct {
	DBPath string
}

// SQLiteStore implements Store over a single SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (and migrates) the archive database.
func NewStore(cfg StoreConfig) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("archive db path is required")
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating archive schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ArchiveRun stores one extraction result with its votes in a single
// transaction.
func (s *SQLiteStore) ArchiveRun(ctx context.Context, res *extract.ExtractionResult) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	r, err := tx.ExecContext(ctx, `
		INSERT INTO runs (meeting_id, method, confidence, quality, vote_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		res.MeetingID, string(res.Metadata.MethodUsed), res.Metadata.ConfidenceScore,
		res.Validation.QualityScore, len(res.Votes), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := r.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	for _, v := range res.Votes {
		memberJSON, err := json.Marshal(v.MemberVotes)
		if err != nil {
			return 0, fmt.Errorf("marshaling member votes for item %s: %w", v.AgendaItemNumber, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO votes (run_id, item_number, title, outcome, ayes, noes, abstain, absent, recusal, source_section, member_votes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, v.AgendaItemNumber, v.AgendaItemTitle, string(v.Outcome),
			v.Tally.Ayes, v.Tally.Noes, v.Tally.Abstain, v.Tally.Absent, v.Tally.Recusal,
			string(v.SourceSection), string(memberJSON),
		); err != nil {
			return 0, fmt.Errorf("inserting vote for item %s: %w", v.AgendaItemNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

// GetRun loads one archived run and its votes.
func (s *SQLiteStore) GetRun(ctx context.Context, id int64) (*Run, []ArchivedVote, error) {
	var run Run
	var created string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, meeting_id, method, confidence, quality, vote_count, created_at
		FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.MeetingID, (*string)(&run.Method), &run.Confidence, &run.Quality, &run.VoteCount, &created)
	if err == sql.ErrNoRows {
		return nil, nil, fmt.Errorf("run %d not found", id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("querying run: %w", err)
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339, created)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, item_number, title, outcome, ayes, noes, abstain, absent, recusal, source_section, member_votes
		FROM votes WHERE run_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("querying votes: %w", err)
	}
	defer rows.Close()

	var votes []ArchivedVote
	for rows.Next() {
		var v ArchivedVote
		var memberJSON string
		if err := rows.Scan(&v.ID, &v.RunID, &v.ItemNumber, &v.Title, (*string)(&v.Outcome),
			&v.Tally.Ayes, &v.Tally.Noes, &v.Tally.Abstain, &v.Tally.Absent, &v.Tally.Recusal,
			(*string)(&v.SourceSection), &memberJSON); err != nil {
			return nil, nil, fmt.Errorf("scanning vote row: %w", err)
		}
		if memberJSON != "" && memberJSON != "null" {
			if err := json.Unmarshal([]byte(memberJSON), &v.MemberVotes); err != nil {
				return nil, nil, fmt.Errorf("unmarshaling member votes: %w", err)
			}
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating vote rows: %w", err)
	}
	return &run, votes, nil
}

// QualityHistory returns the most recent runs' quality scores, newest
// first.
func (s *SQLiteStore) QualityHistory(ctx context.Context, limit int) ([]QualityPoint, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT meeting_id, quality, method, created_at
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying quality history: %w", err)
	}
	defer rows.Close()

	var points []QualityPoint
	for rows.Next() {
		var p QualityPoint
		var created string
		if err := rows.Scan(&p.MeetingID, &p.Quality, &p.Method, &created); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, created)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history rows: %w", err)
	}
	return points, nil
}

// Stats returns archive-wide counts and the mean quality score.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(quality), 0) FROM runs`,
	).Scan(&st.Runs, &st.AvgQuality); err != nil {
		return nil, fmt.Errorf("querying run stats: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM votes`,
	).Scan(&st.Votes); err != nil {
		return nil, fmt.Errorf("querying vote stats: %w", err)
	}
	return &st, nil
}
