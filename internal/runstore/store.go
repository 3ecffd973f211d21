// Package runstore archives settled delegation runs in SQLite. The in-process
// history ledger stays authoritative for the UI; the archive only keeps
// records across restarts for the history command and the archive endpoint.
package runstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hochfrequenz/inbox-orchestrator/internal/domain"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed run persistence
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun inserts or replaces an archived run record
func (s *Store) SaveRun(rec *domain.RunRecord) error {
	itemsJSON, err := json.Marshal(rec.Items)
	if err != nil {
		return err
	}

	var scanned, matched, extracted, sent, failed int
	hasStats := rec.Stats != nil
	if hasStats {
		scanned = rec.Stats.Scanned
		matched = rec.Stats.Matched
		extracted = rec.Stats.TasksExtracted
		sent = rec.Stats.NotificationsSent
		failed = rec.Stats.NotificationsFailed
	}

	_, err = s.db.Exec(`
		INSERT INTO runs (id, started_at, finished_at, outcome, summary, error_msg, emails_scanned, emails_matched, tasks_extracted, notifications_sent, notifications_failed, has_stats, items)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			outcome = excluded.outcome,
			summary = excluded.summary,
			error_msg = excluded.error_msg,
			emails_scanned = excluded.emails_scanned,
			emails_matched = excluded.emails_matched,
			tasks_extracted = excluded.tasks_extracted,
			notifications_sent = excluded.notifications_sent,
			notifications_failed = excluded.notifications_failed,
			has_stats = excluded.has_stats,
			items = excluded.items
	`,
		rec.ID,
		rec.StartedAt,
		rec.FinishedAt,
		rec.Outcome,
		rec.Summary,
		rec.ErrorMsg,
		scanned,
		matched,
		extracted,
		sent,
		failed,
		hasStats,
		string(itemsJSON),
	)
	return err
}

// GetRun retrieves an archived run by ID
func (s *Store) GetRun(id string) (*domain.RunRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, started_at, finished_at, outcome, summary, error_msg, emails_scanned, emails_matched, tasks_extracted, notifications_sent, notifications_failed, has_stats, items
		FROM runs WHERE id = ?
	`, id)

	return scanRun(row)
}

// ListOptions specifies filters for listing archived runs
type ListOptions struct {
	Outcome string
	Limit   int
}

// ListRuns returns archived runs matching the given options, newest first
func (s *Store) ListRuns(opts ListOptions) ([]*domain.RunRecord, error) {
	query := `SELECT id, started_at, finished_at, outcome, summary, error_msg, emails_scanned, emails_matched, tasks_extracted, notifications_sent, notifications_failed, has_stats, items FROM runs WHERE 1=1`
	var args []interface{}

	if opts.Outcome != "" {
		query += " AND outcome = ?"
		args = append(args, opts.Outcome)
	}

	query += " ORDER BY finished_at DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*domain.RunRecord
	for rows.Next() {
		rec, err := scanRunRows(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

// CountByOutcome returns how many archived runs settled with each outcome
func (s *Store) CountByOutcome() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT outcome, COUNT(*) FROM runs GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

func scanRun(row *sql.Row) (*domain.RunRecord, error) {
	var rec domain.RunRecord
	var scanned, matched, extracted, sent, failed int
	var hasStats bool
	var itemsJSON string

	err := row.Scan(&rec.ID, &rec.StartedAt, &rec.FinishedAt, &rec.Outcome, &rec.Summary, &rec.ErrorMsg, &scanned, &matched, &extracted, &sent, &failed, &hasStats, &itemsJSON)
	if err != nil {
		return nil, err
	}

	if hasStats {
		rec.Stats = &domain.RunStats{
			Scanned:             scanned,
			Matched:             matched,
			TasksExtracted:      extracted,
			NotificationsSent:   sent,
			NotificationsFailed: failed,
		}
	}

	if itemsJSON != "" && itemsJSON != "null" {
		var items []domain.DelegationItem
		if err := json.Unmarshal([]byte(itemsJSON), &items); err != nil {
			return nil, err
		}
		rec.Items = items
	}

	return &rec, nil
}

func scanRunRows(rows *sql.Rows) (*domain.RunRecord, error) {
	var rec domain.RunRecord
	var scanned, matched, extracted, sent, failed int
	var hasStats bool
	var itemsJSON string

	err := rows.Scan(&rec.ID, &rec.StartedAt, &rec.FinishedAt, &rec.Outcome, &rec.Summary, &rec.ErrorMsg, &scanned, &matched, &extracted, &sent, &failed, &hasStats, &itemsJSON)
	if err != nil {
		return nil, err
	}

	if hasStats {
		rec.Stats = &domain.RunStats{
			Scanned:             scanned,
			Matched:             matched,
			TasksExtracted:      extracted,
			NotificationsSent:   sent,
			NotificationsFailed: failed,
		}
	}

	if itemsJSON != "" && itemsJSON != "null" {
		var items []domain.DelegationItem
		if err := json.Unmarshal([]byte(itemsJSON), &items); err != nil {
			return nil, err
		}
		rec.Items = items
	}

	return &rec, nil
}
