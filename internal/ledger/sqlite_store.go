package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"progression/internal/score"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// SQLiteStore keeps the ledger in a SQLite database: one row per date in entries
// and a single aggregates row.
type SQLiteStore struct {
	path string
	db   *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ledger: create data dir: %w", err)
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = FULL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("ledger: pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{path: path, db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: migration: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS entries (
			date           TEXT PRIMARY KEY,
			raw_score      REAL    NOT NULL,
			momentum_mult  REAL    NOT NULL,
			base_score     REAL    NOT NULL,
			ascending_chain INTEGER NOT NULL,
			streak_days    INTEGER NOT NULL,
			total_mult     REAL    NOT NULL,
			v3_xp          INTEGER NOT NULL,
			v3_grade       TEXT    NOT NULL,
			v2_grade       TEXT    NOT NULL,
			entry          TEXT    NOT NULL
		);

		CREATE TABLE IF NOT EXISTS aggregates (
			id             INTEGER PRIMARY KEY CHECK (id = 1),
			longest_chain  INTEGER NOT NULL,
			longest_streak INTEGER NOT NULL,
			current_chain  INTEGER NOT NULL,
			current_streak INTEGER NOT NULL,
			momentum_mult  REAL    NOT NULL,
			xp_total       INTEGER NOT NULL,
			raw_total      REAL    NOT NULL,
			days           INTEGER NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load reads all entries ordered by date.
func (s *SQLiteStore) Load(ctx context.Context) (*Ledger, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entry FROM entries ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("ledger: query entries: %w", err)
	}
	defer rows.Close()

	var entries []score.Entry
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var e score.Entry
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("ledger: decode entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	l, err := New(entries)
	if err != nil {
		return nil, err
	}

	var stored Aggregates
	err = s.db.QueryRowContext(ctx, `
		SELECT longest_chain, longest_streak, current_chain, current_streak,
		       momentum_mult, xp_total, raw_total, days
		FROM aggregates WHERE id = 1`).Scan(
		&stored.LongestChain, &stored.LongestStreak, &stored.CurrentChain, &stored.CurrentStreak,
		&stored.MomentumMult, &stored.XPTotal, &stored.RawTotal, &stored.Days,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("ledger: query aggregates: %w", err)
	case stored != l.Aggregates:
		slog.Warn("ledger aggregates drift, using recomputed values", "path", s.path, "stored", stored, "computed", l.Aggregates)
	}
	return l, nil
}

// Save replaces every entry and the aggregates row in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, l *Ledger) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("ledger: clear entries: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (date, raw_score, momentum_mult, base_score, ascending_chain,
		                     streak_days, total_mult, v3_xp, v3_grade, v2_grade, entry)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range l.Entries {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("ledger: encode %s: %w", e.Date, err)
		}
		if _, err := stmt.ExecContext(ctx, e.Date, e.RawScore, e.MomentumMult, e.BaseScore, e.AscendingChain,
			e.StreakDays, e.TotalMult, e.V3XP, string(e.V3Grade), string(e.V2Grade), string(payload)); err != nil {
			return fmt.Errorf("ledger: insert %s: %w", e.Date, err)
		}
	}

	a := Aggregate(l.Entries)
	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO aggregates (id, longest_chain, longest_streak, current_chain, current_streak,
		                                   momentum_mult, xp_total, raw_total, days)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.LongestChain, a.LongestStreak, a.CurrentChain, a.CurrentStreak,
		a.MomentumMult, a.XPTotal, a.RawTotal, a.Days); err != nil {
		return fmt.Errorf("ledger: write aggregates: %w", err)
	}

	return tx.Commit()
}

// Lock takes the writer lock on <path>.lock.
func (s *SQLiteStore) Lock(ctx context.Context) (func() error, error) {
	return lockPath(ctx, s.path+".lock")
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
