package report

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iptvterm/terminator/internal/check"
)

// History is an append-only sqlite archive of runs and their successes.
// The text report stays the primary output contract; the archive exists so
// hits survive across runs and can be grepped later.
type History struct {
	db *sql.DB
}

const historySchema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	checked    INTEGER NOT NULL,
	active     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS hits (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	host      TEXT NOT NULL,
	username  TEXT,
	mac       TEXT,
	password  TEXT,
	protocol  TEXT NOT NULL,
	expiry    TEXT,
	days_left INTEGER
);
CREATE INDEX IF NOT EXISTS hits_host ON hits(host);
`

// OpenHistory opens (and migrates) the archive at path.
func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return &History{db: db}, nil
}

// RecordRun stores one run header and its success rows in a transaction.
func (h *History) RecordRun(runID string, startedAt time.Time, checked int, hits []check.VerificationResult) error {
	tx, err := h.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(
		`INSERT INTO runs (id, started_at, checked, active) VALUES (?, ?, ?, ?)`,
		runID, startedAt.Format(time.RFC3339), checked, len(hits),
	); err != nil {
		return err
	}
	for _, r := range hits {
		if _, err := tx.Exec(
			`INSERT INTO hits (run_id, host, username, mac, password, protocol, expiry, days_left)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, r.Host, r.Username, r.MAC, r.Password, string(r.Protocol), r.Expiry, r.DaysLeft,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// HitCount returns the total number of archived successes.
func (h *History) HitCount() (int, error) {
	var n int
	err := h.db.QueryRow(`SELECT COUNT(*) FROM hits`).Scan(&n)
	return n, err
}

// Close closes the archive.
func (h *History) Close() error { return h.db.Close() }
