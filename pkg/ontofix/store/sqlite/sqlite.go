package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
	"github.com/cognicore/ontofix/pkg/ontofix/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS suspected (
	ontology TEXT NOT NULL,
	axiom TEXT NOT NULL,
	PRIMARY KEY(ontology, axiom)
);

CREATE TABLE IF NOT EXISTS suspected_runs (
	ontology TEXT PRIMARY KEY,
	saved_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS mups (
	ontology TEXT NOT NULL,
	mkey TEXT NOT NULL,
	entity TEXT NOT NULL,
	kind TEXT NOT NULL,
	type TEXT NOT NULL,
	axioms TEXT NOT NULL,
	PRIMARY KEY(ontology, mkey)
);

CREATE TABLE IF NOT EXISTS reports (
	id TEXT PRIMARY KEY,
	ontology TEXT NOT NULL,
	ranker TEXT NOT NULL,
	greedy INTEGER NOT NULL,
	total_cost REAL NOT NULL,
	errors TEXT NOT NULL,
	created_at TEXT NOT NULL,
	body TEXT
);

CREATE INDEX IF NOT EXISTS reports_by_ontology ON reports(ontology, id);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// SaveSuspected replaces the suspected axioms of an ontology in one
// transaction. An empty list is a valid cache: the last pass found no bugs.
func (s *sqliteStore) SaveSuspected(ctx context.Context, ontology string, axioms []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM suspected WHERE ontology = ?`, ontology); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO suspected (ontology, axiom) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, a := range axioms {
		if _, err := stmt.ExecContext(ctx, ontology, a); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO suspected_runs (ontology, saved_at) VALUES (?, ?)
ON CONFLICT(ontology) DO UPDATE SET saved_at=excluded.saved_at;
`, ontology, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadSuspected returns the saved axioms and whether a cache exists.
func (s *sqliteStore) LoadSuspected(ctx context.Context, ontology string) ([]string, bool, error) {
	var savedAt string
	err := s.db.QueryRowContext(ctx, `SELECT saved_at FROM suspected_runs WHERE ontology = ?`, ontology).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	axioms, err := s.loadStringColumn(ctx, `SELECT axiom FROM suspected WHERE ontology = ? ORDER BY axiom`, ontology)
	if err != nil {
		return nil, false, err
	}
	return axioms, true, nil
}

// UpsertMUPS stores conflict sets; a record already present is overwritten.
func (s *sqliteStore) UpsertMUPS(ctx context.Context, ontology string, ms []store.MUPS) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO mups (ontology, mkey, entity, kind, type, axioms)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(ontology, mkey) DO UPDATE SET
	type=excluded.type;
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range ms {
		if len(m.Axioms) == 0 {
			return fmt.Errorf("%w: empty mups for %s", internalerr.ErrInvalidInput, m.Entity)
		}
		axiomsJSON, err := json.Marshal(m.Axioms)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, ontology, m.Key(), m.Entity, m.Kind, m.Type, string(axiomsJSON)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetMUPS returns the stored conflict sets ordered by key.
func (s *sqliteStore) GetMUPS(ctx context.Context, ontology string) ([]store.MUPS, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT entity, kind, type, axioms
FROM mups
WHERE ontology = ?
ORDER BY mkey;
`, ontology)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.MUPS
	for rows.Next() {
		var m store.MUPS
		var axiomsJSON string
		if err := rows.Scan(&m.Entity, &m.Kind, &m.Type, &axiomsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(axiomsJSON), &m.Axioms); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpsertReport stores a report by ID.
func (s *sqliteStore) UpsertReport(ctx context.Context, r store.Report) error {
	if r.ID == "" {
		return fmt.Errorf("%w: report without id", internalerr.ErrInvalidInput)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	errorsJSON, err := json.Marshal(r.Errors)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO reports (id, ontology, ranker, greedy, total_cost, errors, created_at, body)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	ontology=excluded.ontology,
	ranker=excluded.ranker,
	greedy=excluded.greedy,
	total_cost=excluded.total_cost,
	errors=excluded.errors,
	created_at=excluded.created_at,
	body=excluded.body;
`, r.ID, r.Ontology, r.Ranker, r.Greedy, r.TotalCost, string(errorsJSON),
		r.CreatedAt.UTC().Format(time.RFC3339Nano), r.Body)
	return err
}

// GetReport returns one report.
func (s *sqliteStore) GetReport(ctx context.Context, id string) (store.Report, error) {
	rows, err := s.db.QueryContext(ctx, reportColumns+` WHERE id = ?`, id)
	if err != nil {
		return store.Report{}, err
	}
	reports, err := scanReports(rows)
	if err != nil {
		return store.Report{}, err
	}
	if len(reports) == 0 {
		return store.Report{}, fmt.Errorf("report %s: %w", id, internalerr.ErrNotFound)
	}
	return reports[0], nil
}

// GetReports returns the newest k reports of an ontology.
func (s *sqliteStore) GetReports(ctx context.Context, ontology string, k int) ([]store.Report, error) {
	if k <= 0 {
		k = 10
	}
	rows, err := s.db.QueryContext(ctx, reportColumns+`
WHERE ontology = ?
ORDER BY id DESC
LIMIT ?;
`, ontology, k)
	if err != nil {
		return nil, err
	}
	return scanReports(rows)
}

const reportColumns = `
SELECT id, ontology, ranker, greedy, total_cost, errors, created_at, body
FROM reports`

func scanReports(rows *sql.Rows) ([]store.Report, error) {
	defer rows.Close()

	var out []store.Report
	for rows.Next() {
		var r store.Report
		var errorsJSON, createdAt string
		var body sql.NullString
		if err := rows.Scan(&r.ID, &r.Ontology, &r.Ranker, &r.Greedy, &r.TotalCost, &errorsJSON, &createdAt, &body); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(errorsJSON), &r.Errors); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("report %s: created_at: %w", r.ID, err)
		}
		r.CreatedAt = t
		r.Body = body.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) loadStringColumn(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
