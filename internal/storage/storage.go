// Package storage persists the HTTP response cache and the analysis runs in SQL.
// SQLite (modernc.org/sqlite) and PostgreSQL (github.com/lib/pq) are supported.
package storage

import (
	"database/sql"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver registration
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/rvishravars/citheater/internal/github"
	_ "modernc.org/sqlite" // SQLite driver registration
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

const (
	// DialectSQLite is the dialect of the embedded database files.
	DialectSQLite = "sqlite"
	// DialectPostgres is the dialect of postgres:// DSNs.
	DialectPostgres = "postgres"

	sqlitePrefix = "sqlite:"
	timeLayout   = time.RFC3339Nano
)

// Store is the SQL database with the cache and the runs.
type Store struct {
	db      *sql.DB
	dialect string
}

// Run is the header of a stored analysis run.
type Run struct {
	ID           string
	Version      string
	Started      time.Time
	Finished     time.Time
	Repositories int
	Analyses     []string
	Failed       map[string]string
}

// Done checks whether FinishRun() was called.
func (r Run) Done() bool {
	return !r.Finished.IsZero()
}

// Result is the stored output of one analysis for one repository.
type Result struct {
	RunID      string
	Analysis   string
	Repository string
	Payload    json.RawMessage
}

// Open connects to the database and creates the schema. `dsn` is either a postgres:// URL,
// or a path to the SQLite file, optionally prefixed with "sqlite:".
func Open(dsn string) (*Store, error) {
	driver, source, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s database", driver)
	}
	if driver == DialectSQLite {
		// concurrent writers would fail with SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}
	store := &Store{db: db, dialect: driver}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func parseDSN(dsn string) (string, string, error) {
	switch {
	case dsn == "":
		return "", "", errors.New("empty database DSN")
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		return DialectPostgres, dsn, nil
	}
	path, err := homedir.Expand(strings.TrimPrefix(dsn, sqlitePrefix))
	if err != nil {
		return "", "", errors.Wrapf(err, "invalid database path %s", dsn)
	}
	return DialectSQLite, path, nil
}

// Dialect returns either DialectSQLite or DialectPostgres.
func (s *Store) Dialect() string {
	return s.dialect
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	blob := "BLOB"
	if s.dialect == DialectPostgres {
		blob = "BYTEA"
	}
	_, err := s.db.Exec(`
		DROP TABLE IF EXISTS http_cache;
		CREATE TABLE IF NOT EXISTS http_responses (
			cache_key TEXT PRIMARY KEY,
			etag      TEXT NOT NULL,
			link      TEXT NOT NULL DEFAULT '',
			body      ` + blob + ` NOT NULL,
			updated   TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS runs (
			id           TEXT PRIMARY KEY,
			version      TEXT NOT NULL,
			started      TEXT NOT NULL,
			finished     TEXT NOT NULL DEFAULT '',
			repositories INTEGER NOT NULL,
			analyses     TEXT NOT NULL,
			failed       TEXT NOT NULL DEFAULT '{}'
		);
		CREATE TABLE IF NOT EXISTS results (
			run_id     TEXT NOT NULL,
			analysis   TEXT NOT NULL,
			repository TEXT NOT NULL,
			payload    TEXT NOT NULL,
			PRIMARY KEY (run_id, analysis, repository)
		);
		CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);
	`)
	return errors.Wrap(err, "creating tables")
}

// rebind converts the ? placeholders to $N for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var builder strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			builder.WriteByte('$')
			builder.WriteString(strconv.Itoa(n))
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

// LoadResponse returns the cached response. It implements github.Cache.
func (s *Store) LoadResponse(key string) (github.CachedResponse, bool) {
	var response github.CachedResponse
	err := s.db.QueryRow(s.rebind(`SELECT etag, link, body FROM http_responses WHERE cache_key = ?`), key).
		Scan(&response.ETag, &response.Link, &response.Body)
	if err != nil {
		return github.CachedResponse{}, false
	}
	return response, true
}

// SaveResponse inserts or replaces the cached response. It implements github.Cache.
func (s *Store) SaveResponse(key string, response github.CachedResponse) error {
	_, err := s.db.Exec(s.rebind(`
		INSERT INTO http_responses (cache_key, etag, link, body, updated) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET
			etag = excluded.etag, link = excluded.link, body = excluded.body,
			updated = excluded.updated
	`), key, response.ETag, response.Link, response.Body, time.Now().UTC().Format(timeLayout))
	return errors.Wrapf(err, "caching %s", key)
}

// BeginRun registers a new run and returns its identifier.
func (s *Store) BeginRun(version string, repositories int, analyses []string) (string, error) {
	id := uuid.New().String()
	sorted := append([]string{}, analyses...)
	sort.Strings(sorted)
	_, err := s.db.Exec(s.rebind(`
		INSERT INTO runs (id, version, started, repositories, analyses) VALUES (?, ?, ?, ?, ?)
	`), id, version, time.Now().UTC().Format(timeLayout), repositories, strings.Join(sorted, ","))
	if err != nil {
		return "", errors.Wrap(err, "inserting the run")
	}
	return id, nil
}

// SaveResult stores the JSON encoding of `payload`. Saving the same
// (run, analysis, repository) again replaces the previous value.
func (s *Store) SaveResult(runID, analysis, repository string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "encoding %s result of %s", analysis, repository)
	}
	_, err = s.db.Exec(s.rebind(`
		INSERT INTO results (run_id, analysis, repository, payload) VALUES (?, ?, ?, ?)
		ON CONFLICT (run_id, analysis, repository) DO UPDATE SET payload = excluded.payload
	`), runID, analysis, repository, string(data))
	return errors.Wrapf(err, "inserting %s result of %s", analysis, repository)
}

// FinishRun marks the run complete and records the failed repositories.
func (s *Store) FinishRun(runID string, failed map[string]string) error {
	if failed == nil {
		failed = map[string]string{}
	}
	data, err := json.Marshal(failed)
	if err != nil {
		return errors.Wrap(err, "encoding the failures")
	}
	res, err := s.db.Exec(s.rebind(`UPDATE runs SET finished = ?, failed = ? WHERE id = ?`),
		time.Now().UTC().Format(timeLayout), string(data), runID)
	if err != nil {
		return errors.Wrap(err, "updating the run")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

const runColumns = `id, version, started, finished, repositories, analyses, failed`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var started, finished, analyses, failed string
	if err := row.Scan(&run.ID, &run.Version, &started, &finished, &run.Repositories,
		&analyses, &failed); err != nil {
		return nil, err
	}
	run.Started, _ = time.Parse(timeLayout, started)
	if finished != "" {
		run.Finished, _ = time.Parse(timeLayout, finished)
	}
	if analyses != "" {
		run.Analyses = strings.Split(analyses, ",")
	}
	if err := json.Unmarshal([]byte(failed), &run.Failed); err != nil {
		return nil, errors.Wrapf(err, "decoding the failures of %s", run.ID)
	}
	return &run, nil
}

// ListRuns returns all the runs, newest first.
func (s *Store) ListRuns() ([]Run, error) {
	rows, err := s.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY started DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "querying runs")
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning run")
		}
		runs = append(runs, *run)
	}
	return runs, errors.Wrap(rows.Err(), "iterating runs")
}

// GetRun finds the run by its identifier or by an unambiguous prefix of it.
func (s *Store) GetRun(id string) (*Run, error) {
	rows, err := s.db.Query(s.rebind(`SELECT `+runColumns+` FROM runs WHERE id LIKE ? LIMIT 2`),
		strings.ReplaceAll(id, "%", "")+"%")
	if err != nil {
		return nil, errors.Wrap(err, "querying run")
	}
	defer rows.Close()
	var found []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning run")
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating runs")
	}
	switch len(found) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return found[0], nil
	}
	return nil, errors.Errorf("run id prefix %q is ambiguous", id)
}

// RunResults returns the stored results of the run ordered by analysis and repository.
func (s *Store) RunResults(runID string) ([]Result, error) {
	rows, err := s.db.Query(s.rebind(`
		SELECT run_id, analysis, repository, payload FROM results
		WHERE run_id = ? ORDER BY analysis, repository
	`), runID)
	if err != nil {
		return nil, errors.Wrap(err, "querying results")
	}
	defer rows.Close()
	var results []Result
	for rows.Next() {
		var result Result
		var payload string
		if err := rows.Scan(&result.RunID, &result.Analysis, &result.Repository, &payload); err != nil {
			return nil, errors.Wrap(err, "scanning result")
		}
		result.Payload = json.RawMessage(payload)
		results = append(results, result)
	}
	return results, errors.Wrap(rows.Err(), "iterating results")
}
