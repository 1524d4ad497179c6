// Package fingerprint implements the durable {item-key -> content hash}
// mapping described in spec.md §4.A: a transactional key/value store with
// commit/abort semantics, backed by modernc.org/sqlite the same way
// the reference repo's internal/eventstore.SQLiteStore backs its event log.
package fingerprint

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/docbuilder/internal/sitegen/sitegenerr"
)

// SchemaVersion is bumped whenever the canonicalization rules in package
// change stop being backward compatible with previously stored hashes.
// A mismatch between this constant and the value recorded in store_meta
// forces a full rebuild (spec.md §9 open question, resolved: bump on
// canonicalization changes only, never on unrelated engine changes).
const SchemaVersion = 1

// Record is a single persisted fingerprint row.
type Record struct {
	ItemKey       string
	ContentHash   string
	SchemaVersion int
}

// Store is the fingerprint store handle. It owns an advisory lock file for
// the lifetime of the process holding it open; a second Open on the same
// path fails fast with sitegenerr.ErrStoreLocked.
type Store struct {
	db       *sql.DB
	lockPath string
}

// Open opens (creating if absent) the SQLite-backed fingerprint store at
// path, acquiring the process-wide exclusive lock spec.md §5 requires.
// A schema-version mismatch is treated as an empty store: every fingerprint
// row is deleted and the stored schema version is updated, so every item
// reads as directly dirty.
func Open(path string) (*Store, error) {
	lockPath := path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, sitegenerr.ErrStoreLocked
		}
		return nil, fmt.Errorf("fingerprint: create lock file: %w", err)
	}
	_ = lockFile.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		_ = os.Remove(lockPath)
		return nil, fmt.Errorf("fingerprint: open sqlite database: %w", err)
	}

	s := &Store{db: db, lockPath: lockPath}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		_ = os.Remove(lockPath)
		return nil, fmt.Errorf("fingerprint: initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS fingerprints (
		item_key       TEXT PRIMARY KEY,
		content_hash   TEXT NOT NULL,
		schema_version INTEGER NOT NULL,
		output_paths   TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS store_meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(ddl); err != nil {
		return err
	}

	var storedVersion int
	err := s.db.QueryRow(`SELECT value FROM store_meta WHERE key = 'schema_version'`).Scan(&storedVersion)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.Exec(`INSERT INTO store_meta (key, value) VALUES ('schema_version', ?)`, SchemaVersion)
		return err
	case err != nil:
		return err
	case storedVersion != SchemaVersion:
		if _, err := s.db.Exec(`DELETE FROM fingerprints`); err != nil {
			return err
		}
		_, err = s.db.Exec(`UPDATE store_meta SET value = ? WHERE key = 'schema_version'`, SchemaVersion)
		return err
	}
	return nil
}

// Close releases the SQLite handle and the advisory lock file. Callers
// must call Commit or Abort on any open Txn first.
func (s *Store) Close() error {
	err := s.db.Close()
	if rmErr := os.Remove(s.lockPath); rmErr != nil && err == nil {
		err = fmt.Errorf("fingerprint: remove lock file: %w", rmErr)
	}
	return err
}

// Txn is a single run's transactional view over the store.
type Txn struct {
	tx *sql.Tx
}

// Begin acquires an exclusive write transaction for the run.
func (s *Store) Begin() (*Txn, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("fingerprint: begin transaction: %w", err)
	}
	return &Txn{tx: tx}, nil
}

// Get returns the prior digest for key, or ("", false) if none exists.
func (t *Txn) Get(key string) (string, bool, error) {
	var hash string
	err := t.tx.QueryRow(`SELECT content_hash FROM fingerprints WHERE item_key = ?`, key).Scan(&hash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("fingerprint: get %q: %w", key, err)
	default:
		return hash, true, nil
	}
}

// Upsert records that key was successfully produced at the given digest.
// outputPaths is stored alongside the digest (a small extension beyond the
// bare digest+schema_version pair spec.md §4.A describes) purely so the
// deletion-reconciliation phase (§4.G step 4) can find the exact output
// files to remove for a source that later disappears, including every
// fanned-out pagination output.
func (t *Txn) Upsert(key, digest string, outputPaths []string) error {
	_, err := t.tx.Exec(`
		INSERT INTO fingerprints (item_key, content_hash, schema_version, output_paths)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(item_key) DO UPDATE SET content_hash = excluded.content_hash, schema_version = excluded.schema_version, output_paths = excluded.output_paths
	`, key, digest, SchemaVersion, strings.Join(outputPaths, "\n"))
	if err != nil {
		return fmt.Errorf("fingerprint: upsert %q: %w", key, err)
	}
	return nil
}

// OutputPaths returns the output paths recorded for key at its last
// successful write, or nil if key has no record.
func (t *Txn) OutputPaths(key string) ([]string, error) {
	var joined string
	err := t.tx.QueryRow(`SELECT output_paths FROM fingerprints WHERE item_key = ?`, key).Scan(&joined)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("fingerprint: output paths %q: %w", key, err)
	case joined == "":
		return nil, nil
	default:
		return strings.Split(joined, "\n"), nil
	}
}

// Delete removes key's fingerprint row, used when its source disappears.
func (t *Txn) Delete(key string) error {
	if _, err := t.tx.Exec(`DELETE FROM fingerprints WHERE item_key = ?`, key); err != nil {
		return fmt.Errorf("fingerprint: delete %q: %w", key, err)
	}
	return nil
}

// AllKeys returns every item-key currently recorded, sorted, used by the
// orchestrator's deletion-reconciliation phase.
func (t *Txn) AllKeys() ([]string, error) {
	rows, err := t.tx.Query(`SELECT item_key FROM fingerprints`)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("fingerprint: scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fingerprint: iterate keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Commit durably persists every write made through this transaction.
func (t *Txn) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("fingerprint: commit: %w", err)
	}
	return nil
}

// Abort rolls back all writes made through this transaction; on-disk state
// is left unchanged.
func (t *Txn) Abort() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("fingerprint: abort: %w", err)
	}
	return nil
}
