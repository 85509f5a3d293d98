// Package store implements the typed, transactional key-value persistence
// layer. Every logical table in the data model is realized as a key range
// within one physical table so a single pgx.Tx gives all-or-nothing commit
// semantics across every metaprotocol engine's writes for a block.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by Get when the key does not exist in the table.
var ErrNotFound = errors.New("store: key not found")

const schema = `
CREATE TABLE IF NOT EXISTS kv_store (
	tbl   TEXT NOT NULL,
	key   TEXT NOT NULL,
	value BYTEA NOT NULL,
	PRIMARY KEY (tbl, key)
);
CREATE INDEX IF NOT EXISTS kv_store_tbl_key_idx ON kv_store (tbl, key);
`

// Store wraps a pgxpool.Pool and enforces the single-writer/many-reader
// concurrency model required by the core.
type Store struct {
	pool *pgxpool.Pool
	wmu  sync.Mutex
}

// New connects to databaseURL and ensures the physical table exists.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Pool exposes the underlying pool for components that need raw access
// (migrations, diagnostics).
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Writer is the mutation surface of a write transaction, expressed as an
// interface so engine and ledger code can be exercised against fakes in
// tests without a live Postgres connection.
type Writer interface {
	Reader
	Put(tbl, key string, value []byte) error
	PutIfAbsent(tbl, key string, value []byte) (bool, error)
	Delete(tbl, key string) error
}

// Reader is the lookup surface shared by ReadTxn and WriteTxn.
type Reader interface {
	Get(tbl, key string) ([]byte, error)
	Scan(tbl string, opts ScanOptions) ([]Entry, error)
}

// WriteTxn is the exclusive, scoped write transaction handle. Only one may
// be open at a time across the whole process.
type WriteTxn struct {
	s    *Store
	tx   pgx.Tx
	ctx  context.Context
	done bool
}

// ReadTxn is a read-only transaction handle. Many may be open concurrently
// with the single writer; it never blocks on the write mutex.
type ReadTxn struct {
	tx   pgx.Tx
	ctx  context.Context
	done bool
}

// BeginWrite acquires the process-wide write lock and opens a pgx
// transaction. The caller must Commit or Abort on every exit path.
func (s *Store) BeginWrite(ctx context.Context) (*WriteTxn, error) {
	s.wmu.Lock()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		s.wmu.Unlock()
		return nil, fmt.Errorf("store: begin write: %w", err)
	}
	wt := &WriteTxn{s: s, tx: tx, ctx: ctx}
	return wt, nil
}

// BeginRead opens a read-only transaction. It never contends with the
// writer's mutex.
func (s *Store) BeginRead(ctx context.Context) (*ReadTxn, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("store: begin read: %w", err)
	}
	return &ReadTxn{tx: tx, ctx: ctx}, nil
}

// Commit makes all writes in the transaction durable and releases the
// write lock. It is all-or-nothing.
func (w *WriteTxn) Commit() error {
	if w.done {
		return fmt.Errorf("store: commit on already-finished transaction")
	}
	w.done = true
	defer w.s.wmu.Unlock()
	if err := w.tx.Commit(w.ctx); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Abort discards every write performed in the transaction. It is
// side-effect-free.
func (w *WriteTxn) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	defer w.s.wmu.Unlock()
	if err := w.tx.Rollback(w.ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("store: abort: %w", err)
	}
	return nil
}

// Finished reports whether Commit or Abort has already been called; used by
// callers that want to guard against a leaked scoped acquisition.
func (w *WriteTxn) Finished() bool { return w.done }

// Close releases a read transaction. It is always side-effect-free since
// reads never mutate state.
func (r *ReadTxn) Close() {
	if r.done {
		return
	}
	r.done = true
	_ = r.tx.Rollback(r.ctx)
}

// Get fetches value bytes for (tbl, key) within a write transaction.
func (w *WriteTxn) Get(tbl, key string) ([]byte, error) {
	return get(w.ctx, w.tx, tbl, key)
}

// Put inserts or overwrites (tbl, key) -> value.
func (w *WriteTxn) Put(tbl, key string, value []byte) error {
	_, err := w.tx.Exec(w.ctx,
		`INSERT INTO kv_store (tbl, key, value) VALUES ($1, $2, $3)
		 ON CONFLICT (tbl, key) DO UPDATE SET value = EXCLUDED.value`,
		tbl, key, value)
	if err != nil {
		return fmt.Errorf("store: put %s/%s: %w", tbl, key, err)
	}
	return nil
}

// PutIfAbsent inserts (tbl, key) -> value only if the key does not already
// exist. It reports whether the insert happened (false means first-writer-
// wins semantics rejected this write).
func (w *WriteTxn) PutIfAbsent(tbl, key string, value []byte) (bool, error) {
	tag, err := w.tx.Exec(w.ctx,
		`INSERT INTO kv_store (tbl, key, value) VALUES ($1, $2, $3)
		 ON CONFLICT (tbl, key) DO NOTHING`,
		tbl, key, value)
	if err != nil {
		return false, fmt.Errorf("store: put-if-absent %s/%s: %w", tbl, key, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes (tbl, key), if present.
func (w *WriteTxn) Delete(tbl, key string) error {
	_, err := w.tx.Exec(w.ctx, `DELETE FROM kv_store WHERE tbl = $1 AND key = $2`, tbl, key)
	if err != nil {
		return fmt.Errorf("store: delete %s/%s: %w", tbl, key, err)
	}
	return nil
}

// Get fetches value bytes for (tbl, key) within a read transaction.
func (r *ReadTxn) Get(tbl, key string) ([]byte, error) {
	return get(r.ctx, r.tx, tbl, key)
}

func get(ctx context.Context, tx pgx.Tx, tbl, key string) ([]byte, error) {
	var value []byte
	err := tx.QueryRow(ctx, `SELECT value FROM kv_store WHERE tbl = $1 AND key = $2`, tbl, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s/%s: %w", tbl, key, err)
	}
	return value, nil
}

// Entry is one row returned by a range scan.
type Entry struct {
	Key   string
	Value []byte
}

// ScanOptions configures an ordered range scan.
type ScanOptions struct {
	// StartKey, if non-empty, is the first key to include (inclusive) when
	// Descending is false, or the first key at-or-below when Descending is
	// true.
	StartKey string
	Prefix   string
	Limit    int
	// Descending reverses scan order; pagination helpers default to
	// descending for insertion-ordered feeds.
	Descending bool
}

// Scan performs an ordered range scan within tbl, returning up to
// Limit+1 rows so the caller can derive has_more without a second query.
func (r *ReadTxn) Scan(tbl string, opts ScanOptions) ([]Entry, error) {
	return scan(r.ctx, r.tx, tbl, opts)
}

// Scan performs an ordered range scan from within a write transaction
// (used by engines that need to read-then-write in the same txn).
func (w *WriteTxn) Scan(tbl string, opts ScanOptions) ([]Entry, error) {
	return scan(w.ctx, w.tx, tbl, opts)
}

func scan(ctx context.Context, tx pgx.Tx, tbl string, opts ScanOptions) ([]Entry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	order := "ASC"
	cmp := ">="
	if opts.Descending {
		order = "DESC"
		cmp = "<="
	}

	query := fmt.Sprintf(`SELECT key, value FROM kv_store WHERE tbl = $1`)
	args := []any{tbl}
	n := 2
	if opts.Prefix != "" {
		query += fmt.Sprintf(` AND key LIKE $%d`, n)
		args = append(args, opts.Prefix+"%")
		n++
	}
	if opts.StartKey != "" {
		query += fmt.Sprintf(` AND key %s $%d`, cmp, n)
		args = append(args, opts.StartKey)
		n++
	}
	query += fmt.Sprintf(` ORDER BY key %s LIMIT $%d`, order, n)
	args = append(args, limit+1)

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: scan %s: %w", tbl, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("store: scan row %s: %w", tbl, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan iterate %s: %w", tbl, err)
	}
	return out, nil
}
