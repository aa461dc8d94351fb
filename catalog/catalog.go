// Package catalog is the L0 layer (§2, §3, §6.1): it owns the two SQLite
// databases (repository-wide and checkout-local), their schemas, a
// depth-counted nested-transaction helper (§5 "nested begin/end calls are
// reference-counted"), and a prepared-statement registry that panics at
// close if a statement was never finalized (§5, diagnostic only).
//
// The teacher has no embedded database of its own — it writes a flat P4
// journal file — so this package's shape is new, but the discipline of
// "one struct per concern, logger threaded through the constructor" follows
// the teacher's GitP4Transfer/GitBlob pattern throughout this module.
package catalog

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// busyTimeoutMillis matches §5's "bounded by a 5-second busy timeout".
const busyTimeoutMillis = 5000

// DB wraps a *sql.DB with the nested-transaction and prepared-statement
// discipline §5 requires. Both RepoDB and CheckoutDB embed it.
type DB struct {
	logger *logrus.Logger
	sqldb  *sql.DB
	path   string

	txMu  sync.Mutex
	tx    *sql.Tx
	depth int

	stmtMu sync.Mutex
	stmts  map[string]*sql.Stmt
}

func open(path string, logger *logrus.Logger) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on", path, busyTimeoutMillis)
	sqldb, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	// A single writable connection per process, per §5 "a single process
	// may hold at most one writable connection to the repository at a
	// time" — a pool of size 1 makes that explicit rather than relying on
	// SQLite's own locking to serialize surprise concurrent writers.
	sqldb.SetMaxOpenConns(1)
	return &DB{
		logger: logger,
		sqldb:  sqldb,
		path:   path,
		stmts:  make(map[string]*sql.Stmt),
	}, nil
}

// Close closes the underlying database, panicking if any prepared statement
// registered via Prepare was never Finalized (§5, diagnostic only).
func (d *DB) Close() error {
	d.stmtMu.Lock()
	leaked := len(d.stmts)
	d.stmtMu.Unlock()
	if leaked > 0 {
		panic(fmt.Sprintf("catalog: %d prepared statement(s) not finalized at close of %s", leaked, d.path))
	}
	return d.sqldb.Close()
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func (d *DB) conn() execer {
	d.txMu.Lock()
	defer d.txMu.Unlock()
	if d.tx != nil {
		return d.tx
	}
	return d.sqldb
}

// Exec runs a statement against the current transaction if one is open, or
// directly against the database otherwise.
func (d *DB) Exec(query string, args ...any) (sql.Result, error) {
	return d.conn().Exec(query, args...)
}

// Query runs a query against the current transaction if one is open, or
// directly against the database otherwise.
func (d *DB) Query(query string, args ...any) (*sql.Rows, error) {
	return d.conn().Query(query, args...)
}

// QueryRow runs a single-row query the same way Query does.
func (d *DB) QueryRow(query string, args ...any) *sql.Row {
	return d.conn().QueryRow(query, args...)
}

// Begin opens the outer transaction on first call; nested calls only bump a
// depth counter, matching §5's "nested begin/end calls are reference
// counted and only the outermost commits or rolls back".
func (d *DB) Begin() error {
	d.txMu.Lock()
	defer d.txMu.Unlock()
	if d.depth == 0 {
		tx, err := d.sqldb.Begin()
		if err != nil {
			return fmt.Errorf("catalog: begin: %w", err)
		}
		d.tx = tx
	}
	d.depth++
	return nil
}

// Commit decrements the depth counter, committing only when it reaches
// zero.
func (d *DB) Commit() error {
	d.txMu.Lock()
	defer d.txMu.Unlock()
	if d.depth == 0 {
		return fmt.Errorf("catalog: commit called without a matching begin")
	}
	d.depth--
	if d.depth == 0 {
		tx := d.tx
		d.tx = nil
		return tx.Commit()
	}
	return nil
}

// Rollback aborts the whole nested transaction regardless of depth: one
// failure anywhere in a nested sequence must roll back the outer
// transaction (§5, §7 "propagate ... to the outermost transaction, which
// rolls back").
func (d *DB) Rollback() error {
	d.txMu.Lock()
	defer d.txMu.Unlock()
	if d.depth == 0 || d.tx == nil {
		return nil
	}
	tx := d.tx
	d.tx = nil
	d.depth = 0
	return tx.Rollback()
}

// InTransaction reports whether a transaction is currently open.
func (d *DB) InTransaction() bool {
	d.txMu.Lock()
	defer d.txMu.Unlock()
	return d.tx != nil
}

// Prepare registers a named prepared statement. Callers must Finalize it
// before Close, or Close panics.
func (d *DB) Prepare(name, query string) (*sql.Stmt, error) {
	stmt, err := d.sqldb.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("catalog: prepare %s: %w", name, err)
	}
	d.stmtMu.Lock()
	d.stmts[name] = stmt
	d.stmtMu.Unlock()
	return stmt, nil
}

// Finalize closes and unregisters a named prepared statement. Finalizing an
// unknown name is a no-op, matching finalize-on-rollback call sites that
// don't know whether a given statement was ever prepared.
func (d *DB) Finalize(name string) error {
	d.stmtMu.Lock()
	stmt, ok := d.stmts[name]
	if ok {
		delete(d.stmts, name)
	}
	d.stmtMu.Unlock()
	if !ok {
		return nil
	}
	return stmt.Close()
}

// WithTransaction runs fn inside a nested transaction, committing on a nil
// return and rolling back otherwise.
func (d *DB) WithTransaction(fn func() error) (err error) {
	if err = d.Begin(); err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = d.Rollback()
			panic(p)
		}
	}()
	if err = fn(); err != nil {
		if rbErr := d.Rollback(); rbErr != nil {
			d.logger.Errorf("catalog: rollback after error failed: %v", rbErr)
		}
		return err
	}
	return d.Commit()
}
