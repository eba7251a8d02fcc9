package tracing

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite3" driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
)

// TxRecord is one logged bus transaction.
type TxRecord struct {
	ID   string
	Type string
	Addr uint64
	Src  int
}

// SQLiteTxLog is an optional, append-only log of every bus transaction,
// for post-mortem inspection of a run with a SQL client instead of
// stdout. Each record gets an xid so records are orderable even though
// SQLite's own rowid would do the same job — callers expect the ID to
// be a string.
type SQLiteTxLog struct {
	db        *sql.DB
	statement *sql.Stmt

	buf       []TxRecord
	batchSize int
}

// NewSQLiteTxLog opens (creating if necessary) a database at path and
// prepares the transactions table.
func NewSQLiteTxLog(path string) (*SQLiteTxLog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("tracing: opening %s: %w", path, err)
	}

	t := &SQLiteTxLog{db: db, batchSize: 500}
	if err := t.createTable(); err != nil {
		db.Close()
		return nil, err
	}
	if err := t.prepareStatement(); err != nil {
		db.Close()
		return nil, err
	}
	return t, nil
}

func (t *SQLiteTxLog) createTable() error {
	_, err := t.db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id   TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			addr INTEGER NOT NULL,
			src  INTEGER NOT NULL
		);
	`)
	return err
}

func (t *SQLiteTxLog) prepareStatement() error {
	stmt, err := t.db.Prepare(`INSERT INTO transactions (id, type, addr, src) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	t.statement = stmt
	return nil
}

// Record buffers one transaction, flushing once batchSize records have
// accumulated.
func (t *SQLiteTxLog) Record(txType string, addr uint64, src int) {
	t.buf = append(t.buf, TxRecord{ID: xid.New().String(), Type: txType, Addr: addr, Src: src})
	if len(t.buf) >= t.batchSize {
		t.Flush()
	}
}

// Flush writes every buffered record inside one SQLite transaction.
func (t *SQLiteTxLog) Flush() error {
	if len(t.buf) == 0 {
		return nil
	}

	tx, err := t.db.Begin()
	if err != nil {
		return err
	}
	stmt := tx.Stmt(t.statement)
	for _, r := range t.buf {
		if _, err := stmt.Exec(r.ID, r.Type, r.Addr, r.Src); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	t.buf = nil
	return nil
}

// Close flushes remaining records and closes the database.
func (t *SQLiteTxLog) Close() error {
	if err := t.Flush(); err != nil {
		return err
	}
	return t.db.Close()
}
