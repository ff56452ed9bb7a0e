// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"strings"
	"sync"
	"testing"
)

// Statement is one query seen by a Recorder.
type Statement struct {
	Query string
	Args  []driver.Value
}

type resultSet struct {
	match string
	cols  []string
	rows  [][]driver.Value
}

// Recorder is an in-process database/sql driver that records every
// statement.  Exec results and query rows are scripted by query substring.
type Recorder struct {
	mu        sync.Mutex
	stmts     []Statement
	fail      map[string]error
	affected  map[string]int64
	results   []resultSet
	commits   int
	rollbacks int
}

// NewRecordingDB returns a *sql.DB backed by a fresh Recorder.
func NewRecordingDB(t *testing.T) (*sql.DB, *Recorder) {
	t.Helper()
	rec := &Recorder{fail: map[string]error{}, affected: map[string]int64{}}
	db := sql.OpenDB(connector{rec: rec})
	t.Cleanup(func() { _ = db.Close() })
	return db, rec
}

// FailOn makes statements containing substr fail with err.
func (r *Recorder) FailOn(substr string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[substr] = err
}

// RowsAffected sets the affected row count reported for statements
// containing substr.  The default is 1.
func (r *Recorder) RowsAffected(substr string, n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.affected[substr] = n
}

// Returns scripts the rows produced by queries containing substr.
func (r *Recorder) Returns(substr string, cols []string, rows ...[]driver.Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, resultSet{match: substr, cols: cols, rows: rows})
}

// Statements returns the recorded statements containing substr.
func (r *Recorder) Statements(substr string) []Statement {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Statement
	for _, s := range r.stmts {
		if strings.Contains(s.Query, substr) {
			out = append(out, s)
		}
	}
	return out
}

// Commits returns the number of committed transactions.
func (r *Recorder) Commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commits
}

// Rollbacks returns the number of rolled back transactions.
func (r *Recorder) Rollbacks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rollbacks
}

func (r *Recorder) record(query string, args []driver.Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stmts = append(r.stmts, Statement{Query: query, Args: append([]driver.Value(nil), args...)})
	for substr, err := range r.fail {
		if strings.Contains(query, substr) {
			return err
		}
	}
	return nil
}

func (r *Recorder) rowsAffected(query string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	for substr, n := range r.affected {
		if strings.Contains(query, substr) {
			return n
		}
	}
	return 1
}

func (r *Recorder) rowsFor(query string) *rows {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rs := range r.results {
		if strings.Contains(query, rs.match) {
			return &rows{cols: rs.cols, data: rs.rows}
		}
	}
	return &rows{}
}

type connector struct{ rec *Recorder }

func (c connector) Connect(context.Context) (driver.Conn, error) { return &conn{rec: c.rec}, nil }
func (c connector) Driver() driver.Driver                         { return drv{rec: c.rec} }

type drv struct{ rec *Recorder }

func (d drv) Open(string) (driver.Conn, error) { return &conn{rec: d.rec}, nil }

type conn struct{ rec *Recorder }

func (c *conn) Prepare(query string) (driver.Stmt, error) { return &stmt{rec: c.rec, query: query}, nil }
func (c *conn) Close() error                              { return nil }
func (c *conn) Begin() (driver.Tx, error)                 { return tx{rec: c.rec}, nil }

type tx struct{ rec *Recorder }

func (t tx) Commit() error {
	t.rec.mu.Lock()
	t.rec.commits++
	t.rec.mu.Unlock()
	return nil
}

func (t tx) Rollback() error {
	t.rec.mu.Lock()
	t.rec.rollbacks++
	t.rec.mu.Unlock()
	return nil
}

type stmt struct {
	rec   *Recorder
	query string
}

func (s *stmt) Close() error  { return nil }
func (s *stmt) NumInput() int { return -1 }

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	if err := s.rec.record(s.query, args); err != nil {
		return nil, err
	}
	return driver.RowsAffected(s.rec.rowsAffected(s.query)), nil
}

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	if err := s.rec.record(s.query, args); err != nil {
		return nil, err
	}
	return s.rec.rowsFor(s.query), nil
}

type rows struct {
	cols []string
	data [][]driver.Value
	pos  int
}

func (r *rows) Columns() []string { return r.cols }
func (r *rows) Close() error      { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if r.pos >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.pos])
	r.pos++
	return nil
}
