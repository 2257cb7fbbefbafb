// Package testutil provides an in-memory database/sql driver that understands
// the handful of statements the postgres snapshot store issues.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
)

var stubSeq uint64

// StubConn records statements and keeps rows per table.
type StubConn struct {
	Execs      []string
	Tables     map[string][]map[string]any
	FailExec   bool
	FailBegin  bool
	RowsErr    error
	FailTables map[string]bool
	FailCommit bool
	// Committed and RolledBack count finished transactions.
	Committed  int
	RolledBack int
}

// NewStubDB registers a fresh driver and returns a sql.DB backed by it.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Tables: make(map[string][]map[string]any)}
	name := fmt.Sprintf("stubpg%d", atomic.AddUint64(&stubSeq, 1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(_ context.Context) error {
	if c.FailExec {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(_ context.Context, _ driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	return &stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext for CREATE, INSERT (with an
// optional ON CONFLICT target) and single-predicate DELETE statements.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "INSERT INTO"):
		table, cols, err := parseInsert(query)
		if err != nil {
			return nil, err
		}
		if c.FailTables[table] {
			return nil, fmt.Errorf("exec fail for %s", table)
		}
		if len(cols) != len(args) {
			return nil, fmt.Errorf("column/arg mismatch for %s", table)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = args[i].Value
		}
		if keys := conflictTarget(query); len(keys) > 0 {
			var kept []map[string]any
			for _, existing := range c.Tables[table] {
				if !sameKey(existing, row, keys) {
					kept = append(kept, existing)
				}
			}
			c.Tables[table] = kept
		}
		c.Tables[table] = append(c.Tables[table], row)
		return driver.RowsAffected(1), nil
	case strings.HasPrefix(upper, "DELETE FROM"):
		table, col, err := parseDelete(query)
		if err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return nil, fmt.Errorf("missing args for delete %s", table)
		}
		var kept []map[string]any
		removed := 0
		for _, row := range c.Tables[table] {
			if row[col] == args[0].Value {
				removed++
				continue
			}
			kept = append(kept, row)
		}
		c.Tables[table] = kept
		return driver.RowsAffected(removed), nil
	}
	return driver.RowsAffected(0), nil
}

// QueryContext implements driver.QueryerContext for SELECT statements with at
// most one "col = $1" predicate.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	table, cols, where, err := parseSelect(query)
	if err != nil {
		return nil, err
	}
	if c.FailTables[table] {
		return nil, fmt.Errorf("query fail for %s", table)
	}
	values := make([][]driver.Value, 0, len(c.Tables[table]))
	for _, row := range c.Tables[table] {
		if where != "" && (len(args) == 0 || row[where] != args[0].Value) {
			continue
		}
		vals := make([]driver.Value, len(cols))
		for i, col := range cols {
			vals[i] = row[col]
		}
		values = append(values, vals)
	}
	return &stubRows{cols: cols, rows: values, err: c.RowsErr}, nil
}

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	if t.conn.FailCommit {
		return fmt.Errorf("commit fail")
	}
	t.conn.Committed++
	return nil
}

func (t *stubTx) Rollback() error {
	t.conn.RolledBack++
	return nil
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

func sameKey(a, b map[string]any, keys []string) bool {
	for _, k := range keys {
		if a[k] != b[k] {
			return false
		}
	}
	return true
}

func parseInsert(query string) (string, []string, error) {
	up := strings.ToUpper(query)
	intoIdx := strings.Index(up, "INTO ")
	if intoIdx == -1 {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	rest := strings.TrimSpace(query[intoIdx+len("INTO "):])
	open := strings.Index(rest, "(")
	closeIdx := strings.Index(rest, ")")
	if open == -1 || closeIdx == -1 || closeIdx <= open {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	table := strings.ToLower(strings.TrimSpace(rest[:open]))
	return table, splitColumns(rest[open+1 : closeIdx]), nil
}

// conflictTarget returns the columns of "ON CONFLICT(a,b)", if any.
func conflictTarget(query string) []string {
	up := strings.ToUpper(query)
	idx := strings.Index(up, "ON CONFLICT")
	if idx == -1 {
		return nil
	}
	rest := query[idx+len("ON CONFLICT"):]
	open := strings.Index(rest, "(")
	closeIdx := strings.Index(rest, ")")
	if open == -1 || closeIdx <= open {
		return nil
	}
	return splitColumns(rest[open+1 : closeIdx])
}

func parseDelete(query string) (string, string, error) {
	table, col, ok := splitWhere(strings.TrimSpace(query), "delete from ")
	if !ok || col == "" {
		return "", "", fmt.Errorf("cannot parse delete: %s", query)
	}
	return table, col, nil
}

func parseSelect(query string) (string, []string, string, error) {
	lower := strings.ToLower(query)
	fromIdx := strings.Index(lower, " from ")
	if !strings.HasPrefix(lower, "select ") || fromIdx == -1 {
		return "", nil, "", fmt.Errorf("cannot parse select: %s", query)
	}
	cols := splitColumns(query[len("select "):fromIdx])
	table, where, ok := splitWhere(strings.TrimSpace(query[fromIdx:]), "from ")
	if !ok {
		return "", nil, "", fmt.Errorf("cannot parse select: %s", query)
	}
	return table, cols, where, nil
}

// splitWhere parses "<prefix> table [WHERE col = $1]".
func splitWhere(stmt, prefix string) (table, col string, ok bool) {
	if !strings.HasPrefix(strings.ToLower(stmt), prefix) {
		return "", "", false
	}
	rest := strings.TrimSpace(stmt[len(prefix):])
	whereIdx := strings.Index(strings.ToLower(rest), " where ")
	if whereIdx == -1 {
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return "", "", false
		}
		return strings.ToLower(fields[0]), "", true
	}
	table = strings.ToLower(strings.TrimSpace(rest[:whereIdx]))
	parts := strings.SplitN(rest[whereIdx+len(" where "):], "=", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return table, strings.ToLower(strings.TrimSpace(parts[0])), true
}

func splitColumns(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.ToLower(strings.TrimSpace(part)))
	}
	return out
}
