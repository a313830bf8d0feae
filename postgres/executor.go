package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/deepnoodle-ai/sqlchat"
)

// Executor runs translator-generated SQL against PostgreSQL. Engine
// rejections (bad SQL, missing relations, permission errors) are reported
// as a structured failure in the QueryResult rather than a Go error, which
// is what the pipeline's fallback contract expects.
type Executor struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutor wraps an open database handle.
func NewExecutor(db *sql.DB, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Executor{db: db, logger: logger}
}

// ExecuteQuery runs the query. Row-returning statements produce a RowSet in
// engine column order; other statements report their affected row count as
// a one-row status result, so the renderer can still describe the outcome.
func (e *Executor) ExecuteQuery(ctx context.Context, query string) (*sqlchat.QueryResult, error) {
	if returnsRows(query) {
		return e.runQuery(ctx, query)
	}
	return e.runExec(ctx, query)
}

func (e *Executor) runQuery(ctx context.Context, query string) (*sqlchat.QueryResult, error) {
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		e.logger.Warn("query rejected", "error", err)
		return &sqlchat.QueryResult{ErrorMessage: err.Error()}, nil
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return &sqlchat.QueryResult{ErrorMessage: err.Error()}, nil
	}

	result := &sqlchat.RowSet{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return &sqlchat.QueryResult{ErrorMessage: err.Error()}, nil
		}
		row := make([]any, len(columns))
		for i, v := range values {
			row[i] = canonicalCell(v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return &sqlchat.QueryResult{ErrorMessage: err.Error()}, nil
	}
	return &sqlchat.QueryResult{Rows: result}, nil
}

func (e *Executor) runExec(ctx context.Context, query string) (*sqlchat.QueryResult, error) {
	res, err := e.db.ExecContext(ctx, query)
	if err != nil {
		e.logger.Warn("statement rejected", "error", err)
		return &sqlchat.QueryResult{ErrorMessage: err.Error()}, nil
	}
	affected, err := res.RowsAffected()
	if err != nil {
		affected = 0
	}
	return &sqlchat.QueryResult{
		Rows: &sqlchat.RowSet{
			Columns: []string{"status", "affected_rows"},
			Rows:    [][]any{{"OK", json.Number(strconv.FormatInt(affected, 10))}},
		},
	}, nil
}

// canonicalCell converts a driver value into one of the scalar kinds the
// row serializer and session store understand. Numeric text from the driver
// stays text-backed so fixed-point values keep their exact representation.
func canonicalCell(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case bool, string, time.Time:
		return v
	case int64:
		return json.Number(strconv.FormatInt(v, 10))
	case float64:
		return json.Number(strconv.FormatFloat(v, 'g', -1, 64))
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// returnsRows reports whether the statement produces a result set.
func returnsRows(query string) bool {
	fields := strings.Fields(strings.ToLower(query))
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "select", "with", "show", "values", "table", "explain":
		return true
	}
	return strings.Contains(strings.ToLower(query), "returning")
}
