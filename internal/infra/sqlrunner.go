package infra

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLExecutor defines the contract repositories use for executing SQL queries.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

// Every inline query starts with a "--sql <uuid>" marker line so log lines can
// be traced back to the statement without printing it.
var markerRegexp = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

var errMissingMarker = errors.New("sql marker missing or invalid")

// SQLRunner executes marker-tagged queries against any SQLExecutor (usually a pgxpool.Pool).
type SQLRunner struct {
	db     SQLExecutor
	logger Logger
}

func NewSQLRunner(db SQLExecutor, logger Logger) *SQLRunner {
	return &SQLRunner{db: db, logger: logger}
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	start := time.Now()
	tag, err := r.db.Exec(ctx, trimmed, args...)
	if err != nil {
		r.logger.Error().Err(err).Str("sql", marker).Msg("sql: exec failed")
		return tag, err
	}
	r.logger.Debug().Str("sql", marker).Int64("rows", tag.RowsAffected()).Dur("elapsed", time.Since(start)).Msg("sql: exec")
	return tag, nil
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return errorRow{err: err}
	}
	r.logger.Debug().Str("sql", marker).Msg("sql: query_row")
	return loggingRow{row: r.db.QueryRow(ctx, trimmed, args...), logger: r.logger, marker: marker}
}

func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return nil, err
	}
	r.logger.Debug().Str("sql", marker).Msg("sql: query")
	rows, err := r.db.Query(ctx, trimmed, args...)
	if err != nil {
		r.logger.Error().Err(err).Str("sql", marker).Msg("sql: query failed")
		return nil, err
	}
	return rows, nil
}

// IsNoRows reports whether err signals an empty single-row result.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

type loggingRow struct {
	row    pgx.Row
	logger Logger
	marker string
}

func (l loggingRow) Scan(dest ...any) error {
	err := l.row.Scan(dest...)
	if err != nil && !IsNoRows(err) {
		l.logger.Error().Err(err).Str("sql", l.marker).Msg("sql: scan failed")
	}
	return err
}

type errorRow struct {
	err error
}

func (e errorRow) Scan(dest ...any) error {
	return e.err
}

func extractMarker(query string) (string, string, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "", "", errors.New("empty query")
	}
	markerLine, body, _ := strings.Cut(trimmed, "\n")
	markerLine = strings.TrimSpace(markerLine)
	if !markerRegexp.MatchString(markerLine) {
		return "", "", errMissingMarker
	}
	return strings.TrimPrefix(markerLine, "--sql "), body, nil
}

var _ SQLExecutor = (*SQLRunner)(nil)
