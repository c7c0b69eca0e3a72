package dbutils

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	zlog "github.com/rs/zerolog/log"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Runs the statements in order, ignoring failures (used for drops)
func ExecAll(ctx context.Context, db execer, stmts []string) {
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			zlog.Debug().Err(err).Str("stmt", stmt).Msg("ignored")
		}
	}
}

// Log query plans (for debug)
func EnableAutoExplain(ctx context.Context, db *sql.DB) error {
	for _, stmt := range []string{
		"LOAD 'auto_explain'",
		"SET auto_explain.log_min_duration = 10",
		"SET auto_explain.log_analyze = true",
		"SET auto_explain.log_nested_statements = true",
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Returns the size, in bytes, of the existing relations in the list
func DbSize(ctx context.Context, db *sql.DB, vacuumFull bool, relations []string) (int64, error) {
	vacuum := "vacuum analyze"
	if vacuumFull {
		vacuum = "vacuum full analyze"
	}
	if _, err := db.ExecContext(ctx, vacuum); err != nil {
		zlog.Warn().Err(err).Msg("vacuum failed")
	}

	var s int64
	err := db.QueryRowContext(ctx, `
	select coalesce(sum(pg_total_relation_size(c.oid)), 0)
	from pg_class c
	join pg_namespace n on n.oid = c.relnamespace
	where c.relkind = 'r' and n.nspname = current_schema() and c.relname = any($1)
	`, pq.Array(relations)).Scan(&s)
	return s, err
}
