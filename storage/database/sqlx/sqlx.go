// Package sqlxrepos implements the repositories on PostgreSQL: queries are built with squirrel and scanned by sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/kampuslab/kampus/core"
)

// postgres error codes
const (
	foreignKeyViolation  = "23503"
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// psql builds statements with postgres placeholders ($1, $2, ...).
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// selectRows scans the rows of q into dest, a pointer to a slice of db-tagged structs.
func (repo repository) selectRows(ctx context.Context, exec []core.DBExecutor, dest interface{}, q sq.Sqlizer) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	rows, err := repo.getExec(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	return sqlx.StructScan(rows, dest)
}

// scanRow scans the single row returned by q into dest; sql.ErrNoRows is returned as is.
func (repo repository) scanRow(ctx context.Context, exec []core.DBExecutor, q sq.Sqlizer, dest ...interface{}) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return repo.getExec(exec).QueryRowContext(ctx, query, args...).Scan(dest...)
}

func (repo repository) execute(ctx context.Context, exec []core.DBExecutor, q sq.Sqlizer) (sql.Result, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	return repo.getExec(exec).ExecContext(ctx, query, args...)
}

// exists reports whether q returns at least one row.
func (repo repository) exists(ctx context.Context, exec []core.DBExecutor, q sq.SelectBuilder) (bool, error) {
	var one int
	err := repo.scanRow(ctx, exec, q.Columns("1").Limit(1), &one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// affected maps a delete or update that touched no row to notFound.
func affected(res sql.Result, notFound error) error {
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound
	}
	return nil
}

func pqErrorCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// uniqueConstraint returns the name of the unique constraint violated by err, if any.
func uniqueConstraint(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr.Constraint
	}
	return ""
}

// orderBy returns the ORDER BY terms of the allowed orderings, def last as a tie-breaker.
func orderBy(ordering []core.DBOrdering, allowed map[string]string, def string) []string {
	ordering = core.FilterOrderings(ordering, allowed)
	terms := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		terms = append(terms, ord.String())
	}
	return append(terms, def)
}
