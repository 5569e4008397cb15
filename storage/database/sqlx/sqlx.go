// Package sqlxrepos implements the repositories on PostgreSQL with sqlx.
package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorhub/core"
)

const uniqueViolation = "23505"

type repository struct {
	db *sqlx.DB
}

// getExec picks the executor of an ongoing transaction (a *sqlx.Tx from database.Transactor) over the pool.
func (repo repository) getExec(svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 && svcExec[0] != nil {
		if ext, ok := svcExec[0].(sqlx.ExtContext); ok {
			return ext
		}
	}
	return repo.db
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// trapConflictErr maps unique constraint violations to core.ErrConflict
func trapConflictErr(err error, msg string) error {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return core.ErrConflict
	}
	return errors.Wrap(err, msg)
}

// query accumulates the WHERE clauses of a SELECT; clauses use "?" placeholders.
type query struct {
	base    string
	clauses []string
	args    []interface{}
	orderBy []string
	suffix  string
}

func newQuery(base string) *query {
	return &query{base: base}
}

func (q *query) where(clause string, args ...interface{}) *query {
	q.clauses = append(q.clauses, clause)
	q.args = append(q.args, args...)
	return q
}

// anyOf adds "column = ANY(vals)" when vals is not empty.
func (q *query) anyOf(column string, vals []string) *query {
	if len(vals) > 0 {
		q.where(column+" = ANY(?)", pq.Array(vals))
	}
	return q
}

// anyID adds "column = ANY(ids)" for uuid columns when ids is not nil; malformed IDs match nothing.
func (q *query) anyID(column string, ids []string) *query {
	if ids == nil {
		return q
	}
	valid := validIDs(ids)
	if len(valid) == 0 {
		return q.where("FALSE")
	}
	return q.where(column+" = ANY(?::uuid[])", pq.Array(valid))
}

func validIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if core.IsValidID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}

func (q *query) order(ordering []core.DBOrdering, fallback string) *query {
	for _, ord := range ordering {
		q.orderBy = append(q.orderBy, ord.String())
	}
	if fallback != "" {
		q.orderBy = append(q.orderBy, fallback)
	}
	return q
}

func (q *query) String() string {
	b := new(strings.Builder)
	b.WriteString(q.base)
	if len(q.clauses) > 0 {
		b.WriteString(" WHERE (")
		b.WriteString(strings.Join(q.clauses, ") AND ("))
		b.WriteString(")")
	}
	if len(q.orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(q.orderBy, ", "))
	}
	if q.suffix != "" {
		b.WriteString(" ")
		b.WriteString(q.suffix)
	}
	return sqlx.Rebind(sqlx.DOLLAR, b.String())
}

// countRow scans "<key>, COUNT(*)" aggregates.
type countRow struct {
	Key   string `db:"key"`
	Count int    `db:"count"`
}

func countsByKey(rows []countRow) map[string]int {
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Key] = r.Count
	}
	return counts
}
