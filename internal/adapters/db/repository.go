// internal/adapters/db/repository.go
package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ammerola/erp-admin/internal/core/domain"
)

// querier is satisfied by *Database and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// sortColumns maps public sort keys to SQL expressions. Keys outside the map
// fall back to the default column so user input never reaches ORDER BY.
type sortColumns struct {
	columns  map[string]string
	fallback string
}

func (s sortColumns) orderBy(params domain.ListParams) []string {
	col, ok := s.columns[params.SortBy]
	if !ok {
		col = s.fallback
	}
	dir := "DESC"
	if params.SortOrder == domain.SortAsc {
		dir = "ASC"
	}
	// Stable tie-break keeps pages from overlapping.
	tie := s.columns["id"]
	if tie == "" {
		tie = "id"
	}
	return []string{fmt.Sprintf("%s %s NULLS LAST", col, dir), tie + " " + dir}
}

func containsPattern(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(search)) + "%"
}

func paginate(qb squirrel.SelectBuilder, params domain.ListParams) squirrel.SelectBuilder {
	if params.Limit > 0 {
		qb = qb.Limit(uint64(params.Limit))
	}
	if off := params.Offset(); off > 0 {
		qb = qb.Offset(uint64(off))
	}
	return qb
}

func countRows(ctx context.Context, q querier, qb squirrel.SelectBuilder) (int64, error) {
	sqlStr, args, err := qb.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var total int64
	if err := q.QueryRow(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// collect drains rows with scan, closing rows on return.
func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]*T, error) {
	defer rows.Close()

	results := make([]*T, 0)
	for rows.Next() {
		entity, err := scan(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func expectOne(tag pgconn.CommandTag, op string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}
