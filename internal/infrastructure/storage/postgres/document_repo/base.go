// Package document_repo provides PostgreSQL implementations for document repositories.
package document_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"clinicrx/internal/core/apperror"
	"clinicrx/internal/core/id"
	"clinicrx/internal/domain"
	"clinicrx/internal/infrastructure/storage/postgres"
)

// orderAliases maps API sort fields to columns.
var orderAliases = map[string]string{
	"date": "doc_date",
}

// BaseDocumentRepo provides header CRUD shared by document tables.
// Lines live in child tables handled by the concrete repositories.
type BaseDocumentRepo[T any] struct {
	txm        *postgres.TxManager
	tableName  string
	entityName string
	selectCols []string
	// numberConstraint is the unique constraint on the number column.
	numberConstraint string
	newFn            func() T
}

// NewBaseDocumentRepo creates a new base document repository.
func NewBaseDocumentRepo[T any](
	txm *postgres.TxManager,
	tableName string,
	entityName string,
	selectCols []string,
	newFn func() T,
) *BaseDocumentRepo[T] {
	return &BaseDocumentRepo[T]{
		txm:              txm,
		tableName:        tableName,
		entityName:       entityName,
		selectCols:       selectCols,
		numberConstraint: tableName + "_number_key",
		newFn:            newFn,
	}
}

// Builder returns a new squirrel builder.
func (r *BaseDocumentRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Querier returns the transaction in ctx or the pool.
func (r *BaseDocumentRepo[T]) Querier(ctx context.Context) postgres.Querier {
	return r.txm.GetQuerier(ctx)
}

// insertQuery builds the header INSERT from the entity's db tags.
func (r *BaseDocumentRepo[T]) insertQuery(entity T) (squirrel.InsertBuilder, error) {
	data := postgres.StructToMap(entity)
	if len(data) == 0 {
		return squirrel.InsertBuilder{}, fmt.Errorf("no db tags found in entity")
	}

	filtered := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}

	return r.Builder().Insert(r.tableName).SetMap(filtered), nil
}

// Create inserts the document header.
func (r *BaseDocumentRepo[T]) Create(ctx context.Context, entity T, number string) error {
	q, err := r.insertQuery(entity)
	if err != nil {
		return err
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err, r.numberConstraint) {
			return apperror.NewDuplicate(r.entityName, "number", number)
		}
		return postgres.TranslateError("insert "+r.tableName, err)
	}
	return nil
}

// baseSelect creates a SELECT builder.
func (r *BaseDocumentRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(r.tableName)
}

// GetByID retrieves a document header by ID.
func (r *BaseDocumentRepo[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	entity := r.newFn()
	sql, args, err := r.baseSelect().
		Where(squirrel.Eq{"id": entityID}).
		ToSql()
	if err != nil {
		return entity, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.Querier(ctx), entity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity, apperror.NewNotFound(r.entityName, entityID.String())
		}
		return entity, postgres.TranslateError("get "+r.entityName, err)
	}

	return entity, nil
}

// listQuery applies the common search and returns the select plus its count query.
func (r *BaseDocumentRepo[T]) listQuery(q squirrel.SelectBuilder, filter domain.ListFilter, searchCols ...string) (squirrel.SelectBuilder, squirrel.SelectBuilder, error) {
	if s := strings.TrimSpace(filter.Search); s != "" {
		or := squirrel.Or{squirrel.ILike{"number": "%" + s + "%"}}
		for _, col := range searchCols {
			or = append(or, squirrel.ILike{col: "%" + s + "%"})
		}
		q = q.Where(or)
	}

	countQ := r.Builder().Select("COUNT(*)").FromSelect(q, "sub")

	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return q, countQ, err
	}
	q = q.OrderBy(orderBy...)

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q, countQ, nil
}

// List retrieves document headers matching q with search, sort and paging from filter.
func (r *BaseDocumentRepo[T]) List(ctx context.Context, q squirrel.SelectBuilder, filter domain.ListFilter, searchCols ...string) (domain.ListResult[T], error) {
	result := domain.ListResult[T]{
		Items:  make([]T, 0),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q, countQ, err := r.listQuery(q, filter, searchCols...)
	if err != nil {
		return result, err
	}

	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.Querier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, postgres.TranslateError("count "+r.tableName, err)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, postgres.TranslateError("list "+r.tableName, err)
	}

	return result, nil
}

// parseOrderBy turns "-date" style input into whitelisted ORDER BY terms.
// The number column breaks ties in the same direction.
func (r *BaseDocumentRepo[T]) parseOrderBy(orderBy string) ([]string, error) {
	allowed := make(map[string]struct{}, len(r.selectCols)+1)
	for _, col := range r.selectCols {
		allowed[col] = struct{}{}
	}
	for alias := range orderAliases {
		allowed[alias] = struct{}{}
	}

	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return []string{"doc_date DESC", "number DESC"}, nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else if strings.HasPrefix(orderBy, "+") {
		field = strings.TrimPrefix(orderBy, "+")
	}

	field = strings.TrimSpace(field)
	if field == "" {
		return nil, apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
	}

	if _, ok := allowed[field]; !ok {
		return nil, apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy).WithDetail("field", field)
	}
	if col, ok := orderAliases[field]; ok {
		field = col
	}

	terms := []string{field + " " + direction}
	if field != "number" {
		terms = append(terms, "number "+direction)
	}
	return terms, nil
}
