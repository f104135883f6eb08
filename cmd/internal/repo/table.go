package repo

import (
	"errors"
	"fmt"

	"context"

	"github.com/jackc/pgx/v5"
)

// Table is a generic CRUD template for one database table.
//
// A concrete repository declares a Table[T] with its SQL templates and
// argument binders; row mapping is pgx struct scanning over `db` tags,
// so T's exported fields must carry them.
type Table[T any] struct {
	// Name is the table name.
	Name string
	// IDColumn is the primary-key column (default "id").
	IDColumn string
	// SelectList is the column list used by the select templates.
	SelectList string
	// InsertSQL is the full INSERT template; it may end in RETURNING id
	// when the server generates the key.
	InsertSQL string
	// UpdateSQL is the full UPDATE template keyed by id.
	UpdateSQL string
	// InsertArgs binds a model to InsertSQL placeholders.
	InsertArgs func(*T) []any
	// UpdateArgs binds a model to UpdateSQL placeholders.
	UpdateArgs func(*T) []any
}

func (t Table[T]) idCol() string {
	if t.IDColumn == "" {
		return "id"
	}
	return t.IDColumn
}

// Save inserts the model. When InsertSQL carries RETURNING, the generated
// id is written into *id (pass nil when the model supplies its own key).
func (t Table[T]) Save(ctx context.Context, q Querier, m *T, id *string) error {
	if id != nil {
		return q.QueryRow(ctx, t.InsertSQL, t.InsertArgs(m)...).Scan(id)
	}
	_, err := q.Exec(ctx, t.InsertSQL, t.InsertArgs(m)...)
	return err
}

// Update applies UpdateSQL; zero affected rows is ErrNotFound.
func (t Table[T]) Update(ctx context.Context, q Querier, m *T) error {
	tag, err := q.Exec(ctx, t.UpdateSQL, t.UpdateArgs(m)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID loads one row by primary key.
func (t Table[T]) GetByID(ctx context.Context, q Querier, id string) (T, error) {
	var zero T
	rows, err := q.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, t.SelectList, t.Name, t.idCol()), id)
	if err != nil {
		return zero, err
	}
	m, err := pgx.CollectOneRow(rows, pgx.RowToStructByNameLax[T])
	if errors.Is(err, pgx.ErrNoRows) {
		return zero, ErrNotFound
	}
	return m, err
}

// GetAll loads rows matching an optional WHERE fragment, ordered by orderBy.
func (t Table[T]) GetAll(ctx context.Context, q Querier, where, orderBy string, args ...any) ([]T, error) {
	sql := fmt.Sprintf(`SELECT %s FROM %s`, t.SelectList, t.Name)
	if where != "" {
		sql += ` WHERE ` + where
	}
	if orderBy != "" {
		sql += ` ORDER BY ` + orderBy
	}
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByNameLax[T])
}

// GetAllPaginated loads one page. Page is 1-based; size is clamped to
// [1, 500].
func (t Table[T]) GetAllPaginated(ctx context.Context, q Querier, where, orderBy string, page, size int, args ...any) ([]T, error) {
	page, size = ClampPage(page, size)

	sql := fmt.Sprintf(`SELECT %s FROM %s`, t.SelectList, t.Name)
	if where != "" {
		sql += ` WHERE ` + where
	}
	if orderBy != "" {
		sql += ` ORDER BY ` + orderBy
	}
	sql += fmt.Sprintf(` LIMIT %d OFFSET %d`, size, (page-1)*size)

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByNameLax[T])
}

// Remove deletes by primary key; zero affected rows is ErrNotFound.
func (t Table[T]) Remove(ctx context.Context, q Querier, id string) error {
	tag, err := q.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, t.Name, t.idCol()), id)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return ErrConflict
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Exists reports whether a row with the given id exists.
func (t Table[T]) Exists(ctx context.Context, q Querier, id string) (bool, error) {
	var ok bool
	err := q.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)`, t.Name, t.idCol()), id).Scan(&ok)
	return ok, err
}

// ClampPage normalizes pagination inputs: page >= 1, size in [1, 500]
// with a default of 50.
func ClampPage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case size < 1:
		size = 50
	case size > 500:
		size = 500
	}
	return page, size
}
