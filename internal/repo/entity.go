package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

var (
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")
)

const entityColumns = `id, title, description, status, priority, assignee_id,
	project_id, tags, due_date, completed_at, version, created_at, updated_at`

type EntityRepo struct { // Репозиторий для работы непосредственно с БД
	pool *pgxpool.Pool
}

func NewEntityRepo(pool *pgxpool.Pool) *EntityRepo {
	return &EntityRepo{
		pool: pool,
	}
}

func (r *EntityRepo) Create(ctx context.Context, e model.Entity) (model.Entity, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO entities (id, title, description, status, priority, assignee_id, project_id, tags, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+entityColumns,
		e.ID, e.Title, e.Description, e.Status, e.Priority, e.AssigneeID, e.ProjectID, e.Tags, e.DueDate,
	).Scan(scanTargets(&e)...)
	return e, r.mapError(err)
}

func (r *EntityRepo) Get(ctx context.Context, id string) (model.Entity, error) {
	var e model.Entity
	err := r.pool.QueryRow(ctx, `
		SELECT `+entityColumns+`
		FROM entities
		WHERE id = $1
	`, id).Scan(scanTargets(&e)...)

	if err == pgx.ErrNoRows {
		return e, ErrorNotFound
	}
	return e, err
}

func (r *EntityRepo) List(ctx context.Context, filter model.FilterState, limit int) ([]model.Entity, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM entities
		WHERE ($1::text[] IS NULL OR status = ANY($1))
		  AND ($2::text[] IS NULL OR assignee_id = ANY($2))
		  AND ($3::text[] IS NULL OR project_id = ANY($3))
		  AND ($4::text = '' OR title ILIKE '%' || $4 || '%')
		ORDER BY created_at DESC, id DESC
		LIMIT $5
	`

	rows, err := r.pool.Query(ctx, query,
		statusesOrNil(filter.Statuses), sliceOrNil(filter.Assignees), sliceOrNil(filter.Projects),
		filter.Search, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Entity, 0, limit)
	for rows.Next() {
		var e model.Entity
		if err := rows.Scan(scanTargets(&e)...); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

// Update пишет строку целиком и поднимает версию; слияние патча в сущность -
// забота сервисного слоя
func (r *EntityRepo) Update(ctx context.Context, e model.Entity) (model.Entity, error) {
	err := r.pool.QueryRow(ctx, `
		UPDATE entities
		SET title = $2, description = $3, status = $4, priority = $5, assignee_id = $6,
		    project_id = $7, tags = $8, due_date = $9, completed_at = $10,
		    version = version + 1, updated_at = now()
		WHERE id = $1
		RETURNING `+entityColumns,
		e.ID, e.Title, e.Description, e.Status, e.Priority, e.AssigneeID,
		e.ProjectID, e.Tags, e.DueDate, e.CompletedAt,
	).Scan(scanTargets(&e)...)

	if err == pgx.ErrNoRows {
		return e, ErrorNotFound
	}
	return e, r.mapError(err)
}

// UpdateMany применяет весь батч в одной транзакции: или все, или ничего
func (r *EntityRepo) UpdateMany(ctx context.Context, items []model.Entity) ([]model.Entity, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	out := make([]model.Entity, 0, len(items))
	for _, e := range items {
		err := tx.QueryRow(ctx, `
			UPDATE entities
			SET title = $2, description = $3, status = $4, priority = $5, assignee_id = $6,
			    project_id = $7, tags = $8, due_date = $9, completed_at = $10,
			    version = version + 1, updated_at = now()
			WHERE id = $1
			RETURNING `+entityColumns,
			e.ID, e.Title, e.Description, e.Status, e.Priority, e.AssigneeID,
			e.ProjectID, e.Tags, e.DueDate, e.CompletedAt,
		).Scan(scanTargets(&e)...)

		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("%w: entity %s", ErrorNotFound, e.ID)
		}
		if err != nil {
			return nil, r.mapError(err)
		}
		out = append(out, e)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *EntityRepo) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, "DELETE FROM entities WHERE id = $1", id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrorNotFound
	}
	return nil
}

func scanTargets(e *model.Entity) []any {
	return []any{
		&e.ID, &e.Title, &e.Description, &e.Status, &e.Priority, &e.AssigneeID,
		&e.ProjectID, &e.Tags, &e.DueDate, &e.CompletedAt, &e.Version, &e.CreatedAt, &e.UpdatedAt,
	}
}

func statusesOrNil(statuses []model.Status) []string {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func sliceOrNil(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	return values
}

func (r *EntityRepo) mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return ErrorConflict
		}
	}
	return err
}
