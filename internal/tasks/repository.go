package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/db"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
)

// Repository defines persistence operations for tasks.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	List(ctx context.Context, q ListQuery) ([]Task, int, error)
	Get(ctx context.Context, id int64) (*Task, error)
	Create(ctx context.Context, t NewTask, actorID int64) (int64, error)
	Update(ctx context.Context, id int64, changes Changes, actorID int64) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db   db.DBTX
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const selectTask = `
	SELECT id, name, description, status, due_date, priority, manager_id, client_id, deal_id,
	       notes, created_by, updated_by, created_at, updated_at
	FROM tasks`

func scanTask(row pgx.Row) (*Task, error) {
	var (
		t                    Task
		status, priority     string
		clientID, dealID     pgtype.Int8
		notes                pgtype.Text
		createdBy, updatedBy pgtype.Int8
	)
	err := row.Scan(&t.ID, &t.Name, &t.Description, &status, &t.DueDate, &priority, &t.ManagerID,
		&clientID, &dealID, &notes, &createdBy, &updatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	t.Status = Status(status)
	t.Priority = Priority(priority)
	t.ClientID = optionalID(clientID)
	t.DealID = optionalID(dealID)
	t.CreatedBy = optionalID(createdBy)
	t.UpdatedBy = optionalID(updatedBy)
	if notes.Valid {
		t.Notes = &notes.String
	}
	return &t, nil
}

func (r *repository) List(ctx context.Context, q ListQuery) ([]Task, int, error) {
	where := []string{"1=1"}
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if q.Status != "" {
		add("status = $%d", string(q.Status))
	}
	if q.Priority != "" {
		add("priority = $%d", string(q.Priority))
	}
	if q.ClientID > 0 {
		add("client_id = $%d", q.ClientID)
	}
	if q.DealID > 0 {
		add("deal_id = $%d", q.DealID)
	}
	filter := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM tasks"+filter, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	query := selectTask + filter + " ORDER BY due_date, id"
	if q.Page.Size > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, q.Page.Size, q.Page.Offset())
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Task, error) {
	return scanTask(r.db.QueryRow(ctx, selectTask+` WHERE id = $1`, id))
}

func (r *repository) Create(ctx context.Context, t NewTask, actorID int64) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO tasks (name, description, status, due_date, priority, manager_id, client_id, deal_id, notes,
		                   created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10, NOW(), NOW())
		RETURNING id`,
		t.Name, t.Description, string(t.Status), t.DueDate, string(t.Priority), t.ManagerID,
		t.ClientID, t.DealID, t.Notes, actorID,
	).Scan(&id)
	if err != nil {
		return 0, mapWriteError(err)
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, id int64, ch Changes, actorID int64) error {
	sets := []string{"updated_at = NOW()"}
	var args []any
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	set("updated_by", actorID)
	if ch.Name != nil {
		set("name", *ch.Name)
	}
	if ch.Description != nil {
		set("description", *ch.Description)
	}
	if ch.Status != nil {
		set("status", string(*ch.Status))
	}
	if ch.DueDate != nil {
		set("due_date", *ch.DueDate)
	}
	if ch.Priority != nil {
		set("priority", string(*ch.Priority))
	}
	if ch.Notes != nil {
		set("notes", *ch.Notes)
	}
	if ch.Client != nil {
		set("client_id", linkValue(ch.Client))
	}
	if ch.Deal != nil {
		set("deal_id", linkValue(ch.Deal))
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func mapWriteError(err error) error {
	switch {
	case db.IsForeignKeyViolation(err, "tasks_client_id_fkey"):
		return httpx.Invalid("client", "Invalid pk - object does not exist.")
	case db.IsForeignKeyViolation(err, "tasks_deal_id_fkey"):
		return httpx.Invalid("deal", "Invalid pk - object does not exist.")
	}
	return err
}

func linkValue(l *Link) pgtype.Int8 {
	return pgtype.Int8{Int64: l.ID, Valid: l.ID > 0}
}

func optionalID(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}
