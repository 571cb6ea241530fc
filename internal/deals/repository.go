package deals

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-crm/internal/clients"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/db"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
)

// Repository defines persistence operations for deals.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	List(ctx context.Context, q ListQuery) ([]Deal, int, error)
	Get(ctx context.Context, id int64) (*Deal, error)
	Create(ctx context.Context, d NewDeal, actorID int64) (int64, error)
	Update(ctx context.Context, id int64, changes Changes, actorID int64) error
	Delete(ctx context.Context, id int64) error
	CountInProgressDeals(ctx context.Context, clientID int64) (int, error)
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

const selectDeal = `
	SELECT ` + clients.SelectColumns + `,
	       d.id, d.name, d.status, d.amount, d.notes, d.manager_id,
	       d.created_by, d.updated_by, d.created_at, d.updated_at
	FROM deals d
	JOIN clients c ON c.id = d.client_id
	` + clients.JoinManager

func scanDeal(row pgx.Row) (*Deal, error) {
	var (
		d                    Deal
		status               string
		amount               int32
		notes                pgtype.Text
		createdBy, updatedBy pgtype.Int8
	)
	c, err := clients.ScanClient(row, &d.ID, &d.Name, &status, &amount, &notes, &d.ManagerID,
		&createdBy, &updatedBy, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.Client = *c
	d.Status = Status(status)
	d.Amount = int(amount)
	if notes.Valid {
		d.Notes = &notes.String
	}
	if createdBy.Valid {
		d.CreatedBy = &createdBy.Int64
	}
	if updatedBy.Valid {
		d.UpdatedBy = &updatedBy.Int64
	}
	return &d, nil
}

func (r *repository) List(ctx context.Context, q ListQuery) ([]Deal, int, error) {
	where := []string{"1=1"}
	var args []any
	argPos := 1
	if q.Status != "" {
		where = append(where, fmt.Sprintf("d.status = $%d", argPos))
		args = append(args, string(q.Status))
		argPos++
	}
	if q.ClientID > 0 {
		where = append(where, fmt.Sprintf("d.client_id = $%d", argPos))
		args = append(args, q.ClientID)
		argPos++
	}
	filter := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM deals d"+filter, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count deals: %w", err)
	}

	query := selectDeal + filter + " ORDER BY d.id"
	if q.Page.Size > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
		args = append(args, q.Page.Size, q.Page.Offset())
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *d)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Deal, error) {
	return scanDeal(r.db.QueryRow(ctx, selectDeal+` WHERE d.id = $1`, id))
}

func (r *repository) Create(ctx context.Context, d NewDeal, actorID int64) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO deals (name, status, amount, notes, manager_id, client_id, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7, NOW(), NOW())
		RETURNING id`,
		d.Name, string(d.Status), d.Amount, d.Notes, d.ManagerID, d.ClientID, actorID,
	).Scan(&id)
	if err != nil {
		return 0, mapWriteError(err)
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, id int64, changes Changes, actorID int64) error {
	query := "UPDATE deals SET updated_at = NOW()"
	var args []any
	argPos := 1
	set := func(column string, value any) {
		query += fmt.Sprintf(", %s = $%d", column, argPos)
		args = append(args, value)
		argPos++
	}
	set("updated_by", actorID)
	if changes.Name != nil {
		set("name", *changes.Name)
	}
	if changes.Status != nil {
		set("status", string(*changes.Status))
	}
	if changes.Amount != nil {
		set("amount", *changes.Amount)
	}
	if changes.Notes != nil {
		set("notes", *changes.Notes)
	}
	if changes.ClientID != nil {
		set("client_id", *changes.ClientID)
	}
	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)

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
	tag, err := r.db.Exec(ctx, `DELETE FROM deals WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) CountInProgressDeals(ctx context.Context, clientID int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM deals WHERE client_id = $1 AND status = $2`, clientID, string(StatusInProgress)).Scan(&n)
	return n, err
}

func mapWriteError(err error) error {
	if db.IsForeignKeyViolation(err, "deals_client_id_fkey") {
		return httpx.Invalid("client_id", "Invalid pk - object does not exist.")
	}
	return err
}
