package clients

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
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Repository defines persistence operations for clients.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	List(ctx context.Context, q ListQuery) ([]Client, int, error)
	Get(ctx context.Context, id int64) (*Client, error)
	Create(ctx context.Context, c NewClient, actorID int64) (int64, error)
	Update(ctx context.Context, id int64, changes Changes, actorID int64) error
	Delete(ctx context.Context, id int64) error
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
	CountClientsByManager(ctx context.Context, managerID int64) (int, error)
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

// SelectColumns is the column list ScanClient expects. Other packages embed
// clients in their own queries through it.
const SelectColumns = `c.id, c.name, c.email, c.company, c.address, c.notes,
	       m.id, m.username, m.first_name, m.last_name, m.email, m.role,
	       c.created_by, c.updated_by, c.created_at, c.updated_at`

// JoinManager joins the owning account of the clients table aliased c.
const JoinManager = `JOIN users m ON m.id = c.manager_id`

const selectClient = `SELECT ` + SelectColumns + ` FROM clients c ` + JoinManager

// ScanClient reads the SelectColumns of one row, followed by any extra
// destinations the caller selected after them.
func ScanClient(row pgx.Row, extra ...any) (*Client, error) {
	var (
		c                    Client
		role                 string
		company, address     pgtype.Text
		notes                pgtype.Text
		createdBy, updatedBy pgtype.Int8
	)
	dest := []any{&c.ID, &c.Name, &c.Email, &company, &address, &notes,
		&c.Manager.ID, &c.Manager.Username, &c.Manager.FirstName, &c.Manager.LastName, &c.Manager.Email, &role,
		&createdBy, &updatedBy, &c.CreatedAt, &c.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	c.Manager.Role = shared.Role(role)
	c.Company = textPtr(company)
	c.Address = textPtr(address)
	c.Notes = textPtr(notes)
	c.CreatedBy = int8Ptr(createdBy)
	c.UpdatedBy = int8Ptr(updatedBy)
	return &c, nil
}

func (r *repository) List(ctx context.Context, q ListQuery) ([]Client, int, error) {
	where := []string{"1=1"}
	var args []any
	argPos := 1
	if term := strings.TrimSpace(q.Search); term != "" {
		where = append(where, fmt.Sprintf("(c.name ILIKE $%d OR c.email ILIKE $%d OR c.company ILIKE $%d)", argPos, argPos, argPos))
		args = append(args, "%"+term+"%")
		argPos++
	}
	if q.ManagerID > 0 {
		where = append(where, fmt.Sprintf("c.manager_id = $%d", argPos))
		args = append(args, q.ManagerID)
		argPos++
	}
	filter := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM clients c"+filter, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count clients: %w", err)
	}

	query := selectClient + filter + " ORDER BY c.id"
	if q.Page.Size > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
		args = append(args, q.Page.Size, q.Page.Offset())
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		c, err := ScanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Client, error) {
	return ScanClient(r.db.QueryRow(ctx, selectClient+` WHERE c.id = $1`, id))
}

func (r *repository) Create(ctx context.Context, c NewClient, actorID int64) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO clients (name, email, company, address, notes, manager_id, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7, NOW(), NOW())
		RETURNING id`,
		c.Name, c.Email, c.Company, c.Address, c.Notes, c.ManagerID, nullableID(actorID),
	).Scan(&id)
	if err != nil {
		return 0, mapWriteError(err)
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, id int64, changes Changes, actorID int64) error {
	query := "UPDATE clients SET updated_at = NOW()"
	var args []any
	argPos := 1
	set := func(column string, value any) {
		query += fmt.Sprintf(", %s = $%d", column, argPos)
		args = append(args, value)
		argPos++
	}
	set("updated_by", nullableID(actorID))
	if changes.Name != nil {
		set("name", *changes.Name)
	}
	if changes.Email != nil {
		set("email", *changes.Email)
	}
	if changes.Company != nil {
		set("company", *changes.Company)
	}
	if changes.Address != nil {
		set("address", *changes.Address)
	}
	if changes.Notes != nil {
		set("notes", *changes.Notes)
	}
	if changes.ManagerID != nil {
		set("manager_id", *changes.ManagerID)
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
	tag, err := r.db.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM clients WHERE lower(email) = lower($1) AND id <> $2)`, email, excludeID).Scan(&exists)
	return exists, err
}

func (r *repository) CountClientsByManager(ctx context.Context, managerID int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM clients WHERE manager_id = $1`, managerID).Scan(&n)
	return n, err
}

func mapWriteError(err error) error {
	switch {
	case db.IsUniqueViolation(err, "clients_email_key"):
		return httpx.Invalid("email", "A client with this email is already registered.")
	case db.IsForeignKeyViolation(err, "clients_manager_id_fkey"):
		return httpx.Invalid("manager_id", "Unknown manager.")
	}
	return err
}

func nullableID(id int64) pgtype.Int8 {
	return pgtype.Int8{Int64: id, Valid: id > 0}
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func int8Ptr(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}
