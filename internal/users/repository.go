package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/db"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Repository defines persistence operations for accounts.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
	UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error)
	PhoneTaken(ctx context.Context, phone string, excludeID int64) (bool, error)
	Create(ctx context.Context, user User) (int64, error)
	Search(ctx context.Context, q SearchQuery) ([]User, error)
	Update(ctx context.Context, id int64, changes Changes) error
	SetActive(ctx context.Context, id int64, active bool) error
	SetPassword(ctx context.Context, id int64, hash string) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
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

const selectUser = `
	SELECT u.id, u.username, u.first_name, u.last_name, u.email, u.role, u.password_hash,
	       u.is_active, u.is_staff, u.is_superuser, u.last_login, u.date_joined,
	       p.phone_number, p.photo, COALESCE(p.updated_at, u.date_joined)
	FROM users u
	LEFT JOIN user_profiles p ON p.user_id = u.id`

func scanUser(row pgx.Row) (*User, error) {
	var (
		u         User
		role      string
		lastLogin pgtype.Timestamptz
		phone     pgtype.Text
		photo     pgtype.Text
	)
	err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Email, &role, &u.PasswordHash,
		&u.IsActive, &u.IsStaff, &u.IsSuperuser, &lastLogin, &u.DateJoined,
		&phone, &photo, &u.Profile.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	u.Role = roleOf(role)
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	if phone.Valid {
		u.Profile.PhoneNumber = &phone.String
	}
	if photo.Valid {
		u.Profile.Photo = &photo.String
	}
	return &u, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(r.db.QueryRow(ctx, selectUser+` WHERE u.id = $1`, id))
}

func (r *repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(r.db.QueryRow(ctx, selectUser+` WHERE u.username = $1`, username))
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.db.QueryRow(ctx, selectUser+` WHERE lower(u.email) = lower($1)`, email))
}

func (r *repository) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($1) AND id <> $2)`, email, excludeID).Scan(&exists)
	return exists, err
}

func (r *repository) UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 AND id <> $2)`, username, excludeID).Scan(&exists)
	return exists, err
}

func (r *repository) PhoneTaken(ctx context.Context, phone string, excludeID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM user_profiles WHERE phone_number = $1 AND user_id <> $2)`, phone, excludeID).Scan(&exists)
	return exists, err
}

func (r *repository) Create(ctx context.Context, user User) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (username, first_name, last_name, email, role, password_hash, is_active, is_staff, is_superuser, date_joined)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING id`,
		user.Username, user.FirstName, user.LastName, user.Email, string(user.Role), user.PasswordHash,
		user.IsActive, user.IsStaff, user.IsSuperuser,
	).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return 0, fmt.Errorf("%w: user already exists", httpx.ErrDuplicate)
		}
		return 0, err
	}
	if _, err := r.db.Exec(ctx, `INSERT INTO user_profiles (user_id, updated_at) VALUES ($1, NOW())`, id); err != nil {
		return 0, err
	}
	return id, nil
}

var orderColumns = map[string]string{
	"username": "u.username",
	"id":       "u.id",
}

func orderClause(fields []string) string {
	var parts []string
	for _, f := range fields {
		desc := strings.HasPrefix(f, "-")
		col, ok := orderColumns[strings.TrimPrefix(f, "-")]
		if !ok {
			continue
		}
		if desc {
			col += " DESC"
		}
		parts = append(parts, col)
	}
	if len(parts) == 0 {
		return "u.username, u.id DESC"
	}
	return strings.Join(parts, ", ")
}

func (r *repository) Search(ctx context.Context, q SearchQuery) ([]User, error) {
	query := selectUser
	var args []any
	if term := strings.TrimSpace(q.Term); term != "" {
		query += ` WHERE (CAST(u.id AS TEXT) ILIKE $1 OR u.username ILIKE $1 OR u.first_name ILIKE $1 OR u.last_name ILIKE $1 OR u.email ILIKE $1)`
		args = append(args, "%"+term+"%")
	}
	query += " ORDER BY " + orderClause(q.Ordering)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *repository) Update(ctx context.Context, id int64, changes Changes) error {
	set := []string{}
	args := []any{}
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if changes.Username != nil {
		add("username", *changes.Username)
	}
	if changes.FirstName != nil {
		add("first_name", *changes.FirstName)
	}
	if changes.LastName != nil {
		add("last_name", *changes.LastName)
	}
	if changes.Email != nil {
		add("email", *changes.Email)
	}
	if len(set) > 0 {
		args = append(args, id)
		query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))
		if _, err := r.db.Exec(ctx, query, args...); err != nil {
			if db.IsUniqueViolation(err, "") {
				return fmt.Errorf("%w: username or email already in use", httpx.ErrDuplicate)
			}
			return err
		}
	}
	if changes.PhoneNumber != nil {
		phone := pgtype.Text{String: *changes.PhoneNumber, Valid: *changes.PhoneNumber != ""}
		_, err := r.db.Exec(ctx, `
			INSERT INTO user_profiles (user_id, phone_number, updated_at) VALUES ($1, $2, NOW())
			ON CONFLICT (user_id) DO UPDATE SET phone_number = EXCLUDED.phone_number, updated_at = NOW()`, id, phone)
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return fmt.Errorf("%w: phone number already in use", httpx.ErrDuplicate)
			}
			return err
		}
	}
	return nil
}

func (r *repository) exec1(ctx context.Context, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	return r.exec1(ctx, `UPDATE users SET is_active = $2 WHERE id = $1`, id, active)
}

func (r *repository) SetPassword(ctx context.Context, id int64, hash string) error {
	return r.exec1(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
}

func (r *repository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	return r.exec1(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at.UTC())
}

func roleOf(raw string) shared.Role {
	role := shared.Role(raw)
	if !role.Valid() {
		return shared.RoleCustomer
	}
	return role
}
