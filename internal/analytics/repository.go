package analytics

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/db"
)

// MonthlyIncome is the summed deal amount of one creation month.
type MonthlyIncome struct {
	Month  string `json:"month"`
	Amount int64  `json:"amount"`
}

// Repository reads the aggregates analytics reports on.
type Repository interface {
	MonthlyIncome(ctx context.Context) ([]MonthlyIncome, error)
	DealsByStatus(ctx context.Context) (map[string]int64, error)
}

type repository struct {
	db db.DBTX
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

// Months are bucketed in UTC.
const monthlyIncomeSQL = `
SELECT to_char(date_trunc('month', created_at AT TIME ZONE 'UTC'), 'YYYY-MM') AS month,
       SUM(amount)::bigint
FROM deals
GROUP BY 1
ORDER BY 1`

func (r *repository) MonthlyIncome(ctx context.Context) ([]MonthlyIncome, error) {
	rows, err := r.db.Query(ctx, monthlyIncomeSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MonthlyIncome
	for rows.Next() {
		var m MonthlyIncome
		if err := rows.Scan(&m.Month, &m.Amount); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *repository) DealsByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM deals GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		out[status] = count
	}
	return out, rows.Err()
}
