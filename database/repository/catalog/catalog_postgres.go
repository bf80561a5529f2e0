package catalogRepo

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"disambiguator/models"

	"github.com/lib/pq"
)

//go:embed schema.sql
var postgresSchema string

// recentBookings is the popularity CTE shared by every catalog query.
// $1 statuses, $2 window start.
const recentBookings = `
WITH recent AS (
    SELECT service_id, COUNT(*) AS cnt
    FROM bookings
    WHERE status = ANY($1) AND created_at >= $2
    GROUP BY service_id
)`

const topByCategoryQuery = recentBookings + `
SELECT s.id, s.name, s.name_normalized, s.professional_id, s.category,
       s.price, s.duration_minutes, COALESCE(r.cnt, 0) AS popularity, 0::float8 AS score
FROM services s
LEFT JOIN recent r ON r.service_id = s.id
WHERE s.active
  AND (strpos(s.category_normalized, $3) > 0 OR strpos(s.name_normalized, $3) > 0)
ORDER BY popularity DESC, s.price ASC, s.name ASC
LIMIT $4`

const searchByTextQuery = recentBookings + `
SELECT id, name, name_normalized, professional_id, category,
       price, duration_minutes, popularity, score
FROM (
    SELECT s.id, s.name, s.name_normalized, s.professional_id, s.category,
           s.price, s.duration_minutes,
           COALESCE(r.cnt, 0) AS popularity,
           GREATEST(similarity(s.name_normalized, $3), similarity(s.category_normalized, $3))::float8 AS score,
           (strpos(s.name_normalized, $3) > 0 OR strpos(s.category_normalized, $3) > 0) AS contains_term
    FROM services s
    LEFT JOIN recent r ON r.service_id = s.id
    WHERE s.active
) c
WHERE c.score > $4 OR c.contains_term
ORDER BY c.score DESC, c.popularity DESC, c.price ASC, c.name ASC
LIMIT $5`

const statsQuery = recentBookings + `
SELECT COUNT(DISTINCT s.category_normalized),
       COALESCE(AVG(COALESCE(r.cnt, 0)), 0)::float8
FROM services s
LEFT JOIN recent r ON r.service_id = s.id
WHERE s.active`

// PostgresCatalogRepo implements CatalogRepository on PostgreSQL with the
// pg_trgm extension.
type PostgresCatalogRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresCatalogRepo(db *sql.DB) *PostgresCatalogRepo {
	return &PostgresCatalogRepo{db: db, now: time.Now}
}

// EnsureSchema installs pg_trgm and creates the catalog tables and trigram
// indexes when they are missing.
func (r *PostgresCatalogRepo) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := r.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to apply catalog schema: %w", err)
	}
	return nil
}

func (r *PostgresCatalogRepo) TopByCategory(ctx context.Context, category string, limit int, window time.Duration) ([]models.ServiceOption, error) {
	ctx, cancel := context.WithTimeout(ctx, queryCeiling)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, topByCategoryQuery,
		pq.Array(countedStatuses), r.now().Add(-window), category, limit)
	if err != nil {
		return nil, fmt.Errorf("category query for %q failed: %w", category, err)
	}
	return scanOptions(rows)
}

func (r *PostgresCatalogRepo) SearchByText(ctx context.Context, term string, limit int, threshold float64, window time.Duration) ([]models.ServiceOption, error) {
	ctx, cancel := context.WithTimeout(ctx, queryCeiling)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, searchByTextQuery,
		pq.Array(countedStatuses), r.now().Add(-window), term, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("search query for %q failed: %w", term, err)
	}
	return scanOptions(rows)
}

func (r *PostgresCatalogRepo) Stats(ctx context.Context, window time.Duration) (models.CatalogStats, error) {
	ctx, cancel := context.WithTimeout(ctx, queryCeiling)
	defer cancel()

	var stats models.CatalogStats
	err := r.db.QueryRowContext(ctx, statsQuery, pq.Array(countedStatuses), r.now().Add(-window)).
		Scan(&stats.DistinctCategories, &stats.AveragePopularity)
	if err != nil {
		return stats, fmt.Errorf("stats query failed: %w", err)
	}
	return stats, nil
}

func (r *PostgresCatalogRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func scanOptions(rows *sql.Rows) ([]models.ServiceOption, error) {
	defer rows.Close()
	var options []models.ServiceOption
	for rows.Next() {
		var o models.ServiceOption
		if err := rows.Scan(&o.ID, &o.Name, &o.NormalizedName, &o.ProfessionalID, &o.Category,
			&o.Price, &o.DurationMinutes, &o.Popularity, &o.Score); err != nil {
			return nil, fmt.Errorf("failed to scan service row: %w", err)
		}
		options = append(options, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read service rows: %w", err)
	}
	return options, nil
}
