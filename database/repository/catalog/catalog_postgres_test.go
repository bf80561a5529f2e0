package catalogRepo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var optionColumns = []string{
	"id", "name", "name_normalized", "professional_id", "category",
	"price", "duration_minutes", "popularity", "score",
}

func newPostgresRepo(t *testing.T) (*PostgresCatalogRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return &PostgresCatalogRepo{db: db, now: func() time.Time { return fixedNow }}, mock
}

func TestPostgresTopByCategory(t *testing.T) {
	repo, mock := newPostgresRepo(t)
	window := 30 * 24 * time.Hour

	mock.ExpectQuery(topByCategoryQuery).
		WithArgs(pq.Array(countedStatuses), fixedNow.Add(-window), "cabelo", 3).
		WillReturnRows(sqlmock.NewRows(optionColumns).
			AddRow("s1", "Corte Feminino", "corte feminino", "pro-1", "Cabelo", 80.0, int64(60), int64(12), 0.0).
			AddRow("s2", "Escova", "escova", "pro-2", "Cabelo", 50.0, int64(40), int64(7), 0.0))

	got, err := repo.TopByCategory(context.Background(), "cabelo", 3, window)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s1", got[0].ID)
	assert.Equal(t, "Corte Feminino", got[0].Name)
	assert.Equal(t, "corte feminino", got[0].NormalizedName)
	assert.Equal(t, "pro-1", got[0].ProfessionalID)
	assert.Equal(t, "Cabelo", got[0].Category)
	assert.Equal(t, 80.0, got[0].Price)
	assert.Equal(t, 60, got[0].DurationMinutes)
	assert.Equal(t, 12, got[0].Popularity)
	assert.Equal(t, "escova", got[1].NormalizedName)
}

func TestPostgresSearchByText(t *testing.T) {
	repo, mock := newPostgresRepo(t)
	window := 7 * 24 * time.Hour

	mock.ExpectQuery(searchByTextQuery).
		WithArgs(pq.Array(countedStatuses), fixedNow.Add(-window), "corte masculino", 0.3, 5).
		WillReturnRows(sqlmock.NewRows(optionColumns).
			AddRow("s9", "Corte Masculino", "corte masculino", "pro-9", "Cabelo", 45.0, int64(30), int64(2), 1.0))

	got, err := repo.SearchByText(context.Background(), "corte masculino", 5, 0.3, window)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s9", got[0].ID)
	assert.Equal(t, 1.0, got[0].Score)
	assert.Equal(t, 2, got[0].Popularity)
	assert.Equal(t, 30, got[0].DurationMinutes)
}

func TestPostgresQueryErrors(t *testing.T) {
	t.Run("query failure", func(t *testing.T) {
		repo, mock := newPostgresRepo(t)
		mock.ExpectQuery(searchByTextQuery).WillReturnError(errors.New("pg_trgm missing"))

		_, err := repo.SearchByText(context.Background(), "escova", 3, 0.3, time.Hour)
		assert.ErrorContains(t, err, `search query for "escova" failed`)
	})

	t.Run("scan failure", func(t *testing.T) {
		repo, mock := newPostgresRepo(t)
		mock.ExpectQuery(topByCategoryQuery).
			WillReturnRows(sqlmock.NewRows(optionColumns).
				AddRow("s1", "Escova", "escova", "pro-1", "Cabelo", "cinquenta", int64(40), int64(1), 0.0))

		_, err := repo.TopByCategory(context.Background(), "cabelo", 3, time.Hour)
		assert.ErrorContains(t, err, "failed to scan service row")
	})

	t.Run("row error", func(t *testing.T) {
		repo, mock := newPostgresRepo(t)
		mock.ExpectQuery(topByCategoryQuery).
			WillReturnRows(sqlmock.NewRows(optionColumns).
				AddRow("s1", "Escova", "escova", "pro-1", "Cabelo", 50.0, int64(40), int64(1), 0.0).
				RowError(0, errors.New("connection reset")))

		_, err := repo.TopByCategory(context.Background(), "cabelo", 3, time.Hour)
		assert.ErrorContains(t, err, "failed to read service rows")
	})
}

func TestPostgresStats(t *testing.T) {
	repo, mock := newPostgresRepo(t)
	window := 30 * 24 * time.Hour

	mock.ExpectQuery(statsQuery).
		WithArgs(pq.Array(countedStatuses), fixedNow.Add(-window)).
		WillReturnRows(sqlmock.NewRows([]string{"count", "avg"}).AddRow(int64(4), 3.25))

	stats, err := repo.Stats(context.Background(), window)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.DistinctCategories)
	assert.Equal(t, 3.25, stats.AveragePopularity)
}

func TestPostgresEnsureSchema(t *testing.T) {
	repo, mock := newPostgresRepo(t)
	mock.ExpectExec(postgresSchema).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, repo.EnsureSchema(context.Background()))

	mock.ExpectExec(postgresSchema).WillReturnError(errors.New("permission denied"))
	assert.ErrorContains(t, repo.EnsureSchema(context.Background()), "failed to apply catalog schema")
}
