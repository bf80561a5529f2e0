package catalogRepo

import (
	"context"
	"time"

	"disambiguator/models"
)

// queryCeiling bounds every catalog round trip even when the caller's
// context carries no deadline.
const queryCeiling = 5 * time.Second

// searchBatchSize is how many services the document store streams per
// round trip while scoring a similarity search.
const searchBatchSize = 500

// countedStatuses are the booking statuses that count as popularity.
var countedStatuses = []string{models.BookingStatusConfirmed, models.BookingStatusCompleted}

// CatalogRepository is the read path of the service catalog.
type CatalogRepository interface {
	// TopByCategory returns up to limit active services whose normalized
	// category or name contains category, ordered by bookings since the
	// window start (desc), price (asc), name (asc).
	TopByCategory(ctx context.Context, category string, limit int, window time.Duration) ([]models.ServiceOption, error)
	// SearchByText returns up to limit active services whose normalized
	// name or category is similar to term above threshold or contains it,
	// ordered by similarity (desc), bookings (desc), price (asc).
	SearchByText(ctx context.Context, term string, limit int, threshold float64, window time.Duration) ([]models.ServiceOption, error)
	// Stats returns aggregate figures for the admin endpoint.
	Stats(ctx context.Context, window time.Duration) (models.CatalogStats, error)
	Ping(ctx context.Context) error
}
