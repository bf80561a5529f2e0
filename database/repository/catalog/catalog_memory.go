package catalogRepo

import (
	"context"
	"strings"
	"sync"
	"time"

	"disambiguator/models"
)

// MemoryCatalogRepo is an in-process CatalogRepository with fixed
// popularity counts. It backs tests and local runs without a database.
type MemoryCatalogRepo struct {
	mu       sync.RWMutex
	services []scoredService
	err      error
}

func NewMemoryCatalogRepo() *MemoryCatalogRepo {
	return &MemoryCatalogRepo{}
}

// Add stores svc with the given trailing-window booking count.
func (r *MemoryCatalogRepo) Add(svc models.CatalogService, popularity int) *MemoryCatalogRepo {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services = append(r.services, scoredService{CatalogService: svc, Popularity: popularity})
	return r
}

// FailWith makes every call return err until called again with nil.
func (r *MemoryCatalogRepo) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *MemoryCatalogRepo) active() ([]scoredService, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]scoredService, 0, len(r.services))
	for _, s := range r.services {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *MemoryCatalogRepo) TopByCategory(ctx context.Context, category string, limit int, _ time.Duration) ([]models.ServiceOption, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	services, err := r.active()
	if err != nil {
		return nil, err
	}
	var options []models.ServiceOption
	for _, s := range services {
		if strings.Contains(s.CategoryNormalized, category) || strings.Contains(s.NameNormalized, category) {
			options = append(options, s.option(0))
		}
	}
	SortByPopularity(options)
	if len(options) > limit {
		options = options[:limit]
	}
	return options, nil
}

func (r *MemoryCatalogRepo) SearchByText(ctx context.Context, term string, limit int, threshold float64, _ time.Duration) ([]models.ServiceOption, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	services, err := r.active()
	if err != nil {
		return nil, err
	}
	return rankByText(services, term, limit, threshold), nil
}

func (r *MemoryCatalogRepo) Stats(ctx context.Context, _ time.Duration) (models.CatalogStats, error) {
	var stats models.CatalogStats
	services, err := r.active()
	if err != nil {
		return stats, err
	}
	categories := make(map[string]struct{})
	total := 0
	for _, s := range services {
		categories[s.CategoryNormalized] = struct{}{}
		total += s.Popularity
	}
	stats.DistinctCategories = len(categories)
	if len(services) > 0 {
		stats.AveragePopularity = float64(total) / float64(len(services))
	}
	return stats, nil
}

func (r *MemoryCatalogRepo) Ping(context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}
