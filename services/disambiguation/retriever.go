package disambiguation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"disambiguator/database/kvstore"
	catalogRepo "disambiguator/database/repository/catalog"
	"disambiguator/models"
)

// CandidateKeyPrefix namespaces candidate lists in the shared KV store.
const CandidateKeyPrefix = "disamb:cand:"

// Retrieval operations, also used in cache keys and failure reports.
const (
	OpTopByCategory = "category"
	OpSearchByText  = "search"
)

// RetrievalParams are the per-call knobs taken from one rules snapshot.
type RetrievalParams struct {
	Limit     int
	Threshold float64
	Window    time.Duration
	TTL       time.Duration
	// Normalizer re-normalizes stored categories for the leakage check.
	Normalizer *Normalizer
}

// ParamsFromRules derives retrieval parameters from the active rules.
func ParamsFromRules(r *Rules) RetrievalParams {
	return RetrievalParams{
		Limit:      r.Limits.MaxOptions,
		Threshold:  r.Limits.SimilarityThreshold,
		Window:     time.Duration(r.Limits.PopularityWindowDays) * 24 * time.Hour,
		TTL:        r.Cache.CandidateTTL,
		Normalizer: r.Normalizer,
	}
}

// CandidateKey is the cache key for one (operation, term, limit) triple.
func CandidateKey(op, term string, limit int) string {
	return fmt.Sprintf("%s%s:%d:%s", CandidateKeyPrefix, op, limit, term)
}

// Retriever is the read-through cache in front of the catalog store.
type Retriever struct {
	store    catalogRepo.CatalogRepository
	cache    kvstore.KVStore
	logger   *zap.Logger
	readOnly bool
}

// NewRetriever builds a retriever. A nil cache disables caching.
func NewRetriever(store catalogRepo.CatalogRepository, cache kvstore.KVStore, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{store: store, cache: cache, logger: logger}
}

// ReadOnly returns a retriever that reads the cache but never writes it.
func (r *Retriever) ReadOnly() *Retriever {
	cp := *r
	cp.readOnly = true
	return &cp
}

// TopByCategory returns the most booked active services for category.
func (r *Retriever) TopByCategory(ctx context.Context, category string, p RetrievalParams) ([]models.ServiceOption, error) {
	return r.readThrough(ctx, OpTopByCategory, category, p, func(ctx context.Context) ([]models.ServiceOption, error) {
		opts, err := r.store.TopByCategory(ctx, category, p.Limit, p.Window)
		if err != nil {
			return nil, err
		}
		opts = r.sameCategory(category, opts, p.Normalizer)
		catalogRepo.SortByPopularity(opts)
		return opts, nil
	})
}

// SearchByText returns active services similar to term.
func (r *Retriever) SearchByText(ctx context.Context, term string, p RetrievalParams) ([]models.ServiceOption, error) {
	return r.readThrough(ctx, OpSearchByText, term, p, func(ctx context.Context) ([]models.ServiceOption, error) {
		opts, err := r.store.SearchByText(ctx, term, p.Limit, p.Threshold, p.Window)
		if err != nil {
			return nil, err
		}
		catalogRepo.SortBySimilarity(opts)
		return opts, nil
	})
}

// Warm refreshes the cached list for category regardless of what is cached.
func (r *Retriever) Warm(ctx context.Context, category string, p RetrievalParams) (int, error) {
	opts, err := r.store.TopByCategory(ctx, category, p.Limit, p.Window)
	if err != nil {
		return 0, &RetrievalFailure{Op: OpTopByCategory, Term: category, Err: err}
	}
	opts = r.sameCategory(category, opts, p.Normalizer)
	catalogRepo.SortByPopularity(opts)
	opts = truncate(opts, p.Limit)
	r.writeCache(ctx, CandidateKey(OpTopByCategory, category, p.Limit), opts, p.TTL)
	return len(opts), nil
}

func (r *Retriever) readThrough(ctx context.Context, op, term string, p RetrievalParams, fetch func(context.Context) ([]models.ServiceOption, error)) ([]models.ServiceOption, error) {
	key := CandidateKey(op, term, p.Limit)
	if cached, ok := r.fromCache(ctx, key); ok {
		return truncate(cached, p.Limit), nil
	}

	opts, err := fetch(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return nil, &RetrievalFailure{Op: op, Term: term, Err: err}
	}
	opts = truncate(opts, p.Limit)
	r.writeCache(ctx, key, opts, p.TTL)
	return opts, nil
}

// fromCache treats any cache failure as a miss.
func (r *Retriever) fromCache(ctx context.Context, key string) ([]models.ServiceOption, bool) {
	if r.cache == nil {
		return nil, false
	}
	raw, err := r.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrCacheMiss) {
			r.logger.Warn("candidate cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var opts []models.ServiceOption
	if err := json.Unmarshal(raw, &opts); err != nil {
		r.logger.Warn("discarding undecodable candidate cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return opts, true
}

// writeCache is best effort; a failed write never fails the lookup.
func (r *Retriever) writeCache(ctx context.Context, key string, opts []models.ServiceOption, ttl time.Duration) {
	if r.cache == nil || r.readOnly || ttl <= 0 {
		return
	}
	if opts == nil {
		opts = []models.ServiceOption{}
	}
	raw, err := json.Marshal(opts)
	if err != nil {
		r.logger.Warn("failed to encode candidate list", zap.String("key", key), zap.Error(err))
		return
	}
	if err := r.cache.SetWithTTL(ctx, key, raw, ttl); err != nil {
		r.logger.Warn("candidate cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// sameCategory drops options that do not belong to the queried category.
func (r *Retriever) sameCategory(category string, opts []models.ServiceOption, n *Normalizer) []models.ServiceOption {
	kept := opts[:0:0]
	for _, o := range opts {
		cat := strings.ToLower(o.Category)
		if n != nil {
			cat = n.Normalize(o.Category)
		}
		if strings.Contains(cat, category) || strings.Contains(o.NormalizedName, category) {
			kept = append(kept, o)
			continue
		}
		r.logger.Warn("dropping option outside queried category",
			zap.String("category", category), zap.String("serviceId", o.ID), zap.String("optionCategory", o.Category))
	}
	return kept
}

func truncate(opts []models.ServiceOption, limit int) []models.ServiceOption {
	if limit > 0 && len(opts) > limit {
		return opts[:limit]
	}
	return opts
}
