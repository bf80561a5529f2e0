package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"disambiguator/database/kvstore"
	catalogRepo "disambiguator/database/repository/catalog"
	"disambiguator/models"
	"disambiguator/services/disambiguation"
	"disambiguator/services/session"
)

// ErrEmptyPattern guards against clearing a whole namespace by accident.
var ErrEmptyPattern = errors.New("a key pattern is required")

func NewAdminService(rules *disambiguation.RulesStore, orch *disambiguation.Orchestrator, retriever *disambiguation.Retriever,
	catalog catalogRepo.CatalogRepository, cache, sessions kvstore.KVStore, logger *zap.Logger) *DefaultAdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultAdminService{
		Rules:        rules,
		Orchestrator: orch,
		Retriever:    retriever,
		Catalog:      catalog,
		Cache:        cache,
		Sessions:     sessions,
		Logger:       logger,
	}
}

// TestInput reports how the active rules see text without touching any store.
func (a *DefaultAdminService) TestInput(text string) models.InputReport {
	rules := a.Rules.Current()
	report := models.InputReport{
		Input:         text,
		Normalized:    rules.Normalizer.Normalize(text),
		Label:         string(rules.Classifier.Classify(text)),
		Ambiguous:     rules.Classifier.IsAmbiguous(text),
		NumericChoice: rules.Classifier.IsNumericChoice(text),
	}
	if report.Ambiguous {
		report.Category = rules.Classifier.Category(text)
	}
	if n, ok := rules.Classifier.ParseChoice(text); ok {
		report.Choice = n
	}
	return report
}

// DryRun runs the first turn with no cache writes and no metrics.
func (a *DefaultAdminService) DryRun(ctx context.Context, text string) models.DisambiguationResult {
	return a.Orchestrator.DryRun(ctx, text, models.DisambiguationContext{SessionID: "dry-run"})
}

func (a *DefaultAdminService) Stats(ctx context.Context) (*models.DisambiguationStats, error) {
	ctx, cancel := context.WithTimeout(ctx, adminTimeout)
	defer cancel()

	rules := a.Rules.Current()
	stats := &models.DisambiguationStats{RulesWarnings: rules.Warnings}

	keys, err := a.Cache.ListKeysByPrefix(ctx, disambiguation.CandidateKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to count candidate keys: %w", err)
	}
	stats.CandidateCacheKeys = len(keys)

	sessions, err := a.Sessions.ListKeysByPrefix(ctx, session.KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}
	stats.Sessions = len(sessions)

	window := time.Duration(rules.Limits.PopularityWindowDays) * 24 * time.Hour
	catalog, err := a.Catalog.Stats(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog stats: %w", err)
	}
	stats.Catalog = catalog
	return stats, nil
}

// ClearCache deletes candidate lists whose key suffix matches pattern.
func (a *DefaultAdminService) ClearCache(ctx context.Context, pattern string) (int64, error) {
	n, err := clearByPattern(ctx, a.Cache, disambiguation.CandidateKeyPrefix, pattern)
	if err != nil {
		return 0, err
	}
	a.Logger.Info("candidate cache cleared", zap.String("pattern", pattern), zap.Int64("deleted", n))
	return n, nil
}

// ClearSessions deletes sessions whose id matches pattern.
func (a *DefaultAdminService) ClearSessions(ctx context.Context, pattern string) (int64, error) {
	n, err := clearByPattern(ctx, a.Sessions, session.KeyPrefix, pattern)
	if err != nil {
		return 0, err
	}
	a.Logger.Info("disambiguation sessions cleared", zap.String("pattern", pattern), zap.Int64("deleted", n))
	return n, nil
}

// clearByPattern scopes pattern to prefix so a caller cannot reach keys
// outside the namespace.
func clearByPattern(ctx context.Context, kv kvstore.KVStore, prefix, pattern string) (int64, error) {
	pattern = strings.TrimPrefix(strings.TrimSpace(pattern), prefix)
	if pattern == "" {
		return 0, ErrEmptyPattern
	}
	ctx, cancel := context.WithTimeout(ctx, adminTimeout)
	defer cancel()

	keys, err := kv.ListKeys(ctx, prefix+pattern)
	if err != nil {
		return 0, fmt.Errorf("failed to list keys: %w", err)
	}
	return kv.Delete(ctx, keys...)
}

func (a *DefaultAdminService) ReloadRules() error {
	return a.Rules.Reload()
}

// WarmCache refreshes the category lists. An empty list warms the
// categories named by the rules document.
func (a *DefaultAdminService) WarmCache(ctx context.Context, categories []string) (*models.WarmReport, error) {
	rules := a.Rules.Current()
	if len(categories) == 0 {
		categories = rules.Cache.WarmCategories
	}
	report := &models.WarmReport{Warmed: map[string]int{}}
	params := disambiguation.ParamsFromRules(rules)

	for _, raw := range categories {
		category := rules.Normalizer.Normalize(raw)
		if category == "" {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, rules.Limits.QueryTimeout)
		n, err := a.Retriever.Warm(callCtx, category, params)
		cancel()
		if err != nil {
			a.Logger.Warn("cache warm failed", zap.String("category", category), zap.Error(err))
			if report.Failed == nil {
				report.Failed = map[string]string{}
			}
			report.Failed[category] = err.Error()
			continue
		}
		report.Warmed[category] = n
	}
	if len(report.Warmed) == 0 && len(report.Failed) > 0 {
		return report, errors.New("cache warm failed for every category")
	}
	return report, nil
}
