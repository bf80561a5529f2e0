package admin

import (
	"context"
	"time"

	"go.uber.org/zap"

	"disambiguator/database/kvstore"
	catalogRepo "disambiguator/database/repository/catalog"
	"disambiguator/models"
	"disambiguator/services/disambiguation"
)

// AdminService backs the diagnostics and maintenance endpoints.
type AdminService interface {
	TestInput(text string) models.InputReport
	DryRun(ctx context.Context, text string) models.DisambiguationResult
	Stats(ctx context.Context) (*models.DisambiguationStats, error)
	ClearCache(ctx context.Context, pattern string) (int64, error)
	ClearSessions(ctx context.Context, pattern string) (int64, error)
	ReloadRules() error
	WarmCache(ctx context.Context, categories []string) (*models.WarmReport, error)
}

// DefaultAdminService is the production implementation.
type DefaultAdminService struct {
	Rules        *disambiguation.RulesStore
	Orchestrator *disambiguation.Orchestrator
	Retriever    *disambiguation.Retriever
	Catalog      catalogRepo.CatalogRepository
	Cache        kvstore.KVStore
	Sessions     kvstore.KVStore
	Logger       *zap.Logger
}

const adminTimeout = 5 * time.Second
