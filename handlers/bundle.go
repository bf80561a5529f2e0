// File: disambiguator/handlers/bundle.go
package handlers

import (
	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	AdminJWTSecret    []byte
	MaxRequestsPerMin int

	// Conversation engine endpoints
	StartDisambiguationHandler gin.HandlerFunc
	TurnHandler                gin.HandlerFunc

	// Admin endpoints
	TestInputHandler     gin.HandlerFunc
	DryRunHandler        gin.HandlerFunc
	StatsHandler         gin.HandlerFunc
	ClearCacheHandler    gin.HandlerFunc
	ClearSessionsHandler gin.HandlerFunc
	ReloadRulesHandler   gin.HandlerFunc
	WarmCacheHandler     gin.HandlerFunc

	// Operational endpoints
	HealthHandler  gin.HandlerFunc
	MetricsHandler gin.HandlerFunc
}

// NewHandlerBundle fills the bundle from the handler structs.
func NewHandlerBundle(dh *DisambiguationHandler, ah *AdminHandler, health gin.HandlerFunc, metrics gin.HandlerFunc) *HandlerBundle {
	return &HandlerBundle{
		StartDisambiguationHandler: dh.StartHandler,
		TurnHandler:                dh.TurnHandler,
		TestInputHandler:           ah.TestInputHandler,
		DryRunHandler:              ah.DryRunHandler,
		StatsHandler:               ah.StatsHandler,
		ClearCacheHandler:          ah.ClearCacheHandler,
		ClearSessionsHandler:       ah.ClearSessionsHandler,
		ReloadRulesHandler:         ah.ReloadRulesHandler,
		WarmCacheHandler:           ah.WarmCacheHandler,
		HealthHandler:              health,
		MetricsHandler:             metrics,
	}
}
