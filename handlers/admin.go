package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"disambiguator/services/admin"
	"disambiguator/utils"
)

// WarmEnqueuer schedules a background cache warm and returns the task id.
type WarmEnqueuer interface {
	EnqueueWarm(ctx context.Context, categories []string) (string, error)
}

// AdminHandler encapsulates elevated admin-level operations.
type AdminHandler struct {
	AdminService admin.AdminService
	Warmer       WarmEnqueuer
}

// NewAdminHandler creates a new AdminHandler. With a nil warmer, warm
// requests run inline.
func NewAdminHandler(as admin.AdminService, warmer WarmEnqueuer) *AdminHandler {
	return &AdminHandler{AdminService: as, Warmer: warmer}
}

type inputRequest struct {
	Text string `json:"text" binding:"required"`
}

type warmRequest struct {
	Categories []string `json:"categories"`
}

// TestInputHandler shows normalization and classification for one input.
func (ah *AdminHandler) TestInputHandler(c *gin.Context) {
	var req inputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "text is required", err.Error())
		return
	}
	c.JSON(http.StatusOK, ah.AdminService.TestInput(req.Text))
}

// DryRunHandler runs a first turn without touching cache or metrics.
func (ah *AdminHandler) DryRunHandler(c *gin.Context) {
	var req inputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "text is required", err.Error())
		return
	}
	c.JSON(http.StatusOK, ah.AdminService.DryRun(c.Request.Context(), req.Text))
}

func (ah *AdminHandler) StatsHandler(c *gin.Context) {
	stats, err := ah.AdminService.Stats(c.Request.Context())
	if err != nil {
		getLogger(c).Error("Failed to collect disambiguation stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to collect stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ClearCacheHandler deletes candidate lists matching ?pattern=.
func (ah *AdminHandler) ClearCacheHandler(c *gin.Context) {
	ah.clear(c, "cache", ah.AdminService.ClearCache)
}

// ClearSessionsHandler deletes sessions matching ?pattern=.
func (ah *AdminHandler) ClearSessionsHandler(c *gin.Context) {
	ah.clear(c, "sessions", ah.AdminService.ClearSessions)
}

func (ah *AdminHandler) clear(c *gin.Context, what string, fn func(context.Context, string) (int64, error)) {
	n, err := fn(c.Request.Context(), c.Query("pattern"))
	if errors.Is(err, admin.ErrEmptyPattern) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		getLogger(c).Error("Failed to clear keys", zap.String("target", what), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear " + what})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// ReloadRulesHandler swaps in the rules document from disk if it compiles.
func (ah *AdminHandler) ReloadRulesHandler(c *gin.Context) {
	if err := ah.AdminService.ReloadRules(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "rules reloaded"})
}

func (ah *AdminHandler) WarmCacheHandler(c *gin.Context) {
	var req warmRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.JSONError(c, http.StatusBadRequest, "Invalid request payload", err.Error())
			return
		}
	}

	if ah.Warmer == nil {
		report, err := ah.AdminService.WarmCache(c.Request.Context(), req.Categories)
		if err != nil {
			getLogger(c).Error("Cache warm failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, report)
			return
		}
		c.JSON(http.StatusOK, report)
		return
	}

	taskID, err := ah.Warmer.EnqueueWarm(c.Request.Context(), req.Categories)
	if err != nil {
		getLogger(c).Error("Failed to enqueue cache warm", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to enqueue cache warm"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"taskId": taskID})
}
