package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"disambiguator/middleware"
	"disambiguator/models"
	"disambiguator/services/disambiguation"
	"disambiguator/services/session"
	"disambiguator/utils"
)

// DisambiguationHandler serves the turn endpoints called by the conversation engine.
type DisambiguationHandler struct {
	Flow session.FlowService
}

func NewDisambiguationHandler(flow session.FlowService) *DisambiguationHandler {
	return &DisambiguationHandler{Flow: flow}
}

// StartHandler opens a resolution for the user's first message.
func (h *DisambiguationHandler) StartHandler(c *gin.Context) {
	req, ok := bindTurn(c)
	if !ok {
		return
	}
	resp, err := h.Flow.Start(c.Request.Context(), req)
	if err != nil {
		h.turnError(c, req, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// TurnHandler continues the resolution stored under the session id.
func (h *DisambiguationHandler) TurnHandler(c *gin.Context) {
	req, ok := bindTurn(c)
	if !ok {
		return
	}
	resp, err := h.Flow.Turn(c.Request.Context(), req)
	if err != nil {
		h.turnError(c, req, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func bindTurn(c *gin.Context) (models.TurnRequest, bool) {
	var req models.TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request payload", err.Error())
		return req, false
	}
	if req.SessionID == "" {
		req.SessionID = c.GetHeader(middleware.SessionHeader)
	}
	return req, true
}

func (h *DisambiguationHandler) turnError(c *gin.Context, req models.TurnRequest, err error) {
	logger := getLogger(c).With(zap.String("sessionId", req.SessionID), zap.String("userId", req.UserID))
	switch {
	case errors.Is(err, session.ErrMissingSessionID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrSessionOwner):
		logger.Warn("turn for a session owned by another user")
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		logger.Error("disambiguation turn failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, models.TurnResponse{
			SessionID:    req.SessionID,
			ResponseText: disambiguation.LastResortText,
			ErrorCode:    disambiguation.CodeStoreUnavailable,
		})
	}
}
