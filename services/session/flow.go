package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"disambiguator/models"
	"disambiguator/services/disambiguation"
)

const storeTimeout = 5 * time.Second

// DefaultFlowService is the production FlowService.
type DefaultFlowService struct {
	Orchestrator *disambiguation.Orchestrator
	Store        SessionStore
	Logger       *zap.Logger
}

func NewFlowService(orch *disambiguation.Orchestrator, store SessionStore, logger *zap.Logger) *DefaultFlowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultFlowService{Orchestrator: orch, Store: store, Logger: logger}
}

// Start begins a new resolution, replacing any session stored under the same id.
func (s *DefaultFlowService) Start(ctx context.Context, req models.TurnRequest) (*models.TurnResponse, error) {
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	dctx := models.DisambiguationContext{
		ReturnState: req.ReturnState,
		UserID:      req.UserID,
		SessionID:   req.SessionID,
	}
	res := s.Orchestrator.StartDisambiguation(ctx, req.Text, dctx)
	s.persist(ctx, req.SessionID, res)
	return models.NewTurnResponse(req.SessionID, res), nil
}

// Turn loads the session, hands the message to the orchestrator and stores
// or deletes the session it returns.
func (s *DefaultFlowService) Turn(ctx context.Context, req models.TurnRequest) (*models.TurnResponse, error) {
	if req.SessionID == "" {
		return nil, ErrMissingSessionID
	}
	loadCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	sess, err := s.Store.Get(loadCtx, req.SessionID)
	cancel()
	switch {
	case errors.Is(err, ErrSessionNotFound):
		s.Logger.Info("turn for unknown or expired session", zap.String("sessionId", req.SessionID))
		sess = nil
	case err != nil:
		return nil, err
	case sess.Context.UserID != "" && req.UserID != "" && sess.Context.UserID != req.UserID:
		return nil, ErrSessionOwner
	}

	res := s.Orchestrator.HandleTurn(ctx, req.Text, sess)
	if res.Session != nil && res.Session.Context.SessionID == "" {
		res.Session.Context.SessionID = req.SessionID
		res.Session.Context.UserID = req.UserID
	}
	s.persist(ctx, req.SessionID, res)
	return models.NewTurnResponse(req.SessionID, res), nil
}

// persist never fails the turn; the user already has a response to read.
func (s *DefaultFlowService) persist(ctx context.Context, sessionID string, res models.DisambiguationResult) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if res.Session == nil {
		if err := s.Store.Delete(ctx, sessionID); err != nil {
			s.Logger.Warn("failed to delete finished session", zap.String("sessionId", sessionID), zap.Error(err))
		}
		return
	}
	if err := s.Store.Save(ctx, res.Session); err != nil {
		s.Logger.Error("failed to save session", zap.String("sessionId", sessionID),
			zap.String("state", string(res.Session.State)), zap.Error(err))
	}
}
