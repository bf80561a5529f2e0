package session

import (
	"context"
	"errors"

	"disambiguator/models"
)

// KeyPrefix namespaces disambiguation sessions in the shared KV store.
const KeyPrefix = "disamb:sess:"

var (
	ErrSessionNotFound  = errors.New("disambiguation session not found")
	ErrSessionOwner     = errors.New("disambiguation session belongs to another user")
	ErrMissingSessionID = errors.New("session id is required")
)

// SessionStore persists DisambiguationSession values between turns.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*models.DisambiguationSession, error)
	Save(ctx context.Context, s *models.DisambiguationSession) error
	Delete(ctx context.Context, sessionID string) error
}

// FlowService is the hosting integration around the orchestrator: it owns
// the session lifecycle and runs one orchestrator call per turn.
type FlowService interface {
	Start(ctx context.Context, req models.TurnRequest) (*models.TurnResponse, error)
	Turn(ctx context.Context, req models.TurnRequest) (*models.TurnResponse, error)
}
