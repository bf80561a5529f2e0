package models

import "time"

// State is a node of the disambiguation state machine. Once resolved, the
// machine hands back the caller's return state, which is an arbitrary string.
type State string

const (
	StateStart                   State = "START"
	StateCatalogDisambiguation   State = "CATALOG_DISAMBIGUATION"
	StateCatalogWaitChoice       State = "CATALOG_WAIT_CHOICE"
	StateCatalogWaitConfirmation State = "CATALOG_WAIT_CONFIRMATION"
	StateFallbackManualInput     State = "FALLBACK_MANUAL_INPUT"
	StateReturnToFlow            State = "RETURN_TO_FLOW"
)

// IsWaiting reports whether the state expects another user turn.
func (s State) IsWaiting() bool {
	switch s {
	case StateCatalogWaitChoice, StateCatalogWaitConfirmation, StateFallbackManualInput:
		return true
	}
	return false
}

// DisambiguationContext is the per-resolution state carried across turns.
type DisambiguationContext struct {
	OriginalInput   string `json:"originalInput"`
	NormalizedInput string `json:"normalizedInput"`
	Category        string `json:"category,omitempty"`
	ReturnState     string `json:"returnState"`
	Attempt         int    `json:"attempt"`
	UserID          string `json:"userId"`
	SessionID       string `json:"sessionId"`
}

// DisambiguationSession is the envelope the hosting integration persists
// between turns. Options are never mutated once stored; a new attempt
// produces a new session value.
type DisambiguationSession struct {
	Context      DisambiguationContext `json:"context"`
	State        State                 `json:"state"`
	Options      []ServiceOption       `json:"options"`
	AttemptCount int                   `json:"attemptCount"`
	CreatedAt    time.Time             `json:"createdAt"`
	ExpiresAt    time.Time             `json:"expiresAt"`
}

// NewDisambiguationSession snapshots options into a fresh session.
func NewDisambiguationSession(dctx DisambiguationContext, state State, options []ServiceOption, now time.Time, ttl time.Duration) *DisambiguationSession {
	snapshot := make([]ServiceOption, len(options))
	copy(snapshot, options)
	return &DisambiguationSession{
		Context:      dctx,
		State:        state,
		Options:      snapshot,
		AttemptCount: dctx.Attempt,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
}

// WithState returns a copy moved to another state. The options slice is
// shared because it is never written to.
func (s DisambiguationSession) WithState(state State, attempts int) *DisambiguationSession {
	s.State = state
	s.AttemptCount = attempts
	s.Context.Attempt = attempts
	return &s
}

// Slot names written on a successful resolution.
const (
	SlotServiceID       = "service_id"
	SlotServiceName     = "service_name"
	SlotServiceNorm     = "service_norm"
	SlotProfessionalID  = "professional_id"
	SlotServicePrice    = "service_price"
	SlotServiceDuration = "service_duration"
	SlotServiceCategory = "service_category"
	SlotManualService   = "manual_service"
)

// DisambiguationResult is what every orchestrator entry point returns.
// Session is the value the integration must persist; nil means the
// resolution thread is over and any stored session should be deleted.
type DisambiguationResult struct {
	Success      bool                   `json:"success"`
	NextState    string                 `json:"nextState"`
	ResponseText string                 `json:"responseText"`
	SlotsToSet   map[string]any         `json:"slotsToSet,omitempty"`
	Completed    bool                   `json:"completed"`
	ErrorCode    string                 `json:"errorCode,omitempty"`
	Error        error                  `json:"-"`
	Session      *DisambiguationSession `json:"session,omitempty"`
}
