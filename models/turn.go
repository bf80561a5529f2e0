package models

// TurnRequest is the payload the conversation engine posts for each user message.
type TurnRequest struct {
	SessionID   string `json:"session_id"` // generated on start when empty
	UserID      string `json:"user_id"`
	Text        string `json:"text"`                   // raw user message
	ReturnState string `json:"return_state,omitempty"` // only read when a resolution starts
}

// TurnResponse is what the turn endpoints return to the conversation engine.
type TurnResponse struct {
	SessionID    string         `json:"session_id"`
	Success      bool           `json:"success"`
	NextState    string         `json:"next_state"`
	ResponseText string         `json:"response"`
	SlotsToSet   map[string]any `json:"slots,omitempty"`
	Completed    bool           `json:"completed"`
	ErrorCode    string         `json:"error_code,omitempty"`
}

// NewTurnResponse projects an orchestrator result for the wire.
func NewTurnResponse(sessionID string, res DisambiguationResult) *TurnResponse {
	return &TurnResponse{
		SessionID:    sessionID,
		Success:      res.Success,
		NextState:    res.NextState,
		ResponseText: res.ResponseText,
		SlotsToSet:   res.SlotsToSet,
		Completed:    res.Completed,
		ErrorCode:    res.ErrorCode,
	}
}
