package dto

import "github.com/basegraphhq/turnengine/internal/turn"

type ChatRequest struct {
	SessionID string `json:"session_id" binding:"required,min=1,max=255"`
	Mode      string `json:"mode" binding:"required,oneof=chat code"`
	Message   string `json:"message" binding:"required,min=1,max=16384"`
}

type ChatResponse struct {
	TurnID  string `json:"turn_id"`
	Status  string `json:"status"`
	Draft   string `json:"draft,omitempty"`
	Partial bool   `json:"partial"`
	Reason  string `json:"reason,omitempty"`
}

func ToChatResponse(turnID string, result *turn.Document, partial bool, reason string) *ChatResponse {
	return &ChatResponse{
		TurnID:  turnID,
		Status:  string(result.Status),
		Draft:   result.S6.Draft,
		Partial: partial,
		Reason:  reason,
	}
}

type InjectRequest struct {
	SessionID string `json:"session_id" binding:"required,min=1,max=255"`
	Kind      string `json:"kind" binding:"required,oneof=cancel redirect add_context"`
	Message   string `json:"message" binding:"omitempty,max=4096"`
}

type InterventionCancelRequest struct {
	WorkOSSessionID string `json:"workos_session_id" binding:"required,min=1"`
}
