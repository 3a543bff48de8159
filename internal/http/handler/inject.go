package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/basegraphhq/turnengine/internal/engine"
	"github.com/basegraphhq/turnengine/internal/http/dto"
)

// Injector is satisfied by *engine.InjectionManager.
type Injector interface {
	Enqueue(ctx context.Context, sessionID string, inj engine.Injection) error
}

type InjectHandler struct {
	injections Injector
}

func NewInjectHandler(injections Injector) *InjectHandler {
	return &InjectHandler{injections: injections}
}

// Send enqueues a mid-turn CANCEL/REDIRECT/ADD_CONTEXT command for the session's
// active turn, drained at the Orchestrator's next checkpoint (after Phase 1/1.5, or
// before the next Phase 4/5 execution pass).
func (h *InjectHandler) Send(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.InjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid inject request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.injections.Enqueue(ctx, req.SessionID, engine.Injection{
		Kind:    engine.InjectionKind(req.Kind),
		Payload: req.Message,
	})
	if err != nil {
		if errors.Is(err, engine.ErrNoActiveTurn) {
			c.JSON(http.StatusConflict, gin.H{"error": "no active turn for this session"})
			return
		}
		slog.ErrorContext(ctx, "injection failed", "error", err, "session_id", req.SessionID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "injection failed"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}
