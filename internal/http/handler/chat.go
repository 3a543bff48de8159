package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/basegraphhq/turnengine/common/id"
	"github.com/basegraphhq/turnengine/internal/engine"
	"github.com/basegraphhq/turnengine/internal/http/dto"
	"github.com/basegraphhq/turnengine/internal/turn"
)

// TurnRunner is satisfied by *engine.Orchestrator. Unlike the narrow mirrored-struct
// interfaces elsewhere (engine.ToolInvoker, worker.TurnIndexer), TurnInput/TurnResult
// aren't redeclared here: the Gateway is the engine's direct caller, same as the
// teacher's handlers take their service package's own interface types directly
// (e.g. NewUserHandler(service.UserService)) rather than mirroring them.
type TurnRunner interface {
	HandleTurn(ctx context.Context, input engine.TurnInput) (*engine.TurnResult, error)
}

type ChatHandler struct {
	runner TurnRunner
}

func NewChatHandler(runner TurnRunner) *ChatHandler {
	return &ChatHandler{runner: runner}
}

// Send runs one turn synchronously and returns the finished document's draft. A turn
// typically resolves in low single-digit seconds; callers wanting interim progress use
// ProgressHandler.Stream concurrently against the same session_id.
func (h *ChatHandler) Send(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid chat request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	turnID := strconv.FormatInt(id.New(), 10)
	result, err := h.runner.HandleTurn(ctx, engine.TurnInput{
		TurnID:    turnID,
		SessionID: req.SessionID,
		Mode:      turn.Mode(req.Mode),
		Command:   req.Message,
	})
	if err != nil {
		slog.ErrorContext(ctx, "turn failed", "error", err, "turn_id", turnID, "session_id", req.SessionID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "turn processing failed"})
		return
	}

	c.JSON(http.StatusOK, dto.ToChatResponse(turnID, result.Document, result.Partial, result.Reason))
}
