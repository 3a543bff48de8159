package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/basegraphhq/turnengine/internal/http/dto"
)

// SessionRevoker is satisfied by *intervention.Authenticator.
type SessionRevoker interface {
	Cancel(ctx context.Context, workosSessionID string) error
}

// InterventionHandler revokes the caller's WorkOS session so the same access token
// can't be replayed. It does not stop an in-flight turn and is not triggered by a
// CANCEL injection, which goes through InjectHandler instead.
type InterventionHandler struct {
	sessions SessionRevoker
}

func NewInterventionHandler(sessions SessionRevoker) *InterventionHandler {
	return &InterventionHandler{sessions: sessions}
}

func (h *InterventionHandler) Cancel(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.InterventionCancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid intervention cancel request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sessions.Cancel(ctx, req.WorkOSSessionID); err != nil {
		slog.ErrorContext(ctx, "intervention cancel failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session revocation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}
