package router

import (
	"github.com/gin-gonic/gin"

	"github.com/basegraphhq/turnengine/internal/http/handler"
)

// Handlers groups every Gateway handler SetupRoutes wires up, assembled by the caller
// (cmd/server) once the Orchestrator, injection manager, queue and intervention
// authenticator exist.
type Handlers struct {
	Chat         *handler.ChatHandler
	Progress     *handler.ProgressHandler
	Inject       *handler.InjectHandler
	Intervention *handler.InterventionHandler
}

func SetupRoutes(router *gin.Engine, h Handlers) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		TurnRouter(v1, h.Chat)
		InjectRouter(v1, h.Inject)
		InterventionRouter(v1, h.Intervention)
	}

	ProgressRouter(router.Group("/stream"), h.Progress)
}
