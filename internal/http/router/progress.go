package router

import (
	"github.com/gin-gonic/gin"

	"github.com/basegraphhq/turnengine/internal/http/handler"
)

func ProgressRouter(rg *gin.RouterGroup, h *handler.ProgressHandler) {
	rg.GET("/sessions/:session_id/stream", h.Stream)
}
