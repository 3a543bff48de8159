package router

import (
	"github.com/gin-gonic/gin"

	"github.com/basegraphhq/turnengine/internal/http/handler"
)

func TurnRouter(rg *gin.RouterGroup, h *handler.ChatHandler) {
	rg.POST("/chat", h.Send)
}
