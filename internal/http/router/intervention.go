package router

import (
	"github.com/gin-gonic/gin"

	"github.com/basegraphhq/turnengine/internal/http/handler"
)

func InterventionRouter(rg *gin.RouterGroup, h *handler.InterventionHandler) {
	rg.POST("/intervene/cancel", h.Cancel)
}
