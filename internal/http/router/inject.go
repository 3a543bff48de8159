package router

import (
	"github.com/gin-gonic/gin"

	"github.com/basegraphhq/turnengine/internal/http/handler"
)

func InjectRouter(rg *gin.RouterGroup, h *handler.InjectHandler) {
	rg.POST("/inject", h.Send)
}
