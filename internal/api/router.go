package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/yieldroute/yieldroute/internal/pipeline"
	"github.com/yieldroute/yieldroute/internal/websocket"
)

// PipelineService is the slice of pipeline.Service the handlers need.
type PipelineService interface {
	Start(ctx context.Context) error
	Status() pipeline.Status
}

// SetupRouter initializes the Gin router and sets up the routes
func SetupRouter(svc PipelineService, wsManager *websocket.WebSocketManager) *gin.Engine {
	r := gin.Default()
	r.Use(ErrorMiddleware())

	r.GET("/health", Health)

	// Pipeline routes
	r.GET("/pipeline/status", GetPipelineStatus(svc))
	r.POST("/pipeline/run", RunPipeline(svc))

	// WebSocket route
	r.GET("/ws", func(c *gin.Context) {
		wsManager.HandleWebSocket(c.Writer, c.Request)
	})

	return r
}
