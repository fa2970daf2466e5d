package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yieldroute/yieldroute/internal/pipeline"
)

// Health handles the liveness probe.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetPipelineStatus handles the GET request for the current pipeline state
// and its submitted transactions.
func GetPipelineStatus(svc PipelineService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Status())
	}
}

// RunPipeline handles the POST request that launches one pipeline run. At
// most one run may be active; a second request answers 409.
func RunPipeline(svc PipelineService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Start(c.Request.Context()); err != nil {
			if err == pipeline.ErrRunInProgress {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.Error(err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"status": "started"})
	}
}
