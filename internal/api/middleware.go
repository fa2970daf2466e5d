package api

import (
	"github.com/gin-gonic/gin"

	"github.com/yieldroute/yieldroute/internal/errors"
	"github.com/yieldroute/yieldroute/pkg/logger"
)

func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err
			switch e := err.(type) {
			case *errors.PreconditionError:
				logger.Error("Precondition error: %v", e)
				c.JSON(400, gin.H{"error": e.Error()})
			case *errors.ChainError:
				logger.Error("Chain error: %v", e)
				c.JSON(502, gin.H{"error": "Ethereum node unavailable"})
			case *errors.RevertError:
				logger.Error("Revert error: %v", e)
				c.JSON(502, gin.H{"error": e.Error()})
			case *errors.APIError:
				logger.Error("API error: %v", e)
				c.JSON(e.StatusCode, gin.H{"error": e.Message})
			default:
				logger.Error("Unexpected error: %v", e)
				c.JSON(500, gin.H{"error": "Internal server error"})
			}
			c.Abort()
		}
	}
}
