package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HandleHealth returns a simple service heartbeat payload.
func HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleRoot returns basic metadata about the service.
func HandleRoot(service, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": service, "version": version})
	}
}
