package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"disambiguator/utils"
)

// HealthHandler reports the last dependency snapshot; 503 when any is down.
func HealthHandler(monitor *utils.HealthMonitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := monitor.Status()
		code := http.StatusOK
		if !status.Healthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "message": "disambiguation service"})
	}
}
