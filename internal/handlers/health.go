package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Cyb3rGhoul/dsa-brother-bot/pkg/response"
)

// Health reports process liveness and database reachability.
func Health(db *gorm.DB) gin.HandlerFunc {
	start := time.Now()

	return func(c *gin.Context) {
		dbStatus := "ok"
		status := http.StatusOK

		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			dbStatus = "unreachable"
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, response.Envelope{
			Success: status == http.StatusOK,
			Message: "Server is running",
			Data: gin.H{
				"database": dbStatus,
				"uptime":   time.Since(start).Round(time.Second).String(),
				"time":     time.Now().UTC(),
			},
		})
	}
}
