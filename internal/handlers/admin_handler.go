package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/repairhub/internal/models"
	"github.com/joshua-takyi/repairhub/internal/realtime"
	"github.com/joshua-takyi/repairhub/internal/services"
)

func AdminStats(a *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := a.Stats(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(stats, ""))
	}
}

// ServeWS hands the connection to the realtime hub.
func ServeWS(hub *realtime.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		hub.ServeWS(c.Writer, c.Request)
	}
}

func Health(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "OK",
			"service": service,
		})
	}
}
