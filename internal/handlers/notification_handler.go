package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/repairhub/internal/models"
	"github.com/joshua-takyi/repairhub/internal/services"
)

func ListNotifications(n *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		userID, err := actor.ObjectID()
		if err != nil {
			respondError(c, services.ErrForbidden)
			return
		}
		page, ok := pageParams(c)
		if !ok {
			return
		}
		items, total, err := n.List(c.Request.Context(), userID, page)
		if err != nil {
			respondError(c, err)
			return
		}
		paginated(c, items, page, total)
	}
}

func UnreadNotifications(n *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		userID, err := actor.ObjectID()
		if err != nil {
			respondError(c, services.ErrForbidden)
			return
		}
		count, err := n.UnreadCount(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(gin.H{"unread": count}, ""))
	}
}

func MarkNotificationRead(n *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		userID, err := actor.ObjectID()
		if err != nil {
			respondError(c, services.ErrForbidden)
			return
		}
		id, err := models.ParseID(c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		if err := n.MarkRead(c.Request.Context(), userID, id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(nil, "Notification marked as read"))
	}
}

func MarkAllNotificationsRead(n *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		userID, err := actor.ObjectID()
		if err != nil {
			respondError(c, services.ErrForbidden)
			return
		}
		updated, err := n.MarkAllRead(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(gin.H{"updated": updated}, ""))
	}
}

// SendNotification lets an admin write a general notification to any user
// or technician.
func SendNotification(n *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID  string `json:"user_id" binding:"required"`
			Title   string `json:"title"`
			Message string `json:"message" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "user_id and message are required")
			return
		}
		userID, err := models.ParseID(req.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		saved, err := n.Notify(c.Request.Context(), userID, models.NotificationGeneral, req.Title, req.Message, nil)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(saved, "Notification sent"))
	}
}
