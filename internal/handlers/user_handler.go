package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/repairhub/internal/models"
	"github.com/joshua-takyi/repairhub/internal/services"
)

func GetUser(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		user, err := u.GetUser(c.Request.Context(), c.Param("id"), actor)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(user, ""))
	}
}

func UpdateUser(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		var req services.UpdateUserInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request payload")
			return
		}
		user, err := u.UpdateUser(c.Request.Context(), c.Param("id"), req, actor)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(user, "Profile updated"))
	}
}

func ListUsers(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := pageParams(c)
		if !ok {
			return
		}
		users, total, err := u.ListUsers(c.Request.Context(), page)
		if err != nil {
			respondError(c, err)
			return
		}
		paginated(c, users, page, total)
	}
}

// SetUserStatus blocks or re-activates a customer account.
func SetUserStatus(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Status string `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "status is required")
			return
		}
		user, err := u.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(user, "User status updated"))
	}
}
