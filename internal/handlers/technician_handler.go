package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/repairhub/internal/models"
	"github.com/joshua-takyi/repairhub/internal/services"
)

func ListTechnicians(t *services.TechnicianService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := pageParams(c)
		if !ok {
			return
		}
		techs, total, err := t.List(c.Request.Context(), c.Query("status"), c.Query("specialty"), page)
		if err != nil {
			respondError(c, err)
			return
		}
		paginated(c, techs, page, total)
	}
}

func GetTechnician(t *services.TechnicianService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tech, err := t.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(tech, ""))
	}
}

func TechnicianMe(t *services.TechnicianService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		tech, err := t.Get(c.Request.Context(), actor.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(tech, ""))
	}
}

func SetTechnicianStatus(t *services.TechnicianService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		var req struct {
			Status string `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "status is required")
			return
		}
		tech, err := t.SetOwnStatus(c.Request.Context(), actor, req.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(tech, "Status updated"))
	}
}

func CreateTechnician(t *services.TechnicianService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.TechnicianInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request payload")
			return
		}
		tech, err := t.Create(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(tech, "Technician created"))
	}
}

func UpdateTechnician(t *services.TechnicianService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.TechnicianInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request payload")
			return
		}
		tech, err := t.Update(c.Request.Context(), c.Param("id"), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(tech, "Technician updated"))
	}
}

func ListTechnicianRatings(r *services.RatingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := pageParams(c)
		if !ok {
			return
		}
		ratings, total, err := r.ListForTechnician(c.Request.Context(), c.Param("id"), page)
		if err != nil {
			respondError(c, err)
			return
		}
		paginated(c, ratings, page, total)
	}
}
