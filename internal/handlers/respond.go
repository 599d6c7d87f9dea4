package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/repairhub/internal/helpers"
	"github.com/joshua-takyi/repairhub/internal/middleware"
	"github.com/joshua-takyi/repairhub/internal/models"
	"github.com/joshua-takyi/repairhub/internal/services"
)

// respondError maps a service or repository failure to a status code. Only
// errors that are safe to show reach the client; everything else is attached
// to the context for ErrorHandler and answered with a generic 500.
func respondError(c *gin.Context, err error) {
	var se services.ServiceError
	switch {
	case errors.As(err, &se):
		c.JSON(serviceStatus(se), models.ErrorResponse(err.Error()))
	case errors.Is(err, models.ErrInvalidID):
		c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid id"))
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse(err.Error()))
	case errors.Is(err, models.ErrDuplicate):
		c.JSON(http.StatusConflict, models.ErrorResponse(err.Error()))
	case errors.Is(err, helpers.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, models.ErrorResponse(err.Error()))
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, models.InternalErrorResponse(c.GetString(middleware.RequestIDKey)))
	}
}

func serviceStatus(se services.ServiceError) int {
	switch se {
	case services.ErrInvalidCredentials:
		return http.StatusUnauthorized
	case services.ErrForbidden, services.ErrAccountBlocked:
		return http.StatusForbidden
	case services.ErrAccountNotFound:
		return http.StatusNotFound
	case services.ErrEmailTaken, services.ErrAlreadyRated, services.ErrBookingConflict,
		services.ErrInvalidTransition, services.ErrNotAssigned, services.ErrTechnicianUnavailable:
		return http.StatusConflict
	case services.ErrServiceUnavailable, services.ErrNotRatable:
		return http.StatusUnprocessableEntity
	case services.ErrOTPSendFailed:
		return http.StatusBadGateway
	}
	return http.StatusBadRequest
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse(msg))
}

// currentActor reads the session placed by AuthMiddleware.
func currentActor(c *gin.Context) (services.Actor, bool) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse("unauthorized"))
		return services.Actor{}, false
	}
	return services.ActorFromClaims(claims), true
}

// pageParams parses limit and offset the same way for every list endpoint.
func pageParams(c *gin.Context) (models.Page, bool) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		badRequest(c, "invalid limit parameter")
		return models.Page{}, false
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		badRequest(c, "invalid offset parameter")
		return models.Page{}, false
	}
	return models.Page{Offset: offset, Limit: limit}, true
}

func paginated(c *gin.Context, data any, page models.Page, total int64) {
	c.JSON(http.StatusOK, models.PaginatedResponse(data, page, total))
}
