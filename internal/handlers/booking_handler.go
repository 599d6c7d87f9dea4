package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/repairhub/internal/models"
	"github.com/joshua-takyi/repairhub/internal/services"
)

func CreateBooking(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		var req services.CreateBookingInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "service_id, date, time and address are required")
			return
		}
		booking, err := b.Create(c.Request.Context(), actor, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(booking, "Booking created"))
	}
}

func ListMyBookings(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		page, ok := pageParams(c)
		if !ok {
			return
		}
		status := models.BookingStatus(c.Query("status"))
		var (
			bookings []*models.Booking
			total    int64
			err      error
		)
		if actor.IsTechnician() {
			bookings, total, err = b.ListForTechnician(c.Request.Context(), actor, status, page)
		} else {
			bookings, total, err = b.ListForCustomer(c.Request.Context(), actor, status, page)
		}
		if err != nil {
			respondError(c, err)
			return
		}
		paginated(c, bookings, page, total)
	}
}

// ListBookings is the admin view over every booking.
func ListBookings(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := pageParams(c)
		if !ok {
			return
		}
		filter := models.BookingFilter{Status: models.BookingStatus(c.Query("status"))}
		if id := c.Query("customer_id"); id != "" {
			oid, err := models.ParseID(id)
			if err != nil {
				badRequest(c, "invalid customer_id")
				return
			}
			filter.CustomerID = oid
		}
		if id := c.Query("technician_id"); id != "" {
			oid, err := models.ParseID(id)
			if err != nil {
				badRequest(c, "invalid technician_id")
				return
			}
			filter.TechnicianID = oid
		}
		bookings, total, err := b.List(c.Request.Context(), filter, page)
		if err != nil {
			respondError(c, err)
			return
		}
		paginated(c, bookings, page, total)
	}
}

func GetBooking(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		booking, err := b.Get(c.Request.Context(), c.Param("id"), actor)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(booking, ""))
	}
}

func CancelBooking(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		var req struct {
			Reason string `json:"reason"`
		}
		_ = c.ShouldBindJSON(&req)
		booking, err := b.Cancel(c.Request.Context(), c.Param("id"), actor, req.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(booking, "Booking cancelled"))
	}
}

// UpdateBookingStatus serves both the admin and the technician routes; the
// service decides which moves each role may make.
func UpdateBookingStatus(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		var req struct {
			Status models.BookingStatus `json:"status" binding:"required"`
			Note   string               `json:"note"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "status is required")
			return
		}
		booking, err := b.Transition(c.Request.Context(), c.Param("id"), req.Status, actor, req.Note)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(booking, "Booking status updated"))
	}
}

func AssignTechnician(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		var req struct {
			TechnicianID string `json:"technician_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "technician_id is required")
			return
		}
		booking, err := b.Assign(c.Request.Context(), c.Param("id"), req.TechnicianID, actor)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(booking, "Technician assigned"))
	}
}

func BookingReceipt(r *services.ReceiptService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		booking, pdf, err := r.Generate(c.Request.Context(), c.Param("id"), actor)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=receipt-%s.pdf", booking.ID.Hex()))
		c.Data(http.StatusOK, "application/pdf", pdf)
	}
}

func RateBooking(r *services.RatingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		var req services.RateInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request payload")
			return
		}
		rating, err := r.Rate(c.Request.Context(), c.Param("id"), actor, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(rating, "Thanks for your rating"))
	}
}

func GetBookingRating(r *services.RatingService, b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		if _, err := b.Get(c.Request.Context(), c.Param("id"), actor); err != nil {
			respondError(c, err)
			return
		}
		rating, err := r.ForBooking(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(rating, ""))
	}
}
