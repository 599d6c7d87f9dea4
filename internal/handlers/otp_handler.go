package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/repairhub/internal/models"
	"github.com/joshua-takyi/repairhub/internal/services"
)

func SendOTP(s *services.OTPService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email string `json:"email" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "email is required")
			return
		}
		if err := s.SendLoginOTP(c.Request.Context(), req.Email); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(nil, "OTP sent to your email"))
	}
}

// VerifyOTP signs in with an emailed code. account selects customer (the
// default) or technician.
func VerifyOTP(s *services.OTPService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email   string `json:"email" binding:"required"`
			OTP     string `json:"otp" binding:"required"`
			Account string `json:"account"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "email and otp are required")
			return
		}
		res, err := s.VerifyLogin(c.Request.Context(), req.Email, req.OTP, req.Account)
		if err != nil {
			respondError(c, err)
			return
		}
		setSessionCookie(c, res)
		c.JSON(http.StatusOK, models.SuccessResponse(res, "OTP verified"))
	}
}

// SendBookingOTP emails the customer the code a technician needs at the
// door. The purpose is start or complete.
func SendBookingOTP(s *services.OTPService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		purpose := models.OTPPurpose(c.Param("purpose"))
		if err := s.SendBookingOTP(c.Request.Context(), c.Param("id"), purpose, actor); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(nil, "OTP sent to the customer"))
	}
}

func VerifyBookingOTP(s *services.OTPService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		var req struct {
			OTP string `json:"otp" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "otp is required")
			return
		}
		purpose := models.OTPPurpose(c.Param("purpose"))
		booking, err := s.VerifyBookingOTP(c.Request.Context(), c.Param("id"), purpose, req.OTP, actor)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(booking, "Booking is now "+string(booking.Status)))
	}
}
