package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/repairhub/internal/middleware"
	"github.com/joshua-takyi/repairhub/internal/models"
	"github.com/joshua-takyi/repairhub/internal/services"
)

// setSessionCookie mirrors the bearer token into an HttpOnly cookie so the
// website can authenticate without touching the token itself.
func setSessionCookie(c *gin.Context, res *services.LoginResult) {
	maxAge := int(time.Until(res.ExpiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, res.Token, maxAge, "/", "", gin.Mode() == gin.ReleaseMode, true)
}

func Signup(a *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.SignupInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request payload")
			return
		}
		res, err := a.Signup(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		setSessionCookie(c, res)
		c.JSON(http.StatusCreated, models.SuccessResponse(res, "Account created"))
	}
}

type credentials struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func Login(a *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentials
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request payload")
			return
		}
		res, err := a.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		setSessionCookie(c, res)
		c.JSON(http.StatusOK, models.SuccessResponse(res, "Logged in"))
	}
}

func AdminLogin(a *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentials
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request payload")
			return
		}
		res, err := a.AdminLogin(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		setSessionCookie(c, res)
		c.JSON(http.StatusOK, models.SuccessResponse(res, "Logged in"))
	}
}

func Me(a *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		profile, err := a.Me(c.Request.Context(), actor)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
			"role":    actor.Role,
			"account": profile,
		}, ""))
	}
}

func Logout() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", gin.Mode() == gin.ReleaseMode, true)
		c.JSON(http.StatusOK, models.SuccessResponse(nil, "Logged out"))
	}
}
