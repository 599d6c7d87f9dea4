package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/repairhub/internal/container"
	"github.com/joshua-takyi/repairhub/internal/handlers"
	"github.com/joshua-takyi/repairhub/internal/helpers"
	"github.com/joshua-takyi/repairhub/internal/middleware"
	"github.com/joshua-takyi/repairhub/internal/obs"
)

// SetupRoutes configures all routes with the dependency container
func SetupRoutes(c *container.Container) *gin.Engine {
	if c.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{c.Config.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(c.Logger))
	r.Use(middleware.ErrorHandler(c.Logger))
	r.Use(gin.Recovery())

	auth := middleware.AuthMiddleware(c.Tokens, c.Logger)
	customer := middleware.RequireRole(helpers.RoleCustomer)
	technician := middleware.RequireRole(helpers.RoleTechnician)
	adminOnly := middleware.RequireRole(helpers.RoleAdmin)

	r.GET("/health", handlers.Health(obs.ServiceName))
	r.GET("/ws", handlers.ServeWS(c.Hub))

	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/signup", handlers.Signup(c.AuthService))
		authRoutes.POST("/login", handlers.Login(c.AuthService))
		authRoutes.POST("/admin/login", handlers.AdminLogin(c.AuthService))
		authRoutes.POST("/logout", handlers.Logout())
		authRoutes.GET("/me", auth, handlers.Me(c.AuthService))
	}

	otpRoutes := r.Group("/otp")
	{
		otpRoutes.POST("/send-otp", handlers.SendOTP(c.OTPService))
		otpRoutes.POST("/verify-otp", handlers.VerifyOTP(c.OTPService))
	}

	serviceRoutes := r.Group("/services")
	{
		serviceRoutes.GET("/active", handlers.ListActiveServices(c.CatalogService))
		serviceRoutes.GET("/:id", handlers.GetService(c.CatalogService))
	}

	techRoutes := r.Group("/technicians")
	{
		techRoutes.GET("", handlers.ListTechnicians(c.TechnicianService))
		techRoutes.GET("/:id", handlers.GetTechnician(c.TechnicianService))
		techRoutes.GET("/:id/ratings", handlers.ListTechnicianRatings(c.RatingService))

		own := techRoutes.Group("", auth, technician)
		own.GET("/me", handlers.TechnicianMe(c.TechnicianService))
		own.PATCH("/me/status", handlers.SetTechnicianStatus(c.TechnicianService))
		own.GET("/me/bookings", handlers.ListMyBookings(c.BookingService))
		own.PATCH("/bookings/:id/status", handlers.UpdateBookingStatus(c.BookingService))
		own.POST("/bookings/:id/otp/:purpose", handlers.SendBookingOTP(c.OTPService))
		own.POST("/bookings/:id/otp/:purpose/verify", handlers.VerifyBookingOTP(c.OTPService))
	}

	bookingRoutes := r.Group("/bookings", auth)
	{
		bookingRoutes.POST("", customer, handlers.CreateBooking(c.BookingService))
		bookingRoutes.GET("/my", customer, handlers.ListMyBookings(c.BookingService))
		bookingRoutes.GET("/:id", handlers.GetBooking(c.BookingService))
		bookingRoutes.PATCH("/:id/cancel", handlers.CancelBooking(c.BookingService))
		bookingRoutes.GET("/:id/receipt", handlers.BookingReceipt(c.ReceiptService))
		bookingRoutes.POST("/:id/rating", customer, handlers.RateBooking(c.RatingService))
		bookingRoutes.GET("/:id/rating", handlers.GetBookingRating(c.RatingService, c.BookingService))
	}

	userRoutes := r.Group("/users", auth)
	{
		userRoutes.GET("/:id", handlers.GetUser(c.UserService))
		userRoutes.PATCH("/:id", handlers.UpdateUser(c.UserService))
	}

	notificationRoutes := r.Group("/notifications", auth)
	{
		notificationRoutes.GET("", handlers.ListNotifications(c.NotificationService))
		notificationRoutes.GET("/unread-count", handlers.UnreadNotifications(c.NotificationService))
		notificationRoutes.PATCH("/read-all", handlers.MarkAllNotificationsRead(c.NotificationService))
		notificationRoutes.PATCH("/:id/read", handlers.MarkNotificationRead(c.NotificationService))
	}

	adminRoutes := r.Group("/admin")
	adminRoutes.POST("/login", handlers.AdminLogin(c.AuthService))

	admin := adminRoutes.Group("", auth, adminOnly)
	{
		admin.GET("/stats", handlers.AdminStats(c.AdminService))

		admin.GET("/bookings", handlers.ListBookings(c.BookingService))
		admin.GET("/bookings/:id", handlers.GetBooking(c.BookingService))
		admin.PATCH("/bookings/:id/status", handlers.UpdateBookingStatus(c.BookingService))
		admin.PATCH("/bookings/:id/assign", handlers.AssignTechnician(c.BookingService))

		admin.GET("/technicians", handlers.ListTechnicians(c.TechnicianService))
		admin.POST("/technicians", handlers.CreateTechnician(c.TechnicianService))
		admin.PATCH("/technicians/:id", handlers.UpdateTechnician(c.TechnicianService))

		admin.GET("/users", handlers.ListUsers(c.UserService))
		admin.PATCH("/users/:id/status", handlers.SetUserStatus(c.UserService))

		admin.GET("/services", handlers.ListAllServices(c.CatalogService))
		admin.POST("/services", handlers.CreateService(c.CatalogService))
		admin.PATCH("/services/:id", handlers.UpdateService(c.CatalogService))
		admin.DELETE("/services/:id", handlers.DeactivateService(c.CatalogService))

		admin.POST("/notifications", handlers.SendNotification(c.NotificationService))
	}

	return r
}
