package container

import (
	"log/slog"

	"github.com/joshua-takyi/repairhub/internal/cache"
	"github.com/joshua-takyi/repairhub/internal/config"
	"github.com/joshua-takyi/repairhub/internal/events"
	"github.com/joshua-takyi/repairhub/internal/helpers"
	"github.com/joshua-takyi/repairhub/internal/mailer"
	"github.com/joshua-takyi/repairhub/internal/models"
	"github.com/joshua-takyi/repairhub/internal/realtime"
	"github.com/joshua-takyi/repairhub/internal/services"
)

// Repository is every persistence interface the services need. The Mongo
// repo satisfies it.
type Repository interface {
	models.UserRepo
	models.TechnicianRepo
	models.AdminRepo
	models.BookingRepo
	models.ServiceRepo
	models.OTPRepo
	models.NotificationRepo
	models.RatingRepo
}

// Integrations are the optional outside systems. Nil fields fall back to
// local implementations.
type Integrations struct {
	Mailer   mailer.Mailer
	Cache    cache.Cache
	Events   events.Publisher
	Uploader helpers.ImageUploader
}

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *slog.Logger
	Tokens *helpers.TokenManager
	Hub    *realtime.Hub
	Events events.Publisher

	AuthService         *services.AuthService
	OTPService          *services.OTPService
	UserService         *services.UserService
	TechnicianService   *services.TechnicianService
	BookingService      *services.BookingService
	CatalogService      *services.CatalogService
	NotificationService *services.NotificationService
	RatingService       *services.RatingService
	AdminService        *services.AdminService
	ReceiptService      *services.ReceiptService
	ReminderService     *services.ReminderService
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config, logger *slog.Logger, repo Repository, tokens *helpers.TokenManager, in Integrations) *Container {
	if in.Mailer == nil {
		in.Mailer = mailer.NewLogMailer(logger)
	}
	if in.Cache == nil {
		in.Cache = cache.NopCache{}
	}
	if in.Events == nil {
		in.Events = events.NopPublisher{}
	}

	hub := realtime.NewHub(logger, []string{cfg.FrontendURL}, socketAuthenticator(tokens))

	notifications := services.NewNotificationService(repo, hub, logger)
	bookings := services.NewBookingService(repo, repo, repo, notifications, in.Events, logger)
	otp := services.NewOTPService(repo, repo, repo, bookings, in.Mailer, notifications, tokens,
		services.OTPConfig{TTL: cfg.OTPTTL, Length: cfg.OTPLength}, logger)

	return &Container{
		Config: cfg,
		Logger: logger,
		Tokens: tokens,
		Hub:    hub,
		Events: in.Events,

		AuthService:         services.NewAuthService(repo, repo, repo, tokens, logger),
		OTPService:          otp,
		UserService:         services.NewUserService(repo, logger),
		TechnicianService:   services.NewTechnicianService(repo, logger),
		BookingService:      bookings,
		CatalogService:      services.NewCatalogService(repo, in.Cache, in.Uploader, logger),
		NotificationService: notifications,
		RatingService:       services.NewRatingService(repo, repo, repo, in.Events, logger),
		AdminService:        services.NewAdminService(repo, repo, repo, repo),
		ReceiptService:      services.NewReceiptService(bookings, repo, repo, cfg.FrontendURL, logger),
		ReminderService:     services.NewReminderService(repo, repo, notifications, in.Mailer, logger),
	}
}

func socketAuthenticator(tokens *helpers.TokenManager) realtime.Authenticator {
	return func(token string) (string, bool, error) {
		claims, err := tokens.Validate(token)
		if err != nil {
			return "", false, err
		}
		return claims.UserID(), claims.IsAdmin(), nil
	}
}
