package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joshua-takyi/repairhub/internal/helpers"
	"github.com/joshua-takyi/repairhub/internal/mailer"
	"github.com/joshua-takyi/repairhub/internal/models"
	"github.com/joshua-takyi/repairhub/internal/obs"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
)

type OTPConfig struct {
	TTL    time.Duration
	Length int
}

type OTPService struct {
	otps     models.OTPRepo
	users    models.UserRepo
	techs    models.TechnicianRepo
	bookings *BookingService
	mailer   mailer.Mailer
	notifier *NotificationService
	tokens   *helpers.TokenManager
	cfg      OTPConfig
	logger   *slog.Logger
	now      func() time.Time
}

func NewOTPService(
	otps models.OTPRepo,
	users models.UserRepo,
	techs models.TechnicianRepo,
	bookings *BookingService,
	m mailer.Mailer,
	notifier *NotificationService,
	tokens *helpers.TokenManager,
	cfg OTPConfig,
	logger *slog.Logger,
) *OTPService {
	return &OTPService{
		otps:     otps,
		users:    users,
		techs:    techs,
		bookings: bookings,
		mailer:   m,
		notifier: notifier,
		tokens:   tokens,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// LoginResult is returned by a successful verification.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      string    `json:"role"`
	Account   any       `json:"account"`
}

func (s *OTPService) SendLoginOTP(ctx context.Context, email string) error {
	ctx, span := obs.Tracer().Start(ctx, "OTPService.SendLoginOTP")
	defer span.End()

	email = models.NormalizeEmail(email)
	if err := models.Validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}

	code, err := s.issue(ctx, email, models.OTPLogin, nil)
	if err != nil {
		span.RecordError(err)
		return err
	}
	subject, body := mailer.OTPEmail(code, string(models.OTPLogin), s.cfg.TTL)
	if err := s.mailer.Send(ctx, email, subject, body); err != nil {
		span.RecordError(err)
		s.logger.Error("failed to deliver login OTP", "email", email, "error", err)
		return ErrOTPSendFailed
	}
	s.logger.Info("login OTP sent", "email", email)
	return nil
}

// VerifyLogin checks the latest login code for the address and signs in as a
// customer (created on first login) or an existing technician.
func (s *OTPService) VerifyLogin(ctx context.Context, email, code, account string) (*LoginResult, error) {
	ctx, span := obs.Tracer().Start(ctx, "OTPService.VerifyLogin")
	defer span.End()

	email = models.NormalizeEmail(email)
	if account == "" {
		account = helpers.RoleCustomer
	}
	if account != helpers.RoleCustomer && account != helpers.RoleTechnician {
		return nil, fmt.Errorf("%w: account must be customer or technician", ErrInvalidInput)
	}
	if err := s.consume(ctx, email, models.OTPLogin, nil, code); err != nil {
		s.logger.Info("login OTP rejected", "email", email)
		return nil, err
	}

	var (
		subject string
		profile any
	)
	switch account {
	case helpers.RoleTechnician:
		tech, err := s.techs.GetTechnicianByEmail(ctx, email)
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		if err != nil {
			return nil, err
		}
		subject, profile = tech.ID.Hex(), tech
	default:
		user, err := s.findOrCreateCustomer(ctx, email)
		if err != nil {
			return nil, err
		}
		if user.IsBlocked() {
			return nil, ErrAccountBlocked
		}
		subject, profile = user.ID.Hex(), user
	}

	token, exp, err := s.tokens.Issue(subject, email, account)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("auth.role", account))
	s.logger.Info("OTP login succeeded", "email", email, "role", account)
	return &LoginResult{Token: token, ExpiresAt: exp, Role: account, Account: profile}, nil
}

// SendBookingOTP emails the booking's customer a code the technician needs to
// start or complete the job.
func (s *OTPService) SendBookingOTP(ctx context.Context, bookingID string, purpose models.OTPPurpose, actor Actor) error {
	ctx, span := obs.Tracer().Start(ctx, "OTPService.SendBookingOTP")
	defer span.End()
	span.SetAttributes(attribute.String("booking.id", bookingID), attribute.String("otp.purpose", string(purpose)))

	b, customer, err := s.bookingForOTP(ctx, bookingID, purpose, actor)
	if err != nil {
		return err
	}

	code, err := s.issue(ctx, customer.Email, purpose, &b.ID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	subject, body := mailer.OTPEmail(code, string(purpose), s.cfg.TTL)
	if err := s.mailer.Send(ctx, customer.Email, subject, body); err != nil {
		span.RecordError(err)
		s.logger.Error("failed to deliver booking OTP", "booking_id", bookingID, "purpose", purpose, "error", err)
		return ErrOTPSendFailed
	}

	verb := "start"
	if purpose == models.OTPComplete {
		verb = "complete"
	}
	s.notifier.notifyQuietly(ctx, customer.ID, models.NotificationOTP,
		"Your "+verb+" code",
		fmt.Sprintf("Share code %s with your technician to %s the %s job. It expires in %d minutes.", code, verb, b.ServiceName, int(s.cfg.TTL.Minutes())),
		map[string]any{"booking_id": b.ID.Hex(), "purpose": string(purpose)},
	)
	s.logger.Info("booking OTP sent", "booking_id", bookingID, "purpose", purpose)
	return nil
}

// VerifyBookingOTP checks the customer's code and moves the booking to In
// Progress (start) or Completed (complete).
func (s *OTPService) VerifyBookingOTP(ctx context.Context, bookingID string, purpose models.OTPPurpose, code string, actor Actor) (*models.Booking, error) {
	ctx, span := obs.Tracer().Start(ctx, "OTPService.VerifyBookingOTP")
	defer span.End()

	b, customer, err := s.bookingForOTP(ctx, bookingID, purpose, actor)
	if err != nil {
		return nil, err
	}
	if err := s.consume(ctx, customer.Email, purpose, &b.ID, code); err != nil {
		s.logger.Info("booking OTP rejected", "booking_id", bookingID, "purpose", purpose)
		return nil, err
	}
	return s.bookings.apply(ctx, b, targetStatus(purpose), actor, "verified with customer code")
}

func (s *OTPService) bookingForOTP(ctx context.Context, bookingID string, purpose models.OTPPurpose, actor Actor) (*models.Booking, *models.User, error) {
	if purpose != models.OTPStart && purpose != models.OTPComplete {
		return nil, nil, fmt.Errorf("%w: purpose must be start or complete", ErrInvalidInput)
	}
	b, err := s.bookings.load(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if !actor.IsAdmin() && !(actor.IsTechnician() && b.TechnicianID != nil && b.TechnicianID.Hex() == actor.ID) {
		return nil, nil, ErrForbidden
	}
	if b.TechnicianID == nil {
		return nil, nil, ErrNotAssigned
	}
	if err := models.CanTransition(b.Status, targetStatus(purpose)); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	customer, err := s.users.GetUserByID(ctx, b.CustomerID)
	if err != nil {
		return nil, nil, err
	}
	return b, customer, nil
}

func (s *OTPService) issue(ctx context.Context, email string, purpose models.OTPPurpose, bookingID *primitive.ObjectID) (string, error) {
	code, err := helpers.GenerateOTP(s.cfg.Length)
	if err != nil {
		return "", err
	}
	now := s.now()
	otp := &models.OTP{
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		BookingID: bookingID,
		ExpiresAt: now.Add(s.cfg.TTL),
		CreatedAt: now,
	}
	if err := models.Validate.Struct(otp); err != nil {
		return "", invalid(err)
	}
	if _, err := s.otps.CreateOTP(ctx, otp); err != nil {
		return "", fmt.Errorf("failed to store otp: %w", err)
	}
	return code, nil
}

// consume accepts the code only if it matches the most recent record for the
// address and that record is unused and unexpired. A match is stamped used.
func (s *OTPService) consume(ctx context.Context, email string, purpose models.OTPPurpose, bookingID *primitive.ObjectID, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrInvalidOTP
	}
	otp, err := s.otps.FindLatestOTP(ctx, email, purpose, bookingID)
	if errors.Is(err, models.ErrNotFound) {
		return ErrInvalidOTP
	}
	if err != nil {
		return err
	}

	now := s.now()
	if otp.IsUsed() || otp.IsExpired(now) || !otp.Matches(code) {
		return ErrInvalidOTP
	}
	if err := s.otps.MarkOTPUsed(ctx, otp.ID, now); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return ErrInvalidOTP
		}
		return err
	}
	return nil
}

func (s *OTPService) findOrCreateCustomer(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	user = &models.User{Name: displayName(email), Email: email}
	user.BeforeCreate(s.now())
	created, err := s.users.CreateUser(ctx, user)
	if errors.Is(err, models.ErrDuplicate) {
		return s.users.GetUserByEmail(ctx, email)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("customer created on first login", "user_id", created.ID.Hex())
	return created, nil
}

func targetStatus(purpose models.OTPPurpose) models.BookingStatus {
	if purpose == models.OTPComplete {
		return models.BookingCompleted
	}
	return models.BookingInProgress
}

func displayName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	local = strings.TrimSpace(local)
	if len(local) < 2 {
		return "Customer"
	}
	if len(local) > 80 {
		local = local[:80]
	}
	return local
}
