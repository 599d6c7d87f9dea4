package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joshua-takyi/repairhub/internal/mailer"
	"github.com/joshua-takyi/repairhub/internal/models"
	"github.com/robfig/cron/v3"
)

const reminderWindow = time.Hour

// ReminderService periodically notifies customers and technicians about
// scheduled bookings starting within the next hour. Each booking is reminded
// once.
type ReminderService struct {
	bookings models.BookingRepo
	users    models.UserRepo
	notifier *NotificationService
	mailer   mailer.Mailer
	logger   *slog.Logger
	cron     *cron.Cron
	now      func() time.Time
}

func NewReminderService(bookings models.BookingRepo, users models.UserRepo, notifier *NotificationService, m mailer.Mailer, logger *slog.Logger) *ReminderService {
	return &ReminderService{
		bookings: bookings,
		users:    users,
		notifier: notifier,
		mailer:   m,
		logger:   logger,
		now:      time.Now,
	}
}

// Start schedules the reminder sweep using a standard five field cron spec.
func (rs *ReminderService) Start(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if n, err := rs.SendDue(ctx); err != nil {
			rs.logger.Error("reminder sweep failed", "error", err)
		} else if n > 0 {
			rs.logger.Info("reminders sent", "count", n)
		}
	}); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}
	rs.cron = c
	c.Start()
	rs.logger.Info("reminder scheduler started", "schedule", spec)
	return nil
}

// Stop waits for a running sweep to finish.
func (rs *ReminderService) Stop() {
	if rs.cron != nil {
		<-rs.cron.Stop().Done()
	}
}

// SendDue reminds every due booking and returns how many were handled.
func (rs *ReminderService) SendDue(ctx context.Context) (int, error) {
	now := rs.now()
	due, err := rs.bookings.ListDueReminders(ctx, now, now.Add(reminderWindow))
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, b := range due {
		if err := rs.bookings.MarkReminderSent(ctx, b.ID); err != nil {
			rs.logger.Error("failed to mark reminder", "booking_id", b.ID.Hex(), "error", err)
			continue
		}
		rs.remind(ctx, b)
		sent++
	}
	return sent, nil
}

func (rs *ReminderService) remind(ctx context.Context, b *models.Booking) {
	message := fmt.Sprintf("Your %s appointment starts at %s.", b.ServiceName, b.Time)
	rs.notifier.notifyQuietly(ctx, b.CustomerID, models.NotificationGeneral, "Upcoming appointment", message, bookingData(b))

	if customer, err := rs.users.GetUserByID(ctx, b.CustomerID); err == nil {
		subject, body := mailer.ReminderEmail(customer.Name, b.ServiceName, b.ScheduledAt)
		if err := rs.mailer.Send(ctx, customer.Email, subject, body); err != nil {
			rs.logger.Warn("failed to email reminder", "booking_id", b.ID.Hex(), "error", err)
		}
	}

	if b.TechnicianID != nil {
		rs.notifier.notifyQuietly(ctx, *b.TechnicianID, models.NotificationGeneral, "Upcoming job",
			fmt.Sprintf("%s at %s, %s.", b.ServiceName, b.Time, b.Address), bookingData(b))
	}
}
