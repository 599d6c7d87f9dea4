package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joshua-takyi/repairhub/internal/events"
	"github.com/joshua-takyi/repairhub/internal/helpers"
	"github.com/joshua-takyi/repairhub/internal/models"
	"github.com/joshua-takyi/repairhub/internal/obs"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
)

type BookingService struct {
	bookings models.BookingRepo
	catalog  models.ServiceRepo
	techs    models.TechnicianRepo
	notifier *NotificationService
	events   events.Publisher
	logger   *slog.Logger
	now      func() time.Time
}

func NewBookingService(bookings models.BookingRepo, catalog models.ServiceRepo, techs models.TechnicianRepo, notifier *NotificationService, publisher events.Publisher, logger *slog.Logger) *BookingService {
	return &BookingService{
		bookings: bookings,
		catalog:  catalog,
		techs:    techs,
		notifier: notifier,
		events:   publisher,
		logger:   logger,
		now:      time.Now,
	}
}

type CreateBookingInput struct {
	ServiceID string   `json:"service_id" binding:"required"`
	Date      string   `json:"date" binding:"required"`
	Time      string   `json:"time" binding:"required"`
	Address   string   `json:"address" binding:"required"`
	Notes     string   `json:"notes"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (bs *BookingService) Create(ctx context.Context, actor Actor, in CreateBookingInput) (*models.Booking, error) {
	ctx, span := obs.Tracer().Start(ctx, "BookingService.Create")
	defer span.End()

	if !actor.IsCustomer() {
		return nil, ErrForbidden
	}
	customerID, err := actor.ObjectID()
	if err != nil {
		return nil, ErrForbidden
	}
	serviceID, err := models.ParseID(in.ServiceID)
	if err != nil {
		return nil, ErrServiceUnavailable
	}
	svc, err := bs.catalog.GetServiceByID(ctx, serviceID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrServiceUnavailable
	}
	if err != nil {
		return nil, err
	}
	if !svc.IsActive {
		return nil, ErrServiceUnavailable
	}

	booking := &models.Booking{
		CustomerID:  customerID,
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		Date:        in.Date,
		Time:        in.Time,
		Amount:      svc.Price,
		Address:     helpers.StringTrim(in.Address),
		Notes:       helpers.StringTrim(in.Notes),
	}
	if in.Latitude != nil || in.Longitude != nil {
		if in.Latitude == nil || in.Longitude == nil {
			return nil, fmt.Errorf("%w: latitude and longitude must be sent together", ErrInvalidInput)
		}
		if *in.Latitude < -90 || *in.Latitude > 90 || *in.Longitude < -180 || *in.Longitude > 180 {
			return nil, fmt.Errorf("%w: coordinates out of range", ErrInvalidInput)
		}
		booking.Location = models.NewGeoPoint(*in.Latitude, *in.Longitude)
	}

	now := bs.now()
	if err := booking.BeforeCreate(now, actor.ID); err != nil {
		return nil, invalid(err)
	}
	if err := models.Validate.Struct(booking); err != nil {
		return nil, invalid(err)
	}
	if !booking.ScheduledAt.After(now) {
		return nil, fmt.Errorf("%w: booking time must be in the future", ErrInvalidInput)
	}

	created, err := bs.bookings.CreateBooking(ctx, booking)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("booking.id", created.ID.Hex()))

	bs.publish(ctx, events.BookingCreated, created, "", actor.Role)
	bs.notifier.notifyQuietly(ctx, created.CustomerID, models.NotificationGeneral,
		"Booking received",
		fmt.Sprintf("We received your %s booking for %s at %s.", created.ServiceName, created.Date, created.Time),
		bookingData(created),
	)
	return created, nil
}

// Get returns a booking visible to the actor: its customer, its assigned
// technician or an admin.
func (bs *BookingService) Get(ctx context.Context, id string, actor Actor) (*models.Booking, error) {
	b, err := bs.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(b, actor) {
		return nil, ErrForbidden
	}
	return b, nil
}

func (bs *BookingService) Transition(ctx context.Context, id string, to models.BookingStatus, actor Actor, note string) (*models.Booking, error) {
	ctx, span := obs.Tracer().Start(ctx, "BookingService.Transition")
	defer span.End()
	span.SetAttributes(attribute.String("booking.id", id), attribute.String("booking.to", string(to)))

	b, err := bs.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeTransition(b, to, actor); err != nil {
		return nil, err
	}
	updated, err := bs.apply(ctx, b, to, actor, note)
	if err != nil {
		span.RecordError(err)
	}
	return updated, err
}

func (bs *BookingService) Cancel(ctx context.Context, id string, actor Actor, reason string) (*models.Booking, error) {
	return bs.Transition(ctx, id, models.BookingCancelled, actor, reason)
}

// apply writes a transition that the caller has already authorized and runs
// its side effects.
func (bs *BookingService) apply(ctx context.Context, b *models.Booking, to models.BookingStatus, actor Actor, note string) (*models.Booking, error) {
	if err := models.CanTransition(b.Status, to); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	if (to == models.BookingInProgress || to == models.BookingCompleted) && b.TechnicianID == nil {
		return nil, ErrNotAssigned
	}

	change := actor.change(b.Status, to, helpers.StringTrim(note), bs.now())
	updated, err := bs.bookings.UpdateBookingStatus(ctx, b.ID, b.Status, change)
	if errors.Is(err, models.ErrStatusConflict) {
		return nil, ErrBookingConflict
	}
	if err != nil {
		return nil, err
	}

	bs.logger.Info("booking status changed",
		"booking_id", updated.ID.Hex(),
		"from", change.From,
		"to", change.To,
		"actor_role", actor.Role,
	)

	if to.IsTerminal() && updated.TechnicianID != nil {
		bs.releaseTechnician(ctx, *updated.TechnicianID)
	}
	bs.publish(ctx, events.BookingStatusChanged, updated, change.From, actor.Role)
	bs.notifier.notifyQuietly(ctx, updated.CustomerID, models.NotificationBookingUpdate,
		"Booking "+string(to),
		fmt.Sprintf("Your %s booking for %s at %s is now %s.", updated.ServiceName, updated.Date, updated.Time, to),
		bookingData(updated),
	)
	if to == models.BookingCancelled && updated.TechnicianID != nil && !actor.IsTechnician() {
		bs.notifier.notifyQuietly(ctx, *updated.TechnicianID, models.NotificationBookingUpdate,
			"Job cancelled",
			fmt.Sprintf("The %s job on %s at %s was cancelled.", updated.ServiceName, updated.Date, updated.Time),
			bookingData(updated),
		)
	}
	return updated, nil
}

// Assign puts a technician on a booking. A Pending booking becomes Scheduled
// in the same write.
func (bs *BookingService) Assign(ctx context.Context, id, technicianID string, actor Actor) (*models.Booking, error) {
	ctx, span := obs.Tracer().Start(ctx, "BookingService.Assign")
	defer span.End()

	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	b, err := bs.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: booking is already %s", ErrInvalidTransition, b.Status)
	}
	techOID, err := models.ParseID(technicianID)
	if err != nil {
		return nil, err
	}
	tech, err := bs.techs.GetTechnicianByID(ctx, techOID)
	if err != nil {
		return nil, err
	}
	if tech.Status == models.TechnicianOffline {
		return nil, ErrTechnicianUnavailable
	}

	var change *models.StatusChange
	if b.Status == models.BookingPending {
		c := actor.change(models.BookingPending, models.BookingScheduled, "technician assigned", bs.now())
		change = &c
	}
	updated, err := bs.bookings.AssignTechnician(ctx, b.ID, tech.ID, change)
	if errors.Is(err, models.ErrStatusConflict) {
		return nil, ErrBookingConflict
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if b.TechnicianID != nil && *b.TechnicianID != tech.ID {
		bs.releaseTechnician(ctx, *b.TechnicianID)
	}
	if err := bs.techs.SetTechnicianStatus(ctx, tech.ID, models.TechnicianBusy); err != nil {
		bs.logger.Error("failed to mark technician busy", "technician_id", tech.ID.Hex(), "error", err)
	}

	bs.logger.Info("technician assigned", "booking_id", updated.ID.Hex(), "technician_id", tech.ID.Hex())
	from := models.BookingStatus("")
	if change != nil {
		from = change.From
	}
	bs.publish(ctx, events.BookingAssigned, updated, from, actor.Role)
	bs.notifier.notifyQuietly(ctx, updated.CustomerID, models.NotificationBookingUpdate,
		"Technician assigned",
		fmt.Sprintf("%s will handle your %s booking on %s at %s.", tech.Name, updated.ServiceName, updated.Date, updated.Time),
		bookingData(updated),
	)
	bs.notifier.notifyQuietly(ctx, tech.ID, models.NotificationBookingUpdate,
		"New job assigned",
		fmt.Sprintf("You have a %s job on %s at %s, %s.", updated.ServiceName, updated.Date, updated.Time, updated.Address),
		bookingData(updated),
	)
	return updated, nil
}

func (bs *BookingService) ListForCustomer(ctx context.Context, actor Actor, status models.BookingStatus, page models.Page) ([]*models.Booking, int64, error) {
	customerID, err := actor.ObjectID()
	if err != nil || !actor.IsCustomer() {
		return nil, 0, ErrForbidden
	}
	return bs.bookings.ListBookings(ctx, models.BookingFilter{CustomerID: customerID, Status: status}, page)
}

func (bs *BookingService) ListForTechnician(ctx context.Context, actor Actor, status models.BookingStatus, page models.Page) ([]*models.Booking, int64, error) {
	techID, err := actor.ObjectID()
	if err != nil || !actor.IsTechnician() {
		return nil, 0, ErrForbidden
	}
	return bs.bookings.ListBookings(ctx, models.BookingFilter{TechnicianID: techID, Status: status}, page)
}

func (bs *BookingService) List(ctx context.Context, filter models.BookingFilter, page models.Page) ([]*models.Booking, int64, error) {
	if filter.Status != "" && !models.ValidBookingStatus(filter.Status) {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
	}
	return bs.bookings.ListBookings(ctx, filter, page)
}

func (bs *BookingService) load(ctx context.Context, id string) (*models.Booking, error) {
	oid, err := models.ParseID(id)
	if err != nil {
		return nil, err
	}
	return bs.bookings.GetBookingByID(ctx, oid)
}

func (bs *BookingService) releaseTechnician(ctx context.Context, id primitive.ObjectID) {
	if err := bs.techs.SetTechnicianStatus(ctx, id, models.TechnicianAvailable); err != nil {
		bs.logger.Error("failed to release technician", "technician_id", id.Hex(), "error", err)
	}
}

func (bs *BookingService) publish(ctx context.Context, key string, b *models.Booking, from models.BookingStatus, actorRole string) {
	evt := events.BookingEvent{
		BookingID:  b.ID.Hex(),
		CustomerID: b.CustomerID.Hex(),
		From:       string(from),
		Status:     string(b.Status),
		ActorRole:  actorRole,
		At:         bs.now(),
	}
	if b.TechnicianID != nil {
		evt.TechnicianID = b.TechnicianID.Hex()
	}
	if err := bs.events.Publish(ctx, key, evt); err != nil {
		bs.logger.Warn("failed to publish event", "key", key, "booking_id", evt.BookingID, "error", err)
	}
}

func canView(b *models.Booking, actor Actor) bool {
	switch actor.Role {
	case helpers.RoleAdmin:
		return true
	case helpers.RoleCustomer:
		return b.CustomerID.Hex() == actor.ID
	case helpers.RoleTechnician:
		return b.TechnicianID != nil && b.TechnicianID.Hex() == actor.ID
	}
	return false
}

// authorizeTransition checks who may request a move, not whether the move
// itself is legal.
func authorizeTransition(b *models.Booking, to models.BookingStatus, actor Actor) error {
	switch actor.Role {
	case helpers.RoleAdmin:
		return nil
	case helpers.RoleTechnician:
		if b.TechnicianID == nil || b.TechnicianID.Hex() != actor.ID {
			return ErrForbidden
		}
		switch to {
		case models.BookingInProgress, models.BookingCompleted, models.BookingCancelled:
			return nil
		}
		return ErrForbidden
	case helpers.RoleCustomer:
		if b.CustomerID.Hex() != actor.ID || to != models.BookingCancelled {
			return ErrForbidden
		}
		if b.Status != models.BookingPending && b.Status != models.BookingScheduled {
			return fmt.Errorf("%w: work has already started", ErrInvalidTransition)
		}
		return nil
	}
	return ErrForbidden
}

func bookingData(b *models.Booking) map[string]any {
	return map[string]any{
		"booking_id": b.ID.Hex(),
		"status":     string(b.Status),
	}
}
