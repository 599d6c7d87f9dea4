package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/joshua-takyi/repairhub/internal/events"
	"github.com/joshua-takyi/repairhub/internal/models"
)

type RatingService struct {
	ratings  models.RatingRepo
	bookings models.BookingRepo
	techs    models.TechnicianRepo
	events   events.Publisher
	logger   *slog.Logger
	now      func() time.Time
}

func NewRatingService(ratings models.RatingRepo, bookings models.BookingRepo, techs models.TechnicianRepo, publisher events.Publisher, logger *slog.Logger) *RatingService {
	return &RatingService{
		ratings:  ratings,
		bookings: bookings,
		techs:    techs,
		events:   publisher,
		logger:   logger,
		now:      time.Now,
	}
}

type RateInput struct {
	Score  int    `json:"score"`
	Review string `json:"review"`
}

// Rate records the customer's single rating of a completed booking and
// refreshes the technician's average.
func (rs *RatingService) Rate(ctx context.Context, bookingID string, actor Actor, in RateInput) (*models.Rating, error) {
	oid, err := models.ParseID(bookingID)
	if err != nil {
		return nil, err
	}
	b, err := rs.bookings.GetBookingByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if !actor.IsCustomer() || b.CustomerID.Hex() != actor.ID {
		return nil, ErrForbidden
	}
	if b.Status != models.BookingCompleted || b.TechnicianID == nil {
		return nil, ErrNotRatable
	}

	rating := &models.Rating{
		BookingID:    b.ID,
		CustomerID:   b.CustomerID,
		TechnicianID: *b.TechnicianID,
		Score:        in.Score,
		Review:       in.Review,
	}
	rating.Sanitize()
	rating.BeforeCreate(rs.now())
	if err := rating.ValidateRating(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	created, err := rs.ratings.CreateRating(ctx, rating)
	if errors.Is(err, models.ErrDuplicate) {
		return nil, ErrAlreadyRated
	}
	if err != nil {
		return nil, err
	}

	rs.refreshTechnicianRating(ctx, created)
	evt := events.RatingEvent{
		RatingID:     created.ID.Hex(),
		BookingID:    created.BookingID.Hex(),
		TechnicianID: created.TechnicianID.Hex(),
		Score:        created.Score,
		At:           created.CreatedAt,
	}
	if err := rs.events.Publish(ctx, events.RatingCreated, evt); err != nil {
		rs.logger.Warn("failed to publish event", "key", events.RatingCreated, "error", err)
	}
	return created, nil
}

func (rs *RatingService) refreshTechnicianRating(ctx context.Context, r *models.Rating) {
	avg, count, err := rs.ratings.TechnicianRatingSummary(ctx, r.TechnicianID)
	if err != nil {
		rs.logger.Error("failed to summarise ratings", "technician_id", r.TechnicianID.Hex(), "error", err)
		return
	}
	avg = math.Round(avg*10) / 10
	if err := rs.techs.SetTechnicianRating(ctx, r.TechnicianID, avg, count); err != nil {
		rs.logger.Error("failed to update technician rating", "technician_id", r.TechnicianID.Hex(), "error", err)
	}
}

func (rs *RatingService) ListForTechnician(ctx context.Context, technicianID string, page models.Page) ([]*models.Rating, int64, error) {
	oid, err := models.ParseID(technicianID)
	if err != nil {
		return nil, 0, err
	}
	return rs.ratings.ListRatingsByTechnician(ctx, oid, page)
}

func (rs *RatingService) ForBooking(ctx context.Context, bookingID string) (*models.Rating, error) {
	oid, err := models.ParseID(bookingID)
	if err != nil {
		return nil, err
	}
	return rs.ratings.GetRatingByBooking(ctx, oid)
}
