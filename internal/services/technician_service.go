package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joshua-takyi/repairhub/internal/helpers"
	"github.com/joshua-takyi/repairhub/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

type TechnicianService struct {
	repo   models.TechnicianRepo
	logger *slog.Logger
	now    func() time.Time
}

func NewTechnicianService(repo models.TechnicianRepo, logger *slog.Logger) *TechnicianService {
	return &TechnicianService{repo: repo, logger: logger, now: time.Now}
}

type TechnicianInput struct {
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	Specialty *string `json:"specialty"`
	Status    *string `json:"status"`
}

func (ts *TechnicianService) List(ctx context.Context, status, specialty string, page models.Page) ([]*models.Technician, int64, error) {
	filter := models.TechnicianFilter{
		Status:    models.TechnicianStatus(status),
		Specialty: strings.TrimSpace(specialty),
	}
	if filter.Status != "" && !models.ValidTechnicianStatus(filter.Status) {
		return nil, 0, fmt.Errorf("%w: unknown technician status %q", ErrInvalidInput, status)
	}
	return ts.repo.ListTechnicians(ctx, filter, page)
}

func (ts *TechnicianService) Get(ctx context.Context, id string) (*models.Technician, error) {
	oid, err := models.ParseID(id)
	if err != nil {
		return nil, err
	}
	return ts.repo.GetTechnicianByID(ctx, oid)
}

func (ts *TechnicianService) Create(ctx context.Context, in TechnicianInput) (*models.Technician, error) {
	tech := &models.Technician{}
	if in.Name != nil {
		tech.Name = helpers.StringTrim(*in.Name)
	}
	if in.Email != nil {
		tech.Email = *in.Email
	}
	if in.Phone != nil {
		tech.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Specialty != nil {
		tech.Specialty = *in.Specialty
	}
	if in.Status != nil {
		tech.Status = models.TechnicianStatus(*in.Status)
	}
	tech.BeforeCreate(ts.now())
	if err := models.Validate.Struct(tech); err != nil {
		return nil, invalid(err)
	}

	created, err := ts.repo.CreateTechnician(ctx, tech)
	if errors.Is(err, models.ErrDuplicate) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}
	ts.logger.Info("technician created", "technician_id", created.ID.Hex(), "specialty", created.Specialty)
	return created, nil
}

func (ts *TechnicianService) Update(ctx context.Context, id string, in TechnicianInput) (*models.Technician, error) {
	oid, err := models.ParseID(id)
	if err != nil {
		return nil, err
	}
	fields := bson.M{}
	if in.Name != nil {
		name := helpers.StringTrim(*in.Name)
		if err := models.Validate.Var(name, "required,min=2,max=80"); err != nil {
			return nil, fmt.Errorf("%w: name must be 2 to 80 characters", ErrInvalidInput)
		}
		fields["name"] = name
	}
	if in.Email != nil {
		email := models.NormalizeEmail(*in.Email)
		if err := models.Validate.Var(email, "required,email"); err != nil {
			return nil, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
		}
		fields["email"] = email
	}
	if in.Phone != nil {
		phone := strings.TrimSpace(*in.Phone)
		if err := models.Validate.Var(phone, "omitempty,phone"); err != nil {
			return nil, fmt.Errorf("%w: phone must be 10 to 15 digits", ErrInvalidInput)
		}
		fields["phone"] = phone
	}
	if in.Specialty != nil {
		specialty := strings.TrimSpace(*in.Specialty)
		if specialty == "" {
			return nil, fmt.Errorf("%w: specialty is required", ErrInvalidInput)
		}
		fields["specialty"] = specialty
	}
	if in.Status != nil {
		st := models.TechnicianStatus(*in.Status)
		if !models.ValidTechnicianStatus(st) {
			return nil, fmt.Errorf("%w: unknown technician status %q", ErrInvalidInput, *in.Status)
		}
		fields["status"] = st
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	fields["updated_at"] = ts.now()

	updated, err := ts.repo.UpdateTechnician(ctx, oid, fields)
	if errors.Is(err, models.ErrDuplicate) {
		return nil, ErrEmailTaken
	}
	return updated, err
}

// SetOwnStatus lets a technician go Available or Offline. Busy is managed by
// booking assignment.
func (ts *TechnicianService) SetOwnStatus(ctx context.Context, actor Actor, status string) (*models.Technician, error) {
	if !actor.IsTechnician() {
		return nil, ErrForbidden
	}
	st := models.TechnicianStatus(status)
	if st != models.TechnicianAvailable && st != models.TechnicianOffline {
		return nil, fmt.Errorf("%w: status must be Available or Offline", ErrInvalidInput)
	}
	oid, err := actor.ObjectID()
	if err != nil {
		return nil, ErrForbidden
	}
	if err := ts.repo.SetTechnicianStatus(ctx, oid, st); err != nil {
		return nil, err
	}
	ts.logger.Info("technician status changed", "technician_id", actor.ID, "status", st)
	return ts.repo.GetTechnicianByID(ctx, oid)
}
