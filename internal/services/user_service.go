package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joshua-takyi/repairhub/internal/helpers"
	"github.com/joshua-takyi/repairhub/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

type UserService struct {
	userRepo models.UserRepo
	logger   *slog.Logger
	now      func() time.Time
}

func NewUserService(userRepo models.UserRepo, logger *slog.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		logger:   logger,
		now:      time.Now,
	}
}

// UpdateUserInput holds the profile fields a customer may change. Nil fields
// are left untouched.
type UpdateUserInput struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

func (us *UserService) GetUser(ctx context.Context, id string, actor Actor) (*models.User, error) {
	if !actor.IsAdmin() && actor.ID != id {
		return nil, ErrForbidden
	}
	oid, err := models.ParseID(id)
	if err != nil {
		return nil, err
	}
	return us.userRepo.GetUserByID(ctx, oid)
}

func (us *UserService) UpdateUser(ctx context.Context, id string, in UpdateUserInput, actor Actor) (*models.User, error) {
	if !actor.IsAdmin() && actor.ID != id {
		return nil, ErrForbidden
	}
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
	if in.Phone != nil {
		phone := strings.TrimSpace(*in.Phone)
		if err := models.Validate.Var(phone, "omitempty,phone"); err != nil {
			return nil, fmt.Errorf("%w: phone must be 10 to 15 digits", ErrInvalidInput)
		}
		fields["phone"] = phone
	}
	if in.Address != nil {
		address := helpers.StringTrim(*in.Address)
		if err := models.Validate.Var(address, "max=300"); err != nil {
			return nil, fmt.Errorf("%w: address is too long", ErrInvalidInput)
		}
		fields["address"] = address
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	fields["updated_at"] = us.now()

	return us.userRepo.UpdateUser(ctx, oid, fields)
}

func (us *UserService) ListUsers(ctx context.Context, page models.Page) ([]*models.User, int64, error) {
	return us.userRepo.ListUsers(ctx, page)
}

func (us *UserService) SetStatus(ctx context.Context, id, status string) (*models.User, error) {
	if status != models.UserStatusActive && status != models.UserStatusBlocked {
		return nil, fmt.Errorf("%w: status must be active or blocked", ErrInvalidInput)
	}
	oid, err := models.ParseID(id)
	if err != nil {
		return nil, err
	}
	user, err := us.userRepo.UpdateUser(ctx, oid, bson.M{"status": status, "updated_at": us.now()})
	if err != nil {
		return nil, err
	}
	us.logger.Info("user status changed", "user_id", id, "status", status)
	return user, nil
}
