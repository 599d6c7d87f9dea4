package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joshua-takyi/repairhub/internal/cache"
	"github.com/joshua-takyi/repairhub/internal/helpers"
	"github.com/joshua-takyi/repairhub/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

const activeServicesTTL = 10 * time.Minute

// CatalogService manages the repair services customers can book.
type CatalogService struct {
	repo     models.ServiceRepo
	cache    cache.Cache
	uploader helpers.ImageUploader
	logger   *slog.Logger
	now      func() time.Time
}

func NewCatalogService(repo models.ServiceRepo, c cache.Cache, uploader helpers.ImageUploader, logger *slog.Logger) *CatalogService {
	return &CatalogService{repo: repo, cache: c, uploader: uploader, logger: logger, now: time.Now}
}

type ServiceInput struct {
	Name        *string  `json:"name" form:"name"`
	Description *string  `json:"description" form:"description"`
	Price       *float64 `json:"price" form:"price"`
	Category    *string  `json:"category" form:"category"`
	ImageURL    *string  `json:"image_url" form:"image_url"`
	IsActive    *bool    `json:"is_active" form:"is_active"`
}

// ListActive serves the public catalog, from cache when possible.
func (cs *CatalogService) ListActive(ctx context.Context) ([]*models.Service, error) {
	var cached []*models.Service
	hit, err := cs.cache.Get(ctx, cache.ActiveServicesKey, &cached)
	if err != nil {
		cs.logger.Warn("active services cache read failed", "error", err)
	}
	if hit {
		return cached, nil
	}

	services, err := cs.repo.ListServices(ctx, true)
	if err != nil {
		return nil, err
	}
	if err := cs.cache.Set(ctx, cache.ActiveServicesKey, services, activeServicesTTL); err != nil {
		cs.logger.Warn("active services cache write failed", "error", err)
	}
	return services, nil
}

func (cs *CatalogService) ListAll(ctx context.Context) ([]*models.Service, error) {
	return cs.repo.ListServices(ctx, false)
}

func (cs *CatalogService) Get(ctx context.Context, id string) (*models.Service, error) {
	oid, err := models.ParseID(id)
	if err != nil {
		return nil, err
	}
	return cs.repo.GetServiceByID(ctx, oid)
}

// Create adds a service. image may be nil; otherwise it is uploaded and
// replaces any image_url in the input.
func (cs *CatalogService) Create(ctx context.Context, in ServiceInput, image any) (*models.Service, error) {
	svc := &models.Service{IsActive: true}
	if in.Name != nil {
		svc.Name = helpers.StringTrim(*in.Name)
	}
	if in.Description != nil {
		svc.Description = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		svc.Price = *in.Price
	}
	if in.Category != nil {
		svc.Category = helpers.StringTrim(*in.Category)
	}
	if in.ImageURL != nil {
		svc.ImageURL = strings.TrimSpace(*in.ImageURL)
	}
	if in.IsActive != nil {
		svc.IsActive = *in.IsActive
	}
	svc.BeforeCreate(cs.now())
	if err := models.Validate.Struct(svc); err != nil {
		return nil, invalid(err)
	}

	if image != nil {
		url, err := cs.upload(ctx, image)
		if err != nil {
			return nil, err
		}
		svc.ImageURL = url
	}

	created, err := cs.repo.CreateService(ctx, svc)
	if err != nil {
		return nil, err
	}
	cs.invalidate(ctx)
	cs.logger.Info("service created", "service_id", created.ID.Hex(), "name", created.Name)
	return created, nil
}

func (cs *CatalogService) Update(ctx context.Context, id string, in ServiceInput, image any) (*models.Service, error) {
	oid, err := models.ParseID(id)
	if err != nil {
		return nil, err
	}

	fields := bson.M{}
	if in.Name != nil {
		name := helpers.StringTrim(*in.Name)
		if err := models.Validate.Var(name, "required,min=2,max=100"); err != nil {
			return nil, fmt.Errorf("%w: name must be 2 to 100 characters", ErrInvalidInput)
		}
		fields["name"] = name
	}
	if in.Description != nil {
		fields["description"] = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		if *in.Price < 0 {
			return nil, fmt.Errorf("%w: price cannot be negative", ErrInvalidInput)
		}
		fields["price"] = *in.Price
	}
	if in.Category != nil {
		category := helpers.StringTrim(*in.Category)
		if category == "" {
			return nil, fmt.Errorf("%w: category is required", ErrInvalidInput)
		}
		fields["category"] = category
	}
	if in.ImageURL != nil {
		fields["image_url"] = strings.TrimSpace(*in.ImageURL)
	}
	if in.IsActive != nil {
		fields["is_active"] = *in.IsActive
	}
	if image != nil {
		url, err := cs.upload(ctx, image)
		if err != nil {
			return nil, err
		}
		fields["image_url"] = url
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	fields["updated_at"] = cs.now()

	updated, err := cs.repo.UpdateService(ctx, oid, fields)
	if err != nil {
		return nil, err
	}
	cs.invalidate(ctx)
	return updated, nil
}

// Deactivate hides a service from the catalog without deleting it.
func (cs *CatalogService) Deactivate(ctx context.Context, id string) (*models.Service, error) {
	inactive := false
	return cs.Update(ctx, id, ServiceInput{IsActive: &inactive}, nil)
}

func (cs *CatalogService) upload(ctx context.Context, image any) (string, error) {
	if cs.uploader == nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, helpers.ErrUploadsDisabled)
	}
	url, err := cs.uploader.UploadImage(ctx, image, helpers.ServiceImagesFolder)
	if errors.Is(err, helpers.ErrUploadsDisabled) {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return url, err
}

func (cs *CatalogService) invalidate(ctx context.Context) {
	if err := cs.cache.Delete(ctx, cache.ActiveServicesKey); err != nil {
		cs.logger.Warn("active services cache invalidation failed", "error", err)
	}
}
