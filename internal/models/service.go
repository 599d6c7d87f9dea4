package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Service is a repair offering in the catalog, e.g. "Washing machine repair".
type Service struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name" validate:"required,min=2,max=100"`
	Description string             `bson:"description" json:"description" validate:"max=2000"`
	Price       float64            `bson:"price" json:"price" validate:"gte=0"`
	Category    string             `bson:"category" json:"category" validate:"required,max=60"`
	ImageURL    string             `bson:"image_url,omitempty" json:"image_url,omitempty"`
	IsActive    bool               `bson:"is_active" json:"is_active"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

func (s *Service) BeforeCreate(now time.Time) {
	if s.ID.IsZero() {
		s.ID = primitive.NewObjectID()
	}
	s.Name = strings.TrimSpace(s.Name)
	s.Category = strings.TrimSpace(s.Category)
	s.CreatedAt = now
	s.UpdatedAt = now
}

type ServiceRepo interface {
	CreateService(ctx context.Context, service *Service) (*Service, error)
	GetServiceByID(ctx context.Context, id primitive.ObjectID) (*Service, error)
	UpdateService(ctx context.Context, id primitive.ObjectID, fields bson.M) (*Service, error)
	ListServices(ctx context.Context, activeOnly bool) ([]*Service, error)
	CountActiveServices(ctx context.Context) (int64, error)
}

func (mdb *MongodbRepo) CreateService(ctx context.Context, service *Service) (*Service, error) {
	col, err := mdb.GetCollection(ctx, ServicesColName)
	if err != nil {
		return nil, err
	}
	if _, err := col.InsertOne(ctx, service); err != nil {
		return nil, mapWriteErr(err, "service")
	}
	return service, nil
}

func (mdb *MongodbRepo) GetServiceByID(ctx context.Context, id primitive.ObjectID) (*Service, error) {
	col, err := mdb.GetCollection(ctx, ServicesColName)
	if err != nil {
		return nil, err
	}
	var service Service
	if err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&service); err != nil {
		return nil, mapFindErr(err, "service")
	}
	return &service, nil
}

func (mdb *MongodbRepo) UpdateService(ctx context.Context, id primitive.ObjectID, fields bson.M) (*Service, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}
	col, err := mdb.GetCollection(ctx, ServicesColName)
	if err != nil {
		return nil, err
	}
	fields["updated_at"] = time.Now()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var service Service
	err = col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": fields}, opts).Decode(&service)
	if err != nil {
		return nil, mapUpdateErr(err, "service")
	}
	return &service, nil
}

func (mdb *MongodbRepo) ListServices(ctx context.Context, activeOnly bool) ([]*Service, error) {
	col, err := mdb.GetCollection(ctx, ServicesColName)
	if err != nil {
		return nil, err
	}
	query := bson.M{}
	if activeOnly {
		query["is_active"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "category", Value: 1}, {Key: "name", Value: 1}})
	cursor, err := col.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer cursor.Close(ctx)

	services := []*Service{}
	if err := cursor.All(ctx, &services); err != nil {
		return nil, fmt.Errorf("failed to decode services: %w", err)
	}
	return services, nil
}

func (mdb *MongodbRepo) CountActiveServices(ctx context.Context) (int64, error) {
	col, err := mdb.GetCollection(ctx, ServicesColName)
	if err != nil {
		return 0, err
	}
	return col.CountDocuments(ctx, bson.M{"is_active": true})
}
