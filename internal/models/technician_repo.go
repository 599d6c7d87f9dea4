package models

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TechnicianRepo interface {
	CreateTechnician(ctx context.Context, tech *Technician) (*Technician, error)
	GetTechnicianByID(ctx context.Context, id primitive.ObjectID) (*Technician, error)
	GetTechnicianByEmail(ctx context.Context, email string) (*Technician, error)
	ListTechnicians(ctx context.Context, filter TechnicianFilter, page Page) ([]*Technician, int64, error)
	UpdateTechnician(ctx context.Context, id primitive.ObjectID, fields bson.M) (*Technician, error)
	SetTechnicianStatus(ctx context.Context, id primitive.ObjectID, status TechnicianStatus) error
	SetTechnicianRating(ctx context.Context, id primitive.ObjectID, average float64, count int) error
	CountTechnicians(ctx context.Context) (int64, error)
}

func (mdb *MongodbRepo) CreateTechnician(ctx context.Context, tech *Technician) (*Technician, error) {
	if err := Validate.Struct(tech); err != nil {
		return nil, fmt.Errorf("invalid technician: %w", err)
	}
	col, err := mdb.GetCollection(ctx, TechniciansColName)
	if err != nil {
		return nil, err
	}
	if _, err := col.InsertOne(ctx, tech); err != nil {
		return nil, mapWriteErr(err, "technician")
	}
	return tech, nil
}

func (mdb *MongodbRepo) GetTechnicianByID(ctx context.Context, id primitive.ObjectID) (*Technician, error) {
	col, err := mdb.GetCollection(ctx, TechniciansColName)
	if err != nil {
		return nil, err
	}
	var tech Technician
	if err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&tech); err != nil {
		return nil, mapFindErr(err, "technician")
	}
	return &tech, nil
}

func (mdb *MongodbRepo) GetTechnicianByEmail(ctx context.Context, email string) (*Technician, error) {
	col, err := mdb.GetCollection(ctx, TechniciansColName)
	if err != nil {
		return nil, err
	}
	var tech Technician
	if err := col.FindOne(ctx, bson.M{"email": NormalizeEmail(email)}).Decode(&tech); err != nil {
		return nil, mapFindErr(err, "technician")
	}
	return &tech, nil
}

func (mdb *MongodbRepo) ListTechnicians(ctx context.Context, filter TechnicianFilter, page Page) ([]*Technician, int64, error) {
	col, err := mdb.GetCollection(ctx, TechniciansColName)
	if err != nil {
		return nil, 0, err
	}
	page = page.normalized()

	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Specialty != "" {
		query["specialty"] = bson.M{"$regex": "^" + regexp.QuoteMeta(filter.Specialty) + "$", "$options": "i"}
	}

	total, err := col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count technicians: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "rating", Value: -1}, {Key: "name", Value: 1}}).
		SetSkip(int64(page.Offset)).
		SetLimit(int64(page.Limit))
	cursor, err := col.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list technicians: %w", err)
	}
	defer cursor.Close(ctx)

	techs := make([]*Technician, 0, page.Limit)
	if err := cursor.All(ctx, &techs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode technicians: %w", err)
	}
	return techs, total, nil
}

func (mdb *MongodbRepo) UpdateTechnician(ctx context.Context, id primitive.ObjectID, fields bson.M) (*Technician, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}
	col, err := mdb.GetCollection(ctx, TechniciansColName)
	if err != nil {
		return nil, err
	}
	fields["updated_at"] = time.Now()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var tech Technician
	if err := col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": fields}, opts).Decode(&tech); err != nil {
		return nil, mapUpdateErr(err, "technician")
	}
	return &tech, nil
}

func (mdb *MongodbRepo) SetTechnicianStatus(ctx context.Context, id primitive.ObjectID, status TechnicianStatus) error {
	col, err := mdb.GetCollection(ctx, TechniciansColName)
	if err != nil {
		return err
	}
	res, err := col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"status": status, "updated_at": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to update technician status: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("technician: %w", ErrNotFound)
	}
	return nil
}

func (mdb *MongodbRepo) SetTechnicianRating(ctx context.Context, id primitive.ObjectID, average float64, count int) error {
	col, err := mdb.GetCollection(ctx, TechniciansColName)
	if err != nil {
		return err
	}
	_, err = col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"rating": average, "rating_count": count, "updated_at": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to update technician rating: %w", err)
	}
	return nil
}

func (mdb *MongodbRepo) CountTechnicians(ctx context.Context) (int64, error) {
	col, err := mdb.GetCollection(ctx, TechniciansColName)
	if err != nil {
		return 0, err
	}
	return col.CountDocuments(ctx, bson.M{})
}
