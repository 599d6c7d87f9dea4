package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Admin struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name" validate:"required"`
	Email     string             `bson:"email" json:"email" validate:"required,email"`
	Password  string             `bson:"password" json:"-"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

type AdminRepo interface {
	CreateAdmin(ctx context.Context, admin *Admin) (*Admin, error)
	GetAdminByEmail(ctx context.Context, email string) (*Admin, error)
	GetAdminByID(ctx context.Context, id primitive.ObjectID) (*Admin, error)
	CountAdmins(ctx context.Context) (int64, error)
}

func (mdb *MongodbRepo) CreateAdmin(ctx context.Context, admin *Admin) (*Admin, error) {
	col, err := mdb.GetCollection(ctx, AdminsColName)
	if err != nil {
		return nil, err
	}
	if admin.ID.IsZero() {
		admin.ID = primitive.NewObjectID()
	}
	admin.Email = NormalizeEmail(admin.Email)
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = time.Now()
	}
	if _, err := col.InsertOne(ctx, admin); err != nil {
		return nil, mapWriteErr(err, "admin")
	}
	return admin, nil
}

func (mdb *MongodbRepo) GetAdminByEmail(ctx context.Context, email string) (*Admin, error) {
	col, err := mdb.GetCollection(ctx, AdminsColName)
	if err != nil {
		return nil, err
	}
	var admin Admin
	if err := col.FindOne(ctx, bson.M{"email": NormalizeEmail(email)}).Decode(&admin); err != nil {
		return nil, mapFindErr(err, "admin")
	}
	return &admin, nil
}

func (mdb *MongodbRepo) GetAdminByID(ctx context.Context, id primitive.ObjectID) (*Admin, error) {
	col, err := mdb.GetCollection(ctx, AdminsColName)
	if err != nil {
		return nil, err
	}
	var admin Admin
	if err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&admin); err != nil {
		return nil, mapFindErr(err, "admin")
	}
	return &admin, nil
}

func (mdb *MongodbRepo) CountAdmins(ctx context.Context) (int64, error) {
	col, err := mdb.GetCollection(ctx, AdminsColName)
	if err != nil {
		return 0, err
	}
	return col.CountDocuments(ctx, bson.M{})
}
