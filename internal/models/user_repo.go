package models

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type UserRepo interface {
	CreateUser(ctx context.Context, user *User) (*User, error)
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, id primitive.ObjectID, fields bson.M) (*User, error)
	ListUsers(ctx context.Context, page Page) ([]*User, int64, error)
	CountUsers(ctx context.Context) (int64, error)
}

func (mdb *MongodbRepo) CreateUser(ctx context.Context, user *User) (*User, error) {
	if err := Validate.Struct(user); err != nil {
		return nil, fmt.Errorf("invalid user: %w", err)
	}
	col, err := mdb.GetCollection(ctx, UsersColName)
	if err != nil {
		return nil, err
	}
	if _, err := col.InsertOne(ctx, user); err != nil {
		return nil, mapWriteErr(err, "user")
	}
	return user, nil
}

func (mdb *MongodbRepo) GetUserByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	col, err := mdb.GetCollection(ctx, UsersColName)
	if err != nil {
		return nil, err
	}
	var user User
	if err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, mapFindErr(err, "user")
	}
	return &user, nil
}

func (mdb *MongodbRepo) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	col, err := mdb.GetCollection(ctx, UsersColName)
	if err != nil {
		return nil, err
	}
	var user User
	if err := col.FindOne(ctx, bson.M{"email": NormalizeEmail(email)}).Decode(&user); err != nil {
		return nil, mapFindErr(err, "user")
	}
	return &user, nil
}

func (mdb *MongodbRepo) UpdateUser(ctx context.Context, id primitive.ObjectID, fields bson.M) (*User, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}
	col, err := mdb.GetCollection(ctx, UsersColName)
	if err != nil {
		return nil, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user User
	err = col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": fields}, opts).Decode(&user)
	if err != nil {
		return nil, mapUpdateErr(err, "user")
	}
	return &user, nil
}

func (mdb *MongodbRepo) ListUsers(ctx context.Context, page Page) ([]*User, int64, error) {
	col, err := mdb.GetCollection(ctx, UsersColName)
	if err != nil {
		return nil, 0, err
	}
	page = page.normalized()

	total, err := col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(page.Offset)).
		SetLimit(int64(page.Limit))
	cursor, err := col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer cursor.Close(ctx)

	users := make([]*User, 0, page.Limit)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, 0, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, total, nil
}

func (mdb *MongodbRepo) CountUsers(ctx context.Context) (int64, error) {
	col, err := mdb.GetCollection(ctx, UsersColName)
	if err != nil {
		return 0, err
	}
	return col.CountDocuments(ctx, bson.M{})
}
