package models

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	UsersColName         = "users"
	TechniciansColName   = "technicians"
	AdminsColName        = "admins"
	BookingsColName      = "bookings"
	ServicesColName      = "services"
	OTPsColName          = "otps"
	NotificationsColName = "notifications"
	RatingsColName       = "ratings"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("document already exists")
	ErrInvalidID = errors.New("invalid id")
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("booking_status", func(fl validator.FieldLevel) bool {
		return ValidBookingStatus(BookingStatus(fl.Field().String()))
	})
	return v
}

type MongodbRepo struct {
	mongodbClient *mongo.Client
	dbName        string
}

func MongodbNewRepo(mongodbClient *mongo.Client, dbName string) *MongodbRepo {
	return &MongodbRepo{
		mongodbClient: mongodbClient,
		dbName:        dbName,
	}
}

func (mdb *MongodbRepo) GetCollection(ctx context.Context, colName string) (*mongo.Collection, error) {
	if mdb.mongodbClient == nil {
		return nil, fmt.Errorf("mongodb client is not initialized")
	}
	return mdb.mongodbClient.Database(mdb.dbName).Collection(colName), nil
}

// ParseID converts a hex string into an ObjectID, mapping failures to ErrInvalidID.
func ParseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return oid, nil
}

func mapWriteErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", what, ErrDuplicate)
	}
	return fmt.Errorf("failed to write %s: %w", what, err)
}

func mapFindErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to find %s: %w", what, err)
}

func mapUpdateErr(err error, what string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return mapFindErr(err, what)
	}
	return mapWriteErr(err, what)
}

// Page bounds a list query.
type Page struct {
	Offset int
	Limit  int
}

func (p Page) normalized() Page {
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 20
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
