package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gravecare-api/apperrors"
	"gravecare-api/models"
)

const (
	OrdersCollection = "orders"

	codeNamespaceNotFound         = 26
	codeDocumentValidationFailure = 121
)

// MongoOrderStore persists orders in the orders collection
type MongoOrderStore struct {
	collection *mongo.Collection
	timeout    time.Duration
	now        func() time.Time
}

// NewMongoOrderStore creates a MongoOrderStore. timeout bounds each store call.
func NewMongoOrderStore(collection *mongo.Collection, timeout time.Duration) *MongoOrderStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MongoOrderStore{collection: collection, timeout: timeout, now: time.Now}
}

// Create validates fields and inserts the order. It returns once the write is acknowledged.
func (s *MongoOrderStore) Create(ctx context.Context, ownerID primitive.ObjectID, fields models.OrderFields) (models.Order, error) {
	if ownerID.IsZero() {
		return models.Order{}, apperrors.Validation(map[string]string{"userId": "is required"}, nil)
	}
	if err := validateOrder(fields); err != nil {
		return models.Order{}, err
	}

	// Mongo stores millisecond precision; truncate so the returned record matches a later read.
	now := s.now().UTC().Truncate(time.Millisecond)
	order := models.Order{
		ID:          primitive.NewObjectID(),
		UserID:      ownerID,
		OrderFields: fields,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.collection.InsertOne(ctx, order); err != nil {
		if hasWriteErrorCode(err, codeDocumentValidationFailure) {
			return models.Order{}, apperrors.Validation(map[string]string{"order": "rejected by collection schema"}, err)
		}
		return models.Order{}, apperrors.Store("create order", err)
	}
	return order, nil
}

// ListByOwner retrieves all orders of ownerID sorted by creation time, newest first
func (s *MongoOrderStore) ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.collection.Find(ctx, bson.M{"userId": ownerID}, opts)
	if err != nil {
		return nil, apperrors.Store("list orders", err)
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	for cursor.Next(ctx) {
		var order models.Order
		if err := cursor.Decode(&order); err != nil {
			return nil, apperrors.Store("decode order", err)
		}
		orders = append(orders, order)
	}
	if err := cursor.Err(); err != nil {
		return nil, apperrors.Store("list orders", err)
	}
	return orders, nil
}

// EnsureIndexes creates the owner listing index and installs the collection schema
func (s *MongoOrderStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create orders index: %w", err)
	}

	db := s.collection.Database()
	name := s.collection.Name()
	validator := orderSchema()
	err = db.RunCommand(ctx, bson.D{{Key: "collMod", Value: name}, {Key: "validator", Value: validator}}).Err()
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == codeNamespaceNotFound {
		err = db.CreateCollection(ctx, name, options.CreateCollection().SetValidator(validator))
	}
	if err != nil {
		return fmt.Errorf("install orders schema: %w", err)
	}
	return nil
}

func orderSchema() bson.M {
	number := bson.A{"double", "int", "long", "decimal"}
	text := bson.M{"bsonType": "string", "minLength": 1}
	return bson.M{"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": bson.A{"userId", "lat", "lng", "name", "email", "phone", "address", "createdAt", "updatedAt"},
		"properties": bson.M{
			"userId":    bson.M{"bsonType": "objectId"},
			"lat":       bson.M{"bsonType": number},
			"lng":       bson.M{"bsonType": number},
			"name":      text,
			"email":     text,
			"phone":     text,
			"address":   text,
			"createdAt": bson.M{"bsonType": "date"},
			"updatedAt": bson.M{"bsonType": "date"},
		},
	}}
}

func hasWriteErrorCode(err error, code int) bool {
	var we mongo.WriteException
	if !errors.As(err, &we) {
		return false
	}
	for _, e := range we.WriteErrors {
		if e.Code == code {
			return true
		}
	}
	return false
}
