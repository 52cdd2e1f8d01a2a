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

const UsersCollection = "users"

// MongoUserStore persists users in the users collection
type MongoUserStore struct {
	collection *mongo.Collection
	timeout    time.Duration
	now        func() time.Time
}

func NewMongoUserStore(collection *mongo.Collection, timeout time.Duration) *MongoUserStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MongoUserStore{collection: collection, timeout: timeout, now: time.Now}
}

// Create inserts user. The unique email index turns a concurrent duplicate into DuplicateEmail.
func (s *MongoUserStore) Create(ctx context.Context, user models.User) (models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, err := s.collection.CountDocuments(ctx, bson.M{"email": user.Email}, options.Count().SetLimit(1))
	if err != nil {
		return models.User{}, apperrors.Store("check email", err)
	}
	if count > 0 {
		return models.User{}, apperrors.DuplicateEmail(nil)
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	user.ID = primitive.NewObjectID()
	user.CreatedAt = now
	user.UpdatedAt = now
	if _, err := s.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.User{}, apperrors.DuplicateEmail(err)
		}
		return models.User{}, apperrors.Store("create user", err)
	}
	return user, nil
}

func (s *MongoUserStore) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *MongoUserStore) FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoUserStore) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var user models.User
	err := s.collection.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, apperrors.Store("find user", err)
	}
	return user, nil
}

// EnsureIndexes creates the unique email index
func (s *MongoUserStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users email index: %w", err)
	}
	return nil
}
