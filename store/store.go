// Package store persists users and orders in MongoDB.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"gravecare-api/models"
)

// ErrNotFound is returned when a lookup matches no document.
var ErrNotFound = errors.New("store: not found")

// OrderStore owns order persistence.
type OrderStore interface {
	// Create validates and durably inserts an order owned by ownerID.
	Create(ctx context.Context, ownerID primitive.ObjectID, fields models.OrderFields) (models.Order, error)
	// ListByOwner returns the owner's orders, newest first.
	ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Order, error)
}

// UserStore owns user persistence. Create fails with a DuplicateEmail
// error when the email is taken.
type UserStore interface {
	Create(ctx context.Context, user models.User) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
}
