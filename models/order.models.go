package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderFields are the client-supplied attributes of an order
type OrderFields struct {
	Lat     float64 `bson:"lat" json:"lat"`
	Lng     float64 `bson:"lng" json:"lng"`
	Name    string  `bson:"name" json:"name" validate:"required"`
	Email   string  `bson:"email" json:"email" validate:"required"`
	Phone   string  `bson:"phone" json:"phone" validate:"required"`
	Address string  `bson:"address" json:"address" validate:"required"`
}

// Order is a persisted delivery request owned by a single user
type Order struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"userId" json:"userId"`
	OrderFields `bson:",inline"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}
