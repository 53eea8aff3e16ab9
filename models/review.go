package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ReviewRating struct {
	Food     int `json:"food" bson:"food" validate:"required,min=1,max=5"`
	Delivery int `json:"delivery" bson:"delivery" validate:"required,min=1,max=5"`
	Overall  int `json:"overall" bson:"overall" validate:"required,min=1,max=5"`
}

type Review struct {
	ID        primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	User      primitive.ObjectID  `json:"user" bson:"user"`
	Shop      primitive.ObjectID  `json:"shop" bson:"shop"`
	Order     primitive.ObjectID  `json:"order" bson:"order"`
	MenuItem  *primitive.ObjectID `json:"menuItem,omitempty" bson:"menuItem,omitempty"`
	Rating    ReviewRating        `json:"rating" bson:"rating"`
	Title     string              `json:"title,omitempty" bson:"title,omitempty"`
	Review    string              `json:"review,omitempty" bson:"review,omitempty"`
	CreatedAt time.Time           `json:"createdAt" bson:"createdAt"`
}
