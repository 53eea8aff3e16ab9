package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ShopCategories = []string{
	"Fast Food", "Restaurant", "Cafe", "Bakery", "Pizza", "Chinese", "Indian",
	"Italian", "Mexican", "Thai", "Japanese", "American", "Desserts",
	"Healthy", "Vegetarian", "Other",
}

type DeliveryTime struct {
	Min int `json:"min" bson:"min"`
	Max int `json:"max" bson:"max"`
}

// RatingSums holds the running totals the shop averages are derived from.
type RatingSums struct {
	Food     float64 `json:"-" bson:"food"`
	Delivery float64 `json:"-" bson:"delivery"`
	Overall  float64 `json:"-" bson:"overall"`
}

type ShopRating struct {
	Average  float64    `json:"average" bson:"average"`
	Food     float64    `json:"food" bson:"food"`
	Delivery float64    `json:"delivery" bson:"delivery"`
	Count    int        `json:"count" bson:"count"`
	Sums     RatingSums `json:"-" bson:"sums"`
}

type Shop struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Owner        primitive.ObjectID `json:"owner" bson:"owner"`
	Name         string             `json:"name" bson:"name"`
	Slug         string             `json:"slug" bson:"slug"`
	Description  string             `json:"description" bson:"description"`
	Category     string             `json:"category" bson:"category"`
	Cuisine      []string           `json:"cuisine" bson:"cuisine"`
	Address      Address            `json:"address" bson:"address"`
	Phone        string             `json:"phone" bson:"phone"`
	Email        string             `json:"email" bson:"email"`
	Website      string             `json:"website,omitempty" bson:"website,omitempty"`
	DeliveryFee  float64            `json:"deliveryFee" bson:"deliveryFee"`
	MinimumOrder float64            `json:"minimumOrder" bson:"minimumOrder"`
	DeliveryTime DeliveryTime       `json:"deliveryTime" bson:"deliveryTime"`
	Rating       ShopRating         `json:"rating" bson:"rating"`
	IsActive     bool               `json:"isActive" bson:"isActive"`
	IsOpen       bool               `json:"isOpen" bson:"isOpen"`
	Featured     bool               `json:"featured" bson:"featured"`
	TotalOrders  int                `json:"totalOrders" bson:"totalOrders"`
	Tags         []string           `json:"tags,omitempty" bson:"tags,omitempty"`
	CreatedAt    time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// AcceptsOrders reports whether checkout is allowed against the shop.
func (s *Shop) AcceptsOrders() bool {
	return s.IsActive && s.IsOpen
}
