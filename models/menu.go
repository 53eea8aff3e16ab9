package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var MenuCategories = []string{
	"Appetizers", "Main Course", "Desserts", "Beverages", "Salads", "Soups",
	"Sandwiches", "Burgers", "Pizza", "Pasta", "Rice", "Noodles", "Seafood",
	"Chicken", "Beef", "Pork", "Vegetarian", "Vegan", "Sides", "Breakfast",
	"Lunch", "Dinner", "Snacks", "Other",
}

type Variant struct {
	Name        string  `json:"name" bson:"name" validate:"required"`
	Price       float64 `json:"price" bson:"price" validate:"gte=0"`
	Description string  `json:"description,omitempty" bson:"description,omitempty"`
}

type AddOn struct {
	Name     string  `json:"name" bson:"name" validate:"required"`
	Price    float64 `json:"price" bson:"price" validate:"gte=0"`
	Category string  `json:"category,omitempty" bson:"category,omitempty"`
}

type ItemRating struct {
	Average float64 `json:"average" bson:"average"`
	Count   int     `json:"count" bson:"count"`
}

type MenuItem struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Shop            primitive.ObjectID `json:"shop" bson:"shop"`
	Name            string             `json:"name" bson:"name"`
	Description     string             `json:"description" bson:"description"`
	Price           float64            `json:"price" bson:"price"`
	Category        string             `json:"category" bson:"category"`
	Variants        []Variant          `json:"variants" bson:"variants"`
	AddOns          []AddOn            `json:"addOns" bson:"addOns"`
	Ingredients     []string           `json:"ingredients,omitempty" bson:"ingredients,omitempty"`
	Tags            []string           `json:"tags,omitempty" bson:"tags,omitempty"`
	PreparationTime int                `json:"preparationTime" bson:"preparationTime"`
	IsAvailable     bool               `json:"isAvailable" bson:"isAvailable"`
	IsPopular       bool               `json:"isPopular" bson:"isPopular"`
	IsFeatured      bool               `json:"isFeatured" bson:"isFeatured"`
	Rating          ItemRating         `json:"rating" bson:"rating"`
	TotalOrders     int                `json:"totalOrders" bson:"totalOrders"`
	CreatedAt       time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// VariantNamed returns the variant with the given name, if any.
func (m *MenuItem) VariantNamed(name string) (Variant, bool) {
	for _, v := range m.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

func (m *MenuItem) AddOnNamed(name string) (AddOn, bool) {
	for _, a := range m.AddOns {
		if a.Name == name {
			return a, true
		}
	}
	return AddOn{}, false
}
