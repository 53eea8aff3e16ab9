package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleCustomer  Role = "customer"
	RoleShopOwner Role = "shop_owner"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleShopOwner, RoleAdmin:
		return true
	}
	return false
}

type Coordinates struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

type Address struct {
	Street      string       `json:"street" bson:"street"`
	City        string       `json:"city" bson:"city"`
	State       string       `json:"state" bson:"state"`
	ZipCode     string       `json:"zipCode" bson:"zipCode"`
	Coordinates *Coordinates `json:"coordinates,omitempty" bson:"coordinates,omitempty"`
}

//User represents an account in the marketplace

type User struct {
	ID                  primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name                string             `json:"name" bson:"name"`
	Email               string             `json:"email" bson:"email"`
	PasswordHash        string             `json:"-" bson:"password"`
	Role                Role               `json:"role" bson:"role"`
	Phone               string             `json:"phone,omitempty" bson:"phone,omitempty"`
	Address             *Address           `json:"address,omitempty" bson:"address,omitempty"`
	IsActive            bool               `json:"isActive" bson:"isActive"`
	ResetPasswordToken  string             `json:"-" bson:"resetPasswordToken,omitempty"`
	ResetPasswordExpire *time.Time         `json:"-" bson:"resetPasswordExpire,omitempty"`
	CreatedAt           time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt           time.Time          `json:"updatedAt" bson:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// PublicUser is the subset of a user embedded in other responses.
type PublicUser struct {
	ID    primitive.ObjectID `json:"id"`
	Name  string             `json:"name"`
	Email string             `json:"email"`
	Phone string             `json:"phone,omitempty"`
}

func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone}
}
