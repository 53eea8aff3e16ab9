package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	StatusPlaced         OrderStatus = "placed"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusPreparing      OrderStatus = "preparing"
	StatusReadyForPickup OrderStatus = "ready_for_pickup"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusDelivered      OrderStatus = "delivered"
	StatusCancelled      OrderStatus = "cancelled"
	StatusRefunded       OrderStatus = "refunded"
)

var OrderStatuses = []OrderStatus{
	StatusPlaced, StatusConfirmed, StatusPreparing, StatusReadyForPickup,
	StatusOutForDelivery, StatusDelivered, StatusCancelled, StatusRefunded,
}

func (s OrderStatus) Valid() bool {
	for _, st := range OrderStatuses {
		if s == st {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentCard          PaymentMethod = "card"
	PaymentCash          PaymentMethod = "cash"
	PaymentDigitalWallet PaymentMethod = "digital_wallet"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type CancelledBy string

const (
	CancelledByCustomer CancelledBy = "customer"
	CancelledByShop     CancelledBy = "shop"
	CancelledByAdmin    CancelledBy = "admin"
)

type OrderItem struct {
	MenuItem            primitive.ObjectID `json:"menuItem" bson:"menuItem"`
	Name                string             `json:"name" bson:"name"`
	Price               float64            `json:"price" bson:"price"`
	Quantity            int                `json:"quantity" bson:"quantity"`
	Variant             *Variant           `json:"variant,omitempty" bson:"variant,omitempty"`
	AddOns              []AddOn            `json:"addOns" bson:"addOns"`
	SpecialInstructions string             `json:"specialInstructions,omitempty" bson:"specialInstructions,omitempty"`
	ItemTotal           float64            `json:"itemTotal" bson:"itemTotal"`
}

type DeliveryAddress struct {
	Street               string       `json:"street" bson:"street"`
	City                 string       `json:"city" bson:"city"`
	State                string       `json:"state" bson:"state"`
	ZipCode              string       `json:"zipCode" bson:"zipCode"`
	Coordinates          *Coordinates `json:"coordinates,omitempty" bson:"coordinates,omitempty"`
	DeliveryInstructions string       `json:"deliveryInstructions,omitempty" bson:"deliveryInstructions,omitempty"`
}

type ContactInfo struct {
	Phone string `json:"phone" bson:"phone"`
	Email string `json:"email" bson:"email"`
}

type Discount struct {
	Amount      float64 `json:"amount" bson:"amount"`
	CouponCode  string  `json:"couponCode,omitempty" bson:"couponCode,omitempty"`
	Description string  `json:"description,omitempty" bson:"description,omitempty"`
}

type Pricing struct {
	Subtotal    float64  `json:"subtotal" bson:"subtotal"`
	DeliveryFee float64  `json:"deliveryFee" bson:"deliveryFee"`
	Tax         float64  `json:"tax" bson:"tax"`
	Tip         float64  `json:"tip" bson:"tip"`
	Discount    Discount `json:"discount" bson:"discount"`
	Total       float64  `json:"total" bson:"total"`
}

type PaymentInfo struct {
	PaymentMethod   PaymentMethod `json:"paymentMethod" bson:"paymentMethod"`
	PaymentStatus   PaymentStatus `json:"paymentStatus" bson:"paymentStatus"`
	TransactionID   string        `json:"transactionId,omitempty" bson:"transactionId,omitempty"`
	PaymentIntentID string        `json:"paymentIntentId,omitempty" bson:"paymentIntentId,omitempty"`
	PaidAt          *time.Time    `json:"paidAt,omitempty" bson:"paidAt,omitempty"`
}

type StatusChange struct {
	Status    OrderStatus        `json:"status" bson:"status"`
	Timestamp time.Time          `json:"timestamp" bson:"timestamp"`
	Note      string             `json:"note,omitempty" bson:"note,omitempty"`
	UpdatedBy primitive.ObjectID `json:"updatedBy,omitempty" bson:"updatedBy,omitempty"`
}

type OrderRating struct {
	FoodRating     int        `json:"foodRating" bson:"foodRating"`
	DeliveryRating int        `json:"deliveryRating" bson:"deliveryRating"`
	OverallRating  int        `json:"overallRating" bson:"overallRating"`
	Review         string     `json:"review,omitempty" bson:"review,omitempty"`
	RatedAt        *time.Time `json:"ratedAt,omitempty" bson:"ratedAt,omitempty"`
}

type Cancellation struct {
	Reason      string      `json:"reason" bson:"reason"`
	CancelledBy CancelledBy `json:"cancelledBy" bson:"cancelledBy"`
	CancelledAt time.Time   `json:"cancelledAt" bson:"cancelledAt"`
}

//Order is a customer's checkout against a single shop

type Order struct {
	ID                    primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	OrderNumber           string             `json:"orderNumber" bson:"orderNumber"`
	Customer              primitive.ObjectID `json:"customer" bson:"customer"`
	Shop                  primitive.ObjectID `json:"shop" bson:"shop"`
	Items                 []OrderItem        `json:"items" bson:"items"`
	DeliveryAddress       DeliveryAddress    `json:"deliveryAddress" bson:"deliveryAddress"`
	ContactInfo           ContactInfo        `json:"contactInfo" bson:"contactInfo"`
	Pricing               Pricing            `json:"pricing" bson:"pricing"`
	PaymentInfo           PaymentInfo        `json:"paymentInfo" bson:"paymentInfo"`
	Status                OrderStatus        `json:"status" bson:"status"`
	StatusHistory         []StatusChange     `json:"statusHistory" bson:"statusHistory"`
	EstimatedDeliveryTime *time.Time         `json:"estimatedDeliveryTime,omitempty" bson:"estimatedDeliveryTime,omitempty"`
	ActualDeliveryTime    *time.Time         `json:"actualDeliveryTime,omitempty" bson:"actualDeliveryTime,omitempty"`
	Rating                *OrderRating       `json:"rating,omitempty" bson:"rating,omitempty"`
	Cancellation          *Cancellation      `json:"cancellation,omitempty" bson:"cancellation,omitempty"`
	SpecialInstructions   string             `json:"specialInstructions,omitempty" bson:"specialInstructions,omitempty"`
	CreatedAt             time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt             time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// IsRated reports whether the customer already rated the order.
func (o *Order) IsRated() bool {
	return o.Rating != nil && o.Rating.RatedAt != nil
}
