// Package payments is the boundary to the hosted payment processor.
package payments

import (
	"context"
	"errors"
	"math"
)

const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
	IntentSucceeded      = "succeeded"
)

var (
	ErrNotConfigured = errors.New("payments: gateway not configured")
	ErrBadSignature  = errors.New("payments: webhook signature verification failed")
	ErrNoCustomer    = errors.New("payments: customer not found")
)

type Intent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"clientSecret,omitempty"`
	Status       string            `json:"status"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Event is a verified webhook notification. Intent is set for
// payment_intent.* events.
type Event struct {
	ID     string
	Type   string
	Intent *Intent
}

type CustomerInput struct {
	Email  string
	Name   string
	Phone  string
	UserID string
}

type Card struct {
	ID       string `json:"id"`
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth uint64 `json:"expMonth"`
	ExpYear  uint64 `json:"expYear"`
}

type Gateway interface {
	CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
	CreateCustomer(ctx context.Context, in CustomerInput) (string, error)
	// CustomerOwner returns the user id the customer was created for.
	CustomerOwner(ctx context.Context, customerID string) (string, error)
	ListCards(ctx context.Context, customerID string) ([]Card, error)
}

// MinorUnits converts a decimal amount to cents.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// Unconfigured rejects every call. It stands in when no secret key is set.
type Unconfigured struct{}

func (Unconfigured) CreateIntent(context.Context, int64, string, map[string]string) (*Intent, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) GetIntent(context.Context, string) (*Intent, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) ParseWebhook([]byte, string) (*Event, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) CreateCustomer(context.Context, CustomerInput) (string, error) {
	return "", ErrNotConfigured
}

func (Unconfigured) CustomerOwner(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}

func (Unconfigured) ListCards(context.Context, string) ([]Card, error) {
	return nil, ErrNotConfigured
}
