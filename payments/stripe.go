package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"github.com/stripe/stripe-go/v72/webhook"
)

type Stripe struct {
	api           *client.API
	webhookSecret string
}

func NewStripe(secretKey, webhookSecret string) *Stripe {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &Stripe{api: sc, webhookSecret: webhookSecret}
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
}

func (s *Stripe) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amount),
		Currency:           stripe.String(strings.ToLower(currency)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return toIntent(pi), nil
}

func (s *Stripe) GetIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := s.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("get payment intent: %w", err)
	}
	return toIntent(pi), nil
}

func (s *Stripe) ParseWebhook(payload []byte, signature string) (*Event, error) {
	return parseWebhook(payload, signature, s.webhookSecret)
}

func parseWebhook(payload []byte, signature, secret string) (*Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	out := &Event{ID: event.ID, Type: event.Type}
	if strings.HasPrefix(event.Type, "payment_intent.") && event.Data != nil {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		out.Intent = toIntent(&pi)
	}
	return out, nil
}

func (s *Stripe) CreateCustomer(ctx context.Context, in CustomerInput) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(in.Email),
		Name:  stripe.String(in.Name),
	}
	if in.Phone != "" {
		params.Phone = stripe.String(in.Phone)
	}
	params.Context = ctx
	params.AddMetadata("userId", in.UserID)
	c, err := s.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	return c.ID, nil
}

func (s *Stripe) CustomerOwner(ctx context.Context, customerID string) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	c, err := s.api.Customers.Get(customerID, params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.Code == stripe.ErrorCodeResourceMissing {
			return "", ErrNoCustomer
		}
		return "", fmt.Errorf("get customer: %w", err)
	}
	if c.Deleted {
		return "", ErrNoCustomer
	}
	return c.Metadata["userId"], nil
}

func (s *Stripe) ListCards(ctx context.Context, customerID string) ([]Card, error) {
	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
		Type:     stripe.String("card"),
	}
	params.Context = ctx
	cards := []Card{}
	it := s.api.PaymentMethods.List(params)
	for it.Next() {
		pm := it.PaymentMethod()
		card := Card{ID: pm.ID}
		if pm.Card != nil {
			card.Brand = string(pm.Card.Brand)
			card.Last4 = pm.Card.Last4
			card.ExpMonth = pm.Card.ExpMonth
			card.ExpYear = pm.Card.ExpYear
		}
		cards = append(cards, card)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	return cards, nil
}
