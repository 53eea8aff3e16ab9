// Package handlers exposes the marketplace over HTTP. Handlers decode and
// validate requests, delegate to the order service and the store, and map
// apperror kinds to status codes.
package handlers

import (
	"context"
	"log/slog"
	"time"

	"go_trial/foodhub/auth"
	"go_trial/foodhub/notify"
	"go_trial/foodhub/orders"
	"go_trial/foodhub/payments"
	"go_trial/foodhub/store"

	"go.opentelemetry.io/otel"
)

const requestTimeout = 5 * time.Second

var tracer = otel.Tracer("foodhub/handlers")

type Deps struct {
	Store    store.Store
	Orders   *orders.Service
	Payments payments.Gateway
	Tokens   *auth.Tokens
	Events   notify.Broadcaster
	Log      *slog.Logger
	// Development exposes password reset tokens in responses, since no
	// mailer is wired.
	Development bool
	Currency    string
}

type Handler struct {
	store       store.Store
	orders      *orders.Service
	payments    payments.Gateway
	tokens      *auth.Tokens
	events      notify.Broadcaster
	log         *slog.Logger
	development bool
	currency    string
	now         func() time.Time
}

func New(d Deps) *Handler {
	if d.Events == nil {
		d.Events = notify.Nop{}
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Payments == nil {
		d.Payments = payments.Unconfigured{}
	}
	if d.Orders == nil {
		d.Orders = orders.NewService(d.Store, d.Events, d.Log)
	}
	if d.Currency == "" {
		d.Currency = "usd"
	}
	return &Handler{
		store:       d.Store,
		orders:      d.Orders,
		payments:    d.Payments,
		tokens:      d.Tokens,
		events:      d.Events,
		log:         d.Log,
		development: d.Development,
		currency:    d.Currency,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// timeout bounds one request's store work.
func timeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, requestTimeout)
}
