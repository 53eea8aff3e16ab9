package handlers

import (
	"errors"
	"io"
	"net/http"

	"go_trial/foodhub/apperror"
	"go_trial/foodhub/middleware"
	"go_trial/foodhub/payments"
	"go_trial/foodhub/policy"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxWebhookBytes = 1 << 20

type createIntentRequest struct {
	OrderID  string `json:"orderId" validate:"required,objectid"`
	Currency string `json:"currency" validate:"omitempty,len=3"`
}

type confirmPaymentRequest struct {
	PaymentIntentID string `json:"paymentIntentId" validate:"required"`
	OrderID         string `json:"orderId" validate:"required,objectid"`
}

type createCustomerRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func gatewayErr(err error, msg string) error {
	if errors.Is(err, payments.ErrNotConfigured) {
		return apperror.Internal("Payments are not configured", err)
	}
	return apperror.Internal(msg, err)
}

//CreatePaymentIntent starts a card payment for the order total

func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "CreatePaymentIntent")
	defer span.End()

	var req createIntentRequest
	if err := bind(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Currency == "" {
		req.Currency = h.currency
	}
	orderID, _ := primitive.ObjectIDFromHex(req.OrderID)
	user := middleware.CurrentUser(r.Context())

	ctx, cancel := timeout(ctx)
	defer cancel()
	order, err := h.orders.ForPayment(ctx, user, orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// The amount always comes from the stored order, never the client.
	intent, err := h.payments.CreateIntent(ctx, payments.MinorUnits(order.Pricing.Total), req.Currency, map[string]string{
		"orderId":    order.ID.Hex(),
		"customerId": user.ID.Hex(),
	})
	paymentOutcomes.WithLabelValues("intent", outcome(err)).Inc()
	if err != nil {
		span.RecordError(err)
		h.writeError(w, r, gatewayErr(err, "Payment intent creation failed"))
		return
	}
	if _, err := h.orders.AttachPaymentIntent(ctx, order.ID, intent.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, envelope{"clientSecret": intent.ClientSecret, "paymentIntentId": intent.ID})
}

func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if err := bind(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	orderID, _ := primitive.ObjectIDFromHex(req.OrderID)

	ctx, cancel := timeout(r.Context())
	defer cancel()
	order, err := h.store.OrderByID(ctx, orderID)
	if err != nil {
		h.writeError(w, r, notFoundOr(err, "Order not found"))
		return
	}
	if !policy.IsOrderCustomer(middleware.CurrentUser(r.Context()), order) {
		h.writeError(w, r, apperror.Unauthorized("Not authorized to pay for this order"))
		return
	}

	intent, err := h.payments.GetIntent(ctx, req.PaymentIntentID)
	if err != nil {
		paymentOutcomes.WithLabelValues("confirm", "error").Inc()
		h.writeError(w, r, gatewayErr(err, "Payment confirmation failed"))
		return
	}
	if id := intent.Metadata["orderId"]; id != "" && id != order.ID.Hex() {
		h.writeError(w, r, apperror.BusinessRule("Payment does not belong to this order"))
		return
	}
	if intent.Status != payments.IntentSucceeded {
		paymentOutcomes.WithLabelValues("confirm", intent.Status).Inc()
		writeJSON(w, http.StatusBadRequest, envelope{
			"success":       false,
			"message":       "Payment not successful",
			"paymentStatus": intent.Status,
		})
		return
	}

	order, err = h.orders.MarkPaid(ctx, order.ID, intent.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	paymentOutcomes.WithLabelValues("confirm", "succeeded").Inc()
	writeJSON(w, http.StatusOK, envelope{
		"success": true,
		"message": "Payment confirmed successfully",
		"data":    envelope{"orderId": order.ID, "paymentStatus": order.PaymentInfo.PaymentStatus},
	})
}

// StripeWebhook applies verified payment events. Unverifiable payloads are
// rejected before anything is read from them.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		http.Error(w, "Webhook Error: could not read body", http.StatusBadRequest)
		return
	}
	event, err := h.payments.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		paymentOutcomes.WithLabelValues("webhook", "rejected").Inc()
		h.log.Warn("webhook rejected", "error", err)
		http.Error(w, "Webhook Error: "+err.Error(), http.StatusBadRequest)
		return
	}

	if event.Intent != nil {
		if err := h.applyIntentEvent(r, event); err != nil {
			// A 5xx makes the processor redeliver.
			h.writeError(w, r, err)
			return
		}
	}
	paymentOutcomes.WithLabelValues("webhook", event.Type).Inc()
	writeJSON(w, http.StatusOK, envelope{"received": true})
}

func (h *Handler) applyIntentEvent(r *http.Request, event *payments.Event) error {
	orderID, err := primitive.ObjectIDFromHex(event.Intent.Metadata["orderId"])
	if err != nil {
		h.log.Warn("webhook intent without order", "event", event.ID, "intent", event.Intent.ID)
		return nil
	}

	ctx, cancel := timeout(r.Context())
	defer cancel()
	switch event.Type {
	case payments.EventIntentSucceeded:
		_, err = h.orders.MarkPaid(ctx, orderID, event.Intent.ID)
	case payments.EventIntentFailed:
		_, err = h.orders.MarkPaymentFailed(ctx, orderID)
	default:
		return nil
	}
	if apperror.Is(err, apperror.KindNotFound) {
		h.log.Warn("webhook for unknown order", "event", event.ID, "order", orderID.Hex())
		return nil
	}
	return err
}

func (h *Handler) CreatePaymentCustomer(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := bindOptional(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	user := middleware.CurrentUser(r.Context())
	in := payments.CustomerInput{Email: req.Email, Name: req.Name, Phone: req.Phone, UserID: user.ID.Hex()}
	if in.Email == "" {
		in.Email = user.Email
	}
	if in.Name == "" {
		in.Name = user.Name
	}
	if in.Phone == "" {
		in.Phone = user.Phone
	}

	ctx, cancel := timeout(r.Context())
	defer cancel()
	id, err := h.payments.CreateCustomer(ctx, in)
	if err != nil {
		h.writeError(w, r, gatewayErr(err, "Customer creation failed"))
		return
	}
	writeData(w, http.StatusOK, envelope{"customerId": id})
}

func (h *Handler) PaymentMethods(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customerId")
	if customerID == "" {
		h.writeError(w, r, apperror.Validation("Customer ID is required"))
		return
	}
	ctx, cancel := timeout(r.Context())
	defer cancel()
	owner, err := h.payments.CustomerOwner(ctx, customerID)
	if errors.Is(err, payments.ErrNoCustomer) || (err == nil && owner != middleware.CurrentUser(r.Context()).ID.Hex()) {
		h.writeError(w, r, apperror.Unauthorized("Not authorized to access these payment methods"))
		return
	}
	if err != nil {
		h.writeError(w, r, gatewayErr(err, "Failed to retrieve payment methods"))
		return
	}
	cards, err := h.payments.ListCards(ctx, customerID)
	if err != nil {
		h.writeError(w, r, gatewayErr(err, "Failed to retrieve payment methods"))
		return
	}
	if cards == nil {
		cards = []payments.Card{}
	}
	writeData(w, http.StatusOK, cards)
}
