package orders

import (
	"context"

	"go_trial/foodhub/apperror"
	"go_trial/foodhub/models"
	"go_trial/foodhub/notify"
	"go_trial/foodhub/policy"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ForPayment returns an order the actor may start paying for.
func (s *Service) ForPayment(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.Order, error) {
	o, err := s.store.OrderByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Order not found")
	}
	if !policy.IsOrderCustomer(actor, o) {
		return nil, apperror.Unauthorized("Not authorized to pay for this order")
	}
	if o.PaymentInfo.PaymentStatus == models.PaymentCompleted {
		return nil, apperror.BusinessRule("Order has already been paid")
	}
	if o.Status == models.StatusCancelled {
		return nil, apperror.BusinessRule("Cannot pay for a cancelled order")
	}
	return o, nil
}

func (s *Service) AttachPaymentIntent(ctx context.Context, id primitive.ObjectID, intentID string) (*models.Order, error) {
	return s.mutate(ctx, id, func(o *models.Order) error {
		if o.PaymentInfo.PaymentIntentID == intentID {
			return errNoChange
		}
		o.PaymentInfo.PaymentIntentID = intentID
		return nil
	})
}

// MarkPaid records a successful charge. Applying it again leaves the order
// exactly as the first application did, so the confirm call and the
// webhook may race freely.
func (s *Service) MarkPaid(ctx context.Context, id primitive.ObjectID, transactionID string) (*models.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.MarkPaid")
	defer span.End()

	applied := false
	order, err := s.mutate(ctx, id, func(o *models.Order) error {
		applied = false
		if o.PaymentInfo.PaymentStatus == models.PaymentCompleted {
			return errNoChange
		}
		now := s.now()
		o.PaymentInfo.PaymentStatus = models.PaymentCompleted
		o.PaymentInfo.TransactionID = transactionID
		if o.PaymentInfo.PaymentIntentID == "" {
			o.PaymentInfo.PaymentIntentID = transactionID
		}
		o.PaymentInfo.PaidAt = &now
		if o.Status == models.StatusPlaced {
			applyStatus(o, models.StatusConfirmed, "Payment received", primitive.NilObjectID, now)
		}
		applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if applied {
		s.events.Broadcast(ctx, notify.ShopRoom(order.Shop), notify.PaymentReceived, map[string]any{
			"orderId":     order.ID,
			"orderNumber": order.OrderNumber,
			"amount":      order.Pricing.Total,
		})
		s.log.Info("order paid", "order", order.OrderNumber, "transaction", transactionID)
	}
	return order, nil
}

// MarkPaymentFailed never downgrades a completed payment.
func (s *Service) MarkPaymentFailed(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	return s.mutate(ctx, id, func(o *models.Order) error {
		switch o.PaymentInfo.PaymentStatus {
		case models.PaymentCompleted, models.PaymentFailed:
			return errNoChange
		}
		o.PaymentInfo.PaymentStatus = models.PaymentFailed
		return nil
	})
}
