// Package orders prices carts against a shop's live menu and drives an
// order through its status lifecycle, cancellation, rating and payment.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go_trial/foodhub/apperror"
	"go_trial/foodhub/models"
	"go_trial/foodhub/notify"
	"go_trial/foodhub/policy"
	"go_trial/foodhub/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Store is the persistence the order service needs.
type Store interface {
	store.Shops
	store.Menu
	store.Orders
}

type LineInput struct {
	MenuItem            primitive.ObjectID
	Quantity            int
	Variant             string
	AddOns              []string
	SpecialInstructions string
}

type CreateInput struct {
	Shop                primitive.ObjectID
	Items               []LineInput
	DeliveryAddress     models.DeliveryAddress
	ContactInfo         models.ContactInfo
	PaymentMethod       models.PaymentMethod
	Tip                 float64
	SpecialInstructions string
}

type RatingInput struct {
	FoodRating     int
	DeliveryRating int
	OverallRating  int
	Review         string
}

type Service struct {
	store  Store
	events notify.Broadcaster
	log    *slog.Logger
	now    func() time.Time
	totals metric.Float64Histogram
}

var tracer = otel.Tracer("foodhub/orders")

// errNoChange aborts a mutation without writing.
var errNoChange = errors.New("orders: no change")

const saveAttempts = 3

func NewService(st Store, events notify.Broadcaster, log *slog.Logger) *Service {
	if events == nil {
		events = notify.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Service{store: st, events: events, log: log, now: func() time.Time { return time.Now().UTC() }}
	hist, err := otel.Meter("foodhub/orders").Float64Histogram("order_total_amount",
		metric.WithDescription("Total amount of created orders"),
		metric.WithUnit("USD"),
	)
	if err != nil {
		log.Warn("order total histogram unavailable", "error", err)
	} else {
		s.totals = hist
	}
	return s
}

// OrderNumber formats the human readable order number.
func OrderNumber(at time.Time, seq int64) string {
	return fmt.Sprintf("ORD%d%04d", at.UnixMilli(), seq)
}

func storeErr(err error, notFound string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperror.NotFound(notFound)
	}
	return apperror.Internal("Server Error", err)
}

// Create validates the cart, prices it and persists a placed order. Nothing
// is written, counted or broadcast unless every check passes.
func (s *Service) Create(ctx context.Context, customer *models.User, in CreateInput) (*models.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.Create")
	defer span.End()

	if len(in.Items) == 0 {
		return nil, apperror.Validation("Validation failed", apperror.FieldError{Field: "items", Message: "Order must contain at least one item"})
	}
	if in.Tip < 0 {
		return nil, apperror.Validation("Validation failed", apperror.FieldError{Field: "tip", Message: "Tip cannot be negative"})
	}

	shop, err := s.store.ShopByID(ctx, in.Shop)
	if err != nil {
		return nil, storeErr(err, "Shop not found")
	}
	if !shop.AcceptsOrders() {
		return nil, apperror.BusinessRule("Shop is currently not accepting orders")
	}

	ids := make([]primitive.ObjectID, 0, len(in.Items))
	for _, l := range in.Items {
		ids = append(ids, l.MenuItem)
	}
	menu, err := s.store.MenuItemsByIDs(ctx, ids)
	if err != nil {
		return nil, apperror.Internal("Server Error", err)
	}

	lines := make([]models.OrderItem, 0, len(in.Items))
	for i, l := range in.Items {
		if l.Quantity < 1 {
			return nil, apperror.Validation("Validation failed", apperror.FieldError{
				Field: fmt.Sprintf("items[%d].quantity", i), Message: "Quantity must be at least 1",
			})
		}
		item, ok := menu[l.MenuItem]
		if !ok {
			return nil, apperror.NotFound("Menu item %s not found", l.MenuItem.Hex())
		}
		if item.Shop != shop.ID {
			return nil, apperror.BusinessRule("All items must be from the same shop")
		}
		if !item.IsAvailable {
			return nil, apperror.BusinessRule("%s is currently not available", item.Name)
		}
		line := PriceLine(item, l.Quantity, l.Variant, l.AddOns)
		line.SpecialInstructions = l.SpecialInstructions
		lines = append(lines, line)
	}

	subtotal := Subtotal(lines)
	if subtotal < shop.MinimumOrder {
		return nil, apperror.BusinessRule("Minimum order amount is $%v", shop.MinimumOrder)
	}

	seq, err := s.store.NextOrderSequence(ctx)
	if err != nil {
		return nil, apperror.Internal("Server Error", err)
	}

	now := s.now()
	eta := now.Add(time.Duration(shop.DeliveryTime.Max) * time.Minute)
	method := in.PaymentMethod
	if method == "" {
		method = models.PaymentCard
	}
	order := &models.Order{
		ID:              primitive.NewObjectID(),
		OrderNumber:     OrderNumber(now, seq),
		Customer:        customer.ID,
		Shop:            shop.ID,
		Items:           lines,
		DeliveryAddress: in.DeliveryAddress,
		ContactInfo:     in.ContactInfo,
		Pricing:         ComputePricing(subtotal, shop.DeliveryFee, in.Tip, models.Discount{}),
		PaymentInfo: models.PaymentInfo{
			PaymentMethod: method,
			PaymentStatus: models.PaymentPending,
		},
		Status: models.StatusPlaced,
		StatusHistory: []models.StatusChange{
			{Status: models.StatusPlaced, Timestamp: now, Note: "Order placed", UpdatedBy: customer.ID},
		},
		EstimatedDeliveryTime: &eta,
		SpecialInstructions:   in.SpecialInstructions,
		CreatedAt:             now,
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, apperror.Internal("Server Error", err)
	}

	// Counter failures do not undo the order.
	for _, l := range lines {
		if err := s.store.IncMenuItemOrders(ctx, l.MenuItem, l.Quantity); err != nil {
			s.log.Warn("increment menu item orders", "menuItem", l.MenuItem.Hex(), "error", err)
		}
	}
	if err := s.store.IncShopOrders(ctx, shop.ID, 1); err != nil {
		s.log.Warn("increment shop orders", "shop", shop.ID.Hex(), "error", err)
	}

	s.events.Broadcast(ctx, notify.ShopRoom(shop.ID), notify.NewOrder, map[string]any{
		"order":   order,
		"message": fmt.Sprintf("New order #%s received", order.OrderNumber),
	})
	s.events.Broadcast(ctx, notify.CustomerRoom(customer.ID), notify.OrderCreated, map[string]any{
		"order":   order,
		"message": "Order placed successfully",
	})
	if s.totals != nil {
		s.totals.Record(ctx, order.Pricing.Total, metric.WithAttributes(attribute.String("shop", shop.ID.Hex())))
	}
	s.log.Info("order created", "order", order.OrderNumber, "shop", shop.ID.Hex(), "total", order.Pricing.Total)
	return order, nil
}

// applyStatus is the single place a status changes. Each call appends one
// history entry.
func applyStatus(o *models.Order, to models.OrderStatus, note string, actor primitive.ObjectID, now time.Time) {
	o.Status = to
	o.StatusHistory = append(o.StatusHistory, models.StatusChange{
		Status:    to,
		Timestamp: now,
		Note:      note,
		UpdatedBy: actor,
	})
	if to == models.StatusDelivered {
		o.ActualDeliveryTime = &now
	}
}

// mutate loads the order, applies fn and writes it back conditionally,
// reloading when a concurrent writer got there first.
func (s *Service) mutate(ctx context.Context, id primitive.ObjectID, fn func(o *models.Order) error) (*models.Order, error) {
	for attempt := 1; ; attempt++ {
		o, err := s.store.OrderByID(ctx, id)
		if err != nil {
			return nil, storeErr(err, "Order not found")
		}
		expect := store.VersionOf(o)
		if err := fn(o); err != nil {
			if errors.Is(err, errNoChange) {
				return o, nil
			}
			return nil, err
		}
		err = s.store.SaveOrder(ctx, o, expect)
		if err == nil {
			return o, nil
		}
		if errors.Is(err, store.ErrStale) && attempt < saveAttempts {
			continue
		}
		return nil, storeErr(err, "Order not found")
	}
}

// UpdateStatus moves an order along the transition table on behalf of the
// shop owner or an admin.
func (s *Service) UpdateStatus(ctx context.Context, actor *models.User, id primitive.ObjectID, to models.OrderStatus, note string) (*models.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.UpdateStatus")
	defer span.End()

	var from models.OrderStatus
	order, err := s.mutate(ctx, id, func(o *models.Order) error {
		shop, err := s.store.ShopByID(ctx, o.Shop)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return apperror.Internal("Server Error", err)
		}
		if !actor.IsAdmin() && !policy.CanManageShop(actor, shop) {
			return apperror.Unauthorized("Not authorized to update this order")
		}
		if err := ValidateTransition(o.Status, to); err != nil {
			return err
		}
		from = o.Status
		now := s.now()
		applyStatus(o, to, note, actor.ID, now)
		if to == models.StatusCancelled {
			by := models.CancelledByShop
			if actor.IsAdmin() {
				by = models.CancelledByAdmin
			}
			reason := note
			if reason == "" {
				reason = "Cancelled by " + string(by)
			}
			o.Cancellation = &models.Cancellation{Reason: reason, CancelledBy: by, CancelledAt: now}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Broadcast(ctx, notify.CustomerRoom(order.Customer), notify.OrderStatusUpdated, map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"status":      order.Status,
		"note":        note,
		"message":     fmt.Sprintf("Your order status has been updated to %s", order.Status),
	})
	s.log.Info("order status changed", "order", order.OrderNumber, "from", from, "to", to)
	return order, nil
}

// Cancel is the customer's cancellation path.
func (s *Service) Cancel(ctx context.Context, actor *models.User, id primitive.ObjectID, reason string) (*models.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.Cancel")
	defer span.End()

	if reason == "" {
		reason = "Cancelled by customer"
	}
	order, err := s.mutate(ctx, id, func(o *models.Order) error {
		if !policy.IsOrderCustomer(actor, o) {
			return apperror.Unauthorized("Not authorized to cancel this order")
		}
		if !CustomerCancellable(o.Status) {
			return apperror.BusinessRule("Order cannot be cancelled at this stage")
		}
		now := s.now()
		applyStatus(o, models.StatusCancelled, reason, actor.ID, now)
		o.Cancellation = &models.Cancellation{Reason: reason, CancelledBy: models.CancelledByCustomer, CancelledAt: now}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Broadcast(ctx, notify.ShopRoom(order.Shop), notify.OrderCancelled, map[string]any{
		"orderId": order.ID,
		"reason":  order.Cancellation.Reason,
	})
	return order, nil
}

func (in RatingInput) validate() error {
	var fields []apperror.FieldError
	check := func(field string, v int) {
		if v < 1 || v > 5 {
			fields = append(fields, apperror.FieldError{Field: field, Message: "Rating must be between 1 and 5"})
		}
	}
	check("rating.foodRating", in.FoodRating)
	check("rating.deliveryRating", in.DeliveryRating)
	check("rating.overallRating", in.OverallRating)
	if len(fields) > 0 {
		return apperror.Validation("Validation failed", fields...)
	}
	return nil
}

// Rate attaches the customer's one-time rating to a delivered order.
func (s *Service) Rate(ctx context.Context, actor *models.User, id primitive.ObjectID, in RatingInput) (*models.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(o *models.Order) error {
		if !policy.IsOrderCustomer(actor, o) {
			return apperror.Unauthorized("Not authorized to rate this order")
		}
		if o.Status != models.StatusDelivered {
			return apperror.BusinessRule("Can only rate delivered orders")
		}
		if o.IsRated() {
			return apperror.BusinessRule("Order has already been rated")
		}
		now := s.now()
		o.Rating = &models.OrderRating{
			FoodRating:     in.FoodRating,
			DeliveryRating: in.DeliveryRating,
			OverallRating:  in.OverallRating,
			Review:         in.Review,
			RatedAt:        &now,
		}
		return nil
	})
}

// Get returns an order the actor is allowed to see.
func (s *Service) Get(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.Order, error) {
	o, err := s.store.OrderByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Order not found")
	}
	if actor.IsAdmin() || policy.IsOrderCustomer(actor, o) {
		return o, nil
	}
	shop, err := s.store.ShopByID(ctx, o.Shop)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, apperror.Internal("Server Error", err)
	}
	if !policy.CanViewOrder(actor, o, shop) {
		return nil, apperror.Unauthorized("Not authorized to view this order")
	}
	return o, nil
}

func (s *Service) ListMine(ctx context.Context, actor *models.User, status models.OrderStatus, p store.Page) ([]models.Order, int64, error) {
	orders, total, err := s.store.ListOrders(ctx, store.OrderFilter{Customer: &actor.ID, Status: status}, p)
	if err != nil {
		return nil, 0, apperror.Internal("Server Error", err)
	}
	return orders, total, nil
}

func (s *Service) ListForShop(ctx context.Context, actor *models.User, shopID primitive.ObjectID, f store.OrderFilter, p store.Page) ([]models.Order, int64, error) {
	shop, err := s.store.ShopByID(ctx, shopID)
	if err != nil {
		return nil, 0, storeErr(err, "Shop not found")
	}
	if !policy.CanManageShop(actor, shop) {
		return nil, 0, apperror.Unauthorized("Not authorized to view shop orders")
	}
	f.Shop = &shop.ID
	f.Customer = nil
	orders, total, err := s.store.ListOrders(ctx, f, p)
	if err != nil {
		return nil, 0, apperror.Internal("Server Error", err)
	}
	return orders, total, nil
}

func (s *Service) ListAll(ctx context.Context, f store.OrderFilter, p store.Page) ([]models.Order, int64, error) {
	orders, total, err := s.store.ListOrders(ctx, f, p)
	if err != nil {
		return nil, 0, apperror.Internal("Server Error", err)
	}
	return orders, total, nil
}
