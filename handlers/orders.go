package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go_trial/foodhub/apperror"
	"go_trial/foodhub/middleware"
	"go_trial/foodhub/models"
	"go_trial/foodhub/orders"
	"go_trial/foodhub/store"

	"github.com/skip2/go-qrcode"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	myOrdersPageSize   = 10
	shopOrdersPageSize = 25
	qrCodeSize         = 256
)

type namedChoice struct {
	Name string `json:"name"`
}

type orderItemRequest struct {
	MenuItem            string        `json:"menuItem" validate:"required,objectid"`
	Quantity            int           `json:"quantity" validate:"min=1"`
	Variant             *namedChoice  `json:"variant"`
	AddOns              []namedChoice `json:"addOns"`
	SpecialInstructions string        `json:"specialInstructions" validate:"max=200"`
}

type deliveryAddressRequest struct {
	Street               string              `json:"street" validate:"required"`
	City                 string              `json:"city" validate:"required"`
	State                string              `json:"state" validate:"required"`
	ZipCode              string              `json:"zipCode" validate:"required"`
	Coordinates          *coordinatesRequest `json:"coordinates"`
	DeliveryInstructions string              `json:"deliveryInstructions" validate:"max=200"`
}

type createOrderRequest struct {
	Shop            string                 `json:"shop" validate:"required,objectid"`
	Items           []orderItemRequest     `json:"items" validate:"required,min=1,dive"`
	DeliveryAddress deliveryAddressRequest `json:"deliveryAddress"`
	ContactInfo     struct {
		Phone string `json:"phone" validate:"required"`
		Email string `json:"email" validate:"required,email"`
	} `json:"contactInfo"`
	PaymentInfo struct {
		PaymentMethod string `json:"paymentMethod" validate:"required,oneof=card cash digital_wallet"`
	} `json:"paymentInfo"`
	Tip                 float64 `json:"tip" validate:"gte=0"`
	SpecialInstructions string  `json:"specialInstructions" validate:"max=500"`
}

func (req createOrderRequest) input() orders.CreateInput {
	shopID, _ := primitive.ObjectIDFromHex(req.Shop)
	in := orders.CreateInput{
		Shop:                shopID,
		ContactInfo:         models.ContactInfo{Phone: req.ContactInfo.Phone, Email: req.ContactInfo.Email},
		PaymentMethod:       models.PaymentMethod(req.PaymentInfo.PaymentMethod),
		Tip:                 req.Tip,
		SpecialInstructions: req.SpecialInstructions,
	}
	addr := req.DeliveryAddress
	in.DeliveryAddress = models.DeliveryAddress{
		Street:               addr.Street,
		City:                 addr.City,
		State:                addr.State,
		ZipCode:              addr.ZipCode,
		DeliveryInstructions: addr.DeliveryInstructions,
	}
	if addr.Coordinates != nil {
		in.DeliveryAddress.Coordinates = &models.Coordinates{Lat: addr.Coordinates.Lat, Lng: addr.Coordinates.Lng}
	}
	for _, it := range req.Items {
		id, _ := primitive.ObjectIDFromHex(it.MenuItem)
		line := orders.LineInput{MenuItem: id, Quantity: it.Quantity, SpecialInstructions: it.SpecialInstructions}
		if it.Variant != nil {
			line.Variant = it.Variant.Name
		}
		for _, a := range it.AddOns {
			line.AddOns = append(line.AddOns, a.Name)
		}
		in.Items = append(in.Items, line)
	}
	return in
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=200"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=200"`
}

type rateOrderRequest struct {
	Rating struct {
		FoodRating     int `json:"foodRating"`
		DeliveryRating int `json:"deliveryRating"`
		OverallRating  int `json:"overallRating"`
	} `json:"rating"`
	Review string `json:"review" validate:"max=500"`
}

//CreateOrder handles checkout of a cart against one shop

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req createOrderRequest
	if err := bind(r, &req); err != nil {
		ordersCreated.WithLabelValues("error").Inc()
		orderCreateDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := timeout(ctx)
	defer cancel()
	order, err := h.orders.Create(ctx, middleware.CurrentUser(r.Context()), req.input())
	ordersCreated.WithLabelValues(outcome(err)).Inc()
	orderCreateDuration.WithLabelValues(outcome(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		h.writeError(w, r, err)
		return
	}
	h.writeOrder(ctx, w, r, http.StatusCreated, order)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx, cancel := timeout(r.Context())
	defer cancel()
	order, err := h.orders.Get(ctx, middleware.CurrentUser(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOrder(ctx, w, r, http.StatusOK, order)
}

// OrderQRCode renders the order number as a PNG for pickup.
func (h *Handler) OrderQRCode(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx, cancel := timeout(r.Context())
	defer cancel()
	order, err := h.orders.Get(ctx, middleware.CurrentUser(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	png, err := qrcode.Encode(order.OrderNumber, qrcode.Medium, qrCodeSize)
	if err != nil {
		h.writeError(w, r, apperror.Internal("Server Error", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeout(r.Context())
	defer cancel()
	p := pageOf(r, myOrdersPageSize)
	list, total, err := h.orders.ListMine(ctx, middleware.CurrentUser(r.Context()), statusParam(r), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOrderPage(ctx, w, r, list, total, p)
}

// parseDay accepts a date or an RFC3339 timestamp. A bare end date covers
// that whole day.
func parseDay(v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func (h *Handler) writeOrder(ctx context.Context, w http.ResponseWriter, r *http.Request, status int, o *models.Order) {
	v, err := h.populateOne(ctx, o)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, status, v)
}

func (h *Handler) writeOrderPage(ctx context.Context, w http.ResponseWriter, r *http.Request, list []models.Order, total int64, p store.Page) {
	views, err := h.populate(ctx, list...)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writePage(w, views, total, p)
}

// statusParam ignores unknown ?status= values.
func statusParam(r *http.Request) models.OrderStatus {
	s := models.OrderStatus(r.URL.Query().Get("status"))
	if !s.Valid() {
		return ""
	}
	return s
}

func orderFilterOf(r *http.Request) (store.OrderFilter, error) {
	q := r.URL.Query()
	f := store.OrderFilter{Status: statusParam(r)}
	var err error
	if f.From, err = parseDay(q.Get("startDate"), false); err != nil {
		return f, apperror.Validation("Validation failed", apperror.FieldError{Field: "startDate", Message: "Invalid date"})
	}
	if f.To, err = parseDay(q.Get("endDate"), true); err != nil {
		return f, apperror.Validation("Validation failed", apperror.FieldError{Field: "endDate", Message: "Invalid date"})
	}
	return f, nil
}

func (h *Handler) ShopOrders(w http.ResponseWriter, r *http.Request) {
	shopID, err := pathID(r, "shopId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	f, err := orderFilterOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx, cancel := timeout(r.Context())
	defer cancel()
	p := pageOf(r, shopOrdersPageSize)
	list, total, err := h.orders.ListForShop(ctx, middleware.CurrentUser(r.Context()), shopID, f, p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOrderPage(ctx, w, r, list, total, p)
}

func (h *Handler) AllOrders(w http.ResponseWriter, r *http.Request) {
	f, err := orderFilterOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx, cancel := timeout(r.Context())
	defer cancel()
	p := pageOf(r, shopOrdersPageSize)
	list, total, err := h.orders.ListAll(ctx, f, p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOrderPage(ctx, w, r, list, total, p)
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req updateStatusRequest
	if err := bind(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx, cancel := timeout(r.Context())
	defer cancel()
	order, err := h.orders.UpdateStatus(ctx, middleware.CurrentUser(r.Context()), id, models.OrderStatus(req.Status), req.Note)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	statusTransitions.WithLabelValues(string(order.Status)).Inc()
	h.writeOrder(ctx, w, r, http.StatusOK, order)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req cancelRequest
	if err := bindOptional(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx, cancel := timeout(r.Context())
	defer cancel()
	order, err := h.orders.Cancel(ctx, middleware.CurrentUser(r.Context()), id, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	statusTransitions.WithLabelValues(string(order.Status)).Inc()
	h.writeOrder(ctx, w, r, http.StatusOK, order)
}

func (h *Handler) RateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req rateOrderRequest
	if err := bind(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx, cancel := timeout(r.Context())
	defer cancel()
	order, err := h.orders.Rate(ctx, middleware.CurrentUser(r.Context()), id, orders.RatingInput{
		FoodRating:     req.Rating.FoodRating,
		DeliveryRating: req.Rating.DeliveryRating,
		OverallRating:  req.Rating.OverallRating,
		Review:         req.Review,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOrder(ctx, w, r, http.StatusOK, order)
}
