package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go_trial/foodhub/apperror"
	"go_trial/foodhub/middleware"
	"go_trial/foodhub/models"
	"go_trial/foodhub/notify"
	"go_trial/foodhub/policy"
	"go_trial/foodhub/store"

	"github.com/gorilla/mux"
	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const shopsPageSize = 25

type coordinatesRequest struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

type addressRequest struct {
	Street      string              `json:"street" validate:"required"`
	City        string              `json:"city" validate:"required"`
	State       string              `json:"state" validate:"required"`
	ZipCode     string              `json:"zipCode" validate:"required"`
	Coordinates *coordinatesRequest `json:"coordinates"`
}

func (a addressRequest) model() models.Address {
	out := models.Address{Street: a.Street, City: a.City, State: a.State, ZipCode: a.ZipCode}
	if a.Coordinates != nil {
		out.Coordinates = &models.Coordinates{Lat: a.Coordinates.Lat, Lng: a.Coordinates.Lng}
	}
	return out
}

type deliveryTimeRequest struct {
	Min int `json:"min" validate:"required,min=1"`
	Max int `json:"max" validate:"required,min=1,gtefield=Min"`
}

// shopRequest is the editable part of a shop. Updates decode the body over
// the current values, so omitted fields keep them.
type shopRequest struct {
	Name         string              `json:"name" validate:"required,min=2,max=100"`
	Description  string              `json:"description" validate:"required,min=10,max=500"`
	Category     string              `json:"category" validate:"required,shopcategory"`
	Cuisine      []string            `json:"cuisine" validate:"required,min=1"`
	Address      addressRequest      `json:"address"`
	Phone        string              `json:"phone" validate:"required"`
	Email        string              `json:"email" validate:"required,email"`
	Website      string              `json:"website" validate:"omitempty,url"`
	DeliveryFee  float64             `json:"deliveryFee" validate:"gte=0"`
	MinimumOrder float64             `json:"minimumOrder" validate:"gte=0"`
	DeliveryTime deliveryTimeRequest `json:"deliveryTime"`
	Tags         []string            `json:"tags"`
	IsOpen       *bool               `json:"isOpen"`
}

func shopRequestFrom(s *models.Shop) shopRequest {
	req := shopRequest{
		Name:         s.Name,
		Description:  s.Description,
		Category:     s.Category,
		Cuisine:      s.Cuisine,
		Address:      addressRequest{Street: s.Address.Street, City: s.Address.City, State: s.Address.State, ZipCode: s.Address.ZipCode},
		Phone:        s.Phone,
		Email:        s.Email,
		Website:      s.Website,
		DeliveryFee:  s.DeliveryFee,
		MinimumOrder: s.MinimumOrder,
		DeliveryTime: deliveryTimeRequest{Min: s.DeliveryTime.Min, Max: s.DeliveryTime.Max},
		Tags:         s.Tags,
	}
	if c := s.Address.Coordinates; c != nil {
		req.Address.Coordinates = &coordinatesRequest{Lat: c.Lat, Lng: c.Lng}
	}
	return req
}

func (req shopRequest) apply(s *models.Shop) {
	s.Name = strings.TrimSpace(req.Name)
	s.Description = strings.TrimSpace(req.Description)
	s.Category = req.Category
	s.Cuisine = req.Cuisine
	s.Address = req.Address.model()
	s.Phone = req.Phone
	s.Email = strings.ToLower(req.Email)
	s.Website = req.Website
	s.DeliveryFee = req.DeliveryFee
	s.MinimumOrder = req.MinimumOrder
	s.DeliveryTime = models.DeliveryTime{Min: req.DeliveryTime.Min, Max: req.DeliveryTime.Max}
	s.Tags = req.Tags
	if req.IsOpen != nil {
		s.IsOpen = *req.IsOpen
	}
}

// loadManagedShop loads the shop in route variable name and checks the
// current user may manage it.
func (h *Handler) loadManagedShop(r *http.Request, name, denied string) (*models.Shop, error) {
	id, err := pathID(r, name)
	if err != nil {
		return nil, err
	}
	ctx, cancel := timeout(r.Context())
	defer cancel()
	shop, err := h.store.ShopByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Shop not found")
	}
	if !policy.CanManageShop(middleware.CurrentUser(r.Context()), shop) {
		return nil, apperror.Unauthorized(denied)
	}
	return shop, nil
}

//ListShops handles the public shop directory

func (h *Handler) ListShops(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeout(r.Context())
	defer cancel()

	q := r.URL.Query()
	active := true
	f := store.ShopFilter{
		Category: q.Get("category"),
		IsActive: &active,
		IsOpen:   queryBool(r, "isOpen"),
		Featured: queryBool(r, "featured"),
		Search:   q.Get("search"),
		Sort:     q.Get("sort"),
	}
	p := pageOf(r, shopsPageSize)
	shops, total, err := h.store.ListShops(ctx, f, p)
	if err != nil {
		h.writeError(w, r, apperror.Internal("Server Error", err))
		return
	}
	writePage(w, shops, total, p)
}

func (h *Handler) GetShop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx, cancel := timeout(r.Context())
	defer cancel()
	shop, err := h.store.ShopByID(ctx, id)
	if err != nil {
		h.writeError(w, r, notFoundOr(err, "Shop not found"))
		return
	}
	writeData(w, http.StatusOK, shop)
}

func (h *Handler) GetShopBySlug(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeout(r.Context())
	defer cancel()
	shop, err := h.store.ShopBySlug(ctx, mux.Vars(r)["slug"])
	if err != nil {
		h.writeError(w, r, notFoundOr(err, "Shop not found"))
		return
	}
	writeData(w, http.StatusOK, shop)
}

func (h *Handler) MyShops(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeout(r.Context())
	defer cancel()
	user := middleware.CurrentUser(r.Context())
	p := store.Page{Page: 1, Limit: 100}
	shops, total, err := h.store.ListShops(ctx, store.ShopFilter{Owner: &user.ID}, p)
	if err != nil {
		h.writeError(w, r, apperror.Internal("Server Error", err))
		return
	}
	writePage(w, shops, total, p)
}

//CreateShop registers a shop for the current owner

func (h *Handler) CreateShop(w http.ResponseWriter, r *http.Request) {
	var req shopRequest
	if err := bind(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := timeout(r.Context())
	defer cancel()

	user := middleware.CurrentUser(r.Context())
	if !user.IsAdmin() {
		n, err := h.store.CountShopsByOwner(ctx, user.ID)
		if err != nil {
			h.writeError(w, r, apperror.Internal("Server Error", err))
			return
		}
		if n > 0 {
			h.writeError(w, r, apperror.BusinessRule("User can only create one shop"))
			return
		}
	}

	shop := &models.Shop{ID: primitive.NewObjectID(), Owner: user.ID, IsActive: true, IsOpen: true}
	req.apply(shop)
	shop.Slug = slug.Make(shop.Name)
	err := h.store.CreateShop(ctx, shop)
	if errors.Is(err, store.ErrDuplicate) {
		// Same name as an existing shop; the id suffix makes it unique.
		shop.Slug = slug.Make(shop.Name + " " + shop.ID.Hex()[18:])
		err = h.store.CreateShop(ctx, shop)
	}
	if err != nil {
		h.writeError(w, r, apperror.Internal("Server error during shop creation", err))
		return
	}

	h.events.Broadcast(ctx, notify.GlobalRoom, notify.ShopCreated, envelope{"shop": shop})
	h.log.Info("shop created", "shop", shop.ID.Hex(), "owner", user.ID.Hex())
	writeData(w, http.StatusCreated, shop)
}

func (h *Handler) UpdateShop(w http.ResponseWriter, r *http.Request) {
	shop, err := h.loadManagedShop(r, "id", "User not authorized to update this shop")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req := shopRequestFrom(shop)
	if err := bind(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	req.apply(shop)

	ctx, cancel := timeout(r.Context())
	defer cancel()
	if err := h.store.SaveShop(ctx, shop); err != nil {
		h.writeError(w, r, notFoundOr(err, "Shop not found"))
		return
	}
	h.events.Broadcast(ctx, notify.GlobalRoom, notify.ShopUpdated, envelope{"shop": shop})
	writeData(w, http.StatusOK, shop)
}

func (h *Handler) DeleteShop(w http.ResponseWriter, r *http.Request) {
	shop, err := h.loadManagedShop(r, "id", "User not authorized to delete this shop")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx, cancel := timeout(r.Context())
	defer cancel()
	if err := h.store.DeleteShop(ctx, shop.ID); err != nil {
		h.writeError(w, r, notFoundOr(err, "Shop not found"))
		return
	}
	h.events.Broadcast(ctx, notify.GlobalRoom, notify.ShopDeleted, envelope{"shopId": shop.ID})
	h.log.Info("shop deleted", "shop", shop.ID.Hex())
	writeJSON(w, http.StatusOK, envelope{"success": true, "message": "Shop deleted successfully"})
}

// ToggleShopOpen flips whether the shop is taking orders.
func (h *Handler) ToggleShopOpen(w http.ResponseWriter, r *http.Request) {
	shop, err := h.loadManagedShop(r, "id", "User not authorized to update this shop")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx, cancel := timeout(r.Context())
	defer cancel()
	shop, err = h.store.ToggleShopOpen(ctx, shop.ID)
	if err != nil {
		h.writeError(w, r, notFoundOr(err, "Shop not found"))
		return
	}

	state := "closed"
	if shop.IsOpen {
		state = "open"
	}
	h.events.Broadcast(ctx, notify.GlobalRoom, notify.ShopStatusChanged, envelope{"shopId": shop.ID, "isOpen": shop.IsOpen})
	writeJSON(w, http.StatusOK, envelope{
		"success": true,
		"data":    envelope{"isOpen": shop.IsOpen},
		"message": "Shop is now " + state,
	})
}

func (h *Handler) ShopStats(w http.ResponseWriter, r *http.Request) {
	shop, err := h.loadManagedShop(r, "id", "User not authorized to view shop stats")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx, cancel := timeout(r.Context())
	defer cancel()
	stats, err := h.store.ShopStats(ctx, shop.ID)
	if err != nil {
		h.writeError(w, r, apperror.Internal("Server Error", err))
		return
	}
	writeData(w, http.StatusOK, stats)
}
