package handlers

import (
	"net/http"
	"strings"

	"go_trial/foodhub/apperror"
	"go_trial/foodhub/middleware"
	"go_trial/foodhub/models"
	"go_trial/foodhub/notify"
	"go_trial/foodhub/policy"
	"go_trial/foodhub/store"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const menuPageSize = 20

// menuSorts maps the public sort names onto store sort expressions.
var menuSorts = map[string]string{
	"price_asc":  "price",
	"price_desc": "-price",
	"rating":     "-rating.average",
	"popular":    "-totalOrders",
	"newest":     "-createdAt",
	"name":       "name",
}

type menuItemRequest struct {
	Name            string           `json:"name" validate:"required,min=2,max=100"`
	Description     string           `json:"description" validate:"required,min=10,max=500"`
	Price           float64          `json:"price" validate:"gte=0"`
	Category        string           `json:"category" validate:"required,menucategory"`
	Variants        []models.Variant `json:"variants" validate:"dive"`
	AddOns          []models.AddOn   `json:"addOns" validate:"dive"`
	Ingredients     []string         `json:"ingredients"`
	Tags            []string         `json:"tags"`
	PreparationTime int              `json:"preparationTime" validate:"min=1"`
	IsAvailable     *bool            `json:"isAvailable"`
	IsPopular       bool             `json:"isPopular"`
	IsFeatured      bool             `json:"isFeatured"`
}

func menuItemRequestFrom(m *models.MenuItem) menuItemRequest {
	available := m.IsAvailable
	return menuItemRequest{
		Name:            m.Name,
		Description:     m.Description,
		Price:           m.Price,
		Category:        m.Category,
		Variants:        m.Variants,
		AddOns:          m.AddOns,
		Ingredients:     m.Ingredients,
		Tags:            m.Tags,
		PreparationTime: m.PreparationTime,
		IsAvailable:     &available,
		IsPopular:       m.IsPopular,
		IsFeatured:      m.IsFeatured,
	}
}

func (req menuItemRequest) apply(m *models.MenuItem) {
	m.Name = strings.TrimSpace(req.Name)
	m.Description = strings.TrimSpace(req.Description)
	m.Price = req.Price
	m.Category = req.Category
	m.Variants = req.Variants
	m.AddOns = req.AddOns
	m.Ingredients = req.Ingredients
	m.Tags = req.Tags
	m.PreparationTime = req.PreparationTime
	m.IsAvailable = req.IsAvailable == nil || *req.IsAvailable
	m.IsPopular = req.IsPopular
	m.IsFeatured = req.IsFeatured
}

func (h *Handler) listMenu(w http.ResponseWriter, r *http.Request, category string) {
	shopID, err := pathID(r, "shopId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx, cancel := timeout(r.Context())
	defer cancel()
	if _, err := h.store.ShopByID(ctx, shopID); err != nil {
		h.writeError(w, r, notFoundOr(err, "Shop not found"))
		return
	}

	q := r.URL.Query()
	f := store.MenuFilter{
		Shop:        shopID,
		Category:    category,
		IsAvailable: queryBool(r, "isAvailable"),
		IsPopular:   queryBool(r, "isPopular"),
		IsFeatured:  queryBool(r, "isFeatured"),
		MinPrice:    queryFloat(r, "minPrice"),
		MaxPrice:    queryFloat(r, "maxPrice"),
		Search:      q.Get("search"),
		Sort:        menuSorts[q.Get("sort")],
	}
	p := pageOf(r, menuPageSize)
	items, total, err := h.store.ListMenuItems(ctx, f, p)
	if err != nil {
		h.writeError(w, r, apperror.Internal("Server Error", err))
		return
	}
	writePage(w, items, total, p)
}

//ListMenu handles the public menu of a shop

func (h *Handler) ListMenu(w http.ResponseWriter, r *http.Request) {
	h.listMenu(w, r, r.URL.Query().Get("category"))
}

func (h *Handler) ListMenuByCategory(w http.ResponseWriter, r *http.Request) {
	h.listMenu(w, r, mux.Vars(r)["category"])
}

func (h *Handler) GetMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx, cancel := timeout(r.Context())
	defer cancel()
	item, err := h.store.MenuItemByID(ctx, id)
	if err != nil {
		h.writeError(w, r, notFoundOr(err, "Menu item not found"))
		return
	}
	writeData(w, http.StatusOK, item)
}

func (h *Handler) CreateMenuItem(w http.ResponseWriter, r *http.Request) {
	shop, err := h.loadManagedShop(r, "shopId", "User not authorized to add menu items to this shop")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req := menuItemRequest{PreparationTime: 15}
	if err := bind(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	item := &models.MenuItem{ID: primitive.NewObjectID(), Shop: shop.ID}
	req.apply(item)

	ctx, cancel := timeout(r.Context())
	defer cancel()
	if err := h.store.CreateMenuItem(ctx, item); err != nil {
		h.writeError(w, r, apperror.Internal("Server error during menu item creation", err))
		return
	}
	h.events.Broadcast(ctx, notify.ShopRoom(shop.ID), notify.MenuItemAdded, envelope{"menuItem": item})
	writeData(w, http.StatusCreated, item)
}

// loadManagedItem loads a menu item whose shop the current user manages.
func (h *Handler) loadManagedItem(r *http.Request, denied string) (*models.MenuItem, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}
	ctx, cancel := timeout(r.Context())
	defer cancel()
	item, err := h.store.MenuItemByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Menu item not found")
	}
	shop, err := h.store.ShopByID(ctx, item.Shop)
	if err != nil {
		return nil, notFoundOr(err, "Shop not found")
	}
	if !policy.CanManageShop(middleware.CurrentUser(r.Context()), shop) {
		return nil, apperror.Unauthorized(denied)
	}
	return item, nil
}

func (h *Handler) UpdateMenuItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.loadManagedItem(r, "User not authorized to update this menu item")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req := menuItemRequestFrom(item)
	if err := bind(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	req.apply(item)

	ctx, cancel := timeout(r.Context())
	defer cancel()
	if err := h.store.SaveMenuItem(ctx, item); err != nil {
		h.writeError(w, r, notFoundOr(err, "Menu item not found"))
		return
	}
	h.events.Broadcast(ctx, notify.ShopRoom(item.Shop), notify.MenuItemUpdated, envelope{"menuItem": item})
	writeData(w, http.StatusOK, item)
}

func (h *Handler) DeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.loadManagedItem(r, "User not authorized to delete this menu item")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx, cancel := timeout(r.Context())
	defer cancel()
	if err := h.store.DeleteMenuItem(ctx, item.ID); err != nil {
		h.writeError(w, r, notFoundOr(err, "Menu item not found"))
		return
	}
	h.events.Broadcast(ctx, notify.ShopRoom(item.Shop), notify.MenuItemDeleted, envelope{"menuItemId": item.ID})
	writeJSON(w, http.StatusOK, envelope{"success": true, "message": "Menu item deleted successfully"})
}

// ToggleMenuItemAvailability flips isAvailable atomically in the store.
func (h *Handler) ToggleMenuItemAvailability(w http.ResponseWriter, r *http.Request) {
	item, err := h.loadManagedItem(r, "User not authorized to update this menu item")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx, cancel := timeout(r.Context())
	defer cancel()
	item, err = h.store.ToggleMenuItemAvailability(ctx, item.ID)
	if err != nil {
		h.writeError(w, r, notFoundOr(err, "Menu item not found"))
		return
	}
	h.events.Broadcast(ctx, notify.ShopRoom(item.Shop), notify.MenuItemUpdated, envelope{"menuItem": item})
	writeData(w, http.StatusOK, item)
}
