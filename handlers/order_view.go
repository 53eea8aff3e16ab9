package handlers

import (
	"context"
	"errors"

	"go_trial/foodhub/apperror"
	"go_trial/foodhub/models"
	"go_trial/foodhub/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type customerSummary struct {
	ID    primitive.ObjectID `json:"id"`
	Name  string             `json:"name,omitempty"`
	Email string             `json:"email,omitempty"`
	Phone string             `json:"phone,omitempty"`
}

type shopSummary struct {
	ID       primitive.ObjectID `json:"id"`
	Name     string             `json:"name,omitempty"`
	Category string             `json:"category,omitempty"`
	Address  *models.Address    `json:"address,omitempty"`
	Phone    string             `json:"phone,omitempty"`
}

type menuItemSummary struct {
	ID          primitive.ObjectID `json:"id"`
	Name        string             `json:"name,omitempty"`
	Price       float64            `json:"price,omitempty"`
	Description string             `json:"description,omitempty"`
}

type orderLineView struct {
	models.OrderItem
	MenuItem *menuItemSummary `json:"menuItem"`
}

// orderView is an order with customer, shop and menu item references
// expanded into summaries. A reference whose document is gone keeps its id.
type orderView struct {
	models.Order
	Customer *customerSummary `json:"customer"`
	Shop     *shopSummary     `json:"shop"`
	Items    []orderLineView  `json:"items"`
}

// populator caches lookups across the orders of one response.
type populator struct {
	st    store.Store
	users map[primitive.ObjectID]*customerSummary
	shops map[primitive.ObjectID]*shopSummary
	menu  map[primitive.ObjectID]*menuItemSummary
}

func (h *Handler) populate(ctx context.Context, list ...models.Order) ([]orderView, error) {
	p := &populator{
		st:    h.store,
		users: map[primitive.ObjectID]*customerSummary{},
		shops: map[primitive.ObjectID]*shopSummary{},
		menu:  map[primitive.ObjectID]*menuItemSummary{},
	}
	if err := p.loadMenu(ctx, list); err != nil {
		return nil, err
	}
	views := make([]orderView, 0, len(list))
	for i := range list {
		v, err := p.view(ctx, &list[i])
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (h *Handler) populateOne(ctx context.Context, o *models.Order) (*orderView, error) {
	views, err := h.populate(ctx, *o)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (p *populator) loadMenu(ctx context.Context, list []models.Order) error {
	var ids []primitive.ObjectID
	seen := map[primitive.ObjectID]bool{}
	for _, o := range list {
		for _, it := range o.Items {
			if !seen[it.MenuItem] {
				seen[it.MenuItem] = true
				ids = append(ids, it.MenuItem)
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}
	items, err := p.st.MenuItemsByIDs(ctx, ids)
	if err != nil {
		return apperror.Internal("Server Error", err)
	}
	for _, id := range ids {
		s := &menuItemSummary{ID: id}
		if m, ok := items[id]; ok {
			s.Name, s.Price, s.Description = m.Name, m.Price, m.Description
		}
		p.menu[id] = s
	}
	return nil
}

func (p *populator) view(ctx context.Context, o *models.Order) (orderView, error) {
	customer, err := p.customer(ctx, o.Customer)
	if err != nil {
		return orderView{}, err
	}
	shop, err := p.shop(ctx, o.Shop)
	if err != nil {
		return orderView{}, err
	}
	lines := make([]orderLineView, 0, len(o.Items))
	for _, it := range o.Items {
		m := p.menu[it.MenuItem]
		if m == nil {
			m = &menuItemSummary{ID: it.MenuItem}
		}
		lines = append(lines, orderLineView{OrderItem: it, MenuItem: m})
	}
	return orderView{Order: *o, Customer: customer, Shop: shop, Items: lines}, nil
}

func (p *populator) customer(ctx context.Context, id primitive.ObjectID) (*customerSummary, error) {
	if s, ok := p.users[id]; ok {
		return s, nil
	}
	s := &customerSummary{ID: id}
	u, err := p.st.UserByID(ctx, id)
	switch {
	case err == nil:
		s.Name, s.Email, s.Phone = u.Name, u.Email, u.Phone
	case !errors.Is(err, store.ErrNotFound):
		return nil, apperror.Internal("Server Error", err)
	}
	p.users[id] = s
	return s, nil
}

func (p *populator) shop(ctx context.Context, id primitive.ObjectID) (*shopSummary, error) {
	if s, ok := p.shops[id]; ok {
		return s, nil
	}
	s := &shopSummary{ID: id}
	sh, err := p.st.ShopByID(ctx, id)
	switch {
	case err == nil:
		addr := sh.Address
		s.Name, s.Category, s.Address, s.Phone = sh.Name, sh.Category, &addr, sh.Phone
	case !errors.Is(err, store.ErrNotFound):
		return nil, apperror.Internal("Server Error", err)
	}
	p.shops[id] = s
	return s, nil
}
