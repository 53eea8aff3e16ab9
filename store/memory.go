package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go_trial/foodhub/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory is a Store held in process memory. All access goes through mu.
type Memory struct {
	mu       sync.Mutex
	users    map[primitive.ObjectID]models.User
	shops    map[primitive.ObjectID]models.Shop
	menu     map[primitive.ObjectID]models.MenuItem
	orders   map[primitive.ObjectID]models.Order
	reviews  map[primitive.ObjectID]models.Review
	sequence int64
}

func NewMemory() *Memory {
	return &Memory{
		users:   make(map[primitive.ObjectID]models.User),
		shops:   make(map[primitive.ObjectID]models.Shop),
		menu:    make(map[primitive.ObjectID]models.MenuItem),
		orders:  make(map[primitive.ObjectID]models.Order),
		reviews: make(map[primitive.ObjectID]models.Review),
	}
}

func (m *Memory) Close(context.Context) error { return nil }

func stamp(id *primitive.ObjectID, created, updated *time.Time) {
	now := time.Now().UTC()
	if id.IsZero() {
		*id = primitive.NewObjectID()
	}
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}

// Users

func (m *Memory) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(u.Email)
	for _, existing := range m.users {
		if strings.ToLower(existing.Email) == email {
			return ErrDuplicate
		}
	}
	stamp(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	m.users[u.ID] = *u
	return nil
}

func (m *Memory) UserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *Memory) UserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UserByResetToken(_ context.Context, tokenHash string, now time.Time) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if tokenHash != "" && u.ResetPasswordToken == tokenHash &&
			u.ResetPasswordExpire != nil && u.ResetPasswordExpire.After(now) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) SaveUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return ErrNotFound
	}
	for id, existing := range m.users {
		if id != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicate
		}
	}
	u.UpdatedAt = time.Now().UTC()
	m.users[u.ID] = *u
	return nil
}

func (m *Memory) ToggleUserActive(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.IsActive = !u.IsActive
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return &u, nil
}

func (m *Memory) ListUsers(_ context.Context, f UserFilter, p Page) ([]models.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	search := strings.ToLower(f.Search)
	for _, u := range m.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Name), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, p), int64(len(out)), nil
}

// Shops

func (m *Memory) CreateShop(_ context.Context, s *models.Shop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.shops {
		if s.Slug != "" && existing.Slug == s.Slug {
			return ErrDuplicate
		}
	}
	stamp(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	m.shops[s.ID] = *s
	return nil
}

func (m *Memory) ShopByID(_ context.Context, id primitive.ObjectID) (*models.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shops[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *Memory) ShopBySlug(_ context.Context, slug string) (*models.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.shops {
		if s.Slug == slug {
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListShops(_ context.Context, f ShopFilter, p Page) ([]models.Shop, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Shop
	search := strings.ToLower(f.Search)
	for _, s := range m.shops {
		if f.Owner != nil && s.Owner != *f.Owner {
			continue
		}
		if f.Category != "" && s.Category != f.Category {
			continue
		}
		if !matchBool(f.IsActive, s.IsActive) || !matchBool(f.IsOpen, s.IsOpen) || !matchBool(f.Featured, s.Featured) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(s.Name), search) &&
			!strings.Contains(strings.ToLower(s.Description), search) && !containsFold(s.Cuisine, search) {
			continue
		}
		out = append(out, s)
	}
	sortBy(out, f.Sort, "-createdAt", shopKeys)
	return paginate(out, p), int64(len(out)), nil
}

func (m *Memory) CountShopsByOwner(_ context.Context, owner primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.shops {
		if s.Owner == owner {
			n++
		}
	}
	return n, nil
}

func (m *Memory) SaveShop(_ context.Context, s *models.Shop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.shops[s.ID]
	if !ok {
		return ErrNotFound
	}
	// rating, counters and the admin active flag only change atomically.
	s.Owner, s.Rating, s.TotalOrders = current.Owner, current.Rating, current.TotalOrders
	s.IsActive, s.CreatedAt = current.IsActive, current.CreatedAt
	s.UpdatedAt = time.Now().UTC()
	m.shops[s.ID] = *s
	return nil
}

func (m *Memory) DeleteShop(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shops[id]; !ok {
		return ErrNotFound
	}
	for itemID, item := range m.menu {
		if item.Shop == id {
			delete(m.menu, itemID)
		}
	}
	delete(m.shops, id)
	return nil
}

func (m *Memory) ToggleShopOpen(_ context.Context, id primitive.ObjectID) (*models.Shop, error) {
	return m.updateShop(id, func(s *models.Shop) { s.IsOpen = !s.IsOpen })
}

func (m *Memory) ToggleShopActive(_ context.Context, id primitive.ObjectID) (*models.Shop, error) {
	return m.updateShop(id, func(s *models.Shop) { s.IsActive = !s.IsActive })
}

func (m *Memory) IncShopOrders(_ context.Context, id primitive.ObjectID, n int) error {
	_, err := m.updateShop(id, func(s *models.Shop) { s.TotalOrders += n })
	return err
}

func (m *Memory) ApplyShopRating(_ context.Context, id primitive.ObjectID, r models.ReviewRating, sign int) error {
	_, err := m.updateShop(id, func(s *models.Shop) {
		applyRating(&s.Rating, r, sign)
	})
	return err
}

func (m *Memory) updateShop(id primitive.ObjectID, fn func(*models.Shop)) (*models.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shops[id]
	if !ok {
		return nil, ErrNotFound
	}
	fn(&s)
	s.UpdatedAt = time.Now().UTC()
	m.shops[id] = s
	return &s, nil
}

// applyRating mirrors the pipeline update the Mongo store runs.
func applyRating(agg *models.ShopRating, r models.ReviewRating, sign int) {
	agg.Count += sign
	agg.Sums.Food += float64(sign * r.Food)
	agg.Sums.Delivery += float64(sign * r.Delivery)
	agg.Sums.Overall += float64(sign * r.Overall)
	if agg.Count <= 0 {
		*agg = models.ShopRating{}
		return
	}
	n := float64(agg.Count)
	agg.Food = round1(agg.Sums.Food / n)
	agg.Delivery = round1(agg.Sums.Delivery / n)
	agg.Average = round1(agg.Sums.Overall / n)
}

// Menu

func (m *Memory) CreateMenuItem(_ context.Context, item *models.MenuItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stamp(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	m.menu[item.ID] = *item
	return nil
}

func (m *Memory) MenuItemByID(_ context.Context, id primitive.ObjectID) (*models.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.menu[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &item, nil
}

func (m *Memory) MenuItemsByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[primitive.ObjectID]*models.MenuItem, len(ids))
	for _, id := range ids {
		if item, ok := m.menu[id]; ok {
			out[id] = &item
		}
	}
	return out, nil
}

func (m *Memory) ListMenuItems(_ context.Context, f MenuFilter, p Page) ([]models.MenuItem, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MenuItem
	search := strings.ToLower(f.Search)
	for _, item := range m.menu {
		if item.Shop != f.Shop {
			continue
		}
		if f.Category != "" && item.Category != f.Category {
			continue
		}
		if !matchBool(f.IsAvailable, item.IsAvailable) || !matchBool(f.IsPopular, item.IsPopular) ||
			!matchBool(f.IsFeatured, item.IsFeatured) {
			continue
		}
		if f.MinPrice != nil && item.Price < *f.MinPrice {
			continue
		}
		if f.MaxPrice != nil && item.Price > *f.MaxPrice {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(item.Name), search) &&
			!strings.Contains(strings.ToLower(item.Description), search) && !containsFold(item.Tags, search) {
			continue
		}
		out = append(out, item)
	}
	sortBy(out, f.Sort, "-createdAt", menuKeys)
	return paginate(out, p), int64(len(out)), nil
}

func (m *Memory) SaveMenuItem(_ context.Context, item *models.MenuItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.menu[item.ID]
	if !ok {
		return ErrNotFound
	}
	item.Shop, item.Rating, item.TotalOrders = current.Shop, current.Rating, current.TotalOrders
	item.CreatedAt = current.CreatedAt
	item.UpdatedAt = time.Now().UTC()
	m.menu[item.ID] = *item
	return nil
}

func (m *Memory) DeleteMenuItem(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.menu[id]; !ok {
		return ErrNotFound
	}
	delete(m.menu, id)
	return nil
}

func (m *Memory) ToggleMenuItemAvailability(_ context.Context, id primitive.ObjectID) (*models.MenuItem, error) {
	return m.updateMenuItem(id, func(item *models.MenuItem) { item.IsAvailable = !item.IsAvailable })
}

func (m *Memory) IncMenuItemOrders(_ context.Context, id primitive.ObjectID, n int) error {
	_, err := m.updateMenuItem(id, func(item *models.MenuItem) { item.TotalOrders += n })
	return err
}

func (m *Memory) updateMenuItem(id primitive.ObjectID, fn func(*models.MenuItem)) (*models.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.menu[id]
	if !ok {
		return nil, ErrNotFound
	}
	fn(&item)
	item.UpdatedAt = time.Now().UTC()
	m.menu[id] = item
	return &item, nil
}

// Orders

func (m *Memory) NextOrderSequence(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence++
	return m.sequence, nil
}

func (m *Memory) CreateOrder(_ context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.orders {
		if existing.OrderNumber == o.OrderNumber {
			return ErrDuplicate
		}
	}
	stamp(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	m.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (m *Memory) OrderByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

func (m *Memory) ListOrders(_ context.Context, f OrderFilter, p Page) ([]models.Order, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		if matchOrder(&o, f) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, p), int64(len(out)), nil
}

func (m *Memory) SaveOrder(_ context.Context, o *models.Order, expect OrderVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.orders[o.ID]
	if !ok {
		return ErrNotFound
	}
	if VersionOf(&current) != expect {
		return ErrStale
	}
	o.UpdatedAt = time.Now().UTC()
	m.orders[o.ID] = cloneOrder(*o)
	return nil
}

func matchOrder(o *models.Order, f OrderFilter) bool {
	if f.Customer != nil && o.Customer != *f.Customer {
		return false
	}
	if f.Shop != nil && o.Shop != *f.Shop {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.From != nil && o.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && o.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

func cloneOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	o.StatusHistory = append([]models.StatusChange(nil), o.StatusHistory...)
	if o.Rating != nil {
		r := *o.Rating
		o.Rating = &r
	}
	if o.Cancellation != nil {
		c := *o.Cancellation
		o.Cancellation = &c
	}
	return o
}

// Reviews

func (m *Memory) CreateReview(_ context.Context, r *models.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.reviews {
		if existing.User == r.User && existing.Order == r.Order {
			return ErrDuplicate
		}
	}
	stamp(&r.ID, &r.CreatedAt, nil)
	m.reviews[r.ID] = *r
	return nil
}

func (m *Memory) ReviewByID(_ context.Context, id primitive.ObjectID) (*models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *Memory) ListReviews(_ context.Context, shop primitive.ObjectID, p Page) ([]models.Review, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Review
	for _, r := range m.reviews {
		if r.Shop == shop {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, p), int64(len(out)), nil
}

func (m *Memory) DeleteReview(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reviews[id]; !ok {
		return ErrNotFound
	}
	delete(m.reviews, id)
	return nil
}

// helpers

func matchBool(want *bool, got bool) bool {
	return want == nil || *want == got
}

func containsFold(values []string, needle string) bool {
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, p Page) []T {
	if p.Limit <= 0 {
		return items
	}
	start := int(p.Skip())
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

type sortKey[T any] func(a, b *T) int

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpTime(a, b time.Time) int { return a.Compare(b) }

var shopKeys = map[string]sortKey[models.Shop]{
	"createdAt":      func(a, b *models.Shop) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
	"name":           func(a, b *models.Shop) int { return strings.Compare(a.Name, b.Name) },
	"rating.average": func(a, b *models.Shop) int { return cmpFloat(a.Rating.Average, b.Rating.Average) },
	"totalOrders":    func(a, b *models.Shop) int { return a.TotalOrders - b.TotalOrders },
	"deliveryFee":    func(a, b *models.Shop) int { return cmpFloat(a.DeliveryFee, b.DeliveryFee) },
	"minimumOrder":   func(a, b *models.Shop) int { return cmpFloat(a.MinimumOrder, b.MinimumOrder) },
}

var menuKeys = map[string]sortKey[models.MenuItem]{
	"createdAt":      func(a, b *models.MenuItem) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
	"name":           func(a, b *models.MenuItem) int { return strings.Compare(a.Name, b.Name) },
	"price":          func(a, b *models.MenuItem) int { return cmpFloat(a.Price, b.Price) },
	"rating.average": func(a, b *models.MenuItem) int { return cmpFloat(a.Rating.Average, b.Rating.Average) },
	"totalOrders":    func(a, b *models.MenuItem) int { return a.TotalOrders - b.TotalOrders },
}

// sortBy orders items by a "field,-field" expr, ignoring unknown fields.
func sortBy[T any](items []T, expr, fallback string, keys map[string]sortKey[T]) {
	fields := parseSort(expr)
	if len(fields) == 0 {
		fields = parseSort(fallback)
	}
	sort.SliceStable(items, func(i, j int) bool {
		for _, f := range fields {
			key, ok := keys[f.name]
			if !ok {
				continue
			}
			c := key(&items[i], &items[j])
			if f.desc {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
}

type sortField struct {
	name string
	desc bool
}

func parseSort(expr string) []sortField {
	var out []sortField
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f := sortField{name: part}
		if strings.HasPrefix(part, "-") {
			f = sortField{name: part[1:], desc: true}
		}
		out = append(out, f)
	}
	return out
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
