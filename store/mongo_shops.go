package store

import (
	"context"
	"time"

	"go_trial/foodhub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var shopSortFields = map[string]bool{
	"createdAt": true, "name": true, "rating.average": true,
	"totalOrders": true, "deliveryFee": true, "minimumOrder": true,
}

var menuSortFields = map[string]bool{
	"createdAt": true, "name": true, "price": true,
	"rating.average": true, "totalOrders": true,
}

func (m *Mongo) CreateShop(ctx context.Context, s *models.Shop) error {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	now := time.Now().UTC()
	if s.ID.IsZero() {
		s.ID = primitive.NewObjectID()
	}
	s.CreatedAt, s.UpdatedAt = now, now
	_, err := m.shops.InsertOne(ctx, s)
	return translate("insert shop", err)
}

func (m *Mongo) ShopByID(ctx context.Context, id primitive.ObjectID) (*models.Shop, error) {
	return m.findShop(ctx, bson.M{"_id": id})
}

func (m *Mongo) ShopBySlug(ctx context.Context, slug string) (*models.Shop, error) {
	return m.findShop(ctx, bson.M{"slug": slug})
}

func (m *Mongo) findShop(ctx context.Context, filter bson.M) (*models.Shop, error) {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	var s models.Shop
	if err := m.shops.FindOne(ctx, filter).Decode(&s); err != nil {
		return nil, translate("find shop", err)
	}
	return &s, nil
}

func (m *Mongo) ListShops(ctx context.Context, f ShopFilter, p Page) ([]models.Shop, int64, error) {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	filter := bson.M{}
	if f.Owner != nil {
		filter["owner"] = *f.Owner
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	boolFilter(filter, "isActive", f.IsActive)
	boolFilter(filter, "isOpen", f.IsOpen)
	boolFilter(filter, "featured", f.Featured)
	if f.Search != "" {
		re := searchRegex(f.Search)
		filter["$or"] = bson.A{bson.M{"name": re}, bson.M{"description": re}, bson.M{"cuisine": re}}
	}
	shops, total, err := findPage[models.Shop](ctx, m.shops, filter, sortDoc(f.Sort, "-createdAt", shopSortFields), p)
	return shops, total, translate("list shops", err)
}

func (m *Mongo) CountShopsByOwner(ctx context.Context, owner primitive.ObjectID) (int64, error) {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	n, err := m.shops.CountDocuments(ctx, bson.M{"owner": owner})
	return n, translate("count shops", err)
}

func (m *Mongo) SaveShop(ctx context.Context, s *models.Shop) error {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	s.UpdatedAt = time.Now().UTC()
	// rating and order counters are owned by atomic updates.
	res, err := m.shops.UpdateOne(ctx, bson.M{"_id": s.ID}, bson.M{"$set": bson.M{
		"name":         s.Name,
		"slug":         s.Slug,
		"description":  s.Description,
		"category":     s.Category,
		"cuisine":      s.Cuisine,
		"address":      s.Address,
		"phone":        s.Phone,
		"email":        s.Email,
		"website":      s.Website,
		"deliveryFee":  s.DeliveryFee,
		"minimumOrder": s.MinimumOrder,
		"deliveryTime": s.DeliveryTime,
		"isOpen":       s.IsOpen,
		"featured":     s.Featured,
		"tags":         s.Tags,
		"updatedAt":    s.UpdatedAt,
	}})
	if err != nil {
		return translate("save shop", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) DeleteShop(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	res, err := m.shops.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate("delete shop", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	if _, err := m.menu.DeleteMany(ctx, bson.M{"shop": id}); err != nil {
		return translate("delete shop menu", err)
	}
	return nil
}

func (m *Mongo) ToggleShopOpen(ctx context.Context, id primitive.ObjectID) (*models.Shop, error) {
	return m.toggleShop(ctx, id, "isOpen")
}

func (m *Mongo) ToggleShopActive(ctx context.Context, id primitive.ObjectID) (*models.Shop, error) {
	return m.toggleShop(ctx, id, "isActive")
}

func (m *Mongo) toggleShop(ctx context.Context, id primitive.ObjectID, field string) (*models.Shop, error) {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	var s models.Shop
	if err := m.shops.FindOneAndUpdate(ctx, bson.M{"_id": id}, toggle(field), returnAfter).Decode(&s); err != nil {
		return nil, translate("toggle shop", err)
	}
	return &s, nil
}

func (m *Mongo) IncShopOrders(ctx context.Context, id primitive.ObjectID, n int) error {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	res, err := m.shops.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"totalOrders": n}})
	if err != nil {
		return translate("inc shop orders", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) ApplyShopRating(ctx context.Context, id primitive.ObjectID, r models.ReviewRating, sign int) error {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	add := func(field string, delta int) bson.D {
		return bson.D{{Key: "$add", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$" + field, 0}}}, delta}}}
	}
	avg := func(sum string) bson.D {
		return bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$gt", Value: bson.A{"$rating.count", 0}}},
			bson.D{{Key: "$round", Value: bson.A{bson.D{{Key: "$divide", Value: bson.A{"$" + sum, "$rating.count"}}}, 1}}},
			0,
		}}}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "rating.count", Value: add("rating.count", sign)},
			{Key: "rating.sums.food", Value: add("rating.sums.food", sign*r.Food)},
			{Key: "rating.sums.delivery", Value: add("rating.sums.delivery", sign*r.Delivery)},
			{Key: "rating.sums.overall", Value: add("rating.sums.overall", sign*r.Overall)},
		}}},
		{{Key: "$set", Value: bson.D{
			{Key: "rating.food", Value: avg("rating.sums.food")},
			{Key: "rating.delivery", Value: avg("rating.sums.delivery")},
			{Key: "rating.average", Value: avg("rating.sums.overall")},
		}}},
	}
	res, err := m.shops.UpdateOne(ctx, bson.M{"_id": id}, pipeline)
	if err != nil {
		return translate("apply shop rating", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Menu

func (m *Mongo) CreateMenuItem(ctx context.Context, item *models.MenuItem) error {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	now := time.Now().UTC()
	if item.ID.IsZero() {
		item.ID = primitive.NewObjectID()
	}
	item.CreatedAt, item.UpdatedAt = now, now
	_, err := m.menu.InsertOne(ctx, item)
	return translate("insert menu item", err)
}

func (m *Mongo) MenuItemByID(ctx context.Context, id primitive.ObjectID) (*models.MenuItem, error) {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	var item models.MenuItem
	if err := m.menu.FindOne(ctx, bson.M{"_id": id}).Decode(&item); err != nil {
		return nil, translate("find menu item", err)
	}
	return &item, nil
}

func (m *Mongo) MenuItemsByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.MenuItem, error) {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	items, err := findAll[models.MenuItem](ctx, m.menu, bson.M{"_id": bson.M{"$in": ids}}, nil)
	if err != nil {
		return nil, translate("find menu items", err)
	}
	out := make(map[primitive.ObjectID]*models.MenuItem, len(items))
	for i := range items {
		out[items[i].ID] = &items[i]
	}
	return out, nil
}

func (m *Mongo) ListMenuItems(ctx context.Context, f MenuFilter, p Page) ([]models.MenuItem, int64, error) {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	filter := bson.M{"shop": f.Shop}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	boolFilter(filter, "isAvailable", f.IsAvailable)
	boolFilter(filter, "isPopular", f.IsPopular)
	boolFilter(filter, "isFeatured", f.IsFeatured)
	if f.MinPrice != nil || f.MaxPrice != nil {
		price := bson.M{}
		if f.MinPrice != nil {
			price["$gte"] = *f.MinPrice
		}
		if f.MaxPrice != nil {
			price["$lte"] = *f.MaxPrice
		}
		filter["price"] = price
	}
	if f.Search != "" {
		re := searchRegex(f.Search)
		filter["$or"] = bson.A{bson.M{"name": re}, bson.M{"description": re}, bson.M{"tags": re}}
	}
	items, total, err := findPage[models.MenuItem](ctx, m.menu, filter, sortDoc(f.Sort, "-createdAt", menuSortFields), p)
	return items, total, translate("list menu items", err)
}

func (m *Mongo) SaveMenuItem(ctx context.Context, item *models.MenuItem) error {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	item.UpdatedAt = time.Now().UTC()
	res, err := m.menu.UpdateOne(ctx, bson.M{"_id": item.ID}, bson.M{"$set": bson.M{
		"name":            item.Name,
		"description":     item.Description,
		"price":           item.Price,
		"category":        item.Category,
		"variants":        item.Variants,
		"addOns":          item.AddOns,
		"ingredients":     item.Ingredients,
		"tags":            item.Tags,
		"preparationTime": item.PreparationTime,
		"isAvailable":     item.IsAvailable,
		"isPopular":       item.IsPopular,
		"isFeatured":      item.IsFeatured,
		"updatedAt":       item.UpdatedAt,
	}})
	if err != nil {
		return translate("save menu item", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) DeleteMenuItem(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	res, err := m.menu.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate("delete menu item", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) ToggleMenuItemAvailability(ctx context.Context, id primitive.ObjectID) (*models.MenuItem, error) {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	var item models.MenuItem
	if err := m.menu.FindOneAndUpdate(ctx, bson.M{"_id": id}, toggle("isAvailable"), returnAfter).Decode(&item); err != nil {
		return nil, translate("toggle menu item", err)
	}
	return &item, nil
}

func (m *Mongo) IncMenuItemOrders(ctx context.Context, id primitive.ObjectID, n int) error {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	_, err := m.menu.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"totalOrders": n}})
	return translate("inc menu item orders", err)
}

// Reviews

func (m *Mongo) CreateReview(ctx context.Context, r *models.Review) error {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	r.ID = primitive.NewObjectID()
	r.CreatedAt = time.Now().UTC()
	_, err := m.reviews.InsertOne(ctx, r)
	return translate("insert review", err)
}

func (m *Mongo) ReviewByID(ctx context.Context, id primitive.ObjectID) (*models.Review, error) {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	var r models.Review
	if err := m.reviews.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		return nil, translate("find review", err)
	}
	return &r, nil
}

func (m *Mongo) ListReviews(ctx context.Context, shop primitive.ObjectID, p Page) ([]models.Review, int64, error) {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	reviews, total, err := findPage[models.Review](ctx, m.reviews, bson.M{"shop": shop}, bson.D{{Key: "createdAt", Value: -1}}, p)
	return reviews, total, translate("list reviews", err)
}

func (m *Mongo) DeleteReview(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	res, err := m.reviews.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate("delete review", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
