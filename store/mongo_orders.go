package store

import (
	"context"
	"time"

	"go_trial/foodhub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NextOrderSequence atomically bumps the shared order counter.
func (m *Mongo) NextOrderSequence(ctx context.Context) (int64, error) {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := m.counters.FindOneAndUpdate(ctx, bson.M{"_id": "orders"}, bson.M{"$inc": bson.M{"seq": 1}}, opts).Decode(&counter)
	if err != nil {
		return 0, translate("next order sequence", err)
	}
	return counter.Seq, nil
}

func (m *Mongo) CreateOrder(ctx context.Context, o *models.Order) error {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	now := time.Now().UTC()
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	_, err := m.orders.InsertOne(ctx, o)
	return translate("insert order", err)
}

func (m *Mongo) OrderByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	var o models.Order
	if err := m.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		return nil, translate("find order", err)
	}
	return &o, nil
}

func orderFilter(f OrderFilter) bson.M {
	filter := bson.M{}
	if f.Customer != nil {
		filter["customer"] = *f.Customer
	}
	if f.Shop != nil {
		filter["shop"] = *f.Shop
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.From != nil || f.To != nil {
		created := bson.M{}
		if f.From != nil {
			created["$gte"] = *f.From
		}
		if f.To != nil {
			created["$lte"] = *f.To
		}
		filter["createdAt"] = created
	}
	return filter
}

func (m *Mongo) ListOrders(ctx context.Context, f OrderFilter, p Page) ([]models.Order, int64, error) {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	orders, total, err := findPage[models.Order](ctx, m.orders, orderFilter(f), bson.D{{Key: "createdAt", Value: -1}}, p)
	return orders, total, translate("list orders", err)
}

func (m *Mongo) SaveOrder(ctx context.Context, o *models.Order, expect OrderVersion) error {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	o.UpdatedAt = time.Now().UTC()
	filter := bson.M{
		"_id":                       o.ID,
		"status":                    expect.Status,
		"paymentInfo.paymentStatus": expect.PaymentStatus,
		"rating.ratedAt":            bson.M{"$exists": expect.Rated},
	}
	res, err := m.orders.ReplaceOne(ctx, filter, o)
	if err != nil {
		return translate("save order", err)
	}
	if res.MatchedCount == 0 {
		n, err := m.orders.CountDocuments(ctx, bson.M{"_id": o.ID})
		if err != nil {
			return translate("save order", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrStale
	}
	return nil
}
