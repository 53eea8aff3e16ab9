package store

import (
	"context"
	"time"

	"go_trial/foodhub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func aggregate[T any](ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline) ([]T, error) {
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func groupCount(field string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$" + field}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}

func sumTotal(match bson.D) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: nil}, {Key: "total", Value: bson.D{{Key: "$sum", Value: "$pricing.total"}}}}}},
	}
}

type totalRow struct {
	Total float64 `bson:"total"`
}

func (m *Mongo) Dashboard(ctx context.Context) (*Dashboard, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	d := &Dashboard{}
	var err error
	counts := []struct {
		coll   *mongo.Collection
		filter bson.M
		dst    *int64
	}{
		{m.users, bson.M{}, &d.TotalUsers},
		{m.shops, bson.M{}, &d.TotalShops},
		{m.shops, bson.M{"isActive": true}, &d.ActiveShops},
		{m.orders, bson.M{}, &d.TotalOrders},
		{m.menu, bson.M{}, &d.TotalMenuItems},
	}
	for _, c := range counts {
		if *c.dst, err = c.coll.CountDocuments(ctx, c.filter); err != nil {
			return nil, translate("dashboard counts", err)
		}
	}

	if d.UsersByRole, err = aggregate[CountByKey](ctx, m.users, groupCount("role")); err != nil {
		return nil, translate("users by role", err)
	}
	if d.OrdersByStatus, err = aggregate[CountByKey](ctx, m.orders, groupCount("status")); err != nil {
		return nil, translate("orders by status", err)
	}

	revenue, err := aggregate[totalRow](ctx, m.orders, sumTotal(bson.D{
		{Key: "paymentInfo.paymentStatus", Value: models.PaymentCompleted},
		{Key: "status", Value: bson.D{{Key: "$ne", Value: models.StatusCancelled}}},
	}))
	if err != nil {
		return nil, translate("revenue", err)
	}
	if len(revenue) > 0 {
		d.TotalRevenue = revenue[0].Total
	}

	recent := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(10)
	if d.RecentOrders, err = findAll[models.Order](ctx, m.orders, bson.M{}, recent); err != nil {
		return nil, translate("recent orders", err)
	}
	if d.RecentUsers, err = findAll[models.User](ctx, m.users, bson.M{}, recent); err != nil {
		return nil, translate("recent users", err)
	}
	top := options.Find().SetSort(bson.D{{Key: "totalOrders", Value: -1}}).SetLimit(5)
	if d.TopShops, err = findAll[models.Shop](ctx, m.shops, bson.M{}, top); err != nil {
		return nil, translate("top shops", err)
	}
	return d, nil
}

func dayOf(field string) bson.D {
	return bson.D{{Key: "$dateToString", Value: bson.D{{Key: "format", Value: "%Y-%m-%d"}, {Key: "date", Value: "$" + field}}}}
}

func (m *Mongo) RevenueByDay(ctx context.Context, since time.Time) ([]DailyRevenue, error) {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "createdAt", Value: bson.D{{Key: "$gte", Value: since}}},
			{Key: "paymentInfo.paymentStatus", Value: models.PaymentCompleted},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: dayOf("createdAt")},
			{Key: "revenue", Value: bson.D{{Key: "$sum", Value: "$pricing.total"}}},
			{Key: "orders", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	rows, err := aggregate[DailyRevenue](ctx, m.orders, pipeline)
	return rows, translate("revenue by day", err)
}

func (m *Mongo) OrdersByDay(ctx context.Context, since time.Time) ([]DailyStatus, error) {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "createdAt", Value: bson.D{{Key: "$gte", Value: since}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "date", Value: dayOf("createdAt")}, {Key: "status", Value: "$status"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "date", Value: "$_id.date"},
			{Key: "status", Value: "$_id.status"},
			{Key: "count", Value: 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "date", Value: 1}, {Key: "status", Value: 1}}}},
	}
	rows, err := aggregate[DailyStatus](ctx, m.orders, pipeline)
	return rows, translate("orders by day", err)
}

func (m *Mongo) ShopStats(ctx context.Context, shop primitive.ObjectID) (*ShopStats, error) {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	st := &ShopStats{}
	var err error
	if st.TotalOrders, err = m.orders.CountDocuments(ctx, bson.M{"shop": shop}); err != nil {
		return nil, translate("shop orders", err)
	}
	if st.TotalMenuItems, err = m.menu.CountDocuments(ctx, bson.M{"shop": shop}); err != nil {
		return nil, translate("shop menu", err)
	}
	revenue, err := aggregate[totalRow](ctx, m.orders, sumTotal(bson.D{
		{Key: "shop", Value: shop},
		{Key: "paymentInfo.paymentStatus", Value: models.PaymentCompleted},
	}))
	if err != nil {
		return nil, translate("shop revenue", err)
	}
	if len(revenue) > 0 {
		st.TotalRevenue = revenue[0].Total
	}
	byStatus := append(mongo.Pipeline{{{Key: "$match", Value: bson.D{{Key: "shop", Value: shop}}}}}, groupCount("status")...)
	if st.OrdersByStatus, err = aggregate[CountByKey](ctx, m.orders, byStatus); err != nil {
		return nil, translate("shop orders by status", err)
	}
	recent := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(10)
	if st.RecentOrders, err = findAll[models.Order](ctx, m.orders, bson.M{"shop": shop}, recent); err != nil {
		return nil, translate("shop recent orders", err)
	}
	return st, nil
}
