package store

import (
	"context"
	"sort"
	"time"

	"go_trial/foodhub/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (m *Memory) Dashboard(context.Context) (*Dashboard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := &Dashboard{
		TotalUsers:     int64(len(m.users)),
		TotalShops:     int64(len(m.shops)),
		TotalOrders:    int64(len(m.orders)),
		TotalMenuItems: int64(len(m.menu)),
	}

	roles := map[string]int64{}
	var users []models.User
	for _, u := range m.users {
		roles[string(u.Role)]++
		users = append(users, u)
	}
	d.UsersByRole = countsOf(roles)

	var shops []models.Shop
	for _, s := range m.shops {
		if s.IsActive {
			d.ActiveShops++
		}
		shops = append(shops, s)
	}

	statuses := map[string]int64{}
	var orders []models.Order
	for _, o := range m.orders {
		statuses[string(o.Status)]++
		if countsAsRevenue(&o) {
			d.TotalRevenue += o.Pricing.Total
		}
		orders = append(orders, cloneOrder(o))
	}
	d.OrdersByStatus = countsOf(statuses)

	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	sort.Slice(shops, func(i, j int) bool { return shops[i].TotalOrders > shops[j].TotalOrders })
	d.RecentOrders = paginate(orders, Page{Page: 1, Limit: 10})
	d.RecentUsers = paginate(users, Page{Page: 1, Limit: 10})
	d.TopShops = paginate(shops, Page{Page: 1, Limit: 5})
	return d, nil
}

func (m *Memory) RevenueByDay(_ context.Context, since time.Time) ([]DailyRevenue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	days := map[string]*DailyRevenue{}
	for _, o := range m.orders {
		if o.CreatedAt.Before(since) || o.PaymentInfo.PaymentStatus != models.PaymentCompleted {
			continue
		}
		key := o.CreatedAt.UTC().Format(dayLayout)
		d, ok := days[key]
		if !ok {
			d = &DailyRevenue{Date: key}
			days[key] = d
		}
		d.Revenue += o.Pricing.Total
		d.Orders++
	}
	out := make([]DailyRevenue, 0, len(days))
	for _, d := range days {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (m *Memory) OrdersByDay(_ context.Context, since time.Time) ([]DailyStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	type key struct{ date, status string }
	counts := map[key]int64{}
	for _, o := range m.orders {
		if o.CreatedAt.Before(since) {
			continue
		}
		counts[key{o.CreatedAt.UTC().Format(dayLayout), string(o.Status)}]++
	}
	out := make([]DailyStatus, 0, len(counts))
	for k, n := range counts {
		out = append(out, DailyStatus{Date: k.date, Status: k.status, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}

func (m *Memory) ShopStats(_ context.Context, shop primitive.ObjectID) (*ShopStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := &ShopStats{}
	statuses := map[string]int64{}
	var orders []models.Order
	for _, o := range m.orders {
		if o.Shop != shop {
			continue
		}
		st.TotalOrders++
		statuses[string(o.Status)]++
		if o.PaymentInfo.PaymentStatus == models.PaymentCompleted {
			st.TotalRevenue += o.Pricing.Total
		}
		orders = append(orders, cloneOrder(o))
	}
	for _, item := range m.menu {
		if item.Shop == shop {
			st.TotalMenuItems++
		}
	}
	st.OrdersByStatus = countsOf(statuses)
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	st.RecentOrders = paginate(orders, Page{Page: 1, Limit: 10})
	return st, nil
}

func countsOf(m map[string]int64) []CountByKey {
	out := make([]CountByKey, 0, len(m))
	for k, n := range m {
		out = append(out, CountByKey{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
