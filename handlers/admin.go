package handlers

import (
	"net/http"
	"strconv"

	"go_trial/foodhub/apperror"
	"go_trial/foodhub/middleware"
	"go_trial/foodhub/models"
	"go_trial/foodhub/policy"
	"go_trial/foodhub/store"
)

const (
	adminPageSize     = 25
	defaultStatPeriod = 30
)

//Dashboard handles the admin overview

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeout(r.Context())
	defer cancel()
	d, err := h.store.Dashboard(ctx)
	if err != nil {
		h.writeError(w, r, apperror.Internal("Server error", err))
		return
	}
	writeData(w, http.StatusOK, d)
}

// statPeriod reads the ?period window in days.
func statPeriod(r *http.Request) int {
	days := queryInt(r, "period")
	if days < 1 {
		days = defaultStatPeriod
	}
	return days
}

func (h *Handler) RevenueStats(w http.ResponseWriter, r *http.Request) {
	days := statPeriod(r)
	ctx, cancel := timeout(r.Context())
	defer cancel()
	daily, err := h.store.RevenueByDay(ctx, h.now().AddDate(0, 0, -days))
	if err != nil {
		h.writeError(w, r, apperror.Internal("Server error", err))
		return
	}
	if daily == nil {
		daily = []store.DailyRevenue{}
	}

	var revenue float64
	var count int64
	for _, d := range daily {
		revenue += d.Revenue
		count += d.Orders
	}
	avg := 0.0
	if count > 0 {
		avg = revenue / float64(count)
	}
	writeData(w, http.StatusOK, envelope{
		"dailyStats": daily,
		"summary": envelope{
			"totalRevenue":      revenue,
			"totalOrders":       count,
			"averageOrderValue": avg,
			"period":            strconv.Itoa(days) + " days",
		},
	})
}

func (h *Handler) OrderStats(w http.ResponseWriter, r *http.Request) {
	days := statPeriod(r)
	ctx, cancel := timeout(r.Context())
	defer cancel()
	rows, err := h.store.OrdersByDay(ctx, h.now().AddDate(0, 0, -days))
	if err != nil {
		h.writeError(w, r, apperror.Internal("Server error", err))
		return
	}

	daily := map[string]map[string]int64{}
	distribution := map[string]int64{}
	for _, row := range rows {
		if daily[row.Date] == nil {
			daily[row.Date] = map[string]int64{}
		}
		daily[row.Date][row.Status] = row.Count
		distribution[row.Status] += row.Count
	}
	writeData(w, http.StatusOK, envelope{
		"dailyStats":         daily,
		"statusDistribution": distribution,
		"period":             strconv.Itoa(days) + " days",
	})
}

// AdminShops lists every shop, active or not.
func (h *Handler) AdminShops(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sort := q.Get("sort")
	if sort == "" {
		sort = "-createdAt"
	}
	f := store.ShopFilter{
		Category: q.Get("category"),
		IsActive: queryBool(r, "isActive"),
		Search:   q.Get("search"),
		Sort:     sort,
	}
	ctx, cancel := timeout(r.Context())
	defer cancel()
	p := pageOf(r, adminPageSize)
	shops, total, err := h.store.ListShops(ctx, f, p)
	if err != nil {
		h.writeError(w, r, apperror.Internal("Server error", err))
		return
	}
	writePage(w, shops, total, p)
}

func (h *Handler) AdminUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.UserFilter{Search: q.Get("search")}
	if role := models.Role(q.Get("role")); role.Valid() {
		f.Role = role
	}
	ctx, cancel := timeout(r.Context())
	defer cancel()
	p := pageOf(r, adminPageSize)
	users, total, err := h.store.ListUsers(ctx, f, p)
	if err != nil {
		h.writeError(w, r, apperror.Internal("Server error", err))
		return
	}
	writePage(w, users, total, p)
}

func (h *Handler) AdminToggleShop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx, cancel := timeout(r.Context())
	defer cancel()
	shop, err := h.store.ToggleShopActive(ctx, id)
	if err != nil {
		h.writeError(w, r, notFoundOr(err, "Shop not found"))
		return
	}
	h.log.Info("shop active toggled", "shop", id.Hex(), "active", shop.IsActive)
	writeJSON(w, http.StatusOK, envelope{
		"success": true,
		"data":    envelope{"isActive": shop.IsActive},
		"message": "Shop " + activation(shop.IsActive) + " successfully",
	})
}

func (h *Handler) AdminToggleUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx, cancel := timeout(r.Context())
	defer cancel()
	target, err := h.store.UserByID(ctx, id)
	if err != nil {
		h.writeError(w, r, notFoundOr(err, "User not found"))
		return
	}
	if err := policy.CheckToggleUser(middleware.CurrentUser(r.Context()), target); err != nil {
		h.writeError(w, r, err)
		return
	}
	target, err = h.store.ToggleUserActive(ctx, id)
	if err != nil {
		h.writeError(w, r, notFoundOr(err, "User not found"))
		return
	}
	h.log.Info("user active toggled", "user", id.Hex(), "active", target.IsActive)
	writeJSON(w, http.StatusOK, envelope{
		"success": true,
		"data":    envelope{"isActive": target.IsActive},
		"message": "User " + activation(target.IsActive) + " successfully",
	})
}

func activation(active bool) string {
	if active {
		return "activated"
	}
	return "deactivated"
}
