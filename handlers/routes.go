package handlers

import (
	"net/http"

	"go_trial/foodhub/middleware"
	"go_trial/foodhub/models"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const objectID = "{id:[0-9a-fA-F]{24}}"

const (
	customer  = models.RoleCustomer
	shopOwner = models.RoleShopOwner
	admin     = models.RoleAdmin
)

//Routes wires every endpoint onto a new router

func (h *Handler) Routes(authn *middleware.Authenticator) *mux.Router {
	// protect requires a valid token and, when roles are given, one of them.
	protect := func(fn http.HandlerFunc, roles ...models.Role) http.Handler {
		var next http.Handler = fn
		if len(roles) > 0 {
			next = middleware.Authorize(roles...)(next)
		}
		return authn.Authenticate(next)
	}

	root := mux.NewRouter()
	root.Use(middleware.Metrics)
	root.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	root.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// The webhook signature covers the raw body, so it stays off the JSON
	// checking subrouter.
	root.HandleFunc("/api/payments/webhook", h.StripeWebhook).Methods(http.MethodPost)

	api := root.PathPrefix("/api").Subrouter()
	api.Use(middleware.RequireJSON)

	a := api.PathPrefix("/auth").Subrouter()
	a.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	a.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	a.Handle("/logout", protect(h.Logout)).Methods(http.MethodPost)
	a.Handle("/me", protect(h.Me)).Methods(http.MethodGet)
	a.Handle("/update-details", protect(h.UpdateDetails)).Methods(http.MethodPut)
	a.Handle("/update-password", protect(h.UpdatePassword)).Methods(http.MethodPut)
	a.HandleFunc("/forgot-password", h.ForgotPassword).Methods(http.MethodPost)
	a.HandleFunc("/reset-password/{token}", h.ResetPassword).Methods(http.MethodPut)

	s := api.PathPrefix("/shops").Subrouter()
	s.HandleFunc("", h.ListShops).Methods(http.MethodGet)
	s.Handle("", protect(h.CreateShop, shopOwner, admin)).Methods(http.MethodPost)
	s.Handle("/owner/my-shops", protect(h.MyShops, shopOwner, admin)).Methods(http.MethodGet)
	s.HandleFunc("/slug/{slug}", h.GetShopBySlug).Methods(http.MethodGet)
	s.HandleFunc("/"+objectID, h.GetShop).Methods(http.MethodGet)
	s.Handle("/"+objectID, protect(h.UpdateShop, shopOwner, admin)).Methods(http.MethodPut)
	s.Handle("/"+objectID, protect(h.DeleteShop, shopOwner, admin)).Methods(http.MethodDelete)
	s.Handle("/"+objectID+"/stats", protect(h.ShopStats, shopOwner, admin)).Methods(http.MethodGet)
	s.Handle("/"+objectID+"/toggle-status", protect(h.ToggleShopOpen, shopOwner, admin)).Methods(http.MethodPatch)
	s.HandleFunc("/"+objectID+"/reviews", h.ListReviews).Methods(http.MethodGet)
	s.Handle("/"+objectID+"/reviews", protect(h.CreateReview, customer)).Methods(http.MethodPost)

	s.HandleFunc("/{shopId:[0-9a-fA-F]{24}}/menu", h.ListMenu).Methods(http.MethodGet)
	s.HandleFunc("/{shopId:[0-9a-fA-F]{24}}/menu/category/{category}", h.ListMenuByCategory).Methods(http.MethodGet)
	s.Handle("/{shopId:[0-9a-fA-F]{24}}/menu", protect(h.CreateMenuItem, shopOwner, admin)).Methods(http.MethodPost)

	api.Handle("/reviews/"+objectID, protect(h.DeleteReview)).Methods(http.MethodDelete)

	m := api.PathPrefix("/menu").Subrouter()
	m.HandleFunc("/"+objectID, h.GetMenuItem).Methods(http.MethodGet)
	m.Handle("/"+objectID, protect(h.UpdateMenuItem, shopOwner, admin)).Methods(http.MethodPut)
	m.Handle("/"+objectID, protect(h.DeleteMenuItem, shopOwner, admin)).Methods(http.MethodDelete)
	m.Handle("/"+objectID+"/toggle-availability", protect(h.ToggleMenuItemAvailability, shopOwner, admin)).Methods(http.MethodPatch)

	o := api.PathPrefix("/orders").Subrouter()
	o.Handle("", protect(h.CreateOrder, customer)).Methods(http.MethodPost)
	o.Handle("", protect(h.AllOrders, admin)).Methods(http.MethodGet)
	o.Handle("/my-orders", protect(h.MyOrders, customer)).Methods(http.MethodGet)
	o.Handle("/shop/{shopId:[0-9a-fA-F]{24}}", protect(h.ShopOrders, shopOwner, admin)).Methods(http.MethodGet)
	o.Handle("/"+objectID, protect(h.GetOrder)).Methods(http.MethodGet)
	o.Handle("/"+objectID+"/qrcode", protect(h.OrderQRCode)).Methods(http.MethodGet)
	o.Handle("/"+objectID+"/status", protect(h.UpdateOrderStatus, shopOwner, admin)).Methods(http.MethodPatch)
	o.Handle("/"+objectID+"/cancel", protect(h.CancelOrder, customer)).Methods(http.MethodPatch)
	o.Handle("/"+objectID+"/rating", protect(h.RateOrder, customer)).Methods(http.MethodPost)

	p := api.PathPrefix("/payments").Subrouter()
	p.Handle("/create-payment-intent", protect(h.CreatePaymentIntent, customer)).Methods(http.MethodPost)
	p.Handle("/confirm-payment", protect(h.ConfirmPayment, customer)).Methods(http.MethodPost)
	p.Handle("/create-customer", protect(h.CreatePaymentCustomer, customer)).Methods(http.MethodPost)
	p.Handle("/payment-methods", protect(h.PaymentMethods, customer)).Methods(http.MethodGet)

	ad := api.PathPrefix("/admin").Subrouter()
	ad.Handle("/dashboard", protect(h.Dashboard, admin)).Methods(http.MethodGet)
	ad.Handle("/revenue-stats", protect(h.RevenueStats, admin)).Methods(http.MethodGet)
	ad.Handle("/order-stats", protect(h.OrderStats, admin)).Methods(http.MethodGet)
	ad.Handle("/shops", protect(h.AdminShops, admin)).Methods(http.MethodGet)
	ad.Handle("/shops/"+objectID+"/toggle-status", protect(h.AdminToggleShop, admin)).Methods(http.MethodPatch)
	ad.Handle("/users", protect(h.AdminUsers, admin)).Methods(http.MethodGet)
	ad.Handle("/users/"+objectID+"/toggle-status", protect(h.AdminToggleUser, admin)).Methods(http.MethodPatch)
	ad.Handle("/orders", protect(h.AllOrders, admin)).Methods(http.MethodGet)

	root.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{"success": false, "message": "Route " + r.URL.Path + " not found"})
	})
	return root
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{"success": true, "message": "FoodHub API is running", "time": h.now()})
}
