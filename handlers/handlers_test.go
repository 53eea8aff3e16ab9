package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go_trial/foodhub/auth"
	"go_trial/foodhub/middleware"
	"go_trial/foodhub/models"
	"go_trial/foodhub/notify"
	"go_trial/foodhub/payments"
	"go_trial/foodhub/store"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeGateway records intents and accepts webhooks signed "good".
type fakeGateway struct {
	mu      sync.Mutex
	intents map[string]*payments.Intent
	created []int64
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: map[string]*payments.Intent{}}
}

func (g *fakeGateway) CreateIntent(_ context.Context, amount int64, currency string, md map[string]string) (*payments.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := "pi_" + primitive.NewObjectID().Hex()
	in := &payments.Intent{ID: id, ClientSecret: id + "_secret", Status: "requires_payment_method", Amount: amount, Currency: currency, Metadata: md}
	g.intents[id] = in
	g.created = append(g.created, amount)
	return in, nil
}

func (g *fakeGateway) GetIntent(_ context.Context, id string) (*payments.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[id]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	cp := *in
	return &cp, nil
}

func (g *fakeGateway) setStatus(id, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[id].Status = status
}

func (g *fakeGateway) ParseWebhook(payload []byte, sig string) (*payments.Event, error) {
	if sig != "good" {
		return nil, payments.ErrBadSignature
	}
	var ev struct {
		Type    string `json:"type"`
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	return &payments.Event{ID: "evt_1", Type: ev.Type, Intent: &payments.Intent{
		ID:       "pi_hook",
		Status:   payments.IntentSucceeded,
		Metadata: map[string]string{"orderId": ev.OrderID},
	}}, nil
}

func (g *fakeGateway) CreateCustomer(_ context.Context, in payments.CustomerInput) (string, error) {
	return "cus_" + in.UserID, nil
}

func (g *fakeGateway) CustomerOwner(_ context.Context, id string) (string, error) {
	owner, ok := strings.CutPrefix(id, "cus_")
	if !ok {
		return "", payments.ErrNoCustomer
	}
	return owner, nil
}

func (g *fakeGateway) ListCards(context.Context, string) ([]payments.Card, error) {
	return []payments.Card{{ID: "pm_1", Brand: "visa", Last4: "4242"}}, nil
}

type apiFixture struct {
	router   *mux.Router
	store    *store.Memory
	events   *notify.Recorder
	gateway  *fakeGateway
	tokens   *auth.Tokens
	customer *models.User
	owner    *models.User
	admin    *models.User
	shop     *models.Shop
	pizza    *models.MenuItem
	soda     *models.MenuItem
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &apiFixture{
		store:   store.NewMemory(),
		events:  &notify.Recorder{},
		gateway: newFakeGateway(),
		tokens:  auth.NewTokens("test-secret", time.Hour),
	}
	f.customer = f.user(t, "Casey", "casey@example.com", models.RoleCustomer)
	f.owner = f.user(t, "Olive", "olive@example.com", models.RoleShopOwner)
	f.admin = f.user(t, "Ada", "ada@example.com", models.RoleAdmin)

	f.shop = &models.Shop{
		Owner:        f.owner.ID,
		Name:         "Pizza Place",
		Slug:         "pizza-place",
		Category:     "Pizza",
		IsActive:     true,
		IsOpen:       true,
		DeliveryFee:  2.5,
		MinimumOrder: 10,
	}
	require.NoError(t, f.store.CreateShop(ctx, f.shop))
	f.pizza = &models.MenuItem{Shop: f.shop.ID, Name: "Margherita", Price: 12, Category: "Pizza", IsAvailable: true,
		Variants: []models.Variant{{Name: "Large", Price: 16}}}
	f.soda = &models.MenuItem{Shop: f.shop.ID, Name: "Soda", Price: 2, Category: "Beverages", IsAvailable: true}
	require.NoError(t, f.store.CreateMenuItem(ctx, f.pizza))
	require.NoError(t, f.store.CreateMenuItem(ctx, f.soda))

	h := New(Deps{Store: f.store, Payments: f.gateway, Tokens: f.tokens, Events: f.events, Log: log})
	f.router = h.Routes(middleware.NewAuthenticator(f.tokens, f.store, log))
	return f
}

func (f *apiFixture) user(t *testing.T, name, email string, role models.Role) *models.User {
	t.Helper()
	hash, err := auth.HashPassword("secret123")
	require.NoError(t, err)
	u := &models.User{Name: name, Email: email, PasswordHash: hash, Role: role, IsActive: true}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u
}

func (f *apiFixture) do(t *testing.T, method, path string, as *models.User, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != nil {
		token, err := f.tokens.GenerateToken(as)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

type apiResponse struct {
	Success       bool            `json:"success"`
	Message       string          `json:"message"`
	Token         string          `json:"token"`
	Count         int             `json:"count"`
	Total         int64           `json:"total"`
	Pagination    pagination      `json:"pagination"`
	PaymentStatus string          `json:"paymentStatus"`
	Received      bool            `json:"received"`
	Data          json.RawMessage `json:"data"`
	Errors        []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var out apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &v))
	return v
}

func (f *apiFixture) cart() envelope {
	return envelope{
		"shop": f.shop.ID.Hex(),
		"items": []envelope{
			{"menuItem": f.pizza.ID.Hex(), "quantity": 1, "variant": envelope{"name": "Large"}},
			{"menuItem": f.soda.ID.Hex(), "quantity": 2},
		},
		"deliveryAddress": envelope{"street": "1 Main St", "city": "Springfield", "state": "IL", "zipCode": "62701"},
		"contactInfo":     envelope{"phone": "555-0100", "email": "casey@example.com"},
		"paymentInfo":     envelope{"paymentMethod": "card"},
		"tip":             1,
	}
}

func (f *apiFixture) placeOrder(t *testing.T) orderView {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/orders", f.customer, f.cart())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeData[orderView](t, rec)
}

func (f *apiFixture) advance(t *testing.T, id primitive.ObjectID, statuses ...models.OrderStatus) {
	t.Helper()
	for _, s := range statuses {
		rec := f.do(t, http.MethodPatch, "/api/orders/"+id.Hex()+"/status", f.owner, envelope{"status": s})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestRegisterAndLogin(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodPost, "/api/auth/register", nil, envelope{
		"name": "New Person", "email": "New@Example.com", "password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode(t, rec)
	assert.NotEmpty(t, res.Token)

	rec = f.do(t, http.MethodPost, "/api/auth/register", nil, envelope{
		"name": "Again", "email": "new@example.com", "password": "hunter22",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User with this email already exists", decode(t, rec).Message)

	rec = f.do(t, http.MethodPost, "/api/auth/login", nil, envelope{"email": "new@example.com", "password": "hunter22"})
	require.Equal(t, http.StatusOK, rec.Code)
	token := decode(t, rec).Token

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("token", token)
	me := httptest.NewRecorder()
	f.router.ServeHTTP(me, req)
	assert.Equal(t, http.StatusOK, me.Code)

	rec = f.do(t, http.MethodPost, "/api/auth/login", nil, envelope{"email": "new@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", decode(t, rec).Message)
}

func TestRegister_AdminNotSelfAssignable(t *testing.T) {
	f := newAPI(t)
	rec := f.do(t, http.MethodPost, "/api/auth/register", nil, envelope{
		"name": "Mallory", "email": "m@example.com", "password": "hunter22", "role": "admin",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	res := decode(t, rec)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "role", res.Errors[0].Field)
}

func TestCreateOrder_PricesFromMenu(t *testing.T) {
	f := newAPI(t)
	order := f.placeOrder(t)

	assert.Equal(t, models.StatusPlaced, order.Status)
	assert.Equal(t, 20.0, order.Pricing.Subtotal)
	assert.Equal(t, 2.5, order.Pricing.DeliveryFee)
	assert.Equal(t, 1.6, order.Pricing.Tax)
	assert.Equal(t, 25.1, order.Pricing.Total)

	require.NotNil(t, order.Customer)
	assert.Equal(t, f.customer.ID, order.Customer.ID)
	assert.Equal(t, "Casey", order.Customer.Name)
	assert.Equal(t, f.customer.Email, order.Customer.Email)
	require.NotNil(t, order.Shop)
	assert.Equal(t, "Pizza Place", order.Shop.Name)
	assert.Equal(t, "Pizza", order.Shop.Category)
	require.Len(t, order.Items, 2)
	require.NotNil(t, order.Items[0].MenuItem)
	assert.Equal(t, f.pizza.ID, order.Items[0].MenuItem.ID)
	assert.Equal(t, "Margherita", order.Items[0].MenuItem.Name)
	assert.Equal(t, 16.0, order.Items[0].Price)
	assert.Equal(t, "Soda", order.Items[1].MenuItem.Name)
	assert.Contains(t, f.events.Types(), notify.ShopRoom(f.shop.ID)+":"+notify.NewOrder)
}

func TestCreateOrder_Rejections(t *testing.T) {
	f := newAPI(t)

	small := f.cart()
	small["items"] = []envelope{{"menuItem": f.soda.ID.Hex(), "quantity": 1}}
	rec := f.do(t, http.MethodPost, "/api/orders", f.customer, small)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Minimum order amount is $10", decode(t, rec).Message)

	bad := f.cart()
	bad["items"] = []envelope{{"menuItem": f.pizza.ID.Hex(), "quantity": 0}}
	rec = f.do(t, http.MethodPost, "/api/orders", f.customer, bad)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	res := decode(t, rec)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, "items[0].quantity", res.Errors[0].Field)

	rec = f.do(t, http.MethodPost, "/api/orders", f.owner, f.cart())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "User role shop_owner is not authorized to access this route", decode(t, rec).Message)

	rec = f.do(t, http.MethodPost, "/api/orders", nil, f.cart())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOrderStatusFlow(t *testing.T) {
	f := newAPI(t)
	order := f.placeOrder(t)
	path := "/api/orders/" + order.ID.Hex()

	stranger := f.user(t, "Sam", "sam@example.com", models.RoleShopOwner)
	rec := f.do(t, http.MethodPatch, path+"/status", stranger, envelope{"status": "confirmed"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPatch, path+"/status", stranger, envelope{"status": "bogus"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPatch, path+"/status", f.customer, envelope{"status": "confirmed"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "User role customer is not authorized to access this route", decode(t, rec).Message)

	rec = f.do(t, http.MethodPatch, path+"/status", f.owner, envelope{"status": "delivered"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Cannot change status from placed to delivered", decode(t, rec).Message)

	rec = f.do(t, http.MethodPatch, path+"/status", f.owner, envelope{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	res := decode(t, rec)
	assert.Equal(t, "Cannot change status from placed to bogus", res.Message)
	assert.Empty(t, res.Errors)

	f.advance(t, order.ID, models.StatusConfirmed, models.StatusPreparing)

	rec = f.do(t, http.MethodPatch, path+"/cancel", f.customer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Order cannot be cancelled at this stage", decode(t, rec).Message)

	rec = f.do(t, http.MethodGet, path, f.customer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeData[orderView](t, rec)
	assert.Equal(t, models.StatusPreparing, got.Status)
	assert.Len(t, got.StatusHistory, 3)
	assert.Equal(t, "Pizza Place", got.Shop.Name)

	rec = f.do(t, http.MethodGet, "/api/orders/my-orders", f.customer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decodeData[[]orderView](t, rec)
	require.Len(t, mine, 1)
	assert.Equal(t, "Casey", mine[0].Customer.Name)
	assert.Equal(t, "Margherita", mine[0].Items[0].MenuItem.Name)
}

func TestCancelOrder_Customer(t *testing.T) {
	f := newAPI(t)
	order := f.placeOrder(t)

	rec := f.do(t, http.MethodPatch, "/api/orders/"+order.ID.Hex()+"/cancel", f.customer, envelope{"reason": "changed my mind"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeData[orderView](t, rec)
	assert.Equal(t, models.StatusCancelled, got.Status)
	require.NotNil(t, got.Cancellation)
	assert.Equal(t, "changed my mind", got.Cancellation.Reason)
}

func TestPayments_IntentAndConfirm(t *testing.T) {
	f := newAPI(t)
	order := f.placeOrder(t)

	rec := f.do(t, http.MethodPost, "/api/payments/create-payment-intent", f.customer, envelope{"orderId": order.ID.Hex()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeData[struct {
		ClientSecret    string `json:"clientSecret"`
		PaymentIntentID string `json:"paymentIntentId"`
	}](t, rec)
	assert.NotEmpty(t, data.ClientSecret)
	assert.Equal(t, []int64{2510}, f.gateway.created)

	stored, err := f.store.OrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, data.PaymentIntentID, stored.PaymentInfo.PaymentIntentID)

	confirm := envelope{"paymentIntentId": data.PaymentIntentID, "orderId": order.ID.Hex()}
	rec = f.do(t, http.MethodPost, "/api/payments/confirm-payment", f.customer, confirm)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	res := decode(t, rec)
	assert.Equal(t, "Payment not successful", res.Message)
	assert.Equal(t, "requires_payment_method", res.PaymentStatus)

	f.gateway.setStatus(data.PaymentIntentID, payments.IntentSucceeded)
	rec = f.do(t, http.MethodPost, "/api/payments/confirm-payment", f.customer, confirm)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Payment confirmed successfully", decode(t, rec).Message)

	stored, err = f.store.OrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, stored.PaymentInfo.PaymentStatus)
	assert.Equal(t, models.StatusConfirmed, stored.Status)
}

func TestPayments_IntentOnlyForOwnOrder(t *testing.T) {
	f := newAPI(t)
	order := f.placeOrder(t)
	other := f.user(t, "Other", "other@example.com", models.RoleCustomer)

	rec := f.do(t, http.MethodPost, "/api/payments/create-payment-intent", other, envelope{"orderId": order.ID.Hex()})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authorized to pay for this order", decode(t, rec).Message)
	assert.Empty(t, f.gateway.created)
}

func webhook(f *apiFixture, sig string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewBufferString(body))
	req.Header.Set("Stripe-Signature", sig)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestWebhook(t *testing.T) {
	f := newAPI(t)
	order := f.placeOrder(t)
	payload := `{"type":"payment_intent.succeeded","orderId":"` + order.ID.Hex() + `"}`

	rec := webhook(f, "forged", payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Webhook Error")
	stored, _ := f.store.OrderByID(context.Background(), order.ID)
	assert.Equal(t, models.PaymentPending, stored.PaymentInfo.PaymentStatus)

	for i := 0; i < 2; i++ {
		rec = webhook(f, "good", payload)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.True(t, decode(t, rec).Received)
	}
	stored, _ = f.store.OrderByID(context.Background(), order.ID)
	assert.Equal(t, models.PaymentCompleted, stored.PaymentInfo.PaymentStatus)
	assert.Equal(t, "pi_hook", stored.PaymentInfo.TransactionID)

	var received int
	for _, typ := range f.events.Types() {
		if typ == notify.ShopRoom(f.shop.ID)+":"+notify.PaymentReceived {
			received++
		}
	}
	assert.Equal(t, 1, received)

	rec = webhook(f, "good", `{"type":"payment_intent.payment_failed","orderId":"`+order.ID.Hex()+`"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	stored, _ = f.store.OrderByID(context.Background(), order.ID)
	assert.Equal(t, models.PaymentCompleted, stored.PaymentInfo.PaymentStatus)

	rec = webhook(f, "good", `{"type":"charge.refunded"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPaymentMethods_RequiresCustomerID(t *testing.T) {
	f := newAPI(t)
	rec := f.do(t, http.MethodGet, "/api/payments/payment-methods", f.customer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Customer ID is required", decode(t, rec).Message)

	rec = f.do(t, http.MethodPost, "/api/payments/create-customer", f.customer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	customerID := decodeData[struct {
		CustomerID string `json:"customerId"`
	}](t, rec).CustomerID

	rec = f.do(t, http.MethodGet, "/api/payments/payment-methods?customerId="+customerID, f.customer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cards := decodeData[[]payments.Card](t, rec)
	assert.Len(t, cards, 1)
}

func TestPaymentMethods_OnlyOwnCustomer(t *testing.T) {
	f := newAPI(t)
	other := f.user(t, "Riley", "riley@example.com", models.RoleCustomer)

	rec := f.do(t, http.MethodGet, "/api/payments/payment-methods?customerId=cus_"+other.ID.Hex(), f.customer, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authorized to access these payment methods", decode(t, rec).Message)

	rec = f.do(t, http.MethodGet, "/api/payments/payment-methods?customerId=missing", f.customer, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func (f *apiFixture) newShop(name string) envelope {
	return envelope{
		"name":         name,
		"description":  "Fresh pasta every day",
		"category":     "Italian",
		"cuisine":      []string{"Italian"},
		"address":      envelope{"street": "2 Elm St", "city": "Springfield", "state": "IL", "zipCode": "62701"},
		"phone":        "555-0199",
		"email":        "pasta@example.com",
		"deliveryFee":  3,
		"minimumOrder": 15,
		"deliveryTime": envelope{"min": 20, "max": 40},
	}
}

func TestCreateShop_OnePerOwner(t *testing.T) {
	f := newAPI(t)
	owner := f.user(t, "Paolo", "paolo@example.com", models.RoleShopOwner)

	rec := f.do(t, http.MethodPost, "/api/shops", owner, f.newShop("Pasta Palace"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	shop := decodeData[models.Shop](t, rec)
	assert.Equal(t, "pasta-palace", shop.Slug)
	assert.Equal(t, owner.ID, shop.Owner)
	assert.Contains(t, f.events.Types(), notify.GlobalRoom+":"+notify.ShopCreated)

	rec = f.do(t, http.MethodPost, "/api/shops", owner, f.newShop("Second Palace"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User can only create one shop", decode(t, rec).Message)

	rec = f.do(t, http.MethodGet, "/api/shops/slug/pasta-palace", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateShop_Validation(t *testing.T) {
	f := newAPI(t)
	owner := f.user(t, "Paolo", "paolo@example.com", models.RoleShopOwner)
	body := f.newShop("Pasta Palace")
	body["category"] = "Spaceship"
	body["deliveryTime"] = envelope{"min": 40, "max": 20}

	rec := f.do(t, http.MethodPost, "/api/shops", owner, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := map[string]string{}
	for _, e := range decode(t, rec).Errors {
		fields[e.Field] = e.Message
	}
	assert.Equal(t, "Please select a valid category", fields["category"])
	assert.Contains(t, fields, "deliveryTime.max")
}

func TestUpdateShop_PartialAndOwnership(t *testing.T) {
	f := newAPI(t)
	path := "/api/shops/" + f.shop.ID.Hex()

	rec := f.do(t, http.MethodPut, path, f.customer, envelope{"deliveryFee": 1})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	f.shop.Description = "Wood fired since 1999"
	f.shop.Cuisine = []string{"Italian"}
	f.shop.Phone = "555-0100"
	f.shop.Email = "pizza@example.com"
	f.shop.Address = models.Address{Street: "1 Main", City: "Springfield", State: "IL", ZipCode: "62701"}
	f.shop.DeliveryTime = models.DeliveryTime{Min: 10, Max: 30}
	require.NoError(t, f.store.SaveShop(context.Background(), f.shop))

	rec = f.do(t, http.MethodPut, path, f.owner, envelope{"deliveryFee": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	shop := decodeData[models.Shop](t, rec)
	assert.Equal(t, 1.0, shop.DeliveryFee)
	assert.Equal(t, "Pizza Place", shop.Name)
	assert.Equal(t, "pizza-place", shop.Slug)
}

func TestListShops_Pagination(t *testing.T) {
	f := newAPI(t)
	for _, name := range []string{"A", "B", "C"} {
		s := &models.Shop{Owner: primitive.NewObjectID(), Name: name, Slug: name, IsActive: true, IsOpen: true}
		require.NoError(t, f.store.CreateShop(context.Background(), s))
	}
	hidden := &models.Shop{Owner: primitive.NewObjectID(), Name: "Hidden", Slug: "hidden"}
	require.NoError(t, f.store.CreateShop(context.Background(), hidden))

	rec := f.do(t, http.MethodGet, "/api/shops?limit=2&page=1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode(t, rec)
	assert.Equal(t, 2, res.Count)
	assert.EqualValues(t, 4, res.Total)
	require.NotNil(t, res.Pagination.Next)
	assert.Equal(t, 2, res.Pagination.Next.Page)
	assert.Nil(t, res.Pagination.Prev)

	rec = f.do(t, http.MethodGet, "/api/shops?limit=2&page=2", nil, nil)
	res = decode(t, rec)
	assert.Equal(t, 2, res.Count)
	assert.Nil(t, res.Pagination.Next)
	require.NotNil(t, res.Pagination.Prev)

	rec = f.do(t, http.MethodGet, "/api/admin/shops", f.admin, nil)
	assert.EqualValues(t, 5, decode(t, rec).Total)
}

func TestMenu_CreateAndToggle(t *testing.T) {
	f := newAPI(t)
	rec := f.do(t, http.MethodPost, "/api/shops/"+f.shop.ID.Hex()+"/menu", f.owner, envelope{
		"name": "Calzone", "description": "Folded pizza", "price": 11.5, "category": "Pizza",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decodeData[models.MenuItem](t, rec)
	assert.True(t, item.IsAvailable)
	assert.Equal(t, 15, item.PreparationTime)
	assert.Contains(t, f.events.Types(), notify.ShopRoom(f.shop.ID)+":"+notify.MenuItemAdded)

	req := httptest.NewRequest(http.MethodPatch, "/api/menu/"+item.ID.Hex()+"/toggle-availability", nil)
	token, _ := f.tokens.GenerateToken(f.owner)
	req.Header.Set("Authorization", "Bearer "+token)
	toggled := httptest.NewRecorder()
	f.router.ServeHTTP(toggled, req)
	require.Equal(t, http.StatusOK, toggled.Code, toggled.Body.String())
	assert.False(t, decodeData[models.MenuItem](t, toggled).IsAvailable)

	rec = f.do(t, http.MethodGet, "/api/shops/"+f.shop.ID.Hex()+"/menu?isAvailable=true", nil, nil)
	assert.Equal(t, 2, decode(t, rec).Count)
}

func TestReviews_UpdateShopAggregate(t *testing.T) {
	f := newAPI(t)
	order := f.placeOrder(t)
	reviewPath := "/api/shops/" + f.shop.ID.Hex() + "/reviews"
	review := envelope{"order": order.ID.Hex(), "rating": envelope{"food": 4, "delivery": 5, "overall": 4}, "review": "Great"}

	rec := f.do(t, http.MethodPost, reviewPath, f.customer, review)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Only delivered orders can be reviewed", decode(t, rec).Message)

	f.advance(t, order.ID, models.StatusConfirmed, models.StatusPreparing, models.StatusReadyForPickup,
		models.StatusOutForDelivery, models.StatusDelivered)

	rec = f.do(t, http.MethodPost, reviewPath, f.customer, review)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeData[models.Review](t, rec)

	rec = f.do(t, http.MethodPost, reviewPath, f.customer, review)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "You have already reviewed this order", decode(t, rec).Message)

	shop, err := f.store.ShopByID(context.Background(), f.shop.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, shop.Rating.Count)
	assert.Equal(t, 4.0, shop.Rating.Average)
	assert.Equal(t, 5.0, shop.Rating.Delivery)

	rec = f.do(t, http.MethodGet, reviewPath, nil, nil)
	assert.Equal(t, 1, decode(t, rec).Count)

	rec = f.do(t, http.MethodDelete, "/api/reviews/"+created.ID.Hex(), f.owner, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = f.do(t, http.MethodDelete, "/api/reviews/"+created.ID.Hex(), f.customer, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	shop, err = f.store.ShopByID(context.Background(), f.shop.ID)
	require.NoError(t, err)
	assert.Zero(t, shop.Rating.Count)
}

func TestRateOrder(t *testing.T) {
	f := newAPI(t)
	order := f.placeOrder(t)
	f.advance(t, order.ID, models.StatusConfirmed, models.StatusPreparing, models.StatusReadyForPickup,
		models.StatusOutForDelivery, models.StatusDelivered)
	path := "/api/orders/" + order.ID.Hex() + "/rating"
	body := envelope{"rating": envelope{"foodRating": 5, "deliveryRating": 4, "overallRating": 5}}

	rec := f.do(t, http.MethodPost, path, f.customer, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(t, http.MethodPost, path, f.customer, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Order has already been rated", decode(t, rec).Message)
}

func TestOrderQRCode(t *testing.T) {
	f := newAPI(t)
	order := f.placeOrder(t)

	rec := f.do(t, http.MethodGet, "/api/orders/"+order.ID.Hex()+"/qrcode", f.customer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	other := f.user(t, "Other", "other@example.com", models.RoleCustomer)
	rec = f.do(t, http.MethodGet, "/api/orders/"+order.ID.Hex()+"/qrcode", other, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdmin_ToggleUser(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodPatch, "/api/admin/users/"+f.admin.ID.Hex()+"/toggle-status", f.admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "You cannot deactivate your own account", decode(t, rec).Message)

	rec = f.do(t, http.MethodPatch, "/api/admin/users/"+f.customer.ID.Hex()+"/toggle-status", f.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "User deactivated successfully", decode(t, rec).Message)

	rec = f.do(t, http.MethodGet, "/api/auth/me", f.customer, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Account is deactivated. Please contact support.", decode(t, rec).Message)

	rec = f.do(t, http.MethodGet, "/api/admin/users", f.owner, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdmin_Stats(t *testing.T) {
	f := newAPI(t)
	order := f.placeOrder(t)
	rec := webhook(f, "good", `{"type":"payment_intent.succeeded","orderId":"`+order.ID.Hex()+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/admin/dashboard", f.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	d := decodeData[store.Dashboard](t, rec)
	assert.EqualValues(t, 3, d.TotalUsers)
	assert.EqualValues(t, 1, d.TotalOrders)
	assert.Equal(t, 25.1, d.TotalRevenue)

	rec = f.do(t, http.MethodGet, "/api/admin/revenue-stats?period=7", f.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rev := decodeData[struct {
		Summary struct {
			TotalRevenue float64 `json:"totalRevenue"`
			TotalOrders  int64   `json:"totalOrders"`
			Period       string  `json:"period"`
		} `json:"summary"`
	}](t, rec)
	assert.Equal(t, 25.1, rev.Summary.TotalRevenue)
	assert.EqualValues(t, 1, rev.Summary.TotalOrders)
	assert.Equal(t, "7 days", rev.Summary.Period)

	rec = f.do(t, http.MethodGet, "/api/admin/order-stats", f.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	os := decodeData[struct {
		StatusDistribution map[string]int64 `json:"statusDistribution"`
	}](t, rec)
	assert.EqualValues(t, 1, os.StatusDistribution["confirmed"])
}

func TestRoutes_HealthAndUnknown(t *testing.T) {
	f := newAPI(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/shops/not-an-id", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
