package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go_trial/foodhub/auth"
	"go_trial/foodhub/models"
	"go_trial/foodhub/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Message
}

func TestRequireJSON(t *testing.T) {
	h := RequireJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write(b)
	}))

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		want        int
	}{
		{"get passes", http.MethodGet, "", "", http.StatusOK},
		{"json body", http.MethodPost, "application/json", `{"a":1}`, http.StatusOK},
		{"charset param", http.MethodPut, "application/json; charset=utf-8", `{}`, http.StatusOK},
		{"empty patch", http.MethodPatch, "application/json", "", http.StatusOK},
		{"bodiless patch", http.MethodPatch, "", "", http.StatusOK},
		{"body without type", http.MethodPost, "", `{"a":1}`, http.StatusUnsupportedMediaType},
		{"form body", http.MethodPost, "application/x-www-form-urlencoded", "a=1", http.StatusUnsupportedMediaType},
		{"malformed", http.MethodPost, "application/json", `{"a":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

type authFixture struct {
	tokens *auth.Tokens
	store  *store.Memory
	active *models.User
	idle   *models.User
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	st := store.NewMemory()
	active := &models.User{Name: "Ada", Email: "ada@example.com", Role: models.RoleCustomer, IsActive: true}
	idle := &models.User{Name: "Bob", Email: "bob@example.com", Role: models.RoleCustomer}
	require.NoError(t, st.CreateUser(context.Background(), active))
	require.NoError(t, st.CreateUser(context.Background(), idle))
	return &authFixture{tokens: auth.NewTokens("test-secret", time.Hour), store: st, active: active, idle: idle}
}

func (f *authFixture) token(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := f.tokens.GenerateToken(u)
	require.NoError(t, err)
	return tok
}

func TestAuthenticate(t *testing.T) {
	f := newAuthFixture(t)
	a := NewAuthenticator(f.tokens, f.store, discard)

	var seen *models.User
	h := a.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CurrentUser(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name    string
		headers map[string]string
		want    int
		message string
	}{
		{"no token", nil, http.StatusUnauthorized, "Not authorized to access this route"},
		{"garbage", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized, "Not authorized to access this route"},
		{"bearer", map[string]string{"Authorization": "Bearer " + f.token(t, f.active)}, http.StatusOK, ""},
		{"legacy header", map[string]string{"token": f.token(t, f.active)}, http.StatusOK, ""},
		{"deactivated", map[string]string{"Authorization": "Bearer " + f.token(t, f.idle)}, http.StatusUnauthorized, "Account is deactivated. Please contact support."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, f.active.ID, seen.ID)
				return
			}
			assert.Nil(t, seen)
			assert.Equal(t, tt.message, decodeMessage(t, rec))
		})
	}
}

func TestAuthenticate_UnknownUser(t *testing.T) {
	f := newAuthFixture(t)
	ghost := &models.User{ID: primitive.NewObjectID(), Role: models.RoleCustomer}
	a := NewAuthenticator(f.tokens, f.store, discard)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, ghost))
	rec := httptest.NewRecorder()
	a.Authenticate(http.HandlerFunc(okHandler)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthorize(t *testing.T) {
	gate := Authorize(models.RoleShopOwner, models.RoleAdmin)(http.HandlerFunc(okHandler))

	serve := func(u *models.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if u != nil {
			req = req.WithContext(WithUser(req.Context(), u))
		}
		rec := httptest.NewRecorder()
		gate.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, serve(&models.User{Role: models.RoleShopOwner}).Code)
	assert.Equal(t, http.StatusNoContent, serve(&models.User{Role: models.RoleAdmin}).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(nil).Code)

	rec := serve(&models.User{Role: models.RoleCustomer})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "User role customer is not authorized to access this route", decodeMessage(t, rec))
}
