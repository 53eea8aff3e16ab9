// Package middleware holds the HTTP middleware shared by every route:
// body checks, authentication, role gates, rate limiting and metrics.
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"go_trial/foodhub/auth"
	"go_trial/foodhub/middleware/logkafka"
	"go_trial/foodhub/models"
	"go_trial/foodhub/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxBodyBytes = 10 << 20

type contextKey int

const currentUserKey contextKey = iota

// deny writes the same error envelope the handlers use.
func deny(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}

//RequireJSON rejects write requests whose body is not a JSON document

func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			next.ServeHTTP(w, r)
			return
		}

		contentType := r.Header.Get("Content-Type")
		if contentType == "" && r.ContentLength == 0 {
			next.ServeHTTP(w, r)
			return
		}
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || mediaType != "application/json" {
			deny(w, http.StatusUnsupportedMediaType, "Content-Type header must be application/json")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				deny(w, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			}
			deny(w, http.StatusBadRequest, "Error reading request body")
			return
		}
		// Bodiless actions such as toggles and cancellations are allowed.
		if len(bytes.TrimSpace(body)) > 0 && !json.Valid(body) {
			deny(w, http.StatusBadRequest, "Malformed JSON body")
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// UserLoader resolves the account a token belongs to.
type UserLoader interface {
	UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

type Authenticator struct {
	tokens *auth.Tokens
	users  UserLoader
	log    *slog.Logger
}

func NewAuthenticator(tokens *auth.Tokens, users UserLoader, log *slog.Logger) *Authenticator {
	if log == nil {
		log = slog.Default()
	}
	return &Authenticator{tokens: tokens, users: users, log: log}
}

// bearerToken reads "Authorization: Bearer <t>", falling back to the
// legacy "token" header.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if rest, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return strings.TrimSpace(r.Header.Get("token"))
}

// Authenticate sets the current user in the request context from a valid
// access token.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			deny(w, http.StatusUnauthorized, "Not authorized to access this route")
			return
		}
		id, _, err := a.tokens.ValidateToken(tokenString)
		if err != nil {
			deny(w, http.StatusUnauthorized, "Not authorized to access this route")
			return
		}

		user, err := a.users.UserByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				deny(w, http.StatusUnauthorized, "No user found with this token")
				return
			}
			a.log.Error("load token user", "user", id.Hex(), "error", err)
			deny(w, http.StatusInternalServerError, "Server Error")
			return
		}
		if !user.IsActive {
			deny(w, http.StatusUnauthorized, "Account is deactivated. Please contact support.")
			return
		}

		logkafka.SetUserID(r.Context(), user.ID.Hex())
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// Authorize lets through only users holding one of roles. It must run
// after Authenticate.
func Authorize(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := CurrentUser(r.Context())
			if user == nil {
				deny(w, http.StatusUnauthorized, "Not authorized to access this route")
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			deny(w, http.StatusUnauthorized, "User role "+string(user.Role)+" is not authorized to access this route")
		})
	}
}

func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, currentUserKey, u)
}

// CurrentUser returns the authenticated user, or nil on public routes.
func CurrentUser(ctx context.Context) *models.User {
	u, _ := ctx.Value(currentUserKey).(*models.User)
	return u
}
