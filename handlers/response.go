package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go_trial/foodhub/apperror"
	"go_trial/foodhub/store"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{"success": true, "data": data})
}

// writeError maps err to a status and the error envelope. Internal errors
// are logged and reach the client as a generic message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperror.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	body := envelope{"success": false, "message": apperror.PublicMessage(err)}
	if fields := apperror.FieldsOf(err); len(fields) > 0 {
		body["errors"] = fields
	}
	writeJSON(w, status, body)
}

// notFoundOr turns store.ErrNotFound into a 404 with msg.
func notFoundOr(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperror.NotFound(msg)
	}
	return apperror.Internal("Server Error", err)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.Validation("Request body is empty")
		}
		return apperror.Validation("Invalid request body")
	}
	return nil
}

// pathID parses a route variable holding an ObjectID.
func pathID(r *http.Request, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)[name])
	if err != nil {
		return primitive.NilObjectID, apperror.NotFound("Resource not found")
	}
	return id, nil
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

func queryBool(r *http.Request, key string) *bool {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}

func queryFloat(r *http.Request, key string) *float64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

func pageOf(r *http.Request, defaultLimit int) store.Page {
	return store.Page{Page: queryInt(r, "page"), Limit: queryInt(r, "limit")}.Normalize(defaultLimit)
}

type pageRef struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type pagination struct {
	Next *pageRef `json:"next,omitempty"`
	Prev *pageRef `json:"prev,omitempty"`
}

func paginationOf(p store.Page, total int64) pagination {
	var out pagination
	if int64(p.Page*p.Limit) < total {
		out.Next = &pageRef{Page: p.Page + 1, Limit: p.Limit}
	}
	if p.Page > 1 {
		out.Prev = &pageRef{Page: p.Page - 1, Limit: p.Limit}
	}
	return out
}

// writePage writes a list response with count, total and page links.
func writePage[T any](w http.ResponseWriter, items []T, total int64, p store.Page) {
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, envelope{
		"success":    true,
		"count":      len(items),
		"total":      total,
		"pagination": paginationOf(p, total),
		"data":       items,
	})
}
