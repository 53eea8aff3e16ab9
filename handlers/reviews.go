package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go_trial/foodhub/apperror"
	"go_trial/foodhub/middleware"
	"go_trial/foodhub/models"
	"go_trial/foodhub/policy"
	"go_trial/foodhub/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const reviewsPageSize = 10

type createReviewRequest struct {
	Order    string              `json:"order" validate:"required,objectid"`
	MenuItem string              `json:"menuItem" validate:"omitempty,objectid"`
	Rating   models.ReviewRating `json:"rating"`
	Title    string              `json:"title" validate:"max=100"`
	Review   string              `json:"review" validate:"max=1000"`
}

//CreateReview lets the customer of a delivered order review the shop once

func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	shopID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req createReviewRequest
	if err := bind(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	orderID, _ := primitive.ObjectIDFromHex(req.Order)
	user := middleware.CurrentUser(r.Context())

	ctx, cancel := timeout(r.Context())
	defer cancel()
	order, err := h.store.OrderByID(ctx, orderID)
	if err != nil {
		h.writeError(w, r, notFoundOr(err, "Order not found"))
		return
	}
	switch {
	case !policy.IsOrderCustomer(user, order):
		h.writeError(w, r, apperror.Unauthorized("Not authorized to review this order"))
		return
	case order.Shop != shopID:
		h.writeError(w, r, apperror.BusinessRule("Order does not belong to this shop"))
		return
	case order.Status != models.StatusDelivered:
		h.writeError(w, r, apperror.BusinessRule("Only delivered orders can be reviewed"))
		return
	}

	review := &models.Review{
		User:   user.ID,
		Shop:   shopID,
		Order:  orderID,
		Rating: req.Rating,
		Title:  strings.TrimSpace(req.Title),
		Review: strings.TrimSpace(req.Review),
	}
	if req.MenuItem != "" {
		id, _ := primitive.ObjectIDFromHex(req.MenuItem)
		review.MenuItem = &id
	}
	err = h.store.CreateReview(ctx, review)
	if errors.Is(err, store.ErrDuplicate) {
		h.writeError(w, r, apperror.BusinessRule("You have already reviewed this order"))
		return
	}
	if err != nil {
		h.writeError(w, r, apperror.Internal("Server Error", err))
		return
	}
	if err := h.store.ApplyShopRating(ctx, shopID, review.Rating, 1); err != nil {
		h.log.Error("shop rating not updated", "shop", shopID.Hex(), "review", review.ID.Hex(), "error", err)
	}
	writeData(w, http.StatusCreated, review)
}

func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	shopID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx, cancel := timeout(r.Context())
	defer cancel()
	p := pageOf(r, reviewsPageSize)
	reviews, total, err := h.store.ListReviews(ctx, shopID, p)
	if err != nil {
		h.writeError(w, r, apperror.Internal("Server Error", err))
		return
	}
	writePage(w, reviews, total, p)
}

// DeleteReview removes a review and takes it out of the shop aggregate.
func (h *Handler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx, cancel := timeout(r.Context())
	defer cancel()
	review, err := h.store.ReviewByID(ctx, id)
	if err != nil {
		h.writeError(w, r, notFoundOr(err, "Review not found"))
		return
	}
	user := middleware.CurrentUser(r.Context())
	if review.User != user.ID && !user.IsAdmin() {
		h.writeError(w, r, apperror.Unauthorized("Not authorized to delete this review"))
		return
	}
	if err := h.store.DeleteReview(ctx, id); err != nil {
		h.writeError(w, r, notFoundOr(err, "Review not found"))
		return
	}
	if err := h.store.ApplyShopRating(ctx, review.Shop, review.Rating, -1); err != nil {
		h.log.Error("shop rating not updated", "shop", review.Shop.Hex(), "review", id.Hex(), "error", err)
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "message": "Review deleted successfully"})
}
