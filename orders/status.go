package orders

import (
	"go_trial/foodhub/apperror"
	"go_trial/foodhub/models"
)

var allowedTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.StatusPlaced:         {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed:      {models.StatusPreparing, models.StatusCancelled},
	models.StatusPreparing:      {models.StatusReadyForPickup, models.StatusCancelled},
	models.StatusReadyForPickup: {models.StatusOutForDelivery},
	models.StatusOutForDelivery: {models.StatusDelivered},
	models.StatusDelivered:      {},
	models.StatusCancelled:      {},
	models.StatusRefunded:       {},
}

func NextStatuses(from models.OrderStatus) []models.OrderStatus {
	return append([]models.OrderStatus(nil), allowedTransitions[from]...)
}

func CanTransition(from, to models.OrderStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func ValidateTransition(from, to models.OrderStatus) error {
	if !CanTransition(from, to) {
		return apperror.BusinessRule("Cannot change status from %s to %s", from, to)
	}
	return nil
}

// CustomerCancellable reports whether the customer may still cancel.
func CustomerCancellable(s models.OrderStatus) bool {
	return s == models.StatusPlaced || s == models.StatusConfirmed
}
